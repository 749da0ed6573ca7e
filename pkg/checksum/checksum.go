// Package checksum verifies recorded content digests against a byte stream.
package checksum

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/multiformats/go-multihash"
)

// BlockSize is the read buffer size used when hashing content.
const BlockSize = 64 * 1024

// algorithms maps the checksum tags recorded on nodes to multihash function
// names.
var algorithms = map[string]string{
	"md5":    "md5",
	"sha1":   "sha1",
	"sha256": "sha2-256",
	"sha512": "sha2-512",
}

// Supported reports whether digests recorded under tag can be verified.
func Supported(tag string) bool {
	_, ok := algorithms[tag]
	return ok
}

// NewHasher returns a hash for the algorithm recorded under tag.
func NewHasher(tag string) (hash.Hash, error) {
	name, ok := algorithms[tag]
	if !ok {
		return nil, fmt.Errorf("unsupported checksum algorithm %q", tag)
	}
	h, err := multihash.GetHasher(multihash.Names[name])
	if err != nil {
		return nil, fmt.Errorf("getting %s hasher: %w", name, err)
	}
	return h, nil
}

// Mismatch describes one recorded digest that did not match the content.
type Mismatch struct {
	Algorithm string
	Expected  string
	Actual    string
}

// Result is the outcome of verifying a stream against recorded digests.
type Result struct {
	// Verified lists the algorithms whose digests matched.
	Verified []string
	// Mismatches lists the algorithms whose digests did not match.
	Mismatches []Mismatch
	// Unsupported lists recorded algorithms that could not be checked.
	Unsupported []string
}

// OK reports whether no recorded digest mismatched.
func (r Result) OK() bool {
	return len(r.Mismatches) == 0
}

// Verify reads r to the end once, in BlockSize chunks, computing every
// supported digest in want, and compares each against its recorded value.
// Empty recorded values are ignored. Algorithms are reported in sorted order.
func Verify(r io.Reader, want map[string]string) (Result, error) {
	var res Result
	hashers := map[string]hash.Hash{}
	for _, tag := range slices.Sorted(maps.Keys(want)) {
		if want[tag] == "" {
			continue
		}
		if !Supported(tag) {
			res.Unsupported = append(res.Unsupported, tag)
			continue
		}
		h, err := NewHasher(tag)
		if err != nil {
			return Result{}, err
		}
		hashers[tag] = h
	}
	if len(hashers) == 0 {
		return res, nil
	}

	writers := make([]io.Writer, 0, len(hashers))
	for _, h := range hashers {
		writers = append(writers, h)
	}
	buf := make([]byte, BlockSize)
	if _, err := io.CopyBuffer(io.MultiWriter(writers...), onlyReader{r}, buf); err != nil {
		return Result{}, fmt.Errorf("hashing content: %w", err)
	}

	for _, tag := range slices.Sorted(maps.Keys(hashers)) {
		actual := hex.EncodeToString(hashers[tag].Sum(nil))
		if strings.EqualFold(actual, want[tag]) {
			res.Verified = append(res.Verified, tag)
			continue
		}
		res.Mismatches = append(res.Mismatches, Mismatch{
			Algorithm: tag,
			Expected:  want[tag],
			Actual:    actual,
		})
	}
	return res, nil
}

// onlyReader hides any WriterTo implementation so io.CopyBuffer honours the
// bounded buffer.
type onlyReader struct {
	io.Reader
}
