package fakestore

import (
	"crypto/md5"
	"encoding/binary"
	"math/rand/v2"
)

// Rand is an immutable pseudo-random source. A given Rand always yields the
// same values; derive a new one with Fork to get different values.
type Rand struct {
	rng rand.PCG
}

func NewRand(seed uint64) Rand {
	return Rand{rng: *rand.NewPCG(seed, 0)}
}

func (r Rand) Uint64() uint64 {
	return r.rng.Uint64()
}

// Fork derives a new Rand from r and label. The same r and label always
// derive the same Rand.
func (r Rand) Fork(label string) Rand {
	hash := md5.Sum([]byte(label))
	return Rand{rng: *rand.NewPCG(r.rng.Uint64(), binary.BigEndian.Uint64(hash[:8]))}
}

// ForkN derives a new Rand from r and an index.
func (r Rand) ForkN(i int) Rand {
	return Rand{rng: *rand.NewPCG(r.rng.Uint64(), uint64(i))}
}

// IntN returns a value in [0, n).
func (r Rand) IntN(n int) int {
	rng := r.rng
	return rand.New(&rng).IntN(n)
}

// Pick returns an element of elements. It panics if elements is empty.
func Pick[T any](r Rand, elements []T) T {
	return elements[r.IntN(len(elements))]
}

// Bytes returns n pseudo-random bytes.
func (r Rand) Bytes(n int) []byte {
	rng := r.rng
	src := rand.New(&rng)
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(src.UintN(256))
	}
	return b
}
