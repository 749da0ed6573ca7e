// Package counter provides occurrence-count tables backed by BadgerDB, an
// embedded ordered key-value store, so that tables larger than memory can be
// built and read back in key order.
package counter

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"os"

	"github.com/dgraph-io/badger/v4"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("counter")

// keyPrefix is prepended to every stored key. Badger rejects empty keys, and
// empty attribute values are common.
var keyPrefix = []byte("k:")

// Config holds configuration for a counter table.
type Config struct {
	// Path is the directory for the table's files. Ignored when InMemory is
	// true.
	Path string
	// InMemory keeps the table in memory only. Suitable for tests and small
	// datasets.
	InMemory bool
}

// Entry is one key and its count.
type Entry struct {
	Key   string
	Count uint64
}

// Table is an ordered key→count mapping. Increment is a read-modify-write and
// assumes a single writer.
type Table struct {
	db *badger.DB
}

// badgerLogger adapts go-log to badger's Logger interface. Badger's info
// messages are demoted to debug.
type badgerLogger struct {
	log *logging.ZapEventLogger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Errorf(format, args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warnf(format, args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}

// OpenFresh opens an empty table. Any existing on-disk table at cfg.Path is
// removed first.
func OpenFresh(cfg Config) (*Table, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("path is required for an on-disk counter table")
		}
		if err := os.RemoveAll(cfg.Path); err != nil {
			return nil, fmt.Errorf("removing previous counter table %s: %w", cfg.Path, err)
		}
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("creating counter table directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(false)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(badgerLogger{log: log})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening counter table: %w", err)
	}
	return &Table{db: db}, nil
}

func storedKey(key string) []byte {
	return append(append([]byte(nil), keyPrefix...), key...)
}

func encodeCount(n uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, n)
}

func decodeCount(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("malformed count value of %d bytes", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

func getCount(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var n uint64
	err = item.Value(func(val []byte) error {
		n, err = decodeCount(val)
		return err
	})
	return n, err
}

// Increment adds one to the count of key. A key never seen before counts as
// zero.
func (t *Table) Increment(key string) error {
	k := storedKey(key)
	err := t.db.Update(func(txn *badger.Txn) error {
		n, err := getCount(txn, k)
		if err != nil {
			return err
		}
		return txn.Set(k, encodeCount(n+1))
	})
	if err != nil {
		return fmt.Errorf("incrementing %q: %w", key, err)
	}
	return nil
}

// Get returns the count of key, zero if absent.
func (t *Table) Get(key string) (uint64, error) {
	var n uint64
	err := t.db.View(func(txn *badger.Txn) error {
		var err error
		n, err = getCount(txn, storedKey(key))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("reading %q: %w", key, err)
	}
	return n, nil
}

var errStopScan = errors.New("scan stopped")

// Scan iterates over all entries in ascending key order. Each iteration runs
// in its own read transaction, so the sequence can be consumed more than once.
func (t *Table) Scan() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		err := t.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = keyPrefix
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(keyPrefix); it.ValidForPrefix(keyPrefix); it.Next() {
				item := it.Item()
				key := string(item.Key()[len(keyPrefix):])
				var n uint64
				err := item.Value(func(val []byte) error {
					var err error
					n, err = decodeCount(val)
					return err
				})
				if err != nil {
					return fmt.Errorf("reading count of %q: %w", key, err)
				}
				if !yield(Entry{Key: key, Count: n}, nil) {
					return errStopScan
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopScan) {
			yield(Entry{}, err)
		}
	}
}

// Close closes the table.
func (t *Table) Close() error {
	return t.db.Close()
}
