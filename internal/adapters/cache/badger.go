package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
)

const (
	vectorKeyPrefix = "vec:"
	storeChunk      = 500
)

// BadgerStore keeps one vector per key in BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	closer bool
}

// OpenBadgerStore opens (or creates) a Badger database in dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("%w: open badger %s: %w", ErrStoreRead, dir, err)
	}
	return &BadgerStore{db: db, closer: true}, nil
}

// NewBadgerStore wraps an already opened database. Close leaves it open.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Lookup returns the vectors known for keys.
func (s *BadgerStore) Lookup(ctx context.Context, keys []string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(keys))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				return err
			}
			item, err := txn.Get([]byte(vectorKeyPrefix + k))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get %s: %w", k, err)
			}
			var vec []float32
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &vec)
			}); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrCorruptSnapshot, k, err)
			}
			out[k] = vec
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreRead, err)
	}
	return out, nil
}

// Store writes vectors in transactions of at most storeChunk entries.
func (s *BadgerStore) Store(ctx context.Context, vectors map[string][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	keys := make([]string, 0, len(vectors))
	for k := range vectors {
		keys = append(keys, k)
	}
	for start := 0; start < len(keys); start += storeChunk {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := keys[start:min(start+storeChunk, len(keys))]
		err := s.db.Update(func(txn *badger.Txn) error {
			for _, k := range chunk {
				data, err := json.Marshal(vectors[k])
				if err != nil {
					return fmt.Errorf("marshal %s: %w", k, err)
				}
				if err := txn.Set([]byte(vectorKeyPrefix+k), data); err != nil {
					return fmt.Errorf("set %s: %w", k, err)
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStoreWrite, err)
		}
	}
	return nil
}

// Close releases the database when this store opened it.
func (s *BadgerStore) Close() error {
	if !s.closer {
		return nil
	}
	return s.db.Close()
}
