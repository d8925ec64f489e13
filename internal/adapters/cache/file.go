package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/okian/sortie/pkg/fileutil"
	"github.com/okian/sortie/pkg/logger"
)

const snapshotVersion = 1

type snapshot struct {
	Version int                  `json:"version"`
	Vectors map[string][]float32 `json:"vectors"`
}

// FileStore keeps vectors in a single JSON snapshot. The file is read on
// first use and replaced atomically on every Store. A snapshot that cannot be
// decoded is renamed with a ".corrupt" suffix and the store starts empty.
type FileStore struct {
	path string

	mu      sync.Mutex
	loaded  bool
	vectors map[string][]float32
}

// NewFileStore creates a store backed by path. The file need not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Lookup returns the vectors known for keys.
func (s *FileStore) Lookup(ctx context.Context, keys []string) (map[string][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	out := make(map[string][]float32, len(keys))
	for _, k := range keys {
		if v, ok := s.vectors[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// Store merges vectors into the snapshot and rewrites it.
func (s *FileStore) Store(ctx context.Context, vectors map[string][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return err
	}
	for k, v := range vectors {
		s.vectors[k] = v
	}
	return s.flush()
}

// Len returns the number of stored vectors.
func (s *FileStore) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(context.Background()); err != nil {
		return 0, err
	}
	return len(s.vectors), nil
}

// Must be called with s.mu held.
func (s *FileStore) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	s.vectors = make(map[string][]float32)
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreRead, err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		aside := s.path + ".corrupt"
		if rerr := os.Rename(s.path, aside); rerr != nil {
			return fmt.Errorf("%w: %s: %w", ErrCorruptSnapshot, s.path, errors.Join(err, rerr))
		}
		logger.Get().Warn(ctx, "corrupt embedding snapshot moved aside",
			logger.String("path", s.path),
			logger.String("moved_to", aside),
			logger.Error(err))
		s.loaded = true
		return nil
	}
	if snap.Vectors != nil {
		s.vectors = snap.Vectors
	}
	s.loaded = true
	return nil
}

// Must be called with s.mu held.
func (s *FileStore) flush() error {
	data, err := json.Marshal(snapshot{Version: snapshotVersion, Vectors: s.vectors})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	if err := fileutil.WriteAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	return nil
}
