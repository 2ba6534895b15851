package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/triad-labs/triad/pkg/canonicalize"
)

// FileStore is a filesystem-backed implementation of Store.
// Blobs are written to <baseDir>/<hex-digest>.blob via temp-file rename.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates a new CAS store at the specified directory.
func NewFileStore(baseDir string) (*FileStore, error) {
	//nolint:gosec // G301: 0755 is intentional for shared artifact directory
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure artifact dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) path(digest canonicalize.Digest) string {
	return filepath.Join(s.baseDir, digest.Hex()+".blob")
}

func (s *FileStore) Put(ctx context.Context, data []byte) (canonicalize.Digest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	digest := canonicalize.HashBytes(data)
	path := s.path(digest)

	if existing, err := os.ReadFile(path); err == nil { //nolint:gosec // digest-derived path
		if !bytes.Equal(existing, data) {
			return canonicalize.Digest{}, ErrDigestCollision
		}
		return digest, nil // already stored
	}

	// Write to temp, then rename, so concurrent identical puts stay idempotent.
	tmpPath := path + ".tmp"
	//nolint:gosec // G306: 0644 is intentional for readable blob files
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return canonicalize.Digest{}, fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return canonicalize.Digest{}, fmt.Errorf("failed to commit blob: %w", err)
	}

	return digest, nil
}

func (s *FileStore) Get(ctx context.Context, digest canonicalize.Digest) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(digest)) //nolint:gosec // digest-derived path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, digest)
		}
		//nolint:wrapcheck // caller provides context
		return nil, err
	}
	return data, nil
}

func (s *FileStore) Exists(ctx context.Context, digest canonicalize.Digest) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.path(digest))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	//nolint:wrapcheck // caller provides context
	return false, err
}
