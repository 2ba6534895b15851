// Package artifacts provides content-addressed storage (CAS) for triad
// artifacts: proof packages, validation reports, and anything else the
// workflow exchanges by digest rather than by value.
//
// Storage is write-once per digest. A second Put of identical content is a
// no-op; differing content under one digest can only mean the digest
// function is broken and is surfaced as ErrDigestCollision.
package artifacts

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/triad-labs/triad/pkg/canonicalize"
)

var (
	// ErrNotFound is returned by Get for a digest that was never stored.
	// Callers must not mistake "not found" for "empty artifact".
	ErrNotFound = errors.New("artifact not found")

	// ErrDigestCollision is a fatal invariant violation: two different
	// byte strings mapped to the same digest.
	ErrDigestCollision = errors.New("artifact digest collision")
)

// Store defines the contract for content-addressed storage.
type Store interface {
	// Put persists data under its content digest and returns the digest.
	// Put is idempotent and safe under concurrent calls with identical data.
	Put(ctx context.Context, data []byte) (canonicalize.Digest, error)
	// Get retrieves data by its content digest.
	Get(ctx context.Context, digest canonicalize.Digest) ([]byte, error)
	// Exists checks whether an artifact is stored under the digest.
	Exists(ctx context.Context, digest canonicalize.Digest) (bool, error)
}

// PutCanonical canonicalizes v (RFC 8785) and stores the canonical bytes,
// so logically identical artifacts land under one digest regardless of
// construction order.
func PutCanonical(ctx context.Context, s Store, v interface{}) (canonicalize.Digest, error) {
	data, err := canonicalize.JCS(v)
	if err != nil {
		return canonicalize.Digest{}, err
	}
	return s.Put(ctx, data)
}

// MemoryStore is an in-memory Store for tests and single-process runs.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[canonicalize.Digest][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[canonicalize.Digest][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, data []byte) (canonicalize.Digest, error) {
	digest := canonicalize.HashBytes(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.data[digest]; ok {
		if !bytes.Equal(existing, data) {
			return canonicalize.Digest{}, ErrDigestCollision
		}
		return digest, nil
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	s.data[digest] = stored
	return digest, nil
}

func (s *MemoryStore) Get(ctx context.Context, digest canonicalize.Digest) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[digest]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) Exists(ctx context.Context, digest canonicalize.Digest) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[digest]
	return ok, nil
}
