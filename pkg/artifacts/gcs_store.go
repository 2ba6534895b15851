//go:build gcp

package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/triad-labs/triad/pkg/canonicalize"
)

// GCSStore implements Store using Google Cloud Storage.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string // Optional key prefix (e.g., "artifacts/")
}

// GCSStoreConfig holds configuration for GCSStore.
type GCSStoreConfig struct {
	Bucket string
	Prefix string // Optional key prefix
}

// NewGCSStore creates a new GCS-backed artifact store.
func NewGCSStore(ctx context.Context, cfg GCSStoreConfig) (*GCSStore, error) {
	// Uses ADC by default.
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (s *GCSStore) object(digest canonicalize.Digest) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.prefix + digest.Hex() + ".blob")
}

func (s *GCSStore) Put(ctx context.Context, data []byte) (canonicalize.Digest, error) {
	digest := canonicalize.HashBytes(data)

	// DoesNotExist precondition keeps the write-once invariant even under
	// concurrent puts from separate processes.
	w := s.object(digest).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return canonicalize.Digest{}, fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := w.Close(); err != nil {
		// Precondition failure means the blob is already there.
		var gErr *googleapi.Error
		if errors.As(err, &gErr) && gErr.Code == 412 {
			return digest, nil
		}
		return canonicalize.Digest{}, fmt.Errorf("failed to commit artifact: %w", err)
	}
	return digest, nil
}

func (s *GCSStore) Get(ctx context.Context, digest canonicalize.Digest) ([]byte, error) {
	r, err := s.object(digest).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, digest)
		}
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer r.Close() //nolint:errcheck // best-effort close

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}

func (s *GCSStore) Exists(ctx context.Context, digest canonicalize.Digest) (bool, error) {
	_, err := s.object(digest).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat artifact: %w", err)
}
