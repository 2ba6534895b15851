package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/triad-labs/triad/pkg/canonicalize"
)

// S3Store implements Store using AWS S3 (or any S3-compatible endpoint).
// Artifacts are stored with their digest as the key.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string // Optional key prefix (e.g., "artifacts/")
}

// S3StoreConfig holds configuration for S3Store.
type S3StoreConfig struct {
	Bucket   string
	Region   string
	Endpoint string // Optional custom endpoint (for MinIO, LocalStack, etc.)
	Prefix   string // Optional key prefix
}

// NewS3Store creates a new S3-backed artifact store.
func NewS3Store(ctx context.Context, cfg S3StoreConfig) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	clientOpts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO/LocalStack
		}
	}

	return &S3Store{
		client: s3.NewFromConfig(awsCfg, clientOpts),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (s *S3Store) key(digest canonicalize.Digest) string {
	return s.prefix + digest.Hex() + ".blob"
}

func (s *S3Store) Put(ctx context.Context, data []byte) (canonicalize.Digest, error) {
	digest := canonicalize.HashBytes(data)
	key := s.key(digest)

	// Content-addressed keys make overwrites idempotent; skip the upload
	// when the object is already there.
	exists, err := s.Exists(ctx, digest)
	if err != nil {
		return canonicalize.Digest{}, err
	}
	if exists {
		return digest, nil
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return canonicalize.Digest{}, fmt.Errorf("failed to put artifact: %w", err)
	}
	return digest, nil
}

func (s *S3Store) Get(ctx context.Context, digest canonicalize.Digest) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(digest)),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, digest)
		}
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	defer out.Body.Close() //nolint:errcheck // best-effort close

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact body: %w", err)
	}
	return data, nil
}

func (s *S3Store) Exists(ctx context.Context, digest canonicalize.Digest) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(digest)),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head artifact: %w", err)
	}
	return true, nil
}
