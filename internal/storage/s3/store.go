package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/s3utils"

	"github.com/duckmesh/tablestream/internal/session"
	"github.com/duckmesh/tablestream/internal/storage"
)

// Schemes served by this package.
var Schemes = []string{"s3", "s3a"}

type Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	UseSSL          bool
	PathStyle       bool
}

type client interface {
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Resolver hands out a bucket-scoped FileSystem for s3:// and s3a:// paths.
// The bucket comes from the path authority.
type Resolver struct {
	client client
}

func NewResolver(cfg Config) (*Resolver, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	mc, err := newMinioClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Resolver{client: mc}, nil
}

func NewResolverWithClient(c client) (*Resolver, error) {
	if c == nil {
		return nil, fmt.Errorf("client is required")
	}
	return &Resolver{client: c}, nil
}

func (r *Resolver) Resolve(_ context.Context, _ session.Session, location storage.Location) (storage.FileSystem, error) {
	bucket := strings.TrimSpace(location.Authority)
	if bucket == "" {
		return nil, fmt.Errorf("s3 location %q has no bucket", location.String())
	}
	if err := s3utils.CheckValidBucketName(bucket); err != nil {
		return nil, fmt.Errorf("invalid bucket %q: %w", bucket, err)
	}
	return &Store{client: r.client, bucket: bucket}, nil
}

// Store reads objects from one bucket.
type Store struct {
	client client
	bucket string
}

func (s *Store) Open(ctx context.Context, location storage.Location) (io.ReadCloser, error) {
	key, err := normalizeKey(location.Path)
	if err != nil {
		return nil, err
	}
	reader, err := s.client.Get(ctx, s.bucket, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("get object %s/%s: %w", s.bucket, key, storage.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("get object %s/%s: %w", s.bucket, key, err)
	}
	return reader, nil
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(strings.TrimPrefix(key, "/"))
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.Contains(cleaned, "/../") {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	if err := s3utils.CheckValidObjectName(cleaned); err != nil {
		return "", fmt.Errorf("invalid object key %q: %w", key, err)
	}
	return cleaned, nil
}

func newMinioClient(cfg Config) (*minioClient, error) {
	endpoint, secure, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	lookup := minio.BucketLookupAuto
	if cfg.PathStyle {
		lookup = minio.BucketLookupPath
	}
	clientImpl, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		Secure:       secure,
		Region:       strings.TrimSpace(cfg.Region),
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &minioClient{client: clientImpl}, nil
}

func parseEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("endpoint is required")
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		parsed, err := url.Parse(raw)
		if err != nil {
			return "", false, fmt.Errorf("parse endpoint URL: %w", err)
		}
		if parsed.Host == "" {
			return "", false, fmt.Errorf("endpoint host is required")
		}
		if parsed.Scheme == "https" {
			return parsed.Host, true, nil
		}
		return parsed.Host, useSSL, nil
	}
	return raw, useSSL, nil
}

type minioClient struct {
	client *minio.Client
}

func (m *minioClient) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinioErr(err)
	}
	// GetObject is lazy; Stat surfaces missing objects before the reader is
	// handed to a format.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, mapMinioErr(err)
	}
	return obj, nil
}

func mapMinioErr(err error) error {
	if err == nil {
		return nil
	}
	var response minio.ErrorResponse
	if errors.As(err, &response) {
		switch response.Code {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return storage.ErrObjectNotFound
		}
	}
	return err
}
