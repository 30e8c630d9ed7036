package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/duckmesh/tablestream/internal/session"
)

// FileSystem reads from one distributed store.
type FileSystem interface {
	Open(ctx context.Context, location Location) (io.ReadCloser, error)
}

// FileSystemResolver hands out a FileSystem scoped to the session principal.
type FileSystemResolver interface {
	Resolve(ctx context.Context, sess session.Session, location Location) (FileSystem, error)
}

type FileSystemResolverFunc func(ctx context.Context, sess session.Session, location Location) (FileSystem, error)

func (f FileSystemResolverFunc) Resolve(ctx context.Context, sess session.Session, location Location) (FileSystem, error) {
	return f(ctx, sess, location)
}

// DistributedTransport serves hdfs://, s3a:// and s3:// paths through the
// resolver registered for the path's scheme.
type DistributedTransport struct {
	resolvers map[string]FileSystemResolver
}

func NewDistributedTransport() *DistributedTransport {
	return &DistributedTransport{resolvers: map[string]FileSystemResolver{}}
}

// Register binds resolver to each scheme. Later calls replace earlier ones.
func (t *DistributedTransport) Register(resolver FileSystemResolver, schemes ...string) *DistributedTransport {
	for _, scheme := range schemes {
		t.resolvers[scheme] = resolver
	}
	return t
}

func (t *DistributedTransport) Open(ctx context.Context, sess session.Session, path string) (io.ReadCloser, error) {
	location, err := ParseLocation(path)
	if err != nil {
		return nil, openErr(path, err)
	}
	resolver, ok := t.resolvers[location.Scheme]
	if !ok || resolver == nil {
		return nil, openErr(path, fmt.Errorf("no file system configured for scheme %q", location.Scheme))
	}
	fs, err := resolver.Resolve(ctx, sess, location)
	if err != nil {
		return nil, openErr(path, fmt.Errorf("resolve file system: %w", err))
	}
	stream, err := fs.Open(ctx, location)
	if err != nil {
		return nil, openErr(path, err)
	}
	return stream, nil
}
