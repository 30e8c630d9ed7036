package hdfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/colinmarc/hdfs/v2"

	"github.com/duckmesh/tablestream/internal/session"
	"github.com/duckmesh/tablestream/internal/storage"
)

// Schemes served by this package.
var Schemes = []string{"hdfs"}

type Config struct {
	NameNode string
	User     string
}

type client interface {
	Open(name string) (io.ReadCloser, error)
	Close() error
}

type dialFunc func(namenode, user string) (client, error)

// Resolver connects to the namenode named by the path authority, or the
// configured one when the path has none, as the session principal.
type Resolver struct {
	cfg  Config
	dial dialFunc
}

func NewResolver(cfg Config) *Resolver {
	return &Resolver{cfg: cfg, dial: dialNameNode}
}

func (r *Resolver) Resolve(_ context.Context, sess session.Session, location storage.Location) (storage.FileSystem, error) {
	namenode := strings.TrimSpace(location.Authority)
	if namenode == "" {
		namenode = strings.TrimSpace(r.cfg.NameNode)
	}
	if namenode == "" {
		return nil, fmt.Errorf("hdfs namenode is required")
	}
	user := strings.TrimSpace(sess.Principal())
	if user == "" {
		user = strings.TrimSpace(r.cfg.User)
	}
	return &FileSystem{namenode: namenode, user: user, dial: r.dial}, nil
}

// FileSystem dials on every Open; the connection lives as long as the
// returned stream.
type FileSystem struct {
	namenode string
	user     string
	dial     dialFunc
}

func (f *FileSystem) Open(_ context.Context, location storage.Location) (io.ReadCloser, error) {
	if location.Path == "" || location.Path == "/" {
		return nil, fmt.Errorf("hdfs path is required")
	}
	c, err := f.dial(f.namenode, f.user)
	if err != nil {
		return nil, fmt.Errorf("connect to namenode %s: %w", f.namenode, err)
	}
	reader, err := c.Open(location.Path)
	if err != nil {
		_ = c.Close()
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", location.Path, storage.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", location.Path, err)
	}
	return &stream{ReadCloser: reader, client: c}, nil
}

type stream struct {
	io.ReadCloser
	client client
}

func (s *stream) Close() error {
	return errors.Join(s.ReadCloser.Close(), s.client.Close())
}

func dialNameNode(namenode, user string) (client, error) {
	c, err := hdfs.NewClient(hdfs.ClientOptions{
		Addresses: strings.Split(namenode, ","),
		User:      user,
	})
	if err != nil {
		return nil, err
	}
	return &hdfsClient{client: c}, nil
}

type hdfsClient struct {
	client *hdfs.Client
}

func (h *hdfsClient) Open(name string) (io.ReadCloser, error) {
	reader, err := h.client.Open(name)
	if err != nil {
		return nil, err
	}
	return reader, nil
}

func (h *hdfsClient) Close() error {
	return h.client.Close()
}
