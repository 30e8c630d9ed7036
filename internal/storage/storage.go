package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/duckmesh/tablestream/internal/format"
	"github.com/duckmesh/tablestream/internal/session"
)

// ErrStreamOpen is matched by every transport failure, whatever the protocol.
var ErrStreamOpen = errors.New("stream open failed")

// ErrObjectNotFound is returned by FileSystem implementations for missing
// objects or files.
var ErrObjectNotFound = errors.New("object not found")

type TableID struct {
	Schema string
	Name   string
}

func (id TableID) String() string {
	return id.Schema + "." + id.Name
}

type Table struct {
	Name    string          `json:"name"`
	Columns []format.Column `json:"columns"`
}

// Transport opens a path for one protocol family. The returned stream is
// owned by the caller.
type Transport interface {
	Open(ctx context.Context, sess session.Session, path string) (io.ReadCloser, error)
}

type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open stream for %q: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

func (e *OpenError) Is(target error) bool {
	return target == ErrStreamOpen
}

func openErr(path string, err error) error {
	var existing *OpenError
	if errors.As(err, &existing) {
		return err
	}
	return &OpenError{Path: path, Err: err}
}

// StatusError carries a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Reason     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s", e.StatusCode, e.Reason)
}
