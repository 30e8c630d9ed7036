// Package format holds the pluggable readers that turn a byte stream into
// column metadata and rows. Readers never construct transports: every byte
// they see comes through the Opener the storage client hands them.
package format

import (
	"context"
	"errors"
	"fmt"
	"io"
)

type Type string

const (
	TypeVarchar   Type = "VARCHAR"
	TypeBigint    Type = "BIGINT"
	TypeDouble    Type = "DOUBLE"
	TypeBoolean   Type = "BOOLEAN"
	TypeTimestamp Type = "TIMESTAMP"
	TypeVarbinary Type = "VARBINARY"
	TypeJSON      Type = "JSON"
)

type Column struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

type Row []any

// Opener resolves a path into an open stream. The caller of Opener owns the
// returned stream and must close it.
type Opener func(ctx context.Context, path string) (io.ReadCloser, error)

type Reader interface {
	// Fields discovers the ordered column list for table.
	Fields(ctx context.Context, table string, open Opener) ([]Column, error)
	// Scan calls fn for every row in table. Returning an error from fn stops
	// the scan and that error is returned as is.
	Scan(ctx context.Context, table string, open Opener, fn func(Row) error) error
}

var (
	ErrUnsupportedSchema = errors.New("unsupported schema")
	ErrParse             = errors.New("format parse failed")
)

type UnsupportedSchemaError struct {
	Schema string
}

func (e *UnsupportedSchemaError) Error() string {
	return fmt.Sprintf("unsupported schema %q", e.Schema)
}

func (e *UnsupportedSchemaError) Is(target error) bool {
	return target == ErrUnsupportedSchema
}

type ParseError struct {
	Format string
	Table  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s table %q: %v", e.Format, e.Table, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

func parseErr(format, table string, err error) error {
	return &ParseError{Format: format, Table: table, Err: err}
}

// uniqueColumns rejects empty and duplicate names.
func uniqueColumns(format, table string, columns []Column) error {
	seen := make(map[string]struct{}, len(columns))
	for i, column := range columns {
		if column.Name == "" {
			return parseErr(format, table, fmt.Errorf("column %d has an empty name", i+1))
		}
		if _, dup := seen[column.Name]; dup {
			return parseErr(format, table, fmt.Errorf("duplicate column name %q", column.Name))
		}
		seen[column.Name] = struct{}{}
	}
	return nil
}

// openOnce opens path and guarantees the stream is closed when fn returns.
func openOnce(ctx context.Context, open Opener, path string, fn func(io.Reader) error) error {
	if open == nil {
		return fmt.Errorf("opener is required")
	}
	stream, err := open(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()
	return fn(stream)
}
