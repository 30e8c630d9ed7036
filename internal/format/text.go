package format

import (
	"bufio"
	"context"
	"io"
	"strings"
)

const (
	textColumn = "value"
	rawColumn  = "data"

	maxLineBytes = 16 << 20
)

// textReader exposes one VARCHAR row per line. Schema discovery needs no bytes.
type textReader struct{}

func (textReader) Fields(context.Context, string, Opener) ([]Column, error) {
	return []Column{{Name: textColumn, Type: TypeVarchar}}, nil
}

func (textReader) Scan(ctx context.Context, table string, open Opener, fn func(Row) error) error {
	return openOnce(ctx, open, table, func(stream io.Reader) error {
		scanner := bufio.NewScanner(stream)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(Row{strings.TrimSuffix(scanner.Text(), "\r")}); err != nil {
				return err
			}
		}
		if err := scanner.Err(); err != nil {
			return parseErr("txt", table, err)
		}
		return nil
	})
}

// rawReader exposes the whole stream as a single VARCHAR cell.
type rawReader struct{}

func (rawReader) Fields(context.Context, string, Opener) ([]Column, error) {
	return []Column{{Name: rawColumn, Type: TypeVarchar}}, nil
}

func (rawReader) Scan(ctx context.Context, table string, open Opener, fn func(Row) error) error {
	return openOnce(ctx, open, table, func(stream io.Reader) error {
		body, err := io.ReadAll(stream)
		if err != nil {
			return parseErr("raw", table, err)
		}
		return fn(Row{string(body)})
	})
}
