package format

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// delimitedReader handles csv, tsv and ssv. The first record is the header;
// every column is VARCHAR. Short records are padded with nil; a record wider
// than the header is a parse error.
type delimitedReader struct {
	name  string
	comma rune
}

func newDelimited(name string, comma rune) delimitedReader {
	return delimitedReader{name: name, comma: comma}
}

func (d delimitedReader) Fields(ctx context.Context, table string, open Opener) ([]Column, error) {
	var columns []Column
	err := openOnce(ctx, open, table, func(stream io.Reader) error {
		header, err := d.readHeader(table, d.newCSV(stream))
		if err != nil {
			return err
		}
		columns = header
		return nil
	})
	if err != nil {
		return nil, err
	}
	return columns, nil
}

func (d delimitedReader) Scan(ctx context.Context, table string, open Opener, fn func(Row) error) error {
	return openOnce(ctx, open, table, func(stream io.Reader) error {
		reader := d.newCSV(stream)
		header, err := d.readHeader(table, reader)
		if err != nil {
			return err
		}
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return parseErr(d.name, table, err)
			}
			if len(record) > len(header) {
				line, _ := reader.FieldPos(0)
				return parseErr(d.name, table, fmt.Errorf("line %d has %d fields, header has %d", line, len(record), len(header)))
			}
			row := make(Row, len(header))
			for i, cell := range record {
				row[i] = cell
			}
			if err := fn(row); err != nil {
				return err
			}
		}
	})
}

func (d delimitedReader) newCSV(stream io.Reader) *csv.Reader {
	reader := csv.NewReader(stream)
	reader.Comma = d.comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = false
	return reader
}

func (d delimitedReader) readHeader(table string, reader *csv.Reader) ([]Column, error) {
	record, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, parseErr(d.name, table, fmt.Errorf("missing header row"))
	}
	if err != nil {
		return nil, parseErr(d.name, table, err)
	}
	columns := make([]Column, 0, len(record))
	for i, name := range record {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		columns = append(columns, Column{Name: strings.TrimSpace(name), Type: TypeVarchar})
	}
	if err := uniqueColumns(d.name, table, columns); err != nil {
		return nil, err
	}
	return columns, nil
}
