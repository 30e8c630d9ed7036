package format

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

const parquetReadBatch = 128

// maxParquetBytes bounds the in-memory copy of one parquet object.
var maxParquetBytes int64 = 512 << 20

// parquetReader needs random access, so the stream is buffered in memory
// before the footer is read. Objects over maxParquetBytes fail to parse.
type parquetReader struct{}

func (parquetReader) Fields(ctx context.Context, table string, open Opener) ([]Column, error) {
	var columns []Column
	err := openParquet(ctx, table, open, func(file *parquet.File) error {
		columns = parquetColumns(file.Schema())
		return uniqueColumns("parquet", table, columns)
	})
	if err != nil {
		return nil, err
	}
	return columns, nil
}

func (parquetReader) Scan(ctx context.Context, table string, open Opener, fn func(Row) error) error {
	return openParquet(ctx, table, open, func(file *parquet.File) error {
		schema := file.Schema()
		columns := parquetColumns(schema)
		leafOwner := parquetLeafOwners(schema)

		for _, rowGroup := range file.RowGroups() {
			if err := scanRowGroup(ctx, table, rowGroup, columns, leafOwner, fn); err != nil {
				return err
			}
		}
		return nil
	})
}

func openParquet(ctx context.Context, table string, open Opener, fn func(*parquet.File) error) error {
	var data []byte
	err := openOnce(ctx, open, table, func(stream io.Reader) error {
		body, err := io.ReadAll(io.LimitReader(stream, maxParquetBytes+1))
		if err != nil {
			return parseErr("parquet", table, fmt.Errorf("read stream: %w", err))
		}
		if int64(len(body)) > maxParquetBytes {
			return parseErr("parquet", table, fmt.Errorf("object exceeds %d bytes", maxParquetBytes))
		}
		data = body
		return nil
	})
	if err != nil {
		return err
	}
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return parseErr("parquet", table, err)
	}
	return fn(file)
}

func scanRowGroup(ctx context.Context, table string, rowGroup parquet.RowGroup, columns []Column, leafOwner []int, fn func(Row) error) error {
	rows := rowGroup.Rows()
	defer func() { _ = rows.Close() }()

	buffer := make([]parquet.Row, parquetReadBatch)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := rows.ReadRows(buffer)
		for _, values := range buffer[:n] {
			if err := fn(parquetRow(values, columns, leafOwner)); err != nil {
				return err
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return parseErr("parquet", table, err)
		}
		if n == 0 {
			return nil
		}
	}
}

// parquetRow only materialises flat columns; nested and repeated columns are
// reported as JSON in the schema and left nil here.
func parquetRow(values parquet.Row, columns []Column, leafOwner []int) Row {
	row := make(Row, len(columns))
	for _, value := range values {
		leaf := value.Column()
		if leaf < 0 || leaf >= len(leafOwner) {
			continue
		}
		index := leafOwner[leaf]
		if columns[index].Type == TypeJSON || value.IsNull() {
			continue
		}
		row[index] = parquetValue(value, columns[index].Type)
	}
	return row
}

func parquetValue(value parquet.Value, typ Type) any {
	switch value.Kind() {
	case parquet.Boolean:
		return value.Boolean()
	case parquet.Int32:
		return int64(value.Int32())
	case parquet.Int64:
		return value.Int64()
	case parquet.Int96:
		return value.Int96().String()
	case parquet.Float:
		return float64(value.Float())
	case parquet.Double:
		return value.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		if typ == TypeVarbinary {
			return append([]byte(nil), value.ByteArray()...)
		}
		return string(value.ByteArray())
	default:
		return nil
	}
}

func parquetColumns(schema *parquet.Schema) []Column {
	fields := schema.Fields()
	columns := make([]Column, 0, len(fields))
	for _, field := range fields {
		columns = append(columns, Column{Name: field.Name(), Type: parquetType(field)})
	}
	return columns
}

// parquetLeafOwners maps every leaf column index to its top-level field.
func parquetLeafOwners(schema *parquet.Schema) []int {
	owners := make([]int, 0)
	for index, field := range schema.Fields() {
		for i := 0; i < countLeaves(field); i++ {
			owners = append(owners, index)
		}
	}
	return owners
}

func countLeaves(node parquet.Node) int {
	if node.Leaf() {
		return 1
	}
	total := 0
	for _, child := range node.Fields() {
		total += countLeaves(child)
	}
	return total
}

func parquetType(node parquet.Node) Type {
	if !node.Leaf() || node.Repeated() {
		return TypeJSON
	}
	typ := node.Type()
	logical := typ.LogicalType()
	switch typ.Kind() {
	case parquet.Boolean:
		return TypeBoolean
	case parquet.Int32, parquet.Int64:
		if logical != nil && logical.Timestamp != nil {
			return TypeTimestamp
		}
		return TypeBigint
	case parquet.Int96:
		return TypeTimestamp
	case parquet.Float, parquet.Double:
		return TypeDouble
	case parquet.ByteArray, parquet.FixedLenByteArray:
		if logical != nil && (logical.UTF8 != nil || logical.Enum != nil || logical.UUID != nil) {
			return TypeVarchar
		}
		if logical != nil && logical.Json != nil {
			return TypeVarchar
		}
		return TypeVarbinary
	default:
		return TypeVarchar
	}
}
