package format

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/linkedin/goavro/v2"
)

// avroReader reads Avro object container files. Columns are the fields of the
// writer schema's top-level record.
type avroReader struct{}

type avroField struct {
	Name string          `json:"name"`
	Type json.RawMessage `json:"type"`
}

type avroRecord struct {
	Type   string      `json:"type"`
	Fields []avroField `json:"fields"`
}

func (avroReader) Fields(ctx context.Context, table string, open Opener) ([]Column, error) {
	var columns []Column
	err := openOnce(ctx, open, table, func(stream io.Reader) error {
		ocf, err := goavro.NewOCFReader(stream)
		if err != nil {
			return parseErr("avro", table, err)
		}
		columns, err = avroColumns(ocf.Codec().Schema())
		if err != nil {
			return parseErr("avro", table, err)
		}
		return uniqueColumns("avro", table, columns)
	})
	if err != nil {
		return nil, err
	}
	return columns, nil
}

func (avroReader) Scan(ctx context.Context, table string, open Opener, fn func(Row) error) error {
	return openOnce(ctx, open, table, func(stream io.Reader) error {
		ocf, err := goavro.NewOCFReader(stream)
		if err != nil {
			return parseErr("avro", table, err)
		}
		columns, err := avroColumns(ocf.Codec().Schema())
		if err != nil {
			return parseErr("avro", table, err)
		}
		for ocf.Scan() {
			if err := ctx.Err(); err != nil {
				return err
			}
			datum, err := ocf.Read()
			if err != nil {
				return parseErr("avro", table, err)
			}
			record, ok := datum.(map[string]any)
			if !ok {
				return parseErr("avro", table, fmt.Errorf("expected record datum, got %T", datum))
			}
			row := make(Row, len(columns))
			for i, column := range columns {
				row[i] = avroValue(record[column.Name], column.Type)
			}
			if err := fn(row); err != nil {
				return err
			}
		}
		if err := ocf.Err(); err != nil {
			return parseErr("avro", table, err)
		}
		return nil
	})
}

func avroColumns(schema string) ([]Column, error) {
	var record avroRecord
	if err := json.Unmarshal([]byte(schema), &record); err != nil {
		return nil, fmt.Errorf("decode writer schema: %w", err)
	}
	if record.Type != "record" {
		return nil, fmt.Errorf("top-level schema must be a record, got %q", record.Type)
	}
	columns := make([]Column, 0, len(record.Fields))
	for _, field := range record.Fields {
		columns = append(columns, Column{Name: field.Name, Type: avroType(field.Type)})
	}
	return columns, nil
}

func avroType(raw json.RawMessage) Type {
	var primitive string
	if err := json.Unmarshal(raw, &primitive); err == nil {
		return avroPrimitive(primitive, "")
	}

	var union []json.RawMessage
	if err := json.Unmarshal(raw, &union); err == nil {
		var branches []json.RawMessage
		for _, branch := range union {
			var name string
			if json.Unmarshal(branch, &name) == nil && name == "null" {
				continue
			}
			branches = append(branches, branch)
		}
		if len(branches) == 1 {
			return avroType(branches[0])
		}
		return TypeJSON
	}

	var complex struct {
		Type        string `json:"type"`
		LogicalType string `json:"logicalType"`
	}
	if err := json.Unmarshal(raw, &complex); err == nil {
		return avroPrimitive(complex.Type, complex.LogicalType)
	}
	return TypeJSON
}

func avroPrimitive(name, logical string) Type {
	switch logical {
	case "timestamp-millis", "timestamp-micros", "local-timestamp-millis", "local-timestamp-micros":
		return TypeTimestamp
	}
	switch name {
	case "string", "enum":
		return TypeVarchar
	case "int", "long":
		return TypeBigint
	case "float", "double":
		return TypeDouble
	case "boolean":
		return TypeBoolean
	case "bytes", "fixed":
		return TypeVarbinary
	default:
		return TypeJSON
	}
}

func avroValue(value any, typ Type) any {
	// Union datums decode as a single-entry map keyed by branch name.
	if union, ok := value.(map[string]any); ok && len(union) == 1 && typ != TypeJSON {
		for _, inner := range union {
			value = inner
		}
	}
	switch typed := value.(type) {
	case nil:
		return nil
	case int32:
		return int64(typed)
	case float32:
		return float64(typed)
	case time.Time:
		return typed.UTC()
	case map[string]any, []any:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return nil
		}
		return string(encoded)
	default:
		return typed
	}
}
