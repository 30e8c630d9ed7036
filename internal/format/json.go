package format

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// jsonReader reads newline-delimited JSON objects. Columns come from the keys
// of the first object, in document order.
type jsonReader struct{}

func (jsonReader) Fields(ctx context.Context, table string, open Opener) ([]Column, error) {
	var columns []Column
	err := openOnce(ctx, open, table, func(stream io.Reader) error {
		decoder := json.NewDecoder(stream)
		decoder.UseNumber()
		first, err := readObjectColumns(decoder)
		if errors.Is(err, io.EOF) {
			return parseErr("json", table, fmt.Errorf("no objects found"))
		}
		if err != nil {
			return parseErr("json", table, err)
		}
		if err := uniqueColumns("json", table, first); err != nil {
			return err
		}
		columns = first
		return nil
	})
	if err != nil {
		return nil, err
	}
	return columns, nil
}

func (r jsonReader) Scan(ctx context.Context, table string, open Opener, fn func(Row) error) error {
	columns, err := r.Fields(ctx, table, open)
	if err != nil {
		return err
	}
	return openOnce(ctx, open, table, func(stream io.Reader) error {
		decoder := json.NewDecoder(stream)
		decoder.UseNumber()
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			var object map[string]json.RawMessage
			if err := decoder.Decode(&object); errors.Is(err, io.EOF) {
				return nil
			} else if err != nil {
				return parseErr("json", table, err)
			}
			row := make(Row, len(columns))
			for i, column := range columns {
				raw, ok := object[column.Name]
				if !ok {
					continue
				}
				value, err := convertJSON(raw, column.Type)
				if err != nil {
					return parseErr("json", table, fmt.Errorf("column %q: %w", column.Name, err))
				}
				row[i] = value
			}
			if err := fn(row); err != nil {
				return err
			}
		}
	})
}

// readObjectColumns walks the tokens of the next object so key order is kept.
func readObjectColumns(decoder *json.Decoder) ([]Column, error) {
	token, err := decoder.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected JSON object, got %v", token)
	}
	columns := make([]Column, 0)
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyToken.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", keyToken)
		}
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			return nil, err
		}
		columns = append(columns, Column{Name: key, Type: jsonType(raw)})
	}
	if _, err := decoder.Token(); err != nil {
		return nil, err
	}
	return columns, nil
}

func jsonType(raw json.RawMessage) Type {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return TypeJSON
	}
	switch trimmed[0] {
	case '"':
		return TypeVarchar
	case 't', 'f':
		return TypeBoolean
	case '{', '[', 'n':
		return TypeJSON
	default:
		if strings.ContainsAny(string(trimmed), ".eE") {
			return TypeDouble
		}
		return TypeBigint
	}
}

func convertJSON(raw json.RawMessage, typ Type) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	switch typ {
	case TypeVarchar:
		var value string
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return string(trimmed), nil
		}
		return value, nil
	case TypeBoolean:
		var value bool
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return nil, err
		}
		return value, nil
	case TypeBigint:
		var value json.Number
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return nil, err
		}
		if parsed, err := value.Int64(); err == nil {
			return parsed, nil
		}
		return value.Float64()
	case TypeDouble:
		var value float64
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return nil, err
		}
		return value, nil
	default:
		return string(trimmed), nil
	}
}
