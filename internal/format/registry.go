package format

import (
	"fmt"
	"sort"
	"strings"
)

var factories = map[string]func() Reader{}

func register(name string, factory func() Reader) {
	name = strings.TrimSpace(name)
	if name == "" || factory == nil {
		panic("format: register requires a name and a factory")
	}
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("format: %q registered twice", name))
	}
	if factory() == nil {
		panic(fmt.Sprintf("format: factory for %q returned nil", name))
	}
	factories[name] = factory
}

func init() {
	register("csv", func() Reader { return newDelimited("csv", ',') })
	register("tsv", func() Reader { return newDelimited("tsv", '\t') })
	register("ssv", func() Reader { return newDelimited("ssv", ';') })
	register("txt", func() Reader { return textReader{} })
	register("raw", func() Reader { return rawReader{} })
	register("json", func() Reader { return jsonReader{} })
	register("parquet", func() Reader { return parquetReader{} })
	register("avro", func() Reader { return avroReader{} })
}

// Names lists the supported schema tags in sorted order.
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create returns the reader registered for schema. Lookup is exact; an
// unknown schema never falls back to a default format.
func Create(schema string) (Reader, error) {
	factory, ok := factories[schema]
	if !ok {
		return nil, &UnsupportedSchemaError{Schema: schema}
	}
	return factory(), nil
}
