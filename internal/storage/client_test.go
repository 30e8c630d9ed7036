package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/duckmesh/tablestream/internal/format"
	"github.com/duckmesh/tablestream/internal/session"
)

func TestSchemaNamesCreateReaders(t *testing.T) {
	client := NewClient(ClientOptions{})
	names := client.SchemaNames()
	if len(names) == 0 {
		t.Fatal("expected schema names")
	}
	for _, name := range names {
		reader, err := format.Create(name)
		if err != nil || reader == nil {
			t.Fatalf("Create(%q) = %v, %v", name, reader, err)
		}
	}
}

func TestTableNamesAlwaysEmpty(t *testing.T) {
	client := NewClient(ClientOptions{})
	for _, schema := range append(client.SchemaNames(), "unknown", "") {
		names := client.TableNames(schema)
		if names == nil || len(names) != 0 {
			t.Fatalf("TableNames(%q) = %#v, want empty", schema, names)
		}
	}
}

func TestGetTableReadsHeaderFromLocalFile(t *testing.T) {
	path := writeFile(t, "people.csv", "id,name\n1,ada\n")
	client := NewClient(ClientOptions{})

	table, err := client.GetTable(context.Background(), session.Session{}, "csv", path)
	if err != nil {
		t.Fatalf("GetTable() error = %v", err)
	}
	if table == nil {
		t.Fatal("GetTable() = nil, want table")
	}
	want := []format.Column{{Name: "id", Type: format.TypeVarchar}, {Name: "name", Type: format.TypeVarchar}}
	if table.Name != path || !reflect.DeepEqual(table.Columns, want) {
		t.Fatalf("table = %+v", table)
	}
}

func TestGetTableIsIdempotent(t *testing.T) {
	path := writeFile(t, "events.json", `{"id":1,"kind":"click","score":0.5}`+"\n")
	client := NewClient(ClientOptions{})

	first, err := client.GetTable(context.Background(), session.Session{}, "json", path)
	if err != nil || first == nil {
		t.Fatalf("GetTable() = %v, %v", first, err)
	}
	second, err := client.GetTable(context.Background(), session.Session{}, "json", path)
	if err != nil || second == nil {
		t.Fatalf("GetTable() = %v, %v", second, err)
	}
	if !reflect.DeepEqual(first.Columns, second.Columns) {
		t.Fatalf("columns differ: %+v vs %+v", first.Columns, second.Columns)
	}
}

func TestGetTableOpenFailureIsLoggedAndAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	var logs bytes.Buffer
	client := NewClient(ClientOptions{Logger: slog.New(slog.NewJSONHandler(&logs, nil))})
	tableName := server.URL + "/broken.csv"

	table, err := client.GetTable(context.Background(), session.Session{}, "csv", tableName)
	if err != nil {
		t.Fatalf("GetTable() error = %v, want nil", err)
	}
	if table != nil {
		t.Fatalf("GetTable() = %+v, want nil", table)
	}
	out := logs.String()
	if !strings.Contains(out, "failed to get table") || !strings.Contains(out, `"schema":"csv"`) || !strings.Contains(out, tableName) {
		t.Fatalf("log output = %s", out)
	}
}

func TestGetTableFailureLogOmitsQueryString(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	var logs bytes.Buffer
	client := NewClient(ClientOptions{Logger: slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))})
	tableName := server.URL + "/export.csv?access_token=tok-123&day=1"

	table, err := client.GetTable(context.Background(), session.Session{}, "csv", tableName)
	if err != nil || table != nil {
		t.Fatalf("GetTable() = %+v, %v; want absent", table, err)
	}
	out := logs.String()
	if strings.Contains(out, "tok-123") {
		t.Fatalf("query string leaked into log: %s", out)
	}
	if !strings.Contains(out, server.URL+"/export.csv?[redacted]") {
		t.Fatalf("log output = %s", out)
	}
}

func TestPathForLog(t *testing.T) {
	tests := map[string]string{
		"/data/a.csv":                     "/data/a.csv",
		"https://h/api/x?jwt=abc":         "https://h/api/x?[redacted]",
		"s3://bucket/key.csv?versionId=1": "s3://bucket/key.csv?[redacted]",
	}
	for in, want := range tests {
		if got := pathForLog(in); got != want {
			t.Fatalf("pathForLog(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetTableUnknownSchemaIsAnError(t *testing.T) {
	client := NewClient(ClientOptions{})
	_, err := client.GetTable(context.Background(), session.Session{}, "xlsx", "/tmp/a.xlsx")
	if !errors.Is(err, format.ErrUnsupportedSchema) {
		t.Fatalf("GetTable() error = %v, want ErrUnsupportedSchema", err)
	}
	if _, err := client.GetTable(context.Background(), session.Session{}, "csv", " "); err == nil {
		t.Fatal("expected error for empty table name")
	}
}

func TestDescribeTableSurfacesFailure(t *testing.T) {
	client := NewClient(ClientOptions{})
	_, err := client.DescribeTable(context.Background(), session.Session{}, "csv", filepath.Join(t.TempDir(), "missing.csv"))
	if !errors.Is(err, ErrStreamOpen) {
		t.Fatalf("DescribeTable() error = %v, want ErrStreamOpen", err)
	}
}

func TestReadRowsHonoursLimit(t *testing.T) {
	path := writeFile(t, "numbers.tsv", "n\n1\n2\n3\n")
	client := NewClient(ClientOptions{})

	table, rows, err := client.ReadRows(context.Background(), session.Session{}, "tsv", path, 2)
	if err != nil {
		t.Fatalf("ReadRows() error = %v", err)
	}
	if len(table.Columns) != 1 || table.Columns[0].Name != "n" {
		t.Fatalf("table = %+v", table)
	}
	if len(rows) != 2 || rows[0][0] != "1" || rows[1][0] != "2" {
		t.Fatalf("rows = %v", rows)
	}

	_, rows, err = client.ReadRows(context.Background(), session.Session{}, "tsv", path, 0)
	if err != nil {
		t.Fatalf("ReadRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %v", rows)
	}
}

func TestOpenStreamDispatchesByFamily(t *testing.T) {
	httpT := &recordingTransport{name: "http"}
	distT := &recordingTransport{name: "distributed"}
	localT := &recordingTransport{name: "local"}
	client := NewClient(ClientOptions{HTTP: httpT, Distributed: distT, Local: localT})
	sess := session.New("alice", map[string]string{"jwt": "t"})

	for _, path := range []string{"https://x/a", "s3://b/a", "hdfs://n/a", "/tmp/a", "file:/tmp/a"} {
		stream, err := client.OpenStream(context.Background(), sess, path)
		if err != nil {
			t.Fatalf("OpenStream(%q) error = %v", path, err)
		}
		_ = stream.Close()
	}
	if strings.Join(httpT.paths, ",") != "https://x/a" {
		t.Fatalf("http paths = %v", httpT.paths)
	}
	if strings.Join(distT.paths, ",") != "s3://b/a,hdfs://n/a" {
		t.Fatalf("distributed paths = %v", distT.paths)
	}
	if strings.Join(localT.paths, ",") != "/tmp/a,file:/tmp/a" {
		t.Fatalf("local paths = %v", localT.paths)
	}
	if httpT.principal != "alice" {
		t.Fatalf("session not passed through: %q", httpT.principal)
	}
}

func TestOpenStreamWrapsTransportErrors(t *testing.T) {
	cause := errors.New("boom")
	client := NewClient(ClientOptions{Local: &recordingTransport{err: cause}})
	_, err := client.OpenStream(context.Background(), session.Session{}, "/tmp/a")
	if !errors.Is(err, ErrStreamOpen) || !errors.Is(err, cause) {
		t.Fatalf("OpenStream() error = %v", err)
	}
}

type recordingTransport struct {
	name      string
	paths     []string
	principal string
	err       error
}

func (r *recordingTransport) Open(_ context.Context, sess session.Session, path string) (io.ReadCloser, error) {
	r.paths = append(r.paths, path)
	r.principal = sess.Principal()
	if r.err != nil {
		return nil, r.err
	}
	return io.NopCloser(strings.NewReader(r.name)), nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return filepath.ToSlash(path)
}
