package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/duckmesh/tablestream/internal/format"
	"github.com/duckmesh/tablestream/internal/observability"
	"github.com/duckmesh/tablestream/internal/session"
)

var errRowLimit = errors.New("row limit reached")

// Client is the entry point for table lookups. It keeps no per-call state:
// every call resolves the reader and reopens streams from scratch.
type Client struct {
	logger      *slog.Logger
	http        Transport
	distributed Transport
	local       Transport
}

type ClientOptions struct {
	Logger      *slog.Logger
	HTTP        Transport
	Distributed Transport
	Local       Transport
}

func NewClient(opts ClientOptions) *Client {
	c := &Client{
		logger:      opts.Logger,
		http:        opts.HTTP,
		distributed: opts.Distributed,
		local:       opts.Local,
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.http == nil {
		c.http = NewHTTPTransport("", BasicCredentials{})
	}
	if c.distributed == nil {
		c.distributed = NewDistributedTransport()
	}
	if c.local == nil {
		c.local = LocalTransport{}
	}
	return c
}

func (c *Client) SchemaNames() []string {
	return format.Names()
}

// TableNames is always empty: tables cannot be enumerated and callers must
// already know the path they want.
func (c *Client) TableNames(string) []string {
	return []string{}
}

// GetTable resolves schema.table. An unsupported schema is returned as an
// error; any failure while reading the table is logged and reported as a
// missing table (nil, nil).
func (c *Client) GetTable(ctx context.Context, sess session.Session, schema, table string) (*Table, error) {
	reader, err := c.reader(schema, table)
	if err != nil {
		return nil, err
	}
	columns, err := reader.Fields(ctx, table, c.Opener(sess))
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get table",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.String("schema", schema),
			slog.String("table", pathForLog(table)),
			slog.String("error", strings.ReplaceAll(err.Error(), table, pathForLog(table))),
		)
		observability.ObserveTableResolution(schema, "failed")
		return nil, nil
	}
	observability.ObserveTableResolution(schema, "found")
	return &Table{Name: table, Columns: columns}, nil
}

// DescribeTable is GetTable without the not-found degradation.
func (c *Client) DescribeTable(ctx context.Context, sess session.Session, schema, table string) (Table, error) {
	reader, err := c.reader(schema, table)
	if err != nil {
		return Table{}, err
	}
	columns, err := reader.Fields(ctx, table, c.Opener(sess))
	if err != nil {
		return Table{}, fmt.Errorf("describe table %s.%s: %w", schema, table, err)
	}
	return Table{Name: table, Columns: columns}, nil
}

// ReadRows returns the table descriptor and at most limit rows. limit <= 0
// reads everything.
func (c *Client) ReadRows(ctx context.Context, sess session.Session, schema, table string, limit int) (Table, []format.Row, error) {
	described, err := c.DescribeTable(ctx, sess, schema, table)
	if err != nil {
		return Table{}, nil, err
	}
	reader, err := c.reader(schema, table)
	if err != nil {
		return Table{}, nil, err
	}
	rows := make([]format.Row, 0)
	err = reader.Scan(ctx, table, c.Opener(sess), func(row format.Row) error {
		rows = append(rows, row)
		if limit > 0 && len(rows) >= limit {
			return errRowLimit
		}
		return nil
	})
	if err != nil && !errors.Is(err, errRowLimit) {
		return Table{}, nil, fmt.Errorf("scan table %s.%s: %w", schema, table, err)
	}
	return described, rows, nil
}

// Opener binds sess to OpenStream for use by a format reader.
func (c *Client) Opener(sess session.Session) format.Opener {
	return func(ctx context.Context, path string) (io.ReadCloser, error) {
		return c.OpenStream(ctx, sess, path)
	}
}

// OpenStream classifies path and delegates to the matching transport.
func (c *Client) OpenStream(ctx context.Context, sess session.Session, path string) (io.ReadCloser, error) {
	family := Classify(path)
	var transport Transport
	switch family {
	case FamilyHTTP:
		transport = c.http
	case FamilyDistributed:
		transport = c.distributed
	default:
		transport = c.local
	}

	start := time.Now()
	stream, err := transport.Open(ctx, sess, path)
	observability.ObserveStreamOpen(string(family), time.Since(start), err)
	if err != nil {
		return nil, openErr(path, err)
	}
	c.logger.DebugContext(ctx, "stream opened",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("transport", string(family)),
		slog.String("path", pathForLog(path)),
	)
	return stream, nil
}

// pathForLog drops the query string, which may carry tokens.
func pathForLog(path string) string {
	if target, _, found := strings.Cut(path, "?"); found {
		return target + "?[redacted]"
	}
	return path
}

func (c *Client) reader(schema, table string) (format.Reader, error) {
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("table name is required")
	}
	return format.Create(schema)
}
