package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/duckmesh/tablestream/internal/session"
)

const filePrefix = "file:"

type LocalTransport struct{}

func (LocalTransport) Open(_ context.Context, _ session.Session, path string) (io.ReadCloser, error) {
	uri := path
	if !strings.HasPrefix(uri, filePrefix) {
		uri = filePrefix + uri
	}
	name, err := localFileName(uri)
	if err != nil {
		return nil, openErr(path, err)
	}
	file, err := os.Open(name)
	if err != nil {
		return nil, openErr(path, err)
	}
	return file, nil
}

// localFileName accepts file:/abs, file:///abs, file://localhost/abs and the
// opaque file:relative form.
func localFileName(uri string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("malformed file uri: %w", err)
	}
	if parsed.Host != "" && parsed.Host != "localhost" {
		return "", fmt.Errorf("file uri host %q is not local", parsed.Host)
	}
	name := parsed.Path
	if parsed.Opaque != "" {
		name, err = url.PathUnescape(parsed.Opaque)
		if err != nil {
			return "", fmt.Errorf("malformed file uri: %w", err)
		}
	}
	if name == "" {
		return "", fmt.Errorf("file uri has no path")
	}
	return filepath.FromSlash(name), nil
}
