package tablestreamctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	User       string
	JWT        string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("tablestreamctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "tablestream API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	user := fs.String("user", defaults.User, "session principal (used when auth is disabled)")
	jwt := fs.String("jwt", defaults.JWT, "token forwarded to the external HTTP API")
	limit := fs.Int("limit", 0, "maximum rows for the rows command (0 uses the server default)")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 30s)")
	properties := map[string]string{}
	fs.Func("session", "extra session property name=value (repeatable)", func(raw string) error {
		name, value, ok := strings.Cut(raw, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return fmt.Errorf("expected name=value, got %q", raw)
		}
		properties[strings.TrimSpace(name)] = value
		return nil
	})

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	rest := fs.Args()[1:]
	path := ""
	query := url.Values{}
	switch command {
	case "health":
		path = "/v1/health"
	case "ready":
		path = "/v1/ready"
	case "schemas":
		path = "/v1/schemas"
	case "tables":
		if len(rest) != 1 {
			return usageError(stderr, "tables requires <schema>")
		}
		path = "/v1/schemas/" + url.PathEscape(rest[0]) + "/tables"
	case "describe", "rows":
		if len(rest) != 2 {
			return usageError(stderr, command+" requires <schema> <name>")
		}
		resource := "table"
		if command == "rows" {
			resource = "rows"
			if *limit > 0 {
				query.Set("limit", strconv.Itoa(*limit))
			}
		}
		path = "/v1/schemas/" + url.PathEscape(rest[0]) + "/" + resource
		query.Set("name", rest[1])
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	if strings.TrimSpace(*jwt) != "" {
		properties["Jwt"] = strings.TrimSpace(*jwt)
	}
	code, responseBody, err := doRequest(ctx, client, endpoint, *apiKey, *user, properties)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func doRequest(ctx context.Context, client *http.Client, url, apiKey, user string, properties map[string]string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}
	if strings.TrimSpace(user) != "" {
		req.Header.Set("X-Session-User", strings.TrimSpace(user))
	}
	for name, value := range properties {
		req.Header.Set("X-Session-"+name, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func usageError(w io.Writer, message string) int {
	_, _ = fmt.Fprintf(w, "%s\n\n", message)
	writeUsage(w)
	return 2
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: tablestreamctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                   GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                    GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  schemas                  GET /v1/schemas")
	_, _ = fmt.Fprintln(w, "  tables <schema>          GET /v1/schemas/{schema}/tables")
	_, _ = fmt.Fprintln(w, "  describe <schema> <name> GET /v1/schemas/{schema}/table?name=")
	_, _ = fmt.Fprintln(w, "  rows <schema> <name>     GET /v1/schemas/{schema}/rows?name=")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
