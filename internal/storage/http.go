package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/duckmesh/tablestream/internal/session"
)

const (
	DefaultExternalAPIMarker = "ui.boondmanager/api"

	jwtHeader = "X-Jwt-Internal-Boondmanager"
)

// BasicCredentials are configured service credentials. They are only ever
// sent to Host; an empty Host means they are never sent.
type BasicCredentials struct {
	Username string
	Password string
	Host     string
}

func (c BasicCredentials) empty() bool {
	return c.Username == "" && c.Password == ""
}

// HTTPTransport issues one GET per Open. URLs whose host and path contain
// Marker get their query rewritten and an auth header attached.
type HTTPTransport struct {
	// NewClient builds the client for a single call; nil means a fresh
	// default client per call.
	NewClient   func() *http.Client
	Marker      string
	Credentials BasicCredentials
}

func NewHTTPTransport(marker string, credentials BasicCredentials) *HTTPTransport {
	if strings.TrimSpace(marker) == "" {
		marker = DefaultExternalAPIMarker
	}
	return &HTTPTransport{Marker: marker, Credentials: credentials}
}

func (t *HTTPTransport) Open(ctx context.Context, sess session.Session, path string) (io.ReadCloser, error) {
	target, rawQuery, _ := strings.Cut(path, "?")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, openErr(path, fmt.Errorf("build request: %w", err))
	}

	if marker := t.marker(); strings.Contains(target, marker) {
		req.URL.RawQuery = rewriteExternalQuery(rawQuery).Encode()
		t.authorize(req, sess)
	}

	resp, err := t.client().Do(req)
	if err != nil {
		return nil, openErr(path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, openErr(path, &StatusError{StatusCode: resp.StatusCode, Reason: reasonPhrase(resp)})
	}
	return resp.Body, nil
}

func (t *HTTPTransport) marker() string {
	if t.Marker == "" {
		return DefaultExternalAPIMarker
	}
	return t.Marker
}

func (t *HTTPTransport) client() *http.Client {
	if t.NewClient != nil {
		if c := t.NewClient(); c != nil {
			return c
		}
	}
	return &http.Client{}
}

// authorize prefers the session token, then session basic credentials. The
// configured credentials are a last resort and only for their own host.
func (t *HTTPTransport) authorize(req *http.Request, sess session.Session) {
	if token := sess.StringProperty(session.PropertyJWT); token != "" {
		req.Header.Set(jwtHeader, token)
		return
	}
	creds := BasicCredentials{
		Username: sess.StringProperty(session.PropertyBoondUsername),
		Password: sess.StringProperty(session.PropertyBoondPassword),
	}
	if creds.empty() && t.Credentials.allows(req.URL) {
		creds = t.Credentials
	}
	if !creds.empty() {
		req.SetBasicAuth(creds.Username, creds.Password)
	}
}

func (c BasicCredentials) allows(target *url.URL) bool {
	host := strings.TrimSpace(c.Host)
	return host != "" && target != nil && strings.EqualFold(target.Host, host)
}

type queryParam struct {
	key   string
	value string
}

type orderedQuery []queryParam

func (q orderedQuery) Encode() string {
	parts := make([]string, 0, len(q))
	for _, param := range q {
		parts = append(parts, url.QueryEscape(param.key)+"="+url.QueryEscape(param.value))
	}
	return strings.Join(parts, "&")
}

func (q orderedQuery) Get(key string) (string, bool) {
	for _, param := range q {
		if param.key == key {
			return param.value, true
		}
	}
	return "", false
}

// rewriteExternalQuery splits on "&" then the first "=". Every "date" in a key
// becomes "Date"; a segment without "=" keeps an empty value. Values that
// fail to unescape are kept verbatim.
func rewriteExternalQuery(raw string) orderedQuery {
	params := orderedQuery{}
	if raw == "" {
		return params
	}
	for _, segment := range strings.Split(raw, "&") {
		if segment == "" {
			continue
		}
		key, value, _ := strings.Cut(segment, "=")
		params = append(params, queryParam{
			key:   strings.ReplaceAll(unescapeQuery(key), "date", "Date"),
			value: unescapeQuery(value),
		})
	}
	return params
}

func unescapeQuery(value string) string {
	unescaped, err := url.QueryUnescape(value)
	if err != nil {
		return value
	}
	return unescaped
}

func reasonPhrase(resp *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}
