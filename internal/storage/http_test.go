package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/duckmesh/tablestream/internal/session"
)

func TestHTTPOpenReturnsBodyBytes(t *testing.T) {
	payload := "id,name\n1,ada\n2,grace\n"
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		gotQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, payload)
	}))
	defer server.Close()

	transport := NewHTTPTransport("", BasicCredentials{})
	stream, err := transport.Open(context.Background(), session.Session{}, server.URL+"/people.csv?ignored=1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer stream.Close()
	body, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(body) != payload {
		t.Fatalf("body = %q, want %q", body, payload)
	}
	if gotQuery != "" {
		t.Fatalf("query = %q, want stripped", gotQuery)
	}
}

func TestHTTPOpenNon2xxSurfacesReasonPhrase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	transport := NewHTTPTransport("", BasicCredentials{})
	path := server.URL + "/missing.csv"
	stream, err := transport.Open(context.Background(), session.Session{}, path)
	if err == nil {
		_ = stream.Close()
		t.Fatal("expected error for 404")
	}
	if !errors.Is(err, ErrStreamOpen) {
		t.Fatalf("error = %v, want ErrStreamOpen", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want StatusError", err)
	}
	if statusErr.StatusCode != http.StatusNotFound || statusErr.Reason != "Not Found" {
		t.Fatalf("status error = %+v", statusErr)
	}
	if !strings.Contains(err.Error(), "Not Found") || !strings.Contains(err.Error(), path) {
		t.Fatalf("error message = %q", err.Error())
	}
}

func TestHTTPOpenConnectionErrorIsStreamOpenFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewHTTPTransport("", BasicCredentials{}).Open(context.Background(), session.Session{}, url+"/a.csv")
	if !errors.Is(err, ErrStreamOpen) {
		t.Fatalf("error = %v, want ErrStreamOpen", err)
	}
	var openErr *OpenError
	if !errors.As(err, &openErr) || openErr.Path != url+"/a.csv" {
		t.Fatalf("error = %#v", err)
	}
}

func TestHTTPOpenRewritesExternalAPIQuery(t *testing.T) {
	var got *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		_, _ = io.WriteString(w, "{}")
	}))
	defer server.Close()

	transport := NewHTTPTransport("/external/api", BasicCredentials{})
	sess := session.New("alice", map[string]string{session.PropertyJWT: "token-1"})
	stream, err := transport.Open(context.Background(), sess, server.URL+"/external/api/resources?a=1&date=2024-01-01&flag")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_ = stream.Close()

	if got.URL.Path != "/external/api/resources" {
		t.Fatalf("path = %q", got.URL.Path)
	}
	if got.URL.RawQuery != "a=1&Date=2024-01-01&flag=" {
		t.Fatalf("query = %q", got.URL.RawQuery)
	}
	query := got.URL.Query()
	if query.Get("a") != "1" || query.Get("Date") != "2024-01-01" || query.Has("date") {
		t.Fatalf("query = %v", query)
	}
	if values, ok := query["flag"]; !ok || len(values) != 1 || values[0] != "" {
		t.Fatalf("flag = %v", query["flag"])
	}
	if got.Header.Get(jwtHeader) != "token-1" {
		t.Fatalf("jwt header = %q", got.Header.Get(jwtHeader))
	}
	if got.Header.Get("Authorization") != "" {
		t.Fatal("basic auth must not be sent when a token is present")
	}
}

func TestHTTPOpenExternalAPIBasicAuth(t *testing.T) {
	var user, pass string
	var ok bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok = r.BasicAuth()
		_, _ = io.WriteString(w, "{}")
	}))
	defer server.Close()

	transport := NewHTTPTransport("/external/api", BasicCredentials{
		Username: "cfg-user",
		Password: "cfg-pass",
		Host:     strings.TrimPrefix(server.URL, "http://"),
	})

	sess := session.New("alice", map[string]string{
		session.PropertyBoondUsername: "sess-user",
		session.PropertyBoondPassword: "sess-pass",
	})
	stream, err := transport.Open(context.Background(), sess, server.URL+"/external/api/x")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_ = stream.Close()
	if !ok || user != "sess-user" || pass != "sess-pass" {
		t.Fatalf("basic auth = %v %q/%q", ok, user, pass)
	}

	stream, err = transport.Open(context.Background(), session.Session{}, server.URL+"/external/api/x")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_ = stream.Close()
	if !ok || user != "cfg-user" || pass != "cfg-pass" {
		t.Fatalf("basic auth = %v %q/%q", ok, user, pass)
	}
}

func TestHTTPOpenConfiguredCredentialsStayOnTheirHost(t *testing.T) {
	var header http.Header
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		_, _ = io.WriteString(w, "{}")
	}))
	defer foreign.Close()

	transport := NewHTTPTransport("", BasicCredentials{Username: "svc", Password: "s3cret", Host: "ui.boondmanager.example"})
	paths := []string{
		foreign.URL + "/steal?note=ui.boondmanager/api",
		foreign.URL + "/ui.boondmanager/api/export",
	}
	for _, path := range paths {
		header = nil
		stream, err := transport.Open(context.Background(), session.Session{}, path)
		if err != nil {
			t.Fatalf("Open(%q) error = %v", path, err)
		}
		_ = stream.Close()
		if header.Get("Authorization") != "" || header.Get(jwtHeader) != "" {
			t.Fatalf("Open(%q) leaked credentials: %v", path, header)
		}
	}

	unbound := NewHTTPTransport("/external/api", BasicCredentials{Username: "svc", Password: "s3cret"})
	stream, err := unbound.Open(context.Background(), session.Session{}, foreign.URL+"/external/api/x")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_ = stream.Close()
	if header.Get("Authorization") != "" {
		t.Fatalf("credentials without a host must not be sent: %v", header)
	}
}

func TestHTTPOpenMarkerInQueryIsNotExternalAPI(t *testing.T) {
	var gotQuery string
	var header http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		header = r.Header.Clone()
		_, _ = io.WriteString(w, "ok")
	}))
	defer server.Close()

	transport := NewHTTPTransport("/external/api", BasicCredentials{})
	sess := session.New("alice", map[string]string{session.PropertyJWT: "token-1"})
	stream, err := transport.Open(context.Background(), sess, server.URL+"/plain.csv?next=/external/api&date=1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_ = stream.Close()
	if gotQuery != "" {
		t.Fatalf("query = %q, want stripped", gotQuery)
	}
	if header.Get(jwtHeader) != "" {
		t.Fatalf("token sent for marker in query: %v", header)
	}
}

func TestHTTPOpenWithoutMarkerSendsNoCredentials(t *testing.T) {
	var header http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		_, _ = io.WriteString(w, "ok")
	}))
	defer server.Close()

	transport := NewHTTPTransport("/external/api", BasicCredentials{Username: "cfg-user", Password: "cfg-pass"})
	sess := session.New("alice", map[string]string{session.PropertyJWT: "token-1"})
	stream, err := transport.Open(context.Background(), sess, server.URL+"/plain.csv?date=1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_ = stream.Close()
	if header.Get(jwtHeader) != "" || header.Get("Authorization") != "" {
		t.Fatalf("unexpected credentials in %v", header)
	}
}

func TestRewriteExternalQuery(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "", want: ""},
		{raw: "a=1&date=2024-01-01", want: "a=1&Date=2024-01-01"},
		{raw: "flag", want: "flag="},
		{raw: "startdate=1&enddate=2", want: "startDate=1&endDate=2"},
		{raw: "Date=x&DATE=y", want: "Date=x&DATE=y"},
		{raw: "q=a=b", want: "q=a%3Db"},
		{raw: "a=1&&b=2", want: "a=1&b=2"},
		{raw: "name=John%20Doe", want: "name=John+Doe"},
		{raw: "bad=%zz", want: "bad=%25zz"},
	}
	for _, tt := range tests {
		if got := rewriteExternalQuery(tt.raw).Encode(); got != tt.want {
			t.Fatalf("rewriteExternalQuery(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}

	query := rewriteExternalQuery("flag&date=d")
	if value, ok := query.Get("flag"); !ok || value != "" {
		t.Fatalf("flag = %q, %v", value, ok)
	}
	if value, ok := query.Get("Date"); !ok || value != "d" {
		t.Fatalf("Date = %q, %v", value, ok)
	}
	if _, ok := query.Get("date"); ok {
		t.Fatal("date should have been renamed")
	}
}
