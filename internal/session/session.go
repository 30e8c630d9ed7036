// Package session carries the per-request properties a caller hands to the
// storage client. A Session is never mutated after construction.
package session

import (
	"net/http"
	"sort"
	"strings"
)

const (
	PropertyJWT           = "jwt"
	PropertyBoondUsername = "boond_username"
	PropertyBoondPassword = "boond_password"

	headerPrefix = "X-Session-"
	userHeader   = "X-Session-User"
)

type Session struct {
	principal  string
	properties map[string]string
}

func New(principal string, properties map[string]string) Session {
	copied := make(map[string]string, len(properties))
	for key, value := range properties {
		copied[normalizeName(key)] = value
	}
	return Session{principal: strings.TrimSpace(principal), properties: copied}
}

// Principal is the security identity file system handles are scoped to.
func (s Session) Principal() string {
	return s.principal
}

func (s Session) Property(name string) (string, bool) {
	value, ok := s.properties[normalizeName(name)]
	return value, ok
}

// StringProperty returns the trimmed property value or "" when absent.
func (s Session) StringProperty(name string) string {
	value, _ := s.Property(name)
	return strings.TrimSpace(value)
}

func (s Session) PropertyNames() []string {
	names := make([]string, 0, len(s.properties))
	for name := range s.properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FromHeaders collects every X-Session-<Name> header as property <name>.
// X-Session-User is not a property; it is only used as the principal when
// fallbackPrincipal is empty.
func FromHeaders(header http.Header, fallbackPrincipal string) Session {
	properties := map[string]string{}
	principal := strings.TrimSpace(fallbackPrincipal)
	for key, values := range header {
		canonical := http.CanonicalHeaderKey(key)
		if !strings.HasPrefix(canonical, headerPrefix) || len(values) == 0 {
			continue
		}
		if canonical == userHeader {
			if principal == "" {
				principal = strings.TrimSpace(values[0])
			}
			continue
		}
		name := strings.TrimPrefix(canonical, headerPrefix)
		if name == "" {
			continue
		}
		properties[name] = values[0]
	}
	return New(principal, properties)
}

func normalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
}
