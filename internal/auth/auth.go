package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"slices"
	"strings"
)

const (
	RoleTableReader = "table_reader"
	RoleTableAdmin  = "table_admin"
)

// Identity is the caller behind an API key. Principal scopes file system
// access for the request. An empty Schemas list allows every schema.
type Identity struct {
	Principal string
	Roles     []string
	Schemas   []string
}

func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

// AllowsSchema reports whether the key may read tables through schema.
// Admins are never restricted.
func (i Identity) AllowsSchema(schema string) bool {
	if len(i.Schemas) == 0 || i.HasRole(RoleTableAdmin) {
		return true
	}
	return slices.Contains(i.Schemas, strings.ToLower(schema))
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

type staticKey struct {
	key      []byte
	identity Identity
}

// StaticAPIKeyValidator checks keys from a
// key:principal:role|role[:schema|schema] list.
type StaticAPIKeyValidator struct {
	keys []staticKey
}

func NewStaticAPIKeyValidator(spec string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return validator, nil
	}

	seen := map[string]struct{}{}
	for _, entry := range strings.Split(spec, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 && len(parts) != 4 {
			return nil, fmt.Errorf("invalid static key entry %q: expected key:principal:role|role[:schema|schema]", entry)
		}
		key := strings.TrimSpace(parts[0])
		principal := strings.TrimSpace(parts[1])
		if key == "" || principal == "" {
			return nil, fmt.Errorf("invalid static key entry %q: empty key/principal", entry)
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("invalid static key entry %q: duplicate key", entry)
		}
		seen[key] = struct{}{}

		roles := splitList(parts[2], false)
		if len(roles) == 0 {
			return nil, fmt.Errorf("invalid static key entry %q: at least one role is required", entry)
		}
		var schemas []string
		if len(parts) == 4 {
			schemas = splitList(parts[3], true)
			if len(schemas) == 0 {
				return nil, fmt.Errorf("invalid static key entry %q: empty schema list", entry)
			}
		}
		validator.keys = append(validator.keys, staticKey{
			key:      []byte(key),
			identity: Identity{Principal: principal, Roles: roles, Schemas: schemas},
		})
	}

	return validator, nil
}

// Validate compares against every configured key in constant time.
func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	candidate := []byte(apiKey)
	var (
		found   Identity
		matched bool
	)
	for _, entry := range v.keys {
		if subtle.ConstantTimeCompare(entry.key, candidate) == 1 {
			found = entry.identity
			matched = true
		}
	}
	return found, matched
}

func splitList(raw string, lower bool) []string {
	var out []string
	for _, item := range strings.Split(strings.TrimSpace(raw), "|") {
		item = strings.TrimSpace(item)
		if lower {
			item = strings.ToLower(item)
		}
		if item == "" || slices.Contains(out, item) {
			continue
		}
		out = append(out, item)
	}
	slices.Sort(out)
	return out
}
