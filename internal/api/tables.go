package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/duckmesh/tablestream/internal/auth"
	"github.com/duckmesh/tablestream/internal/format"
	"github.com/duckmesh/tablestream/internal/session"
	"github.com/duckmesh/tablestream/internal/storage"
)

const (
	defaultRowLimit = 100
	maxRowLimit     = 10000
)

func handleListSchemas(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !tablesConfigured(deps, w, r) {
		return
	}
	if err := requireAnyRole(r, auth.RoleTableReader, auth.RoleTableAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schemas": deps.Tables.SchemaNames()})
}

func handleListTables(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !tablesConfigured(deps, w, r) {
		return
	}
	if err := requireAnyRole(r, auth.RoleTableReader, auth.RoleTableAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	schema := r.PathValue("schema")
	if !schemaAllowed(w, r, schema) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"schema": schema,
		"tables": deps.Tables.TableNames(schema),
	})
}

func handleGetTable(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !tablesConfigured(deps, w, r) {
		return
	}
	if err := requireAnyRole(r, auth.RoleTableReader, auth.RoleTableAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	schema := r.PathValue("schema")
	if !schemaAllowed(w, r, schema) {
		return
	}
	tableName, ok := tableNameParam(w, r)
	if !ok {
		return
	}

	table, err := deps.Tables.GetTable(r.Context(), sessionFromRequest(r), schema, tableName)
	if err != nil {
		writeTableError(w, r, schema, tableName, err)
		return
	}
	if table == nil {
		writeError(r.Context(), w, http.StatusNotFound, "TABLE_NOT_FOUND", "table was not found", false, map[string]any{
			"schema": schema,
			"table":  tableName,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"schema":  schema,
		"name":    table.Name,
		"columns": table.Columns,
	})
}

func handleReadRows(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !tablesConfigured(deps, w, r) {
		return
	}
	if err := requireAnyRole(r, auth.RoleTableReader, auth.RoleTableAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	schema := r.PathValue("schema")
	if !schemaAllowed(w, r, schema) {
		return
	}
	tableName, ok := tableNameParam(w, r)
	if !ok {
		return
	}
	limit, err := rowLimit(deps, r.URL.Query().Get("limit"))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", err.Error(), false, nil)
		return
	}

	table, rows, err := deps.Tables.ReadRows(r.Context(), sessionFromRequest(r), schema, tableName, limit)
	if err != nil {
		writeTableError(w, r, schema, tableName, err)
		return
	}
	if rows == nil {
		rows = []format.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"schema":    schema,
		"name":      table.Name,
		"columns":   table.Columns,
		"rows":      rows,
		"row_count": len(rows),
	})
}

func tablesConfigured(deps Dependencies, w http.ResponseWriter, r *http.Request) bool {
	if deps.Tables == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TABLES_NOT_CONFIGURED", "storage client is not configured", false, nil)
		return false
	}
	return true
}

func tableNameParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "TABLE_NAME_REQUIRED", "name query parameter is required", false, nil)
		return "", false
	}
	return name, true
}

func rowLimit(deps Dependencies, raw string) (int, error) {
	limit := deps.DefaultRowLimit
	if limit <= 0 {
		limit = defaultRowLimit
	}
	ceiling := deps.MaxRowLimit
	if ceiling <= 0 {
		ceiling = maxRowLimit
	}
	raw = strings.TrimSpace(raw)
	if raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return 0, fmt.Errorf("limit must be a positive integer")
		}
		limit = parsed
	}
	if limit > ceiling {
		limit = ceiling
	}
	return limit, nil
}

func writeTableError(w http.ResponseWriter, r *http.Request, schema, table string, err error) {
	extra := map[string]any{"schema": schema, "table": table, "details": err.Error()}
	switch {
	case errors.Is(err, format.ErrUnsupportedSchema):
		writeError(r.Context(), w, http.StatusBadRequest, "UNSUPPORTED_SCHEMA", fmt.Sprintf("schema %q is not supported", schema), false, extra)
	case errors.Is(err, storage.ErrStreamOpen):
		writeError(r.Context(), w, http.StatusBadGateway, "STREAM_OPEN_FAILED", "failed to open table stream", true, extra)
	case errors.Is(err, format.ErrParse):
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "PARSE_FAILED", "failed to parse table", false, extra)
	default:
		writeError(r.Context(), w, http.StatusInternalServerError, "TABLE_READ_FAILED", "failed to read table", true, extra)
	}
}

// sessionFromRequest scopes the session to the authenticated principal when
// there is one, otherwise to X-Session-User.
func sessionFromRequest(r *http.Request) session.Session {
	principal := ""
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		principal = identity.Principal
	}
	return session.FromHeaders(r.Header, principal)
}

func schemaAllowed(w http.ResponseWriter, r *http.Request, schema string) bool {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || identity.AllowsSchema(schema) {
		return true
	}
	writeError(r.Context(), w, http.StatusForbidden, "SCHEMA_FORBIDDEN", fmt.Sprintf("API key may not read schema %q", schema), false, map[string]any{
		"schema":  schema,
		"allowed": identity.Schemas,
	})
	return false
}

func requireAnyRole(r *http.Request, roles ...string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	for _, role := range roles {
		if identity.HasRole(role) {
			return nil
		}
	}
	return fmt.Errorf("missing required role, expected one of %q", strings.Join(roles, ","))
}
