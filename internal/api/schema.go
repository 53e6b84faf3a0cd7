package api

import (
	"net/http"
	"strings"

	"github.com/tsqlgen/tsqlgen/internal/nl2sql"
)

func handleGetSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schemas == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema inspection is not configured", false)
		return
	}
	database := strings.TrimSpace(r.PathValue("database"))
	if database == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "database is required", false)
		return
	}

	snapshot, err := deps.Schemas.FetchSchema(r.Context(), database)
	if err != nil {
		writeClassifiedError(r.Context(), deps.Logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"database": snapshot.Database,
		"partial":  snapshot.Partial,
		"tables":   snapshot.Tables,
		"rendered": nl2sql.RenderSchema(snapshot),
	})
}
