package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

type generateRequest struct {
	DBName string `json:"db_name"`
	Prompt string `json:"prompt"`
}

func handleGenerateSQL(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Synthesizer == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "GENERATION_NOT_CONFIGURED", "sql generation is not configured", false)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid generation request body: "+err.Error(), false)
		return
	}
	req.DBName = strings.TrimSpace(req.DBName)
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.DBName == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "db_name is required", false)
		return
	}
	if req.Prompt == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "prompt is required", false)
		return
	}

	statement, err := deps.Synthesizer.Synthesize(r.Context(), req.DBName, req.Prompt)
	if err != nil {
		writeClassifiedError(r.Context(), deps.Logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"generated_sql": statement.Text})
}
