package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
)

// Config holds handler settings shared across endpoints
type Config struct {
	PerPage       int
	ExportEnabled bool
}

// APIHandler serves the JSON table endpoints
type APIHandler struct {
	Table  *Table
	Config *Config
	Logger zerolog.Logger
}

// ColumnsResponse lists the table columns
type ColumnsResponse struct {
	Columns []Column `json:"columns"`
	Total   int      `json:"total"`
}

// GetColumns returns column names and types
func (h *APIHandler) GetColumns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ColumnsResponse{Columns: h.Table.Columns, Total: len(h.Table.Rows)})
}

// ListRows returns a filtered, sorted and paginated page of rows
func (h *APIHandler) ListRows(w http.ResponseWriter, r *http.Request) {
	q := ParseQuery(r.URL.Query(), h.Config.PerPage)
	page, err := h.Table.Query(q)
	if err != nil {
		h.queryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *APIHandler) queryError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrBadQuery) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.Logger.Error().Err(err).Msg("Query failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
