package handlers

import (
	"encoding/csv"
	"encoding/json"
	"net/http"

	"github.com/twpayne/go-geom/encoding/geojson"
)

// ExportHandler streams the filtered rows as CSV or GeoJSON
type ExportHandler struct {
	Table  *Table
	Config *Config
	api    *APIHandler
}

// NewExportHandler creates an export handler sharing the API error handling
func NewExportHandler(api *APIHandler) *ExportHandler {
	return &ExportHandler{Table: api.Table, Config: api.Config, api: api}
}

// ExportCSV writes every row matching the query, ignoring pagination
func (h *ExportHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	if !h.Config.ExportEnabled {
		http.Error(w, "Export feature disabled", http.StatusForbidden)
		return
	}

	idx, err := h.Table.Select(ParseQuery(r.URL.Query(), h.Config.PerPage))
	if err != nil {
		h.api.queryError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="rej_participation.csv"`)

	cw := csv.NewWriter(w)
	header := make([]string, len(h.Table.Columns))
	for i, c := range h.Table.Columns {
		header[i] = c.ID
	}
	cw.Write(header)
	for _, i := range idx {
		record := make([]string, len(header))
		for j, col := range header {
			record[j] = cellText(h.Table.Rows[i][col])
		}
		cw.Write(record)
	}
	cw.Flush()
}

// ExportGeoJSON writes the features matching the query with their geometry
func (h *ExportHandler) ExportGeoJSON(w http.ResponseWriter, r *http.Request) {
	if !h.Config.ExportEnabled {
		http.Error(w, "Export feature disabled", http.StatusForbidden)
		return
	}

	idx, err := h.Table.Select(ParseQuery(r.URL.Query(), h.Config.PerPage))
	if err != nil {
		h.api.queryError(w, err)
		return
	}

	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(idx))}
	for _, i := range idx {
		fc.Features = append(fc.Features, h.Table.dataset.Features[i])
	}

	w.Header().Set("Content-Type", "application/geo+json")
	json.NewEncoder(w).Encode(&fc)
}
