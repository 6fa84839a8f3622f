package handlers

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"cell": cellText,
}).ParseFS(templateFS, "templates/index.html"))

// PageHandler renders the HTML table view
type PageHandler struct {
	Table  *Table
	Config *Config
	Title  string
}

type pageView struct {
	Title   string
	Query   Query
	Page    *Page
	Error   string
	Prev    string
	Next    string
	SortURL map[string]string
	Filters map[string]string

	ExportCSV     string
	ExportGeoJSON string
}

// Index renders one page of the table. Filters, sorting and paging are plain
// query parameters so every view is a bookmarkable URL.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q := ParseQuery(values, h.Config.PerPage)

	view := pageView{Title: h.Title, Query: q, Filters: q.Filters}
	if h.Config.ExportEnabled {
		view.ExportCSV = "/api/export.csv?" + r.URL.RawQuery
		view.ExportGeoJSON = "/api/export.geojson?" + r.URL.RawQuery
	}
	page, err := h.Table.Query(q)
	status := http.StatusOK
	if err != nil {
		if !errors.Is(err, ErrBadQuery) {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		status = http.StatusBadRequest
		view.Error = err.Error()
		page, _ = h.Table.Query(Query{Page: 1, PerPage: q.PerPage})
	}
	view.Page = page

	if page.Page > 1 {
		view.Prev = withParam(values, "page", strconv.Itoa(page.Page-1))
	}
	if page.Page < page.Pages {
		view.Next = withParam(values, "page", strconv.Itoa(page.Page+1))
	}

	view.SortURL = make(map[string]string, len(h.Table.Columns))
	for _, c := range h.Table.Columns {
		dir := "asc"
		if q.Sort == c.ID && !q.Desc {
			dir = "desc"
		}
		view.SortURL[c.ID] = withParam(values, "sort", c.ID, "dir", dir)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	pageTemplate.Execute(w, view)
}

// withParam returns "?" plus values with the key/value pairs replaced. The
// page resets to 1 whenever anything other than the page changes.
func withParam(values url.Values, kv ...string) string {
	next := make(url.Values, len(values)+len(kv)/2)
	for k, v := range values {
		next[k] = append([]string(nil), v...)
	}
	resetPage := false
	for i := 0; i+1 < len(kv); i += 2 {
		next.Set(kv[i], kv[i+1])
		resetPage = resetPage || kv[i] != "page"
	}
	if resetPage {
		next.Del("page")
	}
	return "?" + next.Encode()
}
