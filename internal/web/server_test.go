package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/opendatama/rejtracts/internal/config"
	"github.com/opendatama/rejtracts/internal/rej"
	"github.com/opendatama/rejtracts/internal/web/handlers"
)

const fixture = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[-71.4,42.5]},"properties":{"GeoID":"25017360100","REJ__flag_":1,"town":"Acton","electric_participation_rate_avg":29.388}},
 {"type":"Feature","geometry":null,"properties":{"GeoID":"25001010100","REJ__flag_":0,"town":null,"electric_participation_rate_avg":null}}
]}`

func newTestServer(t *testing.T, apiKey string) *httptest.Server {
	t.Helper()
	ds, err := rej.Parse([]byte(fixture), "GeoID")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Auth.APIKey = apiKey
	srv := httptest.NewServer(NewServer(cfg, ds, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestColumnsEndpoint(t *testing.T) {
	srv := newTestServer(t, "")

	resp := get(t, srv.URL+"/api/columns", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var body handlers.ColumnsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.Total)
	require.Len(t, body.Columns, 6)
	assert.Equal(t, "GeoID", body.Columns[0].ID)
	assert.Equal(t, handlers.TypeNumeric, body.Columns[1].Type)
}

func TestRowsEndpoint(t *testing.T) {
	srv := newTestServer(t, "")

	resp := get(t, srv.URL+"/api/rows?q=ACTON", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page handlers.Page
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Equal(t, "1 rows (filtered)", page.Label)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "25017360100", page.Rows[0]["GeoID"])
	assert.Equal(t, 50, page.PerPage)
}

func TestRowsEndpointPagePastEnd(t *testing.T) {
	srv := newTestServer(t, "")

	resp := get(t, srv.URL+"/api/rows?page=9223372036854775807", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page handlers.Page
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Empty(t, page.Rows)
	assert.Equal(t, 2, page.Matched)

	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/?page=9223372036854775807", nil).StatusCode)
}

func TestRowsEndpointBadQuery(t *testing.T) {
	srv := newTestServer(t, "")
	resp := get(t, srv.URL+"/api/rows?sort=missing", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIKey(t *testing.T) {
	srv := newTestServer(t, "secret")

	assert.Equal(t, http.StatusUnauthorized, get(t, srv.URL+"/api/rows", nil).StatusCode)
	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/api/rows", http.Header{"X-Api-Key": {"secret"}}).StatusCode)
	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/api/rows?api_key=secret", nil).StatusCode)

	// The HTML page is not behind the key
	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/", nil).StatusCode)
}

func TestPreflight(t *testing.T) {
	srv := newTestServer(t, "secret")

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/rows", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "X-API-Key")
}

func TestIndexPage(t *testing.T) {
	srv := newTestServer(t, "")

	resp := get(t, srv.URL+"/?sort=GeoID&f.town=act", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	html := string(body)
	assert.Contains(t, html, "1 rows (filtered)")
	assert.Contains(t, html, "<td>Acton</td>")
	assert.Contains(t, html, "Download CSV")
	assert.NotContains(t, html, "<td>25001010100</td>")
}

func TestIndexPageBadFilter(t *testing.T) {
	srv := newTestServer(t, "")
	resp := get(t, srv.URL+"/?f.REJ__flag_=%3Eabc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportCSV(t *testing.T) {
	srv := newTestServer(t, "")

	resp := get(t, srv.URL+"/api/export.csv?f.REJ__flag_=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "25017360100,1,Acton,29.388"))
}

func TestExportGeoJSON(t *testing.T) {
	srv := newTestServer(t, "")

	resp := get(t, srv.URL+"/api/export.geojson", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 2)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	ds, err := rej.Parse([]byte(fixture), "GeoID")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	server := NewServer(cfg, ds, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(appconfig.WebConfig{Port: 9000, APIKey: "k"})
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 50, cfg.PerPage)
	assert.Equal(t, "k", cfg.Auth.APIKey)
	assert.True(t, cfg.Features.ExportEnabled)
}
