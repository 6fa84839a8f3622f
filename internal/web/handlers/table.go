package handlers

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/opendatama/rejtracts/internal/rej"
)

// Column types
const (
	TypeNumeric = "numeric"
	TypeText    = "text"
)

// ErrBadQuery is returned for unknown columns or unparsable filters
var ErrBadQuery = errors.New("bad query")

// Column describes one table column
type Column struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Table is the joined REJ dataset held in memory for browsing
type Table struct {
	Columns []Column
	Rows    []map[string]interface{}
	dataset *rej.Dataset
	types   map[string]string
}

// NewTable builds a table from feature properties. A column is numeric when
// every non-null value is a number.
func NewTable(ds *rej.Dataset) *Table {
	t := &Table{dataset: ds, types: make(map[string]string)}
	for _, f := range ds.Features {
		t.Rows = append(t.Rows, f.Properties)
	}

	for _, name := range ds.TableColumns() {
		typ := TypeNumeric
		for _, row := range t.Rows {
			switch row[name].(type) {
			case nil, float64, int:
			default:
				typ = TypeText
			}
			if typ == TypeText {
				break
			}
		}
		t.types[name] = typ
		t.Columns = append(t.Columns, Column{Name: name, ID: name, Type: typ})
	}
	return t
}

// Query selects a page of rows
type Query struct {
	Search  string
	Sort    string
	Desc    bool
	Page    int
	PerPage int
	Filters map[string]string
}

// ParseQuery reads q, sort, dir, page, per_page and f.<column> parameters
func ParseQuery(values url.Values, defaultPerPage int) Query {
	q := Query{
		Search:  strings.TrimSpace(values.Get("q")),
		Sort:    values.Get("sort"),
		Desc:    strings.EqualFold(values.Get("dir"), "desc"),
		Page:    parseIntParam(values.Get("page"), 1),
		PerPage: parseIntParam(values.Get("per_page"), defaultPerPage),
		Filters: make(map[string]string),
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = defaultPerPage
	}
	if q.PerPage > 1000 {
		q.PerPage = 1000
	}
	for key, v := range values {
		if name, ok := strings.CutPrefix(key, "f."); ok && strings.TrimSpace(v[0]) != "" {
			q.Filters[name] = strings.TrimSpace(v[0])
		}
	}
	return q
}

// Page is one page of query results
type Page struct {
	Columns  []Column                 `json:"columns"`
	Rows     []map[string]interface{} `json:"rows"`
	Total    int                      `json:"total"`
	Matched  int                      `json:"matched"`
	Filtered bool                     `json:"filtered"`
	Page     int                      `json:"page"`
	PerPage  int                      `json:"per_page"`
	Pages    int                      `json:"pages"`
	Label    string                   `json:"label"`
}

var labelPrinter = message.NewPrinter(language.English)

// Label renders a row count, e.g. "1,474 rows" or "12 rows (filtered)"
func Label(n int, filtered bool) string {
	if filtered {
		return labelPrinter.Sprintf("%d rows (filtered)", n)
	}
	return labelPrinter.Sprintf("%d rows", n)
}

// Select applies the search, column filters and sort, returning row indexes
func (t *Table) Select(q Query) ([]int, error) {
	preds := make([]func(map[string]interface{}) bool, 0, len(q.Filters)+1)
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		preds = append(preds, func(row map[string]interface{}) bool {
			for _, c := range t.Columns {
				if strings.Contains(strings.ToLower(cellText(row[c.ID])), needle) {
					return true
				}
			}
			return false
		})
	}

	names := make([]string, 0, len(q.Filters))
	for name := range q.Filters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p, err := t.filter(name, q.Filters[name])
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}

	var idx []int
rows:
	for i, row := range t.Rows {
		for _, p := range preds {
			if !p(row) {
				continue rows
			}
		}
		idx = append(idx, i)
	}

	if q.Sort != "" {
		typ, ok := t.types[q.Sort]
		if !ok {
			return nil, fmt.Errorf("%w: unknown sort column %q", ErrBadQuery, q.Sort)
		}
		t.sortRows(idx, q.Sort, typ, q.Desc)
	}
	return idx, nil
}

// Query returns one page of rows
func (t *Table) Query(q Query) (*Page, error) {
	idx, err := t.Select(q)
	if err != nil {
		return nil, err
	}

	if q.PerPage < 1 {
		q.PerPage = 1
	}
	filtered := q.Search != "" || len(q.Filters) > 0
	page := &Page{
		Columns:  t.Columns,
		Rows:     []map[string]interface{}{},
		Total:    len(t.Rows),
		Matched:  len(idx),
		Filtered: filtered,
		Page:     q.Page,
		PerPage:  q.PerPage,
		Pages:    (len(idx) + q.PerPage - 1) / q.PerPage,
		Label:    Label(len(idx), filtered),
	}

	// pages past the end are empty
	if q.Page < 1 || q.Page > page.Pages {
		return page, nil
	}
	start := (q.Page - 1) * q.PerPage
	end := min(start+q.PerPage, len(idx))
	for _, i := range idx[start:end] {
		page.Rows = append(page.Rows, t.Rows[i])
	}
	return page, nil
}

func (t *Table) filter(name, expr string) (func(map[string]interface{}) bool, error) {
	typ, ok := t.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown filter column %q", ErrBadQuery, name)
	}

	if typ == TypeText {
		needle := strings.ToLower(expr)
		return func(row map[string]interface{}) bool {
			return strings.Contains(strings.ToLower(cellText(row[name])), needle)
		}, nil
	}

	op, operand := "=", expr
	for _, candidate := range []string{">=", "<=", "!=", ">", "<", "="} {
		if rest, found := strings.CutPrefix(expr, candidate); found {
			op, operand = candidate, strings.TrimSpace(rest)
			break
		}
	}
	want, err := strconv.ParseFloat(operand, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: filter %q on numeric column %q", ErrBadQuery, expr, name)
	}

	return func(row map[string]interface{}) bool {
		v, ok := cellNumber(row[name])
		if !ok {
			return false
		}
		switch op {
		case ">=":
			return v >= want
		case "<=":
			return v <= want
		case "!=":
			return v != want
		case ">":
			return v > want
		case "<":
			return v < want
		default:
			return v == want
		}
	}, nil
}

// sortRows orders idx by column; nulls always sort last
func (t *Table) sortRows(idx []int, col, typ string, desc bool) {
	sort.SliceStable(idx, func(a, b int) bool {
		va, vb := t.Rows[idx[a]][col], t.Rows[idx[b]][col]
		if va == nil || vb == nil {
			return va != nil && vb == nil
		}
		if typ == TypeNumeric {
			na, _ := cellNumber(va)
			nb, _ := cellNumber(vb)
			if desc {
				return na > nb
			}
			return na < nb
		}
		sa, sb := cellText(va), cellText(vb)
		if desc {
			return sa > sb
		}
		return sa < sb
	})
}

func cellNumber(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, !math.IsNaN(val)
	case int:
		return float64(val), true
	default:
		return 0, false
	}
}

// cellText renders a value the way the table shows it
func cellText(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

func parseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return n
}
