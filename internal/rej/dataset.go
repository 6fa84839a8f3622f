package rej

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/opendatama/rejtracts/internal/geoid"
)

// Dataset is the REJ census tract GeoJSON held in memory
type Dataset struct {
	IDField  string
	Features []*geojson.Feature
}

type rawCollection struct {
	Type     string       `json:"type"`
	Features []rawFeature `json:"features"`
}

type rawFeature struct {
	ID         json.RawMessage        `json:"id"`
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// Load reads a GeoJSON FeatureCollection. Feature ids may be strings or
// numbers and geometries may be null; both are common in ArcGIS exports.
func Load(path, idField string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(data, idField)
}

// Parse decodes a GeoJSON FeatureCollection
func Parse(data []byte, idField string) (*Dataset, error) {
	var raw rawCollection
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode geojson: %w", err)
	}
	if raw.Type != "FeatureCollection" {
		return nil, fmt.Errorf("expected FeatureCollection, got %q", raw.Type)
	}

	ds := &Dataset{IDField: idField, Features: make([]*geojson.Feature, 0, len(raw.Features))}
	for i, rf := range raw.Features {
		f := &geojson.Feature{ID: featureID(rf.ID), Properties: rf.Properties}
		if f.Properties == nil {
			f.Properties = make(map[string]interface{})
		}

		if len(rf.Geometry) > 0 && !bytes.Equal(bytes.TrimSpace(rf.Geometry), []byte("null")) {
			var g geom.T
			if err := geojson.Unmarshal(rf.Geometry, &g); err != nil {
				return nil, fmt.Errorf("feature %d: failed to decode geometry: %w", i, err)
			}
			f.Geometry = g
		}
		ds.Features = append(ds.Features, f)
	}
	return ds, nil
}

func featureID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// ID returns the validated GeoID of feature i
func (d *Dataset) ID(i int) (string, error) {
	id, err := geoid.Parse(d.Features[i].Properties[d.IDField])
	if err != nil {
		return "", fmt.Errorf("feature %d %s: %w", i, d.IDField, err)
	}
	return id, nil
}

// IDs returns every feature GeoID in feature order, rejecting malformed ones
func (d *Dataset) IDs() ([]string, error) {
	ids := make([]string, len(d.Features))
	for i := range d.Features {
		id, err := d.ID(i)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// Regions maps each GeoID to the string value of regionField. When a GeoID
// repeats, the first feature wins.
func (d *Dataset) Regions(regionField string) (map[string]string, error) {
	regions := make(map[string]string, len(d.Features))
	for i, f := range d.Features {
		id, err := d.ID(i)
		if err != nil {
			return nil, err
		}
		if _, seen := regions[id]; seen {
			continue
		}
		regions[id] = propertyString(f.Properties[regionField])
	}
	return regions, nil
}

// Columns returns the union of property names, sorted
func (d *Dataset) Columns() []string {
	seen := make(map[string]bool)
	var cols []string
	for _, f := range d.Features {
		for k := range f.Properties {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

// WriteGeoJSON writes the dataset as a FeatureCollection
func (d *Dataset) WriteGeoJSON(path string) error {
	fc := geojson.FeatureCollection{Features: d.Features}
	data, err := json.Marshal(&fc)
	if err != nil {
		return fmt.Errorf("failed to encode geojson: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func propertyString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return geoid.Normalize(val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}
