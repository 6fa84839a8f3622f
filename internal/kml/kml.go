package kml

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// Placemark is a KML feature found under one of the requested layers
type Placemark struct {
	Layer       string
	Name        string
	Description string
}

// container covers both <Document> and <Folder>; KML nests them freely
type container struct {
	Name       string      `xml:"name"`
	Documents  []container `xml:"Document"`
	Folders    []container `xml:"Folder"`
	Placemarks []struct {
		Name        string `xml:"name"`
		Description string `xml:"description"`
	} `xml:"Placemark"`
}

type document struct {
	XMLName   xml.Name    `xml:"kml"`
	Documents []container `xml:"Document"`
	Folders   []container `xml:"Folder"`
}

// Parse decodes a KML stream and returns the placemarks found under any
// Document or Folder whose name is in layers. A placemark below nested
// folders is attributed to the outermost requested layer.
func Parse(r io.Reader, layers []string) (map[string][]Placemark, error) {
	var doc document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode kml: %w", err)
	}

	wanted := make(map[string]bool, len(layers))
	for _, l := range layers {
		wanted[l] = true
	}

	found := make(map[string][]Placemark)
	var walk func(c container, layer string)
	walk = func(c container, layer string) {
		name := strings.TrimSpace(c.Name)
		if layer == "" && wanted[name] {
			layer = name
		}
		if layer != "" {
			for _, p := range c.Placemarks {
				found[layer] = append(found[layer], Placemark{
					Layer:       layer,
					Name:        strings.TrimSpace(p.Name),
					Description: p.Description,
				})
			}
		}
		for _, child := range c.Documents {
			walk(child, layer)
		}
		for _, child := range c.Folders {
			walk(child, layer)
		}
	}

	for _, c := range doc.Documents {
		walk(c, "")
	}
	for _, c := range doc.Folders {
		walk(c, "")
	}

	return found, nil
}

// ParseFile opens and parses a KML file
func ParseFile(path string, layers []string) (map[string][]Placemark, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	return Parse(file, layers)
}
