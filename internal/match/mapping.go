package match

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/opendatama/rejtracts/internal/geoid"
)

// NoneLiteral marks a missing GeoID that received no match
const NoneLiteral = "None"

const mappingSeparator = " -> "

var mappingHeader = []string{
	"# Mapping of missing REJ GeoIDs to closest MassSave GeoIDs",
	"# Format: missing_geoid -> closest_match_geoid",
	"# Generated by rejtracts reconcile using multi-strategy pattern matching",
}

// WriteMappings writes one "missing -> match" line per entry, sorted by the
// missing GeoID, after the fixed comment header.
func WriteMappings(w io.Writer, mappings map[string]string) error {
	bw := bufio.NewWriter(w)

	for _, line := range mappingHeader {
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(bw); err != nil {
		return err
	}

	keys := make([]string, 0, len(mappings))
	for k := range mappings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, missing := range keys {
		target := mappings[missing]
		if target == "" {
			target = NoneLiteral
		}
		if _, err := fmt.Fprintf(bw, "%s%s%s\n", missing, mappingSeparator, target); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// WriteMappingFile writes the mapping file, replacing any existing file
func WriteMappingFile(path string, mappings map[string]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create mapping file: %w", err)
	}

	if err := WriteMappings(file, mappings); err != nil {
		file.Close()
		return fmt.Errorf("failed to write mapping file: %w", err)
	}
	return file.Close()
}

// ReadMappings parses the mapping format back. Comment and blank lines are
// skipped; "None" targets are kept as empty strings. Every GeoID must be valid
// and each missing GeoID may appear only once.
func ReadMappings(r io.Reader) (map[string]string, error) {
	mappings := make(map[string]string)
	scanner := bufio.NewScanner(r)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, mappingSeparator, 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: expected \"missing -> match\", got %q", lineNo, line)
		}

		missing := strings.TrimSpace(parts[0])
		target := strings.TrimSpace(parts[1])
		if err := geoid.Validate(missing); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if target == NoneLiteral {
			target = ""
		} else if err := geoid.Validate(target); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if _, dup := mappings[missing]; dup {
			return nil, fmt.Errorf("line %d: duplicate mapping for %s", lineNo, missing)
		}
		mappings[missing] = target
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return mappings, nil
}

// ReadMappingFile loads a mapping file written by WriteMappingFile
func ReadMappingFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mapping file: %w", err)
	}
	defer file.Close()

	return ReadMappings(file)
}
