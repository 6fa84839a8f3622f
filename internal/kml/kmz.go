package kml

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoKML is returned when a KMZ archive holds no .kml entry
var ErrNoKML = errors.New("kmz archive contains no kml file")

// ExtractKMZ writes the first .kml entry of a KMZ archive to destPath.
// It returns false without touching the archive when destPath already exists.
func ExtractKMZ(kmzPath, destPath string) (bool, error) {
	if _, err := os.Stat(destPath); err == nil {
		return false, nil
	}

	archive, err := zip.OpenReader(kmzPath)
	if err != nil {
		return false, fmt.Errorf("failed to open kmz %s: %w", kmzPath, err)
	}
	defer archive.Close()

	for _, f := range archive.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".kml") {
			continue
		}
		if err := writeEntry(f, destPath); err != nil {
			return false, err
		}
		return true, nil
	}

	return false, fmt.Errorf("%w: %s", ErrNoKML, kmzPath)
}

func writeEntry(f *zip.File, destPath string) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}

	tmp := destPath + ".part"
	dst, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, destPath)
}
