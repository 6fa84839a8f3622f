package scrape

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/opendatama/rejtracts/internal/kml"
)

// DownloadStats counts the outcome of a DownloadAll run
type DownloadStats struct {
	Municipalities int
	Downloaded     int
	Skipped        int
	Extracted      int
	Failed         int
}

// Downloader fetches every municipality's KMZ and unpacks its KML
type Downloader struct {
	client  *Client
	kmzDir  string
	kmlDir  string
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewDownloader creates a downloader that waits interval between POSTs
func NewDownloader(client *Client, kmzDir, kmlDir string, interval time.Duration, logger zerolog.Logger) *Downloader {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Downloader{
		client:  client,
		kmzDir:  kmzDir,
		kmlDir:  kmlDir,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// DownloadAll downloads every municipality not already on disk and extracts
// the KML of every archive present. A stale form is re-fetched once per run.
// Per-municipality failures are logged and counted.
func (d *Downloader) DownloadAll(ctx context.Context) (DownloadStats, error) {
	var stats DownloadStats

	for _, dir := range []string{d.kmzDir, d.kmlDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return stats, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	d.logger.Info().Msg("Fetching list of municipalities and form data")
	form, err := d.client.FetchForm(ctx)
	if err != nil {
		return stats, err
	}
	stats.Municipalities = len(form.Municipalities)
	d.logger.Info().Int("count", stats.Municipalities).Msg("Found municipalities")

	refreshed := false
	for _, m := range form.Municipalities {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		log := d.logger.With().Str("municipality", m).Logger()
		if err := checkFileName(m); err != nil {
			log.Error().Err(err).Msg("Skipping municipality")
			stats.Failed++
			continue
		}
		kmzPath := filepath.Join(d.kmzDir, m+".kmz")

		if _, err := os.Stat(kmzPath); err == nil {
			log.Debug().Msg("Skipping download, file already exists")
			stats.Skipped++
		} else {
			err := d.download(ctx, form, m, kmzPath)
			if errors.Is(err, ErrStaleForm) && !refreshed {
				refreshed = true
				log.Warn().Msg("Form state rejected, re-fetching")
				if fresh, ferr := d.client.FetchForm(ctx); ferr == nil {
					form = fresh
					err = d.download(ctx, form, m, kmzPath)
				}
			}
			if err != nil {
				if ctx.Err() != nil {
					return stats, ctx.Err()
				}
				log.Error().Err(err).Msg("Download failed")
				stats.Failed++
				continue
			}
			log.Info().Str("path", kmzPath).Msg("Saved")
			stats.Downloaded++
		}

		kmlPath := filepath.Join(d.kmlDir, m+".kml")
		extracted, err := kml.ExtractKMZ(kmzPath, kmlPath)
		if err != nil {
			log.Error().Err(err).Msg("Could not unzip")
			stats.Failed++
			continue
		}
		if extracted {
			log.Debug().Str("path", kmlPath).Msg("Extracted KML")
			stats.Extracted++
		}
	}

	return stats, nil
}

// checkFileName rejects dropdown values that would resolve outside the
// download directories
func checkFileName(name string) error {
	if name == "" || name == "." || name == ".." ||
		filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	return nil
}

func (d *Downloader) download(ctx context.Context, form *Form, municipality, path string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	return d.client.Download(ctx, form, municipality, path)
}
