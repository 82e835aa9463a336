// Package gallerydl drives the gallery-dl binary, the slower bulk extractor
// used when yt-dlp cannot enumerate all items of a carousel post. It only
// runs in the authenticated path and is bounded by a configured timeout.
package gallerydl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"instascrape/internal/common"
	"instascrape/internal/config"
	"instascrape/internal/metrics"
	"instascrape/internal/service/reconcile"
)

const adapterName = "gallerydl"

type Extractor struct {
	fs  afero.Fs
	cfg *config.GalleryDLConfig
	log *slog.Logger
}

func New(cfg *config.GalleryDLConfig, log *slog.Logger) *Extractor {
	return NewWithFS(afero.NewOsFs(), cfg, log)
}

func NewWithFS(fs afero.Fs, cfg *config.GalleryDLConfig, log *slog.Logger) *Extractor {
	return &Extractor{
		fs:  fs,
		cfg: cfg,
		log: log.With(slog.String("adapter", adapterName)),
	}
}

// ExtractAll downloads every item of the post into outputDir and returns
// the base names of the media files it retrieved, ordered by name. Files
// gallery-dl nests in subdirectories are flattened into outputDir first.
func (e *Extractor) ExtractAll(ctx context.Context, url, outputDir, cookieFile string, exclude []string) ([]string, error) {
	if cookieFile == "" {
		return nil, fmt.Errorf("%w: gallery-dl needs session cookies", common.ErrAuthRequired)
	}

	start := time.Now()
	defer func() {
		metrics.ExtractDuration.WithLabelValues(adapterName).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	args := []string{
		"--cookies", cookieFile,
		"--no-part",
		"-d", outputDir,
		url,
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.cfg.Bin, args...)
	cmd.Stderr = &stderr

	e.log.Info("Run gallery-dl", slog.String("url", url))

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: gallery-dl timed out after %s", common.ErrExtractionFailed, e.cfg.Timeout)
		}

		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}

		return nil, fmt.Errorf("%w: gallery-dl: %s", common.ErrExtractionFailed, msg)
	}

	if err := e.flatten(outputDir); err != nil {
		return nil, fmt.Errorf("cannot flatten gallery-dl output: %w", err)
	}

	return e.recentMedia(outputDir, exclude)
}

// flatten moves files out of nested subdirectories into outputDir and
// removes the emptied directories best-effort.
func (e *Extractor) flatten(outputDir string) error {
	entries, err := afero.ReadDir(e.fs, outputDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		subdir := filepath.Join(outputDir, entry.Name())

		err := afero.Walk(e.fs, subdir, func(path string, info fs.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return err
			}

			dest := filepath.Join(outputDir, info.Name())
			if ok, _ := afero.Exists(e.fs, dest); ok {
				// Same name downloaded twice, first one wins.
				return nil
			}

			return e.fs.Rename(path, dest)
		})
		if err != nil {
			return err
		}

		// Remove, not RemoveAll: a subdirectory still holding skipped
		// duplicates must survive.
		if err := e.fs.Remove(subdir); err != nil {
			e.log.Warn("Cannot remove emptied directory",
				slog.String("dir", subdir), slog.Any("error", err))
		}
	}

	return nil
}

// recentMedia lists the media files of the current run: recently modified,
// known media extension, not already claimed by the primary extractor.
func (e *Extractor) recentMedia(outputDir string, exclude []string) ([]string, error) {
	entries, err := afero.ReadDir(e.fs, outputDir)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		excluded[name] = struct{}{}
	}

	cutoff := time.Now().Add(-e.cfg.RecentWindow)

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || entry.ModTime().Before(cutoff) {
			continue
		}

		if !reconcile.IsMediaFile(entry.Name()) {
			continue
		}

		if _, ok := excluded[entry.Name()]; ok {
			continue
		}

		files = append(files, entry.Name())
	}

	sort.Strings(files)

	return files, nil
}
