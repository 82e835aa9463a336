// Package ytdlp drives the yt-dlp binary, the fast single-item extractor.
// Every run writes its files with the run's download identifier as a
// filename prefix so the reconciler can scope its search to exactly one run.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"instascrape/internal/config"
	"instascrape/internal/entity"
	"instascrape/internal/metrics"
)

const adapterName = "ytdlp"

type Extractor struct {
	fs  afero.Fs
	cfg *config.YTDLPConfig
	log *slog.Logger
}

func New(cfg *config.YTDLPConfig, log *slog.Logger) *Extractor {
	return NewWithFS(afero.NewOsFs(), cfg, log)
}

func NewWithFS(fs afero.Fs, cfg *config.YTDLPConfig, log *slog.Logger) *Extractor {
	return &Extractor{
		fs:  fs,
		cfg: cfg,
		log: log.With(slog.String("adapter", adapterName)),
	}
}

// Extract runs a metadata probe first and, unless SkipDownload is set, a
// real download afterwards. The returned error carries the tool's stderr so
// the caller can classify the failure pattern.
func (e *Extractor) Extract(ctx context.Context, opts entity.ExtractOptions) (*entity.ExtractResult, error) {
	start := time.Now()
	defer func() {
		metrics.ExtractDuration.WithLabelValues(adapterName).Observe(time.Since(start).Seconds())
	}()

	info, err := e.probe(ctx, opts)
	if err != nil {
		return nil, err
	}

	if opts.SkipDownload {
		return &entity.ExtractResult{Info: info}, nil
	}

	if err := e.download(ctx, opts); err != nil {
		return nil, err
	}

	files, err := e.writtenFiles(opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list downloaded files: %w", err)
	}

	e.log.Info("Download finished",
		slog.String("url", opts.URL),
		slog.String("download_id", opts.DownloadID),
		slog.Int("files", len(files)))

	return &entity.ExtractResult{Info: info, Files: files}, nil
}

func (e *Extractor) probe(ctx context.Context, opts entity.ExtractOptions) (*entity.MediaInfo, error) {
	stdout, err := e.run(ctx, probeArgs(e.cfg, opts))
	if err != nil {
		return nil, err
	}

	var info entity.MediaInfo
	if err := json.Unmarshal(stdout, &info); err != nil {
		return nil, fmt.Errorf("cannot parse yt-dlp metadata: %w", err)
	}

	return &info, nil
}

func (e *Extractor) download(ctx context.Context, opts entity.ExtractOptions) error {
	_, err := e.run(ctx, downloadArgs(e.cfg, opts))

	return err
}

func (e *Extractor) run(ctx context.Context, args []string) ([]byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, e.cfg.Bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.log.Debug("Run yt-dlp", slog.String("args", strings.Join(args, " ")))

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}

		return nil, fmt.Errorf("yt-dlp failed: %s", msg)
	}

	return stdout.Bytes(), nil
}

// writtenFiles lists the output directory entries bearing this run's prefix.
// Stale files from earlier runs never match.
func (e *Extractor) writtenFiles(opts entity.ExtractOptions) ([]string, error) {
	entries, err := afero.ReadDir(e.fs, opts.OutputDir)
	if err != nil {
		return nil, err
	}

	prefix := opts.DownloadID + "_"

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}

		files = append(files, entry.Name())
	}

	return files, nil
}

func probeArgs(cfg *config.YTDLPConfig, opts entity.ExtractOptions) []string {
	args := []string{"-J", "--no-warnings", "--user-agent", cfg.UserAgent}

	if opts.FlatPlaylist {
		args = append(args, "--flat-playlist")
	}
	if opts.CookieFile != "" {
		args = append(args, "--cookies", opts.CookieFile)
	}
	if opts.PlaylistItems != "" {
		args = append(args, "--playlist-items", opts.PlaylistItems)
	}

	return append(args, opts.URL)
}

func downloadArgs(cfg *config.YTDLPConfig, opts entity.ExtractOptions) []string {
	args := []string{
		"--no-warnings", "--no-progress",
		"-f", cfg.Format,
		"--write-info-json",
		"--write-thumbnail",
		"--user-agent", cfg.UserAgent,
		"-o", filepath.Join(opts.OutputDir, opts.DownloadID+"_%(title)s.%(ext)s"),
	}

	if opts.CookieFile != "" {
		args = append(args, "--cookies", opts.CookieFile)
	}
	if opts.PlaylistItems != "" {
		args = append(args, "--playlist-items", opts.PlaylistItems)
	}

	return append(args, opts.URL)
}
