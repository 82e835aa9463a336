// Package reconcile assigns semantic roles to the files one download run
// wrote. Only files carrying the run's identifier prefix are considered, so
// concurrent runs sharing a directory cannot claim each other's output.
package reconcile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"instascrape/internal/entity"
)

const serviceName = "reconcile"

var videoExts = map[string]struct{}{
	".mp4": {}, ".webm": {}, ".mkv": {}, ".avi": {}, ".mov": {},
}

var imageExts = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".webp": {},
}

type Reconciler struct {
	fs  afero.Fs
	log *slog.Logger
}

func NewReconciler(log *slog.Logger) *Reconciler {
	return NewReconcilerWithFS(afero.NewOsFs(), log)
}

func NewReconcilerWithFS(fs afero.Fs, log *slog.Logger) *Reconciler {
	return &Reconciler{
		fs:  fs,
		log: log.With(slog.String("service", serviceName)),
	}
}

// Reconcile scopes the directory listing to the run's prefix, picks the
// primary video (or image when no video exists), matches a thumbnail by
// filename stem and finally strips the prefix from every file of the run.
// A failed rename keeps the prefixed name, it never aborts the run.
func (r *Reconciler) Reconcile(downloadID, dir string) (*entity.ReconcileResult, error) {
	prefix := downloadID + "_"

	entries, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read output dir: %w", err)
	}

	var files []os.FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}

		files = append(files, entry)
	}

	// Directory iteration order is not guaranteed. Most recent first, so the
	// single-item tie-break within this run's own set is deterministic.
	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime().After(files[j].ModTime())
	})

	res := &entity.ReconcileResult{}

	for _, fi := range files {
		res.Files = append(res.Files, fi.Name())
		ext := strings.ToLower(filepath.Ext(fi.Name()))

		if _, ok := videoExts[ext]; ok {
			res.MediaCount++
			if res.Video == "" {
				res.Video = fi.Name()
			}

			continue
		}

		if _, ok := imageExts[ext]; ok {
			res.MediaCount++
		}
	}

	if res.Video != "" {
		res.Thumbnail = r.findThumbnail(prefix, res.Video, files)
		// The thumbnail is not a carousel member, it must not count as a
		// retrieved media item.
		if res.Thumbnail != "" {
			res.MediaCount--
		}
	} else {
		// An image is the primary item only when the run produced no video.
		for _, fi := range files {
			ext := strings.ToLower(filepath.Ext(fi.Name()))
			if _, ok := imageExts[ext]; ok {
				res.Image = fi.Name()

				break
			}
		}
	}

	r.stripPrefix(prefix, dir, res)

	return res, nil
}

func (r *Reconciler) findThumbnail(prefix, video string, files []os.FileInfo) string {
	videoStem := stem(strings.TrimPrefix(video, prefix))

	for _, fi := range files {
		if fi.Name() == video {
			continue
		}

		ext := strings.ToLower(filepath.Ext(fi.Name()))
		if _, ok := imageExts[ext]; !ok {
			continue
		}

		if stem(strings.TrimPrefix(fi.Name(), prefix)) == videoStem {
			return fi.Name()
		}
	}

	return ""
}

// stripPrefix renames every file of the run to its unprefixed name and
// updates the role references accordingly.
func (r *Reconciler) stripPrefix(prefix, dir string, res *entity.ReconcileResult) {
	for i, name := range res.Files {
		stripped := strings.TrimPrefix(name, prefix)

		if err := r.fs.Rename(filepath.Join(dir, name), filepath.Join(dir, stripped)); err != nil {
			r.log.Warn("Cannot strip download id prefix",
				slog.String("file", name), slog.Any("error", err))

			continue
		}

		res.Files[i] = stripped

		switch name {
		case res.Video:
			res.Video = stripped
		case res.Image:
			res.Image = stripped
		}
		if name == res.Thumbnail {
			res.Thumbnail = stripped
		}
	}
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// IsVideoFile reports whether the filename carries a known video extension.
func IsVideoFile(name string) bool {
	_, ok := videoExts[strings.ToLower(filepath.Ext(name))]

	return ok
}

// IsMediaFile reports whether the filename carries a known media extension.
func IsMediaFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := videoExts[ext]; ok {
		return true
	}
	_, ok := imageExts[ext]

	return ok
}
