// Package library exposes the per-user output directory: listing the
// downloaded media of a user and resolving single files for serving.
package library

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"instascrape/internal/common"
	"instascrape/internal/entity"
	"instascrape/internal/service/reconcile"
)

const serviceName = "library"

type Service struct {
	fs      afero.Fs
	baseDir string
	log     *slog.Logger
}

func New(baseDir string, log *slog.Logger) *Service {
	return NewWithFS(afero.NewOsFs(), baseDir, log)
}

func NewWithFS(fs afero.Fs, baseDir string, log *slog.Logger) *Service {
	return &Service{
		fs:      fs,
		baseDir: baseDir,
		log:     log.With(slog.String("service", serviceName)),
	}
}

// List returns the media files of one user. A user without a directory has
// an empty library, not an error.
func (s *Service) List(userID string) ([]*entity.MediaFile, error) {
	dir := filepath.Join(s.baseDir, userID)

	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if ok, _ := afero.DirExists(s.fs, dir); !ok {
			return []*entity.MediaFile{}, nil
		}

		return nil, fmt.Errorf("cannot read user dir: %w", err)
	}

	files := make([]*entity.MediaFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !reconcile.IsMediaFile(entry.Name()) {
			continue
		}

		files = append(files, &entity.MediaFile{
			Filename: entry.Name(),
			Path:     filepath.Join(dir, entry.Name()),
			Size:     entry.Size(),
			Created:  float64(entry.ModTime().Unix()),
		})
	}

	return files, nil
}

// Open resolves one file of a user's library and opens it for serving. The
// resolved path must stay within the user's directory.
func (s *Service) Open(userID, filename string) (afero.File, error) {
	path, err := s.resolve(userID, filename)
	if err != nil {
		return nil, err
	}

	if ok, _ := afero.Exists(s.fs, path); !ok {
		return nil, common.ErrFileNotFoundError
	}

	file, err := s.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open media file: %w", err)
	}

	return file, nil
}

func (s *Service) resolve(userID, filename string) (string, error) {
	userDir := filepath.Join(s.baseDir, userID)
	path := filepath.Join(userDir, filename)

	// filepath.Join cleans the path, anything escaping the user directory
	// ends up without the prefix. Filenames are not filtered beyond that:
	// captions with trailing ellipses produce legitimate names containing
	// consecutive dots.
	if !strings.HasPrefix(path, userDir+string(filepath.Separator)) {
		return "", common.ErrAccessDeniedError
	}
	if strings.Contains(userID, "..") {
		return "", common.ErrAccessDeniedError
	}

	return path, nil
}
