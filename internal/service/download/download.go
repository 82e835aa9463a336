// Package download composes the URL classifier, credential store, the two
// extractor adapters and the file reconciler into the end-to-end download
// operation. It is the single place translating adapter failures into the
// service error taxonomy.
package download

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/afero"

	"instascrape/internal/common"
	"instascrape/internal/config"
	"instascrape/internal/entity"
	"instascrape/internal/metrics"
	"instascrape/internal/service/classify"
	"instascrape/internal/service/reconcile"
	"instascrape/internal/util"
)

const serviceName = "download"

type PrimaryExtractor interface {
	Extract(ctx context.Context, opts entity.ExtractOptions) (*entity.ExtractResult, error)
}

type FallbackExtractor interface {
	ExtractAll(ctx context.Context, url, outputDir, cookieFile string, exclude []string) ([]string, error)
}

type FileReconciler interface {
	Reconcile(downloadID, dir string) (*entity.ReconcileResult, error)
}

type CredentialStore interface {
	Load() (string, bool)
	MarkInvalid(reason string)
}

type Service struct {
	fs         afero.Fs
	cfg        *config.DownloadConfig
	primary    PrimaryExtractor
	fallback   FallbackExtractor
	reconciler FileReconciler
	creds      CredentialStore
	log        *slog.Logger
}

func NewService(cfg *config.DownloadConfig, primary PrimaryExtractor, fallback FallbackExtractor,
	reconciler FileReconciler, creds CredentialStore, log *slog.Logger) *Service {
	return NewServiceWithFS(afero.NewOsFs(), cfg, primary, fallback, reconciler, creds, log)
}

func NewServiceWithFS(fs afero.Fs, cfg *config.DownloadConfig, primary PrimaryExtractor,
	fallback FallbackExtractor, reconciler FileReconciler, creds CredentialStore, log *slog.Logger) *Service {
	return &Service{
		fs:         fs,
		cfg:        cfg,
		primary:    primary,
		fallback:   fallback,
		reconciler: reconciler,
		creds:      creds,
		log:        log.With(slog.String("service", serviceName)),
	}
}

// Download runs one orchestration: classify, authenticate, extract,
// reconcile, and fall back to the bulk extractor when the primary could not
// enumerate all items. Until the extractor is invoked nothing but read-only
// checks touch the filesystem.
func (s *Service) Download(ctx context.Context, req *entity.DownloadRequest) (*entity.ContentMetadata, error) {
	cls := classify.Classify(req.URL)
	if !cls.Valid {
		metrics.DownloadsTotal.WithLabelValues("invalid_url", "none").Inc()

		return nil, common.ErrInvalidURL
	}

	log := s.log.With(slog.String("url", req.URL), slog.String("user_id", req.UserID))

	cookieFile, haveCreds := s.creds.Load()
	if cls.Category == classify.CategoryEphemeral && !haveCreds {
		metrics.DownloadsTotal.WithLabelValues("auth_required", string(cls.Category)).Inc()

		return nil, fmt.Errorf("%w: instagram stories require session cookies", common.ErrAuthRequired)
	}

	downloadID := util.NewDownloadID()
	userDir := filepath.Join(s.cfg.BaseDir, req.UserID)

	targetURL, playlistItems := s.narrowStoryItem(ctx, cls, req.URL, cookieFile, log)

	if err := s.fs.MkdirAll(userDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create user dir: %w", err)
	}

	result, err := s.primary.Extract(ctx, entity.ExtractOptions{
		URL:           targetURL,
		OutputDir:     userDir,
		DownloadID:    downloadID,
		CookieFile:    cookieFile,
		PlaylistItems: playlistItems,
	})
	if err != nil {
		md, ferr := s.primaryFailed(ctx, cls, req, userDir, cookieFile, haveCreds, err, log)
		if ferr != nil {
			return nil, ferr
		}

		metrics.DownloadsTotal.WithLabelValues("success", string(cls.Category)).Inc()

		return md, nil
	}

	rec, err := s.reconciler.Reconcile(downloadID, userDir)
	if err != nil {
		metrics.DownloadsTotal.WithLabelValues("internal", string(cls.Category)).Inc()

		return nil, fmt.Errorf("cannot reconcile downloaded files: %w", err)
	}

	md := s.buildMetadata(req.URL, downloadID, result.Info, rec)

	// Carousel completeness: the post reports several items but only one
	// media file landed on disk, so let gallery-dl fetch the rest.
	if result.Info != nil && result.Info.PlaylistCount > 1 && rec.MediaCount <= 1 && haveCreds {
		s.supplementCarousel(ctx, req.URL, userDir, cookieFile, md, log)
	}

	if md.FilePath == "" && len(md.CarouselFiles) == 0 {
		metrics.DownloadsTotal.WithLabelValues("extraction_failed", string(cls.Category)).Inc()

		return nil, common.ErrNoMediaRetrieved
	}

	metrics.DownloadsTotal.WithLabelValues("success", string(cls.Category)).Inc()

	return md, nil
}

// DownloadCarousel forces the bulk extractor path unconditionally. The
// primary extractor still runs a metadata-only pass for caption and likes,
// tolerating its failure.
func (s *Service) DownloadCarousel(ctx context.Context, req *entity.DownloadRequest) (*entity.ContentMetadata, error) {
	cls := classify.Classify(req.URL)
	if !cls.Valid {
		return nil, common.ErrInvalidURL
	}

	cookieFile, haveCreds := s.creds.Load()
	if !haveCreds {
		return nil, fmt.Errorf("%w: carousel downloads require session cookies", common.ErrAuthRequired)
	}

	userDir := filepath.Join(s.cfg.BaseDir, req.UserID)
	if err := s.fs.MkdirAll(userDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create user dir: %w", err)
	}

	metrics.FallbackRunsTotal.WithLabelValues("forced").Inc()

	files, err := s.fallback.ExtractAll(ctx, req.URL, userDir, cookieFile, nil)
	if err != nil {
		return nil, s.translateFallbackError(err, cookieFile)
	}

	if len(files) == 0 {
		return nil, common.ErrNoMediaRetrieved
	}

	var info *entity.MediaInfo
	probe, err := s.primary.Extract(ctx, entity.ExtractOptions{
		URL:          req.URL,
		SkipDownload: true,
		CookieFile:   cookieFile,
	})
	if err != nil {
		s.log.Warn("Metadata probe failed for forced carousel", slog.Any("error", err))
	} else {
		info = probe.Info
	}

	md := s.buildMetadata(req.URL, util.NewDownloadID(), info, nil)
	md.FilePath = files[0]
	md.IsVideo = reconcile.IsVideoFile(files[0])
	md.IsCarousel = len(files) > 1
	md.CarouselFiles = files

	return md, nil
}

// ValidateSession probes the upstream source read-only with the stored
// credentials.
func (s *Service) ValidateSession(ctx context.Context) (string, error) {
	cookieFile, ok := s.creds.Load()
	if !ok {
		return "", fmt.Errorf("%w: no authentication cookies found", common.ErrAuthRequired)
	}

	result, err := s.primary.Extract(ctx, entity.ExtractOptions{
		URL:          s.cfg.ProbeURL,
		SkipDownload: true,
		FlatPlaylist: true,
		CookieFile:   cookieFile,
	})
	if err != nil {
		if classifyExtractionError(err.Error()) == errKindAuthExpired {
			s.creds.MarkInvalid("Session expired or authentication invalid")

			return "", fmt.Errorf("%w: %v", common.ErrAuthExpired, err)
		}

		return "", fmt.Errorf("%w: %v", common.ErrExtractionFailed, err)
	}

	if result.Info == nil {
		return "", nil
	}

	return result.Info.Uploader, nil
}

// narrowStoryItem tries to restrict an ephemeral download to the requested
// sub-item via a dry-run enumeration. Matching on the loosely defined
// identifier fields is a heuristic: when nothing matches, the whole set is
// downloaded and a warning logged, the request never fails over this.
func (s *Service) narrowStoryItem(ctx context.Context, cls classify.Result, url, cookieFile string, log *slog.Logger) (string, string) {
	if cls.Category != classify.CategoryEphemeral || cls.SubItemID == "" {
		return url, ""
	}

	probe, err := s.primary.Extract(ctx, entity.ExtractOptions{
		URL:          url,
		SkipDownload: true,
		CookieFile:   cookieFile,
	})
	if err != nil || probe.Info == nil {
		log.Warn("Story enumeration failed, downloading entire set", slog.Any("error", err))

		return url, ""
	}

	for i, entry := range probe.Info.Entries {
		if entry.ID == cls.SubItemID || entry.DisplayID == cls.SubItemID || entry.PageURL == url {
			if entry.URL != "" {
				return entry.URL, ""
			}

			return url, strconv.Itoa(i + 1)
		}
	}

	log.Warn("Requested story item not found, downloading entire set",
		slog.String("sub_item_id", cls.SubItemID),
		slog.Int("candidates", len(probe.Info.Entries)))

	return url, ""
}

// primaryFailed handles the error branch of the primary extractor: the
// carousel fallback substitutes the whole download, a stale session flips
// the status file, everything else surfaces verbatim.
func (s *Service) primaryFailed(ctx context.Context, cls classify.Result, req *entity.DownloadRequest,
	userDir, cookieFile string, haveCreds bool, extractErr error, log *slog.Logger) (*entity.ContentMetadata, error) {
	kind := classifyExtractionError(extractErr.Error())

	if kind == errKindCarouselUnsupported && cls.Category != classify.CategoryEphemeral {
		log.Info("Primary extractor cannot enumerate post, trying gallery-dl",
			slog.Any("error", extractErr))
		metrics.FallbackRunsTotal.WithLabelValues("primary_failed").Inc()

		files, err := s.fallback.ExtractAll(ctx, req.URL, userDir, cookieFile, nil)
		if err != nil {
			metrics.DownloadsTotal.WithLabelValues("extraction_failed", string(cls.Category)).Inc()

			return nil, s.translateFallbackError(err, cookieFile)
		}

		if len(files) == 0 {
			metrics.DownloadsTotal.WithLabelValues("extraction_failed", string(cls.Category)).Inc()

			return nil, common.ErrNoMediaRetrieved
		}

		// Metadata-only pass: caption and likes may still be recoverable
		// even when the media extraction was not.
		var info *entity.MediaInfo
		if probe, perr := s.primary.Extract(ctx, entity.ExtractOptions{
			URL:          req.URL,
			SkipDownload: true,
			CookieFile:   cookieFile,
		}); perr == nil {
			info = probe.Info
		}

		md := s.buildMetadata(req.URL, util.NewDownloadID(), info, nil)
		md.FilePath = files[0]
		md.IsVideo = reconcile.IsVideoFile(files[0])
		md.IsCarousel = len(files) > 1
		md.CarouselFiles = files

		return md, nil
	}

	if kind == errKindAuthExpired && haveCreds {
		s.creds.MarkInvalid("Session expired or authentication invalid")
		metrics.DownloadsTotal.WithLabelValues("auth_expired", string(cls.Category)).Inc()

		return nil, fmt.Errorf("%w: %v", common.ErrAuthExpired, extractErr)
	}

	metrics.DownloadsTotal.WithLabelValues("extraction_failed", string(cls.Category)).Inc()

	return nil, fmt.Errorf("%w: %v", common.ErrExtractionFailed, extractErr)
}

// supplementCarousel merges the remaining carousel members into an already
// usable single-item result. Its own failure is logged and swallowed.
func (s *Service) supplementCarousel(ctx context.Context, url, userDir, cookieFile string,
	md *entity.ContentMetadata, log *slog.Logger) {
	metrics.FallbackRunsTotal.WithLabelValues("incomplete_carousel").Inc()

	var exclude []string
	if md.FilePath != "" {
		exclude = append(exclude, md.FilePath)
	}
	if md.ThumbnailPath != "" {
		exclude = append(exclude, md.ThumbnailPath)
	}

	files, err := s.fallback.ExtractAll(ctx, url, userDir, cookieFile, exclude)
	if err != nil {
		log.Warn("Carousel supplement failed, keeping single item", slog.Any("error", err))

		return
	}

	seen := make(map[string]struct{})
	var all []string
	if md.FilePath != "" {
		all = append(all, md.FilePath)
		seen[md.FilePath] = struct{}{}
	}
	for _, f := range files {
		if _, ok := seen[f]; ok {
			continue
		}

		seen[f] = struct{}{}
		all = append(all, f)
	}

	if len(all) <= 1 {
		return
	}

	md.IsCarousel = true
	md.CarouselFiles = all
}

func (s *Service) translateFallbackError(err error, cookieFile string) error {
	if classifyExtractionError(err.Error()) == errKindAuthExpired && cookieFile != "" {
		s.creds.MarkInvalid("Session expired or authentication invalid")

		return fmt.Errorf("%w: %v", common.ErrAuthExpired, err)
	}

	return err
}

func (s *Service) buildMetadata(url, downloadID string, info *entity.MediaInfo, rec *entity.ReconcileResult) *entity.ContentMetadata {
	md := &entity.ContentMetadata{
		ID:   downloadID,
		URL:  url,
		Date: time.Now().UTC().Format(time.RFC3339),
	}

	if info != nil {
		if info.ID != "" {
			md.ID = info.ID
		}
		if info.Timestamp > 0 {
			md.Date = time.Unix(info.Timestamp, 0).UTC().Format(time.RFC3339)
		}

		// Caption falls back from description to title, then stays empty.
		md.Caption = info.Description
		if md.Caption == "" {
			md.Caption = info.Title
		}

		if info.LikeCount > 0 {
			md.Likes = info.LikeCount
		}
	}

	if rec != nil {
		md.IsVideo = rec.Video != ""
		if rec.Video != "" {
			md.FilePath = rec.Video
		} else {
			md.FilePath = rec.Image
		}
		md.ThumbnailPath = rec.Thumbnail
	}

	return md
}
