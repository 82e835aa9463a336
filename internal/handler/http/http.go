package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"

	"github.com/spf13/afero"

	"instascrape/internal/common"
	"instascrape/internal/entity"
)

var userIDRegexp = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

type DownloadService interface {
	Download(ctx context.Context, req *entity.DownloadRequest) (*entity.ContentMetadata, error)
	DownloadCarousel(ctx context.Context, req *entity.DownloadRequest) (*entity.ContentMetadata, error)
	ValidateSession(ctx context.Context) (string, error)
}

type CredentialService interface {
	Upload(raw []byte) (*entity.UploadResult, error)
	Status() *entity.AuthStatus
}

type LibraryService interface {
	List(userID string) ([]*entity.MediaFile, error)
	Open(userID, filename string) (afero.File, error)
}

type downloadResponse struct {
	Success  bool                    `json:"success"`
	Metadata *entity.ContentMetadata `json:"metadata"`
	Message  string                  `json:"message"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail"`
}

func NewRootHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "InstaScrape API is running"})
	}
}

func NewDownloadHandler(srv DownloadService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "DownloadHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeDownloadRequest(w, r)
		if !ok {
			return
		}

		md, err := srv.Download(r.Context(), req)
		if err != nil {
			log.Error("Download failed", slog.String("url", req.URL), slog.Any("error", err))
			writeError(w, err)

			return
		}

		writeJSON(w, http.StatusOK, &downloadResponse{
			Success:  true,
			Metadata: md,
			Message:  "Content downloaded successfully",
		})
	}
}

func NewDownloadCarouselHandler(srv DownloadService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "DownloadCarouselHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeDownloadRequest(w, r)
		if !ok {
			return
		}

		md, err := srv.DownloadCarousel(r.Context(), req)
		if err != nil {
			log.Error("Carousel download failed", slog.String("url", req.URL), slog.Any("error", err))
			writeError(w, err)

			return
		}

		writeJSON(w, http.StatusOK, &downloadResponse{
			Success:  true,
			Metadata: md,
			Message:  "Carousel downloaded successfully",
		})
	}
}

func NewListDownloadsHandler(srv LibraryService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ListDownloadsHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.PathValue("user_id")
		if !userIDRegexp.MatchString(userID) {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		files, err := srv.List(userID)
		if err != nil {
			log.Error("Cannot list downloads", slog.String("user_id", userID), slog.Any("error", err))
			http.Error(w, "Cannot list downloads", http.StatusInternalServerError)

			return
		}

		writeJSON(w, http.StatusOK, map[string][]*entity.MediaFile{"downloads": files})
	}
}

func NewMediaHandler(srv LibraryService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "MediaHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.PathValue("user_id")
		filename := r.PathValue("filename")
		if !userIDRegexp.MatchString(userID) {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		file, err := srv.Open(userID, filename)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrAccessDeniedError):
				http.Error(w, "Access denied", http.StatusForbidden)
			case errors.Is(err, common.ErrFileNotFoundError):
				http.Error(w, "File not found", http.StatusNotFound)
			default:
				log.Error("Cannot open media file", slog.String("filename", filename), slog.Any("error", err))
				http.Error(w, "Cannot serve file", http.StatusInternalServerError)
			}

			return
		}
		defer file.Close()

		fi, err := file.Stat()
		if err != nil {
			http.Error(w, "Cannot serve file", http.StatusInternalServerError)

			return
		}

		if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
			w.Header().Set("Content-Type", ct)
		} else {
			w.Header().Set("Content-Type", "application/octet-stream")
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))

		http.ServeContent(w, r, filename, fi.ModTime(), file)
	}
}

func NewUploadCookiesHandler(srv CredentialService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "UploadCookiesHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := readBody(r)
		if err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		res, err := srv.Upload(raw)
		if err != nil {
			if errors.Is(err, common.ErrMalformedCredentials) {
				writeJSON(w, http.StatusBadRequest, &errorResponse{Detail: err.Error()})

				return
			}

			log.Error("Cannot store cookies", slog.Any("error", err))
			writeJSON(w, http.StatusInternalServerError, &errorResponse{Detail: "Cannot store cookies"})

			return
		}

		log.Info("Cookies uploaded",
			slog.Int("count", res.CookieCount),
			slog.Bool("stories_supported", res.StoriesSupported))

		writeJSON(w, http.StatusOK, map[string]any{
			"success":           true,
			"stories_supported": res.StoriesSupported,
			"cookies_count":     res.CookieCount,
		})
	}
}

func NewValidateSessionHandler(srv DownloadService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ValidateSessionHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		username, err := srv.ValidateSession(r.Context())
		if err != nil {
			log.Warn("Session validation failed", slog.Any("error", err))

			// No cookies at all also answers 401 here: the probe cannot
			// succeed without them.
			status := http.StatusInternalServerError
			if errors.Is(err, common.ErrAuthExpired) || errors.Is(err, common.ErrAuthRequired) {
				status = http.StatusUnauthorized
			}
			writeJSON(w, status, &errorResponse{Detail: err.Error()})

			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"valid":    true,
			"message":  "Session is active and working",
			"username": username,
		})
	}
}

func NewAuthStatusHandler(srv CredentialService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "AuthStatusHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		st := srv.Status()

		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated":    st.Authenticated,
			"session_age_days": st.SessionAgeDays,
			"session_status":   st.SessionStatus,
			"warning_message":  st.Warning,
			"storiesSupported": st.Authenticated,
		})
	}
}

const maxCookieBodySize = 1 << 20

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()

	return io.ReadAll(io.LimitReader(r.Body, maxCookieBodySize))
}

func decodeDownloadRequest(w http.ResponseWriter, r *http.Request) (*entity.DownloadRequest, bool) {
	var req entity.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)

		return nil, false
	}

	if req.URL == "" || !userIDRegexp.MatchString(req.UserID) {
		http.Error(w, "Bad request", http.StatusBadRequest)

		return nil, false
	}

	return &req, true
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), &errorResponse{Detail: err.Error()})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidURL), errors.Is(err, common.ErrAuthRequired):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrAuthExpired):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
