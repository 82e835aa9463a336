package httphandler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"instascrape/internal/common"
	"instascrape/internal/entity"
)

type fakeDownloadService struct {
	md  *entity.ContentMetadata
	err error
}

func (f *fakeDownloadService) Download(context.Context, *entity.DownloadRequest) (*entity.ContentMetadata, error) {
	return f.md, f.err
}

func (f *fakeDownloadService) DownloadCarousel(context.Context, *entity.DownloadRequest) (*entity.ContentMetadata, error) {
	return f.md, f.err
}

func (f *fakeDownloadService) ValidateSession(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}

	return "instagram", nil
}

type fakeCredentialService struct {
	upload *entity.UploadResult
	status *entity.AuthStatus
	err    error
}

func (f *fakeCredentialService) Upload([]byte) (*entity.UploadResult, error) { return f.upload, f.err }
func (f *fakeCredentialService) Status() *entity.AuthStatus                  { return f.status }

type fakeLibraryService struct {
	fs    afero.Fs
	files []*entity.MediaFile
	err   error
}

func (f *fakeLibraryService) List(string) ([]*entity.MediaFile, error) { return f.files, f.err }

func (f *fakeLibraryService) Open(userID, filename string) (afero.File, error) {
	if f.err != nil {
		return nil, f.err
	}

	return f.fs.Open("/downloads/" + userID + "/" + filename)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func postJSON(h http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	h(w, req)

	return w
}

func TestDownloadHandlerStatusMapping(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid url", common.ErrInvalidURL, http.StatusBadRequest},
		{"auth required", fmt.Errorf("%w: stories", common.ErrAuthRequired), http.StatusBadRequest},
		{"auth expired", fmt.Errorf("%w: stale", common.ErrAuthExpired), http.StatusUnauthorized},
		{"extraction failed", fmt.Errorf("%w: boom", common.ErrExtractionFailed), http.StatusInternalServerError},
		{"internal", fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewDownloadHandler(&fakeDownloadService{err: tc.err}, discardLogger())
			w := postJSON(h, "/download", `{"url": "https://www.instagram.com/p/x/", "user_id": "u1"}`)

			require.Equal(t, tc.status, w.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.False(t, resp.Success)
			require.NotEmpty(t, resp.Detail)
		})
	}
}

func TestDownloadHandlerSuccess(t *testing.T) {
	md := &entity.ContentMetadata{ID: "p1", FilePath: "clip.mp4", IsVideo: true}
	h := NewDownloadHandler(&fakeDownloadService{md: md}, discardLogger())

	w := postJSON(h, "/download", `{"url": "https://www.instagram.com/p/x/", "user_id": "u1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp downloadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "clip.mp4", resp.Metadata.FilePath)
}

func TestDownloadHandlerBadBody(t *testing.T) {
	h := NewDownloadHandler(&fakeDownloadService{}, discardLogger())

	testCases := []string{
		"not json",
		`{"url": "", "user_id": "u1"}`,
		`{"url": "https://www.instagram.com/p/x/", "user_id": ""}`,
		`{"url": "https://www.instagram.com/p/x/", "user_id": "../evil"}`,
	}

	for _, body := range testCases {
		w := postJSON(h, "/download", body)
		require.Equal(t, http.StatusBadRequest, w.Code, "body=%s", body)
	}
}

func TestMediaHandlerTraversalForbidden(t *testing.T) {
	lib := &fakeLibraryService{err: common.ErrAccessDeniedError}
	mux := http.NewServeMux()
	mux.Handle("GET /media/{user_id}/{filename}", NewMediaHandler(lib, discardLogger()))

	req := httptest.NewRequest(http.MethodGet, "/media/u1/%2E%2E%2Fu2%2Fsecret.mp4", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestMediaHandlerNotFound(t *testing.T) {
	lib := &fakeLibraryService{err: common.ErrFileNotFoundError}
	mux := http.NewServeMux()
	mux.Handle("GET /media/{user_id}/{filename}", NewMediaHandler(lib, discardLogger()))

	req := httptest.NewRequest(http.MethodGet, "/media/u1/nope.mp4", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestMediaHandlerServesContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/downloads/u1/clip.mp4", []byte("video-bytes"), 0o644))

	mux := http.NewServeMux()
	mux.Handle("GET /media/{user_id}/{filename}", NewMediaHandler(&fakeLibraryService{fs: fs}, discardLogger()))

	req := httptest.NewRequest(http.MethodGet, "/media/u1/clip.mp4", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "video-bytes", w.Body.String())
	require.Equal(t, "video/mp4", w.Header().Get("Content-Type"))
}

func TestListDownloadsHandler(t *testing.T) {
	lib := &fakeLibraryService{files: []*entity.MediaFile{
		{Filename: "a.mp4", Path: "downloads/u1/a.mp4", Size: 10},
	}}
	mux := http.NewServeMux()
	mux.Handle("GET /downloads/{user_id}", NewListDownloadsHandler(lib, discardLogger()))

	req := httptest.NewRequest(http.MethodGet, "/downloads/u1", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string][]*entity.MediaFile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp["downloads"], 1)
	require.Equal(t, "a.mp4", resp["downloads"][0].Filename)
}

func TestUploadCookiesHandler(t *testing.T) {
	creds := &fakeCredentialService{upload: &entity.UploadResult{CookieCount: 3, StoriesSupported: true}}
	h := NewUploadCookiesHandler(creds, discardLogger())

	w := postJSON(h, "/upload-cookies", `[{"name": "sessionid", "value": "x"}]`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, true, resp["success"])
	require.Equal(t, true, resp["stories_supported"])
	require.Equal(t, float64(3), resp["cookies_count"])
}

func TestUploadCookiesHandlerMalformed(t *testing.T) {
	creds := &fakeCredentialService{err: fmt.Errorf("%w: bad json", common.ErrMalformedCredentials)}
	h := NewUploadCookiesHandler(creds, discardLogger())

	w := postJSON(h, "/upload-cookies", "junk")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateSessionHandler(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		status int
	}{
		{"ok", nil, http.StatusOK},
		{"no cookies", fmt.Errorf("%w: none", common.ErrAuthRequired), http.StatusUnauthorized},
		{"expired", fmt.Errorf("%w: stale", common.ErrAuthExpired), http.StatusUnauthorized},
		{"other", fmt.Errorf("%w: flaky", common.ErrExtractionFailed), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewValidateSessionHandler(&fakeDownloadService{err: tc.err}, discardLogger())
			w := postJSON(h, "/validate-session", "{}")

			require.Equal(t, tc.status, w.Code)

			if tc.err == nil {
				var resp map[string]any
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				require.Equal(t, true, resp["valid"])
				require.Equal(t, "instagram", resp["username"])
			}
		})
	}
}

func TestAuthStatusHandler(t *testing.T) {
	creds := &fakeCredentialService{status: &entity.AuthStatus{
		Authenticated:  true,
		SessionAgeDays: 5,
		SessionStatus:  entity.SessionFresh,
	}}
	h := NewAuthStatusHandler(creds, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	w := httptest.NewRecorder()
	h(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, true, resp["authenticated"])
	require.Equal(t, true, resp["storiesSupported"])
	require.Equal(t, "fresh", resp["session_status"])
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"http://localhost:3000"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/download", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSUnknownOrigin(t *testing.T) {
	h := CORS([]string{"http://localhost:3000"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
