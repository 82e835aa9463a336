package credentials

import (
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"instascrape/internal/common"
	"instascrape/internal/config"
	"instascrape/internal/entity"
)

const testDir = "/creds"

var validCookies = `[
	{"domain": ".instagram.com", "path": "/", "name": "sessionid", "value": "abc123", "secure": true},
	{"domain": ".instagram.com", "path": "/", "name": "csrftoken", "value": "tok", "secure": true}
]`

func newTestStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	return NewWithFS(fs, &config.CredentialsConfig{Dir: testDir}, log), fs
}

func TestUploadThenLoadRoundTrip(t *testing.T) {
	s, fs := newTestStore(t)

	res, err := s.Upload([]byte(validCookies))
	require.NoError(t, err)
	require.True(t, res.StoriesSupported)
	require.Equal(t, 2, res.CookieCount)

	path, ok := s.Load()
	require.True(t, ok)
	require.Equal(t, filepath.Join(testDir, netscapeFileName), path)

	content, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	require.Contains(t, string(content), "sessionid\tabc123")
	require.Contains(t, string(content), "# Netscape HTTP Cookie File")
}

func TestUploadWithoutSessionID(t *testing.T) {
	s, _ := newTestStore(t)

	res, err := s.Upload([]byte(`[{"name": "csrftoken", "value": "tok"}]`))
	require.NoError(t, err)
	require.False(t, res.StoriesSupported)
}

func TestUploadMalformed(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Upload([]byte("not json"))
	require.ErrorIs(t, err, common.ErrMalformedCredentials)

	_, err = s.Upload([]byte("[]"))
	require.ErrorIs(t, err, common.ErrMalformedCredentials)
}

func TestConversionIsIdempotent(t *testing.T) {
	cookies := []entity.Cookie{
		{Domain: ".instagram.com", Path: "/", Name: "sessionid", Value: "abc", Secure: true},
		{Name: "mid", Value: "xyz"},
	}

	first := toNetscape(cookies)
	second := toNetscape(cookies)
	require.Equal(t, first, second)
}

func TestLoadConvertsStructuredFile(t *testing.T) {
	s, fs := newTestStore(t)

	require.NoError(t, afero.WriteFile(fs,
		filepath.Join(testDir, jsonFileName), []byte(validCookies), 0o600))

	path, ok := s.Load()
	require.True(t, ok)
	require.Equal(t, filepath.Join(testDir, netscapeFileName), path)

	// Converted file persists, so the next call hits the fast path.
	exists, _ := afero.Exists(fs, filepath.Join(testDir, netscapeFileName))
	require.True(t, exists)
}

func TestLoadAbsent(t *testing.T) {
	s, _ := newTestStore(t)

	_, ok := s.Load()
	require.False(t, ok)
}

func TestLoadMalformedStructuredFile(t *testing.T) {
	s, fs := newTestStore(t)

	require.NoError(t, afero.WriteFile(fs,
		filepath.Join(testDir, jsonFileName), []byte("garbage"), 0o600))

	_, ok := s.Load()
	require.False(t, ok)
}

func TestStatusThresholds(t *testing.T) {
	testCases := []struct {
		name    string
		ageDays int
		state   entity.SessionState
	}{
		{"fresh", 3, entity.SessionFresh},
		{"aging", 15, entity.SessionAging},
		{"old", 25, entity.SessionOld},
		{"expired", 40, entity.SessionExpired},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, fs := newTestStore(t)

			_, err := s.Upload([]byte(validCookies))
			require.NoError(t, err)

			mtime := time.Now().Add(-time.Duration(tc.ageDays) * 24 * time.Hour)
			require.NoError(t, fs.Chtimes(filepath.Join(testDir, jsonFileName), mtime, mtime))
			require.NoError(t, fs.Chtimes(filepath.Join(testDir, netscapeFileName), mtime, mtime))

			st := s.Status()
			require.True(t, st.Authenticated)
			require.Equal(t, tc.state, st.SessionStatus)
			require.Equal(t, tc.ageDays, st.SessionAgeDays)
		})
	}
}

func TestStatusInvalidSessionOverridesAge(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Upload([]byte(validCookies))
	require.NoError(t, err)

	s.MarkInvalid("Session expired or authentication invalid")

	st := s.Status()
	require.True(t, st.Authenticated)
	require.Equal(t, entity.SessionExpired, st.SessionStatus)
	require.NotEmpty(t, st.Warning)
}

func TestStatusPurgesStaleMarkerWithoutCredentials(t *testing.T) {
	s, fs := newTestStore(t)

	// An invalid marker left behind after credentials were removed.
	raw, err := json.Marshal(&entity.SessionStatus{IsValid: false, LastError: "expired"})
	require.NoError(t, err)
	require.NoError(t, fs.MkdirAll(testDir, 0o755))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(testDir, statusFileName), raw, 0o600))

	st := s.Status()
	require.False(t, st.Authenticated)
	require.Equal(t, entity.SessionUnknown, st.SessionStatus)

	exists, _ := afero.Exists(fs, filepath.Join(testDir, statusFileName))
	require.False(t, exists)
}

func TestUploadResetsInvalidSession(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Upload([]byte(validCookies))
	require.NoError(t, err)
	s.MarkInvalid("expired")

	_, err = s.Upload([]byte(validCookies))
	require.NoError(t, err)

	st := s.Status()
	require.Equal(t, entity.SessionFresh, st.SessionStatus)
}
