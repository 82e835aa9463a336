// Package credentials stores the upstream session cookies in the two forms
// the service needs: the structured JSON file uploaded by the frontend and
// the line-oriented Netscape file the extraction tools consume. It also owns
// the persisted session status record.
package credentials

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"instascrape/internal/common"
	"instascrape/internal/config"
	"instascrape/internal/entity"
)

const (
	storageName = "credentials"

	jsonFileName     = "session_cookies.json"
	netscapeFileName = "instagram_cookies.txt"
	statusFileName   = "session_status.json"

	sessionCookieName = "sessionid"
	defaultDomain     = ".instagram.com"

	ageFresh = 14
	ageAging = 21
	ageOld   = 30
)

type Store struct {
	fs  afero.Fs
	dir string
	log *slog.Logger

	// Guards whole-file replaces. Reads go without it, a reader either sees
	// the old file or the new one thanks to the temp-then-rename discipline.
	mu sync.Mutex
}

func New(cfg *config.CredentialsConfig, log *slog.Logger) *Store {
	return NewWithFS(afero.NewOsFs(), cfg, log)
}

func NewWithFS(fs afero.Fs, cfg *config.CredentialsConfig, log *slog.Logger) *Store {
	return &Store{
		fs:  fs,
		dir: cfg.Dir,
		log: log.With(slog.String("storage", storageName)),
	}
}

// Load returns the path of a cookie file usable by the extraction tools.
// The Netscape file is the fast path. A structured JSON file is converted
// on first use so subsequent calls hit the fast path. Conversion problems
// never escape this boundary, they degrade to "no credentials".
func (s *Store) Load() (string, bool) {
	netscapePath := filepath.Join(s.dir, netscapeFileName)
	if ok, _ := afero.Exists(s.fs, netscapePath); ok {
		return netscapePath, true
	}

	jsonPath := filepath.Join(s.dir, jsonFileName)
	raw, err := afero.ReadFile(s.fs, jsonPath)
	if err != nil {
		return "", false
	}

	cookies, err := parseCookies(raw)
	if err != nil {
		s.log.Error("Cannot parse structured cookie file", slog.Any("error", err))

		return "", false
	}

	if !hasSessionID(cookies) {
		s.log.Warn("Cookie file has no sessionid, authenticated downloads may fail")
	}

	if err := s.writeFile(netscapePath, toNetscape(cookies)); err != nil {
		s.log.Error("Cannot write converted cookie file", slog.Any("error", err))

		return "", false
	}

	return netscapePath, true
}

// Upload persists the structured form verbatim, regenerates the Netscape
// form and resets the session status to valid.
func (s *Store) Upload(raw []byte) (*entity.UploadResult, error) {
	cookies, err := parseCookies(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedCredentials, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create credentials dir: %w", err)
	}

	if err := s.writeFileLocked(filepath.Join(s.dir, jsonFileName), raw); err != nil {
		return nil, fmt.Errorf("cannot save cookie file: %w", err)
	}

	if err := s.writeFileLocked(filepath.Join(s.dir, netscapeFileName), toNetscape(cookies)); err != nil {
		return nil, fmt.Errorf("cannot save converted cookie file: %w", err)
	}

	st := &entity.SessionStatus{
		LastValidation: time.Now().Format(time.RFC3339),
		IsValid:        true,
	}
	if err := s.writeSessionStatusLocked(st); err != nil {
		s.log.Error("Cannot reset session status", slog.Any("error", err))
	}

	return &entity.UploadResult{
		CookieCount:      len(cookies),
		StoriesSupported: hasSessionID(cookies),
	}, nil
}

// MarkInvalid records an authentication-pattern failure. Called only when
// credentials were actually supplied to the failing operation.
func (s *Store) MarkInvalid(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &entity.SessionStatus{
		LastValidation: time.Now().Format(time.RFC3339),
		IsValid:        false,
		LastError:      reason,
	}

	if err := s.writeSessionStatusLocked(st); err != nil {
		s.log.Error("Cannot mark session invalid", slog.Any("error", err))

		return
	}

	s.log.Info("Marked session as invalid", slog.String("reason", reason))
}

// Status derives the credential state from file modification time and the
// persisted session status. An invalid-status marker without credential
// files is meaningless and gets purged.
func (s *Store) Status() *entity.AuthStatus {
	mtime, ok := s.credentialsMTime()
	if !ok {
		s.purgeSessionStatus()

		return &entity.AuthStatus{SessionStatus: entity.SessionUnknown}
	}

	ageDays := int(time.Since(mtime).Hours() / 24)

	st := &entity.AuthStatus{
		Authenticated:  true,
		SessionAgeDays: ageDays,
	}

	switch {
	case ageDays < ageFresh:
		st.SessionStatus = entity.SessionFresh
	case ageDays < ageAging:
		st.SessionStatus = entity.SessionAging
		st.Warning = "Session is getting old, consider refreshing your cookies soon"
	case ageDays < ageOld:
		st.SessionStatus = entity.SessionOld
		st.Warning = "Session is old and may stop working, refresh your cookies"
	default:
		st.SessionStatus = entity.SessionExpired
		st.Warning = "Session is expired, upload fresh cookies"
	}

	if sess, ok := s.sessionStatus(); ok && !sess.IsValid {
		st.SessionStatus = entity.SessionExpired
		st.Warning = "Session was rejected by Instagram, upload fresh cookies"
		if sess.LastError != "" {
			st.Warning = sess.LastError
		}
	}

	return st
}

func (s *Store) credentialsMTime() (time.Time, bool) {
	for _, name := range []string{jsonFileName, netscapeFileName} {
		if fi, err := s.fs.Stat(filepath.Join(s.dir, name)); err == nil {
			return fi.ModTime(), true
		}
	}

	return time.Time{}, false
}

func (s *Store) sessionStatus() (*entity.SessionStatus, bool) {
	raw, err := afero.ReadFile(s.fs, filepath.Join(s.dir, statusFileName))
	if err != nil {
		return nil, false
	}

	var st entity.SessionStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		s.log.Error("Cannot parse session status file", slog.Any("error", err))

		return nil, false
	}

	return &st, true
}

func (s *Store) purgeSessionStatus() {
	path := filepath.Join(s.dir, statusFileName)
	if ok, _ := afero.Exists(s.fs, path); !ok {
		return
	}

	if err := s.fs.Remove(path); err != nil {
		s.log.Warn("Cannot purge stale session status", slog.Any("error", err))

		return
	}

	s.log.Info("Purged stale session status without credentials")
}

func (s *Store) writeSessionStatusLocked(st *entity.SessionStatus) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	return s.writeFileLocked(filepath.Join(s.dir, statusFileName), data)
}

func (s *Store) writeFile(path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeFileLocked(path, data)
}

// writeFileLocked replaces the file as a whole: write a temp file next to
// the target, then rename over it.
func (s *Store) writeFileLocked(path string, data []byte) error {
	tmp := path + ".tmp"

	if err := afero.WriteFile(s.fs, tmp, data, 0o600); err != nil {
		return err
	}

	if err := s.fs.Rename(tmp, path); err != nil {
		return err
	}

	return nil
}
