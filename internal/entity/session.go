package entity

// SessionState buckets the age of the stored upstream session.
type SessionState string

const (
	SessionFresh   SessionState = "fresh"
	SessionAging   SessionState = "aging"
	SessionOld     SessionState = "old"
	SessionExpired SessionState = "expired"
	SessionUnknown SessionState = "unknown"
)

// SessionStatus is the persisted record of the last upstream interaction.
// A single instance exists per process, stored next to the credential files.
type SessionStatus struct {
	LastValidation string `json:"last_validation"`
	IsValid        bool   `json:"is_valid"`
	LastError      string `json:"last_error,omitempty"`
}

// AuthStatus is the derived credential state surfaced by GET /auth/status.
type AuthStatus struct {
	Authenticated  bool         `json:"authenticated"`
	SessionAgeDays int          `json:"session_age_days"`
	SessionStatus  SessionState `json:"session_status"`
	Warning        string       `json:"warning_message,omitempty"`
}
