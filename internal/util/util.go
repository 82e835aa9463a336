package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewDownloadID returns the per-run identifier used as a filename prefix.
// Dashes are stripped so the prefix stays a single filename-safe token.
func NewDownloadID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
