package common

import "fmt"

var (
	ErrInvalidURL           = fmt.Errorf("invalid instagram url")
	ErrAuthRequired         = fmt.Errorf("authentication required")
	ErrAuthExpired          = fmt.Errorf("session expired or authentication invalid")
	ErrExtractionFailed     = fmt.Errorf("extraction failed")
	ErrFileNotFoundError    = fmt.Errorf("file not found")
	ErrAccessDeniedError    = fmt.Errorf("access denied")
	ErrNoMediaRetrieved     = fmt.Errorf("no media files retrieved")
	ErrMalformedCredentials = fmt.Errorf("malformed credential file")
)
