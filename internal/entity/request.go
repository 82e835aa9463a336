package entity

// DownloadRequest is the immutable input of one download run.
type DownloadRequest struct {
	URL    string `json:"url"`
	UserID string `json:"user_id"`
}
