package entity

// ExtractOptions carries everything one extractor invocation needs. A fresh
// value is built per run, there is no process-wide extractor state.
type ExtractOptions struct {
	URL           string
	OutputDir     string
	DownloadID    string
	CookieFile    string
	SkipDownload  bool
	FlatPlaylist  bool
	PlaylistItems string
}

// MediaEntry identifies one member of a multi-item post as reported by the
// primary extractor.
type MediaEntry struct {
	ID        string `json:"id"`
	DisplayID string `json:"display_id"`
	URL       string `json:"url"`
	PageURL   string `json:"webpage_url"`
}

// MediaInfo is the structured metadata of the primary extractor.
type MediaInfo struct {
	Type          string       `json:"_type"`
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	LikeCount     int64        `json:"like_count"`
	Timestamp     int64        `json:"timestamp"`
	Uploader      string       `json:"uploader"`
	PlaylistCount int          `json:"playlist_count"`
	Entries       []MediaEntry `json:"entries"`
}

// ExtractResult is the outcome of a primary extractor run: metadata plus the
// files the run wrote, all carrying the run's download identifier prefix.
type ExtractResult struct {
	Info  *MediaInfo
	Files []string
}

// ReconcileResult assigns semantic roles to the files of one run. All names
// are base names inside the run's output directory.
type ReconcileResult struct {
	Video      string
	Image      string
	Thumbnail  string
	Files      []string
	MediaCount int
}
