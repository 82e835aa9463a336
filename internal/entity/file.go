package entity

// MediaFile represents a single downloaded file within a user's library.
type MediaFile struct {
	Filename string  `json:"filename"`
	Path     string  `json:"path"`
	Size     int64   `json:"size"`
	Created  float64 `json:"created"`
}
