package entity

// ContentMetadata is the result of one successful download run. It is
// assembled once by the download service and never mutated afterwards.
type ContentMetadata struct {
	ID            string   `json:"id"`
	URL           string   `json:"url"`
	Caption       string   `json:"caption"`
	Date          string   `json:"date"`
	Likes         int64    `json:"likes"`
	IsVideo       bool     `json:"is_video"`
	FilePath      string   `json:"file_path"`
	ThumbnailPath string   `json:"thumbnail_path,omitempty"`
	IsCarousel    bool     `json:"is_carousel,omitempty"`
	CarouselFiles []string `json:"carousel_files,omitempty"`
}
