package download

import "strings"

// The extractors report failures as free text, so classification is
// substring matching against two fixed phrase sets. Carousel patterns are
// checked first: an expired session and a carousel yt-dlp cannot enumerate
// share vocabulary, and the fallback must still get its chance.
type errorKind int

const (
	errKindOther errorKind = iota
	errKindCarouselUnsupported
	errKindAuthExpired
)

var carouselPatterns = []string{
	"there is no video in this post",
	"no video formats found",
	"image slideshow",
	"empty media response",
	"requested format is not available",
}

var authPatterns = []string{
	"you need to log in",
	"login required",
	"authentication required",
	"session expired",
	"invalid session",
	"unauthorized",
	"this content is unreachable",
	"use --cookies-from-browser",
	"cookies for the authentication",
	"content is not available",
	"login to access",
}

func classifyExtractionError(text string) errorKind {
	lower := strings.ToLower(text)

	for _, p := range carouselPatterns {
		if strings.Contains(lower, p) {
			return errKindCarouselUnsupported
		}
	}

	for _, p := range authPatterns {
		if strings.Contains(lower, p) {
			return errKindAuthExpired
		}
	}

	return errKindOther
}
