package download

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyExtractionError(t *testing.T) {
	testCases := []struct {
		name string
		text string
		kind errorKind
	}{
		{
			name: "login required",
			text: "ERROR: [Instagram] Login required to access this content",
			kind: errKindAuthExpired,
		},
		{
			name: "cookies hint",
			text: "ERROR: use --cookies-from-browser or --cookies for the authentication",
			kind: errKindAuthExpired,
		},
		{
			name: "carousel",
			text: "ERROR: [Instagram] ABC: There is no video in this post",
			kind: errKindCarouselUnsupported,
		},
		{
			name: "no formats",
			text: "ERROR: No video formats found!",
			kind: errKindCarouselUnsupported,
		},
		{
			name: "network",
			text: "ERROR: unable to download webpage: timed out",
			kind: errKindOther,
		},
		{
			name: "empty",
			text: "",
			kind: errKindOther,
		},
		{
			// Both sets could match, the carousel fallback must still be
			// attempted rather than short-circuited by an auth failure.
			name: "carousel wins over auth",
			text: "There is no video in this post, login required",
			kind: errKindCarouselUnsupported,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.kind, classifyExtractionError(tc.text))
		})
	}
}
