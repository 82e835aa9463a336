package classify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name     string
		url      string
		valid    bool
		category Category
		subItem  string
	}{
		{
			name:     "post",
			url:      "https://www.instagram.com/p/Cxyz123_aB/",
			valid:    true,
			category: CategoryStandard,
		},
		{
			name:     "reel",
			url:      "https://instagram.com/reel/Cab-12345/",
			valid:    true,
			category: CategoryStandard,
		},
		{
			name:     "reels plural",
			url:      "https://www.instagram.com/reels/Cab12345",
			valid:    true,
			category: CategoryStandard,
		},
		{
			name:     "igtv",
			url:      "https://www.instagram.com/tv/Cdef6789/",
			valid:    true,
			category: CategoryStandard,
		},
		{
			name:     "story",
			url:      "https://www.instagram.com/stories/some.user_name/",
			valid:    true,
			category: CategoryEphemeral,
		},
		{
			name:     "story sub item",
			url:      "https://www.instagram.com/stories/someuser/3141592653589793238/",
			valid:    true,
			category: CategoryEphemeral,
			subItem:  "3141592653589793238",
		},
		{
			name: "profile page",
			url:  "https://www.instagram.com/someuser/",
		},
		{
			name: "wrong host",
			url:  "https://example.com/p/Cxyz123/",
		},
		{
			name: "empty",
			url:  "",
		},
		{
			name: "post path without id",
			url:  "https://www.instagram.com/p/",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := Classify(tc.url)

			require.Equal(t, tc.valid, res.Valid)
			if tc.valid {
				require.Equal(t, tc.category, res.Category)
				require.Equal(t, tc.subItem, res.SubItemID)
			}
		})
	}
}
