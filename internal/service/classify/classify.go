// Package classify validates Instagram URLs and determines what kind of
// content they point at. It is pure, nothing here touches the network or
// the filesystem.
package classify

import "regexp"

type Category string

const (
	CategoryStandard  Category = "standard"
	CategoryEphemeral Category = "ephemeral"
)

// Result describes a classified URL. SubItemID is set only for story URLs
// that address one numeric item of the story collection.
type Result struct {
	Valid     bool
	Category  Category
	SubItemID string
}

var (
	postRegexp  = regexp.MustCompile(`instagram\.com/(?:p|reel|reels|tv)/[A-Za-z0-9_-]+`)
	storyRegexp = regexp.MustCompile(`instagram\.com/stories/[A-Za-z0-9_.-]+(?:/(\d+))?`)
)

// Classify fails closed: any URL not matching a known path shape is invalid
// and the caller must reject it before doing any real work.
func Classify(rawURL string) Result {
	if m := storyRegexp.FindStringSubmatch(rawURL); m != nil {
		return Result{Valid: true, Category: CategoryEphemeral, SubItemID: m[1]}
	}

	if postRegexp.MatchString(rawURL) {
		return Result{Valid: true, Category: CategoryStandard}
	}

	return Result{}
}
