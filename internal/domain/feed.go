package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

// ErrNoFeeds is returned when the source list has no usable entry
var ErrNoFeeds = errors.New("no calendar URLs configured")

// IsFeedEntry reports whether a configured entry names a feed.
// Blank entries and "#" comments are placeholders.
func IsFeedEntry(entry string) bool {
	s := strings.TrimSpace(entry)
	return s != "" && !strings.HasPrefix(s, "#")
}

// ValidateFeeds checks that at least one entry names a feed
func ValidateFeeds(entries []string) error {
	for _, e := range entries {
		if IsFeedEntry(e) {
			return nil
		}
	}
	return ErrNoFeeds
}

// CleanFeeds returns the trimmed feed URLs in configured order
func CleanFeeds(entries []string) []string {
	urls := make([]string, 0, len(entries))
	for _, e := range entries {
		if IsFeedEntry(e) {
			urls = append(urls, strings.TrimSpace(e))
		}
	}
	return urls
}

// FeedResult is the outcome of fetching one feed
type FeedResult struct {
	URL      string
	Calendar *ical.Calendar // nil when the fetch failed
	Err      error
	Events   int // events contributed to the merge
	Duration time.Duration
}

// OK returns true if the feed produced a parsed calendar
func (r *FeedResult) OK() bool {
	return r.Calendar != nil
}

// ErrorText returns the failure description, empty for successful feeds
func (r *FeedResult) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
