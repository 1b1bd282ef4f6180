package domain

import (
	"fmt"
	"strconv"
	"time"
)

// RunReport summarises one merge run
type RunReport struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	OutputPath string
	OutputSize int64
	Events     int
	Succeeded  int
	Total      int
	Feeds      []FeedResult
}

// Failed returns the feeds that were excluded from the merge
func (r *RunReport) Failed() []FeedResult {
	var failed []FeedResult
	for _, f := range r.Feeds {
		if !f.OK() {
			failed = append(failed, f)
		}
	}
	return failed
}

// Duration returns how long the run took
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary returns the one-line event and feed tally
func (r *RunReport) Summary() string {
	return fmt.Sprintf("Merged %d events from %d/%d calendars", r.Events, r.Succeeded, r.Total)
}

// FormatSize returns the output size with thousands separators, e.g. "12,345"
func (r *RunReport) FormatSize() string {
	return groupThousands(r.OutputSize)
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return sign + s
	}

	head := len(s) % 3
	if head == 0 {
		head = 3
	}
	out := s[:head]
	for i := head; i < len(s); i += 3 {
		out += "," + s[i:i+3]
	}
	return sign + out
}

// FeedOutcome is the recorded result of one feed in a past run
type FeedOutcome struct {
	RunID     string
	StartedAt time.Time
	URL       string
	OK        bool
	Events    int
	Error     string
	Duration  time.Duration
}
