package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/jasonptoups/truckee-calendar/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestValidateFeeds(t *testing.T) {
	tests := []struct {
		name    string
		entries []string
		wantErr bool
	}{
		{"nil list", nil, true},
		{"empty list", []string{}, true},
		{"blank and comment", []string{"", "# comment"}, true},
		{"whitespace and indented comment", []string{"   ", "\t# later"}, true},
		{"one url", []string{"https://example.com/a.ics"}, false},
		{"url after placeholders", []string{"", "# c", " https://example.com/a.ics "}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := domain.ValidateFeeds(tt.entries)
			if tt.wantErr {
				assert.True(t, errors.Is(err, domain.ErrNoFeeds))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCleanFeeds(t *testing.T) {
	got := domain.CleanFeeds([]string{
		"",
		"  https://example.com/a.ics  ",
		"# https://example.com/disabled.ics",
		"https://example.com/b.ics",
		"https://example.com/a.ics",
	})

	// duplicates are kept, order is preserved
	assert.Equal(t, []string{
		"https://example.com/a.ics",
		"https://example.com/b.ics",
		"https://example.com/a.ics",
	}, got)
}

func TestRunReport(t *testing.T) {
	assert := assert.New(t)

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	report := &domain.RunReport{
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		OutputSize: 1234567,
		Events:     4,
		Succeeded:  1,
		Total:      2,
		Feeds: []domain.FeedResult{
			{URL: "https://a.example", Err: errors.New("timeout")},
			{URL: "https://b.example", Calendar: ical.NewCalendar(), Events: 4},
		},
	}

	assert.Equal("Merged 4 events from 1/2 calendars", report.Summary())
	assert.Equal("1,234,567", report.FormatSize())
	assert.Equal(1500*time.Millisecond, report.Duration())

	failed := report.Failed()
	if assert.Len(failed, 1) {
		assert.Equal("https://a.example", failed[0].URL)
		assert.Equal("timeout", failed[0].ErrorText())
	}
	assert.Equal("", report.Feeds[1].ErrorText())
}

func TestFormatSize(t *testing.T) {
	for size, want := range map[int64]string{
		0:       "0",
		999:     "999",
		1000:    "1,000",
		123456:  "123,456",
		1000000: "1,000,000",
	} {
		r := &domain.RunReport{OutputSize: size}
		assert.Equal(t, want, r.FormatSize())
	}
}
