package service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/jasonptoups/truckee-calendar/internal/domain"
)

// Fetcher retrieves and parses one feed
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*ical.Calendar, error)
}

// RunRecorder persists run outcomes
type RunRecorder interface {
	SaveRun(report *domain.RunReport) error
}

// RunNotifier announces finished runs
type RunNotifier interface {
	NotifyRun(report *domain.RunReport) error
}

// MergeOptions configures the merged calendar
type MergeOptions struct {
	OutputPath   string
	ProductID    string
	CalendarName string
	Timezone     string
	SourceName   string
}

// MergeService fetches the configured feeds one at a time and writes the
// merged calendar
type MergeService struct {
	fetcher  Fetcher
	opts     MergeOptions
	status   *log.Logger
	errors   *log.Logger
	recorder RunRecorder
	notifier RunNotifier
	now      func() time.Time
}

// NewMergeService creates a merge service. Progress goes to status and
// per-feed or fatal errors go to errors.
func NewMergeService(fetcher Fetcher, opts MergeOptions, status, errors *log.Logger) *MergeService {
	return &MergeService{
		fetcher: fetcher,
		opts:    opts,
		status:  status,
		errors:  errors,
		now:     time.Now,
	}
}

// SetRecorder enables run history
func (s *MergeService) SetRecorder(r RunRecorder) {
	s.recorder = r
}

// SetNotifier enables run notifications
func (s *MergeService) SetNotifier(n RunNotifier) {
	s.notifier = n
}

// Run performs one merge of entries. Feed failures are logged and excluded.
// An output failure or a ctx cancelled before the output is written is
// returned as an error, in which case nothing is written, recorded or sent.
func (s *MergeService) Run(ctx context.Context, entries []string) (*domain.RunReport, error) {
	urls := domain.CleanFeeds(entries)

	report := &domain.RunReport{
		ID:         uuid.NewString(),
		StartedAt:  s.now(),
		OutputPath: s.opts.OutputPath,
		Total:      len(urls),
		Feeds:      make([]domain.FeedResult, 0, len(urls)),
	}

	s.status.Printf("Starting calendar merge at %s", report.StartedAt.Format("2006-01-02 15:04:05"))
	s.status.Printf("Processing %d calendars...", len(urls))

	meta := NewCalendarMeta(s.opts.ProductID, s.opts.CalendarName, s.opts.Timezone, s.opts.SourceName, len(urls))
	merger := NewMerger(meta)

	for i, url := range urls {
		if ctx.Err() != nil {
			break
		}
		s.status.Printf("[%d/%d]", i+1, len(urls))
		result := s.fetch(ctx, url)
		merger.Add(&result)
		if result.OK() {
			s.status.Printf("  Added %d events", result.Events)
		}
		report.Feeds = append(report.Feeds, result)
	}

	// an interrupted run leaves the previous output in place
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("merge interrupted: %w", err)
	}

	report.Events = merger.Events()
	report.Succeeded = merger.Sources()

	size, err := s.writeOutput(merger)
	if err != nil {
		return nil, err
	}
	report.OutputSize = size
	report.FinishedAt = s.now()

	if s.recorder != nil {
		if err := s.recorder.SaveRun(report); err != nil {
			s.errors.Printf("Error saving run history: %v", err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyRun(report); err != nil {
			s.errors.Printf("Error sending run notification: %v", err)
		}
	}

	return report, nil
}

// fetch never returns an error; failures are carried in the result
func (s *MergeService) fetch(ctx context.Context, url string) domain.FeedResult {
	s.status.Printf("  Fetching: %s", url)

	start := s.now()
	cal, err := s.fetcher.Fetch(ctx, url)
	if err == nil && cal == nil {
		err = fmt.Errorf("no calendar returned")
	}
	result := domain.FeedResult{
		URL:      url,
		Calendar: cal,
		Err:      err,
		Duration: s.now().Sub(start),
	}
	if err != nil {
		result.Calendar = nil
		s.errors.Printf("  Error fetching %s: %v", url, err)
	}
	return result
}

// writeOutput encodes the calendar fully before touching the output file,
// then overwrites it in place.
func (s *MergeService) writeOutput(merger *Merger) (int64, error) {
	var buf bytes.Buffer
	if err := merger.Encode(&buf); err != nil {
		return 0, fmt.Errorf("encode calendar: %w", err)
	}

	if err := os.WriteFile(s.opts.OutputPath, buf.Bytes(), 0644); err != nil {
		return 0, fmt.Errorf("write output: %w", err)
	}

	fi, err := os.Stat(s.opts.OutputPath)
	if err != nil {
		return 0, fmt.Errorf("stat output: %w", err)
	}
	return fi.Size(), nil
}

// PrintReport writes the run summary to the status stream
func (s *MergeService) PrintReport(report *domain.RunReport) {
	s.status.Println("SUCCESS!")
	s.status.Println(report.Summary())
	s.status.Printf("Output saved to: %s", report.OutputPath)
	s.status.Printf("File size: %s bytes", report.FormatSize())
}
