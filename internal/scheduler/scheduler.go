package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RunFunc performs one merge
type RunFunc func(ctx context.Context) error

// Scheduler regenerates the merged calendar on a cron schedule
type Scheduler struct {
	cron     *cron.Cron
	spec     string
	location *time.Location
	run      RunFunc

	mu      sync.Mutex
	stopped bool
	running sync.WaitGroup
}

// New creates a scheduler for spec, a standard five-field cron expression
// evaluated in location. A run that is still going when the next one is due
// causes that tick to be skipped.
func New(spec string, location *time.Location, run RunFunc) *Scheduler {
	c := cron.New(
		cron.WithLocation(location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &Scheduler{
		cron:     c,
		spec:     spec,
		location: location,
		run:      run,
	}
}

// Validate reports whether spec is a usable schedule
func Validate(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return nil
}

// Start runs once immediately, then on every tick until ctx is done or Stop
// is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("add merge job: %w", err)
	}

	s.runOnce(ctx)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.cron.Start()
	s.mu.Unlock()

	log.Printf("Scheduler started (TZ: %s, schedule: %s, next run: %s)",
		s.location, s.spec, s.Next().Format("2006-01-02 15:04:05"))

	<-ctx.Done()
	return nil
}

// Stop halts the schedule and waits for a running merge, including the one
// Start performs immediately, to finish. No merge begins after Stop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.running.Wait()
	log.Println("Scheduler stopped")
}

// Next returns the time of the next scheduled run, zero before Start
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) runOnce(ctx context.Context) {
	s.mu.Lock()
	if s.stopped || ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Scheduled merge panicked: %v", r)
		}
	}()
	if err := s.run(ctx); err != nil {
		log.Printf("Scheduled merge failed: %v", err)
	}
}
