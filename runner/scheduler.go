package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RunFunc deploys one project. The scheduler and the API both go through
// it so runs are recorded and reported the same way.
type RunFunc func(ctx context.Context, cfg ProjectConfig) error

// Scheduler manages automatic pipeline runs based on schedules
type Scheduler struct {
	projects *ProjectsConfig
	run      RunFunc
	guard    *Guard
	log      *slog.Logger
	interval time.Duration
	now      func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	lastRuns map[string]time.Time // last trigger per project
}

// NewScheduler creates a new scheduler instance. guard may be shared with
// other callers of run; a nil guard gets a private one.
func NewScheduler(projects *ProjectsConfig, guard *Guard, run RunFunc, log *slog.Logger) *Scheduler {
	if guard == nil {
		guard = NewGuard()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		projects: projects,
		run:      run,
		guard:    guard,
		log:      log.With("component", "scheduler"),
		interval: time.Minute,
		now:      time.Now,
		stopChan: make(chan struct{}),
		lastRuns: make(map[string]time.Time),
	}
}

// Start runs the scheduler loop until ctx is done or Stop is called. It
// checks the schedules immediately and then once per minute.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("scheduler started", "projects", len(s.scheduled()))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.tick(ctx)
	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopChan:
			s.log.Info("scheduler stopped")
			return
		case <-ctx.Done():
			s.log.Info("scheduler stopped", "reason", ctx.Err())
			return
		}
	}
}

// Stop ends the loop and waits for triggered runs to return.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

func (s *Scheduler) scheduled() []ProjectConfig {
	var out []ProjectConfig
	for _, p := range s.projects.Projects {
		if p.Schedule != nil {
			out = append(out, p)
		}
	}
	return out
}

// tick triggers every project whose schedule is due and which is not
// already being deployed.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()
	for _, project := range s.scheduled() {
		s.mu.Lock()
		lastRun := s.lastRuns[project.Name]
		s.mu.Unlock()

		due, err := project.Schedule.due(now, lastRun)
		if err != nil {
			s.log.Warn("invalid schedule", "project", project.Name, "error", err)
			continue
		}
		if !due {
			continue
		}
		if !s.guard.TryAcquire(project.Name) {
			s.log.Info("schedule skipped, project is already running", "project", project.Name)
			continue
		}

		s.mu.Lock()
		s.lastRuns[project.Name] = now
		s.mu.Unlock()

		s.wg.Add(1)
		go func(p ProjectConfig) {
			defer s.wg.Done()
			defer s.guard.Release(p.Name)
			s.execute(ctx, p)
		}(project)
	}
}

func (s *Scheduler) execute(ctx context.Context, p ProjectConfig) {
	s.log.Info("schedule triggered", "project", p.Name, "schedule", p.Schedule.String())
	if err := s.run(ctx, p); err != nil {
		s.log.Error("scheduled run failed", "project", p.Name, "error", err)
		return
	}
	s.log.Info("scheduled run completed", "project", p.Name)
}

// Validate checks that exactly one of At and Every is set and parses.
func (s *Schedule) Validate() error {
	switch {
	case s.At == "" && s.Every == "":
		return errors.New(`one of "at" or "every" is required`)
	case s.At != "" && s.Every != "":
		return errors.New(`"at" and "every" are mutually exclusive`)
	case s.At != "":
		_, _, err := parseAtTime(s.At)
		return err
	default:
		_, err := parseInterval(s.Every)
		return err
	}
}

func (s *Schedule) String() string {
	if s.At != "" {
		return "at " + s.At
	}
	return "every " + s.Every
}

// due reports whether a schedule last triggered at lastRun should trigger
// at now.
func (s *Schedule) due(now, lastRun time.Time) (bool, error) {
	if s.At != "" {
		hour, minute, err := parseAtTime(s.At)
		if err != nil {
			return false, err
		}
		if now.Hour() != hour || now.Minute() != minute {
			return false, nil
		}
		// once per day at this time
		return lastRun.IsZero() || now.Sub(lastRun) >= 23*time.Hour, nil
	}

	interval, err := parseInterval(s.Every)
	if err != nil {
		return false, err
	}
	return lastRun.IsZero() || now.Sub(lastRun) >= interval, nil
}

// parseAtTime parses "HH:MM" format
func parseAtTime(at string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(at), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", at)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", at)
	}

	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", at)
	}

	return hour, minute, nil
}

// parseInterval parses duration strings like "1h", "30m", "1h30m". The
// scheduler ticks once a minute, so shorter intervals are rejected.
func parseInterval(every string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(every))
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", every, err)
	}
	if d < time.Minute {
		return 0, fmt.Errorf("interval %q is shorter than one minute", every)
	}
	return d, nil
}
