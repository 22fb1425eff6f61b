// Package schedule registers recurring tasks on a robfig/cron scheduler.
//
//	s := schedule.New()
//	s.Daily().At("08:30").Name("rates:sync").WithoutOverlapping().Run(syncRates)
//	s.Every(5).Minutes().Name("stock:reposition-sweep").Run(sweep)
//	s.Cron("0 3 * * *").Name("tokens:prune").Run(prune)
//	s.Start(ctx) // blocks until ctx is cancelled
package schedule

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shashiranjanraj/ferremas/pkg/logger"
)

// Task is the body of a scheduled entry.
type Task func(ctx context.Context) error

type entry struct {
	name      string
	spec      string
	task      Task
	noOverlap bool
	timeout   time.Duration
}

// Scheduler collects entries and runs them on a cron.Cron.
type Scheduler struct {
	mu       sync.Mutex
	entries  map[string]*entry
	location *time.Location
}

// New returns an empty scheduler in the local time zone.
func New() *Scheduler {
	return &Scheduler{entries: map[string]*entry{}, location: time.Local}
}

// In sets the time zone cron expressions are evaluated in.
func (s *Scheduler) In(loc *time.Location) *Scheduler {
	s.location = loc
	return s
}

// Builder configures one entry before Run registers it.
type Builder struct {
	s *Scheduler
	e *entry
}

func (s *Scheduler) Cron(spec string) *Builder {
	return &Builder{s: s, e: &entry{spec: spec}}
}

func (s *Scheduler) EveryMinute() *Builder { return s.Cron("@every 1m") }
func (s *Scheduler) Hourly() *Builder      { return s.Cron("@hourly") }
func (s *Scheduler) Daily() *Builder       { return s.Cron("0 0 * * *") }

// Every starts an interval spec: s.Every(15).Minutes().
func (s *Scheduler) Every(n int) *Interval { return &Interval{s: s, n: n} }

type Interval struct {
	s *Scheduler
	n int
}

func (i *Interval) every(unit time.Duration) *Builder {
	return i.s.Cron("@every " + (time.Duration(i.n) * unit).String())
}

func (i *Interval) Seconds() *Builder { return i.every(time.Second) }
func (i *Interval) Minutes() *Builder { return i.every(time.Minute) }
func (i *Interval) Hours() *Builder   { return i.every(time.Hour) }

// At pins a Daily entry to HH:MM. Invalid input leaves the spec unchanged
// and Run reports the error.
func (b *Builder) At(hhmm string) *Builder {
	h, m, ok := strings.Cut(hhmm, ":")
	hour, err1 := strconv.Atoi(h)
	minute, err2 := strconv.Atoi(m)
	if !ok || err1 != nil || err2 != nil || hour > 23 || minute > 59 || hour < 0 || minute < 0 {
		b.e.spec = "invalid time " + hhmm
		return b
	}
	b.e.spec = fmt.Sprintf("%d %d * * *", minute, hour)
	return b
}

func (b *Builder) Name(name string) *Builder {
	b.e.name = name
	return b
}

// WithoutOverlapping skips a tick while the previous run is still going.
func (b *Builder) WithoutOverlapping() *Builder {
	b.e.noOverlap = true
	return b
}

// Timeout bounds each run's context.
func (b *Builder) Timeout(d time.Duration) *Builder {
	b.e.timeout = d
	return b
}

// Run validates the spec and registers the task.
func (b *Builder) Run(task Task) error {
	if _, err := cron.ParseStandard(b.e.spec); err != nil {
		return fmt.Errorf("schedule: %q: %w", b.e.spec, err)
	}
	b.e.task = task

	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if b.e.name == "" {
		b.e.name = fmt.Sprintf("task-%d", len(b.s.entries)+1)
	}
	if _, dup := b.s.entries[b.e.name]; dup {
		return fmt.Errorf("schedule: duplicate task %q", b.e.name)
	}
	b.s.entries[b.e.name] = b.e
	return nil
}

// Start runs the cron loop until ctx is cancelled, then waits for running
// tasks to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithChain(cron.Recover(cronLogger{})),
	)

	s.mu.Lock()
	for _, e := range s.entries {
		e := e
		var job cron.Job = cron.FuncJob(func() { s.invoke(ctx, e) })
		if e.noOverlap {
			job = cron.NewChain(cron.SkipIfStillRunning(cronLogger{})).Then(job)
		}
		if _, err := c.AddJob(e.spec, job); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("schedule: add %s: %w", e.name, err)
		}
	}
	n := len(s.entries)
	s.mu.Unlock()

	c.Start()
	logger.Info("schedule: scheduler started", "tasks", n)

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("schedule: scheduler stopped")
	return nil
}

// RunNow executes one task immediately, e.g. from the CLI.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("schedule: unknown task %q", name)
	}
	return s.invoke(ctx, e)
}

func (s *Scheduler) invoke(ctx context.Context, e *entry) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	err := e.task(ctx)
	if err != nil {
		logger.Error("schedule: task failed", "task", e.name, "error", err, "duration", time.Since(start))
		return err
	}
	logger.Info("schedule: task done", "task", e.name, "duration", time.Since(start))
	return nil
}

// List returns "name [spec]" for every entry, sorted by name.
func (s *Scheduler) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, fmt.Sprintf("%s  [%s]", e.name, e.spec))
	}
	sort.Strings(out)
	return out
}

// cronLogger adapts pkg/logger to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
