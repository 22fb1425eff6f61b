// Package queue runs background jobs: stock reposition retries, outgoing
// mail and event fan-out.
//
//	type RepositionJob struct{ OrderID uint }
//	func (j *RepositionJob) Handle(ctx context.Context) error { ... }
//
//	queue.Register("stock.reposition", func() queue.Job { return &RepositionJob{svc: inv} })
//	queue.Dispatch(ctx, &RepositionJob{OrderID: 7})
//
// Jobs travel as JSON, so only exported fields survive the trip; the factory
// passed to Register re-attaches dependencies on the worker side.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shashiranjanraj/ferremas/pkg/logger"
	"github.com/shashiranjanraj/ferremas/pkg/metrics"
	"gorm.io/gorm"
)

// Job is a unit of background work.
type Job interface {
	Handle(ctx context.Context) error
}

// Named jobs choose their registry name; others are keyed by %T.
type Named interface {
	JobName() string
}

// Driver is the queue storage backend.
type Driver interface {
	Push(ctx context.Context, payload []byte) error
	Pop(ctx context.Context) ([]byte, error)
}

// DelayedDriver can hold a payload until a point in time.
type DelayedDriver interface {
	PushDelayed(ctx context.Context, payload []byte, delay time.Duration) error
}

// FailedJob is a job that exhausted its retries.
type FailedJob struct {
	Type     string
	Payload  json.RawMessage
	Err      error
	FailedAt time.Time
	Attempts int
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Manager owns a driver, the job registry and the failed-job log.
type Manager struct {
	mu       sync.RWMutex
	driver   Driver
	registry map[string]func() Job
	failed   []FailedJob
	maxRetry int
	backoff  time.Duration
	db       *gorm.DB
}

// NewManager returns a Manager on d with three attempts per job.
func NewManager(d Driver) *Manager {
	return &Manager{
		driver:   d,
		registry: map[string]func() Job{},
		maxRetry: 3,
		backoff:  time.Second,
	}
}

// SetDriver swaps the backend, e.g. to Redis once it is reachable.
func (m *Manager) SetDriver(d Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.driver = d
}

// SetMaxRetry sets the number of attempts per job.
func (m *Manager) SetMaxRetry(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxRetry = n
}

// SetBackoff sets the base wait between attempts (multiplied by attempt).
func (m *Manager) SetBackoff(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backoff = d
}

// Register makes a job type decodable by name.
func (m *Manager) Register(name string, factory func() Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry[name] = factory
}

// Dispatch enqueues job.
func (m *Manager) Dispatch(ctx context.Context, job Job) error {
	env, err := encode(job)
	if err != nil {
		return err
	}
	return m.currentDriver().Push(ctx, env)
}

// DispatchAfter enqueues job once delay has passed. Drivers without delay
// support get a timer goroutine.
func (m *Manager) DispatchAfter(ctx context.Context, job Job, delay time.Duration) error {
	env, err := encode(job)
	if err != nil {
		return err
	}
	d := m.currentDriver()
	if dd, ok := d.(DelayedDriver); ok {
		return dd.PushDelayed(ctx, env, delay)
	}

	time.AfterFunc(delay, func() {
		if err := d.Push(context.Background(), env); err != nil {
			logger.Error("queue: delayed dispatch failed", "error", err)
		}
	})
	return nil
}

// Work runs n workers and blocks until ctx is cancelled.
func (m *Manager) Work(ctx context.Context, n int) error {
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			m.work(ctx)
		}()
	}
	logger.Info("queue: workers started", "count", n)
	wg.Wait()
	return nil
}

func (m *Manager) work(ctx context.Context) {
	for ctx.Err() == nil {
		raw, err := m.currentDriver().Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("queue: pop failed", "error", err)
			sleep(ctx, 500*time.Millisecond)
			continue
		}
		if raw == nil {
			continue
		}
		m.Process(ctx, raw)
	}
}

// Process decodes one envelope and runs it with retries. Exposed for the
// sync driver and for tests.
func (m *Manager) Process(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Error("queue: bad envelope", "error", err)
		return
	}

	m.mu.RLock()
	factory, ok := m.registry[env.Type]
	m.mu.RUnlock()
	if !ok {
		logger.Warn("queue: unregistered job type", "type", env.Type)
		return
	}

	job := factory()
	if err := json.Unmarshal(env.Payload, job); err != nil {
		logger.Error("queue: unmarshal payload", "type", env.Type, "error", err)
		return
	}

	m.runWithRetry(ctx, job, env)
}

func (m *Manager) runWithRetry(ctx context.Context, job Job, env envelope) {
	m.mu.RLock()
	maxRetry, backoff := m.maxRetry, m.backoff
	m.mu.RUnlock()

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= maxRetry; attempt++ {
		if lastErr = job.Handle(ctx); lastErr == nil {
			metrics.RecordQueueJob(env.Type, "success", start)
			logger.WithCtx(ctx).Debug("queue: job processed", "type", env.Type)
			return
		}
		logger.WithCtx(ctx).Warn("queue: job failed", "type", env.Type, "attempt", attempt, "error", lastErr)
		if attempt < maxRetry && !sleep(ctx, time.Duration(attempt)*backoff) {
			break
		}
	}

	metrics.RecordQueueJob(env.Type, "failed", start)
	m.persistFailed(ctx, env, lastErr, maxRetry)
	logger.WithCtx(ctx).Error("queue: job exhausted retries", "type", env.Type, "error", lastErr)
}

// FailedJobs returns the in-memory failed-job log.
func (m *Manager) FailedJobs() []FailedJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]FailedJob, len(m.failed))
	copy(out, m.failed)
	return out
}

func (m *Manager) currentDriver() Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.driver
}

func encode(job Job) ([]byte, error) {
	name := NameOf(job)
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal job %s: %w", name, err)
	}
	env, err := json.Marshal(envelope{Type: name, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("queue: marshal envelope: %w", err)
	}
	return env, nil
}

// NameOf returns the registry name of job.
func NameOf(job Job) string {
	if n, ok := job.(Named); ok {
		return n.JobName()
	}
	return fmt.Sprintf("%T", job)
}

// sleep waits d or until ctx ends; it reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Default is the process-wide manager used by the package-level helpers.
var Default = NewManager(NewMemoryDriver())

func SetDriver(d Driver)                          { Default.SetDriver(d) }
func SetMaxRetry(n int)                           { Default.SetMaxRetry(n) }
func Register(name string, factory func() Job)    { Default.Register(name, factory) }
func Dispatch(ctx context.Context, job Job) error { return Default.Dispatch(ctx, job) }
func Work(ctx context.Context, n int) error       { return Default.Work(ctx, n) }
func FailedJobs() []FailedJob                     { return Default.FailedJobs() }
func DispatchAfter(ctx context.Context, job Job, delay time.Duration) error {
	return Default.DispatchAfter(ctx, job, delay)
}
