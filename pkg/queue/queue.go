// Package queue runs background jobs with retries.
//
//	m := queue.New(queue.NewMemoryDriver(), queue.WithMaxRetry(3))
//	m.Register("sync_order", func() queue.Job { return &SyncOrderJob{deps: deps} })
//	m.Dispatch(ctx, &SyncOrderJob{OrderID: id})
//	m.Work(ctx, 4) // blocks until ctx is done
//
// Jobs travel as JSON, so only exported fields survive the trip; the
// registered factory supplies everything else.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/checkout/pkg/logger"
	"github.com/shashiranjanraj/checkout/pkg/metrics"
)

// Job is the interface every queued job must satisfy.
type Job interface {
	Handle(ctx context.Context) error
}

// Named lets a job choose its registry name. Otherwise the Go type name is used.
type Named interface {
	JobName() string
}

// Driver is the queue storage backend.
type Driver interface {
	Push(ctx context.Context, payload []byte) error
	// Pop blocks until a payload is available. A nil payload with nil
	// error means the driver timed out and the caller should poll again.
	Pop(ctx context.Context) ([]byte, error)
}

// FailedJob holds a job that exhausted its retries.
type FailedJob struct {
	Type     string
	Payload  []byte
	Err      error
	FailedAt time.Time
	Attempts int
}

type Option func(*Manager)

func WithMaxRetry(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxRetry = n
		}
	}
}

// WithBackoff sets the base wait between attempts; attempt n waits n*d.
func WithBackoff(d time.Duration) Option {
	return func(m *Manager) { m.backoff = d }
}

// WithFailedStore persists exhausted jobs to the failed_jobs table.
func WithFailedStore(db *gorm.DB) Option {
	return func(m *Manager) { m.failedDB = db }
}

// Manager is the central queue hub.
type Manager struct {
	driver   Driver
	maxRetry int
	backoff  time.Duration
	failedDB *gorm.DB

	mu       sync.RWMutex
	registry map[string]func() Job
	failed   []FailedJob
}

func New(driver Driver, opts ...Option) *Manager {
	m := &Manager{
		driver:   driver,
		maxRetry: 3,
		backoff:  time.Second,
		registry: map[string]func() Job{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register makes a job type available for decoding by name.
func (m *Manager) Register(name string, factory func() Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry[name] = factory
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func typeName(job Job) string {
	if n, ok := job.(Named); ok {
		return n.JobName()
	}
	return fmt.Sprintf("%T", job)
}

// Dispatch pushes job onto the queue.
func (m *Manager) Dispatch(ctx context.Context, job Job) error {
	name := typeName(job)

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job %s: %w", name, err)
	}

	env, err := json.Marshal(envelope{Type: name, Payload: payload})
	if err != nil {
		return fmt.Errorf("queue: marshal envelope: %w", err)
	}

	return m.driver.Push(ctx, env)
}

// Work runs n workers and blocks until ctx is cancelled and every worker
// has finished its current job.
func (m *Manager) Work(ctx context.Context, n int) {
	if n < 1 {
		n = 1
	}

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
	logger.Info("queue: workers stopped")
}

func (m *Manager) work(ctx context.Context) {
	for {
		raw, err := m.driver.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("queue: pop failed", "error", err)
			if !sleep(ctx, 500*time.Millisecond) {
				return
			}
			continue
		}
		if raw == nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		m.Process(ctx, raw)
	}
}

// Process decodes one envelope and runs the job with retries.
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

// ErrPermanent marks a job error that must not be retried.
var ErrPermanent = errors.New("permanent job failure")

func (m *Manager) runWithRetry(ctx context.Context, job Job, env envelope) {
	start := time.Now()
	log := logger.WithCtx(ctx).With("type", env.Type)

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= m.maxRetry; attempt++ {
		attempts = attempt
		lastErr = job.Handle(ctx)
		if lastErr == nil {
			log.Debug("queue: job processed", "attempt", attempt)
			metrics.RecordQueueJob(env.Type, "success", start)
			return
		}
		if errors.Is(lastErr, ErrPermanent) || attempt == m.maxRetry {
			break
		}

		log.Warn("queue: job failed, retrying", "attempt", attempt, "error", lastErr)
		if !sleep(ctx, time.Duration(attempt)*m.backoff) {
			break
		}
	}

	m.persistFailed(ctx, env, lastErr, attempts)
	metrics.RecordQueueJob(env.Type, "failed", start)
	log.Error("queue: job failed permanently", "attempts", attempts, "error", lastErr)
}

// FailedJobs returns a snapshot of jobs that failed in this process.
func (m *Manager) FailedJobs() []FailedJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]FailedJob, len(m.failed))
	copy(out, m.failed)
	return out
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
