package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/shashiranjanraj/checkout/app/payment"
	"github.com/shashiranjanraj/checkout/pkg/logger"
	"github.com/shashiranjanraj/checkout/pkg/queue"
)

const (
	defaultSweepBatch = 100
	// Intents older than this are left to expire at the provider.
	defaultSweepHorizon = 72 * time.Hour
)

// Dispatcher is the part of queue.Manager the sweeper needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, job queue.Job) error
}

// Sweeper queues a SyncOrderJob for every order that has sat Pending with
// an intent for longer than staleAfter. Each pass handles one page and
// resumes where the previous one stopped, wrapping to the oldest order once
// the scan runs dry.
type Sweeper struct {
	orders     payment.OrderStore
	gateways   *payment.Registry
	queue      Dispatcher
	staleAfter time.Duration
	horizon    time.Duration
	batch      int
	now        func() time.Time

	mu     sync.Mutex
	cursor *payment.StaleCursor
}

func NewSweeper(orders payment.OrderStore, gateways *payment.Registry, q Dispatcher, staleAfter time.Duration) *Sweeper {
	return &Sweeper{
		orders:     orders,
		gateways:   gateways,
		queue:      q,
		staleAfter: staleAfter,
		horizon:    defaultSweepHorizon,
		batch:      defaultSweepBatch,
		now:        time.Now,
	}
}

// WithHorizon sets the age past which a Pending order is no longer polled.
// Zero polls orders of any age.
func (s *Sweeper) WithHorizon(d time.Duration) *Sweeper {
	s.horizon = d
	return s
}

// WithBatch sets the page size of one pass.
func (s *Sweeper) WithBatch(n int) *Sweeper {
	if n > 0 {
		s.batch = n
	}
	return s
}

// Run is the scheduler entry point.
func (s *Sweeper) Run(ctx context.Context) {
	n, err := s.Sweep(ctx)
	if err != nil {
		logger.Error("sweep stale orders failed", "dispatched", n, "error", err)
		return
	}
	if n > 0 {
		logger.Info("stale orders queued for sync", "dispatched", n)
	}
}

// Sweep dispatches one page and returns how many jobs were queued. Only
// orders of providers that can be polled are listed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	providers := s.pollable()
	if len(providers) == 0 {
		return 0, nil
	}

	now := s.now()
	q := payment.StaleQuery{
		Providers: providers,
		OlderThan: now.Add(-s.staleAfter),
		After:     s.cursor,
		Limit:     s.batch,
	}
	if s.horizon > 0 {
		q.NewerThan = now.Add(-s.horizon)
	}

	stale, err := s.orders.ListStalePending(ctx, q)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, o := range stale {
		job := &SyncOrderJob{OrderID: o.ID, IntentID: o.IntentID(), Provider: o.Provider}
		if err := s.queue.Dispatch(ctx, job); err != nil {
			return dispatched, err
		}
		dispatched++
		s.cursor = &payment.StaleCursor{Date: o.Date, ID: o.ID}
	}
	if len(stale) < s.batch {
		s.cursor = nil
	}
	return dispatched, nil
}

func (s *Sweeper) pollable() []string {
	var names []string
	for _, name := range s.gateways.Names() {
		gw, err := s.gateways.Get(name)
		if err != nil {
			continue
		}
		if _, ok := gw.(payment.StatusFetcher); ok {
			names = append(names, name)
		}
	}
	return names
}
