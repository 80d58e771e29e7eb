// Package jobs holds the background work that keeps orders converging when
// a provider's webhook is late or never arrives.
package jobs

import (
	"context"
	"fmt"

	"github.com/shashiranjanraj/checkout/app/payment"
	"github.com/shashiranjanraj/checkout/app/services"
	"github.com/shashiranjanraj/checkout/pkg/logger"
	"github.com/shashiranjanraj/checkout/pkg/queue"
)

const SyncOrderJobName = "sync_order"

// SyncDeps are injected into every decoded SyncOrderJob.
type SyncDeps struct {
	Gateways   *payment.Registry
	Reconciler *services.Reconciler
}

// SyncOrderJob polls the provider for one Pending order and feeds the
// answer through the same reconcile path webhooks use.
type SyncOrderJob struct {
	OrderID  string `json:"orderId"`
	IntentID string `json:"intentId"`
	Provider string `json:"provider"`

	deps *SyncDeps
}

func (j *SyncOrderJob) JobName() string { return SyncOrderJobName }

func (j *SyncOrderJob) Handle(ctx context.Context) error {
	if j.deps == nil {
		return fmt.Errorf("%w: sync job has no dependencies", queue.ErrPermanent)
	}
	log := logger.WithCtx(ctx).With("order_id", j.OrderID, "intent_id", j.IntentID, "provider", j.Provider)

	gw, err := j.deps.Gateways.Get(j.Provider)
	if err != nil {
		return fmt.Errorf("%w: %v", queue.ErrPermanent, err)
	}
	fetcher, ok := gw.(payment.StatusFetcher)
	if !ok {
		log.Debug("provider cannot be polled, waiting for webhook")
		return nil
	}

	outcome, err := fetcher.FetchOutcome(ctx, j.IntentID)
	if err != nil {
		return err
	}
	if outcome == payment.OutcomeIgnored {
		log.Debug("intent still open at provider")
		return nil
	}

	_, err = j.deps.Reconciler.ReconcileFrom(logger.InjectLogger(ctx, log), services.SourceSync, j.IntentID, outcome)
	return err
}

// Register makes SyncOrderJob decodable by m.
func Register(m *queue.Manager, deps *SyncDeps) {
	m.Register(SyncOrderJobName, func() queue.Job { return &SyncOrderJob{deps: deps} })
}
