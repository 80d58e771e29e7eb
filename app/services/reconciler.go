package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shashiranjanraj/checkout/app/models"
	"github.com/shashiranjanraj/checkout/app/payment"
	"github.com/shashiranjanraj/checkout/pkg/logger"
	"github.com/shashiranjanraj/checkout/pkg/metrics"
)

// Resolution is how a reconcile call ended.
type Resolution string

const (
	Applied         Resolution = "applied"
	AlreadyTerminal Resolution = "already_terminal"
	NotFound        Resolution = "not_found"
)

// Source tells metrics and logs which path drove a reconciliation.
type Source string

const (
	SourceWebhook Source = "webhook"
	SourceSync    Source = "sync"
)

// maxCASAttempts bounds the re-read loop. A Pending order can lose at most
// one race before it is terminal, so two reads always settle it.
const maxCASAttempts = 3

// ReconcileResult is the outcome of one reconcile call.
type ReconcileResult struct {
	Resolution Resolution
	Order      *models.Order
	// Degraded is set when the order became Paid but the cart reset failed.
	Degraded  bool
	CartError error
}

// Reconciler moves orders from Pending to a terminal status exactly once,
// no matter how many times or in what order the outcome is delivered.
type Reconciler struct {
	orders      payment.OrderStore
	cart        payment.CartResetter
	cartTimeout time.Duration
}

func NewReconciler(orders payment.OrderStore, cart payment.CartResetter, cartTimeout time.Duration) *Reconciler {
	if cartTimeout <= 0 {
		cartTimeout = 5 * time.Second
	}
	return &Reconciler{orders: orders, cart: cart, cartTimeout: cartTimeout}
}

// Reconcile applies a webhook-reported outcome.
func (r *Reconciler) Reconcile(ctx context.Context, intentID string, outcome payment.Outcome) (ReconcileResult, error) {
	return r.ReconcileFrom(ctx, SourceWebhook, intentID, outcome)
}

// ReconcileFrom applies outcome to the order bound to intentID.
//
// The status write is a compare-and-set against the status just read; on
// conflict the order is re-read. The cart is reset only by the call whose
// write moved the order to Paid.
func (r *Reconciler) ReconcileFrom(ctx context.Context, src Source, intentID string, outcome payment.Outcome) (ReconcileResult, error) {
	next, ok := outcome.Status()
	if !ok {
		return ReconcileResult{}, fmt.Errorf("%w: outcome %q is not terminal", payment.ErrInvalidTransition, outcome)
	}

	log := logger.WithCtx(ctx).With("intent_id", intentID, "outcome", string(outcome), "source", string(src))

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		order, err := r.orders.FindByIntentID(ctx, intentID)
		if errors.Is(err, payment.ErrOrderNotFound) {
			return r.done(log, src, ReconcileResult{Resolution: NotFound}), nil
		}
		if err != nil {
			metrics.ReconcileTotal.WithLabelValues(string(src), "error").Inc()
			return ReconcileResult{}, err
		}

		if order.PaymentStatus.Terminal() {
			return r.done(log, src, ReconcileResult{Resolution: AlreadyTerminal, Order: order}), nil
		}

		err = r.orders.CompareAndSetStatus(ctx, intentID, order.PaymentStatus, next)
		switch {
		case errors.Is(err, payment.ErrStatusConflict):
			metrics.StatusConflicts.Inc()
			log.Debug("status changed underneath, re-reading", "order_id", order.ID)
			continue
		case errors.Is(err, payment.ErrOrderNotFound):
			return r.done(log, src, ReconcileResult{Resolution: NotFound}), nil
		case err != nil:
			metrics.ReconcileTotal.WithLabelValues(string(src), "error").Inc()
			return ReconcileResult{}, err
		}

		order.PaymentStatus = next
		res := ReconcileResult{Resolution: Applied, Order: order}
		if next == models.StatusPaid {
			if err := r.resetCart(ctx, order); err != nil {
				res.Degraded = true
				res.CartError = err
			}
		}
		return r.done(log, src, res), nil
	}

	metrics.ReconcileTotal.WithLabelValues(string(src), "error").Inc()
	return ReconcileResult{}, fmt.Errorf("reconcile %s: %w after %d attempts", intentID, payment.ErrStatusConflict, maxCASAttempts)
}

func (r *Reconciler) resetCart(ctx context.Context, order *models.Order) error {
	ctx, cancel := context.WithTimeout(ctx, r.cartTimeout)
	defer cancel()

	if err := r.cart.ResetCart(ctx, order.UserID); err != nil {
		metrics.CartResets.WithLabelValues("error").Inc()
		logger.WithCtx(ctx).Error("cart reset failed, order stays paid",
			"order_id", order.ID, "user_id", order.UserID, "error", err)
		return err
	}
	metrics.CartResets.WithLabelValues("ok").Inc()
	return nil
}

func (r *Reconciler) done(log *slog.Logger, src Source, res ReconcileResult) ReconcileResult {
	metrics.ReconcileTotal.WithLabelValues(string(src), string(res.Resolution)).Inc()

	args := []any{"result", string(res.Resolution)}
	if res.Order != nil {
		args = append(args, "order_id", res.Order.ID, "status", string(res.Order.PaymentStatus))
	}
	if res.Degraded {
		args = append(args, "degraded", true)
	}
	log.Info("order reconciled", args...)
	return res
}
