package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/checkout/app/models"
	"github.com/shashiranjanraj/checkout/app/payment"
	"github.com/shashiranjanraj/checkout/app/services"
)

var mockAny = mock.Anything

func pendingIntent(t *testing.T, e *env) string {
	t.Helper()
	res, err := e.checkout.InitiatePayment(context.Background(), "u1", "", draft())
	require.NoError(t, err)
	return res.IntentID
}

func TestReconcileSucceededThenRedelivered(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	intentID := pendingIntent(t, e)
	e.cart.On("ResetCart", mockAny, "u1").Return(nil).Once()

	res, err := e.reconciler.Reconcile(ctx, intentID, payment.OutcomeSucceeded)
	require.NoError(t, err)
	assert.Equal(t, services.Applied, res.Resolution)
	assert.Equal(t, models.StatusPaid, res.Order.PaymentStatus)
	assert.False(t, res.Degraded)

	res, err = e.reconciler.Reconcile(ctx, intentID, payment.OutcomeSucceeded)
	require.NoError(t, err)
	assert.Equal(t, services.AlreadyTerminal, res.Resolution)

	order, err := e.orders.FindByIntentID(ctx, intentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, order.PaymentStatus)
	assert.True(t, order.Total.Equal(decimal.NewFromInt(20)))
	e.cart.AssertNumberOfCalls(t, "ResetCart", 1)
}

func TestReconcileTerminalIsAbsorbing(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	intentID := pendingIntent(t, e)
	e.cart.On("ResetCart", mockAny, "u1").Return(nil)

	_, err := e.reconciler.Reconcile(ctx, intentID, payment.OutcomeSucceeded)
	require.NoError(t, err)

	for _, outcome := range []payment.Outcome{payment.OutcomeFailed, payment.OutcomeCanceled, payment.OutcomeSucceeded} {
		res, err := e.reconciler.Reconcile(ctx, intentID, outcome)
		require.NoError(t, err)
		assert.Equal(t, services.AlreadyTerminal, res.Resolution)
		assert.Equal(t, models.StatusPaid, res.Order.PaymentStatus)
	}
	e.cart.AssertNumberOfCalls(t, "ResetCart", 1)
}

func TestReconcileFailureDoesNotResetCart(t *testing.T) {
	for _, outcome := range []payment.Outcome{payment.OutcomeFailed, payment.OutcomeCanceled} {
		t.Run(string(outcome), func(t *testing.T) {
			e := setup(t)
			intentID := pendingIntent(t, e)

			res, err := e.reconciler.Reconcile(context.Background(), intentID, outcome)
			require.NoError(t, err)
			assert.Equal(t, services.Applied, res.Resolution)

			want, _ := outcome.Status()
			assert.Equal(t, want, res.Order.PaymentStatus)
			e.cart.AssertNotCalled(t, "ResetCart", mockAny, mockAny)
		})
	}
}

func TestReconcileUnknownIntent(t *testing.T) {
	e := setup(t)

	res, err := e.reconciler.Reconcile(context.Background(), "pi_999", payment.OutcomeSucceeded)
	require.NoError(t, err)
	assert.Equal(t, services.NotFound, res.Resolution)
	assert.Nil(t, res.Order)
	e.cart.AssertNotCalled(t, "ResetCart", mockAny, mockAny)
}

func TestReconcileRejectsIgnoredOutcome(t *testing.T) {
	e := setup(t)
	intentID := pendingIntent(t, e)

	_, err := e.reconciler.Reconcile(context.Background(), intentID, payment.OutcomeIgnored)
	assert.ErrorIs(t, err, payment.ErrInvalidTransition)

	order, err := e.orders.FindByIntentID(context.Background(), intentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, order.PaymentStatus)
}

func TestReconcileCartFailureIsDegradedSuccess(t *testing.T) {
	e := setup(t)
	intentID := pendingIntent(t, e)
	e.cart.On("ResetCart", mockAny, "u1").Return(errors.New("cart service down"))

	res, err := e.reconciler.Reconcile(context.Background(), intentID, payment.OutcomeSucceeded)
	require.NoError(t, err)
	assert.Equal(t, services.Applied, res.Resolution)
	assert.True(t, res.Degraded)
	assert.EqualError(t, res.CartError, "cart service down")

	order, err := e.orders.FindByIntentID(context.Background(), intentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, order.PaymentStatus)
}

func TestReconcileConcurrentDeliveriesResetCartOnce(t *testing.T) {
	e := setup(t)
	intentID := pendingIntent(t, e)
	e.cart.On("ResetCart", mockAny, "u1").Return(nil)

	const workers = 8
	results := make([]services.ReconcileResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.reconciler.Reconcile(context.Background(), intentID, payment.OutcomeSucceeded)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	applied := 0
	for _, res := range results {
		if res.Resolution == services.Applied {
			applied++
		} else {
			assert.Equal(t, services.AlreadyTerminal, res.Resolution)
		}
	}
	assert.Equal(t, 1, applied)
	e.cart.AssertNumberOfCalls(t, "ResetCart", 1)
}

func TestReconcileFromSyncUsesSamePath(t *testing.T) {
	e := setup(t)
	intentID := pendingIntent(t, e)

	res, err := e.reconciler.ReconcileFrom(context.Background(), services.SourceSync, intentID, payment.OutcomeCanceled)
	require.NoError(t, err)
	assert.Equal(t, services.Applied, res.Resolution)
	assert.Equal(t, models.StatusCanceled, res.Order.PaymentStatus)
}
