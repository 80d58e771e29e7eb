package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/checkout/app/payment"
	"github.com/shashiranjanraj/checkout/app/services"
)

func TestOrderServiceHistoryAndStatus(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	svc := services.NewOrderService(e.orders)

	empty, err := svc.History(ctx, "u1", 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	res, err := e.checkout.InitiatePayment(ctx, "u1", "", draft())
	require.NoError(t, err)

	history, err := svc.History(ctx, "u1", 1000)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, res.OrderID, history[0].ID)

	order, err := svc.Status(ctx, "u1", res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "pi_1", order.IntentID())

	_, err = svc.Status(ctx, "someone-else", res.OrderID)
	assert.ErrorIs(t, err, payment.ErrOrderNotFound)

	_, err = svc.Status(ctx, "u1", "missing")
	assert.ErrorIs(t, err, payment.ErrOrderNotFound)
}
