package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPaymentStatusTransitions(t *testing.T) {
	all := []PaymentStatus{StatusPending, StatusPaid, StatusFailed, StatusCanceled}

	for _, from := range all {
		for _, to := range all {
			want := from == StatusPending && to != StatusPending
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestPaymentStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusPaid.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCanceled.Terminal())
	assert.False(t, PaymentStatus("Refunded").Valid())
}

func TestOrderDataTotal(t *testing.T) {
	data := OrderData{
		{ProductID: "1", Price: decimal.NewFromInt(10), Quantity: 2},
		{ProductID: "2", Price: decimal.RequireFromString("0.10"), Quantity: 3},
	}

	assert.True(t, data.Total().Equal(decimal.RequireFromString("20.30")), "got %s", data.Total())
	assert.True(t, OrderData{}.Total().IsZero())
}

func TestIntentID(t *testing.T) {
	o := &Order{}
	assert.Equal(t, "", o.IntentID())

	id := "pi_123"
	o.PaymentIntentID = &id
	assert.Equal(t, "pi_123", o.IntentID())
}
