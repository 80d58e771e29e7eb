package mongorepo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/checkout/app/models"
	"github.com/shashiranjanraj/checkout/app/payment"
)

func sampleOrder(key string) *models.Order {
	items := models.OrderData{
		{ProductID: "p1", Name: "Mug", Price: decimal.RequireFromString("10.15"), Quantity: 2},
	}
	return &models.Order{
		ID:             uuid.NewString(),
		UserID:         "u1",
		Email:          "ada@example.com",
		FullName:       "Ada",
		PhoneNumber:    "+1 555 0100",
		Address:        "1 Main St",
		PaymentMethod:  models.MethodCard,
		PaymentStatus:  models.StatusPending,
		OrderData:      items,
		Total:          items.Total(),
		Currency:       "usd",
		Provider:       "stripe",
		IdempotencyKey: key,
	}
}

func TestDocumentRoundTripKeepsExactAmounts(t *testing.T) {
	o := sampleOrder("k1")
	intent := "pi_1"
	o.PaymentIntentID = &intent

	doc := toDoc(o)
	assert.Equal(t, "20.3", doc.Total)
	assert.Equal(t, "10.15", doc.OrderData[0].Price)

	back, err := doc.toModel()
	require.NoError(t, err)
	assert.True(t, back.Total.Equal(o.Total))
	assert.True(t, back.OrderData[0].Price.Equal(o.OrderData[0].Price))
	assert.Equal(t, "pi_1", back.IntentID())
	assert.Equal(t, models.MethodCard, back.PaymentMethod)
}

func TestDocumentRejectsCorruptAmount(t *testing.T) {
	doc := toDoc(sampleOrder("k1"))
	doc.Total = "twenty"
	_, err := doc.toModel()
	assert.Error(t, err)
}

// Runs only when MONGO_URI points at a reachable server.
func TestOrderStoreAgainstMongo(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := Connect(ctx, uri)
	if err != nil {
		t.Skipf("mongo unreachable: %v", err)
	}
	dbName := "checkout_test_" + uuid.NewString()[:8]
	t.Cleanup(func() {
		client.Database(dbName).Drop(context.Background())
		client.Disconnect(context.Background())
	})

	store := NewOrderStore(client, dbName)
	require.NoError(t, store.EnsureIndexes(ctx))

	o, created, err := store.CreateOrGet(ctx, sampleOrder("k1"))
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := store.CreateOrGet(ctx, sampleOrder("k1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, o.ID, again.ID)

	_, err = store.UpsertByIntentID(ctx, o.ID, "pi_1", "enc")
	require.NoError(t, err)
	_, err = store.UpsertByIntentID(ctx, o.ID, "pi_2", "enc")
	assert.ErrorIs(t, err, payment.ErrIntentConflict)

	require.NoError(t, store.CompareAndSetStatus(ctx, "pi_1", models.StatusPending, models.StatusPaid))
	assert.ErrorIs(t, store.CompareAndSetStatus(ctx, "pi_1", models.StatusPending, models.StatusFailed), payment.ErrStatusConflict)
	assert.ErrorIs(t, store.CompareAndSetStatus(ctx, "pi_x", models.StatusPending, models.StatusPaid), payment.ErrOrderNotFound)

	stored, err := store.FindByIntentID(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, stored.PaymentStatus)

	now := time.Now()
	var pending []string
	for i, age := range []time.Duration{3 * time.Hour, 2 * time.Hour} {
		o := sampleOrder(fmt.Sprintf("stale-%d", i))
		o.Date = now.Add(-age)
		o, _, err := store.CreateOrGet(ctx, o)
		require.NoError(t, err)
		_, err = store.UpsertByIntentID(ctx, o.ID, fmt.Sprintf("pi_stale_%d", i), "")
		require.NoError(t, err)
		pending = append(pending, o.ID)
	}
	q := payment.StaleQuery{Providers: []string{"stripe"}, OlderThan: now.Add(-time.Hour), Limit: 1}
	page, err := store.ListStalePending(ctx, q)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, pending[0], page[0].ID)
	q.After = &payment.StaleCursor{Date: page[0].Date, ID: page[0].ID}
	page, err = store.ListStalePending(ctx, q)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, pending[1], page[0].ID)

	users := NewUserStore(client, dbName)
	require.NoError(t, users.Upsert(ctx, &models.User{ID: "u1", Name: "Ada", Email: "ada@example.com"}))
	u, err := users.FindUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.Name)
	_, err = users.FindUser(ctx, "nope")
	assert.ErrorIs(t, err, payment.ErrUserNotFound)
}
