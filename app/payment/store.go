package payment

import (
	"context"
	"time"

	"github.com/shashiranjanraj/checkout/app/models"
)

// OrderStore persists orders. Every write to PaymentStatus goes through
// CompareAndSetStatus.
type OrderStore interface {
	// CreateOrGet inserts o unless an order with the same IdempotencyKey
	// exists, in which case the stored order is returned with created=false.
	CreateOrGet(ctx context.Context, o *models.Order) (stored *models.Order, created bool, err error)

	FindByID(ctx context.Context, id string) (*models.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	FindByIntentID(ctx context.Context, intentID string) (*models.Order, error)

	// UpsertByIntentID binds intentID and the encrypted client token to the
	// order. Re-binding the same intent is a no-op; a different intent
	// already on the order yields ErrIntentConflict.
	UpsertByIntentID(ctx context.Context, orderID, intentID, clientTokenEnc string) (*models.Order, error)

	// CompareAndSetStatus moves the order for intentID from expected to next
	// in one conditional write. ErrStatusConflict when the stored status is
	// no longer expected, ErrOrderNotFound when no order has that intent.
	CompareAndSetStatus(ctx context.Context, intentID string, expected, next models.PaymentStatus) error

	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Order, error)

	// ListStalePending returns Pending orders with an intent that match q,
	// ordered by (date, id) ascending.
	ListStalePending(ctx context.Context, q StaleQuery) ([]models.Order, error)

	Ping(ctx context.Context) error
}

// StaleQuery selects one page of Pending orders for the sync sweeper.
type StaleQuery struct {
	// Providers restricts the page to these providers. Empty matches none.
	Providers []string
	// OlderThan is the exclusive upper bound on the order date.
	OlderThan time.Time
	// NewerThan is the exclusive lower bound; zero means unbounded.
	NewerThan time.Time
	// After resumes the scan past this position.
	After *StaleCursor
	Limit int
}

// StaleCursor is a position in the (date, id) order of ListStalePending.
type StaleCursor struct {
	Date time.Time
	ID   string
}

// UserDirectory resolves the caller of a checkout.
type UserDirectory interface {
	// FindUser returns ErrUserNotFound for unknown ids.
	FindUser(ctx context.Context, id string) (*models.User, error)
}

// CartResetter zeroes a user's cart. Owned by another service.
type CartResetter interface {
	ResetCart(ctx context.Context, userID string) error
}
