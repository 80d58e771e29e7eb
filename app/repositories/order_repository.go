package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shashiranjanraj/checkout/app/models"
	"github.com/shashiranjanraj/checkout/app/payment"
)

// OrderRepository is the SQL Order Store.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

var _ payment.OrderStore = (*OrderRepository)(nil)

func (r *OrderRepository) CreateOrGet(ctx context.Context, o *models.Order) (*models.Order, bool, error) {
	if o.PaymentStatus == "" {
		o.PaymentStatus = models.StatusPending
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoNothing: true,
		}).
		Create(o)
	if res.Error != nil {
		return nil, false, fmt.Errorf("orders: create: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return o, true, nil
	}

	existing, err := r.FindByIdempotencyKey(ctx, o.IdempotencyKey)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *OrderRepository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	return r.first(ctx, "idempotency_key = ?", key)
}

func (r *OrderRepository) FindByIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	return r.first(ctx, "payment_intent_id = ?", intentID)
}

func (r *OrderRepository) first(ctx context.Context, query string, arg interface{}) (*models.Order, error) {
	var o models.Order
	err := r.db.WithContext(ctx).Where(query, arg).Take(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, payment.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("orders: find: %w", err)
	}
	return &o, nil
}

func (r *OrderRepository) UpsertByIntentID(ctx context.Context, orderID, intentID, clientTokenEnc string) (*models.Order, error) {
	if owner, err := r.FindByIntentID(ctx, intentID); err == nil && owner.ID != orderID {
		return nil, fmt.Errorf("%w: intent %s belongs to order %s", payment.ErrIntentConflict, intentID, owner.ID)
	}

	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND (payment_intent_id IS NULL OR payment_intent_id = ?)", orderID, intentID).
		Updates(map[string]interface{}{
			"payment_intent_id": intentID,
			"client_token_enc":  clientTokenEnc,
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("orders: bind intent: %w", res.Error)
	}

	o, err := r.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 && o.IntentID() != intentID {
		return o, fmt.Errorf("%w: order %s has intent %s", payment.ErrIntentConflict, orderID, o.IntentID())
	}
	return o, nil
}

func (r *OrderRepository) CompareAndSetStatus(ctx context.Context, intentID string, expected, next models.PaymentStatus) error {
	if !expected.CanTransition(next) {
		return fmt.Errorf("%w: %s → %s", payment.ErrInvalidTransition, expected, next)
	}

	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("payment_intent_id = ? AND payment_status = ?", intentID, expected).
		Updates(map[string]interface{}{
			"payment_status": next,
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("orders: set status: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("payment_intent_id = ?", intentID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("orders: set status: %w", err)
	}
	if count == 0 {
		return payment.ErrOrderNotFound
	}
	return payment.ErrStatusConflict
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date desc").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("orders: list by user: %w", err)
	}
	return orders, nil
}

func (r *OrderRepository) ListStalePending(ctx context.Context, q payment.StaleQuery) ([]models.Order, error) {
	if len(q.Providers) == 0 || q.Limit <= 0 {
		return nil, nil
	}

	tx := r.db.WithContext(ctx).
		Where("payment_status = ? AND payment_intent_id IS NOT NULL", models.StatusPending).
		Where("provider IN ?", q.Providers).
		Where("date < ?", q.OlderThan)
	if !q.NewerThan.IsZero() {
		tx = tx.Where("date > ?", q.NewerThan)
	}
	if q.After != nil {
		tx = tx.Where("(date > ? OR (date = ? AND id > ?))", q.After.Date, q.After.Date, q.After.ID)
	}

	var orders []models.Order
	err := tx.Order("date asc").Order("id asc").Limit(q.Limit).Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("orders: list stale: %w", err)
	}
	return orders, nil
}

func (r *OrderRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
