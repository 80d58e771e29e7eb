package services

import (
	"context"

	"github.com/shashiranjanraj/checkout/app/models"
	"github.com/shashiranjanraj/checkout/app/payment"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// OrderService serves a user's purchase history.
type OrderService struct {
	orders payment.OrderStore
}

func NewOrderService(orders payment.OrderStore) *OrderService {
	return &OrderService{orders: orders}
}

// History returns the user's orders, newest first.
func (s *OrderService) History(ctx context.Context, userID string, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	orders, err := s.orders.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// Status returns one order. Orders owned by someone else are reported as
// not found.
func (s *OrderService) Status(ctx context.Context, userID, orderID string) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, payment.ErrOrderNotFound
	}
	return order, nil
}
