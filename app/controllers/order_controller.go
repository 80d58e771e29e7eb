package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/checkout/app/services"
	"github.com/shashiranjanraj/checkout/pkg/middleware"
	"github.com/shashiranjanraj/checkout/pkg/response"
)

type OrderController struct {
	orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{orders: orders}
}

// Index lists the caller's orders, newest first.
//
//	GET /api/orders?limit=20
func (c *OrderController) Index(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	orders, err := c.orders.History(r.Context(), middleware.UserIDFromCtx(r.Context()), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, orders)
}

// Show returns one of the caller's orders.
//
//	GET /api/orders/{id}
func (c *OrderController) Show(w http.ResponseWriter, r *http.Request) {
	order, err := c.orders.Status(r.Context(), middleware.UserIDFromCtx(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, order)
}
