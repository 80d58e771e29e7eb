package controllers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/checkout/app/payment"
	"github.com/shashiranjanraj/checkout/app/services"
	"github.com/shashiranjanraj/checkout/pkg/bind"
	"github.com/shashiranjanraj/checkout/pkg/logger"
	"github.com/shashiranjanraj/checkout/pkg/metrics"
	"github.com/shashiranjanraj/checkout/pkg/response"
)

// WebhookAck is the body returned for every accepted delivery.
type WebhookAck struct {
	Received bool   `json:"received"`
	Result   string `json:"result,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
}

type WebhookController struct {
	gateways   *payment.Registry
	reconciler *services.Reconciler
}

func NewWebhookController(gateways *payment.Registry, reconciler *services.Reconciler) *WebhookController {
	return &WebhookController{gateways: gateways, reconciler: reconciler}
}

// Receive verifies a provider callback over the raw body and reconciles
// the order it refers to.
//
//	POST /api/webhooks/{provider}
//
// Any delivery that verified is acknowledged with 200, including unknown
// intents and redeliveries. Only storage failures return 5xx so the
// provider retries.
func (c *WebhookController) Receive(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	log := logger.WithCtx(r.Context()).With("provider", name)

	gw, err := c.gateways.Get(name)
	if err != nil || name == "" {
		metrics.WebhookRejected.WithLabelValues("unknown", "unknown_provider").Inc()
		response.NotFound(w, "Unknown payment provider")
		return
	}

	payload, err := bind.Raw(w, r)
	if err != nil {
		metrics.WebhookRejected.WithLabelValues(gw.Name(), "body").Inc()
		writeBindError(w, err)
		return
	}

	evt, err := gw.VerifyWebhook(payload, r.Header.Get(gw.SignatureHeader()), gw.WebhookSecret())
	if err != nil {
		var sigErr *payment.SignatureError
		if errors.As(err, &sigErr) {
			metrics.WebhookRejected.WithLabelValues(gw.Name(), "signature").Inc()
			log.Warn("webhook signature rejected", "reason", sigErr.Reason)
			response.Error(w, http.StatusBadRequest, "Invalid webhook signature")
			return
		}
		metrics.WebhookRejected.WithLabelValues(gw.Name(), "malformed").Inc()
		log.Warn("webhook payload malformed", "error", err)
		response.Error(w, http.StatusBadRequest, "Malformed webhook payload")
		return
	}

	log = log.With("event_id", evt.ID, "event_type", evt.EventType)
	if evt.Outcome == payment.OutcomeIgnored || evt.GatewayIntentID == "" {
		metrics.ReconcileTotal.WithLabelValues(string(services.SourceWebhook), "ignored").Inc()
		log.Debug("webhook event ignored")
		response.JSON(w, http.StatusOK, WebhookAck{Received: true, Result: "ignored"})
		return
	}

	ctx := logger.InjectLogger(r.Context(), log)
	res, err := c.reconciler.Reconcile(ctx, evt.GatewayIntentID, evt.Outcome)
	if err != nil {
		log.Error("webhook reconcile failed", "intent_id", evt.GatewayIntentID, "error", err)
		response.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	response.JSON(w, http.StatusOK, WebhookAck{
		Received: true,
		Result:   string(res.Resolution),
		Degraded: res.Degraded,
	})
}
