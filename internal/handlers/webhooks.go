package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/guilucasv/teodorofit/internal/models"
	"github.com/guilucasv/teodorofit/internal/outbox"
	"github.com/guilucasv/teodorofit/internal/payment"
	"github.com/guilucasv/teodorofit/internal/store"
)

type WebhookHandler struct {
	Store       *store.Store
	MercadoPago *payment.MercadoPago
}

// MercadoPagoWebhook handles POST /webhook/mercado-pago. The gateway sends
// the event type and payment id as query parameters; the payment status is
// re-fetched from the API rather than trusted from the notification.
// The endpoint always acks, otherwise the gateway retries forever.
func (h *WebhookHandler) MercadoPagoWebhook(w http.ResponseWriter, r *http.Request) {
	eventType := r.URL.Query().Get("type")
	paymentID := r.URL.Query().Get("data.id")
	if paymentID == "" {
		paymentID = r.URL.Query().Get("id")
	}

	if eventType == "payment" && paymentID != "" {
		slog.Info("Notificação Mercado Pago", "payment_id", paymentID)
		h.confirmPayment(r, paymentID)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *WebhookHandler) confirmPayment(r *http.Request, paymentID string) {
	if h.MercadoPago == nil || !h.MercadoPago.Configured() {
		return
	}
	result, err := h.MercadoPago.FetchPayment(r.Context(), paymentID)
	if err != nil {
		slog.Error("Failed to fetch payment for webhook", "payment_id", paymentID, "error", err)
		return
	}
	if result.Outcome != payment.OutcomeApproved {
		slog.Info("Webhook payment not approved yet", "payment_id", paymentID, "status", result.RawStatus)
		return
	}
	h.approveByTransaction(paymentID)
}

type pagarMeEvent struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// PagarMeWebhook handles POST /webhook/pagar-me.
func (h *WebhookHandler) PagarMeWebhook(w http.ResponseWriter, r *http.Request) {
	var event pagarMeEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		slog.Warn("Malformed Pagar.me webhook", "error", err)
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if event.Type == "order.paid" || event.Type == "charge.succeeded" {
		slog.Info("Pagamento confirmado", "type", event.Type, "id", event.Data.ID)
		h.approveByTransaction(event.Data.ID)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// approveByTransaction flips the referenced order to approved through the
// guarded transition. A repeated notification for an already-approved order
// is a no-op and enqueues nothing.
func (h *WebhookHandler) approveByTransaction(transactionID string) {
	order, err := h.Store.GetOrderByTransactionID(transactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			slog.Warn("Webhook for unknown transaction", "transaction_id", transactionID)
		} else {
			slog.Error("Failed to look up order for webhook", "transaction_id", transactionID, "error", err)
		}
		return
	}

	changed, err := h.Store.UpdateOrderStatus(order.ID, models.StatusApproved)
	if err != nil {
		slog.Error("Failed to approve order from webhook", "order", order.ID, "error", err)
		return
	}
	if !changed {
		return
	}

	if err := h.Store.EnqueueTask(outbox.TaskOrderConfirmation, outbox.OrderTaskPayload{OrderID: order.ID}); err != nil {
		slog.Error("Failed to enqueue confirmation email", "order", order.ID, "error", err)
	}
}
