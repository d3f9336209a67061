package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/guilucasv/teodorofit/internal/models"
	"github.com/guilucasv/teodorofit/internal/outbox"
	"github.com/guilucasv/teodorofit/internal/payment"
	"github.com/guilucasv/teodorofit/internal/store"
)

type OrderHandler struct {
	Store       *store.Store
	MercadoPago *payment.MercadoPago
	PagarMe     *payment.PagarMe
	MailEnabled bool
}

// ApprovePayment handles POST /api/test/approve-payment/{id}: a manual,
// test-only stand-in for the gateway webhook. It flips the order to
// approved and re-enqueues the notification emails. Repeating the call for
// an already-approved order changes nothing and sends nothing.
func (h *OrderHandler) ApprovePayment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		errorJSON(w, http.StatusBadRequest, "ID do pedido é obrigatório")
		return
	}

	order, err := h.Store.GetOrderByID(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			errorJSON(w, http.StatusNotFound, "Pedido não encontrado")
			return
		}
		errorJSON(w, http.StatusInternalServerError, "Erro ao carregar pedido")
		return
	}

	changed, err := h.Store.UpdateOrderStatus(order.ID, models.StatusApproved)
	if err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			errorJSON(w, http.StatusConflict, "Transição de status inválida: "+order.Status+" -> approved")
			return
		}
		errorJSON(w, http.StatusInternalServerError, "Erro ao atualizar pedido")
		return
	}

	if changed {
		if err := h.Store.EnqueueTask(outbox.TaskOrderConfirmation, outbox.OrderTaskPayload{OrderID: order.ID}); err != nil {
			slog.Error("Failed to enqueue confirmation email", "order", order.ID, "error", err)
		}
		if err := h.Store.EnqueueTask(outbox.TaskOperatorNotice, outbox.OrderTaskPayload{OrderID: order.ID}); err != nil {
			slog.Error("Failed to enqueue operator notice", "order", order.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"order":   order.ID,
		"status":  models.StatusApproved,
		"changed": changed,
	})
}

// Status handles GET /api/status: a health and configuration probe.
func (h *OrderHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                  "Servidor rodando",
		"timestamp":               time.Now(),
		"mercado_pago_configured": h.MercadoPago != nil && h.MercadoPago.Configured(),
		"pagar_me_configured":     h.PagarMe != nil && h.PagarMe.Configured(),
		"mail_configured":         h.MailEnabled,
	})
}
