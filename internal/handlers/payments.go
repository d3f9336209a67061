package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/guilucasv/teodorofit/internal/inventory"
	"github.com/guilucasv/teodorofit/internal/models"
	"github.com/guilucasv/teodorofit/internal/outbox"
	"github.com/guilucasv/teodorofit/internal/payment"
	"github.com/guilucasv/teodorofit/internal/store"
)

type PaymentHandler struct {
	Store       *store.Store
	Inventory   *inventory.Service
	MercadoPago *payment.MercadoPago
	PagarMe     *payment.PagarMe
}

type paymentResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	Status        string `json:"status,omitempty"`
	Message       string `json:"message"`
	OrderID       string `json:"order_id,omitempty"`
}

type mercadoPagoCheckout struct {
	Token             string          `json:"token"`
	IssuerID          string          `json:"issuer_id"`
	PaymentMethodID   string          `json:"payment_method_id"`
	TransactionAmount float64         `json:"transaction_amount"`
	Installments      int             `json:"installments"`
	Description       string          `json:"description"`
	Payer             json.RawMessage `json:"payer"`
	ExternalReference string          `json:"external_reference"`
	AdditionalInfo    struct {
		Items []inventory.LineItem `json:"items"`
	} `json:"additional_info"`
	Customer models.Customer `json:"customer"`
}

type mpPayerFields struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// MercadoPagoPayment handles POST /api/pagamento-mercado-pago: the primary
// checkout pipeline. Stock is validated and the total recomputed
// server-side before the gateway ever sees the charge.
func (h *PaymentHandler) MercadoPagoPayment(w http.ResponseWriter, r *http.Request) {
	var req mercadoPagoCheckout
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "JSON inválido")
		return
	}

	if req.Token == "" && req.PaymentMethodID == "" {
		errorJSON(w, http.StatusBadRequest, "Dados de pagamento incompletos (token ou payment_method_id faltando)")
		return
	}
	if len(req.AdditionalInfo.Items) == 0 {
		errorJSON(w, http.StatusBadRequest, "Itens do pedido ausentes")
		return
	}
	if !h.MercadoPago.Configured() {
		errorJSON(w, http.StatusServiceUnavailable, "Mercado Pago não configurado")
		return
	}

	// Fill customer contact from the payer block when the client sent no
	// explicit customer.
	customer := req.Customer
	if customer.Email == "" && len(req.Payer) > 0 {
		var payer mpPayerFields
		if err := json.Unmarshal(req.Payer, &payer); err == nil {
			customer.Email = payer.Email
			if customer.Name == "" {
				customer.Name = strings.TrimSpace(payer.FirstName + " " + payer.LastName)
			}
		}
	}

	if customer.Email != "" && !isValidEmail(customer.Email) {
		errorJSON(w, http.StatusBadRequest, "Email inválido")
		return
	}

	installments := req.Installments
	if installments < 1 {
		installments = 1
	}

	gwReq := &payment.Request{
		Amount:            0, // filled after server-side pricing
		Installments:      installments,
		Description:       req.Description,
		ExternalReference: req.ExternalReference,
		CustomerName:      customer.Name,
		CustomerEmail:     customer.Email,
		CustomerPhone:     customer.Phone,
		Token:             req.Token,
		IssuerID:          req.IssuerID,
		PaymentMethodID:   req.PaymentMethodID,
		Payer:             req.Payer,
		AdditionalInfo:    marshalItems(req.AdditionalInfo.Items),
	}

	h.processPayment(w, r, h.MercadoPago, gwReq, req.AdditionalInfo.Items, req.TransactionAmount, customer)
}

type pagarMeCheckout struct {
	CardNumber         string               `json:"card_number"`
	CardHolder         string               `json:"card_holder"`
	CardExpirationDate string               `json:"card_expiration_date"`
	CardCVV            string               `json:"card_cvv"`
	Amount             float64              `json:"amount"`
	CustomerEmail      string               `json:"customer_email"`
	CustomerName       string               `json:"customer_name"`
	CustomerPhone      string               `json:"customer_phone"`
	CustomerAddress    string               `json:"customer_address"`
	OrderID            string               `json:"order_id"`
	Items              []inventory.LineItem `json:"items"`
}

// PagarMePayment handles POST /api/pagamento-pagar-me, the legacy raw-card
// path.
func (h *PaymentHandler) PagarMePayment(w http.ResponseWriter, r *http.Request) {
	var req pagarMeCheckout
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "JSON inválido")
		return
	}

	if req.CardNumber == "" || req.CardHolder == "" || req.CardExpirationDate == "" || req.CardCVV == "" || req.Amount == 0 {
		errorJSON(w, http.StatusBadRequest, "Campos de cartão obrigatórios")
		return
	}
	if len(req.Items) == 0 {
		errorJSON(w, http.StatusBadRequest, "Itens do pedido ausentes")
		return
	}
	if !h.PagarMe.Configured() {
		errorJSON(w, http.StatusServiceUnavailable, "Pagar.me não configurado")
		return
	}

	customer := models.Customer{
		Name:    req.CustomerName,
		Email:   req.CustomerEmail,
		Phone:   req.CustomerPhone,
		Address: req.CustomerAddress,
	}
	if customer.Email != "" && !isValidEmail(customer.Email) {
		errorJSON(w, http.StatusBadRequest, "Email inválido")
		return
	}

	gwReq := &payment.Request{
		Installments:      1,
		ExternalReference: req.OrderID,
		CustomerName:      customer.Name,
		CustomerEmail:     customer.Email,
		CustomerPhone:     customer.Phone,
		Card: &payment.Card{
			Number:         req.CardNumber,
			Holder:         req.CardHolder,
			ExpirationDate: req.CardExpirationDate,
			CVV:            req.CardCVV,
		},
	}

	h.processPayment(w, r, h.PagarMe, gwReq, req.Items, req.Amount, customer)
}

// processPayment runs the shared order pipeline: stock gate, server-side
// pricing, gateway call, then (inside one transaction) order persistence,
// stock decrement and notification enqueue.
func (h *PaymentHandler) processPayment(w http.ResponseWriter, r *http.Request, gw payment.Gateway, gwReq *payment.Request, items []inventory.LineItem, claimedAmount float64, customer models.Customer) {
	// 1. Stock gate: reject before any gateway call.
	validation := h.Inventory.Validate(items)
	if !validation.Valid {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":       "Estoque insuficiente",
			"unavailable": validation.Unavailable,
		})
		return
	}

	// 2. Server-side pricing; the client-supplied amount is never charged.
	total := h.Inventory.Total(items)
	if total <= 0 {
		errorJSON(w, http.StatusBadRequest, "Erro ao calcular total do pedido")
		return
	}
	slog.Info("💰 Total calculado no servidor", "total", total, "gateway", gw.Name())

	if claimedAmount != 0 && !amountsMatch(claimedAmount, total) {
		slog.Warn("⚠️ Tentativa de adulteração de preço detectada",
			"claimed", claimedAmount, "computed", total, "ip", r.RemoteAddr)
		alert := &store.PriceAlert{
			PayerEmail:     customer.Email,
			RemoteAddr:     r.RemoteAddr,
			ClaimedAmount:  claimedAmount,
			ComputedAmount: total,
		}
		if err := h.Store.RecordPriceAlert(alert); err != nil {
			slog.Error("Failed to record price alert", "error", err)
		}
	}
	gwReq.Amount = total

	// 3. Gateway call. No retries, no circuit breaker: upstream errors are
	// surfaced to the client with the upstream's own status code.
	result, err := gw.SubmitPayment(r.Context(), gwReq)
	if err != nil {
		var upstream *payment.UpstreamError
		if errors.As(err, &upstream) {
			slog.Error("Gateway error", "gateway", gw.Name(), "status", upstream.StatusCode, "body", string(upstream.Body))
			writeJSON(w, upstream.StatusCode, map[string]any{
				"error":   "Erro ao processar pagamento",
				"details": json.RawMessage(upstream.Body),
			})
			return
		}
		slog.Error("Gateway request failed", "gateway", gw.Name(), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Erro ao processar pagamento",
			"details": err.Error(),
		})
		return
	}

	if result.Outcome == payment.OutcomeFailed {
		writeJSON(w, http.StatusBadGateway, paymentResponse{
			Success: false,
			Status:  result.RawStatus,
			Message: result.Message,
		})
		return
	}

	// 4. Persist the order with the gateway-derived status; on paid
	// outcomes also decrement stock and enqueue notifications, all in one
	// transaction.
	order := &models.Order{
		ID:            uuid.NewString(),
		Customer:      customer,
		Items:         toOrderItems(items, h.Inventory),
		Total:         total,
		Status:        result.Outcome.String(),
		PaymentMethod: gwReq.PaymentMethodID,
		TransactionID: result.TransactionID,
		Gateway:       gw.Name(),
	}

	err = h.Store.RunInOrderTx(func(tx *sql.Tx) error {
		if err := h.Store.SaveOrderTx(tx, order); err != nil {
			return err
		}
		if !result.Paid() {
			return nil
		}
		lowStock, err := h.Inventory.ReconcileTx(tx, items)
		if err != nil {
			return err
		}
		if err := h.Store.EnqueueTaskTx(tx, outbox.TaskOrderConfirmation, outbox.OrderTaskPayload{OrderID: order.ID}); err != nil {
			return err
		}
		if err := h.Store.EnqueueTaskTx(tx, outbox.TaskOperatorNotice, outbox.OrderTaskPayload{OrderID: order.ID}); err != nil {
			return err
		}
		if len(lowStock) > 0 {
			if err := h.Store.EnqueueTaskTx(tx, outbox.TaskLowStockAlert, outbox.LowStockPayload{Products: lowStock}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// The charge went through but the ledger write did not; this is
		// the one place a manual reconciliation is needed.
		slog.Error("Failed to persist paid order", "transaction_id", result.TransactionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":          "Pagamento processado, mas houve erro ao registrar o pedido",
			"transaction_id": result.TransactionID,
		})
		return
	}

	writeJSON(w, http.StatusOK, paymentResponse{
		Success:       result.Paid(),
		TransactionID: result.TransactionID,
		Status:        result.RawStatus,
		Message:       result.Message,
		OrderID:       order.ID,
	})
}

// amountsMatch compares monetary values with a one-centavo tolerance.
func amountsMatch(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 0.01
}

func marshalItems(items []inventory.LineItem) json.RawMessage {
	body, err := json.Marshal(map[string]any{"items": items})
	if err != nil {
		return nil
	}
	return body
}

// toOrderItems records the ledger lines with catalog prices, not the
// client-claimed ones.
func toOrderItems(items []inventory.LineItem, inv *inventory.Service) []models.OrderItem {
	out := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		line := models.OrderItem{
			ProductID: item.ProductID,
			Title:     item.Title,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
		if p, err := inv.Product(item); err == nil {
			line.ProductID = p.ID
			line.Title = p.Title
			line.UnitPrice = p.Price
		}
		out = append(out, line)
	}
	return out
}
