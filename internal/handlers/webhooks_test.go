package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guilucasv/teodorofit/internal/models"
	"github.com/guilucasv/teodorofit/internal/payment"
	"github.com/guilucasv/teodorofit/internal/store"
)

func newWebhookHandler(t *testing.T, mpStatus string) (*WebhookHandler, *store.Store) {
	t.Helper()
	s, err := store.NewStore(":memory:")
	require.NoError(t, err)
	s.DB.SetMaxOpenConns(1)
	require.NoError(t, s.Migrate(filepath.Join("..", "..", "migrations")))
	t.Cleanup(func() { s.DB.Close() })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.URL.Path, "/v1/payments/"))
		json.NewEncoder(w).Encode(map[string]any{"id": 999, "status": mpStatus})
	}))
	t.Cleanup(srv.Close)

	return &WebhookHandler{
		Store:       s,
		MercadoPago: payment.NewMercadoPago("TEST-TOKEN", srv.URL, 5*time.Second),
	}, s
}

func seedPendingOrder(t *testing.T, s *store.Store, transactionID string) string {
	t.Helper()
	order := &models.Order{
		ID:            "ord-" + transactionID,
		Customer:      models.Customer{Name: "Maria", Email: "maria@example.com"},
		Items:         []models.OrderItem{{ProductID: "p1", Title: "Legging Pro", Quantity: 1, UnitPrice: 89.90}},
		Total:         89.90,
		Status:        models.StatusPending,
		TransactionID: transactionID,
		Gateway:       "mercado_pago",
	}
	require.NoError(t, s.RunInOrderTx(func(tx *sql.Tx) error {
		return s.SaveOrderTx(tx, order)
	}))
	return order.ID
}

func TestMercadoPagoWebhookApprovesOnce(t *testing.T) {
	h, s := newWebhookHandler(t, "approved")
	orderID := seedPendingOrder(t, s, "999")

	fire := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhook/mercado-pago?type=payment&data.id=999", nil)
		rec := httptest.NewRecorder()
		h.MercadoPagoWebhook(rec, req)
		return rec
	}

	rec := fire()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"received":true`)

	order, err := s.GetOrderByID(orderID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, order.Status)

	tasks, err := s.PendingTasks(10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	// A retried notification still acks but enqueues nothing new.
	rec = fire()
	require.Equal(t, http.StatusOK, rec.Code)
	tasks, err = s.PendingTasks(10)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestMercadoPagoWebhookIgnoresUnapprovedPayment(t *testing.T) {
	h, s := newWebhookHandler(t, "in_process")
	orderID := seedPendingOrder(t, s, "999")

	req := httptest.NewRequest(http.MethodPost, "/webhook/mercado-pago?type=payment&data.id=999", nil)
	rec := httptest.NewRecorder()
	h.MercadoPagoWebhook(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	order, err := s.GetOrderByID(orderID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, order.Status)

	tasks, err := s.PendingTasks(10)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestMercadoPagoWebhookUnknownTransactionStillAcks(t *testing.T) {
	h, _ := newWebhookHandler(t, "approved")

	req := httptest.NewRequest(http.MethodPost, "/webhook/mercado-pago?type=payment&data.id=999", nil)
	rec := httptest.NewRecorder()
	h.MercadoPagoWebhook(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"received":true`)
}

func TestPagarMeWebhook(t *testing.T) {
	h, s := newWebhookHandler(t, "approved")
	orderID := seedPendingOrder(t, s, "or_123")

	body := strings.NewReader(`{"type":"order.paid","data":{"id":"or_123"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/pagar-me", body)
	rec := httptest.NewRecorder()
	h.PagarMeWebhook(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	order, err := s.GetOrderByID(orderID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, order.Status)
}

func TestPagarMeWebhookMalformedBodyAcks(t *testing.T) {
	h, _ := newWebhookHandler(t, "approved")

	req := httptest.NewRequest(http.MethodPost, "/webhook/pagar-me", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	h.PagarMeWebhook(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"received":true`)
}
