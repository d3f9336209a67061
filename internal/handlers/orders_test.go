package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guilucasv/teodorofit/internal/models"
	"github.com/guilucasv/teodorofit/internal/store"
)

func newOrderHandler(t *testing.T) (*OrderHandler, *store.Store) {
	t.Helper()
	s, err := store.NewStore(":memory:")
	require.NoError(t, err)
	s.DB.SetMaxOpenConns(1)
	require.NoError(t, s.Migrate(filepath.Join("..", "..", "migrations")))
	t.Cleanup(func() { s.DB.Close() })
	return &OrderHandler{Store: s}, s
}

func approve(t *testing.T, h *OrderHandler, id string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/test/approve-payment/"+id, nil)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	h.ApprovePayment(rec, req)
	return rec
}

func TestApprovePayment(t *testing.T) {
	h, s := newOrderHandler(t)

	order := &models.Order{
		ID:       "ord-1",
		Customer: models.Customer{Name: "Maria", Email: "maria@example.com"},
		Total:    89.90,
		Status:   models.StatusPending,
	}
	require.NoError(t, s.RunInOrderTx(func(tx *sql.Tx) error {
		return s.SaveOrderTx(tx, order)
	}))

	rec := approve(t, h, "ord-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Success bool   `json:"success"`
		Status  string `json:"status"`
		Changed bool   `json:"changed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Changed)
	assert.Equal(t, models.StatusApproved, resp.Status)

	got, err := s.GetOrderByID("ord-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)

	tasks, err := s.PendingTasks(10)
	require.NoError(t, err)
	assert.Len(t, tasks, 2) // confirmation + operator notice

	// Repeating the approval changes nothing and enqueues nothing.
	rec = approve(t, h, "ord-1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Changed)

	tasks, err = s.PendingTasks(10)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestApprovePaymentRejectedOrderConflicts(t *testing.T) {
	h, s := newOrderHandler(t)

	order := &models.Order{
		ID:       "ord-2",
		Customer: models.Customer{Name: "Maria", Email: "maria@example.com"},
		Total:    60.00,
		Status:   models.StatusRejected,
	}
	require.NoError(t, s.RunInOrderTx(func(tx *sql.Tx) error {
		return s.SaveOrderTx(tx, order)
	}))

	rec := approve(t, h, "ord-2")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestApprovePaymentUnknownOrder(t *testing.T) {
	h, _ := newOrderHandler(t)
	rec := approve(t, h, "ord-missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
