package outbox

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guilucasv/teodorofit/internal/models"
	"github.com/guilucasv/teodorofit/internal/store"
)

type fakeNotifier struct {
	confirmations []string
	notices       []string
	lowStock      [][]models.Product
	failKinds     map[string]bool
}

func (f *fakeNotifier) SendOrderConfirmation(order *models.Order) error {
	if f.failKinds[TaskOrderConfirmation] {
		return errors.New("smtp down")
	}
	f.confirmations = append(f.confirmations, order.ID)
	return nil
}

func (f *fakeNotifier) SendOperatorNotice(order *models.Order) error {
	if f.failKinds[TaskOperatorNotice] {
		return errors.New("smtp down")
	}
	f.notices = append(f.notices, order.ID)
	return nil
}

func (f *fakeNotifier) SendLowStockAlert(products []models.Product) error {
	if f.failKinds[TaskLowStockAlert] {
		return errors.New("smtp down")
	}
	f.lowStock = append(f.lowStock, products)
	return nil
}

func newTestWorker(t *testing.T) (*Worker, *store.Store, *fakeNotifier) {
	t.Helper()
	s, err := store.NewStore(":memory:")
	require.NoError(t, err)
	s.DB.SetMaxOpenConns(1)
	t.Cleanup(func() { s.DB.Close() })
	require.NoError(t, s.Migrate("../../migrations"))

	n := &fakeNotifier{failKinds: map[string]bool{}}
	w := NewWorker(s, n)
	return w, s, n
}

func seedOrder(t *testing.T, s *store.Store, id string) *models.Order {
	t.Helper()
	order := &models.Order{
		ID: id,
		Customer: models.Customer{
			Name:  "Ana Souza",
			Email: "ana@example.com",
		},
		Items: []models.OrderItem{
			{ProductID: "prod-001", Title: "Legging Pro", Quantity: 1, UnitPrice: 89.90},
		},
		Total:         89.90,
		Status:        models.StatusApproved,
		PaymentMethod: "credit_card",
		TransactionID: "tx-" + id,
		Gateway:       "mercado_pago",
	}
	require.NoError(t, s.RunInOrderTx(func(tx *sql.Tx) error {
		return s.SaveOrderTx(tx, order)
	}))
	return order
}

func TestDrainDeliversOrderTasks(t *testing.T) {
	w, s, n := newTestWorker(t)
	order := seedOrder(t, s, "ord-1")

	require.NoError(t, s.EnqueueTask(TaskOrderConfirmation, OrderTaskPayload{OrderID: order.ID}))
	require.NoError(t, s.EnqueueTask(TaskOperatorNotice, OrderTaskPayload{OrderID: order.ID}))

	w.Drain()

	assert.Equal(t, []string{"ord-1"}, n.confirmations)
	assert.Equal(t, []string{"ord-1"}, n.notices)

	pending, err := s.PendingTasks(10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDrainDeliversLowStockAlert(t *testing.T) {
	w, s, n := newTestWorker(t)

	payload := LowStockPayload{Products: []models.Product{
		{ID: "prod-002", Title: "Top Force", Quantity: 2, LowStockThreshold: 5},
	}}
	require.NoError(t, s.EnqueueTask(TaskLowStockAlert, payload))

	w.Drain()

	require.Len(t, n.lowStock, 1)
	require.Len(t, n.lowStock[0], 1)
	assert.Equal(t, "prod-002", n.lowStock[0][0].ID)
	assert.Equal(t, 2, n.lowStock[0][0].Quantity)
}

func TestDrainRetriesUntilAttemptCap(t *testing.T) {
	w, s, n := newTestWorker(t)
	order := seedOrder(t, s, "ord-2")
	w.MaxAttempts = 3
	n.failKinds[TaskOrderConfirmation] = true

	require.NoError(t, s.EnqueueTask(TaskOrderConfirmation, OrderTaskPayload{OrderID: order.ID}))

	// First two failures keep the task in the queue.
	w.Drain()
	w.Drain()
	pending, err := s.PendingTasks(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Attempts)

	// The third failure exhausts the attempt budget.
	w.Drain()
	pending, err = s.PendingTasks(10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Empty(t, n.confirmations)

	// A later success on a fresh task is unaffected.
	n.failKinds[TaskOrderConfirmation] = false
	require.NoError(t, s.EnqueueTask(TaskOrderConfirmation, OrderTaskPayload{OrderID: order.ID}))
	w.Drain()
	assert.Equal(t, []string{"ord-2"}, n.confirmations)
}

func TestDrainFailsTaskForMissingOrder(t *testing.T) {
	w, s, n := newTestWorker(t)
	w.MaxAttempts = 1

	require.NoError(t, s.EnqueueTask(TaskOrderConfirmation, OrderTaskPayload{OrderID: "ord-missing"}))
	w.Drain()

	pending, err := s.PendingTasks(10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Empty(t, n.confirmations)
}

func TestDrainFailsUnknownKind(t *testing.T) {
	w, s, _ := newTestWorker(t)
	w.MaxAttempts = 1

	require.NoError(t, s.EnqueueTask("carrier_pigeon", OrderTaskPayload{OrderID: "ord-1"}))
	w.Drain()

	pending, err := s.PendingTasks(10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
