package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/guilucasv/teodorofit/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	// Every pooled connection would otherwise get its own empty in-memory DB.
	s.DB.SetMaxOpenConns(1)
	require.NoError(t, s.Migrate(filepath.Join("..", "..", "migrations")))
	t.Cleanup(func() { s.DB.Close() })
	return s
}

func seedProduct(t *testing.T, s *Store, id string, price float64, qty, threshold int) {
	t.Helper()
	require.NoError(t, s.CreateProduct(&models.Product{
		ID:                id,
		Title:             "Produto " + id,
		Price:             price,
		Quantity:          qty,
		LowStockThreshold: threshold,
	}))
}

func TestCreateProductMirrorsStock(t *testing.T) {
	s := newTestStore(t)
	seedProduct(t, s, "p1", 60.00, 10, 5)

	p, err := s.GetProductByID("p1")
	require.NoError(t, err)
	assert.Equal(t, 10, p.Quantity)
	assert.Equal(t, p.Quantity, p.Stock)
}

func TestSetStockMirrorsAndClamps(t *testing.T) {
	s := newTestStore(t)
	seedProduct(t, s, "p1", 60.00, 10, 5)

	require.NoError(t, s.SetStock("p1", 3))
	p, err := s.GetProductByID("p1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Quantity)
	assert.Equal(t, 3, p.Stock)

	require.NoError(t, s.SetStock("p1", -4))
	p, err = s.GetProductByID("p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Quantity)
	assert.Equal(t, 0, p.Stock)

	err = s.SetStock("missing", 5)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDecrementStockTx(t *testing.T) {
	s := newTestStore(t)
	seedProduct(t, s, "p1", 60.00, 10, 5)

	t.Run("normal decrement mirrors stock", func(t *testing.T) {
		err := s.RunInOrderTx(func(tx *sql.Tx) error {
			p, err := s.DecrementStockTx(tx, "p1", 3)
			require.NoError(t, err)
			assert.Equal(t, 7, p.Quantity)
			assert.Equal(t, 7, p.Stock)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("clamped at zero", func(t *testing.T) {
		err := s.RunInOrderTx(func(tx *sql.Tx) error {
			p, err := s.DecrementStockTx(tx, "p1", 100)
			require.NoError(t, err)
			assert.Equal(t, 0, p.Quantity)
			assert.Equal(t, 0, p.Stock)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("unknown product", func(t *testing.T) {
		err := s.RunInOrderTx(func(tx *sql.Tx) error {
			_, err := s.DecrementStockTx(tx, "missing", 1)
			return err
		})
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}

func TestGetProductByTitle(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateProduct(&models.Product{ID: "p1", Title: "Conjunto Green Moon", Price: 60, Quantity: 20}))

	p, err := s.GetProductByTitle("conjunto green moon")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)

	_, err = s.GetProductByTitle("inexistente")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSyncStock(t *testing.T) {
	s := newTestStore(t)
	seedProduct(t, s, "p1", 60.00, 10, 5)
	seedProduct(t, s, "p2", 70.00, 8, 5)

	// Simulate legacy drift directly.
	_, err := s.DB.Exec(`UPDATE products SET stock = 99 WHERE id = 'p1'`)
	require.NoError(t, err)

	fixed, err := s.SyncStock()
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)

	p, err := s.GetProductByID("p1")
	require.NoError(t, err)
	assert.Equal(t, p.Quantity, p.Stock)
}

func saveOrder(t *testing.T, s *Store, id, status string) {
	t.Helper()
	err := s.RunInOrderTx(func(tx *sql.Tx) error {
		return s.SaveOrderTx(tx, &models.Order{
			ID:            id,
			Customer:      models.Customer{Name: "Maria", Email: "maria@example.com"},
			Items:         []models.OrderItem{{ProductID: "p1", Title: "Produto p1", Quantity: 2, UnitPrice: 60}},
			Total:         120,
			Status:        status,
			TransactionID: "tx-" + id,
			Gateway:       "mercado_pago",
		})
	})
	require.NoError(t, err)
}

func TestOrderRoundTrip(t *testing.T) {
	s := newTestStore(t)
	saveOrder(t, s, "o1", models.StatusPending)

	o, err := s.GetOrderByID("o1")
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", o.Customer.Email)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Equal(t, 120.0, o.Total)

	byTx, err := s.GetOrderByTransactionID("tx-o1")
	require.NoError(t, err)
	assert.Equal(t, "o1", byTx.ID)

	count, err := s.GetTotalOrdersCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpdateOrderStatus(t *testing.T) {
	s := newTestStore(t)
	saveOrder(t, s, "o1", models.StatusPending)

	t.Run("pending to approved", func(t *testing.T) {
		changed, err := s.UpdateOrderStatus("o1", models.StatusApproved)
		require.NoError(t, err)
		assert.True(t, changed)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		changed, err := s.UpdateOrderStatus("o1", models.StatusApproved)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("approved cannot regress", func(t *testing.T) {
		_, err := s.UpdateOrderStatus("o1", models.StatusRejected)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := s.UpdateOrderStatus("missing", models.StatusApproved)
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}

func TestOutboxLifecycle(t *testing.T) {
	s := newTestStore(t)

	err := s.RunInOrderTx(func(tx *sql.Tx) error {
		return s.EnqueueTaskTx(tx, "order_confirmation", map[string]string{"order_id": "o1"})
	})
	require.NoError(t, err)
	require.NoError(t, s.EnqueueTask("operator_notice", map[string]string{"order_id": "o1"}))

	tasks, err := s.PendingTasks(10)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	require.NoError(t, s.MarkTaskDelivered(tasks[0].ID))
	tasks2, err := s.PendingTasks(10)
	require.NoError(t, err)
	require.Len(t, tasks2, 1)

	// Exhaust attempts: task goes to failed and leaves the pending queue.
	for i := 0; i < 3; i++ {
		require.NoError(t, s.MarkTaskFailed(tasks2[0].ID, 3))
	}
	tasks3, err := s.PendingTasks(10)
	require.NoError(t, err)
	assert.Empty(t, tasks3)
}

func TestPriceAlerts(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordPriceAlert(&PriceAlert{
		PayerEmail:     "hacker@teste.com",
		RemoteAddr:     "127.0.0.1:5000",
		ClaimedAmount:  1.00,
		ComputedAmount: 180.00,
	}))

	alerts, err := s.GetPriceAlerts(10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, 1.00, alerts[0].ClaimedAmount)
	assert.Equal(t, 180.00, alerts[0].ComputedAmount)
}

func TestDashboardStats(t *testing.T) {
	s := newTestStore(t)
	seedProduct(t, s, "p1", 60.00, 2, 5) // already low
	seedProduct(t, s, "p2", 70.00, 50, 5)
	saveOrder(t, s, "o1", models.StatusApproved)
	saveOrder(t, s, "o2", models.StatusPending)

	stats, err := s.GetDashboardStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalProducts)
	assert.Equal(t, 2, stats.TotalOrders)
	assert.Equal(t, 1, stats.OrdersByStatus[models.StatusApproved])
	assert.Equal(t, 120.0, stats.ApprovedRevenue)
	require.Len(t, stats.LowStock, 1)
	assert.Equal(t, "p1", stats.LowStock[0].ID)
}
