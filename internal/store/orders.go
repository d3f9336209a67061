package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/guilucasv/teodorofit/internal/models"
)

var ErrInvalidTransition = errors.New("invalid order status transition")

func (s *Store) SaveOrderTx(tx *sql.Tx, order *models.Order) error {
	query := `
		INSERT INTO orders (id, customer_name, customer_email, customer_phone, customer_address, total, status, payment_method, transaction_id, gateway, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`
	_, err := tx.Exec(query, order.ID, order.Customer.Name, order.Customer.Email, order.Customer.Phone, order.Customer.Address,
		order.Total, order.Status, order.PaymentMethod, order.TransactionID, order.Gateway)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err := tx.Exec(`INSERT INTO order_items (order_id, product_id, title, quantity, unit_price) VALUES (?, ?, ?, ?, ?)`,
			order.ID, item.ProductID, item.Title, item.Quantity, item.UnitPrice)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

const orderColumns = `id, customer_name, customer_email, COALESCE(customer_phone, ''), COALESCE(customer_address, ''), total, status, COALESCE(payment_method, ''), COALESCE(transaction_id, ''), COALESCE(gateway, ''), created_at`

func scanOrder(row interface{ Scan(...any) error }) (*models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone, &o.Customer.Address,
		&o.Total, &o.Status, &o.PaymentMethod, &o.TransactionID, &o.Gateway, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) loadItems(orders []models.Order) error {
	for i := range orders {
		rows, err := s.DB.Query(`SELECT product_id, title, quantity, unit_price FROM order_items WHERE order_id = ?`, orders[i].ID)
		if err != nil {
			return err
		}
		for rows.Next() {
			var it models.OrderItem
			if err := rows.Scan(&it.ProductID, &it.Title, &it.Quantity, &it.UnitPrice); err != nil {
				rows.Close()
				return err
			}
			orders[i].Items = append(orders[i].Items, it)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()
	}
	return nil
}

func (s *Store) GetAllOrders(limit, offset int) ([]models.Order, error) {
	rows, err := s.DB.Query(`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadItems(orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) GetTotalOrdersCount() (int, error) {
	var count int
	err := s.DB.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) GetOrderByID(id string) (*models.Order, error) {
	o, err := scanOrder(s.DB.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	orders := []models.Order{*o}
	if err := s.loadItems(orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// GetOrderByTransactionID resolves a gateway callback to the local order.
func (s *Store) GetOrderByTransactionID(txID string) (*models.Order, error) {
	o, err := scanOrder(s.DB.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE transaction_id = ?`, txID))
	if err != nil {
		return nil, err
	}
	orders := []models.Order{*o}
	if err := s.loadItems(orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// UpdateOrderStatus applies a guarded status transition. Setting the status
// the order already has is a no-op and reports changed=false, so callers do
// not repeat side effects. Any other transition must be allowed by the
// status machine.
func (s *Store) UpdateOrderStatus(id, status string) (changed bool, err error) {
	var current string
	if err := s.DB.QueryRow(`SELECT status FROM orders WHERE id = ?`, id).Scan(&current); err != nil {
		return false, err
	}
	if current == status {
		return false, nil
	}
	if !models.CanTransition(current, status) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}
	if _, err := s.DB.Exec(`UPDATE orders SET status = ? WHERE id = ?`, status, id); err != nil {
		return false, err
	}
	return true, nil
}
