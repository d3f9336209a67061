package store

import (
	"database/sql"

	"github.com/guilucasv/teodorofit/internal/models"
)

type DashboardStats struct {
	TotalProducts   int              `json:"total_products"`
	TotalOrders     int              `json:"total_orders"`
	OrdersByStatus  map[string]int   `json:"orders_by_status"`
	ApprovedRevenue float64          `json:"approved_revenue"`
	LowStock        []models.Product `json:"low_stock"`
}

func (s *Store) GetDashboardStats() (*DashboardStats, error) {
	stats := &DashboardStats{
		OrdersByStatus: make(map[string]int),
	}

	err := s.DB.QueryRow(`SELECT COUNT(*) FROM products`).Scan(&stats.TotalProducts)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	err = s.DB.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&stats.TotalOrders)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	rows, err := s.DB.Query(`SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.OrdersByStatus[status] = count
	}

	err = s.DB.QueryRow(`SELECT COALESCE(SUM(total), 0) FROM orders WHERE status = ?`, models.StatusApproved).Scan(&stats.ApprovedRevenue)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	lowRows, err := s.DB.Query(`SELECT ` + productColumns + ` FROM products WHERE quantity <= low_stock_threshold ORDER BY quantity`)
	if err != nil {
		return nil, err
	}
	defer lowRows.Close()
	for lowRows.Next() {
		p, err := scanProduct(lowRows)
		if err != nil {
			return nil, err
		}
		stats.LowStock = append(stats.LowStock, *p)
	}

	return stats, nil
}
