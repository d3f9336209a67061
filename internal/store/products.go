package store

import (
	"database/sql"
	"fmt"

	"github.com/guilucasv/teodorofit/internal/models"
)

const productColumns = `id, title, price, COALESCE(image, ''), COALESCE(description, ''), quantity, stock, low_stock_threshold, created_at`

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.Title, &p.Price, &p.Image, &p.Description, &p.Quantity, &p.Stock, &p.LowStockThreshold, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(p *models.Product) error {
	query := `
		INSERT INTO products (id, title, price, image, description, quantity, stock, low_stock_threshold, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`
	// stock always mirrors quantity on write
	_, err := s.DB.Exec(query, p.ID, p.Title, p.Price, p.Image, p.Description, p.Quantity, p.Quantity, p.LowStockThreshold)
	return err
}

func (s *Store) GetAllProducts() ([]models.Product, error) {
	rows, err := s.DB.Query(`SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *Store) GetProductByID(id string) (*models.Product, error) {
	row := s.DB.QueryRow(`SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	return scanProduct(row)
}

// GetProductByTitle is the lookup fallback for order lines that carry no
// product id. Matching is case-insensitive.
func (s *Store) GetProductByTitle(title string) (*models.Product, error) {
	row := s.DB.QueryRow(`SELECT `+productColumns+` FROM products WHERE LOWER(title) = LOWER(?)`, title)
	return scanProduct(row)
}

func (s *Store) DeleteProduct(id string) error {
	_, err := s.DB.Exec(`DELETE FROM products WHERE id = ?`, id)
	return err
}

// SetStock is the direct admin override. It writes quantity and stock
// together so the legacy mirror never drifts.
func (s *Store) SetStock(id string, quantity int) error {
	if quantity < 0 {
		quantity = 0
	}
	res, err := s.DB.Exec(`UPDATE products SET quantity = ?, stock = ? WHERE id = ?`, quantity, quantity, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DecrementStockTx subtracts purchased from the product's quantity, clamped
// at zero, mirrors the result into stock and returns the updated row.
func (s *Store) DecrementStockTx(tx *sql.Tx, id string, purchased int) (*models.Product, error) {
	query := `
		UPDATE products
		SET quantity = MAX(0, quantity - ?), stock = MAX(0, quantity - ?)
		WHERE id = ?
	`
	res, err := tx.Exec(query, purchased, purchased, id)
	if err != nil {
		return nil, fmt.Errorf("decrement stock for %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, sql.ErrNoRows
	}
	return scanProduct(tx.QueryRow(`SELECT `+productColumns+` FROM products WHERE id = ?`, id))
}

// SyncStock re-mirrors stock = quantity across the whole catalog and
// returns how many rows had drifted.
func (s *Store) SyncStock() (int, error) {
	res, err := s.DB.Exec(`UPDATE products SET stock = quantity WHERE stock != quantity`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
