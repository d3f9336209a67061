// Package inventory gates checkouts against the product catalog: it
// validates requested quantities, recomputes order totals server-side and
// decrements stock once a payment went through.
package inventory

import (
	"database/sql"
	"errors"
	"log/slog"

	"github.com/guilucasv/teodorofit/internal/models"
	"github.com/guilucasv/teodorofit/internal/store"
)

const DefaultLowStockThreshold = 5

// LineItem is an order line as submitted by the client. UnitPrice is what
// the client claims and is never trusted for pricing.
type LineItem struct {
	ProductID string  `json:"id"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type UnavailableItem struct {
	Title     string `json:"title"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

type ValidationResult struct {
	Valid       bool              `json:"valid"`
	Unavailable []UnavailableItem `json:"unavailable,omitempty"`
}

type Service struct {
	Store *store.Store
}

func NewService(s *store.Store) *Service {
	return &Service{Store: s}
}

// lookup finds the product for an order line, by id first and by title as
// a fallback for lines that carry none.
func (s *Service) lookup(item LineItem) (*models.Product, error) {
	if item.ProductID != "" {
		p, err := s.Store.GetProductByID(item.ProductID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	if item.Title != "" {
		return s.Store.GetProductByTitle(item.Title)
	}
	return nil, sql.ErrNoRows
}

// Product resolves an order line to its catalog product.
func (s *Service) Product(item LineItem) (*models.Product, error) {
	return s.lookup(item)
}

// Validate checks every requested quantity against current stock.
//
// Lookup failures fail OPEN: absence of inventory data never blocks a sale.
func (s *Service) Validate(items []LineItem) ValidationResult {
	result := ValidationResult{Valid: true}

	for _, item := range items {
		p, err := s.lookup(item)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				slog.Warn("Stock validation skipped, catalog unavailable", "item", item.Title, "error", err)
			} else {
				slog.Warn("Stock validation skipped, product not found", "id", item.ProductID, "title", item.Title)
			}
			continue
		}

		available := p.Quantity
		if available == 0 && p.Stock > 0 {
			// Drifted legacy data: fall back to the old stock field.
			available = p.Stock
		}

		if item.Quantity > available {
			result.Valid = false
			result.Unavailable = append(result.Unavailable, UnavailableItem{
				Title:     p.Title,
				Available: available,
				Requested: item.Quantity,
			})
		}
	}
	return result
}

// Total recomputes the order amount from catalog prices, ignoring whatever
// the client claims. Unlike Validate, this fails CLOSED: any missing
// product or lookup failure returns 0, which callers must reject.
func (s *Service) Total(items []LineItem) float64 {
	var total float64
	for _, item := range items {
		p, err := s.lookup(item)
		if err != nil {
			slog.Error("Total calculation failed", "id", item.ProductID, "title", item.Title, "error", err)
			return 0
		}
		if item.Quantity <= 0 {
			slog.Error("Total calculation failed, invalid quantity", "title", item.Title, "quantity", item.Quantity)
			return 0
		}
		total += p.Price * float64(item.Quantity)
	}
	return total
}

// ReconcileTx decrements stock for every purchased line inside the caller's
// transaction and returns the products that ended at or below their
// low-stock threshold, each at most once.
func (s *Service) ReconcileTx(tx *sql.Tx, items []LineItem) ([]models.Product, error) {
	var lowStock []models.Product
	seen := make(map[string]bool)

	for _, item := range items {
		p, err := s.lookup(item)
		if err != nil {
			// Validation already let this line through; a vanished
			// product must not abort the paid order.
			slog.Warn("Stock reconciliation skipped, product not found", "id", item.ProductID, "title", item.Title)
			continue
		}

		updated, err := s.Store.DecrementStockTx(tx, p.ID, item.Quantity)
		if err != nil {
			return nil, err
		}

		threshold := updated.LowStockThreshold
		if threshold <= 0 {
			threshold = DefaultLowStockThreshold
		}
		if updated.Quantity <= threshold && !seen[updated.ID] {
			seen[updated.ID] = true
			lowStock = append(lowStock, *updated)
		}
	}
	return lowStock, nil
}
