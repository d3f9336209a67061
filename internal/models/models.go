package models

import (
	"time"
)

type Product struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Price             float64   `json:"price"`
	Image             string    `json:"image"`
	Description       string    `json:"description"`
	Quantity          int       `json:"quantity"`
	Stock             int       `json:"stock"` // legacy mirror of Quantity, kept in sync by every write
	LowStockThreshold int       `json:"low_stock_threshold"`
	CreatedAt         time.Time `json:"created_at"`
}

// Order statuses follow the payment-gateway vocabulary.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusInProcess = "in_process"
	StatusRejected  = "rejected"
)

// validTransitions lists the allowed status changes. An update to the
// current status is handled by the store as a no-op.
var validTransitions = map[string]map[string]bool{
	StatusPending:   {StatusApproved: true, StatusRejected: true},
	StatusInProcess: {StatusApproved: true, StatusRejected: true},
	StatusApproved:  {},
	StatusRejected:  {},
}

func CanTransition(from, to string) bool {
	return validTransitions[from][to]
}

type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type OrderItem struct {
	ProductID string  `json:"id"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type Order struct {
	ID            string      `json:"id"`
	Customer      Customer    `json:"customer"`
	Items         []OrderItem `json:"items"`
	Total         float64     `json:"total"`
	Status        string      `json:"status"`
	PaymentMethod string      `json:"payment_method"`
	TransactionID string      `json:"transaction_id"`
	Gateway       string      `json:"gateway"`
	CreatedAt     time.Time   `json:"date"`
}

type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Password string `json:"-"` // bcrypt hash
}
