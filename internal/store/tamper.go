package store

import (
	"time"
)

// PriceAlert records a checkout whose client-claimed amount did not match
// the server-computed total. The computed amount is always the one charged;
// the alert exists for diagnostics.
type PriceAlert struct {
	ID             int       `json:"id"`
	PayerEmail     string    `json:"payer_email"`
	RemoteAddr     string    `json:"remote_addr"`
	ClaimedAmount  float64   `json:"claimed_amount"`
	ComputedAmount float64   `json:"computed_amount"`
	CreatedAt      time.Time `json:"created_at"`
}

func (s *Store) RecordPriceAlert(a *PriceAlert) error {
	_, err := s.DB.Exec(`INSERT INTO price_alerts (payer_email, remote_addr, claimed_amount, computed_amount, created_at) VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		a.PayerEmail, a.RemoteAddr, a.ClaimedAmount, a.ComputedAmount)
	return err
}

func (s *Store) GetPriceAlerts(limit int) ([]PriceAlert, error) {
	rows, err := s.DB.Query(`SELECT id, COALESCE(payer_email, ''), COALESCE(remote_addr, ''), claimed_amount, computed_amount, created_at FROM price_alerts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []PriceAlert
	for rows.Next() {
		var a PriceAlert
		if err := rows.Scan(&a.ID, &a.PayerEmail, &a.RemoteAddr, &a.ClaimedAmount, &a.ComputedAmount, &a.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
