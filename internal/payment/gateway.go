// Package payment adapts the two external payment processors behind a
// common interface. Each adapter normalizes its gateway's response shape
// into a Result so the checkout pipeline never branches on raw status
// strings.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
)

type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeApproved
	OutcomePending
	OutcomeInProcess
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApproved:
		return "approved"
	case OutcomePending:
		return "pending"
	case OutcomeInProcess:
		return "in_process"
	case OutcomeRejected:
		return "rejected"
	default:
		return "failed"
	}
}

// Result is the normalized gateway response.
type Result struct {
	Outcome       Outcome
	TransactionID string
	RawStatus     string
	Message       string
}

// Paid reports whether the checkout pipeline should treat the payment as
// gone through. Pending and in-process count as paid: stock is decremented
// and the confirmation email goes out before the money is confirmed, which
// is what the store wants for boleto and Pix-style payments. Flip it here
// if that policy ever changes.
func (r *Result) Paid() bool {
	switch r.Outcome {
	case OutcomeApproved, OutcomePending, OutcomeInProcess:
		return true
	default:
		return false
	}
}

// Request carries everything a gateway may need. Tokenized fields are used
// by Mercado Pago, Card by Pagar.me.
type Request struct {
	Amount            float64
	Installments      int
	Description       string
	ExternalReference string

	CustomerName  string
	CustomerEmail string
	CustomerPhone string

	// Mercado Pago (client-side tokenized instrument)
	Token           string
	IssuerID        string
	PaymentMethodID string
	Payer           json.RawMessage
	AdditionalInfo  json.RawMessage

	// Pagar.me (raw card fields, legacy path)
	Card *Card
}

type Card struct {
	Number         string
	Holder         string
	ExpirationDate string // MM/YY
	CVV            string
}

type Gateway interface {
	Name() string
	SubmitPayment(ctx context.Context, req *Request) (*Result, error)
}

// UpstreamError preserves the gateway's own status code and error body so
// handlers can forward them to the client unchanged.
type UpstreamError struct {
	StatusCode int
	Body       json.RawMessage
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, string(e.Body))
}
