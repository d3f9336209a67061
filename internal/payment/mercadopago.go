package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// MercadoPago is the primary gateway. The client tokenizes the card in the
// browser; the server only ever sees the token.
type MercadoPago struct {
	AccessToken string
	BaseURL     string
	Client      *http.Client
}

func NewMercadoPago(accessToken, baseURL string, timeout time.Duration) *MercadoPago {
	return &MercadoPago{
		AccessToken: accessToken,
		BaseURL:     baseURL,
		Client:      &http.Client{Timeout: timeout},
	}
}

func (g *MercadoPago) Name() string { return "mercado_pago" }

func (g *MercadoPago) Configured() bool { return g.AccessToken != "" }

type mpPaymentRequest struct {
	Token             string          `json:"token,omitempty"`
	IssuerID          string          `json:"issuer_id,omitempty"`
	PaymentMethodID   string          `json:"payment_method_id,omitempty"`
	TransactionAmount float64         `json:"transaction_amount"`
	Installments      int             `json:"installments"`
	Description       string          `json:"description"`
	Payer             json.RawMessage `json:"payer,omitempty"`
	ExternalReference string          `json:"external_reference,omitempty"`
	AdditionalInfo    json.RawMessage `json:"additional_info,omitempty"`
}

type mpPaymentResponse struct {
	ID           json.Number `json:"id"`
	Status       string      `json:"status"`
	StatusDetail string      `json:"status_detail"`
}

func (g *MercadoPago) SubmitPayment(ctx context.Context, req *Request) (*Result, error) {
	description := req.Description
	if description == "" {
		description = "Produto Teodoro Fitness"
	}

	payload := mpPaymentRequest{
		Token:             req.Token,
		IssuerID:          req.IssuerID,
		PaymentMethodID:   req.PaymentMethodID,
		TransactionAmount: req.Amount,
		Installments:      req.Installments,
		Description:       description,
		Payer:             req.Payer,
		ExternalReference: req.ExternalReference,
		AdditionalInfo:    req.AdditionalInfo,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal mercado pago payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	// One key per attempt: the gateway deduplicates retried charges.
	httpReq.Header.Set("X-Idempotency-Key", "IDEM-"+uuid.NewString())

	resp, err := g.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("mercado pago request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read mercado pago response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: respBody}
	}

	var mpResp mpPaymentResponse
	if err := json.Unmarshal(respBody, &mpResp); err != nil {
		slog.Error("Malformed Mercado Pago response", "error", err)
		return &Result{Outcome: OutcomeFailed, Message: "resposta inválida do gateway"}, nil
	}

	result := &Result{
		TransactionID: mpResp.ID.String(),
		RawStatus:     mpResp.Status,
	}
	switch mpResp.Status {
	case "approved":
		result.Outcome = OutcomeApproved
		result.Message = "Pagamento aprovado com sucesso!"
	case "pending":
		result.Outcome = OutcomePending
		result.Message = "Pagamento com status: pending"
	case "in_process":
		result.Outcome = OutcomeInProcess
		result.Message = "Pagamento com status: in_process"
	case "rejected":
		result.Outcome = OutcomeRejected
		result.Message = "Pagamento recusado: " + mpResp.StatusDetail
	default:
		result.Outcome = OutcomeFailed
		result.Message = "Pagamento com status: " + mpResp.Status
	}
	return result, nil
}

// FetchPayment looks a payment up by id, used by the webhook to confirm the
// status the gateway is notifying about.
func (g *MercadoPago) FetchPayment(ctx context.Context, id string) (*Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"/v1/payments/"+id, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.AccessToken)

	resp, err := g.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("mercado pago request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: respBody}
	}

	var mpResp mpPaymentResponse
	if err := json.Unmarshal(respBody, &mpResp); err != nil {
		return nil, fmt.Errorf("decode mercado pago payment: %w", err)
	}
	result := &Result{TransactionID: mpResp.ID.String(), RawStatus: mpResp.Status}
	if mpResp.Status == "approved" {
		result.Outcome = OutcomeApproved
	}
	return result, nil
}
