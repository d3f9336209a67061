package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// PagarMe is the secondary gateway. It takes raw card fields straight from
// the client, which is a materially weaker posture than Mercado Pago's
// client-side tokenization; the route stays for compatibility with the old
// checkout form.
type PagarMe struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

func NewPagarMe(apiKey, baseURL string, timeout time.Duration) *PagarMe {
	return &PagarMe{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (g *PagarMe) Name() string { return "pagar_me" }

func (g *PagarMe) Configured() bool { return g.APIKey != "" }

type pagarMePhone struct {
	CountryCode string `json:"country_code"`
	Number      string `json:"number"`
	AreaCode    string `json:"area_code"`
}

type pagarMeCustomer struct {
	Email  string         `json:"email"`
	Name   string         `json:"name"`
	Phones []pagarMePhone `json:"phones,omitempty"`
}

type pagarMeCard struct {
	Number     string `json:"number"`
	HolderName string `json:"holder_name"`
	ExpMonth   int    `json:"exp_month"`
	ExpYear    int    `json:"exp_year"`
	CVV        string `json:"cvv"`
}

type pagarMePayment struct {
	PaymentMethod string      `json:"payment_method"`
	Card          pagarMeCard `json:"card"`
	Amount        int         `json:"amount"` // centavos
}

type pagarMeOrderRequest struct {
	Customer pagarMeCustomer   `json:"customer"`
	Payments []pagarMePayment  `json:"payments"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type pagarMeOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func splitExpiration(exp string) (month, year int) {
	parts := strings.SplitN(exp, "/", 2)
	if len(parts) == 2 {
		month, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
		year, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	return month, year
}

func (g *PagarMe) SubmitPayment(ctx context.Context, req *Request) (*Result, error) {
	if req.Card == nil {
		return nil, fmt.Errorf("pagar.me requires card fields")
	}

	customer := pagarMeCustomer{
		Email: req.CustomerEmail,
		Name:  req.CustomerName,
	}
	if phone := digitsOnly(req.CustomerPhone); len(phone) > 2 {
		customer.Phones = []pagarMePhone{{
			CountryCode: "55",
			Number:      phone,
			AreaCode:    phone[:2],
		}}
	}

	month, year := splitExpiration(req.Card.ExpirationDate)
	payload := pagarMeOrderRequest{
		Customer: customer,
		Payments: []pagarMePayment{{
			PaymentMethod: "card",
			Card: pagarMeCard{
				Number:     strings.ReplaceAll(req.Card.Number, " ", ""),
				HolderName: req.Card.Holder,
				ExpMonth:   month,
				ExpYear:    year,
				CVV:        req.Card.CVV,
			},
			Amount: int(math.Round(req.Amount * 100)),
		}},
	}
	if req.ExternalReference != "" {
		payload.Metadata = map[string]string{"order_id": req.ExternalReference}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal pagar.me payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/core/v5/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(g.APIKey, "")
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("pagar.me request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read pagar.me response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: respBody}
	}

	var orderResp pagarMeOrderResponse
	if err := json.Unmarshal(respBody, &orderResp); err != nil {
		slog.Error("Malformed Pagar.me response", "error", err)
		return &Result{Outcome: OutcomeFailed, Message: "resposta inválida do gateway"}, nil
	}

	result := &Result{
		TransactionID: orderResp.ID,
		RawStatus:     orderResp.Status,
	}
	switch orderResp.Status {
	case "paid":
		result.Outcome = OutcomeApproved
		result.Message = "Pagamento processado com sucesso"
	case "pending":
		result.Outcome = OutcomePending
		result.Message = "Pagamento com status: pending"
	case "processing":
		result.Outcome = OutcomeInProcess
		result.Message = "Pagamento com status: processing"
	case "failed", "canceled":
		result.Outcome = OutcomeRejected
		result.Message = "Pagamento recusado"
	default:
		result.Outcome = OutcomeFailed
		result.Message = "Pagamento com status: " + orderResp.Status
	}
	return result, nil
}
