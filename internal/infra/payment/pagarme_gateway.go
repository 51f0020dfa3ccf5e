package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"clinic-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*PagarmeGateway)(nil)

// PagarmeGateway implements adapter.PaymentGateway against the Pagar.me core
// v5 orders API. Stateless; one order request, one response.
type PagarmeGateway struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewPagarmeGateway(apiKey string) (*PagarmeGateway, error) {
	if apiKey == "" {
		return nil, errors.New("pagarme api key empty")
	}
	return &PagarmeGateway{
		apiKey:  apiKey,
		baseURL: "https://api.pagar.me/core/v5",
		client:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// SetBaseURL points the adapter at a different endpoint. Tests only.
func (g *PagarmeGateway) SetBaseURL(u string) { g.baseURL = u }

func (g *PagarmeGateway) Name() string { return "pagarme" }

type orderItem struct {
	Amount      int64  `json:"amount"` // cents
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
}

type orderPhone struct {
	CountryCode string `json:"country_code"`
	AreaCode    string `json:"area_code"`
	Number      string `json:"number"`
}

type orderCustomer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Document string `json:"document"`
	Type     string `json:"type"`
	Phones   struct {
		MobilePhone orderPhone `json:"mobile_phone"`
	} `json:"phones"`
}

type orderPayment struct {
	PaymentMethod string `json:"payment_method"`
	Pix           struct {
		ExpiresIn int `json:"expires_in"`
	} `json:"pix"`
}

type orderRequest struct {
	Items    []orderItem    `json:"items"`
	Customer orderCustomer  `json:"customer"`
	Payments []orderPayment `json:"payments"`
}

type orderResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Charges []struct {
		LastTransaction struct {
			QRCode    string `json:"qr_code"`
			QRCodeURL string `json:"qr_code_url"`
		} `json:"last_transaction"`
	} `json:"charges"`
	Message string `json:"message"`
}

// CreatePixOrder posts the order and extracts the Pix QR payload from the
// first charge. BRL amounts are converted to integer cents on the wire.
func (g *PagarmeGateway) CreatePixOrder(ctx context.Context, req *adapter.PixOrderRequest) (*adapter.PixOrderResult, error) {
	if req == nil || len(req.Items) == 0 {
		return nil, errors.New("pagarme: order has no items")
	}

	body := orderRequest{Customer: orderCustomer{
		Name:     req.Customer.Name,
		Email:    req.Customer.Email,
		Document: req.Customer.Document,
		Type:     req.Customer.Type,
	}}
	body.Customer.Phones.MobilePhone = orderPhone{
		CountryCode: req.Customer.Phone.CountryCode,
		AreaCode:    req.Customer.Phone.AreaCode,
		Number:      req.Customer.Phone.Number,
	}
	for _, it := range req.Items {
		body.Items = append(body.Items, orderItem{
			Amount:      it.Amount.Shift(2).Round(0).IntPart(),
			Description: it.Description,
			Quantity:    it.Quantity,
		})
	}
	var pay orderPayment
	pay.PaymentMethod = "pix"
	pay.Pix.ExpiresIn = req.ExpiresInSec
	body.Payments = []orderPayment{pay}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/orders", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(g.apiKey, "")
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("pagarme: decode response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errors.New("pagarme: authentication failed, check api key")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("pagarme: order request failed: status=%d message=%s", resp.StatusCode, out.Message)
	}
	if len(out.Charges) == 0 || out.Charges[0].LastTransaction.QRCode == "" {
		return nil, errors.New("pagarme: response has no qr code")
	}

	return &adapter.PixOrderResult{
		ExternalID: out.ID,
		Status:     out.Status,
		QRCode:     out.Charges[0].LastTransaction.QRCode,
		QRCodeURL:  out.Charges[0].LastTransaction.QRCodeURL,
	}, nil
}
