package adapter

import (
	"context"

	"github.com/shopspring/decimal"

	"clinic-billing/internal/domain/model"
)

// OrderItem is one line of the order sent to the gateway. Amount is in BRL;
// the adapter converts to integer cents on the wire.
type OrderItem struct {
	Amount      decimal.Decimal
	Description string
	Quantity    int
}

// PixOrderRequest describes the payment order to create with the gateway.
type PixOrderRequest struct {
	Items        []OrderItem
	Customer     model.Customer
	ExpiresInSec int // Pix charge validity window
}

// PixOrderResult is the gateway's answer: the external payment id plus the
// QR-code payload the payer scans.
type PixOrderResult struct {
	ExternalID string
	Status     string
	QRCode     string
	QRCodeURL  string
}

// PaymentGateway builds a payment order with the provider. Pure
// request/response; it holds no local state.
type PaymentGateway interface {
	Name() string
	CreatePixOrder(ctx context.Context, req *PixOrderRequest) (*PixOrderResult, error)
}
