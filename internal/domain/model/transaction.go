package model

import "time"

type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusPaid    TransactionStatus = "paid"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// Terminal reports whether the status can no longer change. Webhook
// redeliveries for a terminal transaction are no-ops.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusPaid || s == TransactionStatusFailed
}

// PaymentOutcome is what a reconciled gateway notification resolves to.
type PaymentOutcome string

const (
	OutcomePaid   PaymentOutcome = "paid"
	OutcomeFailed PaymentOutcome = "failed"
)

type Phone struct {
	CountryCode string
	AreaCode    string
	Number      string
}

// Customer is the payer snapshot taken when the order is placed, kept on the
// transaction for audit.
type Customer struct {
	Name     string
	Email    string
	Document string
	Type     string // "individual" | "company"
	Phone    Phone
}

// PixCharge holds the QR-code payload returned by the gateway.
type PixCharge struct {
	QRCode    string
	QRCodeURL string
	ExpiresAt time.Time
}

// Transaction records one payment attempt. ExternalPaymentID is assigned by
// the gateway and is the idempotency key for webhook reconciliation.
type Transaction struct {
	ID                string
	ExternalPaymentID string
	TenantKey         string
	PlanID            string
	UserID            string
	AmountCents       int64
	Status            TransactionStatus
	CreatedAt         time.Time
	PaidAt            *time.Time // set only on transition to paid
	SubscriptionID    string     // empty until the owning subscription is resolved
	Customer          Customer
	Pix               PixCharge
}
