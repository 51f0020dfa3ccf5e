package repository

import (
	"context"
	"time"

	"clinic-billing/internal/domain/model"
)

// TransactionUpdate is a partial update; nil fields are left untouched.
type TransactionUpdate struct {
	SubscriptionID *string
}

type TransactionRepository interface {
	// Create persists a new payment attempt and returns the store-assigned id.
	Create(ctx context.Context, tr *model.Transaction) (string, error)
	// UpdateStatus moves a transaction out of pending. Implementations guard
	// the write on the current status being pending so a redelivered webhook
	// cannot re-apply a terminal transition. paidAt is recorded only for paid.
	UpdateStatus(ctx context.Context, id string, status model.TransactionStatus, paidAt *time.Time) error
	Update(ctx context.Context, id string, upd TransactionUpdate) error
	GetByID(ctx context.Context, id string) (*model.Transaction, error)
	// GetByExternalPaymentID is the idempotency lookup for every webhook and
	// must be backed by a unique index on the external payment id.
	GetByExternalPaymentID(ctx context.Context, externalID string) (*model.Transaction, error)
}
