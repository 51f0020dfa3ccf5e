package repository

import (
	"context"
	"time"

	"clinic-billing/internal/domain/model"
)

// SubscriptionUpdate is a partial update; nil fields are left untouched.
type SubscriptionUpdate struct {
	Status            *model.SubscriptionStatus
	IsCurrent         *bool
	ExpiresAt         *model.Expiry
	LastPaidAt        *time.Time
	LastTransactionID *string
}

// SubscriptionRepository is the only store-facing surface for subscriptions.
// Any storage technology satisfying it is substitutable.
type SubscriptionRepository interface {
	// Create persists a new subscription and returns the store-assigned id.
	Create(ctx context.Context, sub *model.Subscription) (string, error)
	// Update applies a partial update; returns domain.ErrNotFound if id is absent.
	Update(ctx context.Context, id string, upd SubscriptionUpdate) error
	GetByID(ctx context.Context, id string) (*model.Subscription, error)
	// GetCurrentByTenant returns the tenant's single current subscription
	// (IsCurrent and status in pending/active/testing). At most one such row
	// may exist; finding more is a data-integrity violation reported as
	// domain.ErrCurrentConflict, never resolved by picking one arbitrarily.
	// Returns domain.ErrNotFound when the tenant has no current subscription.
	GetCurrentByTenant(ctx context.Context, tenantKey string) (*model.Subscription, error)
	// ListActive returns current subscriptions with status active/testing.
	ListActive(ctx context.Context) ([]*model.Subscription, error)
	// ListExpired returns non-lifetime active/testing subscriptions whose
	// expiration is at or before now.
	ListExpired(ctx context.Context, now time.Time) ([]*model.Subscription, error)
	// DeactivateAllCurrent cancels every current subscription of the tenant
	// in one atomic batch. It runs concurrently with new-version creation
	// for the same tenant, so partial application is not acceptable.
	DeactivateAllCurrent(ctx context.Context, tenantKey string) error
}
