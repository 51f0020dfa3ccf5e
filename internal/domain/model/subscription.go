package model

import (
	"strings"
	"time"
)

type PlanType string

const (
	PlanMonthly  PlanType = "monthly"
	PlanYearly   PlanType = "yearly"
	PlanLifetime PlanType = "lifetime"
)

// ParsePlanType validates a free-form plan type string.
func ParsePlanType(s string) (PlanType, bool) {
	switch PlanType(s) {
	case PlanMonthly, PlanYearly, PlanLifetime:
		return PlanType(s), true
	}
	return "", false
}

type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusTesting   SubscriptionStatus = "testing"
)

// Subscription is one version of a tenant's entitlement. Plan changes create
// a new version linked to the old one via PreviousSubscriptionID; renewals of
// the same plan reuse the version in place.
type Subscription struct {
	ID                     string
	TenantKey              string // always stored normalized (lowercase)
	PlanID                 string
	PlanType               PlanType
	Status                 SubscriptionStatus
	IsCurrent              bool
	StartedAt              time.Time
	ExpiresAt              Expiry
	LastPaidAt             *time.Time
	LastTransactionID      string
	PreviousSubscriptionID string // empty for the first version
}

// NormalizeTenantKey lowercases and trims a tenant identifier. Every lookup
// and every stored record goes through this.
func NormalizeTenantKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
