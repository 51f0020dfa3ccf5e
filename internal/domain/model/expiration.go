package model

import (
	"time"

	"clinic-billing/internal/domain"
)

// ComputeExpiration derives a subscription's expiration from its plan type,
// anchored at the given instant (the payment time). Pure and deterministic.
//
// Monthly plans run 30 days. Yearly plans end on the same month and day of the
// next year; if that date does not exist (a leap day anchor), the caller gets
// ErrInvalidDate and must pick a fallback policy rather than have the date
// silently clamped. Lifetime plans never expire.
func ComputeExpiration(planType PlanType, from time.Time) (Expiry, error) {
	switch planType {
	case PlanMonthly:
		return ExpiryAt(from.AddDate(0, 0, 30)), nil
	case PlanYearly:
		target := time.Date(from.Year()+1, from.Month(), from.Day(),
			from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), from.Location())
		if target.Day() != from.Day() || target.Month() != from.Month() {
			return Expiry{}, domain.ErrInvalidDate
		}
		return ExpiryAt(target), nil
	case PlanLifetime:
		return ExpiryNever(), nil
	default:
		return Expiry{}, domain.ErrUnknownPlanType
	}
}
