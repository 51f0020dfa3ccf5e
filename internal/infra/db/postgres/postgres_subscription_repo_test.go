//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinic-billing/internal/domain"
	"clinic-billing/internal/domain/model"
	"clinic-billing/internal/domain/ports/repository"
)

func TestSubscriptionRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewSubscriptionRepo(testPool)
	started := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	newSub := func(tenant string, status model.SubscriptionStatus, current bool) *model.Subscription {
		return &model.Subscription{
			TenantKey: tenant,
			PlanID:    "plan-basic",
			PlanType:  model.PlanMonthly,
			Status:    status,
			IsCurrent: current,
			StartedAt: started,
			ExpiresAt: model.ExpiryUnset(),
		}
	}

	t.Run("create and read back round-trips the expiry encoding", func(t *testing.T) {
		cleanup(t)

		unsetID, err := repo.Create(ctx, newSub("clinica alfa", model.SubscriptionStatusPending, true))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		got, err := repo.GetByID(ctx, unsetID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !got.ExpiresAt.Unset() {
			t.Error("expected unset expiry")
		}

		lifetime := newSub("clinica beta", model.SubscriptionStatusActive, true)
		lifetime.PlanType = model.PlanLifetime
		lifetime.ExpiresAt = model.ExpiryNever()
		lifeID, err := repo.Create(ctx, lifetime)
		if err != nil {
			t.Fatalf("create lifetime: %v", err)
		}
		got, err = repo.GetByID(ctx, lifeID)
		if err != nil {
			t.Fatalf("get lifetime: %v", err)
		}
		if !got.ExpiresAt.Never() {
			t.Error("expected never-expiring subscription")
		}

		dated := newSub("clinica gama", model.SubscriptionStatusActive, true)
		exp := started.AddDate(0, 0, 30)
		dated.ExpiresAt = model.ExpiryAt(exp)
		datedID, err := repo.Create(ctx, dated)
		if err != nil {
			t.Fatalf("create dated: %v", err)
		}
		got, err = repo.GetByID(ctx, datedID)
		if err != nil {
			t.Fatalf("get dated: %v", err)
		}
		if at, ok := got.ExpiresAt.Time(); !ok || !at.Equal(exp) {
			t.Errorf("expected expiry %v, got %v (set=%v)", exp, at, ok)
		}
	})

	t.Run("partial update touches only the requested fields", func(t *testing.T) {
		cleanup(t)
		id, _ := repo.Create(ctx, newSub("clinica alfa", model.SubscriptionStatusPending, true))

		active := model.SubscriptionStatusActive
		paidAt := started.Add(time.Hour)
		exp := model.ExpiryAt(started.AddDate(0, 0, 30))
		if err := repo.Update(ctx, id, repository.SubscriptionUpdate{
			Status:     &active,
			LastPaidAt: &paidAt,
			ExpiresAt:  &exp,
		}); err != nil {
			t.Fatalf("update: %v", err)
		}

		got, _ := repo.GetByID(ctx, id)
		if got.Status != model.SubscriptionStatusActive {
			t.Errorf("status not updated: %q", got.Status)
		}
		if !got.IsCurrent {
			t.Error("is_current mutated without being requested")
		}
		if got.LastPaidAt == nil || !got.LastPaidAt.Equal(paidAt) {
			t.Errorf("last_paid_at not updated: %v", got.LastPaidAt)
		}
	})

	t.Run("update of a missing id reports not found", func(t *testing.T) {
		cleanup(t)
		active := model.SubscriptionStatusActive
		err := repo.Update(ctx, "00000000-0000-0000-0000-000000000000", repository.SubscriptionUpdate{Status: &active})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("current lookup distinguishes none, one and conflict", func(t *testing.T) {
		cleanup(t)

		if _, err := repo.GetCurrentByTenant(ctx, "clinica alfa"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for empty tenant, got: %v", err)
		}

		id, _ := repo.Create(ctx, newSub("clinica alfa", model.SubscriptionStatusActive, true))
		got, err := repo.GetCurrentByTenant(ctx, "clinica alfa")
		if err != nil {
			t.Fatalf("expected one current, got: %v", err)
		}
		if got.ID != id {
			t.Errorf("wrong row: %q", got.ID)
		}

		// Cancelled rows never count as current even with the flag set.
		cancelled := newSub("clinica alfa", model.SubscriptionStatusCancelled, true)
		_, _ = repo.Create(ctx, cancelled)
		if _, err := repo.GetCurrentByTenant(ctx, "clinica alfa"); err != nil {
			t.Errorf("cancelled row counted as current: %v", err)
		}

		_, _ = repo.Create(ctx, newSub("clinica alfa", model.SubscriptionStatusPending, true))
		if _, err := repo.GetCurrentByTenant(ctx, "clinica alfa"); !errors.Is(err, domain.ErrCurrentConflict) {
			t.Errorf("expected ErrCurrentConflict, got: %v", err)
		}
	})

	t.Run("expiry listing skips lifetime and future rows", func(t *testing.T) {
		cleanup(t)
		now := started.AddDate(0, 2, 0)

		due := newSub("clinica alfa", model.SubscriptionStatusActive, true)
		due.ExpiresAt = model.ExpiryAt(now.Add(-time.Hour))
		dueID, _ := repo.Create(ctx, due)

		fresh := newSub("clinica beta", model.SubscriptionStatusActive, true)
		fresh.ExpiresAt = model.ExpiryAt(now.Add(time.Hour))
		_, _ = repo.Create(ctx, fresh)

		lifetime := newSub("clinica gama", model.SubscriptionStatusActive, true)
		lifetime.PlanType = model.PlanLifetime
		lifetime.ExpiresAt = model.ExpiryNever()
		_, _ = repo.Create(ctx, lifetime)

		list, err := repo.ListExpired(ctx, now)
		if err != nil {
			t.Fatalf("list expired: %v", err)
		}
		if len(list) != 1 || list[0].ID != dueID {
			t.Errorf("unexpected expired set: %+v", list)
		}
	})

	t.Run("deactivate all current cancels every current row of the tenant", func(t *testing.T) {
		cleanup(t)
		a, _ := repo.Create(ctx, newSub("clinica alfa", model.SubscriptionStatusActive, true))
		b, _ := repo.Create(ctx, newSub("clinica alfa", model.SubscriptionStatusPending, true))
		other, _ := repo.Create(ctx, newSub("clinica beta", model.SubscriptionStatusActive, true))

		if err := repo.DeactivateAllCurrent(ctx, "clinica alfa"); err != nil {
			t.Fatalf("deactivate: %v", err)
		}

		for _, id := range []string{a, b} {
			got, _ := repo.GetByID(ctx, id)
			if got.IsCurrent || got.Status != model.SubscriptionStatusCancelled {
				t.Errorf("row %s not deactivated: status=%q current=%v", id, got.Status, got.IsCurrent)
			}
		}
		got, _ := repo.GetByID(ctx, other)
		if !got.IsCurrent {
			t.Error("other tenant affected")
		}
	})

	t.Run("version chain survives the round-trip", func(t *testing.T) {
		cleanup(t)
		oldID, _ := repo.Create(ctx, newSub("clinica alfa", model.SubscriptionStatusActive, true))
		next := newSub("clinica alfa", model.SubscriptionStatusPending, true)
		next.PlanID = "plan-pro"
		next.PreviousSubscriptionID = oldID
		newID, err := repo.Create(ctx, next)
		if err != nil {
			t.Fatalf("create chained: %v", err)
		}
		got, _ := repo.GetByID(ctx, newID)
		if got.PreviousSubscriptionID != oldID {
			t.Errorf("chain lost: %q", got.PreviousSubscriptionID)
		}
	})
}
