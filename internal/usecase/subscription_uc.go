package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"clinic-billing/internal/domain"
	"clinic-billing/internal/domain/model"
	"clinic-billing/internal/domain/ports/repository"
)

// Locker serializes work per tenant. The redis adapter implements it; tests
// use an in-memory one. A nil locker disables serialization (single-process
// test setups).
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

const tenantLockTTL = 15 * time.Second

// SubscriptionUseCase is the reconciliation state machine: it creates, renews
// and supersedes subscription versions, applies payment outcomes reported by
// the gateway, and runs the expiration sweep.
//
// All mutating entry points run under a per-tenant lock so the read-then-write
// sequences across both repositories cannot interleave for the same tenant.
type SubscriptionUseCase struct {
	subs   repository.SubscriptionRepository
	txs    repository.TransactionRepository
	locker Locker
	log    *zerolog.Logger
	now    func() time.Time
}

func NewSubscriptionUseCase(subs repository.SubscriptionRepository, txs repository.TransactionRepository, locker Locker, logger *zerolog.Logger) *SubscriptionUseCase {
	l := logger.With().Str("component", "SubscriptionUC").Logger()
	return &SubscriptionUseCase{
		subs:   subs,
		txs:    txs,
		locker: locker,
		log:    &l,
		now:    time.Now,
	}
}

// WithClock overrides the time source. Tests only.
func (uc *SubscriptionUseCase) WithClock(now func() time.Time) *SubscriptionUseCase {
	uc.now = now
	return uc
}

func (uc *SubscriptionUseCase) withTenantLock(ctx context.Context, tenantKey string, fn func() error) error {
	if uc.locker == nil {
		return fn()
	}
	key := "tenant-lock:" + tenantKey
	token, err := uc.locker.TryLock(ctx, key, tenantLockTTL)
	if err != nil {
		return domain.ErrLockBusy
	}
	defer func() { _ = uc.locker.Unlock(ctx, key, token) }()
	return fn()
}

// NewTransaction resolves which subscription version a fresh payment attempt
// belongs to and links the transaction to it.
//
//   - No current subscription: a new pending version is created and marked
//     current immediately.
//   - Current subscription on a different plan: a new pending version is
//     created, chained via PreviousSubscriptionID. The old version is NOT
//     deactivated here; that happens on successful payment, so two current
//     versions may coexist until the payment settles.
//   - Current subscription on the same plan: a renewal; the version is reset
//     to pending in place with the new transaction attached.
func (uc *SubscriptionUseCase) NewTransaction(ctx context.Context, tenantKey, planID string, planType model.PlanType, transactionID string) (string, error) {
	if tenantKey == "" || planID == "" || transactionID == "" {
		return "", domain.ErrInvalidArgument
	}
	if _, ok := model.ParsePlanType(string(planType)); !ok {
		return "", domain.ErrUnknownPlanType
	}
	tenant := model.NormalizeTenantKey(tenantKey)

	var subID string
	err := uc.withTenantLock(ctx, tenant, func() error {
		cur, err := uc.subs.GetCurrentByTenant(ctx, tenant)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			cur = nil
		case err != nil:
			return err
		}

		switch {
		case cur == nil:
			uc.log.Info().Str("tenant", tenant).Str("plan_id", planID).Msg("creating first subscription")
			subID, err = uc.subs.Create(ctx, &model.Subscription{
				TenantKey:         tenant,
				PlanID:            planID,
				PlanType:          planType,
				Status:            model.SubscriptionStatusPending,
				IsCurrent:         true,
				StartedAt:         uc.now(),
				ExpiresAt:         model.ExpiryUnset(),
				LastTransactionID: transactionID,
			})
			if err != nil {
				return err
			}

		case cur.PlanID != planID:
			uc.log.Info().
				Str("tenant", tenant).
				Str("old_plan_id", cur.PlanID).
				Str("new_plan_id", planID).
				Msg("creating new subscription version for plan change")
			subID, err = uc.subs.Create(ctx, &model.Subscription{
				TenantKey:              tenant,
				PlanID:                 planID,
				PlanType:               planType,
				Status:                 model.SubscriptionStatusPending,
				IsCurrent:              true,
				StartedAt:              uc.now(),
				ExpiresAt:              model.ExpiryUnset(),
				LastTransactionID:      transactionID,
				PreviousSubscriptionID: cur.ID,
			})
			if err != nil {
				return err
			}

		default: // same plan: renewal in place
			subID = cur.ID
			uc.log.Info().Str("tenant", tenant).Str("subscription_id", subID).Msg("renewing existing subscription")
			pending := model.SubscriptionStatusPending
			if err := uc.subs.Update(ctx, subID, repository.SubscriptionUpdate{
				Status:            &pending,
				LastTransactionID: &transactionID,
			}); err != nil {
				return err
			}
		}

		return uc.txs.Update(ctx, transactionID, repository.TransactionUpdate{SubscriptionID: &subID})
	})
	if err != nil {
		uc.log.Error().Err(err).Str("tenant", tenant).Str("transaction_id", transactionID).Msg("new transaction failed")
		return "", err
	}
	return subID, nil
}

// ApplyPaymentOutcome reconciles a gateway notification against local state.
// It is idempotent under redelivery: a transaction that already reached a
// terminal status is a logged no-op.
func (uc *SubscriptionUseCase) ApplyPaymentOutcome(ctx context.Context, externalPaymentID string, outcome model.PaymentOutcome, paidAt *time.Time) error {
	if externalPaymentID == "" {
		return domain.ErrInvalidArgument
	}

	// First resolution happens outside the lock: the tenant key comes from
	// the transaction itself.
	tr, err := uc.txs.GetByExternalPaymentID(ctx, externalPaymentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrTransactionNotFound
		}
		return err
	}

	return uc.withTenantLock(ctx, tr.TenantKey, func() error {
		// Re-read under the lock; a racing delivery may have won.
		tr, err := uc.txs.GetByExternalPaymentID(ctx, externalPaymentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrTransactionNotFound
			}
			return err
		}
		if tr.Status.Terminal() {
			uc.log.Info().
				Str("external_payment_id", externalPaymentID).
				Str("status", string(tr.Status)).
				Msg("transaction already settled; ignoring redelivery")
			return nil
		}

		sub, err := uc.resolveSubscription(ctx, tr)
		if err != nil {
			return err
		}

		if outcome == model.OutcomePaid {
			return uc.applyPaid(ctx, sub, tr, paidAt)
		}
		return uc.applyFailed(ctx, sub, tr)
	})
}

// resolveSubscription prefers the subscription linked on the transaction and
// falls back to the tenant's current subscription.
func (uc *SubscriptionUseCase) resolveSubscription(ctx context.Context, tr *model.Transaction) (*model.Subscription, error) {
	if tr.SubscriptionID != "" {
		sub, err := uc.subs.GetByID(ctx, tr.SubscriptionID)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	sub, err := uc.subs.GetCurrentByTenant(ctx, tr.TenantKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			uc.log.Error().
				Str("tenant", tr.TenantKey).
				Str("transaction_id", tr.ID).
				Msg("no subscription resolvable for paid transaction")
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

func (uc *SubscriptionUseCase) applyPaid(ctx context.Context, sub *model.Subscription, tr *model.Transaction, paidAt *time.Time) error {
	pt := uc.now()
	if paidAt != nil {
		pt = *paidAt
	}
	exp, err := model.ComputeExpiration(sub.PlanType, pt)
	if err != nil {
		return err
	}

	// Deactivation runs before the winner is marked current. A crash between
	// the two writes leaves the tenant with zero current subscriptions, which
	// the sweep and webhook redelivery converge out of; the reverse order
	// could leave two.
	if err := uc.subs.DeactivateAllCurrent(ctx, sub.TenantKey); err != nil {
		return err
	}

	active := model.SubscriptionStatusActive
	current := true
	if err := uc.subs.Update(ctx, sub.ID, repository.SubscriptionUpdate{
		Status:     &active,
		IsCurrent:  &current,
		LastPaidAt: &pt,
		ExpiresAt:  &exp,
	}); err != nil {
		return err
	}

	if err := uc.txs.UpdateStatus(ctx, tr.ID, model.TransactionStatusPaid, &pt); err != nil {
		return err
	}

	ev := uc.log.Info().
		Str("tenant", sub.TenantKey).
		Str("subscription_id", sub.ID).
		Str("transaction_id", tr.ID).
		Time("paid_at", pt)
	if at, ok := exp.Time(); ok {
		ev = ev.Time("expires_at", at)
	}
	ev.Msg("payment applied; subscription active")
	return nil
}

func (uc *SubscriptionUseCase) applyFailed(ctx context.Context, sub *model.Subscription, tr *model.Transaction) error {
	expired := model.SubscriptionStatusExpired
	notCurrent := false
	if err := uc.subs.Update(ctx, sub.ID, repository.SubscriptionUpdate{
		Status:    &expired,
		IsCurrent: &notCurrent,
	}); err != nil {
		return err
	}
	if err := uc.txs.UpdateStatus(ctx, tr.ID, model.TransactionStatusFailed, nil); err != nil {
		return err
	}
	uc.log.Info().
		Str("tenant", sub.TenantKey).
		Str("subscription_id", sub.ID).
		Str("transaction_id", tr.ID).
		Msg("payment failed; subscription expired")
	return nil
}

// ExpireDue transitions every due subscription to expired. Each record is
// handled independently; one bad record does not abort the sweep. Returns the
// number of subscriptions expired and the joined failures, if any.
func (uc *SubscriptionUseCase) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := uc.subs.ListExpired(ctx, now)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	var (
		expired int
		errs    []error
	)
	for _, sub := range due {
		if sub.PlanType == model.PlanLifetime {
			continue
		}
		st := model.SubscriptionStatusExpired
		notCurrent := false
		if err := uc.subs.Update(ctx, sub.ID, repository.SubscriptionUpdate{
			Status:    &st,
			IsCurrent: &notCurrent,
		}); err != nil {
			uc.log.Error().Err(err).Str("subscription_id", sub.ID).Msg("failed to expire subscription")
			errs = append(errs, err)
			continue
		}
		expired++
		uc.log.Info().
			Str("subscription_id", sub.ID).
			Str("tenant", sub.TenantKey).
			Msg("subscription expired")
	}
	return expired, errors.Join(errs...)
}

// CurrentForTenant returns the tenant's current subscription, if any.
func (uc *SubscriptionUseCase) CurrentForTenant(ctx context.Context, tenantKey string) (*model.Subscription, error) {
	return uc.subs.GetCurrentByTenant(ctx, model.NormalizeTenantKey(tenantKey))
}

// ListActive delegates to the repository; used by the admin API.
func (uc *SubscriptionUseCase) ListActive(ctx context.Context) ([]*model.Subscription, error) {
	return uc.subs.ListActive(ctx)
}
