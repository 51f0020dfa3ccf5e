package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"clinic-billing/internal/domain"
	"clinic-billing/internal/domain/model"
	"clinic-billing/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

const subscriptionColumns = `id, tenant_key, plan_id, plan_type, status, is_current,
  started_at, expires_at, never_expires, last_paid_at, last_transaction_id, previous_subscription_id`

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) Create(ctx context.Context, s *model.Subscription) (string, error) {
	id := uuid.NewString()
	expiresAt, neverExpires := expiryColumns(s.ExpiresAt)
	var prev *string
	if s.PreviousSubscriptionID != "" {
		prev = &s.PreviousSubscriptionID
	}
	const q = `
INSERT INTO subscriptions (
  id, tenant_key, plan_id, plan_type, status, is_current,
  started_at, expires_at, never_expires, last_paid_at, last_transaction_id, previous_subscription_id,
  created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now(),now());`
	_, err := r.pool.Exec(ctx, q,
		id, s.TenantKey, s.PlanID, string(s.PlanType), string(s.Status), s.IsCurrent,
		s.StartedAt, expiresAt, neverExpires, s.LastPaidAt, s.LastTransactionID, prev)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", domain.ErrAlreadyExists
		}
		return "", domain.ErrOperationFailed
	}
	return id, nil
}

func (r *subscriptionRepo) Update(ctx context.Context, id string, upd repository.SubscriptionUpdate) error {
	set := []string{"updated_at = now()"}
	var args []interface{}
	n := 1
	add := func(col string, v interface{}) {
		set = append(set, fmt.Sprintf("%s = $%d", col, n))
		args = append(args, v)
		n++
	}
	if upd.Status != nil {
		add("status", string(*upd.Status))
	}
	if upd.IsCurrent != nil {
		add("is_current", *upd.IsCurrent)
	}
	if upd.ExpiresAt != nil {
		expiresAt, neverExpires := expiryColumns(*upd.ExpiresAt)
		add("expires_at", expiresAt)
		add("never_expires", neverExpires)
	}
	if upd.LastPaidAt != nil {
		add("last_paid_at", *upd.LastPaidAt)
	}
	if upd.LastTransactionID != nil {
		add("last_transaction_id", *upd.LastTransactionID)
	}

	q := fmt.Sprintf("UPDATE subscriptions SET %s WHERE id = $%d;", strings.Join(set, ", "), n)
	args = append(args, id)

	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *subscriptionRepo) GetByID(ctx context.Context, id string) (*model.Subscription, error) {
	q := fmt.Sprintf(`SELECT %s FROM subscriptions WHERE id = $1;`, subscriptionColumns)
	return scanSubscription(r.pool.QueryRow(ctx, q, id))
}

func (r *subscriptionRepo) GetCurrentByTenant(ctx context.Context, tenantKey string) (*model.Subscription, error) {
	// LIMIT 2 so a contract violation (two current rows) is detectable
	// instead of silently resolved by LIMIT 1.
	q := fmt.Sprintf(`
SELECT %s FROM subscriptions
 WHERE tenant_key = $1
   AND is_current
   AND status IN ('pending','active','testing')
 LIMIT 2;`, subscriptionColumns)
	rows, err := r.pool.Query(ctx, q, tenantKey)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	switch len(out) {
	case 0:
		return nil, domain.ErrNotFound
	case 1:
		return out[0], nil
	default:
		return nil, domain.ErrCurrentConflict
	}
}

func (r *subscriptionRepo) ListActive(ctx context.Context) ([]*model.Subscription, error) {
	q := fmt.Sprintf(`
SELECT %s FROM subscriptions
 WHERE is_current AND status IN ('active','testing')
 ORDER BY started_at DESC;`, subscriptionColumns)
	return r.list(ctx, q)
}

func (r *subscriptionRepo) ListExpired(ctx context.Context, now time.Time) ([]*model.Subscription, error) {
	q := fmt.Sprintf(`
SELECT %s FROM subscriptions
 WHERE status IN ('active','testing')
   AND plan_type <> 'lifetime'
   AND NOT never_expires
   AND expires_at IS NOT NULL
   AND expires_at <= $1
 ORDER BY expires_at ASC;`, subscriptionColumns)
	return r.list(ctx, q, now)
}

func (r *subscriptionRepo) DeactivateAllCurrent(ctx context.Context, tenantKey string) error {
	// Single statement so the batch is atomic: it races with new-version
	// creation for the same tenant.
	const q = `
UPDATE subscriptions
   SET status = 'cancelled', is_current = false, updated_at = now()
 WHERE tenant_key = $1 AND is_current;`
	if _, err := r.pool.Exec(ctx, q, tenantKey); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) list(ctx context.Context, q string, args ...interface{}) ([]*model.Subscription, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func expiryColumns(e model.Expiry) (*time.Time, bool) {
	if at, ok := e.Time(); ok {
		return &at, false
	}
	return nil, e.Never()
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var (
		s            model.Subscription
		planType     string
		status       string
		expiresAt    *time.Time
		neverExpires bool
		prev         *string
	)
	err := row.Scan(
		&s.ID, &s.TenantKey, &s.PlanID, &planType, &status, &s.IsCurrent,
		&s.StartedAt, &expiresAt, &neverExpires, &s.LastPaidAt, &s.LastTransactionID, &prev)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s.PlanType = model.PlanType(planType)
	s.Status = model.SubscriptionStatus(status)
	switch {
	case expiresAt != nil:
		s.ExpiresAt = model.ExpiryAt(*expiresAt)
	case neverExpires:
		s.ExpiresAt = model.ExpiryNever()
	default:
		s.ExpiresAt = model.ExpiryUnset()
	}
	if prev != nil {
		s.PreviousSubscriptionID = *prev
	}
	return &s, nil
}
