package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"clinic-billing/internal/domain"
	"clinic-billing/internal/domain/model"
	"clinic-billing/internal/domain/ports/repository"
)

// Ensure transactionRepo implements repository.TransactionRepository
var _ repository.TransactionRepository = (*transactionRepo)(nil)

const transactionColumns = `id, external_payment_id, tenant_key, plan_id, user_id, amount_cents,
  status, created_at, paid_at, subscription_id,
  customer_name, customer_email, customer_document, customer_type,
  customer_phone_country, customer_phone_area, customer_phone_number,
  pix_qr_code, pix_qr_code_url, pix_expires_at`

type transactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

func (r *transactionRepo) Create(ctx context.Context, t *model.Transaction) (string, error) {
	id := uuid.NewString()
	var subID *string
	if t.SubscriptionID != "" {
		subID = &t.SubscriptionID
	}
	const q = `
INSERT INTO transactions (
  id, external_payment_id, tenant_key, plan_id, user_id, amount_cents,
  status, created_at, paid_at, subscription_id,
  customer_name, customer_email, customer_document, customer_type,
  customer_phone_country, customer_phone_area, customer_phone_number,
  pix_qr_code, pix_qr_code_url, pix_expires_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,now());`
	_, err := r.pool.Exec(ctx, q,
		id, t.ExternalPaymentID, t.TenantKey, t.PlanID, t.UserID, t.AmountCents,
		string(t.Status), t.CreatedAt, t.PaidAt, subID,
		t.Customer.Name, t.Customer.Email, t.Customer.Document, t.Customer.Type,
		t.Customer.Phone.CountryCode, t.Customer.Phone.AreaCode, t.Customer.Phone.Number,
		t.Pix.QRCode, t.Pix.QRCodeURL, t.Pix.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// unique index on external_payment_id
			return "", domain.ErrAlreadyExists
		}
		return "", domain.ErrOperationFailed
	}
	return id, nil
}

// UpdateStatus is guarded on the row still being pending: a redelivered
// webhook racing past the service-level check cannot re-apply a terminal
// transition. An already-terminal row is a no-op, not an error.
func (r *transactionRepo) UpdateStatus(ctx context.Context, id string, status model.TransactionStatus, paidAt *time.Time) error {
	const q = `
UPDATE transactions
   SET status = $2,
       paid_at = CASE WHEN $2 = 'paid' THEN $3 ELSE paid_at END,
       updated_at = now()
 WHERE id = $1 AND status = 'pending';`
	tag, err := r.pool.Exec(ctx, q, id, string(status), paidAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		var existing string
		err := r.pool.QueryRow(ctx, `SELECT status FROM transactions WHERE id = $1;`, id).Scan(&existing)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return domain.ErrOperationFailed
		}
		// terminal already; idempotent no-op
	}
	return nil
}

func (r *transactionRepo) Update(ctx context.Context, id string, upd repository.TransactionUpdate) error {
	if upd.SubscriptionID == nil {
		return nil
	}
	const q = `UPDATE transactions SET subscription_id = $2, updated_at = now() WHERE id = $1;`
	tag, err := r.pool.Exec(ctx, q, id, *upd.SubscriptionID)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *transactionRepo) GetByID(ctx context.Context, id string) (*model.Transaction, error) {
	q := fmt.Sprintf(`SELECT %s FROM transactions WHERE id = $1;`, transactionColumns)
	return scanTransaction(r.pool.QueryRow(ctx, q, id))
}

func (r *transactionRepo) GetByExternalPaymentID(ctx context.Context, externalID string) (*model.Transaction, error) {
	q := fmt.Sprintf(`SELECT %s FROM transactions WHERE external_payment_id = $1;`, transactionColumns)
	return scanTransaction(r.pool.QueryRow(ctx, q, externalID))
}

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var (
		t      model.Transaction
		status string
		subID  *string
	)
	err := row.Scan(
		&t.ID, &t.ExternalPaymentID, &t.TenantKey, &t.PlanID, &t.UserID, &t.AmountCents,
		&status, &t.CreatedAt, &t.PaidAt, &subID,
		&t.Customer.Name, &t.Customer.Email, &t.Customer.Document, &t.Customer.Type,
		&t.Customer.Phone.CountryCode, &t.Customer.Phone.AreaCode, &t.Customer.Phone.Number,
		&t.Pix.QRCode, &t.Pix.QRCodeURL, &t.Pix.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	t.Status = model.TransactionStatus(status)
	if subID != nil {
		t.SubscriptionID = *subID
	}
	return &t, nil
}
