//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clinic-billing/internal/domain"
	"clinic-billing/internal/domain/model"
	"clinic-billing/internal/domain/ports/adapter"
	"clinic-billing/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu   sync.Mutex
	data map[string]*model.Subscription // by id

	CreateFunc               func(ctx context.Context, sub *model.Subscription) (string, error)
	UpdateFunc               func(ctx context.Context, id string, upd repository.SubscriptionUpdate) error
	GetByIDFunc              func(ctx context.Context, id string) (*model.Subscription, error)
	GetCurrentByTenantFunc   func(ctx context.Context, tenantKey string) (*model.Subscription, error)
	ListActiveFunc           func(ctx context.Context) ([]*model.Subscription, error)
	ListExpiredFunc          func(ctx context.Context, now time.Time) ([]*model.Subscription, error)
	DeactivateAllCurrentFunc func(ctx context.Context, tenantKey string) error
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{data: map[string]*model.Subscription{}}
}

func (r *MockSubscriptionRepo) Create(ctx context.Context, sub *model.Subscription) (string, error) {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, sub)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sub
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	r.data[cp.ID] = &cp
	return cp.ID, nil
}

func (r *MockSubscriptionRepo) Update(ctx context.Context, id string, upd repository.SubscriptionUpdate) error {
	if r.UpdateFunc != nil {
		return r.UpdateFunc(ctx, id, upd)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	if upd.Status != nil {
		s.Status = *upd.Status
	}
	if upd.IsCurrent != nil {
		s.IsCurrent = *upd.IsCurrent
	}
	if upd.ExpiresAt != nil {
		s.ExpiresAt = *upd.ExpiresAt
	}
	if upd.LastPaidAt != nil {
		t := *upd.LastPaidAt
		s.LastPaidAt = &t
	}
	if upd.LastTransactionID != nil {
		s.LastTransactionID = *upd.LastTransactionID
	}
	return nil
}

func (r *MockSubscriptionRepo) GetByID(ctx context.Context, id string) (*model.Subscription, error) {
	if r.GetByIDFunc != nil {
		return r.GetByIDFunc(ctx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func currentCandidate(s *model.Subscription) bool {
	if !s.IsCurrent {
		return false
	}
	switch s.Status {
	case model.SubscriptionStatusPending, model.SubscriptionStatusActive, model.SubscriptionStatusTesting:
		return true
	}
	return false
}

func (r *MockSubscriptionRepo) GetCurrentByTenant(ctx context.Context, tenantKey string) (*model.Subscription, error) {
	if r.GetCurrentByTenantFunc != nil {
		return r.GetCurrentByTenantFunc(ctx, tenantKey)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *model.Subscription
	for _, s := range r.data {
		if s.TenantKey == tenantKey && currentCandidate(s) {
			if found != nil {
				return nil, domain.ErrCurrentConflict
			}
			cp := *s
			found = &cp
		}
	}
	if found == nil {
		return nil, domain.ErrNotFound
	}
	return found, nil
}

func (r *MockSubscriptionRepo) ListActive(ctx context.Context) ([]*model.Subscription, error) {
	if r.ListActiveFunc != nil {
		return r.ListActiveFunc(ctx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Subscription
	for _, s := range r.data {
		if s.IsCurrent && (s.Status == model.SubscriptionStatusActive || s.Status == model.SubscriptionStatusTesting) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockSubscriptionRepo) ListExpired(ctx context.Context, now time.Time) ([]*model.Subscription, error) {
	if r.ListExpiredFunc != nil {
		return r.ListExpiredFunc(ctx, now)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Subscription
	for _, s := range r.data {
		if s.Status != model.SubscriptionStatusActive && s.Status != model.SubscriptionStatusTesting {
			continue
		}
		if s.PlanType == model.PlanLifetime {
			continue
		}
		if s.ExpiresAt.DueBy(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockSubscriptionRepo) DeactivateAllCurrent(ctx context.Context, tenantKey string) error {
	if r.DeactivateAllCurrentFunc != nil {
		return r.DeactivateAllCurrentFunc(ctx, tenantKey)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.data {
		if s.TenantKey == tenantKey && s.IsCurrent {
			s.Status = model.SubscriptionStatusCancelled
			s.IsCurrent = false
		}
	}
	return nil
}

// ---- Mock TransactionRepository ----

type MockTransactionRepo struct {
	mu   sync.Mutex
	data map[string]*model.Transaction // by id

	CreateFunc                 func(ctx context.Context, tr *model.Transaction) (string, error)
	UpdateStatusFunc           func(ctx context.Context, id string, status model.TransactionStatus, paidAt *time.Time) error
	UpdateFunc                 func(ctx context.Context, id string, upd repository.TransactionUpdate) error
	GetByIDFunc                func(ctx context.Context, id string) (*model.Transaction, error)
	GetByExternalPaymentIDFunc func(ctx context.Context, externalID string) (*model.Transaction, error)
}

var _ repository.TransactionRepository = (*MockTransactionRepo)(nil)

func NewMockTransactionRepo() *MockTransactionRepo {
	return &MockTransactionRepo{data: map[string]*model.Transaction{}}
}

func (r *MockTransactionRepo) Create(ctx context.Context, tr *model.Transaction) (string, error) {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, tr)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.data {
		if t.ExternalPaymentID == tr.ExternalPaymentID {
			return "", domain.ErrAlreadyExists
		}
	}
	cp := *tr
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	r.data[cp.ID] = &cp
	return cp.ID, nil
}

func (r *MockTransactionRepo) UpdateStatus(ctx context.Context, id string, status model.TransactionStatus, paidAt *time.Time) error {
	if r.UpdateStatusFunc != nil {
		return r.UpdateStatusFunc(ctx, id, status, paidAt)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	if t.Status.Terminal() {
		return nil // same no-op the SQL status guard produces
	}
	t.Status = status
	if status == model.TransactionStatusPaid && paidAt != nil {
		pt := *paidAt
		t.PaidAt = &pt
	}
	return nil
}

func (r *MockTransactionRepo) Update(ctx context.Context, id string, upd repository.TransactionUpdate) error {
	if r.UpdateFunc != nil {
		return r.UpdateFunc(ctx, id, upd)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	if upd.SubscriptionID != nil {
		t.SubscriptionID = *upd.SubscriptionID
	}
	return nil
}

func (r *MockTransactionRepo) GetByID(ctx context.Context, id string) (*model.Transaction, error) {
	if r.GetByIDFunc != nil {
		return r.GetByIDFunc(ctx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *MockTransactionRepo) GetByExternalPaymentID(ctx context.Context, externalID string) (*model.Transaction, error) {
	if r.GetByExternalPaymentIDFunc != nil {
		return r.GetByExternalPaymentIDFunc(ctx, externalID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.data {
		if t.ExternalPaymentID == externalID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ---- Mock Locker ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	Locks int // number of successful TryLock calls

	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if l.TryLockFunc != nil {
		return l.TryLockFunc(ctx, key, ttl)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return "", domain.ErrLockBusy
	}
	token := uuid.NewString()
	l.held[key] = token
	l.Locks++
	return token, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

// ---- Mock PaymentGateway ----

type MockGateway struct {
	CreatePixOrderFunc func(ctx context.Context, req *adapter.PixOrderRequest) (*adapter.PixOrderResult, error)

	LastRequest *adapter.PixOrderRequest
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func (g *MockGateway) Name() string { return "mock" }

func (g *MockGateway) CreatePixOrder(ctx context.Context, req *adapter.PixOrderRequest) (*adapter.PixOrderResult, error) {
	g.LastRequest = req
	if g.CreatePixOrderFunc != nil {
		return g.CreatePixOrderFunc(ctx, req)
	}
	return &adapter.PixOrderResult{
		ExternalID: "or_" + uuid.NewString()[:8],
		Status:     "pending",
		QRCode:     "qr-payload",
		QRCodeURL:  "https://example.test/qr.png",
	}, nil
}
