package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"clinic-billing/internal/domain"
	"clinic-billing/internal/domain/model"
	"clinic-billing/internal/domain/ports/adapter"
	"clinic-billing/internal/domain/ports/repository"
)

// Pix charges are always valid for 24 hours, regardless of what the caller
// asked for.
const pixExpirySeconds = 86400

// SubscriptionStarter is the slice of SubscriptionUseCase billing needs.
type SubscriptionStarter interface {
	NewTransaction(ctx context.Context, tenantKey, planID string, planType model.PlanType, transactionID string) (string, error)
}

type PixOrderInput struct {
	TenantKey string
	PlanID    string
	PlanType  model.PlanType
	Amount    decimal.Decimal // BRL
	UserID    string
	Customer  model.Customer
	Items     []adapter.OrderItem
}

type PixOrderOutput struct {
	SubscriptionID    string
	TransactionID     string
	ExternalPaymentID string
	QRCode            string
	QRCodeURL         string
}

// BillingUseCase drives order placement: it asks the gateway for a Pix order,
// records the pending transaction, and resolves the owning subscription.
type BillingUseCase struct {
	gateway adapter.PaymentGateway
	txs     repository.TransactionRepository
	subs    SubscriptionStarter
	log     *zerolog.Logger
	now     func() time.Time
}

func NewBillingUseCase(gateway adapter.PaymentGateway, txs repository.TransactionRepository, subs SubscriptionStarter, logger *zerolog.Logger) *BillingUseCase {
	l := logger.With().Str("component", "BillingUC").Logger()
	return &BillingUseCase{gateway: gateway, txs: txs, subs: subs, log: &l, now: time.Now}
}

// CreatePixOrder places the payment order and persists the attempt. The
// transaction is written before the subscription is resolved so a webhook for
// this payment always finds a record, even if resolution failed and the
// client retried.
func (uc *BillingUseCase) CreatePixOrder(ctx context.Context, in *PixOrderInput) (*PixOrderOutput, error) {
	if in == nil || in.TenantKey == "" || in.PlanID == "" || !in.Amount.IsPositive() {
		return nil, domain.ErrInvalidArgument
	}
	planType := in.PlanType
	if planType == "" {
		planType = model.PlanMonthly
	}
	if _, ok := model.ParsePlanType(string(planType)); !ok {
		return nil, domain.ErrUnknownPlanType
	}
	tenant := model.NormalizeTenantKey(in.TenantKey)

	items := in.Items
	if len(items) == 0 {
		items = []adapter.OrderItem{{
			Amount:      in.Amount,
			Description: "Assinatura " + in.PlanID,
			Quantity:    1,
		}}
	}

	order, err := uc.gateway.CreatePixOrder(ctx, &adapter.PixOrderRequest{
		Items:        items,
		Customer:     in.Customer,
		ExpiresInSec: pixExpirySeconds,
	})
	if err != nil {
		uc.log.Error().Err(err).Str("tenant", tenant).Msg("gateway order creation failed")
		return nil, err
	}

	now := uc.now()
	trID, err := uc.txs.Create(ctx, &model.Transaction{
		ExternalPaymentID: order.ExternalID,
		TenantKey:         tenant,
		PlanID:            in.PlanID,
		UserID:            in.UserID,
		AmountCents:       in.Amount.Shift(2).Round(0).IntPart(),
		Status:            model.TransactionStatusPending,
		CreatedAt:         now,
		Customer:          in.Customer,
		Pix: model.PixCharge{
			QRCode:    order.QRCode,
			QRCodeURL: order.QRCodeURL,
			ExpiresAt: now.Add(pixExpirySeconds * time.Second),
		},
	})
	if err != nil {
		return nil, err
	}

	subID, err := uc.subs.NewTransaction(ctx, tenant, in.PlanID, planType, trID)
	if err != nil {
		return nil, err
	}

	uc.log.Info().
		Str("tenant", tenant).
		Str("subscription_id", subID).
		Str("transaction_id", trID).
		Str("external_payment_id", order.ExternalID).
		Msg("pix order created")

	return &PixOrderOutput{
		SubscriptionID:    subID,
		TransactionID:     trID,
		ExternalPaymentID: order.ExternalID,
		QRCode:            order.QRCode,
		QRCodeURL:         order.QRCodeURL,
	}, nil
}
