package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"clinic-billing/internal/domain"
	"clinic-billing/internal/domain/model"
)

// EventType is the closed set of gateway webhook events this service acts on.
// Anything else is a known, logged, non-error branch.
type EventType string

const (
	EventOrderPaid          EventType = "order.paid"
	EventOrderPaymentFailed EventType = "order.payment_failed"
	EventOrderCanceled      EventType = "order.canceled"
)

// ParseEventType reports whether a wire-level type string is recognized.
func ParseEventType(s string) (EventType, bool) {
	switch EventType(s) {
	case EventOrderPaid, EventOrderPaymentFailed, EventOrderCanceled:
		return EventType(s), true
	}
	return "", false
}

// ChargeInfo is the charge-level slice of the webhook payload.
type ChargeInfo struct {
	Status string
	PaidAt *time.Time
}

// PaymentEvent is a validated webhook notification, already reduced to the
// fields reconciliation needs.
type PaymentEvent struct {
	Type              string
	ExternalPaymentID string
	OrderStatus       string
	Charge            ChargeInfo
}

// Disposition tells the caller what the dispatcher did with an event, so the
// ingress layer can count and acknowledge correctly.
type Disposition string

const (
	DispositionApplied  Disposition = "applied"
	DispositionIgnored  Disposition = "ignored"
	DispositionMismatch Disposition = "mismatch"
)

// OutcomeApplier is the slice of SubscriptionUseCase the dispatcher needs.
type OutcomeApplier interface {
	ApplyPaymentOutcome(ctx context.Context, externalPaymentID string, outcome model.PaymentOutcome, paidAt *time.Time) error
}

// PaymentEventDispatcher maps gateway events onto the subscription state
// machine.
type PaymentEventDispatcher struct {
	applier OutcomeApplier
	log     *zerolog.Logger
}

func NewPaymentEventDispatcher(applier OutcomeApplier, logger *zerolog.Logger) *PaymentEventDispatcher {
	l := logger.With().Str("component", "PaymentEventDispatcher").Logger()
	return &PaymentEventDispatcher{applier: applier, log: &l}
}

// Dispatch routes one webhook event. Unrecognized event types and paid events
// whose order/charge statuses disagree are ignored without error; only
// recognized events that fail to apply return one.
func (d *PaymentEventDispatcher) Dispatch(ctx context.Context, ev PaymentEvent) (Disposition, error) {
	if ev.ExternalPaymentID == "" {
		return DispositionIgnored, domain.ErrInvalidArgument
	}

	et, ok := ParseEventType(ev.Type)
	if !ok {
		d.log.Info().Str("type", ev.Type).Msg("ignoring unhandled webhook event type")
		return DispositionIgnored, nil
	}

	switch et {
	case EventOrderPaid:
		if ev.OrderStatus != "paid" || ev.Charge.Status != "paid" {
			d.log.Warn().
				Str("external_payment_id", ev.ExternalPaymentID).
				Str("order_status", ev.OrderStatus).
				Str("charge_status", ev.Charge.Status).
				Msg("order.paid event with status mismatch; ignoring")
			return DispositionMismatch, nil
		}
		if err := d.applier.ApplyPaymentOutcome(ctx, ev.ExternalPaymentID, model.OutcomePaid, ev.Charge.PaidAt); err != nil {
			return DispositionApplied, err
		}
		return DispositionApplied, nil

	case EventOrderPaymentFailed, EventOrderCanceled:
		if err := d.applier.ApplyPaymentOutcome(ctx, ev.ExternalPaymentID, model.OutcomeFailed, nil); err != nil {
			return DispositionApplied, err
		}
		d.log.Info().
			Str("external_payment_id", ev.ExternalPaymentID).
			Str("type", string(et)).
			Msg("processed failed/canceled order")
		return DispositionApplied, nil
	}

	return DispositionIgnored, nil
}
