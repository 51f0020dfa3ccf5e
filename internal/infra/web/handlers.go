package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"clinic-billing/internal/domain"
	"clinic-billing/internal/domain/model"
	"clinic-billing/internal/infra/logging"
	"clinic-billing/internal/infra/metrics"
	"clinic-billing/internal/infra/payment"
	"clinic-billing/internal/usecase"
)

const maxWebhookBody = 1 << 20

// Consumer-side slices of the use cases, so handlers are testable with stubs.
type eventDispatcher interface {
	Dispatch(ctx context.Context, ev usecase.PaymentEvent) (usecase.Disposition, error)
}

type orderCreator interface {
	CreatePixOrder(ctx context.Context, in *usecase.PixOrderInput) (*usecase.PixOrderOutput, error)
}

type subscriptionReader interface {
	CurrentForTenant(ctx context.Context, tenantKey string) (*model.Subscription, error)
	ListActive(ctx context.Context) ([]*model.Subscription, error)
}

// webhookPayload is the gateway's wire format.
type webhookPayload struct {
	Type string `json:"type"`
	Data struct {
		ID      string `json:"id"`
		Status  string `json:"status"`
		Charges []struct {
			ID     string     `json:"id"`
			Status string     `json:"status"`
			PaidAt *time.Time `json:"paid_at"`
		} `json:"charges"`
	} `json:"data"`
}

// webhookHandler is the ingress boundary: verify, parse-or-reject, hand off
// to the dispatcher, and acknowledge according to whether a failure is
// retryable. The gateway redelivers on any non-2xx.
func webhookHandler(dispatcher eventDispatcher, secret string, logger *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.With(r.Context(), logger)

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		if secret != "" {
			if !payment.VerifyWebhookSignature(secret, body, r.Header.Get("X-Hub-Signature")) {
				log.Warn().Msg("webhook signature mismatch")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil || payload.Data.ID == "" {
			log.Warn().Err(err).Msg("malformed webhook payload")
			metrics.IncWebhookEvent(payload.Type, "malformed")
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}

		ev := usecase.PaymentEvent{
			Type:              payload.Type,
			ExternalPaymentID: payload.Data.ID,
			OrderStatus:       payload.Data.Status,
		}
		if len(payload.Data.Charges) > 0 {
			ev.Charge = usecase.ChargeInfo{
				Status: payload.Data.Charges[0].Status,
				PaidAt: payload.Data.Charges[0].PaidAt,
			}
		}

		disposition, err := dispatcher.Dispatch(r.Context(), ev)
		switch {
		case err == nil:
			metrics.IncWebhookEvent(payload.Type, string(disposition))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("Webhook processed successfully"))

		case errors.Is(err, domain.ErrTransactionNotFound), errors.Is(err, domain.ErrSubscriptionNotFound),
			errors.Is(err, domain.ErrInvalidDate), errors.Is(err, domain.ErrUnknownPlanType):
			// A data problem redelivery cannot fix; acknowledge so the
			// gateway stops retrying, but keep the error visible.
			log.Error().Err(err).
				Str("type", payload.Type).
				Str("external_payment_id", payload.Data.ID).
				Msg("webhook references unknown records; acknowledged without effect")
			metrics.IncWebhookEvent(payload.Type, "dropped")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("Webhook acknowledged"))

		case errors.Is(err, domain.ErrInvalidArgument):
			metrics.IncWebhookEvent(payload.Type, "malformed")
			http.Error(w, "Bad Request", http.StatusBadRequest)

		default:
			// Transient (store down, tenant lock busy): non-2xx so the
			// gateway redelivers; ApplyPaymentOutcome is idempotent.
			log.Error().Err(err).
				Str("type", payload.Type).
				Str("external_payment_id", payload.Data.ID).
				Msg("webhook processing failed")
			metrics.IncWebhookEvent(payload.Type, "error")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}

type pixRequest struct {
	ClinicName string          `json:"clinic_name"`
	PlanID     string          `json:"plan_id"`
	PlanType   string          `json:"plan_type"`
	Amount     decimal.Decimal `json:"amount"`
	Customer   struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Document string `json:"document"`
		Type     string `json:"type"`
		Phone    struct {
			CountryCode string `json:"country_code"`
			AreaCode    string `json:"area_code"`
			Number      string `json:"number"`
		} `json:"phone"`
	} `json:"customer"`
}

type pixResponse struct {
	SubscriptionID    string `json:"subscription_id"`
	TransactionID     string `json:"transaction_id"`
	ExternalPaymentID string `json:"external_payment_id"`
	QRCode            string `json:"qr_code"`
	QRCodeURL         string `json:"qr_code_url"`
}

func pixOrderHandler(billing orderCreator, logger *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.With(r.Context(), logger)

		var req pixRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		out, err := billing.CreatePixOrder(r.Context(), &usecase.PixOrderInput{
			TenantKey: req.ClinicName,
			PlanID:    req.PlanID,
			PlanType:  model.PlanType(req.PlanType),
			Amount:    req.Amount,
			UserID:    UserID(r.Context()),
			Customer: model.Customer{
				Name:     req.Customer.Name,
				Email:    req.Customer.Email,
				Document: req.Customer.Document,
				Type:     req.Customer.Type,
				Phone: model.Phone{
					CountryCode: req.Customer.Phone.CountryCode,
					AreaCode:    req.Customer.Phone.AreaCode,
					Number:      req.Customer.Phone.Number,
				},
			},
		})
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrUnknownPlanType):
				metrics.IncPixOrder("rejected")
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				log.Error().Err(err).Str("clinic", req.ClinicName).Msg("pix order creation failed")
				metrics.IncPixOrder("failed")
				http.Error(w, "Failed to create pix order", http.StatusInternalServerError)
			}
			return
		}

		metrics.IncPixOrder("created")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(pixResponse{
			SubscriptionID:    out.SubscriptionID,
			TransactionID:     out.TransactionID,
			ExternalPaymentID: out.ExternalPaymentID,
			QRCode:            out.QRCode,
			QRCodeURL:         out.QRCodeURL,
		})
	}
}

type subscriptionView struct {
	ID                     string     `json:"id"`
	TenantKey              string     `json:"tenant_key"`
	PlanID                 string     `json:"plan_id"`
	PlanType               string     `json:"plan_type"`
	Status                 string     `json:"status"`
	IsCurrent              bool       `json:"is_current"`
	StartedAt              time.Time  `json:"started_at"`
	ExpiresAt              *time.Time `json:"expires_at,omitempty"`
	NeverExpires           bool       `json:"never_expires"`
	LastPaidAt             *time.Time `json:"last_paid_at,omitempty"`
	PreviousSubscriptionID string     `json:"previous_subscription_id,omitempty"`
}

func viewSubscription(s *model.Subscription) subscriptionView {
	v := subscriptionView{
		ID:                     s.ID,
		TenantKey:              s.TenantKey,
		PlanID:                 s.PlanID,
		PlanType:               string(s.PlanType),
		Status:                 string(s.Status),
		IsCurrent:              s.IsCurrent,
		StartedAt:              s.StartedAt,
		NeverExpires:           s.ExpiresAt.Never(),
		LastPaidAt:             s.LastPaidAt,
		PreviousSubscriptionID: s.PreviousSubscriptionID,
	}
	if at, ok := s.ExpiresAt.Time(); ok {
		v.ExpiresAt = &at
	}
	return v
}

func subscriptionsListHandler(subs subscriptionReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := subs.ListActive(r.Context())
		if err != nil {
			http.Error(w, "Failed to list subscriptions", http.StatusInternalServerError)
			return
		}
		views := make([]subscriptionView, 0, len(list))
		for _, s := range list {
			views = append(views, viewSubscription(s))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(views)
	}
}

func currentSubscriptionHandler(subs subscriptionReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := chi.URLParam(r, "tenant")
		sub, err := subs.CurrentForTenant(r.Context(), tenant)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				http.Error(w, "No current subscription", http.StatusNotFound)
			case errors.Is(err, domain.ErrCurrentConflict):
				http.Error(w, "Data integrity violation", http.StatusConflict)
			default:
				http.Error(w, "Failed to get subscription", http.StatusInternalServerError)
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(viewSubscription(sub))
	}
}
