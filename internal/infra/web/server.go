package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"clinic-billing/internal/config"
)

// Server owns the HTTP surface: the gateway webhook, the Pix order endpoint,
// and the read-only admin API.
type Server struct {
	cfg           config.WebConfig
	webhookSecret string
	dispatcher    eventDispatcher
	billing       orderCreator
	subs          subscriptionReader
	log           *zerolog.Logger

	srv *http.Server
}

func NewServer(
	cfg config.WebConfig,
	webhookSecret string,
	dispatcher eventDispatcher,
	billing orderCreator,
	subs subscriptionReader,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		cfg:           cfg,
		webhookSecret: webhookSecret,
		dispatcher:    dispatcher,
		billing:       billing,
		subs:          subs,
		log:           &l,
	}
}

// Router assembles the route tree. Exposed separately so handler tests can
// drive it with httptest without binding a port.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(TraceID)
	r.Use(RequestLog(s.log))
	r.Use(Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/webhook/pagarme", webhookHandler(s.dispatcher, s.webhookSecret, s.log))

	r.Route("/api/v1", func(r chi.Router) {
		r.With(JWTAuth([]byte(s.cfg.JWTSecret))).
			Post("/pix", pixOrderHandler(s.billing, s.log))

		r.Group(func(r chi.Router) {
			r.Use(AdminAuth(s.cfg.AdminAPIKey))
			r.Get("/subscriptions", subscriptionsListHandler(s.subs))
			r.Get("/tenants/{tenant}/subscription", currentSubscriptionHandler(s.subs))
		})
	})

	return r
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Int("port", s.cfg.Port).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
