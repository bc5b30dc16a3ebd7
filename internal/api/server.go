// Package api implements the HTTP layer for the quoting service. Handlers are
// methods on *Server. Each handler file is responsible for one resource group
// and only imports the dependencies it actually uses.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/tandara/quoteline-backend/internal/email"
	"github.com/tandara/quoteline-backend/internal/store"
	stripeinternal "github.com/tandara/quoteline-backend/internal/stripe"
	"github.com/tandara/quoteline-backend/internal/underwriting"
	"github.com/tandara/quoteline-backend/internal/worker"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// BaseURL is used to construct the quote access link in emails,
	// e.g. "https://app.quoteline.example".
	BaseURL string

	// StripeWebhookSecret is the signing secret from the Stripe dashboard.
	StripeWebhookSecret string

	// Env is "production", "staging", or "development".
	Env string
}

// QuoteStore is the slice of the store the HTTP layer needs. *store.Store
// satisfies it; tests inject a stub.
type QuoteStore interface {
	CreateQuote(ctx context.Context, app underwriting.ApplicationRecord, email string) (store.Quote, error)
	GetQuoteByID(ctx context.Context, id uuid.UUID) (store.Quote, error)
	GetQuoteByAccessToken(ctx context.Context, token string) (store.Quote, error)
	AttachPaymentIntent(ctx context.Context, params store.AttachPaymentIntentParams) error
	BindQuote(ctx context.Context, paymentIntent string) (store.Quote, error)
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	// store handles all quote reads and lifecycle writes.
	store QuoteStore

	// stripe creates PaymentIntents and verifies webhook signatures.
	stripe stripeinternal.Client

	// worker enqueues quote jobs after an application is accepted.
	worker worker.Enqueuer

	// mailer sends the deposit receipt. May be nil when email is disabled.
	mailer email.Sender

	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.ListenAndServe.
func NewServer(
	st QuoteStore,
	stripeClient stripeinternal.Client,
	enqueuer worker.Enqueuer,
	mailer email.Sender,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	s := &Server{
		store:  st,
		stripe: stripeClient,
		worker: enqueuer,
		mailer: mailer,
		cfg:    cfg,
		logger: logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(30 * time.Second))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// ── API v1 ────────────────────────────────────────────────────────────────
	r.Route("/api", func(r chi.Router) {

		// Application intake, no auth (anonymous submission).
		r.Post("/quotes", s.handleCreateQuote)

		// Quote access, no auth (opaque access token in URL).
		r.Get("/quotes/{accessToken}", s.handleGetQuote)
		r.Get("/quotes/{accessToken}/report", s.handleGetQuoteReport)

		// Bind flow, quote id plus Stripe payment.
		r.Post("/quotes/{quoteID}/bind", s.handleBindQuote)

		// Stripe webhook, no auth (signature verification inside handler).
		r.Post("/webhooks/stripe", s.handleStripeWebhook)
	})

	return r
}
