package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tandara/quoteline-backend/internal/store"
	stripeinternal "github.com/tandara/quoteline-backend/internal/stripe"
)

// ─── POST /api/quotes/{quoteID}/bind ──────────────────────────────────────────

type bindQuoteRequest struct {
	Email string `json:"email"`
}

type bindQuoteResponse struct {
	// ClientSecret is the Stripe PaymentIntent client_secret. The browser
	// passes this to Stripe.js to render the payment UI and confirm the charge.
	ClientSecret string `json:"client_secret"`
	// DepositCents is the first-month deposit the intent charges.
	DepositCents int64 `json:"deposit_cents"`
	// IsExisting is true when the quote already had a PaymentIntent (i.e. the
	// user opened the bind flow twice). The returned secret is still valid
	// and confirmable.
	IsExisting bool `json:"is_existing,omitempty"`
}

// twelveMonths divides the annual premium into the first-month deposit.
var twelveMonths = decimal.NewFromInt(12)

// depositCents returns one month of the annual premium in cents.
func depositCents(annualPremium decimal.Decimal) int64 {
	return annualPremium.Div(twelveMonths).Round(2).Mul(decimal.NewFromInt(100)).IntPart()
}

// handleBindQuote creates a Stripe PaymentIntent for the quote's first-month
// deposit and returns the client_secret to the browser.
//
// Race-safety: two concurrent calls for the same quote are handled by
// store.AttachPaymentIntent using a serializable transaction. The second call
// receives ErrPaymentIntentAttached and returns the existing client_secret
// rather than creating a second PI.
func (s *Server) handleBindQuote(w http.ResponseWriter, r *http.Request) {
	quoteID, err := parseUUID(chi.URLParam(r, "quoteID"))
	if err != nil {
		respondErr(w, http.StatusBadRequest, "invalid quote id")
		return
	}

	var req bindQuoteRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		respondErr(w, http.StatusBadRequest, "email is required")
		return
	}

	quote, err := s.store.GetQuoteByID(r.Context(), quoteID)
	if errors.Is(err, store.ErrNotFound) {
		respondErr(w, http.StatusNotFound, "quote not found")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("get quote: %w", err))
		return
	}

	if quote.Status == store.StatusBound {
		respondErr(w, http.StatusConflict, "quote is already bound")
		return
	}
	if quote.Status != store.StatusReady || !quote.Premium.Valid {
		respondErr(w, http.StatusConflict, "quote is not ready to bind")
		return
	}

	deposit := depositCents(quote.Premium.Decimal)

	// ── Fast path: quote already has a PI ─────────────────────────────────────
	// Check before calling Stripe to avoid creating an unnecessary PI object.
	// The store transaction is the authoritative guard; this just skips the
	// Stripe API call in the common retry case.
	if quote.StripePaymentIntent.Valid && quote.StripePaymentIntent.String != "" {
		clientSecret, err := s.stripe.GetClientSecret(r.Context(), quote.StripePaymentIntent.String)
		if err != nil {
			// PI exists in our DB but Stripe can't find it. Unusual; fall
			// through and create a new one.
			s.logger.Warn("bind: existing PI not found in Stripe, creating new",
				"pi", quote.StripePaymentIntent.String,
				"error", err,
				logField(r),
			)
		} else {
			respond(w, http.StatusOK, bindQuoteResponse{
				ClientSecret: clientSecret,
				DepositCents: deposit,
				IsExisting:   true,
			})
			return
		}
	}

	// ── Create a new Stripe PaymentIntent ─────────────────────────────────────
	pi, err := s.stripe.CreatePaymentIntent(r.Context(), stripeinternal.CreatePaymentIntentParams{
		AmountCents: deposit,
		Currency:    "usd",
		Email:       req.Email,
		Metadata: map[string]string{
			"quote_id": quoteID.String(),
		},
	})
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("create payment intent: %w", err))
		return
	}

	// ── Atomically attach the PI to the quote ─────────────────────────────────
	err = s.store.AttachPaymentIntent(r.Context(), store.AttachPaymentIntentParams{
		QuoteID:       quoteID,
		CustomerID:    pi.CustomerID,
		PaymentIntent: pi.ID,
	})

	if errors.Is(err, store.ErrPaymentIntentAttached) {
		// Lost the race: another request beat us to it. Fetch the winning PI's
		// client_secret and return it. The PI we just created expires unused in
		// Stripe after 24h, an acceptable cost of this rare race.
		s.logger.Info("bind: lost race, returning existing PI",
			"quote_id", quoteID,
			logField(r),
		)
		fresh, dbErr := s.store.GetQuoteByID(r.Context(), quoteID)
		if dbErr != nil {
			s.respondInternalErr(w, r, fmt.Errorf("get quote after race: %w", dbErr))
			return
		}
		clientSecret, stripeErr := s.stripe.GetClientSecret(r.Context(), fresh.StripePaymentIntent.String)
		if stripeErr != nil {
			s.respondInternalErr(w, r, fmt.Errorf("get client secret after race: %w", stripeErr))
			return
		}
		respond(w, http.StatusOK, bindQuoteResponse{
			ClientSecret: clientSecret,
			DepositCents: deposit,
			IsExisting:   true,
		})
		return
	}

	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("attach payment intent: %w", err))
		return
	}

	respond(w, http.StatusOK, bindQuoteResponse{
		ClientSecret: pi.ClientSecret,
		DepositCents: deposit,
	})
}
