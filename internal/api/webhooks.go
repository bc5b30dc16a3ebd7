package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tandara/quoteline-backend/internal/email"
	"github.com/tandara/quoteline-backend/internal/store"
	stripeinternal "github.com/tandara/quoteline-backend/internal/stripe"
)

// ─── POST /api/webhooks/stripe ────────────────────────────────────────────────

// handleStripeWebhook is the entry point for all Stripe webhook deliveries.
//
// Stripe delivers events at-least-once and may retry on non-2xx responses.
// The handler must be idempotent: BindQuote returns ErrQuoteAlreadyBound on a
// replay, which is acked as success so Stripe stops retrying.
//
// The only event we act on is payment_intent.succeeded, which binds the quote
// and sends the deposit receipt. payment_intent.payment_failed is logged for
// visibility; everything else is acked and ignored.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	// ── 1. Read and size-limit the body ───────────────────────────────────────
	// Stripe recommends reading the raw body before any other processing so
	// the signature check runs against the exact bytes Stripe signed.
	r.Body = http.MaxBytesReader(w, r.Body, 65536) // 64 KB, generous for any Stripe event
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondErr(w, http.StatusBadRequest, "could not read request body")
		return
	}

	// ── 2. Verify the Stripe-Signature header ─────────────────────────────────
	sig := r.Header.Get("Stripe-Signature")
	event, err := s.stripe.VerifyWebhook(payload, sig, s.cfg.StripeWebhookSecret)
	if err != nil {
		s.logger.Warn("webhook: invalid signature", "error", err, logField(r))
		respondErr(w, http.StatusBadRequest, "invalid webhook signature")
		return
	}

	// ── 3. Dispatch by event type ─────────────────────────────────────────────
	var handlerErr error

	switch event.Type {
	case "payment_intent.succeeded":
		handlerErr = s.onPaymentSucceeded(r, event)

	case "payment_intent.payment_failed":
		s.onPaymentFailed(r, event)

	default:
		// Unknown event type: ack immediately so Stripe stops retrying.
		s.logger.Debug("webhook: unhandled event type", "type", event.Type, logField(r))
	}

	if handlerErr != nil {
		s.logger.Error("webhook: handler error",
			"event_id", event.ID,
			"type", event.Type,
			"error", handlerErr,
			logField(r),
		)
		// Return 500 so Stripe retries delivery.
		respondErr(w, http.StatusInternalServerError, "webhook handler failed")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ─── EVENT HANDLERS ───────────────────────────────────────────────────────────

func (s *Server) onPaymentSucceeded(r *http.Request, event stripeinternal.Event) error {
	piID, err := stripeinternal.ExtractPaymentIntentID(event)
	if err != nil {
		return fmt.Errorf("onPaymentSucceeded: extract PI id: %w", err)
	}

	// BindQuote atomically flips the quote to bound. ErrQuoteAlreadyBound
	// means a duplicate delivery, still a success.
	quote, err := s.store.BindQuote(r.Context(), piID)
	if errors.Is(err, store.ErrQuoteAlreadyBound) {
		s.logger.Debug("webhook: quote already bound", "pi", piID, logField(r))
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		// A PI we never attached, likely from another environment sharing the
		// Stripe account. Ack so Stripe stops retrying.
		s.logger.Warn("webhook: payment intent not linked to any quote", "pi", piID, logField(r))
		return nil
	}
	if err != nil {
		return fmt.Errorf("onPaymentSucceeded: bind quote: %w", err)
	}

	s.logger.Info("webhook: quote bound",
		"quote_id", quote.ID,
		"pi", piID,
		logField(r),
	)

	// Send the deposit receipt. Email failure must not fail the webhook.
	if s.mailer != nil && quote.Email.Valid && quote.Email.String != "" && quote.Premium.Valid {
		receiptErr := s.mailer.SendBindReceipt(r.Context(), email.BindReceiptParams{
			To:           quote.Email.String,
			BusinessName: quote.BusinessName,
			AmountCents:  depositCents(quote.Premium.Decimal),
			Currency:     "usd",
		})
		if receiptErr != nil {
			s.logger.Error("webhook: receipt email failed",
				"to", quote.Email.String,
				"error", receiptErr,
				logField(r),
			)
		}
	}

	return nil
}

func (s *Server) onPaymentFailed(r *http.Request, event stripeinternal.Event) {
	piID, err := stripeinternal.ExtractPaymentIntentID(event)
	if err != nil {
		s.logger.Warn("webhook: payment_failed without PI id", "event_id", event.ID, logField(r))
		return
	}
	// Informational only: the quote stays ready and the user can retry the
	// payment with the same intent.
	s.logger.Info("webhook: payment failed", "pi", piID, logField(r))
}
