package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tandara/quoteline-backend/internal/underwriting"
)

// ─── SENTINEL ERRORS ──────────────────────────────────────────────────────────

var (
	// ErrNotFound means no quote matched the given id, token, or payment intent.
	ErrNotFound = errors.New("store: quote not found")

	// ErrQuoteNotClaimable means the quote is already ready, bound, or failed
	// and the pipeline must not process it again.
	ErrQuoteNotClaimable = errors.New("store: quote not claimable")

	// ErrQuoteNotReady means a bind was attempted before the pipeline finished.
	ErrQuoteNotReady = errors.New("store: quote not ready")

	// ErrPaymentIntentAttached means a deposit was already initiated for the
	// quote. The caller should reuse the existing payment intent.
	ErrPaymentIntentAttached = errors.New("store: payment intent already attached")

	// ErrQuoteAlreadyBound means the webhook delivered the same payment event
	// twice. The caller should treat it as success and ack.
	ErrQuoteAlreadyBound = errors.New("store: quote already bound")
)

// newAccessToken returns 32 hex characters of crypto randomness. The token is
// the only credential needed to poll a quote, so it must be unguessable.
func newAccessToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("store: generate access token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ─── CREATE ───────────────────────────────────────────────────────────────────

// CreateQuote inserts a pending quote from a validated application and returns
// the stored row, including the generated id and access token.
func (s *Store) CreateQuote(ctx context.Context, app underwriting.ApplicationRecord, email string) (Quote, error) {
	token, err := newAccessToken()
	if err != nil {
		return Quote{}, err
	}

	claimsJSON, err := json.Marshal(app.ClaimsHistory)
	if err != nil {
		return Quote{}, fmt.Errorf("store: marshal claims: %w", err)
	}
	if app.ClaimsHistory == nil {
		claimsJSON = []byte("[]")
	}

	query := `
		INSERT INTO quotes (
			access_token, business_name, business_type, annual_revenue,
			employee_count, state, city, years_in_business,
			business_description, additional_notes, claims_json, email
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + quoteColumns

	row := s.pool.QueryRowContext(ctx, query,
		token,
		app.BusinessName,
		string(app.BusinessType),
		app.AnnualRevenue,
		app.EmployeeCount,
		app.State,
		app.City,
		app.YearsInBusiness,
		app.BusinessDescription,
		nullString(app.AdditionalNotes),
		claimsJSON,
		nullString(email),
	)

	q, err := scanQuote(row)
	if err != nil {
		return Quote{}, fmt.Errorf("store: create quote: %w", err)
	}
	return q, nil
}

// ─── READS ────────────────────────────────────────────────────────────────────

// GetQuoteByID fetches one quote by primary key.
func (s *Store) GetQuoteByID(ctx context.Context, id uuid.UUID) (Quote, error) {
	return s.getQuote(ctx, s.pool, "id = $1", id)
}

// GetQuoteByAccessToken fetches one quote by its polling token.
func (s *Store) GetQuoteByAccessToken(ctx context.Context, token string) (Quote, error) {
	return s.getQuote(ctx, s.pool, "access_token = $1", token)
}

// GetQuoteByPaymentIntent fetches the quote a Stripe payment intent belongs to.
func (s *Store) GetQuoteByPaymentIntent(ctx context.Context, paymentIntent string) (Quote, error) {
	return s.getQuote(ctx, s.pool, "stripe_payment_intent = $1", paymentIntent)
}

func (s *Store) getQuote(ctx context.Context, q querier, where string, arg any) (Quote, error) {
	row := q.QueryRowContext(ctx, "SELECT "+quoteColumns+" FROM quotes WHERE "+where, arg)
	quote, err := scanQuote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Quote{}, ErrNotFound
	}
	if err != nil {
		return Quote{}, fmt.Errorf("store: get quote: %w", err)
	}
	return quote, nil
}

// ListUnfinished returns ids of quotes still pending or processing after
// olderThan, oldest first. The poller uses this to pick up work that was
// enqueued before a restart or dropped when the channel was full.
func (s *Store) ListUnfinished(ctx context.Context, olderThan time.Duration, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM quotes
		WHERE status IN ('pending', 'processing')
		  AND created_at < now() - $1::interval
		ORDER BY created_at
		LIMIT $2`

	interval := fmt.Sprintf("%d seconds", int(olderThan.Seconds()))
	rows, err := s.pool.QueryContext(ctx, query, interval, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list unfinished: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan unfinished id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate unfinished: %w", err)
	}
	return ids, nil
}

// ─── PIPELINE WRITES ──────────────────────────────────────────────────────────

// ClaimQuote marks a quote as processing and returns it. A quote can be
// claimed while pending, or re-claimed while processing (a retry after a
// worker died mid-run). Ready, bound, and failed quotes return
// ErrQuoteNotClaimable so the pipeline never overwrites a finished result.
func (s *Store) ClaimQuote(ctx context.Context, id uuid.UUID) (Quote, error) {
	query := `
		UPDATE quotes
		SET status = 'processing'
		WHERE id = $1 AND status IN ('pending', 'processing')
		RETURNING ` + quoteColumns

	row := s.pool.QueryRowContext(ctx, query, id)
	q, err := scanQuote(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish "finished" from "never existed" for the caller's logs.
		if _, getErr := s.GetQuoteByID(ctx, id); getErr != nil {
			return Quote{}, getErr
		}
		return Quote{}, ErrQuoteNotClaimable
	}
	if err != nil {
		return Quote{}, fmt.Errorf("store: claim quote: %w", err)
	}
	return q, nil
}

// FinalizeQuoteParams carries everything the pipeline produced for one quote.
type FinalizeQuoteParams struct {
	QuoteID     uuid.UUID
	Premium     decimal.Decimal
	RiskProfile underwriting.RiskProfile
	RiskFactors []string
	Breakdown   underwriting.Breakdown
	ReportPath  string
	GeneratedAt time.Time
}

// FinalizeQuote records the computed premium, risk assessment, breakdown, and
// report path, and flips the quote to ready. Only a processing quote can be
// finalized; anything else returns ErrQuoteNotClaimable.
func (s *Store) FinalizeQuote(ctx context.Context, params FinalizeQuoteParams) (Quote, error) {
	factorsJSON, err := json.Marshal(params.RiskFactors)
	if err != nil {
		return Quote{}, fmt.Errorf("store: marshal risk factors: %w", err)
	}
	breakdownJSON, err := json.Marshal(params.Breakdown)
	if err != nil {
		return Quote{}, fmt.Errorf("store: marshal breakdown: %w", err)
	}

	query := `
		UPDATE quotes
		SET status = 'ready',
		    premium = $2,
		    risk_profile = $3,
		    risk_factors_json = $4,
		    breakdown_json = $5,
		    report_path = $6,
		    generated_at = $7,
		    error_message = NULL
		WHERE id = $1 AND status = 'processing'
		RETURNING ` + quoteColumns

	row := s.pool.QueryRowContext(ctx, query,
		params.QuoteID,
		params.Premium,
		string(params.RiskProfile),
		factorsJSON,
		breakdownJSON,
		params.ReportPath,
		params.GeneratedAt,
	)

	q, err := scanQuote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Quote{}, ErrQuoteNotClaimable
	}
	if err != nil {
		return Quote{}, fmt.Errorf("store: finalize quote: %w", err)
	}
	return q, nil
}

// MarkQuoteFailed records the terminal error after the pipeline exhausted its
// retries. Bound quotes are left untouched.
func (s *Store) MarkQuoteFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE quotes
		SET status = 'failed', error_message = $2
		WHERE id = $1 AND status NOT IN ('bound')`

	if _, err := s.pool.ExecContext(ctx, query, id, reason); err != nil {
		return fmt.Errorf("store: mark quote failed: %w", err)
	}
	return nil
}

// ─── BINDING ──────────────────────────────────────────────────────────────────

// AttachPaymentIntentParams records the Stripe objects created for a deposit.
type AttachPaymentIntentParams struct {
	QuoteID       uuid.UUID
	CustomerID    string
	PaymentIntent string
}

// AttachPaymentIntent stores the Stripe customer and payment intent for a
// ready quote. The read and the write run in one serializable transaction so
// two concurrent bind requests cannot both create payment intents; the loser
// gets ErrPaymentIntentAttached and should reuse the stored intent.
func (s *Store) AttachPaymentIntent(ctx context.Context, params AttachPaymentIntentParams) error {
	return s.withTx(ctx, func(ctx context.Context, q querier) error {
		quote, err := s.getQuote(ctx, q, "id = $1", params.QuoteID)
		if err != nil {
			return err
		}
		if quote.StripePaymentIntent.Valid {
			return ErrPaymentIntentAttached
		}
		if quote.Status != StatusReady {
			return ErrQuoteNotReady
		}

		_, err = q.ExecContext(ctx, `
			UPDATE quotes
			SET stripe_customer_id = $2, stripe_payment_intent = $3
			WHERE id = $1`,
			params.QuoteID, params.CustomerID, params.PaymentIntent,
		)
		if err != nil {
			return fmt.Errorf("store: attach payment intent: %w", err)
		}
		return nil
	})
}

// BindQuote flips the quote for a succeeded payment intent to bound. Stripe
// retries webhook deliveries, so a second call for the same intent returns
// ErrQuoteAlreadyBound and the handler acks without side effects.
func (s *Store) BindQuote(ctx context.Context, paymentIntent string) (Quote, error) {
	var bound Quote
	err := s.withTx(ctx, func(ctx context.Context, q querier) error {
		quote, err := s.getQuote(ctx, q, "stripe_payment_intent = $1", paymentIntent)
		if err != nil {
			return err
		}
		if quote.Status == StatusBound {
			return ErrQuoteAlreadyBound
		}

		row := q.QueryRowContext(ctx, `
			UPDATE quotes
			SET status = 'bound', bound_at = now()
			WHERE stripe_payment_intent = $1
			RETURNING `+quoteColumns,
			paymentIntent,
		)
		bound, err = scanQuote(row)
		if err != nil {
			return fmt.Errorf("store: bind quote: %w", err)
		}
		return nil
	})
	if err != nil {
		return Quote{}, err
	}
	return bound, nil
}

// nullString maps "" to SQL NULL for optional text columns.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
