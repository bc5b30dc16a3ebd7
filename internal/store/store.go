// Package store persists the quote lifecycle in Postgres and groups the
// multi-step write operations that must execute atomically.
//
// SQL here is hand-written over database/sql. Single-row reads are plain
// methods; the multi-step writes (FinalizeQuote, AttachPaymentIntent,
// BindQuote) run inside serializable transactions because they all follow a
// read-then-write pattern.
//
// Dependency rule: store imports underwriting only for type reconstruction.
// It never imports api, worker, ai, report, or email.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sqlc-dev/pqtype"

	"github.com/tandara/quoteline-backend/internal/underwriting"
)

// Status is the quote lifecycle state. String values match the Postgres enum
// in schema.sql.
type Status string

const (
	StatusPending    Status = "pending"    // accepted, waiting for the pipeline
	StatusProcessing Status = "processing" // pipeline claimed the quote
	StatusReady      Status = "ready"      // premium computed, report rendered
	StatusBound      Status = "bound"      // deposit paid
	StatusFailed     Status = "failed"     // pipeline exhausted its retries
)

// Quote mirrors one row of the quotes table.
type Quote struct {
	ID          uuid.UUID
	AccessToken string
	Status      Status

	// Application snapshot.
	BusinessName        string
	BusinessType        string
	AnnualRevenue       decimal.Decimal
	EmployeeCount       int
	State               string
	City                string
	YearsInBusiness     int
	BusinessDescription string
	AdditionalNotes     sql.NullString
	ClaimsJSON          json.RawMessage
	Email               sql.NullString

	// Computed quote. All null until the pipeline finalizes the row.
	Premium         decimal.NullDecimal
	RiskProfile     sql.NullString
	RiskFactorsJSON pqtype.NullRawMessage
	BreakdownJSON   pqtype.NullRawMessage
	ReportPath      sql.NullString
	ErrorMessage    sql.NullString

	// Binding.
	StripeCustomerID    sql.NullString
	StripePaymentIntent sql.NullString

	CreatedAt   time.Time
	GeneratedAt sql.NullTime
	BoundAt     sql.NullTime
}

// Application reconstructs the underwriting input from the stored snapshot.
// The claims JSON was written by CreateQuote from validated records, so a
// decode failure here means the row was corrupted out-of-band.
func (q Quote) Application() (underwriting.ApplicationRecord, error) {
	var claims []underwriting.ClaimRecord
	if len(q.ClaimsJSON) > 0 {
		if err := json.Unmarshal(q.ClaimsJSON, &claims); err != nil {
			return underwriting.ApplicationRecord{}, fmt.Errorf("store: decode claims for quote %s: %w", q.ID, err)
		}
	}

	return underwriting.ApplicationRecord{
		BusinessName:        q.BusinessName,
		BusinessType:        underwriting.BusinessType(q.BusinessType),
		AnnualRevenue:       q.AnnualRevenue,
		EmployeeCount:       q.EmployeeCount,
		State:               q.State,
		City:                q.City,
		YearsInBusiness:     q.YearsInBusiness,
		BusinessDescription: q.BusinessDescription,
		ClaimsHistory:       claims,
		AdditionalNotes:     q.AdditionalNotes.String,
	}, nil
}

// RiskFactors decodes the stored factor list. Nil when the quote is not yet
// finalized or the assessor returned none.
func (q Quote) RiskFactors() []string {
	if !q.RiskFactorsJSON.Valid {
		return nil
	}
	var factors []string
	if err := json.Unmarshal(q.RiskFactorsJSON.RawMessage, &factors); err != nil {
		return nil
	}
	return factors
}

// Store wraps the connection pool. Operation methods live in quotes.go.
type Store struct {
	pool *sql.DB
}

// New creates a Store from a live connection pool. The pool must already be
// open and verified (e.g. via PingContext) before calling New.
func New(pool *sql.DB) *Store {
	return &Store{pool: pool}
}

// querier is the subset of *sql.DB and *sql.Tx the operation methods use, so
// the same helpers serve both transactional and direct calls.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx begins a serializable transaction, passes it to fn, and commits on
// success or rolls back on any error (including panics).
func (s *Store) withTx(ctx context.Context, fn func(ctx context.Context, q querier) error) error {
	tx, err := s.pool.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}

	// Roll back on panic so the connection is never left in a broken state.
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("store: fn error: %w; rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}

// quoteColumns is the fixed column order shared by every SELECT and RETURNING
// clause. scanQuote must stay in sync with it.
const quoteColumns = `id, access_token, status,
business_name, business_type, annual_revenue, employee_count,
state, city, years_in_business, business_description, additional_notes,
claims_json, email,
premium, risk_profile, risk_factors_json, breakdown_json, report_path, error_message,
stripe_customer_id, stripe_payment_intent,
created_at, generated_at, bound_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuote(row rowScanner) (Quote, error) {
	var q Quote
	err := row.Scan(
		&q.ID, &q.AccessToken, &q.Status,
		&q.BusinessName, &q.BusinessType, &q.AnnualRevenue, &q.EmployeeCount,
		&q.State, &q.City, &q.YearsInBusiness, &q.BusinessDescription, &q.AdditionalNotes,
		&q.ClaimsJSON, &q.Email,
		&q.Premium, &q.RiskProfile, &q.RiskFactorsJSON, &q.BreakdownJSON, &q.ReportPath, &q.ErrorMessage,
		&q.StripeCustomerID, &q.StripePaymentIntent,
		&q.CreatedAt, &q.GeneratedAt, &q.BoundAt,
	)
	if err != nil {
		return Quote{}, err
	}
	return q, nil
}
