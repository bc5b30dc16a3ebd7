package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tandara/quoteline-backend/internal/ai"
	"github.com/tandara/quoteline-backend/internal/email"
	"github.com/tandara/quoteline-backend/internal/store"
	"github.com/tandara/quoteline-backend/internal/underwriting"
)

// Quotes is the slice of the store the pipeline needs. *store.Store satisfies
// it; tests inject a stub.
type Quotes interface {
	ClaimQuote(ctx context.Context, id uuid.UUID) (store.Quote, error)
	FinalizeQuote(ctx context.Context, params store.FinalizeQuoteParams) (store.Quote, error)
	MarkQuoteFailed(ctx context.Context, id uuid.UUID, reason string) error
	ListUnfinished(ctx context.Context, olderThan time.Duration, limit int) ([]uuid.UUID, error)
}

// Renderer produces the PDF document for a finished quote. *report.Generator
// satisfies it; tests inject a stub.
type Renderer interface {
	Render(app underwriting.ApplicationRecord, quote underwriting.QuoteResult, breakdown underwriting.Breakdown) (string, error)
}

// Job holds the dependencies for the assess-and-quote pipeline. Each step is a
// separate call so the Run method reads like a checklist.
type Job struct {
	quotes   Quotes
	assessor ai.Assessor
	reports  Renderer
	mailer   email.Sender
	logger   *slog.Logger
}

// NewJob constructs a Job with all required dependencies. mailer may be nil
// when email delivery is not configured.
func NewJob(
	quotes Quotes,
	assessor ai.Assessor,
	reports Renderer,
	mailer email.Sender,
	logger *slog.Logger,
) *Job {
	return &Job{
		quotes:   quotes,
		assessor: assessor,
		reports:  reports,
		mailer:   mailer,
		logger:   logger,
	}
}

// Run executes the full pipeline for a single quote:
//
//  1. Claim the quote (pending -> processing).
//  2. Call the AI assessor for a risk read on the application.
//  3. Normalize the raw response into a usable assessment.
//  4. Compute the premium from the application and the risk profile.
//  5. Render the PDF report.
//  6. Finalize the row (processing -> ready).
//  7. Send the delivery email.
//
// Assessor, report, and email failures are non-fatal: the assessment falls
// back to a medium profile, and a quote without a PDF or email is still
// retrievable by token. Store failures are returned to the Runner, which
// retries up to MaxRetries before calling MarkQuoteFailed.
func (j *Job) Run(ctx context.Context, quoteID uuid.UUID) error {
	log := j.logger.With("quote_id", quoteID)
	log.Info("job: starting")

	// ── 1. Claim ──────────────────────────────────────────────────────────────
	quote, err := j.quotes.ClaimQuote(ctx, quoteID)
	if errors.Is(err, store.ErrQuoteNotClaimable) {
		// Already finished by another worker or a previous run.
		log.Info("job: quote already finished, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("job: claim quote: %w", err)
	}

	app, err := quote.Application()
	if err != nil {
		return fmt.Errorf("job: decode application: %w", err)
	}

	// ── 2. Assess ─────────────────────────────────────────────────────────────
	var raw string
	if j.assessor != nil {
		raw, err = j.assessor.Assess(ctx, app)
		if err != nil {
			// Non-fatal: NormalizeRisk turns an empty response into a medium
			// profile, so the quote still goes out at the baseline rate.
			log.Warn("job: assessor failed, falling back to medium profile", "error", err)
			raw = ""
		}
	}

	// ── 3. Normalize ──────────────────────────────────────────────────────────
	assessment := underwriting.NormalizeRisk(raw)
	log.Debug("job: risk normalized",
		"profile", assessment.Profile,
		"factors", len(assessment.Factors),
	)

	// ── 4. Rate ───────────────────────────────────────────────────────────────
	asOf := time.Now().UTC()
	premium, breakdown := underwriting.ComputePremium(app, assessment.Profile, asOf)

	result := underwriting.AssembleQuote(app, assessment, premium)
	// The stored row already has an identity; the document carries it too so
	// the PDF filename and the API response agree.
	result.QuoteID = quote.ID

	log.Info("job: premium computed",
		"premium", premium.StringFixed(2),
		"profile", assessment.Profile,
		"claims_counted", breakdown.ClaimsCounted,
	)

	// ── 5. Render ─────────────────────────────────────────────────────────────
	reportPath := ""
	if j.reports != nil {
		reportPath, err = j.reports.Render(app, result, breakdown)
		if err != nil {
			// Non-fatal: the quote numbers are the product, the PDF is a nicety.
			log.Error("job: report render failed", "error", err)
			reportPath = ""
		}
	}

	// ── 6. Finalize ───────────────────────────────────────────────────────────
	final, err := j.quotes.FinalizeQuote(ctx, store.FinalizeQuoteParams{
		QuoteID:     quote.ID,
		Premium:     premium,
		RiskProfile: assessment.Profile,
		RiskFactors: assessment.Factors,
		Breakdown:   breakdown,
		ReportPath:  reportPath,
		GeneratedAt: result.GeneratedAt,
	})
	if err != nil {
		return fmt.Errorf("job: finalize quote: %w", err)
	}

	log.Info("job: quote ready",
		"premium", premium.StringFixed(2),
		"access_token", final.AccessToken,
	)

	// ── 7. Deliver ────────────────────────────────────────────────────────────
	if j.mailer == nil || !final.Email.Valid || final.Email.String == "" {
		return nil
	}
	if err := j.mailer.SendQuoteReady(ctx, email.QuoteReadyParams{
		To:           final.Email.String,
		BusinessName: final.BusinessName,
		AccessToken:  final.AccessToken,
		Premium:      premium,
	}); err != nil {
		// Log but do not fail: the quote is accessible via the token.
		log.Error("job: failed to send quote email",
			"to", final.Email.String,
			"error", err,
		)
	}

	return nil
}
