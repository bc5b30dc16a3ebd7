package underwriting

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuoteResult is the finished quote handed to the report and response layers.
// Created once per request and never mutated afterwards.
type QuoteResult struct {
	QuoteID         uuid.UUID       `json:"quote_id"`
	BusinessName    string          `json:"business_name"`
	PremiumEstimate decimal.Decimal `json:"premium_estimate"` // rounded to currency precision
	RiskProfile     RiskProfile     `json:"risk_profile"`
	RiskFactors     []string        `json:"risk_factors"`
	GeneratedAt     time.Time       `json:"generated_at"` // UTC
}

// AssembleQuote packages a computed premium and a normalized assessment into
// a QuoteResult with a fresh quote ID and the current UTC timestamp. It is
// pure composition: no computation of its own, and it cannot fail for
// well-formed inputs.
func AssembleQuote(app ApplicationRecord, assessment RiskAssessment, premium decimal.Decimal) QuoteResult {
	return QuoteResult{
		QuoteID:         uuid.New(),
		BusinessName:    app.BusinessName,
		PremiumEstimate: premium,
		RiskProfile:     assessment.Profile,
		RiskFactors:     assessment.Factors,
		GeneratedAt:     time.Now().UTC(),
	}
}
