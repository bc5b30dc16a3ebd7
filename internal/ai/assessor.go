// Package ai defines the interface for the external AI risk assessor and
// provides Anthropic- and DeepSeek-backed implementations. The assessor
// returns the model's raw response text; parsing it into a bounded
// RiskAssessment is the job of underwriting.NormalizeRisk, which never fails.
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/tandara/quoteline-backend/internal/underwriting"
)

// Assessor is the interface the pipeline uses to obtain a risk narrative for
// an application. The concrete implementations live in anthropic.go and
// deepseek.go. Tests inject a stub that returns canned responses.
type Assessor interface {
	// Assess submits the business profile to the model and returns its raw
	// response text, expected (but not guaranteed) to be JSON of the shape
	// {"risk_profile": "...", "risk_factors": ["..."]}.
	//
	// Implementations must be safe to call concurrently. A non-nil error means
	// the call failed entirely; the caller falls back to the default medium
	// profile.
	Assess(ctx context.Context, app underwriting.ApplicationRecord) (string, error)
}

const systemPrompt = `You are an expert commercial insurance underwriter.
You will receive the profile of a small or medium business applying for coverage.

Evaluate its risk and respond ONLY with valid JSON matching this exact schema, no markdown fences, no preamble:
{
  "risk_profile": "low" | "medium" | "high",
  "risk_factors": ["specific factor 1", "specific factor 2"]
}

risk_factors must be short, concrete, and specific to this business, cite its
industry, location, claims history, and operations. Return an empty array if
nothing noteworthy applies.`

// buildPrompt serialises the application into a compact prompt string.
func buildPrompt(app underwriting.ApplicationRecord) string {
	var sb strings.Builder
	sb.WriteString("Evaluate the insurance risk profile for this business:\n\n")

	fmt.Fprintf(&sb, "business: %s\n", app.BusinessName)
	fmt.Fprintf(&sb, "type: %s\n", app.BusinessType)
	fmt.Fprintf(&sb, "annual_revenue: %s\n", app.AnnualRevenue.StringFixed(2))
	fmt.Fprintf(&sb, "employees: %d\n", app.EmployeeCount)
	fmt.Fprintf(&sb, "location: %s, %s\n", app.City, app.State)
	fmt.Fprintf(&sb, "years_in_business: %d\n", app.YearsInBusiness)
	fmt.Fprintf(&sb, "description: %s\n", app.BusinessDescription)

	sb.WriteString("claims_history:\n")
	if len(app.ClaimsHistory) == 0 {
		sb.WriteString("  none\n")
	}
	for _, c := range app.ClaimsHistory {
		fmt.Fprintf(&sb, "  - date: %s, type: %s, amount: %s\n",
			c.Date.Format("2006-01-02"), c.Type, c.Amount.StringFixed(2))
	}

	if app.AdditionalNotes != "" {
		fmt.Fprintf(&sb, "additional_notes: %s\n", app.AdditionalNotes)
	}

	return sb.String()
}
