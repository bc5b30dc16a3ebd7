package underwriting_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tandara/quoteline-backend/internal/underwriting"
)

func TestAssembleQuote_CopiesFields(t *testing.T) {
	app := restaurantApp()
	assessment := underwriting.RiskAssessment{
		Profile: underwriting.RiskHigh,
		Factors: []string{"liquor license", "historic building"},
	}
	premium := decimal.RequireFromString("9250.00")

	q := underwriting.AssembleQuote(app, assessment, premium)

	if q.BusinessName != app.BusinessName {
		t.Errorf("business name = %q, want %q", q.BusinessName, app.BusinessName)
	}
	if !q.PremiumEstimate.Equal(premium) {
		t.Errorf("premium = %s, want %s", q.PremiumEstimate, premium)
	}
	if q.RiskProfile != underwriting.RiskHigh {
		t.Errorf("profile = %q, want high", q.RiskProfile)
	}
	if len(q.RiskFactors) != 2 {
		t.Errorf("factors = %v", q.RiskFactors)
	}
}

func TestAssembleQuote_FreshIDAndTimestamp(t *testing.T) {
	app := restaurantApp()
	assessment := underwriting.RiskAssessment{Profile: underwriting.RiskMedium}
	premium := decimal.RequireFromString("7000.00")

	a := underwriting.AssembleQuote(app, assessment, premium)
	b := underwriting.AssembleQuote(app, assessment, premium)

	if a.QuoteID == b.QuoteID {
		t.Error("two quotes share the same quote ID")
	}
	if a.GeneratedAt.IsZero() {
		t.Error("GeneratedAt not set")
	}
	if a.GeneratedAt.Location() != time.UTC {
		t.Errorf("GeneratedAt location = %v, want UTC", a.GeneratedAt.Location())
	}
}
