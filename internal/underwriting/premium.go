package underwriting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Breakdown is the per-component audit record of a premium computation. It is
// rendered into the PDF report and persisted alongside the quote so a reviewer
// can reproduce the figure by hand.
type Breakdown struct {
	BusinessType     BusinessType    `json:"business_type"`
	BaseRate         decimal.Decimal `json:"base_rate"`     // per $1,000 revenue
	RevenueBase      decimal.Decimal `json:"revenue_base"`  // base_rate × revenue/1000
	RiskProfile      RiskProfile     `json:"risk_profile"`
	RiskMultiplier   decimal.Decimal `json:"risk_multiplier"`
	EmployeeFactor   decimal.Decimal `json:"employee_factor"`
	ClaimsCounted    int             `json:"claims_counted"` // claims inside the lookback window
	ClaimsSurcharge  decimal.Decimal `json:"claims_surcharge"`
	TenureFactor     decimal.Decimal `json:"tenure_factor"`
	FlooredToMinimum bool            `json:"floored_to_minimum"`
	Premium          decimal.Decimal `json:"premium"`
}

// ComputePremium derives the annual premium estimate for an application and
// an assessed risk profile. It is a pure function: identical inputs always
// yield the identical premium. asOf anchors the claims lookback window so the
// computation carries no hidden clock dependence; callers pass time.Now().
//
// Composition order, fixed and relied on by the test suite:
//
//	subtotal = (baseRate × revenue/1000) × riskMultiplier × employeeFactor
//	subtotal += claimsSurcharge            (additive, in-window claims only)
//	subtotal ×= tenureFactor
//	premium  = max(minimumPremium, round2(subtotal))
//
// The result is never negative and never below the minimum premium.
func ComputePremium(app ApplicationRecord, profile RiskProfile, asOf time.Time) (decimal.Decimal, Breakdown) {
	rate := BaseRate(app.BusinessType)
	revenueBase := rate.Mul(app.AnnualRevenue.Div(revenueDivisor))

	mult, ok := riskMultipliers[profile]
	if !ok {
		mult = riskMultipliers[RiskMedium]
	}
	empFactor := employeeFactor(app.EmployeeCount)

	surcharge, counted := claimsSurcharge(app.ClaimsHistory, asOf)
	tenure := tenureFactor(app.YearsInBusiness)

	subtotal := revenueBase.Mul(mult).Mul(empFactor).Add(surcharge).Mul(tenure)
	premium := subtotal.Round(2)

	floored := false
	if premium.LessThan(minimumPremium) {
		premium = minimumPremium
		floored = true
	}

	return premium, Breakdown{
		BusinessType:     app.BusinessType,
		BaseRate:         rate,
		RevenueBase:      revenueBase.Round(2),
		RiskProfile:      profile,
		RiskMultiplier:   mult,
		EmployeeFactor:   empFactor,
		ClaimsCounted:    counted,
		ClaimsSurcharge:  surcharge,
		TenureFactor:     tenure,
		FlooredToMinimum: floored,
		Premium:          premium,
	}
}

// claimsSurcharge sums the surcharge for every claim dated inside the
// lookback window ending at asOf. Each qualifying claim contributes the flat
// per-claim penalty plus claimAmountRate of its amount; claims outside the
// window contribute nothing.
func claimsSurcharge(claims []ClaimRecord, asOf time.Time) (decimal.Decimal, int) {
	cutoff := asOf.AddDate(-claimsLookbackYears, 0, 0)

	total := decimal.Zero
	counted := 0
	for _, c := range claims {
		if c.Date.Before(cutoff) {
			continue
		}
		total = total.Add(claimFlatSurcharge).Add(c.Amount.Mul(claimAmountRate))
		counted++
	}
	return total, counted
}
