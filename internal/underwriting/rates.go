package underwriting

import "github.com/shopspring/decimal"

// Rating constants. These are configuration data, not logic: every value is a
// fixed, auditable constant, kept in plain lookup structures so the arithmetic
// in premium.go stays free of scattered conditionals.
//
// Documented tuning choices:
//   - Base rates are expressed per $1,000 of annual revenue (divisor 1000).
//   - Claims inside a 5-year lookback window each add a flat 250.00 plus 5%
//     of the claim amount. Multiple claims compound additively.
//   - The final figure is rounded half away from zero to 2 decimal places and
//     never drops below the 500.00 minimum premium.

// revenueDivisor scales annual revenue before the base rate is applied.
var revenueDivisor = decimal.NewFromInt(1000)

// baseRates maps business type to the rate per $1,000 of annual revenue.
// Lookup misses fall back to BusinessOther; see BaseRate.
var baseRates = map[BusinessType]decimal.Decimal{
	BusinessRestaurant: dec("14.00"),
	BusinessRetail:     dec("9.00"),
	BusinessOffice:     dec("6.00"),
	BusinessContractor: dec("16.00"),
	BusinessOther:      dec("10.00"),
}

// riskMultipliers scales the revenue-based premium by assessed risk.
// Medium is the neutral baseline.
var riskMultipliers = map[RiskProfile]decimal.Decimal{
	RiskLow:    dec("0.85"),
	RiskMedium: dec("1.00"),
	RiskHigh:   dec("1.25"),
}

// employeeBands scales the premium by workforce size. Bands are evaluated in
// order; the first band whose Max exceeds the employee count applies.
var employeeBands = []struct {
	Max    int // exclusive upper bound; -1 = no bound
	Factor decimal.Decimal
}{
	{Max: 10, Factor: dec("0.95")},
	{Max: 25, Factor: dec("1.00")},
	{Max: 50, Factor: dec("1.10")},
	{Max: -1, Factor: dec("1.20")},
}

// tenureBands maps years in business to a premium factor. Very new businesses
// pay a surcharge; established ones earn a discount past ten years. Factors
// are non-increasing with tenure, so more years never raises the premium.
var tenureBands = []struct {
	Max    int // exclusive upper bound on years; -1 = no bound
	Factor decimal.Decimal
}{
	{Max: 2, Factor: dec("1.15")},
	{Max: 5, Factor: dec("1.05")},
	{Max: 10, Factor: dec("1.00")},
	{Max: -1, Factor: dec("0.90")},
}

const (
	// claimsLookbackYears is the window within which past claims still affect
	// the premium. Older claims are ignored entirely.
	claimsLookbackYears = 5
)

var (
	// claimFlatSurcharge is added once per in-window claim.
	claimFlatSurcharge = dec("250.00")

	// claimAmountRate is the fraction of each in-window claim amount added as
	// surcharge.
	claimAmountRate = dec("0.05")

	// minimumPremium is the floor below which no quote is issued.
	minimumPremium = dec("500.00")
)

// BaseRate returns the per-$1,000-revenue rate for a business type, falling
// back to the BusinessOther rate for unknown types.
func BaseRate(bt BusinessType) decimal.Decimal {
	if r, ok := baseRates[bt]; ok {
		return r
	}
	return baseRates[BusinessOther]
}

// MinimumPremium returns the configured premium floor.
func MinimumPremium() decimal.Decimal {
	return minimumPremium
}

func employeeFactor(count int) decimal.Decimal {
	for _, b := range employeeBands {
		if b.Max < 0 || count < b.Max {
			return b.Factor
		}
	}
	return employeeBands[len(employeeBands)-1].Factor
}

func tenureFactor(years int) decimal.Decimal {
	for _, b := range tenureBands {
		if b.Max < 0 || years < b.Max {
			return b.Factor
		}
	}
	return tenureBands[len(tenureBands)-1].Factor
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
