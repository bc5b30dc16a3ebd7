// Package underwriting implements the quote computation core: premium
// calculation from fixed rate tables, normalization of external risk
// assessments, and quote assembly. It is intentionally dependency-free within
// the module: it imports nothing from internal/ and can be tested without a
// database or network.
package underwriting

import (
	"time"

	"github.com/shopspring/decimal"
)

// BusinessType is the enumerated business category used for base rate lookup.
// Values deliberately match the strings accepted on the wire so they can be
// stored and compared without conversion. Unlisted types are priced at the
// BusinessOther rate; an unknown type is never an error.
type BusinessType string

const (
	BusinessRestaurant BusinessType = "restaurant"
	BusinessRetail     BusinessType = "retail"
	BusinessOffice     BusinessType = "office"
	BusinessContractor BusinessType = "contractor"
	BusinessOther      BusinessType = "other"
)

// ClaimRecord is a single prior insurance claim. Claims carry no identity
// beyond their values; the sequence order is whatever the applicant supplied
// (chronological by convention) and is never re-sorted.
type ClaimRecord struct {
	Date   time.Time       `json:"date"`
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"` // non-negative
}

// ApplicationRecord is a validated business-insurance application. The HTTP
// and CLI layers are responsible for constructing it from untrusted input;
// the core assumes revenue, employee count, and years in business are
// non-negative and claim amounts are non-negative.
type ApplicationRecord struct {
	BusinessName        string
	BusinessType        BusinessType
	AnnualRevenue       decimal.Decimal
	EmployeeCount       int
	State               string
	City                string
	YearsInBusiness     int
	BusinessDescription string
	ClaimsHistory       []ClaimRecord
	AdditionalNotes     string
}
