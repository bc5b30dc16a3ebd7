package underwriting

import "strings"

// RiskProfile is the three-level risk classification produced by the external
// assessor. String values match the Postgres enum and the wire format.
type RiskProfile string

const (
	RiskLow    RiskProfile = "low"
	RiskMedium RiskProfile = "medium"
	RiskHigh   RiskProfile = "high"
)

// ParseRiskProfile coerces an arbitrary category string into exactly one of
// the three profiles. Unrecognised or missing input defaults to RiskMedium;
// the conservative middle, never silently to low.
func ParseRiskProfile(s string) RiskProfile {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow
	case "medium", "moderate":
		return RiskMedium
	case "high":
		return RiskHigh
	default:
		return RiskMedium
	}
}

// RiskAssessment is the normalized output of the external assessor.
// Factors may be empty, that is a valid assessment, not an error state.
type RiskAssessment struct {
	Profile RiskProfile
	Factors []string
}
