package underwriting

import (
	"encoding/json"
	"strings"
)

const (
	// maxRiskFactors caps how many factor strings survive normalization.
	maxRiskFactors = 12

	// maxFactorLen truncates any single factor to keep report rows sane.
	maxFactorLen = 300
)

// NormalizeRisk coerces a raw assessor response into a usable RiskAssessment.
// The assessor is an LLM and its output is untrusted: it may wrap the JSON in
// markdown fences, omit fields, mistype them, or return garbage. Whatever
// happens, NormalizeRisk returns a valid assessment and never panics;
// any parse shortfall degrades to the medium profile with whatever factors
// could still be recovered.
func NormalizeRisk(raw string) RiskAssessment {
	raw = stripFences(raw)

	// Decode the two fields independently so a mistyped risk_factors does not
	// take the profile down with it (and vice versa).
	var probe struct {
		RiskProfile json.RawMessage `json:"risk_profile"`
		RiskFactors json.RawMessage `json:"risk_factors"`
	}
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return RiskAssessment{Profile: RiskMedium}
	}

	assessment := RiskAssessment{Profile: RiskMedium}

	if len(probe.RiskProfile) > 0 {
		var category string
		if err := json.Unmarshal(probe.RiskProfile, &category); err == nil {
			assessment.Profile = ParseRiskProfile(category)
		}
	}

	if len(probe.RiskFactors) > 0 {
		var factors []string
		if err := json.Unmarshal(probe.RiskFactors, &factors); err == nil {
			assessment.Factors = cleanFactors(factors)
		}
	}

	return assessment
}

// stripFences removes markdown code fences the model may have wrapped around
// its JSON, plus any prose before the first brace or after the last.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	return raw
}

// cleanFactors trims each factor, drops empties, truncates over-long entries,
// and caps the list length. Order is preserved.
func cleanFactors(factors []string) []string {
	out := make([]string, 0, len(factors))
	for _, f := range factors {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if len(f) > maxFactorLen {
			f = f[:maxFactorLen]
		}
		out = append(out, f)
		if len(out) == maxRiskFactors {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
