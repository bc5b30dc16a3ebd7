package ai_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/tandara/quoteline-backend/internal/ai"
	"github.com/tandara/quoteline-backend/internal/underwriting"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

type stubAssessor struct {
	raw   string
	err   error
	calls int
}

func (s *stubAssessor) Assess(_ context.Context, _ underwriting.ApplicationRecord) (string, error) {
	s.calls++
	return s.raw, s.err
}

// discardLogger returns a *slog.Logger that silently drops all log output.
// Use this instead of nil: fallback.go calls f.logger.Warn() which panics on nil.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleApp() underwriting.ApplicationRecord {
	return underwriting.ApplicationRecord{
		BusinessName:  "Joe's Diner",
		BusinessType:  underwriting.BusinessRestaurant,
		AnnualRevenue: decimal.NewFromInt(750000),
		EmployeeCount: 25,
	}
}

// ─── FallbackAssessor ─────────────────────────────────────────────────────────

func TestFallbackAssessor_PrimarySucceeds_SecondaryNotCalled(t *testing.T) {
	primary := &stubAssessor{raw: `{"risk_profile":"low","risk_factors":[]}`}
	secondary := &stubAssessor{raw: `{"risk_profile":"high","risk_factors":[]}`}

	assessor := ai.NewFallbackAssessor(primary, secondary, discardLogger())

	raw, err := assessor.Assess(context.Background(), sampleApp())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != primary.raw {
		t.Errorf("expected primary response, got: %q", raw)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary should not be called, got %d calls", secondary.calls)
	}
	if primary.calls != 1 {
		t.Errorf("primary should be called once, got %d calls", primary.calls)
	}
}

func TestFallbackAssessor_PrimaryFails_SecondaryUsed(t *testing.T) {
	primary := &stubAssessor{err: errors.New("anthropic timeout")}
	secondary := &stubAssessor{raw: `{"risk_profile":"medium","risk_factors":["fallback"]}`}

	assessor := ai.NewFallbackAssessor(primary, secondary, discardLogger())

	raw, err := assessor.Assess(context.Background(), sampleApp())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != secondary.raw {
		t.Errorf("expected secondary response, got: %q", raw)
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Errorf("calls: primary=%d secondary=%d, want 1 each", primary.calls, secondary.calls)
	}
}

func TestFallbackAssessor_BothFail_ReturnsError(t *testing.T) {
	primary := &stubAssessor{err: errors.New("primary down")}
	secondary := &stubAssessor{err: errors.New("secondary down")}

	assessor := ai.NewFallbackAssessor(primary, secondary, discardLogger())

	if _, err := assessor.Assess(context.Background(), sampleApp()); err == nil {
		t.Fatal("expected error when both providers fail")
	}
}

func TestFallbackAssessor_NilPrimary_GoesStraightToSecondary(t *testing.T) {
	secondary := &stubAssessor{raw: `{"risk_profile":"low"}`}

	assessor := ai.NewFallbackAssessor(nil, secondary, discardLogger())

	raw, err := assessor.Assess(context.Background(), sampleApp())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != secondary.raw {
		t.Errorf("expected secondary response, got %q", raw)
	}
}

func TestFallbackAssessor_NilSecondary_PrimaryErrorSurfaced(t *testing.T) {
	primary := &stubAssessor{err: errors.New("primary down")}

	assessor := ai.NewFallbackAssessor(primary, nil, discardLogger())

	if _, err := assessor.Assess(context.Background(), sampleApp()); err == nil {
		t.Fatal("expected primary error to surface with no secondary")
	}
}
