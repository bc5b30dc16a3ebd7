package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tandara/quoteline-backend/internal/underwriting"
)

func sampleQuote() (underwriting.ApplicationRecord, underwriting.QuoteResult, underwriting.Breakdown) {
	app := underwriting.ApplicationRecord{
		BusinessName:        "Joe's Diner",
		BusinessType:        underwriting.BusinessRestaurant,
		AnnualRevenue:       decimal.NewFromInt(500000),
		EmployeeCount:       15,
		State:               "CA",
		City:                "Fresno",
		YearsInBusiness:     5,
		BusinessDescription: "Family-owned restaurant serving breakfast and lunch.",
		ClaimsHistory: []underwriting.ClaimRecord{
			{Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Type: "property", Amount: decimal.NewFromInt(5000)},
		},
		AdditionalNotes: "Recently installed a fire suppression system.",
	}

	profile := underwriting.RiskMedium
	premium, breakdown := underwriting.ComputePremium(app, profile,
		time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))

	quote := underwriting.QuoteResult{
		QuoteID:         uuid.New(),
		BusinessName:    app.BusinessName,
		PremiumEstimate: premium,
		RiskProfile:     profile,
		RiskFactors:     []string{"kitchen fire exposure", "high customer foot traffic"},
		GeneratedAt:     time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
	}
	return app, quote, breakdown
}

func TestRender_WritesPDF(t *testing.T) {
	dir := t.TempDir()
	gen, err := NewGenerator(dir)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	app, quote, breakdown := sampleQuote()
	path, err := gen.Render(app, quote, breakdown)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	want := filepath.Join(dir, "quote_"+quote.QuoteID.String()+".pdf")
	if path != want {
		t.Errorf("path = %s, want %s", path, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read rendered file: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("output does not start with a PDF header")
	}
	if len(data) < 1000 {
		t.Errorf("suspiciously small PDF: %d bytes", len(data))
	}
}

func TestRender_MinimalApplication(t *testing.T) {
	gen, err := NewGenerator(t.TempDir())
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	app, quote, breakdown := sampleQuote()
	app.ClaimsHistory = nil
	app.BusinessDescription = ""
	app.AdditionalNotes = ""
	quote.RiskFactors = nil

	if _, err := gen.Render(app, quote, breakdown); err != nil {
		t.Fatalf("Render with empty sections: %v", err)
	}
}

func TestNewGenerator_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	if _, err := NewGenerator(dir); err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("output dir not created: %v", err)
	}
}
