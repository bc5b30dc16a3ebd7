// Package report renders a finished quote as a PDF document.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"github.com/tandara/quoteline-backend/internal/underwriting"
)

// Generator writes quote PDFs into a single output directory.
type Generator struct {
	outputDir string
}

// NewGenerator creates the output directory if needed and returns a Generator
// writing into it.
func NewGenerator(outputDir string) (*Generator, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("report: create output dir: %w", err)
	}
	return &Generator{outputDir: outputDir}, nil
}

const (
	pageMargin = 15.0
	lineHeight = 7.0
	labelWidth = 55.0
)

// Render writes quote_<id>.pdf for a finished quote and returns the file path.
func (g *Generator) Render(app underwriting.ApplicationRecord, quote underwriting.QuoteResult, breakdown underwriting.Breakdown) (string, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AddPage()

	// Title block.
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "Business Insurance Quote", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(0, 5, fmt.Sprintf("Quote %s", quote.QuoteID), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Generated %s", quote.GeneratedAt.Format("January 2, 2006 15:04 MST")), "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(6)

	// Premium headline.
	pdf.SetFillColor(235, 240, 250)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 12, fmt.Sprintf("Estimated Annual Premium: $%s", quote.PremiumEstimate.StringFixed(2)), "1", 1, "C", true, 0, "")
	pdf.Ln(6)

	g.sectionHeader(pdf, "Business Details")
	g.keyValue(pdf, "Business Name", app.BusinessName)
	g.keyValue(pdf, "Business Type", titleCase(string(app.BusinessType)))
	g.keyValue(pdf, "Annual Revenue", "$"+app.AnnualRevenue.StringFixed(2))
	g.keyValue(pdf, "Employees", fmt.Sprintf("%d", app.EmployeeCount))
	g.keyValue(pdf, "Location", fmt.Sprintf("%s, %s", app.City, app.State))
	g.keyValue(pdf, "Years in Business", fmt.Sprintf("%d", app.YearsInBusiness))
	pdf.Ln(4)

	g.sectionHeader(pdf, "Premium Calculation")
	g.keyValue(pdf, "Base Rate (per $1,000)", "$"+breakdown.BaseRate.StringFixed(2))
	g.keyValue(pdf, "Revenue Base", "$"+breakdown.RevenueBase.StringFixed(2))
	g.keyValue(pdf, "Risk Multiplier", breakdown.RiskMultiplier.String())
	g.keyValue(pdf, "Employee Factor", breakdown.EmployeeFactor.String())
	g.keyValue(pdf, "Claims Surcharge", fmt.Sprintf("$%s (%d claims counted)", breakdown.ClaimsSurcharge.StringFixed(2), breakdown.ClaimsCounted))
	g.keyValue(pdf, "Tenure Factor", breakdown.TenureFactor.String())
	if breakdown.FlooredToMinimum {
		g.keyValue(pdf, "Minimum Premium", "applied")
	}
	pdf.Ln(4)

	g.sectionHeader(pdf, fmt.Sprintf("Risk Assessment: %s", strings.ToUpper(string(quote.RiskProfile))))
	if len(quote.RiskFactors) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, lineHeight, "No specific risk factors identified.", "", "L", false)
	} else {
		pdf.SetFont("Helvetica", "", 10)
		for _, factor := range quote.RiskFactors {
			pdf.CellFormat(5, lineHeight, "-", "", 0, "L", false, 0, "")
			pdf.MultiCell(0, lineHeight, factor, "", "L", false)
		}
	}
	pdf.Ln(4)

	if app.BusinessDescription != "" {
		g.sectionHeader(pdf, "Business Description")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, lineHeight, app.BusinessDescription, "", "L", false)
		pdf.Ln(4)
	}

	if len(app.ClaimsHistory) > 0 {
		g.sectionHeader(pdf, "Claims History")
		g.claimsTable(pdf, app.ClaimsHistory)
		pdf.Ln(4)
	}

	if app.AdditionalNotes != "" {
		g.sectionHeader(pdf, "Additional Notes")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, lineHeight, app.AdditionalNotes, "", "L", false)
		pdf.Ln(4)
	}

	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(110, 110, 110)
	pdf.MultiCell(0, 4, "This estimate is not a binding offer of coverage. Final terms are subject to underwriting review.", "", "L", false)

	path := filepath.Join(g.outputDir, fmt.Sprintf("quote_%s.pdf", quote.QuoteID))
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("report: write %s: %w", path, err)
	}
	return path, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (g *Generator) sectionHeader(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, title, "B", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func (g *Generator) keyValue(pdf *fpdf.Fpdf, label, value string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(labelWidth, lineHeight, label, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, lineHeight, value, "", 1, "L", false, 0, "")
}

func (g *Generator) claimsTable(pdf *fpdf.Fpdf, claims []underwriting.ClaimRecord) {
	colWidths := []float64{40, 80, 40}
	headers := []string{"Date", "Type", "Amount"}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(240, 240, 240)
	for i, h := range headers {
		pdf.CellFormat(colWidths[i], lineHeight, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	total := decimal.Zero
	for _, c := range claims {
		pdf.CellFormat(colWidths[0], lineHeight, c.Date.Format("2006-01-02"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colWidths[1], lineHeight, c.Type, "1", 0, "L", false, 0, "")
		pdf.CellFormat(colWidths[2], lineHeight, "$"+c.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
		total = total.Add(c.Amount)
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(colWidths[0]+colWidths[1], lineHeight, "Total", "1", 0, "L", false, 0, "")
	pdf.CellFormat(colWidths[2], lineHeight, "$"+total.StringFixed(2), "1", 1, "R", false, 0, "")
}
