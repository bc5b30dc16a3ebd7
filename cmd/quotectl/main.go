// Command quotectl runs the quoting pipeline synchronously from the terminal,
// without the HTTP server or database. It reads an application from a JSON
// file, optionally calls the AI assessor, and prints the quote as JSON next to
// a rendered PDF.
//
// Usage:
//
//	quotectl quote -file application.json [-out ./reports] [-offline]
//	quotectl batch -file applications.json [-out ./reports] [-concurrency 4]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tandara/quoteline-backend/internal/ai"
	"github.com/tandara/quoteline-backend/internal/config"
	"github.com/tandara/quoteline-backend/internal/report"
	"github.com/tandara/quoteline-backend/internal/underwriting"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "quote":
		err = runQuote(logger, os.Args[2:])
	case "batch":
		err = runBatch(logger, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  quotectl quote -file application.json [-out ./reports] [-offline]
  quotectl batch -file applications.json [-out ./reports] [-concurrency 4] [-offline]`)
}

// ─── INPUT FORMAT ─────────────────────────────────────────────────────────────

// applicationInput is the JSON shape quotectl accepts, identical to the HTTP
// intake payload.
type applicationInput struct {
	BusinessName        string          `json:"business_name"`
	BusinessType        string          `json:"business_type"`
	AnnualRevenue       decimal.Decimal `json:"annual_revenue"`
	EmployeeCount       int             `json:"employee_count"`
	State               string          `json:"state"`
	City                string          `json:"city"`
	YearsInBusiness     int             `json:"years_in_business"`
	BusinessDescription string          `json:"business_description"`
	ClaimsHistory       []struct {
		Date   string          `json:"date"`
		Type   string          `json:"type"`
		Amount decimal.Decimal `json:"amount"`
	} `json:"claims_history"`
	AdditionalNotes string `json:"additional_notes"`
}

func (in applicationInput) toRecord() (underwriting.ApplicationRecord, error) {
	app := underwriting.ApplicationRecord{
		BusinessName:        in.BusinessName,
		BusinessType:        underwriting.BusinessType(in.BusinessType),
		AnnualRevenue:       in.AnnualRevenue,
		EmployeeCount:       in.EmployeeCount,
		State:               in.State,
		City:                in.City,
		YearsInBusiness:     in.YearsInBusiness,
		BusinessDescription: in.BusinessDescription,
		AdditionalNotes:     in.AdditionalNotes,
	}
	if app.BusinessName == "" {
		return app, fmt.Errorf("business_name is required")
	}
	if app.AnnualRevenue.IsNegative() {
		return app, fmt.Errorf("annual_revenue must not be negative")
	}
	for _, c := range in.ClaimsHistory {
		date, err := time.Parse("2006-01-02", c.Date)
		if err != nil {
			return app, fmt.Errorf("invalid claim date %q: %w", c.Date, err)
		}
		if c.Amount.IsNegative() {
			return app, fmt.Errorf("claim amount must not be negative")
		}
		app.ClaimsHistory = append(app.ClaimsHistory, underwriting.ClaimRecord{
			Date:   date,
			Type:   c.Type,
			Amount: c.Amount,
		})
	}
	return app, nil
}

// ─── quote ────────────────────────────────────────────────────────────────────

func runQuote(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("quote", flag.ExitOnError)
	file := fs.String("file", "", "path to the application JSON file")
	out := fs.String("out", "./reports", "directory for the rendered PDF")
	offline := fs.Bool("offline", false, "skip the AI assessor and rate at the medium profile")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("-file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("read %s: %w", *file, err)
	}

	var in applicationInput
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("parse %s: %w", *file, err)
	}
	app, err := in.toRecord()
	if err != nil {
		return fmt.Errorf("%s: %w", *file, err)
	}

	assessor := buildAssessor(logger, *offline)
	gen, err := report.NewGenerator(*out)
	if err != nil {
		return err
	}

	result, path, err := quoteOne(context.Background(), logger, assessor, gen, app)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if path != "" {
		logger.Info("report written", "path", path)
	}
	return nil
}

// ─── batch ────────────────────────────────────────────────────────────────────

func runBatch(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	file := fs.String("file", "", "path to a JSON array of applications")
	out := fs.String("out", "./reports", "directory for the rendered PDFs")
	concurrency := fs.Int("concurrency", 4, "number of applications quoted in parallel")
	offline := fs.Bool("offline", false, "skip the AI assessor and rate at the medium profile")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("-file is required")
	}
	if *concurrency < 1 {
		*concurrency = 1
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("read %s: %w", *file, err)
	}

	var inputs []applicationInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return fmt.Errorf("parse %s: %w", *file, err)
	}
	if len(inputs) == 0 {
		return fmt.Errorf("%s contains no applications", *file)
	}

	assessor := buildAssessor(logger, *offline)
	gen, err := report.NewGenerator(*out)
	if err != nil {
		return err
	}

	type batchResult struct {
		Index  int                       `json:"index"`
		Quote  *underwriting.QuoteResult `json:"quote,omitempty"`
		Report string                    `json:"report,omitempty"`
		Error  string                    `json:"error,omitempty"`
	}

	results := make([]batchResult, len(inputs))
	sem := make(chan struct{}, *concurrency)
	var wg sync.WaitGroup

	for i, in := range inputs {
		wg.Add(1)
		go func(i int, in applicationInput) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i].Index = i
			app, err := in.toRecord()
			if err != nil {
				results[i].Error = err.Error()
				return
			}
			quote, path, err := quoteOne(context.Background(), logger, assessor, gen, app)
			if err != nil {
				results[i].Error = err.Error()
				return
			}
			results[i].Quote = &quote
			results[i].Report = path
		}(i, in)
	}
	wg.Wait()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d applications failed", failed, len(inputs))
	}
	return nil
}

// ─── PIPELINE ─────────────────────────────────────────────────────────────────

// buildAssessor wires the same provider chain as the server. Returns nil in
// offline mode or when no API key is configured; the pipeline then rates at
// the medium profile.
func buildAssessor(logger *slog.Logger, offline bool) ai.Assessor {
	if offline {
		return nil
	}

	cfg := config.Load()
	switch {
	case cfg.AnthropicAPIKey != "" && cfg.DeepSeekAPIKey != "":
		return ai.NewFallbackAssessor(
			ai.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel),
			ai.NewDeepSeekClient(cfg.DeepSeekAPIKey, cfg.DeepSeekModel),
			logger,
		)
	case cfg.AnthropicAPIKey != "":
		return ai.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	case cfg.DeepSeekAPIKey != "":
		return ai.NewDeepSeekClient(cfg.DeepSeekAPIKey, cfg.DeepSeekModel)
	default:
		logger.Warn("no AI provider configured, rating at medium profile")
		return nil
	}
}

// quoteOne runs assess, normalize, rate, assemble, and render for a single
// application.
func quoteOne(
	ctx context.Context,
	logger *slog.Logger,
	assessor ai.Assessor,
	gen *report.Generator,
	app underwriting.ApplicationRecord,
) (underwriting.QuoteResult, string, error) {
	var raw string
	if assessor != nil {
		assessCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()

		var err error
		raw, err = assessor.Assess(assessCtx, app)
		if err != nil {
			logger.Warn("assessor failed, rating at medium profile",
				"business", app.BusinessName,
				"error", err,
			)
			raw = ""
		}
	}

	assessment := underwriting.NormalizeRisk(raw)
	premium, breakdown := underwriting.ComputePremium(app, assessment.Profile, time.Now().UTC())
	result := underwriting.AssembleQuote(app, assessment, premium)

	path, err := gen.Render(app, result, breakdown)
	if err != nil {
		// The quote numbers stand on their own; report failure is a warning.
		logger.Warn("report render failed", "business", app.BusinessName, "error", err)
		path = ""
	}

	return result, path, nil
}
