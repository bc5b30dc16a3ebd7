package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/tandara/quoteline-backend/internal/store"
	"github.com/tandara/quoteline-backend/internal/underwriting"
)

var validate = validator.New()

// ─── POST /api/quotes ─────────────────────────────────────────────────────────

type claimPayload struct {
	Date   string          `json:"date" validate:"required,datetime=2006-01-02"`
	Type   string          `json:"type" validate:"required,max=100"`
	Amount decimal.Decimal `json:"amount"`
}

type createQuoteRequest struct {
	BusinessName        string          `json:"business_name" validate:"required,max=200"`
	BusinessType        string          `json:"business_type" validate:"required,max=50"`
	AnnualRevenue       decimal.Decimal `json:"annual_revenue"`
	EmployeeCount       int             `json:"employee_count" validate:"gte=0"`
	State               string          `json:"state" validate:"required,max=50"`
	City                string          `json:"city" validate:"required,max=100"`
	YearsInBusiness     int             `json:"years_in_business" validate:"gte=0"`
	BusinessDescription string          `json:"business_description" validate:"required,max=2000"`
	ClaimsHistory       []claimPayload  `json:"claims_history" validate:"max=50,dive"`
	AdditionalNotes     string          `json:"additional_notes" validate:"max=2000"`
	Email               string          `json:"email" validate:"omitempty,email"`
}

type createQuoteResponse struct {
	ID          string `json:"id"`
	AccessToken string `json:"access_token"`
	Status      string `json:"status"`
}

// handleCreateQuote accepts an application, stores it as a pending quote, and
// hands it to the worker pipeline. The response carries the access token the
// caller polls with; the premium arrives asynchronously.
func (s *Server) handleCreateQuote(w http.ResponseWriter, r *http.Request) {
	var req createQuoteRequest
	if !decode(w, r, &req) {
		return
	}

	if err := validate.Struct(req); err != nil {
		respondErr(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	// Monetary bounds are checked by hand; validator tags don't reach inside
	// decimal.Decimal.
	if req.AnnualRevenue.IsNegative() {
		respondErr(w, http.StatusBadRequest, "annual_revenue must not be negative")
		return
	}

	app := underwriting.ApplicationRecord{
		BusinessName:        req.BusinessName,
		BusinessType:        underwriting.BusinessType(req.BusinessType),
		AnnualRevenue:       req.AnnualRevenue,
		EmployeeCount:       req.EmployeeCount,
		State:               req.State,
		City:                req.City,
		YearsInBusiness:     req.YearsInBusiness,
		BusinessDescription: req.BusinessDescription,
		AdditionalNotes:     req.AdditionalNotes,
	}

	for _, c := range req.ClaimsHistory {
		if c.Amount.IsNegative() {
			respondErr(w, http.StatusBadRequest, "claim amount must not be negative")
			return
		}
		date, err := time.Parse("2006-01-02", c.Date)
		if err != nil {
			// The datetime tag already vetted the format; this is belt and braces.
			respondErr(w, http.StatusBadRequest, "invalid claim date: "+c.Date)
			return
		}
		app.ClaimsHistory = append(app.ClaimsHistory, underwriting.ClaimRecord{
			Date:   date,
			Type:   c.Type,
			Amount: c.Amount,
		})
	}

	quote, err := s.store.CreateQuote(r.Context(), app, req.Email)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("create quote: %w", err))
		return
	}

	if err := s.worker.Enqueue(r.Context(), quote.ID); err != nil {
		// Queue full: the poller will pick the quote up; the client flow is
		// unaffected.
		s.logger.Warn("quotes: enqueue failed, poller will recover",
			"quote_id", quote.ID,
			"error", err,
			logField(r),
		)
	}

	respond(w, http.StatusAccepted, createQuoteResponse{
		ID:          quote.ID.String(),
		AccessToken: quote.AccessToken,
		Status:      string(quote.Status),
	})
}

// ─── GET /api/quotes/{accessToken} ────────────────────────────────────────────

type quoteResponse struct {
	ID              string   `json:"id"`
	Status          string   `json:"status"`
	BusinessName    string   `json:"business_name"`
	PremiumEstimate string   `json:"premium_estimate,omitempty"`
	RiskProfile     string   `json:"risk_profile,omitempty"`
	RiskFactors     []string `json:"risk_factors,omitempty"`
	GeneratedAt     string   `json:"generated_at,omitempty"`
	ReportAvailable bool     `json:"report_available"`
}

// handleGetQuote returns the quote in whatever state it is in. Pending and
// processing quotes return status only; ready and bound quotes include the
// premium and risk assessment.
func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "accessToken")

	quote, err := s.store.GetQuoteByAccessToken(r.Context(), token)
	if errors.Is(err, store.ErrNotFound) {
		respondErr(w, http.StatusNotFound, "quote not found")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("get quote: %w", err))
		return
	}

	resp := quoteResponse{
		ID:              quote.ID.String(),
		Status:          string(quote.Status),
		BusinessName:    quote.BusinessName,
		ReportAvailable: quote.ReportPath.Valid && quote.ReportPath.String != "",
	}
	if quote.Premium.Valid {
		resp.PremiumEstimate = quote.Premium.Decimal.StringFixed(2)
	}
	if quote.RiskProfile.Valid {
		resp.RiskProfile = quote.RiskProfile.String
	}
	resp.RiskFactors = quote.RiskFactors()
	if quote.GeneratedAt.Valid {
		resp.GeneratedAt = quote.GeneratedAt.Time.UTC().Format(time.RFC3339)
	}

	respond(w, http.StatusOK, resp)
}

// ─── GET /api/quotes/{accessToken}/report ─────────────────────────────────────

// handleGetQuoteReport streams the PDF report for a finished quote.
func (s *Server) handleGetQuoteReport(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "accessToken")

	quote, err := s.store.GetQuoteByAccessToken(r.Context(), token)
	if errors.Is(err, store.ErrNotFound) {
		respondErr(w, http.StatusNotFound, "quote not found")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("get quote: %w", err))
		return
	}

	if !quote.ReportPath.Valid || quote.ReportPath.String == "" {
		respondErr(w, http.StatusNotFound, "report not available")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "quote_"+quote.ID.String()+".pdf"))
	http.ServeFile(w, r, quote.ReportPath.String)
}
