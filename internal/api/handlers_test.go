package api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tandara/quoteline-backend/internal/api"
	"github.com/tandara/quoteline-backend/internal/email"
	"github.com/tandara/quoteline-backend/internal/store"
	stripeinternal "github.com/tandara/quoteline-backend/internal/stripe"
	"github.com/tandara/quoteline-backend/internal/underwriting"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

type stubStore struct {
	createdApp   *underwriting.ApplicationRecord
	createdEmail string
	createErr    error

	quote  store.Quote
	getErr error

	attachParams *store.AttachPaymentIntentParams
	attachErr    error

	boundQuote store.Quote
	bindErr    error
}

func (s *stubStore) CreateQuote(_ context.Context, app underwriting.ApplicationRecord, email string) (store.Quote, error) {
	if s.createErr != nil {
		return store.Quote{}, s.createErr
	}
	s.createdApp = &app
	s.createdEmail = email
	q := s.quote
	if q.ID == uuid.Nil {
		q = store.Quote{
			ID:           uuid.New(),
			AccessToken:  "tok123",
			Status:       store.StatusPending,
			BusinessName: app.BusinessName,
		}
	}
	return q, nil
}

func (s *stubStore) GetQuoteByID(_ context.Context, _ uuid.UUID) (store.Quote, error) {
	return s.quote, s.getErr
}

func (s *stubStore) GetQuoteByAccessToken(_ context.Context, _ string) (store.Quote, error) {
	return s.quote, s.getErr
}

func (s *stubStore) AttachPaymentIntent(_ context.Context, p store.AttachPaymentIntentParams) error {
	if s.attachErr != nil {
		return s.attachErr
	}
	s.attachParams = &p
	return nil
}

func (s *stubStore) BindQuote(_ context.Context, _ string) (store.Quote, error) {
	if s.bindErr != nil {
		return store.Quote{}, s.bindErr
	}
	return s.boundQuote, nil
}

type stubStripe struct {
	pi        stripeinternal.PaymentIntent
	createErr error
	secret    string
	secretErr error
	event     stripeinternal.Event
	verifyErr error
}

func (s *stubStripe) CreatePaymentIntent(_ context.Context, _ stripeinternal.CreatePaymentIntentParams) (stripeinternal.PaymentIntent, error) {
	return s.pi, s.createErr
}

func (s *stubStripe) GetClientSecret(_ context.Context, _ string) (string, error) {
	return s.secret, s.secretErr
}

func (s *stubStripe) VerifyWebhook(_ []byte, _ string, _ string) (stripeinternal.Event, error) {
	return s.event, s.verifyErr
}

type stubEnqueuer struct {
	enqueued []uuid.UUID
	err      error
}

func (s *stubEnqueuer) Enqueue(_ context.Context, id uuid.UUID) error {
	if s.err != nil {
		return s.err
	}
	s.enqueued = append(s.enqueued, id)
	return nil
}

type stubMailer struct {
	receipts []email.BindReceiptParams
}

func (s *stubMailer) SendQuoteReady(_ context.Context, _ email.QuoteReadyParams) error {
	return nil
}

func (s *stubMailer) SendBindReceipt(_ context.Context, p email.BindReceiptParams) error {
	s.receipts = append(s.receipts, p)
	return nil
}

func newTestServer(st *stubStore, sp *stubStripe, eq *stubEnqueuer, m *stubMailer) http.Handler {
	return api.NewServer(st, sp, eq, m,
		api.Config{
			BaseURL:             "http://localhost",
			StripeWebhookSecret: "whsec_test",
			Env:                 "test",
		},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func readyQuote(id uuid.UUID) store.Quote {
	return store.Quote{
		ID:           id,
		AccessToken:  "tok123",
		Status:       store.StatusReady,
		BusinessName: "Joe's Diner",
		BusinessType: "restaurant",
		Premium:      decimal.NullDecimal{Decimal: decimal.RequireFromString("7500.00"), Valid: true},
		RiskProfile:  sql.NullString{String: "medium", Valid: true},
		Email:        sql.NullString{String: "joe@example.com", Valid: true},
		GeneratedAt:  sql.NullTime{Time: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC), Valid: true},
		ReportPath:   sql.NullString{String: "/reports/quote.pdf", Valid: true},
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func validApplication() map[string]any {
	return map[string]any{
		"business_name":        "Joe's Diner",
		"business_type":        "restaurant",
		"annual_revenue":       "500000",
		"employee_count":       15,
		"state":                "CA",
		"city":                 "Fresno",
		"years_in_business":    5,
		"business_description": "Family restaurant",
		"claims_history": []map[string]any{
			{"date": "2024-03-01", "type": "property", "amount": "5000"},
		},
		"email": "joe@example.com",
	}
}

// ─── POST /api/quotes ─────────────────────────────────────────────────────────

func TestCreateQuote_AcceptsAndEnqueues(t *testing.T) {
	st := &stubStore{}
	eq := &stubEnqueuer{}
	h := newTestServer(st, &stubStripe{}, eq, &stubMailer{})

	rec := doJSON(t, h, http.MethodPost, "/api/quotes", validApplication())

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID          string `json:"id"`
		AccessToken string `json:"access_token"`
		Status      string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Error("access_token missing")
	}
	if resp.Status != "pending" {
		t.Errorf("status = %q, want pending", resp.Status)
	}
	if len(eq.enqueued) != 1 {
		t.Errorf("enqueued = %d jobs, want 1", len(eq.enqueued))
	}

	if st.createdApp == nil {
		t.Fatal("store.CreateQuote not called")
	}
	if len(st.createdApp.ClaimsHistory) != 1 {
		t.Fatalf("claims = %d, want 1", len(st.createdApp.ClaimsHistory))
	}
	claim := st.createdApp.ClaimsHistory[0]
	if claim.Date.Format("2006-01-02") != "2024-03-01" {
		t.Errorf("claim date = %s", claim.Date)
	}
	if !claim.Amount.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("claim amount = %s", claim.Amount)
	}
	if st.createdEmail != "joe@example.com" {
		t.Errorf("email = %q", st.createdEmail)
	}
}

func TestCreateQuote_ValidationFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(m map[string]any)
	}{
		{"missing business name", func(m map[string]any) { delete(m, "business_name") }},
		{"missing description", func(m map[string]any) { delete(m, "business_description") }},
		{"bad email", func(m map[string]any) { m["email"] = "not-an-email" }},
		{"negative employees", func(m map[string]any) { m["employee_count"] = -1 }},
		{"negative revenue", func(m map[string]any) { m["annual_revenue"] = "-1" }},
		{"bad claim date", func(m map[string]any) {
			m["claims_history"] = []map[string]any{{"date": "March 1st", "type": "property", "amount": "100"}}
		}},
		{"negative claim amount", func(m map[string]any) {
			m["claims_history"] = []map[string]any{{"date": "2024-03-01", "type": "property", "amount": "-100"}}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := &stubStore{}
			h := newTestServer(st, &stubStripe{}, &stubEnqueuer{}, &stubMailer{})

			body := validApplication()
			tc.mutate(body)

			rec := doJSON(t, h, http.MethodPost, "/api/quotes", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body = %s", rec.Code, rec.Body.String())
			}
			if st.createdApp != nil {
				t.Error("store.CreateQuote should not be called on invalid input")
			}
		})
	}
}

func TestCreateQuote_EnqueueFailureStillAccepts(t *testing.T) {
	st := &stubStore{}
	eq := &stubEnqueuer{err: errors.New("queue full")}
	h := newTestServer(st, &stubStripe{}, eq, &stubMailer{})

	rec := doJSON(t, h, http.MethodPost, "/api/quotes", validApplication())
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (poller recovers dropped work)", rec.Code)
	}
}

// ─── GET /api/quotes/{accessToken} ────────────────────────────────────────────

func TestGetQuote_PendingOmitsPremium(t *testing.T) {
	st := &stubStore{quote: store.Quote{
		ID:           uuid.New(),
		AccessToken:  "tok123",
		Status:       store.StatusPending,
		BusinessName: "Joe's Diner",
	}}
	h := newTestServer(st, &stubStripe{}, &stubEnqueuer{}, &stubMailer{})

	rec := doJSON(t, h, http.MethodGet, "/api/quotes/tok123", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "pending" {
		t.Errorf("status = %v", resp["status"])
	}
	if _, ok := resp["premium_estimate"]; ok {
		t.Error("premium_estimate should be omitted while pending")
	}
}

func TestGetQuote_ReadyIncludesPremiumAndRisk(t *testing.T) {
	st := &stubStore{quote: readyQuote(uuid.New())}
	h := newTestServer(st, &stubStripe{}, &stubEnqueuer{}, &stubMailer{})

	rec := doJSON(t, h, http.MethodGet, "/api/quotes/tok123", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Status          string `json:"status"`
		PremiumEstimate string `json:"premium_estimate"`
		RiskProfile     string `json:"risk_profile"`
		ReportAvailable bool   `json:"report_available"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ready" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.PremiumEstimate != "7500.00" {
		t.Errorf("premium = %q, want 7500.00", resp.PremiumEstimate)
	}
	if resp.RiskProfile != "medium" {
		t.Errorf("risk profile = %q", resp.RiskProfile)
	}
	if !resp.ReportAvailable {
		t.Error("report_available should be true")
	}
}

func TestGetQuote_UnknownTokenIs404(t *testing.T) {
	st := &stubStore{getErr: store.ErrNotFound}
	h := newTestServer(st, &stubStripe{}, &stubEnqueuer{}, &stubMailer{})

	rec := doJSON(t, h, http.MethodGet, "/api/quotes/unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetQuoteReport_MissingReportIs404(t *testing.T) {
	q := readyQuote(uuid.New())
	q.ReportPath = sql.NullString{}
	st := &stubStore{quote: q}
	h := newTestServer(st, &stubStripe{}, &stubEnqueuer{}, &stubMailer{})

	rec := doJSON(t, h, http.MethodGet, "/api/quotes/tok123/report", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

// ─── POST /api/quotes/{quoteID}/bind ──────────────────────────────────────────

func TestBindQuote_CreatesDepositIntent(t *testing.T) {
	id := uuid.New()
	st := &stubStore{quote: readyQuote(id)}
	sp := &stubStripe{pi: stripeinternal.PaymentIntent{
		ID:           "pi_new",
		ClientSecret: "pi_new_secret",
		CustomerID:   "cus_abc",
	}}
	h := newTestServer(st, sp, &stubEnqueuer{}, &stubMailer{})

	rec := doJSON(t, h, http.MethodPost, "/api/quotes/"+id.String()+"/bind",
		map[string]any{"email": "joe@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ClientSecret string `json:"client_secret"`
		DepositCents int64  `json:"deposit_cents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ClientSecret != "pi_new_secret" {
		t.Errorf("client_secret = %q", resp.ClientSecret)
	}
	// 7500.00 / 12 = 625.00 -> 62500 cents.
	if resp.DepositCents != 62500 {
		t.Errorf("deposit_cents = %d, want 62500", resp.DepositCents)
	}

	if st.attachParams == nil {
		t.Fatal("AttachPaymentIntent not called")
	}
	if st.attachParams.PaymentIntent != "pi_new" {
		t.Errorf("attached PI = %q", st.attachParams.PaymentIntent)
	}
}

func TestBindQuote_PendingQuoteIs409(t *testing.T) {
	id := uuid.New()
	st := &stubStore{quote: store.Quote{ID: id, Status: store.StatusPending}}
	h := newTestServer(st, &stubStripe{}, &stubEnqueuer{}, &stubMailer{})

	rec := doJSON(t, h, http.MethodPost, "/api/quotes/"+id.String()+"/bind",
		map[string]any{"email": "joe@example.com"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestBindQuote_ExistingIntentReturnsSameSecret(t *testing.T) {
	id := uuid.New()
	q := readyQuote(id)
	q.StripePaymentIntent = sql.NullString{String: "pi_existing", Valid: true}
	st := &stubStore{quote: q}
	sp := &stubStripe{secret: "pi_existing_secret"}
	h := newTestServer(st, sp, &stubEnqueuer{}, &stubMailer{})

	rec := doJSON(t, h, http.MethodPost, "/api/quotes/"+id.String()+"/bind",
		map[string]any{"email": "joe@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		ClientSecret string `json:"client_secret"`
		IsExisting   bool   `json:"is_existing"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ClientSecret != "pi_existing_secret" {
		t.Errorf("client_secret = %q", resp.ClientSecret)
	}
	if !resp.IsExisting {
		t.Error("is_existing should be true")
	}
}

func TestBindQuote_LostRaceReturnsWinningSecret(t *testing.T) {
	id := uuid.New()
	st := &stubStore{
		quote:     readyQuote(id),
		attachErr: store.ErrPaymentIntentAttached,
	}
	st.quote.StripePaymentIntent = sql.NullString{}
	sp := &stubStripe{
		pi:     stripeinternal.PaymentIntent{ID: "pi_loser", ClientSecret: "loser_secret"},
		secret: "winner_secret",
	}
	h := newTestServer(st, sp, &stubEnqueuer{}, &stubMailer{})

	rec := doJSON(t, h, http.MethodPost, "/api/quotes/"+id.String()+"/bind",
		map[string]any{"email": "joe@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		ClientSecret string `json:"client_secret"`
		IsExisting   bool   `json:"is_existing"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ClientSecret != "winner_secret" {
		t.Errorf("client_secret = %q, want winner_secret", resp.ClientSecret)
	}
	if !resp.IsExisting {
		t.Error("is_existing should be true after losing the race")
	}
}

// ─── POST /api/webhooks/stripe ────────────────────────────────────────────────

func webhookEvent(eventType, piID string) stripeinternal.Event {
	raw, _ := json.Marshal(map[string]any{"id": piID, "object": "payment_intent"})
	return stripeinternal.Event{
		ID:      "evt_test",
		Type:    eventType,
		DataRaw: raw,
	}
}

func TestWebhook_InvalidSignatureIs400(t *testing.T) {
	sp := &stubStripe{verifyErr: errors.New("bad signature")}
	h := newTestServer(&stubStore{}, sp, &stubEnqueuer{}, &stubMailer{})

	rec := doJSON(t, h, http.MethodPost, "/api/webhooks/stripe", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestWebhook_PaymentSucceededBindsAndSendsReceipt(t *testing.T) {
	id := uuid.New()
	bound := readyQuote(id)
	bound.Status = store.StatusBound
	st := &stubStore{boundQuote: bound}
	sp := &stubStripe{event: webhookEvent("payment_intent.succeeded", "pi_123")}
	mailer := &stubMailer{}
	h := newTestServer(st, sp, &stubEnqueuer{}, mailer)

	rec := doJSON(t, h, http.MethodPost, "/api/webhooks/stripe", map[string]any{})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(mailer.receipts) != 1 {
		t.Fatalf("receipts = %d, want 1", len(mailer.receipts))
	}
	if mailer.receipts[0].AmountCents != 62500 {
		t.Errorf("receipt amount = %d, want 62500", mailer.receipts[0].AmountCents)
	}
}

func TestWebhook_DuplicateDeliveryIsAcked(t *testing.T) {
	st := &stubStore{bindErr: store.ErrQuoteAlreadyBound}
	sp := &stubStripe{event: webhookEvent("payment_intent.succeeded", "pi_123")}
	h := newTestServer(st, sp, &stubEnqueuer{}, &stubMailer{})

	rec := doJSON(t, h, http.MethodPost, "/api/webhooks/stripe", map[string]any{})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for duplicate delivery", rec.Code)
	}
}

func TestWebhook_UnknownEventTypeIsAcked(t *testing.T) {
	sp := &stubStripe{event: webhookEvent("customer.created", "pi_123")}
	h := newTestServer(&stubStore{}, sp, &stubEnqueuer{}, &stubMailer{})

	rec := doJSON(t, h, http.MethodPost, "/api/webhooks/stripe", map[string]any{})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
