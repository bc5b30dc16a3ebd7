package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// resendClient is the concrete Sender backed by the Resend API.
type resendClient struct {
	apiKey     string
	fromAddr   string // e.g. "quotes@quoteline.example"
	fromName   string // e.g. "Quoteline"
	baseURL    string // quote access URL base, e.g. "https://app.quoteline.example"
	httpClient *http.Client
}

// NewResendClient returns a Sender that delivers email via Resend.
func NewResendClient(apiKey, fromAddr, fromName, baseURL string) Sender {
	return &resendClient{
		apiKey:   apiKey,
		fromAddr: fromAddr,
		fromName: fromName,
		baseURL:  baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ─── RESEND API SHAPES ────────────────────────────────────────────────────────

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Name       string `json:"name"`
		Message    string `json:"message"`
		StatusCode int    `json:"statusCode"`
	} `json:"error"`
}

// ─── SENDER IMPLEMENTATION ────────────────────────────────────────────────────

// SendQuoteReady sends the "your quote is ready" delivery email.
func (c *resendClient) SendQuoteReady(ctx context.Context, p QuoteReadyParams) error {
	subject := "Your Insurance Quote is Ready"
	if p.BusinessName != "" {
		subject = fmt.Sprintf("%s: Your Insurance Quote is Ready", p.BusinessName)
	}

	quoteURL := fmt.Sprintf("%s/quote/%s", c.baseURL, p.AccessToken)
	premium := "$" + p.Premium.StringFixed(2)

	return c.send(ctx, p.To, subject, quoteReadyHTML(p.BusinessName, quoteURL, premium))
}

// SendBindReceipt sends the post-payment deposit receipt email.
func (c *resendClient) SendBindReceipt(ctx context.Context, p BindReceiptParams) error {
	subject := "Your deposit was received"
	if p.BusinessName != "" {
		subject = fmt.Sprintf("%s: Deposit Confirmed", p.BusinessName)
	}

	amount := fmt.Sprintf("$%.2f", float64(p.AmountCents)/100)

	return c.send(ctx, p.To, subject, bindReceiptHTML(p.BusinessName, amount))
}

// ─── HTTP SEND ────────────────────────────────────────────────────────────────

func (c *resendClient) send(ctx context.Context, to, subject, html string) error {
	from := fmt.Sprintf("%s <%s>", c.fromName, c.fromAddr)

	reqBody := resendRequest{
		From:    from,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("email: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://api.resend.com/emails",
		bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return fmt.Errorf("email: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email: http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("email: read response: %w", err)
	}

	var parsed resendResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return fmt.Errorf("email: unmarshal response (status %d): %w", resp.StatusCode, err)
	}

	if parsed.Error != nil {
		return fmt.Errorf("email: Resend error %s: %s", parsed.Error.Name, parsed.Error.Message)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("email: unexpected status %d: %.200s", resp.StatusCode, string(respBytes))
	}

	return nil
}

// ─── HTML TEMPLATES ───────────────────────────────────────────────────────────

func quoteReadyHTML(businessName, quoteURL, premium string) string {
	greeting := "Hello"
	if businessName != "" {
		greeting = fmt.Sprintf("Hello %s", businessName)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px;">Your Insurance Quote is Ready</h2>
  <p>%s,</p>
  <p>Your business insurance quote has been prepared. Your estimated annual
  premium is <strong>%s</strong>. The full quote includes your risk assessment
  and a detailed premium breakdown.</p>
  <p style="margin: 32px 0;">
    <a href="%s"
       style="background: #0f172a; color: #ffffff; padding: 12px 24px;
              border-radius: 6px; text-decoration: none; font-weight: 600;">
      View Your Quote
    </a>
  </p>
  <p style="color: #6b7280; font-size: 14px;">
    Bookmark this link to return to your quote at any time.<br>
    If the button above does not work, copy this URL:<br>
    <a href="%s" style="color: #6b7280;">%s</a>
  </p>
  <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 32px 0;">
  <p style="color: #9ca3af; font-size: 12px;">
    Quoteline · Instant business insurance quotes · No account required
  </p>
</body>
</html>`, greeting, premium, quoteURL, quoteURL, quoteURL)
}

func bindReceiptHTML(businessName, amount string) string {
	greeting := "Hello"
	if businessName != "" {
		greeting = fmt.Sprintf("Hello %s", businessName)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px;">Deposit Confirmed</h2>
  <p>%s,</p>
  <p>We have received your deposit of <strong>%s</strong>. Your policy
  application is now in underwriting review and an agent will contact you
  with the final terms within two business days.</p>
  <p style="color: #6b7280; font-size: 14px;">
    If you have any questions, reply to this email.
  </p>
  <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 32px 0;">
  <p style="color: #9ca3af; font-size: 12px;">
    Quoteline · Instant business insurance quotes · No account required
  </p>
</body>
</html>`, greeting, amount)
}
