// Package email defines the interface for transactional email delivery and
// provides a Resend-backed implementation.
package email

import (
	"context"

	"github.com/shopspring/decimal"
)

// QuoteReadyParams holds the data needed to send the quote delivery email.
type QuoteReadyParams struct {
	To           string          // recipient email address
	BusinessName string          // used in the subject line; may be empty
	AccessToken  string          // opaque token, inserted into the quote URL
	Premium      decimal.Decimal // annual premium estimate, shown in the body
}

// BindReceiptParams holds the data for the post-payment receipt email.
type BindReceiptParams struct {
	To           string
	BusinessName string
	AmountCents  int64  // deposit amount, e.g. 62500 for $625.00
	Currency     string // e.g. "usd"
}

// Sender is the interface the worker and webhook handler use to send email.
// Tests inject a stub that records calls without hitting the network.
type Sender interface {
	// SendQuoteReady sends the "your quote is ready" email with the access
	// token link. Called by the worker after FinalizeQuote succeeds.
	SendQuoteReady(ctx context.Context, p QuoteReadyParams) error

	// SendBindReceipt sends the deposit receipt. Called by the webhook
	// handler after the quote is marked bound.
	SendBindReceipt(ctx context.Context, p BindReceiptParams) error
}
