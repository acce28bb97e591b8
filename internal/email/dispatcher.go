// Package email renders and sends the purchase confirmation email that
// carries the ebook download link.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingAPIKey = errors.New("email provider credential is not set")
	ErrMissingFields = errors.New("missing required fields")
)

// DefaultFrom is the sender used when none is configured.
const DefaultFrom = "Livraria Digital <onboarding@resend.dev>"

// Message is a fulfillment email before rendering.
type Message struct {
	To          string
	Subject     string
	BuyerName   string
	ProductName string
	ProductLink string
	Amount      float64
	// IdempotencyKey lets providers that support it drop duplicate submissions.
	IdempotencyKey string
}

// Validate checks the fields the template cannot do without.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" || strings.TrimSpace(m.ProductLink) == "" || strings.TrimSpace(m.ProductName) == "" {
		return ErrMissingFields
	}
	return nil
}

// SubjectFor returns the confirmation subject for a product title.
func SubjectFor(productTitle string) string {
	return fmt.Sprintf("Seu ebook \"%s\" chegou!", productTitle)
}

// Result is the outcome of a dispatch. A failed dispatch is not an error for
// the caller: it is logged and the sale stays eligible for a later attempt.
type Result struct {
	Sent bool
	// ProviderID is the message id returned by the provider, if any.
	ProviderID string
	Err        error
}

func sent(id string) Result   { return Result{Sent: true, ProviderID: id} }
func failed(err error) Result { return Result{Err: err} }
func (r Result) Failed() bool { return !r.Sent }
func (r Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Dispatcher submits a fulfillment email.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) Result
}
