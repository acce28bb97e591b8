package email

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// DefaultResendURL is the Resend API base URL.
const DefaultResendURL = "https://api.resend.com/"

// ResendDispatcher sends email through the Resend API.
type ResendDispatcher struct {
	apiKey string
	from   string
	client *resend.Client
}

// NewResendDispatcher returns a dispatcher authenticating with apiKey.
// Empty baseURL / from fall back to the defaults.
func NewResendDispatcher(apiKey, baseURL, from string) (*ResendDispatcher, error) {
	if baseURL == "" {
		baseURL = DefaultResendURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse resend base url: %w", err)
	}
	if from == "" {
		from = DefaultFrom
	}

	client := resend.NewCustomClient(&http.Client{Timeout: 10 * time.Second}, apiKey)
	client.BaseURL = u

	return &ResendDispatcher{
		apiKey: apiKey,
		from:   from,
		client: client,
	}, nil
}

// Dispatch renders msg and sends it. Any API error, including non-2xx responses, is a failure.
func (d *ResendDispatcher) Dispatch(ctx context.Context, msg Message) Result {
	if d.apiKey == "" {
		return failed(ErrMissingAPIKey)
	}
	if err := msg.Validate(); err != nil {
		return failed(err)
	}

	html, err := Render(msg)
	if err != nil {
		return failed(err)
	}

	req := &resend.SendEmailRequest{
		From:    d.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    html,
	}

	var out *resend.SendEmailResponse
	if msg.IdempotencyKey != "" {
		out, err = d.client.Emails.SendWithOptions(ctx, req, &resend.SendEmailOptions{
			IdempotencyKey: msg.IdempotencyKey,
		})
	} else {
		out, err = d.client.Emails.SendWithContext(ctx, req)
	}
	if err != nil {
		return failed(fmt.Errorf("resend api error: %w", err))
	}
	return sent(out.Id)
}
