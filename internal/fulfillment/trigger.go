// Package fulfillment decides whether a sale needs its download email and sends it.
//
// Per transaction id the email moves NOT_SENT -> SENT exactly once through this
// package: the decision is taken on the persisted email_sent_at (read after the
// upsert), and the SENT transition is a conditional write. A failed dispatch
// leaves the sale NOT_SENT so the next paid redelivery retries it.
package fulfillment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-kiwify-fulfillment/internal/email"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/metrics"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/products"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/sales"
)

// DefaultPaidStatuses are the statuses that trigger fulfillment.
var DefaultPaidStatuses = []string{"paid", "approved"}

// Outcome describes what Fulfill did. None of them fail the webhook.
type Outcome string

const (
	OutcomeNotPaid          Outcome = "not_paid"
	OutcomeStateUnavailable Outcome = "state_unavailable"
	OutcomeAlreadySent      Outcome = "already_sent"
	OutcomeLookupFailed     Outcome = "lookup_failed"
	OutcomeProductMissing   Outcome = "product_missing"
	OutcomeDispatchFailed   Outcome = "dispatch_failed"
	OutcomeSent             Outcome = "sent"
	// OutcomeSentUnrecorded means the email went out but email_sent_at could not be written.
	OutcomeSentUnrecorded Outcome = "sent_unrecorded"
)

// SaleStore is the persisted fulfillment state.
type SaleStore interface {
	Get(ctx context.Context, transactionID string) (*sales.Sale, error)
	MarkEmailSent(ctx context.Context, transactionID string, at time.Time) error
}

// FileResolver finds the deliverable for a provider product id; (nil, nil) means not found.
type FileResolver interface {
	ResolveFile(ctx context.Context, providerProductID string) (*products.Product, error)
}

// Config groups dependencies for the Trigger.
type Config struct {
	Sales        SaleStore
	Resolver     FileResolver
	Dispatcher   email.Dispatcher
	Metrics      metrics.Recorder
	Logger       logrus.FieldLogger
	PaidStatuses []string
}

// Trigger runs the fulfillment step for one delivery.
type Trigger struct {
	sales      SaleStore
	resolver   FileResolver
	dispatcher email.Dispatcher
	metrics    metrics.Recorder
	log        logrus.FieldLogger
	paid       map[string]struct{}
	nowFunc    func() time.Time
}

func NewTrigger(cfg Config) *Trigger {
	statuses := cfg.PaidStatuses
	if len(statuses) == 0 {
		statuses = DefaultPaidStatuses
	}
	paid := make(map[string]struct{}, len(statuses))
	for _, s := range statuses {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			paid[s] = struct{}{}
		}
	}

	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.Noop{}
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Trigger{
		sales:      cfg.Sales,
		resolver:   cfg.Resolver,
		dispatcher: cfg.Dispatcher,
		metrics:    rec,
		log:        log,
		paid:       paid,
		nowFunc:    time.Now,
	}
}

// IsPaid reports whether status is one of the paid tokens (case-insensitive).
func (t *Trigger) IsPaid(status string) bool {
	_, ok := t.paid[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

// Fulfill sends the download email for sale if it is paid and not yet sent.
// sale is the normalized record of the current delivery; it must already be upserted.
func (t *Trigger) Fulfill(ctx context.Context, sale sales.Sale) Outcome {
	if !t.IsPaid(sale.Status) {
		return OutcomeNotPaid
	}

	log := t.log.WithFields(logrus.Fields{
		"transaction_id": sale.TransactionID,
		"product_id":     sale.ProductID,
		"status":         sale.Status,
	})

	current, err := t.sales.Get(ctx, sale.TransactionID)
	if err != nil {
		log.WithError(err).Error("error fetching sale")
		return OutcomeStateUnavailable
	}
	if current == nil {
		log.Error("sale not found after upsert")
		return OutcomeStateUnavailable
	}
	if current.EmailSent() {
		log.WithField("email_sent_at", current.EmailSentAt).Info("email already sent, skipping")
		t.metrics.Incr(ctx, metrics.EmailsSkipped, nil)
		return OutcomeAlreadySent
	}

	product, err := t.resolver.ResolveFile(ctx, sale.ProductID)
	if err != nil {
		log.WithError(err).Error("error fetching product")
		return OutcomeLookupFailed
	}
	if product == nil {
		log.Warn("product file not found; make sure the product exists and has a matching checkout link")
		t.metrics.Incr(ctx, metrics.ProductFileMissing, nil)
		return OutcomeProductMissing
	}

	to := sale.BuyerEmail
	if to == sales.UnknownBuyerEmail {
		to = ""
	}
	res := t.dispatcher.Dispatch(ctx, email.Message{
		To:             to,
		Subject:        email.SubjectFor(product.Title),
		BuyerName:      sale.BuyerName,
		ProductName:    product.Title,
		ProductLink:    product.FileURL,
		Amount:         sale.Amount,
		IdempotencyKey: "fulfillment/" + sale.TransactionID,
	})
	if res.Failed() {
		log.WithField("reason", res.Reason()).Error("fulfillment email dispatch failed")
		t.metrics.Incr(ctx, metrics.EmailsFailed, nil)
		return OutcomeDispatchFailed
	}
	t.metrics.Incr(ctx, metrics.EmailsSent, nil)

	err = t.sales.MarkEmailSent(ctx, sale.TransactionID, t.nowFunc())
	switch {
	case errors.Is(err, sales.ErrAlreadySent):
		log.Warn("email_sent_at was recorded by a concurrent delivery")
	case err != nil:
		log.WithError(err).Error("email sent but email_sent_at could not be recorded")
		return OutcomeSentUnrecorded
	}

	log.WithField("provider_id", res.ProviderID).Info("email sent successfully")
	return OutcomeSent
}
