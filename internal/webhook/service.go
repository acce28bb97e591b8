// Package webhook processes Kiwify order notifications: normalize, persist,
// then fulfill.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-kiwify-fulfillment/internal/fulfillment"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/kiwify"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/metrics"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/sales"
)

// SaleStore persists normalized sales.
type SaleStore interface {
	Upsert(ctx context.Context, sale sales.Sale) (*sales.Sale, error)
}

// Fulfiller runs the fulfillment step for an upserted sale.
type Fulfiller interface {
	Fulfill(ctx context.Context, sale sales.Sale) fulfillment.Outcome
}

// EventPublisher receives a sale.recorded event after every upsert.
type EventPublisher interface {
	Publish(ctx context.Context, messageBody string, attributes map[string]string) error
}

// SaleRecordedEvent is published after a delivery has been persisted.
type SaleRecordedEvent struct {
	Type          string  `json:"type"`
	TransactionID string  `json:"kiwify_transaction_id"`
	ProductID     string  `json:"product_id"`
	Status        string  `json:"status"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	PurchaseDate  string  `json:"purchase_date"`
	RecordedAt    string  `json:"recorded_at"`
}

// Config groups dependencies for the Service. Events and Metrics are optional.
type Config struct {
	Sales     SaleStore
	Fulfiller Fulfiller
	Events    EventPublisher
	Metrics   metrics.Recorder
	Logger    logrus.FieldLogger
}

// Result is what a processed delivery produced.
type Result struct {
	Sale    *sales.Sale
	Outcome fulfillment.Outcome
}

type Service struct {
	sales     SaleStore
	fulfiller Fulfiller
	events    EventPublisher
	metrics   metrics.Recorder
	log       logrus.FieldLogger
	nowFunc   func() time.Time
}

func NewService(cfg Config) *Service {
	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.Noop{}
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		sales:     cfg.Sales,
		fulfiller: cfg.Fulfiller,
		events:    cfg.Events,
		metrics:   rec,
		log:       log,
		nowFunc:   time.Now,
	}
}

// Process handles one raw delivery body.
//
// It returns kiwify.ErrMissingTransactionID (wrapped or not) for deliveries
// without an id, a kiwify.ErrMalformedPayload for undecodable bodies and a
// persistence error when the upsert fails. Nothing is written in the first two
// cases. Fulfillment problems are never returned; they are in Result.Outcome.
func (s *Service) Process(ctx context.Context, body []byte) (*Result, error) {
	s.log.WithField("payload", string(body)).Debug("received payload")

	sale, err := kiwify.Normalize(body, s.nowFunc())
	if err != nil {
		s.metrics.Incr(ctx, metrics.WebhookRejected, nil)
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{
		"transaction_id": sale.TransactionID,
		"status":         sale.Status,
	})

	stored, err := s.sales.Upsert(ctx, sale)
	if err != nil {
		log.WithError(err).Error("database error")
		return nil, fmt.Errorf("persist sale: %w", err)
	}
	s.metrics.Incr(ctx, metrics.SalesRecorded, map[string]string{"Status": sale.Status})
	s.publish(ctx, log, sale)

	outcome := s.fulfiller.Fulfill(ctx, sale)
	log.WithField("outcome", outcome).Info("webhook processed")

	return &Result{Sale: stored, Outcome: outcome}, nil
}

// publish is best effort; the sale is already durable.
func (s *Service) publish(ctx context.Context, log logrus.FieldLogger, sale sales.Sale) {
	if s.events == nil {
		return
	}
	body, err := json.Marshal(SaleRecordedEvent{
		Type:          "sale.recorded",
		TransactionID: sale.TransactionID,
		ProductID:     sale.ProductID,
		Status:        sale.Status,
		Amount:        sale.Amount,
		Currency:      sale.Currency,
		PurchaseDate:  sale.PurchaseDate,
		RecordedAt:    s.nowFunc().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.WithError(err).Warn("failed to encode sale event")
		return
	}
	attrs := map[string]string{
		"transaction_id": sale.TransactionID,
		"status":         sale.Status,
	}
	if err := s.events.Publish(ctx, string(body), attrs); err != nil {
		log.WithError(err).Warn("failed to publish sale event")
	}
}
