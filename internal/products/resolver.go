package products

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-kiwify-fulfillment/internal/sales"
)

// Matcher finds catalog products for a provider product id, best match first.
type Matcher interface {
	MatchCheckoutLink(ctx context.Context, providerProductID string) ([]Product, error)
}

// Resolver looks up the deliverable file of a purchased product.
type Resolver struct {
	matcher Matcher
	log     logrus.FieldLogger
}

func NewResolver(matcher Matcher, log logrus.FieldLogger) *Resolver {
	return &Resolver{matcher: matcher, log: log}
}

// ResolveFile returns the product to deliver for providerProductID, or
// (nil, nil) when no product matches or the match has no file URL.
func (r *Resolver) ResolveFile(ctx context.Context, providerProductID string) (*Product, error) {
	if providerProductID == "" || providerProductID == sales.UnknownProductID {
		return nil, nil
	}

	matches, err := r.matcher.MatchCheckoutLink(ctx, providerProductID)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	if len(matches) > 1 {
		ids := make([]string, 0, len(matches))
		for _, m := range matches {
			ids = append(ids, m.ID)
		}
		r.log.WithFields(logrus.Fields{
			"product_id": providerProductID,
			"candidates": ids,
			"chosen":     matches[0].ID,
		}).Warn("multiple products match checkout link")
	}

	best := matches[0]
	if best.FileURL == "" {
		return nil, nil
	}
	return &best, nil
}
