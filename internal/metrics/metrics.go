// Package metrics publishes fulfillment counters to CloudWatch.
package metrics

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-kiwify-fulfillment/internal/aws"
)

// Metric names.
const (
	SalesRecorded      = "SalesRecorded"
	EmailsSent         = "EmailsSent"
	EmailsFailed       = "EmailsFailed"
	EmailsSkipped      = "EmailsSkipped"
	ProductFileMissing = "ProductFileMissing"
	WebhookRejected    = "WebhookRejected"
)

// Recorder counts events. Implementations must not fail the caller.
type Recorder interface {
	Incr(ctx context.Context, name string, dims map[string]string)
}

// Noop discards every metric.
type Noop struct{}

func (Noop) Incr(context.Context, string, map[string]string) {}

// CloudWatch sends one PutMetricData call per event.
type CloudWatch struct {
	client    aws.CloudWatchAPI
	namespace string
	log       logrus.FieldLogger
	nowFunc   func() time.Time
}

func NewCloudWatch(client aws.CloudWatchAPI, namespace string, log logrus.FieldLogger) *CloudWatch {
	return &CloudWatch{
		client:    client,
		namespace: namespace,
		log:       log,
		nowFunc:   time.Now,
	}
}

// Incr records a count of 1. Errors are logged and dropped.
func (c *CloudWatch) Incr(ctx context.Context, name string, dims map[string]string) {
	var dimensions []cwtypes.Dimension
	for k, v := range dims {
		if v == "" {
			continue
		}
		k, v := k, v
		dimensions = append(dimensions, cwtypes.Dimension{Name: &k, Value: &v})
	}

	one := 1.0
	ts := c.nowFunc()
	_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &c.namespace,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: &name,
				Dimensions: dimensions,
				Timestamp:  &ts,
				Unit:       cwtypes.StandardUnitCount,
				Value:      &one,
			},
		},
	})
	if err != nil {
		c.log.WithError(err).WithField("metric", name).Warn("failed to publish metric")
	}
}
