package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-kiwify-fulfillment/internal/aws"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/config"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/email"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/fulfillment"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/handlers"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/metrics"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/products"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/sales"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/storage"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/webhook"
)

func newDispatcher(ctx context.Context, cfg *config.Config, clients *aws.AWSClients, log logrus.FieldLogger) (email.Dispatcher, error) {
	if cfg.EmailProvider == config.ProviderSMTP {
		return email.NewSMTPDispatcher(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom), nil
	}

	apiKey := cfg.ResendAPIKey
	if apiKey == "" && cfg.ResendAPIKeyParam != "" {
		v, err := aws.ResolveParameter(ctx, clients.SSM, cfg.ResendAPIKeyParam)
		if err != nil {
			// dispatches will fail with ErrMissingAPIKey; webhooks still persist
			log.WithError(err).Error("failed to resolve resend api key")
		}
		apiKey = v
	}
	if apiKey == "" {
		log.Warn("RESEND_API_KEY not configured")
	}
	return email.NewResendDispatcher(apiKey, cfg.ResendAPIURL, cfg.EmailFrom)
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	log, err := cfg.NewLogger()
	if err != nil {
		logrus.WithError(err).Fatal("failed to init logger")
	}

	clients, err := aws.NewAWSClients(ctx, aws.Options{
		Region:           cfg.AWSRegion,
		EndpointOverride: cfg.AWSEndpointOverride,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to init aws clients")
	}

	var recorder metrics.Recorder = metrics.Noop{}
	if cfg.MetricsEnabled {
		recorder = metrics.NewCloudWatch(clients.CloudWatch, cfg.MetricsNamespace, log)
	}

	dispatcher, err := newDispatcher(ctx, cfg, clients, log)
	if err != nil {
		log.WithError(err).Fatal("failed to init email dispatcher")
	}

	salesStore := sales.NewStore(clients.DynamoDB, cfg.SalesTable)
	productsStore := products.NewStore(clients.DynamoDB, cfg.ProductsTable)

	trigger := fulfillment.NewTrigger(fulfillment.Config{
		Sales:        salesStore,
		Resolver:     products.NewResolver(productsStore, log),
		Dispatcher:   dispatcher,
		Metrics:      recorder,
		Logger:       log,
		PaidStatuses: cfg.PaidStatuses,
	})

	svcCfg := webhook.Config{
		Sales:     salesStore,
		Fulfiller: trigger,
		Metrics:   recorder,
		Logger:    log,
	}
	if cfg.SaleEventsQueueURL != "" {
		svcCfg.Events = aws.NewPublisher(clients.SQS, cfg.SaleEventsQueueURL)
	}

	r := handlers.NewRouter(handlers.HandlerConfig{
		Webhook:     webhook.NewService(svcCfg),
		Products:    productsStore,
		Sales:       salesStore,
		Uploads:     storage.NewUploader(clients.S3, cfg.UploadsBucket, cfg.AWSRegion, cfg.UploadsPublicBaseURL),
		AdminAPIKey: cfg.AdminAPIKey,
		Logger:      log,
	})

	// RUN_LOCAL=true runs a plain HTTP server for development.
	if cfg.RunLocal {
		log.Infof("running local server on %s", cfg.LocalAddr)
		if err := r.Run(cfg.LocalAddr); err != nil {
			log.WithError(err).Fatal("failed to run local server")
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
