// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	ProviderResend = "resend"
	ProviderSMTP   = "smtp"
)

type Config struct {
	AWSRegion           string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpointOverride string `env:"AWS_ENDPOINT_OVERRIDE"`

	SalesTable    string `env:"SALES_TABLE" envDefault:"kiwify_sales"`
	ProductsTable string `env:"PRODUCTS_TABLE" envDefault:"products"`

	UploadsBucket        string `env:"UPLOADS_BUCKET"`
	UploadsPublicBaseURL string `env:"UPLOADS_PUBLIC_BASE_URL"`
	SaleEventsQueueURL   string `env:"SALE_EVENTS_QUEUE_URL"`

	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"KiwifyFulfillment"`
	MetricsEnabled   bool   `env:"METRICS_ENABLED" envDefault:"false"`

	// Email
	EmailProvider     string `env:"EMAIL_PROVIDER" envDefault:"resend"`
	ResendAPIKey      string `env:"RESEND_API_KEY"`
	ResendAPIKeyParam string `env:"RESEND_API_KEY_PARAM"`
	ResendAPIURL      string `env:"RESEND_API_URL" envDefault:"https://api.resend.com/"`
	EmailFrom         string `env:"EMAIL_FROM" envDefault:"Livraria Digital <onboarding@resend.dev>"`
	SMTPHost          string `env:"SMTP_HOST"`
	SMTPPort          string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser          string `env:"SMTP_USER"`
	SMTPPassword      string `env:"SMTP_PASSWORD"`

	AdminAPIKey  string   `env:"ADMIN_API_KEY"`
	PaidStatuses []string `env:"PAID_STATUSES" envDefault:"paid,approved" envSeparator:","`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	RunLocal  bool   `env:"RUN_LOCAL" envDefault:"false"`
	LocalAddr string `env:"LOCAL_ADDR" envDefault:":8080"`
}

// Load reads an optional .env file and parses the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("could not load .env file")
	}
	return parse(env.Options{})
}

// FromMap parses cfg from the given variables only.
func FromMap(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.EmailProvider = strings.ToLower(strings.TrimSpace(c.EmailProvider))
	switch c.EmailProvider {
	case ProviderResend:
	case ProviderSMTP:
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when EMAIL_PROVIDER=smtp")
		}
	default:
		return fmt.Errorf("unknown EMAIL_PROVIDER %q", c.EmailProvider)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetLevel(level)
	if c.LogFormat == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log, nil
}
