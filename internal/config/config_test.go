package config

import (
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestFromMap_Defaults(t *testing.T) {
	cfg, err := FromMap(map[string]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SalesTable != "kiwify_sales" || cfg.ProductsTable != "products" {
		t.Fatalf("unexpected tables: %q %q", cfg.SalesTable, cfg.ProductsTable)
	}
	if cfg.AWSRegion != "us-east-1" {
		t.Fatalf("expected default region, got %q", cfg.AWSRegion)
	}
	if cfg.EmailProvider != ProviderResend {
		t.Fatalf("expected resend provider, got %q", cfg.EmailProvider)
	}
	if !reflect.DeepEqual(cfg.PaidStatuses, []string{"paid", "approved"}) {
		t.Fatalf("unexpected paid statuses: %v", cfg.PaidStatuses)
	}
	if cfg.RunLocal || cfg.LocalAddr != ":8080" {
		t.Fatalf("unexpected local settings: %v %q", cfg.RunLocal, cfg.LocalAddr)
	}
}

func TestFromMap_Overrides(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"SALES_TABLE":    "sales_dev",
		"PAID_STATUSES":  "paid,approved,completed",
		"RUN_LOCAL":      "true",
		"EMAIL_PROVIDER": "SMTP",
		"SMTP_HOST":      "smtp.example.com",
		"LOG_FORMAT":     "text",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SalesTable != "sales_dev" || !cfg.RunLocal {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.EmailProvider != ProviderSMTP {
		t.Fatalf("expected smtp provider, got %q", cfg.EmailProvider)
	}
	if len(cfg.PaidStatuses) != 3 {
		t.Fatalf("expected 3 paid statuses, got %v", cfg.PaidStatuses)
	}
}

func TestFromMap_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown provider": {"EMAIL_PROVIDER": "pigeon"},
		"smtp no host":     {"EMAIL_PROVIDER": "smtp"},
		"bad log format":   {"LOG_FORMAT": "xml"},
		"bad bool":         {"RUN_LOCAL": "maybe"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := FromMap(vars); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg, err := FromMap(map[string]string{"LOG_LEVEL": "debug", "LOG_FORMAT": "text"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	log, err := cfg.NewLogger()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %v", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.TextFormatter); !ok {
		t.Fatalf("expected text formatter, got %T", log.Formatter)
	}

	cfg.LogLevel = "loud"
	if _, err := cfg.NewLogger(); err == nil {
		t.Fatal("expected error for bad level")
	}
}
