package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WORKER_ID", "w-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Scraper.GotoTimeout != 15*time.Second {
		t.Errorf("expected goto timeout 15s, got %v", cfg.Scraper.GotoTimeout)
	}
	if cfg.Delivery.BackoffBase != 10*time.Minute || cfg.Delivery.BackoffCap != 6*time.Hour {
		t.Errorf("unexpected backoff %v/%v", cfg.Delivery.BackoffBase, cfg.Delivery.BackoffCap)
	}
	if cfg.Delivery.MaxAttempts != 12 {
		t.Errorf("expected 12 max attempts, got %d", cfg.Delivery.MaxAttempts)
	}
	if cfg.Queue.VisibilityTimeout != 15*time.Minute {
		t.Errorf("expected visibility 15m, got %v", cfg.Queue.VisibilityTimeout)
	}
	if cfg.WorkerID != "w-test" {
		t.Errorf("expected worker id from env, got %q", cfg.WorkerID)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SCRAPER_GOTO_TIMEOUT_MS", "20000")
	t.Setenv("SCRAPER_HEADLESS", "false")
	t.Setenv("DELIVERY_BACKOFF_BASE", "1m")
	t.Setenv("CLAIM_BATCH_SIZE", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Scraper.GotoTimeout != 20*time.Second {
		t.Errorf("expected 20s, got %v", cfg.Scraper.GotoTimeout)
	}
	if cfg.Scraper.Headless {
		t.Error("expected headless=false")
	}
	if cfg.Delivery.BackoffBase != time.Minute {
		t.Errorf("expected 1m, got %v", cfg.Delivery.BackoffBase)
	}
	if cfg.Queue.BatchSize != 25 {
		t.Errorf("expected 25, got %d", cfg.Queue.BatchSize)
	}
}

func TestLoad_RejectsOutOfRange(t *testing.T) {
	tests := []struct {
		key, value, field string
	}{
		{"CLAIM_BATCH_SIZE", "0", "BatchSize"},
		{"CLAIM_VISIBILITY_TIMEOUT", "10s", "VisibilityTimeout"},
		{"SCRAPER_DISCOVER_CAP", "5000", "DiscoverCap"},
		{"DELIVERY_BACKOFF_CAP", "1m", "BackoffCap"},
		{"SCRAPER_JITTER_MAX_MS", "100", "JitterMax"},
		{"DELIVERY_WEBHOOK_URL", "not a url", "WebhookURL"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			if err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("expected error to mention %s, got %v", tt.field, err)
			}
		})
	}
}

func TestLoad_ParseError(t *testing.T) {
	t.Setenv("SCRAPER_SLOWMO_MS", "fast")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "SCRAPER_SLOWMO_MS") {
		t.Fatalf("expected parse error naming the variable, got %v", err)
	}
}
