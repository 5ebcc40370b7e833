package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := loadConfig(viper.New(), "")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Store.Driver != driverMemory {
		t.Errorf("Store.Driver = %q, want memory", cfg.Store.Driver)
	}
	if cfg.Queue.PollInterval != time.Second || cfg.Queue.DefaultConcurrency != 1 {
		t.Errorf("Queue = %+v", cfg.Queue)
	}
	if cfg.Health.Interval != time.Minute || cfg.Health.Window != 10000 ||
		cfg.Health.FailureThreshold != 1000 || cfg.Health.BacklogThreshold != 100 {
		t.Errorf("Health = %+v", cfg.Health)
	}
	if cfg.Mail.Concurrency != 4 {
		t.Errorf("Mail.Concurrency = %d, want 4", cfg.Mail.Concurrency)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobqd.yaml")
	data := `
addr: ":9090"
store:
  driver: sqlite
  dsn: "file:jobs.db"
health:
  interval: 30s
  backlog_threshold: 50
  overrides:
    email:
      backlog: 500
mail:
  provider: sendgrid
  concurrency: 8
  sendgrid:
    key: sg-key
    from: jobs@example.com
limits:
  - type: email
    rate_limit: 5
    rate_burst: 2
purge:
  schedule: "@daily"
  retention: 48h
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("JOBQ_ADDR", ":7070")
	t.Setenv("JOBQ_HEALTH_WINDOW", "500")

	cfg, err := loadConfig(viper.New(), path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Addr != ":7070" {
		t.Errorf("Addr = %q, want env override :7070", cfg.Addr)
	}
	if cfg.Store.Driver != driverSQLite || cfg.Store.DSN != "file:jobs.db" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Health.Interval != 30*time.Second || cfg.Health.BacklogThreshold != 50 || cfg.Health.Window != 500 {
		t.Errorf("Health = %+v", cfg.Health)
	}
	if got := cfg.Health.ThresholdsFor("email").Backlog; got != 500 {
		t.Errorf("email backlog threshold = %d, want 500", got)
	}
	if cfg.Mail.Provider != "sendgrid" || cfg.Mail.SendGrid.Key != "sg-key" || cfg.Mail.Concurrency != 8 {
		t.Errorf("Mail = %+v", cfg.Mail)
	}
	if len(cfg.Limits) != 1 || cfg.Limits[0].Type != "email" || cfg.Limits[0].RateLimit != 5 {
		t.Errorf("Limits = %+v", cfg.Limits)
	}
	if cfg.Purge.Schedule != "@daily" || cfg.Purge.Retention != 48*time.Hour {
		t.Errorf("Purge = %+v", cfg.Purge)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown driver", map[string]string{"JOBQ_STORE_DRIVER": "etcd"}, "unknown store.driver"},
		{"postgres without dsn", map[string]string{"JOBQ_STORE_DRIVER": "postgres"}, "store.dsn is required"},
		{"zero mail concurrency", map[string]string{"JOBQ_MAIL_CONCURRENCY": "0"}, "mail.concurrency"},
		{"negative window", map[string]string{"JOBQ_HEALTH_WINDOW": "-1"}, "window must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadConfig(viper.New(), "")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("loadConfig() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig(viper.New(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for explicit missing config file")
	}
}

func TestNewLogger(t *testing.T) {
	var sb strings.Builder
	logger, err := newLogger(&sb, LogConfig{Level: "warn", Format: "text"})
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(sb.String(), "hidden") || !strings.Contains(sb.String(), "shown") {
		t.Fatalf("output = %q", sb.String())
	}

	if _, err := newLogger(&sb, LogConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for bad level")
	}
	if _, err := newLogger(&sb, LogConfig{Level: "info", Format: "xml"}); err == nil {
		t.Fatal("expected error for bad format")
	}
}
