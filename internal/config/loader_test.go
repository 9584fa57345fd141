package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/studyspace/internal/scheduler"
)

var allKeys = []string{
	"http_port", "store", "sqlite_dsn", "catalog_file", "timezone",
	"max_reservation_duration", "day_window_start", "day_window_end",
	"min_score", "max_score", "admission_retries", "sweep_interval",
	"rate_limit_rps", "rate_limit_burst", "log_level", "log_format", "metrics_stdout",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		name := envName(key)
		if prev, ok := os.LookupEnv(name); ok {
			t.Cleanup(func() { os.Setenv(name, prev) })
		}
		if err := os.Unsetenv(name); err != nil {
			t.Fatalf("failed to unset %s: %v", name, err)
		}
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.Store != StoreSQLite || cfg.SQLiteDSN != "studyspace.db" {
			t.Fatalf("unexpected default store: %q %q", cfg.Store, cfg.SQLiteDSN)
		}
		if cfg.Location != time.UTC {
			t.Fatalf("expected UTC, got %v", cfg.Location)
		}
		if cfg.MaxReservationDuration != 4*time.Hour {
			t.Fatalf("expected 4h max duration, got %s", cfg.MaxReservationDuration)
		}
		if cfg.DayWindowStart != (scheduler.TimeOfDay{Hour: 8}) || cfg.DayWindowEnd != (scheduler.TimeOfDay{Hour: 22}) {
			t.Fatalf("unexpected day window %s-%s", cfg.DayWindowStart, cfg.DayWindowEnd)
		}
		if cfg.MinScore != 1 || cfg.MaxScore != 10 {
			t.Fatalf("unexpected score bounds %d-%d", cfg.MinScore, cfg.MaxScore)
		}
		if cfg.LogFormat != "json" || cfg.LogLevel != "info" {
			t.Fatalf("unexpected log settings %q %q", cfg.LogLevel, cfg.LogFormat)
		}
	})

	t.Run("parses overrides", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STUDYSPACE_HTTP_PORT", "9090")
		t.Setenv("STUDYSPACE_STORE", "memory")
		t.Setenv("STUDYSPACE_TIMEZONE", "Europe/Istanbul")
		t.Setenv("STUDYSPACE_MAX_RESERVATION_DURATION", "3h")
		t.Setenv("STUDYSPACE_DAY_WINDOW_START", "09:30")
		t.Setenv("STUDYSPACE_ADMISSION_RETRIES", "2")
		t.Setenv("STUDYSPACE_SWEEP_INTERVAL", "30s")
		t.Setenv("STUDYSPACE_RATE_LIMIT_RPS", "2.5")
		t.Setenv("STUDYSPACE_METRICS_STDOUT", "true")

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 9090 || cfg.Store != StoreMemory {
			t.Fatalf("unexpected port/store: %d %q", cfg.HTTPPort, cfg.Store)
		}
		if cfg.Location.String() != "Europe/Istanbul" {
			t.Fatalf("unexpected location %v", cfg.Location)
		}
		if cfg.SweepInterval != 30*time.Second || cfg.RateLimitRPS != 2.5 || !cfg.MetricsStdout {
			t.Fatalf("unexpected values: %+v", cfg)
		}

		policy := cfg.Policy()
		if policy.MaxDuration != 3*time.Hour || policy.AdmissionRetries != 2 {
			t.Fatalf("unexpected policy: %+v", policy)
		}
		if policy.DayWindow.Open != (scheduler.TimeOfDay{Hour: 9, Minute: 30}) || policy.DayWindow.Location != cfg.Location {
			t.Fatalf("unexpected day window: %+v", policy.DayWindow)
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STUDYSPACE_HTTP_PORT", "zero")
		t.Setenv("STUDYSPACE_STORE", "postgres")
		t.Setenv("STUDYSPACE_DAY_WINDOW_START", "23:00")

		_, err := Load("")
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "settings have invalid values: STUDYSPACE_HTTP_PORT, STUDYSPACE_STORE, STUDYSPACE_DAY_WINDOW_END"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("errors when the sqlite dsn is blank", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STUDYSPACE_SQLITE_DSN", " ")

		_, err := Load("")
		if err == nil {
			t.Fatalf("expected error when the DSN is missing")
		}
		if err.Error() != "required settings are missing: STUDYSPACE_SQLITE_DSN" {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})
}

func TestLoader_ConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "studyspace.yaml")
	content := "http_port: 7070\nstore: memory\nmax_score: 5\ncatalog_file: spaces.yaml\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("STUDYSPACE_HTTP_PORT", "6060")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.HTTPPort != 6060 {
		t.Fatalf("expected environment to win, got %d", cfg.HTTPPort)
	}
	if cfg.Store != StoreMemory || cfg.MaxScore != 5 || cfg.CatalogFile != "spaces.yaml" {
		t.Fatalf("file values not applied: %+v", cfg)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
