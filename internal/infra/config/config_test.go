package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		prev, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, prev)
			} else {
				os.Unsetenv(k)
			}
		})
	}
}

func TestLoadConfigRequiresURLAndIdentifier(t *testing.T) {
	clearEnv(t, "WS_URL", "WS_IDENTIFIER")

	if _, err := loadConfig(".env.does-not-exist"); err == nil {
		t.Fatal("expected error when WS_URL is unset")
	}

	os.Setenv("WS_URL", "ws://example.test/ws")
	if _, err := loadConfig(".env.does-not-exist"); err == nil {
		t.Fatal("expected error when WS_IDENTIFIER is unset")
	}
}

func TestMonitorIdentifierTriState(t *testing.T) {
	clearEnv(t, "WS_URL", "WS_IDENTIFIER", "WS_MONITOR_IDENTIFIER")
	os.Setenv("WS_URL", "ws://example.test/ws")
	os.Setenv("WS_IDENTIFIER", "c-1")

	t.Run("unset defaults to monitor", func(t *testing.T) {
		os.Unsetenv("WS_MONITOR_IDENTIFIER")
		cfg, err := loadConfig(".env.does-not-exist")
		if err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if cfg.Env.MonitorIdentifier != "monitor" {
			t.Errorf("MonitorIdentifier = %q, want monitor", cfg.Env.MonitorIdentifier)
		}
	})

	t.Run("explicit empty disables", func(t *testing.T) {
		os.Setenv("WS_MONITOR_IDENTIFIER", "")
		cfg, err := loadConfig(".env.does-not-exist")
		if err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if cfg.Env.MonitorIdentifier != "" {
			t.Errorf("MonitorIdentifier = %q, want empty", cfg.Env.MonitorIdentifier)
		}
	})

	t.Run("explicit value is used", func(t *testing.T) {
		os.Setenv("WS_MONITOR_IDENTIFIER", "mon-2")
		cfg, err := loadConfig(".env.does-not-exist")
		if err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if cfg.Env.MonitorIdentifier != "mon-2" {
			t.Errorf("MonitorIdentifier = %q, want mon-2", cfg.Env.MonitorIdentifier)
		}
	})
}

func TestDefaultsAndWarnings(t *testing.T) {
	clearEnv(t, "WS_URL", "WS_IDENTIFIER", "QUEUE_OVERFLOW_POLICY", "RETRY_LIMIT", "LOG_LEVEL")
	os.Setenv("WS_URL", "ws://example.test/ws")
	os.Setenv("WS_IDENTIFIER", "c-1")
	os.Setenv("QUEUE_OVERFLOW_POLICY", "not-a-policy")
	os.Setenv("RETRY_LIMIT", "not-a-number")
	os.Setenv("LOG_LEVEL", "verbose")

	cfg, err := loadConfig(".env.does-not-exist")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Env.OverflowPolicy != DropOldest {
		t.Errorf("OverflowPolicy = %v, want DropOldest (default)", cfg.Env.OverflowPolicy)
	}
	if cfg.Env.RetryLimit != defaultRetryLimit {
		t.Errorf("RetryLimit = %d, want default %d", cfg.Env.RetryLimit, defaultRetryLimit)
	}
	if cfg.Env.LogLevel != defaultLogLevel {
		t.Errorf("LogLevel = %q, want default %q", cfg.Env.LogLevel, defaultLogLevel)
	}
	if len(cfg.warnings) != 3 {
		t.Errorf("warnings = %d, want 3, got %v", len(cfg.warnings), cfg.warnings)
	}
}

func TestTuningConstants(t *testing.T) {
	clearEnv(t, "WS_URL", "WS_IDENTIFIER")
	os.Setenv("WS_URL", "ws://example.test/ws")
	os.Setenv("WS_IDENTIFIER", "c-1")

	cfg, err := loadConfig(".env.does-not-exist")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Env.ConnectionTimeout != 30*time.Second {
		t.Errorf("ConnectionTimeout = %v, want 30s", cfg.Env.ConnectionTimeout)
	}
	if cfg.Env.RetryInitialDelay != 5*time.Second {
		t.Errorf("RetryInitialDelay = %v, want 5s", cfg.Env.RetryInitialDelay)
	}
	if cfg.Env.RetryMaxDelay != 15*time.Second {
		t.Errorf("RetryMaxDelay = %v, want 15s", cfg.Env.RetryMaxDelay)
	}
	if cfg.Env.QueueCapacity != 15000 {
		t.Errorf("QueueCapacity = %d, want 15000", cfg.Env.QueueCapacity)
	}
	if want := int(0.9 * 15000); cfg.Env.QueuePressureThreshold != want {
		t.Errorf("QueuePressureThreshold = %d, want %d", cfg.Env.QueuePressureThreshold, want)
	}
}
