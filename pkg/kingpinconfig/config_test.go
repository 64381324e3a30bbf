package kingpinconfig

import (
	"os"
	"testing"
	"time"
)

func TestFromEnvironDefaults(t *testing.T) {
	os.Unsetenv("DEFAULT_TIMEOUT")
	os.Unsetenv("SKIP_DRY")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := FromEnviron()
	if err != nil {
		t.Fatalf("FromEnviron: %v", err)
	}
	if cfg.DefaultTimeout != 3600*time.Second {
		t.Fatalf("got default timeout %v", cfg.DefaultTimeout)
	}
	if cfg.SkipDry {
		t.Fatal("expected SkipDry false by default")
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("got log level %q", cfg.LogLevel)
	}
}

func TestFromEnvironOverrides(t *testing.T) {
	t.Setenv("DEFAULT_TIMEOUT", "12.5")
	t.Setenv("SKIP_DRY", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := FromEnviron()
	if err != nil {
		t.Fatalf("FromEnviron: %v", err)
	}
	if cfg.DefaultTimeout != time.Duration(12.5*float64(time.Second)) {
		t.Fatalf("got default timeout %v", cfg.DefaultTimeout)
	}
	if !cfg.SkipDry {
		t.Fatal("expected SkipDry true")
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("got log level %q", cfg.LogLevel)
	}
}

func TestFromEnvironRejectsBadLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")
	if _, err := FromEnviron(); err == nil {
		t.Fatal("expected validation error for unknown log level")
	}
}

func TestFromEnvironRejectsBadTimeout(t *testing.T) {
	t.Setenv("DEFAULT_TIMEOUT", "not-a-number")
	if _, err := FromEnviron(); err == nil {
		t.Fatal("expected parse error for malformed DEFAULT_TIMEOUT")
	}
}
