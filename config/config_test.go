package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, name := range []string{"PORT", "SERVER_TYPE", "FLOW", "MAX_ATTEMPTS", "STORE_TYPE", "SESSION_TIMEOUT", "GEMINI_API_KEY", "LOG_LEVEL"} {
		t.Setenv(name, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != 8080 || cfg.ServerType != "api" || cfg.Flow != "roofing" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MaxAttempts != 3 || cfg.StoreType != "memory" || cfg.SessionTimeout != 30*time.Minute {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.GeminiAPIKey != "" {
		t.Fatalf("gemini key should be optional")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SERVER_TYPE", "both")
	t.Setenv("FLOW", "plumbing")
	t.Setenv("MAX_ATTEMPTS", "0")
	t.Setenv("STORE_TYPE", "redis")
	t.Setenv("SESSION_TIMEOUT", "5")
	t.Setenv("REPHRASE_TIMEOUT", "250")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("SIGNALWIRE_PROJECT_ID", "p")
	t.Setenv("SIGNALWIRE_TOKEN", "t")
	t.Setenv("SIGNALWIRE_SPACE", "demo.signalwire.com")
	t.Setenv("SIGNALWIRE_FROM", "+15550001111")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != 9000 || cfg.ServerType != "both" || cfg.Flow != "plumbing" || cfg.StoreType != "redis" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.MaxAttempts != 0 {
		t.Fatalf("MAX_ATTEMPTS=0 should disable escalation, got %d", cfg.MaxAttempts)
	}
	if cfg.SessionTimeout != 5*time.Minute || cfg.RephraseTimeout != 250*time.Millisecond {
		t.Fatalf("durations not applied: %v %v", cfg.SessionTimeout, cfg.RephraseTimeout)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
	if !cfg.SMSEnabled() {
		t.Fatalf("SMS should be enabled with all credentials set")
	}
}

func TestLoadConfigRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"PORT":         "eighty",
		"SERVER_TYPE":  "websocket",
		"STORE_TYPE":   "postgres",
		"MAX_ATTEMPTS": "-1",
		"LOG_FORMAT":   "xml",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, value)
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("%s=%q should be rejected", name, value)
			}
		})
	}
}
