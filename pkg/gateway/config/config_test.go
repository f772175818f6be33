package config

import (
	"strings"
	"testing"
	"time"
)

var gatewayEnvKeys = []string{
	"HANDPACT_ADDR",
	"HANDPACT_AUTH_MODE",
	"HANDPACT_API_KEYS",
	"HANDPACT_CORS_ORIGINS",
	"HANDPACT_MIN_AMOUNT",
	"HANDPACT_MAX_AMOUNT",
	"HANDPACT_MIN_EXECUTE_CONFIDENCE",
	"HANDPACT_VIDEO_THROTTLE",
	"HANDPACT_AUDIO_BUFFER",
	"HANDPACT_MAX_VIDEO_FRAME_BYTES",
	"HANDPACT_MAX_AUDIO_CHUNK_BYTES",
	"HANDPACT_MAX_JSON_MESSAGE_BYTES",
	"HANDPACT_WS_PING_INTERVAL",
	"HANDPACT_WS_WRITE_TIMEOUT",
	"HANDPACT_WS_READ_TIMEOUT",
	"HANDPACT_HANDSHAKE_TIMEOUT",
	"HANDPACT_MAX_SESSION_TIME",
	"HANDPACT_READ_HEADER_TIMEOUT",
	"HANDPACT_SHUTDOWN_GRACE_PERIOD",
	"GEMINI_API_KEY",
	"HANDPACT_GEMINI_MODEL",
	"HANDPACT_ENROLLMENT_BACKEND",
	"HANDPACT_ENROLLMENT_PATH",
	"HANDPACT_DATABASE_URL",
	"HANDPACT_PAYMENT_BACKEND",
	"STRIPE_API_KEY",
	"HANDPACT_RELAY_BASE_URL",
	"HANDPACT_RELAY_API_KEY",
	"HANDPACT_CURRENCY",
}

func clearGatewayEnv(t *testing.T) {
	t.Helper()
	for _, key := range gatewayEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("HANDPACT_API_KEYS", "hp_sk_test")
	t.Setenv("HANDPACT_RELAY_BASE_URL", "https://relay.example")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.AuthMode != AuthModeRequired {
		t.Fatalf("AuthMode = %q, want %q", cfg.AuthMode, AuthModeRequired)
	}
	if cfg.MinAmount != 0.01 {
		t.Fatalf("MinAmount = %v, want 0.01", cfg.MinAmount)
	}
	if cfg.MaxAmount != 100.00 {
		t.Fatalf("MaxAmount = %v, want 100.00", cfg.MaxAmount)
	}
	if cfg.MinExecuteConfidence != 0.70 {
		t.Fatalf("MinExecuteConfidence = %v, want 0.70", cfg.MinExecuteConfidence)
	}
	if cfg.VideoThrottle != time.Second {
		t.Fatalf("VideoThrottle = %v, want 1s", cfg.VideoThrottle)
	}
	if cfg.AudioBuffer != 2*time.Second {
		t.Fatalf("AudioBuffer = %v, want 2s", cfg.AudioBuffer)
	}
	if cfg.MaxVideoFrameBytes != 2<<20 {
		t.Fatalf("MaxVideoFrameBytes = %d, want %d", cfg.MaxVideoFrameBytes, int64(2<<20))
	}
	if cfg.MaxAudioChunkBytes != 256<<10 {
		t.Fatalf("MaxAudioChunkBytes = %d, want %d", cfg.MaxAudioChunkBytes, int64(256<<10))
	}
	if cfg.WSPingInterval != 20*time.Second {
		t.Fatalf("WSPingInterval = %v, want 20s", cfg.WSPingInterval)
	}
	if cfg.WSWriteTimeout != 5*time.Second {
		t.Fatalf("WSWriteTimeout = %v, want 5s", cfg.WSWriteTimeout)
	}
	if cfg.WSReadTimeout != 0 {
		t.Fatalf("WSReadTimeout = %v, want 0", cfg.WSReadTimeout)
	}
	if cfg.HandshakeTimeout != 5*time.Second {
		t.Fatalf("HandshakeTimeout = %v, want 5s", cfg.HandshakeTimeout)
	}
	if cfg.MaxSessionTime != 30*time.Minute {
		t.Fatalf("MaxSessionTime = %v, want 30m", cfg.MaxSessionTime)
	}
	if cfg.ShutdownGracePeriod != 30*time.Second {
		t.Fatalf("ShutdownGracePeriod = %v, want 30s", cfg.ShutdownGracePeriod)
	}
	if cfg.Enrollment != EnrollmentFile {
		t.Fatalf("Enrollment = %q, want file", cfg.Enrollment)
	}
	if cfg.EnrollmentPath != "candidates.json" {
		t.Fatalf("EnrollmentPath = %q, want candidates.json", cfg.EnrollmentPath)
	}
	if cfg.Payment != PaymentRelay {
		t.Fatalf("Payment = %q, want relay", cfg.Payment)
	}
	if cfg.Currency != "usd" {
		t.Fatalf("Currency = %q, want usd", cfg.Currency)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("HANDPACT_ADDR", ":9090")
	t.Setenv("HANDPACT_AUTH_MODE", "optional")
	t.Setenv("HANDPACT_API_KEYS", "k1,k2")
	t.Setenv("HANDPACT_CORS_ORIGINS", "https://a.example, https://b.example,,")
	t.Setenv("HANDPACT_MIN_AMOUNT", "0.50")
	t.Setenv("HANDPACT_MAX_AMOUNT", "250")
	t.Setenv("HANDPACT_MIN_EXECUTE_CONFIDENCE", "0.85")
	t.Setenv("HANDPACT_VIDEO_THROTTLE", "500ms")
	t.Setenv("HANDPACT_AUDIO_BUFFER", "3s")
	t.Setenv("HANDPACT_WS_PING_INTERVAL", "9s")
	t.Setenv("HANDPACT_WS_WRITE_TIMEOUT", "3s")
	t.Setenv("HANDPACT_WS_READ_TIMEOUT", "4s")
	t.Setenv("HANDPACT_HANDSHAKE_TIMEOUT", "6s")
	t.Setenv("HANDPACT_ENROLLMENT_BACKEND", "postgres")
	t.Setenv("HANDPACT_DATABASE_URL", "postgres://localhost/handpact")
	t.Setenv("HANDPACT_PAYMENT_BACKEND", "stripe")
	t.Setenv("STRIPE_API_KEY", "sk_test_x")
	t.Setenv("HANDPACT_GEMINI_MODEL", "gemini-test-model")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Addr != ":9090" || cfg.AuthMode != AuthModeOptional {
		t.Fatalf("Addr/AuthMode = %q/%q", cfg.Addr, cfg.AuthMode)
	}
	if cfg.MinAmount != 0.50 || cfg.MaxAmount != 250 || cfg.MinExecuteConfidence != 0.85 {
		t.Fatalf("policy mismatch: %v/%v/%v", cfg.MinAmount, cfg.MaxAmount, cfg.MinExecuteConfidence)
	}
	if cfg.VideoThrottle != 500*time.Millisecond || cfg.AudioBuffer != 3*time.Second {
		t.Fatalf("pacing mismatch: %v/%v", cfg.VideoThrottle, cfg.AudioBuffer)
	}
	if cfg.WSPingInterval != 9*time.Second || cfg.WSWriteTimeout != 3*time.Second || cfg.WSReadTimeout != 4*time.Second || cfg.HandshakeTimeout != 6*time.Second {
		t.Fatalf("ws timeout mismatch: %v/%v/%v/%v", cfg.WSPingInterval, cfg.WSWriteTimeout, cfg.WSReadTimeout, cfg.HandshakeTimeout)
	}
	if len(cfg.APIKeys) != 2 {
		t.Fatalf("APIKeys len=%d, want 2", len(cfg.APIKeys))
	}
	if _, ok := cfg.APIKeys["k1"]; !ok {
		t.Fatalf("expected API key k1")
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("CORSAllowedOrigins len=%d, want 2", len(cfg.CORSAllowedOrigins))
	}
	if _, ok := cfg.CORSAllowedOrigins["https://b.example"]; !ok {
		t.Fatalf("missing https://b.example")
	}
	if cfg.Enrollment != EnrollmentPostgres || cfg.DatabaseURL != "postgres://localhost/handpact" {
		t.Fatalf("enrollment mismatch: %q/%q", cfg.Enrollment, cfg.DatabaseURL)
	}
	if cfg.Payment != PaymentStripe || cfg.StripeAPIKey != "sk_test_x" {
		t.Fatalf("payment mismatch: %q/%q", cfg.Payment, cfg.StripeAPIKey)
	}
	if cfg.GeminiModel != "gemini-test-model" {
		t.Fatalf("GeminiModel = %q", cfg.GeminiModel)
	}
}

func TestLoadFromEnv_RequiredAuthNeedsAPIKeys(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("HANDPACT_AUTH_MODE", "required")
	t.Setenv("HANDPACT_RELAY_BASE_URL", "https://relay.example")

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "HANDPACT_API_KEYS") {
		t.Fatalf("error = %v, expected HANDPACT_API_KEYS in message", err)
	}
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	cases := []struct {
		name      string
		env       map[string]string
		errSubstr string
	}{
		{
			name: "invalid auth mode",
			env: map[string]string{
				"HANDPACT_AUTH_MODE": "maybe",
			},
			errSubstr: "HANDPACT_AUTH_MODE",
		},
		{
			name: "max below min",
			env: map[string]string{
				"HANDPACT_MIN_AMOUNT": "50",
				"HANDPACT_MAX_AMOUNT": "10",
			},
			errSubstr: "HANDPACT_MAX_AMOUNT",
		},
		{
			name: "confidence above one",
			env: map[string]string{
				"HANDPACT_MIN_EXECUTE_CONFIDENCE": "1.5",
			},
			errSubstr: "HANDPACT_MIN_EXECUTE_CONFIDENCE",
		},
		{
			name: "zero audio buffer",
			env: map[string]string{
				"HANDPACT_AUDIO_BUFFER": "0s",
			},
			errSubstr: "HANDPACT_AUDIO_BUFFER",
		},
		{
			name: "zero shutdown grace period",
			env: map[string]string{
				"HANDPACT_SHUTDOWN_GRACE_PERIOD": "0s",
			},
			errSubstr: "HANDPACT_SHUTDOWN_GRACE_PERIOD",
		},
		{
			name: "postgres without database url",
			env: map[string]string{
				"HANDPACT_ENROLLMENT_BACKEND": "postgres",
			},
			errSubstr: "HANDPACT_DATABASE_URL",
		},
		{
			name: "stripe without api key",
			env: map[string]string{
				"HANDPACT_PAYMENT_BACKEND": "stripe",
			},
			errSubstr: "STRIPE_API_KEY",
		},
		{
			name:      "relay without base url",
			env:       map[string]string{},
			errSubstr: "HANDPACT_RELAY_BASE_URL",
		},
		{
			name: "unknown payment backend",
			env: map[string]string{
				"HANDPACT_PAYMENT_BACKEND": "cash",
			},
			errSubstr: "HANDPACT_PAYMENT_BACKEND",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearGatewayEnv(t)
			t.Setenv("HANDPACT_AUTH_MODE", "optional")
			for key, value := range tc.env {
				t.Setenv(key, value)
			}
			_, err := LoadFromEnv()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.errSubstr) {
				t.Fatalf("error = %v, expected substring %q", err, tc.errSubstr)
			}
		})
	}
}
