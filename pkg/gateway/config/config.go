package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AuthMode string

const (
	AuthModeRequired AuthMode = "required"
	AuthModeOptional AuthMode = "optional"
	AuthModeDisabled AuthMode = "disabled"
)

type EnrollmentBackend string

const (
	EnrollmentFile     EnrollmentBackend = "file"
	EnrollmentPostgres EnrollmentBackend = "postgres"
)

type PaymentBackend string

const (
	PaymentStripe PaymentBackend = "stripe"
	PaymentRelay  PaymentBackend = "relay"
)

type Config struct {
	Addr string

	AuthMode AuthMode
	APIKeys  map[string]struct{}

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Authorization policy. MinExecuteConfidence applies to the model's
	// overallConfidence on executeTransaction; confirmations below it
	// are accepted into state but cannot fire a payment.
	MinAmount            float64
	MaxAmount            float64
	MinExecuteConfidence float64

	// Media pacing. Video frames arriving faster than VideoThrottle are
	// dropped; audio accumulates for AudioBuffer before one forward.
	VideoThrottle time.Duration
	AudioBuffer   time.Duration

	// Frame budgets (bytes, enforced before decode work).
	MaxVideoFrameBytes  int64
	MaxAudioChunkBytes  int64
	MaxJSONMessageBytes int64

	// Live WebSocket pacing.
	WSPingInterval   time.Duration
	WSWriteTimeout   time.Duration
	WSReadTimeout    time.Duration
	HandshakeTimeout time.Duration
	MaxSessionTime   time.Duration

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration

	// Model peer.
	GeminiAPIKey string
	GeminiModel  string

	// Enrollment roster source.
	Enrollment     EnrollmentBackend
	EnrollmentPath string
	DatabaseURL    string

	// Payment executor.
	Payment      PaymentBackend
	StripeAPIKey string
	RelayBaseURL string
	RelayAPIKey  string
	Currency     string
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                 envOr("HANDPACT_ADDR", ":8080"),
		AuthMode:             AuthMode(envOr("HANDPACT_AUTH_MODE", string(AuthModeRequired))),
		APIKeys:              make(map[string]struct{}),
		CORSAllowedOrigins:   make(map[string]struct{}),
		MinAmount:            envFloat64Or("HANDPACT_MIN_AMOUNT", 0.01),
		MaxAmount:            envFloat64Or("HANDPACT_MAX_AMOUNT", 100.00),
		MinExecuteConfidence: envFloat64Or("HANDPACT_MIN_EXECUTE_CONFIDENCE", 0.70),
		VideoThrottle:        envDurationOr("HANDPACT_VIDEO_THROTTLE", time.Second),
		AudioBuffer:          envDurationOr("HANDPACT_AUDIO_BUFFER", 2*time.Second),
		MaxVideoFrameBytes:   envInt64Or("HANDPACT_MAX_VIDEO_FRAME_BYTES", 2<<20), // 2 MiB decoded
		MaxAudioChunkBytes:   envInt64Or("HANDPACT_MAX_AUDIO_CHUNK_BYTES", 256<<10),
		MaxJSONMessageBytes:  envInt64Or("HANDPACT_MAX_JSON_MESSAGE_BYTES", 4<<20),
		WSPingInterval:       envDurationOr("HANDPACT_WS_PING_INTERVAL", 20*time.Second),
		WSWriteTimeout:       envDurationOr("HANDPACT_WS_WRITE_TIMEOUT", 5*time.Second),
		WSReadTimeout:        envDurationOr("HANDPACT_WS_READ_TIMEOUT", 0),
		HandshakeTimeout:     envDurationOr("HANDPACT_HANDSHAKE_TIMEOUT", 5*time.Second),
		MaxSessionTime:       envDurationOr("HANDPACT_MAX_SESSION_TIME", 30*time.Minute),
		ReadHeaderTimeout:    envDurationOr("HANDPACT_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod:  envDurationOr("HANDPACT_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		GeminiAPIKey:         envOr("GEMINI_API_KEY", ""),
		GeminiModel:          envOr("HANDPACT_GEMINI_MODEL", ""),
		Enrollment:           EnrollmentBackend(envOr("HANDPACT_ENROLLMENT_BACKEND", string(EnrollmentFile))),
		EnrollmentPath:       envOr("HANDPACT_ENROLLMENT_PATH", "candidates.json"),
		DatabaseURL:          envOr("HANDPACT_DATABASE_URL", ""),
		Payment:              PaymentBackend(envOr("HANDPACT_PAYMENT_BACKEND", string(PaymentRelay))),
		StripeAPIKey:         envOr("STRIPE_API_KEY", ""),
		RelayBaseURL:         envOr("HANDPACT_RELAY_BASE_URL", ""),
		RelayAPIKey:          envOr("HANDPACT_RELAY_API_KEY", ""),
		Currency:             envOr("HANDPACT_CURRENCY", "usd"),
	}

	switch cfg.AuthMode {
	case AuthModeRequired, AuthModeOptional, AuthModeDisabled:
	default:
		return Config{}, fmt.Errorf("HANDPACT_AUTH_MODE must be one of required|optional|disabled")
	}

	for _, key := range splitCSV(os.Getenv("HANDPACT_API_KEYS")) {
		cfg.APIKeys[key] = struct{}{}
	}

	for _, origin := range splitCSV(os.Getenv("HANDPACT_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.AuthMode == AuthModeRequired && len(cfg.APIKeys) == 0 {
		return Config{}, fmt.Errorf("HANDPACT_API_KEYS must be set when HANDPACT_AUTH_MODE=required")
	}

	if cfg.MinAmount <= 0 {
		return Config{}, fmt.Errorf("HANDPACT_MIN_AMOUNT must be > 0")
	}
	if cfg.MaxAmount < cfg.MinAmount {
		return Config{}, fmt.Errorf("HANDPACT_MAX_AMOUNT must be >= HANDPACT_MIN_AMOUNT")
	}
	if cfg.MinExecuteConfidence < 0 || cfg.MinExecuteConfidence > 1 {
		return Config{}, fmt.Errorf("HANDPACT_MIN_EXECUTE_CONFIDENCE must be within [0, 1]")
	}
	if cfg.VideoThrottle < 0 {
		return Config{}, fmt.Errorf("HANDPACT_VIDEO_THROTTLE must be >= 0")
	}
	if cfg.AudioBuffer <= 0 {
		return Config{}, fmt.Errorf("HANDPACT_AUDIO_BUFFER must be > 0")
	}
	if cfg.MaxVideoFrameBytes <= 0 {
		return Config{}, fmt.Errorf("HANDPACT_MAX_VIDEO_FRAME_BYTES must be > 0")
	}
	if cfg.MaxAudioChunkBytes <= 0 {
		return Config{}, fmt.Errorf("HANDPACT_MAX_AUDIO_CHUNK_BYTES must be > 0")
	}
	if cfg.MaxJSONMessageBytes <= 0 {
		return Config{}, fmt.Errorf("HANDPACT_MAX_JSON_MESSAGE_BYTES must be > 0")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("HANDPACT_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("HANDPACT_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSReadTimeout < 0 {
		return Config{}, fmt.Errorf("HANDPACT_WS_READ_TIMEOUT must be >= 0")
	}
	if cfg.HandshakeTimeout <= 0 {
		return Config{}, fmt.Errorf("HANDPACT_HANDSHAKE_TIMEOUT must be > 0")
	}
	if cfg.MaxSessionTime <= 0 {
		return Config{}, fmt.Errorf("HANDPACT_MAX_SESSION_TIME must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("HANDPACT_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("HANDPACT_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	switch cfg.Enrollment {
	case EnrollmentFile:
		if strings.TrimSpace(cfg.EnrollmentPath) == "" {
			return Config{}, fmt.Errorf("HANDPACT_ENROLLMENT_PATH must be set when HANDPACT_ENROLLMENT_BACKEND=file")
		}
	case EnrollmentPostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return Config{}, fmt.Errorf("HANDPACT_DATABASE_URL must be set when HANDPACT_ENROLLMENT_BACKEND=postgres")
		}
	default:
		return Config{}, fmt.Errorf("HANDPACT_ENROLLMENT_BACKEND must be one of file|postgres")
	}

	switch cfg.Payment {
	case PaymentStripe:
		if strings.TrimSpace(cfg.StripeAPIKey) == "" {
			return Config{}, fmt.Errorf("STRIPE_API_KEY must be set when HANDPACT_PAYMENT_BACKEND=stripe")
		}
	case PaymentRelay:
		if strings.TrimSpace(cfg.RelayBaseURL) == "" {
			return Config{}, fmt.Errorf("HANDPACT_RELAY_BASE_URL must be set when HANDPACT_PAYMENT_BACKEND=relay")
		}
	default:
		return Config{}, fmt.Errorf("HANDPACT_PAYMENT_BACKEND must be one of stripe|relay")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
