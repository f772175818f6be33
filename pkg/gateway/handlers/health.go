package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/handpact/handpact/pkg/gateway/config"
	"github.com/handpact/handpact/pkg/gateway/lifecycle"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK       bool     `json:"ok"`
		AuthMode string   `json:"auth_mode"`
		Draining bool     `json:"draining"`
		Payment  string   `json:"payment_backend"`
		Issues   []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	switch h.Config.AuthMode {
	case config.AuthModeRequired, config.AuthModeOptional, config.AuthModeDisabled:
	default:
		issues = append(issues, "invalid auth_mode")
	}
	if h.Config.AuthMode == config.AuthModeRequired && len(h.Config.APIKeys) == 0 {
		issues = append(issues, "auth_mode=required but no api keys configured")
	}

	if h.Config.MinAmount <= 0 || h.Config.MaxAmount < h.Config.MinAmount {
		issues = append(issues, "payment bounds must satisfy 0 < min <= max")
	}
	if h.Config.MinExecuteConfidence < 0 || h.Config.MinExecuteConfidence > 1 {
		issues = append(issues, "min execute confidence must be within [0, 1]")
	}
	if h.Config.AudioBuffer <= 0 {
		issues = append(issues, "audio buffer must be > 0")
	}
	if h.Config.MaxVideoFrameBytes <= 0 || h.Config.MaxAudioChunkBytes <= 0 || h.Config.MaxJSONMessageBytes <= 0 {
		issues = append(issues, "frame size limits must be > 0")
	}
	if h.Config.MaxSessionTime <= 0 {
		issues = append(issues, "max session time must be > 0")
	}
	if h.Config.HandshakeTimeout <= 0 || h.Config.ReadHeaderTimeout <= 0 {
		issues = append(issues, "timeouts must be > 0")
	}
	if h.Config.GeminiAPIKey == "" {
		issues = append(issues, "gemini api key is not configured")
	}

	draining := h.Lifecycle != nil && h.Lifecycle.IsDraining()

	ok := len(issues) == 0 && !draining
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:       ok,
		AuthMode: string(h.Config.AuthMode),
		Draining: draining,
		Payment:  string(h.Config.Payment),
		Issues:   issues,
	})
}
