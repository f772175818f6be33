package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/handpact/handpact/pkg/core"
	"github.com/handpact/handpact/pkg/core/authz"
	"github.com/handpact/handpact/pkg/core/model"
	"github.com/handpact/handpact/pkg/core/payment"
	"github.com/handpact/handpact/pkg/enroll"
	"github.com/handpact/handpact/pkg/gateway/config"
	"github.com/handpact/handpact/pkg/gateway/lifecycle"
	"github.com/handpact/handpact/pkg/gateway/live/protocol"
	"github.com/handpact/handpact/pkg/gateway/live/session"
	"github.com/handpact/handpact/pkg/gateway/live/sessions"
)

// SessionHandler handles /v1/session websocket upgrades. Authentication
// and request IDs are applied by the middleware chain before the upgrade;
// everything after the handshake speaks the session protocol.
type SessionHandler struct {
	Config    config.Config
	Logger    *slog.Logger
	Lifecycle *lifecycle.Lifecycle
	Sessions  *sessions.Tracker
	Dialer    model.Dialer
	Store     enroll.Store
	Executor  payment.Executor
}

func (h SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		reqID := requestIDFromContext(r.Context())
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrInvalidRequest, Message: "method not allowed", Code: "method_not_allowed"}, http.StatusMethodNotAllowed)
		return
	}
	if h.Lifecycle != nil && h.Lifecycle.IsDraining() {
		reqID := requestIDFromContext(r.Context())
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrOverloaded, Message: "gateway is draining", Code: "draining"}, 529)
		return
	}
	if !h.originAllowed(r) {
		reqID := requestIDFromContext(r.Context())
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrPermission, Message: "origin is not allowed", Param: "Origin"}, http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		// Origin was already checked above against the configured allowlist.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if h.Config.MaxJSONMessageBytes > 0 {
		conn.SetReadLimit(h.Config.MaxJSONMessageBytes)
	}

	handshakeTimeout := h.Config.HandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = 5 * time.Second
	}
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	messageType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		h.writeWSError(conn, "bad_request", "failed to read hello", true)
		return
	}
	if messageType != websocket.TextMessage {
		h.writeWSError(conn, "bad_request", "first frame must be hello", true)
		return
	}

	decoded, err := protocol.DecodeClientMessage(firstFrame)
	if err != nil {
		h.writeWSError(conn, "bad_request", "invalid hello frame", true)
		return
	}
	hello, ok := decoded.(protocol.ClientHello)
	if !ok {
		h.writeWSError(conn, "bad_request", "first frame must be hello", true)
		return
	}
	if err := protocol.ValidateHello(hello); err != nil {
		var de *protocol.DecodeError
		if errors.As(err, &de) {
			h.writeWSError(conn, de.Code, de.Message, true)
		} else {
			h.writeWSError(conn, "bad_request", "invalid hello", true)
		}
		return
	}

	roster, err := h.loadRoster(r)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("loading enrollment roster failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		}
		h.writeWSError(conn, "internal", "failed to load enrollment roster", true)
		return
	}

	peer, err := h.Dialer.Dial(r.Context(), roster)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("dialing model peer failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		}
		h.writeWSError(conn, "model_peer_error", "failed to connect to model peer", true)
		return
	}

	sessionID := "s_" + randHex(8)
	ack := protocol.ServerHelloAck{
		Type:            "hello_ack",
		ProtocolVersion: protocol.ProtocolVersion1,
		SessionID:       sessionID,
		Candidates:      len(roster),
		Limits: protocol.HelloAckLimits{
			MinAmount:           h.Config.MinAmount,
			MaxAmount:           h.Config.MaxAmount,
			VideoThrottleMS:     int(h.Config.VideoThrottle / time.Millisecond),
			AudioBufferMS:       int(h.Config.AudioBuffer / time.Millisecond),
			MaxVideoFrameBytes:  h.Config.MaxVideoFrameBytes,
			MaxAudioChunkBytes:  h.Config.MaxAudioChunkBytes,
			MaxJSONMessageBytes: h.Config.MaxJSONMessageBytes,
		},
	}
	if err := conn.WriteJSON(ack); err != nil {
		_ = peer.Close()
		return
	}
	startAt := time.Now()
	_ = conn.SetReadDeadline(time.Time{})

	gate := payment.NewGate(h.Executor, h.Config.MinAmount, h.Config.MaxAmount, h.Logger)

	s, err := session.New(session.Dependencies{
		Conn:       conn,
		Logger:     h.Logger,
		Peer:       peer,
		Gate:       gate,
		Candidates: roster,
		SessionID:  sessionID,
		RequestID:  requestIDFromContext(r.Context()),
		StartTime:  startAt,
		Config: session.Config{
			Policy: authz.Policy{
				MinAmount:            h.Config.MinAmount,
				MaxAmount:            h.Config.MaxAmount,
				MinExecuteConfidence: h.Config.MinExecuteConfidence,
			},
			VideoThrottle:       h.Config.VideoThrottle,
			AudioBuffer:         h.Config.AudioBuffer,
			MaxVideoFrameBytes:  h.Config.MaxVideoFrameBytes,
			MaxAudioChunkBytes:  h.Config.MaxAudioChunkBytes,
			MaxJSONMessageBytes: h.Config.MaxJSONMessageBytes,
			PingInterval:        h.Config.WSPingInterval,
			WriteTimeout:        h.Config.WSWriteTimeout,
			ReadTimeout:         h.Config.WSReadTimeout,
			MaxSessionDuration:  h.Config.MaxSessionTime,
			OutboundQueueSize:   128,
		},
	})
	if err != nil {
		_ = peer.Close()
		h.writeWSError(conn, "internal", "failed to initialize session", true)
		return
	}

	unregister := func() {}
	if h.Sessions != nil {
		unregister = h.Sessions.Register(sessionID, sessions.Handle{
			Cancel: s.Cancel,
			Warn:   s.SendWarning,
		})
	}
	defer unregister()

	if err := s.Run(); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("session ended with error", "session_id", sessionID, "request_id", requestIDFromContext(r.Context()), "error", err)
		}
	}
}

func (h SessionHandler) loadRoster(r *http.Request) ([]enroll.Candidate, error) {
	if h.Store == nil {
		return nil, nil
	}
	return h.Store.List(r.Context())
}

func (h SessionHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if len(h.Config.CORSAllowedOrigins) == 0 {
		return false
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}

func (h SessionHandler) writeWSError(conn *websocket.Conn, code, message string, close bool) {
	_ = conn.WriteJSON(protocol.ServerError{Type: "error", Code: code, Message: message, Close: close})
	if close {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message), time.Now().Add(2*time.Second))
	}
}
