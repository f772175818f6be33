// Package server assembles the gateway: routes, middleware, and the
// shared session tracker used for coordinated drain on shutdown.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/handpact/handpact/pkg/core/model"
	"github.com/handpact/handpact/pkg/core/payment"
	"github.com/handpact/handpact/pkg/enroll"
	"github.com/handpact/handpact/pkg/gateway/config"
	"github.com/handpact/handpact/pkg/gateway/handlers"
	"github.com/handpact/handpact/pkg/gateway/lifecycle"
	"github.com/handpact/handpact/pkg/gateway/live/sessions"
	"github.com/handpact/handpact/pkg/gateway/mw"
)

// Dependencies carries the pluggable backends. Nil fields fall back to
// config-driven defaults in New.
type Dependencies struct {
	Dialer   model.Dialer
	Store    enroll.Store
	Executor payment.Executor
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	lifecycle *lifecycle.Lifecycle
	sessions  *sessions.Tracker

	dialer   model.Dialer
	store    enroll.Store
	executor payment.Executor
}

func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	return NewWithDependencies(cfg, logger, Dependencies{})
}

func NewWithDependencies(cfg config.Config, logger *slog.Logger, deps Dependencies) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		mux:       http.NewServeMux(),
		lifecycle: &lifecycle.Lifecycle{},
		sessions:  sessions.NewTracker(),
		dialer:    deps.Dialer,
		store:     deps.Store,
		executor:  deps.Executor,
	}

	if s.dialer == nil {
		dialer, err := model.NewGeminiDialer(model.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		}, logger)
		if err != nil {
			return nil, err
		}
		s.dialer = dialer
	}
	if s.store == nil {
		store, err := newEnrollmentStore(cfg)
		if err != nil {
			return nil, err
		}
		s.store = store
	}
	if s.executor == nil {
		executor, err := newPaymentExecutor(cfg)
		if err != nil {
			return nil, err
		}
		s.executor = executor
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg, Lifecycle: s.lifecycle})

	s.mux.Handle("/v1/session", handlers.SessionHandler{
		Config:    s.cfg,
		Logger:    s.logger,
		Lifecycle: s.lifecycle,
		Sessions:  s.sessions,
		Dialer:    s.dialer,
		Store:     s.store,
		Executor:  s.executor,
	})
	s.mux.Handle("/v1/candidates", handlers.CandidatesHandler{
		Store:  s.store,
		Logger: s.logger,
	})

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Auth(s.cfg, h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// SetDraining flips the gateway into drain mode: readiness fails and new
// session upgrades are refused while established sessions keep running.
func (s *Server) SetDraining() {
	s.lifecycle.SetDraining(true)
}

// WarnLiveSessionsDraining tells every active session the gateway is
// shutting down so clients can wrap up.
func (s *Server) WarnLiveSessionsDraining() {
	s.sessions.WarnAll("draining", "gateway is shutting down")
}

// WaitLiveSessions blocks until all sessions finish or ctx expires.
func (s *Server) WaitLiveSessions(ctx context.Context) bool {
	return s.sessions.Wait(ctx)
}

// CancelLiveSessions force-closes any sessions still running.
func (s *Server) CancelLiveSessions() {
	s.sessions.CancelAll()
}

// ActiveSessions reports how many live sessions are registered.
func (s *Server) ActiveSessions() int {
	return s.sessions.Count()
}
