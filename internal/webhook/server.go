// Package webhook exposes the fulfillment endpoint the dialog platform
// calls once per conversational turn.
package webhook

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/voxsurf/voxsurf/api/schemas"
	"github.com/voxsurf/voxsurf/internal/arbiter"
	"github.com/voxsurf/voxsurf/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server is the webhook HTTP surface.
type Server struct {
	arbiter    *arbiter.Arbiter
	cfg        config.ServerConfig
	logger     *zap.Logger
	httpServer *http.Server
}

// NewServer wires the arbiter behind the HTTP routes.
func NewServer(arb *arbiter.Arbiter, cfg config.ServerConfig, logger *zap.Logger) *Server {
	s := &Server{
		arbiter: arb,
		cfg:     cfg,
		logger:  logger.Named("webhook"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Post("/v1/webhook", s.handleWebhook)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Webhook server starting", zap.String("addr", s.cfg.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down webhook server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleWebhook decodes one fulfillment request, arbitrates it, and writes
// the resulting envelope. The arbiter guarantees a response well inside the
// platform's cutoff, so no extra timeout is layered here.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req schemas.WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("Malformed webhook request", zap.Error(err))
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if req.Session == "" {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}

	turn := schemas.TurnFromRequest(&req)
	s.logger.Info("Turn received",
		zap.String("session", turn.Session),
		zap.String("action", turn.Action),
		zap.Bool("continuation", turn.IsContinuation()))

	resp := s.arbiter.Handle(r.Context(), turn)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
