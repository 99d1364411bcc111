package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/room4-2/callintake/config"
	"github.com/room4-2/callintake/engine"
	"github.com/room4-2/callintake/messages"
	"go.uber.org/zap"
)

const maxBodyBytes = 16 * 1024

// APIServer exposes the intake engine over JSON HTTP and a websocket text channel.
type APIServer struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader
	engine     *engine.Engine
	config     *config.Config
	logger     *zap.Logger
}

func NewAPIServer(cfg *config.Config, eng *engine.Engine, logger *zap.Logger) *APIServer {
	s := &APIServer{
		engine: eng,
		config: cfg,
		logger: logger.Named("api"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Check allowed origins
				origin := r.Header.Get("Origin")
				for _, allowed := range cfg.AllowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: it would cut long-lived websocket connections.
	}

	return s
}

// Handler returns the routed HTTP handler.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/calls", s.handleStartCall)
	mux.HandleFunc("POST /v1/calls/{id}/input", s.handleSubmitInput)
	mux.HandleFunc("POST /v1/calls/{id}/restart", s.handleRestartCall)
	mux.HandleFunc("DELETE /v1/calls/{id}", s.handleEndCall)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Start begins listening for connections
func (s *APIServer) Start() error {
	s.logger.Info("🚀 API server starting", zap.String("addr", s.httpServer.Addr))
	s.logger.Info("📡 WebSocket endpoint", zap.String("url", fmt.Sprintf("ws://localhost:%d/ws", s.config.Port)))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.logger.Info("🛑 Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}

func (s *APIServer) handleStartCall(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.StartCall(r.Context())
	if err != nil {
		writeEngineError(w, s.logger, "", err)
		return
	}
	writeJSON(w, http.StatusCreated, messages.NewStartCallResponse(res))
}

func (s *APIServer) handleSubmitInput(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("id")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, messages.ErrCodeInvalidMessage, "request body too large or unreadable")
		return
	}
	var req messages.SubmitInputRequest
	if err := sonic.Unmarshal(body, &req); err != nil || req.Utterance == nil {
		writeError(w, http.StatusBadRequest, messages.ErrCodeInvalidMessage, `body must be {"utterance": "..."}`)
		return
	}

	res, err := s.engine.SubmitInput(r.Context(), callID, *req.Utterance)
	if err != nil {
		writeEngineError(w, s.logger, callID, err)
		return
	}
	writeJSON(w, http.StatusOK, messages.NewTurnResponse(res))
}

func (s *APIServer) handleRestartCall(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("id")
	res, err := s.engine.RestartCall(r.Context(), callID)
	if err != nil {
		writeEngineError(w, s.logger, callID, err)
		return
	}
	writeJSON(w, http.StatusOK, messages.NewStartCallResponse(res))
}

func (s *APIServer) handleEndCall(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("id")
	res, err := s.engine.EndCall(r.Context(), callID)
	if err != nil {
		writeEngineError(w, s.logger, callID, err)
		return
	}
	writeJSON(w, http.StatusOK, messages.NewEndCallResponse(res))
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse(r.Context(), s.engine))
}

func healthResponse(ctx context.Context, eng *engine.Engine) messages.HealthResponse {
	stats := eng.Stats()
	return messages.HealthResponse{
		Status:              "ok",
		Sessions:            eng.ActiveCalls(ctx),
		IntegrationFailures: stats.IntegrationFailures,
		Stats:               stats,
	}
}

func (s *APIServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Upgrade HTTP to WebSocket
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := newCallConn(conn, s.engine, s.config.KeepAlivePeriod, s.logger)
	if err := c.run(context.WithoutCancel(r.Context())); err != nil && !errors.Is(err, errConnDone) {
		s.logger.Debug("🔌 WebSocket closed", zap.Error(err))
	}
}
