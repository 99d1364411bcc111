package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/room4-2/callintake/callflow"
	"github.com/room4-2/callintake/config"
	"github.com/room4-2/callintake/engine"
	"github.com/room4-2/callintake/messages"
	"go.uber.org/zap"
)

const gatherPath = "/voice/gather"

const callFailedPrompt = "Sorry, something went wrong on our end. Please call back in a few minutes."

// TwilioServer answers Twilio voice webhooks. Twilio does the speech
// recognition and text to speech; each <Gather> result becomes one utterance.
type TwilioServer struct {
	httpServer *http.Server
	engine     *engine.Engine
	config     *config.Config
	logger     *zap.Logger

	// calls maps Twilio CallSid to our call id.
	calls sync.Map
}

func NewTwilioServer(cfg *config.Config, eng *engine.Engine, logger *zap.Logger) *TwilioServer {
	s := &TwilioServer{
		engine: eng,
		config: cfg,
		logger: logger.Named("twilio"),
	}
	eng.OnCallsReaped(s.forget)

	// Determine which port to use
	port := cfg.TwilioPort
	if cfg.ServerType == "twilio" {
		// When running as standalone Twilio server, use the main port
		port = cfg.Port
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the routed HTTP handler.
func (s *TwilioServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /voice", s.handleVoiceCall)
	mux.HandleFunc("POST "+gatherPath, s.handleGather)
	mux.HandleFunc("POST /voice/status", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Start begins listening for connections
func (s *TwilioServer) Start() error {
	port := s.httpServer.Addr
	s.logger.Info("📞 Twilio server starting", zap.String("addr", port))
	s.logger.Info("📡 Twilio voice endpoint", zap.String("url", "http://localhost"+port+"/voice"))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *TwilioServer) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down Twilio server...")
	return s.httpServer.Shutdown(ctx)
}

func (s *TwilioServer) handleVoiceCall(w http.ResponseWriter, r *http.Request) {
	callSid := r.PostFormValue("CallSid")
	if callSid == "" {
		http.Error(w, "missing CallSid", http.StatusBadRequest)
		return
	}
	log := s.logger.With(zap.String("call_sid", callSid))

	// Twilio retries webhooks; repeat the current question instead of opening a second call.
	if id, ok := s.calls.Load(callSid); ok {
		cur, err := s.engine.CurrentPrompt(r.Context(), id.(string))
		if err == nil {
			writeTwiML(w, log, messages.NewGatherResponse(cur.Prompt, gatherPath))
			return
		}
		s.calls.Delete(callSid)
	}

	start, err := s.engine.StartCall(r.Context())
	if err != nil {
		log.Error("❌ Failed to start call", zap.Error(err))
		writeTwiML(w, log, messages.NewHangupResponse(callFailedPrompt))
		return
	}
	s.calls.Store(callSid, start.CallID)

	log.Info("📞 Incoming call", zap.String("call_id", start.CallID), zap.String("from", r.PostFormValue("From")))
	writeTwiML(w, log, messages.NewGatherResponse(start.Prompt, gatherPath))
}

func (s *TwilioServer) handleGather(w http.ResponseWriter, r *http.Request) {
	callSid := r.PostFormValue("CallSid")
	log := s.logger.With(zap.String("call_sid", callSid))

	v, ok := s.calls.Load(callSid)
	if !ok {
		log.Warn("⚠️ Gather for unknown call")
		writeTwiML(w, log, messages.NewHangupResponse(callFailedPrompt))
		return
	}
	callID := v.(string)

	input := strings.TrimSpace(r.PostFormValue("SpeechResult"))
	if input == "" {
		input = strings.TrimSpace(r.PostFormValue("Digits"))
	}

	// Silence: ask the same question again without counting a failed attempt.
	if input == "" {
		cur, err := s.engine.CurrentPrompt(r.Context(), callID)
		if err != nil {
			s.drop(r.Context(), w, log, callSid, err)
			return
		}
		writeTwiML(w, log, messages.NewGatherResponse(cur.Prompt, gatherPath))
		return
	}

	turn, err := s.engine.SubmitInput(r.Context(), callID, input)
	if err != nil {
		s.drop(r.Context(), w, log, callSid, err)
		return
	}

	switch turn.State {
	case callflow.StateEndCall:
		s.end(r.Context(), log, callSid, callID)
		writeTwiML(w, log, messages.NewHangupResponse(turn.Prompt))
	case callflow.StateHumanHandoff:
		s.end(r.Context(), log, callSid, callID)
		if s.config.HandoffNumber != "" {
			writeTwiML(w, log, messages.NewDialResponse(turn.Prompt, s.config.HandoffNumber))
			return
		}
		writeTwiML(w, log, messages.NewHangupResponse(turn.Prompt))
	default:
		writeTwiML(w, log, messages.NewGatherResponse(turn.Prompt, gatherPath))
	}
}

// handleStatus ends our side of the call when Twilio reports it finished.
func (s *TwilioServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	callSid := r.PostFormValue("CallSid")
	status := r.PostFormValue("CallStatus")

	switch status {
	case "completed", "failed", "busy", "no-answer", "canceled":
		if v, ok := s.calls.Load(callSid); ok {
			s.end(r.Context(), s.logger.With(zap.String("call_sid", callSid)), callSid, v.(string))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *TwilioServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse(r.Context(), s.engine))
}

func (s *TwilioServer) end(ctx context.Context, log *zap.Logger, callSid, callID string) {
	s.calls.Delete(callSid)
	if _, err := s.engine.EndCall(ctx, callID); err != nil && !errors.Is(err, engine.ErrSessionNotFound) {
		log.Warn("⚠️ Failed to end call", zap.String("call_id", callID), zap.Error(err))
	}
}

// forget drops CallSid mappings for calls reaped while Twilio never reported
// the hangup.
func (s *TwilioServer) forget(callIDs []string) {
	gone := make(map[string]struct{}, len(callIDs))
	for _, id := range callIDs {
		gone[id] = struct{}{}
	}
	s.calls.Range(func(sid, id any) bool {
		if _, ok := gone[id.(string)]; ok {
			s.calls.Delete(sid)
		}
		return true
	})
}

func (s *TwilioServer) drop(ctx context.Context, w http.ResponseWriter, log *zap.Logger, callSid string, err error) {
	if !errors.Is(err, engine.ErrSessionNotFound) {
		log.Error("❌ Call failed", zap.Error(err))
	}
	if v, ok := s.calls.LoadAndDelete(callSid); ok {
		_, _ = s.engine.EndCall(ctx, v.(string))
	}
	writeTwiML(w, log, messages.NewHangupResponse(callFailedPrompt))
}
