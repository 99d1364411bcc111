package server

import (
	"errors"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/room4-2/callintake/engine"
	"github.com/room4-2/callintake/messages"
	"github.com/room4-2/callintake/session"
	"go.uber.org/zap"
)

// errorStatus maps engine errors onto HTTP statuses and wire error codes.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrSessionNotFound):
		return http.StatusNotFound, messages.ErrCodeSessionNotFound
	case errors.Is(err, session.ErrTooManySessions):
		return http.StatusServiceUnavailable, messages.ErrCodeSessionLimit
	default:
		return http.StatusInternalServerError, messages.ErrCodeInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":{"code":"INTERNAL_ERROR","message":"encode failed"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, messages.NewErrorResponse(code, message))
}

func writeEngineError(w http.ResponseWriter, logger *zap.Logger, callID string, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("❌ Request failed", zap.String("call_id", callID), zap.Error(err))
	}
	writeError(w, status, code, err.Error())
}

func writeTwiML(w http.ResponseWriter, logger *zap.Logger, resp *messages.TwiMLResponse) {
	body, err := resp.Marshal()
	if err != nil {
		logger.Error("❌ Failed to render TwiML", zap.Error(err))
		http.Error(w, "failed to render TwiML", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write(body)
}
