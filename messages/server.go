package messages

import (
	"github.com/room4-2/callintake/callflow"
	"github.com/room4-2/callintake/engine"
)

// Error codes
const (
	ErrCodeInvalidMessage  = "INVALID_MESSAGE"
	ErrCodeSessionNotFound = "SESSION_NOT_FOUND"
	ErrCodeSessionLimit    = "SESSION_LIMIT"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// Message types
const (
	TypePrompt  = "prompt"
	TypeStatus  = "status"
	TypeSummary = "summary"
	TypeError   = "error"
)

// ServerMessage represents a message sent to a websocket client
type ServerMessage struct {
	Type    string      `json:"type"` // "prompt", "status", "summary", "error"
	CallID  string      `json:"callId,omitempty"`
	Payload interface{} `json:"payload"`
}

// PromptPayload is the next thing to say to the caller
type PromptPayload struct {
	Text      string         `json:"text"`
	State     callflow.State `json:"state"`
	Valid     bool           `json:"isValid"`
	Data      callflow.Data  `json:"collectedData,omitempty"`
	Complete  bool           `json:"isComplete"`
	Escalated bool           `json:"isEscalated"`
}

// StatusPayload contains status updates
type StatusPayload struct {
	Status  string `json:"status"` // "connected", "pong", "ended"
	Message string `json:"message,omitempty"`
}

// ErrorPayload contains error information
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StartCallResponse is returned by POST /v1/calls and /restart
type StartCallResponse struct {
	CallID string         `json:"callId"`
	Prompt string         `json:"prompt"`
	State  callflow.State `json:"state"`
}

// TurnResponse is returned by POST /v1/calls/{id}/input
type TurnResponse struct {
	CallID    string         `json:"callId"`
	Prompt    string         `json:"prompt"`
	State     callflow.State `json:"state"`
	Valid     bool           `json:"isValid"`
	Data      callflow.Data  `json:"collectedData"`
	Complete  bool           `json:"isComplete"`
	Escalated bool           `json:"isEscalated"`
}

// EndCallResponse is returned by DELETE /v1/calls/{id}
type EndCallResponse struct {
	CallID   string        `json:"callId"`
	Data     callflow.Data `json:"collectedData"`
	Complete bool          `json:"isComplete"`
}

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error ErrorPayload `json:"error"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status              string       `json:"status"`
	Sessions            int          `json:"sessions"`
	IntegrationFailures int64        `json:"integrationFailures"`
	Stats               engine.Stats `json:"stats"`
}

func NewStartCallResponse(r engine.StartResult) StartCallResponse {
	return StartCallResponse{CallID: r.CallID, Prompt: r.Prompt, State: r.State}
}

func NewTurnResponse(r engine.TurnResult) TurnResponse {
	return TurnResponse{
		CallID:    r.CallID,
		Prompt:    r.Prompt,
		State:     r.State,
		Valid:     r.Valid,
		Data:      nonNil(r.Data),
		Complete:  r.Complete,
		Escalated: r.Escalated,
	}
}

func NewEndCallResponse(r engine.EndResult) EndCallResponse {
	return EndCallResponse{CallID: r.CallID, Data: nonNil(r.Data), Complete: r.Complete}
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorPayload{Code: code, Message: message}}
}

func nonNil(d callflow.Data) callflow.Data {
	if d == nil {
		return callflow.Data{}
	}
	return d
}

// NewPromptMessage creates a prompt message for the start of a call
func NewPromptMessage(callID, text string, state callflow.State) *ServerMessage {
	return &ServerMessage{
		Type:   TypePrompt,
		CallID: callID,
		Payload: PromptPayload{
			Text:  text,
			State: state,
			Valid: true,
		},
	}
}

// NewTurnMessage creates a prompt message answering an utterance
func NewTurnMessage(r engine.TurnResult) *ServerMessage {
	return &ServerMessage{
		Type:   TypePrompt,
		CallID: r.CallID,
		Payload: PromptPayload{
			Text:      r.Prompt,
			State:     r.State,
			Valid:     r.Valid,
			Data:      r.Data,
			Complete:  r.Complete,
			Escalated: r.Escalated,
		},
	}
}

// NewSummaryMessage reports what was collected when a call ends
func NewSummaryMessage(r engine.EndResult) *ServerMessage {
	return &ServerMessage{
		Type:    TypeSummary,
		CallID:  r.CallID,
		Payload: NewEndCallResponse(r),
	}
}

// NewStatusMessage creates a status message
func NewStatusMessage(callID, status, message string) *ServerMessage {
	return &ServerMessage{
		Type:   TypeStatus,
		CallID: callID,
		Payload: StatusPayload{
			Status:  status,
			Message: message,
		},
	}
}

// NewErrorMessage creates an error message
func NewErrorMessage(callID, code, message string) *ServerMessage {
	return &ServerMessage{
		Type:   TypeError,
		CallID: callID,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
		},
	}
}
