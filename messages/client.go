package messages

import "encoding/json"

// ClientMessage represents a message from a websocket client
type ClientMessage struct {
	Type    string          `json:"type"` // "utterance", "control"
	Payload json.RawMessage `json:"payload"`
}

// Client message types
const (
	TypeUtterance = "utterance"
	TypeControl   = "control"
)

// UtterancePayload carries one caller answer
type UtterancePayload struct {
	Text string `json:"text"`
}

// ControlPayload contains control commands
type ControlPayload struct {
	Action string `json:"action"` // "ping", "end", "restart"
}

// Control actions
const (
	ActionPing    = "ping"
	ActionEnd     = "end"
	ActionRestart = "restart"
)

// SubmitInputRequest is the body of POST /v1/calls/{id}/input
type SubmitInputRequest struct {
	Utterance *string `json:"utterance"`
}
