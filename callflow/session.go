package callflow

import "time"

// State is a position in the intake dialogue.
type State string

const (
	StateGreeting     State = "GREETING"
	StateServiceType  State = "SERVICE_TYPE"
	StateLocation     State = "LOCATION"
	StateRoofType     State = "ROOF_TYPE"
	StateContactPhone State = "CONTACT_PHONE"
	StateTimeline     State = "TIMELINE"
	StateConfirmation State = "CONFIRMATION"
	StateEndCall      State = "END_CALL"
	StateHumanHandoff State = "HUMAN_HANDOFF"
)

// Terminal reports whether no further data collection happens in s.
func (s State) Terminal() bool {
	return s == StateEndCall || s == StateHumanHandoff
}

// Field names a piece of collected data.
type Field string

const (
	FieldServiceType Field = "serviceType"
	FieldLocation    Field = "location"
	FieldPhone       Field = "phone"
	FieldRoofType    Field = "roofType"
	FieldTimeline    Field = "timeline"
	FieldRawTimeline Field = "rawTimeline"
)

// Data holds validated values keyed by field. A missing key means the
// field has not been collected yet.
type Data map[Field]string

// Clone returns an independent copy of d.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Has reports whether f has been collected.
func (d Data) Has(f Field) bool {
	_, ok := d[f]
	return ok
}

// Turn is one exchange in the call transcript.
type Turn struct {
	State     State  `json:"state"`
	Utterance string `json:"utterance"`
	Prompt    string `json:"prompt"`
	Valid     bool   `json:"valid"`
}

// maxTranscriptTurns bounds the transcript kept on a session.
const maxTranscriptTurns = 100

// CallSession is the state of one live call.
type CallSession struct {
	ID         string        `json:"id"`
	Flow       string        `json:"flow"`
	State      State         `json:"state"`
	Data       Data          `json:"collectedData"`
	Attempts   map[State]int `json:"attemptCounts"`
	Transcript []Turn        `json:"transcript,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
	Version    int64         `json:"version"`
}

// NewSession returns a session positioned at GREETING with no data.
func NewSession(id, flow string, now time.Time) CallSession {
	return CallSession{
		ID:        id,
		Flow:      flow,
		State:     StateGreeting,
		Data:      make(Data),
		Attempts:  make(map[State]int),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so transitions never alias the caller's maps.
func (s CallSession) Clone() CallSession {
	out := s
	out.Data = s.Data.Clone()
	out.Attempts = make(map[State]int, len(s.Attempts))
	for k, v := range s.Attempts {
		out.Attempts[k] = v
	}
	out.Transcript = append([]Turn(nil), s.Transcript...)
	return out
}

// Complete reports whether the call reached END_CALL.
func (s CallSession) Complete() bool {
	return s.State == StateEndCall
}

func (s *CallSession) record(t Turn) {
	s.Transcript = append(s.Transcript, t)
	if len(s.Transcript) > maxTranscriptTurns {
		s.Transcript = s.Transcript[len(s.Transcript)-maxTranscriptTurns:]
	}
}
