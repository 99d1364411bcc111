package notify

import (
	"context"
	"errors"
	"time"

	"github.com/room4-2/callintake/callflow"
)

// EventType names a call lifecycle event.
type EventType string

const (
	EventIntakeCompleted  EventType = "intake_completed"
	EventHandoffRequested EventType = "handoff_requested"
	EventCallEnded        EventType = "call_ended"
)

// Event is published when a call reaches a notable point.
type Event struct {
	Type     EventType      `json:"type"`
	CallID   string         `json:"callId"`
	Flow     string         `json:"flow"`
	State    callflow.State `json:"state"`
	Data     callflow.Data  `json:"collectedData"`
	Complete bool           `json:"isComplete"`
	At       time.Time      `json:"at"`
}

// Publisher delivers events to an external collaborator.
type Publisher interface {
	// Name identifies the integration in logs and failure counts.
	Name() string
	Publish(ctx context.Context, ev Event) error
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Name() string { return "multi" }

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, &Error{Integration: p.Name(), Err: err})
		}
	}
	return errors.Join(errs...)
}

// Error tags a delivery failure with the publisher that produced it.
type Error struct {
	Integration string
	Err         error
}

func (e *Error) Error() string { return e.Integration + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }
