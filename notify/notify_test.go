package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/room4-2/callintake/callflow"
	"go.uber.org/zap/zaptest"
)

func completedEvent() Event {
	return Event{
		Type:     EventIntakeCompleted,
		CallID:   "call-1",
		Flow:     callflow.FlowRoofing,
		State:    callflow.StateEndCall,
		Complete: true,
		At:       time.Now(),
		Data: callflow.Data{
			callflow.FieldServiceType: callflow.ServiceInstallation,
			callflow.FieldLocation:    "90210",
			callflow.FieldPhone:       "5551234567",
			callflow.FieldTimeline:    "asap",
		},
	}
}

func newTestSMS(t *testing.T, handler http.HandlerFunc) *SMSPublisher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewSMSPublisher(SignalWireConfig{
		ProjectID: "proj",
		Token:     "secret",
		Space:     "example.signalwire.com",
		From:      "+15550001111",
	}, "Summit Roofing")
	p.baseURL = srv.URL
	return p
}

func TestSMSPublisherSendsConfirmation(t *testing.T) {
	var gotPath, gotTo, gotBody, gotUser string
	p := newTestSMS(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		_ = r.ParseForm()
		gotTo = r.PostForm.Get("To")
		gotBody = r.PostForm.Get("Body")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM123","status":"queued","to":"+15551234567"}`))
	})

	if err := p.Publish(context.Background(), completedEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if gotPath != "/Accounts/proj/Messages.json" || gotUser != "proj" {
		t.Fatalf("unexpected request path=%q user=%q", gotPath, gotUser)
	}
	if gotTo != "+15551234567" {
		t.Fatalf("sent to %q", gotTo)
	}
	for _, want := range []string{"Summit Roofing", "installation", "90210", "asap"} {
		if !strings.Contains(gotBody, want) {
			t.Fatalf("body missing %q: %s", want, gotBody)
		}
	}
}

func TestSMSPublisherSkipsOtherEvents(t *testing.T) {
	called := false
	p := newTestSMS(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	ev := completedEvent()
	ev.Type = EventHandoffRequested
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if called {
		t.Fatalf("SMS sent for %s", ev.Type)
	}
}

func TestSMSPublisherAPIError(t *testing.T) {
	p := newTestSMS(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad number", http.StatusBadRequest)
	})
	err := p.Publish(context.Background(), completedEvent())
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("expected API error, got %v", err)
	}
}

type failingPublisher struct{ err error }

func (f failingPublisher) Name() string { return "failing" }

func (f failingPublisher) Publish(context.Context, Event) error { return f.err }

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	m := Multi{NewLogPublisher(zaptest.NewLogger(t)), failingPublisher{err: boom}}

	err := m.Publish(context.Background(), completedEvent())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	var nerr *Error
	if !errors.As(err, &nerr) || nerr.Integration != "failing" {
		t.Fatalf("expected integration tag, got %v", err)
	}
}
