package messages

import (
	"strings"
	"testing"
)

func TestGatherResponse(t *testing.T) {
	out, err := NewGatherResponse("What's your ZIP code?", "/voice/gather").Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(out)
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<Response><Gather input="speech dtmf" action="/voice/gather" method="POST" timeout="5" speechTimeout="auto">`,
		`<Say voice="Polly.Joanna">What&#39;s your ZIP code?</Say></Gather>`,
		`<Redirect method="POST">/voice/gather</Redirect></Response>`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in\n%s", want, got)
		}
	}
}

func TestHangupAndDialResponses(t *testing.T) {
	out, err := NewHangupResponse("Goodbye & thanks").Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `<Say voice="Polly.Joanna">Goodbye &amp; thanks</Say><Hangup></Hangup>`) {
		t.Fatalf("unexpected hangup TwiML %s", out)
	}

	out, err = NewDialResponse("Connecting you now.", "+15550001111").Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `<Dial>+15550001111</Dial>`) {
		t.Fatalf("unexpected dial TwiML %s", out)
	}
}
