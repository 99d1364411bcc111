package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/room4-2/callintake/callflow"
	"github.com/room4-2/callintake/profile"
	"google.golang.org/genai"
)

type fakeModels struct {
	reply     string
	err       error
	gotModel  string
	gotSystem string
	gotInput  string
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	f.gotSystem = config.SystemInstruction.Parts[0].Text
	f.gotInput = contents[0].Parts[0].Text
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: f.reply}}},
		}},
	}, nil
}

func plumber(t *testing.T) profile.Profile {
	t.Helper()
	p, err := profile.Get(profile.KeyPlumbing)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	return p
}

func TestRephrase(t *testing.T) {
	fake := &fakeModels{reply: "  Great, and what ZIP code is the home in? I'll check we cover it. Thanks so much for calling!  "}
	r := newRephraser(fake, "", plumber(t))

	out, err := r.Rephrase(context.Background(), callflow.StateLocation, "What's your ZIP code?")
	if err != nil {
		t.Fatalf("rephrase: %v", err)
	}
	if out != "Great, and what ZIP code is the home in? I'll check we cover it." {
		t.Fatalf("unexpected output %q", out)
	}
	if fake.gotModel != defaultModel {
		t.Fatalf("model = %q", fake.gotModel)
	}
	if !strings.Contains(fake.gotSystem, "Mr. Rooter Plumbing") || !strings.Contains(fake.gotInput, "LOCATION") {
		t.Fatalf("request missing context: system=%q input=%q", fake.gotSystem, fake.gotInput)
	}
}

func TestRephraseErrors(t *testing.T) {
	cases := map[string]*fakeModels{
		"upstream": {err: errors.New("quota exceeded")},
		"empty":    {reply: "   "},
		"numbers":  {reply: "Does that all sound right to you?"},
	}
	for name, fake := range cases {
		t.Run(name, func(t *testing.T) {
			r := newRephraser(fake, "gemini-test", plumber(t))
			if _, err := r.Rephrase(context.Background(), callflow.StateConfirmation, "I have ZIP code 90210 and phone 5551234567. Is that correct?"); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestTrimSentences(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"One. Two. Three.", 2, "One. Two."},
		{"Just one", 2, "Just one"},
		{"Hi!  How are you?\n\nGreat.", 2, "Hi! How are you?"},
		{`"Quoted reply."`, 2, "Quoted reply."},
		{"Wait... really? Yes.", 2, "Wait... really?"},
		{"", 2, ""},
	}
	for _, tc := range cases {
		if got := TrimSentences(tc.in, tc.n); got != tc.want {
			t.Fatalf("TrimSentences(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestKeepsNumbers(t *testing.T) {
	base := "We'll reach you at 5551234567 in ZIP 90210."
	if !keepsNumbers(base, "We'll call 555-123-4567 about the home in 90210.") {
		t.Fatalf("formatting changes should be allowed")
	}
	if keepsNumbers(base, "We'll call you soon.") {
		t.Fatalf("dropped numbers should be rejected")
	}
	if !keepsNumbers("What's your ZIP code?", "Which ZIP code is the property in?") {
		t.Fatalf("prompts without numbers always pass")
	}
}
