package profile

import (
	"strings"
	"testing"
)

func TestForFlow(t *testing.T) {
	cases := map[string]string{
		"roofing":          KeyRoofing,
		"roofing-detailed": KeyRoofing,
		"plumbing":         KeyPlumbing,
		"hvac":             KeyRoofing,
	}
	for flow, want := range cases {
		if got := ForFlow(flow); got != want {
			t.Fatalf("ForFlow(%q) = %q, want %q", flow, got, want)
		}
	}
}

func TestGet(t *testing.T) {
	for _, key := range Keys() {
		p, err := Get(key)
		if err != nil {
			t.Fatalf("Get(%q): %v", key, err)
		}
		if p.Name == "" || len(p.Services) == 0 {
			t.Fatalf("profile %q is incomplete", key)
		}
	}
	if _, err := Get("bakery"); err == nil {
		t.Fatalf("expected error for unknown profile")
	}
}

func TestDocs(t *testing.T) {
	p, _ := Get(KeyPlumbing)
	docs := p.Docs()
	for _, want := range []string{"Mr. Rooter Plumbing", "Drain cleaning", "24/7"} {
		if !strings.Contains(docs, want) {
			t.Fatalf("docs missing %q:\n%s", want, docs)
		}
	}
}
