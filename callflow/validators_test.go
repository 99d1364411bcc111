package callflow

import "testing"

func TestZIP(t *testing.T) {
	cases := []struct {
		in    string
		valid bool
		want  string
	}{
		{"90210", true, "90210"},
		{"90210-1234", true, "90210"},
		{"my zip is 9 0 2 1 0", true, "90210"},
		{"902101234", true, "90210"},
		{"9021", false, ""},
		{"902101", false, ""},
		{"555-123-4567", false, ""},
		{"abc", false, ""},
		{"", false, ""},
	}
	for _, tc := range cases {
		if got := ValidZIP(tc.in); got != tc.valid {
			t.Fatalf("ValidZIP(%q) = %v, want %v", tc.in, got, tc.valid)
		}
		if !tc.valid {
			continue
		}
		norm := NormalizeZIP(tc.in)
		if norm != tc.want {
			t.Fatalf("NormalizeZIP(%q) = %q, want %q", tc.in, norm, tc.want)
		}
		if !ValidZIP(norm) {
			t.Fatalf("ValidZIP rejected its own normalized output %q", norm)
		}
	}
}

func TestPhone(t *testing.T) {
	cases := []struct {
		in    string
		valid bool
		want  string
	}{
		{"555-123-4567", true, "5551234567"},
		{"(555) 123-4567", true, "5551234567"},
		{"555.123.4567", true, "5551234567"},
		{"555 123 4567", true, "5551234567"},
		{"+1 555 123 4567", true, "5551234567"},
		{"+1-(555)-123-4567", true, "5551234567"},
		{"15551234567", true, "5551234567"},
		{"5551234567", true, "5551234567"},
		{"  555-123-4567  ", true, "5551234567"},
		{"abc", false, ""},
		{"555-1234", false, ""},
		{"555-123-45678", false, ""},
		{"call me at 555-123-4567", false, ""},
		{"", false, ""},
	}
	for _, tc := range cases {
		if got := ValidPhone(tc.in); got != tc.valid {
			t.Fatalf("ValidPhone(%q) = %v, want %v", tc.in, got, tc.valid)
		}
		if !tc.valid {
			continue
		}
		norm := NormalizePhone(tc.in)
		if norm != tc.want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", tc.in, norm, tc.want)
		}
		if !ValidPhone(norm) {
			t.Fatalf("ValidPhone rejected its own normalized output %q", norm)
		}
	}
}

func TestServiceClassifier(t *testing.T) {
	cases := []struct {
		in    string
		valid bool
		want  string
	}{
		{"i need a new roof installed", true, ServiceInstallation},
		{"installation please", true, ServiceInstallation},
		{"I want a NEW ROOF", true, ServiceInstallation},
		{"my roof is leaking", true, ServiceRepair},
		{"repair", true, ServiceRepair},
		{"new gutters", true, ServiceInstallation},
		{"", false, ""},
		{"   ", false, ""},
		{"12345", false, ""},
	}
	for _, tc := range cases {
		if got := roofingServices.Valid(tc.in); got != tc.valid {
			t.Fatalf("Valid(%q) = %v, want %v", tc.in, got, tc.valid)
		}
		if !tc.valid {
			continue
		}
		got := roofingServices.Classify(tc.in)
		if got != tc.want {
			t.Fatalf("Classify(%q) = %q, want %q", tc.in, got, tc.want)
		}
		if !roofingServices.Valid(got) || roofingServices.Classify(got) != got {
			t.Fatalf("classifier is not idempotent on %q", got)
		}
	}

	if got := plumbingServices.Classify("we need a new water heater"); got != ServiceInstallation {
		t.Fatalf("plumbing classify = %q, want installation", got)
	}
	if got := plumbingServices.Classify("my toilet is clogged"); got != ServiceRepair {
		t.Fatalf("plumbing classify = %q, want repair", got)
	}
}

func TestTimeline(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"asap", "asap"},
		{"ASAP please", "asap"},
		{"as soon as possible", "asap"},
		{"it's urgent", "urgent"},
		{"this week would be great", "this week"},
		{"maybe next month", "next month"},
		{"in a couple of months", "month"},
		{"1-2 weeks", "1-2 weeks"},
		{"later this year", "later"},
		{"tomorrow", "tomorrow"},
		{"whenever", ""},
		{"laterally", ""},
		{"", ""},
	}
	for _, tc := range cases {
		valid := MatchTimeline(tc.in)
		if valid != (tc.want != "") {
			t.Fatalf("MatchTimeline(%q) = %v, want %v", tc.in, valid, tc.want != "")
		}
		got := NormalizeTimeline(tc.in)
		if got != tc.want {
			t.Fatalf("NormalizeTimeline(%q) = %q, want %q", tc.in, got, tc.want)
		}
		if valid && (!MatchTimeline(got) || NormalizeTimeline(got) != got) {
			t.Fatalf("timeline matcher is not idempotent on %q", got)
		}
	}
}

func TestRoofType(t *testing.T) {
	if !ValidRoofType("it's an asphalt shingle roof") || NormalizeRoofType("Asphalt") != "shingle" {
		t.Fatalf("asphalt should normalize to shingle")
	}
	if ValidRoofType("no idea") {
		t.Fatalf("unknown material should be rejected")
	}
	for _, r := range roofTypes {
		if !ValidRoofType(r.canonical) {
			t.Fatalf("ValidRoofType rejected canonical %q", r.canonical)
		}
	}
}
