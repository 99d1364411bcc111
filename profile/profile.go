package profile

import (
	"fmt"
	"sort"
	"strings"
)

// Profile describes the business answering the phone.
type Profile struct {
	Key          string
	Name         string
	Industry     string
	Tagline      string
	Phone        string
	Website      string
	Services     []string
	Hours        string
	Availability string
	// Persona is the receptionist voice used when rephrasing prompts.
	Persona string
}

const (
	KeyRoofing  = "roofing"
	KeyPlumbing = "plumbing"
)

var profiles = map[string]Profile{
	KeyRoofing: {
		Key:      KeyRoofing,
		Name:     "Summit Roofing",
		Industry: "Residential Roofing",
		Tagline:  "Roofs done right, the first time",
		Phone:    "(555) 010-7663",
		Services: []string{
			"Roof installation and replacement",
			"Roof repair and leak detection",
			"Gutter installation",
			"Storm damage inspections",
			"Free estimates",
		},
		Hours:        "Monday-Friday 7am-6pm, Saturday 8am-2pm",
		Availability: "Emergency tarping available after storms",
		Persona:      "Warm, upbeat receptionist for a family-owned roofing company. Speaks plainly and never uses jargon.",
	},
	KeyPlumbing: {
		Key:      KeyPlumbing,
		Name:     "Mr. Rooter Plumbing",
		Industry: "Plumbing & Drain Cleaning Services",
		Tagline:  "Your Trusted Plumbing & Drain Cleaning Experts Since 1970",
		Phone:    "(855) 982-2028",
		Website:  "https://www.mrrooter.com",
		Services: []string{
			"Emergency plumbing (24/7)",
			"Drain cleaning and unclogging",
			"Water heater repair and replacement",
			"Sewer line repair and replacement",
			"Leak detection and repair",
			"Toilet and faucet repair and installation",
			"Bathroom remodeling",
		},
		Hours:        "Monday-Friday 8am-5pm, emergency service 24/7",
		Availability: "Same-day service often available; free estimates for most services",
		Persona:      "Friendly, professional, efficient receptionist who knows plumbing services and keeps callers moving toward a booked visit.",
	},
}

// Keys lists the known profiles.
func Keys() []string {
	keys := make([]string, 0, len(profiles))
	for k := range profiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the profile registered under key.
func Get(key string) (Profile, error) {
	p, ok := profiles[key]
	if !ok {
		return Profile{}, fmt.Errorf("unknown business profile %q (known: %v)", key, Keys())
	}
	return p, nil
}

// ForFlow picks the profile for a flow name when none is configured.
// Flow names start with their vertical, e.g. "roofing-detailed".
func ForFlow(flow string) string {
	vertical, _, _ := strings.Cut(flow, "-")
	if _, ok := profiles[vertical]; ok {
		return vertical
	}
	return KeyRoofing
}

// Docs renders the profile as plain text for a model's system instruction.
func (p Profile) Docs() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n", p.Name)
	fmt.Fprintf(&b, "Industry: %s\n", p.Industry)
	if p.Tagline != "" {
		fmt.Fprintf(&b, "Tagline: %s\n", p.Tagline)
	}
	if p.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", p.Phone)
	}
	if p.Website != "" {
		fmt.Fprintf(&b, "Website: %s\n", p.Website)
	}
	b.WriteString("\nServices:\n")
	for _, s := range p.Services {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	fmt.Fprintf(&b, "\nBusiness Hours: %s\n", p.Hours)
	if p.Availability != "" {
		fmt.Fprintf(&b, "Availability: %s\n", p.Availability)
	}
	return b.String()
}
