package gemini

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/room4-2/callintake/callflow"
	"github.com/room4-2/callintake/profile"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.0-flash"

// maxSentences bounds rephrased prompts; callers hear them over the phone.
const maxSentences = 2

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Rephraser rewrites flow prompts in the business's receptionist voice.
type Rephraser struct {
	models       generator
	model        string
	systemPrompt string
}

// NewRephraser creates a Gemini API client for prompt rephrasing.
func NewRephraser(ctx context.Context, apiKey, model string, p profile.Profile) (*Rephraser, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newRephraser(client.Models, model, p), nil
}

func newRephraser(models generator, model string, p profile.Profile) *Rephraser {
	if model == "" {
		model = defaultModel
	}
	return &Rephraser{
		models:       models,
		model:        model,
		systemPrompt: SystemPrompt(p),
	}
}

// SystemPrompt builds the instruction given to the model for a business.
func SystemPrompt(p profile.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the phone receptionist for %s. %s\n\n", p.Name, p.Persona)
	b.WriteString("Rewrite the line you are given so it sounds natural when spoken aloud on a phone call.\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Keep the exact meaning and ask the same question.\n")
	b.WriteString("- Keep every number, ZIP code, phone number and timeline exactly as written.\n")
	b.WriteString("- Use at most two short sentences. No lists, no emoji, no markdown.\n")
	b.WriteString("- Reply with the rewritten line only.\n\n")
	b.WriteString("Business information:\n")
	b.WriteString(p.Docs())
	return b.String()
}

// Rephrase asks the model for a more natural wording of prompt.
func (r *Rephraser) Rephrase(ctx context.Context, state callflow.State, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: r.systemPrompt},
			},
		},
		Temperature: genai.Ptr[float32](0.4),
	}

	input := fmt.Sprintf("Call step: %s\nLine: %s", state, prompt)
	resp, err := r.models.GenerateContent(ctx, r.model, genai.Text(input), config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	out := TrimSentences(resp.Text(), maxSentences)
	if out == "" {
		return "", fmt.Errorf("model returned no text")
	}
	if !keepsNumbers(prompt, out) {
		return "", fmt.Errorf("rephrased prompt dropped collected values")
	}
	return out, nil
}

var sentenceEnd = regexp.MustCompile(`[.!?]+(\s+|$)`)

// TrimSentences keeps the first n sentences of text and collapses whitespace.
func TrimSentences(text string, n int) string {
	text = strings.Join(strings.Fields(strings.Trim(text, "\"` \n")), " ")
	if n <= 0 || text == "" {
		return text
	}
	ends := sentenceEnd.FindAllStringIndex(text, n)
	if len(ends) < n {
		return text
	}
	return strings.TrimSpace(text[:ends[n-1][1]])
}

var digitRun = regexp.MustCompile(`\d[\d\-\s().]*\d|\d`)

// keepsNumbers reports whether every number in base survives in out, ignoring formatting.
func keepsNumbers(base, out string) bool {
	outDigits := onlyDigits(out)
	for _, run := range digitRun.FindAllString(base, -1) {
		if !strings.Contains(outDigits, onlyDigits(run)) {
			return false
		}
	}
	return true
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
