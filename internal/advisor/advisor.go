package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/group-consolidator/internal/consolidate"
	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used for drafting audit notes.
const DefaultModelName = "gemini-2.5-flash"

// Annotator drafts a short audit note for each mismatched entity pair.
// The notes are advisory text for the run report; they never influence the
// reconciliation outcome.
type Annotator interface {
	// AnnotateMismatches returns a note per pair key. Pairs the model skipped
	// are simply absent from the result.
	AnnotateMismatches(ctx context.Context, mismatches []consolidate.Mismatch) (map[string]string, error)
}

// GeminiAnnotator is the concrete Annotator backed by the Gemini API.
type GeminiAnnotator struct {
	model string
}

// NewGeminiAnnotator creates an Annotator using the default model.
func NewGeminiAnnotator() *GeminiAnnotator {
	return &GeminiAnnotator{model: DefaultModelName}
}

// AnnotateMismatches sends the mismatch records to Gemini and returns one
// diagnostic note per pair key.
func (a *GeminiAnnotator) AnnotateMismatches(ctx context.Context, mismatches []consolidate.Mismatch) (map[string]string, error) {
	if len(mismatches) == 0 {
		return map[string]string{}, nil
	}

	payload, err := json.Marshal(mismatches)
	if err != nil {
		return nil, fmt.Errorf("AnnotateMismatches: marshal mismatches: %w", err)
	}

	prompt :=
		"You are an assistant for a financial consolidation team.\n\n" +
			"Task:\n" +
			"- Below is a JSON array of unbalanced intercompany entity pairs.\n" +
			"- Each has \"pair\" (the two entities), \"revenue\" and \"expense\" sums, and \"net\" (the residual).\n" +
			"- For EACH pair, draft one short audit note (max two sentences) suggesting the most likely\n" +
			"  bookkeeping cause, e.g. a missing expense leg, a one-sided booking, or a rounding issue.\n\n" +
			"Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
			"Output a single JSON object mapping each pair key to its note.\n" +
			"Do NOT wrap the response in code fences.\n" +
			"Output must begin with \"{\" and end with \"}\".\n\n" +
			"Mismatches:\n" + string(payload)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("AnnotateMismatches: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, a.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("AnnotateMismatches: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("AnnotateMismatches: empty response from model")
	}

	clean := cleanModelJSON(rawText)

	var notes map[string]string
	if err := json.Unmarshal([]byte(clean), &notes); err != nil {
		return nil, fmt.Errorf("AnnotateMismatches: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}

	return notes, nil
}

// cleanModelJSON strips Markdown fences and surrounding junk if the model
// ignored the strict-JSON instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only from the first '{' to the last '}' if there is still junk.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
