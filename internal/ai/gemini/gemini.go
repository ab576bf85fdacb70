// Package gemini classifies transactions with a Gemini model.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"google.golang.org/genai"

	"fintrack/internal/ai"
	"fintrack/internal/core"
	"fintrack/internal/taxonomy"
)

const DefaultModelName = "gemini-2.0-flash"

// Config holds what the classifier needs to reach the model.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Classifier implements ai.Classifier.
type Classifier struct {
	client *genai.Client
	model  string
	prompt string
}

var _ ai.Classifier = (*Classifier)(nil)

// New creates a classifier. An empty API key yields ai.ErrMissingCredentials
// so callers can fall back without special-casing configuration.
func New(ctx context.Context, cfg Config, tax *taxonomy.Taxonomy) (*Classifier, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ai.ErrMissingCredentials
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModelName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if tax == nil {
		tax = taxonomy.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  newHTTPClient(cfg.Timeout).StandardClient(),
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1beta"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Classifier{
		client: client,
		model:  cfg.Model,
		prompt: buildTaxonomyPrompt(tax),
	}, nil
}

// newHTTPClient returns a client that makes exactly one attempt per call.
func newHTTPClient(timeout time.Duration) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.HTTPClient.Timeout = timeout
	rc.Logger = slog.Default()
	return rc
}

// ClassifyBatch sends one prompt for the whole batch.
func (c *Classifier) ClassifyBatch(ctx context.Context, items []ai.Request) ([]ai.Suggestion, error) {
	if len(items) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("gemini: encode batch: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: c.prompt + "\nTransactions:\n" + string(payload)},
			},
		},
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}
	raw := resp.Text()
	if raw == "" {
		return nil, fmt.Errorf("gemini: empty response from model")
	}
	slog.DebugContext(ctx, "Gemini batch classified",
		"items", len(items),
		"duration_ms", time.Since(start).Milliseconds())

	return ParseSuggestions(raw)
}

// ParseSuggestions decodes a model reply, tolerating Markdown fences and
// surrounding prose.
func ParseSuggestions(raw string) ([]ai.Suggestion, error) {
	var out []ai.Suggestion
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &out); err != nil {
		return nil, fmt.Errorf("gemini: unmarshal response: %w", err)
	}
	return out, nil
}

func buildTaxonomyPrompt(tax *taxonomy.Taxonomy) string {
	var b strings.Builder
	b.WriteString("You classify personal finance transactions.\n\n")
	b.WriteString("For each transaction in the input array, return one object with fields:\n")
	b.WriteString("- \"category\": one of the categories below\n")
	b.WriteString("- \"subcategory\": one of that category's subcategories\n")
	b.WriteString("- \"type\": \"income\" or \"expense\" (must match the category's section)\n")
	b.WriteString("- \"confidence\": number between 0 and 1\n\n")

	for _, tt := range []struct {
		title string
		cats  []taxonomy.Category
	}{
		{"Expense categories", tax.CategoriesForType(core.Expense)},
		{"Income categories", tax.CategoriesForType(core.Income)},
	} {
		b.WriteString(tt.title + ":\n")
		for _, c := range tt.cats {
			fmt.Fprintf(&b, "- %s: %s\n", c.Name, strings.Join(c.Subcategories, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("Rules:\n")
	b.WriteString("- Savings, SIPs, mutual funds, stocks, deposits and other investments are expenses in Savings.\n")
	b.WriteString("- If nothing fits, use Other / Miscellaneous.\n")
	b.WriteString("- Output a JSON array with exactly one object per input transaction, in the same order.\n")
	b.WriteString("Return ONLY valid raw JSON. Do NOT wrap the response in code fences.\n")
	return b.String()
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
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

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
