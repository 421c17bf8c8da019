package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gai "google.golang.org/api/generativelanguage/v1beta"
	goption "google.golang.org/api/option"

	"fintrack/internal/core"
)

const DefaultModel = "gemini-1.5-flash"

// Gemini talks to the Generative Language API.
type Gemini struct {
	svc   *gai.Service
	model string
	now   func() time.Time
}

var (
	_ Parser  = (*Gemini)(nil)
	_ Advisor = (*Gemini)(nil)
)

// NewGemini creates a client authenticated with apiKey. Extra options are
// appended after the key, tests use them to point at a local server.
func NewGemini(ctx context.Context, apiKey, model string, opts ...goption.ClientOption) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("missing Gemini API key")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	svc, err := gai.NewService(ctx, append([]goption.ClientOption{goption.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create generative language service: %w", err)
	}
	return &Gemini{svc: svc, model: model, now: time.Now}, nil
}

const parsePrompt = `Extract the financial transactions described in the text below.
Text: %q

Return a JSON array of objects with the properties:
- description (string): short description
- amount (number): plain amount without currency symbols
- type (string): "INCOME" or "EXPENSE"
- category (string): the most relevant category, e.g. Makanan, Transportasi, Gaji
- date (string): ISO date YYYY-MM-DD. When no date is mentioned use %s.`

// ParseDrafts asks the model for transaction drafts. Drafts are returned as
// the model produced them; validation is up to the caller.
func (g *Gemini) ParseDrafts(ctx context.Context, text string) ([]Draft, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, core.Invalid("text", core.ErrEmptyDescription)
	}
	prompt := fmt.Sprintf(parsePrompt, text, core.DateOf(g.now()).String())
	out, err := g.generate(ctx, prompt, "application/json")
	if err != nil {
		return nil, err
	}

	var drafts []Draft
	if err := json.Unmarshal([]byte(stripFence(out)), &drafts); err != nil {
		return nil, &core.UpstreamError{Service: ServiceName, Err: fmt.Errorf("decode drafts: %w", err)}
	}
	slog.InfoContext(ctx, "Drafts parsed", "component", "ai", "count", len(drafts))
	return drafts, nil
}

const advicePrompt = `Act as a personal financial planner. Reply in Markdown.

Recent transactions (newest first):
%s

Cover: cashflow health (income against expense), whether spending looks
reasonable, an emergency fund estimate from the spending pattern, and three
concrete recommendations.`

// Advice summarises up to AdviceWindow transactions and returns the model's
// written analysis.
func (g *Gemini) Advice(ctx context.Context, recent []core.Transaction) (string, error) {
	if len(recent) > AdviceWindow {
		recent = recent[:AdviceWindow]
	}
	lines := make([]string, 0, len(recent))
	for _, t := range recent {
		lines = append(lines, fmt.Sprintf("%s: %s - %s - %s (%s)",
			t.Date, t.Type, t.Category, t.Amount.StringFixed(core.AmountPlaces), t.Description))
	}
	return g.generate(ctx, fmt.Sprintf(advicePrompt, strings.Join(lines, "\n")), "")
}

func (g *Gemini) generate(ctx context.Context, prompt, mimeType string) (string, error) {
	req := &gai.GenerateContentRequest{
		Contents: []*gai.Content{{
			Role:  "user",
			Parts: []*gai.Part{{Text: prompt}},
		}},
	}
	if mimeType != "" {
		req.GenerationConfig = &gai.GenerationConfig{ResponseMimeType: mimeType}
	}

	start := time.Now()
	resp, err := g.svc.Models.GenerateContent("models/"+g.model, req).Context(ctx).Do()
	if err != nil {
		slog.ErrorContext(ctx, "Generate content failed", "component", "ai", "model", g.model, "error", err)
		return "", &core.UpstreamError{Service: ServiceName, Err: err}
	}
	slog.DebugContext(ctx, "Generate content", "component", "ai", "model", g.model, "duration", time.Since(start))

	var b strings.Builder
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p != nil {
				b.WriteString(p.Text)
			}
		}
		break
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", &core.UpstreamError{Service: ServiceName, Err: ErrEmptyResponse}
	}
	return b.String(), nil
}

// stripFence removes a Markdown code fence around a JSON payload.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
