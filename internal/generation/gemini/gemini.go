// Package gemini generates answers with Google's Gemini models through the
// genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"docrag/internal/domain"
	"docrag/internal/logger"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Config holds configuration for the generator.
type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
}

// Generator answers prompts with a Gemini model.
type Generator struct {
	client *genai.Client
	model  string
}

var _ domain.Generator = (*Generator)(nil)

func NewGenerator(ctx context.Context, cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Generator{client: client, model: cfg.Model}, nil
}

func (g *Generator) Name() string { return "gemini:" + g.model }

func (g *Generator) Generate(ctx context.Context, system, prompt string) (domain.Generation, error) {
	config := &genai.GenerateContentConfig{}
	if contents := genai.Text(system); len(contents) > 0 && system != "" {
		config.SystemInstruction = contents[0]
	}

	logger.Debug("gemini: generate with %s (%d prompt bytes)", g.model, len(prompt))
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return domain.Generation{}, fmt.Errorf("gemini: generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return domain.Generation{}, errors.New("gemini: empty response")
	}

	gen := domain.Generation{Text: strings.TrimSpace(resp.Text())}
	if u := resp.UsageMetadata; u != nil {
		gen.Usage = domain.Usage{
			PromptTokens:     int64(u.PromptTokenCount),
			CompletionTokens: int64(u.CandidatesTokenCount),
			TotalTokens:      int64(u.TotalTokenCount),
		}
	}
	return gen, nil
}
