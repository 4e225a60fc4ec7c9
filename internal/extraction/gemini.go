package extraction

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini calls Google's Gemini API with a JSON response MIME type.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

// NewGemini creates a Gemini provider.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Gemini{
		client:      client,
		model:       cfg.ModelOrDefault(),
		temperature: float32(cfg.Temperature),
		maxTokens:   int32(cfg.MaxTokens),
	}, nil
}

func (g *Gemini) Name() string { return "gemini:" + g.model }

// Extract runs one GenerateContent call and decodes the reply.
func (g *Gemini) Extract(ctx context.Context, text, language string) (*Payload, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(buildPrompt(text, language)), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr(g.temperature),
		MaxOutputTokens:   g.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: generate: %w", err)
	}
	out := resp.Text()
	if out == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformed)
	}
	return ParsePayload(out)
}
