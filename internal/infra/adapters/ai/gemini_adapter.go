// File: internal/infra/adapters/ai/gemini_adapter.go
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"safe-room-chat/internal/domain"
	"safe-room-chat/internal/domain/model"
	"safe-room-chat/internal/domain/ports/adapter"
)

var _ adapter.SemanticValidator = (*GeminiValidator)(nil)

type GeminiValidator struct {
	client *genai.Client
	model  string
}

// NewGeminiValidator creates a validator backed by the Gemini API.
func NewGeminiValidator(ctx context.Context, apiKey, baseURL, model string) (*GeminiValidator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiValidator{client: c, model: modelOrDefault(model, "gemini-1.5-flash")}, nil
}

func (g *GeminiValidator) Name() string { return "gemini" }

func (g *GeminiValidator) Validate(ctx context.Context, req model.SemanticRequest) (model.SemanticVerdict, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return model.SemanticVerdict{}, err
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0),
	})
	if err != nil {
		return model.SemanticVerdict{}, fmt.Errorf("%w: gemini: %v", domain.ErrRemoteUnavailable, err)
	}
	return parseVerdict(responseText(resp))
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

func modelOrDefault(model, def string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	return def
}
