// File: internal/infra/adapters/ai/openai_adapter.go
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"safe-room-chat/internal/domain"
	"safe-room-chat/internal/domain/model"
	"safe-room-chat/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.SemanticValidator = (*OpenAIValidator)(nil)

// OpenAIValidator talks to any OpenAI-compatible Chat Completions endpoint.
type OpenAIValidator struct {
	client openai.Client
	model  string
}

func NewOpenAIValidator(apiKey, baseURL, model string) (*OpenAIValidator, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIValidator{
		client: openai.NewClient(opts...),
		model:  modelOrDefault(model, "gpt-4o-mini"),
	}, nil
}

func (o *OpenAIValidator) Name() string { return "openai" }

func (o *OpenAIValidator) Validate(ctx context.Context, req model.SemanticRequest) (model.SemanticVerdict, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return model.SemanticVerdict{}, err
	}
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemInstruction),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return model.SemanticVerdict{}, fmt.Errorf("%w: openai: %v", domain.ErrRemoteUnavailable, err)
	}
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			return parseVerdict(c.Message.Content)
		}
	}
	return model.SemanticVerdict{}, fmt.Errorf("%w: no choice content", domain.ErrMalformedResponse)
}
