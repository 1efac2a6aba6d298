// Package openaigw implements the completion gateway on an
// OpenAI-compatible chat completion API.
package openaigw

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mnemolabs/mnemo/core"
	"github.com/mnemolabs/mnemo/llm"
)

// Config configures the gateway.
type Config struct {
	// APIKey authenticates against the API. Required.
	APIKey string

	// BaseURL overrides the endpoint for OpenAI-compatible providers.
	BaseURL string

	// Model is the model identifier. Default: gpt-3.5-turbo.
	Model string
}

// Gateway calls the chat completion API.
type Gateway struct {
	client *openai.Client
	model  string
}

// New creates a gateway.
func New(cfg Config) (*Gateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai API key is required", core.ErrConfig)
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT3Dot5Turbo
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Gateway{client: openai.NewClientWithConfig(clientCfg), model: cfg.Model}, nil
}

// Complete sends the prompt as a single user message and returns the
// generated text.
func (g *Gateway) Complete(ctx context.Context, req llm.Request) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     g.model,
		MaxTokens: int(req.MaxTokens),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrCompletion, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: response contained no choices", core.ErrCompletion)
	}
	return resp.Choices[0].Message.Content, nil
}

var _ llm.Completer = (*Gateway)(nil)
