// Package anthropic implements the completion gateway on the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mnemolabs/mnemo/core"
	"github.com/mnemolabs/mnemo/llm"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 1024
)

// Config configures the gateway.
type Config struct {
	// APIKey authenticates against the Anthropic API. Required.
	APIKey string

	// Model is the model identifier. Default: claude-sonnet-4-20250514.
	Model string
}

// Gateway calls the Anthropic Messages API.
type Gateway struct {
	client *anthropic.Client
	model  string
}

// New creates a gateway.
func New(cfg Config) (*Gateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic API key is required", core.ErrConfig)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Gateway{client: &client, model: cfg.Model}, nil
}

// Complete sends the prompt and returns the generated text.
func (g *Gateway) Complete(ctx context.Context, req llm.Request) (string, error) {
	resp, err := g.client.Messages.New(ctx, g.params(req))
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrCompletion, err)
	}
	return textOf(resp), nil
}

// CompleteStream sends the prompt and emits text deltas through fn as
// they arrive, returning the accumulated text.
func (g *Gateway) CompleteStream(ctx context.Context, req llm.Request, fn func(chunk string)) (string, error) {
	stream := g.client.Messages.NewStreaming(ctx, g.params(req))
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			continue
		}

		switch evt := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := evt.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				fn(delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrCompletion, err)
	}

	return textOf(&message), nil
}

func (g *Gateway) params(req llm.Request) anthropic.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	return anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
}

func textOf(msg *anthropic.Message) string {
	text := ""
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text
}

var (
	_ llm.Completer       = (*Gateway)(nil)
	_ llm.StreamCompleter = (*Gateway)(nil)
)
