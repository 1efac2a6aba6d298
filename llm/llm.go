// Package llm defines the completion gateway boundary: assembled prompt
// in, generated text out.
package llm

import "context"

// Request is one completion call.
type Request struct {
	// Prompt is the fully assembled prompt text.
	Prompt string

	// MaxTokens caps the generated response length. Zero selects the
	// gateway's default.
	MaxTokens int64
}

// Completer is the black-box text-generation call. Implementations:
// anthropic, openaigw.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// StreamCompleter is implemented by gateways that can stream the
// response incrementally. The full text is returned after the stream
// completes.
type StreamCompleter interface {
	CompleteStream(ctx context.Context, req Request, fn func(chunk string)) (string, error)
}
