// Package engine orchestrates one chat request: load relevant memory,
// assemble a bounded prompt, call the completion gateway, and record the
// new turns.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mnemolabs/mnemo/core"
	"github.com/mnemolabs/mnemo/llm"
	"github.com/mnemolabs/mnemo/logging"
	"github.com/mnemolabs/mnemo/memory"
	"github.com/mnemolabs/mnemo/prompt"
)

// DefaultCallTimeout bounds each external call (embedder, store,
// completion gateway) unless configured otherwise.
const DefaultCallTimeout = 30 * time.Second

// Engine runs the retrieve-assemble-complete-record cycle. Each request
// is an independent unit of work; the engine holds no per-owner state,
// so concurrent requests only share the memory backend.
type Engine struct {
	memory      memory.Manager
	completer   llm.Completer
	assembler   *prompt.Assembler
	callTimeout time.Duration

	writeFailures atomic.Int64
}

// Option configures the engine.
type Option func(*Engine)

// WithAssembler sets a custom context assembler.
func WithAssembler(a *prompt.Assembler) Option {
	return func(e *Engine) {
		e.assembler = a
	}
}

// WithCallTimeout bounds each external call.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.callTimeout = d
	}
}

// New creates an engine.
func New(mgr memory.Manager, completer llm.Completer, opts ...Option) *Engine {
	e := &Engine{
		memory:      mgr,
		completer:   completer,
		assembler:   prompt.New("", 0),
		callTimeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Output is the result of one generate call.
type Output struct {
	// Text is the generated response.
	Text string

	// Degraded is true when context retrieval failed and the prompt was
	// assembled with empty history.
	Degraded bool

	// WriteFailed is true when recording a turn failed after the
	// response was generated; the response is still valid.
	WriteFailed bool
}

// Generate handles one turn for the owner. The human turn is recorded
// before the completion call, the assistant turn after it: a crash in
// between leaves an unanswered human turn, which is a valid history
// state. A retrieval failure degrades to empty context rather than
// failing the request; a completion failure always fails it.
func (e *Engine) Generate(ctx context.Context, owner, promptText string, maxTokens int64) (*Output, error) {
	return e.generate(ctx, owner, promptText, maxTokens, nil)
}

// GenerateStream is Generate with incremental delivery of the response
// through fn. Gateways without streaming support fall back to a single
// chunk.
func (e *Engine) GenerateStream(ctx context.Context, owner, promptText string, maxTokens int64, fn func(chunk string)) (*Output, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil stream callback", core.ErrInvalidInput)
	}
	return e.generate(ctx, owner, promptText, maxTokens, fn)
}

func (e *Engine) generate(ctx context.Context, owner, promptText string, maxTokens int64, stream func(chunk string)) (*Output, error) {
	logger := logging.From(ctx)

	promptText = strings.TrimSpace(promptText)
	if promptText == "" {
		return nil, fmt.Errorf("%w: empty prompt", core.ErrInvalidInput)
	}
	if owner == "" {
		return nil, fmt.Errorf("%w: empty owner", core.ErrInvalidInput)
	}

	out := &Output{}

	// Load context. Losing memory is less harmful than losing
	// availability, so retrieval failures degrade to empty history.
	history, err := e.loadContext(ctx, owner, promptText)
	if err != nil {
		if !isDegradable(err) {
			return nil, err
		}
		logger.Warn("context retrieval failed, proceeding without history",
			"owner", owner, "error", err)
		history = ""
		out.Degraded = true
	}

	// Record the human turn before the completion call so the next
	// request can observe it.
	if err := e.recordTurn(ctx, owner, promptText, ""); err != nil {
		logger.Warn("failed to record human turn", "owner", owner, "error", err)
		e.writeFailures.Add(1)
		out.WriteFailed = true
	}

	assembled := e.assembler.Assemble(history, promptText)

	text, err := e.complete(ctx, llm.Request{Prompt: assembled, MaxTokens: maxTokens}, stream)
	if err != nil {
		if errors.Is(err, core.ErrCompletion) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", core.ErrCompletion, err)
	}
	out.Text = text

	if err := e.recordTurn(ctx, owner, "", text); err != nil {
		logger.Warn("failed to record assistant turn", "owner", owner, "error", err)
		e.writeFailures.Add(1)
		out.WriteFailed = true
	}

	return out, nil
}

// Clear removes all memory for the owner.
func (e *Engine) Clear(ctx context.Context, owner string) error {
	if owner == "" {
		return fmt.Errorf("%w: empty owner", core.ErrInvalidInput)
	}
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return e.memory.Clear(ctx, owner)
}

// WriteFailures reports how many turn writes have failed since startup.
func (e *Engine) WriteFailures() int64 {
	return e.writeFailures.Load()
}

func (e *Engine) loadContext(ctx context.Context, owner, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return e.memory.LoadContext(ctx, owner, query)
}

func (e *Engine) recordTurn(ctx context.Context, owner, human, assistant string) error {
	// Acknowledged writes are never rolled back, so the write context is
	// detached from request cancellation but still bounded.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.callTimeout)
	defer cancel()
	return e.memory.RecordTurn(ctx, owner, human, assistant)
}

func (e *Engine) complete(ctx context.Context, req llm.Request, stream func(chunk string)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	if stream != nil {
		if sc, ok := e.completer.(llm.StreamCompleter); ok {
			return sc.CompleteStream(ctx, req, stream)
		}
	}

	text, err := e.completer.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if stream != nil {
		stream(text)
	}
	return text, nil
}

func isDegradable(err error) bool {
	return errors.Is(err, core.ErrEmbedding) || errors.Is(err, core.ErrStoreUnavailable)
}
