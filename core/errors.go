package core

import "errors"

// Error kinds surfaced at the API boundary. Handlers and callers match
// these with errors.Is; lower layers wrap them with fmt.Errorf("...: %w").
var (
	// ErrUnauthorized means the bearer credential was missing or rejected
	// by the identity verifier. Never retried.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidInput means the request itself is malformed (empty prompt,
	// bad session id). Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbedding means the embedder rejected the input text. Writes
	// carrying this error are dropped rather than stored as zero vectors.
	ErrEmbedding = errors.New("embedding failure")

	// ErrStoreUnavailable means the vector store or buffer backend was
	// unreachable or timed out. Retryable; reads degrade to empty history.
	ErrStoreUnavailable = errors.New("memory store unavailable")

	// ErrCompletion means the completion gateway call failed or timed out.
	// Always fails the request.
	ErrCompletion = errors.New("completion gateway failure")

	// ErrConfig means a fatal configuration mismatch, such as an existing
	// collection with a different vector dimension. Never auto-corrected.
	ErrConfig = errors.New("configuration error")
)

// Kind returns the stable kind name for an error, or "Internal" when the
// error does not wrap one of the boundary kinds.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrInvalidInput):
		return "InvalidInput"
	case errors.Is(err, ErrEmbedding):
		return "EmbeddingFailure"
	case errors.Is(err, ErrStoreUnavailable):
		return "StoreUnavailable"
	case errors.Is(err, ErrCompletion):
		return "CompletionGatewayFailure"
	case errors.Is(err, ErrConfig):
		return "ConfigurationError"
	default:
		return "Internal"
	}
}
