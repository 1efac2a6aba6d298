// Package memory provides owner-scoped conversation memory for the chat
// engine.
//
// Long-term memory stores every turn as an embedded vector point and
// retrieves the top-k most relevant prior turns for a new query.
// Short-term memory is an ordered buffer of recent turns with a TTL;
// an expired buffer is indistinguishable from an empty one.
//
// Architecture:
//   - Store: vector storage backend (chromem-go embedded database)
//   - Buffer: short-term TTL buffer (ristretto in-process, redis external)
//   - Embedder: text-to-vector conversion (hosted API, mock for tests)
//   - Manager: retrieval variants behind one interface, selected by config
//
// The vector store is the single source of truth for an owner's history.
// No in-process map is authoritative: buffers are caches that may expire
// or be lost on restart without losing correctness.
package memory
