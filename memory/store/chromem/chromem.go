// Package chromem adapts chromem-go, a pure Go embedded vector database,
// as the long-term conversation store.
package chromem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/mnemolabs/mnemo/core"
	"github.com/mnemolabs/mnemo/logging"
	"github.com/mnemolabs/mnemo/memory"
)

// Metadata keys stored with every point payload.
const (
	metaOwner     = "owner"
	metaRole      = "role"
	metaCreatedAt = "created_at"
)

// Config configures the store.
type Config struct {
	// Collection is the collection name. One logical collection per
	// deployment; owner isolation is enforced by a payload filter.
	Collection string

	// Dimensions is the fixed vector dimension. Must match the embedder's
	// output; fixed at collection creation.
	Dimensions int

	// Path, when set, backs the database with an on-disk directory so
	// memory survives restarts. Empty means in-memory only.
	Path string
}

// Store implements memory.Store on chromem-go. The similarity metric is
// cosine, chromem's default.
type Store struct {
	db       *chromem.DB
	embedder memory.Embedder
	cfg      Config

	mu  sync.Mutex
	col *chromem.Collection
}

// New creates a store. The embedder is used to embed message content on
// writes that carry no vector; its dimension must equal cfg.Dimensions.
func New(embedder memory.Embedder, cfg Config) (*Store, error) {
	if cfg.Collection == "" {
		cfg.Collection = "conversations"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = embedder.Dimensions()
	}
	if embedder.Dimensions() != cfg.Dimensions {
		return nil, fmt.Errorf("%w: embedder produces %d dimensions, collection expects %d",
			core.ErrConfig, embedder.Dimensions(), cfg.Dimensions)
	}

	var db *chromem.DB
	if cfg.Path != "" {
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("open persistent db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	return &Store{db: db, embedder: embedder, cfg: cfg}, nil
}

// EnsureCollection creates the collection if absent. GetOrCreateCollection
// makes a concurrent duplicate create indistinguishable from success, so
// racing first-requests are safe. The recorded dimension must match the
// configured one; a mismatch is fatal, never a silent migration.
func (s *Store) EnsureCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.col != nil {
		return nil
	}

	if s.cfg.Path != "" {
		if err := s.checkRecordedConfig(); err != nil {
			return err
		}
	}

	meta := map[string]string{
		"dimensions": fmt.Sprintf("%d", s.cfg.Dimensions),
		"metric":     "cosine",
	}
	col, err := s.db.GetOrCreateCollection(s.cfg.Collection, meta, nil)
	if err != nil {
		return fmt.Errorf("%w: create collection %q: %v", core.ErrStoreUnavailable, s.cfg.Collection, err)
	}

	if s.cfg.Path != "" {
		if err := s.recordConfig(); err != nil {
			return err
		}
	}

	s.col = col
	return nil
}

// collectionConfig is the recorded shape of a persistent collection.
// chromem does not expose collection metadata for reading back, so the
// dimension is recorded in a sidecar file next to the database files and
// checked on every reopen.
type collectionConfig struct {
	Collection string `json:"collection"`
	Dimensions int    `json:"dimensions"`
	Metric     string `json:"metric"`
}

func (s *Store) configPath() string {
	return filepath.Join(s.cfg.Path, s.cfg.Collection+".config.json")
}

func (s *Store) checkRecordedConfig() error {
	data, err := os.ReadFile(s.configPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read collection config: %v", core.ErrStoreUnavailable, err)
	}

	var recorded collectionConfig
	if err := json.Unmarshal(data, &recorded); err != nil {
		return fmt.Errorf("%w: parse collection config: %v", core.ErrStoreUnavailable, err)
	}
	if recorded.Dimensions != s.cfg.Dimensions {
		return fmt.Errorf("%w: collection %q holds %d-dimension vectors, configured for %d",
			core.ErrConfig, s.cfg.Collection, recorded.Dimensions, s.cfg.Dimensions)
	}
	return nil
}

func (s *Store) recordConfig() error {
	data, err := json.Marshal(collectionConfig{
		Collection: s.cfg.Collection,
		Dimensions: s.cfg.Dimensions,
		Metric:     "cosine",
	})
	if err != nil {
		return fmt.Errorf("marshal collection config: %w", err)
	}
	if err := os.WriteFile(s.configPath(), data, 0o644); err != nil {
		return fmt.Errorf("%w: record collection config: %v", core.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) collection(ctx context.Context) (*chromem.Collection, error) {
	s.mu.Lock()
	col := s.col
	s.mu.Unlock()
	if col != nil {
		return col, nil
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.col, nil
}

// Upsert writes one message point. Content is embedded when the message
// carries no vector; empty content is rejected rather than stored as a
// zero vector.
func (s *Store) Upsert(ctx context.Context, msg *core.Message) error {
	if strings.TrimSpace(msg.Content) == "" {
		return fmt.Errorf("%w: empty message content", core.ErrEmbedding)
	}
	if msg.Owner == "" {
		return fmt.Errorf("%w: message has no owner", core.ErrInvalidInput)
	}

	col, err := s.collection(ctx)
	if err != nil {
		return err
	}

	vec := msg.Vector
	if len(vec) == 0 {
		vec, err = s.embedder.Embed(ctx, msg.Content)
		if err != nil {
			return fmt.Errorf("%w: embed content: %v", core.ErrEmbedding, err)
		}
	}
	if len(vec) != s.cfg.Dimensions {
		return fmt.Errorf("%w: vector has %d dimensions, collection expects %d",
			core.ErrConfig, len(vec), s.cfg.Dimensions)
	}

	doc := chromem.Document{
		ID:        msg.ID,
		Content:   msg.Content,
		Embedding: vec,
		Metadata: map[string]string{
			metaOwner:     msg.Owner,
			metaRole:      string(msg.Role),
			metaCreatedAt: msg.CreatedAt.Format(time.RFC3339Nano),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("%w: add document: %v", core.ErrStoreUnavailable, err)
	}

	logging.From(ctx).Debug("stored message point",
		"id", msg.ID, "owner", msg.Owner, "role", msg.Role)
	return nil
}

// Search returns up to k points owned by owner, most similar first, ties
// broken by the more recent timestamp. An owner with fewer than k points
// gets a short result, not an error.
func (s *Store) Search(ctx context.Context, owner string, queryVector []float32, k int) ([]*core.Message, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(queryVector) != s.cfg.Dimensions {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, collection expects %d",
			core.ErrConfig, len(queryVector), s.cfg.Dimensions)
	}

	col, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}

	where := map[string]string{metaOwner: owner}

	// chromem rejects nResults larger than the number of matching
	// documents, so walk the limit down until the query succeeds.
	if n := col.Count(); k > n {
		k = n
	}
	var results []chromem.Result
	for limit := k; limit >= 1; limit-- {
		results, err = col.QueryEmbedding(ctx, queryVector, limit, where, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if limit == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("%w: query: %v", core.ErrStoreUnavailable, err)
	}

	msgs := make([]*core.Message, 0, len(results))
	sims := make(map[string]float32, len(results))
	for _, res := range results {
		if res.Metadata[metaOwner] != owner {
			// Filter is authoritative; skip anything that slips through.
			continue
		}
		createdAt, _ := time.Parse(time.RFC3339Nano, res.Metadata[metaCreatedAt])
		msg := &core.Message{
			ID:        res.ID,
			Owner:     owner,
			Role:      core.Role(res.Metadata[metaRole]),
			Content:   res.Content,
			Vector:    res.Embedding,
			CreatedAt: createdAt,
		}
		sims[msg.ID] = res.Similarity
		msgs = append(msgs, msg)
	}

	// chromem orders by similarity; re-sort to break ties newest first.
	sort.SliceStable(msgs, func(i, j int) bool {
		if sims[msgs[i].ID] != sims[msgs[j].ID] {
			return sims[msgs[i].ID] > sims[msgs[j].ID]
		}
		return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
	})

	return msgs, nil
}

// DeleteAll removes every point owned by owner in one call against the
// collection, so a subsequent Search sees none of them.
func (s *Store) DeleteAll(ctx context.Context, owner string) error {
	col, err := s.collection(ctx)
	if err != nil {
		return err
	}

	if err := col.Delete(ctx, map[string]string{metaOwner: owner}, nil); err != nil {
		return fmt.Errorf("%w: delete owner points: %v", core.ErrStoreUnavailable, err)
	}

	logging.From(ctx).Info("cleared owner memory", "owner", owner)
	return nil
}

// Close releases resources. The in-memory database has nothing to close;
// the persistent variant flushes on every write.
func (s *Store) Close() error {
	return nil
}

func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
