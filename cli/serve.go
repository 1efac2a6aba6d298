package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"

	"github.com/mnemolabs/mnemo/auth"
	"github.com/mnemolabs/mnemo/core"
	"github.com/mnemolabs/mnemo/engine"
	"github.com/mnemolabs/mnemo/llm"
	llmanthropic "github.com/mnemolabs/mnemo/llm/anthropic"
	"github.com/mnemolabs/mnemo/llm/openaigw"
	"github.com/mnemolabs/mnemo/logging"
	"github.com/mnemolabs/mnemo/memory"
	"github.com/mnemolabs/mnemo/memory/buffer"
	"github.com/mnemolabs/mnemo/memory/buffer/local"
	"github.com/mnemolabs/mnemo/memory/buffer/redisbuf"
	embopenai "github.com/mnemolabs/mnemo/memory/embedder/openai"
	"github.com/mnemolabs/mnemo/memory/store/chromem"
	"github.com/mnemolabs/mnemo/prompt"
	"github.com/mnemolabs/mnemo/server"
)

type serveConfig struct {
	addr           string
	allowedOrigins string

	memoryMode    string // vector, buffer, combined
	collection    string
	dataDir       string
	topK          int64
	contextBudget int64

	embeddingAPIKey  string
	embeddingBaseURL string
	embeddingModel   string
	embeddingDims    int64

	gateway         string // anthropic, openai
	anthropicAPIKey string
	anthropicModel  string
	openaiAPIKey    string
	openaiBaseURL   string
	openaiModel     string

	redisAddr     string
	redisPassword string
	bufferTTL     time.Duration
	bufferTurns   int64

	callTimeout time.Duration

	authVerifyURL string
	noAuthOwner   string
}

func serveCommand() *cli.Command {
	var cfg serveConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP listen address",
			Value:       ":8080",
			Sources:     cli.EnvVars("MNEMO_ADDR"),
			Destination: &cfg.addr,
		},
		&cli.StringFlag{
			Name:        "allowed-origins",
			Usage:       "Comma-separated CORS allowed origins",
			Sources:     cli.EnvVars("MNEMO_ALLOWED_ORIGINS"),
			Destination: &cfg.allowedOrigins,
		},
		&cli.StringFlag{
			Name:        "memory-mode",
			Usage:       "Memory variant: vector, buffer, or combined",
			Value:       "vector",
			Sources:     cli.EnvVars("MNEMO_MEMORY_MODE"),
			Destination: &cfg.memoryMode,
		},
		&cli.StringFlag{
			Name:        "collection",
			Usage:       "Vector collection name",
			Value:       "conversations",
			Sources:     cli.EnvVars("MNEMO_COLLECTION"),
			Destination: &cfg.collection,
		},
		&cli.StringFlag{
			Name:        "data-dir",
			Usage:       "Directory for persistent vector storage (empty = in-memory)",
			Sources:     cli.EnvVars("MNEMO_DATA_DIR"),
			Destination: &cfg.dataDir,
		},
		&cli.IntFlag{
			Name:        "top-k",
			Usage:       "Number of prior turns retrieved per query",
			Value:       memory.DefaultTopK,
			Sources:     cli.EnvVars("MNEMO_TOP_K"),
			Destination: &cfg.topK,
		},
		&cli.IntFlag{
			Name:        "context-budget",
			Usage:       "Character budget for the retrieved history block",
			Value:       prompt.DefaultBudget,
			Sources:     cli.EnvVars("MNEMO_CONTEXT_BUDGET"),
			Destination: &cfg.contextBudget,
		},
		&cli.StringFlag{
			Name:        "embedding-api-key",
			Usage:       "API key for the embedding service",
			Sources:     cli.EnvVars("MNEMO_EMBEDDING_API_KEY", "OPENAI_API_KEY"),
			Destination: &cfg.embeddingAPIKey,
		},
		&cli.StringFlag{
			Name:        "embedding-base-url",
			Usage:       "Override endpoint for OpenAI-compatible embedding providers",
			Sources:     cli.EnvVars("MNEMO_EMBEDDING_BASE_URL"),
			Destination: &cfg.embeddingBaseURL,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Embedding model identifier",
			Value:       "text-embedding-3-small",
			Sources:     cli.EnvVars("MNEMO_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
		&cli.IntFlag{
			Name:        "embedding-dimensions",
			Usage:       "Embedding vector dimension",
			Value:       1536,
			Sources:     cli.EnvVars("MNEMO_EMBEDDING_DIMENSIONS"),
			Destination: &cfg.embeddingDims,
		},
		&cli.StringFlag{
			Name:        "gateway",
			Usage:       "Completion gateway: anthropic or openai",
			Value:       "anthropic",
			Sources:     cli.EnvVars("MNEMO_GATEWAY"),
			Destination: &cfg.gateway,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "anthropic-model",
			Usage:       "Anthropic model identifier",
			Sources:     cli.EnvVars("MNEMO_ANTHROPIC_MODEL"),
			Destination: &cfg.anthropicModel,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key for the completion gateway",
			Sources:     cli.EnvVars("OPENAI_API_KEY"),
			Destination: &cfg.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "openai-base-url",
			Usage:       "Override endpoint for OpenAI-compatible completion providers",
			Sources:     cli.EnvVars("MNEMO_OPENAI_BASE_URL"),
			Destination: &cfg.openaiBaseURL,
		},
		&cli.StringFlag{
			Name:        "openai-model",
			Usage:       "OpenAI model identifier",
			Sources:     cli.EnvVars("MNEMO_OPENAI_MODEL"),
			Destination: &cfg.openaiModel,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address for the externalized buffer and user registry",
			Sources:     cli.EnvVars("MNEMO_REDIS_ADDR"),
			Destination: &cfg.redisAddr,
		},
		&cli.StringFlag{
			Name:        "redis-password",
			Usage:       "Redis password",
			Sources:     cli.EnvVars("MNEMO_REDIS_PASSWORD"),
			Destination: &cfg.redisPassword,
		},
		&cli.DurationFlag{
			Name:        "buffer-ttl",
			Usage:       "Idle lifetime of the short-term conversation buffer",
			Value:       time.Hour,
			Sources:     cli.EnvVars("MNEMO_BUFFER_TTL"),
			Destination: &cfg.bufferTTL,
		},
		&cli.IntFlag{
			Name:        "buffer-max-turns",
			Usage:       "Maximum buffered turns per owner",
			Value:       20,
			Sources:     cli.EnvVars("MNEMO_BUFFER_MAX_TURNS"),
			Destination: &cfg.bufferTurns,
		},
		&cli.DurationFlag{
			Name:        "call-timeout",
			Usage:       "Timeout for each external call",
			Value:       engine.DefaultCallTimeout,
			Sources:     cli.EnvVars("MNEMO_CALL_TIMEOUT"),
			Destination: &cfg.callTimeout,
		},
		&cli.StringFlag{
			Name:        "auth-verify-url",
			Usage:       "Identity service endpoint; enables authenticated-identity mode",
			Sources:     cli.EnvVars("MNEMO_AUTH_VERIFY_URL"),
			Destination: &cfg.authVerifyURL,
		},
		&cli.StringFlag{
			Name:        "no-auth",
			Usage:       "Run every request as the given owner (development only)",
			Sources:     cli.EnvVars("MNEMO_NO_AUTH"),
			Destination: &cfg.noAuthOwner,
		},
	}

	return &cli.Command{
		Name:  "serve",
		Usage: "Start the chat backend",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, &cfg)
		},
	}
}

func serve(ctx context.Context, cfg *serveConfig) error {
	logger := logging.Default()

	var redisClient *redis.Client
	if cfg.redisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("%w: redis ping: %v", core.ErrStoreUnavailable, err)
		}
	}

	buf, err := newBuffer(cfg, redisClient)
	if err != nil {
		return err
	}

	mgr, err := newManager(ctx, cfg, buf)
	if err != nil {
		return err
	}

	completer, err := newCompleter(cfg)
	if err != nil {
		return err
	}

	eng := engine.New(mgr, completer,
		engine.WithAssembler(prompt.New("", int(cfg.contextBudget))),
		engine.WithCallTimeout(cfg.callTimeout),
	)

	opts := []server.Option{}
	if verifier := newVerifier(cfg); verifier != nil {
		opts = append(opts, server.WithVerifier(verifier))
	}
	if redisClient != nil {
		opts = append(opts, server.WithUserRegistry(server.NewRedisRegistry(redisClient)))
	}
	if cfg.allowedOrigins != "" {
		opts = append(opts, server.WithAllowedOrigins(strings.Split(cfg.allowedOrigins, ",")))
	}

	srv := &http.Server{
		Addr:    cfg.addr,
		Handler: server.New(eng, opts...),
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.addr,
			"memory_mode", cfg.memoryMode, "gateway", cfg.gateway)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func newBuffer(cfg *serveConfig, redisClient *redis.Client) (buffer.Buffer, error) {
	if cfg.memoryMode == "vector" {
		return nil, nil
	}
	if redisClient != nil {
		return redisbuf.New(redisClient, redisbuf.Config{
			TTL:      cfg.bufferTTL,
			MaxTurns: int(cfg.bufferTurns),
		}), nil
	}
	return local.New(local.Config{
		TTL:      cfg.bufferTTL,
		MaxTurns: int(cfg.bufferTurns),
	})
}

func newManager(ctx context.Context, cfg *serveConfig, buf buffer.Buffer) (memory.Manager, error) {
	// Buffer mode never embeds, so the embedding credentials are only
	// required when the vector store is in play.
	newStore := func() (memory.Store, memory.Embedder, error) {
		embedder, err := embopenai.New(embopenai.Config{
			APIKey:     cfg.embeddingAPIKey,
			BaseURL:    cfg.embeddingBaseURL,
			Model:      cfg.embeddingModel,
			Dimensions: int(cfg.embeddingDims),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("%w: embedder: %v", core.ErrConfig, err)
		}

		store, err := chromem.New(embedder, chromem.Config{
			Collection: cfg.collection,
			Dimensions: int(cfg.embeddingDims),
			Path:       cfg.dataDir,
		})
		if err != nil {
			return nil, nil, err
		}
		// Collection configuration mismatches are fatal at startup.
		if err := store.EnsureCollection(ctx); err != nil {
			return nil, nil, err
		}
		return store, embedder, nil
	}

	switch cfg.memoryMode {
	case "vector":
		store, embedder, err := newStore()
		if err != nil {
			return nil, err
		}
		return memory.NewVectorManager(store, embedder, int(cfg.topK)), nil
	case "buffer":
		return memory.NewBufferManager(buf), nil
	case "combined":
		store, embedder, err := newStore()
		if err != nil {
			return nil, err
		}
		return memory.NewCombinedManager(store, embedder, buf, int(cfg.topK)), nil
	default:
		return nil, fmt.Errorf("%w: unknown memory mode %q", core.ErrConfig, cfg.memoryMode)
	}
}

func newCompleter(cfg *serveConfig) (llm.Completer, error) {
	switch cfg.gateway {
	case "anthropic":
		return llmanthropic.New(llmanthropic.Config{
			APIKey: cfg.anthropicAPIKey,
			Model:  cfg.anthropicModel,
		})
	case "openai":
		return openaigw.New(openaigw.Config{
			APIKey:  cfg.openaiAPIKey,
			BaseURL: cfg.openaiBaseURL,
			Model:   cfg.openaiModel,
		})
	default:
		return nil, fmt.Errorf("%w: unknown gateway %q", core.ErrConfig, cfg.gateway)
	}
}

func newVerifier(cfg *serveConfig) auth.Verifier {
	if cfg.noAuthOwner != "" {
		return auth.Static{Owner: cfg.noAuthOwner}
	}
	if cfg.authVerifyURL != "" {
		return auth.NewCached(auth.NewRemote(cfg.authVerifyURL, cfg.callTimeout))
	}
	return nil
}
