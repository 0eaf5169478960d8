package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/chat-assistant/internal/domain/chat"
	"github.com/yanqian/chat-assistant/internal/domain/qa"
	"github.com/yanqian/chat-assistant/internal/infra/config"
	"github.com/yanqian/chat-assistant/internal/infra/llm/chatgpt"
	"github.com/yanqian/chat-assistant/internal/infra/pipeline"
	"github.com/yanqian/chat-assistant/internal/infra/qacache"
	"github.com/yanqian/chat-assistant/internal/infra/qarepo"
	"github.com/yanqian/chat-assistant/internal/infra/resolver"
	"github.com/yanqian/chat-assistant/internal/infra/vectorindex"
	httpiface "github.com/yanqian/chat-assistant/internal/interface/http"
)

func provideEngineConfig(*config.Config) qa.Config {
	return qa.Config{}
}

func provideResolverConfig(cfg *config.Config) resolver.Config {
	return resolver.Config{
		Model:               cfg.LLM.Model,
		Temperature:         cfg.LLM.Temperature,
		Prompt:              cfg.QA.Prompt,
		SimilarityThreshold: cfg.QA.SimilarityThreshold,
		ChatGPTConfidence:   cfg.QA.ChatGPTConfidence,
		MaxAnswerTokens:     cfg.LLM.MaxAnswerTokens,
	}
}

func provideChatGPTClient(cfg *config.Config) (*chatgpt.Client, error) {
	return chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL)
}

// providePostgresPool returns nil when postgres is not configured or not
// reachable; dependents fall back to their in-memory implementations.
func providePostgresPool(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	dsn := strings.TrimSpace(cfg.QA.Postgres.DSN)
	if dsn == "" {
		logger.Info("postgres dsn not set, using in-memory storage")
		return nil
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using in-memory storage", "error", err)
		return nil
	}
	if cfg.QA.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.QA.Postgres.MaxConns
	}
	if cfg.QA.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.QA.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using in-memory storage", "error", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using in-memory storage", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

func provideRecordRepository(pool *pgxpool.Pool, logger *slog.Logger) qa.RecordRepository {
	if pool == nil {
		return qarepo.NewMemoryRepository()
	}
	logger.Info("postgres record repository enabled")
	return qarepo.NewPostgresRepository(pool)
}

func provideAnswerCache(cfg *config.Config, logger *slog.Logger) qa.AnswerCache {
	if cfg.QA.Valkey.Enabled {
		opt, err := buildValkeyOptions(cfg)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to memory cache", "error", err)
			return qacache.NewMemoryCache(cfg.QA.CacheTTL)
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, falling back to memory cache", "error", err)
			return qacache.NewMemoryCache(cfg.QA.CacheTTL)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			logger.Error("valkey ping failed, falling back to memory cache", "error", err)
		} else {
			logger.Info("valkey answer cache enabled", "addr", cfg.QA.Valkey.Addr)
			return qacache.NewValkeyCache(client, "qa", cfg.QA.CacheTTL)
		}
	}
	return qacache.NewMemoryCache(cfg.QA.CacheTTL)
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(cfg.QA.Valkey.Addr, "://") {
		opt, err = valkey.ParseURL(cfg.QA.Valkey.Addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{cfg.QA.Valkey.Addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}

func provideEmbedder(cfg *config.Config, client *chatgpt.Client, logger *slog.Logger) vectorindex.Embedder {
	model := strings.TrimSpace(cfg.LLM.EmbeddingModel)
	if model == "" {
		logger.Info("embedding model not set, using deterministic embedder")
		return vectorindex.NewDeterministicEmbedder(0)
	}
	return vectorindex.NewChatGPTEmbedder(client, model)
}

func provideVectorIndex(pool *pgxpool.Pool, embedder vectorindex.Embedder, logger *slog.Logger) qa.VectorIndex {
	if pool == nil {
		return vectorindex.NewMemoryIndex(embedder)
	}
	logger.Info("pgvector similarity index enabled")
	return vectorindex.NewPostgresIndex(pool, embedder)
}

func provideChannelFactory(cfg *config.Config, res chat.Resolver, engine qa.Service, logger *slog.Logger) httpiface.ChannelFactory {
	return func(deliver func(frame []byte)) chat.Channel {
		return pipeline.NewChannel(res, engine, deliver, cfg.Chat.ResolveTimeout, logger)
	}
}

func provideWSGateway(cfg *config.Config, manager *chat.Manager, channels httpiface.ChannelFactory, logger *slog.Logger) *httpiface.WSGateway {
	return httpiface.NewWSGateway(manager, channels, cfg.Chat.PingInterval, cfg.Chat.MaxMessageSize, logger)
}
