//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/chat-assistant/internal/bootstrap"
	"github.com/yanqian/chat-assistant/internal/domain/chat"
	"github.com/yanqian/chat-assistant/internal/domain/qa"
	"github.com/yanqian/chat-assistant/internal/infra/config"
	"github.com/yanqian/chat-assistant/internal/infra/llm/chatgpt"
	"github.com/yanqian/chat-assistant/internal/infra/resolver"
	httpiface "github.com/yanqian/chat-assistant/internal/interface/http"
	"github.com/yanqian/chat-assistant/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideEngineConfig,
		provideResolverConfig,
		provideChatGPTClient,
		providePostgresPool,
		provideRecordRepository,
		provideAnswerCache,
		provideEmbedder,
		provideVectorIndex,
		qa.NewService,
		resolver.New,
		chat.NewManager,
		provideChannelFactory,
		provideWSGateway,
		wire.Bind(new(resolver.ChatClient), new(*chatgpt.Client)),
		wire.Bind(new(chat.Resolver), new(*resolver.Resolver)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
