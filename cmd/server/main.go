package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agentswarm/agentswarm-go/internal/agent"
	"github.com/agentswarm/agentswarm-go/internal/client"
	"github.com/agentswarm/agentswarm-go/internal/config"
	"github.com/agentswarm/agentswarm-go/internal/handler"
	"github.com/agentswarm/agentswarm-go/internal/middleware"
	"github.com/agentswarm/agentswarm-go/internal/service"
	"github.com/agentswarm/agentswarm-go/internal/storage"
	"github.com/agentswarm/agentswarm-go/internal/vectorstore"
	"github.com/agentswarm/agentswarm-go/pkg/logger"
	"github.com/agentswarm/agentswarm-go/pkg/redis"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("server starting", zap.String("service", cfg.Server.Name))

	// Storage: Redis in production, in-memory degraded mode without it.
	var store storage.Store
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewRedisClient(cfg.Redis)
		if err != nil {
			zapLogger.Fatal("failed to connect to redis", zap.Error(err))
		}
		store = storage.NewRedisStore(redisClient, cfg.Redis.Namespace)
	} else {
		zapLogger.Warn("redis disabled, history and cache are in-memory and non-durable")
		store = storage.NewMemoryStore()
	}

	// Retrieval stack: embeddings + in-memory vector index.
	embeddingClient := client.NewEmbeddingClient(cfg.DashScope.APIKey, cfg.DashScope.EmbeddingModel, zapLogger)
	vectorStore := vectorstore.NewMemoryVectorStore(zapLogger)
	retrieval := service.NewRetrievalService(embeddingClient, vectorStore, cfg.Retrieval.MinScore, zapLogger)

	// Warm the knowledge index in the background; the knowledge agent
	// degrades gracefully until it is ready.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := retrieval.Init(ctx); err != nil {
			zapLogger.Warn("knowledge index initialization failed", zap.Error(err))
		}
	}()

	// Synthesis is optional; without it the knowledge agent answers
	// extractively.
	var synth agent.Synthesizer
	if cfg.DashScope.Enabled && cfg.DashScope.APIKey != "" {
		synth = client.NewDashScopeClient(cfg.DashScope.APIKey, cfg.DashScope.Model, zapLogger)
	} else {
		zapLogger.Warn("answer synthesis disabled, knowledge replies are extractive")
	}

	historyService := service.NewHistoryService(store, service.HistoryTTLs{
		Conversation: cfg.Chat.HistoryTTL,
		UserHistory:  cfg.Chat.UserHistoryTTL,
		AgentLogs:    cfg.Chat.AgentLogTTL,
	}, zapLogger)

	sessionService := service.NewSessionService(zapLogger)
	stopCleanup := make(chan struct{})
	sessionService.StartCleanup(30*time.Second, stopCleanup)

	router := agent.NewRouter(zapLogger)
	mathAgent := agent.NewMathAgent(zapLogger)
	knowledgeAgent := agent.NewKnowledgeAgent(
		retrieval,
		synth,
		store,
		cfg.Retrieval.TopK,
		time.Duration(cfg.Chat.AnswerCacheTTL)*time.Second,
		zapLogger,
	)

	chatService := service.NewChatService(
		router,
		mathAgent,
		knowledgeAgent,
		historyService,
		sessionService,
		cfg.Chat.MaxMessageLen,
		zapLogger,
	)

	chatHandler := handler.NewChatHandler(chatService, store, zapLogger)
	historyHandler := handler.NewHistoryHandler(historyService, zapLogger)
	wsHandler := handler.NewWebSocketHandler(sessionService, zapLogger)

	r := gin.Default()
	r.Use(middleware.CORS())

	r.POST("/chat", chatHandler.Chat)
	r.GET("/health", chatHandler.Health)
	r.GET("/ready", chatHandler.Ready)
	r.GET("/history/:user_id", historyHandler.GetUserHistory)
	r.DELETE("/history/:user_id", historyHandler.ClearUserHistory)
	r.DELETE("/history/:user_id/:question_id", historyHandler.RemoveQuestion)
	r.GET("/conversations/:user_id", historyHandler.ListConversations)
	r.GET("/logs/:conversation_id", historyHandler.TailAgentLogs)
	r.GET("/ws", wsHandler.Connect)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		zapLogger.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("shutting down")
	close(stopCleanup)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("forced shutdown", zap.Error(err))
	}

	zapLogger.Info("server stopped")
}
