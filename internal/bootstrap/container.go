package bootstrap

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"ai-rag-be/internal/config"
	"ai-rag-be/internal/controller"
	"ai-rag-be/internal/pkg/logger"
	"ai-rag-be/internal/service"
	"ai-rag-be/pkg/embedding"
	"ai-rag-be/pkg/llm"
	pktNats "ai-rag-be/pkg/nats"
	"ai-rag-be/pkg/rag/answer"
	"ai-rag-be/pkg/rag/arbiter"
	"ai-rag-be/pkg/rag/compress"
	"ai-rag-be/pkg/rag/conflict"
	"ai-rag-be/pkg/rag/enhance"
	"ai-rag-be/pkg/rag/executor"
	"ai-rag-be/pkg/rag/router"
	"ai-rag-be/pkg/rag/search"
	"ai-rag-be/pkg/session"
	"ai-rag-be/pkg/vector"
)

type Container struct {
	// Controllers
	RagController     controller.IRagController
	SessionController controller.ISessionController

	// Exposed for graceful shutdown
	SysLogger     logger.ILogger
	NatsPublisher *pktNats.Publisher
}

func NewContainer(cfg *config.Config) *Container {
	ctx := context.Background()

	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	ragLogger := initRagLogger(cfg.App.RagLogFilePath)

	// 2. Upstream clients
	embedder, err := embedding.NewGeminiProvider(ctx, cfg.Gemini.APIKey,
		cfg.Gemini.EmbeddingModel, int32(cfg.Gemini.EmbeddingDimensions))
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize embedding provider: %v", err)
	}

	llmProvider, err := llm.NewGeminiProvider(ctx, cfg.Gemini.APIKey, cfg.Gemini.LLMModel)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM provider: %v", err)
	}
	log.Printf("[INFO] Using LLM model: %s", cfg.Gemini.LLMModel)

	vectors, err := vector.NewQdrantStore(vector.QdrantConfig{
		Host:   cfg.Qdrant.Host,
		Port:   cfg.Qdrant.Port,
		APIKey: cfg.Qdrant.APIKey,
		UseTLS: cfg.Qdrant.UseTLS,
	})
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize Qdrant client: %v", err)
	}

	// Redis-backed sessions, in-memory when Redis is unreachable
	var kv session.KV
	redisKV, err := session.NewRedisKV(cfg.Redis.URL)
	if err == nil {
		if pingErr := redisKV.Ping(ctx); pingErr != nil {
			log.Printf("[WARN] Redis unreachable, using in-memory sessions: %v", pingErr)
			kv = session.NewMemoryKV()
		} else {
			kv = redisKV
		}
	} else {
		log.Printf("[WARN] Invalid Redis URL, using in-memory sessions: %v", err)
		kv = session.NewMemoryKV()
	}
	sessions := session.NewManager(kv,
		time.Duration(cfg.Session.TTLSeconds)*time.Second,
		cfg.Session.MaxMessagesPerSession,
		ragLogger,
	)

	// NATS (optional, events disabled when no URL configured)
	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		}
	}

	// 3. Pipeline components
	pipeline := executor.NewPipeline(
		router.NewCollectionRouter(embedder, cfg.Pipeline.CollectionSimilarityThreshold, ragLogger),
		enhance.NewEnhancer(llmProvider, ragLogger),
		search.NewConcurrentRetriever(embedder, vectors, ragLogger),
		compress.NewCompressor(llmProvider, cfg.Pipeline.SimilarityThreshold,
			cfg.Pipeline.HighConfidenceThreshold, ragLogger),
		arbiter.NewArbiter(llmProvider, cfg.Pipeline.HighConfidenceThreshold,
			cfg.Pipeline.MediumConfidenceThreshold, ragLogger),
		conflict.NewResolver(llmProvider, ragLogger),
		answer.NewSynthesizer(llmProvider, ragLogger),
		vectors,
		executor.Config{
			TimeWeight:         cfg.Pipeline.TimeWeight,
			ContextTokenBudget: cfg.Pipeline.ContextTokenBudget,
			CallTimeout:        time.Duration(cfg.Pipeline.ConnectionTimeoutSeconds) * time.Second,
		},
		ragLogger,
	)

	// 4. Services
	var publisher service.EventPublisher
	if natsPub != nil {
		publisher = natsPub
	}
	ragService := service.NewRagService(pipeline, sessions, vectors, publisher, sysLogger)
	sessionService := service.NewSessionService(sessions)

	// 5. Controllers
	return &Container{
		RagController:     controller.NewRagController(ragService),
		SessionController: controller.NewSessionController(sessionService),
		SysLogger:         sysLogger,
		NatsPublisher:     natsPub,
	}
}

// initRagLogger writes the pipeline trace to its own file so the main
// log stays clean; falls back to stdout when the file cannot be opened.
func initRagLogger(logPath string) *log.Logger {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, "[LLM-RAG] ", log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}
