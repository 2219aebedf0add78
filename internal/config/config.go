package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Redis    RedisConfig
	Qdrant   QdrantConfig
	Gemini   GeminiConfig
	Pipeline PipelineConfig
	Session  SessionConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	RagLogFilePath     string
	CorsAllowedOrigins string
	NatsURL            string
}

type RedisConfig struct {
	URL string
}

type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

type GeminiConfig struct {
	APIKey              string
	EmbeddingModel      string
	EmbeddingDimensions int
	LLMModel            string
}

type PipelineConfig struct {
	SimilarityThreshold           float64
	HighConfidenceThreshold       float64
	MediumConfidenceThreshold     float64
	CollectionSimilarityThreshold float64
	TimeWeight                    float64
	ContextTokenBudget            int
	ConnectionTimeoutSeconds      int
}

type SessionConfig struct {
	TTLSeconds            int
	MaxMessagesPerSession int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3200"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			RagLogFilePath:     getEnv("RAG_LOG_FILE_PATH", "logs/llm_rag.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Qdrant: QdrantConfig{
			Host:   getEnv("QDRANT_HOST", "localhost"),
			Port:   getEnvAsInt("QDRANT_PORT", 6334),
			APIKey: getEnv("QDRANT_API_KEY", ""),
			UseTLS: getEnvAsBool("QDRANT_USE_TLS", false),
		},
		Gemini: GeminiConfig{
			APIKey:              getEnv("GOOGLE_GEMINI_API_KEY", ""),
			EmbeddingModel:      getEnv("EMBEDDING_MODEL", "text-embedding-004"),
			EmbeddingDimensions: getEnvAsInt("EMBEDDING_DIMENSIONALITY", 768),
			LLMModel:            getEnv("LLM_MODEL", "gemini-2.5-flash"),
		},
		Pipeline: PipelineConfig{
			SimilarityThreshold:           getEnvAsFloat("SIMILARITY_THRESHOLD", 0.7),
			HighConfidenceThreshold:       getEnvAsFloat("HIGH_CONFIDENCE_THRESHOLD", 0.85),
			MediumConfidenceThreshold:     getEnvAsFloat("MEDIUM_CONFIDENCE_THRESHOLD", 0.7),
			CollectionSimilarityThreshold: getEnvAsFloat("COLLECTION_SIMILARITY_THRESHOLD", 0.6),
			TimeWeight:                    getEnvAsFloat("TIME_WEIGHT", 0.3),
			ContextTokenBudget:            getEnvAsInt("CONTEXT_TOKEN_BUDGET", 8000),
			ConnectionTimeoutSeconds:      getEnvAsInt("CONNECTION_TIMEOUT_SECONDS", 30),
		},
		Session: SessionConfig{
			TTLSeconds:            getEnvAsInt("SESSION_TTL_SECONDS", 7200),
			MaxMessagesPerSession: getEnvAsInt("MAX_MESSAGES_PER_SESSION", 16),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
