// Package config loads runtime configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider identifies an LLM backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
	ProviderGemini    Provider = "gemini"
	ProviderBedrock   Provider = "bedrock"
)

// History backends for the optional task history mirror.
const (
	HistoryNone     = "none"
	HistorySurreal  = "surreal"
	HistoryRedis    = "redis"
	HistoryPostgres = "postgres"
)

// Config holds all configuration values.
type Config struct {
	// Storage
	OutputDir string

	// HTTP server / client
	ServerPort  string
	ServerURL   string
	CORSOrigins []string

	// LLM
	LLMProvider     Provider
	LLMModel        string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string
	OllamaHost      string
	BedrockRegion   string

	// Fetching
	FetchTimeout time.Duration
	FetchDelay   time.Duration
	UserAgent    string

	// Tasks
	MaxConcurrent int
	TaskTTL       time.Duration

	// Task history
	HistoryBackend     string
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	DatabaseURL        string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// DefaultUserAgent is sent with every page request.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads configuration from environment variables.
// Values from .env and .env.local are applied first; the process
// environment always wins.
func Load() Config {
	_ = godotenv.Load(".env", ".env.local")

	return Config{
		OutputDir: getEnv("FACTSHEET_OUTPUT_DIR", "factsheets"),

		ServerPort:  getEnv("FACTSHEET_SERVER_PORT", "8000"),
		ServerURL:   getEnv("FACTSHEET_SERVER_URL", ""),
		CORSOrigins: splitList(getEnv("FACTSHEET_CORS_ORIGINS", "http://localhost:8501,http://127.0.0.1:8501")),

		LLMProvider:     Provider(strings.ToLower(getEnv("FACTSHEET_LLM_PROVIDER", string(ProviderOpenAI)))),
		LLMModel:        getEnv("FACTSHEET_LLM_MODEL", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		BedrockRegion:   getEnv("FACTSHEET_BEDROCK_REGION", "us-east-1"),

		FetchTimeout: parseDuration(getEnv("FACTSHEET_FETCH_TIMEOUT", "10s"), 10*time.Second),
		FetchDelay:   parseDuration(getEnv("FACTSHEET_FETCH_DELAY", "1s"), time.Second),
		UserAgent:    getEnv("FACTSHEET_USER_AGENT", DefaultUserAgent),

		MaxConcurrent: parseInt(getEnv("FACTSHEET_MAX_CONCURRENT", "0"), 0),
		TaskTTL:       parseDuration(getEnv("FACTSHEET_TASK_TTL", "24h"), 24*time.Hour),

		HistoryBackend:     strings.ToLower(getEnv("FACTSHEET_HISTORY_BACKEND", HistoryNone)),
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "factsheet"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "tasks"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            parseInt(getEnv("REDIS_DB", "0"), 0),
		DatabaseURL:        getEnv("DATABASE_URL", ""),

		LogFile:  getEnv("FACTSHEET_LOG_FILE", "/tmp/factsheet.log"),
		LogLevel: parseLogLevel(getEnv("FACTSHEET_LOG_LEVEL", "INFO")),
	}
}

// DefaultModel returns the model used when a request does not name one.
func DefaultModel(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderAnthropic:
		return "claude-3-5-haiku-latest"
	case ProviderOllama:
		return "llama3.1"
	case ProviderGemini:
		return "gemini-1.5-flash"
	case ProviderBedrock:
		return "anthropic.claude-3-haiku-20240307-v1:0"
	default:
		return ""
	}
}

// ModelFor returns the configured model, falling back to the provider default.
func (c Config) ModelFor(p Provider) string {
	if c.LLMModel != "" && p == c.LLMProvider {
		return c.LLMModel
	}
	return DefaultModel(p)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
