package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	ServerPort  string

	// Ordered provider credential pool. Keys are tried in the order
	// they appear; the router advances on quota/auth failures.
	GeminiAPIKeys []string
	OpenAIAPIKeys []string

	CacheTTL        time.Duration
	ExecuteLimit    int
	CLILimit        int
	RateWindow      time.Duration
	ProviderTimeout time.Duration
	PipelineTimeout time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:       getEnv("JWT_SECRET", "secret"),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		GeminiAPIKeys:   splitKeys(getEnv("GEMINI_API_KEYS", os.Getenv("GEMINI_API_KEY"))),
		OpenAIAPIKeys:   splitKeys(getEnv("OPENAI_API_KEYS", os.Getenv("OPENAI_API_KEY"))),
		CacheTTL:        getEnvDuration("CACHE_TTL_SECONDS", 3600),
		ExecuteLimit:    getEnvInt("EXECUTE_RATE_LIMIT", 120),
		CLILimit:        getEnvInt("CLI_RATE_LIMIT", 60),
		RateWindow:      getEnvDuration("RATE_WINDOW_SECONDS", 60),
		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT_SECONDS", 30),
		PipelineTimeout: getEnvDuration("PIPELINE_TIMEOUT_SECONDS", 45),
	}

	if len(cfg.GeminiAPIKeys) == 0 {
		return nil, fmt.Errorf("at least one Gemini API key is required (GEMINI_API_KEYS)")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}

func splitKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
