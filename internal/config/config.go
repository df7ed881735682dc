// File: internal/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultModelID is substituted whenever a requested model is absent from the catalog.
const DefaultModelID = "meta-llama/llama-3.2-11b-vision-instruct:free"

type Config struct {
	ServerPort   string
	Environment  string
	LogLevel     string
	DBDriver     string
	DBDSN        string
	JWTSecretKey string

	// OpenAI-compatible provider (OpenRouter by default).
	ProviderAPIKey   string
	ProviderBaseURL  string
	ProviderAppURL   string
	ProviderAppTitle string
	DefaultModel     string

	ModelCacheTTL    time.Duration
	ProviderTimeout  time.Duration
	StreamTimeout    time.Duration
	ChatHistoryLimit int
	Timezone         string

	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from environment variables or .env file.
func Load() *Config {
	env := os.Getenv("ENV")
	if strings.ToLower(env) != "production" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found; continuing with environment variables")
		}
	}

	cfg := &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		Environment:  env,
		LogLevel:     getEnv("LOG_LEVEL", "INFO"),
		DBDriver:     getEnv("DB_DRIVER", "sqlite"),
		DBDSN:        getEnv("DB_DSN", "chatrelay.db"),
		JWTSecretKey: getEnv("JWT_SECRET_KEY", ""),

		ProviderAPIKey:   getEnv("OPENROUTER_API_KEY", ""),
		ProviderBaseURL:  getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		ProviderAppURL:   getEnv("OPENROUTER_APP_URL", ""),
		ProviderAppTitle: getEnv("OPENROUTER_APP_TITLE", "Chat Relay"),
		DefaultModel:     getEnv("DEFAULT_MODEL", DefaultModelID),

		ModelCacheTTL:    getEnvAsDuration("MODEL_CACHE_TTL", time.Hour),
		ProviderTimeout:  getEnvAsDuration("PROVIDER_TIMEOUT", 120*time.Second),
		StreamTimeout:    getEnvAsDuration("STREAM_TIMEOUT", 5*time.Minute),
		ChatHistoryLimit: getEnvAsInt("CHAT_HISTORY_LIMIT", 0), // 0 sends the full history
		Timezone:         getEnv("TIMEZONE", "Local"),

		CORSOrigins:    getEnvAsList("CORS_ORIGINS", []string{"*"}),
		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 1),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 5),
	}

	// Validation for production environments
	if cfg.IsProduction() {
		missing := []string{}
		if cfg.JWTSecretKey == "" {
			missing = append(missing, "JWT_SECRET_KEY")
		}
		if cfg.ProviderAPIKey == "" {
			missing = append(missing, "OPENROUTER_API_KEY")
		}
		if len(missing) > 0 {
			log.Fatalf("Missing required production environment variables: %v", missing)
		}
	}

	return cfg
}

func (c *Config) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// Location resolves Timezone, falling back to the server's local zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("Warning: unknown TIMEZONE %q, using local time", c.Timezone)
		return time.Local
	}
	return loc
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an env var as an integer, with a fallback.
func getEnvAsInt(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(strValue)
	if err != nil {
		log.Printf("Warning: could not parse env var %s as integer. Using default value.", key)
		return defaultValue
	}
	return intValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		log.Printf("Warning: could not parse env var %s as number. Using default value.", key)
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("90s", "1h").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(strValue)
	if err != nil || value <= 0 {
		log.Printf("Warning: could not parse env var %s as duration. Using default value.", key)
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(strValue, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
