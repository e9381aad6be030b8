// Package config provides configuration for the courseforge service.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// LLM settings
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	// Negotiation settings
	MaxRounds        int
	ProposeRetries   int
	StageConcurrency int
	PathwayCount     int
	StageRunTimeout  time.Duration

	// Policy
	PolicyPath string

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:         getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:      getEnv("DATABASE_URL", "file:courseforge.db?cache=shared&mode=rwc"),
		LLMBaseURL:       getEnv("LLM_BASE_URL", "http://localhost:4000"),
		LLMAPIKey:        getEnv("LLM_API_KEY", ""),
		LLMModel:         getEnv("LLM_MODEL", "gpt-4o"),
		LLMTimeout:       time.Duration(getEnvInt("LLM_TIMEOUT_MS", 120000)) * time.Millisecond,
		MaxRounds:        getEnvInt("NEGOTIATION_MAX_ROUNDS", 5),
		ProposeRetries:   getEnvInt("NEGOTIATION_RETRIES", 2),
		StageConcurrency: getEnvInt("STAGE_CONCURRENCY", 3),
		PathwayCount:     getEnvInt("PATHWAY_COUNT", 1),
		StageRunTimeout:  time.Duration(getEnvInt("STAGE_RUN_TIMEOUT_MS", 7200000)) * time.Millisecond,
		PolicyPath:       getEnv("POLICY_PATH", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
		LogFile:          getEnv("LOG_FILE", ""),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
