package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	apperrors "notegraph/backend/pkg/errors"
)

// Config holds all application configuration
type Config struct {
	// App
	Env      string
	LogLevel string

	// Storage
	DataDir   string // Directory holding the entity and link records
	NotesFile string // YAML or JSON corpus of sources and notes

	// AI
	LiteLLMURL       string
	ModelID          string
	OpenRouterAPIKey string

	// Extraction
	ExtractTimeout          time.Duration // Per-note budget for the LLM calls
	ExtractConcurrency      int
	MaxEntitiesPerNote      int
	MaxRelationshipsPerNote int

	// Resolution and review
	FuzzyMatchThreshold float64 // Similarity at which a candidate joins an existing entity
	DuplicateThreshold  float64 // Similarity at which two entities are surfaced for review

	// Neo4j mirror (optional)
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "data")

	cfg := &Config{
		Env:                     getEnv("ENV", "development"),
		LogLevel:                getEnv("LOG_LEVEL", ""),
		DataDir:                 dataDir,
		NotesFile:               getEnv("NOTES_FILE", filepath.Join(dataDir, "notes.yaml")),
		LiteLLMURL:              getEnv("LITELLM_URL", "http://localhost:4000"),
		ModelID:                 getEnv("MODEL_ID", "openrouter/anthropic/claude-3.5-sonnet"),
		OpenRouterAPIKey:        getEnv("OPENROUTER_API_KEY", ""),
		ExtractTimeout:          time.Duration(getEnvInt("EXTRACT_TIMEOUT_SECONDS", 60)) * time.Second,
		ExtractConcurrency:      getEnvInt("EXTRACT_CONCURRENCY", 4),
		MaxEntitiesPerNote:      getEnvInt("MAX_ENTITIES_PER_NOTE", 5),
		MaxRelationshipsPerNote: getEnvInt("MAX_RELATIONSHIPS_PER_NOTE", 3),
		FuzzyMatchThreshold:     getEnvFloat("FUZZY_MATCH_THRESHOLD", 0.85),
		DuplicateThreshold:      getEnvFloat("DUPLICATE_THRESHOLD", 0.7),
		Neo4jURI:                getEnv("NEO4J_URI", ""),
		Neo4jUser:               getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:           getEnv("NEO4J_PASSWORD", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return apperrors.NewConfigMissingRequired("DATA_DIR")
	}
	if c.ExtractConcurrency < 1 {
		return apperrors.NewConfigValidationFailed("EXTRACT_CONCURRENCY", "must be at least 1")
	}
	if c.ExtractTimeout <= 0 {
		return apperrors.NewConfigValidationFailed("EXTRACT_TIMEOUT_SECONDS", "must be positive")
	}
	if c.MaxEntitiesPerNote < 1 {
		return apperrors.NewConfigValidationFailed("MAX_ENTITIES_PER_NOTE", "must be at least 1")
	}
	if c.MaxRelationshipsPerNote < 0 {
		return apperrors.NewConfigValidationFailed("MAX_RELATIONSHIPS_PER_NOTE", "cannot be negative")
	}
	if c.FuzzyMatchThreshold <= 0 || c.FuzzyMatchThreshold > 1 {
		return apperrors.NewConfigValidationFailed("FUZZY_MATCH_THRESHOLD", "must be in (0, 1]")
	}
	if c.DuplicateThreshold <= 0 || c.DuplicateThreshold > 1 {
		return apperrors.NewConfigValidationFailed("DUPLICATE_THRESHOLD", "must be in (0, 1]")
	}
	// The mirror is optional, but a URI without credentials is a mistake
	if c.Neo4jURI != "" && c.Neo4jPassword == "" {
		return apperrors.NewConfigMissingRequired("NEO4J_PASSWORD")
	}
	return nil
}

// MirrorEnabled reports whether the Neo4j mirror is configured
func (c *Config) MirrorEnabled() bool {
	return c.Neo4jURI != ""
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
