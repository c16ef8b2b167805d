package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// OpenAI (paragraph/script generation)
	OpenAIKey   string
	OpenAIModel string

	// ElevenLabs (TTS for the avatar render fallback path)
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	ElevenLabsModelID string

	// HeyGen (avatar video rendering)
	HeyGenKey      string
	HeyGenAvatarID string // default look when a request does not name one

	// Airtable (request record sync)
	AirtableToken  string
	AirtableBaseID string
	AirtableTable  string

	// Google (Sheets write-back + Drive upload). Bearer token; empty = stub.
	GoogleAPIToken string
	GDriveFolderID string

	// Brand scheduling defaults
	BrandTimezone string
	PostWindows   string // comma-separated HH:MM slots

	// Files
	UploadDir  string // uploaded source spreadsheets
	ResultsDir string // per-job result artifacts

	// Batch pipeline
	DefaultBatchSize     int
	MaxConcurrentBatches int

	// Worker
	MaxConcurrentJobs int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "8080"),
		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:      getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		OpenAIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		ElevenLabsKey:      getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:  getEnv("ELEVENLABS_DEFAULT_VOICE_ID", "EXAVITQu4vr4xnSDxMaL"),
		ElevenLabsModelID:  getEnv("ELEVENLABS_MODEL_ID", "eleven_monolingual_v1"),
		HeyGenKey:          getEnv("HEYGEN_API_KEY", ""),
		HeyGenAvatarID:     getEnv("HEYGEN_AVATAR_ID", ""),
		AirtableToken:      getEnv("AIRTABLE_TOKEN", ""),
		AirtableBaseID:     getEnv("AIRTABLE_BASE_ID", ""),
		AirtableTable:      getEnv("AIRTABLE_TABLE", "Requests"),
		GoogleAPIToken:     getEnv("GOOGLE_API_TOKEN", ""),
		GDriveFolderID:     getEnv("GDRIVE_FOLDER_ID", ""),
		BrandTimezone:      getEnv("BRAND_TIMEZONE", "America/New_York"),
		PostWindows:        getEnv("POST_WINDOWS", "08:00,13:00,20:00"),
		UploadDir:          getEnv("UPLOAD_DIR", "uploads/sources"),
		ResultsDir:         getEnv("RESULTS_DIR", "uploads/results"),

		DefaultBatchSize:     getEnvInt("DEFAULT_BATCH_SIZE", 25),
		MaxConcurrentBatches: getEnvInt("MAX_CONCURRENT_BATCHES", 4),
		MaxConcurrentJobs:    getEnvInt("MAX_CONCURRENT_JOBS", 5),
	}

	// Only the database is hard-required. Vendor credentials fall back to
	// stub clients so the pipeline stays runnable in development.
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.DefaultBatchSize < 1 {
		return nil, fmt.Errorf("DEFAULT_BATCH_SIZE must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
