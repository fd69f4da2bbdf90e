package config

import (
	"os"
)

type Config struct {
	Port            string
	Environment     string
	SupabaseURL     string
	SupabaseKey     string
	SupabaseDBURL   string
	SupabaseJWKSURL string // Constructed from SupabaseURL + /auth/v1/.well-known/jwks.json
	CORSOrigins     string
	TablePrefix     string
	// Streaming AI endpoints (Supabase Edge Functions)
	AskAIURL    string // chat endpoint: {message, threadId}
	AskAgentURL string // document-scoped endpoint: {question, doc_id?}
	IngestURL   string // post-upload document ingestion trigger
	// Object storage
	StorageBucket string
	// Log directory; empty logs to stdout only
	LogDir string
	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	tablePrefix := getTablePrefix(env)
	supabaseURL := getEnv("SUPABASE_URL", "")

	// Construct collaborator URLs from the Supabase project URL
	jwksURL := supabaseURL + "/auth/v1/.well-known/jwks.json"
	functionsBase := getEnv("FUNCTIONS_URL", supabaseURL+"/functions/v1")

	return &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     env,
		SupabaseURL:     supabaseURL,
		SupabaseKey:     getEnv("SUPABASE_KEY", ""),
		SupabaseDBURL:   getEnv("SUPABASE_DB_URL", ""),
		SupabaseJWKSURL: jwksURL,
		CORSOrigins:     getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:     tablePrefix,
		AskAIURL:        getEnv("ASK_AI_URL", functionsBase+"/ask-ai"),
		AskAgentURL:     getEnv("ASK_AGENT_URL", functionsBase+"/ask-agent"),
		IngestURL:       getEnv("INGEST_URL", functionsBase+"/ingest-document"),
		StorageBucket:   getEnv("STORAGE_BUCKET", "user-files"),
		LogDir:          getEnv("LOG_DIR", ""),
		// Debug defaults to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
