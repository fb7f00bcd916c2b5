package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"resume-wizard/internal/shared/telemetry"
)

const (
	defaultMaxUploadBytes = 10 << 20
	defaultStageTimeout   = 2 * time.Minute
	defaultRateLimitRPS   = 5
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	LogFormat       string
	CORSAllowOrigin []string
	DatabaseURL     string
	UploadDir       string
	MaxUploadBytes  int64
	RateLimitRPS    int

	// Stage commands are split on whitespace; the stage's contract arguments are appended.
	ExtractCommand string
	ParseCommand   string
	ScoreCommand   string
	EnhanceCommand string
	FormatCommand  string
	StageTimeout   time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		telemetry.Warn("config.database_url_missing", map[string]any{"env": env})
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "json")),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:     dbURL,
		UploadDir:       getEnv("UPLOAD_DIR", "./uploads"),
		MaxUploadBytes:  getEnvInt64("MAX_UPLOAD_BYTES", defaultMaxUploadBytes),
		RateLimitRPS:    getEnvRate("RATE_LIMIT_RPS", defaultRateLimitRPS),
		ExtractCommand:  getEnv("EXTRACT_COMMAND", ""),
		ParseCommand:    getEnv("PARSE_COMMAND", "python3 services/resume-parser.py"),
		ScoreCommand:    getEnv("SCORE_COMMAND", "python3 services/resume-generator.py match"),
		EnhanceCommand:  getEnv("ENHANCE_COMMAND", "python3 services/resume-generator.py enhance"),
		FormatCommand:   getEnv("FORMAT_COMMAND", "python3 services/resume-formatter.py"),
		StageTimeout:    getEnvDuration("STAGE_TIMEOUT", defaultStageTimeout),
	}
}

// Command splits a configured command line into argv form.
func Command(raw string) []string {
	return strings.Fields(raw)
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || val <= 0 {
		telemetry.Warn("config.invalid_value", map[string]any{"key": key, "value": raw, "default": def})
		return def
	}
	return val
}

// getEnvRate keeps zero and negative values; they switch rate limiting off.
func getEnvRate(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		telemetry.Warn("config.invalid_value", map[string]any{"key": key, "value": raw, "default": def})
		return def
	}
	if val < 0 {
		return 0
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		telemetry.Warn("config.invalid_value", map[string]any{"key": key, "value": raw, "default": def.String()})
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "test":
		return "test"
	default:
		return "dev"
	}
}

// IsDevLike reports whether env tolerates in-memory fallbacks.
func IsDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}
