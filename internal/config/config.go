// Package config provides centralized configuration for the aiworkspace server.
//
// Values are resolved in order: environment variables, then .env.local
// (never overriding the real environment), then an optional TOML file named
// by CONFIG_FILE, then built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all server configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string

	// UploadDir holds input temporaries and generated audio.
	UploadDir string

	// DBPath is the path to the SQLite artifact ledger.
	DBPath string

	// ArtifactTTL is how long generated audio stays servable.
	ArtifactTTL time.Duration

	// PurgeSchedule is the cron spec of the janitor.
	PurgeSchedule string

	// MaxUploadBytes caps multipart uploads.
	MaxUploadBytes int64

	// MaxConcurrentJobs bounds simultaneous engine calls.
	MaxConcurrentJobs int64

	// SimulatedLatency enables the artificial delays of the stub engines.
	SimulatedLatency bool

	// UseRealTranslator selects Google Translate over the echo stub.
	UseRealTranslator bool

	// UseRealSpeech selects Google TTS over the silent stub.
	UseRealSpeech bool

	// OpenAIKey enables the chat-model text generator when set.
	OpenAIKey string

	// OpenAIBaseURL points at any OpenAI-compatible endpoint.
	OpenAIBaseURL string

	// OpenAIModel is the model identifier for completions.
	OpenAIModel string

	// HTTPTimeout is the timeout for outgoing collaborator requests.
	HTTPTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration

	// CORSOrigin is the allowed CORS origin.
	CORSOrigin string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// LogFormat is "text" or "json".
	LogFormat string
}

// fileConfig mirrors Config for the optional TOML file. Durations are
// strings in time.ParseDuration syntax.
type fileConfig struct {
	Server struct {
		Port            string `toml:"port"`
		CORSOrigin      string `toml:"cors_origin"`
		ShutdownTimeout string `toml:"shutdown_timeout"`
		MaxUploadBytes  int64  `toml:"max_upload_bytes"`
		MaxConcurrent   int64  `toml:"max_concurrent_jobs"`
	} `toml:"server"`
	Storage struct {
		UploadDir     string `toml:"upload_dir"`
		DBPath        string `toml:"db_path"`
		ArtifactTTL   string `toml:"artifact_ttl"`
		PurgeSchedule string `toml:"purge_schedule"`
	} `toml:"storage"`
	Engines struct {
		SimulatedLatency  *bool  `toml:"simulated_latency"`
		UseRealTranslator *bool  `toml:"use_real_translator"`
		UseRealSpeech     *bool  `toml:"use_real_speech"`
		HTTPTimeout       string `toml:"http_timeout"`
		OpenAIBaseURL     string `toml:"openai_base_url"`
		OpenAIModel       string `toml:"openai_model"`
	} `toml:"engines"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
}

// Load reads configuration, applying defaults.
func Load() Config {
	loadEnvFile(".env.local")

	var fc fileConfig
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		var err error
		if fc, err = readFile(path); err != nil {
			slog.Warn("ignoring config file", "path", path, "error", err)
		}
	}

	return Config{
		Port:              envOr("PORT", or(fc.Server.Port, "5000")),
		UploadDir:         envOr("UPLOAD_DIR", or(fc.Storage.UploadDir, "static/uploads")),
		DBPath:            envOr("DB_PATH", or(fc.Storage.DBPath, "aiworkspace.db")),
		ArtifactTTL:       envDuration("ARTIFACT_TTL", parseDuration(fc.Storage.ArtifactTTL, time.Hour)),
		PurgeSchedule:     envOr("PURGE_SCHEDULE", or(fc.Storage.PurgeSchedule, "@every 5m")),
		MaxUploadBytes:    envInt64("MAX_UPLOAD_BYTES", orInt(fc.Server.MaxUploadBytes, 32<<20)),
		MaxConcurrentJobs: envInt64("MAX_CONCURRENT_JOBS", orInt(fc.Server.MaxConcurrent, 8)),
		SimulatedLatency:  envBool("SIMULATED_LATENCY", orBool(fc.Engines.SimulatedLatency, true)),
		UseRealTranslator: envBool("USE_REAL_TRANSLATOR", orBool(fc.Engines.UseRealTranslator, true)),
		UseRealSpeech:     envBool("USE_REAL_SPEECH", orBool(fc.Engines.UseRealSpeech, true)),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     envOr("OPENAI_BASE_URL", or(fc.Engines.OpenAIBaseURL, "https://api.openai.com/v1")),
		OpenAIModel:       envOr("OPENAI_MODEL", or(fc.Engines.OpenAIModel, "gpt-4o-mini")),
		HTTPTimeout:       envDuration("HTTP_TIMEOUT", parseDuration(fc.Engines.HTTPTimeout, 30*time.Second)),
		ShutdownTimeout:   envDuration("SHUTDOWN_TIMEOUT", parseDuration(fc.Server.ShutdownTimeout, 10*time.Second)),
		CORSOrigin:        envOr("CORS_ORIGIN", or(fc.Server.CORSOrigin, "*")),
		LogLevel:          envOr("LOG_LEVEL", or(fc.Log.Level, "info")),
		LogFormat:         envOr("LOG_FORMAT", or(fc.Log.Format, "text")),
	}
}

// UseModelGenerator returns true when a chat model is configured for text generation.
func (c Config) UseModelGenerator() bool {
	return c.OpenAIKey != ""
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadEnvFile loads KEY=VALUE pairs from path. Variables already present in
// the environment win. A missing file is silently ignored.
func loadEnvFile(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to parse env file", "path", path, "error", err)
	}
}

func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fileConfig{}, fmt.Errorf("parse config: %w", err)
	}
	return fc, nil
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func orInt(v, fallback int64) int64 {
	if v > 0 {
		return v
	}
	return fallback
}

func orBool(v *bool, fallback bool) bool {
	if v != nil {
		return *v
	}
	return fallback
}

func parseDuration(v string, fallback time.Duration) time.Duration {
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	return parseDuration(os.Getenv(key), fallback)
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
