package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envKeys = []string{
	"PORT", "UPLOAD_DIR", "DB_PATH", "ARTIFACT_TTL", "PURGE_SCHEDULE",
	"MAX_UPLOAD_BYTES", "MAX_CONCURRENT_JOBS", "SIMULATED_LATENCY",
	"USE_REAL_TRANSLATOR", "USE_REAL_SPEECH",
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
	"HTTP_TIMEOUT", "SHUTDOWN_TIMEOUT", "CORS_ORIGIN", "LOG_LEVEL", "LOG_FORMAT",
	"CONFIG_FILE",
}

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env.local")

	content := `# comment line
FOO_TEST_KEY=hello
BAR_TEST_KEY="quoted value"
BAZ_TEST_KEY='single quoted'

EMPTY_LINE_ABOVE=works
`
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	keys := []string{"FOO_TEST_KEY", "BAR_TEST_KEY", "BAZ_TEST_KEY", "EMPTY_LINE_ABOVE"}
	for _, k := range keys {
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	})

	loadEnvFile(envFile)

	tests := []struct {
		key  string
		want string
	}{
		{"FOO_TEST_KEY", "hello"},
		{"BAR_TEST_KEY", "quoted value"},
		{"BAZ_TEST_KEY", "single quoted"},
		{"EMPTY_LINE_ABOVE", "works"},
	}
	for _, tt := range tests {
		if got := os.Getenv(tt.key); got != tt.want {
			t.Errorf("os.Getenv(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestLoadEnvFile_RealEnvTakesPrecedence(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env.local")
	if err := os.WriteFile(envFile, []byte("PRECEDENCE_TEST=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PRECEDENCE_TEST", "from-env")

	loadEnvFile(envFile)

	if got := os.Getenv("PRECEDENCE_TEST"); got != "from-env" {
		t.Errorf("env var = %q, want %q (real env should take precedence)", got, "from-env")
	}
}

func TestLoadEnvFile_MissingFile(t *testing.T) {
	loadEnvFile("/nonexistent/path/.env.local")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg := Load()

	if cfg.Port != "5000" {
		t.Errorf("Port = %q, want %q", cfg.Port, "5000")
	}
	if cfg.UploadDir != "static/uploads" {
		t.Errorf("UploadDir = %q, want %q", cfg.UploadDir, "static/uploads")
	}
	if cfg.ArtifactTTL != time.Hour {
		t.Errorf("ArtifactTTL = %v, want 1h", cfg.ArtifactTTL)
	}
	if cfg.PurgeSchedule != "@every 5m" {
		t.Errorf("PurgeSchedule = %q", cfg.PurgeSchedule)
	}
	if cfg.MaxConcurrentJobs != 8 {
		t.Errorf("MaxConcurrentJobs = %d, want 8", cfg.MaxConcurrentJobs)
	}
	if !cfg.SimulatedLatency {
		t.Error("SimulatedLatency should default to true")
	}
	if cfg.UseModelGenerator() {
		t.Error("UseModelGenerator should be false without an API key")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("ARTIFACT_TTL", "15m")
	t.Setenv("SIMULATED_LATENCY", "false")
	t.Setenv("OPENAI_API_KEY", "sk-test-key")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.ArtifactTTL != 15*time.Minute {
		t.Errorf("ArtifactTTL = %v, want 15m", cfg.ArtifactTTL)
	}
	if cfg.SimulatedLatency {
		t.Error("SimulatedLatency should be false")
	}
	if !cfg.UseModelGenerator() {
		t.Error("UseModelGenerator should be true with an API key")
	}
}

func TestLoad_TOMLFileUnderEnv(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = "7000"
max_concurrent_jobs = 2

[storage]
upload_dir = "/var/aiworkspace"
artifact_ttl = "30m"

[engines]
simulated_latency = false
openai_model = "llama3"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7001")

	cfg := Load()

	if cfg.Port != "7001" {
		t.Errorf("Port = %q, env should override file", cfg.Port)
	}
	if cfg.UploadDir != "/var/aiworkspace" {
		t.Errorf("UploadDir = %q", cfg.UploadDir)
	}
	if cfg.ArtifactTTL != 30*time.Minute {
		t.Errorf("ArtifactTTL = %v, want 30m", cfg.ArtifactTTL)
	}
	if cfg.MaxConcurrentJobs != 2 {
		t.Errorf("MaxConcurrentJobs = %d, want 2", cfg.MaxConcurrentJobs)
	}
	if cfg.SimulatedLatency {
		t.Error("SimulatedLatency should come from file as false")
	}
	if cfg.OpenAIModel != "llama3" {
		t.Errorf("OpenAIModel = %q", cfg.OpenAIModel)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := (Config{LogLevel: tt.level}).SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestEnvDuration_Invalid(t *testing.T) {
	t.Setenv("TEST_DUR_INVALID", "not-a-duration")
	if got := envDuration("TEST_DUR_INVALID", 5*time.Second); got != 5*time.Second {
		t.Errorf("envDuration with invalid value = %v, want fallback 5s", got)
	}
}

func TestEnvInt64_Invalid(t *testing.T) {
	t.Setenv("TEST_INT_INVALID", "abc")
	if got := envInt64("TEST_INT_INVALID", 42); got != 42 {
		t.Errorf("envInt64 with invalid value = %d, want fallback 42", got)
	}
}

func TestEnvBool_Invalid(t *testing.T) {
	t.Setenv("TEST_BOOL_INVALID", "maybe")
	if got := envBool("TEST_BOOL_INVALID", true); got != true {
		t.Errorf("envBool with invalid value = %v, want fallback true", got)
	}
}
