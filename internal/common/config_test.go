package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// clearEnv blanks every variable LoadConfig reads so the host environment
// cannot leak into a test. getEnv treats empty as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "DB_DRIVER", "DB_URL", "DB_MAX_CONNS", "HTTP_ADDR", "GRPC_ADDR",
		"CORS_ALLOWED_ORIGINS", "LLM_PROVIDER", "LLM_TIMEOUT", "OPENAI_API_KEY", "OPENAI_MODEL",
		"OPENAI_TEMPERATURE", "GEMINI_API_KEY", "GEMINI_MODEL", "STORAGE_BACKEND", "STORAGE_BUCKET",
		"STORAGE_LOCAL_DIR", "OSS_REGION", "PIPELINE_DOWNLOAD_CONCURRENCY", "PIPELINE_CLAIM_TTL",
		"CHAT_HISTORY_LIMIT", "LOG_LEVEL", "LOG_FORMAT", "DB_MIN_CONNS", "DB_MAX_CONN_LIFETIME",
		"DB_MAX_CONN_IDLE_TIME", "DB_DIAL_TIMEOUT", "DB_STATEMENT_TIMEOUT", "SHUTDOWN_TIMEOUT",
		"HEALTH_INTERVAL", "OPENAI_BASE_URL", "OPENAI_MAX_TOKENS", "GEMINI_BASE_URL",
		"GEMINI_TEMPERATURE", "GEMINI_MAX_TOKENS", "STORAGE_KEY_PREFIX", "STORAGE_PUBLIC_BASE_URL",
		"GOOGLE_APPLICATION_CREDENTIALS", "OSS_ENDPOINT", "OSS_ACCESS_KEY_ID", "OSS_ACCESS_KEY_SECRET",
		"PIPELINE_PROCESS_TIMEOUT", "CHAT_MAX_MESSAGE_LENGTH", "CHAT_SEND_BUFFER",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
database:
  driver: sqlite
  dsn: file:orders.db
llm:
  provider: gemini
  gemini:
    model: gemini-1.5-flash
pipeline:
  claim_ttl: 90s
chat:
  history_limit: 10
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("GEMINI_MODEL", "gemini-2.0-pro")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("LLM_PROVIDER", "GEMINI")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "file:orders.db" {
		t.Fatalf("database = %+v", cfg.Database)
	}
	if cfg.LLM.Provider != "gemini" {
		t.Fatalf("provider = %q, want lowercased gemini", cfg.LLM.Provider)
	}
	if cfg.LLM.Gemini.Model != "gemini-2.0-pro" {
		t.Fatalf("env should win over file, model = %q", cfg.LLM.Gemini.Model)
	}
	if cfg.Pipeline.ClaimTTL != 90*time.Second {
		t.Fatalf("claim ttl = %v", cfg.Pipeline.ClaimTTL)
	}
	if cfg.Chat.HistoryLimit != 10 {
		t.Fatalf("history limit = %d", cfg.Chat.HistoryLimit)
	}
	// untouched keys keep their defaults
	if cfg.Chat.MaxMessageLength != 2000 {
		t.Fatalf("max message length = %d", cfg.Chat.MaxMessageLength)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if diff := cmp.Diff(want, cfg.Server.AllowedOrigins); diff != "" {
		t.Fatalf("origins (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_BadNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("PIPELINE_DOWNLOAD_CONCURRENCY", "lots")
	t.Setenv("PIPELINE_CLAIM_TTL", "soon")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Pipeline.DownloadConcurrency != 4 || cfg.Pipeline.ClaimTTL != 5*time.Minute {
		t.Fatalf("pipeline = %+v", cfg.Pipeline)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := LoadConfig()
	ae, ok := AsAppError(err)
	if !ok || ae.Code != CodeConfigError {
		t.Fatalf("err = %v, want CONFIG_ERROR", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.Database.DSN = "postgres://localhost/orders"
		return c
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults with dsn", func(*Config) {}, true},
		{"sqlite", func(c *Config) { c.Database.Driver = "sqlite" }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, false},
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }, false},
		{"missing http addr", func(c *Config) { c.Server.HTTPAddr = "" }, false},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "claude" }, false},
		{"gcs without bucket", func(c *Config) { c.Storage.Backend = "gcs" }, false},
		{"gcs with bucket", func(c *Config) { c.Storage.Backend = "gcs"; c.Storage.Bucket = "signs" }, true},
		{"oss without region", func(c *Config) { c.Storage.Backend = "oss"; c.Storage.Bucket = "signs" }, false},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }, false},
		{"zero concurrency", func(c *Config) { c.Pipeline.DownloadConcurrency = 0 }, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			err := c.Validate()
			if tc.ok && err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("Validate = %v, want ErrInvalidInput", err)
			}
		})
	}
}
