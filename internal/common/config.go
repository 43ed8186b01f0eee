package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/workorders-tracker/constants"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Storage  StorageConfig  `yaml:"storage"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Chat     ChatConfig     `yaml:"chat"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // postgres | sqlite
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	HealthInterval  time.Duration `yaml:"health_interval"`
}

// ProviderConfig is the per-provider part of LLMConfig.
type ProviderConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider string         `yaml:"provider"` // default provider when a request does not name one
	Timeout  time.Duration  `yaml:"timeout"`
	OpenAI   ProviderConfig `yaml:"openai"`
	Gemini   ProviderConfig `yaml:"gemini"`
}

// StorageConfig selects and configures the object store that holds uploads.
type StorageConfig struct {
	Backend         string `yaml:"backend"` // local | gcs | oss
	Bucket          string `yaml:"bucket"`
	KeyPrefix       string `yaml:"key_prefix"`
	LocalDir        string `yaml:"local_dir"`
	PublicBaseURL   string `yaml:"public_base_url"`
	CredentialsFile string `yaml:"credentials_file"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret"`
}

// PipelineConfig tunes the extraction run.
type PipelineConfig struct {
	DownloadConcurrency int           `yaml:"download_concurrency"`
	ClaimTTL            time.Duration `yaml:"claim_ttl"`
	ProcessTimeout      time.Duration `yaml:"process_timeout"`
}

// ChatConfig tunes the team chat hub.
type ChatConfig struct {
	HistoryLimit     int `yaml:"history_limit"`
	MaxMessageLength int `yaml:"max_message_length"`
	SendBuffer       int `yaml:"send_buffer"`
}

// LogConfig controls the slog handler built by NewLogger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// DefaultConfig returns the built-in defaults, before any file or env overrides.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			GRPCAddr:        ":9090",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 15 * time.Second,
			HealthInterval:  15 * time.Second,
		},
		LLM: LLMConfig{
			Provider: constants.ProviderOpenAI,
			Timeout:  120 * time.Second,
			OpenAI: ProviderConfig{
				BaseURL:   "https://api.openai.com/v1",
				Model:     "gpt-4o",
				MaxTokens: 4096,
			},
			Gemini: ProviderConfig{
				BaseURL:   "https://generativelanguage.googleapis.com/v1beta",
				Model:     "gemini-1.5-pro",
				MaxTokens: 8192,
			},
		},
		Storage: StorageConfig{
			Backend:  "local",
			LocalDir: "./uploads",
		},
		Pipeline: PipelineConfig{
			DownloadConcurrency: 4,
			ClaimTTL:            5 * time.Minute,
			ProcessTimeout:      3 * time.Minute,
		},
		Chat: ChatConfig{
			HistoryLimit:     100,
			MaxMessageLength: 2000,
			SendBuffer:       32,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if set), then environment variables. Environment always wins.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return NewAppError(CodeConfigError, "read config file "+path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return NewAppError(CodeConfigError, "parse config file "+path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	d := &c.Database
	d.Driver = getEnv("DB_DRIVER", d.Driver)
	d.DSN = getEnv("DB_URL", d.DSN)
	d.MaxConns = getEnvAsInt32("DB_MAX_CONNS", d.MaxConns)
	d.MinConns = getEnvAsInt32("DB_MIN_CONNS", d.MinConns)
	d.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", d.MaxConnLifetime)
	d.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", d.MaxConnIdleTime)
	d.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", d.DialTimeout)
	d.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", d.StatementTimeout)

	s := &c.Server
	s.HTTPAddr = getEnv("HTTP_ADDR", s.HTTPAddr)
	s.GRPCAddr = getEnv("GRPC_ADDR", s.GRPCAddr)
	s.AllowedOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS", s.AllowedOrigins)
	s.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.HealthInterval = getEnvAsDuration("HEALTH_INTERVAL", s.HealthInterval)

	l := &c.LLM
	l.Provider = strings.ToLower(getEnv("LLM_PROVIDER", l.Provider))
	l.Timeout = getEnvAsDuration("LLM_TIMEOUT", l.Timeout)
	l.OpenAI.APIKey = getEnv("OPENAI_API_KEY", l.OpenAI.APIKey)
	l.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", l.OpenAI.BaseURL)
	l.OpenAI.Model = getEnv("OPENAI_MODEL", l.OpenAI.Model)
	l.OpenAI.Temperature = getEnvAsFloat32("OPENAI_TEMPERATURE", l.OpenAI.Temperature)
	l.OpenAI.MaxTokens = getEnvAsInt("OPENAI_MAX_TOKENS", l.OpenAI.MaxTokens)
	l.Gemini.APIKey = getEnv("GEMINI_API_KEY", l.Gemini.APIKey)
	l.Gemini.BaseURL = getEnv("GEMINI_BASE_URL", l.Gemini.BaseURL)
	l.Gemini.Model = getEnv("GEMINI_MODEL", l.Gemini.Model)
	l.Gemini.Temperature = getEnvAsFloat32("GEMINI_TEMPERATURE", l.Gemini.Temperature)
	l.Gemini.MaxTokens = getEnvAsInt("GEMINI_MAX_TOKENS", l.Gemini.MaxTokens)

	st := &c.Storage
	st.Backend = strings.ToLower(getEnv("STORAGE_BACKEND", st.Backend))
	st.Bucket = getEnv("STORAGE_BUCKET", st.Bucket)
	st.KeyPrefix = getEnv("STORAGE_KEY_PREFIX", st.KeyPrefix)
	st.LocalDir = getEnv("STORAGE_LOCAL_DIR", st.LocalDir)
	st.PublicBaseURL = getEnv("STORAGE_PUBLIC_BASE_URL", st.PublicBaseURL)
	st.CredentialsFile = getEnv("GOOGLE_APPLICATION_CREDENTIALS", st.CredentialsFile)
	st.Region = getEnv("OSS_REGION", st.Region)
	st.Endpoint = getEnv("OSS_ENDPOINT", st.Endpoint)
	st.AccessKeyID = getEnv("OSS_ACCESS_KEY_ID", st.AccessKeyID)
	st.AccessKeySecret = getEnv("OSS_ACCESS_KEY_SECRET", st.AccessKeySecret)

	p := &c.Pipeline
	p.DownloadConcurrency = getEnvAsInt("PIPELINE_DOWNLOAD_CONCURRENCY", p.DownloadConcurrency)
	p.ClaimTTL = getEnvAsDuration("PIPELINE_CLAIM_TTL", p.ClaimTTL)
	p.ProcessTimeout = getEnvAsDuration("PIPELINE_PROCESS_TIMEOUT", p.ProcessTimeout)

	ch := &c.Chat
	ch.HistoryLimit = getEnvAsInt("CHAT_HISTORY_LIMIT", ch.HistoryLimit)
	ch.MaxMessageLength = getEnvAsInt("CHAT_MAX_MESSAGE_LENGTH", ch.MaxMessageLength)
	ch.SendBuffer = getEnvAsInt("CHAT_SEND_BUFFER", ch.SendBuffer)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return NewAppError(CodeConfigError, fmt.Sprintf("unsupported DB_DRIVER %q", c.Database.Driver), ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError(CodeConfigError, "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError(CodeConfigError, "HTTP_ADDR is required", ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case constants.ProviderOpenAI, constants.ProviderGemini:
	default:
		return NewAppError(CodeConfigError, fmt.Sprintf("unsupported LLM_PROVIDER %q", c.LLM.Provider), ErrInvalidInput)
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			return NewAppError(CodeConfigError, "STORAGE_LOCAL_DIR is required for the local backend", ErrInvalidInput)
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return NewAppError(CodeConfigError, "STORAGE_BUCKET is required for the gcs backend", ErrInvalidInput)
		}
	case "oss":
		if c.Storage.Bucket == "" || c.Storage.Region == "" {
			return NewAppError(CodeConfigError, "STORAGE_BUCKET and OSS_REGION are required for the oss backend", ErrInvalidInput)
		}
	default:
		return NewAppError(CodeConfigError, fmt.Sprintf("unsupported STORAGE_BACKEND %q", c.Storage.Backend), ErrInvalidInput)
	}
	if c.Pipeline.DownloadConcurrency <= 0 {
		return NewAppError(CodeConfigError, "PIPELINE_DOWNLOAD_CONCURRENCY must be positive", ErrInvalidInput)
	}
	return nil
}
