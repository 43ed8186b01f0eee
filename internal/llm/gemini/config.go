package gemini

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/joseph-ayodele/workorders-tracker/internal/common"
)

// Config for the Gemini client.
type Config struct {
	APIKey          string
	BaseURL         string // default https://generativelanguage.googleapis.com/v1beta
	Model           string // e.g., "gemini-1.5-pro"
	Temperature     float32
	MaxOutputTokens int
	Timeout         time.Duration
}

// ConfigFrom maps the shared provider config onto the Gemini adapter.
func ConfigFrom(p common.ProviderConfig, timeout time.Duration) Config {
	return Config{
		APIKey:          p.APIKey,
		BaseURL:         p.BaseURL,
		Model:           p.Model,
		Temperature:     p.Temperature,
		MaxOutputTokens: p.MaxTokens,
		Timeout:         timeout,
	}
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-pro"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}
