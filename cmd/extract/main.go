package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/workorders-tracker/constants"
	"github.com/joseph-ayodele/workorders-tracker/internal/common"
	"github.com/joseph-ayodele/workorders-tracker/internal/llm"
	"github.com/joseph-ayodele/workorders-tracker/internal/llm/gemini"
	"github.com/joseph-ayodele/workorders-tracker/internal/llm/openai"
	"github.com/joseph-ayodele/workorders-tracker/internal/pipeline"
)

// extract runs one provider over local files and prints the normalized analysis.
// Nothing is written to the database.
func main() {
	provider := flag.String("provider", "", "openai or gemini (defaults to LLM_PROVIDER)")
	times := flag.Int("times", 1, "repeat the extraction this many times")
	flag.Parse()

	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(2)
	}
	logger := common.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	if flag.NArg() == 0 {
		logger.Error("usage: extract [-provider openai|gemini] [-times n] <file>...")
		os.Exit(2)
	}
	name := cfg.LLM.Provider
	if *provider != "" {
		name = *provider
	}

	var prov llm.Provider
	switch name {
	case constants.ProviderOpenAI:
		if cfg.LLM.OpenAI.APIKey == "" {
			logger.Error("OPENAI_API_KEY env var is required")
			os.Exit(2)
		}
		prov = openai.NewClient(openai.ConfigFrom(cfg.LLM.OpenAI, cfg.LLM.Timeout), logger)
	case constants.ProviderGemini:
		if cfg.LLM.Gemini.APIKey == "" {
			logger.Error("GEMINI_API_KEY env var is required")
			os.Exit(2)
		}
		prov = gemini.NewClient(gemini.ConfigFrom(cfg.LLM.Gemini, cfg.LLM.Timeout), logger)
	default:
		logger.Error("unknown provider", "provider", name)
		os.Exit(2)
	}

	var parts []llm.Part
	for _, p := range flag.Args() {
		data, err := os.ReadFile(p)
		if err != nil {
			logger.Error("read file", "path", p, "error", err)
			os.Exit(1)
		}
		part, ok := pipeline.PartFromFile(filepath.Base(p), data)
		if !ok {
			logger.Warn("skipping unsupported file", "path", p)
			continue
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		logger.Error("no supported files given")
		os.Exit(2)
	}
	parts, prompt := pipeline.PreparePrompt(prov, parts)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	failed := 0
	for i := 1; i <= *times; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Pipeline.ProcessTimeout)
		start := time.Now()
		logger.Info("extract.run.start", "iter", i, "provider", prov.Name(), "model", prov.Model(), "prompt_version", prompt.Version, "parts", len(parts))

		raw, err := prov.Extract(ctx, prompt.Text, parts)
		cancel()
		if err != nil {
			failed++
			logger.Error("extract.run.provider_error", "iter", i, "error", err)
			continue
		}
		analysis, err := llm.Normalize(raw, logger)
		if err != nil {
			failed++
			logger.Error("extract.run.parse_error", "iter", i, "error", err, "raw", llm.Truncate(raw, 500))
			continue
		}
		logger.Info("extract.run.ok", "iter", i, "elapsed_ms", time.Since(start).Milliseconds(), "dropped", analysis.Dropped)
		if !printAnalysis(enc, analysis, i, logger) {
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

type output struct {
	Fields llm.WorkOrderFields `json:"fields"`
	Tasks  []llm.SuggestedTask `json:"suggested_tasks"`
	Raw    json.RawMessage     `json:"analysis"`
}

// printAnalysis writes one run's result as JSON. Failures are logged, never printed raw.
func printAnalysis(enc *json.Encoder, a *llm.Analysis, iter int, logger *slog.Logger) bool {
	if err := enc.Encode(output{Fields: a.Fields, Tasks: a.Tasks, Raw: a.Raw}); err != nil {
		logger.Error("extract.run.encode_error", "iter", iter, "error", err)
		return false
	}
	return true
}
