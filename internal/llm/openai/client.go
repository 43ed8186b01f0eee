package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/workorders-tracker/constants"
	"github.com/joseph-ayodele/workorders-tracker/internal/llm"
)

func (c *Client) Name() string           { return constants.ProviderOpenAI }
func (c *Client) Model() string          { return c.cfg.Model }
func (c *Client) SupportsPDF() bool      { return false }
func (c *Client) Template() llm.Template { return llm.OpenAITemplate }

// Extract implements llm.Provider using chat/completions with image_url parts.
// PDFs are skipped here; the orchestrator turns them into an advisory note.
func (c *Client) Extract(ctx context.Context, prompt string, parts []llm.Part) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	content := []map[string]any{{"type": "text", "text": prompt}}
	images := 0
	for _, p := range parts {
		if p.Kind != constants.IMAGE {
			continue
		}
		content = append(content, map[string]any{
			"type": "image_url",
			"image_url": map[string]any{
				"url":    dataURL(p),
				"detail": c.cfg.Detail,
			},
		})
		images++
	}

	c.log.Info("llm.openai.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"prompt_len", len(prompt),
		"images", images,
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "user", "content": content},
		},
	}
	if c.cfg.MaxTokens > 0 {
		body["max_tokens"] = c.cfg.MaxTokens
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, _, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	}, c.log)
	if err != nil {
		c.log.Error("llm.openai.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("openai: %w", err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
				Refusal string `json:"refusal"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.openai.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.openai.extract.no_choices",
			"req_id", rid, "elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("no choices in openai response")
	}
	msg := cc.Choices[0].Message
	if r := strings.TrimSpace(msg.Refusal); r != "" {
		c.log.Warn("llm.openai.extract.refused", "req_id", rid, "refusal", llm.Truncate(r, 200))
		return "", fmt.Errorf("openai refused: %s", r)
	}
	text := strings.TrimSpace(msg.Content)
	if text == "" {
		c.log.Error("llm.openai.extract.empty",
			"req_id", rid, "finish_reason", cc.Choices[0].FinishReason,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("empty openai response (finish_reason=%s)", cc.Choices[0].FinishReason)
	}

	c.log.Info("llm.openai.extract.ok",
		"req_id", rid,
		"content_len", len(text),
		"finish_reason", cc.Choices[0].FinishReason,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func dataURL(p llm.Part) string {
	mt := p.MIMEType
	if mt == "" {
		mt = "image/jpeg"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}
