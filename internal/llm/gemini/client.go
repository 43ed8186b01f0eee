package gemini

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

func (c *Client) Name() string           { return constants.ProviderGemini }
func (c *Client) Model() string          { return c.cfg.Model }
func (c *Client) SupportsPDF() bool      { return true }
func (c *Client) Template() llm.Template { return llm.GeminiTemplate }

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Extract implements llm.Provider using generateContent with inline image and PDF parts.
func (c *Client) Extract(ctx context.Context, prompt string, parts []llm.Part) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	reqParts := []part{{Text: prompt}}
	images, pdfs := 0, 0
	for _, p := range parts {
		mt := p.MIMEType
		switch p.Kind {
		case constants.IMAGE:
			if mt == "" {
				mt = "image/jpeg"
			}
			images++
		case constants.PDF:
			mt = "application/pdf"
			pdfs++
		default:
			continue
		}
		reqParts = append(reqParts, part{InlineData: &inlineData{
			MIMEType: mt,
			Data:     base64.StdEncoding.EncodeToString(p.Data),
		}})
	}

	c.log.Info("llm.gemini.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"prompt_len", len(prompt),
		"images", images,
		"pdfs", pdfs,
	)

	gen := map[string]any{
		"temperature":      c.cfg.Temperature,
		"responseMimeType": "application/json",
	}
	if c.cfg.MaxOutputTokens > 0 {
		gen["maxOutputTokens"] = c.cfg.MaxOutputTokens
	}
	body := map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": reqParts},
		},
		"generationConfig": gen,
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)
	raw, _, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, map[string]string{
		"x-goog-api-key": c.cfg.APIKey,
	}, c.log)
	if err != nil {
		c.log.Error("llm.gemini.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("gemini: %w", err)
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		c.log.Error("llm.gemini.extract.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if br := gr.PromptFeedback.BlockReason; br != "" {
		c.log.Warn("llm.gemini.extract.blocked", "req_id", rid, "block_reason", br)
		return "", fmt.Errorf("gemini blocked the request: %s", br)
	}
	if len(gr.Candidates) == 0 {
		c.log.Error("llm.gemini.extract.no_candidates", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("no candidates in gemini response")
	}

	cand := gr.Candidates[0]
	var b strings.Builder
	for _, p := range cand.Content.Parts {
		b.WriteString(p.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		c.log.Error("llm.gemini.extract.empty", "req_id", rid, "finish_reason", cand.FinishReason)
		return "", fmt.Errorf("empty gemini response (finish_reason=%s)", cand.FinishReason)
	}

	c.log.Info("llm.gemini.extract.ok",
		"req_id", rid,
		"content_len", len(text),
		"finish_reason", cand.FinishReason,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
