package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/workorders-tracker/internal/common"
)

// maxResponseBytes caps what is read back from a provider. Completions are small;
// anything bigger is an error page or a misbehaving proxy.
const maxResponseBytes = 8 << 20

// APIError is a non-2xx provider response. OpenAI and Gemini both wrap failures in
// {"error": {...}}; whatever that envelope carries is lifted into the fields below.
type APIError struct {
	StatusCode int
	Status     string // Gemini: RESOURCE_EXHAUSTED, INVALID_ARGUMENT, ...
	Type       string // OpenAI: invalid_request_error, ...
	Code       string // OpenAI: rate_limit_exceeded, invalid_api_key, ...
	Message    string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "status %d", e.StatusCode)
	var tags []string
	for _, t := range []string{e.Status, e.Type, e.Code} {
		if t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) > 0 {
		b.WriteString(" (" + strings.Join(tags, ", ") + ")")
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	return b.String()
}

type errorEnvelope struct {
	Error *struct {
		Message string          `json:"message"`
		Status  string          `json:"status"`
		Type    string          `json:"type"`
		Code    json.RawMessage `json:"code"` // string for OpenAI, number for Gemini
	} `json:"error"`
}

// decodeAPIError reads the provider error envelope. A body without one keeps a
// truncated copy of itself as the message.
func decodeAPIError(status int, raw []byte) *APIError {
	ae := &APIError{StatusCode: status}
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Error == nil {
		ae.Message = Truncate(strings.TrimSpace(string(raw)), 500)
		return ae
	}
	ae.Message = Truncate(env.Error.Message, 500)
	ae.Status = env.Error.Status
	ae.Type = env.Error.Type
	var code string
	if json.Unmarshal(env.Error.Code, &code) == nil {
		ae.Code = code
	}
	return ae
}

// SendJSON POSTs body as JSON to url and returns the raw response body and status.
// Non-2xx answers come back as *APIError alongside the body.
// The request id of ctx, when set, tags every log line.
func SendJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, logger *slog.Logger) ([]byte, int, error) {
	logger = common.LoggerFromContext(ctx, logger)
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	log := logger.With("req_id", common.RequestIDFromContext(ctx))

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	log.Debug("llm.http.request", "host", req.URL.Host, "path", req.URL.Path, "content_length", len(payload))
	resp, err := client.Do(req)
	if err != nil {
		log.Error("llm.http.send_error", "host", req.URL.Host, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if len(raw) > maxResponseBytes {
		return nil, resp.StatusCode, fmt.Errorf("response larger than %d bytes", maxResponseBytes)
	}

	elapsed := time.Since(start).Milliseconds()
	if resp.StatusCode/100 != 2 {
		ae := decodeAPIError(resp.StatusCode, raw)
		log.Warn("llm.http.api_error",
			"host", req.URL.Host,
			"status", ae.StatusCode,
			"provider_status", ae.Status,
			"type", ae.Type,
			"code", ae.Code,
			"elapsed_ms", elapsed,
		)
		return raw, resp.StatusCode, ae
	}
	log.Info("llm.http.response", "host", req.URL.Host, "status", resp.StatusCode, "bytes", len(raw), "elapsed_ms", elapsed)
	return raw, resp.StatusCode, nil
}
