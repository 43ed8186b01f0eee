package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/joseph-ayodele/workorders-tracker/internal/common"
)

func TestSendJSON_DecodesProviderErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   APIError
	}{
		{
			name:   "openai envelope",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`,
			want:   APIError{StatusCode: 429, Type: "requests", Code: "rate_limit_exceeded", Message: "Rate limit reached"},
		},
		{
			name:   "gemini envelope",
			status: http.StatusBadRequest,
			body:   `{"error":{"code":400,"message":"API key not valid.","status":"INVALID_ARGUMENT"}}`,
			want:   APIError{StatusCode: 400, Status: "INVALID_ARGUMENT", Message: "API key not valid."},
		},
		{
			name:   "plain body",
			status: http.StatusBadGateway,
			body:   "  upstream timed out\n",
			want:   APIError{StatusCode: 502, Message: "upstream timed out"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			raw, status, err := SendJSON(context.Background(), srv.Client(), srv.URL, map[string]any{}, nil, nil)
			var ae *APIError
			if !errors.As(err, &ae) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if diff := cmp.Diff(tc.want, *ae); diff != "" {
				t.Fatalf("APIError (-want +got):\n%s", diff)
			}
			if status != tc.status || string(raw) != tc.body {
				t.Fatalf("status/body = %d %q", status, raw)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	err := &APIError{StatusCode: 429, Type: "requests", Code: "rate_limit_exceeded", Message: "slow down"}
	if got, want := err.Error(), "status 429 (requests, rate_limit_exceeded): slow down"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if got := (&APIError{StatusCode: 500}).Error(); got != "status 500" {
		t.Fatalf("bare Error() = %q", got)
	}
}

func TestSendJSON_SendsHeadersAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("method/content-type = %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		if r.Header.Get("x-goog-api-key") != "k" {
			t.Errorf("api key header = %q", r.Header.Get("x-goog-api-key"))
		}
		b, _ := io.ReadAll(r.Body)
		if strings.TrimSpace(string(b)) != `{"model":"m"}` {
			t.Errorf("body = %s", b)
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	ctx := common.WithRequestID(context.Background(), "req-1")
	raw, status, err := SendJSON(ctx, nil, srv.URL, map[string]string{"model": "m"}, map[string]string{"x-goog-api-key": "k"}, nil)
	if err != nil || status != http.StatusOK || string(raw) != `{"ok":true}` {
		t.Fatalf("SendJSON = %q, %d, %v", raw, status, err)
	}
}
