package claude

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labtable/internal/config"
	"labtable/internal/port"
	"labtable/internal/vision"
)

func message(text, stop string) map[string]any {
	return map[string]any{
		"id":          "msg_test",
		"type":        "message",
		"role":        "assistant",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"model":       defaultModel,
		"stop_reason": stop,
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
	}
}

func newTestRecognizer(url string) *Recognizer {
	return NewRecognizer(&config.VisionProviderConfig{APIKey: "test-key", Endpoint: url}, option.WithMaxRetries(0))
}

func TestRecognize_Success(t *testing.T) {
	var req map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/messages")
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(message(`Here you go: {"exp_id":"hall","tables":{}}`, "end_turn"))
	}))
	defer ts.Close()

	out, err := newTestRecognizer(ts.URL).Recognize(context.Background(), port.RecognizeInput{
		Prompt: "extract", Image: []byte("img"), ContentType: "image/png",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"exp_id":"hall","tables":{}}`, string(out.Candidate))
	assert.Equal(t, defaultModel, out.ModelUsed)

	content := req["messages"].([]any)[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)
	img := content[0].(map[string]any)
	assert.Equal(t, "image", img["type"])
	assert.Equal(t, "image/png", img["source"].(map[string]any)["media_type"])
	assert.Equal(t, "extract", content[1].(map[string]any)["text"])
}

func TestRecognize_RateLimited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer ts.Close()

	_, err := newTestRecognizer(ts.URL).Recognize(context.Background(), port.RecognizeInput{ContentType: "image/jpeg"})
	var rl *vision.RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, "claude", rl.Provider)
	assert.Equal(t, 30.0, rl.RetryAfter.Seconds())
}

func TestRecognize_Truncated(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(message(`{"exp_id":`, "max_tokens"))
	}))
	defer ts.Close()

	_, err := newTestRecognizer(ts.URL).Recognize(context.Background(), port.RecognizeInput{ContentType: "image/jpeg"})
	assert.ErrorContains(t, err, "truncated")
}
