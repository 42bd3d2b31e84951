package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"labtable/internal/config"
	"labtable/internal/port"
	"labtable/internal/vision"
)

const (
	apiURL       = "https://api.openai.com/v1/chat/completions"
	defaultModel = "gpt-4o"
)

// Recognizer implements port.VisionRecognizer using the OpenAI Chat Completions API.
type Recognizer struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewRecognizer creates an OpenAI-based recognizer from a provider config.
func NewRecognizer(cfg *config.VisionProviderConfig) *Recognizer {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = apiURL
	}
	return NewRecognizerWithEndpoint(cfg, endpoint)
}

// NewRecognizerWithEndpoint creates a recognizer pointing at a custom API endpoint (for testing).
func NewRecognizerWithEndpoint(cfg *config.VisionProviderConfig, endpoint string) *Recognizer {
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}
	return &Recognizer{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

func (r *Recognizer) Recognize(ctx context.Context, input port.RecognizeInput) (*port.RecognizeOutput, error) {
	switch input.ContentType {
	case "image/jpeg", "image/png", "image/webp":
	default:
		return nil, fmt.Errorf("openai: unsupported content type: %s", input.ContentType)
	}

	dataURI := fmt.Sprintf("data:%s;base64,%s", input.ContentType, base64.StdEncoding.EncodeToString(input.Image))
	reqBody := map[string]any{
		"model":                 r.model,
		"max_completion_tokens": 8192,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "image_url", "image_url": map[string]any{"url": dataURI}},
					{"type": "text", "text": input.Prompt},
				},
			},
		},
		"response_format": map[string]any{"type": "json_object"},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling openai API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, vision.Truncate(string(respBody), 500))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := vision.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, vision.NewRateLimitError("openai", baseErr, retryAfter)
		}
		return nil, baseErr
	}

	return parseResponse(respBody, r.model)
}

// apiResponse models the OpenAI Chat Completions API response.
type apiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func parseResponse(body []byte, model string) (*port.RecognizeOutput, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from API: no choices")
	}
	if resp.Choices[0].FinishReason == "length" {
		return nil, fmt.Errorf("output truncated (finish_reason: length)")
	}

	candidate, err := vision.ExtractJSON(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return &port.RecognizeOutput{Candidate: candidate, ModelUsed: model}, nil
}
