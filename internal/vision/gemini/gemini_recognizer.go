package gemini

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
	apiBaseURL   = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultModel = "gemini-2.0-flash"
)

// Recognizer implements port.VisionRecognizer using Google's Gemini API.
type Recognizer struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewRecognizer creates a Gemini-based recognizer. A non-empty cfg.Endpoint
// replaces the public API URL.
func NewRecognizer(cfg *config.VisionProviderConfig) *Recognizer {
	return NewRecognizerWithEndpoint(cfg, cfg.Endpoint)
}

// NewRecognizerWithEndpoint creates a recognizer pointing at a custom API endpoint (for testing).
func NewRecognizerWithEndpoint(cfg *config.VisionProviderConfig, endpoint string) *Recognizer {
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s/%s:generateContent", apiBaseURL, model)
	}
	return &Recognizer{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

func (r *Recognizer) Recognize(ctx context.Context, input port.RecognizeInput) (*port.RecognizeOutput, error) {
	if _, ok := supportedTypes[input.ContentType]; !ok {
		return nil, fmt.Errorf("gemini: unsupported content type: %s", input.ContentType)
	}

	reqBody := map[string]any{
		"contents": []map[string]any{
			{
				"role": "user",
				"parts": []map[string]any{
					{
						"inline_data": map[string]any{
							"mime_type": input.ContentType,
							"data":      base64.StdEncoding.EncodeToString(input.Image),
						},
					},
					{"text": input.Prompt},
				},
			},
		},
		"generationConfig": map[string]any{
			"responseMimeType": "application/json",
			"maxOutputTokens":  8192,
			"temperature":      0,
		},
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
	req.Header.Set("x-goog-api-key", r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling gemini API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, vision.Truncate(string(respBody), 500))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := vision.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, vision.NewRateLimitError("gemini", baseErr, retryAfter)
		}
		return nil, baseErr
	}

	return parseResponse(respBody, r.model)
}

var supportedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// geminiResponse models the Gemini API response.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func parseResponse(body []byte, model string) (*port.RecognizeOutput, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from API: no candidates")
	}
	if resp.Candidates[0].FinishReason == "MAX_TOKENS" {
		return nil, fmt.Errorf("output truncated (finishReason: MAX_TOKENS)")
	}
	if len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from API: no parts")
	}

	candidate, err := vision.ExtractJSON(resp.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return nil, err
	}
	return &port.RecognizeOutput{Candidate: candidate, ModelUsed: model}, nil
}
