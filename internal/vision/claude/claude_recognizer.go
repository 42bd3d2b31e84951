package claude

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"labtable/internal/config"
	"labtable/internal/port"
	"labtable/internal/vision"
)

const (
	defaultModel = "claude-sonnet-4-5-20250929"
	maxTokens    = 8192
)

// Recognizer implements port.VisionRecognizer using the Anthropic Messages API.
type Recognizer struct {
	client sdk.Client
	model  string
}

// NewRecognizer creates a Claude-based recognizer. Extra request options are
// appended after the ones derived from cfg.
func NewRecognizer(cfg *config.VisionProviderConfig, opts ...option.RequestOption) *Recognizer {
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}
	base := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		base = append(base, option.WithBaseURL(cfg.Endpoint))
	}
	return &Recognizer{
		client: sdk.NewClient(append(base, opts...)...),
		model:  model,
	}
}

func (r *Recognizer) Recognize(ctx context.Context, input port.RecognizeInput) (*port.RecognizeOutput, error) {
	switch input.ContentType {
	case "image/jpeg", "image/png", "image/webp":
	default:
		return nil, fmt.Errorf("claude: unsupported content type: %s", input.ContentType)
	}

	msg, err := r.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(r.model),
		MaxTokens: maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(
				sdk.NewImageBlockBase64(input.ContentType, base64.StdEncoding.EncodeToString(input.Image)),
				sdk.NewTextBlock(input.Prompt),
			),
		},
	})
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := 0
			if apiErr.Response != nil {
				retryAfter = vision.ParseRetryAfterHeader(apiErr.Response.Header.Get("Retry-After"))
			}
			return nil, vision.NewRateLimitError("claude", err, retryAfter)
		}
		return nil, fmt.Errorf("anthropic: create message: %w", err)
	}

	if string(msg.StopReason) == "max_tokens" {
		return nil, fmt.Errorf("output truncated (stop_reason: max_tokens)")
	}

	for _, block := range msg.Content {
		if block.Type != "text" {
			continue
		}
		candidate, err := vision.ExtractJSON(block.Text)
		if err != nil {
			return nil, err
		}
		return &port.RecognizeOutput{Candidate: candidate, ModelUsed: r.model}, nil
	}
	return nil, fmt.Errorf("empty response from API: no text block")
}
