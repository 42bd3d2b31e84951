package port

import (
	"context"
	"encoding/json"
)

// RecognizeInput carries one extraction request to a vision model.
type RecognizeInput struct {
	Prompt      string
	Image       []byte
	ContentType string
}

// RecognizeOutput is the raw candidate returned by a vision model. Candidate is
// untrusted and must be normalized before use.
type RecognizeOutput struct {
	Candidate json.RawMessage
	ModelUsed string
}

// VisionRecognizer abstracts a multimodal model that turns a photo into a JSON candidate.
type VisionRecognizer interface {
	Recognize(ctx context.Context, input RecognizeInput) (*RecognizeOutput, error)
}
