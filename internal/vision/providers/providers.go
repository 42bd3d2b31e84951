// Package providers registers the built-in vision providers with the vision factory.
package providers

import (
	"labtable/internal/config"
	"labtable/internal/port"
	"labtable/internal/vision"
	"labtable/internal/vision/claude"
	"labtable/internal/vision/gemini"
	"labtable/internal/vision/openai"
)

// Register makes "gemini", "claude" and "openai" available to vision.NewRecognizer.
func Register() {
	vision.RegisterProvider("gemini", func(cfg *config.VisionProviderConfig) (port.VisionRecognizer, error) {
		return gemini.NewRecognizer(cfg), nil
	})
	vision.RegisterProvider("claude", func(cfg *config.VisionProviderConfig) (port.VisionRecognizer, error) {
		return claude.NewRecognizer(cfg), nil
	})
	vision.RegisterProvider("openai", func(cfg *config.VisionProviderConfig) (port.VisionRecognizer, error) {
		return openai.NewRecognizer(cfg), nil
	})
}
