package vision

import (
	"fmt"

	"labtable/internal/config"
	"labtable/internal/port"
)

// ProviderFactory creates a VisionRecognizer from a provider config.
type ProviderFactory func(cfg *config.VisionProviderConfig) (port.VisionRecognizer, error)

// registry of provider factories, filled in by RegisterProvider at startup.
var providers = map[string]ProviderFactory{}

// RegisterProvider registers a provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providers[name] = factory
}

// NewRecognizer creates a VisionRecognizer from a provider config using the registered factory.
func NewRecognizer(cfg *config.VisionProviderConfig) (port.VisionRecognizer, error) {
	factory, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown vision provider: %s", cfg.Provider)
	}
	return factory(cfg)
}

// FromConfig builds the primary recognizer and, when a secondary provider is
// configured, chains both with the primary first.
func FromConfig(cfg *config.VisionConfig) (port.VisionRecognizer, error) {
	primary, err := NewRecognizer(&cfg.Primary)
	if err != nil {
		return nil, fmt.Errorf("primary vision provider: %w", err)
	}
	secondaryCfg := cfg.SecondaryConfig()
	if secondaryCfg == nil {
		return primary, nil
	}
	secondary, err := NewRecognizer(secondaryCfg)
	if err != nil {
		return nil, fmt.Errorf("secondary vision provider: %w", err)
	}
	return NewChain(
		Provider{Name: cfg.Primary.Provider, Recognizer: primary},
		Provider{Name: secondaryCfg.Provider, Recognizer: secondary},
	), nil
}
