// Package generation produces the concierge's reply from a prompt built out of masked
// context, retrieved knowledge and the masked customer message.
package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/concierge/internal/config"
)

// Generator produces reply text for a prompt. Implementations must respect ctx
// cancellation; callers bound generation with a deadline.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// ErrEmptyResponse is returned when a backend produced no text.
var ErrEmptyResponse = errors.New("generator returned empty response")

// Generation providers.
const (
	ProviderGemini = "gemini"
	ProviderEcho   = "echo"
)

// New creates the generator selected by cfg.Provider.
func New(ctx context.Context, cfg config.GenerationConfig) (Generator, error) {
	switch cfg.Provider {
	case ProviderGemini, "":
		return NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model, cfg.Temperature)
	case ProviderEcho:
		return EchoGenerator{}, nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}
