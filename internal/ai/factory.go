// Package ai constructs the configured models.AIProvider implementation.
package ai

import (
	"context"
	"fmt"

	"github.com/sitebrief/sitebrief/internal/ai/gemini"
	"github.com/sitebrief/sitebrief/internal/ai/mock"
	"github.com/sitebrief/sitebrief/internal/ai/openai"
	"github.com/sitebrief/sitebrief/internal/config"
	"github.com/sitebrief/sitebrief/pkg/models"
)

// NewProvider constructs the appropriate AI provider based on config.
// Called once at worker startup.
func NewProvider(ctx context.Context, cfg config.AIConfig) (models.AIProvider, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(cfg.OpenAI, cfg.InferenceTimeout), nil
	case "gemini":
		return gemini.NewProvider(ctx, cfg.Gemini)
	case "mock":
		return mock.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of openai, gemini, mock", cfg.Provider)
	}
}
