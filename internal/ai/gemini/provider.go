// Package gemini implements models.AIProvider using Google Gemini.
package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/sitebrief/sitebrief/internal/ai/prompt"
	"github.com/sitebrief/sitebrief/internal/config"
	"github.com/sitebrief/sitebrief/pkg/models"
)

// Provider implements models.AIProvider using the Gemini SDK.
type Provider struct {
	client *genai.Client
	model  string
}

func NewProvider(ctx context.Context, cfg config.GeminiConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Provider{client: client, model: cfg.Model}, nil
}

func (p *Provider) Name() string { return "gemini" }

func (p *Provider) Close() error {
	return p.client.Close()
}

func (p *Provider) Summarize(ctx context.Context, req models.SummarizeRequest) (models.SummarizeResult, error) {
	raw, err := p.generateJSON(ctx, prompt.Summarize(req))
	if err != nil {
		return models.SummarizeResult{}, err
	}
	return prompt.ParseSummarize(raw)
}

func (p *Provider) SelectImages(ctx context.Context, req models.SelectImagesRequest) ([]string, error) {
	raw, err := p.generateJSON(ctx, prompt.SelectImages(req))
	if err != nil {
		return nil, err
	}
	return prompt.ParseSelectImages(raw)
}

func (p *Provider) Caption(ctx context.Context, req models.CaptionRequest) (map[string]string, error) {
	raw, err := p.generateJSON(ctx, prompt.Caption(req))
	if err != nil {
		return nil, err
	}
	return prompt.ParseCaption(raw)
}

func (p *Provider) generateJSON(ctx context.Context, instruction string) (string, error) {
	model := p.client.GenerativeModel(p.model)
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(instruction))
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}
	return extractText(resp)
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: empty response", models.ErrInvalidResponse)
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	if text == "" {
		return "", fmt.Errorf("%w: no text parts", models.ErrInvalidResponse)
	}
	return prompt.CleanJSONBlock(text), nil
}

var _ models.AIProvider = (*Provider)(nil)
