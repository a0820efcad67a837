// Package openai implements models.AIProvider against the OpenAI
// chat-completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sitebrief/sitebrief/internal/ai/prompt"
	"github.com/sitebrief/sitebrief/internal/config"
	"github.com/sitebrief/sitebrief/pkg/models"
)

// Provider implements models.AIProvider using OpenAI.
type Provider struct {
	cfg    config.OpenAIConfig
	client *http.Client
}

func NewProvider(cfg config.OpenAIConfig, timeout time.Duration) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Summarize(ctx context.Context, req models.SummarizeRequest) (models.SummarizeResult, error) {
	raw, err := p.complete(ctx, prompt.Summarize(req))
	if err != nil {
		return models.SummarizeResult{}, err
	}
	return prompt.ParseSummarize(raw)
}

func (p *Provider) SelectImages(ctx context.Context, req models.SelectImagesRequest) ([]string, error) {
	raw, err := p.complete(ctx, prompt.SelectImages(req))
	if err != nil {
		return nil, err
	}
	return prompt.ParseSelectImages(raw)
}

func (p *Provider) Caption(ctx context.Context, req models.CaptionRequest) (map[string]string, error) {
	raw, err := p.complete(ctx, prompt.Caption(req))
	if err != nil {
		return nil, err
	}
	return prompt.ParseCaption(raw)
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *Provider) complete(ctx context.Context, instruction string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "user", Content: instruction},
		},
		Temperature:    0.1,
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("encoding chat request: %w", err)
	}

	u := p.cfg.BaseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", models.ErrProviderUnavailable, resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", models.ErrInvalidResponse)
	}
	return chat.Choices[0].Message.Content, nil
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}
	return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
}

var _ models.AIProvider = (*Provider)(nil)
