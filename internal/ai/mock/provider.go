// Package mock provides an AIProvider for tests and local development.
package mock

import (
	"context"
	"fmt"

	"github.com/sitebrief/sitebrief/pkg/models"
)

// MockProvider satisfies models.AIProvider for testing.
type MockProvider struct {
	Name_            string
	SummarizeFunc    func(ctx context.Context, req models.SummarizeRequest) (models.SummarizeResult, error)
	SelectImagesFunc func(ctx context.Context, req models.SelectImagesRequest) ([]string, error)
	CaptionFunc      func(ctx context.Context, req models.CaptionRequest) (map[string]string, error)

	// Call counters, for asserting which stages ran.
	SummarizeCalls    int
	SelectImagesCalls int
	CaptionCalls      int
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Summarize(ctx context.Context, req models.SummarizeRequest) (models.SummarizeResult, error) {
	m.SummarizeCalls++
	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, req)
	}
	return models.SummarizeResult{}, nil
}

func (m *MockProvider) SelectImages(ctx context.Context, req models.SelectImagesRequest) ([]string, error) {
	m.SelectImagesCalls++
	if m.SelectImagesFunc != nil {
		return m.SelectImagesFunc(ctx, req)
	}
	return nil, nil
}

func (m *MockProvider) Caption(ctx context.Context, req models.CaptionRequest) (map[string]string, error) {
	m.CaptionCalls++
	if m.CaptionFunc != nil {
		return m.CaptionFunc(ctx, req)
	}
	return nil, nil
}

// NewMockProvider returns a MockProvider with sensible default responses:
// every note day becomes a bullet, the first half of the candidates are
// selected, and every image gets a caption derived from its description.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		SummarizeFunc: func(_ context.Context, req models.SummarizeRequest) (models.SummarizeResult, error) {
			bullets := make([]string, 0, len(req.Notes))
			for _, n := range req.Notes {
				bullets = append(bullets, fmt.Sprintf("%s: %s", n.Date.Format("Jan 2"), n.Body))
			}
			return models.SummarizeResult{Bullets: bullets}, nil
		},
		SelectImagesFunc: func(_ context.Context, req models.SelectImagesRequest) ([]string, error) {
			n := len(req.Candidates)
			if req.MaxImages < n {
				n = req.MaxImages
			}
			ids := make([]string, 0, n)
			for _, c := range req.Candidates[:n] {
				ids = append(ids, c.ID)
			}
			return ids, nil
		},
		CaptionFunc: func(_ context.Context, req models.CaptionRequest) (map[string]string, error) {
			captions := make(map[string]string, len(req.Images))
			for _, img := range req.Images {
				if img.Description != "" {
					captions[img.ID] = img.Description
				}
			}
			return captions, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		SummarizeFunc: func(_ context.Context, _ models.SummarizeRequest) (models.SummarizeResult, error) {
			return models.SummarizeResult{}, err
		},
		SelectImagesFunc: func(_ context.Context, _ models.SelectImagesRequest) ([]string, error) {
			return nil, err
		},
		CaptionFunc: func(_ context.Context, _ models.CaptionRequest) (map[string]string, error) {
			return nil, err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		SummarizeFunc: func(ctx context.Context, _ models.SummarizeRequest) (models.SummarizeResult, error) {
			<-ctx.Done()
			return models.SummarizeResult{}, models.ErrInferenceTimeout
		},
		SelectImagesFunc: func(ctx context.Context, _ models.SelectImagesRequest) ([]string, error) {
			<-ctx.Done()
			return nil, models.ErrInferenceTimeout
		},
		CaptionFunc: func(ctx context.Context, _ models.CaptionRequest) (map[string]string, error) {
			<-ctx.Done()
			return nil, models.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockProvider implements AIProvider.
var _ models.AIProvider = (*MockProvider)(nil)
