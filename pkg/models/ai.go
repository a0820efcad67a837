package models

import (
	"context"
	"errors"
	"time"
)

// Errors every AIProvider implementation classifies its failures into.
var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)

// AIProvider is the core interface that all AI integrations must implement.
// Never call specific AI providers directly; always inject this interface.
type AIProvider interface {
	// Summarize condenses daily log notes into report bullets and suggests
	// which days are worth showing photos from.
	Summarize(ctx context.Context, req SummarizeRequest) (SummarizeResult, error)
	// SelectImages picks the final image ids from the candidate list. Callers
	// must discard returned ids that are not in the candidate list.
	SelectImages(ctx context.Context, req SelectImagesRequest) ([]string, error)
	// Caption returns a caption per image id. Callers must fall back to a
	// generic label for any image the provider omits.
	Caption(ctx context.Context, req CaptionRequest) (map[string]string, error)
	// Name returns the provider identifier (e.g., "openai", "gemini").
	Name() string
}

// SummarizeRequest is the input to a summarization operation.
type SummarizeRequest struct {
	ProjectName  string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	Notes        []Note
	MaxWords     int
	MaxPhotoDays int
}

// SummarizeResult is the output of a summarization operation.
type SummarizeResult struct {
	Bullets   []string
	PhotoDays []PhotoDaySuggestion
}

// SelectImagesRequest asks the provider to rank candidates against the summary.
type SelectImagesRequest struct {
	Bullets    []string
	Candidates []CandidateImage
	MaxImages  int
}

// CaptionRequest asks the provider to caption the selected images, with the
// report summary as context.
type CaptionRequest struct {
	Images  []CandidateImage
	Summary string
}
