// Package prompt holds the prompt and response wire formats shared by the
// model-backed providers.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sitebrief/sitebrief/pkg/models"
)

const dayFormat = "2006-01-02"

// Summarize renders the summarization instruction for a model that can
// return JSON.
func Summarize(req models.SummarizeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You summarize construction daily logs into a weekly progress report.\n")
	fmt.Fprintf(&b, "Project: %s\nPeriod: %s to %s\n\n",
		req.ProjectName, req.PeriodStart.Format(dayFormat), req.PeriodEnd.Format(dayFormat))
	fmt.Fprintf(&b, "Write at most %d words of bullet points covering the work performed, ", req.MaxWords)
	fmt.Fprintf(&b, "and suggest up to %d dates with the most visually significant activity ", req.MaxPhotoDays)
	fmt.Fprintf(&b, "(priority 1 is the most significant).\n\nDaily logs:\n")
	for _, n := range req.Notes {
		fmt.Fprintf(&b, "[%s] %s\n", n.Date.Format(dayFormat), n.Body)
	}
	b.WriteString(`
Respond with JSON only, in this exact shape:
{"bullets": ["..."], "photo_days": [{"date": "YYYY-MM-DD", "reason": "...", "priority": 1}]}`)
	return b.String()
}

// SelectImages renders the final image ranking instruction.
func SelectImages(req models.SelectImagesRequest) string {
	var b strings.Builder
	b.WriteString("Pick the images that best illustrate this progress summary:\n")
	for _, bullet := range req.Bullets {
		fmt.Fprintf(&b, "- %s\n", bullet)
	}
	fmt.Fprintf(&b, "\nChoose at most %d of these candidate images:\n", req.MaxImages)
	for _, c := range req.Candidates {
		fmt.Fprintf(&b, "id=%s date=%s description=%q\n", c.ID, c.TakenOn.Format(dayFormat), c.Description)
	}
	b.WriteString(`
Respond with JSON only: {"image_ids": ["..."]}`)
	return b.String()
}

// Caption renders the captioning instruction.
func Caption(req models.CaptionRequest) string {
	var b strings.Builder
	b.WriteString("Write a one-sentence caption for each site photo, informed by this report summary:\n")
	b.WriteString(req.Summary)
	b.WriteString("\n\nPhotos:\n")
	for _, img := range req.Images {
		fmt.Fprintf(&b, "id=%s date=%s description=%q\n", img.ID, img.TakenOn.Format(dayFormat), img.Description)
	}
	b.WriteString(`
Respond with JSON only: {"captions": {"<id>": "<caption>"}}`)
	return b.String()
}

type summarizeResponse struct {
	Bullets   []string `json:"bullets"`
	PhotoDays []struct {
		Date     string `json:"date"`
		Reason   string `json:"reason"`
		Priority *int   `json:"priority"`
	} `json:"photo_days"`
}

type selectImagesResponse struct {
	ImageIDs []string `json:"image_ids"`
}

type captionResponse struct {
	Captions map[string]string `json:"captions"`
}

// ParseSummarize decodes a model's summarize JSON. Photo days with
// unparseable dates are dropped rather than failing the whole summary.
func ParseSummarize(raw string) (models.SummarizeResult, error) {
	var resp summarizeResponse
	if err := json.Unmarshal([]byte(CleanJSONBlock(raw)), &resp); err != nil {
		return models.SummarizeResult{}, fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}
	if len(resp.Bullets) == 0 {
		return models.SummarizeResult{}, fmt.Errorf("%w: no bullets", models.ErrInvalidResponse)
	}

	result := models.SummarizeResult{Bullets: resp.Bullets}
	for _, pd := range resp.PhotoDays {
		date, err := time.ParseInLocation(dayFormat, pd.Date, time.UTC)
		if err != nil {
			continue
		}
		result.PhotoDays = append(result.PhotoDays, models.PhotoDaySuggestion{
			Date:     date,
			Reason:   pd.Reason,
			Priority: pd.Priority,
		})
	}
	return result, nil
}

// ParseSelectImages decodes a model's image selection JSON.
func ParseSelectImages(raw string) ([]string, error) {
	var resp selectImagesResponse
	if err := json.Unmarshal([]byte(CleanJSONBlock(raw)), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}
	return resp.ImageIDs, nil
}

// ParseCaption decodes a model's captioning JSON.
func ParseCaption(raw string) (map[string]string, error) {
	var resp captionResponse
	if err := json.Unmarshal([]byte(CleanJSONBlock(raw)), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}
	if resp.Captions == nil {
		resp.Captions = map[string]string{}
	}
	return resp.Captions, nil
}

// CleanJSONBlock strips a markdown code fence some models wrap JSON in.
func CleanJSONBlock(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
