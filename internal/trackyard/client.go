// Package trackyard is the HTTP client for the Trackyard project-management
// API, which holds the daily log notes and site photos reports are built from.
package trackyard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sitebrief/sitebrief/pkg/models"
)

// Sentinel errors for Trackyard client failures.
var (
	ErrTrackyardUnreachable = errors.New("trackyard unreachable")
	ErrTrackyardResponse    = errors.New("trackyard request failed")
	ErrTrackyardTimeout     = errors.New("trackyard request timeout")
)

// Client is the interface for fetching project data from Trackyard.
type Client interface {
	ListNotes(ctx context.Context, projectID string, start, end time.Time) ([]models.Note, error)
	ListImages(ctx context.Context, projectID string, start, end time.Time) ([]models.CandidateImage, error)
	// DownloadImage fetches the image bytes into destDir and returns the
	// local file path.
	DownloadImage(ctx context.Context, img models.CandidateImage, destDir string) (string, error)
}

// HTTPClient implements Client using Trackyard's HTTP API.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a new Trackyard HTTP client.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

const dayFormat = "2006-01-02"

// ListNotes fetches the daily log notes for a project and period. A 404 from
// Trackyard (project unknown or no logs endpoint for it) is coerced to an
// empty result; the coercion is logged so genuine outages stay visible.
func (c *HTTPClient) ListNotes(ctx context.Context, projectID string, start, end time.Time) ([]models.Note, error) {
	body, err := c.get(ctx, fmt.Sprintf("/api/v2/projects/%s/daily_logs", url.PathEscape(projectID)), start, end)
	if err != nil {
		return nil, err
	}
	if body == nil {
		slog.Debug("trackyard returned 404 for daily logs, treating as empty",
			"project_id", projectID)
		return []models.Note{}, nil
	}

	var resp struct {
		Data []noteRecord `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding daily logs response: %w", err)
	}
	return parseNotes(resp.Data), nil
}

// ListImages fetches the site photos for a project and period, with the same
// 404-as-empty policy as ListNotes.
func (c *HTTPClient) ListImages(ctx context.Context, projectID string, start, end time.Time) ([]models.CandidateImage, error) {
	body, err := c.get(ctx, fmt.Sprintf("/api/v2/projects/%s/images", url.PathEscape(projectID)), start, end)
	if err != nil {
		return nil, err
	}
	if body == nil {
		slog.Debug("trackyard returned 404 for images, treating as empty",
			"project_id", projectID)
		return []models.CandidateImage{}, nil
	}

	var resp struct {
		Data []imageRecord `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding images response: %w", err)
	}
	return parseImages(resp.Data), nil
}

func (c *HTTPClient) DownloadImage(ctx context.Context, img models.CandidateImage, destDir string) (string, error) {
	u := img.URL
	if strings.HasPrefix(u, "/") {
		u = c.baseURL + u
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: image %s: status %d", ErrTrackyardResponse, img.ID, resp.StatusCode)
	}

	name := img.Filename
	if name == "" {
		name = img.ID + ".jpg"
	}
	path := filepath.Join(destDir, filepath.Base(name))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating image file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("writing image file: %w", err)
	}
	return path, nil
}

// get performs a GET with period query params. Returns (nil, nil) on 404.
func (c *HTTPClient) get(ctx context.Context, path string, start, end time.Time) ([]byte, error) {
	params := url.Values{
		"start": {start.Format(dayFormat)},
		"end":   {end.Format(dayFormat)},
	}
	u := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrTrackyardResponse, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTrackyardTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrTrackyardTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrTrackyardUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrTrackyardUnreachable, err)
}

// --- Trackyard response types ---

type noteRecord struct {
	ID        string `json:"id"`
	LogDate   string `json:"log_date"`
	CreatedAt string `json:"created_at"`
	Author    string `json:"author"`
	Body      string `json:"body"`
}

type imageRecord struct {
	ID          string `json:"id"`
	LogDate     string `json:"log_date"`
	CreatedAt   string `json:"created_at"`
	Description string `json:"description"`
	FileSize    int64  `json:"file_size"`
	FileName    string `json:"file_name"`
	URL         string `json:"url"`
}

func parseNotes(records []noteRecord) []models.Note {
	notes := make([]models.Note, 0, len(records))
	for _, r := range records {
		notes = append(notes, models.Note{
			ID:     r.ID,
			Date:   normalizeDate(r.LogDate, r.CreatedAt),
			Author: r.Author,
			Body:   r.Body,
		})
	}
	return notes
}

func parseImages(records []imageRecord) []models.CandidateImage {
	images := make([]models.CandidateImage, 0, len(records))
	for _, r := range records {
		images = append(images, models.CandidateImage{
			ID:          r.ID,
			TakenOn:     normalizeDate(r.LogDate, r.CreatedAt),
			Description: r.Description,
			SizeBytes:   r.FileSize,
			Filename:    r.FileName,
			URL:         r.URL,
		})
	}
	return images
}

// normalizeDate prefers the explicit log date and falls back to the date of
// the creation timestamp. Returns the zero time when neither parses.
func normalizeDate(logDate, createdAt string) time.Time {
	if logDate != "" {
		if d, err := time.ParseInLocation(dayFormat, logDate, time.UTC); err == nil {
			return d
		}
	}
	if createdAt != "" {
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			ts = ts.UTC()
			return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Time{}
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
