package artifact

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPStore talks to an S3-compatible blob gateway: PUT to write, DELETE to
// remove. The storage path recorded on jobs is the full object URL.
type HTTPStore struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPStore(baseURL, token string, timeout time.Duration) *HTTPStore {
	return &HTTPStore{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPStore) Upload(ctx context.Context, data []byte, key string) (string, error) {
	u := s.baseURL + "/" + strings.TrimPrefix(key, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	s.setHeaders(req)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: upload status %d", ErrRejected, resp.StatusCode)
	}
	return u, nil
}

func (s *HTTPStore) Delete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return fmt.Errorf("building delete request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	// 404 means the artifact is already gone; deletion is idempotent.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent &&
		resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: delete status %d", ErrRejected, resp.StatusCode)
	}
	return nil
}

func (s *HTTPStore) setHeaders(req *http.Request) {
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
}

var _ Store = (*HTTPStore)(nil)
