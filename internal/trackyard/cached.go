package trackyard

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sitebrief/sitebrief/internal/cache"
	"github.com/sitebrief/sitebrief/pkg/models"
)

// CachedClient wraps a Client with a redis-backed cache so a re-enqueued
// period does not refetch from Trackyard. Cache failures fall through to the
// inner client; downloads are never cached.
type CachedClient struct {
	inner Client
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedClient(inner Client, c cache.Cache, ttl time.Duration) *CachedClient {
	return &CachedClient{inner: inner, cache: c, ttl: ttl}
}

func (c *CachedClient) ListNotes(ctx context.Context, projectID string, start, end time.Time) ([]models.Note, error) {
	key := cache.NotesKey(projectID, start, end)

	var cached []models.Note
	if c.lookup(ctx, key, &cached) {
		return cached, nil
	}

	notes, err := c.inner.ListNotes(ctx, projectID, start, end)
	if err != nil {
		return nil, err
	}
	c.put(ctx, key, notes)
	return notes, nil
}

func (c *CachedClient) ListImages(ctx context.Context, projectID string, start, end time.Time) ([]models.CandidateImage, error) {
	key := cache.ImagesKey(projectID, start, end)

	var cached []models.CandidateImage
	if c.lookup(ctx, key, &cached) {
		return cached, nil
	}

	images, err := c.inner.ListImages(ctx, projectID, start, end)
	if err != nil {
		return nil, err
	}
	c.put(ctx, key, images)
	return images, nil
}

func (c *CachedClient) DownloadImage(ctx context.Context, img models.CandidateImage, destDir string) (string, error) {
	return c.inner.DownloadImage(ctx, img, destDir)
}

func (c *CachedClient) lookup(ctx context.Context, key string, out any) bool {
	data, found, err := c.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("trackyard cache read failed", "key", key, "error", err)
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		slog.Warn("trackyard cache entry corrupt, refetching", "key", key, "error", err)
		return false
	}
	return true
}

func (c *CachedClient) put(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		slog.Warn("trackyard cache write failed", "key", key, "error", err)
	}
}

var _ Client = (*CachedClient)(nil)
