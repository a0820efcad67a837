package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FSStore keeps artifacts on the local filesystem under a root directory.
// Suited to single-node deployments and tests.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact root: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) Upload(_ context.Context, data []byte, key string) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if !strings.HasPrefix(path, s.root) {
		return "", fmt.Errorf("%w: key %q escapes artifact root", ErrRejected, key)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating artifact dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing artifact: %w", err)
	}
	return path, nil
}

func (s *FSStore) Delete(_ context.Context, path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting artifact: %w", err)
	}
	return nil
}

var _ Store = (*FSStore)(nil)
