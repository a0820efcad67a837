// Package artifact abstracts durable storage for finished report documents.
package artifact

import (
	"context"
	"errors"
)

// Sentinel errors for artifact store failures.
var (
	ErrUnreachable = errors.New("artifact store unreachable")
	ErrRejected    = errors.New("artifact store rejected request")
)

// Store is the durable artifact storage interface. Upload returns the
// storage path recorded on the job; Delete takes that same path and must be
// idempotent (deleting an already-gone artifact succeeds).
type Store interface {
	Upload(ctx context.Context, data []byte, key string) (string, error)
	Delete(ctx context.Context, path string) error
}
