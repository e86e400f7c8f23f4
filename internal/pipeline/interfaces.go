package pipeline

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrArtifactNotFound is returned by ArtifactStore.OpenObject when the
// requested artifact does not exist.
var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactStore writes and reads the flat files exchanged between stages.
// PutObject replaces any existing object at path.
type ArtifactStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	OpenObject(ctx context.Context, path string) (io.ReadCloser, error)
}

// CatalogAPI talks to the leasing catalog. Transport failures are returned
// as errors; HTTP error statuses are returned as responses so callers can
// decide how to classify them.
type CatalogAPI interface {
	Search(ctx context.Context) (APIResponse, error)
	Detail(ctx context.Context, id string) (APIResponse, error)
}

// Publisher pushes stage-completion notifications.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes artifact checksums.
type Hasher interface {
	Sum(data []byte) string
}

// Clock returns the current time and sleeps (useful for testing).
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
