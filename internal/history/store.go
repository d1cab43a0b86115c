package history

import (
	"context"
	"errors"
)

// ErrStoreUnavailable is returned by store operations while the backing
// store cannot be reached. It marks degraded mode, a recoverable
// condition the caller must handle, not a process-fatal failure.
var ErrStoreUnavailable = errors.New("history store unavailable")

// Store abstracts the durable, per-session ordered message log.
// Entries are encoded records, oldest first. AppendAndTrim must apply
// the append and the length bound as one atomic unit so concurrent
// writers to the same session never observe one without the other.
// Implementations must be safe for concurrent use.
type Store interface {
	AppendAndTrim(ctx context.Context, sessionID string, encoded []string) error
	ReadRange(ctx context.Context, sessionID string) ([]string, error)
	Delete(ctx context.Context, sessionID string) (bool, error)
}
