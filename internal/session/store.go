// Package session keeps one calculator state per browser session.
package session

import (
	"context"
	"errors"

	"emicalc/internal/core"
)

var ErrSessionNotFound = errors.New("session not found")

// Store persists calculator snapshots for the lifetime of a session.
type Store interface {
	// Load returns ErrSessionNotFound for unknown or expired ids.
	Load(ctx context.Context, id string) (core.Snapshot, error)
	Save(ctx context.Context, id string, s core.Snapshot) error
	Delete(ctx context.Context, id string) error
}
