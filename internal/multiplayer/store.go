package multiplayer

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("record version conflict")
	ErrExists          = errors.New("record already exists")
)

// Store holds shared records. Update applies a patch only when the stored
// version equals ifVersion; zero writes unconditionally. Every successful
// write bumps the version and is pushed to subscribers as a full record.
type Store interface {
	Create(ctx context.Context, r *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Update(ctx context.Context, id string, p Patch, ifVersion int64) (*Record, error)
	Delete(ctx context.Context, id string) error
	// Subscribe delivers the current record and then every change until
	// ctx is done, when the channel is closed.
	Subscribe(ctx context.Context, id string) (<-chan *Record, error)
}
