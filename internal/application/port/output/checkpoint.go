package output

import (
	"context"

	"tmdb-agent/internal/domain/entity"
)

type CheckpointStore interface {
	Save(ctx context.Context, cp entity.Checkpoint) error
	Load(ctx context.Context, id entity.RunID) (entity.Checkpoint, error)
	// ListActive returns checkpoints of runs that have not reached a terminal status.
	ListActive(ctx context.Context) ([]entity.Checkpoint, error)
	Close() error
}
