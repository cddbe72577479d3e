package input

import (
	"context"

	"tmdb-agent/internal/domain/entity"
)

type SubmitRequest struct {
	// ID is optional; a new one is generated when empty.
	ID    entity.RunID
	Query string
}

type RunHandle interface {
	ID() entity.RunID
	Status() entity.RunStatus
	Done() <-chan struct{}
	// Result blocks until the run is terminal or ctx is done.
	Result(ctx context.Context) (*entity.RunOutcome, error)
}

type RunSubmitter interface {
	Submit(ctx context.Context, req SubmitRequest) (RunHandle, error)
	// Lookup also finds runs that finished earlier, from their last checkpoint.
	Lookup(ctx context.Context, id entity.RunID) (RunHandle, bool)
	Cancel(ctx context.Context, id entity.RunID) error
}
