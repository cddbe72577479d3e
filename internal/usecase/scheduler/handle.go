package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tmdb-agent/internal/application/port/input"
	"tmdb-agent/internal/domain/entity"
)

var _ input.RunHandle = (*run)(nil)

type run struct {
	id     entity.RunID
	cancel context.CancelCauseFunc
	done   chan struct{}

	mu      sync.RWMutex
	status  entity.RunStatus
	outcome *entity.RunOutcome
	err     error
}

func newRun(id entity.RunID, cancel context.CancelCauseFunc) *run {
	return &run{
		id:     id,
		cancel: cancel,
		done:   make(chan struct{}),
		status: entity.RunStatusRunning,
	}
}

// newStoredRun rebuilds a read-only handle from a checkpoint. A non-terminal checkpoint belongs to
// a run waiting for Resume, so its handle never completes.
func newStoredRun(cp entity.Checkpoint) *run {
	r := &run{
		id:      cp.State.ID,
		cancel:  func(error) {},
		done:    make(chan struct{}),
		status:  cp.Status,
		outcome: cp.Outcome,
	}
	switch cp.Status {
	case entity.RunStatusCancelled:
		r.err = fmt.Errorf("%w: %s", entity.ErrCancelled, r.id)
	case entity.RunStatusFailed:
		r.err = errors.New(cp.Error)
	}
	if cp.Status.Terminal() {
		close(r.done)
	}
	return r
}

func (r *run) ID() entity.RunID { return r.id }

func (r *run) Status() entity.RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *run) Done() <-chan struct{} { return r.done }

func (r *run) Result(ctx context.Context) (*entity.RunOutcome, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.outcome, r.err
}

func (r *run) complete(status entity.RunStatus, outcome *entity.RunOutcome, err error) {
	r.mu.Lock()
	r.status = status
	r.outcome = outcome
	r.err = err
	r.mu.Unlock()
	close(r.done)
}
