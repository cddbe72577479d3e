// Package scheduler hosts runs. Every run executes in its own goroutine with private state;
// the scheduler only shares the registry of active runs. Finished runs are served from the
// checkpoint store.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"tmdb-agent/internal/application/port/input"
	"tmdb-agent/internal/application/port/output"
	"tmdb-agent/internal/domain/entity"
)

var (
	ErrClosed = errors.New("scheduler closed")

	errShutdown = errors.New("scheduler shutting down")
)

// Runner drives one run from the given state until it answers or fails.
type Runner interface {
	Run(ctx context.Context, state entity.RunState) (*entity.RunOutcome, error)
}

var _ input.RunSubmitter = (*Scheduler)(nil)

type Scheduler struct {
	runner Runner
	store  output.CheckpointStore
	logger output.LoggerPort

	base context.Context
	stop context.CancelCauseFunc
	wg   sync.WaitGroup

	mu      sync.Mutex
	runs    map[entity.RunID]*run
	pending map[entity.RunID]struct{}
	closed  bool
}

func New(runner Runner, store output.CheckpointStore, logger output.LoggerPort) *Scheduler {
	base, stop := context.WithCancelCause(context.Background())
	return &Scheduler{
		runner:  runner,
		store:   store,
		logger:  logger,
		base:    base,
		stop:    stop,
		runs:    map[entity.RunID]*run{},
		pending: map[entity.RunID]struct{}{},
	}
}

// Submit starts a new run. A caller-supplied ID may be reused once its previous run is terminal.
func (s *Scheduler) Submit(ctx context.Context, req input.SubmitRequest) (input.RunHandle, error) {
	id := req.ID
	if id == "" {
		id = entity.RunID(uuid.NewString())
	}
	state := entity.NewRunState(id, req.Query)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.busyLocked(id) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", entity.ErrRunExists, id)
	}
	s.pending[id] = struct{}{}
	s.mu.Unlock()

	err := s.store.Save(ctx, entity.Checkpoint{
		State:     state,
		Status:    entity.RunStatusRunning,
		UpdatedAt: time.Now().UTC(),
	})

	s.mu.Lock()
	delete(s.pending, id)
	closed := s.closed
	if err == nil && !closed {
		s.logger.Info("Run submitted", "run_id", id, "query", req.Query)
		r := s.startLocked(state)
		s.mu.Unlock()
		return r, nil
	}
	s.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}
	s.markTerminal(id, entity.RunStatusCancelled, nil, ErrClosed)
	return nil, ErrClosed
}

// busyLocked reports whether id belongs to a run that is being submitted or has not finished.
func (s *Scheduler) busyLocked(id entity.RunID) bool {
	if _, ok := s.pending[id]; ok {
		return true
	}
	prev, ok := s.runs[id]
	return ok && !prev.Status().Terminal()
}

// Resume restarts every run whose last checkpoint is not terminal. The step that was in flight
// when the process stopped is executed again.
func (s *Scheduler) Resume(ctx context.Context) ([]input.RunHandle, error) {
	active, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active runs: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	handles := make([]input.RunHandle, 0, len(active))
	for _, cp := range active {
		if s.busyLocked(cp.State.ID) || cp.State.Phase == entity.PhaseDone {
			continue
		}
		s.logger.Info("Resuming run",
			"run_id", cp.State.ID,
			"generation", cp.State.Generation,
			"phase", cp.State.Phase,
		)
		handles = append(handles, s.startLocked(cp.State))
	}
	return handles, nil
}

// Lookup returns the live handle of an active run, or a handle rebuilt from the last checkpoint
// once the run has left the registry.
func (s *Scheduler) Lookup(ctx context.Context, id entity.RunID) (input.RunHandle, bool) {
	s.mu.Lock()
	r, ok := s.runs[id]
	s.mu.Unlock()
	if ok {
		return r, true
	}

	cp, err := s.store.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, entity.ErrRunNotFound) {
			s.logger.Warn("Failed to load checkpoint", "run_id", id, "error", err)
		}
		return nil, false
	}
	return newStoredRun(cp), true
}

// Cancel aborts the in-flight step of a run and waits until the run has stopped or ctx is done.
// Cancelling a finished run is a no-op. A run that is checkpointed but not hosted is marked
// cancelled so Resume skips it.
func (s *Scheduler) Cancel(ctx context.Context, id entity.RunID) error {
	s.mu.Lock()
	r, ok := s.runs[id]
	s.mu.Unlock()
	if !ok {
		cp, err := s.store.Load(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to cancel run %s: %w", id, err)
		}
		if !cp.Status.Terminal() {
			s.markTerminal(id, entity.RunStatusCancelled, nil, entity.ErrCancelled)
		}
		return nil
	}

	r.cancel(entity.ErrCancelled)

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops all runs without marking them cancelled, so Resume picks them up after a
// restart. It waits for run goroutines until ctx is done.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.stop(errShutdown)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) startLocked(state entity.RunState) *run {
	ctx, cancel := context.WithCancelCause(s.base)
	r := newRun(state.ID, cancel)
	s.runs[state.ID] = r

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel(nil)

		outcome, err := s.runner.Run(ctx, state)
		s.finish(ctx, r, outcome, err)
	}()
	return r
}

func (s *Scheduler) finish(ctx context.Context, r *run, outcome *entity.RunOutcome, err error) {
	log := s.logger.WithField("run_id", r.id.String())

	if err == nil {
		log.Info("Run completed", "cycles", outcome.Cycles, "generations", outcome.Generations)
		s.markTerminal(r.id, entity.RunStatusCompleted, outcome, nil)
		s.evict(r)
		r.complete(entity.RunStatusCompleted, outcome, nil)
		return
	}

	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, errShutdown):
		log.Info("Run interrupted by shutdown", "error", err)
		s.evict(r)
		r.complete(entity.RunStatusRunning, nil, fmt.Errorf("%w: %w", ErrClosed, err))

	case errors.Is(cause, entity.ErrCancelled):
		log.Info("Run cancelled")
		s.markTerminal(r.id, entity.RunStatusCancelled, nil, entity.ErrCancelled)
		s.evict(r)
		r.complete(entity.RunStatusCancelled, nil, fmt.Errorf("%w: %s", entity.ErrCancelled, r.id))

	default:
		log.Error("Run failed", "error", err)
		s.markTerminal(r.id, entity.RunStatusFailed, nil, err)
		s.evict(r)
		r.complete(entity.RunStatusFailed, nil, err)
	}
}

// evict drops r from the registry unless its ID was already taken by a newer run.
func (s *Scheduler) evict(r *run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runs[r.id] == r {
		delete(s.runs, r.id)
	}
}

func (s *Scheduler) markTerminal(id entity.RunID, status entity.RunStatus, outcome *entity.RunOutcome, cause error) {
	ctx := context.Background()
	cp, err := s.store.Load(ctx, id)
	if err != nil {
		s.logger.Warn("Failed to load checkpoint for terminal status", "run_id", id, "error", err)
		return
	}
	cp.Status = status
	if outcome != nil {
		cp.Outcome = outcome
	}
	if cause != nil {
		cp.Error = cause.Error()
	}
	cp.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, cp); err != nil {
		s.logger.Error("Failed to save terminal checkpoint", "run_id", id, "error", err)
	}
}
