package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tmdb-agent/internal/application/port/input"
	"tmdb-agent/internal/domain/entity"
	"tmdb-agent/internal/infrastructure/checkpoint/inmem"
	"tmdb-agent/internal/infrastructure/logger"
)

type runnerFunc func(ctx context.Context, state entity.RunState) (*entity.RunOutcome, error)

func (f runnerFunc) Run(ctx context.Context, state entity.RunState) (*entity.RunOutcome, error) {
	return f(ctx, state)
}

func echoRunner() runnerFunc {
	return func(_ context.Context, state entity.RunState) (*entity.RunOutcome, error) {
		return &entity.RunOutcome{RunID: state.ID, Answer: "answer to " + state.Query, Generations: 1}, nil
	}
}

// blockingRunner waits until the run context is cancelled.
// gatedStore blocks Save for one run ID until release is closed.
type gatedStore struct {
	*inmem.Store
	id      entity.RunID
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) Save(ctx context.Context, cp entity.Checkpoint) error {
	if cp.State.ID == g.id {
		select {
		case g.entered <- struct{}{}:
		default:
		}
		<-g.release
	}
	return g.Store.Save(ctx, cp)
}

func hosted(s *Scheduler, id entity.RunID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.runs[id]
	return ok
}

func blockingRunner(started chan<- entity.RunState) runnerFunc {
	return func(ctx context.Context, state entity.RunState) (*entity.RunOutcome, error) {
		started <- state
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

func result(t *testing.T, h input.RunHandle) (*entity.RunOutcome, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	outcome, err := h.Result(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "run did not finish")
	return outcome, err
}

func TestSubmit_CompletesRun(t *testing.T) {
	s := New(echoRunner(), inmem.New(), logger.NewNop())
	defer s.Shutdown(context.Background())

	h, err := s.Submit(context.Background(), input.SubmitRequest{Query: "who directed Heat?"})
	require.NoError(t, err)

	_, parseErr := uuid.Parse(h.ID().String())
	assert.NoError(t, parseErr)

	outcome, err := result(t, h)
	require.NoError(t, err)
	assert.Equal(t, "answer to who directed Heat?", outcome.Answer)
	assert.Equal(t, entity.RunStatusCompleted, h.Status())

	found, ok := s.Lookup(context.Background(), h.ID())
	require.True(t, ok)
	assert.Equal(t, h.ID(), found.ID())
}

func TestSubmit_RejectsActiveDuplicate(t *testing.T) {
	started := make(chan entity.RunState, 1)
	s := New(blockingRunner(started), inmem.New(), logger.NewNop())
	defer s.Shutdown(context.Background())

	_, err := s.Submit(context.Background(), input.SubmitRequest{ID: "ctx-1", Query: "q"})
	require.NoError(t, err)
	<-started

	_, err = s.Submit(context.Background(), input.SubmitRequest{ID: "ctx-1", Query: "q"})
	assert.ErrorIs(t, err, entity.ErrRunExists)
}

func TestSubmit_ReusesFinishedID(t *testing.T) {
	s := New(echoRunner(), inmem.New(), logger.NewNop())
	defer s.Shutdown(context.Background())

	first, err := s.Submit(context.Background(), input.SubmitRequest{ID: "ctx-1", Query: "one"})
	require.NoError(t, err)
	_, err = result(t, first)
	require.NoError(t, err)

	second, err := s.Submit(context.Background(), input.SubmitRequest{ID: "ctx-1", Query: "two"})
	require.NoError(t, err)
	outcome, err := result(t, second)
	require.NoError(t, err)
	assert.Equal(t, "answer to two", outcome.Answer)
}

func TestCancel_IsDistinctFromFailure(t *testing.T) {
	started := make(chan entity.RunState, 1)
	store := inmem.New()
	s := New(blockingRunner(started), store, logger.NewNop())
	defer s.Shutdown(context.Background())

	h, err := s.Submit(context.Background(), input.SubmitRequest{ID: "run-1", Query: "q"})
	require.NoError(t, err)
	<-started

	require.NoError(t, s.Cancel(context.Background(), "run-1"))

	outcome, err := result(t, h)
	assert.Nil(t, outcome)
	assert.ErrorIs(t, err, entity.ErrCancelled)
	assert.NotErrorIs(t, err, entity.ErrRunFatal)
	assert.Equal(t, entity.RunStatusCancelled, h.Status())

	cp, err := store.Load(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusCancelled, cp.Status)
}

func TestCancel_UnknownRun(t *testing.T) {
	s := New(echoRunner(), inmem.New(), logger.NewNop())
	defer s.Shutdown(context.Background())

	err := s.Cancel(context.Background(), "missing")
	assert.ErrorIs(t, err, entity.ErrRunNotFound)
}

func TestRun_FatalErrorMarksFailed(t *testing.T) {
	store := inmem.New()
	fatal := fmt.Errorf("reason: %w: provider down", entity.ErrRunFatal)
	s := New(runnerFunc(func(context.Context, entity.RunState) (*entity.RunOutcome, error) {
		return nil, fatal
	}), store, logger.NewNop())
	defer s.Shutdown(context.Background())

	h, err := s.Submit(context.Background(), input.SubmitRequest{ID: "run-1", Query: "q"})
	require.NoError(t, err)

	outcome, err := result(t, h)
	assert.Nil(t, outcome)
	assert.ErrorIs(t, err, entity.ErrRunFatal)
	assert.NotErrorIs(t, err, entity.ErrCancelled)
	assert.Equal(t, entity.RunStatusFailed, h.Status())

	cp, err := store.Load(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusFailed, cp.Status)
	assert.Contains(t, cp.Error, "provider down")
}

func TestSubmit_ConcurrentRunsAreIsolated(t *testing.T) {
	s := New(runnerFunc(func(ctx context.Context, state entity.RunState) (*entity.RunOutcome, error) {
		select {
		case <-time.After(time.Duration(len(state.Query)%5) * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &entity.RunOutcome{RunID: state.ID, Answer: state.Query}, nil
	}), inmem.New(), logger.NewNop())
	defer s.Shutdown(context.Background())

	const runs = 20
	handles := make([]input.RunHandle, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := s.Submit(context.Background(), input.SubmitRequest{Query: fmt.Sprintf("query-%d", i)})
			if assert.NoError(t, err) {
				handles[i] = h
			}
		}(i)
	}
	wg.Wait()

	for i, h := range handles {
		require.NotNil(t, h)
		outcome, err := result(t, h)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("query-%d", i), outcome.Answer)
		assert.Equal(t, h.ID(), outcome.RunID)
	}
}

func TestResume_RestartsActiveCheckpoints(t *testing.T) {
	ctx := context.Background()
	store := inmem.New()

	inFlight := entity.NewRunState("run-1", "q")
	inFlight.Phase = entity.PhaseObserve
	inFlight.Generation = 2
	inFlight.ActionResult = `{"results":[]}`
	require.NoError(t, store.Save(ctx, entity.Checkpoint{State: inFlight, Status: entity.RunStatusRunning}))

	finished := entity.NewRunState("run-2", "q")
	require.NoError(t, store.Save(ctx, entity.Checkpoint{State: finished, Status: entity.RunStatusCompleted}))

	var mu sync.Mutex
	var resumed []entity.RunState
	s := New(runnerFunc(func(_ context.Context, state entity.RunState) (*entity.RunOutcome, error) {
		mu.Lock()
		resumed = append(resumed, state)
		mu.Unlock()
		return &entity.RunOutcome{RunID: state.ID, Answer: "resumed"}, nil
	}), store, logger.NewNop())
	defer s.Shutdown(ctx)

	handles, err := s.Resume(ctx)
	require.NoError(t, err)
	require.Len(t, handles, 1)

	outcome, err := result(t, handles[0])
	require.NoError(t, err)
	assert.Equal(t, "resumed", outcome.Answer)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, resumed, 1)
	assert.Equal(t, entity.PhaseObserve, resumed[0].Phase)
	assert.Equal(t, 2, resumed[0].Generation)
	assert.Equal(t, inFlight.ActionResult, resumed[0].ActionResult)
}

func TestShutdown_LeavesRunsResumable(t *testing.T) {
	started := make(chan entity.RunState, 1)
	store := inmem.New()
	s := New(blockingRunner(started), store, logger.NewNop())

	h, err := s.Submit(context.Background(), input.SubmitRequest{ID: "run-1", Query: "q"})
	require.NoError(t, err)
	<-started

	require.NoError(t, s.Shutdown(context.Background()))

	_, err = result(t, h)
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, errors.Is(err, entity.ErrCancelled))

	active, err := store.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, entity.RunID("run-1"), active[0].State.ID)

	_, err = s.Submit(context.Background(), input.SubmitRequest{Query: "late"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFinishedRun_IsEvictedAndServedFromStore(t *testing.T) {
	store := inmem.New()
	s := New(echoRunner(), store, logger.NewNop())
	defer s.Shutdown(context.Background())

	h, err := s.Submit(context.Background(), input.SubmitRequest{ID: "run-1", Query: "who directed Heat?"})
	require.NoError(t, err)
	_, err = result(t, h)
	require.NoError(t, err)

	assert.False(t, hosted(s, "run-1"))

	found, ok := s.Lookup(context.Background(), "run-1")
	require.True(t, ok)
	assert.Equal(t, entity.RunStatusCompleted, found.Status())
	select {
	case <-found.Done():
	default:
		t.Fatal("stored handle of a completed run is not done")
	}
	outcome, err := result(t, found)
	require.NoError(t, err)
	assert.Equal(t, "answer to who directed Heat?", outcome.Answer)

	require.NoError(t, s.Cancel(context.Background(), "run-1"))
	cp, err := store.Load(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusCompleted, cp.Status)
}

func TestFinishedRun_FailureServedFromStore(t *testing.T) {
	s := New(runnerFunc(func(context.Context, entity.RunState) (*entity.RunOutcome, error) {
		return nil, fmt.Errorf("reason: %w: provider down", entity.ErrRunFatal)
	}), inmem.New(), logger.NewNop())
	defer s.Shutdown(context.Background())

	h, err := s.Submit(context.Background(), input.SubmitRequest{ID: "run-1", Query: "q"})
	require.NoError(t, err)
	_, _ = result(t, h)

	found, ok := s.Lookup(context.Background(), "run-1")
	require.True(t, ok)
	assert.Equal(t, entity.RunStatusFailed, found.Status())
	_, err = result(t, found)
	assert.ErrorContains(t, err, "provider down")
}

func TestLookup_UnknownRun(t *testing.T) {
	s := New(echoRunner(), inmem.New(), logger.NewNop())
	defer s.Shutdown(context.Background())

	_, ok := s.Lookup(context.Background(), "missing")
	assert.False(t, ok)
}

func TestCancel_UnhostedCheckpointIsNotResumed(t *testing.T) {
	ctx := context.Background()
	store := inmem.New()
	require.NoError(t, store.Save(ctx, entity.Checkpoint{State: entity.NewRunState("run-1", "q"), Status: entity.RunStatusRunning}))

	s := New(echoRunner(), store, logger.NewNop())
	defer s.Shutdown(ctx)

	require.NoError(t, s.Cancel(ctx, "run-1"))

	handles, err := s.Resume(ctx)
	require.NoError(t, err)
	assert.Empty(t, handles)

	cp, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusCancelled, cp.Status)
}

func TestSubmit_SavesOutsideRegistryLock(t *testing.T) {
	store := &gatedStore{
		Store:   inmem.New(),
		id:      "slow",
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	s := New(echoRunner(), store, logger.NewNop())
	defer s.Shutdown(context.Background())

	submitted := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), input.SubmitRequest{ID: "slow", Query: "q"})
		submitted <- err
	}()
	<-store.entered

	looked := make(chan struct{})
	go func() {
		s.Lookup(context.Background(), "other")
		close(looked)
	}()
	select {
	case <-looked:
	case <-time.After(time.Second):
		t.Fatal("Lookup blocked behind a checkpoint save")
	}

	_, err := s.Submit(context.Background(), input.SubmitRequest{ID: "slow", Query: "q"})
	assert.ErrorIs(t, err, entity.ErrRunExists)

	close(store.release)
	require.NoError(t, <-submitted)
}
