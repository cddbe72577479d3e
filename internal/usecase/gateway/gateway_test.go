package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tmdb-agent/internal/domain/entity"
	"tmdb-agent/internal/infrastructure/logger"
)

type fakeSteps struct {
	reason   func(ctx context.Context) (entity.AgentResult, error)
	dispatch func(ctx context.Context) string
	observe  func(ctx context.Context) (entity.ObservationResult, error)
	compact  func(ctx context.Context, log entity.ContextLog) (entity.CompactionResult, error)
}

func (f *fakeSteps) Reason(ctx context.Context, _ string, _ entity.ContextLog) (entity.AgentResult, error) {
	return f.reason(ctx)
}

func (f *fakeSteps) Dispatch(ctx context.Context, _ entity.ToolName, _ json.RawMessage) string {
	return f.dispatch(ctx)
}

func (f *fakeSteps) Observe(ctx context.Context, _ string, _ entity.ContextLog, _ string) (entity.ObservationResult, error) {
	return f.observe(ctx)
}

func (f *fakeSteps) Compact(ctx context.Context, _ string, log entity.ContextLog) (entity.CompactionResult, error) {
	return f.compact(ctx, log)
}

func fastPolicy(attempts int) Policy {
	return Policy{Timeout: time.Second, MaxAttempts: attempts, Backoff: time.Millisecond}
}

func answer(text string) entity.AgentResult {
	return entity.AgentResult{Thought: "done", Answer: &entity.Answer{Text: text}}
}

func TestReason_FailTwiceThenSucceed(t *testing.T) {
	attempts := 0
	steps := &fakeSteps{reason: func(context.Context) (entity.AgentResult, error) {
		attempts++
		if attempts < 3 {
			return entity.AgentResult{}, fmt.Errorf("provider hiccup %d", attempts)
		}
		return answer("ok"), nil
	}}

	g := New(steps, fastPolicy(5), logger.NewNop())
	res, err := g.Reason(context.Background(), "q", entity.ContextLog{})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, "ok", res.Answer.Text)
}

func TestReason_ExhaustedIsFatal(t *testing.T) {
	attempts := 0
	last := errors.New("still down")
	steps := &fakeSteps{reason: func(context.Context) (entity.AgentResult, error) {
		attempts++
		return entity.AgentResult{}, last
	}}

	g := New(steps, fastPolicy(3), logger.NewNop())
	_, err := g.Reason(context.Background(), "q", entity.ContextLog{})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, entity.ErrRunFatal)
	assert.ErrorIs(t, err, last)
	assert.True(t, IsFatal(err))
}

func TestReason_MalformedOutputIsRetried(t *testing.T) {
	attempts := 0
	steps := &fakeSteps{reason: func(context.Context) (entity.AgentResult, error) {
		attempts++
		if attempts == 1 {
			return entity.AgentResult{
				Answer: &entity.Answer{Text: "a"},
				Action: &entity.Action{ToolName: entity.ToolMovieSearch},
			}, nil
		}
		return answer("clean"), nil
	}}

	g := New(steps, fastPolicy(3), logger.NewNop())
	res, err := g.Reason(context.Background(), "q", entity.ContextLog{})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "clean", res.Answer.Text)
}

func TestReason_MalformedExhaustedKeepsCause(t *testing.T) {
	steps := &fakeSteps{reason: func(context.Context) (entity.AgentResult, error) {
		return entity.AgentResult{Thought: "neither"}, nil
	}}

	g := New(steps, fastPolicy(2), logger.NewNop())
	_, err := g.Reason(context.Background(), "q", entity.ContextLog{})

	assert.ErrorIs(t, err, entity.ErrRunFatal)
	assert.ErrorIs(t, err, entity.ErrMalformedOutput)
}

func TestCall_PerAttemptTimeout(t *testing.T) {
	attempts := 0
	policy := Policy{Timeout: 20 * time.Millisecond, MaxAttempts: 2, Backoff: time.Millisecond}

	_, err := Call(context.Background(), policy, logger.NewNop(), entity.StepObserve, func(ctx context.Context) (string, error) {
		attempts++
		<-ctx.Done()
		return "", ctx.Err()
	})

	assert.Equal(t, 2, attempts)
	assert.ErrorIs(t, err, entity.ErrRunFatal)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCall_CancelledStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	policy := Policy{Timeout: time.Second, MaxAttempts: 5, Backoff: time.Hour}

	done := make(chan error, 1)
	go func() {
		_, err := Call(ctx, policy, logger.NewNop(), entity.StepReason, func(context.Context) (int, error) {
			attempts++
			return 0, errors.New("transient")
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, entity.ErrRunFatal)
		assert.Equal(t, 1, attempts)
	case <-time.After(2 * time.Second):
		t.Fatal("Call did not return after cancellation")
	}
}

func TestCall_AlreadyCancelledDoesNotRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := Call(ctx, fastPolicy(3), logger.NewNop(), entity.StepReason, func(context.Context) (int, error) {
		called = true
		return 1, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestCompact_ContractViolationIsRetried(t *testing.T) {
	attempts := 0
	steps := &fakeSteps{compact: func(_ context.Context, log entity.ContextLog) (entity.CompactionResult, error) {
		attempts++
		if attempts == 1 {
			return entity.CompactionResult{Context: log}, nil
		}
		return entity.CompactionResult{Context: log.Compacted("summary")}, nil
	}}

	log := entity.NewContextLog(
		entity.Thought{Text: "1"}, entity.Thought{Text: "2"}, entity.Thought{Text: "3"},
		entity.Thought{Text: "4"}, entity.Thought{Text: "5"},
	)

	g := New(steps, fastPolicy(3), logger.NewNop())
	res, err := g.Compact(context.Background(), "q", log)

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 4, res.Context.Len())
}

func TestDispatch_BoundedByTimeout(t *testing.T) {
	steps := &fakeSteps{dispatch: func(ctx context.Context) string {
		<-ctx.Done()
		return `{"error":"` + ctx.Err().Error() + `"}`
	}}

	g := New(steps, Policy{Timeout: 20 * time.Millisecond, MaxAttempts: 1}, logger.NewNop())
	out := g.Dispatch(context.Background(), entity.ToolMovieSearch, json.RawMessage(`{}`))

	assert.Contains(t, out, "deadline exceeded")
}
