// Package gateway wraps every external step with a per-attempt timeout and a bounded number of
// constant-backoff retries.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tmdb-agent/internal/application/port/output"
	"tmdb-agent/internal/domain/entity"
)

// Policy controls retries for a wrapped step.
type Policy struct {
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Timeout:     time.Minute,
		MaxAttempts: 5,
		Backoff:     3 * time.Second,
	}
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

var _ output.StepPort = (*StepGateway)(nil)

// StepGateway decorates a StepPort. Output validation runs inside each attempt, so a malformed
// reasoning result or a broken compaction is retried like a transient failure.
type StepGateway struct {
	next   output.StepPort
	policy Policy
	logger output.LoggerPort
}

func New(next output.StepPort, policy Policy, logger output.LoggerPort) *StepGateway {
	return &StepGateway{next: next, policy: policy, logger: logger}
}

func (g *StepGateway) Reason(ctx context.Context, query string, log entity.ContextLog) (entity.AgentResult, error) {
	return Call(ctx, g.policy, g.logger, entity.StepReason, func(ctx context.Context) (entity.AgentResult, error) {
		res, err := g.next.Reason(ctx, query, log)
		if err != nil {
			return entity.AgentResult{}, err
		}
		if err := res.Validate(); err != nil {
			return entity.AgentResult{}, err
		}
		return res, nil
	})
}

// Dispatch never fails. The timeout still bounds it; a tool that overruns sees its context
// cancelled and the dispatcher renders that as an error payload.
func (g *StepGateway) Dispatch(ctx context.Context, name entity.ToolName, input json.RawMessage) string {
	attemptCtx, cancel := withTimeout(ctx, g.policy.Timeout)
	defer cancel()
	return g.next.Dispatch(attemptCtx, name, input)
}

func (g *StepGateway) Observe(ctx context.Context, query string, log entity.ContextLog, actionResult string) (entity.ObservationResult, error) {
	return Call(ctx, g.policy, g.logger, entity.StepObserve, func(ctx context.Context) (entity.ObservationResult, error) {
		return g.next.Observe(ctx, query, log, actionResult)
	})
}

func (g *StepGateway) Compact(ctx context.Context, query string, log entity.ContextLog) (entity.CompactionResult, error) {
	return Call(ctx, g.policy, g.logger, entity.StepCompact, func(ctx context.Context) (entity.CompactionResult, error) {
		res, err := g.next.Compact(ctx, query, log)
		if err != nil {
			return entity.CompactionResult{}, err
		}
		if err := res.Validate(log); err != nil {
			return entity.CompactionResult{}, err
		}
		return res, nil
	})
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Call runs fn until it succeeds or the policy is exhausted. Exhaustion is reported as
// entity.ErrRunFatal wrapping the last attempt's error. Cancellation of ctx stops retrying
// immediately and returns ctx's error.
func Call[T any](ctx context.Context, policy Policy, logger output.LoggerPort, step entity.StepKind, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	attempts := policy.attempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx, cancel := withTimeout(ctx, policy.Timeout)
		res, err := fn(attemptCtx)
		cancel()
		if err == nil {
			if attempt > 1 {
				logger.Info("Step recovered", "step", step, "attempt", attempt)
			}
			return res, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		lastErr = err
		logger.Warn("Step attempt failed", "step", step, "attempt", attempt, "maxAttempts", attempts, "error", err)
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, policy.Backoff); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%w: %s step exhausted %d attempts: %w", entity.ErrRunFatal, step, attempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsFatal reports whether err ended a run after exhausting retries.
func IsFatal(err error) bool {
	return errors.Is(err, entity.ErrRunFatal)
}
