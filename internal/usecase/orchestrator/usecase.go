package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tmdb-agent/internal/application/port/output"
	"tmdb-agent/internal/application/service"
	"tmdb-agent/internal/domain/entity"
	"tmdb-agent/internal/usecase/compaction"
)

var errUnknownPhase = errors.New("unknown run phase")

// GenerationResult is either the terminal outcome of a run or the state the next generation
// starts from. Exactly one field is set.
type GenerationResult struct {
	Outcome      *entity.RunOutcome
	Continuation *entity.RunState
}

type UseCase struct {
	steps    output.StepPort
	policy   compaction.Policy
	store    output.CheckpointStore
	progress output.ProgressPort
	logger   output.LoggerPort
	pricing  entity.Pricing
	now      func() time.Time
}

func New(
	steps output.StepPort,
	policy compaction.Policy,
	store output.CheckpointStore,
	progress output.ProgressPort,
	logger output.LoggerPort,
	pricing entity.Pricing,
) *UseCase {
	return &UseCase{
		steps:    steps,
		policy:   policy,
		store:    store,
		progress: progress,
		logger:   logger,
		pricing:  pricing,
		now:      time.Now,
	}
}

// Run drives a run to completion, re-entering RunGeneration with each continuation.
func (uc *UseCase) Run(ctx context.Context, state entity.RunState) (*entity.RunOutcome, error) {
	for {
		res, err := uc.RunGeneration(ctx, state)
		if err != nil {
			return nil, err
		}
		if res.Outcome != nil {
			return res.Outcome, nil
		}
		state = *res.Continuation
	}
}

// RunGeneration executes cycles of one generation starting at state.Phase. It returns when the
// reasoning step answers, when compaction produces a continuation, or on the first fatal error.
// A checkpoint is saved after every completed step.
func (uc *UseCase) RunGeneration(ctx context.Context, state entity.RunState) (GenerationResult, error) {
	log := uc.logger.WithFields(map[string]any{
		"run_id":     state.ID.String(),
		"generation": state.Generation,
	})
	log.Info("Generation started", "phase", state.Phase, "entries", state.Context.Len())

	for {
		if err := ctx.Err(); err != nil {
			return GenerationResult{}, err
		}

		switch state.Phase {
		case entity.PhaseThink:
			uc.progress.ShowCycle(ctx, state.ID, state.Generation, state.Cycles+1)

			res, err := uc.steps.Reason(ctx, state.Query, state.Context)
			if err != nil {
				return GenerationResult{}, fmt.Errorf("reason: %w", err)
			}

			state.Ledger = state.Ledger.Append(res.Usage)
			state.Context = state.Context.Append(entity.Thought{Text: res.Thought})
			if res.Thought != "" {
				uc.progress.ShowThinking(ctx, state.ID, res.Thought)
			}

			if res.IsAnswer() {
				outcome := uc.outcome(state, res.Answer.Text)
				state.Phase = entity.PhaseDone
				uc.save(ctx, log, entity.Checkpoint{State: state, Status: entity.RunStatusCompleted, Outcome: outcome})
				log.Info("Run answered", "cycles", outcome.Cycles, "totalTokens", outcome.TotalUsage.TotalTokens)
				return GenerationResult{Outcome: outcome}, nil
			}

			action := *res.Action
			state.Context = state.Context.Append(entity.ActionRecord{
				ToolName: action.ToolName,
				Reason:   action.Reason,
				Input:    action.Input,
			})
			state.PendingAction = &action
			state.Phase = entity.PhaseAct

		case entity.PhaseAct:
			if state.PendingAction == nil {
				return GenerationResult{}, fmt.Errorf("%w: act phase without pending action", entity.ErrRunFatal)
			}
			action := *state.PendingAction

			uc.progress.ShowToolStart(ctx, state.ID, action)
			result := uc.steps.Dispatch(ctx, action.ToolName, action.Input)
			if err := ctx.Err(); err != nil {
				return GenerationResult{}, err
			}
			isError := service.IsErrorResult(result)
			uc.progress.ShowToolResult(ctx, state.ID, action.ToolName, result, isError)
			log.Debug("Action dispatched", "tool", action.ToolName, "isError", isError, "resultLen", len(result))

			state.ActionResult = result
			state.Phase = entity.PhaseObserve

		case entity.PhaseObserve:
			res, err := uc.steps.Observe(ctx, state.Query, state.Context, state.ActionResult)
			if err != nil {
				return GenerationResult{}, fmt.Errorf("observe: %w", err)
			}

			state.Ledger = state.Ledger.Append(res.Usage)
			state.Context = state.Context.Append(entity.Observation{Text: res.Text})
			state.PendingAction = nil
			state.ActionResult = ""
			state.Cycles++
			state.TotalCycles++
			uc.progress.ShowObservation(ctx, state.ID, res.Text)

			state.Phase = entity.PhaseThink
			if ok, reason := uc.policy.ShouldCompact(state); ok {
				log.Info("Compaction triggered", "reason", reason, "cycles", state.Cycles)
				state.Phase = entity.PhaseCompact
			}

		case entity.PhaseCompact:
			before := state.Context.Len()
			res, err := uc.steps.Compact(ctx, state.Query, state.Context)
			if err != nil {
				return GenerationResult{}, fmt.Errorf("compact: %w", err)
			}

			state.Ledger = state.Ledger.Append(res.Usage)
			next := state.Continue(res.Context)
			uc.progress.ShowCompaction(ctx, state.ID, before, next.Context.Len())
			uc.save(ctx, log, entity.Checkpoint{State: next, Status: entity.RunStatusRunning})
			log.Info("Generation compacted", "before", before, "after", next.Context.Len())
			return GenerationResult{Continuation: &next}, nil

		default:
			return GenerationResult{}, fmt.Errorf("%w: %w %q", entity.ErrRunFatal, errUnknownPhase, state.Phase)
		}

		uc.save(ctx, log, entity.Checkpoint{State: state, Status: entity.RunStatusRunning})
	}
}

func (uc *UseCase) outcome(state entity.RunState, answer string) *entity.RunOutcome {
	return &entity.RunOutcome{
		RunID:       state.ID,
		Answer:      answer,
		TotalUsage:  state.Ledger.Totals(uc.pricing),
		Generations: state.Generation + 1,
		Cycles:      state.TotalCycles,
	}
}

// save logs checkpoint failures instead of failing the run.
func (uc *UseCase) save(ctx context.Context, log output.LoggerPort, cp entity.Checkpoint) {
	if uc.store == nil {
		return
	}
	cp.UpdatedAt = uc.now().UTC()
	if err := uc.store.Save(context.WithoutCancel(ctx), cp); err != nil {
		log.Error("Failed to save checkpoint", "phase", cp.State.Phase, "error", err)
	}
}
