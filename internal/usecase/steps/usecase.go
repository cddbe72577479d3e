package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tmdb-agent/internal/application/port/output"
	"tmdb-agent/internal/domain/entity"
	"tmdb-agent/internal/infrastructure/prompts"
)

const dateLayout = "2006-01-02"

var _ output.StepPort = (*UseCase)(nil)

// UseCase implements the four loop steps on top of two chat models. The high tier reasons;
// the low tier observes and compacts.
type UseCase struct {
	high       output.LLMPort
	low        output.LLMPort
	tools      output.ToolRegistry
	dispatcher output.ToolDispatcher
	logger     output.LoggerPort
	now        func() time.Time
}

func New(
	high output.LLMPort,
	low output.LLMPort,
	tools output.ToolRegistry,
	dispatcher output.ToolDispatcher,
	logger output.LoggerPort,
) *UseCase {
	return &UseCase{
		high:       high,
		low:        low,
		tools:      tools,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

func (uc *UseCase) Reason(ctx context.Context, query string, log entity.ContextLog) (entity.AgentResult, error) {
	catalog, err := prompts.GenerateToolCatalog(uc.tools.Definitions())
	if err != nil {
		return entity.AgentResult{}, fmt.Errorf("failed to generate tool catalog: %w", err)
	}

	prompt, err := prompts.GenerateThoughtPrompt(prompts.ThoughtPrompt, prompts.ThoughtData{
		UserQuery:        query,
		CurrentDate:      uc.now().UTC().Format(dateLayout),
		PreviousSteps:    log.Render(),
		AvailableActions: catalog,
	})
	if err != nil {
		return entity.AgentResult{}, err
	}

	resp, err := uc.high.Chat(ctx, output.ChatRequest{
		Messages: []output.Message{{Role: output.RoleUser, Content: prompt}},
		ResponseSchema: &output.ResponseSchema{
			Name:   agentResultSchemaName,
			Schema: agentResultSchema(),
		},
	})
	if err != nil {
		return entity.AgentResult{}, fmt.Errorf("reasoning llm request failed: %w", err)
	}

	res, err := decodeAgentResult(resp.Message.Content)
	if err != nil {
		uc.logger.Warn("Undecodable reasoning output", "error", err, "contentLen", len(resp.Message.Content))
		return entity.AgentResult{}, err
	}
	res.Usage = usageRecord(entity.StepReason, entity.TierHigh, resp.Usage)

	uc.logger.Debug("Reasoning step completed",
		"answer", res.IsAnswer(),
		"model", resp.Model,
		"totalTokens", res.Usage.TotalTokens,
	)
	return res, nil
}

func (uc *UseCase) Dispatch(ctx context.Context, name entity.ToolName, input json.RawMessage) string {
	return uc.dispatcher.Dispatch(ctx, name, input)
}

func (uc *UseCase) Observe(ctx context.Context, query string, log entity.ContextLog, actionResult string) (entity.ObservationResult, error) {
	prompt, err := prompts.GenerateObservationPrompt(prompts.ObservationPrompt, prompts.ObservationData{
		UserQuery:     query,
		PreviousSteps: log.Render(),
		ActionResult:  actionResult,
	})
	if err != nil {
		return entity.ObservationResult{}, err
	}

	resp, err := uc.low.Chat(ctx, output.ChatRequest{
		Messages: []output.Message{{Role: output.RoleUser, Content: prompt}},
	})
	if err != nil {
		return entity.ObservationResult{}, fmt.Errorf("observation llm request failed: %w", err)
	}

	return entity.ObservationResult{
		Text:  strings.TrimSpace(resp.Message.Content),
		Usage: usageRecord(entity.StepObserve, entity.TierLow, resp.Usage),
	}, nil
}

func (uc *UseCase) Compact(ctx context.Context, query string, log entity.ContextLog) (entity.CompactionResult, error) {
	prompt, err := prompts.GenerateCompactionPrompt(prompts.CompactionPrompt, prompts.CompactionData{
		UserQuery:      query,
		ContextHistory: log.Render(),
	})
	if err != nil {
		return entity.CompactionResult{}, err
	}

	resp, err := uc.low.Chat(ctx, output.ChatRequest{
		Messages: []output.Message{{Role: output.RoleUser, Content: prompt}},
	})
	if err != nil {
		return entity.CompactionResult{}, fmt.Errorf("compaction llm request failed: %w", err)
	}

	summary := strings.TrimSpace(resp.Message.Content)
	if summary == "" {
		return entity.CompactionResult{}, fmt.Errorf("%w: empty summary", entity.ErrCompactionContract)
	}

	return entity.CompactionResult{
		Context: log.Compacted(summary),
		Usage:   usageRecord(entity.StepCompact, entity.TierLow, resp.Usage),
	}, nil
}

func usageRecord(step entity.StepKind, tier entity.Tier, u output.TokenUsage) entity.UsageRecord {
	return entity.UsageRecord{
		Step:         step,
		Tier:         tier,
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		TotalTokens:  u.TotalTokens,
	}
}
