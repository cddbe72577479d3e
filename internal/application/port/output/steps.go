package output

import (
	"context"
	"encoding/json"

	"tmdb-agent/internal/domain/entity"
)

// StepPort is the set of external step operations the orchestrator sequences.
type StepPort interface {
	Reason(ctx context.Context, query string, log entity.ContextLog) (entity.AgentResult, error)
	Dispatch(ctx context.Context, name entity.ToolName, input json.RawMessage) string
	Observe(ctx context.Context, query string, log entity.ContextLog, actionResult string) (entity.ObservationResult, error)
	Compact(ctx context.Context, query string, log entity.ContextLog) (entity.CompactionResult, error)
}
