package output

import (
	"context"

	"tmdb-agent/internal/domain/entity"
)

// ProgressPort receives step notifications for display. Implementations must not block.
type ProgressPort interface {
	ShowCycle(ctx context.Context, runID entity.RunID, generation, cycle int)
	ShowThinking(ctx context.Context, runID entity.RunID, content string)
	ShowToolStart(ctx context.Context, runID entity.RunID, action entity.Action)
	ShowToolResult(ctx context.Context, runID entity.RunID, toolName entity.ToolName, result string, isError bool)
	ShowObservation(ctx context.Context, runID entity.RunID, content string)
	ShowCompaction(ctx context.Context, runID entity.RunID, before, after int)
}
