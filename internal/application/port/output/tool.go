package output

import (
	"context"
	"encoding/json"

	"tmdb-agent/internal/domain/entity"
)

type ToolPort interface {
	Name() entity.ToolName
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, arguments string) (string, error)
}

type ToolRegistry interface {
	Register(tool ToolPort)
	Get(name entity.ToolName) (ToolPort, bool)
	All() []ToolPort
	Definitions() []entity.ToolDefinition
}

// ToolDispatcher runs a named tool and always returns a string. Failures are rendered into the
// returned payload instead of being returned as errors.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, name entity.ToolName, input json.RawMessage) string
}
