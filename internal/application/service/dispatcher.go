package service

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"tmdb-agent/internal/application/port/output"
	"tmdb-agent/internal/domain/entity"
)

const DefaultMaxResultLen = 20000

var _ output.ToolDispatcher = (*Dispatcher)(nil)

// Dispatcher executes registry tools and contains every failure as an error payload.
type Dispatcher struct {
	tools        output.ToolRegistry
	logger       output.LoggerPort
	maxResultLen int
}

func NewDispatcher(tools output.ToolRegistry, logger output.LoggerPort, maxResultLen int) *Dispatcher {
	if maxResultLen <= 0 {
		maxResultLen = DefaultMaxResultLen
	}
	return &Dispatcher{tools: tools, logger: logger, maxResultLen: maxResultLen}
}

type errorPayload struct {
	Name  entity.ToolName `json:"name"`
	Input json.RawMessage `json:"input"`
	Error string          `json:"error"`
}

func (d *Dispatcher) Dispatch(ctx context.Context, name entity.ToolName, input json.RawMessage) (result string) {
	tool, ok := d.tools.Get(name)
	if !ok {
		d.logger.Warn("Unknown tool called", "error", fmt.Errorf("%w: %s", entity.ErrToolNotFound, name))
		return errorResult(name, input, fmt.Sprintf("Tool with name %s not found.", name))
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Tool panicked", "name", name, "panic", r)
			result = errorResult(name, input, fmt.Sprintf("Error invoking tool %s: panic: %v", name, r))
		}
	}()

	d.logger.Info("Executing tool", "name", name, "args", string(input))

	out, err := tool.Execute(ctx, toolArguments(input))
	if err != nil {
		d.logger.Error("Tool execution failed", "name", name, "error", err)
		return errorResult(name, input, fmt.Sprintf("Error invoking tool %s: %s", name, err.Error()))
	}

	out = truncate(out, d.maxResultLen)

	d.logger.Debug("Tool completed", "name", name, "resultLen", len(out))
	return out
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "\n... (truncated)"
}

// toolArguments unwraps inputs the model sent as a JSON-encoded string.
func toolArguments(input json.RawMessage) string {
	if len(input) == 0 {
		return "{}"
	}
	var s string
	if err := json.Unmarshal(input, &s); err == nil && json.Valid([]byte(s)) {
		return s
	}
	return string(input)
}

func errorResult(name entity.ToolName, input json.RawMessage, msg string) string {
	if len(input) == 0 || !json.Valid(input) {
		quoted, _ := json.Marshal(string(input))
		input = quoted
	}
	data, err := json.Marshal(errorPayload{Name: name, Input: input, Error: msg})
	if err != nil {
		return fmt.Sprintf(`{"name":%q,"error":%q}`, name, msg)
	}
	return string(data)
}

// IsErrorResult reports whether a dispatch result is a contained failure payload.
func IsErrorResult(result string) bool {
	var p struct {
		Name  *entity.ToolName `json:"name"`
		Error string           `json:"error"`
	}
	if err := json.Unmarshal([]byte(result), &p); err != nil {
		return false
	}
	return p.Name != nil && p.Error != ""
}
