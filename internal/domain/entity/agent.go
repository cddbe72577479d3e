package entity

import (
	"encoding/json"
	"fmt"
)

type Answer struct {
	Text string `json:"text"`
}

type Action struct {
	ToolName ToolName        `json:"tool_name"`
	Reason   string          `json:"reason"`
	Input    json.RawMessage `json:"input"`
}

// AgentResult is the decoded output of a reasoning step. Exactly one of Answer and Action is set.
// An action naming no tool is valid here and fails at dispatch as an unknown tool.
type AgentResult struct {
	Thought string
	Answer  *Answer
	Action  *Action
	Usage   UsageRecord
}

func (r AgentResult) Validate() error {
	switch {
	case r.Answer != nil && r.Action != nil:
		return fmt.Errorf("%w: both answer and action present", ErrMalformedOutput)
	case r.Answer == nil && r.Action == nil:
		return fmt.Errorf("%w: neither answer nor action present", ErrMalformedOutput)
	}
	return nil
}

func (r AgentResult) IsAnswer() bool { return r.Answer != nil }

type ObservationResult struct {
	Text  string
	Usage UsageRecord
}

type CompactionResult struct {
	Context ContextLog
	Usage   UsageRecord
}

// Validate checks the compaction contract against the log that was compacted.
func (c CompactionResult) Validate(previous ContextLog) error {
	want := 1 + min(CompactionTail, previous.Len())
	if c.Context.Len() != want {
		return fmt.Errorf("%w: got %d entries, want %d", ErrCompactionContract, c.Context.Len(), want)
	}
	if c.Context.Len() > 0 {
		if _, ok := c.Context.Entries()[0].(Summary); !ok {
			return fmt.Errorf("%w: first entry is %s, want summary", ErrCompactionContract, c.Context.Entries()[0].Kind())
		}
	}
	return nil
}
