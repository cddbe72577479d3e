package steps

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"tmdb-agent/internal/domain/entity"
)

const agentResultSchemaName = "agent_result"

// agentResultSchema is the structured output contract of the reasoning step. Action input is
// free-form because each tool has its own schema.
func agentResultSchema() *jsonschema.Definition {
	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"thought": {
				Type:        jsonschema.String,
				Description: "Reasoning about what to do next",
			},
			"action": {
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"name":   {Type: jsonschema.String, Description: "Name of the action to call"},
					"reason": {Type: jsonschema.String, Description: "Why this action helps"},
					"input": {
						Type:                 jsonschema.Object,
						Description:          "Input matching the action schema",
						AdditionalProperties: true,
					},
				},
				Required:             []string{"name", "reason", "input"},
				AdditionalProperties: false,
			},
			"answer": {
				Type:        jsonschema.String,
				Description: "Final answer to the query",
			},
		},
		Required:             []string{"thought"},
		AdditionalProperties: false,
	}
}

type actionJSON struct {
	Name   string          `json:"name"`
	Reason string          `json:"reason"`
	Input  json.RawMessage `json:"input"`
}

type agentResultJSON struct {
	Thought string      `json:"thought"`
	Action  *actionJSON `json:"action"`
	Answer  *string     `json:"answer"`
}

// decodeAgentResult accepts exactly one of answer or action. Fields outside the contract are
// rejected rather than ignored.
func decodeAgentResult(content string) (entity.AgentResult, error) {
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end < start {
		return entity.AgentResult{}, fmt.Errorf("%w: no JSON object in response", entity.ErrMalformedOutput)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(content[start : end+1])))
	dec.DisallowUnknownFields()

	var raw agentResultJSON
	if err := dec.Decode(&raw); err != nil {
		return entity.AgentResult{}, fmt.Errorf("%w: %w", entity.ErrMalformedOutput, err)
	}

	res := entity.AgentResult{Thought: raw.Thought}
	if raw.Answer != nil {
		res.Answer = &entity.Answer{Text: *raw.Answer}
	}
	if raw.Action != nil {
		input := raw.Action.Input
		if len(input) == 0 || string(input) == "null" {
			input = json.RawMessage("{}")
		}
		res.Action = &entity.Action{
			ToolName: entity.ToolName(strings.TrimSpace(raw.Action.Name)),
			Reason:   raw.Action.Reason,
			Input:    input,
		}
	}

	if err := res.Validate(); err != nil {
		return entity.AgentResult{}, err
	}
	return res, nil
}
