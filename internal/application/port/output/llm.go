package output

import (
	"context"
	"encoding/json"
)

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type Message struct {
	Role    MessageRole
	Content string
}

type LLMPort interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ResponseSchema asks the model for JSON matching Schema.
type ResponseSchema struct {
	Name   string
	Schema json.Marshaler
	Strict bool
}

type ChatRequest struct {
	Messages       []Message
	Temperature    float32
	ResponseSchema *ResponseSchema
}

type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type ChatResponse struct {
	Message Message
	Model   string
	Usage   TokenUsage
}
