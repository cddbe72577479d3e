package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tmdb-agent/internal/application/port/input"
	"tmdb-agent/internal/domain/entity"
)

// AgentCard is served at /.well-known/agent.json.
type AgentCard struct {
	Name               string       `json:"name"`
	Description        string       `json:"description"`
	ProtocolVersion    string       `json:"protocolVersion"`
	Version            string       `json:"version"`
	URL                string       `json:"url"`
	Skills             []AgentSkill `json:"skills"`
	Capabilities       struct{}     `json:"capabilities"`
	DefaultInputModes  []string     `json:"defaultInputModes"`
	DefaultOutputModes []string     `json:"defaultOutputModes"`
}

type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

func DefaultAgentCard(url string) AgentCard {
	return AgentCard{
		Name:            "TMDb Agent",
		Description:     "An agent that can perform deep research about movies, shows, actors, directors, and genres.",
		ProtocolVersion: "0.3.0",
		Version:         "0.1.0",
		URL:             url,
		Skills: []AgentSkill{{
			ID:          "chat",
			Name:        "Movie Chat",
			Description: "Ask about movies, shows, actors, directors, and genres.",
			Tags:        []string{"chat"},
		}},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
	}
}

type messagePart struct {
	Kind     string         `json:"kind"`
	Text     string         `json:"text,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type message struct {
	Kind      string         `json:"kind"`
	MessageID string         `json:"messageId"`
	Role      string         `json:"role"`
	Parts     []messagePart  `json:"parts"`
	ContextID string         `json:"contextId,omitempty"`
	TaskID    string         `json:"taskId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type messageRequest struct {
	Message message `json:"message"`
}

// query joins the text parts with spaces; other part kinds are ignored.
func (m message) query() string {
	texts := make([]string, 0, len(m.Parts))
	for _, p := range m.Parts {
		if p.Kind == "text" {
			texts = append(texts, p.Text)
		}
	}
	return strings.TrimSpace(strings.Join(texts, " "))
}

func agentMessage(contextID entity.RunID, text string, metadata map[string]any) message {
	return message{
		Kind:      "message",
		MessageID: uuid.NewString(),
		Role:      "agent",
		Parts:     []messagePart{{Kind: "text", Text: text}},
		ContextID: contextID.String(),
		Metadata:  metadata,
	}
}

func (h *handlers) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.card)
}

// handleMessage runs the question to completion and replies with a single agent message.
// Run failures are reported in the message text, not as HTTP errors.
func (h *handlers) handleMessage(w http.ResponseWriter, r *http.Request) {
	var request messageRequest
	if err := decodeJSONBody(r, &request); err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	query := request.Message.query()
	if query == "" {
		writeInvalidRequest(w, "message must contain a text part")
		return
	}

	handle, err := h.runs.Submit(r.Context(), input.SubmitRequest{
		ID:    entity.RunID(strings.TrimSpace(request.Message.ContextID)),
		Query: query,
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}

	outcome, err := handle.Result(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		writeJSON(w, http.StatusOK, agentMessage(handle.ID(), "Error: "+err.Error(), nil))
		return
	}

	writeJSON(w, http.StatusOK, agentMessage(handle.ID(), outcome.Answer, map[string]any{
		"usage":       outcome.TotalUsage,
		"generations": outcome.Generations,
		"cycles":      outcome.Cycles,
	}))
}

func (h *handlers) handleTaskCancel(w http.ResponseWriter, r *http.Request) {
	h.cancel(w, r, entity.RunID(chi.URLParam(r, "id")))
}

func (h *handlers) cancel(w http.ResponseWriter, r *http.Request, id entity.RunID) {
	if err := h.runs.Cancel(r.Context(), id); err != nil {
		writeMappedError(w, err)
		return
	}

	handle, ok := h.runs.Lookup(r.Context(), id)
	if !ok {
		writeJSON(w, http.StatusOK, runResponse{RunID: id, Status: entity.RunStatusCancelled})
		return
	}
	writeJSON(w, http.StatusOK, newRunResponse(handle))
}
