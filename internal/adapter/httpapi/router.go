// Package httpapi exposes runs over HTTP: an A2A-style message endpoint that answers
// synchronously, plus an asynchronous REST surface keyed by run id.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog"
	"github.com/rs/zerolog"

	"tmdb-agent/internal/application/port/input"
)

type handlers struct {
	runs input.RunSubmitter
	card AgentCard
}

// NewAccessLogger builds the zerolog logger used for request logging.
func NewAccessLogger(service string, jsonOutput bool) zerolog.Logger {
	return httplog.NewLogger(service, httplog.Options{JSON: jsonOutput})
}

func NewRouter(runs input.RunSubmitter, card AgentCard, accessLog zerolog.Logger) http.Handler {
	h := &handlers{runs: runs, card: card}

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(accessLog))

	r.Get("/.well-known/agent.json", h.handleAgentCard)
	r.Post("/message", h.handleMessage)
	r.Post("/tasks/{id}/cancel", h.handleTaskCancel)

	r.Route("/runs", func(r chi.Router) {
		r.Post("/", h.handleRunSubmit)
		r.Get("/{id}", h.handleRunQuery)
		r.Delete("/{id}", h.handleRunCancel)
	})
	return r
}
