// Package compaction decides when a generation's transcript is handed to the compaction step
// and the run continues as a fresh generation.
package compaction

import (
	"github.com/tmc/langchaingo/llms"

	"tmdb-agent/internal/domain/entity"
)

const (
	DefaultMaxGenerationCycles = 6
	DefaultTokenBudget         = 24000
)

// Counter approximates the number of tokens in a rendered transcript.
type Counter func(text string) int

// TokenCounter counts with the tokenizer of the given model, falling back to langchaingo's
// character heuristic when the encoding is unknown.
func TokenCounter(model string) Counter {
	return func(text string) int {
		return llms.CountTokens(model, text)
	}
}

type Reason string

const (
	ReasonNone        Reason = ""
	ReasonCycleBudget Reason = "cycle_budget"
	ReasonTokenBudget Reason = "token_budget"
)

// Policy triggers compaction once a generation has run MaxGenerationCycles tool cycles or its
// rendered log exceeds TokenBudget tokens. Zero disables the respective trigger.
type Policy struct {
	MaxGenerationCycles int
	TokenBudget         int
	Counter             Counter
}

func New(maxCycles, tokenBudget int, counter Counter) Policy {
	return Policy{
		MaxGenerationCycles: maxCycles,
		TokenBudget:         tokenBudget,
		Counter:             counter,
	}
}

// ShouldCompact is evaluated after every observation.
func (p Policy) ShouldCompact(state entity.RunState) (bool, Reason) {
	if p.MaxGenerationCycles > 0 && state.Cycles >= p.MaxGenerationCycles {
		return true, ReasonCycleBudget
	}
	if p.TokenBudget > 0 && p.Counter != nil {
		if p.Counter(state.Context.Render()) > p.TokenBudget {
			return true, ReasonTokenBudget
		}
	}
	return false, ReasonNone
}
