package di

import (
	"fmt"
	"time"

	"tmdb-agent/internal/application/service"
	"tmdb-agent/internal/domain/entity"
	"tmdb-agent/internal/infrastructure/tmdb"
	"tmdb-agent/internal/usecase/compaction"
	"tmdb-agent/internal/usecase/gateway"
)

const (
	DefaultModelLow   = "gpt-5-mini-2025-08-07"
	DefaultModelHigh  = "gpt-5.2-2025-12-11"
	DefaultServerAddr = ":4000"
)

// Env is the subset of env.EnvService the configuration is read from.
type Env interface {
	GetWithDefault(key, defaultValue string) string
	Require(key string) (string, error)
	GetBool(key string, defaultValue bool) bool
	GetInt(key string, defaultValue int) int
	GetFloat(key string, defaultValue float64) float64
	GetDuration(key string, defaultValue time.Duration) time.Duration
}

type Config struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string
	ModelLow      string
	ModelHigh     string

	TMDbAPIKey            string
	TMDbBaseURL           string
	TMDbRequestsPerSecond float64

	Step               gateway.Policy
	CompactMaxCycles   int
	CompactTokenBudget int
	MaxToolResultLen   int
	Pricing            entity.Pricing

	// CheckpointDB is a SQLite path. Empty keeps checkpoints in memory.
	CheckpointDB string
	ServerAddr   string

	LogName    string
	LogDir     string
	LogLevel   string
	LogConsole bool
}

// LoadConfig reads the process configuration once. API keys are required.
func LoadConfig(e Env, name string) (Config, error) {
	openAIKey, err := e.Require("OPENAI_API_KEY")
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	tmdbKey, err := e.Require("TMDB_API_KEY")
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	step := gateway.DefaultPolicy()
	pricing := entity.DefaultPricing()
	low, high := pricing[entity.TierLow], pricing[entity.TierHigh]

	return Config{
		OpenAIAPIKey:  openAIKey,
		OpenAIBaseURL: e.GetWithDefault("OPENAI_BASE_URL", ""),
		ModelLow:      e.GetWithDefault("OPENAI_MODEL_LOW", DefaultModelLow),
		ModelHigh:     e.GetWithDefault("OPENAI_MODEL_HIGH", DefaultModelHigh),

		TMDbAPIKey:            tmdbKey,
		TMDbBaseURL:           e.GetWithDefault("TMDB_BASE_URL", tmdb.DefaultBaseURL),
		TMDbRequestsPerSecond: e.GetFloat("TMDB_RPS", tmdb.DefaultRequestsPerSecond),

		Step: gateway.Policy{
			Timeout:     e.GetDuration("STEP_TIMEOUT", step.Timeout),
			MaxAttempts: e.GetInt("STEP_MAX_ATTEMPTS", step.MaxAttempts),
			Backoff:     e.GetDuration("STEP_BACKOFF", step.Backoff),
		},
		CompactMaxCycles:   e.GetInt("COMPACT_MAX_CYCLES", compaction.DefaultMaxGenerationCycles),
		CompactTokenBudget: e.GetInt("COMPACT_TOKEN_BUDGET", compaction.DefaultTokenBudget),
		MaxToolResultLen:   e.GetInt("MAX_TOOL_RESULT_LEN", service.DefaultMaxResultLen),
		Pricing: entity.Pricing{
			entity.TierLow: {
				InputPerMillion:  e.GetFloat("PRICE_LOW_INPUT", low.InputPerMillion),
				OutputPerMillion: e.GetFloat("PRICE_LOW_OUTPUT", low.OutputPerMillion),
			},
			entity.TierHigh: {
				InputPerMillion:  e.GetFloat("PRICE_HIGH_INPUT", high.InputPerMillion),
				OutputPerMillion: e.GetFloat("PRICE_HIGH_OUTPUT", high.OutputPerMillion),
			},
		},

		CheckpointDB: e.GetWithDefault("CHECKPOINT_DB", ""),
		ServerAddr:   e.GetWithDefault("SERVER_ADDR", DefaultServerAddr),

		LogName:    name,
		LogDir:     e.GetWithDefault("LOG_DIR", "log"),
		LogLevel:   e.GetWithDefault("LOG_LEVEL", "info"),
		LogConsole: e.GetBool("LOG_CONSOLE", false),
	}, nil
}
