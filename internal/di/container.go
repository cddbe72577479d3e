package di

import (
	"context"
	"fmt"
	"os"

	"tmdb-agent/internal/application/port/output"
	"tmdb-agent/internal/application/service"
	"tmdb-agent/internal/infrastructure/checkpoint/inmem"
	"tmdb-agent/internal/infrastructure/checkpoint/sqlite"
	"tmdb-agent/internal/infrastructure/llm/chatmodel"
	"tmdb-agent/internal/infrastructure/logger"
	"tmdb-agent/internal/infrastructure/tmdb"
	"tmdb-agent/internal/infrastructure/userinteraction"
	"tmdb-agent/internal/usecase/compaction"
	"tmdb-agent/internal/usecase/gateway"
	"tmdb-agent/internal/usecase/orchestrator"
	"tmdb-agent/internal/usecase/scheduler"
	"tmdb-agent/internal/usecase/steps"
)

type Container struct {
	Logger       output.LoggerPort
	Tools        output.ToolRegistry
	Checkpoints  output.CheckpointStore
	Orchestrator *orchestrator.UseCase
	Scheduler    *scheduler.Scheduler
}

// NewContainer wires the application. A nil progress prints to stdout.
func NewContainer(cfg Config, progress output.ProgressPort) (*Container, error) {
	log, err := logger.NewLoggerAdapter(logger.Config{
		Dir:     cfg.LogDir,
		Name:    cfg.LogName,
		Level:   cfg.LogLevel,
		Console: cfg.LogConsole,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	store, err := newCheckpointStore(cfg.CheckpointDB)
	if err != nil {
		log.Close()
		return nil, err
	}

	if progress == nil {
		progress = userinteraction.NewConsole(os.Stdout)
	}

	high := chatmodel.New(chatmodel.Config{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.ModelHigh,
		BaseURL: cfg.OpenAIBaseURL,
		Logger:  log.WithField("tier", "high"),
	})
	low := chatmodel.New(chatmodel.Config{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.ModelLow,
		BaseURL: cfg.OpenAIBaseURL,
		Logger:  log.WithField("tier", "low"),
	})

	tmdbCfg := tmdb.DefaultConfig(cfg.TMDbAPIKey)
	tmdbCfg.BaseURL = cfg.TMDbBaseURL
	tmdbCfg.RequestsPerSecond = cfg.TMDbRequestsPerSecond
	tools := service.NewToolRegistry(tmdb.NewCatalog(tmdb.NewClient(tmdbCfg, log))...)
	dispatcher := service.NewDispatcher(tools, log, cfg.MaxToolResultLen)

	stepper := gateway.New(steps.New(high, low, tools, dispatcher, log), cfg.Step, log)
	policy := compaction.New(cfg.CompactMaxCycles, cfg.CompactTokenBudget, compaction.TokenCounter(cfg.ModelHigh))
	orch := orchestrator.New(stepper, policy, store, progress, log, cfg.Pricing)

	return &Container{
		Logger:       log,
		Tools:        tools,
		Checkpoints:  store,
		Orchestrator: orch,
		Scheduler:    scheduler.New(orch, store, log),
	}, nil
}

func newCheckpointStore(path string) (output.CheckpointStore, error) {
	if path == "" {
		return inmem.New(), nil
	}
	store, err := sqlite.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	return store, nil
}

// Close stops the scheduler, leaving unfinished runs resumable, then releases resources.
func (c *Container) Close(ctx context.Context) error {
	var firstErr error
	if c.Scheduler != nil {
		if err := c.Scheduler.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if c.Checkpoints != nil {
		if err := c.Checkpoints.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.Logger != nil {
		c.Logger.Close()
	}
	return firstErr
}
