// agent answers one movie or TV question from the terminal, printing each reasoning step.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"tmdb-agent/internal/application/port/input"
	"tmdb-agent/internal/di"
	"tmdb-agent/internal/domain/entity"
	"tmdb-agent/internal/infrastructure/env"
	"tmdb-agent/internal/usecase/gateway"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var question string
	var runID string
	var checkpointDB string
	var resume bool
	var logConsole bool

	flagSet := pflag.NewFlagSet("agent", pflag.ContinueOnError)
	flagSet.StringVarP(&question, "question", "q", "", "question to answer (read from stdin when empty)")
	flagSet.StringVar(&runID, "run-id", "", "run id (generated when empty)")
	flagSet.StringVar(&checkpointDB, "checkpoint-db", "", "SQLite checkpoint database (overrides CHECKPOINT_DB)")
	flagSet.BoolVar(&resume, "resume", false, "resume unfinished runs from the checkpoint database instead of asking")
	flagSet.BoolVar(&logConsole, "log-console", false, "also write logs to stderr")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := di.LoadConfig(env.NewEnvService(), "agent")
	if err != nil {
		return err
	}
	if checkpointDB != "" {
		cfg.CheckpointDB = checkpointDB
	}
	cfg.LogConsole = cfg.LogConsole || logConsole

	container, err := di.NewContainer(cfg, nil)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		container.Close(ctx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if resume {
		handles, err := container.Scheduler.Resume(ctx)
		if err != nil {
			return err
		}
		if len(handles) == 0 {
			fmt.Println("No unfinished runs.")
			return nil
		}
		for _, h := range handles {
			if err := wait(ctx, container, h); err != nil {
				return err
			}
		}
		return nil
	}

	if question == "" {
		question, err = readQuestion()
		if err != nil {
			return err
		}
	}
	if question == "" {
		return errors.New("question is required")
	}

	container.Logger.Info("Question received", "question", question)
	h, err := container.Scheduler.Submit(ctx, input.SubmitRequest{ID: entity.RunID(runID), Query: question})
	if err != nil {
		return err
	}
	return wait(ctx, container, h)
}

func readQuestion() (string, error) {
	fmt.Println("\nAsk about movies, shows, actors or directors:")
	fmt.Print("> ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read question: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// wait blocks until the run finishes. An interrupt cancels the run.
func wait(ctx context.Context, container *di.Container, h input.RunHandle) error {
	outcome, err := h.Result(ctx)
	if err != nil && ctx.Err() != nil {
		cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cerr := container.Scheduler.Cancel(cancelCtx, h.ID()); cerr != nil {
			container.Logger.Warn("Cancel failed", "run_id", h.ID(), "error", cerr)
		}
		color.New(color.FgYellow).Printf("\nRun %s cancelled.\n", h.ID())
		return nil
	}
	if err != nil {
		container.Logger.Error("Run failed", "run_id", h.ID(), "error", err)
		if gateway.IsFatal(err) {
			return fmt.Errorf("model step kept failing, giving up: %w", err)
		}
		return err
	}

	container.Logger.Info("Run completed", "run_id", h.ID(), "cycles", outcome.Cycles, "generations", outcome.Generations)

	green := color.New(color.FgGreen, color.Bold)
	green.Println("\nANSWER:")
	fmt.Println(outcome.Answer)

	dim := color.New(color.Faint)
	u := outcome.TotalUsage
	dim.Printf("\n%d cycle(s), %d generation(s) · tokens in %d / out %d / total %d · $%.4f\n",
		outcome.Cycles, outcome.Generations, u.InputTokens, u.OutputTokens, u.TotalTokens, u.Cost)
	return nil
}
