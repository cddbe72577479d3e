package userinteraction

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/ysmood/gson"

	"tmdb-agent/internal/application/port/output"
	"tmdb-agent/internal/domain/entity"
)

var _ output.ProgressPort = (*Console)(nil)

// Console prints run progress to a terminal. Writes from concurrent runs are serialized and
// prefixed with a short run id.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) ShowCycle(ctx context.Context, runID entity.RunID, generation, cycle int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(c.out, "\n%s━━━ Generation %d · cycle %d ━━━\n", prefix(runID), generation+1, cycle)
}

func (c *Console) ShowThinking(ctx context.Context, runID entity.RunID, content string) {
	if content == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	blue := color.New(color.FgBlue)
	blue.Fprintf(c.out, "%s💭 Thinking: ", prefix(runID))

	dim := color.New(color.Faint)
	dim.Fprintln(c.out, truncate(content, 500))
}

func (c *Console) ShowToolStart(ctx context.Context, runID entity.RunID, action entity.Action) {
	c.mu.Lock()
	defer c.mu.Unlock()

	icon, name := toolDisplay(action.ToolName)
	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Fprintf(c.out, "%s%s %s\n", prefix(runID), icon, name)

	dim := color.New(color.Faint)
	if action.Reason != "" {
		dim.Fprintf(c.out, "   %s\n", truncate(action.Reason, 200))
	}
	if args := formatArguments(action.Input); args != "" {
		dim.Fprintf(c.out, "   %s\n", args)
	}
}

func (c *Console) ShowToolResult(ctx context.Context, runID entity.RunID, toolName entity.ToolName, result string, isError bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if isError {
		red := color.New(color.FgRed)
		red.Fprintf(c.out, "%s❌ Error: ", prefix(runID))

		dim := color.New(color.Faint)
		dim.Fprintln(c.out, truncate(gson.NewFrom(result).Get("error").Str(), 300))
		return
	}

	green := color.New(color.FgGreen)
	green.Fprintf(c.out, "%s✓ %s\n", prefix(runID), summarizeResult(result))
}

func (c *Console) ShowObservation(ctx context.Context, runID entity.RunID, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	magenta := color.New(color.FgMagenta)
	magenta.Fprintf(c.out, "%s👁  Observation: ", prefix(runID))
	fmt.Fprintln(c.out, truncate(content, 500))
}

func (c *Console) ShowCompaction(ctx context.Context, runID entity.RunID, before, after int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hi := color.New(color.FgHiBlack, color.Bold)
	hi.Fprintf(c.out, "%s🗜  Context compacted: %d → %d entries\n", prefix(runID), before, after)
}

func prefix(id entity.RunID) string {
	if id == "" {
		return ""
	}
	s := id.String()
	if len(s) > 8 {
		s = s[:8]
	}
	return "[" + s + "] "
}

func toolDisplay(name entity.ToolName) (string, string) {
	displays := map[entity.ToolName][2]string{
		entity.ToolPersonSearch:       {"👤", "Person search"},
		entity.ToolPersonDetails:      {"👤", "Person details"},
		entity.ToolPersonMovieCredits: {"🎞", "Person movie credits"},
		entity.ToolMovieSearch:        {"🎬", "Movie search"},
		entity.ToolMovieDetails:       {"🎬", "Movie details"},
		entity.ToolMovieCredits:       {"🎞", "Movie credits"},
		entity.ToolTVSearch:           {"📺", "TV search"},
		entity.ToolTVDetails:          {"📺", "TV details"},
		entity.ToolTVCredits:          {"🎞", "TV credits"},
	}

	if display, ok := displays[name]; ok {
		return display[0], display[1]
	}
	return "🔧", name.String()
}

func formatArguments(input []byte) string {
	if len(input) == 0 {
		return ""
	}
	args := gson.New(input)
	if len(args.Map()) == 0 {
		return ""
	}
	return truncate(args.JSON("", ""), 200)
}

// summarizeResult condenses a TMDb response into one line.
func summarizeResult(result string) string {
	j := gson.NewFrom(result)

	if j.Has("total_results") {
		titles := []string{}
		for _, item := range j.Get("results").Arr() {
			if len(titles) == 3 {
				break
			}
			titles = append(titles, itemTitle(item))
		}
		summary := fmt.Sprintf("%d result(s)", j.Get("total_results").Int())
		if len(titles) > 0 {
			summary += ": " + strings.Join(titles, ", ")
		}
		return summary
	}

	if j.Has("cast") || j.Has("crew") {
		return fmt.Sprintf("cast %d, crew %d", len(j.Get("cast").Arr()), len(j.Get("crew").Arr()))
	}

	if title := itemTitle(j); title != "" {
		return title
	}
	return truncate(result, 100)
}

func itemTitle(item gson.JSON) string {
	for _, key := range []string{"title", "name"} {
		if item.Has(key) {
			return item.Get(key).Str()
		}
	}
	return ""
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
