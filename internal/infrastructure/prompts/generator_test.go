package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tmdb-agent/internal/domain/entity"
)

func TestGenerateToolCatalog(t *testing.T) {
	defs := []entity.ToolDefinition{
		{
			Name:        entity.ToolMovieSearch,
			Description: "Search for movies by title.",
			Parameters: map[string]interface{}{
				"type":     "object",
				"required": []string{"query"},
			},
		},
		{
			Name:        entity.ToolMovieCredits,
			Description: "Fetch movie credits by ID.",
			Parameters:  map[string]interface{}{"type": "object"},
		},
	}

	catalog, err := GenerateToolCatalog(defs)
	require.NoError(t, err)

	want := `<tool>
    <name>movie_by_title_search</name>
    <description>Search for movies by title.</description>
    <schema>{"required":["query"],"type":"object"}</schema>
</tool>
<tool>
    <name>movie_credits_by_id</name>
    <description>Fetch movie credits by ID.</description>
    <schema>{"type":"object"}</schema>
</tool>`
	assert.Equal(t, want, catalog)
}

func TestGenerateToolCatalog_Empty(t *testing.T) {
	catalog, err := GenerateToolCatalog(nil)
	require.NoError(t, err)
	assert.Empty(t, catalog)
}

func TestGenerateThoughtPrompt(t *testing.T) {
	prompt, err := GenerateThoughtPrompt(ThoughtPrompt, ThoughtData{
		UserQuery:        "Who directed Alien?",
		CurrentDate:      "2025-03-14",
		PreviousSteps:    "<thought>\nlook it up\n</thought>",
		AvailableActions: "<tool>movie_by_title_search</tool>",
	})
	require.NoError(t, err)

	assert.Contains(t, prompt, "<user-query>\nWho directed Alien?\n</user-query>")
	assert.Contains(t, prompt, "Today is 2025-03-14.")
	assert.Contains(t, prompt, "<previous-steps>\n<thought>\nlook it up\n</thought>\n</previous-steps>")
	assert.Contains(t, prompt, "<available-actions>\n<tool>movie_by_title_search</tool>\n</available-actions>")
	assert.NotContains(t, prompt, "{{")
}

func TestGenerateThoughtPrompt_NoPreviousSteps(t *testing.T) {
	prompt, err := GenerateThoughtPrompt(ThoughtPrompt, ThoughtData{UserQuery: "q", CurrentDate: "2025-01-01"})
	require.NoError(t, err)
	assert.Contains(t, prompt, "<previous-steps>\nNone\n</previous-steps>")
}

func TestGenerateObservationPrompt(t *testing.T) {
	prompt, err := GenerateObservationPrompt(ObservationPrompt, ObservationData{
		UserQuery:     "q",
		PreviousSteps: "steps",
		ActionResult:  `{"results":[{"id":348}]}`,
	})
	require.NoError(t, err)

	assert.Contains(t, prompt, "<action-result>\n"+`{"results":[{"id":348}]}`+"\n</action-result>")
	assert.Contains(t, prompt, "<previous-steps>\nsteps\n</previous-steps>")
}

func TestGenerateCompactionPrompt(t *testing.T) {
	prompt, err := GenerateCompactionPrompt(CompactionPrompt, CompactionData{
		UserQuery:      "q",
		ContextHistory: "history",
	})
	require.NoError(t, err)

	assert.Contains(t, prompt, "<context-history>\nhistory\n</context-history>")
	assert.True(t, strings.HasPrefix(prompt, "You summarize"))
}
