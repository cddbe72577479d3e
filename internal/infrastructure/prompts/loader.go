package prompts

import (
	_ "embed"
)

//go:embed thought.txt
var ThoughtPrompt string

//go:embed observation.txt
var ObservationPrompt string

//go:embed compaction.txt
var CompactionPrompt string
