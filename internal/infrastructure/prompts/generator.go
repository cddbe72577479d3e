package prompts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/tmc/langchaingo/prompts"

	"tmdb-agent/internal/domain/entity"
)

// emptySteps stands in for an empty transcript.
const emptySteps = "None"

type ToolInfo struct {
	Name        string
	Description string
	Schema      string
}

type CatalogData struct {
	Tools []ToolInfo
}

const catalogTemplate = `{{range .Tools -}}
<tool>
    <name>{{.Name}}</name>
    <description>{{.Description}}</description>
    <schema>{{.Schema}}</schema>
</tool>
{{end}}`

// GenerateToolCatalog renders tool definitions as the <tool> blocks listed under available actions.
func GenerateToolCatalog(defs []entity.ToolDefinition) (string, error) {
	tools := make([]ToolInfo, 0, len(defs))
	for _, def := range defs {
		schema, err := json.Marshal(def.Parameters)
		if err != nil {
			return "", fmt.Errorf("failed to marshal schema of %s: %w", def.Name, err)
		}
		tools = append(tools, ToolInfo{
			Name:        def.Name.String(),
			Description: def.Description,
			Schema:      string(schema),
		})
	}

	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})

	tmpl, err := template.New("catalog").Parse(catalogTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, CatalogData{Tools: tools}); err != nil {
		return "", err
	}

	return strings.TrimRight(buf.String(), "\n"), nil
}

type ThoughtData struct {
	UserQuery        string
	CurrentDate      string
	PreviousSteps    string
	AvailableActions string
}

func GenerateThoughtPrompt(baseTemplate string, data ThoughtData) (string, error) {
	return format(baseTemplate, map[string]any{
		"userQuery":        data.UserQuery,
		"currentDate":      data.CurrentDate,
		"previousSteps":    orNone(data.PreviousSteps),
		"availableActions": data.AvailableActions,
	})
}

type ObservationData struct {
	UserQuery     string
	PreviousSteps string
	ActionResult  string
}

func GenerateObservationPrompt(baseTemplate string, data ObservationData) (string, error) {
	return format(baseTemplate, map[string]any{
		"userQuery":     data.UserQuery,
		"previousSteps": orNone(data.PreviousSteps),
		"actionResult":  data.ActionResult,
	})
}

type CompactionData struct {
	UserQuery      string
	ContextHistory string
}

func GenerateCompactionPrompt(baseTemplate string, data CompactionData) (string, error) {
	return format(baseTemplate, map[string]any{
		"userQuery":      data.UserQuery,
		"contextHistory": orNone(data.ContextHistory),
	})
}

func format(baseTemplate string, values map[string]any) (string, error) {
	vars := make([]string, 0, len(values))
	for k := range values {
		vars = append(vars, k)
	}
	out, err := prompts.NewPromptTemplate(baseTemplate, vars).Format(values)
	if err != nil {
		return "", fmt.Errorf("failed to format prompt: %w", err)
	}
	return out, nil
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return emptySteps
	}
	return s
}
