package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"tmdb-agent/internal/application/port/output"
	"tmdb-agent/internal/domain/entity"
)

var (
	_ output.ToolPort = (*SearchTool)(nil)
	_ output.ToolPort = (*ByIDTool)(nil)
)

// NewCatalog returns every TMDb tool the agent can call.
func NewCatalog(client *Client) []output.ToolPort {
	return []output.ToolPort{
		NewSearchTool(client, entity.ToolPersonSearch, "/search/person",
			"Search for people by name. Returns matching people with their IDs."),
		NewByIDTool(client, entity.ToolPersonDetails, "/person/{id}",
			"Fetch details about a person by their ID."),
		NewByIDTool(client, entity.ToolPersonMovieCredits, "/person/{id}/movie_credits",
			"Fetch the movie credits (cast and crew) of a person by their ID."),
		NewSearchTool(client, entity.ToolMovieSearch, "/search/movie",
			"Search for movies by their original, translated and alternative titles."),
		NewByIDTool(client, entity.ToolMovieDetails, "/movie/{id}",
			"Fetch details about a movie by its ID."),
		NewByIDTool(client, entity.ToolMovieCredits, "/movie/{id}/credits",
			"Fetch the cast and crew of a movie by its ID."),
		NewSearchTool(client, entity.ToolTVSearch, "/search/tv",
			"Search for TV shows by their original, translated and also known as names."),
		NewByIDTool(client, entity.ToolTVDetails, "/tv/{id}",
			"Fetch details about a TV show by its ID."),
		NewByIDTool(client, entity.ToolTVCredits, "/tv/{id}/credits",
			"Fetch the cast and crew of a TV show by its ID."),
	}
}

type SearchTool struct {
	client      *Client
	name        entity.ToolName
	path        string
	description string
}

func NewSearchTool(client *Client, name entity.ToolName, path, description string) *SearchTool {
	return &SearchTool{client: client, name: name, path: path, description: description}
}

func (t *SearchTool) Name() entity.ToolName { return t.name }
func (t *SearchTool) Description() string   { return t.description }
func (t *SearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "The search query string",
			},
			"include_adult": map[string]interface{}{
				"type":        "boolean",
				"description": "Whether to include adult content. Defaults to false.",
			},
			"language": map[string]interface{}{
				"type":        "string",
				"description": "The language for the results. Defaults to 'en-US'.",
			},
			"page": map[string]interface{}{
				"type":        "integer",
				"description": "The page of results to return. Defaults to 1.",
			},
		},
		"required": []string{"query"},
	}
}

type searchInput struct {
	Query        string `json:"query"`
	IncludeAdult *bool  `json:"include_adult"`
	Language     string `json:"language"`
	Page         *int   `json:"page"`
}

func (t *SearchTool) Execute(ctx context.Context, args string) (string, error) {
	var input searchInput
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return "", fmt.Errorf("invalid input format: %w", err)
	}
	if strings.TrimSpace(input.Query) == "" {
		return "", fmt.Errorf("query parameter is required")
	}

	params := url.Values{}
	params.Set("query", input.Query)
	if input.IncludeAdult != nil {
		params.Set("include_adult", strconv.FormatBool(*input.IncludeAdult))
	}
	if input.Language != "" {
		params.Set("language", input.Language)
	}
	if input.Page != nil {
		params.Set("page", strconv.Itoa(*input.Page))
	}

	return t.client.Get(ctx, t.path, params)
}

type ByIDTool struct {
	client      *Client
	name        entity.ToolName
	path        string
	description string
}

func NewByIDTool(client *Client, name entity.ToolName, path, description string) *ByIDTool {
	return &ByIDTool{client: client, name: name, path: path, description: description}
}

func (t *ByIDTool) Name() entity.ToolName { return t.name }
func (t *ByIDTool) Description() string   { return t.description }
func (t *ByIDTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id": map[string]interface{}{
				"type":        "string",
				"description": "The ID of the item to fetch information for",
			},
		},
		"required": []string{"id"},
	}
}

func (t *ByIDTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return "", fmt.Errorf("invalid input format: %w", err)
	}

	id, err := parseID(input.ID)
	if err != nil {
		return "", err
	}

	return t.client.Get(ctx, strings.Replace(t.path, "{id}", url.PathEscape(id), 1), nil)
}

// parseID accepts the ID as a JSON string or number.
func parseID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("id parameter is required")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return "", fmt.Errorf("id parameter is required")
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("id must be a string or number: %s", raw)
	}
	return n.String(), nil
}
