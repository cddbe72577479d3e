package entity

type ToolName string

const (
	ToolPersonSearch       ToolName = "person_by_name_search"
	ToolPersonDetails      ToolName = "person_details_by_id"
	ToolPersonMovieCredits ToolName = "person_movie_credits_by_id"
	ToolMovieSearch        ToolName = "movie_by_title_search"
	ToolMovieDetails       ToolName = "movie_details_by_id"
	ToolMovieCredits       ToolName = "movie_credits_by_id"
	ToolTVSearch           ToolName = "tv_by_name_search"
	ToolTVDetails          ToolName = "tv_details_by_id"
	ToolTVCredits          ToolName = "tv_credits_by_id"
)

func (t ToolName) String() string {
	return string(t)
}

type ToolDefinition struct {
	Name        ToolName
	Description string
	Parameters  map[string]interface{}
}
