package schema

// Department inputs accept either their typed fields or the generic
// {task, context} shape the decision engine falls back to, so each primary
// field is only required when Task is absent.

// ResearchTaskInput is the input contract of the research department.
type ResearchTaskInput struct {
	Query           string   `json:"query,omitempty" validate:"required_without=Task" jsonschema_description:"Research topic or question"`
	Depth           string   `json:"depth,omitempty" jsonschema_description:"Research depth: quick, standard or comprehensive"`
	SourcesRequired int      `json:"sources_required,omitempty" validate:"omitempty,gte=1,lte=20" jsonschema_description:"Minimum number of sources to retrieve"`
	FocusAreas      []string `json:"focus_areas,omitempty" jsonschema_description:"Specific aspects to focus on"`
	Task            string   `json:"task,omitempty" jsonschema_description:"Free-form task used when query is absent"`
	Context         string   `json:"context,omitempty"`
}

// WritingTaskInput is the input contract of the writing department.
type WritingTaskInput struct {
	Topic       string `json:"topic,omitempty" validate:"required_without=Task" jsonschema_description:"Topic to write about"`
	ContentType string `json:"content_type,omitempty" jsonschema_description:"blog_post, article, documentation, email, ..."`
	Style       string `json:"style,omitempty" jsonschema_description:"professional, creative, technical, ..."`
	Length      string `json:"length,omitempty" validate:"omitempty,oneof=short medium long"`
	Audience    string `json:"audience,omitempty"`
	Task        string `json:"task,omitempty"`
	Context     string `json:"context,omitempty"`
}

// CodingTaskInput is the input contract of the coding department.
type CodingTaskInput struct {
	Task         string   `json:"task" validate:"required" jsonschema_description:"Coding task description"`
	Language     string   `json:"language,omitempty"`
	Framework    string   `json:"framework,omitempty"`
	Requirements []string `json:"requirements,omitempty"`
	TestCode     bool     `json:"test_code,omitempty" jsonschema_description:"Whether to include tests"`
	Context      string   `json:"context,omitempty"`
}

// AnalysisTaskInput is the input contract of the analysis department.
type AnalysisTaskInput struct {
	Subject      string   `json:"subject,omitempty" validate:"required_without=Task" jsonschema_description:"Subject to analyze"`
	AnalysisType string   `json:"analysis_type,omitempty" jsonschema_description:"data, code, document, market, ..."`
	Focus        []string `json:"focus,omitempty"`
	DataSource   string   `json:"data_source,omitempty"`
	Task         string   `json:"task,omitempty"`
	Context      string   `json:"context,omitempty"`
}

// SocialTaskInput is the input contract of the social department.
type SocialTaskInput struct {
	Topic           string   `json:"topic,omitempty" validate:"required_without=Task" jsonschema_description:"Topic to create social content about"`
	Platforms       []string `json:"platforms,omitempty" validate:"omitempty,dive,required" jsonschema_description:"Target platforms: twitter, linkedin, blog, ..."`
	Tone            string   `json:"tone,omitempty"`
	TargetAudience  string   `json:"target_audience,omitempty"`
	IncludeHashtags *bool    `json:"include_hashtags,omitempty"`
	Task            string   `json:"task,omitempty"`
	Context         string   `json:"context,omitempty"`
}

// GitHubTaskInput is the input contract of the github department.
type GitHubTaskInput struct {
	Query      string         `json:"query,omitempty" validate:"required_without=Task" jsonschema_description:"The GitHub-related task or question"`
	Repository string         `json:"repository,omitempty" validate:"omitempty,contains=/" jsonschema_description:"Repository in owner/repo format"`
	Operation  string         `json:"operation,omitempty" validate:"omitempty,oneof=search_repos get_repo get_file create_gist list_issues"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Task       string         `json:"task,omitempty"`
	Context    string         `json:"context,omitempty"`
}

// TextToolInput is the input contract of the text tool.
type TextToolInput struct {
	Action string `json:"action" validate:"required,oneof=word_count truncate"`
	Text   string `json:"text" validate:"required"`
	Limit  int    `json:"limit,omitempty" validate:"required_if=Action truncate,gte=0"`
}
