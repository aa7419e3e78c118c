package schema

// Source is a cited reference in a department report.
type Source struct {
	Title   string `json:"title" validate:"required"`
	URL     string `json:"url" validate:"required,url"`
	Snippet string `json:"snippet,omitempty"`
}

// ResearchReport is the output contract of the research department.
type ResearchReport struct {
	Summary  string   `json:"summary" validate:"required" jsonschema_description:"Summary of findings"`
	Findings []string `json:"findings" validate:"required" jsonschema_description:"Key findings"`
	Sources  []Source `json:"sources" validate:"required,dive" jsonschema_description:"Sources cited"`
	Depth    string   `json:"depth" validate:"required" jsonschema_description:"Research depth achieved"`
	Gaps     []string `json:"gaps,omitempty" jsonschema_description:"Areas needing more research"`
}

// WritingOutput is the output contract of the writing department.
type WritingOutput struct {
	Title       string `json:"title" validate:"required"`
	Content     string `json:"content" validate:"required"`
	ContentType string `json:"content_type" validate:"required"`
	WordCount   int    `json:"word_count" validate:"gte=0"`
	Style       string `json:"style" validate:"required"`
	Summary     string `json:"summary,omitempty"`
}

// CodingOutput is the output contract of the coding department.
type CodingOutput struct {
	Success      bool     `json:"success"`
	Code         string   `json:"code,omitempty" validate:"required_if=Success true"`
	Language     string   `json:"language" validate:"required"`
	Explanation  string   `json:"explanation,omitempty"`
	Tests        string   `json:"tests,omitempty"`
	Error        string   `json:"error,omitempty" validate:"required_if=Success false"`
	FilesCreated []string `json:"files_created,omitempty"`
	Summary      string   `json:"summary,omitempty"`
}

// AnalysisReport is the output contract of the analysis department.
type AnalysisReport struct {
	Summary         string         `json:"summary" validate:"required"`
	Findings        []string       `json:"findings" validate:"required"`
	Metrics         map[string]any `json:"metrics,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
	Visualizations  []string       `json:"visualizations,omitempty"`
}

// SocialContentOutput is the output contract of the social department.
type SocialContentOutput struct {
	Contents map[string]string `json:"contents" validate:"required,min=1" jsonschema_description:"Content per platform"`
	Hashtags []string          `json:"hashtags,omitempty"`
	Tone     string            `json:"tone" validate:"required"`
	Summary  string            `json:"summary,omitempty"`
}

// GitHubOutput is the output contract of the github department.
type GitHubOutput struct {
	Success    bool   `json:"success"`
	Operation  string `json:"operation" validate:"required"`
	Result     any    `json:"result"`
	Repository string `json:"repository,omitempty"`
	Error      string `json:"error,omitempty" validate:"required_if=Success false"`
	Summary    string `json:"summary,omitempty"`
}

// TextToolOutput is the output contract of the text tool.
type TextToolOutput struct {
	Action string `json:"action" validate:"required"`
	Result any    `json:"result"`
}
