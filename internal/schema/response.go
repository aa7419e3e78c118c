package schema

// ResponseSource is a source credited in the final response.
type ResponseSource struct {
	Title      string `json:"title" validate:"required"`
	URL        string `json:"url,omitempty" validate:"omitempty,url"`
	Department string `json:"department" validate:"required"`
}

// FinalResponse is the document validated before a run's answer is returned.
type FinalResponse struct {
	Content          string           `json:"content" validate:"required" jsonschema_description:"The main response content"`
	Sources          []ResponseSource `json:"sources,omitempty" validate:"dive"`
	DepartmentsUsed  []string         `json:"departments_used" validate:"dive,required" jsonschema_description:"Departments that contributed to this response"`
	ExecutionSummary map[string]any   `json:"execution_summary,omitempty" jsonschema_description:"Steps, timing and status of the run"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
}
