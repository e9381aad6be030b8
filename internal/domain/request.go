package domain

// CreateCourseRequest creates a new course project.
type CreateCourseRequest struct {
	RepoURL    string     `json:"repo_url"`
	Title      string     `json:"title"`
	Complexity Complexity `json:"complexity,omitempty"`
}

// DocumentInput is one analyzed document supplied by the analysis pipeline.
type DocumentInput struct {
	Path               string   `json:"path"`
	Filename           string   `json:"filename"`
	Content            string   `json:"content"`
	Summary            string   `json:"summary,omitempty"`
	KeyConcepts        []string `json:"key_concepts,omitempty"`
	LearningObjectives []string `json:"learning_objectives,omitempty"`
}

// IngestDocumentsRequest bulk-loads analyzed documents for a course.
type IngestDocumentsRequest struct {
	Documents []DocumentInput `json:"documents"`
}

// StartStageRequest begins a stage run for a course.
type StartStageRequest struct {
	Complexity             Complexity `json:"complexity,omitempty"`
	AdditionalInstructions string     `json:"additional_instructions,omitempty"`
	// PathwayCount overrides how many candidate pathways the pathway stage
	// negotiates. Zero means the configured default.
	PathwayCount int `json:"pathway_count,omitempty"`
	// PathwayID selects the pathway for the content stage. Optional when the
	// course has exactly one pathway.
	PathwayID string `json:"pathway_id,omitempty"`
	// MaxRounds overrides the round budget per session, capped at the
	// configured default.
	MaxRounds int `json:"max_rounds,omitempty"`
}

// StartStageResponse acknowledges an asynchronous stage start.
type StartStageResponse struct {
	RunID    string `json:"run_id"`
	CourseID string `json:"course_id"`
	Stage    Stage  `json:"stage"`
}

// StatusResponse is the coarse status view of a course.
type StatusResponse struct {
	CourseID string      `json:"course_id"`
	Stage    Stage       `json:"stage"`
	Status   StageStatus `json:"status"`
}

// ReorderRequest reorders the modules of a persisted pathway. NewOrder must
// be a permutation of the existing module indices.
type ReorderRequest struct {
	NewOrder []int `json:"new_order"`
}

// ModuleRequest adds or replaces one module descriptor of a pathway.
type ModuleRequest struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Theme              string   `json:"theme,omitempty"`
	LearningObjectives []string `json:"learning_objectives,omitempty"`
	DocumentRefs       []string `json:"document_refs,omitempty"`
	EstimatedMinutes   int      `json:"estimated_minutes,omitempty"`
}

// Module converts the request into a module descriptor.
func (r *ModuleRequest) Module() Module {
	return Module{
		Title:              r.Title,
		Description:        r.Description,
		Theme:              r.Theme,
		LearningObjectives: r.LearningObjectives,
		DocumentRefs:       r.DocumentRefs,
		EstimatedMinutes:   r.EstimatedMinutes,
	}
}
