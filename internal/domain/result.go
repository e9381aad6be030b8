package domain

// StageResult is the final output of a stage run with usable results.
// Pathway runs carry Pathways; content runs carry the source Pathway and
// its Contents.
type StageResult struct {
	RunID       string          `json:"run_id"`
	CourseID    string          `json:"course_id"`
	Stage       Stage           `json:"stage"`
	Status      StageStatus     `json:"status"`
	FailedItems []string        `json:"failed_items,omitempty"`
	Pathways    []Pathway       `json:"pathways,omitempty"`
	Pathway     *Pathway        `json:"pathway,omitempty"`
	Contents    []ModuleContent `json:"contents,omitempty"`
}
