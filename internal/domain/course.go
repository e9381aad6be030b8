package domain

import "time"

// Course represents one course generation project rooted at a source
// repository. Stage and Status track the most recently started stage.
type Course struct {
	CourseID   string      `json:"course_id"`
	RepoURL    string      `json:"repo_url"`
	Title      string      `json:"title"`
	Complexity Complexity  `json:"complexity"`
	Stage      Stage       `json:"stage"`
	Status     StageStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
