package domain

import "time"

// AnalyzedDocument is one analyzed source file handed over by the document
// analysis pipeline. Documents are read-only once ingested.
type AnalyzedDocument struct {
	DocumentID         string    `json:"document_id"`
	CourseID           string    `json:"course_id"`
	Path               string    `json:"path"`
	Filename           string    `json:"filename"`
	Content            string    `json:"content"`
	Summary            string    `json:"summary,omitempty"`
	KeyConcepts        []string  `json:"key_concepts,omitempty"`
	LearningObjectives []string  `json:"learning_objectives,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}
