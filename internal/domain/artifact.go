package domain

import (
	"fmt"
	"strings"
	"time"
)

// Artifact is the value a Proposer drafts and a Critic evaluates. Every
// artifact validates itself before it is handed to the critic.
type Artifact interface {
	Kind() SessionKind
	Validate() error
}

// Module is one module descriptor inside a pathway.
type Module struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Theme              string   `json:"theme,omitempty"`
	LearningObjectives []string `json:"learning_objectives,omitempty"`
	DocumentRefs       []string `json:"document_refs,omitempty"`
	EstimatedMinutes   int      `json:"estimated_minutes,omitempty"`
}

// Validate checks the module descriptor fields.
func (m *Module) Validate() error {
	if strings.TrimSpace(m.Title) == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if strings.TrimSpace(m.Description) == "" {
		return &ValidationError{Field: "description", Reason: "is required"}
	}
	return nil
}

// Pathway is the Stage 3 artifact: an ordered list of module descriptors.
type Pathway struct {
	PathwayID   string     `json:"pathway_id"`
	CourseID    string     `json:"course_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Complexity  Complexity `json:"complexity"`
	Modules     []Module   `json:"modules"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Kind implements Artifact.
func (p *Pathway) Kind() SessionKind { return SessionKindPathway }

// Validate implements Artifact.
func (p *Pathway) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if len(p.Modules) == 0 {
		return &ValidationError{Field: "modules", Reason: "must contain at least one module"}
	}
	for i := range p.Modules {
		if err := p.Modules[i].Validate(); err != nil {
			return &ValidationError{Field: fmt.Sprintf("modules[%d]", i), Reason: err.Error()}
		}
	}
	return nil
}

// ReorderModules reorders the pathway's modules so that position i holds the
// module previously at index newOrder[i]. newOrder must be a permutation of
// 0..len(modules)-1; otherwise ErrInvalidOrder is returned and the pathway is
// left untouched. Module contents are not modified.
func (p *Pathway) ReorderModules(newOrder []int) error {
	n := len(p.Modules)
	if len(newOrder) != n {
		return fmt.Errorf("%w: got %d indices, want %d", ErrInvalidOrder, len(newOrder), n)
	}
	seen := make([]bool, n)
	for _, idx := range newOrder {
		if idx < 0 || idx >= n {
			return fmt.Errorf("%w: index %d out of range", ErrInvalidOrder, idx)
		}
		if seen[idx] {
			return fmt.Errorf("%w: index %d appears more than once", ErrInvalidOrder, idx)
		}
		seen[idx] = true
	}

	reordered := make([]Module, n)
	for i, idx := range newOrder {
		reordered[i] = p.Modules[idx]
	}
	p.Modules = reordered
	return nil
}

// ContentSection is one body section of a generated module.
type ContentSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// ModuleContent is the Stage 4 artifact: the generated content for one
// module of an accepted pathway.
type ModuleContent struct {
	ContentID    string           `json:"content_id"`
	CourseID     string           `json:"course_id"`
	PathwayID    string           `json:"pathway_id"`
	ModuleIndex  int              `json:"module_index"`
	Title        string           `json:"title"`
	Introduction string           `json:"introduction"`
	Sections     []ContentSection `json:"sections"`
	Conclusion   string           `json:"conclusion,omitempty"`
	Assessment   string           `json:"assessment,omitempty"`
	WordCount    int              `json:"word_count"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Kind implements Artifact.
func (m *ModuleContent) Kind() SessionKind { return SessionKindModule }

// Validate implements Artifact.
func (m *ModuleContent) Validate() error {
	if strings.TrimSpace(m.Title) == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if strings.TrimSpace(m.Introduction) == "" {
		return &ValidationError{Field: "introduction", Reason: "is required"}
	}
	if len(m.Sections) == 0 {
		return &ValidationError{Field: "sections", Reason: "must contain at least one section"}
	}
	for i, sec := range m.Sections {
		if strings.TrimSpace(sec.Heading) == "" {
			return &ValidationError{Field: fmt.Sprintf("sections[%d].heading", i), Reason: "is required"}
		}
		if strings.TrimSpace(sec.Body) == "" {
			return &ValidationError{Field: fmt.Sprintf("sections[%d].body", i), Reason: "is required"}
		}
	}
	return nil
}

// CountWords recomputes the word count from the content fields. The count is
// always derived here, never taken from model output.
func (m *ModuleContent) CountWords() int {
	total := len(strings.Fields(m.Introduction))
	for _, sec := range m.Sections {
		total += len(strings.Fields(sec.Heading))
		total += len(strings.Fields(sec.Body))
	}
	total += len(strings.Fields(m.Conclusion))
	total += len(strings.Fields(m.Assessment))
	m.WordCount = total
	return total
}
