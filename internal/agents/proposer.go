package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/courseforge/courseforge/internal/adapter/llm"
	"github.com/courseforge/courseforge/internal/domain"
)

// PathwayProposer drafts learning pathways from a course's analyzed
// documents. One proposer serves one negotiation session.
type PathwayProposer struct {
	client llm.LLMClient
	model  string

	course       *domain.Course
	docs         []domain.AnalyzedDocument
	complexity   domain.Complexity
	instructions string
}

// NewPathwayProposer creates a proposer bound to its course inputs.
func NewPathwayProposer(client llm.LLMClient, model string, course *domain.Course, docs []domain.AnalyzedDocument, complexity domain.Complexity, instructions string) *PathwayProposer {
	return &PathwayProposer{
		client:       client,
		model:        model,
		course:       course,
		docs:         docs,
		complexity:   complexity,
		instructions: instructions,
	}
}

// Propose drafts a pathway. When prev is non-nil the draft revises the
// previous round's artifact against its critique. A malformed or invalid
// draft is an error; the caller decides whether to retry.
func (p *PathwayProposer) Propose(ctx context.Context, prev *domain.NegotiationRound) (domain.Artifact, error) {
	user := buildPathwayProposalPrompt(p.course, p.docs, p.complexity, p.instructions, prev)
	content, err := chat(ctx, p.client, p.model, pathwayProposerSystem, user, proposerTemperature)
	if err != nil {
		return nil, fmt.Errorf("pathway proposal call failed: %w", err)
	}

	var draft struct {
		Title       string          `json:"title"`
		Description string          `json:"description"`
		Modules     []domain.Module `json:"modules"`
	}
	if err := json.Unmarshal(sanitizeJSON([]byte(content)), &draft); err != nil {
		return nil, fmt.Errorf("failed to parse pathway draft: %w", err)
	}

	pathway := &domain.Pathway{
		CourseID:    p.course.CourseID,
		Title:       draft.Title,
		Description: draft.Description,
		Complexity:  p.complexity,
		Modules:     draft.Modules,
	}
	if err := pathway.Validate(); err != nil {
		return nil, fmt.Errorf("pathway draft failed validation: %w", err)
	}
	return pathway, nil
}

// ContentProposer drafts the content of one module of an accepted pathway.
type ContentProposer struct {
	client llm.LLMClient
	model  string

	course      *domain.Course
	pathway     *domain.Pathway
	moduleIndex int
	docs        []domain.AnalyzedDocument
}

// NewContentProposer creates a proposer bound to one module slot.
func NewContentProposer(client llm.LLMClient, model string, course *domain.Course, pathway *domain.Pathway, moduleIndex int, docs []domain.AnalyzedDocument) *ContentProposer {
	return &ContentProposer{
		client:      client,
		model:       model,
		course:      course,
		pathway:     pathway,
		moduleIndex: moduleIndex,
		docs:        docs,
	}
}

// Propose drafts the module content. The word count is always recomputed
// here, never taken from model output.
func (p *ContentProposer) Propose(ctx context.Context, prev *domain.NegotiationRound) (domain.Artifact, error) {
	user := buildContentProposalPrompt(p.course, p.pathway, p.moduleIndex, p.docs, prev)
	content, err := chat(ctx, p.client, p.model, contentProposerSystem, user, proposerTemperature)
	if err != nil {
		return nil, fmt.Errorf("content proposal call failed: %w", err)
	}

	var draft struct {
		Title        string                  `json:"title"`
		Introduction string                  `json:"introduction"`
		Sections     []domain.ContentSection `json:"sections"`
		Conclusion   string                  `json:"conclusion"`
		Assessment   string                  `json:"assessment"`
	}
	if err := json.Unmarshal(sanitizeJSON([]byte(content)), &draft); err != nil {
		return nil, fmt.Errorf("failed to parse content draft: %w", err)
	}
	if strings.TrimSpace(draft.Title) == "" {
		draft.Title = p.pathway.Modules[p.moduleIndex].Title
	}

	moduleContent := &domain.ModuleContent{
		CourseID:     p.course.CourseID,
		PathwayID:    p.pathway.PathwayID,
		ModuleIndex:  p.moduleIndex,
		Title:        draft.Title,
		Introduction: draft.Introduction,
		Sections:     draft.Sections,
		Conclusion:   draft.Conclusion,
		Assessment:   draft.Assessment,
	}
	moduleContent.CountWords()
	if err := moduleContent.Validate(); err != nil {
		return nil, fmt.Errorf("content draft failed validation: %w", err)
	}
	return moduleContent, nil
}
