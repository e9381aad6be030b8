package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/courseforge/courseforge/internal/adapter/llm"
	"github.com/courseforge/courseforge/internal/domain"
)

// PathwayCritic grades pathway drafts.
type PathwayCritic struct {
	client     llm.LLMClient
	model      string
	complexity domain.Complexity
}

// NewPathwayCritic creates a critic for pathway drafts at the given
// difficulty.
func NewPathwayCritic(client llm.LLMClient, model string, complexity domain.Complexity) *PathwayCritic {
	return &PathwayCritic{client: client, model: model, complexity: complexity}
}

// Critique grades one pathway draft.
func (c *PathwayCritic) Critique(ctx context.Context, artifact domain.Artifact) (*domain.Critique, error) {
	pathway, ok := artifact.(*domain.Pathway)
	if !ok {
		return nil, fmt.Errorf("pathway critic got %T", artifact)
	}

	user := buildPathwayCritiquePrompt(pathway, c.complexity)
	content, err := chat(ctx, c.client, c.model, pathwayCriticSystem, user, criticTemperature)
	if err != nil {
		return nil, fmt.Errorf("pathway critique call failed: %w", err)
	}
	return ParseCritique(content), nil
}

// ContentCritic grades module content drafts against the module descriptor
// they were written for.
type ContentCritic struct {
	client llm.LLMClient
	model  string
	module domain.Module
}

// NewContentCritic creates a critic for one module slot.
func NewContentCritic(client llm.LLMClient, model string, module domain.Module) *ContentCritic {
	return &ContentCritic{client: client, model: model, module: module}
}

// Critique grades one content draft.
func (c *ContentCritic) Critique(ctx context.Context, artifact domain.Artifact) (*domain.Critique, error) {
	moduleContent, ok := artifact.(*domain.ModuleContent)
	if !ok {
		return nil, fmt.Errorf("content critic got %T", artifact)
	}

	user := buildContentCritiquePrompt(c.module, moduleContent)
	content, err := chat(ctx, c.client, c.model, contentCriticSystem, user, criticTemperature)
	if err != nil {
		return nil, fmt.Errorf("content critique call failed: %w", err)
	}
	return ParseCritique(content), nil
}

// ParseCritique parses a critic response. Parsing never fails: a response
// that cannot be understood becomes a major_issues critique, so a broken
// critic can stall a draft but can never wave one through.
func ParseCritique(content string) *domain.Critique {
	var critique domain.Critique
	if err := json.Unmarshal(sanitizeJSON([]byte(content)), &critique); err != nil {
		return failSafeCritique(content, fmt.Sprintf("critique was not valid JSON: %v", err))
	}

	critique.Severity = domain.Severity(strings.ToLower(strings.TrimSpace(string(critique.Severity))))
	if err := critique.Validate(); err != nil {
		return failSafeCritique(content, fmt.Sprintf("critique failed validation: %v", err))
	}
	return &critique
}

func failSafeCritique(raw, reason string) *domain.Critique {
	return &domain.Critique{
		Severity:  domain.SeverityMajorIssues,
		Summary:   "critique response could not be parsed; treating as major issues",
		Reasoning: fmt.Sprintf("%s; raw response: %s", reason, clip(raw, 500)),
	}
}
