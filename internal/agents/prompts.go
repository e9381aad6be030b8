package agents

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/courseforge/courseforge/internal/domain"
)

const pathwayProposerSystem = `You are a curriculum architect. You design learning pathways that take a developer from zero context on a codebase to working knowledge of it, using only the analyzed documents you are given.

Respond with a single JSON object and no surrounding prose, matching:
{
  "title": "pathway title",
  "description": "one paragraph describing the pathway arc",
  "modules": [
    {
      "title": "module title",
      "description": "what this module covers and why it sits here in the sequence",
      "theme": "optional grouping theme",
      "learning_objectives": ["what the learner can do afterwards"],
      "document_refs": ["document id this module draws on"],
      "estimated_minutes": 30
    }
  ]
}`

const pathwayCriticSystem = `You are an exacting curriculum reviewer. You judge a proposed learning pathway for coverage of the source material, logical module ordering, realistic scope per module, and fit to the requested difficulty.

` + critiqueInstructions

const contentProposerSystem = `You are a technical course author. You write complete, self-contained course module content grounded strictly in the analyzed documents you are given. Explain concepts in plain language, use concrete examples from the material, and never invent APIs or behavior the documents do not show.

Respond with a single JSON object and no surrounding prose, matching:
{
  "title": "module title",
  "introduction": "sets context and motivates the module",
  "sections": [
    {"heading": "section heading", "body": "several paragraphs of teaching text"}
  ],
  "conclusion": "what was covered and where to go next",
  "assessment": "a few questions or exercises that test the objectives"
}`

const contentCriticSystem = `You are an exacting reviewer of course material. You judge one module's content for technical accuracy against the source documents, completeness against the module's learning objectives, clarity, and appropriate depth.

` + critiqueInstructions

const critiqueInstructions = `Respond with a single JSON object and no surrounding prose, matching:
{
  "severity": "acceptable",
  "summary": "one or two sentence verdict",
  "reasoning": "how you reached the verdict",
  "revision_requests": ["a specific change the author should make"]
}

severity must be exactly one of:
- "acceptable": ship it as is
- "minor_issues": usable, but the revision requests would improve it
- "major_issues": structural problems; it needs another pass`

// moduleCountHint maps difficulty to a target module count range.
func moduleCountHint(complexity domain.Complexity) string {
	switch complexity {
	case domain.ComplexityBeginner:
		return "3 to 5"
	case domain.ComplexityAdvanced:
		return "8 to 12"
	default:
		return "5 to 8"
	}
}

// buildPathwayProposalPrompt assembles the user prompt for a pathway draft.
func buildPathwayProposalPrompt(course *domain.Course, docs []domain.AnalyzedDocument, complexity domain.Complexity, instructions string, prev *domain.NegotiationRound) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Design a learning pathway for the course %q (repository: %s).\n", course.Title, course.RepoURL)
	fmt.Fprintf(&b, "Target difficulty: %s. Aim for %s modules.\n\n", complexity, moduleCountHint(complexity))

	b.WriteString("Analyzed documents:\n")
	writeDocumentSummaries(&b, docs)

	if instructions != "" {
		fmt.Fprintf(&b, "\nAdditional instructions from the requester:\n%s\n", instructions)
	}

	writeRevisionContext(&b, prev)
	return b.String()
}

// buildPathwayCritiquePrompt assembles the user prompt for critiquing a
// pathway draft.
func buildPathwayCritiquePrompt(pathway *domain.Pathway, complexity domain.Complexity) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Review this learning pathway draft. Target difficulty: %s.\n\n", complexity)
	writeArtifactJSON(&b, pathway)
	return b.String()
}

// buildContentProposalPrompt assembles the user prompt for drafting one
// module's content.
func buildContentProposalPrompt(course *domain.Course, pathway *domain.Pathway, moduleIndex int, docs []domain.AnalyzedDocument, prev *domain.NegotiationRound) string {
	module := pathway.Modules[moduleIndex]
	var b strings.Builder

	fmt.Fprintf(&b, "Write the content for module %d of %d, %q, in the pathway %q (course %q).\n\n",
		moduleIndex+1, len(pathway.Modules), module.Title, pathway.Title, course.Title)
	fmt.Fprintf(&b, "Module brief: %s\n", module.Description)
	if len(module.LearningObjectives) > 0 {
		b.WriteString("Learning objectives:\n")
		for _, objective := range module.LearningObjectives {
			fmt.Fprintf(&b, "- %s\n", objective)
		}
	}
	if module.EstimatedMinutes > 0 {
		fmt.Fprintf(&b, "Target length: about %d minutes of study.\n", module.EstimatedMinutes)
	}

	b.WriteString("\nSource material:\n")
	writeDocumentContent(&b, docs, module.DocumentRefs)

	writeRevisionContext(&b, prev)
	return b.String()
}

// buildContentCritiquePrompt assembles the user prompt for critiquing one
// module's content.
func buildContentCritiquePrompt(module domain.Module, content *domain.ModuleContent) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Review this draft content for the module %q.\n", module.Title)
	fmt.Fprintf(&b, "Module brief: %s\n", module.Description)
	if len(module.LearningObjectives) > 0 {
		b.WriteString("It must cover these learning objectives:\n")
		for _, objective := range module.LearningObjectives {
			fmt.Fprintf(&b, "- %s\n", objective)
		}
	}
	b.WriteString("\n")
	writeArtifactJSON(&b, content)
	return b.String()
}

// writeDocumentSummaries lists every document by ID with its summary and
// key concepts. Full content stays out of pathway prompts to keep them small.
func writeDocumentSummaries(b *strings.Builder, docs []domain.AnalyzedDocument) {
	for _, doc := range docs {
		fmt.Fprintf(b, "- %s (%s)", doc.DocumentID, doc.Path)
		if doc.Summary != "" {
			fmt.Fprintf(b, ": %s", clip(doc.Summary, 400))
		}
		if len(doc.KeyConcepts) > 0 {
			fmt.Fprintf(b, " [concepts: %s]", strings.Join(doc.KeyConcepts, ", "))
		}
		b.WriteString("\n")
	}
}

// writeDocumentContent writes the full content of the referenced documents,
// or of every document when the module names no refs. Each document is
// clipped so one oversized file cannot crowd out the rest.
func writeDocumentContent(b *strings.Builder, docs []domain.AnalyzedDocument, refs []string) {
	wanted := make(map[string]bool, len(refs))
	for _, ref := range refs {
		wanted[ref] = true
	}

	for _, doc := range docs {
		if len(wanted) > 0 && !wanted[doc.DocumentID] && !wanted[doc.Path] {
			continue
		}
		fmt.Fprintf(b, "--- %s (%s) ---\n%s\n", doc.DocumentID, doc.Path, clip(doc.Content, 6000))
	}
}

// writeRevisionContext appends the previous draft and the critic's feedback
// so the proposer revises instead of starting over.
func writeRevisionContext(b *strings.Builder, prev *domain.NegotiationRound) {
	if prev == nil {
		return
	}

	b.WriteString("\nThis is a revision. Your previous draft:\n")
	writeArtifactJSON(b, prev.Artifact)
	fmt.Fprintf(b, "\nReviewer verdict (%s): %s\n", prev.Critique.Severity, prev.Critique.Summary)
	if len(prev.Critique.RevisionRequests) > 0 {
		b.WriteString("Requested changes:\n")
		for _, request := range prev.Critique.RevisionRequests {
			fmt.Fprintf(b, "- %s\n", request)
		}
	}
	b.WriteString("Address every requested change. Keep what the reviewer did not object to.\n")
}

func writeArtifactJSON(b *strings.Builder, artifact domain.Artifact) {
	encoded, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		fmt.Fprintf(b, "(could not encode artifact: %v)\n", err)
		return
	}
	b.Write(encoded)
	b.WriteString("\n")
}
