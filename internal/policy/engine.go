// Package policy evaluates the negotiation acceptance policy with OPA.
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

// Engine is the OPA policy engine. It maps a critique severity and the
// round budget to a negotiation decision.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.course_policy.decision"),
		rego.Module("course_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Load returns the policy content to run with: the file at path when set,
// the bundled default otherwise.
func Load(path string) (string, error) {
	if path == "" {
		return DefaultPolicy, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read policy file: %w", err)
	}
	return string(content), nil
}

// Decide evaluates the policy for one completed negotiation round.
// Returns one of: accept, revise, finalize.
func (e *Engine) Decide(ctx context.Context, severity string, round, maxRounds int) (string, error) {
	input := map[string]interface{}{
		"severity":   severity,
		"round":      round,
		"max_rounds": maxRounds,
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// A custom policy without a default rule gets the built-in rules.
		return fixedDecision(severity, round, maxRounds), nil
	}

	val := results[0].Expressions[0].Value
	if s, ok := val.(string); ok {
		return s, nil
	}

	return fixedDecision(severity, round, maxRounds), nil
}

// fixedDecision implements the acceptance rules in Go, for policies that do
// not produce a string decision. Only an acceptable critique accepts; an
// exhausted budget finalizes; everything else revises.
func fixedDecision(severity string, round, maxRounds int) string {
	if severity == "acceptable" {
		return "accept"
	}
	if round >= maxRounds {
		return "finalize"
	}
	return "revise"
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package course_policy

default decision := "revise"

# Only an acceptable critique ends the debate early.
decision := "accept" if {
	input.severity == "acceptable"
}

# Out of rounds: stop debating and keep the best draft so far.
decision := "finalize" if {
	input.severity != "acceptable"
	input.round >= input.max_rounds
}
`
