package policy

import (
	"context"
	"testing"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(context.Background(), DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine
}

func TestDecideAcceptable(t *testing.T) {
	engine := newTestEngine(t)

	decision, err := engine.Decide(context.Background(), "acceptable", 1, 5)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decision != "accept" {
		t.Fatalf("expected accept, got %q", decision)
	}
}

func TestDecideAcceptableOnFinalRound(t *testing.T) {
	engine := newTestEngine(t)

	// An acceptable critique accepts even when the budget is spent.
	decision, err := engine.Decide(context.Background(), "acceptable", 5, 5)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decision != "accept" {
		t.Fatalf("expected accept, got %q", decision)
	}
}

func TestDecideReviseWithBudgetLeft(t *testing.T) {
	engine := newTestEngine(t)

	for _, severity := range []string{"minor_issues", "major_issues"} {
		decision, err := engine.Decide(context.Background(), severity, 2, 5)
		if err != nil {
			t.Fatalf("Decide failed: %v", err)
		}
		if decision != "revise" {
			t.Fatalf("severity %s: expected revise, got %q", severity, decision)
		}
	}
}

func TestDecideFinalizeOnExhaustedBudget(t *testing.T) {
	engine := newTestEngine(t)

	for _, severity := range []string{"minor_issues", "major_issues"} {
		decision, err := engine.Decide(context.Background(), severity, 5, 5)
		if err != nil {
			t.Fatalf("Decide failed: %v", err)
		}
		if decision != "finalize" {
			t.Fatalf("severity %s: expected finalize, got %q", severity, decision)
		}
	}
}

func TestDecideCustomPolicy(t *testing.T) {
	// A stricter policy that never accepts minor issues early but finalizes
	// one round sooner.
	const custom = `
package course_policy

default decision := "revise"

decision := "accept" if {
	input.severity == "acceptable"
}

decision := "finalize" if {
	input.severity != "acceptable"
	input.round >= input.max_rounds - 1
}
`
	engine, err := NewEngine(context.Background(), custom)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	decision, err := engine.Decide(context.Background(), "major_issues", 4, 5)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decision != "finalize" {
		t.Fatalf("expected finalize, got %q", decision)
	}
}

func TestDecidePolicyWithoutDecisionRule(t *testing.T) {
	// A policy that defines nothing useful falls back to the built-in rules.
	engine, err := NewEngine(context.Background(), "package course_policy\n\nunrelated := true\n")
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	decision, err := engine.Decide(context.Background(), "major_issues", 1, 5)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decision != "revise" {
		t.Fatalf("expected revise, got %q", decision)
	}

	decision, err = engine.Decide(context.Background(), "acceptable", 1, 5)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decision != "accept" {
		t.Fatalf("expected accept, got %q", decision)
	}
}

func TestNewEngineRejectsBrokenPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package course_policy\n\ndecision := {")
	if err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadDefault(t *testing.T) {
	content, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if content != DefaultPolicy {
		t.Fatalf("expected bundled default policy")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/policy.rego")
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}
