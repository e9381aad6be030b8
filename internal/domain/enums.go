// Package domain defines the core domain models for courseforge.
package domain

// Complexity represents the target difficulty of a generated course.
type Complexity string

const (
	ComplexityBeginner     Complexity = "beginner"
	ComplexityIntermediate Complexity = "intermediate"
	ComplexityAdvanced     Complexity = "advanced"
)

// Valid reports whether the complexity is one of the known levels.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexityBeginner, ComplexityIntermediate, ComplexityAdvanced:
		return true
	}
	return false
}

// Stage represents a course generation stage.
type Stage string

const (
	// StageDocuments is the ingestion stage; documents are supplied by the
	// analysis pipeline and loaded through the API.
	StageDocuments Stage = "documents"
	// StagePathways builds candidate learning pathways from the document set.
	StagePathways Stage = "pathways"
	// StageContent generates per-module content for an accepted pathway.
	StageContent Stage = "content"
)

// Startable reports whether the stage can be started through the API.
func (s Stage) Startable() bool {
	return s == StagePathways || s == StageContent
}

// StageStatus represents the coarse status of a stage run. A course carries
// the status of its most recently started stage.
type StageStatus string

const (
	StageStatusPending             StageStatus = "pending"
	StageStatusInProgress          StageStatus = "in_progress"
	StageStatusCompleted           StageStatus = "completed"
	StageStatusCompletedWithErrors StageStatus = "completed_with_errors"
	StageStatusFailed              StageStatus = "failed"
	StageStatusCancelled           StageStatus = "cancelled"
	StageStatusTimedOut            StageStatus = "timed_out"
)

// IsTerminal reports whether the status is a terminal state.
func (s StageStatus) IsTerminal() bool {
	switch s {
	case StageStatusCompleted, StageStatusCompletedWithErrors, StageStatusFailed, StageStatusCancelled, StageStatusTimedOut:
		return true
	}
	return false
}

// Succeeded reports whether the status carries usable results.
func (s StageStatus) Succeeded() bool {
	return s == StageStatusCompleted || s == StageStatusCompletedWithErrors
}

// SessionKind identifies what kind of artifact a negotiation session produces.
type SessionKind string

const (
	SessionKindPathway SessionKind = "pathway"
	SessionKindModule  SessionKind = "module"
)

// SessionStep represents where a negotiation session currently is.
type SessionStep string

const (
	SessionStepStarting  SessionStep = "starting"
	SessionStepProposer  SessionStep = "proposer"
	SessionStepCritic    SessionStep = "critic"
	SessionStepCompleted SessionStep = "completed"
	SessionStepAccepted  SessionStep = "accepted"
	SessionStepFailed    SessionStep = "failed"
	SessionStepTimedOut  SessionStep = "timed_out"
)

// Severity is the critic's verdict on an artifact.
type Severity string

const (
	SeverityAcceptable  Severity = "acceptable"
	SeverityMinorIssues Severity = "minor_issues"
	SeverityMajorIssues Severity = "major_issues"
)

// Valid reports whether the severity is one of the known values.
func (s Severity) Valid() bool {
	switch s {
	case SeverityAcceptable, SeverityMinorIssues, SeverityMajorIssues:
		return true
	}
	return false
}

// Rank orders severities for best-artifact selection:
// acceptable > minor_issues > major_issues. Unknown values rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityAcceptable:
		return 2
	case SeverityMinorIssues:
		return 1
	case SeverityMajorIssues:
		return 0
	}
	return -1
}

// ModuleStatus is the per-module status reported in content-stage progress.
type ModuleStatus string

const (
	ModuleStatusPending    ModuleStatus = "pending"
	ModuleStatusProcessing ModuleStatus = "processing"
	ModuleStatusDebating   ModuleStatus = "debating"
	ModuleStatusCompleted  ModuleStatus = "completed"
	ModuleStatusFailed     ModuleStatus = "failed"
)

// EventType represents the type of a recorded trace event.
type EventType string

const (
	EventTypeStageStarted     EventType = "stage_started"
	EventTypeSessionStarted   EventType = "session_started"
	EventTypeRoundCompleted   EventType = "round_completed"
	EventTypeSessionAccepted  EventType = "session_accepted"
	EventTypeSessionExhausted EventType = "session_exhausted"
	EventTypeSessionFailed    EventType = "session_failed"
	EventTypeStageCompleted   EventType = "stage_completed"
	EventTypeStageCancelled   EventType = "stage_cancelled"
)
