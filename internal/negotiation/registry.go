package negotiation

import (
	"sort"
	"sync"
	"time"

	"github.com/courseforge/courseforge/internal/domain"
)

// Listener receives the recomputed stage snapshot after every session
// publish. Used to push progress over websockets.
type Listener func(stageKey string, snapshot domain.StageProgressSnapshot)

// Registry holds the live progress of stage runs, keyed by stage key
// (courseID:stage). Session views are value copies; a reader can never
// observe a half-updated session. State for a key survives stage completion
// and is replaced when the same key starts again.
type Registry struct {
	mu       sync.RWMutex
	stages   map[string]*stageState
	listener Listener
}

type stageState struct {
	courseID  string
	stage     domain.Stage
	startedAt time.Time
	order     []string
	sessions  map[string]domain.SessionView
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[string]*stageState)}
}

// StageKey builds the registry key for one stage of one course.
func StageKey(courseID string, stage domain.Stage) string {
	return courseID + ":" + string(stage)
}

// SetListener installs the snapshot listener. Call once, before stages run.
func (r *Registry) SetListener(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listener = l
}

// StartStage resets the state for a stage key. Any state from a previous
// run of the same key is discarded.
func (r *Registry) StartStage(stageKey, courseID string, stage domain.Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[stageKey] = &stageState{
		courseID:  courseID,
		stage:     stage,
		startedAt: time.Now(),
		sessions:  make(map[string]domain.SessionView),
	}
}

// Publisher returns the publish function for sessions of one stage run.
// Publishing to a key that was never started, or was reset since, is a
// no-op; a stale run cannot corrupt its successor's progress.
func (r *Registry) Publisher(stageKey string) func(view domain.SessionView) {
	return func(view domain.SessionView) {
		r.publish(stageKey, view)
	}
}

func (r *Registry) publish(stageKey string, view domain.SessionView) {
	r.mu.Lock()
	st, ok := r.stages[stageKey]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, seen := st.sessions[view.SessionID]; !seen {
		st.order = append(st.order, view.SessionID)
	}
	st.sessions[view.SessionID] = view
	snapshot := st.snapshot()
	listener := r.listener
	r.mu.Unlock()

	if listener != nil {
		listener(stageKey, snapshot)
	}
}

// Snapshot returns the aggregate progress for a stage key. ok is false when
// the key has never started.
func (r *Registry) Snapshot(stageKey string) (domain.StageProgressSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.stages[stageKey]
	if !ok {
		return domain.StageProgressSnapshot{}, false
	}
	return st.snapshot(), true
}

// snapshot recomputes the aggregate view. Callers hold the registry lock.
func (st *stageState) snapshot() domain.StageProgressSnapshot {
	snap := domain.StageProgressSnapshot{
		CourseID:       st.courseID,
		Stage:          st.stage,
		Total:          len(st.sessions),
		ElapsedSeconds: time.Since(st.startedAt).Seconds(),
	}

	var roundSecondsSum float64
	var roundSecondsCount int
	var remainingRounds int

	for _, id := range st.order {
		view := st.sessions[id]

		switch {
		case view.Completed():
			snap.Completed++
		case view.Failed():
			snap.Failed++
		case view.Step == domain.SessionStepStarting:
			snap.Pending++
		default:
			snap.Processing++
		}

		if view.AvgRoundSeconds > 0 {
			roundSecondsSum += view.AvgRoundSeconds
			roundSecondsCount++
		}
		if !view.Terminal {
			left := view.MaxRounds - view.RoundsDone
			if left < 1 {
				left = 1
			}
			remainingRounds += left
		}

		if st.stage == domain.StageContent {
			snap.Modules = append(snap.Modules, moduleDetail(view))
		}
	}

	if roundSecondsCount > 0 && remainingRounds > 0 {
		snap.EstimatedRemainingSeconds = (roundSecondsSum / float64(roundSecondsCount)) * float64(remainingRounds)
	}

	sort.Slice(snap.Modules, func(i, j int) bool {
		return snap.Modules[i].ModuleIndex < snap.Modules[j].ModuleIndex
	})
	return snap
}

func moduleDetail(view domain.SessionView) domain.ModuleProgressDetail {
	detail := domain.ModuleProgressDetail{
		ModuleIndex: view.Owner.ModuleIndex,
		Title:       view.Owner.Title,
		Round:       view.Round,
		MaxRounds:   view.MaxRounds,
	}

	switch {
	case view.Completed():
		detail.Status = domain.ModuleStatusCompleted
	case view.Failed():
		detail.Status = domain.ModuleStatusFailed
	case view.Step == domain.SessionStepStarting:
		detail.Status = domain.ModuleStatusPending
	case view.RoundsDone == 0:
		detail.Status = domain.ModuleStatusProcessing
	default:
		detail.Status = domain.ModuleStatusDebating
	}
	return detail
}
