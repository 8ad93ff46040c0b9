package batch

import (
	"sync"
	"time"
)

// EventEmitter is the sink for run lifecycle events. The websocket hub
// implements it; a nil emitter disables reporting.
type EventEmitter interface {
	Emit(event string, data any)
}

// Event names for run lifecycle
const (
	EventRunStarted   = "RunStarted"
	EventRunProgress  = "RunProgress"
	EventRunCompleted = "RunCompleted"
	EventRunFailed    = "RunFailed"
)

// ProgressEvent is emitted during a batch run.
type ProgressEvent struct {
	RunID   string `json:"run_id"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`
}

// RunStartedEvent is emitted when a run begins.
type RunStartedEvent struct {
	RunID         string `json:"run_id"`
	StudentsTotal int    `json:"students_total"`
}

// RunCompletedEvent is emitted when a run finishes, successfully or not.
type RunCompletedEvent struct {
	RunID    string        `json:"run_id"`
	Summary  Summary       `json:"summary"`
	Duration time.Duration `json:"duration_ms"`
}

// RunFailedEvent is emitted when a run aborts before completion.
type RunFailedEvent struct {
	RunID    string        `json:"run_id"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration_ms"`
}

// Throttle interval for progress events (avoid spam)
const progressThrottleInterval = 100 * time.Millisecond

// progressReporter throttles per-student progress events for one run.
// Safe for concurrent use by the worker pool.
type progressReporter struct {
	emitter EventEmitter
	runID   string
	total   int

	mu         sync.Mutex
	lastReport time.Time
}

func newProgressReporter(emitter EventEmitter, runID string, total int) *progressReporter {
	return &progressReporter{emitter: emitter, runID: runID, total: total}
}

// report emits a throttled progress event.
func (r *progressReporter) report(current int, message string) {
	if r == nil || r.emitter == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if time.Since(r.lastReport) < progressThrottleInterval {
		return
	}
	r.lastReport = time.Now()

	r.emitter.Emit(EventRunProgress, ProgressEvent{
		RunID:   r.runID,
		Current: current,
		Total:   r.total,
		Message: message,
	})
}

func (r *progressReporter) emitStarted() {
	if r == nil || r.emitter == nil {
		return
	}
	r.emitter.Emit(EventRunStarted, RunStartedEvent{RunID: r.runID, StudentsTotal: r.total})
}

func (r *progressReporter) emitCompleted(summary Summary, duration time.Duration) {
	if r == nil || r.emitter == nil {
		return
	}
	r.emitter.Emit(EventRunCompleted, RunCompletedEvent{RunID: r.runID, Summary: summary, Duration: duration})
}

func (r *progressReporter) emitFailed(err error, duration time.Duration) {
	if r == nil || r.emitter == nil {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.emitter.Emit(EventRunFailed, RunFailedEvent{RunID: r.runID, Error: msg, Duration: duration})
}
