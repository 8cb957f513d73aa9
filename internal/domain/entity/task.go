package entity

import "time"

// TaskPriority orders asynchronous work. Higher values dequeue first.
type TaskPriority int

const (
	// PriorityLow is background work with no latency expectation.
	PriorityLow TaskPriority = iota
	// PriorityNormal is the default priority.
	PriorityNormal
	// PriorityHigh is user-visible work that should preempt background tasks.
	PriorityHigh
	// PriorityCritical preempts everything else.
	PriorityCritical
)

// String returns the priority name used in logs and metrics labels.
func (p TaskPriority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// TaskState is the lifecycle state of an asynchronous task.
type TaskState string

const (
	// TaskQueued means the task is waiting for a worker.
	TaskQueued TaskState = "queued"
	// TaskRunning means a worker is executing the task.
	TaskRunning TaskState = "running"
	// TaskSucceeded means the task completed and its result is available.
	TaskSucceeded TaskState = "succeeded"
	// TaskFailed means the task exhausted its retries.
	TaskFailed TaskState = "failed"
	// TaskTimedOut means the task exceeded its execution timeout.
	TaskTimedOut TaskState = "timed_out"
	// TaskCancelled means the task was cancelled before completion.
	TaskCancelled TaskState = "cancelled"
)

// Terminal reports whether the state is final.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskSucceeded, TaskFailed, TaskTimedOut, TaskCancelled:
		return true
	}
	return false
}

// Task is one unit of asynchronous work tracked by the task queue.
type Task struct {
	ID          string       `json:"task_id"`
	Priority    TaskPriority `json:"priority"`
	State       TaskState    `json:"state"`
	SubmittedAt time.Time    `json:"submitted_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Result      any          `json:"result,omitempty"`
	Error       string       `json:"error,omitempty"`
	Attempts    int          `json:"attempts,omitempty"`
}
