package entities

import "time"

// ExecutionStatus is the lifecycle state of an execution.
type ExecutionStatus string

const (
	ExecutionInProgress ExecutionStatus = "in_progress"
	ExecutionCompleted  ExecutionStatus = "completed"
)

// Execution is one user's run-through of a procedure. UserID is immutable
// and every read or mutation is ownership-checked against it. CurrentStep is
// a monotonic high-water mark (order+1 of the furthest completed step), not
// a gate: out-of-order step completion is tolerated.
type Execution struct {
	ID          string          `json:"id" db:"id"`
	UserID      string          `json:"userId" db:"user_id"`
	ProcedureID string          `json:"procedureId" db:"procedure_id"`
	Status      ExecutionStatus `json:"status" db:"status"`
	CurrentStep int             `json:"currentStep" db:"current_step"`
	StartedAt   time.Time       `json:"startedAt" db:"started_at"`
	CompletedAt *time.Time      `json:"completedAt" db:"completed_at"`

	Procedure      *Procedure       `json:"procedure,omitempty"`
	StepExecutions []*StepExecution `json:"stepExecutions,omitempty"`
}

// StepExecutionStatus is the completion state of a single step.
type StepExecutionStatus string

const (
	StepPending   StepExecutionStatus = "pending"
	StepCompleted StepExecutionStatus = "completed"
)

// StepExecution is the per-step completion record within an execution.
// At most one row exists per (ExecutionID, StepID); writes are upserts.
type StepExecution struct {
	ID          string              `json:"id" db:"id"`
	ExecutionID string              `json:"executionId" db:"execution_id"`
	StepID      string              `json:"stepId" db:"step_id"`
	Status      StepExecutionStatus `json:"status" db:"status"`
	Photos      []string            `json:"photos" db:"photos"`
	Comments    string              `json:"comments" db:"comments"`
	CompletedAt *time.Time          `json:"completedAt" db:"completed_at"`

	Step *Step `json:"step,omitempty"`
}
