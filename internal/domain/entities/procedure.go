package entities

import (
	"encoding/json"
	"time"
)

// Procedure is a named, ordered checklist of maintenance steps. Procedures
// are soft-deleted (IsActive flips false) so execution history keeps valid
// references.
type Procedure struct {
	ID            string          `json:"id" db:"id"`
	Title         string          `json:"title" db:"title"`
	Description   string          `json:"description" db:"description"`
	Category      string          `json:"category" db:"category"`
	Tags          []string        `json:"tags" db:"tags"`
	IsActive      bool            `json:"isActive" db:"is_active"`
	FlowchartData json.RawMessage `json:"flowchartData,omitempty" db:"flowchart_data"`
	CreatedBy     string          `json:"createdBy,omitempty" db:"created_by"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`

	Steps []*Step `json:"steps,omitempty"`
}

// ValidationType describes how a step is marked done.
type ValidationType string

const (
	ValidationManual ValidationType = "manual"
)

// Step belongs to exactly one procedure. Order is unique within the
// procedure and defines both presentation and completion sequence. Steps are
// replaced wholesale when a procedure is edited, never diffed.
type Step struct {
	ID             string         `json:"id" db:"id"`
	ProcedureID    string         `json:"procedureId" db:"procedure_id"`
	Title          string         `json:"title" db:"title"`
	Description    string         `json:"description" db:"description"`
	Instructions   string         `json:"instructions" db:"instructions"`
	Order          int            `json:"order" db:"order"`
	Photos         []string       `json:"photos" db:"photos"`
	Files          []string       `json:"files" db:"files"`
	ValidationType ValidationType `json:"validationType" db:"validation_type"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
}
