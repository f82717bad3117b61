// Package project tracks processing runs: a persistent history record per
// run plus the in-memory manager that owns live pipelines.
package project

import (
	"time"

	"jumpcut/internal/interval"
)

// Record is the persisted view of a run. It exists for history and
// inspection only; runs are never resumed from the database.
type Record struct {
	ID              string          `json:"id"`
	SourcePath      string          `json:"source_path"`
	OutputPath      string          `json:"output_path,omitempty"`
	Stage           string          `json:"stage"`
	Percent         float64         `json:"progress"`
	Details         string          `json:"details,omitempty"`
	DurationSeconds float64         `json:"duration_seconds,omitempty"`
	Segments        []interval.Span `json:"segments,omitempty"`
	Error           string          `json:"error,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
