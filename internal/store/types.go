package store

import (
	"time"
)

// CompareConfig holds the inputs of a comparison run. It is persisted with
// the report so a result can be reproduced from disk.
type CompareConfig struct {
	SourceA    string `json:"sourceA"`
	SourceB    string `json:"sourceB"`
	XSegments  int    `json:"xSegments"`
	YSegments  int    `json:"ySegments"`
	Vectorized bool   `json:"vectorized,omitempty"`
	Strict     bool   `json:"strict,omitempty"`
	Align      bool   `json:"align,omitempty"`

	// Optimizer budget, only meaningful when Align is set
	Iters   int   `json:"iters,omitempty"`
	PopSize int   `json:"popSize,omitempty"`
	Seed    int64 `json:"seed,omitempty"`
}

// Report is a persisted comparison result.
type Report struct {
	// ID is the unique identifier of the run that produced this report
	ID string `json:"id"`

	// Config holds the inputs, sufficient to rerun the comparison
	Config CompareConfig `json:"config"`

	// Score is the divergence between the two averaged grids
	Score float64 `json:"score"`

	// OffsetX, OffsetY locate the best window for align runs
	OffsetX int `json:"offsetX,omitempty"`
	OffsetY int `json:"offsetY,omitempty"`

	// Backend records the comparator kernel that produced the score
	Backend string `json:"backend,omitempty"`

	// ElapsedSeconds is the wall-clock duration of the run
	ElapsedSeconds float64 `json:"elapsedSeconds"`

	// Timestamp records when the report was created
	Timestamp time.Time `json:"timestamp"`
}

// NewReport creates a report from a finished run.
func NewReport(id string, config CompareConfig, score float64, elapsed time.Duration) *Report {
	return &Report{
		ID:             id,
		Config:         config,
		Score:          score,
		ElapsedSeconds: elapsed.Seconds(),
		Timestamp:      time.Now(),
	}
}

// ReportInfo contains report metadata for listings.
type ReportInfo struct {
	ID        string    `json:"id"`
	SourceA   string    `json:"sourceA"`
	SourceB   string    `json:"sourceB"`
	XSegments int       `json:"xSegments"`
	YSegments int       `json:"ySegments"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// ToInfo converts a full Report to its listing metadata.
func (r *Report) ToInfo() ReportInfo {
	return ReportInfo{
		ID:        r.ID,
		SourceA:   r.Config.SourceA,
		SourceB:   r.Config.SourceB,
		XSegments: r.Config.XSegments,
		YSegments: r.Config.YSegments,
		Score:     r.Score,
		Timestamp: r.Timestamp,
	}
}

// Validate checks that a report carries the fields persistence relies on.
func (r *Report) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if r.Config.SourceA == "" {
		return &ValidationError{Field: "Config.SourceA", Reason: "cannot be empty"}
	}
	if r.Config.SourceB == "" {
		return &ValidationError{Field: "Config.SourceB", Reason: "cannot be empty"}
	}
	if r.Config.XSegments <= 0 {
		return &ValidationError{Field: "Config.XSegments", Reason: "must be positive"}
	}
	if r.Config.YSegments <= 0 {
		return &ValidationError{Field: "Config.YSegments", Reason: "must be positive"}
	}
	if r.Score < 0 {
		return &ValidationError{Field: "Score", Reason: "cannot be negative"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	return nil
}

// ValidationError represents a report validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
