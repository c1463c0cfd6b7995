package store

import "github.com/cwbudde/blockdiff/internal/grid"

// Store defines the interface for report persistence and the averaged-grid
// cache. Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return nil error on success
//   - Return ErrNotFound if the requested entry doesn't exist (Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveReport atomically persists a report. An existing report with the
	// same ID is overwritten.
	SaveReport(report *Report) error

	// LoadReport retrieves a report by ID.
	// Returns ErrNotFound if no such report exists.
	LoadReport(id string) (*Report, error)

	// ListReports returns metadata for all persisted reports.
	ListReports() ([]ReportInfo, error)

	// DeleteReport removes a report and its artifacts.
	// Returns ErrNotFound if no such report exists.
	DeleteReport(id string) error

	// SaveGrid stores an averaged grid in the cache under the given key.
	SaveGrid(key string, xSegments, ySegments int, g grid.Grid) error

	// LoadGrid retrieves a cached averaged grid and its segment counts.
	// Returns ErrNotFound on a cache miss.
	LoadGrid(key string) (grid.Grid, int, int, error)
}

// ErrNotFound is returned when a requested entry does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing report or cache entry.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	if e.Key != "" {
		return "not found: " + e.Key
	}
	return "not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
