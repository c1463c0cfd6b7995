package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/cwbudde/blockdiff/internal/grid"
)

// magicGrid identifies averaged-grid cache files.
// Layout: magic(4) + xSegments(uint16) + ySegments(uint16) + zstd(channel bytes).
const magicGrid = "BAG1"

// ErrInvalidGridFile is returned when a cache entry fails header or size checks.
var ErrInvalidGridFile = fmt.Errorf("invalid grid cache file")

// FSStore implements the Store interface using filesystem-based persistence.
// Reports live at <baseDir>/reports/<id>/report.json; the grid cache at
// <baseDir>/grids/<key>.bag.
//
// Thread-safety: writes go through temp file + rename, so no locks are
// needed for concurrent access.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a filesystem-based store rooted at baseDir,
// creating the directory if needed.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

func (fs *FSStore) reportDir(id string) string {
	return filepath.Join(fs.baseDir, "reports", id)
}

func (fs *FSStore) reportPath(id string) string {
	return filepath.Join(fs.reportDir(id), "report.json")
}

func (fs *FSStore) gridPath(key string) string {
	return filepath.Join(fs.baseDir, "grids", key+".bag")
}

// SaveReport atomically persists a report using temp file + rename.
func (fs *FSStore) SaveReport(report *Report) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}
	if err := report.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid report: %w", err)
	}

	if err := os.MkdirAll(fs.reportDir(report.ID), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	finalPath := fs.reportPath(report.ID)
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp report file: %w", err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename report file: %w", err)
	}

	slog.Debug("Report saved", "id", report.ID, "path", finalPath)
	return nil
}

// LoadReport retrieves a report by ID.
func (fs *FSStore) LoadReport(id string) (*Report, error) {
	if id == "" {
		return nil, fmt.Errorf("id cannot be empty")
	}

	path := fs.reportPath(id)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{Key: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to deserialize report: %w", err)
	}

	return &report, nil
}

// ListReports returns metadata for all persisted reports.
func (fs *FSStore) ListReports() ([]ReportInfo, error) {
	reportsDir := filepath.Join(fs.baseDir, "reports")

	entries, err := os.ReadDir(reportsDir)
	if os.IsNotExist(err) {
		return []ReportInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read reports directory: %w", err)
	}

	var infos []ReportInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		report, err := fs.LoadReport(entry.Name())
		if err != nil {
			slog.Warn("Skipping unreadable report", "id", entry.Name(), "error", err)
			continue
		}
		infos = append(infos, report.ToInfo())
	}

	slog.Debug("Listed reports", "count", len(infos))
	return infos, nil
}

// DeleteReport removes a report directory and all its artifacts.
func (fs *FSStore) DeleteReport(id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}

	dir := fs.reportDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{Key: id}
	} else if err != nil {
		return fmt.Errorf("failed to stat report directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove report directory: %w", err)
	}

	slog.Debug("Report deleted", "id", id, "path", dir)
	return nil
}

// SaveGrid stores an averaged grid in the cache, zstd-compressed under a
// magic + segment-count header.
func (fs *FSStore) SaveGrid(key string, xSegments, ySegments int, g grid.Grid) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if len(g) != xSegments*ySegments {
		return fmt.Errorf("grid length %d does not match %dx%d segments", len(g), xSegments, ySegments)
	}

	if err := os.MkdirAll(filepath.Join(fs.baseDir, "grids"), 0755); err != nil {
		return fmt.Errorf("failed to create grid cache directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(magicGrid)
	if err := binary.Write(&buf, binary.BigEndian, uint16(xSegments)); err != nil {
		return err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(ySegments)); err != nil {
		return err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	buf.Write(enc.EncodeAll(g.Flatten(), nil))
	enc.Close()

	finalPath := fs.gridPath(key)
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write temp grid file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename grid file: %w", err)
	}

	slog.Debug("Grid cached", "key", key, "blocks", len(g))
	return nil
}

// LoadGrid retrieves a cached averaged grid.
func (fs *FSStore) LoadGrid(key string) (grid.Grid, int, int, error) {
	if key == "" {
		return nil, 0, 0, fmt.Errorf("key cannot be empty")
	}

	data, err := os.ReadFile(fs.gridPath(key))
	if os.IsNotExist(err) {
		return nil, 0, 0, &NotFoundError{Key: key}
	} else if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read grid file: %w", err)
	}

	headerLen := len(magicGrid) + 4
	if len(data) < headerLen || string(data[:len(magicGrid)]) != magicGrid {
		return nil, 0, 0, ErrInvalidGridFile
	}

	xSegments := int(binary.BigEndian.Uint16(data[len(magicGrid):]))
	ySegments := int(binary.BigEndian.Uint16(data[len(magicGrid)+2:]))

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()

	flat, err := dec.DecodeAll(data[headerLen:], nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decompress grid: %w", err)
	}

	if len(flat) != xSegments*ySegments*3 {
		return nil, 0, 0, ErrInvalidGridFile
	}

	g := make(grid.Grid, xSegments*ySegments)
	for i := range g {
		g[i] = grid.BlockAverage{flat[i*3], flat[i*3+1], flat[i*3+2]}
	}

	return g, xSegments, ySegments, nil
}
