package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// MergeResult describes one aggregation pass
type MergeResult struct {
	// Path is the aggregate file, empty when nothing was written
	Path    string
	Rows    int
	Files   int
	Skipped int
}

// Merge concatenates every chapter file into the aggregate file. Columns are
// the union over all files in first-seen order. Unreadable files are skipped
// with a warning. The aggregate is written only when there is at least one
// row.
func (m *Manager) Merge() (*MergeResult, error) {
	entries, err := os.ReadDir(m.chaptersDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	result := &MergeResult{}
	seen := make(map[string]bool)
	var columns []string
	var rows []map[string]string

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".csv" {
			continue
		}
		path := filepath.Join(m.chaptersDir, entry.Name())
		header, fileRows, err := readCSV(path)
		if err != nil {
			m.logger.WithError(err).WarnWithFields("skipping unreadable chapter file", map[string]interface{}{
				"file": path,
			})
			result.Skipped++
			continue
		}
		result.Files++
		if len(fileRows) == 0 {
			continue
		}
		for _, col := range header {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
		rows = append(rows, fileRows...)
	}

	result.Rows = len(rows)
	if result.Rows == 0 {
		return result, nil
	}

	path := m.AggregatePath()
	if err := writeCSVAtomic(path, columns, rows); err != nil {
		return result, fmt.Errorf("aggregate: %w", err)
	}
	result.Path = path

	m.logger.InfoWithFields("chapter files merged", map[string]interface{}{
		"file":  path,
		"rows":  result.Rows,
		"files": result.Files,
	})
	return result, nil
}
