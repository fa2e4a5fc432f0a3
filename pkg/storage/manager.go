package storage

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"qdreviews/pkg/logger"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Record is one output row with its columns in order
type Record interface {
	Keys() []string
	Get(key string) (string, bool)
}

// Manager owns a book's output tree:
//
//	<root>/<book>/chapters/<chapter>.csv
//	<root>/<book>/<book>_all.csv
//
// A chapter file, possibly holding only a byte order mark, means the
// chapter was fully enumerated.
type Manager struct {
	bookID      string
	bookDir     string
	chaptersDir string
	logger      logger.Logger

	mu        sync.RWMutex
	completed map[string]bool
}

// NewManager creates the output directories for bookID and scans the
// chapter files already present
func NewManager(root, bookID string, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	bookDir := filepath.Join(root, bookID)
	chaptersDir := filepath.Join(bookDir, "chapters")
	if err := os.MkdirAll(chaptersDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	m := &Manager{
		bookID:      bookID,
		bookDir:     bookDir,
		chaptersDir: chaptersDir,
		logger:      log.WithField("component", "storage"),
		completed:   make(map[string]bool),
	}
	if err := m.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}
	return m, nil
}

func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.chaptersDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".csv" {
			m.completed[strings.TrimSuffix(entry.Name(), ".csv")] = true
		}
	}
	return nil
}

// IsCompleted reports whether the chapter was persisted before this run
// started or during it
func (m *Manager) IsCompleted(chapterID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.completed[chapterID]
}

// CompletedCount returns the number of persisted chapters
func (m *Manager) CompletedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.completed)
}

// ChapterPath returns the file a chapter is persisted to
func (m *Manager) ChapterPath(chapterID string) string {
	return filepath.Join(m.chaptersDir, chapterID+".csv")
}

// AggregatePath returns the merged output file
func (m *Manager) AggregatePath() string {
	return filepath.Join(m.bookDir, m.bookID+"_all.csv")
}

// ChaptersDir returns the directory holding chapter files
func (m *Manager) ChaptersDir() string {
	return m.chaptersDir
}

// WriteChapter persists a chapter's records. No records writes the empty
// completion marker.
func (m *Manager) WriteChapter(chapterID string, records []Record) (string, error) {
	path := m.ChapterPath(chapterID)

	columns := columnUnion(records)
	rows := make([]map[string]string, 0, len(records))
	for _, r := range records {
		row := make(map[string]string, len(columns))
		for _, k := range r.Keys() {
			row[k], _ = r.Get(k)
		}
		rows = append(rows, row)
	}

	if err := writeCSVAtomic(path, columns, rows); err != nil {
		return "", fmt.Errorf("chapter %s: %w", chapterID, err)
	}

	m.mu.Lock()
	m.completed[chapterID] = true
	m.mu.Unlock()
	return path, nil
}

func columnUnion(records []Record) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, r := range records {
		for _, k := range r.Keys() {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	return columns
}

// writeCSVAtomic writes BOM, header and rows to a temporary sibling and
// renames it into place. No columns produces a BOM-only file.
func writeCSVAtomic(path string, columns []string, rows []map[string]string) error {
	tempFile := path + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	err = writeCSV(out, columns, rows)
	if err == nil {
		err = out.Sync()
	}
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write csv: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, columns []string, rows []map[string]string) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	if len(columns) == 0 {
		return nil
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	line := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			line[i] = row[col]
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// readCSV loads a file written by writeCSV. A BOM-only or empty file has
// no columns and no rows.
func readCSV(path string) ([]string, []map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if first3, _ := br.Peek(3); len(first3) == 3 && string(first3) == string(utf8BOM) {
		br.Discard(3)
	}
	r := csv.NewReader(br)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var rows []map[string]string
	for {
		line, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(line) {
				row[col] = line[i]
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}
