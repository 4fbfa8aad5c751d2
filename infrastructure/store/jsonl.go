// Package store persists pipeline records as JSONL stage files inside a
// per-run results directory. Readers skip and count malformed lines
// instead of failing the run; writers buffer line-oriented encoding.
package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// maxLineBytes caps a single JSONL line. Chain-of-thought text runs
// long, so the scanner's default 64KiB limit is not enough.
const maxLineBytes = 16 * 1024 * 1024

// ReadStats counts the outcome of scanning one JSONL file.
type ReadStats struct {
	// Read is the number of records successfully decoded and validated.
	Read int

	// Skipped is the number of malformed lines: invalid JSON or records
	// failing their validation check.
	Skipped int
}

// ReadRecords decodes one record per line from path. Blank lines are
// ignored. A line that fails to decode, or fails the optional validate
// check, is skipped and counted rather than failing the read; only I/O
// errors abort. The validate parameter usually receives a method
// expression such as (*domain.Question).Validate.
func ReadRecords[T any](path string, validate func(*T) error) ([]T, ReadStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, ReadStats{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	var (
		records []T
		stats   ReadStats
	)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var record T
		if err := json.Unmarshal(line, &record); err != nil {
			stats.Skipped++
			continue
		}
		if validate != nil {
			if err := validate(&record); err != nil {
				stats.Skipped++
				continue
			}
		}

		records = append(records, record)
		stats.Read++
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("scan %s: %w", path, err)
	}

	return records, stats, nil
}

// WriteRecords writes records as JSONL, one per line, creating parent
// directories as needed. The file is truncated first.
func WriteRecords[T any](path string, records []T) error {
	w, err := NewWriter(path)
	if err != nil {
		return err
	}
	for i := range records {
		if err := w.Write(&records[i]); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}

// Writer streams records into a JSONL stage file through a buffer.
// Not safe for concurrent use; pipeline stages write from a single
// collector goroutine.
type Writer struct {
	file  *os.File
	buf   *bufio.Writer
	enc   *json.Encoder
	count int
}

// NewWriter creates the stage file at path, truncating any previous
// contents and creating parent directories as needed.
func NewWriter(path string) (*Writer, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	buf := bufio.NewWriter(file)
	return &Writer{file: file, buf: buf, enc: json.NewEncoder(buf)}, nil
}

// Write encodes one record as a JSONL line.
func (w *Writer) Write(record any) error {
	if err := w.enc.Encode(record); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of records written so far.
func (w *Writer) Count() int { return w.count }

// Close flushes buffered records and closes the file.
func (w *Writer) Close() error {
	flushErr := w.buf.Flush()
	closeErr := w.file.Close()
	if flushErr != nil {
		return fmt.Errorf("flush: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close: %w", closeErr)
	}
	return nil
}

// WriteJSON writes an indented JSON document, creating parent
// directories as needed.
func WriteJSON(path string, value any) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}

	content, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	content = append(content, '\n')

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}
