package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dshills/reporecall/pkg/types"
)

// maxLineBytes bounds a single record line
const maxLineBytes = 16 << 20

// validator is implemented by records that can reject their own contents
type validator interface {
	Validate() error
}

// ReadStats reports how a record log was read
type ReadStats struct {
	Records int // Records decoded
	Skipped int // Malformed or invalid lines skipped
}

// WriteLog replaces the log at path with one JSON object per record
func WriteLog[T any](path string, records []T) error {
	return WriteFileAtomic(path, 0o644, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for i := range records {
			if err := enc.Encode(&records[i]); err != nil {
				return fmt.Errorf("failed to encode record %d: %w", i, err)
			}
		}
		return nil
	})
}

// AppendLog appends records to the log at path, creating it if needed
func AppendLog[T any](path string, records []T) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer func() { _ = f.Close() }()

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("failed to encode record %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush log: %w", err)
	}
	return f.Sync()
}

// ScanLog streams the records of the log at path to fn in order.
// Malformed lines and records whose Validate fails are skipped. A missing log returns ErrNotBuilt.
func ScanLog[T any](path string, fn func(rec T) error) (ReadStats, error) {
	var stats ReadStats

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return stats, fmt.Errorf("%w: %s", types.ErrNotBuilt, path)
		}
		return stats, fmt.Errorf("failed to open log: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec T
		if err := json.Unmarshal(line, &rec); err != nil {
			stats.Skipped++
			continue
		}
		if v, ok := any(&rec).(validator); ok && v.Validate() != nil {
			stats.Skipped++
			continue
		}
		stats.Records++
		if err := fn(rec); err != nil {
			return stats, err
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read log: %w", err)
	}
	return stats, nil
}

// ReadLog reads every well-formed record of the log at path
func ReadLog[T any](path string) ([]T, ReadStats, error) {
	var out []T
	stats, err := ScanLog(path, func(rec T) error {
		out = append(out, rec)
		return nil
	})
	return out, stats, err
}
