// Package store persists cycle outputs as JSON snapshots and an append-only JSONL log.
//
// Snapshots are written with a tmp-file-plus-rename so a reader never observes a half
// written file; the closed log is append-only and never rewritten. One writer per file
// runs at a time (the worker and audit loops own disjoint files), so there is no finer
// grained locking here.
package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound reports a missing snapshot; callers usually fall back to a zero value.
var ErrNotFound = errors.New("store: snapshot not found")

// File layout under the data directory, shared by the worker and audit binaries.
const (
	SignalsFile = "pro.json"
	TopFile     = "top10.json"
	OpenFile    = "audit/top10_open.json"
	ClosedFile  = "audit/top10_closed.jsonl"
	SummaryFile = "audit/top10_summary.json"
)

// Store reads and writes JSON artifacts rooted at a data directory.
type Store struct {
	dir string
}

// New returns a store rooted at dir. Directories are created lazily on write.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Path resolves a store-relative file name.
func (s *Store) Path(name string) string { return filepath.Join(s.dir, name) }

// WriteSnapshot atomically replaces the named snapshot with the JSON encoding of v.
func (s *Store) WriteSnapshot(name string, v any) error {
	path := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: mkdir for %s: %w", name, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", name, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: replace %s: %w", name, err)
	}
	return nil
}

// ReadSnapshot decodes the named snapshot into v. A missing file yields ErrNotFound.
func (s *Store) ReadSnapshot(name string, v any) error {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("store: read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: decode %s: %w", name, err)
	}
	return nil
}

// AppendLog encodes each record as one JSON line at the end of the named log.
func (s *Store) AppendLog(name string, records ...any) error {
	path := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: mkdir for %s: %w", name, err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("store: open %s: %w", name, err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("store: append %s: %w", name, err)
		}
	}
	return nil
}

// ReadLog decodes the whole JSONL log, skipping blank or corrupt lines so one bad
// record cannot poison the aggregate recompute. A missing log is an empty log.
func ReadLog[T any](s *Store, name string) ([]T, error) {
	file, err := os.Open(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: open %s: %w", name, err)
	}
	defer file.Close()

	var out []T
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec T
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("store: scan %s: %w", name, err)
	}
	return out, nil
}

// Recorder appends records to a single log file, serializing concurrent writers.
type Recorder struct {
	mu    sync.Mutex
	store *Store
	name  string
}

// NewRecorder returns a recorder bound to one log file in the store.
func NewRecorder(s *Store, name string) *Recorder {
	return &Recorder{store: s, name: name}
}

// Record appends one record to the log.
func (r *Recorder) Record(v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.AppendLog(r.name, v)
}
