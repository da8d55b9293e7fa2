// Package audit is the append-only trail every pipeline stage writes to.
// Entries are immutable once appended and persist one self-contained JSON
// record per line, so a truncated write costs at most the trailing line.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is one immutable record of a pipeline stage.
type Entry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Stage      string         `json:"stage"`
	Input      map[string]any `json:"input"`
	Output     any            `json:"output"`
	Confidence float64        `json:"confidence"`
}

// SessionID returns the session recorded in the input snapshot, if any.
func (e *Entry) SessionID() string {
	if e.Input == nil {
		return ""
	}
	if sid, ok := e.Input["session_id"].(string); ok {
		return sid
	}
	return ""
}

// Sink receives pipeline audit entries. Appends from concurrent queries are
// serialized by the implementation; reads see only completed entries.
type Sink interface {
	Append(entry Entry) error
	Recent(limit int) ([]Entry, error)
	BySession(sessionID string) ([]Entry, error)
}

// ---------------------------------------------------------------------------
// File sink
// ---------------------------------------------------------------------------

// FileSink persists entries to a JSONL file, one record per line.
type FileSink struct {
	mu   sync.Mutex
	path string
}

// NewFileSink creates the parent directory if needed and returns a sink
// appending to path.
func NewFileSink(path string) (*FileSink, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating audit directory: %w", err)
		}
	}
	return &FileSink{path: path}, nil
}

// Append writes one entry as a single line. The mutex keeps concurrent
// pipeline executions from interleaving mid-record.
func (s *FileSink) Append(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding audit entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}
	return nil
}

// Recent returns the last limit entries in original write order.
func (s *FileSink) Recent(limit int) ([]Entry, error) {
	entries, err := s.readAll()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// BySession returns all entries whose input snapshot carries the session
// id, in original write order.
func (s *FileSink) BySession(sessionID string) ([]Entry, error) {
	entries, err := s.readAll()
	if err != nil {
		return nil, err
	}
	var matched []Entry
	for _, e := range entries {
		if e.SessionID() == sessionID {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

// readAll parses the full log. A malformed line ends the scan: everything
// before it is recovered, the damaged tail is dropped.
func (s *FileSink) readAll() ([]Entry, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			slog.Warn("audit: discarding malformed log tail", "path", s.path, "error", err)
			break
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("reading audit log: %w", err)
	}
	return entries, nil
}

// ---------------------------------------------------------------------------
// Memory sink
// ---------------------------------------------------------------------------

// MemorySink keeps entries in memory. Reads return copies, so callers hold
// a snapshot of completed entries.
type MemorySink struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append records one entry.
func (s *MemorySink) Append(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Recent returns the last limit entries in original write order.
func (s *MemorySink) Recent(limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if limit > 0 && len(s.entries) > limit {
		start = len(s.entries) - limit
	}
	out := make([]Entry, len(s.entries)-start)
	copy(out, s.entries[start:])
	return out, nil
}

// BySession returns all entries for one session in original write order.
func (s *MemorySink) BySession(sessionID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []Entry
	for _, e := range s.entries {
		if e.SessionID() == sessionID {
			matched = append(matched, e)
		}
	}
	return matched, nil
}
