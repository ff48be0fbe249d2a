// Package logstore implements the Log Store: a single in-memory,
// append-only log of daemon-wide operational events, periodically
// flushed to a dated file (one file per calendar day, never rotated by
// size).
package logstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Kind classifies a log entry the way the daemon's own events are
// classified: informational, or an error worth flagging in any terminal
// that renders it.
type Kind int

const (
	Info Kind = iota
	Error
)

func (k Kind) String() string {
	if k == Error {
		return "Error"
	}
	return "Info"
}

// MarshalJSON renders Kind as its name rather than the underlying int, so
// clients never need to hardcode the enum's numeric values.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts either the "Info"/"Error" name or a raw int, so a
// client decoding a Store flushed before this change still works.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		if name == "Error" {
			*k = Error
		} else {
			*k = Info
		}
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("logstore: decode kind: %w", err)
	}
	*k = Kind(n)
	return nil
}

// Entry is one Log Store record.
type Entry struct {
	Kind      Kind   `json:"kind"`
	Timestamp int64  `json:"timestamp"` // unix seconds
	Text      string `json:"text"`
}

// Store accumulates Entry values in memory and flushes unsaved ones to a
// dated file on disk once per freshness window. log_save_index and
// last_log_save (here saved/lastSave) are advisory: an occasional stale
// read only delays a flush by one tick.
type Store struct {
	dir string

	mu      sync.RWMutex
	entries []Entry
	saved   int // count of entries already written to disk

	lastSaveMu sync.Mutex
	lastSave   time.Time
}

// New returns a Store that flushes to dir. dir is created lazily on first
// flush.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Append records a new entry with the given kind and literal text.
func (s *Store) Append(kind Kind, text string) {
	s.mu.Lock()
	s.entries = append(s.entries, Entry{Kind: kind, Timestamp: time.Now().Unix(), Text: text})
	s.mu.Unlock()
}

// Appendf records a new entry with the given kind and a formatted
// message, a convenience most call sites use over Append.
func (s *Store) Appendf(kind Kind, format string, args ...any) {
	s.Append(kind, fmt.Sprintf(format, args...))
}

func (s *Store) snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// First returns the first n entries in insertion order, for the /status
// endpoint's log preview. n <= 0 or n >= len returns every entry.
func (s *Store) First(n int) []Entry {
	all := s.snapshot()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[:n]
}

// Page implements the /logs endpoint's windowing. Entries are traversed
// newest-first, page*lines of them are skipped, then up to lines are
// taken. If endTime is positive, the view is first clamped to entries
// with timestamp <= endTime. rev reverses the returned slice (oldest of
// the window first, rather than newest of the window first). end reports
// whether the filtered set is exhausted by this page, i.e. whether
// len(filtered) <= (page+1)*lines.
func (s *Store) Page(page, lines int, endTime int64, rev bool) (out []Entry, end bool) {
	all := s.snapshot()

	filtered := all
	if endTime > 0 {
		i := len(all)
		for i > 0 && all[i-1].Timestamp > endTime {
			i--
		}
		filtered = all[:i]
	}

	if page < 0 {
		page = 0
	}
	if lines <= 0 {
		lines = len(filtered)
		if lines == 0 {
			lines = 1
		}
	}

	n := len(filtered)
	skip := page * lines
	end = n <= (page+1)*lines

	startIdx := n - skip
	if startIdx <= 0 {
		return []Entry{}, true
	}
	endIdx := startIdx - lines
	if endIdx < 0 {
		endIdx = 0
	}

	window := make([]Entry, 0, startIdx-endIdx)
	for i := startIdx - 1; i >= endIdx; i-- {
		window = append(window, filtered[i])
	}
	if rev {
		for l, r := 0, len(window)-1; l < r; l, r = l+1, r-1 {
			window[l], window[r] = window[r], window[l]
		}
	}
	return window, end
}

// Tick flushes entries accumulated since the last flush to today's dated
// log file. Unless force is true, it does nothing until at least 60
// seconds have elapsed since the previous flush -- the freshness check is
// a lower bound on flush frequency ("has enough time passed that we
// should save now"), not the inverted "is the last save still younger
// than 60s" reading of the original daemon's source comment.
func (s *Store) Tick(now time.Time, force bool) error {
	s.lastSaveMu.Lock()
	fresh := !force && !s.lastSave.IsZero() && now.Sub(s.lastSave) < 60*time.Second
	s.lastSaveMu.Unlock()
	if fresh {
		return nil
	}

	s.mu.RLock()
	total := len(s.entries)
	pending := make([]Entry, total-s.saved)
	copy(pending, s.entries[s.saved:])
	s.mu.RUnlock()

	if len(pending) == 0 {
		s.lastSaveMu.Lock()
		s.lastSave = now
		s.lastSaveMu.Unlock()
		return nil
	}

	if err := s.flush(pending, now); err != nil {
		return err
	}

	s.mu.Lock()
	s.saved = total
	s.mu.Unlock()
	s.lastSaveMu.Lock()
	s.lastSave = now
	s.lastSaveMu.Unlock()
	return nil
}

func (s *Store) flush(entries []Entry, now time.Time) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("logstore: mkdir: %w", err)
	}
	path := filepath.Join(s.dir, now.Format("2006-01-02")+".log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("logstore: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	for _, e := range entries {
		ts := time.Unix(e.Timestamp, 0)
		line := fmt.Sprintf("[%s] [%s] %s\n", ts.Format("15:04:05"), e.Kind, e.Text)
		if _, err := f.WriteString(line); err != nil {
			return fmt.Errorf("logstore: write %s: %w", path, err)
		}
	}
	return nil
}
