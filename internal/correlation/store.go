// Package correlation persists the single captured demo correlation (match
// id → demo URL) across agent restarts. The store holds at most one entry; a
// new capture overwrites whatever is there.
package correlation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FreshnessWindow bounds how long a captured demo URL is trusted. Faceit
// demo URLs are signed and short-lived, so anything older is treated as
// absent and evicted.
const FreshnessWindow = 4 * time.Minute

const fileName = "capture.json"

// Entry is the captured correlation between a match and its demo URL.
// DownloadHandle is the agent-assigned handle of the downloaded artifact,
// zero when no artifact is tracked.
type Entry struct {
	MatchID        string    `json:"capturedMatchId"`
	DemoURL        string    `json:"capturedDemoUrl"`
	DownloadHandle int       `json:"capturedDownloadId"`
	CapturedAt     time.Time `json:"capturedTimestamp"`
}

// Store is the durable single-slot correlation store. Read/write failures
// are logged and reported as absence; they never propagate.
type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewStore creates a Store backed by a file under dir, creating dir as needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("correlation store: mkdir %s: %w", dir, err)
	}
	return &Store{
		path: filepath.Join(dir, fileName),
		now:  time.Now,
	}, nil
}

// Put overwrites the slot unconditionally, stamping the current time.
func (s *Store) Put(matchID, demoURL string, downloadHandle int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{
		MatchID:        matchID,
		DemoURL:        demoURL,
		DownloadHandle: downloadHandle,
		CapturedAt:     s.now(),
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("correlation store: marshal: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("correlation store: write: %w", err)
	}
	slog.Debug("correlation stored", "match_id", matchID, "download_handle", downloadHandle)
	return nil
}

// Get returns the entry only when its stored match id equals matchID and its
// age is inside the freshness window. A mismatched or stale entry is evicted
// as a side effect.
func (s *Store) Get(matchID string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.readLocked()
	if !ok {
		return Entry{}, false
	}
	if entry.MatchID != matchID {
		slog.Debug("correlation match id mismatch, evicting", "stored", entry.MatchID, "requested", matchID)
		s.evictLocked()
		return Entry{}, false
	}
	if s.now().Sub(entry.CapturedAt) >= FreshnessWindow {
		slog.Debug("correlation stale, evicting", "match_id", entry.MatchID, "captured_at", entry.CapturedAt)
		s.evictLocked()
		return Entry{}, false
	}
	return entry, true
}

// Peek returns the stored entry without match id validation, still enforcing
// freshness. Used by the status surface.
func (s *Store) Peek() (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.readLocked()
	if !ok {
		return Entry{}, false
	}
	if s.now().Sub(entry.CapturedAt) >= FreshnessWindow {
		s.evictLocked()
		return Entry{}, false
	}
	return entry, true
}

// Evict clears the slot. Idempotent.
func (s *Store) Evict() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
}

func (s *Store) readLocked() (Entry, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("correlation store read failed", "path", s.path, "error", err)
		}
		return Entry{}, false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		slog.Warn("correlation store corrupt, evicting", "path", s.path, "error", err)
		s.evictLocked()
		return Entry{}, false
	}
	if entry.MatchID == "" || entry.DemoURL == "" {
		return Entry{}, false
	}
	return entry, true
}

func (s *Store) evictLocked() {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("correlation store evict failed", "path", s.path, "error", err)
	}
}
