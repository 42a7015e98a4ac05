package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// downloadState mirrors the CDP Browser.downloadProgress lifecycle.
type downloadState string

const (
	downloadInProgress downloadState = "inProgress"
	downloadCompleted  downloadState = "completed"
	downloadCanceled   downloadState = "canceled"
)

type download struct {
	guid     string
	url      string
	filename string
	path     string
	state    downloadState
}

// DownloadTracker assigns stable integer handles to browser download GUIDs
// and remembers where each artifact lands so it can be removed after a
// successful delivery.
type DownloadTracker struct {
	dir func() string // download directory, polled per download

	mu       sync.Mutex
	nextID   int
	byGUID   map[string]*download
	byHandle map[int]*download
}

// NewDownloadTracker creates a tracker. dir supplies the browser's download
// directory and is polled at download start so settings changes take effect
// without a restart.
func NewDownloadTracker(dir func() string) *DownloadTracker {
	return &DownloadTracker{
		dir:      dir,
		byGUID:   make(map[string]*download),
		byHandle: make(map[int]*download),
	}
}

// Begin registers a starting download and returns its handle.
func (t *DownloadTracker) Begin(guid, url, filename string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if d, ok := t.byGUID[guid]; ok {
		// Duplicate willBegin for the same download keeps the handle.
		return t.handleFor(d)
	}

	t.nextID++
	d := &download{
		guid:     guid,
		url:      url,
		filename: filename,
		state:    downloadInProgress,
	}
	if dir := t.dir(); dir != "" && filename != "" {
		d.path = filepath.Join(dir, filename)
	}
	t.byGUID[guid] = d
	t.byHandle[t.nextID] = d
	return t.nextID
}

// Progress applies a state update for a download GUID.
func (t *DownloadTracker) Progress(guid string, state string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.byGUID[guid]
	if !ok {
		return
	}
	d.state = downloadState(state)
}

// Remove deletes the downloaded artifact for a handle, best-effort. A
// missing file counts as success; an unknown handle is an error.
func (t *DownloadTracker) Remove(handle int) error {
	t.mu.Lock()
	d, ok := t.byHandle[handle]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown download handle: %d", handle)
	}
	if d.path == "" {
		return fmt.Errorf("no tracked path for download handle %d", handle)
	}

	if err := os.Remove(d.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", d.path, err)
	}

	t.mu.Lock()
	delete(t.byGUID, d.guid)
	delete(t.byHandle, handle)
	t.mu.Unlock()

	slog.Debug("download artifact removed", "handle", handle, "path", d.path)
	return nil
}

// Count returns the number of tracked downloads.
func (t *DownloadTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byHandle)
}

// handleFor finds the handle of a tracked download. Caller holds t.mu.
func (t *DownloadTracker) handleFor(d *download) int {
	for h, tracked := range t.byHandle {
		if tracked == d {
			return h
		}
	}
	return 0
}
