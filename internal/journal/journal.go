// Package journal appends pipeline events (captures, delivery attempts,
// evictions) to a rotating JSONL file for later inspection. Writes are async
// and drop under backpressure; the journal is an audit trail, never an input
// to pipeline decisions.
package journal

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultBufferSize = 256

// Record is one journal line.
type Record struct {
	Time time.Time `json:"ts"`
	Kind string    `json:"kind"`
	Data any       `json:"data,omitempty"`
}

// Writer appends records to <dir>/journal/pipeline.jsonl with size-based
// rotation.
type Writer struct {
	writeCh chan Record
	done    chan struct{}
	wg      sync.WaitGroup
	logger  *lumberjack.Logger
}

// NewWriter starts the async writer. maxSizeMB bounds each rotated file.
func NewWriter(dir string, maxSizeMB int) (*Writer, error) {
	journalDir := filepath.Join(dir, "journal")
	if err := os.MkdirAll(journalDir, 0o755); err != nil {
		return nil, err
	}

	w := &Writer{
		writeCh: make(chan Record, defaultBufferSize),
		done:    make(chan struct{}),
		logger: &lumberjack.Logger{
			Filename:   filepath.Join(journalDir, "pipeline.jsonl"),
			MaxSize:    maxSizeMB,
			MaxBackups: 10,
			MaxAge:     30,
		},
	}

	w.wg.Add(1)
	go w.writeLoop()
	return w, nil
}

// Append queues a record. Non-blocking: a full buffer drops the record with
// a warning.
func (w *Writer) Append(kind string, data any) {
	rec := Record{Time: time.Now().UTC(), Kind: kind, Data: data}
	select {
	case <-w.done:
	case w.writeCh <- rec:
	default:
		slog.Warn("journal buffer full, dropping record", "kind", kind)
	}
}

// Close flushes queued records and closes the file.
func (w *Writer) Close() error {
	close(w.done)
	w.wg.Wait()

	// Drain whatever was queued before shutdown.
	for {
		select {
		case rec := <-w.writeCh:
			w.writeRecord(rec)
		default:
			return w.logger.Close()
		}
	}
}

func (w *Writer) writeLoop() {
	defer w.wg.Done()
	for {
		select {
		case rec := <-w.writeCh:
			w.writeRecord(rec)
		case <-w.done:
			return
		}
	}
}

func (w *Writer) writeRecord(rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Error("journal marshal failed", "kind", rec.Kind, "error", err)
		return
	}
	if _, err := w.logger.Write(append(data, '\n')); err != nil {
		slog.Error("journal write failed", "kind", rec.Kind, "error", err)
	}
}
