// Package eventlog persists cache lifecycle events as hourly-rotated,
// zstd-compressed JSONL files.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"chonker.dev/internal/cache"
)

// Logger implements cache.EventSink. Events are handed to a background
// pump through a buffered channel, so RecordEvent never blocks a loader
// goroutine; when the pump falls behind, events are dropped.
type Logger struct {
	w  *jsonlZstdWriter
	ch chan cache.Event
	wg sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New creates a logger writing under dataDir/events. buffer is the
// channel depth before drops start.
func New(dataDir string, buffer int) *Logger {
	if buffer <= 0 {
		buffer = 4096
	}
	l := &Logger{
		w:  newJSONLZstdWriter(filepath.Join(dataDir, "events"), "events"),
		ch: make(chan cache.Event, buffer),
	}
	l.wg.Add(1)
	go l.pump()
	return l
}

func (l *Logger) RecordEvent(ev cache.Event) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	select {
	case l.ch <- ev:
	default:
		// Drop rather than stall the loader; the SQLite index and
		// console log still carry the signal.
	}
	l.mu.Unlock()
}

// Close drains buffered events and closes the underlying writer.
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	close(l.ch)
	l.wg.Wait()
	return l.w.close()
}

func (l *Logger) pump() {
	defer l.wg.Done()
	for ev := range l.ch {
		_ = l.w.write(ev)
	}
}

// jsonlZstdWriter appends JSON lines to hour-rotated .jsonl.zst files.
type jsonlZstdWriter struct {
	baseDir string
	prefix  string

	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func newJSONLZstdWriter(baseDir, prefix string) *jsonlZstdWriter {
	return &jsonlZstdWriter{baseDir: baseDir, prefix: prefix}
}

func (w *jsonlZstdWriter) write(v any) error {
	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotate(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *jsonlZstdWriter) rotate(hour string) error {
	if err := w.close(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *jsonlZstdWriter) close() error {
	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err
}
