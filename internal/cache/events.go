package cache

import "time"

// Event kinds emitted over the cache lifecycle.
const (
	EventRequest      = "request"
	EventPoolFull     = "pool_full"
	EventLoadStart    = "load_start"
	EventLoadComplete = "load_complete"
	EventLoadFailed   = "load_failed"
	EventRelease      = "release"
	EventWorkerExit   = "worker_exit"
)

// Event is one lifecycle record. Digest and DurationMs are only set for
// load_complete; Err only for load_failed.
type Event struct {
	TS         time.Time `json:"ts"`
	Kind       string    `json:"kind"`
	CX         int32     `json:"cx"`
	CZ         int32     `json:"cz"`
	Worker     int       `json:"worker,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Digest     string    `json:"digest,omitempty"`
	Err        string    `json:"err,omitempty"`
}

// EventSink receives lifecycle events. Implementations must not block:
// RecordEvent runs on the loader goroutines' critical path, so sinks that
// do I/O should hand off through a buffered channel and drop on overflow.
type EventSink interface {
	RecordEvent(Event)
}
