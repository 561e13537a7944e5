// Package indexdb maintains a SQLite read-model of cache lifecycle
// events. It never sits on the streaming hot path: writes go through a
// buffered channel to a single background writer, and are dropped when
// the indexer falls behind.
package indexdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"chonker.dev/internal/cache"
)

type LoadIndex struct {
	db *sql.DB

	ch   chan cache.Event
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

// OpenSQLite opens (creating if needed) the load index at path and
// starts its writer goroutine. buffer is the channel depth before drops.
func OpenSQLite(path string, buffer int) (*LoadIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("indexdb: empty db path")
	}
	if buffer <= 0 {
		buffer = 4096
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &LoadIndex{
		db: db,
		ch: make(chan cache.Event, buffer),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only event stream; NORMAL durability is
	// enough for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS loads (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			kind TEXT NOT NULL,
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			worker INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			digest TEXT,
			err TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_loads_coord ON loads(cx, cz);`,
		`CREATE INDEX IF NOT EXISTS idx_loads_kind ON loads(kind);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// RecordEvent implements cache.EventSink. Non-blocking: events are
// dropped once the buffer is full.
func (s *LoadIndex) RecordEvent(ev cache.Event) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- ev:
	default:
		// Drop if the indexer falls behind; the JSONL event log remains
		// the source of truth.
	}
}

// CountByKind tallies indexed events per kind.
func (s *LoadIndex) CountByKind() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT kind, COUNT(*) FROM loads GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, rows.Err()
}

// SlowestLoads returns the n longest load_complete durations, slowest
// first, as (coordinate, duration) pairs for offline tuning.
func (s *LoadIndex) SlowestLoads(n int) ([]LoadSample, error) {
	rows, err := s.db.Query(
		`SELECT cx, cz, duration_ms FROM loads WHERE kind = ? ORDER BY duration_ms DESC LIMIT ?`,
		cache.EventLoadComplete, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LoadSample
	for rows.Next() {
		var ls LoadSample
		if err := rows.Scan(&ls.CX, &ls.CZ, &ls.DurationMs); err != nil {
			return nil, err
		}
		out = append(out, ls)
	}
	return out, rows.Err()
}

type LoadSample struct {
	CX, CZ     int32
	DurationMs int64
}

// Close stops accepting events, drains the buffer and closes the DB.
func (s *LoadIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *LoadIndex) loop() {
	insert, errP := s.db.Prepare(
		`INSERT INTO loads(ts,kind,cx,cz,worker,duration_ms,digest,err) VALUES(?,?,?,?,?,?,?,?)`,
	)
	if errP != nil {
		// Schema init succeeded, so a prepare failure means the DB is
		// gone; drain the channel so senders are never stranded.
		for range s.ch {
		}
		return
	}
	defer insert.Close()

	for ev := range s.ch {
		_, _ = insert.Exec(
			ev.TS.Format(time.RFC3339Nano),
			ev.Kind,
			ev.CX,
			ev.CZ,
			ev.Worker,
			ev.DurationMs,
			ev.Digest,
			ev.Err,
		)
	}
}
