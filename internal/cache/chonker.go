package cache

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"chonker.dev/internal/terrain"
)

// Loader fills a reserved slot's record with the data for one chunk.
// Implementations are called from loader goroutines and may block on I/O.
type Loader interface {
	Load(coord terrain.ChunkCoord, dst *terrain.ChunkData) error
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(coord terrain.ChunkCoord, dst *terrain.ChunkData) error

func (f LoaderFunc) Load(coord terrain.ChunkCoord, dst *terrain.ChunkData) error {
	return f(coord, dst)
}

// Config tunes a Chonker.
type Config struct {
	// Capacity is the fixed number of chunk slots.
	Capacity int
	// Workers is the number of loader goroutines (default 1).
	Workers int
	// Logger receives console diagnostics (default: stdout, "[chonker]").
	Logger *log.Logger
	// Now is the clock used to stamp events (default time.Now).
	Now func() time.Time
	// Sinks receive lifecycle events; they must not block.
	Sinks []EventSink
}

// Chonker is the streaming cache orchestrator: a slot pool, a job queue
// and background loader goroutines. The control goroutine calls Request,
// then polls Status and calls Fetch once Loaded; it never blocks on
// in-flight I/O.
//
// Request/Status/Fetch/Release are safe to call from multiple
// goroutines; the internal mutex serializes pool mutation.
type Chonker struct {
	mu     sync.Mutex
	pool   *SlotPool
	queue  *JobQueue
	loader Loader

	logger *log.Logger
	now    func() time.Time
	sinks  []EventSink

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New builds the cache and spawns its loader goroutines.
func New(cfg Config, loader Loader) (*Chonker, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("chonker: capacity must be positive, got %d", cfg.Capacity)
	}
	if loader == nil {
		return nil, fmt.Errorf("chonker: nil loader")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[chonker] ", log.LstdFlags|log.Lmicroseconds)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	c := &Chonker{
		pool:   NewSlotPool(cfg.Capacity),
		queue:  NewJobQueue(),
		loader: loader,
		logger: logger,
		now:    now,
		sinks:  cfg.Sinks,
	}
	c.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go c.worker(i)
	}
	return c, nil
}

// Request reserves a slot for coord and queues its load. Already-resident
// coordinates are a no-op. When the pool is full the request is dropped
// and coord stays Unloaded; the caller must release something and retry.
func (c *Chonker) Request(coord terrain.ChunkCoord) {
	c.mu.Lock()
	_, outcome := c.pool.Reserve(coord)
	c.mu.Unlock()

	switch outcome {
	case Reserved:
		c.emit(Event{Kind: EventRequest, CX: coord.X, CZ: coord.Z})
		c.queue.Push(coord)
	case PoolFull:
		c.logger.Printf("pool full, dropping request for chunk (%d,%d)", coord.X, coord.Z)
		c.emit(Event{Kind: EventPoolFull, CX: coord.X, CZ: coord.Z})
	case AlreadyResident:
		// Nothing to do; the chunk is loading, loaded or failed.
	}
}

// Status reports coord's lifecycle state without blocking.
func (c *Chonker) Status(coord terrain.ChunkCoord) terrain.ChunkStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pool.Status(coord)
}

// Fetch borrows coord's record if it is Loaded. The returned lease pins
// the slot: Release refuses to evict it until the lease is closed.
func (c *Chonker) Fetch(coord terrain.ChunkCoord) (*Lease, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot, ok := c.pool.Slot(coord)
	if !ok {
		return nil, false
	}
	// Acquire-load: observing Loaded here orders this goroutine after
	// the loader's writes to the slot's heights.
	if c.pool.SlotStatus(slot) != terrain.StatusLoaded {
		return nil, false
	}
	c.pool.Pin(slot)
	return &Lease{c: c, coord: coord, slot: slot}, true
}

// Release evicts coord's slot. Not-resident coordinates are a no-op; a
// leased slot is refused. Releasing a chunk whose load is still queued
// will trip the loader's desync check, so callers should only release
// chunks they have observed Loaded or Failed.
func (c *Chonker) Release(coord terrain.ChunkCoord) error {
	c.mu.Lock()
	err := c.pool.Release(coord)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.emit(Event{Kind: EventRelease, CX: coord.X, CZ: coord.Z})
	return nil
}

// HeightAt samples the loaded terrain under a world position. ok is
// false while the containing chunk is not Loaded.
func (c *Chonker) HeightAt(pos terrain.Vec2) (int16, bool) {
	cl := terrain.WorldToChunkLocal(pos)
	lease, ok := c.Fetch(cl.Chunk)
	if !ok {
		return 0, false
	}
	defer lease.Close()
	return lease.Sample(terrain.LocalToSample(cl.Local)), true
}

// Resident reports how many slots are occupied.
func (c *Chonker) Resident() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pool.Len()
}

// ResidentCoords snapshots the coordinates currently holding slots.
func (c *Chonker) ResidentCoords() []terrain.ChunkCoord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pool.ResidentCoords()
}

// Pending reports how many loads are queued.
func (c *Chonker) Pending() int {
	return c.queue.Len()
}

// Close stops the queue, drains remaining jobs and joins every loader
// goroutine. Chunks mid-load when Close is called are still completed;
// the pool itself needs no teardown.
func (c *Chonker) Close() {
	c.closeOnce.Do(func() {
		c.queue.Stop()
		c.wg.Wait()
	})
}

func (c *Chonker) worker(id int) {
	defer c.wg.Done()

	var coord terrain.ChunkCoord
	for c.queue.Pop(&coord) {
		c.mu.Lock()
		slot, ok := c.pool.Slot(coord)
		c.mu.Unlock()
		if !ok {
			// A queued job with no resident slot means the pool and the
			// queue disagree about who owns what. Continuing would write
			// into someone else's slot, so abort loudly.
			panic(fmt.Sprintf("chonker: dequeued chunk (%d,%d) has no slot", coord.X, coord.Z))
		}

		c.emit(Event{Kind: EventLoadStart, CX: coord.X, CZ: coord.Z, Worker: id})
		start := c.now()

		dst := c.pool.Data(slot)
		if err := c.loader.Load(coord, dst); err != nil {
			c.pool.SetSlotStatus(slot, terrain.StatusFailed)
			c.logger.Printf("load chunk (%d,%d): %v", coord.X, coord.Z, err)
			c.emit(Event{Kind: EventLoadFailed, CX: coord.X, CZ: coord.Z, Worker: id, Err: err.Error()})
			continue
		}

		// Release-store: publishes the heights written above to any
		// goroutine that acquire-loads Loaded.
		c.pool.SetSlotStatus(slot, terrain.StatusLoaded)
		c.emit(Event{
			Kind:       EventLoadComplete,
			CX:         coord.X,
			CZ:         coord.Z,
			Worker:     id,
			DurationMs: c.now().Sub(start).Milliseconds(),
			Digest:     strconv.FormatUint(dst.Digest(), 16),
		})
	}

	c.logger.Printf("worker %d exiting", id)
	c.emit(Event{Kind: EventWorkerExit, Worker: id})
}

func (c *Chonker) emit(ev Event) {
	if len(c.sinks) == 0 {
		return
	}
	ev.TS = c.now().UTC()
	for _, s := range c.sinks {
		s.RecordEvent(ev)
	}
}
