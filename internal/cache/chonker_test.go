package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chonker.dev/internal/terrain"
)

// patternLoader fills chunks with a deterministic per-coordinate pattern
// so readers can verify they never observe a partial write.
type patternLoader struct {
	delay time.Duration
	calls atomic.Int64
}

func patternFor(coord terrain.ChunkCoord, i int) int16 {
	return int16(int32(i)*31 + coord.X*7 + coord.Z*13)
}

func (l *patternLoader) Load(coord terrain.ChunkCoord, dst *terrain.ChunkData) error {
	l.calls.Add(1)
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	dst.Coord = coord
	for i := range dst.Heights {
		dst.Heights[i] = patternFor(coord, i)
	}
	return nil
}

func newTestChonker(t *testing.T, cfg Config, loader Loader) *Chonker {
	t.Helper()
	c, err := New(cfg, loader)
	if err != nil {
		t.Fatalf("new chonker: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func waitStatus(t *testing.T, c *Chonker, coord terrain.ChunkCoord, want terrain.ChunkStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if c.Status(coord) == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("chunk (%d,%d) never reached %v (stuck at %v)", coord.X, coord.Z, want, c.Status(coord))
}

func TestRequestLoadFetch(t *testing.T) {
	loader := &patternLoader{}
	c := newTestChonker(t, Config{Capacity: 4}, loader)

	coord := terrain.ChunkCoord{X: 2, Z: 3}
	c.Request(coord)
	waitStatus(t, c, coord, terrain.StatusLoaded)

	lease, ok := c.Fetch(coord)
	if !ok {
		t.Fatalf("fetch of loaded chunk failed")
	}
	defer lease.Close()
	if lease.Coord() != coord {
		t.Fatalf("lease coord %v", lease.Coord())
	}
	heights := lease.Heights()
	for i := range heights {
		if heights[i] != patternFor(coord, i) {
			t.Fatalf("sample %d = %d, want %d", i, heights[i], patternFor(coord, i))
		}
	}
}

func TestFetchBeforeLoadedReturnsNothing(t *testing.T) {
	loader := &patternLoader{delay: 50 * time.Millisecond}
	c := newTestChonker(t, Config{Capacity: 2}, loader)

	coord := terrain.ChunkCoord{X: 0, Z: 0}
	if _, ok := c.Fetch(coord); ok {
		t.Fatalf("fetch of unknown chunk succeeded")
	}
	c.Request(coord)
	if _, ok := c.Fetch(coord); ok {
		// The load sleeps 50ms, so this fetch races only with a loader
		// that has not yet published Loaded.
		t.Fatalf("fetch of loading chunk succeeded")
	}
	waitStatus(t, c, coord, terrain.StatusLoaded)
	if _, ok := c.Fetch(coord); !ok {
		t.Fatalf("fetch of loaded chunk failed")
	}
}

func TestRequestAlreadyResidentIsNoop(t *testing.T) {
	loader := &patternLoader{}
	c := newTestChonker(t, Config{Capacity: 2}, loader)

	coord := terrain.ChunkCoord{X: 1, Z: 1}
	c.Request(coord)
	waitStatus(t, c, coord, terrain.StatusLoaded)

	for i := 0; i < 5; i++ {
		c.Request(coord)
	}
	// Settle: any (incorrectly) queued duplicates would load again.
	time.Sleep(20 * time.Millisecond)
	if n := loader.calls.Load(); n != 1 {
		t.Fatalf("loader ran %d times, want 1", n)
	}
}

func TestRequestBeyondCapacityDrops(t *testing.T) {
	loader := &patternLoader{}
	c := newTestChonker(t, Config{Capacity: 2}, loader)

	a := terrain.ChunkCoord{X: 0, Z: 0}
	b := terrain.ChunkCoord{X: 1, Z: 0}
	dropped := terrain.ChunkCoord{X: 2, Z: 0}
	c.Request(a)
	c.Request(b)
	c.Request(dropped)

	waitStatus(t, c, a, terrain.StatusLoaded)
	waitStatus(t, c, b, terrain.StatusLoaded)
	if s := c.Status(dropped); s != terrain.StatusUnloaded {
		t.Fatalf("dropped request has status %v, want UNLOADED", s)
	}

	// Releasing makes room for a retry.
	if err := c.Release(a); err != nil {
		t.Fatalf("release: %v", err)
	}
	c.Request(dropped)
	waitStatus(t, c, dropped, terrain.StatusLoaded)
}

func TestFailedLoadIsObservable(t *testing.T) {
	boom := LoaderFunc(func(coord terrain.ChunkCoord, dst *terrain.ChunkData) error {
		return fmt.Errorf("no data for (%d,%d)", coord.X, coord.Z)
	})
	c := newTestChonker(t, Config{Capacity: 1}, boom)

	coord := terrain.ChunkCoord{X: 9, Z: 9}
	c.Request(coord)
	waitStatus(t, c, coord, terrain.StatusFailed)

	if _, ok := c.Fetch(coord); ok {
		t.Fatalf("fetch of failed chunk succeeded")
	}
	// Failed chunks still hold their slot until released.
	if err := c.Release(coord); err != nil {
		t.Fatalf("release failed chunk: %v", err)
	}
	if s := c.Status(coord); s != terrain.StatusUnloaded {
		t.Fatalf("status after release = %v", s)
	}
}

func TestLeaseBlocksEviction(t *testing.T) {
	loader := &patternLoader{}
	c := newTestChonker(t, Config{Capacity: 1}, loader)

	coord := terrain.ChunkCoord{X: 3, Z: -3}
	c.Request(coord)
	waitStatus(t, c, coord, terrain.StatusLoaded)

	lease, ok := c.Fetch(coord)
	if !ok {
		t.Fatalf("fetch failed")
	}
	if err := c.Release(coord); err == nil {
		t.Fatalf("release of leased chunk succeeded")
	}
	lease.Close()
	lease.Close() // idempotent
	if err := c.Release(coord); err != nil {
		t.Fatalf("release after lease close: %v", err)
	}
}

func TestHeightAt(t *testing.T) {
	loader := &patternLoader{}
	c := newTestChonker(t, Config{Capacity: 4}, loader)

	pos := terrain.Vec2{X: 40, Z: 0} // chunk (2,0), local (8,0), sample (8,0)
	coord := terrain.WorldToChunk(pos)
	if _, ok := c.HeightAt(pos); ok {
		t.Fatalf("height available before load")
	}
	c.Request(coord)
	waitStatus(t, c, coord, terrain.StatusLoaded)

	h, ok := c.HeightAt(pos)
	if !ok {
		t.Fatalf("height unavailable after load")
	}
	if want := patternFor(coord, 8); h != want {
		t.Fatalf("height = %d, want %d", h, want)
	}
}

func TestCloseDrainsPendingLoads(t *testing.T) {
	loader := &patternLoader{delay: 5 * time.Millisecond}
	c, err := New(Config{Capacity: 8, Workers: 2}, loader)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	coords := make([]terrain.ChunkCoord, 0, 8)
	for i := int32(0); i < 8; i++ {
		coord := terrain.ChunkCoord{X: i, Z: 0}
		coords = append(coords, coord)
		c.Request(coord)
	}
	c.Close()

	// Close drains the queue before stopping, so every request that got
	// a slot must have completed.
	for _, coord := range coords {
		if s := c.Status(coord); s != terrain.StatusLoaded {
			t.Fatalf("chunk (%d,%d) status after close = %v", coord.X, coord.Z, s)
		}
	}
	c.Close() // idempotent
}

func TestConcurrentVisibility(t *testing.T) {
	loader := &patternLoader{}
	c := newTestChonker(t, Config{Capacity: 64, Workers: 2}, loader)

	// Precompute expected digests per coordinate.
	want := map[terrain.ChunkCoord]uint64{}
	coords := make([]terrain.ChunkCoord, 0, 32)
	for i := int32(0); i < 32; i++ {
		coord := terrain.ChunkCoord{X: i % 8, Z: i / 8}
		if _, ok := want[coord]; ok {
			continue
		}
		var d terrain.ChunkData
		d.Coord = coord
		for j := range d.Heights {
			d.Heights[j] = patternFor(coord, j)
		}
		want[coord] = d.Digest()
		coords = append(coords, coord)
	}

	var wg sync.WaitGroup
	var mismatches atomic.Int64
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for iter := 0; iter < 200; iter++ {
				for _, coord := range coords {
					c.Request(coord)
					lease, ok := c.Fetch(coord)
					if !ok {
						continue
					}
					// Anyone who observes Loaded must see the complete
					// grid, never a partial write.
					if lease.Digest() != want[coord] {
						mismatches.Add(1)
					}
					lease.Close()
				}
			}
		}()
	}
	wg.Wait()

	if n := mismatches.Load(); n != 0 {
		t.Fatalf("%d torn reads observed through Loaded status", n)
	}
}
