package cache

import (
	"fmt"
	"sync/atomic"

	"chonker.dev/internal/terrain"
)

// ReserveOutcome reports what Reserve did for a coordinate.
type ReserveOutcome int

const (
	// Reserved means a free slot was claimed and marked Loading.
	Reserved ReserveOutcome = iota
	// AlreadyResident means the coordinate already holds a slot; the
	// call was a no-op (re-requesting in-flight or loaded data is never
	// useful, so nothing is re-queued).
	AlreadyResident
	// PoolFull means no free slot was available and the request was
	// dropped. There is no eviction policy: callers see the coordinate
	// stay Unloaded and must release something themselves.
	PoolFull
)

// SlotPool is fixed-capacity storage for chunk data. Slots are either
// free (on the free-list, Unloaded) or resident (mapped from exactly one
// coordinate, tracked in a packed resident list for O(1) swap-remove).
//
// Structural mutation (Reserve/Release/Pin/Unpin) is not internally
// synchronized; the Chonker serializes those calls under its own mutex.
// Status reads and stores are atomic with acquire/release semantics so
// loader goroutines can publish sample data to the control goroutine.
type SlotPool struct {
	data   []terrain.ChunkData
	status []atomic.Uint32
	pins   []int32

	free []int

	index map[terrain.ChunkCoord]int

	// Packed list of resident slot indices plus, per slot, its position
	// in that list. The two stay mutually consistent across insert and
	// swap-remove.
	resident    []int
	residentPos []int
}

// NewSlotPool builds a pool with every slot on the free-list.
func NewSlotPool(capacity int) *SlotPool {
	p := &SlotPool{
		data:        make([]terrain.ChunkData, capacity),
		status:      make([]atomic.Uint32, capacity),
		pins:        make([]int32, capacity),
		free:        make([]int, 0, capacity),
		index:       make(map[terrain.ChunkCoord]int, capacity),
		resident:    make([]int, 0, capacity),
		residentPos: make([]int, capacity),
	}
	for i := 0; i < capacity; i++ {
		p.free = append(p.free, i)
	}
	return p
}

// Reserve claims a slot for coord and marks it Loading. See
// ReserveOutcome for the three possible results; slot is meaningful for
// Reserved and AlreadyResident.
func (p *SlotPool) Reserve(coord terrain.ChunkCoord) (slot int, outcome ReserveOutcome) {
	if s, ok := p.index[coord]; ok {
		return s, AlreadyResident
	}
	if len(p.free) == 0 {
		return -1, PoolFull
	}
	slot = p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]

	p.index[coord] = slot
	p.residentPos[slot] = len(p.resident)
	p.resident = append(p.resident, slot)

	p.data[slot].Coord = coord
	p.status[slot].Store(uint32(terrain.StatusLoading))
	return slot, Reserved
}

// Release evicts coord's slot back onto the free-list. Not-resident is a
// no-op. A slot pinned by an outstanding lease cannot be evicted.
func (p *SlotPool) Release(coord terrain.ChunkCoord) error {
	slot, ok := p.index[coord]
	if !ok {
		return nil
	}
	if p.pins[slot] > 0 {
		return fmt.Errorf("chunk (%d,%d) is pinned by %d lease(s)", coord.X, coord.Z, p.pins[slot])
	}

	delete(p.index, coord)

	// Swap-remove from the packed resident list, then fix the moved
	// slot's recorded position.
	pos := p.residentPos[slot]
	last := len(p.resident) - 1
	moved := p.resident[last]
	p.resident[pos] = moved
	p.resident = p.resident[:last]
	p.residentPos[moved] = pos

	p.free = append(p.free, slot)
	p.status[slot].Store(uint32(terrain.StatusUnloaded))
	return nil
}

// Status returns Unloaded for non-resident coordinates, otherwise an
// acquire-load of the slot's status. Observing Loaded here is what makes
// a subsequent read of the slot's heights safe.
func (p *SlotPool) Status(coord terrain.ChunkCoord) terrain.ChunkStatus {
	slot, ok := p.index[coord]
	if !ok {
		return terrain.StatusUnloaded
	}
	return terrain.ChunkStatus(p.status[slot].Load())
}

// SetStatus release-stores a resident slot's status; no-op otherwise.
func (p *SlotPool) SetStatus(coord terrain.ChunkCoord, s terrain.ChunkStatus) {
	slot, ok := p.index[coord]
	if !ok {
		return
	}
	p.status[slot].Store(uint32(s))
}

// Slot returns the slot index holding coord, if resident.
func (p *SlotPool) Slot(coord terrain.ChunkCoord) (int, bool) {
	slot, ok := p.index[coord]
	return slot, ok
}

// SlotStatus acquire-loads a slot's status directly.
func (p *SlotPool) SlotStatus(slot int) terrain.ChunkStatus {
	return terrain.ChunkStatus(p.status[slot].Load())
}

// SetSlotStatus release-stores a slot's status directly. The loader uses
// this to publish Loaded after filling the slot's heights.
func (p *SlotPool) SetSlotStatus(slot int, s terrain.ChunkStatus) {
	p.status[slot].Store(uint32(s))
}

// Data returns the backing record for a slot. The caller must have
// validated residency, and for reads must have observed Loaded first.
func (p *SlotPool) Data(slot int) *terrain.ChunkData {
	return &p.data[slot]
}

// Pin marks a slot as borrowed; Release refuses pinned slots.
func (p *SlotPool) Pin(slot int) {
	p.pins[slot]++
}

// Unpin drops one borrow from a slot.
func (p *SlotPool) Unpin(slot int) {
	if p.pins[slot] > 0 {
		p.pins[slot]--
	}
}

// Len is the number of resident slots.
func (p *SlotPool) Len() int {
	return len(p.resident)
}

// Cap is the fixed slot capacity.
func (p *SlotPool) Cap() int {
	return len(p.data)
}

// ResidentCoords lists the coordinates currently holding slots, in
// resident-list order (insertion order disturbed by swap-removes).
func (p *SlotPool) ResidentCoords() []terrain.ChunkCoord {
	out := make([]terrain.ChunkCoord, 0, len(p.resident))
	for _, slot := range p.resident {
		out = append(out, p.data[slot].Coord)
	}
	return out
}
