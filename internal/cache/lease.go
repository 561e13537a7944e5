package cache

import "chonker.dev/internal/terrain"

// Lease is a borrow of one loaded chunk's record. While open it pins the
// slot so the record cannot be evicted or overwritten underneath the
// holder. Leases are cheap; hold them only as long as the read takes.
type Lease struct {
	c     *Chonker
	coord terrain.ChunkCoord
	slot  int
	done  bool
}

// Coord is the chunk coordinate this lease covers.
func (l *Lease) Coord() terrain.ChunkCoord {
	return l.coord
}

// Sample reads one height from the borrowed record.
func (l *Lease) Sample(s terrain.SampleCoord) int16 {
	return l.c.pool.Data(l.slot).Sample(s)
}

// Heights copies the full height grid out of the borrowed record.
func (l *Lease) Heights() [terrain.ChunkArea]int16 {
	return l.c.pool.Data(l.slot).Heights
}

// Digest hashes the borrowed record's height grid.
func (l *Lease) Digest() uint64 {
	return l.c.pool.Data(l.slot).Digest()
}

// Close returns the borrow. Idempotent.
func (l *Lease) Close() {
	if l.done {
		return
	}
	l.done = true
	l.c.mu.Lock()
	l.c.pool.Unpin(l.slot)
	l.c.mu.Unlock()
}
