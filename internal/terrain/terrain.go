package terrain

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

const (
	// ChunkSize is the world-space edge length of a chunk.
	ChunkSize = 16

	// ChunkResolution is the number of height samples per chunk edge.
	ChunkResolution = 17

	// ChunkArea is the number of samples in one chunk's height grid.
	ChunkArea = ChunkResolution * ChunkResolution
)

// ChunkCoord identifies a chunk on the infinite 2D grid.
type ChunkCoord struct {
	X int32
	Z int32
}

// Vec2 is a horizontal world-space position (x, z).
type Vec2 struct {
	X float32
	Z float32
}

// SampleCoord addresses one sample inside a chunk's height grid.
type SampleCoord struct {
	X int32
	Y int32
}

// ChunkLocal is a chunk coordinate plus a position relative to that
// chunk's world-space origin.
type ChunkLocal struct {
	Chunk ChunkCoord
	Local Vec2
}

// ChunkData is the unit the cache stores: a coordinate plus its
// fixed-resolution height grid, row-major with x fastest.
type ChunkData struct {
	Coord   ChunkCoord
	Heights [ChunkArea]int16
}

func (c *ChunkData) index(x, y int32) int32 {
	return y*ChunkResolution + x
}

// Sample returns the height at a sample coordinate.
func (c *ChunkData) Sample(s SampleCoord) int16 {
	return c.Heights[c.index(s.X, s.Y)]
}

// SetSample overwrites the height at a sample coordinate.
func (c *ChunkData) SetSample(s SampleCoord, h int16) {
	c.Heights[c.index(s.X, s.Y)] = h
}

// Digest hashes the height grid deterministically (little-endian sample
// order). Used by the load index and by visibility checks in tests.
func (c *ChunkData) Digest() uint64 {
	var buf [ChunkArea * 2]byte
	for i, v := range c.Heights {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return xxhash.Sum64(buf[:])
}

// WorldToChunk maps a world position to the chunk containing it.
func WorldToChunk(pos Vec2) ChunkCoord {
	return ChunkCoord{
		X: int32(math.Floor(float64(pos.X) / ChunkSize)),
		Z: int32(math.Floor(float64(pos.Z) / ChunkSize)),
	}
}

// ChunkToWorldOrigin maps a chunk coordinate to its world-space origin
// corner (the minimum-x, minimum-z corner).
func ChunkToWorldOrigin(c ChunkCoord) Vec2 {
	return Vec2{
		X: float32(c.X * ChunkSize),
		Z: float32(c.Z * ChunkSize),
	}
}

// WorldToChunkLocal splits a world position into its chunk and the
// offset inside that chunk. Local is in [0, ChunkSize) per axis, up to
// float rounding at exact chunk boundaries.
func WorldToChunkLocal(pos Vec2) ChunkLocal {
	c := WorldToChunk(pos)
	o := ChunkToWorldOrigin(c)
	return ChunkLocal{
		Chunk: c,
		Local: Vec2{X: pos.X - o.X, Z: pos.Z - o.Z},
	}
}

// LocalToSample maps a chunk-local position to the nearest-below sample
// coordinate. Results are clamped to the grid so that boundary overshoot
// from float rounding never indexes out of range.
func LocalToSample(local Vec2) SampleCoord {
	const spacing = float32(ChunkSize) / float32(ChunkResolution-1)
	return SampleCoord{
		X: clampSample(int32(local.X / spacing)),
		Y: clampSample(int32(local.Z / spacing)),
	}
}

func clampSample(v int32) int32 {
	if v < 0 {
		return 0
	}
	if v > ChunkResolution-1 {
		return ChunkResolution - 1
	}
	return v
}
