package store

import (
	"bytes"
	"encoding/binary"
	"testing"

	"chonker.dev/internal/terrain"
)

// demGrid builds a width×width big-endian DEM whose sample at (gx,gy)
// is gy*width+gx, so tiled chunks are easy to check.
func demGrid(width int) []byte {
	out := make([]byte, width*width*2)
	for gy := 0; gy < width; gy++ {
		for gx := 0; gx < width; gx++ {
			binary.BigEndian.PutUint16(out[(gy*width+gx)*2:], uint16(gy*width+gx))
		}
	}
	return out
}

func TestTileDEMExactFit(t *testing.T) {
	const res = terrain.ChunkResolution
	width := res * 2
	chunks, err := TileDEM(bytes.NewReader(demGrid(width)), width)
	if err != nil {
		t.Fatalf("tile: %v", err)
	}
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 4", len(chunks))
	}

	// Chunk (1,1) local (2,3) is global (res+2, res+3).
	var c11 *terrain.ChunkData
	for i := range chunks {
		if chunks[i].Coord == (terrain.ChunkCoord{X: 1, Z: 1}) {
			c11 = &chunks[i]
		}
	}
	if c11 == nil {
		t.Fatalf("chunk (1,1) missing")
	}
	want := int16((res+3)*width + res + 2)
	if got := c11.Sample(terrain.SampleCoord{X: 2, Y: 3}); got != want {
		t.Fatalf("chunk (1,1) sample (2,3) = %d, want %d", got, want)
	}
}

func TestTileDEMPadsRaggedEdge(t *testing.T) {
	const res = terrain.ChunkResolution
	width := res + 3 // one full chunk plus a 3-sample sliver
	chunks, err := TileDEM(bytes.NewReader(demGrid(width)), width)
	if err != nil {
		t.Fatalf("tile: %v", err)
	}
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 4 (2x2 with padding)", len(chunks))
	}

	for i := range chunks {
		c := &chunks[i]
		if c.Coord != (terrain.ChunkCoord{X: 1, Z: 0}) {
			continue
		}
		// Columns 0..2 are real data; the rest repeats the last read
		// sample.
		gotReal := c.Sample(terrain.SampleCoord{X: 2, Y: 0})
		if want := int16(res + 2); gotReal != want {
			t.Fatalf("real sample = %d, want %d", gotReal, want)
		}
		lastReal := c.Sample(terrain.SampleCoord{X: 2, Y: 0})
		if pad := c.Sample(terrain.SampleCoord{X: 3, Y: 0}); pad != lastReal {
			t.Fatalf("pad sample = %d, want repeat of %d", pad, lastReal)
		}
		return
	}
	t.Fatalf("chunk (1,0) missing")
}

func TestTileDEMShortInput(t *testing.T) {
	if _, err := TileDEM(bytes.NewReader([]byte{1, 2, 3}), 10); err == nil {
		t.Fatalf("short dem accepted")
	}
	if _, err := TileDEM(bytes.NewReader(nil), 0); err == nil {
		t.Fatalf("zero width accepted")
	}
}
