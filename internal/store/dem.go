package store

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"chonker.dev/internal/terrain"
)

// TileDEM tiles a square elevation grid (width×width big-endian int16
// samples, the .hgt layout) into ChunkResolution² chunks. Chunk (cx,cz)
// takes global samples starting at (cx·R, cz·R); ragged edges past the
// grid are padded by repeating the last valid sample.
func TileDEM(r io.Reader, width int) ([]terrain.ChunkData, error) {
	if width <= 0 {
		return nil, fmt.Errorf("store: dem width must be positive, got %d", width)
	}

	raw := make([]byte, width*width*2)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("store: read %dx%d dem: %w", width, width, err)
	}
	sampleAt := func(gx, gy int) int16 {
		return int16(binary.BigEndian.Uint16(raw[(gy*width+gx)*2:]))
	}

	const res = terrain.ChunkResolution
	chunksWide := (width + res - 1) / res

	chunks := make([]terrain.ChunkData, 0, chunksWide*chunksWide)
	var last int16
	for cz := 0; cz < chunksWide; cz++ {
		for cx := 0; cx < chunksWide; cx++ {
			var c terrain.ChunkData
			c.Coord = terrain.ChunkCoord{X: int32(cx), Z: int32(cz)}
			for ly := 0; ly < res; ly++ {
				for lx := 0; lx < res; lx++ {
					gx := cx*res + lx
					gy := cz*res + ly
					if gx >= width || gy >= width {
						c.Heights[ly*res+lx] = last
						continue
					}
					last = sampleAt(gx, gy)
					c.Heights[ly*res+lx] = last
				}
			}
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}

// BuildFromDEM converts a raw DEM file into a chunk store on disk.
// Returns the number of chunks written.
func BuildFromDEM(inPath, outPath string, width int) (int, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	chunks, err := TileDEM(bufio.NewReader(in), width)
	if err != nil {
		return 0, err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriter(out)
	if err := Write(w, chunks); err != nil {
		_ = out.Close()
		return 0, err
	}
	if err := w.Flush(); err != nil {
		_ = out.Close()
		return 0, err
	}
	if err := out.Close(); err != nil {
		return 0, err
	}
	return len(chunks), nil
}
