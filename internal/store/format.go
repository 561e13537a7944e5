// Package store reads and writes the chunked terrain file format:
//
//	u64le  chunk count
//	count × { i32le chunk x, i32le chunk z, u64le byte offset }
//	per chunk, at its recorded offset: R×R big-endian int16 samples
//
// The header and TOC are little-endian; samples stay big-endian as
// sourced from the original elevation model files.
package store

import (
	"encoding/binary"
	"fmt"
	"io"

	"chonker.dev/internal/terrain"
)

const (
	headerSize   = 8
	tocEntrySize = 4 + 4 + 8
	chunkBytes   = terrain.ChunkArea * 2
)

// ReadTOC parses the header and table of contents. Short reads and
// duplicate coordinates are errors.
func ReadTOC(r io.Reader) (map[terrain.ChunkCoord]uint64, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("store: read header: %w", err)
	}
	count := binary.LittleEndian.Uint64(header[:])

	toc := make(map[terrain.ChunkCoord]uint64, count)
	var entry [tocEntrySize]byte
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(r, entry[:]); err != nil {
			return nil, fmt.Errorf("store: read toc entry %d of %d: %w", i, count, err)
		}
		coord := terrain.ChunkCoord{
			X: int32(binary.LittleEndian.Uint32(entry[0:4])),
			Z: int32(binary.LittleEndian.Uint32(entry[4:8])),
		}
		if _, dup := toc[coord]; dup {
			return nil, fmt.Errorf("store: duplicate toc entry for chunk (%d,%d)", coord.X, coord.Z)
		}
		toc[coord] = binary.LittleEndian.Uint64(entry[8:16])
	}
	return toc, nil
}

// Write emits a complete store: header, TOC, then each chunk's samples
// in the order given, with offsets computed to match.
func Write(w io.Writer, chunks []terrain.ChunkData) error {
	var header [headerSize]byte
	binary.LittleEndian.PutUint64(header[:], uint64(len(chunks)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("store: write header: %w", err)
	}

	base := uint64(headerSize + tocEntrySize*len(chunks))
	var entry [tocEntrySize]byte
	for i, c := range chunks {
		binary.LittleEndian.PutUint32(entry[0:4], uint32(c.Coord.X))
		binary.LittleEndian.PutUint32(entry[4:8], uint32(c.Coord.Z))
		binary.LittleEndian.PutUint64(entry[8:16], base+uint64(i)*chunkBytes)
		if _, err := w.Write(entry[:]); err != nil {
			return fmt.Errorf("store: write toc entry for chunk (%d,%d): %w", c.Coord.X, c.Coord.Z, err)
		}
	}

	var buf [chunkBytes]byte
	for _, c := range chunks {
		for i, h := range c.Heights {
			binary.BigEndian.PutUint16(buf[i*2:], uint16(h))
		}
		if _, err := w.Write(buf[:]); err != nil {
			return fmt.Errorf("store: write samples for chunk (%d,%d): %w", c.Coord.X, c.Coord.Z, err)
		}
	}
	return nil
}
