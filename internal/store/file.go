package store

import (
	"encoding/binary"
	"fmt"
	"os"

	"chonker.dev/internal/terrain"
)

// File is a read-only handle on a chunk store. The TOC is scanned once
// at open; loads are single positioned reads of one sample grid. Load is
// safe for concurrent use (ReadAt carries its own offset), so one File
// can back several loader goroutines.
type File struct {
	f   *os.File
	toc map[terrain.ChunkCoord]uint64
}

// Open reads the store's table of contents and keeps the file open for
// chunk loads.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	toc, err := ReadTOC(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &File{f: f, toc: toc}, nil
}

// Len is the number of chunks the store holds.
func (s *File) Len() int {
	return len(s.toc)
}

// Contains reports whether the store has data for coord.
func (s *File) Contains(coord terrain.ChunkCoord) bool {
	_, ok := s.toc[coord]
	return ok
}

// Load reads coord's sample grid into dst and stamps its coordinate.
// Implements cache.Loader.
func (s *File) Load(coord terrain.ChunkCoord, dst *terrain.ChunkData) error {
	offset, ok := s.toc[coord]
	if !ok {
		return fmt.Errorf("store: chunk (%d,%d) not in toc", coord.X, coord.Z)
	}

	var buf [chunkBytes]byte
	if _, err := s.f.ReadAt(buf[:], int64(offset)); err != nil {
		return fmt.Errorf("store: read chunk (%d,%d) at offset %d: %w", coord.X, coord.Z, offset, err)
	}

	dst.Coord = coord
	for i := range dst.Heights {
		dst.Heights[i] = int16(binary.BigEndian.Uint16(buf[i*2:]))
	}
	return nil
}

func (s *File) Close() error {
	return s.f.Close()
}
