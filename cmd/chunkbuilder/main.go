// chunkbuilder converts a raw square elevation model (.hgt, big-endian
// int16 samples) into the chunked, TOC-indexed store the streamer reads.
package main

import (
	"flag"
	"log"
	"os"

	"chonker.dev/internal/store"
)

func main() {
	var (
		in   = flag.String("in", "", "input DEM file (.hgt, big-endian int16)")
		out  = flag.String("out", "", "output chunk store path")
		grid = flag.Int("grid", 1201, "DEM edge length in samples (1201 = 3-arcsecond tile)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[chunkbuilder] ", log.LstdFlags|log.Lmicroseconds)

	if *in == "" || *out == "" {
		logger.Fatalf("usage: chunkbuilder -in <dem.hgt> -out <terrain.chunk> [-grid 1201]")
	}

	n, err := store.BuildFromDEM(*in, *out, *grid)
	if err != nil {
		logger.Fatalf("build: %v", err)
	}
	logger.Printf("wrote %d chunks to %s", n, *out)
}
