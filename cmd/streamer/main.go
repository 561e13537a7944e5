// streamer drives the chunk cache along a camera path: it requests the
// chunks around a moving position, releases the ones left behind, and
// samples the terrain height under the camera as loads complete.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"chonker.dev/internal/cache"
	"chonker.dev/internal/config"
	"chonker.dev/internal/persistence/eventlog"
	"chonker.dev/internal/persistence/indexdb"
	"chonker.dev/internal/store"
	"chonker.dev/internal/terrain"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to streamer.yaml (optional)")
		storePath  = flag.String("store", "", "chunk store path (overrides config)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
		capacity   = flag.Int("capacity", 0, "pool capacity (overrides config)")
		workers    = flag.Int("workers", 0, "loader workers (overrides config)")
		disableDB  = flag.Bool("disable_db", false, "disable the SQLite load index")

		from   = flag.String("from", "0,0", "camera start \"x,z\" in world units")
		to     = flag.String("to", "256,0", "camera end \"x,z\" in world units")
		steps  = flag.Int("steps", 64, "camera steps between -from and -to")
		radius = flag.Int("radius", 2, "request radius around the camera, in chunks")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[streamer] ", log.LstdFlags|log.Lmicroseconds)

	cfg := config.Defaults()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Fatalf("load config: %v", err)
		}
	}
	if *storePath != "" {
		cfg.StorePath = *storePath
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *capacity > 0 {
		cfg.PoolCapacity = *capacity
	}
	if *workers > 0 {
		cfg.LoaderWorkers = *workers
	}
	if *disableDB {
		cfg.DisableDB = true
	}
	if cfg.StorePath == "" {
		logger.Fatalf("no chunk store: pass -store or set store_path in the config")
	}
	if *steps <= 0 {
		*steps = 1
	}

	start, err := parseVec2(*from)
	if err != nil {
		logger.Fatalf("parse -from: %v", err)
	}
	end, err := parseVec2(*to)
	if err != nil {
		logger.Fatalf("parse -to: %v", err)
	}

	sf, err := store.Open(cfg.StorePath)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer sf.Close()
	logger.Printf("store %s: %d chunks", cfg.StorePath, sf.Len())

	events := eventlog.New(cfg.DataDir, cfg.EventBuffer)
	defer events.Close()
	sinks := []cache.EventSink{events}

	var idx *indexdb.LoadIndex
	if !cfg.DisableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(cfg.DataDir, "index", "loads.db"), cfg.EventBuffer)
		if err != nil {
			logger.Fatalf("open load index: %v", err)
		}
		defer idx.Close()
		sinks = append(sinks, idx)
	}

	chonk, err := cache.New(cache.Config{
		Capacity: cfg.PoolCapacity,
		Workers:  cfg.LoaderWorkers,
		Logger:   logger,
		Sinks:    sinks,
	}, sf)
	if err != nil {
		logger.Fatalf("cache: %v", err)
	}
	defer chonk.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	for i := 0; i <= *steps; i++ {
		select {
		case sig := <-stop:
			logger.Printf("signal %v, shutting down", sig)
			return
		default:
		}

		t := float32(i) / float32(*steps)
		pos := terrain.Vec2{
			X: start.X + (end.X-start.X)*t,
			Z: start.Z + (end.Z-start.Z)*t,
		}
		center := terrain.WorldToChunk(pos)

		// Request the neighborhood, drop what fell out of it.
		wanted := map[terrain.ChunkCoord]bool{}
		for dz := -*radius; dz <= *radius; dz++ {
			for dx := -*radius; dx <= *radius; dx++ {
				c := terrain.ChunkCoord{X: center.X + int32(dx), Z: center.Z + int32(dz)}
				wanted[c] = true
				if sf.Contains(c) {
					chonk.Request(c)
				}
			}
		}
		releaseOutside(chonk, wanted)

		// Poll until the chunk under the camera settles.
		for chonk.Status(center) == terrain.StatusLoading {
			time.Sleep(time.Millisecond)
		}
		if h, ok := chonk.HeightAt(pos); ok {
			logger.Printf("step %d: pos (%.1f,%.1f) chunk (%d,%d) height %d resident %d",
				i, pos.X, pos.Z, center.X, center.Z, h, chonk.Resident())
		} else {
			logger.Printf("step %d: pos (%.1f,%.1f) chunk (%d,%d) %s resident %d",
				i, pos.X, pos.Z, center.X, center.Z, chonk.Status(center), chonk.Resident())
		}
	}

	if idx != nil {
		// Give the index a beat to absorb the tail of the event stream.
		time.Sleep(50 * time.Millisecond)
		if counts, err := idx.CountByKind(); err == nil {
			logger.Printf("indexed events: %v", counts)
		}
	}
}

func releaseOutside(chonk *cache.Chonker, wanted map[terrain.ChunkCoord]bool) {
	for _, c := range chonk.ResidentCoords() {
		if wanted[c] {
			continue
		}
		// Skip chunks still loading; their queued jobs must complete
		// before the slot can be torn down.
		if s := chonk.Status(c); s != terrain.StatusLoaded && s != terrain.StatusFailed {
			continue
		}
		_ = chonk.Release(c)
	}
}

func parseVec2(s string) (terrain.Vec2, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return terrain.Vec2{}, fmt.Errorf("want \"x,z\", got %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 32)
	if err != nil {
		return terrain.Vec2{}, err
	}
	z, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 32)
	if err != nil {
		return terrain.Vec2{}, err
	}
	return terrain.Vec2{X: float32(x), Z: float32(z)}, nil
}
