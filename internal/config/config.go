package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the streamer runtime configuration.
type Config struct {
	// StorePath is the chunked terrain file to stream from.
	StorePath string `yaml:"store_path"`
	// DataDir holds event logs and the load index.
	DataDir string `yaml:"data_dir"`

	PoolCapacity  int `yaml:"pool_capacity"`
	LoaderWorkers int `yaml:"loader_workers"`

	// DisableDB turns off the SQLite load index (event JSONL stays on).
	DisableDB bool `yaml:"disable_db"`
	// EventBuffer is the per-sink event channel depth.
	EventBuffer int `yaml:"event_buffer"`
}

func Defaults() Config {
	return Config{
		DataDir:       "./data",
		PoolCapacity:  256,
		LoaderWorkers: 1,
		EventBuffer:   4096,
	}
}

// Load reads a YAML config, applying defaults for zero-valued fields.
func Load(path string) (Config, error) {
	c := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.PoolCapacity <= 0 {
		return fmt.Errorf("pool_capacity must be positive, got %d", c.PoolCapacity)
	}
	if c.LoaderWorkers <= 0 {
		return fmt.Errorf("loader_workers must be positive, got %d", c.LoaderWorkers)
	}
	if c.EventBuffer <= 0 {
		return fmt.Errorf("event_buffer must be positive, got %d", c.EventBuffer)
	}
	return nil
}
