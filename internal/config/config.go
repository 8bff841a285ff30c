// Package config handles scenetool configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Faultbox/scenebake/pkg/chunk"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("config: invalid setting")

// Config holds all pipeline settings.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Runtime  RuntimeConfig  `yaml:"runtime"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PipelineConfig holds bake settings.
type PipelineConfig struct {
	Codec            string `yaml:"codec"`             // lz4, zstd or zlib
	ChunkSize        int    `yaml:"chunk_size"`        // bytes per compressed record
	CompressionLevel int    `yaml:"compression_level"` // codec specific, 0 = default
	Validate         bool   `yaml:"validate"`          // check scenes before baking
}

// RuntimeConfig holds load settings.
type RuntimeConfig struct {
	ArenaSize int  `yaml:"arena_size"` // bytes; 0 decodes to the heap
	ArenaAuto bool `yaml:"arena_auto"` // size the arena from the file itself
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Codec:            chunk.NameLZ4,
			ChunkSize:        chunk.MaxChunkSize,
			CompressionLevel: 0,
			Validate:         true,
		},
		Runtime: RuntimeConfig{
			ArenaSize: 0,
			ArenaAuto: false,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

var logLevels = []string{"debug", "info", "warn", "error"}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	if !slices.Contains(chunk.Names, c.Pipeline.Codec) {
		return fmt.Errorf("%w: pipeline.codec %q (want one of %v)", ErrInvalid, c.Pipeline.Codec, chunk.Names)
	}
	if c.Pipeline.ChunkSize <= 0 || c.Pipeline.ChunkSize > chunk.MaxChunkSize {
		return fmt.Errorf("%w: pipeline.chunk_size %d (want 1..%d)", ErrInvalid, c.Pipeline.ChunkSize, chunk.MaxChunkSize)
	}
	if c.Runtime.ArenaSize < 0 {
		return fmt.Errorf("%w: runtime.arena_size %d", ErrInvalid, c.Runtime.ArenaSize)
	}
	if !slices.Contains(logLevels, c.Logging.Level) {
		return fmt.Errorf("%w: logging.level %q (want one of %v)", ErrInvalid, c.Logging.Level, logLevels)
	}
	return nil
}

// ChunkOptions builds the compression options for the configured codec.
func (c *Config) ChunkOptions() (chunk.Options, error) {
	codec, err := chunk.Lookup(c.Pipeline.Codec, c.Pipeline.CompressionLevel)
	if err != nil {
		return chunk.Options{}, err
	}
	return chunk.Options{Codec: codec, ChunkSize: c.Pipeline.ChunkSize}, nil
}
