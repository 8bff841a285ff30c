package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/scenebake/pkg/chunk"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Pipeline defaults
	if cfg.Pipeline.Codec != "lz4" {
		t.Errorf("expected codec lz4, got %s", cfg.Pipeline.Codec)
	}
	if cfg.Pipeline.ChunkSize != 1<<30 {
		t.Errorf("expected chunk size 1 GiB, got %d", cfg.Pipeline.ChunkSize)
	}
	if cfg.Pipeline.CompressionLevel != 0 {
		t.Errorf("expected compression level 0, got %d", cfg.Pipeline.CompressionLevel)
	}
	if !cfg.Pipeline.Validate {
		t.Error("expected validate to be true by default")
	}

	// Runtime defaults
	if cfg.Runtime.ArenaSize != 0 {
		t.Errorf("expected arena size 0, got %d", cfg.Runtime.ArenaSize)
	}
	if cfg.Runtime.ArenaAuto {
		t.Error("expected arena_auto to be false by default")
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
pipeline:
  codec: zstd
  chunk_size: 65536
  compression_level: 3
  validate: false

runtime:
  arena_size: 1048576
  arena_auto: true

logging:
  level: "debug"
  log_file: "bake.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Pipeline.Codec != "zstd" {
		t.Errorf("expected codec zstd, got %s", cfg.Pipeline.Codec)
	}
	if cfg.Pipeline.ChunkSize != 65536 {
		t.Errorf("expected chunk size 65536, got %d", cfg.Pipeline.ChunkSize)
	}
	if cfg.Pipeline.CompressionLevel != 3 {
		t.Errorf("expected compression level 3, got %d", cfg.Pipeline.CompressionLevel)
	}
	if cfg.Pipeline.Validate {
		t.Error("expected validate to be false")
	}
	if cfg.Runtime.ArenaSize != 1<<20 {
		t.Errorf("expected arena size 1 MiB, got %d", cfg.Runtime.ArenaSize)
	}
	if !cfg.Runtime.ArenaAuto {
		t.Error("expected arena_auto to be true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "bake.log" {
		t.Errorf("expected log file 'bake.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFilePartial(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("pipeline:\n  codec: zlib\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Pipeline.Codec != "zlib" {
		t.Errorf("expected codec zlib, got %s", cfg.Pipeline.Codec)
	}
	// Untouched settings keep their defaults.
	if cfg.Pipeline.ChunkSize != chunk.MaxChunkSize {
		t.Errorf("expected default chunk size, got %d", cfg.Pipeline.ChunkSize)
	}
	if !cfg.Pipeline.Validate {
		t.Error("expected validate to stay true")
	}
}

func TestLoadFromFileEmpty(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, nil, 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("empty config should load: %v", err)
	}
	if cfg.Pipeline.Codec != "lz4" {
		t.Errorf("expected default codec, got %s", cfg.Pipeline.Codec)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "pipeline:\n  chunk_size: not a number\n  invalid syntax here\n"},
		{"unknown field", "pipeline:\n  compresion_level: 3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tmpDir, tt.name+".yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}

			cfg := Default()
			if err := loadFromFile(cfg, configPath); err == nil {
				t.Error("expected error loading invalid YAML, got nil")
			}
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown codec", func(c *Config) { c.Pipeline.Codec = "brotli" }},
		{"zero chunk size", func(c *Config) { c.Pipeline.ChunkSize = 0 }},
		{"oversized chunk", func(c *Config) { c.Pipeline.ChunkSize = chunk.MaxChunkSize + 1 }},
		{"negative arena", func(c *Config) { c.Runtime.ArenaSize = -1 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestChunkOptions(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.Codec = "zstd"
	cfg.Pipeline.ChunkSize = 4096

	opts, err := cfg.ChunkOptions()
	if err != nil {
		t.Fatalf("ChunkOptions: %v", err)
	}
	if opts.Codec.Name() != "zstd" {
		t.Errorf("expected zstd codec, got %s", opts.Codec.Name())
	}
	if opts.ChunkSize != 4096 {
		t.Errorf("expected chunk size 4096, got %d", opts.ChunkSize)
	}

	cfg.Pipeline.Codec = "nope"
	if _, err := cfg.ChunkOptions(); !errors.Is(err, chunk.ErrUnknownCodec) {
		t.Errorf("expected ErrUnknownCodec, got %v", err)
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	// Actual path depends on OS
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))

	// No config file exists - should return empty
	path := findConfigFile()
	if path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("pipeline:\n  codec: zlib\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	path = findConfigFile()
	if path == "" {
		t.Error("expected to find config.yaml in current directory")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "codec flag",
			setup: func() { *flagCodec = "zstd" },
			verify: func(cfg *Config) {
				if cfg.Pipeline.Codec != "zstd" {
					t.Errorf("expected codec zstd, got %s", cfg.Pipeline.Codec)
				}
			},
			teardown: func() { *flagCodec = "" },
		},
		{
			name:  "chunk size flag",
			setup: func() { *flagChunkSize = 1024 },
			verify: func(cfg *Config) {
				if cfg.Pipeline.ChunkSize != 1024 {
					t.Errorf("expected chunk size 1024, got %d", cfg.Pipeline.ChunkSize)
				}
			},
			teardown: func() { *flagChunkSize = 0 },
		},
		{
			name:  "arena flags",
			setup: func() { *flagArenaSize = 4096; *flagArenaAuto = true },
			verify: func(cfg *Config) {
				if cfg.Runtime.ArenaSize != 4096 {
					t.Errorf("expected arena size 4096, got %d", cfg.Runtime.ArenaSize)
				}
				if !cfg.Runtime.ArenaAuto {
					t.Error("expected arena_auto with -arena-auto")
				}
			},
			teardown: func() { *flagArenaSize = -1; *flagArenaAuto = false },
		},
		{
			name:  "no flags",
			setup: func() {},
			verify: func(cfg *Config) {
				if cfg.Runtime.ArenaSize != 0 {
					t.Errorf("expected default arena size, got %d", cfg.Runtime.ArenaSize)
				}
			},
			teardown: func() {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)

			tt.verify(cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
pipeline:
  codec: zlib
  chunk_size: 2048
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Set flag to override config file
	*flagConfig = configPath
	*flagCodec = "zstd"
	defer func() {
		*flagConfig = ""
		*flagCodec = ""
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Codec should be from flag, not file
	if cfg.Pipeline.Codec != "zstd" {
		t.Errorf("expected codec zstd from flag, got %s", cfg.Pipeline.Codec)
	}

	// Chunk size should be from file since no flag override
	if cfg.Pipeline.ChunkSize != 2048 {
		t.Errorf("expected chunk size 2048 from file, got %d", cfg.Pipeline.ChunkSize)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("pipeline:\n  codec: lzma\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	defer func() { *flagConfig = "" }()

	if _, err := Load(); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Pipeline.Codec = "zstd"
	cfg.Runtime.ArenaAuto = true
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("loading saved config: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("expected %+v, got %+v", cfg, loaded)
	}
}
