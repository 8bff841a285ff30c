package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagCodec     = flag.String("codec", "", "Chunk codec (lz4, zstd, zlib)")
	flagChunkSize = flag.Int("chunk-size", 0, "Uncompressed bytes per chunk")
	flagArenaSize = flag.Int("arena-size", -1, "Arena bytes for loading (0 = heap)")
	flagArenaAuto = flag.Bool("arena-auto", false, "Size the load arena from the file")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the arguments left after flag parsing.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via -config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagCodec != "" {
		cfg.Pipeline.Codec = *flagCodec
	}
	if *flagChunkSize > 0 {
		cfg.Pipeline.ChunkSize = *flagChunkSize
	}
	if *flagArenaSize >= 0 {
		cfg.Runtime.ArenaSize = *flagArenaSize
	}
	if *flagArenaAuto {
		cfg.Runtime.ArenaAuto = true
	}
}
