// scenetool is a CLI utility for baking and inspecting chunked scene files.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/scenebake/internal/assets"
	"github.com/Faultbox/scenebake/internal/config"
	"github.com/Faultbox/scenebake/internal/logger"
)

func main() {
	config.ParseFlags()
	args := config.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	loader, err := assets.NewLoader(cfg)
	if err != nil {
		fail(err)
	}
	logger.Debug("config loaded",
		zap.String("codec", cfg.Pipeline.Codec),
		zap.Int("chunk_size", cfg.Pipeline.ChunkSize),
		zap.Int("arena_size", cfg.Runtime.ArenaSize),
		zap.Bool("arena_auto", cfg.Runtime.ArenaAuto),
	)

	command := args[0]
	args = args[1:]

	switch command {
	case "info":
		cmdInfo(cfg, args)
	case "stats":
		cmdStats(loader, args)
	case "verify":
		cmdVerify(loader, args)
	case "repack":
		cmdRepack(cfg, args)
	case "export-image":
		cmdExportImage(loader, args)
	case "sample":
		cmdSample(loader, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`scenetool - baked scene file utility

Usage:
  scenetool [global options] <command> [options]

Global options:
  -config <path>      Config file (default ./config.yaml or the user config dir)
  -codec <name>       Chunk codec: lz4, zstd, zlib
  -chunk-size <n>     Uncompressed bytes per chunk
  -arena-size <n>     Load into an arena of n bytes (0 = heap)
  -arena-auto         Size the load arena from the file
  -debug              Enable debug logging

Commands:
  info <file>                               Show chunk records and compression ratio
  stats <file>                              Show scene counts and material usage
  verify <file>                             Decode on heap and in arena, validate, compare
  repack [-from c] [-codec c] [-chunk-size n] [-level n] <in> <out>
                                            Re-encode with another codec or chunk size
  export-image <file> <index> <out.png>     Write one scene image as PNG
  sample [-texture path] <out>              Bake a one-triangle sample scene

Examples:
  scenetool sample -texture albedo.png sample.scene
  scenetool info sample.scene
  scenetool -arena-auto stats sample.scene
  scenetool repack -codec zstd -level 3 sample.scene sample.zst.scene`)
}

// fail reports err and exits.
func fail(err error) {
	logger.Debug("command failed", zap.Error(err))
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	logger.Sync()
	os.Exit(1)
}

// usage prints a command's usage line and exits.
func usage(line string) {
	fmt.Fprintln(os.Stderr, "Usage: scenetool "+line)
	os.Exit(1)
}
