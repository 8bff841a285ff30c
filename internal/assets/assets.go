// Package assets bakes scenes to disk and loads them back, either onto the
// heap (cached per path) or into a single arena region per scene.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/scenebake/internal/config"
	"github.com/Faultbox/scenebake/internal/logger"
	"github.com/Faultbox/scenebake/pkg/arena"
	"github.com/Faultbox/scenebake/pkg/chunk"
	"github.com/Faultbox/scenebake/pkg/scene"
)

// Loader bakes and loads scene files with one set of settings.
type Loader struct {
	opts    chunk.Options
	runtime config.RuntimeConfig
	check   bool

	cache *Cache
	log   *zap.Logger
}

// NewLoader creates a loader from cfg.
func NewLoader(cfg *config.Config) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := cfg.ChunkOptions()
	if err != nil {
		return nil, err
	}
	return &Loader{
		opts:    opts,
		runtime: cfg.Runtime,
		check:   cfg.Pipeline.Validate,
		cache:   NewCache(),
		log:     logger.Named("assets"),
	}, nil
}

// Options returns the chunk options files are written and read with.
func (l *Loader) Options() chunk.Options { return l.opts }

// Cache returns the heap scene cache.
func (l *Loader) Cache() *Cache { return l.cache }

// key normalizes a path for caching.
func key(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Bake validates s (when enabled) and writes it to path.
func (l *Loader) Bake(path string, s *scene.Scene) error {
	if l.check {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("baking %s: %w", path, err)
		}
	}

	start := time.Now()
	raw := scene.EncodedSize(s)
	if err := scene.Save(path, s, l.opts); err != nil {
		return err
	}
	l.cache.Delete(key(path))

	elapsed := time.Since(start)
	fields := []zap.Field{
		zap.String("path", path),
		zap.Int("meshes", len(s.Meshes)),
		zap.Int("images", len(s.Images)),
		zap.Int("raw_bytes", raw),
		zap.String("codec", l.opts.Codec.Name()),
		zap.Duration("elapsed", elapsed),
		logger.Throughput(raw, elapsed),
	}
	if fi, err := os.Stat(path); err == nil {
		fields = append(fields, zap.Int64("file_bytes", fi.Size()))
	}
	l.log.Info("scene baked", fields...)
	return nil
}

// Load decodes the scene at path onto the heap. Repeated loads of the same
// path return the cached scene, which callers must treat as read-only.
func (l *Loader) Load(path string) (*scene.Scene, error) {
	k := key(path)
	if s, ok := l.cache.Get(k); ok {
		l.log.Debug("scene cache hit", zap.String("path", path))
		return s, nil
	}

	start := time.Now()
	s, err := scene.Load(path, l.opts)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	l.cache.Set(k, s)

	elapsed := time.Since(start)
	l.log.Info("scene loaded",
		zap.String("path", path),
		zap.Int("meshes", len(s.Meshes)),
		zap.Int("images", len(s.Images)),
		zap.Duration("elapsed", elapsed),
		logger.Throughput(scene.EncodedSize(s), elapsed),
	)
	return s, nil
}

// Handle owns a scene decoded into its own arena. Everything the scene
// references lives in the arena's region.
type Handle struct {
	Scene *scene.Scene
	Arena *arena.Arena
}

// Release drops the scene and its region in one step. The scene and any
// slices taken from it must no longer be used.
func (h *Handle) Release() {
	if h.Arena != nil {
		h.Arena.Reset()
	}
	h.Scene = nil
	h.Arena = nil
}

// LoadArena decodes the scene at path into a fresh arena. The region is sized
// exactly from the file when runtime.arena_auto is set or runtime.arena_size
// is zero, and is runtime.arena_size bytes otherwise.
func (l *Loader) LoadArena(path string) (*Handle, error) {
	start := time.Now()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: reading scene file: %w", path, err)
	}

	var (
		s *scene.Scene
		a *arena.Arena
	)
	if size := l.runtime.ArenaSize; l.runtime.ArenaAuto || size == 0 {
		s, a, err = scene.UnpackSized(data, l.opts)
	} else {
		a = arena.NewSize(size)
		s, err = scene.UnpackInArena(data, a, l.opts)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	elapsed := time.Since(start)
	l.log.Info("scene loaded into arena",
		zap.String("path", path),
		zap.Int("meshes", len(s.Meshes)),
		zap.Int("images", len(s.Images)),
		zap.Int("arena_used", a.Used()),
		zap.Int("arena_size", a.Size()),
		zap.Duration("elapsed", elapsed),
		logger.Throughput(len(data), elapsed),
	)
	return &Handle{Scene: s, Arena: a}, nil
}

// Open loads path the way the runtime settings ask for: into an arena when
// one is configured, otherwise onto the heap. The heap handle has no arena
// and its Release only drops the reference.
func (l *Loader) Open(path string) (*Handle, error) {
	if l.runtime.ArenaAuto || l.runtime.ArenaSize > 0 {
		return l.LoadArena(path)
	}
	s, err := l.Load(path)
	if err != nil {
		return nil, err
	}
	return &Handle{Scene: s}, nil
}
