package scene

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"unsafe"

	"github.com/Faultbox/scenebake/pkg/arena"
	"github.com/Faultbox/scenebake/pkg/chunk"
	"github.com/Faultbox/scenebake/pkg/math"
	"github.com/Faultbox/scenebake/pkg/wire"
)

// flatAlign is the alignment of the decompressed scene buffer inside an arena.
const flatAlign = 8

// Pack encodes s and compresses it into a scene file image.
func Pack(s *Scene, opts chunk.Options) ([]byte, error) {
	flat, err := Encode(s)
	if err != nil {
		return nil, err
	}
	return chunk.Compress(flat, opts)
}

// Write encodes s and streams the compressed records to w.
func Write(w io.Writer, s *Scene, opts chunk.Options) (int64, error) {
	flat, err := Encode(s)
	if err != nil {
		return 0, err
	}
	return chunk.Encode(w, flat, opts)
}

// Save writes s to the file at path, replacing any existing file.
func Save(path string, s *Scene, opts chunk.Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating scene file: %w", err)
	}

	bw := bufio.NewWriter(f)
	if _, err := Write(bw, s, opts); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// Unpack decompresses a scene file image and decodes it into heap memory.
func Unpack(data []byte, opts chunk.Options) (*Scene, error) {
	flat, err := chunk.Decompress(data, opts)
	if err != nil {
		return nil, fmt.Errorf("decompressing scene: %w", err)
	}
	return Decode(flat)
}

// UnpackInArena decompresses a scene file image into a buffer carved from a,
// then decodes every sequence from the same arena. The returned scene shares
// the arena's lifetime; see ArenaSize for sizing the region.
func UnpackInArena(data []byte, a *arena.Arena, opts chunk.Options) (*Scene, error) {
	size, err := chunk.DecompressedSize(data, opts)
	if err != nil {
		return nil, fmt.Errorf("decompressing scene: %w", err)
	}
	flat, err := a.Allocate(size, flatAlign)
	if err != nil {
		return nil, fmt.Errorf("allocating %d-byte scene buffer: %w", size, err)
	}
	if err := chunk.DecompressInto(data, flat, opts); err != nil {
		return nil, fmt.Errorf("decompressing scene: %w", err)
	}
	return DecodeArena(flat, a)
}

// Load reads and decodes the scene file at path.
func Load(path string, opts chunk.Options) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene file: %w", err)
	}
	return Unpack(data, opts)
}

// LoadInArena reads the scene file at path and decodes it into a.
func LoadInArena(path string, a *arena.Arena, opts chunk.Options) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene file: %w", err)
	}
	return UnpackInArena(data, a, opts)
}

// UnpackSized decompresses data once, measures the result and decodes it into
// an arena sized exactly for the scene's sequences. The decompressed buffer
// stays on the heap and is dropped after decoding.
func UnpackSized(data []byte, opts chunk.Options) (*Scene, *arena.Arena, error) {
	flat, err := chunk.Decompress(data, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing scene: %w", err)
	}
	return DecodeSized(flat)
}

// DecodeSized decodes flat into a new arena sized by Measure.
func DecodeSized(flat []byte) (*Scene, *arena.Arena, error) {
	size, err := Measure(flat)
	if err != nil {
		return nil, nil, err
	}
	a := arena.NewSize(size)
	s, err := DecodeArena(flat, a)
	if err != nil {
		return nil, nil, err
	}
	return s, a, nil
}

// ArenaSize returns the number of arena bytes UnpackInArena needs for data,
// assuming the arena starts empty at an 8-byte aligned address (as regions
// from arena.NewSize do). It decompresses data to measure it; callers that
// only need a sized arena should use UnpackSized, which decompresses once.
func ArenaSize(data []byte, opts chunk.Options) (int, error) {
	flat, err := chunk.Decompress(data, opts)
	if err != nil {
		return 0, fmt.Errorf("decompressing scene: %w", err)
	}
	return measure(flat, len(flat))
}

// Measure returns the number of arena bytes DecodeArena needs for the scene
// buffer flat, excluding flat itself, under the same assumption as ArenaSize.
func Measure(flat []byte) (int, error) {
	return measure(flat, 0)
}

// measure replays the allocations DecodeArena makes, starting from used
// bytes already taken, and returns the final used count.
func measure(flat []byte, used int) (int, error) {
	bump := func(size, align int) {
		if size > 0 {
			used = arena.AlignUp(used, align) + size
		}
	}
	var mesh Mesh
	var image Image

	r := wire.NewReader(flat)
	meshes := readCount(r, minMeshSize)
	bump(meshes*int(unsafe.Sizeof(mesh)), int(unsafe.Alignof(mesh)))
	for i := 0; i < meshes && r.Err() == nil; i++ {
		bump(wire.SkipSeq[math.Vec3](r), int(unsafe.Alignof(math.Vec3{})))
		bump(wire.SkipSeq[math.Vec3](r), int(unsafe.Alignof(math.Vec3{})))
		bump(wire.SkipSeq[math.Vec3](r), int(unsafe.Alignof(math.Vec3{})))
		bump(wire.SkipSeq[math.Vec2](r), int(unsafe.Alignof(math.Vec2{})))
		bump(wire.SkipSeq[uint32](r), int(unsafe.Alignof(uint32(0))))
		wire.ReadFixed[math.Mat4](r)
		for range SlotNames {
			decodeParameter(r)
		}
	}

	images := readCount(r, minImageSize)
	bump(images*int(unsafe.Sizeof(image)), int(unsafe.Alignof(image)))
	for i := 0; i < images && r.Err() == nil; i++ {
		r.Uint32()
		r.Uint32()
		at := r.Offset()
		if tag := r.Uint32(); r.Err() == nil {
			if _, err := formatFromTag(tag); err != nil {
				r.Fail(fmt.Errorf("%w at offset %d", err, at))
			}
		}
		bump(wire.SkipSeq[byte](r), 1)
	}

	if err := r.Finish(); err != nil {
		return 0, fmt.Errorf("measuring scene: %w", err)
	}
	return used, nil
}
