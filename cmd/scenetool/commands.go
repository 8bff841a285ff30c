package main

import (
	"flag"
	"fmt"
	"image/png"
	"io"
	"os"
	"strconv"

	"github.com/Faultbox/scenebake/internal/assets"
	"github.com/Faultbox/scenebake/internal/config"
	"github.com/Faultbox/scenebake/internal/texture"
	"github.com/Faultbox/scenebake/pkg/chunk"
	"github.com/Faultbox/scenebake/pkg/math"
	"github.com/Faultbox/scenebake/pkg/scene"
)

func cmdInfo(cfg *config.Config, args []string) {
	if len(args) < 1 {
		usage("info <file>")
	}
	if err := runInfo(os.Stdout, args[0], cfg.Pipeline.Codec); err != nil {
		fail(err)
	}
}

// runInfo prints the record table of the file at path. codecName only labels
// the output; records are read without decompressing them.
func runInfo(w io.Writer, path, codecName string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	headers, err := chunk.Headers(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "File:    %s\n", path)
	fmt.Fprintf(w, "Size:    %d bytes\n", len(data))
	fmt.Fprintf(w, "Records: %d\n", len(headers))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-5s %12s %12s %12s %7s\n", "#", "offset", "compressed", "raw", "ratio")

	var packed, raw uint64
	for i, h := range headers {
		packed += uint64(h.CompressedSize)
		raw += uint64(h.UncompressedSize)
		fmt.Fprintf(w, "  %-5d %12d %12d %12d %6.1f%%\n",
			i, h.Offset, h.CompressedSize, h.UncompressedSize, percent(h.CompressedSize, h.UncompressedSize))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Raw:     %d bytes (%.2f MB)\n", raw, float64(raw)/(1024*1024))
	fmt.Fprintf(w, "Packed:  %d bytes, %.1f%% of raw (assuming %s)\n", packed, percent(packed, raw), codecName)
	return nil
}

func percent[T uint32 | uint64](part, whole T) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func cmdStats(loader *assets.Loader, args []string) {
	if len(args) < 1 {
		usage("stats <file>")
	}

	h, err := loader.Open(args[0])
	if err != nil {
		fail(err)
	}
	defer h.Release()

	st := h.Scene.Stats()
	fmt.Printf("Meshes:    %d\n", st.Meshes)
	fmt.Printf("Vertices:  %d\n", st.Vertices)
	fmt.Printf("Indices:   %d (%d triangles)\n", st.Indices, st.Triangles)
	fmt.Printf("Images:    %d (%d bytes)\n", st.Images, st.ImageBytes)
	if !st.Empty {
		fmt.Printf("Bounds:    (%g, %g, %g) - (%g, %g, %g)\n",
			st.Min.X, st.Min.Y, st.Min.Z, st.Max.X, st.Max.Y, st.Max.Z)
	}
	if h.Arena != nil {
		fmt.Printf("Arena:     %d of %d bytes\n", h.Arena.Used(), h.Arena.Size())
	}

	fmt.Println()
	fmt.Println("Material slots:")
	fmt.Printf("  %-12s %8s %8s %8s\n", "slot", "none", "texture", "constant")
	for i, name := range scene.SlotNames {
		s := st.Slots[i]
		fmt.Printf("  %-12s %8d %8d %8d\n", name, s.None, s.Texture, s.Constant)
	}
}

func cmdVerify(loader *assets.Loader, args []string) {
	if len(args) < 1 {
		usage("verify <file>")
	}
	if err := runVerify(os.Stdout, loader.Options(), args[0]); err != nil {
		fail(err)
	}
}

// runVerify decompresses the file once and decodes it both onto the heap and
// into an exactly sized arena. The two results must validate and agree.
func runVerify(w io.Writer, opts chunk.Options, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	flat, err := chunk.Decompress(data, opts)
	if err != nil {
		return fmt.Errorf("decompressing: %w", err)
	}

	heap, err := scene.Decode(flat)
	if err != nil {
		return fmt.Errorf("heap decode: %w", err)
	}
	inArena, a, err := scene.DecodeSized(flat)
	if err != nil {
		return fmt.Errorf("arena decode: %w", err)
	}

	if err := heap.Validate(); err != nil {
		return err
	}
	if !heap.Equal(inArena) {
		return fmt.Errorf("heap and arena decodes differ")
	}

	fmt.Fprintf(w, "OK: %s (%d meshes, %d images, arena %d bytes)\n",
		path, len(heap.Meshes), len(heap.Images), a.Used())
	return nil
}

func cmdRepack(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("repack", flag.ExitOnError)
	from := fs.String("from", cfg.Pipeline.Codec, "Codec the input was written with")
	to := fs.String("codec", cfg.Pipeline.Codec, "Codec to write with")
	chunkSize := fs.Int("chunk-size", cfg.Pipeline.ChunkSize, "Uncompressed bytes per chunk")
	level := fs.Int("level", cfg.Pipeline.CompressionLevel, "Compression level (0 = codec default)")
	fs.Parse(args)

	if fs.NArg() < 2 {
		usage("repack [-from c] [-codec c] [-chunk-size n] [-level n] <in> <out>")
	}
	if err := runRepack(os.Stdout, fs.Arg(0), fs.Arg(1), *from, *to, *chunkSize, *level); err != nil {
		fail(err)
	}
}

// runRepack rewrites the scene at in, written with codec from, to out using
// codec to.
func runRepack(w io.Writer, in, out, from, to string, chunkSize, level int) error {
	src, err := chunk.Lookup(from, 0)
	if err != nil {
		return err
	}
	dst, err := chunk.Lookup(to, level)
	if err != nil {
		return err
	}

	s, err := scene.Load(in, chunk.Options{Codec: src})
	if err != nil {
		return err
	}
	if err := scene.Save(out, s, chunk.Options{Codec: dst, ChunkSize: chunkSize}); err != nil {
		return err
	}

	before, _ := os.Stat(in)
	after, _ := os.Stat(out)
	if before != nil && after != nil {
		fmt.Fprintf(w, "Repacked: %s (%s, %d bytes) -> %s (%s, %d bytes)\n",
			in, from, before.Size(), out, to, after.Size())
	}
	return nil
}

func cmdExportImage(loader *assets.Loader, args []string) {
	if len(args) < 3 {
		usage("export-image <file> <index> <out.png>")
	}

	index, err := strconv.Atoi(args[1])
	if err != nil {
		fail(fmt.Errorf("invalid image index %q", args[1]))
	}

	s, err := loader.Load(args[0])
	if err != nil {
		fail(err)
	}
	if index < 0 || index >= len(s.Images) {
		fail(fmt.Errorf("image %d out of range (scene has %d)", index, len(s.Images)))
	}
	img := s.Images[index]

	f, err := os.Create(args[2])
	if err != nil {
		fail(err)
	}
	if err := png.Encode(f, texture.FromImage(img)); err != nil {
		f.Close()
		fail(err)
	}
	if err := f.Close(); err != nil {
		fail(err)
	}

	fmt.Printf("Exported: %s (%dx%d %s)\n", args[2], img.Width, img.Height, img.Format)
}

func cmdSample(loader *assets.Loader, args []string) {
	fs := flag.NewFlagSet("sample", flag.ExitOnError)
	texturePath := fs.String("texture", "", "Image file for the base color")
	fs.Parse(args)

	if fs.NArg() < 1 {
		usage("sample [-texture path] <out>")
	}

	s := sampleScene()
	if *texturePath != "" {
		set := texture.NewSet()
		p, err := set.Add(*texturePath, scene.FormatSRGBA8)
		if err != nil {
			fail(err)
		}
		if p.Kind == scene.ParamNone {
			fail(fmt.Errorf("texture %s not found", *texturePath))
		}
		s.Meshes[0].Material.BaseColor = p
		s.Images = set.Images()
	}

	if err := loader.Bake(fs.Arg(0), s); err != nil {
		fail(err)
	}
	fmt.Printf("Baked: %s (base_color %s)\n", fs.Arg(0), s.Meshes[0].Material.BaseColor.Kind)
}

// sampleScene returns one triangle with a magenta base color.
func sampleScene() *scene.Scene {
	return &scene.Scene{
		Meshes: []scene.Mesh{{
			Positions: []math.Vec3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}},
			Normals:   []math.Vec3{{Z: 1}, {Z: 1}, {Z: 1}},
			UVs:       []math.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}},
			Indices:   []uint32{0, 1, 2},
			Transform: math.Identity(),
			Material: scene.Material{
				BaseColor: scene.Vec4Parameter(math.Vec4{X: 1, Y: 0, Z: 1, W: 1}),
			},
		}},
	}
}
