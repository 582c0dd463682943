// vatbake bakes animated Ragnarok Online models and glTF frame sequences
// into vertex animation textures.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-vat/internal/assets"
	"github.com/Faultbox/midgard-vat/internal/bake"
	"github.com/Faultbox/midgard-vat/internal/config"
	"github.com/Faultbox/midgard-vat/internal/logger"
	"github.com/Faultbox/midgard-vat/internal/source"
	"github.com/Faultbox/midgard-vat/pkg/formats"
	"github.com/Faultbox/midgard-vat/pkg/vat"
)

func main() {
	err := run(os.Args[1:])
	logger.Sync()
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// usageError is returned for malformed command lines.
type usageError string

func (e usageError) Error() string { return "usage: " + string(e) }

// run dispatches a command line to its command. It is the only caller of
// the commands, and main is the only place that exits.
func run(args []string) error {
	if len(args) < 1 {
		printUsage()
		return usageError("vatbake <command> [options]")
	}

	command := args[0]
	args = args[1:]

	switch command {
	case "analyze", "analyse":
		return cmdAnalyze(args)
	case "layout":
		return cmdLayout(args)
	case "bake":
		return cmdBake(args)
	case "info":
		return cmdInfo(args)
	case "inspect":
		return cmdInspect(args)
	case "models", "ls":
		return cmdModels(args)
	case "config":
		return cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage() {
	fmt.Println(`vatbake - vertex animation texture baker

Usage:
  vatbake <command> [options]

Commands:
  analyze [flags]                    Classify a source's topology
  layout <vertices> <frames>         Show the texture layout for given counts
  bake [flags]                       Bake textures, basis mesh and descriptor
  info <name_meta.json>              Show and validate a descriptor
  inspect <model.rsm | -grf f entry> Dump RSM node data
  models <file.grf> [pattern]        List RSM models inside archives
  config [path]                      Write the default config file

Source flags:
  -rsm <file|entry>   RSM model, or entry inside the -grf archive
  -grf <file.grf>     Archive holding the model
  -gltf <dir|glob>    Per-frame glTF/GLB sequence
  -fps <rate>         Frame rate of the glTF sequence

Examples:
  vatbake analyze -rsm data/model/prontera/windmill.rsm
  vatbake bake -grf data.grf -rsm "data\model\prontera\windmill.rsm" -out baked
  vatbake bake -gltf "frames/*.glb" -fps 30 -rate 30 -compress-normals
  vatbake layout 20 24`)
}

// setup parses the shared bake flags, loads the config, starts logging and
// opens the source.
func setup(name string, args []string) (*config.Config, source.Source, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	flags := config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return nil, nil, err
	}
	logging := cfg.Logging
	if err := logger.InitWith(logger.Config{
		Level:   logging.Level,
		Console: os.Stderr,
		File: logger.FileConfig{
			Path:       logging.LogFile,
			MaxSizeMB:  logging.MaxSizeMB,
			MaxBackups: logging.MaxBackups,
			MaxAgeDays: logging.MaxAgeDays,
			Compress:   logging.Compress,
		},
	}); err != nil {
		return nil, nil, err
	}

	src, err := source.Open(cfg.Source)
	if err != nil {
		return nil, nil, err
	}
	return cfg, src, nil
}

// progress draws a single updating line on stderr.
func progress(stage bake.Stage, done, total int) {
	fmt.Fprintf(os.Stderr, "\r%-8s %d/%d", stage, done, total)
	if done == total {
		fmt.Fprintln(os.Stderr)
	}
}

func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func cmdAnalyze(args []string) error {
	cfg, src, err := setup("analyze", args)
	if err != nil {
		return err
	}

	ctx, stop := interruptible()
	defer stop()

	b := bake.New(cfg.Settings(), logger.Log)
	b.Progress = progress
	c, err := b.Analyze(ctx, src)
	if err != nil {
		return err
	}

	fmt.Printf("Source:    %s\n", src.Name())
	fmt.Printf("Topology:  %s\n", c.Mode)
	fmt.Printf("Frames:    %d\n", c.Frames)
	fmt.Printf("Triangles: %d - %d\n", c.MinTriangles, c.MaxTriangles)
	if c.Mode == vat.TopologyVariable {
		fmt.Printf("Basis:     %d soup vertices\n", 3*c.MaxTriangles)
	}
	return nil
}

func cmdLayout(args []string) error {
	fs := flag.NewFlagSet("layout", flag.ContinueOnError)
	maxSize := fs.Int("max-size", vat.DefaultMaxTextureSize, "Maximum texture dimension")
	padding := fs.Int("padding", vat.DefaultPadding, "Padding columns after each frame block")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 2 {
		return usageError("vatbake layout [-max-size N] [-padding N] <vertices> <frames>")
	}
	vertices, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("vertex count: %w", err)
	}
	frames, err := strconv.Atoi(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("frame count: %w", err)
	}

	plan, err := vat.Plan(vertices, frames, *maxSize, *padding)
	if err != nil {
		return err
	}
	fmt.Printf("Texture:  %dx%d\n", plan.Width, plan.Height)
	fmt.Printf("Columns:  %d\n", plan.Columns)
	fmt.Printf("Stride:   %d (%d frames + %d padding)\n", plan.Stride(), plan.FrameCount, plan.Padding)
	fmt.Printf("Texels:   %d used of %d\n", vertices*frames, plan.Width*plan.Height)
	return nil
}

func cmdBake(args []string) error {
	cfg, src, err := setup("bake", args)
	if err != nil {
		return err
	}

	ctx, stop := interruptible()
	defer stop()

	b := bake.New(cfg.Settings(), logger.Log)
	b.Progress = progress
	res, art, err := b.Run(ctx, src)
	if err != nil {
		return err
	}

	d := res.Descriptor
	fmt.Printf("Baked %s: %s, %d vertices x %d frames into %dx%d\n",
		src.Name(), d.Topology, d.VertexCount, d.FrameCount, d.TexWidth, d.TexHeight)
	for _, p := range art.Paths() {
		fmt.Printf("  %s\n", p)
	}
	return nil
}

func cmdInfo(args []string) error {
	if len(args) < 1 {
		return usageError("vatbake info <name_meta.json>")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	d, err := vat.ReadDescriptor(f)
	if err != nil {
		return err
	}

	fmt.Printf("Descriptor: %s\n", args[0])
	fmt.Printf("Topology:   %s (storeDelta=%v)\n", d.Topology, d.StoreDelta)
	fmt.Printf("Vertices:   %d\n", d.VertexCount)
	fmt.Printf("Frames:     %d at %g fps\n", d.FrameCount, d.SampleRate)
	fmt.Printf("Texture:    %dx%d, %d columns, stride %d\n", d.TexWidth, d.TexHeight, d.Columns, d.FrameStride)
	fmt.Printf("Normals:    compressed=%v unlit=%v\n", d.NormalsCompressed, d.Unlit)
	fmt.Printf("Bounds:     %v - %v\n", d.BoundsMin, d.BoundsMax)

	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid descriptor: %w", err)
	}
	fmt.Println("OK")
	return nil
}

func cmdInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	grfPath := fs.String("grf", "", "Archive holding the model")
	depth := fs.Int("depth", 3, "Maximum dump depth")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		return usageError("vatbake inspect [-grf file.grf] [-depth N] <model.rsm>")
	}

	var (
		src *source.RSM
		err error
	)
	if *grfPath != "" {
		src, err = source.OpenRSMFromGRF(*grfPath, fs.Arg(0))
	} else {
		src, err = source.OpenRSM(fs.Arg(0))
	}
	if err != nil {
		return err
	}
	model := src.Model()

	fmt.Printf("Model:      %s (RSM %s)\n", src.Name(), model.Version)
	fmt.Printf("Animation:  %d ms\n", model.AnimLength)
	fmt.Printf("Nodes:      %d (root %q)\n", len(model.Nodes), model.RootNode)
	fmt.Printf("Geometry:   %d vertices, %d faces\n", model.TotalVertexCount(), model.TotalFaceCount())
	fmt.Println()

	dump := spew.ConfigState{
		Indent:                  "  ",
		MaxDepth:                *depth,
		DisableCapacities:       true,
		DisablePointerAddresses: true,
		SortKeys:                true,
	}
	for i := range model.Nodes {
		node := summarize(&model.Nodes[i])
		dump.Dump(node)
	}
	return nil
}

// nodeSummary drops the bulk geometry of a node and keeps what matters for
// animation debugging.
type nodeSummary struct {
	Name      string
	Parent    string
	Vertices  int
	Faces     int
	Offset    [3]float32
	Position  [3]float32
	Scale     [3]float32
	RotAngle  float32
	RotAxis   [3]float32
	PosKeys   []formats.RSMPosKeyframe
	RotKeys   []formats.RSMRotKeyframe
	ScaleKeys []formats.RSMScaleKeyframe
}

func summarize(n *formats.RSMNode) nodeSummary {
	return nodeSummary{
		Name:      n.Name,
		Parent:    n.Parent,
		Vertices:  len(n.Vertices),
		Faces:     len(n.Faces),
		Offset:    n.Offset,
		Position:  n.Position,
		Scale:     n.Scale,
		RotAngle:  n.RotAngle,
		RotAxis:   n.RotAxis,
		PosKeys:   n.PosKeys,
		RotKeys:   n.RotKeys,
		ScaleKeys: n.ScaleKeys,
	}
}

func cmdModels(args []string) error {
	fs := flag.NewFlagSet("models", flag.ContinueOnError)
	limit := fs.Int("n", 0, "Limit output to N models (0 = all)")
	animated := fs.Bool("animated", false, "Only list models with keyframes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		return usageError("vatbake models [-n N] [-animated] <file.grf> [pattern]")
	}

	archives, err := assets.Open(filepath.SplitList(fs.Arg(0))...)
	if err != nil {
		return err
	}
	defer archives.Close()

	pattern := ""
	if fs.NArg() > 1 {
		pattern = strings.ToLower(fs.Arg(1))
	}

	count := 0
	for _, f := range archives.Models() {
		lower := strings.ToLower(f)
		if pattern != "" {
			matched, _ := filepath.Match(pattern, filepath.Base(strings.ReplaceAll(lower, `\`, "/")))
			if !matched && !strings.Contains(lower, pattern) {
				continue
			}
		}
		if *animated {
			data, err := archives.Read(f)
			if err != nil {
				logger.Warn("unreadable entry", zap.String("entry", f), zap.Error(err))
				continue
			}
			model, err := formats.ParseRSM(data)
			if err != nil || !model.HasAnimation() {
				continue
			}
		}
		fmt.Println(f)
		count++
		if *limit > 0 && count >= *limit {
			break
		}
	}

	fmt.Fprintf(os.Stderr, "\n(%d models)\n", count)
	return nil
}

func cmdConfig(args []string) error {
	cfg := config.Default()
	path := filepath.Join(config.ConfigDir(), "vatbake.yaml")
	save := cfg.Save
	if len(args) > 0 {
		path = args[0]
		save = func() error { return cfg.SaveTo(path) }
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := save(); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
