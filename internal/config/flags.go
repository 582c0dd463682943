package config

import (
	"flag"

	"github.com/Faultbox/midgard-vat/internal/source"
)

// Flags are the command-line overrides shared by the bake commands.
type Flags struct {
	fs *flag.FlagSet

	config *string
	debug  *bool

	rsm  *string
	grf  *string
	gltf *string
	fps  *float64

	start *float64
	end   *float64
	rate  *float64

	worldSpace *bool
	unlit      *bool
	compress   *bool
	workers    *int
	maxSize    *int

	out  *string
	name *string
	half *bool
	obj  *bool
}

// RegisterFlags defines the override flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		fs:     fs,
		config: fs.String("config", "", "Path to config file (.yaml or .toml)"),
		debug:  fs.Bool("debug", false, "Enable debug logging"),

		rsm:  fs.String("rsm", "", "RSM model file, or entry name with -grf"),
		grf:  fs.String("grf", "", "GRF archive holding the -rsm entry"),
		gltf: fs.String("gltf", "", "Directory or glob of per-frame glTF files"),
		fps:  fs.Float64("fps", 0, "Frame rate of a glTF sequence"),

		start: fs.Float64("start", 0, "Start time in seconds"),
		end:   fs.Float64("end", 0, "End time in seconds (0 uses the source duration)"),
		rate:  fs.Float64("rate", 0, "Sample rate in frames per second"),

		worldSpace: fs.Bool("world", false, "Bake world-space positions"),
		unlit:      fs.Bool("unlit", false, "Skip the normal texture"),
		compress:   fs.Bool("compress-normals", false, "Write 8-bit normals to PNG"),
		workers:    fs.Int("workers", 0, "Encoder workers per frame"),
		maxSize:    fs.Int("max-size", 0, "Maximum texture dimension"),

		out:  fs.String("out", "", "Output directory"),
		name: fs.String("name", "", "Artifact base name"),
		half: fs.Bool("half", false, "Store textures as 16-bit floats"),
		obj:  fs.Bool("obj", false, "Also write the basis mesh as OBJ"),
	}
}

// ConfigPath returns the explicit config path if provided via -config.
func (f *Flags) ConfigPath() string {
	if f == nil {
		return ""
	}
	return *f.config
}

// apply copies every flag that was set on the command line into cfg.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "debug":
			if *f.debug {
				cfg.Logging.Level = "debug"
			}
		case "rsm":
			cfg.Source = source.Config{Kind: source.KindRSM, Path: *f.rsm, GRF: cfg.Source.GRF}
		case "grf":
			cfg.Source.GRF = *f.grf
		case "gltf":
			cfg.Source = source.Config{Kind: source.KindGLTF, Path: *f.gltf, FPS: cfg.Source.FPS}
		case "fps":
			cfg.Source.FPS = *f.fps
		case "start":
			cfg.Window.StartTime = *f.start
		case "end":
			cfg.Window.EndTime = *f.end
		case "rate":
			cfg.Window.SampleRate = *f.rate
		case "world":
			cfg.Bake.FromWorldSpace = *f.worldSpace
		case "unlit":
			cfg.Bake.Unlit = *f.unlit
		case "compress-normals":
			cfg.Bake.CompressNormal = *f.compress
		case "workers":
			cfg.Bake.Workers = *f.workers
		case "max-size":
			cfg.Bake.MaxTextureSize = *f.maxSize
		case "out":
			cfg.Export.Dir = *f.out
		case "name":
			cfg.Export.Name = *f.name
		case "half":
			cfg.Export.HalfPrecision = *f.half
		case "obj":
			cfg.Export.WriteOBJ = *f.obj
		}
	})
}
