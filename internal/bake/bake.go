// Package bake drives one VAT bake: classification, basis, layout,
// encoding, descriptor and export.
package bake

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-vat/internal/export"
	"github.com/Faultbox/midgard-vat/pkg/vat"
)

// Stage names a phase reported through Progress.
type Stage string

const (
	StageAnalyse Stage = "analyse"
	StageEncode  Stage = "encode"
)

// ProgressFunc receives per-frame progress for a stage.
type ProgressFunc func(stage Stage, done, total int)

// Settings are the bake parameters that do not depend on the source.
type Settings struct {
	Window         vat.SampleWindow
	Options        vat.Options
	MaxTextureSize int
	Padding        int
	Export         export.Options
}

// DefaultSettings mirrors the defaults of the config file.
func DefaultSettings() Settings {
	return Settings{
		Window:         vat.SampleWindow{SampleRate: vat.DefaultSampleRate},
		MaxTextureSize: vat.DefaultMaxTextureSize,
		Padding:        vat.DefaultPadding,
		Export:         export.Options{Dir: ".", WriteGLTF: true},
	}
}

// Result is an in-memory bake.
type Result struct {
	Session        string
	Window         vat.SampleWindow
	Classification vat.Classification
	Basis          *vat.BasisBuffer
	Plan           vat.LayoutPlan
	Encoding       *vat.Encoding
	Descriptor     vat.Descriptor
}

// Bundle returns the parts of r the exporter needs.
func (r *Result) Bundle() export.Bundle {
	return export.Bundle{
		Encoding:   r.Encoding,
		Basis:      r.Basis,
		Plan:       r.Plan,
		Descriptor: r.Descriptor,
	}
}

// Baker runs bakes with fixed settings. A Baker is safe to reuse but not
// to share between goroutines while Progress is being changed.
type Baker struct {
	settings Settings
	log      *zap.Logger

	// Progress, when set, is called after every analysed or encoded frame.
	Progress ProgressFunc
}

// New returns a Baker. A nil logger discards output.
func New(settings Settings, log *zap.Logger) *Baker {
	if log == nil {
		log = zap.NewNop()
	}
	if settings.MaxTextureSize <= 0 {
		settings.MaxTextureSize = vat.DefaultMaxTextureSize
	}
	return &Baker{settings: settings, log: log}
}

// session is the per-run state shared by the bake phases.
type session struct {
	id     string
	log    *zap.Logger
	window vat.SampleWindow
}

func (b *Baker) begin(src vat.Source) (*session, error) {
	if src == nil {
		return nil, vat.ErrNoSource
	}
	s := &session{id: uuid.NewString()}
	s.log = b.log.With(zap.String("session", s.id), zap.String("source", SourceName(src)))

	w, corrected := b.settings.Window.Normalized()
	if corrected {
		s.log.Warn("sample rate replaced",
			zap.Float64("requested", b.settings.Window.SampleRate),
			zap.Float64("using", w.SampleRate),
			zap.NamedError("diagnostic", vat.ErrInvalidSampleRate))
	}
	if w.EndTime == 0 {
		if d, ok := src.(vat.Durationer); ok {
			w.EndTime = d.Duration()
			s.log.Debug("end time taken from source", zap.Float64("end", w.EndTime))
		}
	}
	s.window = w
	return s, nil
}

func (b *Baker) progress(stage Stage) vat.ProgressFunc {
	if b.Progress == nil {
		return nil
	}
	return func(done, total int) { b.Progress(stage, done, total) }
}

// Analyze classifies src over the configured window.
func (b *Baker) Analyze(ctx context.Context, src vat.Source) (vat.Classification, error) {
	s, err := b.begin(src)
	if err != nil {
		return vat.Classification{}, err
	}
	return b.analyze(ctx, s, src)
}

func (b *Baker) analyze(ctx context.Context, s *session, src vat.Source) (vat.Classification, error) {
	s.log.Info("analysing topology",
		zap.Float64("start", s.window.StartTime),
		zap.Float64("end", s.window.EndTime),
		zap.Float64("rate", s.window.SampleRate),
		zap.Int("frames", s.window.FrameCount()))

	c, err := vat.Classify(ctx, src, s.window, b.progress(StageAnalyse))
	if err != nil {
		s.log.Error("analysis failed", zap.Error(err))
		return c, fmt.Errorf("analysing %s: %w", SourceName(src), err)
	}
	s.log.Info("topology classified",
		zap.Stringer("mode", c.Mode),
		zap.Int("min_triangles", c.MinTriangles),
		zap.Int("max_triangles", c.MaxTriangles))
	return c, nil
}

// Bake runs every phase up to the descriptor and keeps the result in memory.
func (b *Baker) Bake(ctx context.Context, src vat.Source) (*Result, error) {
	s, err := b.begin(src)
	if err != nil {
		return nil, err
	}
	return b.bake(ctx, s, src)
}

func (b *Baker) bake(ctx context.Context, s *session, src vat.Source) (*Result, error) {
	c, err := b.analyze(ctx, s, src)
	if err != nil {
		return nil, err
	}

	basis, err := vat.BuildBasis(src, s.window, c.Mode, c.MaxTriangles)
	if err != nil {
		return nil, fmt.Errorf("building basis: %w", err)
	}
	if basis.Missing.Any() {
		s.log.Warn("basis attributes substituted",
			zap.Int("normals", basis.Missing.Normals),
			zap.Int("uvs", basis.Missing.UVs),
			zap.Int("colors", basis.Missing.Colors))
	}

	plan, err := vat.Plan(basis.VertexCount(), c.Frames, b.settings.MaxTextureSize, b.settings.Padding)
	if err != nil {
		s.log.Error("layout rejected",
			zap.Int("vertices", basis.VertexCount()),
			zap.Int("frames", c.Frames),
			zap.Error(err))
		return nil, fmt.Errorf("planning layout: %w", err)
	}
	s.log.Info("layout planned",
		zap.Int("vertices", plan.VertexCount),
		zap.Int("width", plan.Width),
		zap.Int("height", plan.Height),
		zap.Int("columns", plan.Columns))

	enc, err := vat.Encode(ctx, src, basis, plan, s.window, c.Mode, b.settings.Options, b.progress(StageEncode))
	if err != nil {
		s.log.Error("encoding failed", zap.Error(err))
		return nil, fmt.Errorf("encoding %s: %w", SourceName(src), err)
	}
	if enc.Stats.UncoveredTargets > 0 {
		s.log.Warn("vertices without source data written as sentinel",
			zap.Int("targets", enc.Stats.UncoveredTargets))
	}
	if enc.Stats.Missing.Any() {
		s.log.Warn("frame attributes substituted",
			zap.Int("normals", enc.Stats.Missing.Normals),
			zap.Int("uvs", enc.Stats.Missing.UVs),
			zap.Int("colors", enc.Stats.Missing.Colors))
	}
	if enc.Stats.ZeroNormals > 0 {
		s.log.Debug("degenerate normals replaced", zap.Int("count", enc.Stats.ZeroNormals))
	}

	return &Result{
		Session:        s.id,
		Window:         s.window,
		Classification: c,
		Basis:          basis,
		Plan:           plan,
		Encoding:       enc,
		Descriptor:     vat.Emit(plan, c.Mode, b.settings.Options, c.Frames, s.window.SampleRate, enc.Bounds),
	}, nil
}

// Run bakes src and writes the artifacts. An empty export name is taken
// from the source.
func (b *Baker) Run(ctx context.Context, src vat.Source) (*Result, export.Artifacts, error) {
	s, err := b.begin(src)
	if err != nil {
		return nil, export.Artifacts{}, err
	}
	res, err := b.bake(ctx, s, src)
	if err != nil {
		return nil, export.Artifacts{}, err
	}

	opts := b.settings.Export
	if opts.Name == "" {
		opts.Name = SourceName(src)
	}
	art, err := export.Write(res.Bundle(), opts)
	if err != nil {
		s.log.Error("export failed", zap.String("dir", opts.Dir), zap.Error(err))
		return res, export.Artifacts{}, err
	}
	s.log.Info("bake written", zap.Strings("files", art.Paths()))
	return res, art, nil
}

// SourceName returns a file-name safe name for src.
func SourceName(src vat.Source) string {
	n, ok := src.(interface{ Name() string })
	if !ok || n.Name() == "" {
		return "vat"
	}
	name := filepath.Base(filepath.ToSlash(n.Name()))
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." {
		return "vat"
	}
	return name
}
