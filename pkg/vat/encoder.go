package vat

import (
	"context"
	"errors"
	"fmt"
	"image"
	gomath "math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/midgard-vat/pkg/math"
)

// Options control how frames are written.
type Options struct {
	FromWorldSpace bool `yaml:"from_world_space" toml:"from_world_space"`
	Unlit          bool `yaml:"unlit" toml:"unlit"`
	CompressNormal bool `yaml:"compress_normal" toml:"compress_normal"`
	Workers        int  `yaml:"workers" toml:"workers"` // 0 uses GOMAXPROCS
}

// Bounds is the running min/max of written position components.
type Bounds struct {
	Min   math.Vec3
	Max   math.Vec3
	valid bool
}

// Add extends the bounds by v.
func (b *Bounds) Add(v math.Vec3) {
	if !b.valid {
		b.Min, b.Max, b.valid = v, v, true
		return
	}
	b.Min = b.Min.Min(v)
	b.Max = b.Max.Max(v)
}

// Merge returns the union of b and o.
func (b Bounds) Merge(o Bounds) Bounds {
	switch {
	case !o.valid:
		return b
	case !b.valid:
		return o
	}
	return Bounds{Min: b.Min.Min(o.Min), Max: b.Max.Max(o.Max), valid: true}
}

// IsEmpty reports whether nothing was added.
func (b Bounds) IsEmpty() bool {
	return !b.valid
}

// Stats are diagnostics gathered during encoding.
type Stats struct {
	Frames int
	// UncoveredTargets counts (frame, vertex) pixels that received the
	// sentinel because the current frame had no matching vertex.
	UncoveredTargets int
	// ZeroNormals counts normals that were degenerate and replaced by up.
	ZeroNormals int
	Missing     MissingAttributes
}

// Encoding holds the encoder output. Exactly one of Normals and
// PackedNormals is set unless the bake is unlit.
type Encoding struct {
	Positions     *FloatImage
	Normals       *FloatImage
	PackedNormals *image.NRGBA
	Bounds        Bounds
	Stats         Stats
}

// target locates a basis vertex inside a Fixed-topology frame.
type target struct {
	sub   int
	local int
}

// Encoder writes one frame per Next call.
type Encoder struct {
	src    Source
	basis  *BasisBuffer
	plan   LayoutPlan
	window SampleWindow
	mode   TopologyMode
	opts   Options

	targets []target
	out     *Encoding
	done    int
	err     error
}

// NewEncoder prepares an encoding pass. plan must have been computed for the
// basis vertex count and the window frame count.
func NewEncoder(src Source, basis *BasisBuffer, plan LayoutPlan, window SampleWindow, mode TopologyMode, opts Options) (*Encoder, error) {
	if src == nil {
		return nil, ErrNoSource
	}
	if basis == nil {
		return nil, errors.New("nil basis buffer")
	}
	if mode != TopologyFixed && mode != TopologyVariable {
		return nil, fmt.Errorf("cannot encode topology %s", mode)
	}
	if basis.Mode != mode {
		return nil, fmt.Errorf("basis built for %s, encoding %s", basis.Mode, mode)
	}
	window, _ = window.Normalized()
	if plan.VertexCount != basis.VertexCount() {
		return nil, fmt.Errorf("layout planned for %d vertices, basis has %d", plan.VertexCount, basis.VertexCount())
	}
	if plan.FrameCount != window.FrameCount() {
		return nil, fmt.Errorf("layout planned for %d frames, window samples %d", plan.FrameCount, window.FrameCount())
	}

	e := &Encoder{
		src:    src,
		basis:  basis,
		plan:   plan,
		window: window,
		mode:   mode,
		opts:   opts,
		out: &Encoding{
			Positions: NewFloatImage(plan.Width, plan.Height),
			Stats:     Stats{Missing: basis.Missing},
		},
	}
	if !opts.Unlit {
		if opts.CompressNormal {
			e.out.PackedNormals = image.NewNRGBA(image.Rect(0, 0, plan.Width, plan.Height))
		} else {
			e.out.Normals = NewFloatImage(plan.Width, plan.Height)
		}
	}
	if mode == TopologyFixed {
		e.targets = make([]target, basis.VertexCount())
		for ri, r := range basis.Ranges {
			for j := 0; j < r.Count; j++ {
				e.targets[r.Offset+j] = target{sub: ri, local: j}
			}
		}
	}
	return e, nil
}

// Next encodes one frame. It returns false when encoding is complete or
// failed; check Err afterwards.
func (e *Encoder) Next() bool {
	if e.err != nil || e.done >= e.plan.FrameCount {
		return false
	}

	f := e.done
	t := e.window.TimeAt(f)
	if err := e.src.Seek(t); err != nil {
		e.err = fmt.Errorf("%w: seek to %.4fs (frame %d): %v", ErrNoSource, t, f, err)
		return false
	}
	subs := e.src.SubMeshes()

	workers := e.opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	n := e.plan.VertexCount
	chunk := ceilDiv(n, workers)
	parts := make([]frameStats, workers)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, min((w+1)*chunk, n)
		if lo >= hi {
			continue
		}
		part := &parts[w]
		g.Go(func() error {
			for v := lo; v < hi; v++ {
				e.writeTarget(f, v, subs, part)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.err = err
		return false
	}

	for i := range parts {
		e.out.Bounds = e.out.Bounds.Merge(parts[i].bounds)
		e.out.Stats.UncoveredTargets += parts[i].uncovered
		e.out.Stats.ZeroNormals += parts[i].zeroNormals
	}
	e.done++
	e.out.Stats.Frames = e.done
	return true
}

type frameStats struct {
	bounds      Bounds
	uncovered   int
	zeroNormals int
}

func (e *Encoder) writeTarget(f, v int, subs []SubMesh, st *frameStats) {
	pos, nrm, ok := e.sample(v, subs)
	if !ok {
		pos, nrm = math.Vec3{}, math.Up
		st.uncovered++
	} else {
		if e.mode == TopologyFixed {
			pos = pos.Sub(e.basis.Positions[v])
		}
		if isNaN(nrm) || nrm.Length() < 1e-8 {
			st.zeroNormals++
			nrm = math.Up
		} else {
			nrm = nrm.Normalize()
		}
	}
	st.bounds.Add(pos)

	x, y := e.plan.Pixel(f, v)
	e.out.Positions.Set(x, y, [4]float32{pos.X, pos.Y, pos.Z, 1})
	switch {
	case e.out.PackedNormals != nil:
		c := CompressNormal(nrm)
		i := e.out.PackedNormals.PixOffset(x, y)
		copy(e.out.PackedNormals.Pix[i:i+4], c[:])
	case e.out.Normals != nil:
		e.out.Normals.Set(x, y, [4]float32{nrm.X, nrm.Y, nrm.Z, 1})
	}
}

// sample returns the current-frame position and normal for target v.
func (e *Encoder) sample(v int, subs []SubMesh) (pos, nrm math.Vec3, ok bool) {
	var sm *SubMesh
	var idx int
	switch e.mode {
	case TopologyVariable:
		if len(subs) == 0 || v >= len(subs[0].Indices) {
			return pos, nrm, false
		}
		sm = &subs[0]
		idx = int(sm.Indices[v])
	default:
		t := e.targets[v]
		if t.sub >= len(subs) {
			return pos, nrm, false
		}
		sm = &subs[t.sub]
		idx = t.local
	}
	if idx >= len(sm.Positions) {
		return pos, nrm, false
	}

	pos = sm.Positions[idx]
	nrm = math.Up
	if sm.HasNormals() {
		nrm = sm.Normals[idx]
	}
	if e.opts.FromWorldSpace {
		m := sm.LocalToWorld
		if m == (math.Mat4{}) {
			m = math.Identity()
		}
		pos = m.TransformVec3(pos)
		nrm = m.TransformDirVec3(nrm)
	}
	return pos, nrm, true
}

func isNaN(v math.Vec3) bool {
	return gomath.IsNaN(float64(v.X)) || gomath.IsNaN(float64(v.Y)) || gomath.IsNaN(float64(v.Z))
}

// Err returns the error that stopped encoding, if any.
func (e *Encoder) Err() error {
	return e.err
}

// Done returns the number of encoded frames.
func (e *Encoder) Done() int {
	return e.done
}

// Total returns the number of frames to encode.
func (e *Encoder) Total() int {
	return e.plan.FrameCount
}

// Result returns the finished encoding.
func (e *Encoder) Result() (*Encoding, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.done < e.plan.FrameCount {
		return nil, fmt.Errorf("encoding incomplete: %d/%d frames", e.done, e.plan.FrameCount)
	}
	return e.out, nil
}

// Encode runs a full encoding pass, checking ctx between frames. On
// cancellation every buffer is dropped and the error wraps ErrCanceled.
func Encode(ctx context.Context, src Source, basis *BasisBuffer, plan LayoutPlan, window SampleWindow,
	mode TopologyMode, opts Options, progress ProgressFunc) (*Encoding, error) {
	e, err := NewEncoder(src, basis, plan, window, mode, opts)
	if err != nil {
		return nil, err
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCanceled, err)
		}
		if !e.Next() {
			break
		}
		if progress != nil {
			progress(e.Done(), e.Total())
		}
	}
	return e.Result()
}
