package vat

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/Faultbox/midgard-vat/pkg/math"
)

func TestPipelineFixedScenario(t *testing.T) {
	src := fixedSource(20, 6)
	window := SampleWindow{0, 1, 24}
	c, basis, plan := prepare(t, src, window)
	if c.Mode != TopologyFixed {
		t.Fatalf("Mode = %s, want Fixed", c.Mode)
	}

	enc, err := Encode(context.Background(), src, basis, plan, window, c.Mode, Options{}, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	d := Emit(plan, c.Mode, Options{}, c.Frames, window.SampleRate, enc.Bounds)

	if d.VertexCount != 20 || d.FrameCount != 24 || d.FPS != 24 {
		t.Errorf("counts = %d vertices, %d frames, %d fps", d.VertexCount, d.FrameCount, d.FPS)
	}
	if d.TexWidth != 26 || d.TexHeight != 20 || d.Columns != 1 || d.FrameStride != 26 {
		t.Errorf("grid = %dx%d, %d columns, stride %d; want 26x20, 1 column, stride 26",
			d.TexWidth, d.TexHeight, d.Columns, d.FrameStride)
	}
	if !d.StoreDelta || d.Topology != "Fixed" || d.NormalsCompressed {
		t.Errorf("flags = storeDelta %v, topology %s, compressed %v", d.StoreDelta, d.Topology, d.NormalsCompressed)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	for v := 0; v < d.VertexCount; v++ {
		for f := 0; f < d.FrameCount; f++ {
			px, py := plan.Pixel(f, v)
			dx, dy := d.Pixel(f, v)
			if px != dx || py != dy {
				t.Fatalf("descriptor Pixel(%d, %d) = (%d, %d), planner says (%d, %d)", f, v, dx, dy, px, py)
			}
		}
	}
}

func TestPipelineVariableScenario(t *testing.T) {
	src := triangleScript([]int{5, 7, 5, 6})
	window := SampleWindow{0, 3.5, 1}
	c, basis, plan := prepare(t, src, window)
	if c.Mode != TopologyVariable || c.MaxTriangles != 7 {
		t.Fatalf("classification = %+v, want Variable with 7 triangles", c)
	}

	enc, err := Encode(context.Background(), src, basis, plan, window, c.Mode, Options{CompressNormal: true}, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	d := Emit(plan, c.Mode, Options{CompressNormal: true}, c.Frames, window.SampleRate, enc.Bounds)
	if d.VertexCount != 21 || d.StoreDelta || d.Topology != "Variable" || !d.NormalsCompressed {
		t.Errorf("descriptor = %+v", d)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestDescriptorJSON(t *testing.T) {
	plan, err := Plan(20, 24, DefaultMaxTextureSize, DefaultPadding)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	var b Bounds
	b.Add(math.Vec3{X: -1, Y: 0, Z: 2})
	b.Add(math.Vec3{X: 3, Y: -4, Z: 0})
	d := Emit(plan, TopologyFixed, Options{Unlit: true}, 24, 23.976, b)

	var buf bytes.Buffer
	if err := WriteDescriptor(&buf, d); err != nil {
		t.Fatalf("WriteDescriptor: %v", err)
	}
	for _, field := range []string{`"vertexCount": 20`, `"fps": 24`, `"texWidth": 26`, `"frameStride": 26`, `"storeDelta": true`, `"unlit": true`} {
		if !strings.Contains(buf.String(), field) {
			t.Errorf("JSON missing %s:\n%s", field, buf.String())
		}
	}

	got, err := ReadDescriptor(&buf)
	if err != nil {
		t.Fatalf("ReadDescriptor: %v", err)
	}
	if got != d {
		t.Errorf("ReadDescriptor = %+v, want %+v", got, d)
	}
	if got.BoundsMin != [3]float32{-1, -4, 0} || got.BoundsMax != [3]float32{3, 0, 2} {
		t.Errorf("bounds = %v..%v", got.BoundsMin, got.BoundsMax)
	}
}

func TestDescriptorValidate(t *testing.T) {
	plan, _ := Plan(20, 24, DefaultMaxTextureSize, DefaultPadding)
	good := Emit(plan, TopologyVariable, Options{}, 24, 24, Bounds{})

	tests := []struct {
		name   string
		mutate func(*Descriptor)
	}{
		{"stride", func(d *Descriptor) { d.FrameStride++ }},
		{"width", func(d *Descriptor) { d.TexWidth = 10 }},
		{"height", func(d *Descriptor) { d.TexHeight = 5 }},
		{"padding", func(d *Descriptor) { d.Padding = 1; d.FrameStride = 25; d.TexWidth = 25 }},
		{"topology", func(d *Descriptor) { d.Topology = "Wobbly" }},
		{"store delta", func(d *Descriptor) { d.StoreDelta = true }},
		{"empty", func(d *Descriptor) { d.VertexCount = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := good
			tt.mutate(&d)
			if err := d.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
