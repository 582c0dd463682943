// Package export writes bake artifacts: the position and normal textures,
// the basis mesh and the descriptor. Files are staged and committed
// together, so a failed export leaves nothing behind.
package export

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/Faultbox/midgard-vat/pkg/vat"
)

// Options control which artifacts are written and where.
type Options struct {
	Dir           string `yaml:"dir" toml:"dir"`
	Name          string `yaml:"name" toml:"name"`
	HalfPrecision bool   `yaml:"half_precision" toml:"half_precision"`
	WriteGLTF     bool   `yaml:"write_gltf" toml:"write_gltf"`
	WriteOBJ      bool   `yaml:"write_obj" toml:"write_obj"`
}

// Bundle is everything one bake produced.
type Bundle struct {
	Encoding   *vat.Encoding
	Basis      *vat.BasisBuffer
	Plan       vat.LayoutPlan
	Descriptor vat.Descriptor
}

// Artifacts are the final paths of written files. Empty fields were not
// written.
type Artifacts struct {
	Positions  string
	Normals    string
	Basis      string
	OBJ        string
	Descriptor string
}

// Paths lists the written files.
func (a Artifacts) Paths() []string {
	var out []string
	for _, p := range []string{a.Positions, a.Normals, a.Basis, a.OBJ, a.Descriptor} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

type stagedFile struct {
	name  string
	field *string
	write func(path string) error
}

// Write stages every artifact in a temporary directory inside opts.Dir and
// moves them into place once all of them were written. If moving fails,
// the directory is left as it was before the call.
func Write(b Bundle, opts Options) (Artifacts, error) {
	var out Artifacts
	if b.Encoding == nil || b.Basis == nil {
		return out, errors.New("export: incomplete bake result")
	}
	if opts.Name == "" {
		return out, errors.New("export: no artifact name")
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return out, errors.Wrapf(err, "creating export dir %s", dir)
	}

	files := plan(b, opts, &out)

	stage, err := os.MkdirTemp(dir, ".vatbake-stage-")
	if err != nil {
		return out, errors.Wrap(err, "creating staging dir")
	}
	defer os.RemoveAll(stage)

	for _, f := range files {
		if err := f.write(filepath.Join(stage, f.name)); err != nil {
			return Artifacts{}, errors.Wrapf(err, "writing %s", f.name)
		}
	}

	// Artifacts of an earlier bake with the same name are moved into the
	// staging dir first, so a failed commit can put them back.
	var committed []commit
	rollback := func() {
		for i := len(committed) - 1; i >= 0; i-- {
			committed[i].undo()
		}
	}
	for _, f := range files {
		c := commit{final: filepath.Join(dir, f.name)}
		if info, err := os.Lstat(c.final); err == nil && info.Mode().IsRegular() {
			c.backup = filepath.Join(stage, f.name+".prev")
			if err := os.Rename(c.final, c.backup); err != nil {
				rollback()
				return Artifacts{}, errors.Wrapf(err, "backing up %s", c.final)
			}
		}
		if err := os.Rename(filepath.Join(stage, f.name), c.final); err != nil {
			if c.backup != "" {
				os.Rename(c.backup, c.final)
			}
			rollback()
			return Artifacts{}, errors.Wrapf(err, "committing %s", f.name)
		}
		committed = append(committed, c)
		*f.field = c.final
	}
	return out, nil
}

// commit is one file moved into place, with the file it replaced.
type commit struct {
	final  string
	backup string
}

func (c commit) undo() {
	os.Remove(c.final)
	if c.backup != "" {
		os.Rename(c.backup, c.final)
	}
}

func plan(b Bundle, opts Options, out *Artifacts) []stagedFile {
	enc := b.Encoding
	files := []stagedFile{
		{opts.Name + "_pos.exr", &out.Positions, func(p string) error {
			return writeFloatEXR(p, enc.Positions, opts.HalfPrecision)
		}},
	}
	switch {
	case enc.PackedNormals != nil:
		files = append(files, stagedFile{opts.Name + "_nrm.png", &out.Normals, func(p string) error {
			return writePNG(p, enc.PackedNormals)
		}})
	case enc.Normals != nil:
		files = append(files, stagedFile{opts.Name + "_nrm.exr", &out.Normals, func(p string) error {
			return writeFloatEXR(p, enc.Normals, opts.HalfPrecision)
		}})
	}
	if opts.WriteGLTF {
		files = append(files, stagedFile{opts.Name + "_basis.glb", &out.Basis, func(p string) error {
			return writeBasisGLB(p, opts.Name, b.Basis, b.Plan)
		}})
	}
	if opts.WriteOBJ {
		files = append(files, stagedFile{opts.Name + "_basis.obj", &out.OBJ, func(p string) error {
			return writeBasisOBJ(p, opts.Name, b.Basis, b.Plan)
		}})
	}
	files = append(files, stagedFile{opts.Name + "_meta.json", &out.Descriptor, func(p string) error {
		return writeDescriptor(p, b.Descriptor)
	}})
	return files
}

func writeDescriptor(path string, d vat.Descriptor) error {
	return createFile(path, func(f *os.File) error {
		return vat.WriteDescriptor(f, d)
	})
}

// createFile creates path, runs write and closes it, reporting the first error.
func createFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
