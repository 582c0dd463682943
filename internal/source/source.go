// Package source provides the geometry sources a bake can sample: RSM
// models on disk or inside a GRF archive, and glTF frame sequences.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/midgard-vat/pkg/vat"
)

// Source kinds.
const (
	KindRSM  = "rsm"
	KindGLTF = "gltf"
)

// Config selects and opens a source.
type Config struct {
	Kind string `yaml:"kind" toml:"kind"`
	// Path is an RSM file, an entry inside GRF, or a glTF directory or glob.
	Path string `yaml:"path" toml:"path"`
	// GRF is the archive holding Path, if any. Several archives are joined
	// with the OS path list separator.
	GRF string `yaml:"grf" toml:"grf"`
	// FPS is the frame rate of a glTF sequence.
	FPS float64 `yaml:"fps" toml:"fps"`
}

// Source is a named vat.Source.
type Source interface {
	vat.Source
	Name() string
}

// Open opens the source described by cfg. An empty Kind is inferred from
// the path.
func Open(cfg Config) (Source, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: no source path configured", vat.ErrNoSource)
	}

	kind := cfg.Kind
	if kind == "" {
		kind = inferKind(cfg.Path)
	}

	switch kind {
	case KindRSM:
		if cfg.GRF != "" {
			return OpenRSMFromGRF(cfg.GRF, cfg.Path)
		}
		return OpenRSM(cfg.Path)
	case KindGLTF:
		return OpenGLTFSequence(cfg.Path, cfg.FPS)
	default:
		return nil, fmt.Errorf("unknown source kind %q", kind)
	}
}

func inferKind(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".rsm") {
		return KindRSM
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return KindGLTF
	}
	if isGLTF(path) || strings.ContainsAny(path, "*?[") {
		return KindGLTF
	}
	return ""
}
