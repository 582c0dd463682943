package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/midgard-vat/internal/source"
	"github.com/Faultbox/midgard-vat/pkg/vat"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Window.SampleRate != vat.DefaultSampleRate {
		t.Errorf("expected sample rate %v, got %v", vat.DefaultSampleRate, cfg.Window.SampleRate)
	}
	if cfg.Window.EndTime != 0 {
		t.Errorf("expected end time 0 (source duration), got %v", cfg.Window.EndTime)
	}

	if cfg.Bake.MaxTextureSize != 16384 {
		t.Errorf("expected max texture size 16384, got %d", cfg.Bake.MaxTextureSize)
	}
	if cfg.Bake.Padding != 2 {
		t.Errorf("expected padding 2, got %d", cfg.Bake.Padding)
	}
	if cfg.Bake.CompressNormal || cfg.Bake.Unlit || cfg.Bake.FromWorldSpace {
		t.Errorf("expected encoder flags off by default, got %+v", cfg.Bake)
	}

	if cfg.Export.Dir != "." || !cfg.Export.WriteGLTF || cfg.Export.WriteOBJ {
		t.Errorf("unexpected export defaults %+v", cfg.Export)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}
}

func TestSettings(t *testing.T) {
	cfg := Default()
	cfg.Window.EndTime = 3
	cfg.Bake.CompressNormal = true
	cfg.Bake.Workers = 4
	cfg.Export.Name = "mill"

	s := cfg.Settings()
	if s.Window != cfg.Window {
		t.Errorf("window = %+v", s.Window)
	}
	if want := (vat.Options{CompressNormal: true, Workers: 4}); s.Options != want {
		t.Errorf("options = %+v, want %+v", s.Options, want)
	}
	if s.MaxTextureSize != cfg.Bake.MaxTextureSize || s.Padding != cfg.Bake.Padding {
		t.Errorf("layout settings = %d/%d", s.MaxTextureSize, s.Padding)
	}
	if s.Export != cfg.Export {
		t.Errorf("export = %+v", s.Export)
	}
}

func TestLoadFromFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "vatbake.yaml",
			content: `
source:
  kind: rsm
  path: data/model/windmill.rsm
  grf: data.grf

window:
  start_time: 0.5
  end_time: 2
  sample_rate: 30

bake:
  compress_normal: true
  max_texture_size: 4096

export:
  dir: out
  half_precision: true

logging:
  level: "debug"
  log_file: "bake.log"
`,
		},
		{
			name: "toml",
			file: "vatbake.toml",
			content: `
[source]
kind = "rsm"
path = "data/model/windmill.rsm"
grf = "data.grf"

[window]
start_time = 0.5
end_time = 2.0
sample_rate = 30.0

[bake]
compress_normal = true
max_texture_size = 4096

[export]
dir = "out"
half_precision = true

[logging]
level = "debug"
log_file = "bake.log"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}

			cfg := Default()
			if err := loadFromFile(cfg, path); err != nil {
				t.Fatalf("failed to load config: %v", err)
			}

			want := source.Config{Kind: "rsm", Path: "data/model/windmill.rsm", GRF: "data.grf"}
			if cfg.Source != want {
				t.Errorf("source = %+v, want %+v", cfg.Source, want)
			}
			if cfg.Window != (vat.SampleWindow{StartTime: 0.5, EndTime: 2, SampleRate: 30}) {
				t.Errorf("window = %+v", cfg.Window)
			}
			if !cfg.Bake.CompressNormal || cfg.Bake.MaxTextureSize != 4096 {
				t.Errorf("bake = %+v", cfg.Bake)
			}
			// Unset keys keep their defaults.
			if cfg.Bake.Padding != 2 || !cfg.Export.WriteGLTF {
				t.Errorf("defaults lost: padding %d, gltf %v", cfg.Bake.Padding, cfg.Export.WriteGLTF)
			}
			if cfg.Export.Dir != "out" || !cfg.Export.HalfPrecision {
				t.Errorf("export = %+v", cfg.Export)
			}
			if cfg.Logging.Level != "debug" || cfg.Logging.LogFile != "bake.log" {
				t.Errorf("logging = %+v", cfg.Logging)
			}
			if cfg.Logging.MaxBackups != 3 {
				t.Errorf("expected default max backups 3, got %d", cfg.Logging.MaxBackups)
			}
		})
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tests := map[string]string{
		"invalid.yaml": "bake:\n  padding: not a number\n  invalid syntax here\n",
		"invalid.toml": "[bake]\npadding = \"two\"\n",
	}
	for file, content := range tests {
		path := filepath.Join(t.TempDir(), file)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if err := loadFromFile(Default(), path); err == nil {
			t.Errorf("%s: expected error, got nil", file)
		}
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	err := loadFromFile(Default(), "/nonexistent/path/vatbake.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	t.Setenv("HOME", tmpDir)

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	if err := os.WriteFile("vatbake.toml", []byte("[bake]\npadding = 4\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if path := findConfigFile(); path != "./vatbake.toml" {
		t.Errorf("expected ./vatbake.toml, got %q", path)
	}

	// YAML wins when both exist.
	if err := os.WriteFile("vatbake.yaml", []byte("bake:\n  padding: 4\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if path := findConfigFile(); path != "./vatbake.yaml" {
		t.Errorf("expected ./vatbake.yaml, got %q", path)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		verify func(*testing.T, *Config)
	}{
		{
			name: "debug flag",
			args: []string{"-debug"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
		},
		{
			name: "rsm inside grf",
			args: []string{"-grf", "data.grf", "-rsm", `data\model\windmill.rsm`},
			verify: func(t *testing.T, cfg *Config) {
				want := source.Config{Kind: source.KindRSM, Path: `data\model\windmill.rsm`, GRF: "data.grf"}
				if cfg.Source != want {
					t.Errorf("source = %+v, want %+v", cfg.Source, want)
				}
			},
		},
		{
			name: "gltf sequence",
			args: []string{"-gltf", "frames/*.glb", "-fps", "30"},
			verify: func(t *testing.T, cfg *Config) {
				want := source.Config{Kind: source.KindGLTF, Path: "frames/*.glb", FPS: 30}
				if cfg.Source != want {
					t.Errorf("source = %+v, want %+v", cfg.Source, want)
				}
			},
		},
		{
			name: "window",
			args: []string{"-start", "0", "-end", "1.5", "-rate", "12"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Window != (vat.SampleWindow{StartTime: 0, EndTime: 1.5, SampleRate: 12}) {
					t.Errorf("window = %+v", cfg.Window)
				}
			},
		},
		{
			name: "encoder and export",
			args: []string{"-world", "-compress-normals", "-workers", "2", "-max-size", "2048",
				"-out", "baked", "-name", "mill", "-half", "-obj"},
			verify: func(t *testing.T, cfg *Config) {
				want := BakeConfig{FromWorldSpace: true, CompressNormal: true, Workers: 2, MaxTextureSize: 2048, Padding: 2}
				if cfg.Bake != want {
					t.Errorf("bake = %+v, want %+v", cfg.Bake, want)
				}
				e := cfg.Export
				if e.Dir != "baked" || e.Name != "mill" || !e.HalfPrecision || !e.WriteOBJ || !e.WriteGLTF {
					t.Errorf("export = %+v", e)
				}
			},
		},
		{
			name: "unset flags keep config",
			args: nil,
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Window.SampleRate != vat.DefaultSampleRate || cfg.Bake.MaxTextureSize != vat.DefaultMaxTextureSize {
					t.Errorf("defaults overridden: %+v %+v", cfg.Window, cfg.Bake)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet(tt.name, flag.ContinueOnError)
			flags := RegisterFlags(fs)
			if err := fs.Parse(tt.args); err != nil {
				t.Fatalf("parse: %v", err)
			}

			cfg := Default()
			flags.apply(cfg)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "vatbake.yaml")

	yamlContent := `
window:
  end_time: 4
  sample_rate: 12
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	fs := flag.NewFlagSet("bake", flag.ContinueOnError)
	flags := RegisterFlags(fs)
	if err := fs.Parse([]string{"-config", configPath, "-rate", "60"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(flags)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Rate comes from the flag, not the file
	if cfg.Window.SampleRate != 60 {
		t.Errorf("expected sample rate 60 from flag, got %v", cfg.Window.SampleRate)
	}
	// End time comes from the file
	if cfg.Window.EndTime != 4 {
		t.Errorf("expected end time 4 from file, got %v", cfg.Window.EndTime)
	}
	// Padding keeps its default
	if cfg.Bake.Padding != 2 {
		t.Errorf("expected default padding 2, got %d", cfg.Bake.Padding)
	}
}

func TestSaveTo(t *testing.T) {
	for _, file := range []string{"nested/vatbake.yaml", "nested/vatbake.toml"} {
		t.Run(filepath.Ext(file), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), file)

			cfg := Default()
			cfg.Source = source.Config{Kind: source.KindGLTF, Path: "frames", FPS: 24}
			cfg.Window.EndTime = 2.5
			cfg.Bake.Unlit = true
			if err := cfg.SaveTo(path); err != nil {
				t.Fatalf("SaveTo: %v", err)
			}

			loaded := Default()
			if err := loadFromFile(loaded, path); err != nil {
				t.Fatalf("reload: %v", err)
			}
			if loaded.Source != cfg.Source || loaded.Window != cfg.Window || loaded.Bake != cfg.Bake {
				t.Errorf("reloaded %+v, want %+v", loaded, cfg)
			}
			if loaded.Export != cfg.Export || loaded.Logging != cfg.Logging {
				t.Errorf("reloaded export/logging %+v %+v", loaded.Export, loaded.Logging)
			}
		})
	}
}
