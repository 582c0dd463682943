package main

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"
)

func TestRunReturnsErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "broken_meta.json")
	if err := os.WriteFile(garbage, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		args  []string
		usage bool
	}{
		{"no command", nil, true},
		{"unknown command", []string{"frobnicate"}, false},
		{"layout missing frames", []string{"layout", "20"}, true},
		{"layout bad vertex count", []string{"layout", "many", "24"}, false},
		{"layout too large", []string{"layout", "-max-size", "8", "100", "100"}, false},
		{"info missing arg", []string{"info"}, true},
		{"info missing file", []string{"info", filepath.Join(dir, "absent_meta.json")}, false},
		{"info garbage", []string{"info", garbage}, false},
		{"inspect missing arg", []string{"inspect"}, true},
		{"models missing arg", []string{"models"}, true},
		{"bake missing model", []string{"bake", "-rsm", filepath.Join(dir, "absent.rsm")}, false},
		{"analyze bad flag", []string{"analyze", "-no-such-flag"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(tt.args)
			if err == nil {
				t.Fatal("expected error")
			}
			var u usageError
			if got := errors.As(err, &u); got != tt.usage {
				t.Errorf("usage error = %v, want %v (%v)", got, tt.usage, err)
			}
		})
	}
}

func TestRunLayout(t *testing.T) {
	if err := run([]string{"layout", "20", "24"}); err != nil {
		t.Fatalf("layout: %v", err)
	}
}

func TestRunHelp(t *testing.T) {
	if err := run([]string{"help"}); err != nil {
		t.Errorf("help: %v", err)
	}
	if err := run([]string{"layout", "-h"}); !errors.Is(err, flag.ErrHelp) {
		t.Errorf("layout -h = %v, want flag.ErrHelp", err)
	}
}

func TestRunConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vatbake.yaml")

	if err := run([]string{"config", path}); err != nil {
		t.Fatalf("config: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if err := run([]string{"config", path}); err == nil {
		t.Error("expected error when the config file exists")
	}
}
