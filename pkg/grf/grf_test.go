package grf

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func createTestGRF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.grf")
	files := []File{
		{"data/test.txt", []byte("Hello, GRF!")},
		{`data\model\프론테라\분수.rsm`, append([]byte("GRSM"), make([]byte, 64)...)},
		{"data/subfolder/nested/file.txt", []byte("Nested file content")},
	}
	if err := Create(path, files); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return path
}

func TestOpenAndList(t *testing.T) {
	archive, err := Open(createTestGRF(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer archive.Close()

	want := []string{
		"data/model/프론테라/분수.rsm",
		"data/subfolder/nested/file.txt",
		"data/test.txt",
	}
	got := archive.List()
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestContains(t *testing.T) {
	archive, err := Open(createTestGRF(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer archive.Close()

	tests := []struct {
		path string
		want bool
	}{
		{"data/test.txt", true},
		{`DATA\TEST.TXT`, true},
		{`data\model\프론테라\분수.RSM`, true},
		{"nonexistent/file/path.txt", false},
	}
	for _, tt := range tests {
		if got := archive.Contains(tt.path); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestRead(t *testing.T) {
	archive, err := Open(createTestGRF(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer archive.Close()

	data, err := archive.Read("data/subfolder/nested/file.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "Nested file content" {
		t.Errorf("Read = %q", data)
	}

	model, err := archive.Read("data/model/프론테라/분수.rsm")
	if err != nil {
		t.Fatalf("Read model: %v", err)
	}
	if len(model) != 68 || string(model[:4]) != "GRSM" {
		t.Errorf("model = %d bytes, magic %q", len(model), model[:4])
	}

	if _, err := archive.Read("missing.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing file: err = %v, want ErrNotFound", err)
	}
}

func TestOpenInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.grf")
	if err := os.WriteFile(path, make([]byte, 64), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("err = %v, want ErrInvalidMagic", err)
	}
	if _, err := Open(filepath.Join(t.TempDir(), "missing.grf")); err == nil {
		t.Error("expected error for missing archive")
	}
}
