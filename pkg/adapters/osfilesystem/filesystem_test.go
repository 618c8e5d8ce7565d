package osfilesystem

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSystem_WriteCreatesParents(t *testing.T) {
	fs := New()
	path := filepath.Join(t.TempDir(), "debug", "motion", "frame-000001.png")

	if err := fs.WriteFile(path, []byte("png")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := fs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "png" {
		t.Errorf("expected %q, got %q", "png", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("expected mode 0644, got %v", info.Mode().Perm())
	}
}

func TestFileSystem_Open(t *testing.T) {
	fs := New()
	path := filepath.Join(t.TempDir(), "clip.y4m")
	if err := fs.WriteFile(path, []byte("YUV4MPEG2 W8 H8\n")); err != nil {
		t.Fatal(err)
	}

	rc, err := fs.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "YUV4MPEG2 W8 H8\n" {
		t.Errorf("unexpected content %q", data)
	}

	if _, err := fs.Open(filepath.Join(t.TempDir(), "missing.y4m")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFileSystem_Exists(t *testing.T) {
	fs := New()
	dir := t.TempDir()
	file := filepath.Join(dir, "a.png")
	if err := fs.WriteFile(file, nil); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"file", file, true},
		{"directory", dir, true},
		{"missing", filepath.Join(dir, "b.png"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fs.Exists(tt.path)
			if err != nil {
				t.Fatalf("Exists: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFileSystem_Glob(t *testing.T) {
	fs := New()
	dir := t.TempDir()
	for _, name := range []string{"010.png", "002.png", "001.jpg", "notes.txt"} {
		if err := fs.WriteFile(filepath.Join(dir, name), nil); err != nil {
			t.Fatal(err)
		}
	}

	got, err := fs.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	want := []string{filepath.Join(dir, "002.png"), filepath.Join(dir, "010.png")}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("match %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	if _, err := fs.Glob("[unterminated"); err == nil {
		t.Error("expected error for bad pattern")
	}
}

func TestFileSystem_MkdirAll(t *testing.T) {
	fs := New()
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := fs.MkdirAll(dir); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if ok, _ := fs.Exists(dir); !ok {
		t.Error("expected directory to exist")
	}
}
