package utils

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestGetFileExtension(t *testing.T) {
	tests := map[string]string{
		"logo.PNG":         "png",
		"dir/photo.jpeg":   "jpeg",
		"archive.tar.gz":   "gz",
		"no_extension":     "",
		"https://x.io/a.w": "w",
	}
	for in, want := range tests {
		if got := GetFileExtension(in); got != want {
			t.Errorf("GetFileExtension(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsImageFile(t *testing.T) {
	for _, name := range []string{"a.png", "b.JPG", "c.webp"} {
		if !IsImageFile(name) {
			t.Errorf("%s should be an image", name)
		}
	}
	for _, name := range []string{"a.txt", "b", "c.svg"} {
		if IsImageFile(name) {
			t.Errorf("%s should not be an image", name)
		}
	}
}

func TestOutputDirFor(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"shots/landing page.png", filepath.Join("out", "landing page")},
		{"a:b.jpg", filepath.Join("out", "a_b")},
		{"...png", filepath.Join("out", "image")},
	}
	for _, tt := range tests {
		if got := OutputDirFor(tt.input, "out"); got != tt.want {
			t.Errorf("OutputDirFor(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "notes.txt", filepath.Join("sub", "b.jpg")} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := ListImageFiles(dir)
	if err != nil {
		t.Fatalf("ListImageFiles failed: %v", err)
	}
	sort.Strings(files)
	if len(files) != 2 || files[0] != filepath.Join(dir, "a.png") || files[1] != filepath.Join(dir, "sub", "b.jpg") {
		t.Errorf("Unexpected files %v", files)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.png")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if !FileExists(file) || FileExists(dir) || FileExists(filepath.Join(dir, "missing")) {
		t.Error("FileExists returned wrong result")
	}
	if !DirExists(dir) || DirExists(file) {
		t.Error("DirExists returned wrong result")
	}

	nested := filepath.Join(dir, "a", "b")
	if err := EnsureDir(nested); err != nil || !DirExists(nested) {
		t.Errorf("EnsureDir failed: %v", err)
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := map[int64]string{
		512:      "512 B",
		1536:     "1.5 KB",
		10 << 20: "10.0 MB",
	}
	for in, want := range tests {
		if got := FormatFileSize(in); got != want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", in, got, want)
		}
	}
}
