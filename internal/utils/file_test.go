package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsImageFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"photo.jpg", true},
		{"photo.JPEG", true},
		{"scan.webp", true},
		{"frame.png", true},
		{"report.pdf", false},
		{"noext", false},
	}

	for _, tt := range tests {
		if got := IsImageFile(tt.path); got != tt.want {
			t.Errorf("IsImageFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := EnsureDir(sub); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}

	for _, name := range []string{"a.jpg", "b.txt", filepath.Join("sub", "c.png")} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := ListImageFiles(dir)
	if err != nil {
		t.Fatalf("ListImageFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("found %d image files, want 2: %v", len(files), files)
	}
}

func TestFileAndDirExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.jpg")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !FileExists(file) {
		t.Error("FileExists should be true for an existing file")
	}
	if FileExists(dir) {
		t.Error("FileExists should be false for a directory")
	}
	if !DirExists(dir) {
		t.Error("DirExists should be true for an existing directory")
	}
	if DirExists(file) {
		t.Error("DirExists should be false for a file")
	}
}
