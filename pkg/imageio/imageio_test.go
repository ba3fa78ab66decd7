package imageio

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"path/filepath"
	"testing"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 100, 255})
		}
	}
	return img
}

func TestEncodeJPEG(t *testing.T) {
	data, err := EncodeJPEG(testImage(64, 48), 90)
	if err != nil {
		t.Fatalf("EncodeJPEG failed: %v", err)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("encoded bytes are not valid JPEG: %v", err)
	}
	if decoded.Bounds().Dx() != 64 || decoded.Bounds().Dy() != 48 {
		t.Errorf("decoded size %dx%d, want 64x48", decoded.Bounds().Dx(), decoded.Bounds().Dy())
	}
}

func TestEncodeJPEGBase64(t *testing.T) {
	b64, err := EncodeJPEGBase64(testImage(32, 32), 85)
	if err != nil {
		t.Fatalf("EncodeJPEGBase64 failed: %v", err)
	}

	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("output is not valid base64: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("decoded payload is not valid JPEG: %v", err)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	img := testImage(80, 60)

	for _, format := range []string{"jpg", "png"} {
		path := filepath.Join(dir, "out."+format)
		if err := Save(img, path, format, 90, false); err != nil {
			t.Fatalf("Save %s failed: %v", format, err)
		}

		loaded, err := Load(path)
		if err != nil {
			t.Fatalf("Load %s failed: %v", format, err)
		}
		if loaded.Bounds().Dx() != 80 || loaded.Bounds().Dy() != 60 {
			t.Errorf("%s round trip size %dx%d, want 80x60",
				format, loaded.Bounds().Dx(), loaded.Bounds().Dy())
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.jpg")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFromURLRejectsBadScheme(t *testing.T) {
	if _, err := LoadFromURL("ftp://example.com/a.jpg"); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}
