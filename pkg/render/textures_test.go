package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"testing"

	"github.com/decker502/aloparticles/internal/stream"
)

type fakeFiles struct {
	data  map[string][]byte
	opens int
}

func (f *fakeFiles) Open(path string) (stream.File, error) {
	f.opens++
	if b, ok := f.data[path]; ok {
		return stream.NewMemoryFile(b), nil
	}
	return nil, fs.ErrNotExist
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// TestTextureLoader_Fallback tests that an undecodable texture name falls
// back to a PNG export.
func TestTextureLoader_Fallback(t *testing.T) {
	files := &fakeFiles{data: map[string][]byte{
		TexturePath + "fire.tga":  []byte("not an image"),
		TexturePath + "fire.png":  pngBytes(t, 4, 2),
		TexturePath + "smoke.png": pngBytes(t, 8, 8),
	}}
	tl := NewTextureLoader(files)

	img, err := tl.LoadImage("fire.tga")
	if err != nil {
		t.Fatalf("LoadImage(fire.tga) error: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
		t.Errorf("bounds = %v, want 4x2", b)
	}

	opens := files.opens
	if again, err := tl.LoadImage("FIRE.TGA"); err != nil || again != img {
		t.Errorf("cached LoadImage returned %v, %v", again, err)
	}
	if files.opens != opens {
		t.Error("cached texture opened again")
	}

	if _, err := tl.LoadImage("smoke.dds"); err != nil {
		t.Errorf("LoadImage(smoke.dds) error: %v", err)
	}
}

// TestTextureLoader_Missing tests that missing textures fail once and stay
// failed without touching the files again.
func TestTextureLoader_Missing(t *testing.T) {
	files := &fakeFiles{data: map[string][]byte{}}
	tl := NewTextureLoader(files)

	_, err := tl.LoadImage("gone.tga")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("LoadImage(gone.tga) error = %v, want fs.ErrNotExist", err)
	}
	opens := files.opens
	if _, err := tl.LoadImage("gone.tga"); err == nil {
		t.Error("second LoadImage(gone.tga) error = nil")
	}
	if files.opens != opens {
		t.Error("missing texture looked up again")
	}
}
