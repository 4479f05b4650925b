package render

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"path"
	"strings"

	_ "golang.org/x/image/bmp"

	"github.com/decker502/aloparticles/internal/stream"
)

// TexturePath is the directory textures are looked up in.
const TexturePath = "Data/Art/Textures/"

// Opener opens asset files. *megafile.FileManager implements it.
type Opener interface {
	Open(path string) (stream.File, error)
}

// TextureLoader decodes and caches texture images. Emitters name their
// textures with a .tga or .dds extension; when no decoder accepts the named
// file, a .png, .jpg or .bmp export of the same name is tried instead.
type TextureLoader struct {
	files   Opener
	prefix  string
	cache   map[string]image.Image
	missing map[string]error
}

// NewTextureLoader creates a loader reading from files under TexturePath.
func NewTextureLoader(files Opener) *TextureLoader {
	return &TextureLoader{
		files:   files,
		prefix:  TexturePath,
		cache:   make(map[string]image.Image),
		missing: make(map[string]error),
	}
}

// LoadImage returns the decoded texture called name. Failures are cached and
// logged once.
func (tl *TextureLoader) LoadImage(name string) (image.Image, error) {
	key := strings.ToUpper(name)
	if img, ok := tl.cache[key]; ok {
		return img, nil
	}
	if err, ok := tl.missing[key]; ok {
		return nil, err
	}

	img, err := tl.load(name)
	if err != nil {
		log.Printf("[TextureLoader] Warning: %v", err)
		tl.missing[key] = err
		return nil, err
	}
	tl.cache[key] = img
	return img, nil
}

func (tl *TextureLoader) load(name string) (image.Image, error) {
	base := strings.TrimSuffix(name, path.Ext(name))
	candidates := []string{name, base + ".png", base + ".jpg", base + ".bmp"}

	var firstErr error
	for _, c := range candidates {
		img, err := tl.decode(tl.prefix + c)
		if err == nil {
			return img, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("texture %s: %w", name, firstErr)
}

func (tl *TextureLoader) decode(name string) (image.Image, error) {
	f, err := tl.files.Open(name)
	if err != nil {
		return nil, err
	}
	if c, ok := f.(io.Closer); ok {
		defer c.Close()
	}
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return img, nil
}
