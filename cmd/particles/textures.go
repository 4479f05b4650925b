package main

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/decker502/aloparticles/pkg/render"
)

// textureCache converts loaded textures to ebiten images for the engine.
type textureCache struct {
	loader *render.TextureLoader
	images map[string]*ebiten.Image
	white  *ebiten.Image
}

func newTextureCache(loader *render.TextureLoader) *textureCache {
	white := ebiten.NewImage(1, 1)
	white.Fill(color.White)
	return &textureCache{
		loader: loader,
		images: make(map[string]*ebiten.Image),
		white:  white,
	}
}

// Texture implements engine.TextureManager. Missing textures resolve to nil.
func (tc *textureCache) Texture(name string) any {
	if img, ok := tc.images[name]; ok {
		if img == nil {
			return nil
		}
		return img
	}
	src, err := tc.loader.LoadImage(name)
	if err != nil {
		tc.images[name] = nil
		return nil
	}
	img := ebiten.NewImageFromImage(src)
	tc.images[name] = img
	return img
}

// image returns the ebiten image held by an emitter texture, or a white
// pixel for untextured emitters.
func (tc *textureCache) image(tex any) *ebiten.Image {
	if img, ok := tex.(*ebiten.Image); ok && img != nil {
		return img
	}
	return tc.white
}
