package engine

import (
	"image/color"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/decker502/aloparticles/internal/particle"
)

const (
	verticesPerParticle = 4
	indicesPerParticle  = 6
)

// Vertex is one corner of a particle quad in world space.
type Vertex struct {
	Position r3.Vec
	Normal   r3.Vec
	U, V     float32
	Color    color.NRGBA
}

// ColorOp is how the texture colour is combined with the vertex colour.
type ColorOp int

const (
	OpModulate ColorOp = iota
	OpAdd
	OpModulate2x
)

// BlendFactor is a framebuffer blend factor.
type BlendFactor int

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcColor
	BlendSrcAlpha
	BlendInvSrcAlpha
)

// BlendState is the fixed-function render state of an emitter.
type BlendState struct {
	ColorOp   ColorOp
	SrcBlend  BlendFactor
	DestBlend BlendFactor
}

// blendStateFor maps an emitter blend mode to its render state. Unlisted
// modes draw opaque.
func blendStateFor(mode uint32) BlendState {
	switch mode {
	case particle.BlendAdditive, particle.BlendDepthAdditive:
		return BlendState{OpModulate, BlendOne, BlendOne}
	case particle.BlendTransparent, particle.BlendDepthTransparent:
		return BlendState{OpModulate, BlendSrcAlpha, BlendInvSrcAlpha}
	case particle.BlendInverse, particle.BlendDepthInverse:
		return BlendState{OpAdd, BlendZero, BlendSrcColor}
	case particle.BlendDiffuseTransparent:
		return BlendState{OpModulate2x, BlendSrcAlpha, BlendInvSrcAlpha}
	}
	return BlendState{OpModulate, BlendOne, BlendZero}
}

// isBumpMode reports whether the vertex colour of mode carries a tangent
// instead of a colour.
func isBumpMode(mode uint32) bool {
	return mode == particle.BlendBump || mode == particle.BlendDecalBump
}

// colorValue converts a floating point colour to 8 bits per channel.
func colorValue(c [4]float32) color.NRGBA {
	return color.NRGBA{R: channel(c[0]), G: channel(c[1]), B: channel(c[2]), A: channel(c[3])}
}

func channel(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.Round(float64(v) * 255))
}
