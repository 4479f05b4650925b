// Package particle provides the authored particle system definitions and their
// binary persistence.
//
// A ParticleSystemDef is an ordered list of EmitterDef values. Each emitter
// owns three random distributions (speed, lifetime, position) and seven
// keyframe curves (red, green, blue, alpha, scale, texture index, rotation
// speed). Emitters may name a child spawned on particle death and a child
// spawned for the lifetime of each particle.
package particle

import (
	"errors"
	"fmt"

	"github.com/decker502/aloparticles/internal/chunk"
)

// None marks an absent emitter link.
const None = -1

// Distribution slots.
const (
	GroupSpeed    = 0
	GroupLifetime = 1 // derived from Lifetime and RandomLifetimePerc on save
	GroupPosition = 2
	NumGroups     = 3
)

// Curve slots.
const (
	TrackRed           = 0
	TrackGreen         = 1
	TrackBlue          = 2
	TrackAlpha         = 3
	TrackScale         = 4
	TrackIndex         = 5
	TrackRotationSpeed = 6
	NumTracks          = 7

	// NumChannelTracks is the number of colour tracks that are stored
	// quantised to 1/255 and may share storage.
	NumChannelTracks = 4
)

// Blend modes.
const (
	BlendNone = iota
	BlendAdditive
	BlendTransparent
	BlendInverse
	BlendDepthAdditive
	BlendDepthTransparent
	BlendDepthInverse
	BlendDiffuseTransparent
	BlendStencilDarken
	BlendStencilDarkenBlur
	BlendHeat
	BlendBump
	BlendDecalBump
	BlendScanlines
	NumBlendModes
)

// Ground behaviour.
const (
	GroundNone = iota
	GroundDisappear
	GroundBounce
	GroundStick
)

// Emit-from-mesh modes. Stored and round-tripped; meshes are not simulated.
const (
	EmitDisable = iota
	EmitRandomVertex
	EmitRandomMesh
	EmitEveryVertex
)

var (
	// ErrMalformed is returned for structurally invalid documents.
	ErrMalformed = chunk.ErrMalformed

	// ErrUnknownField is returned when an emitter property block contains an
	// unrecognised mini chunk. It also matches ErrMalformed.
	ErrUnknownField = errors.New("particle: unknown field")

	// ErrWrongFormat is returned when the root chunk is not a particle system.
	ErrWrongFormat = errors.New("particle: not a particle system file")
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
