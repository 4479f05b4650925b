package engine

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/decker502/aloparticles/internal/particle"
)

// Particle is a single live particle. Its position is absolute; a lifetime
// child emitter uses it as parent.
type Particle struct {
	object
	block *particleBlock
	index int // slot index in the owning emitter

	initialPosition     r3.Vec
	systemSpawnPosition r3.Vec
	parentSpawnPosition r3.Vec
	initialSpeed        r3.Vec
	acceleration        r3.Vec
	baseColor           [4]float32
	baseScale           float32
	rotationDirection   float32
	baseRotation        float32

	// positionTime and bounceTime are relative to spawnTime.
	positionTime float64
	bounceTime   float64
	spawnTime    float64
	deathTime    float64

	child   *EmitterInstance
	cursors [particle.NumTracks]particle.Cursor

	verticesIndex int
	indicesIndex  int
}

// SpawnTime returns the time the particle was last spawned or reset.
func (p *Particle) SpawnTime() float64 { return p.spawnTime }

// DeathTime returns the time the particle dies.
func (p *Particle) DeathTime() float64 { return p.deathTime }

// Child returns the lifetime child emitter following the particle, if any.
func (p *Particle) Child() *EmitterInstance { return p.child }

// relTime converts seconds since spawn into percent of the particle's life.
func (p *Particle) relTime(t float64) float32 {
	life := p.deathTime - p.spawnTime
	if !(life > 0) {
		return particle.CurveEnd
	}
	return float32(t * 100 / life)
}
