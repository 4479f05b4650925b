// Package engine simulates particle system definitions.
//
// An Engine owns a list of ParticleSystemInstance values. Each instance runs
// one EmitterInstance per live emitter; emitters own their particles and
// produce a vertex and index buffer every Update. Child emitters are attached
// to particles and follow them until the particle dies.
//
// The engine is single-threaded: all methods must be called from the same
// goroutine, typically the render loop.
package engine

import (
	"image/color"
	"log"
	"math"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/decker502/aloparticles/internal/particle"
)

// TextureManager resolves texture file names for emitters. A nil result means
// the texture is unavailable and the emitter draws untextured.
type TextureManager interface {
	Texture(name string) any
}

// Camera is a right-handed look-at camera.
type Camera struct {
	Position r3.Vec
	Target   r3.Vec
	Up       r3.Vec
}

// DefaultCamera is the camera a new engine starts with.
var DefaultCamera = Camera{
	Position: r3.Vec{X: 0, Y: -250, Z: 125},
	Target:   r3.Vec{},
	Up:       r3.Vec{Z: 1},
}

// DefaultBackground is the clear colour of a new engine.
var DefaultBackground = color.RGBA{R: 0x14, G: 0x08, B: 0x34, A: 0xFF}

// Engine runs particle system instances.
type Engine struct {
	camera Camera
	// View space axes: X right, Y up, Z towards the viewer.
	viewX, viewY, viewZ r3.Vec

	gravity    r3.Vec
	wind       r3.Vec
	ground     bool
	heatDebug  bool
	background color.RGBA

	textures TextureManager
	rng      *rand.Rand

	instances    []*ParticleSystemInstance
	numEmitters  int
	numParticles int
	now          float64

	// kills is scratch space for emitter updates, reused across frames.
	kills []int
}

// New creates an engine. textures may be nil; rng must not be.
func New(textures TextureManager, rng *rand.Rand) *Engine {
	e := &Engine{
		gravity:    r3.Vec{Z: -1},
		ground:     true,
		background: DefaultBackground,
		textures:   textures,
		rng:        rng,
	}
	e.SetCamera(DefaultCamera)
	return e
}

// Update advances every instance to now, in seconds.
func (e *Engine) Update(now float64) {
	e.now = now
	for _, inst := range slices.Clone(e.instances) {
		if inst.removed {
			continue
		}
		e.numParticles += inst.Update(now)
	}
}

// Now returns the time of the last Update.
func (e *Engine) Now() float64 { return e.now }

// SpawnParticleSystem starts an instance of def at the time of the last
// Update. parent may be nil for a system placed in world space; see
// SetPosition.
func (e *Engine) SpawnParticleSystem(def *particle.ParticleSystemDef, parent Positioner) *ParticleSystemInstance {
	inst := newParticleSystemInstance(e, def, parent, e.now)
	e.instances = append(e.instances, inst)
	return inst
}

// KillParticleSystem ends an instance. If its definition leaves particles
// behind, the instance stops spawning and is detached so the remaining
// particles finish their lives; otherwise it is destroyed at once.
func (e *Engine) KillParticleSystem(inst *ParticleSystemInstance) {
	if inst.removed {
		return
	}
	if inst.def.LeaveParticles {
		inst.StopSpawning()
		inst.Detach()
		return
	}
	e.destroyInstance(inst)
}

// DetachParticleSystem detaches an instance from its parent. The instance
// keeps running at its last position.
func (e *Engine) DetachParticleSystem(inst *ParticleSystemInstance) {
	inst.Detach()
}

// Clear destroys every instance.
func (e *Engine) Clear() {
	for _, inst := range e.instances {
		inst.destroy()
	}
	e.instances = nil
	e.numEmitters = 0
	e.numParticles = 0
}

// OnParticleSystemChanged tells every live emitter that its definition was
// edited. track is the edited curve slot, or -1 for any other property.
func (e *Engine) OnParticleSystemChanged(track int) {
	for _, inst := range e.instances {
		inst.OnParticleSystemChanged(track)
	}
}

// Instances returns the live instances.
func (e *Engine) Instances() []*ParticleSystemInstance { return e.instances }

// NumEmitters returns the number of live emitter instances.
func (e *Engine) NumEmitters() int { return e.numEmitters }

// NumParticles returns the number of live particles.
func (e *Engine) NumParticles() int { return e.numParticles }

func (e *Engine) onEmitterCreated(numParticles int) {
	e.numEmitters++
	e.numParticles += numParticles
}

func (e *Engine) onEmitterDestroyed(numParticles int) {
	e.numEmitters--
	e.numParticles -= numParticles
}

func (e *Engine) destroyInstance(inst *ParticleSystemInstance) {
	inst.destroy()
	e.removeInstance(inst)
}

func (e *Engine) removeInstance(inst *ParticleSystemInstance) {
	inst.removed = true
	e.instances = slices.DeleteFunc(e.instances, func(i *ParticleSystemInstance) bool { return i == inst })
}

// SetCamera moves the camera and recomputes the view basis.
func (e *Engine) SetCamera(c Camera) {
	e.camera = c
	e.viewZ = unit(r3.Sub(c.Position, c.Target))
	e.viewX = unit(r3.Cross(c.Up, e.viewZ))
	e.viewY = r3.Cross(e.viewZ, e.viewX)
}

// Camera returns the current camera.
func (e *Engine) Camera() Camera { return e.camera }

// ViewRotate transforms a world direction into view space.
func (e *Engine) ViewRotate(v r3.Vec) r3.Vec {
	return r3.Vec{X: r3.Dot(e.viewX, v), Y: r3.Dot(e.viewY, v), Z: r3.Dot(e.viewZ, v)}
}

// Billboard transforms a view space direction back into world space, so a
// quad in the XY plane faces the camera.
func (e *Engine) Billboard(v r3.Vec) r3.Vec {
	return r3.Add(r3.Add(r3.Scale(v.X, e.viewX), r3.Scale(v.Y, e.viewY)), r3.Scale(v.Z, e.viewZ))
}

// ViewTransform transforms a world position into view space.
func (e *Engine) ViewTransform(p r3.Vec) r3.Vec {
	return e.ViewRotate(r3.Sub(p, e.camera.Position))
}

// SetGravity sets the gravity direction. The vector is normalised; each
// emitter scales it by its own gravity factor.
func (e *Engine) SetGravity(g r3.Vec) { e.gravity = unit(g) }

// Gravity returns the normalised gravity direction.
func (e *Engine) Gravity() r3.Vec { return e.gravity }

// SetWind sets the wind velocity added to wind-affected particles.
func (e *Engine) SetWind(w r3.Vec) { e.wind = w }

// Wind returns the wind velocity.
func (e *Engine) Wind() r3.Vec { return e.wind }

// SetGround toggles drawing of the ground plane.
func (e *Engine) SetGround(enable bool) { e.ground = enable }

// Ground reports whether the ground plane is drawn.
func (e *Engine) Ground() bool { return e.ground }

// SetBackground sets the clear colour.
func (e *Engine) SetBackground(c color.RGBA) { e.background = c }

// Background returns the clear colour.
func (e *Engine) Background() color.RGBA { return e.background }

// SetHeatDebug draws heat particles as ordinary particles when enabled.
func (e *Engine) SetHeatDebug(debug bool) {
	if debug != e.heatDebug {
		log.Printf("[Engine] Heat debug: %v", debug)
	}
	e.heatDebug = debug
}

// HeatDebug reports whether heat particles are drawn as ordinary particles.
func (e *Engine) HeatDebug() bool { return e.heatDebug }

func (e *Engine) texture(name string) any {
	if e.textures == nil || name == "" {
		return nil
	}
	return e.textures.Texture(name)
}

// random returns a uniform value in [min, max).
func (e *Engine) random(min, max float32) float32 {
	return particle.RandomInRange(e.rng, min, max)
}

// unit returns v scaled to length 1, or the zero vector if v has no length.
func unit(v r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n == 0 || math.IsNaN(n) {
		return r3.Vec{}
	}
	return r3.Scale(1/n, v)
}
