package engine

import (
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/decker502/aloparticles/internal/particle"
)

// ParticleSystemInstance is a running particle system. It is positioned
// relative to its parent, if any, and owns every emitter spawned for it,
// including the children spawned by its particles.
type ParticleSystemInstance struct {
	object
	engine    *Engine
	def       *particle.ParticleSystemDef
	emitters  []*EmitterInstance
	zDistance float64
	removed   bool
}

func newParticleSystemInstance(e *Engine, def *particle.ParticleSystemDef, parent Positioner, now float64) *ParticleSystemInstance {
	s := &ParticleSystemInstance{
		object: object{parent: parent},
		engine: e,
		def:    def,
	}
	for i, d := range def.Emitters {
		if d.IsRoot() {
			s.SpawnEmitter(now, i, s)
		}
	}
	return s
}

// SpawnEmitter starts an instance of the emitter with index defIndex,
// attached to parent. It returns nil if the index is out of range.
func (s *ParticleSystemInstance) SpawnEmitter(now float64, defIndex int, parent Positioner) *EmitterInstance {
	def := s.def.Emitter(defIndex)
	if def == nil {
		return nil
	}
	em, n := newEmitterInstance(s, def, parent, now)
	s.emitters = append(s.emitters, em)
	s.engine.onEmitterCreated(n)
	return em
}

// Update advances every emitter to now and returns the change in the number
// of live particles. Emitters spawned during the update start moving on the
// next one. Emitters that are done and empty are destroyed, and a detached
// instance without emitters removes itself from the engine.
func (s *ParticleSystemInstance) Update(now float64) int {
	s.zDistance = s.engine.ViewTransform(s.Position()).Z

	delta := 0
	n := len(s.emitters)
	for i := 0; i < n; i++ {
		if em := s.emitters[i]; !em.destroyed {
			delta += em.update(now)
		}
	}

	s.emitters = slices.DeleteFunc(s.emitters, func(em *EmitterInstance) bool {
		if em.destroyed {
			return true
		}
		if em.finished() {
			em.release()
			return true
		}
		return false
	})
	if len(s.emitters) == 0 && s.Detached() && !s.removed {
		s.engine.removeInstance(s)
	}
	return delta
}

// StopSpawning stops the root emitters. Child emitters keep following their
// particles until those die.
func (s *ParticleSystemInstance) StopSpawning() {
	for _, em := range s.emitters {
		if em.def.IsRoot() {
			em.StopSpawning()
		}
	}
}

// Kill stops every emitter and drops all particles at once. The engine
// counters are adjusted; the returned change in live particles is for
// information only.
func (s *ParticleSystemInstance) Kill() int {
	delta := 0
	for _, em := range s.emitters {
		delta += em.Kill()
	}
	s.engine.numParticles += delta
	return delta
}

// Detach bakes the instance's position and removes it from its parent. An
// instance without emitters is destroyed.
func (s *ParticleSystemInstance) Detach() {
	s.detach()
	if len(s.emitters) == 0 && !s.removed {
		s.engine.removeInstance(s)
	}
}

// SetPosition places the instance relative to its parent, or in world space
// once detached.
func (s *ParticleSystemInstance) SetPosition(p r3.Vec) { s.position = p }

// SetVelocity sets the velocity inherited by linked particles.
func (s *ParticleSystemInstance) SetVelocity(v r3.Vec) { s.velocity = v }

// Definition returns the system the instance runs.
func (s *ParticleSystemInstance) Definition() *particle.ParticleSystemDef { return s.def }

// Emitters returns the live emitter instances.
func (s *ParticleSystemInstance) Emitters() []*EmitterInstance { return s.emitters }

// ParticleCount returns the number of live particles over all emitters.
func (s *ParticleSystemInstance) ParticleCount() int {
	n := 0
	for _, em := range s.emitters {
		n += em.ParticleCount()
	}
	return n
}

// ZDistance returns the view space depth of the instance as of the last
// Update. More negative values are further from the camera.
func (s *ParticleSystemInstance) ZDistance() float64 { return s.zDistance }

// Removed reports whether the instance has left the engine.
func (s *ParticleSystemInstance) Removed() bool { return s.removed }

// OnParticleSystemChanged forwards a definition edit to every emitter.
func (s *ParticleSystemInstance) OnParticleSystemChanged(track int) {
	for _, em := range s.emitters {
		em.onParticleSystemChanged(track)
	}
}

// removeEmitter destroys a single emitter outside of Update.
func (s *ParticleSystemInstance) removeEmitter(em *EmitterInstance) {
	em.release()
	s.emitters = slices.DeleteFunc(s.emitters, func(e *EmitterInstance) bool { return e == em })
	if len(s.emitters) == 0 && s.Detached() && !s.removed {
		s.engine.removeInstance(s)
	}
}

// destroy releases every emitter. The caller removes the instance from the
// engine.
func (s *ParticleSystemInstance) destroy() {
	for _, em := range s.emitters {
		if !em.destroyed {
			em.release()
		}
	}
	s.emitters = nil
}
