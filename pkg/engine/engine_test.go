package engine

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/decker502/aloparticles/internal/particle"
)

const epsilon = 1e-9

func newTestEngine() *Engine {
	return New(nil, rand.New(rand.NewSource(1)))
}

// testEmitter returns a deterministic emitter: everything spawns at the
// origin at rest, lives exactly lifetime seconds and never randomises.
func testEmitter(lifetime float32) *particle.EmitterDef {
	e := particle.NewEmitterDef()
	e.Lifetime = lifetime
	e.RandomLifetimePerc = 0
	e.RandomScalePerc = 0
	return e
}

// singleBurst configures e to fire one burst of n particles.
func singleBurst(e *particle.EmitterDef, n uint32) {
	e.UseBursts = true
	e.NumBursts = 1
	e.ParticlesPerBurst = n
}

// systemOf wraps the given emitters, uncopied, in a system as roots.
func systemOf(roots ...*particle.EmitterDef) *particle.ParticleSystemDef {
	s := particle.NewParticleSystemDef()
	for i, e := range roots {
		e.Index = i
		e.Parent, e.DeathChild, e.LifeChild = particle.None, particle.None, particle.None
		s.Emitters = append(s.Emitters, e)
	}
	return s
}

func vecNear(a, b r3.Vec) bool {
	return r3.Norm(r3.Sub(a, b)) < 1e-6
}

// TestEngine_Defaults tests the state of a new engine.
func TestEngine_Defaults(t *testing.T) {
	e := newTestEngine()
	if g := e.Gravity(); g != (r3.Vec{Z: -1}) {
		t.Errorf("Gravity() = %v, want (0,0,-1)", g)
	}
	if !e.Ground() {
		t.Error("Ground() = false, want true")
	}
	if e.HeatDebug() {
		t.Error("HeatDebug() = true, want false")
	}
	if c := e.Camera(); c != DefaultCamera {
		t.Errorf("Camera() = %+v, want %+v", c, DefaultCamera)
	}
	if bg := e.Background(); bg != DefaultBackground {
		t.Errorf("Background() = %v, want %v", bg, DefaultBackground)
	}
}

// TestEngine_SetGravity tests that gravity is normalised.
func TestEngine_SetGravity(t *testing.T) {
	tests := []struct {
		name string
		in   r3.Vec
		want r3.Vec
	}{
		{"down", r3.Vec{Z: -5}, r3.Vec{Z: -1}},
		{"diagonal", r3.Vec{X: 3, Y: 4}, r3.Vec{X: 0.6, Y: 0.8}},
		{"zero", r3.Vec{}, r3.Vec{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine()
			e.SetGravity(tt.in)
			if got := e.Gravity(); !vecNear(got, tt.want) {
				t.Errorf("Gravity() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestEngine_ViewBasis tests the right-handed look-at basis and that the
// billboard transform inverts the view rotation.
func TestEngine_ViewBasis(t *testing.T) {
	e := newTestEngine()

	if !vecNear(e.viewX, r3.Vec{X: 1}) {
		t.Errorf("view X axis = %v, want (1,0,0)", e.viewX)
	}
	depth := e.ViewTransform(DefaultCamera.Target).Z
	want := -math.Hypot(250, 125)
	if math.Abs(depth-want) > epsilon {
		t.Errorf("target depth = %v, want %v", depth, want)
	}

	v := r3.Vec{X: 1, Y: -2, Z: 3}
	if got := e.Billboard(e.ViewRotate(v)); !vecNear(got, v) {
		t.Errorf("Billboard(ViewRotate(v)) = %v, want %v", got, v)
	}
}

// TestEngine_SpawnCounters tests the emitter and particle counters across
// spawning, updating and clearing.
func TestEngine_SpawnCounters(t *testing.T) {
	root := testEmitter(100)
	root.ParticlesPerSecond = 4
	def := systemOf(root, testEmitter(100))

	e := newTestEngine()
	inst := e.SpawnParticleSystem(def, nil)

	if n := e.NumEmitters(); n != 2 {
		t.Errorf("NumEmitters() = %d, want 2", n)
	}
	if n := e.NumParticles(); n != 2 {
		t.Errorf("NumParticles() after spawn = %d, want 2", n)
	}

	// Spawns at 0.25, 0.5 and 0.75 for each emitter.
	e.Update(1)
	if n := e.NumParticles(); n != 5 {
		t.Errorf("NumParticles() after Update = %d, want 5", n)
	}
	if n := inst.ParticleCount(); n != e.NumParticles() {
		t.Errorf("ParticleCount() = %d, engine counts %d", n, e.NumParticles())
	}

	e.Clear()
	if e.NumEmitters() != 0 || e.NumParticles() != 0 || len(e.Instances()) != 0 {
		t.Errorf("after Clear: %d emitters, %d particles, %d instances",
			e.NumEmitters(), e.NumParticles(), len(e.Instances()))
	}
	if n := def.Emitters[0].NumInstances(); n != 0 {
		t.Errorf("definition still has %d instances after Clear", n)
	}
}

// TestEngine_KillParticleSystem tests both leave-particles policies.
func TestEngine_KillParticleSystem(t *testing.T) {
	t.Run("destroy", func(t *testing.T) {
		def := systemOf(testEmitter(100))
		def.LeaveParticles = false

		e := newTestEngine()
		inst := e.SpawnParticleSystem(def, &Anchor{})
		e.KillParticleSystem(inst)

		if !inst.Removed() || len(e.Instances()) != 0 {
			t.Error("instance not removed")
		}
		if e.NumEmitters() != 0 || e.NumParticles() != 0 {
			t.Errorf("counters = %d emitters, %d particles, want 0", e.NumEmitters(), e.NumParticles())
		}
	})

	t.Run("leave particles", func(t *testing.T) {
		def := systemOf(testEmitter(2))
		def.LeaveParticles = true

		anchor := &Anchor{Pos: r3.Vec{X: 10}}
		e := newTestEngine()
		inst := e.SpawnParticleSystem(def, anchor)
		e.KillParticleSystem(inst)

		if inst.Removed() {
			t.Fatal("instance removed while particles remain")
		}
		if !inst.Detached() {
			t.Error("instance still attached")
		}
		anchor.Pos = r3.Vec{X: 50}
		if p := inst.Position(); p != (r3.Vec{X: 10}) {
			t.Errorf("detached position = %v, want (10,0,0)", p)
		}
		if !inst.Emitters()[0].Done() {
			t.Error("root emitter still spawning")
		}

		// The last particle dies at 2.
		e.Update(1)
		if e.NumParticles() != 1 {
			t.Errorf("NumParticles() = %d, want 1", e.NumParticles())
		}
		e.Update(3)
		if !inst.Removed() {
			t.Error("empty detached instance not removed")
		}
		if e.NumEmitters() != 0 || e.NumParticles() != 0 {
			t.Errorf("counters = %d emitters, %d particles, want 0", e.NumEmitters(), e.NumParticles())
		}
	})
}

// TestEngine_AttachedSystemPersists tests that an attached instance survives
// its emitters finishing, and is removed once detached.
func TestEngine_AttachedSystemPersists(t *testing.T) {
	root := testEmitter(1)
	singleBurst(root, 1)
	def := systemOf(root)

	e := newTestEngine()
	inst := e.SpawnParticleSystem(def, &Anchor{})
	e.Update(2)

	if len(inst.Emitters()) != 0 {
		t.Fatalf("%d emitters left, want 0", len(inst.Emitters()))
	}
	if inst.Removed() {
		t.Fatal("attached instance removed")
	}
	e.DetachParticleSystem(inst)
	if !inst.Removed() {
		t.Error("detached empty instance not removed")
	}
}

// TestEngine_HeatEmitter tests the heat debug switch.
func TestEngine_HeatEmitter(t *testing.T) {
	heat := testEmitter(10)
	heat.IsHeatParticle = true
	e := newTestEngine()
	em := e.SpawnParticleSystem(systemOf(heat), nil).Emitters()[0]

	if !em.IsHeatEmitter() {
		t.Error("IsHeatEmitter() = false, want true")
	}
	e.SetHeatDebug(true)
	if em.IsHeatEmitter() {
		t.Error("IsHeatEmitter() with heat debug = true, want false")
	}
}

type fakeTextures map[string]string

func (f fakeTextures) Texture(name string) any {
	if v, ok := f[name]; ok {
		return v
	}
	return nil
}

// TestEngine_Textures tests texture resolution through the texture manager.
func TestEngine_Textures(t *testing.T) {
	def := testEmitter(10)
	def.ColorTexture = "fire.tga"
	def.NormalTexture = "missing.tga"

	e := New(fakeTextures{"fire.tga": "fire"}, rand.New(rand.NewSource(1)))
	em := e.SpawnParticleSystem(systemOf(def), nil).Emitters()[0]

	c, n := em.Textures()
	if c != "fire" {
		t.Errorf("colour texture = %v, want fire", c)
	}
	if n != nil {
		t.Errorf("normal texture = %v, want nil", n)
	}
}
