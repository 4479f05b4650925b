package engine

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/decker502/aloparticles/internal/particle"
)

const (
	initialBlockSize = 32

	// maxParticles keeps every vertex addressable by a 16-bit index.
	maxParticles = (math.MaxUint16 + 1) / verticesPerParticle
)

// EmitterInstance is a running emitter. It spawns particles on its schedule,
// moves them every update and writes their quads into its vertex buffer.
type EmitterInstance struct {
	object
	engine         *Engine
	system         *ParticleSystemInstance
	def            *particle.EmitterDef
	parentParticle *Particle // set while following a particle as its lifetime child

	colorTexture  any
	normalTexture any
	blend         BlendState

	done         bool
	destroyed    bool
	nextSpawn    float64
	spawnDelay   float64
	perBurst     uint32
	currentBurst uint32
	acceleration r3.Vec
	texSqrt      int
	hasFreeze    bool
	freezeAt     float64

	// Storage. vertices holds four entries per slot; indices holds six per
	// live particle, in the same order as particles.
	blocks    []*particleBlock
	capacity  int
	vertices  []Vertex
	indices   []uint16
	particles []*Particle
}

// newEmitterInstance creates an emitter and spawns the particles due by now,
// taking the skip time into account. It returns the emitter and the number
// of particles spawned.
func newEmitterInstance(s *ParticleSystemInstance, def *particle.EmitterDef, parent Positioner, now float64) (*EmitterInstance, int) {
	em := &EmitterInstance{
		object: object{parent: parent},
		engine: s.engine,
		system: s,
		def:    def,
	}
	if def.FreezeTime > 0 && def.FreezeTime >= def.SkipTime {
		em.hasFreeze = true
		em.freezeAt = now + float64(def.FreezeTime-def.SkipTime)
	}
	em.addBlock(initialBlockSize)
	em.onParticleSystemChanged(-1)

	n := 0
	if def.IsWeatherParticle {
		// Weather emitters keep a fixed population from the start.
		for i := uint32(0); i < def.ParticlesPerSecond; i++ {
			if em.spawnParticle(now) {
				n++
			}
		}
	} else {
		skip := float64(def.SkipTime)
		start := now - skip
		skipped := float64(def.InitialDelay)
		for skipped <= skip && !em.done {
			n += em.spawnParticles(start + skipped)
			skipped += em.spawnDelay
		}
		if !em.done {
			em.nextSpawn = start + skipped
		}
	}

	def.RegisterInstance(em)
	return em, n
}

// update advances the emitter to now and returns the change in its number
// of particles.
func (em *EmitterInstance) update(now float64) int {
	if em.hasFreeze && now >= em.freezeAt {
		now = em.freezeAt
	}

	delta := 0
	weather := em.def.IsWeatherParticle
	if !weather {
		for !em.done && now > em.nextSpawn {
			delta += em.spawnParticles(em.nextSpawn)
		}
	}

	kills := em.engine.kills[:0]
	for i, p := range em.particles {
		if p.deathTime < now {
			if !weather || em.done {
				em.killParticle(now, p)
				kills = append(kills, i)
				continue
			}
			// Weather particles are recycled in place.
			em.resetParticle(p, now)
		}
		em.updateParticle(p, now-p.spawnTime)
	}

	if len(kills) > 0 {
		em.compact(kills)
		delta -= len(kills)
	}
	em.engine.kills = kills[:0]
	return delta
}

// compact removes the killed positions, given in ascending order, from the
// particle and index lists in one pass. Survivors keep their order.
func (em *EmitterInstance) compact(kills []int) {
	w, k := kills[0], 0
	for r := kills[0]; r < len(em.particles); r++ {
		if k < len(kills) && kills[k] == r {
			k++
			continue
		}
		p := em.particles[r]
		em.particles[w] = p
		copy(em.indices[w*indicesPerParticle:], em.indices[r*indicesPerParticle:(r+1)*indicesPerParticle])
		p.indicesIndex = w
		w++
	}
	clear(em.particles[w:])
	em.particles = em.particles[:w]
	em.indices = em.indices[:w*indicesPerParticle]
}

// spawnParticles emits one round at time t and schedules the next.
func (em *EmitterInstance) spawnParticles(t float64) int {
	if em.def.UseBursts && em.def.NumBursts > 0 {
		em.currentBurst++
		if em.currentBurst >= em.def.NumBursts {
			em.done = true
		}
	}

	n := 0
	for i := uint32(0); i < em.perBurst; i++ {
		if em.spawnParticle(t) {
			n++
		}
	}

	// A delay below the resolution of t would never advance the schedule;
	// spawn bigger rounds less often instead.
	em.nextSpawn = t + em.spawnDelay
	for em.nextSpawn == t {
		em.spawnDelay *= 2
		em.perBurst *= 2
		em.nextSpawn = t + em.spawnDelay
	}
	return n
}

// spawnParticle creates a single particle at time now. It reports false if
// the emitter is out of slots.
func (em *EmitterInstance) spawnParticle(now float64) bool {
	p := em.allocate()
	if p == nil {
		return false
	}
	def := em.def
	rng := em.engine.rng

	p.verticesIndex = p.index * verticesPerParticle
	p.systemSpawnPosition = em.system.Position()
	p.parentSpawnPosition = em.Position()

	p.initialSpeed = def.Groups[particle.GroupSpeed].Sample(rng)
	if def.AffectedByWind {
		p.initialSpeed = r3.Add(p.initialSpeed, em.engine.wind)
	}

	if def.IsWeatherParticle {
		h := def.WeatherCubeSize / 2
		p.acceleration = r3.Vec{}
		p.initialPosition = r3.Add(em.weatherCenter(), r3.Vec{
			X: float64(em.engine.random(-h, h)),
			Y: float64(em.engine.random(-h, h)),
			Z: float64(em.engine.random(-h, h)),
		})
	} else {
		pos := def.Groups[particle.GroupPosition].Sample(rng)
		dir := unit(pos)
		p.initialSpeed = r3.Sub(p.initialSpeed, r3.Scale(float64(def.InwardSpeed), dir))
		p.acceleration = r3.Sub(em.acceleration, r3.Scale(float64(def.InwardAcceleration), dir))
		p.initialPosition = r3.Add(pos, p.parentSpawnPosition)
	}

	p.bounceTime = math.Inf(1)
	if def.GroundBehavior == particle.GroundBounce {
		p.bounceTime = firstBounce(p.initialPosition.Z, p.initialSpeed.Z, p.acceleration.Z)
	}

	p.position = p.initialPosition
	p.velocity = r3.Vec{}
	em.resetParticle(p, now)

	p.child = nil
	if def.LifeChild != particle.None {
		if c := em.system.SpawnEmitter(now, def.LifeChild, p); c != nil {
			p.child = c
			c.parentParticle = p
		}
	}

	v := uint16(p.verticesIndex)
	p.indicesIndex = len(em.particles)
	em.indices = append(em.indices, v, v+2, v+3, v+2, v, v+1)
	em.particles = append(em.particles, p)
	return true
}

// firstBounce solves z + v*t + a*t*t/2 = 0 for the later root.
func firstBounce(z, v, a float64) float64 {
	var t float64
	switch {
	case a != 0:
		d := math.Sqrt(v*v - 2*a*z)
		t = math.Max((-v-d)/a, (-v+d)/a)
	case v != 0:
		t = -z / v
		if t < 0 {
			return math.Inf(1)
		}
	default:
		return math.Inf(1)
	}
	if math.IsNaN(t) {
		return math.Inf(1)
	}
	return t
}

// nextBounce returns the time of the bounce after the one at t, given the
// reflected vertical speed v and acceleration a.
func nextBounce(t, v, a float64) float64 {
	if a == 0 || v == 0 {
		return math.Inf(1)
	}
	next := t + 2*-v/a
	if !(next > t) {
		return math.Inf(1)
	}
	return next
}

// resetParticle starts a new life for p at its current position.
func (em *EmitterInstance) resetParticle(p *Particle, now float64) {
	def := em.def
	e := em.engine

	p.positionTime = 0
	p.spawnTime = now
	p.deathTime = now + float64(def.Lifetime*e.random(1-def.RandomLifetimePerc, 1))
	p.initialPosition = p.Position()

	p.baseScale = e.random(1-def.RandomScalePerc, 1)
	p.rotationDirection = 1
	if def.RandomRotationDirection && e.random(0, 1) >= 0.5 {
		p.rotationDirection = -1
	}
	p.baseRotation = 0
	if def.RandomRotation {
		v := def.RandomRotationVariance
		p.baseRotation = def.RandomRotationAverage * (1 + e.random(-v, v))
	}

	if def.DoColorAddGrayscale {
		g := e.random(0, def.RandomColors[0])
		p.baseColor = [4]float32{g, g, g, g}
	} else {
		for i := range p.baseColor {
			p.baseColor[i] = e.random(0, def.RandomColors[i])
		}
	}

	p.cursors = [particle.NumTracks]particle.Cursor{}
}

// updateParticle moves p to t seconds after its spawn and rebuilds its quad.
func (em *EmitterInstance) updateParticle(p *Particle, t float64) {
	def := em.def
	e := em.engine
	rel := p.relTime(t)
	life := float32(p.deathTime - p.spawnTime)

	for i := 0; i < particle.NumTracks; i++ {
		c := def.Track(i)
		if i == particle.TrackRotationSpeed && !def.RandomRotation {
			p.baseRotation += c.AdvanceIntegrating(&p.cursors[i], rel, life)
			continue
		}
		c.Advance(&p.cursors[i], rel)
	}

	if def.GroundBehavior == particle.GroundBounce {
		for t > p.bounceTime {
			bt := p.bounceTime - p.positionTime
			p.initialPosition = r3.Add(p.initialPosition, r3.Scale(bt, r3.Add(p.initialSpeed, r3.Scale(0.5*bt, p.acceleration))))
			p.initialSpeed = r3.Add(p.initialSpeed, r3.Scale(bt, p.acceleration))
			p.initialSpeed.Z = -p.initialSpeed.Z * float64(def.Bounciness)
			p.positionTime = p.bounceTime
			p.bounceTime = nextBounce(p.bounceTime, p.initialSpeed.Z, p.acceleration.Z)
		}
	}

	offset := float64(p.baseScale * em.sample(p, particle.TrackScale, rel) / 2)

	// x(t) = x0 + v0*t + a*t*t/2 since the last bounce
	pt := t - p.positionTime
	pos := r3.Add(p.initialPosition, r3.Scale(pt, r3.Add(p.initialSpeed, r3.Scale(0.5*pt, p.acceleration))))
	if def.LinkToSystem {
		pos = r3.Add(pos, r3.Sub(em.system.Position(), p.systemSpawnPosition))
	}
	pls := float64(def.ParentLinkStrength)
	if pls != 0 {
		pos = r3.Add(pos, r3.Scale(pls, r3.Sub(em.Position(), p.parentSpawnPosition)))
	}

	if def.IsWeatherParticle {
		pos = em.wrapWeather(pos)
	} else {
		switch def.GroundBehavior {
		case particle.GroundDisappear:
			if pos.Z < 0 {
				offset = 0
			}
		case particle.GroundStick:
			if pos.Z < 0 {
				pos.Z = 0
			}
		}
	}
	p.position = pos

	rotation := p.baseRotation
	if !def.RandomRotation {
		rotation += def.Track(particle.TrackRotationSpeed).Integrate(p.cursors[particle.TrackRotationSpeed], rel, life)
	}
	angle := 2 * math.Pi * float64(rotation*p.rotationDirection)

	quad := [verticesPerParticle]r3.Vec{
		{X: -offset, Y: -offset},
		{X: offset, Y: -offset},
		{X: offset, Y: offset},
		{X: -offset, Y: offset},
	}

	vel := r3.Add(p.initialSpeed, r3.Scale(pt, p.acceleration))
	if pls != 0 {
		vel = r3.Add(vel, r3.Scale(pls, em.Velocity()))
	}
	p.velocity = vel

	if def.HasTail {
		// Stretch the leading corner along the screen-space direction of travel.
		length := r3.Norm(vel)
		if length > 0 {
			mult := 1.0
			if pls != 0 {
				mult = length / 1000
			}
			if !def.IsWorldOriented {
				vel = e.ViewRotate(vel)
			}
			angle += math.Atan2(vel.Y, vel.X) + math.Pi/4
			vel.Z = 0
			length = float64(def.TailSize) * mult * r3.Norm(vel) / length
		}
		quad[3] = r3.Scale(math.Max(1, math.Sqrt(length*length/2)), quad[3])
	}

	normal := r3.Vec{Z: 1}
	if !def.IsWorldOriented {
		normal = e.Billboard(normal)
	}

	rot := r3.NewRotation(angle, r3.Vec{Z: 1})
	verts := em.vertices[p.verticesIndex : p.verticesIndex+verticesPerParticle]
	for i, q := range quad {
		q = rot.Rotate(q)
		if !def.IsWorldOriented {
			q = e.Billboard(q)
		}
		verts[i].Position = r3.Add(q, pos)
		verts[i].Normal = normal
	}

	// Texture cell from the index curve, row-major in a texSqrt x texSqrt grid.
	idx := int(math.Floor(float64(em.sample(p, particle.TrackIndex, rel))))
	if idx < 0 {
		idx = 0
	}
	s := float32(em.texSqrt)
	d := 1 / s
	u := float32(idx%em.texSqrt) / s
	v := float32(idx/em.texSqrt) / s
	verts[3].U, verts[3].V = u, v
	verts[2].U, verts[2].V = u+d, v
	verts[1].U, verts[1].V = u+d, v+d
	verts[0].U, verts[0].V = u, v+d

	c := p.baseColor
	if isBumpMode(def.BlendMode) {
		// Bump modes carry the rotated tangent in RGB.
		c[0] = float32(0.5*math.Cos(angle) + 0.5)
		c[1] = float32(0.5*math.Sin(angle) + 0.5)
		c[2] = 0
	} else {
		c[0] += em.sample(p, particle.TrackRed, rel)
		c[1] += em.sample(p, particle.TrackGreen, rel)
		c[2] += em.sample(p, particle.TrackBlue, rel)
	}
	c[3] += em.sample(p, particle.TrackAlpha, rel)
	col := colorValue(c)
	for i := range verts {
		verts[i].Color = col
	}
}

func (em *EmitterInstance) sample(p *Particle, track int, rel float32) float32 {
	return em.def.Track(track).Sample(p.cursors[track], rel)
}

// weatherCenter is the centre of the weather cube in front of the camera.
func (em *EmitterInstance) weatherCenter() r3.Vec {
	cam := em.engine.camera
	look := unit(r3.Sub(cam.Target, cam.Position))
	return r3.Add(cam.Position, r3.Scale(float64(em.def.WeatherCubeDistance), look))
}

// wrapWeather folds pos into the weather cube.
func (em *EmitterInstance) wrapWeather(pos r3.Vec) r3.Vec {
	w := float64(em.def.WeatherCubeSize)
	if !(w > 0) {
		return pos
	}
	c := em.weatherCenter()
	wrap := func(x, c float64) float64 {
		return math.Mod(math.Mod(x-c+w/2, w)+w, w) - w/2 + c
	}
	return r3.Vec{X: wrap(pos.X, c.X), Y: wrap(pos.Y, c.Y), Z: wrap(pos.Z, c.Z)}
}

// killParticle ends p's life: a lifetime child is cut loose and a death
// child is fired once at p's position.
func (em *EmitterInstance) killParticle(now float64, p *Particle) {
	em.dropChild(p)
	if em.def.DeathChild != particle.None {
		if c := em.system.SpawnEmitter(now, em.def.DeathChild, p); c != nil {
			c.detach()
			c.StopSpawning()
		}
	}
	p.block.free(p)
}

// dropChild detaches and stops p's lifetime child so it can finish alone.
func (em *EmitterInstance) dropChild(p *Particle) {
	c := p.child
	if c == nil {
		return
	}
	p.child = nil
	c.parentParticle = nil
	c.detach()
	c.StopSpawning()
}

// allocate returns a free particle slot, growing the storage if needed.
func (em *EmitterInstance) allocate() *Particle {
	for _, b := range em.blocks {
		if p := b.allocate(); p != nil {
			return p
		}
	}
	if em.capacity >= maxParticles {
		return nil
	}
	// Each new block doubles the capacity.
	return em.addBlock(min(em.capacity, maxParticles-em.capacity)).allocate()
}

func (em *EmitterInstance) addBlock(size int) *particleBlock {
	b := newParticleBlock(em.capacity, size)
	em.blocks = append(em.blocks, b)
	em.capacity += b.size()
	em.vertices = append(em.vertices, make([]Vertex, b.size()*verticesPerParticle)...)
	return b
}

// onParticleSystemChanged applies a definition edit. track -1 recomputes
// the derived spawn, acceleration and render state; a track slot re-seeks
// the cursors of every slot reading the same curve.
func (em *EmitterInstance) onParticleSystemChanged(track int) {
	def := em.def
	if track == -1 {
		if def.UseBursts {
			em.perBurst = def.ParticlesPerBurst
			em.spawnDelay = math.Max(0.01, float64(def.BurstDelay))
			if math.IsNaN(float64(def.BurstDelay)) {
				em.spawnDelay = 0.01
			}
		} else {
			em.perBurst = 1
			em.spawnDelay = 1 / float64(def.ParticlesPerSecond)
		}
		accel := r3.Vec{X: float64(def.Acceleration[0]), Y: float64(def.Acceleration[1]), Z: float64(def.Acceleration[2])}
		em.acceleration = r3.Add(accel, r3.Scale(float64(def.Gravity), em.engine.gravity))
		em.texSqrt = int(math.Floor(math.Sqrt(float64(max(1, def.TextureSize)))))

		em.colorTexture = em.engine.texture(def.ColorTexture)
		em.normalTexture = em.engine.texture(def.NormalTexture)
		em.blend = blendStateFor(def.BlendMode)
		return
	}

	if track < 0 || track >= particle.NumTracks {
		return
	}
	c := def.Track(track)
	for _, p := range em.particles {
		rel := p.relTime(em.engine.now - p.spawnTime)
		for i := 0; i < particle.NumTracks; i++ {
			if def.SharesTrack(i, track) {
				c.Seek(&p.cursors[i], rel)
			}
		}
	}
}

// StopSpawning ends the spawn schedule. Live particles finish their lives
// and the emitter is destroyed once they are gone.
func (em *EmitterInstance) StopSpawning() { em.done = true }

// Detach cuts the emitter loose from its parent at its current position.
func (em *EmitterInstance) Detach() {
	if p := em.parentParticle; p != nil {
		p.child = nil
		em.parentParticle = nil
	}
	em.detach()
}

// Kill stops spawning and drops every live particle without firing death
// children. It returns the change in the number of particles.
func (em *EmitterInstance) Kill() int {
	em.done = true
	n := len(em.particles)
	for _, p := range em.particles {
		em.dropChild(p)
		p.block.free(p)
	}
	clear(em.particles)
	em.particles = em.particles[:0]
	em.indices = em.indices[:0]
	return -n
}

// DefinitionDeleted destroys the emitter when its definition is removed
// from the system.
func (em *EmitterInstance) DefinitionDeleted() {
	if em.destroyed {
		return
	}
	em.system.removeEmitter(em)
}

// finished reports whether the emitter is done spawning and has no
// particles left.
func (em *EmitterInstance) finished() bool {
	return em.done && len(em.particles) == 0
}

// release tears the emitter down and updates the engine counters. Lifetime
// children of its particles are detached and left to finish.
func (em *EmitterInstance) release() {
	if em.destroyed {
		return
	}
	em.destroyed = true
	n := len(em.particles)
	for _, p := range em.particles {
		em.dropChild(p)
	}
	em.particles = nil
	em.indices = nil
	em.vertices = nil
	em.blocks = nil

	if p := em.parentParticle; p != nil {
		p.child = nil
		em.parentParticle = nil
	}
	em.def.UnregisterInstance(em)
	em.engine.onEmitterDestroyed(n)
}

// Definition returns the emitter definition.
func (em *EmitterInstance) Definition() *particle.EmitterDef { return em.def }

// ParticleCount returns the number of live particles.
func (em *EmitterInstance) ParticleCount() int { return len(em.particles) }

// Particles returns the live particles in index buffer order.
func (em *EmitterInstance) Particles() []*Particle { return em.particles }

// Buffers returns the vertex buffer and the triangle list indexing into it.
// Only vertices referenced by indices are meaningful. Both slices are reused
// by the next Update.
func (em *EmitterInstance) Buffers() ([]Vertex, []uint16) { return em.vertices, em.indices }

// Blend returns the render state for the emitter's blend mode.
func (em *EmitterInstance) Blend() BlendState { return em.blend }

// Textures returns the resolved colour and normal textures.
func (em *EmitterInstance) Textures() (color, normal any) {
	return em.colorTexture, em.normalTexture
}

// Done reports whether the emitter has stopped spawning.
func (em *EmitterInstance) Done() bool { return em.done }

// Visible reports whether the emitter should be drawn.
func (em *EmitterInstance) Visible() bool { return em.def.Visible }

// IsHeatEmitter reports whether the emitter draws into the heat distortion
// pass rather than the scene.
func (em *EmitterInstance) IsHeatEmitter() bool {
	return !em.engine.heatDebug && em.def.IsHeatParticle
}

// Capacity returns the number of particle slots allocated.
func (em *EmitterInstance) Capacity() int { return em.capacity }
