package particle

import "fmt"

// InstanceListener is notified when the definition it simulates is deleted.
// The runtime emitter instances implement it.
type InstanceListener interface {
	DefinitionDeleted()
}

// EmitterDef is the authored template of one emitter.
//
// Curve storage is an arena: Curves holds up to seven curves and TrackRefs
// maps each track slot to the arena entry it reads. Channel tracks with
// identical contents share one entry so they are edited together.
type EmitterDef struct {
	// Hierarchy. Index is the position in the owning system; the links are
	// indices into the same system or None.
	Index      int  `yaml:"-"`
	DeathChild int  `yaml:"deathChild"`
	LifeChild  int  `yaml:"lifeChild"`
	Parent     int  `yaml:"-"`
	Visible    bool `yaml:"-"` // editor only, never persisted

	Name          string `yaml:"name"`
	ColorTexture  string `yaml:"colorTexture"`
	NormalTexture string `yaml:"normalTexture"`

	Groups    [NumGroups]Distribution `yaml:"groups"`
	Curves    [NumTracks]Curve        `yaml:"curves"`
	TrackRefs [NumTracks]int          `yaml:"trackRefs,flow"`

	// Flags
	LinkToSystem            bool `yaml:"linkToSystem"`
	ObjectSpaceAcceleration bool `yaml:"objectSpaceAcceleration"`
	DoColorAddGrayscale     bool `yaml:"doColorAddGrayscale"`
	AffectedByWind          bool `yaml:"affectedByWind"`
	IsHeatParticle          bool `yaml:"isHeatParticle"`
	IsWeatherParticle       bool `yaml:"isWeatherParticle"`
	HasTail                 bool `yaml:"hasTail"`
	NoDepthTest             bool `yaml:"noDepthTest"`
	RandomRotation          bool `yaml:"randomRotation"`
	RandomRotationDirection bool `yaml:"randomRotationDirection"`
	IsWorldOriented         bool `yaml:"isWorldOriented"`
	UseBursts               bool `yaml:"useBursts"`

	// Kinematics (world units and seconds)
	Gravity            float32    `yaml:"gravity"`
	Lifetime           float32    `yaml:"lifetime"`
	InitialDelay       float32    `yaml:"initialDelay"`
	BurstDelay         float32    `yaml:"burstDelay"`
	InwardSpeed        float32    `yaml:"inwardSpeed"`
	InwardAcceleration float32    `yaml:"inwardAcceleration"`
	Acceleration       [3]float32 `yaml:"acceleration,flow"`
	Bounciness         float32    `yaml:"bounciness"`
	FreezeTime         float32    `yaml:"freezeTime"`
	SkipTime           float32    `yaml:"skipTime"`
	ParentLinkStrength float32    `yaml:"parentLinkStrength"`

	// Randomisation. The percentages are stored as the fraction removed from
	// the maximum: a particle lives Lifetime * rand(1-RandomLifetimePerc, 1).
	RandomScalePerc        float32    `yaml:"randomScalePerc"`
	RandomLifetimePerc     float32    `yaml:"randomLifetimePerc"`
	RandomRotationAverage  float32    `yaml:"randomRotationAverage"`
	RandomRotationVariance float32    `yaml:"randomRotationVariance"`
	RandomColors           [4]float32 `yaml:"randomColors,flow"`

	// Weather, tails and mesh emission
	WeatherCubeSize        float32 `yaml:"weatherCubeSize"`
	WeatherCubeDistance    float32 `yaml:"weatherCubeDistance"`
	WeatherFadeoutDistance float32 `yaml:"weatherFadeoutDistance"`
	TailSize               float32 `yaml:"tailSize"`
	EmitFromMesh           uint32  `yaml:"emitFromMesh"`
	EmitFromMeshOffset     float32 `yaml:"emitFromMeshOffset"`

	// Spawning and rendering
	NumBursts          uint32 `yaml:"numBursts"` // 0 is infinite
	BlendMode          uint32 `yaml:"blendMode"`
	TextureSize        uint32 `yaml:"textureSize"`
	ParticlesPerSecond uint32 `yaml:"particlesPerSecond"`
	NumTriangles       uint32 `yaml:"numTriangles"`
	ParticlesPerBurst  uint32 `yaml:"particlesPerBurst"`
	GroundBehavior     uint32 `yaml:"groundBehavior"`

	// Reserved fields with no known effect, preserved bit-exactly.
	Unknown06 uint32  `yaml:"unknown06"`
	Unknown11 float32 `yaml:"unknown11"`
	Unknown15 bool    `yaml:"unknown15"`
	Unknown2B bool    `yaml:"unknown2b"`
	Unknown3F float32 `yaml:"unknown3f"`
	Unknown44 bool    `yaml:"unknown44"`
	Unknown49 uint32  `yaml:"unknown49"`

	instances map[InstanceListener]struct{}
}

// NewEmitterDef returns an emitter with editor defaults: one white particle
// per second, 20 units wide, living one second.
func NewEmitterDef() *EmitterDef {
	e := &EmitterDef{
		DeathChild: None,
		LifeChild:  None,
		Parent:     None,
		Visible:    true,

		Name:          "default",
		ColorTexture:  "p_particle_master.tga",
		NormalTexture: "p_particle_depth_master.tga",

		Lifetime:               1,
		BurstDelay:             1,
		WeatherCubeSize:        500,
		TailSize:               50,
		Bounciness:             0.2,
		EmitFromMeshOffset:     0.5,
		WeatherFadeoutDistance: 100,
		EmitFromMesh:           EmitDisable,
		BlendMode:              BlendAdditive,
		TextureSize:            64,
		ParticlesPerSecond:     1,
		NumTriangles:           2,
		ParticlesPerBurst:      1,
		GroundBehavior:         GroundNone,

		Unknown15: true,
		Unknown3F: 50,
	}

	for i := range e.Curves {
		var value float32
		switch i {
		case TrackRed, TrackGreen, TrackBlue, TrackAlpha:
			value = 1
		case TrackScale:
			value = 20
		}
		interp := Linear
		if i == TrackIndex {
			interp = Step
		}
		e.Curves[i] = NewFlatCurve(value, interp)
		e.TrackRefs[i] = i
	}
	// Green, blue and alpha follow red until edited apart.
	e.TrackRefs[TrackGreen] = TrackRed
	e.TrackRefs[TrackBlue] = TrackRed
	e.TrackRefs[TrackAlpha] = TrackRed
	return e
}

// Clone returns a deep copy of e. Curve storage is copied and the clone's
// track references point into its own arena. Registered instances are not
// carried over.
func (e *EmitterDef) Clone() *EmitterDef {
	c := *e
	for i := range c.Curves {
		c.Curves[i] = e.Curves[i].Clone()
	}
	c.instances = nil
	return &c
}

// Track returns the curve read by track slot i.
func (e *EmitterDef) Track(i int) *Curve {
	return &e.Curves[e.TrackRefs[i]]
}

// SharesTrack reports whether track slots i and j read the same curve.
func (e *EmitterDef) SharesTrack(i, j int) bool {
	return e.TrackRefs[i] == e.TrackRefs[j]
}

// ShareTrack makes channel slot j read the curve of channel slot i.
func (e *EmitterDef) ShareTrack(i, j int) bool {
	if i == j || i < 0 || j < 0 || i >= NumChannelTracks || j >= NumChannelTracks {
		return false
	}
	target := e.TrackRefs[i]
	if e.TrackRefs[j] == target {
		return true
	}
	e.handOff(j)
	e.TrackRefs[j] = target
	return true
}

// UnshareTrack gives slot i its own copy of the curve it reads.
func (e *EmitterDef) UnshareTrack(i int) {
	if ref := e.TrackRefs[i]; ref != i {
		e.Curves[i] = e.Curves[ref].Clone()
		e.TrackRefs[i] = i
		return
	}
	e.handOff(i)
}

// handOff moves the other readers of slot i's storage to a copy owned by the
// first of them, so slot i can be redirected or edited alone.
func (e *EmitterDef) handOff(i int) {
	if e.TrackRefs[i] != i {
		return
	}
	owner := None
	for k := 0; k < NumChannelTracks; k++ {
		if k == i || e.TrackRefs[k] != i {
			continue
		}
		if owner == None {
			owner = k
			e.Curves[owner] = e.Curves[i].Clone()
		}
		e.TrackRefs[k] = owner
	}
}

// LifetimeDistribution returns the lifetime group written with the emitter:
// a box whose Y range spans the shortest and longest particle lifetimes.
func (e *EmitterDef) LifetimeDistribution() Distribution {
	d := e.Groups[GroupLifetime]
	d.Kind = Box
	d.Min = [3]float32{0, e.Lifetime * (1 - e.RandomLifetimePerc), 0}
	d.Max = [3]float32{0, e.Lifetime, 0}
	return d
}

// MinLifetimePercent is the shortest lifetime as a fraction of Lifetime.
func (e *EmitterDef) MinLifetimePercent() float32 { return 1 - e.RandomLifetimePerc }

// SetMinLifetimePercent sets the shortest lifetime as a fraction of Lifetime.
func (e *EmitterDef) SetMinLifetimePercent(p float32) { e.RandomLifetimePerc = 1 - p }

// MinScalePercent is the smallest particle scale as a fraction of the curve.
func (e *EmitterDef) MinScalePercent() float32 { return 1 - e.RandomScalePerc }

// SetMinScalePercent sets the smallest particle scale as a fraction of the curve.
func (e *EmitterDef) SetMinScalePercent(p float32) { e.RandomScalePerc = 1 - p }

// IsRoot reports whether e is spawned by the system rather than by a parent.
func (e *EmitterDef) IsRoot() bool { return e.Parent == None }

// RegisterInstance records a live instance simulating e.
func (e *EmitterDef) RegisterInstance(l InstanceListener) {
	if e.instances == nil {
		e.instances = make(map[InstanceListener]struct{})
	}
	e.instances[l] = struct{}{}
}

// UnregisterInstance forgets a live instance.
func (e *EmitterDef) UnregisterInstance(l InstanceListener) {
	delete(e.instances, l)
}

// NumInstances returns the number of live instances of e.
func (e *EmitterDef) NumInstances() int { return len(e.instances) }

// release tears down every live instance of e.
func (e *EmitterDef) release() {
	listeners := make([]InstanceListener, 0, len(e.instances))
	for l := range e.instances {
		listeners = append(listeners, l)
	}
	for _, l := range listeners {
		l.DefinitionDeleted()
	}
	e.instances = nil
}

// validate checks the track references and every referenced curve.
func (e *EmitterDef) validate() error {
	for i, ref := range e.TrackRefs {
		if i >= NumChannelTracks {
			if ref != i {
				return malformed("emitter %q track %d reads curve %d", e.Name, i, ref)
			}
			continue
		}
		if ref < 0 || ref >= NumChannelTracks || e.TrackRefs[ref] != ref {
			return malformed("emitter %q track %d reads curve %d", e.Name, i, ref)
		}
	}
	for i := range e.TrackRefs {
		if err := e.Track(i).Validate(); err != nil {
			return fmt.Errorf("emitter %q track %d: %w", e.Name, i, err)
		}
	}
	return nil
}
