package particle

import (
	"errors"
	"testing"
)

type countingListener struct{ deleted int }

func (l *countingListener) DefinitionDeleted() { l.deleted++ }

// TestNewEmitterDef_Defaults tests the editor defaults
func TestNewEmitterDef_Defaults(t *testing.T) {
	e := NewEmitterDef()

	if e.DeathChild != None || e.LifeChild != None || e.Parent != None {
		t.Errorf("links = %d/%d/%d, want all None", e.DeathChild, e.LifeChild, e.Parent)
	}
	for _, i := range []int{TrackGreen, TrackBlue, TrackAlpha} {
		if !e.SharesTrack(TrackRed, i) {
			t.Errorf("track %d does not share the red curve", i)
		}
	}
	if got := e.Track(TrackScale).First(); got != 20 {
		t.Errorf("scale = %v, want 20", got)
	}
	if got := e.Track(TrackIndex).Interpolation; got != Step {
		t.Errorf("index interpolation = %v, want Step", got)
	}
	if err := e.validate(); err != nil {
		t.Errorf("validate() = %v, want nil", err)
	}
}

// TestEmitterDefClone_DeepCopy tests that clones own their curve storage
func TestEmitterDefClone_DeepCopy(t *testing.T) {
	e := NewEmitterDef()
	e.RegisterInstance(&countingListener{})

	c := e.Clone()
	c.Track(TrackGreen).Keys[0].Value = 0.5

	if got := e.Track(TrackRed).First(); got != 1 {
		t.Errorf("original red = %v after editing the clone, want 1", got)
	}
	if got := c.Track(TrackRed).First(); got != 0.5 {
		t.Errorf("clone red = %v, want 0.5 through the shared green slot", got)
	}
	if c.NumInstances() != 0 {
		t.Errorf("clone instances = %d, want 0", c.NumInstances())
	}
}

// TestEmitterDefShareTrack tests redirecting and splitting channel tracks
func TestEmitterDefShareTrack(t *testing.T) {
	e := NewEmitterDef()

	// Splitting the owner hands the shared curve to the next reader.
	e.UnshareTrack(TrackRed)
	e.Track(TrackRed).SetEndpoints(0, 0)
	if e.SharesTrack(TrackRed, TrackGreen) {
		t.Fatal("red still shared after UnshareTrack")
	}
	if !e.SharesTrack(TrackGreen, TrackBlue) || !e.SharesTrack(TrackGreen, TrackAlpha) {
		t.Error("green, blue and alpha no longer share a curve")
	}
	if got := e.Track(TrackGreen).First(); got != 1 {
		t.Errorf("green = %v, want 1", got)
	}

	if !e.ShareTrack(TrackRed, TrackAlpha) {
		t.Fatal("ShareTrack(red, alpha) = false")
	}
	if got := e.Track(TrackAlpha).First(); got != 0 {
		t.Errorf("alpha = %v after sharing red, want 0", got)
	}
	if e.ShareTrack(TrackRed, TrackScale) {
		t.Error("ShareTrack accepted a non-channel track")
	}
	if err := e.validate(); err != nil {
		t.Errorf("validate() = %v", err)
	}
}

// TestEmitterDefValidate_BadRefs tests rejection of broken track references
func TestEmitterDefValidate_BadRefs(t *testing.T) {
	tests := []struct {
		name string
		edit func(e *EmitterDef)
	}{
		{"Scale aliased", func(e *EmitterDef) { e.TrackRefs[TrackScale] = TrackRed }},
		{"Chained alias", func(e *EmitterDef) { e.TrackRefs[TrackRed] = TrackGreen; e.TrackRefs[TrackGreen] = TrackBlue }},
		{"Out of range", func(e *EmitterDef) { e.TrackRefs[TrackBlue] = 9 }},
		{"Broken curve", func(e *EmitterDef) { e.Track(TrackIndex).Keys[0].Time = 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEmitterDef()
			tt.edit(e)
			if err := e.validate(); !errors.Is(err, ErrMalformed) {
				t.Errorf("validate() = %v, want ErrMalformed", err)
			}
		})
	}
}

// TestEmitterDefPercentages tests the complement accessors
func TestEmitterDefPercentages(t *testing.T) {
	e := NewEmitterDef()
	e.SetMinLifetimePercent(0.75)
	e.SetMinScalePercent(0.5)

	if e.RandomLifetimePerc != 0.25 || e.MinLifetimePercent() != 0.75 {
		t.Errorf("lifetime percent = %v stored %v, want 0.75 stored 0.25", e.MinLifetimePercent(), e.RandomLifetimePerc)
	}
	if e.RandomScalePerc != 0.5 || e.MinScalePercent() != 0.5 {
		t.Errorf("scale percent = %v stored %v, want 0.5", e.MinScalePercent(), e.RandomScalePerc)
	}

	e.Lifetime = 4
	d := e.LifetimeDistribution()
	if d.Kind != Box || d.Min[1] != 3 || d.Max[1] != 4 {
		t.Errorf("LifetimeDistribution() = %+v, want box 3..4", d)
	}
}

// TestEmitterDefRelease tests that live instances are told about deletion
func TestEmitterDefRelease(t *testing.T) {
	e := NewEmitterDef()
	a, b := &countingListener{}, &countingListener{}
	e.RegisterInstance(a)
	e.RegisterInstance(b)
	e.UnregisterInstance(b)

	e.release()
	if a.deleted != 1 || b.deleted != 0 {
		t.Errorf("deleted = %d/%d, want 1/0", a.deleted, b.deleted)
	}
	if e.NumInstances() != 0 {
		t.Errorf("instances after release = %d, want 0", e.NumInstances())
	}
}
