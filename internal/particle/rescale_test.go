package particle

import (
	"errors"
	"testing"
)

// TestRescaleEmitter_SpawnRate tests switching between spawn modes on a time stretch
func TestRescaleEmitter_SpawnRate(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(e *EmitterDef)
		timeScale  float32
		wantBursts bool
		wantPPS    uint32
		wantDelay  float32
	}{
		{
			name:      "Per second stays whole",
			setup:     func(e *EmitterDef) { e.ParticlesPerSecond = 10 },
			timeScale: 2, wantBursts: false, wantPPS: 5,
		},
		{
			name:      "Per second becomes bursts",
			setup:     func(e *EmitterDef) { e.ParticlesPerSecond = 10 },
			timeScale: 4, wantBursts: true, wantPPS: 10, wantDelay: 0.4,
		},
		{
			name: "Bursts become per second",
			setup: func(e *EmitterDef) {
				e.UseBursts = true
				e.BurstDelay = 0.25
			},
			timeScale: 2, wantBursts: false, wantPPS: 2, wantDelay: 0.5,
		},
		{
			name: "Finite bursts stay bursts",
			setup: func(e *EmitterDef) {
				e.UseBursts = true
				e.BurstDelay = 0.25
				e.NumBursts = 3
			},
			timeScale: 2, wantBursts: true, wantPPS: 1, wantDelay: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEmitterDef()
			tt.setup(e)
			if changed, err := RescaleEmitter(e, tt.timeScale, 1); err != nil || !changed {
				t.Fatalf("RescaleEmitter() = %v, %v", changed, err)
			}
			if e.UseBursts != tt.wantBursts {
				t.Errorf("UseBursts = %v, want %v", e.UseBursts, tt.wantBursts)
			}
			if e.ParticlesPerSecond != tt.wantPPS {
				t.Errorf("ParticlesPerSecond = %d, want %d", e.ParticlesPerSecond, tt.wantPPS)
			}
			if tt.wantDelay != 0 && !approx(e.BurstDelay, tt.wantDelay) {
				t.Errorf("BurstDelay = %v, want %v", e.BurstDelay, tt.wantDelay)
			}
		})
	}
}

// TestRescaleEmitter_Kinematics tests that times, speeds and sizes are scaled
func TestRescaleEmitter_Kinematics(t *testing.T) {
	e := NewEmitterDef()
	e.Lifetime = 2
	e.InitialDelay = 1
	e.Gravity = 4
	e.InwardSpeed = 8
	e.Acceleration = [3]float32{0, 0, -10}
	e.Groups[GroupSpeed] = Distribution{Kind: Exact, Value: [3]float32{0, 0, 20}}
	e.Groups[GroupPosition] = Distribution{Kind: Cube, SideLength: 10}

	if _, err := RescaleEmitter(e, 2, 3); err != nil {
		t.Fatal(err)
	}

	checks := []struct {
		name      string
		got, want float32
	}{
		{"Lifetime", e.Lifetime, 4},
		{"InitialDelay", e.InitialDelay, 2},
		{"Speed", e.Groups[GroupSpeed].Value[2], 30},
		{"InwardSpeed", e.InwardSpeed, 12},
		{"Gravity", e.Gravity, 6},
		{"Acceleration", e.Acceleration[2], -15},
		{"Position", e.Groups[GroupPosition].SideLength, 30},
		{"Scale", e.Track(TrackScale).First(), 60},
		{"TailSize", e.TailSize, 150},
	}
	for _, c := range checks {
		if !approx(c.got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

// TestRescale_Weather tests that weather emitters keep their spawn rate
func TestRescale_Weather(t *testing.T) {
	s := NewParticleSystemDef()
	e := s.AddRootEmitter(NewEmitterDef())
	e.IsWeatherParticle = true
	e.ParticlesPerSecond = 100
	e.Gravity = 2

	if changed, err := s.Rescale(3, 1); err != nil || !changed {
		t.Fatalf("Rescale() = %v, %v", changed, err)
	}
	if e.ParticlesPerSecond != 100 || e.UseBursts || e.Gravity != 2 {
		t.Errorf("weather emitter changed: pps %d bursts %v gravity %v", e.ParticlesPerSecond, e.UseBursts, e.Gravity)
	}
	if e.Lifetime != 3 {
		t.Errorf("Lifetime = %v, want 3", e.Lifetime)
	}
}

// TestRescale_Invalid tests rejected and no-op factors
func TestRescale_Invalid(t *testing.T) {
	s := sampleSystem()
	for _, f := range []float32{0, -1} {
		if _, err := s.Rescale(f, 1); !errors.Is(err, ErrInvalidScale) {
			t.Errorf("Rescale(%v) = %v, want ErrInvalidScale", f, err)
		}
	}
	if changed, err := s.Rescale(1, 1); changed || err != nil {
		t.Errorf("Rescale(1, 1) = %v, %v, want no change", changed, err)
	}
}
