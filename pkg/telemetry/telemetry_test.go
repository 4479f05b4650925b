package telemetry

import (
	"bytes"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"

	"github.com/decker502/aloparticles/internal/particle"
	"github.com/decker502/aloparticles/pkg/engine"
)

// TestRecorder_HeaderOnce tests that the header is only written before the
// first row.
func TestRecorder_HeaderOnce(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecorder(&buf)
	for i := 0; i < 3; i++ {
		if err := r.Write(FrameStats{Frame: i, Particles: i * 10}); err != nil {
			t.Fatalf("Write() error: %v", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if lines[0] != "frame,time,instances,emitters,particles,delta" {
		t.Errorf("header = %q", lines[0])
	}
	if strings.Count(buf.String(), "frame") != 1 {
		t.Error("header written more than once")
	}

	var rows []FrameStats
	if err := gocsv.UnmarshalString(buf.String(), &rows); err != nil {
		t.Fatalf("UnmarshalString() error: %v", err)
	}
	if len(rows) != 3 || rows[2].Particles != 20 {
		t.Errorf("rows = %+v, want three rows ending with 20 particles", rows)
	}
}

// TestRecorder_Nil tests that a nil recorder is a no-op.
func TestRecorder_Nil(t *testing.T) {
	r := NewRecorder(nil)
	if r != nil {
		t.Fatal("NewRecorder(nil) != nil")
	}
	if err := r.Sample(engine.New(nil, rand.New(rand.NewSource(1)))); err != nil {
		t.Errorf("Sample() on nil recorder error: %v", err)
	}
	if s := r.Summary(); s.Frames != 0 {
		t.Errorf("Summary().Frames = %d, want 0", s.Frames)
	}
}

// TestRecorder_Sample tests sampling a running engine.
func TestRecorder_Sample(t *testing.T) {
	em := particle.NewEmitterDef()
	em.Lifetime = 100
	em.RandomLifetimePerc = 0
	em.ParticlesPerSecond = 10
	def := particle.NewParticleSystemDef()
	def.AddRootEmitter(em)

	e := engine.New(nil, rand.New(rand.NewSource(1)))
	e.SpawnParticleSystem(def, nil)

	var buf bytes.Buffer
	r := NewRecorder(&buf)
	for i := 1; i <= 4; i++ {
		e.Update(float64(i) * 0.5)
		if err := r.Sample(e); err != nil {
			t.Fatalf("Sample() error: %v", err)
		}
	}

	var rows []FrameStats
	if err := gocsv.UnmarshalString(buf.String(), &rows); err != nil {
		t.Fatalf("UnmarshalString() error: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}
	total := 0
	for i, row := range rows {
		if row.Frame != i {
			t.Errorf("row %d Frame = %d", i, row.Frame)
		}
		if row.Emitters != 1 || row.Instances != 1 {
			t.Errorf("row %d = %+v, want one instance and one emitter", i, row)
		}
		total += row.Delta
	}
	if total != e.NumParticles() {
		t.Errorf("sum of deltas = %d, want %d", total, e.NumParticles())
	}
	if rows[3].Particles <= rows[0].Particles {
		t.Errorf("particles did not grow: %d then %d", rows[0].Particles, rows[3].Particles)
	}

	s := r.Summary()
	if s.Frames != 4 || s.PeakParticles != e.NumParticles() || s.PeakEmitters != 1 {
		t.Errorf("Summary() = %+v", s)
	}
}

// TestPercentile tests percentile interpolation.
func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5}, 0.5, 5},
		{"p0", []float64{1, 2, 3, 4, 5}, 0, 1},
		{"p100", []float64{1, 2, 3, 4, 5}, 1, 5},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
		{"above range", []float64{1, 2}, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percentile(tt.sorted, tt.p); math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}
