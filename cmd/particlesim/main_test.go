package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"

	"github.com/decker502/aloparticles/internal/particle"
	"github.com/decker502/aloparticles/pkg/telemetry"
)

func writeEffect(t *testing.T, dir string) string {
	t.Helper()
	em := particle.NewEmitterDef()
	em.Lifetime = 1
	em.RandomLifetimePerc = 0
	em.ParticlesPerSecond = 10
	def := particle.NewParticleSystemDef()
	def.Name = "sparks"
	def.AddRootEmitter(em)

	path := filepath.Join(dir, "sparks.alo")
	if err := def.SaveFile(path); err != nil {
		t.Fatalf("SaveFile() error: %v", err)
	}
	return path
}

// TestRun tests a full run with statistics, export and re-encoding.
func TestRun(t *testing.T) {
	dir := t.TempDir()
	opts := options{
		in:          writeEffect(t, dir),
		frames:      30,
		dt:          0.1,
		csvPath:     filepath.Join(dir, "stats.csv"),
		dumpPath:    filepath.Join(dir, "sparks.yaml"),
		outPath:     filepath.Join(dir, "slow.alo"),
		rescaleTime: 2,
		rescaleSize: 1,
		kill:        -1,
	}
	var stdout bytes.Buffer
	if err := run(opts, &stdout); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "sparks: 1 emitters, 30 frames") {
		t.Errorf("stdout = %q", stdout.String())
	}

	data, err := os.ReadFile(opts.csvPath)
	if err != nil {
		t.Fatalf("ReadFile(csv) error: %v", err)
	}
	var rows []telemetry.FrameStats
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		t.Fatalf("UnmarshalBytes() error: %v", err)
	}
	if len(rows) != 30 {
		t.Fatalf("got %d rows, want 30", len(rows))
	}
	// Stretched to a two second lifetime at five per second, the count
	// levels off at about ten.
	if last := rows[len(rows)-1].Particles; last < 8 || last > 12 {
		t.Errorf("steady state particles = %d, want about 10", last)
	}

	slow, err := particle.LoadFile(opts.outPath)
	if err != nil {
		t.Fatalf("LoadFile(out) error: %v", err)
	}
	if got := slow.Emitters[0].Lifetime; got != 2 {
		t.Errorf("re-encoded lifetime = %v, want 2", got)
	}

	// The YAML export loads back as an input.
	opts2 := options{in: opts.dumpPath, frames: 1, dt: 0.1, rescaleTime: 1, rescaleSize: 1, kill: -1}
	if err := run(opts2, &bytes.Buffer{}); err != nil {
		t.Errorf("run() on the YAML export error: %v", err)
	}
}

// TestRun_Kill tests that killing the instance drains the particles.
func TestRun_Kill(t *testing.T) {
	dir := t.TempDir()
	opts := options{
		in:          writeEffect(t, dir),
		frames:      40,
		dt:          0.1,
		csvPath:     filepath.Join(dir, "stats.csv"),
		rescaleTime: 1,
		rescaleSize: 1,
		kill:        10,
	}
	if err := run(opts, &bytes.Buffer{}); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	var rows []telemetry.FrameStats
	data, _ := os.ReadFile(opts.csvPath)
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		t.Fatalf("UnmarshalBytes() error: %v", err)
	}
	last := rows[len(rows)-1]
	if last.Particles != 0 || last.Instances != 0 {
		t.Errorf("last frame = %+v, want no particles or instances", last)
	}
}

// TestRun_Errors tests rejected invocations.
func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		opts options
	}{
		{"no input", options{rescaleTime: 1, rescaleSize: 1}},
		{"missing input", options{in: filepath.Join(dir, "none.alo"), rescaleTime: 1, rescaleSize: 1}},
		{"bad scale", options{in: writeEffect(t, dir), rescaleTime: 0, rescaleSize: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := run(tt.opts, &bytes.Buffer{}); err == nil {
				t.Error("run() error = nil, want error")
			}
		})
	}
}
