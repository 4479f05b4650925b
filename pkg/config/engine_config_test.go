package config

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/decker502/aloparticles/pkg/engine"
)

// TestLoad_Defaults tests that the embedded defaults match the engine's own.
func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if cfg.Derived.Background != engine.DefaultBackground {
		t.Errorf("Background: got %v, want %v", cfg.Derived.Background, engine.DefaultBackground)
	}
	if cam := cfg.EngineCamera(); cam != engine.DefaultCamera {
		t.Errorf("EngineCamera(): got %+v, want %+v", cam, engine.DefaultCamera)
	}
	if g := cfg.Engine.Gravity.R3(); g != (r3.Vec{Z: -1}) {
		t.Errorf("Gravity: got %v, want (0,0,-1)", g)
	}
	if !cfg.Engine.Ground {
		t.Error("Ground: got false, want true")
	}
	if cfg.Sim.DT <= 0 || cfg.Sim.Frames <= 0 {
		t.Errorf("Sim: got %+v, want positive step and frame count", cfg.Sim)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

// TestLoad_Overlay tests that a user file only replaces the keys it names.
func TestLoad_Overlay(t *testing.T) {
	path := writeConfig(t, `
engine:
  wind: [2, 0, 0]
  background: "#FF000080"
sim:
  frames: 10
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Engine.Wind != (Vec3{2, 0, 0}) {
		t.Errorf("Wind: got %v, want [2 0 0]", cfg.Engine.Wind)
	}
	if cfg.Sim.Frames != 10 {
		t.Errorf("Frames: got %d, want 10", cfg.Sim.Frames)
	}
	want := color.RGBA{R: 0xFF, A: 0x80}
	if cfg.Derived.Background != want {
		t.Errorf("Background: got %v, want %v", cfg.Derived.Background, want)
	}
	// Untouched keys keep the defaults.
	if cfg.Engine.Gravity != (Vec3{0, 0, -1}) {
		t.Errorf("Gravity: got %v, want default", cfg.Engine.Gravity)
	}
	if cfg.Sim.DT <= 0 {
		t.Errorf("DT: got %v, want default", cfg.Sim.DT)
	}
}

// TestLoad_Errors tests rejected configuration files.
func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		invalid bool
	}{
		{"bad yaml", "engine: [", false},
		{"bad colour", "engine:\n  background: blue\n", true},
		{"zero step", "sim:\n  dt: 0\n", true},
		{"no window", "viewer:\n  width: 0\n", true},
		{"degenerate camera", "camera:\n  position: [0, 0, 0]\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if got := errors.Is(err, ErrInvalid); got != tt.invalid {
				t.Errorf("errors.Is(err, ErrInvalid) = %v, want %v (%v)", got, tt.invalid, err)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing) error = %v, want os.ErrNotExist", err)
	}
}

// TestConfig_WriteYAML tests that a written configuration loads back.
func TestConfig_WriteYAML(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	cfg.Engine.Wind = Vec3{1, 2, 3}
	cfg.Data.BasePaths = []string{"a", "b"}

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML() error: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Engine.Wind != cfg.Engine.Wind {
		t.Errorf("Wind: got %v, want %v", got.Engine.Wind, cfg.Engine.Wind)
	}
	if len(got.Data.BasePaths) != 2 || got.Data.BasePaths[1] != "b" {
		t.Errorf("BasePaths: got %v, want [a b]", got.Data.BasePaths)
	}
}

// TestConfig_NewEngine tests that the engine picks up the configuration.
func TestConfig_NewEngine(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
engine:
  gravity: [0, 0, -9.8]
  wind: [0, 5, 0]
  ground: false
  heat_debug: true
`))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	e := cfg.NewEngine(nil)
	if g := e.Gravity(); g != (r3.Vec{Z: -1}) {
		t.Errorf("Gravity(): got %v, want (0,0,-1)", g)
	}
	if w := e.Wind(); w != (r3.Vec{Y: 5}) {
		t.Errorf("Wind(): got %v, want (0,5,0)", w)
	}
	if e.Ground() {
		t.Error("Ground(): got true, want false")
	}
	if !e.HeatDebug() {
		t.Error("HeatDebug(): got false, want true")
	}
}

// TestParseColor tests colour parsing and formatting.
func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		format  string
		wantErr bool
	}{
		{"#140834", color.RGBA{R: 0x14, G: 0x08, B: 0x34, A: 0xFF}, "#140834", false},
		{"ff8000", color.RGBA{R: 0xFF, G: 0x80, A: 0xFF}, "#FF8000", false},
		{"#01020304", color.RGBA{R: 1, G: 2, B: 3, A: 4}, "#01020304", false},
		{"#12345", color.RGBA{}, "", true},
		{"#GGGGGG", color.RGBA{}, "", true},
		{"", color.RGBA{}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got != tt.want {
				t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if s := FormatColor(got); s != tt.format {
				t.Errorf("FormatColor(%v) = %q, want %q", got, s, tt.format)
			}
		})
	}
}
