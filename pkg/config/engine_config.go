// Package config loads the engine configuration and persists viewer settings.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"image/color"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/decker502/aloparticles/pkg/engine"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is returned for configuration values that parse but make no sense.
var ErrInvalid = errors.New("invalid configuration")

// Vec3 is a vector written as a three element YAML list.
type Vec3 [3]float64

// R3 converts v for the engine.
func (v Vec3) R3() r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

// FromR3 converts an engine vector.
func FromR3(v r3.Vec) Vec3 { return Vec3{v.X, v.Y, v.Z} }

// Config holds the engine, viewer and simulation settings.
type Config struct {
	Engine EngineConfig `yaml:"engine"`
	Camera CameraConfig `yaml:"camera"`
	Data   DataConfig   `yaml:"data"`
	Viewer ViewerConfig `yaml:"viewer"`
	Sim    SimConfig    `yaml:"sim"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// EngineConfig holds the environment every particle system runs in.
type EngineConfig struct {
	Gravity    Vec3   `yaml:"gravity"` // Normalised by the engine
	Wind       Vec3   `yaml:"wind"`
	Ground     bool   `yaml:"ground"`
	HeatDebug  bool   `yaml:"heat_debug"` // Draw heat particles as ordinary ones
	Seed       int64  `yaml:"seed"`
	Background string `yaml:"background"` // "#RRGGBB" or "#RRGGBBAA"
}

// CameraConfig is the initial look-at camera.
type CameraConfig struct {
	Position Vec3 `yaml:"position"`
	Target   Vec3 `yaml:"target"`
	Up       Vec3 `yaml:"up"`
}

// DataConfig lists where effect files and textures are looked up.
type DataConfig struct {
	BasePaths []string `yaml:"base_paths"` // Each may carry a Data/MegaFiles.xml
}

// ViewerConfig holds window settings for the interactive viewers.
type ViewerConfig struct {
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	TPS    int     `yaml:"tps"`
	FOV    float64 `yaml:"fov"` // Vertical field of view in degrees
}

// SimConfig holds the fixed step used by the headless simulator.
type SimConfig struct {
	DT     float64 `yaml:"dt"`
	Frames int     `yaml:"frames"`
}

// DerivedConfig holds values computed from the loaded configuration.
type DerivedConfig struct {
	Background color.RGBA
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only the keys present in the file are overwritten.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// computeDerived validates the loaded values and fills Derived.
func (c *Config) computeDerived() error {
	bg, err := ParseColor(c.Engine.Background)
	if err != nil {
		return fmt.Errorf("engine.background: %w", err)
	}
	c.Derived.Background = bg

	if c.Sim.DT <= 0 {
		return fmt.Errorf("sim.dt %v: %w", c.Sim.DT, ErrInvalid)
	}
	if c.Viewer.Width <= 0 || c.Viewer.Height <= 0 {
		return fmt.Errorf("viewer size %dx%d: %w", c.Viewer.Width, c.Viewer.Height, ErrInvalid)
	}
	if c.Viewer.TPS <= 0 {
		c.Viewer.TPS = 60
	}
	if c.Viewer.FOV <= 0 || c.Viewer.FOV >= 180 {
		return fmt.Errorf("viewer.fov %v: %w", c.Viewer.FOV, ErrInvalid)
	}
	if c.Camera.Position == c.Camera.Target {
		return fmt.Errorf("camera position equals target: %w", ErrInvalid)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// EngineCamera returns the configured engine camera.
func (c *Config) EngineCamera() engine.Camera {
	return engine.Camera{
		Position: c.Camera.Position.R3(),
		Target:   c.Camera.Target.R3(),
		Up:       c.Camera.Up.R3(),
	}
}

// NewEngine creates an engine seeded and set up from the configuration.
func (c *Config) NewEngine(textures engine.TextureManager) *engine.Engine {
	e := engine.New(textures, rand.New(rand.NewSource(c.Engine.Seed)))
	c.Apply(e)
	return e
}

// Apply copies the environment settings into e.
func (c *Config) Apply(e *engine.Engine) {
	e.SetCamera(c.EngineCamera())
	e.SetGravity(c.Engine.Gravity.R3())
	e.SetWind(c.Engine.Wind.R3())
	e.SetGround(c.Engine.Ground)
	e.SetHeatDebug(c.Engine.HeatDebug)
	e.SetBackground(c.Derived.Background)
}

// ParseColor parses "#RRGGBB" or "#RRGGBBAA". The leading '#' is optional.
func ParseColor(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 && len(h) != 8 {
		return color.RGBA{}, fmt.Errorf("colour %q: %w", s, ErrInvalid)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("colour %q: %w", s, ErrInvalid)
	}
	if len(h) == 6 {
		v = v<<8 | 0xFF
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// FormatColor is the inverse of ParseColor.
func FormatColor(c color.RGBA) string {
	if c.A == 0xFF {
		return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02X%02X%02X%02X", c.R, c.G, c.B, c.A)
}
