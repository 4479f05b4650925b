package config

import (
	"fmt"
	"log"

	"github.com/quasilyte/gdata/v2"
	"gopkg.in/yaml.v3"

	"github.com/decker502/aloparticles/pkg/engine"
)

// ViewerSettings holds the environment a user adjusted in a viewer. They
// override the engine configuration on the next start.
type ViewerSettings struct {
	Gravity    Vec3         `yaml:"gravity"`
	Wind       Vec3         `yaml:"wind"`
	Camera     CameraConfig `yaml:"camera"`
	Background string       `yaml:"background"`
	Ground     bool         `yaml:"ground"`
	HeatDebug  bool         `yaml:"heatDebug"`
	LastFile   string       `yaml:"lastFile"` // Most recently opened effect
}

// DefaultSettings returns the settings described by cfg. A nil cfg uses the
// embedded defaults.
func DefaultSettings(cfg *Config) *ViewerSettings {
	if cfg == nil {
		var err error
		if cfg, err = Load(""); err != nil {
			panic(fmt.Sprintf("config: embedded defaults: %v", err))
		}
	}
	return &ViewerSettings{
		Gravity:    cfg.Engine.Gravity,
		Wind:       cfg.Engine.Wind,
		Camera:     cfg.Camera,
		Background: cfg.Engine.Background,
		Ground:     cfg.Engine.Ground,
		HeatDebug:  cfg.Engine.HeatDebug,
	}
}

// SettingsManager loads, holds and saves viewer settings.
type SettingsManager struct {
	gdataManager *gdata.Manager // May be nil, in which case settings live in memory only
	defaults     *Config
	settings     *ViewerSettings
}

const (
	settingsObject   = "settings"
	settingsProperty = "viewer"
)

// NewSettingsManager creates a settings manager and loads any saved
// settings. gdataManager may be nil. A failed load is logged and the
// defaults from cfg are used.
func NewSettingsManager(gdataManager *gdata.Manager, cfg *Config) *SettingsManager {
	sm := &SettingsManager{
		gdataManager: gdataManager,
		defaults:     cfg,
		settings:     DefaultSettings(cfg),
	}
	if err := sm.Load(); err != nil {
		log.Printf("[SettingsManager] Warning: Failed to load settings: %v (using defaults)", err)
	}
	return sm
}

// Load reads the saved settings. Without a store, or without saved
// settings, the defaults are used.
func (sm *SettingsManager) Load() error {
	if sm.gdataManager == nil {
		sm.settings = DefaultSettings(sm.defaults)
		return nil
	}
	if !sm.gdataManager.ObjectPropExists(settingsObject, settingsProperty) {
		sm.settings = DefaultSettings(sm.defaults)
		return nil
	}

	data, err := sm.gdataManager.LoadObjectProp(settingsObject, settingsProperty)
	if err != nil {
		sm.settings = DefaultSettings(sm.defaults)
		return fmt.Errorf("failed to load settings: %w", err)
	}

	// Keys missing from older saves keep their default.
	loaded := DefaultSettings(sm.defaults)
	if err := yaml.Unmarshal(data, loaded); err != nil {
		sm.settings = DefaultSettings(sm.defaults)
		return fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	if _, err := ParseColor(loaded.Background); err != nil {
		sm.settings = DefaultSettings(sm.defaults)
		return fmt.Errorf("failed to load settings: %w", err)
	}

	sm.settings = loaded
	log.Printf("[SettingsManager] Settings loaded successfully")
	return nil
}

// Save writes the settings to the store. Without a store it does nothing.
func (sm *SettingsManager) Save() error {
	if sm.gdataManager == nil {
		return nil
	}

	data, err := yaml.Marshal(sm.settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := sm.gdataManager.SaveObjectProp(settingsObject, settingsProperty, data); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	log.Printf("[SettingsManager] Settings saved successfully")
	return nil
}

// GetSettings returns the current settings.
func (sm *SettingsManager) GetSettings() *ViewerSettings {
	return sm.settings
}

// Apply copies the settings into e.
func (sm *SettingsManager) Apply(e *engine.Engine) {
	s := sm.settings
	e.SetGravity(s.Gravity.R3())
	e.SetWind(s.Wind.R3())
	e.SetCamera(engine.Camera{
		Position: s.Camera.Position.R3(),
		Target:   s.Camera.Target.R3(),
		Up:       s.Camera.Up.R3(),
	})
	e.SetGround(s.Ground)
	e.SetHeatDebug(s.HeatDebug)
	if bg, err := ParseColor(s.Background); err == nil {
		e.SetBackground(bg)
	}
}

// Capture records the current environment of e. Only the memory copy
// changes; call Save to persist it.
func (sm *SettingsManager) Capture(e *engine.Engine) {
	c := e.Camera()
	s := sm.settings
	s.Gravity = FromR3(e.Gravity())
	s.Wind = FromR3(e.Wind())
	s.Camera = CameraConfig{Position: FromR3(c.Position), Target: FromR3(c.Target), Up: FromR3(c.Up)}
	s.Background = FormatColor(e.Background())
	s.Ground = e.Ground()
	s.HeatDebug = e.HeatDebug()
}

// SetLastFile remembers the most recently opened effect.
func (sm *SettingsManager) SetLastFile(path string) {
	sm.settings.LastFile = path
}

// SetBackground sets the clear colour. Invalid colours are rejected.
func (sm *SettingsManager) SetBackground(s string) error {
	c, err := ParseColor(s)
	if err != nil {
		return err
	}
	sm.settings.Background = FormatColor(c)
	return nil
}

// Reset restores the defaults in memory.
func (sm *SettingsManager) Reset() {
	sm.settings = DefaultSettings(sm.defaults)
}
