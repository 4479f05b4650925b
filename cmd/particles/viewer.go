package main

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/decker502/aloparticles/internal/megafile"
	"github.com/decker502/aloparticles/internal/particle"
	"github.com/decker502/aloparticles/pkg/config"
	"github.com/decker502/aloparticles/pkg/effects"
	"github.com/decker502/aloparticles/pkg/engine"
	"github.com/decker502/aloparticles/pkg/render"
)

const (
	orbitStep = math.Pi / 90
	windSpeed = 2.0
)

// Viewer implements ebiten.Game for the particle viewer.
type Viewer struct {
	cfg       *config.Config
	settings  *config.SettingsManager
	files     *megafile.FileManager
	engine    *engine.Engine
	textures  *textureCache
	projector render.Projector
	batch     batch

	allEffects      []effects.Entry
	filteredEffects []effects.Entry
	currentIndex    int
	loaded          map[string]*particle.ParticleSystemDef

	searchMode  bool
	searchQuery string

	autoPlay      bool
	lastSpawnTime time.Time
	paused        bool
	now           float64

	spawned       []*engine.ParticleSystemInstance
	statusMessage string
}

// NewViewer creates the viewer and spawns the first effect.
func NewViewer(cfg *config.Config, settings *config.SettingsManager) (*Viewer, error) {
	files, err := megafile.NewFileManager(cfg.Data.BasePaths)
	if err != nil {
		return nil, fmt.Errorf("failed to open data paths: %w", err)
	}

	all, err := effects.Scan(*inFlag)
	if err != nil {
		files.Close()
		return nil, err
	}
	if len(all) == 0 {
		files.Close()
		return nil, fmt.Errorf("no particle effects found in %s", *inFlag)
	}

	query := *filterFlag
	filtered := effects.Filter(all, query)
	if len(filtered) == 0 {
		log.Printf("Warning: No effects match initial filter %q, showing all", query)
		filtered = all
		query = ""
	}

	start := 0
	if *effectFlag != "" {
		if i := effects.Find(filtered, *effectFlag); i >= 0 {
			start = i
		}
	}

	textures := newTextureCache(render.NewTextureLoader(files))
	e := cfg.NewEngine(textures)
	settings.Apply(e)

	v := &Viewer{
		cfg:             cfg,
		settings:        settings,
		files:           files,
		engine:          e,
		textures:        textures,
		projector:       render.NewProjector(cfg.Viewer.Width, cfg.Viewer.Height, cfg.Viewer.FOV*math.Pi/180),
		allEffects:      all,
		filteredEffects: filtered,
		currentIndex:    start,
		loaded:          make(map[string]*particle.ParticleSystemDef),
		searchQuery:     query,
		autoPlay:        *autoPlayFlag,
		lastSpawnTime:   time.Now(),
	}

	v.updateStatusMessage()
	log.Printf("Particle Viewer initialized: %d total effects, %d after filter", len(all), len(filtered))
	v.spawnCurrentEffect(r3.Vec{})
	return v, nil
}

// Close releases the data archives.
func (v *Viewer) Close() {
	if err := v.files.Close(); err != nil {
		log.Printf("Warning: closing data archives: %v", err)
	}
}

// Update advances the simulation by one tick.
func (v *Viewer) Update() error {
	if v.searchMode {
		return v.updateSearchMode()
	}
	if err := v.updateNormalMode(); err != nil {
		return err
	}
	if !v.paused {
		v.now += 1 / float64(ebiten.TPS())
		v.engine.Update(v.now)
	}
	return nil
}

func (v *Viewer) updateSearchMode() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		v.searchMode = false
		v.statusMessage = fmt.Sprintf("Search: %q (%d results)", v.searchQuery, len(v.filteredEffects))
		return nil
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		if len(v.searchQuery) > 0 {
			v.searchQuery = v.searchQuery[:len(v.searchQuery)-1]
			v.applySearch()
		}
		return nil
	}
	if runes := ebiten.AppendInputChars(nil); len(runes) > 0 {
		for _, r := range runes {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
				v.searchQuery += string(r)
			}
		}
		v.applySearch()
	}
	return nil
}

func (v *Viewer) applySearch() {
	v.filteredEffects = effects.Filter(v.allEffects, v.searchQuery)
	v.currentIndex = 0
	log.Printf("Search query: %q, Results: %d", v.searchQuery, len(v.filteredEffects))
}

func (v *Viewer) updateNormalMode() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyQ) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return errQuit
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyF) || inpututil.IsKeyJustPressed(ebiten.KeySlash) {
		v.searchMode = true
		v.statusMessage = "Search mode: Type to filter effects..."
		return nil
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		v.paused = !v.paused
		if v.paused {
			v.statusMessage = "PAUSED - Press P to resume"
		} else {
			v.statusMessage = "Resumed"
		}
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft) {
		v.selectEffect(v.currentIndex - 1)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowRight) {
		v.selectEffect(v.currentIndex + 1)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyHome) {
		v.selectEffect(0)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnd) {
		v.selectEffect(len(v.filteredEffects) - 1)
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		v.engine.Clear()
		v.spawned = nil
		v.statusMessage = "Cleared all particles"
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyK) {
		v.killLast()
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyW) {
		if v.engine.Wind() == (r3.Vec{}) {
			v.engine.SetWind(r3.Vec{X: windSpeed})
		} else {
			v.engine.SetWind(r3.Vec{})
		}
		v.statusMessage = fmt.Sprintf("Wind: %v", v.engine.Wind())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyG) {
		v.engine.SetGround(!v.engine.Ground())
		v.statusMessage = fmt.Sprintf("Ground: %v", v.engine.Ground())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyH) {
		v.engine.SetHeatDebug(!v.engine.HeatDebug())
		v.statusMessage = fmt.Sprintf("Heat debug: %v", v.engine.HeatDebug())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyS) {
		v.saveSettings()
		v.statusMessage = "Settings saved"
	}

	if ebiten.IsKeyPressed(ebiten.KeyA) {
		v.orbit(-orbitStep)
	}
	if ebiten.IsKeyPressed(ebiten.KeyD) {
		v.orbit(orbitStep)
	}
	if _, dy := ebiten.Wheel(); dy != 0 {
		v.zoom(math.Pow(0.9, dy))
	}

	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		v.spawnCurrentEffect(r3.Vec{})
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		x, y := ebiten.CursorPosition()
		if p, ok := v.projector.Unproject(v.engine, float64(x), float64(y), 0); ok {
			v.spawnCurrentEffect(p)
		}
	}

	if v.autoPlay && time.Since(v.lastSpawnTime) > 3*time.Second {
		v.selectEffect(v.currentIndex + 1)
		v.lastSpawnTime = time.Now()
	}
	return nil
}

// selectEffect switches to the effect at index i, wrapping around, and
// spawns it at the origin.
func (v *Viewer) selectEffect(i int) {
	n := len(v.filteredEffects)
	if n == 0 {
		return
	}
	v.currentIndex = (i%n + n) % n
	v.updateStatusMessage()
	v.spawnCurrentEffect(r3.Vec{})
}

func (v *Viewer) spawnCurrentEffect(at r3.Vec) {
	if len(v.filteredEffects) == 0 {
		v.statusMessage = "No effects to spawn"
		return
	}
	entry := v.filteredEffects[v.currentIndex]

	def, ok := v.loaded[entry.Path]
	if !ok {
		var err error
		if def, err = effects.Load(nil, entry.Path); err != nil {
			log.Printf("Failed to load effect %s: %v", entry.Name, err)
			v.statusMessage = fmt.Sprintf("Error: %v", err)
			return
		}
		v.loaded[entry.Path] = def
		v.settings.SetLastFile(entry.Path)
	}

	inst := v.engine.SpawnParticleSystem(def, nil)
	inst.SetPosition(at)
	v.spawned = append(v.spawned, inst)
	v.statusMessage = fmt.Sprintf("Spawned: %s at (%.0f, %.0f)", entry.Name, at.X, at.Y)
}

func (v *Viewer) killLast() {
	for len(v.spawned) > 0 {
		inst := v.spawned[len(v.spawned)-1]
		v.spawned = v.spawned[:len(v.spawned)-1]
		if !inst.Removed() && !inst.Detached() {
			v.engine.KillParticleSystem(inst)
			v.statusMessage = "Killed " + inst.Definition().Name
			return
		}
	}
}

// orbit turns the camera around the vertical axis through its target.
func (v *Viewer) orbit(angle float64) {
	c := v.engine.Camera()
	rot := r3.NewRotation(angle, r3.Vec{Z: 1})
	c.Position = r3.Add(c.Target, rot.Rotate(r3.Sub(c.Position, c.Target)))
	v.engine.SetCamera(c)
}

// zoom scales the camera distance to its target.
func (v *Viewer) zoom(f float64) {
	c := v.engine.Camera()
	offset := r3.Scale(f, r3.Sub(c.Position, c.Target))
	if r3.Norm(offset) < render.Near*10 {
		return
	}
	c.Position = r3.Add(c.Target, offset)
	v.engine.SetCamera(c)
}

func (v *Viewer) saveSettings() {
	v.settings.Capture(v.engine)
	if err := v.settings.Save(); err != nil {
		log.Printf("Warning: %v", err)
	}
}

func (v *Viewer) updateStatusMessage() {
	if len(v.filteredEffects) == 0 {
		v.statusMessage = "No effects available"
		return
	}
	name := v.filteredEffects[v.currentIndex].Name
	v.statusMessage = fmt.Sprintf("Selected: %s", name)
	log.Printf("Current effect: %s (%d/%d)", name, v.currentIndex+1, len(v.filteredEffects))
}

// Layout returns the logical screen size.
func (v *Viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	return v.cfg.Viewer.Width, v.cfg.Viewer.Height
}
