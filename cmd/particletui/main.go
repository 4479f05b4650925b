// Command particletui previews a particle effect in the terminal.
//
// Particles are drawn as coloured glyphs at their projected centres; denser
// and larger particles use heavier glyphs.
//
// Usage:
//
//	go run ./cmd/particletui -in effect.alo
//
// Keys: space respawns, k kills the newest instance, p pauses, r clears,
// h/l orbit the camera, w toggles wind, q or Escape quits.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/decker502/aloparticles/internal/particle"
	"github.com/decker502/aloparticles/pkg/config"
	"github.com/decker502/aloparticles/pkg/effects"
	"github.com/decker502/aloparticles/pkg/engine"
	"github.com/decker502/aloparticles/pkg/render"
)

var (
	inFlag      = flag.String("in", "", "Effect file to preview")
	configFlag  = flag.String("config", "", "YAML configuration file")
	verboseFlag = flag.Bool("verbose", false, "Log to stderr (garbles the display)")
)

// Terminal cells are about twice as tall as they are wide.
const cellAspect = 2

// glyphs from faint to dense.
var glyphs = []rune{'.', '·', '*', 'o', 'O', '@', '█'}

type preview struct {
	screen tcell.Screen
	engine *engine.Engine
	def    *particle.ParticleSystemDef

	width, height int
	projector     render.Projector
	fov           float64
	points        []render.Point
	newest        *engine.ParticleSystemInstance

	start   time.Time
	offset  float64 // Simulation time accumulated before the last pause
	paused  bool
	message string
}

func newPreview(screen tcell.Screen, cfg *config.Config, def *particle.ParticleSystemDef) *preview {
	p := &preview{
		screen: screen,
		engine: cfg.NewEngine(nil),
		def:    def,
		fov:    cfg.Viewer.FOV * math.Pi / 180,
		start:  time.Now(),
	}
	p.resize()
	p.spawn()
	return p
}

func (p *preview) resize() {
	p.width, p.height = p.screen.Size()
	p.projector = render.NewProjector(p.width, p.height*cellAspect, p.fov)
}

func (p *preview) now() float64 {
	if p.paused {
		return p.offset
	}
	return p.offset + time.Since(p.start).Seconds()
}

func (p *preview) spawn() {
	p.newest = p.engine.SpawnParticleSystem(p.def, nil)
	p.message = "spawned " + p.def.Name
}

func (p *preview) togglePause() {
	if p.paused {
		p.start = time.Now()
	} else {
		p.offset = p.now()
	}
	p.paused = !p.paused
}

func (p *preview) orbit(angle float64) {
	c := p.engine.Camera()
	rot := r3.NewRotation(angle, r3.Vec{Z: 1})
	c.Position = r3.Add(c.Target, rot.Rotate(r3.Sub(c.Position, c.Target)))
	p.engine.SetCamera(c)
}

// handleInput processes one event and reports whether to keep running.
func (p *preview) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() != tcell.KeyRune {
			return true
		}
		switch ev.Rune() {
		case 'q':
			return false
		case ' ':
			p.spawn()
		case 'k':
			if p.newest != nil && !p.newest.Removed() {
				p.engine.KillParticleSystem(p.newest)
				p.message = "killed"
			}
		case 'p':
			p.togglePause()
		case 'r':
			p.engine.Clear()
			p.message = "cleared"
		case 'h':
			p.orbit(-math.Pi / 36)
		case 'l':
			p.orbit(math.Pi / 36)
		case 'w':
			if p.engine.Wind() == (r3.Vec{}) {
				p.engine.SetWind(r3.Vec{X: 2})
			} else {
				p.engine.SetWind(r3.Vec{})
			}
			p.message = fmt.Sprintf("wind %v", p.engine.Wind())
		}
	case *tcell.EventResize:
		p.resize()
		p.screen.Sync()
	}
	return true
}

func (p *preview) draw() {
	p.screen.Clear()
	bg := p.engine.Background()
	base := tcell.StyleDefault.Background(tcell.NewRGBColor(int32(bg.R), int32(bg.G), int32(bg.B)))
	p.screen.Fill(' ', base)

	p.points = p.points[:0]
	for _, em := range render.DrawList(p.engine) {
		p.points = p.projector.AppendPoints(p.points, p.engine, em)
	}
	for _, pt := range p.points {
		x, y := int(pt.X), int(pt.Y/cellAspect)
		if x < 0 || y < 0 || x >= p.width || y >= p.height-1 || pt.Color.A == 0 {
			continue
		}
		fg := tcell.NewRGBColor(int32(pt.Color.R), int32(pt.Color.G), int32(pt.Color.B))
		p.screen.SetContent(x, y, glyph(pt), nil, base.Foreground(fg))
	}

	status := fmt.Sprintf(" %s  t=%.1fs  instances %d  emitters %d  particles %d  %s",
		p.def.Name, p.now(), len(p.engine.Instances()), p.engine.NumEmitters(), p.engine.NumParticles(), p.message)
	if p.paused {
		status += "  [paused]"
	}
	statusStyle := tcell.StyleDefault.Reverse(true)
	for i, r := range []rune(status) {
		if i >= p.width {
			break
		}
		p.screen.SetContent(i, p.height-1, r, nil, statusStyle)
	}
	p.screen.Show()
}

// glyph picks a heavier glyph for more opaque and larger particles.
func glyph(pt render.Point) rune {
	weight := float64(pt.Color.A) / 255 * min(pt.Radius/4, 1.5)
	i := int(weight / 1.5 * float64(len(glyphs)-1))
	return glyphs[max(0, min(i, len(glyphs)-1))]
}

func (p *preview) run() {
	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			eventChan <- p.screen.PollEvent()
		}
	}()

	for {
		select {
		case ev := <-eventChan:
			if ev == nil || !p.handleInput(ev) {
				return
			}
		case <-ticker.C:
			if !p.paused {
				p.engine.Update(p.now())
			}
			p.draw()
		}
	}
}

func main() {
	flag.Parse()
	if !*verboseFlag {
		log.SetOutput(io.Discard)
	}
	if *inFlag == "" {
		fmt.Fprintln(os.Stderr, "particletui: -in is required")
		os.Exit(2)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	def, err := effects.Load(nil, *inFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load effect: %v\n", err)
		os.Exit(1)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer screen.Fini()

	newPreview(screen, cfg, def).run()
}
