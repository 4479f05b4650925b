package main

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/decker502/aloparticles/pkg/engine"
	"github.com/decker502/aloparticles/pkg/render"
)

const (
	gridSize  = 500.0
	gridStep  = 50.0
	quadVerts = 4
)

var gridColor = color.RGBA{R: 0x50, G: 0x50, B: 0x70, A: 0xFF}

// batch holds the per-frame vertex scratch space, reused across emitters.
type batch struct {
	vertices []ebiten.Vertex
}

// Draw renders the ground, every visible emitter and the overlay.
func (v *Viewer) Draw(screen *ebiten.Image) {
	screen.Fill(v.engine.Background())
	if v.engine.Ground() {
		v.drawGround(screen)
	}
	for _, em := range render.DrawList(v.engine) {
		v.drawEmitter(screen, em)
	}
	v.drawUI(screen)
}

func (v *Viewer) drawGround(screen *ebiten.Image) {
	for d := -gridSize; d <= gridSize; d += gridStep {
		v.drawLine(screen, r3.Vec{X: d, Y: -gridSize}, r3.Vec{X: d, Y: gridSize})
		v.drawLine(screen, r3.Vec{X: -gridSize, Y: d}, r3.Vec{X: gridSize, Y: d})
	}
}

func (v *Viewer) drawLine(screen *ebiten.Image, a, b r3.Vec) {
	x0, y0, _, ok0 := v.projector.Project(v.engine, a)
	x1, y1, _, ok1 := v.projector.Project(v.engine, b)
	if !ok0 || !ok1 {
		return
	}
	vector.StrokeLine(screen, float32(x0), float32(y0), float32(x1), float32(y1), 1, gridColor, true)
}

// drawEmitter projects the emitter's quads and draws them in one call.
// Quads with a corner behind the camera collapse to a point.
func (v *Viewer) drawEmitter(screen *ebiten.Image, em *engine.EmitterInstance) {
	verts, indices := em.Buffers()
	if len(indices) == 0 {
		return
	}
	colorTex, _ := em.Textures()
	img := v.textures.image(colorTex)
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	state := em.Blend()

	out := v.batch.vertices[:0]
	for q := 0; q+quadVerts <= len(verts); q += quadVerts {
		visible := true
		base := len(out)
		for _, vert := range verts[q : q+quadVerts] {
			x, y, _, ok := v.projector.Project(v.engine, vert.Position)
			visible = visible && ok
			out = append(out, toEbitenVertex(vert, x, y, w, h, state.ColorOp))
		}
		if !visible {
			for i := base; i < len(out); i++ {
				out[i].DstX, out[i].DstY = out[base].DstX, out[base].DstY
				out[i].ColorA = 0
			}
		}
	}
	v.batch.vertices = out

	op := &ebiten.DrawTrianglesOptions{AntiAlias: true, Blend: ebitenBlend(state)}
	screen.DrawTriangles(out, indices, img, op)
}

func toEbitenVertex(vert engine.Vertex, x, y float64, w, h int, op engine.ColorOp) ebiten.Vertex {
	scale := float32(1) / 255
	if op == engine.OpModulate2x {
		scale *= 2
	}
	return ebiten.Vertex{
		DstX:   float32(x),
		DstY:   float32(y),
		SrcX:   vert.U * float32(w),
		SrcY:   vert.V * float32(h),
		ColorR: float32(vert.Color.R) * scale,
		ColorG: float32(vert.Color.G) * scale,
		ColorB: float32(vert.Color.B) * scale,
		ColorA: float32(vert.Color.A) / 255,
	}
}

// ebitenBlend maps an emitter render state onto an ebiten blend. ebiten
// blends premultiplied colours, so a source alpha factor is already applied
// and becomes One. OpAdd has no ebiten counterpart and draws as a modulate.
func ebitenBlend(s engine.BlendState) ebiten.Blend {
	src := blendFactor(s.SrcBlend)
	if s.SrcBlend == engine.BlendSrcAlpha {
		src = ebiten.BlendFactorOne
	}
	dst := blendFactor(s.DestBlend)
	return ebiten.Blend{
		BlendFactorSourceRGB:        src,
		BlendFactorSourceAlpha:      src,
		BlendFactorDestinationRGB:   dst,
		BlendFactorDestinationAlpha: dst,
		BlendOperationRGB:           ebiten.BlendOperationAdd,
		BlendOperationAlpha:         ebiten.BlendOperationAdd,
	}
}

func blendFactor(f engine.BlendFactor) ebiten.BlendFactor {
	switch f {
	case engine.BlendZero:
		return ebiten.BlendFactorZero
	case engine.BlendSrcColor:
		return ebiten.BlendFactorSourceColor
	case engine.BlendSrcAlpha:
		return ebiten.BlendFactorSourceAlpha
	case engine.BlendInvSrcAlpha:
		return ebiten.BlendFactorOneMinusSourceAlpha
	}
	return ebiten.BlendFactorOne
}

// drawUI draws the overlay with effect info and controls.
func (v *Viewer) drawUI(screen *ebiten.Image) {
	if len(v.filteredEffects) == 0 {
		ebitenutil.DebugPrintAt(screen, "No effects match current filter", 10, 10)
		return
	}
	current := v.filteredEffects[v.currentIndex]

	lines := []string{
		fmt.Sprintf("Particle Viewer - Effect %d/%d", v.currentIndex+1, len(v.filteredEffects)),
		fmt.Sprintf("Effect: %s", current.Name),
		fmt.Sprintf("Instances: %d  Emitters: %d  Particles: %d",
			len(v.engine.Instances()), v.engine.NumEmitters(), v.engine.NumParticles()),
		fmt.Sprintf("Time: %.2fs  FPS: %.0f", v.now, ebiten.ActualFPS()),
	}
	if v.searchQuery != "" {
		lines = append(lines, fmt.Sprintf("Filter: %q (%d/%d effects)", v.searchQuery, len(v.filteredEffects), len(v.allEffects)))
	}
	if v.searchMode {
		lines = append(lines, fmt.Sprintf("SEARCH: %s_", v.searchQuery), "(Type to filter, Backspace to delete, Enter/Esc to exit)")
	} else if v.statusMessage != "" {
		lines = append(lines, v.statusMessage)
	}
	for i, line := range lines {
		ebitenutil.DebugPrintAt(screen, line, 10, 10+i*20)
	}

	controls := []string{
		"Navigation: <-/-> = Prev/Next  Home/End = First/Last  F or / = Search",
		"Actions:    Click/Space = Spawn  K = Kill last  R = Clear  P = Pause  Q = Quit",
		"Scene:      A/D/Wheel = Camera  W = Wind  G = Ground  H = Heat debug  S = Save settings",
	}
	y := v.cfg.Viewer.Height - len(controls)*20 - 10
	for i, line := range controls {
		ebitenutil.DebugPrintAt(screen, line, 10, y+i*20)
	}
	if v.paused {
		ebitenutil.DebugPrintAt(screen, "PAUSED (Press P to resume)", v.cfg.Viewer.Width-220, 10)
	} else if v.autoPlay {
		ebitenutil.DebugPrintAt(screen, "AUTO-PLAY MODE", v.cfg.Viewer.Width-140, 10)
	}
}
