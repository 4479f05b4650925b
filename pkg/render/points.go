package render

import (
	"image/color"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/decker502/aloparticles/pkg/engine"
)

// Point is a particle reduced to its projected centre, for displays that
// cannot draw textured quads.
type Point struct {
	X, Y  float64
	Depth float64
	// Radius is half the projected quad diagonal in pixels.
	Radius float64
	Color  color.NRGBA
}

// AppendPoints appends a Point for every particle of em that is in front of
// the camera. The colour is the average of the quad's corners.
func (pr Projector) AppendPoints(dst []Point, e *engine.Engine, em *engine.EmitterInstance) []Point {
	verts, indices := em.Buffers()
	for k := 0; k+6 <= len(indices); k += 6 {
		base := indices[k]
		for _, i := range indices[k+1 : k+6] {
			base = min(base, i)
		}
		if int(base)+4 > len(verts) {
			continue
		}
		quad := verts[base : base+4]

		var centre r3.Vec
		var r, g, b, a int
		for _, v := range quad {
			centre = r3.Add(centre, v.Position)
			r += int(v.Color.R)
			g += int(v.Color.G)
			b += int(v.Color.B)
			a += int(v.Color.A)
		}
		centre = r3.Scale(0.25, centre)

		x, y, depth, ok := pr.Project(e, centre)
		if !ok {
			continue
		}
		radius := 0.0
		if cx, cy, _, ok := pr.Project(e, quad[0].Position); ok {
			radius = max(abs(cx-x), abs(cy-y))
		}
		dst = append(dst, Point{
			X: x, Y: y, Depth: depth, Radius: radius,
			Color: color.NRGBA{R: uint8(r / 4), G: uint8(g / 4), B: uint8(b / 4), A: uint8(a / 4)},
		})
	}
	return dst
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
