// Package render turns engine output into screen space for the viewers.
package render

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/decker502/aloparticles/pkg/engine"
)

// Near is the closest view depth that is still drawn.
const Near = 1.0

// Projector maps world positions onto a screen through the engine camera.
type Projector struct {
	Width, Height float64
	// Focal is the distance to the image plane in pixels.
	Focal float64
}

// NewProjector returns a projector for a screen of the given size with a
// vertical field of view of fovY radians.
func NewProjector(width, height int, fovY float64) Projector {
	return Projector{
		Width:  float64(width),
		Height: float64(height),
		Focal:  float64(height) / 2 / math.Tan(fovY/2),
	}
}

// Project returns the screen position of p and its distance in front of the
// camera. ok is false for points closer than Near.
func (pr Projector) Project(e *engine.Engine, p r3.Vec) (x, y, depth float64, ok bool) {
	v := e.ViewTransform(p)
	depth = -v.Z
	if depth < Near {
		return 0, 0, depth, false
	}
	x = pr.Width/2 + v.X*pr.Focal/depth
	y = pr.Height/2 - v.Y*pr.Focal/depth
	return x, y, depth, true
}

// Unproject returns the point on the plane z = height under screen position
// (x, y). ok is false when the view ray is parallel to the plane or points
// away from it.
func (pr Projector) Unproject(e *engine.Engine, x, y, height float64) (r3.Vec, bool) {
	cam := e.Camera()
	dir := e.Billboard(r3.Vec{
		X: (x - pr.Width/2) / pr.Focal,
		Y: -(y - pr.Height/2) / pr.Focal,
		Z: -1,
	})
	if math.Abs(dir.Z) < 1e-9 {
		return r3.Vec{}, false
	}
	t := (height - cam.Position.Z) / dir.Z
	if t <= 0 {
		return r3.Vec{}, false
	}
	return r3.Add(cam.Position, r3.Scale(t, dir)), true
}

// DrawList returns the emitters to draw, furthest instance first. Hidden
// emitters are left out, and so are heat emitters unless e draws them.
func DrawList(e *engine.Engine) []*engine.EmitterInstance {
	instances := slices.Clone(e.Instances())
	slices.SortStableFunc(instances, func(a, b *engine.ParticleSystemInstance) int {
		switch {
		case a.ZDistance() < b.ZDistance():
			return -1
		case a.ZDistance() > b.ZDistance():
			return 1
		}
		return 0
	})

	var out []*engine.EmitterInstance
	for _, inst := range instances {
		for _, em := range inst.Emitters() {
			if em.Visible() && !em.IsHeatEmitter() && em.ParticleCount() > 0 {
				out = append(out, em)
			}
		}
	}
	return out
}
