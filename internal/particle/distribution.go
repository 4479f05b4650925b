package particle

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"
)

// DistributionKind selects the sampling rule of a Distribution.
type DistributionKind uint32

const (
	Exact    DistributionKind = 0
	Box      DistributionKind = 1
	Cube     DistributionKind = 2
	Sphere   DistributionKind = 3
	Cylinder DistributionKind = 4

	NumDistributionKinds = 5
)

// DistributionSize is the encoded size of a Distribution in bytes.
const DistributionSize = 64

// Distribution is a random sampling rule for initial particle positions and
// speeds. Its field order and widths are the persisted little-endian layout;
// only the fields used by Kind are meaningful, the rest are round-tripped.
type Distribution struct {
	Kind           DistributionKind `yaml:"kind"`
	Min            [3]float32       `yaml:"min,flow"`
	Max            [3]float32       `yaml:"max,flow"`
	SideLength     float32          `yaml:"sideLength"`
	SphereRadius   float32          `yaml:"sphereRadius"`
	SphereEdge     uint32           `yaml:"sphereEdge"`
	CylinderRadius float32          `yaml:"cylinderRadius"`
	CylinderEdge   uint32           `yaml:"cylinderEdge"`
	CylinderHeight float32          `yaml:"cylinderHeight"`
	Value          [3]float32       `yaml:"value,flow"`
}

// Sample draws one vector from d. No rejection sampling is used.
func (d *Distribution) Sample(rng *rand.Rand) r3.Vec {
	switch d.Kind {
	case Exact:
		return vec3(d.Value)

	case Box:
		return r3.Vec{
			X: float64(RandomInRange(rng, d.Min[0], d.Max[0])),
			Y: float64(RandomInRange(rng, d.Min[1], d.Max[1])),
			Z: float64(RandomInRange(rng, d.Min[2], d.Max[2])),
		}

	case Cube:
		s := d.SideLength
		return r3.Vec{
			X: float64(RandomInRange(rng, -s, s) / 2),
			Y: float64(RandomInRange(rng, -s, s) / 2),
			Z: float64(RandomInRange(rng, -s, s) / 2),
		}

	case Sphere:
		angleXY := float64(RandomInRange(rng, -math.Pi, math.Pi))
		angleZ := float64(RandomInRange(rng, -math.Pi/2, math.Pi/2))
		radius := float64(edgeScale(rng, d.SphereEdge) * d.SphereRadius)
		return r3.Vec{
			X: radius * math.Cos(angleZ) * math.Cos(angleXY),
			Y: radius * math.Cos(angleZ) * math.Sin(angleXY),
			Z: radius * math.Sin(angleZ),
		}

	case Cylinder:
		angleXY := float64(RandomInRange(rng, -math.Pi, math.Pi))
		radius := float64(edgeScale(rng, d.CylinderEdge) * d.CylinderRadius)
		return r3.Vec{
			X: radius * math.Cos(angleXY),
			Y: radius * math.Sin(angleXY),
			Z: float64(RandomInRange(rng, 0, d.CylinderHeight)),
		}
	}
	return r3.Vec{}
}

// Scale multiplies every length in d by f.
func (d *Distribution) Scale(f float32) {
	for i := 0; i < 3; i++ {
		d.Min[i] *= f
		d.Max[i] *= f
		d.Value[i] *= f
	}
	d.SideLength *= f
	d.SphereRadius *= f
	d.CylinderRadius *= f
	d.CylinderHeight *= f
}

// edgeScale returns 1 for edge-only sampling and a uniform [0,1) otherwise.
func edgeScale(rng *rand.Rand, edge uint32) float32 {
	if edge != 0 {
		return 1
	}
	return RandomInRange(rng, 0, 1)
}

func vec3(v [3]float32) r3.Vec {
	return r3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
}
