package particle

import (
	"encoding/binary"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

// TestDistributionSize tests the persisted layout size
func TestDistributionSize(t *testing.T) {
	if got := binary.Size(Distribution{}); got != DistributionSize {
		t.Errorf("binary.Size(Distribution) = %d, want %d", got, DistributionSize)
	}
}

// TestDistributionSample tests that samples stay inside each shape
func TestDistributionSample(t *testing.T) {
	const eps = 1e-4
	tests := []struct {
		name  string
		dist  Distribution
		check func(v r3.Vec) bool
	}{
		{"Exact", Distribution{Kind: Exact, Value: [3]float32{1, 2, 3}}, func(v r3.Vec) bool {
			return v == r3.Vec{X: 1, Y: 2, Z: 3}
		}},
		{"Box", Distribution{Kind: Box, Min: [3]float32{-1, 0, 5}, Max: [3]float32{1, 0, 6}}, func(v r3.Vec) bool {
			return v.X >= -1 && v.X < 1 && v.Y == 0 && v.Z >= 5 && v.Z < 6
		}},
		{"Cube", Distribution{Kind: Cube, SideLength: 10}, func(v r3.Vec) bool {
			return math.Abs(v.X) <= 5 && math.Abs(v.Y) <= 5 && math.Abs(v.Z) <= 5
		}},
		{"Sphere edge", Distribution{Kind: Sphere, SphereRadius: 4, SphereEdge: 1}, func(v r3.Vec) bool {
			return math.Abs(r3.Norm(v)-4) < eps
		}},
		{"Sphere volume", Distribution{Kind: Sphere, SphereRadius: 4}, func(v r3.Vec) bool {
			return r3.Norm(v) <= 4+eps
		}},
		{"Cylinder edge", Distribution{Kind: Cylinder, CylinderRadius: 3, CylinderEdge: 1, CylinderHeight: 2}, func(v r3.Vec) bool {
			return math.Abs(math.Hypot(v.X, v.Y)-3) < eps && v.Z >= 0 && v.Z < 2
		}},
		{"Unknown kind", Distribution{Kind: 9, Value: [3]float32{1, 1, 1}}, func(v r3.Vec) bool {
			return v == r3.Vec{}
		}},
	}

	rng := rand.New(rand.NewSource(42))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 200; i++ {
				if v := tt.dist.Sample(rng); !tt.check(v) {
					t.Fatalf("Sample() = %v, outside the distribution", v)
				}
			}
		})
	}
}

// TestDistributionScale tests that every length is scaled
func TestDistributionScale(t *testing.T) {
	d := Distribution{
		Kind: Box, Min: [3]float32{-1, -2, -3}, Max: [3]float32{1, 2, 3}, Value: [3]float32{4, 5, 6},
		SideLength: 1, SphereRadius: 2, SphereEdge: 1, CylinderRadius: 3, CylinderHeight: 4,
	}
	d.Scale(2)
	want := Distribution{
		Kind: Box, Min: [3]float32{-2, -4, -6}, Max: [3]float32{2, 4, 6}, Value: [3]float32{8, 10, 12},
		SideLength: 2, SphereRadius: 4, SphereEdge: 1, CylinderRadius: 6, CylinderHeight: 8,
	}
	if d != want {
		t.Errorf("Scale(2) = %+v, want %+v", d, want)
	}
}
