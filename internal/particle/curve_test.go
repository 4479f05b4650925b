package particle

import (
	"math"
	"testing"
)

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

// TestCurveSample_Modes tests sampling of a two-key ramp in every mode
func TestCurveSample_Modes(t *testing.T) {
	tests := []struct {
		interp  Interpolation
		relTime float32
		want    float32
	}{
		{Linear, 50, 0.5},
		{Linear, 25, 0.25},
		{Smooth, 50, 0.5},
		{Smooth, 25, 0.15625},
		{Step, 50, 0},
		{Step, 99, 0},
	}

	for _, tt := range tests {
		t.Run(tt.interp.String(), func(t *testing.T) {
			c := Curve{Keys: []Key{{0, 0}, {100, 1}}, Interpolation: tt.interp}
			if got := c.Sample(Cursor{Prev: 0, Next: 1}, tt.relTime); !approx(got, tt.want) {
				t.Errorf("Sample(%v) = %v, want %v", tt.relTime, got, tt.want)
			}
		})
	}
}

// TestCurveSample_SharedTime tests that coincident keys return the next value
func TestCurveSample_SharedTime(t *testing.T) {
	c := Curve{Keys: []Key{{0, 0}, {50, 1}, {50, 3}, {100, 3}}}
	if got := c.Sample(Cursor{Prev: 1, Next: 2}, 50); got != 3 {
		t.Errorf("Sample at shared time = %v, want 3", got)
	}
	// Stale cursors are clamped to the key range.
	if got := c.Sample(Cursor{Prev: 7, Next: 9}, 100); got != 3 {
		t.Errorf("Sample with stale cursor = %v, want 3", got)
	}
}

// TestCurveIntegrate tests the closed-form integrals of each mode
func TestCurveIntegrate(t *testing.T) {
	tests := []struct {
		name     string
		curve    Curve
		relTime  float32
		lifespan float32
		want     float32
	}{
		{"Linear ramp", Curve{Keys: []Key{{0, 0}, {100, 1}}, Interpolation: Linear}, 100, 2, 1},
		{"Linear half", Curve{Keys: []Key{{0, 0}, {100, 1}}, Interpolation: Linear}, 50, 2, 0.25},
		{"Smooth ramp", Curve{Keys: []Key{{0, 0}, {100, 1}}, Interpolation: Smooth}, 100, 2, 1},
		{"Step flat", Curve{Keys: []Key{{0, 2}, {100, 5}}, Interpolation: Step}, 100, 2, 4},
		{"Constant", NewFlatCurve(3, Linear), 50, 4, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.curve.Integrate(Cursor{Prev: 0, Next: 1}, tt.relTime, tt.lifespan)
			if !approx(got, tt.want) {
				t.Errorf("Integrate = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCurveAdvance tests forward cursor movement and integral accumulation
func TestCurveAdvance(t *testing.T) {
	c := Curve{Keys: []Key{{0, 1}, {50, 1}, {100, 3}}}

	var cur Cursor
	sum := c.AdvanceIntegrating(&cur, 75, 1)
	if cur != (Cursor{Prev: 1, Next: 2}) {
		t.Errorf("cursor = %+v, want {1 2}", cur)
	}
	if !approx(sum, 0.5) {
		t.Errorf("accumulated integral = %v, want 0.5", sum)
	}

	// Moving backwards in time never rewinds the cursor.
	c.Advance(&cur, 10)
	if cur != (Cursor{Prev: 1, Next: 2}) {
		t.Errorf("cursor after earlier time = %+v, want {1 2}", cur)
	}

	c.Advance(&cur, 150)
	if cur != (Cursor{Prev: 2, Next: 2}) {
		t.Errorf("cursor past the end = %+v, want {2 2}", cur)
	}
	if got := c.Sample(cur, 150); got != 3 {
		t.Errorf("Sample past the end = %v, want 3", got)
	}
}

// TestCurveSeek tests resetting a cursor to an arbitrary time
func TestCurveSeek(t *testing.T) {
	c := Curve{Keys: []Key{{0, 0}, {25, 1}, {75, 2}, {100, 3}}}
	tests := []struct {
		relTime float32
		want    Cursor
	}{
		{0, Cursor{0, 0}},
		{10, Cursor{0, 1}},
		{25, Cursor{0, 1}},
		{50, Cursor{1, 2}},
		{100, Cursor{2, 3}},
	}
	for _, tt := range tests {
		cur := Cursor{Prev: 3, Next: 3}
		c.Seek(&cur, tt.relTime)
		if cur != tt.want {
			t.Errorf("Seek(%v) = %+v, want %+v", tt.relTime, cur, tt.want)
		}
	}
}

// TestCurveEditing tests that key edits keep the end keys in place
func TestCurveEditing(t *testing.T) {
	c := NewFlatCurve(1, Linear)

	if i := c.AddKey(50, 5); i != 1 {
		t.Errorf("AddKey(50) index = %d, want 1", i)
	}
	c.AddKey(-10, 7)
	c.AddKey(150, 9)
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate after AddKey: %v", err)
	}
	if len(c.Keys) != 5 {
		t.Fatalf("keys = %d, want 5", len(c.Keys))
	}
	if c.Last() != 1 {
		t.Errorf("last value = %v, want the original end key 1", c.Last())
	}

	if err := c.RemoveKey(0); err == nil {
		t.Error("RemoveKey(0) succeeded, want error")
	}
	if err := c.RemoveKey(len(c.Keys) - 1); err == nil {
		t.Error("RemoveKey(last) succeeded, want error")
	}

	i, err := c.MoveKey(0, 60, 4)
	if err != nil || i != 0 || c.Keys[0].Time != 0 || c.First() != 4 {
		t.Errorf("MoveKey(first) = %d, %v; key %+v", i, err, c.Keys[0])
	}
	if _, err := c.MoveKey(2, 90, 8); err != nil {
		t.Fatalf("MoveKey(2): %v", err)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate after MoveKey: %v", err)
	}

	c.SetEndpoints(0, 2)
	if c.First() != 0 || c.Last() != 2 {
		t.Errorf("SetEndpoints: got %v..%v, want 0..2", c.First(), c.Last())
	}
}

// TestCurveValidate tests rejection of broken curves
func TestCurveValidate(t *testing.T) {
	tests := []struct {
		name  string
		curve Curve
	}{
		{"One key", Curve{Keys: []Key{{0, 1}}}},
		{"Late start", Curve{Keys: []Key{{5, 1}, {100, 1}}}},
		{"Early end", Curve{Keys: []Key{{0, 1}, {99, 1}}}},
		{"Unsorted", Curve{Keys: []Key{{0, 1}, {60, 1}, {40, 1}, {100, 1}}}},
		{"NaN", Curve{Keys: []Key{{0, float32(math.NaN())}, {100, 1}}}},
		{"Bad mode", Curve{Keys: []Key{{0, 1}, {100, 1}}, Interpolation: 3}},
	}
	for _, tt := range tests {
		if err := tt.curve.Validate(); err == nil {
			t.Errorf("%s: Validate succeeded, want error", tt.name)
		}
	}
}
