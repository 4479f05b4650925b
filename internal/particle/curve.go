package particle

import (
	"fmt"
	"math"
	"sort"
)

// Curve time domain, in percent of a particle's lifespan.
const (
	CurveStart float32 = 0
	CurveEnd   float32 = 100
)

// Interpolation selects how a curve is evaluated between two keys.
// The numeric values are persisted.
type Interpolation uint32

const (
	Linear Interpolation = 0
	Smooth Interpolation = 1
	Step   Interpolation = 2
)

func (i Interpolation) String() string {
	switch i {
	case Linear:
		return "Linear"
	case Smooth:
		return "Smooth"
	case Step:
		return "Step"
	}
	return fmt.Sprintf("Interpolation(%d)", uint32(i))
}

// Key is a single keyframe.
type Key struct {
	Time  float32 // percent of lifespan, [0, 100]
	Value float32
}

// Curve is an ordered keyframe sequence over [0, 100].
// The first key is at 0 and the last at 100; keys may share a time.
type Curve struct {
	Keys          []Key
	Interpolation Interpolation
}

// NewFlatCurve returns a two-key curve holding value over the whole domain.
func NewFlatCurve(value float32, interp Interpolation) Curve {
	return Curve{
		Keys:          []Key{{CurveStart, value}, {CurveEnd, value}},
		Interpolation: interp,
	}
}

// Cursor brackets a relative time between two key indices of a curve.
// A zero Cursor is positioned on the first key.
type Cursor struct {
	Prev, Next int
}

// Validate reports whether c satisfies the curve invariants.
func (c *Curve) Validate() error {
	if len(c.Keys) < 2 {
		return malformed("curve has %d keys, need at least 2", len(c.Keys))
	}
	if c.Interpolation > Step {
		return malformed("unknown interpolation %d", uint32(c.Interpolation))
	}
	if c.Keys[0].Time != CurveStart || c.Keys[len(c.Keys)-1].Time != CurveEnd {
		return malformed("curve spans [%v, %v], want [0, 100]", c.Keys[0].Time, c.Keys[len(c.Keys)-1].Time)
	}
	for i, k := range c.Keys {
		if isNaN(k.Time) || isNaN(k.Value) {
			return malformed("key %d is not a number", i)
		}
		if i > 0 && k.Time < c.Keys[i-1].Time {
			return malformed("key %d at %v precedes key %d at %v", i, k.Time, i-1, c.Keys[i-1].Time)
		}
	}
	return nil
}

// Clone returns a deep copy of c.
func (c Curve) Clone() Curve {
	c.Keys = append([]Key(nil), c.Keys...)
	return c
}

// Equal reports whether c and o have identical keys and interpolation.
func (c *Curve) Equal(o *Curve) bool {
	if c.Interpolation != o.Interpolation || len(c.Keys) != len(o.Keys) {
		return false
	}
	for i := range c.Keys {
		if c.Keys[i] != o.Keys[i] {
			return false
		}
	}
	return true
}

// First returns the value at time 0.
func (c *Curve) First() float32 { return c.Keys[0].Value }

// Last returns the value at time 100.
func (c *Curve) Last() float32 { return c.Keys[len(c.Keys)-1].Value }

// bracket returns the keys a cursor points at, clamping stale indices.
func (c *Curve) bracket(cur Cursor) (prev, next Key) {
	last := len(c.Keys) - 1
	return c.Keys[clampIndex(cur.Prev, last)], c.Keys[clampIndex(cur.Next, last)]
}

// Sample evaluates the curve at relTime using the keys bracketed by cur.
func (c *Curve) Sample(cur Cursor, relTime float32) float32 {
	prev, next := c.bracket(cur)
	if next.Time == prev.Time {
		return next.Value
	}

	u := (relTime - prev.Time) / (next.Time - prev.Time)
	switch c.Interpolation {
	case Smooth:
		return prev.Value*(2*u*u*u-3*u*u+1) + next.Value*(3*u*u-2*u*u*u)
	case Linear:
		return prev.Value + u*(next.Value-prev.Value)
	case Step:
		return prev.Value
	}
	return 0
}

// Integrate returns the integral of the curve from the cursor's previous key
// up to relTime, in value x seconds for a particle living lifespan seconds.
func (c *Curve) Integrate(cur Cursor, relTime, lifespan float32) float32 {
	prev, next := c.bracket(cur)
	if next.Time == prev.Time {
		return 0
	}

	a, b := prev.Value, next.Value
	u := (relTime - prev.Time) / (next.Time - prev.Time)
	var v float32
	switch c.Interpolation {
	case Smooth:
		// F(u) = (a-b)u^4/2 + (b-a)u^3 + au
		v = (a-b)*u*u*u*u/2 + (b-a)*u*u*u + a*u
	case Linear:
		// F(u) = au + (b-a)u^2/2
		v = u * (a + u*(b-a)/2)
	case Step:
		v = a * u
	}
	return v * (next.Time - prev.Time) / 100 * lifespan
}

// Advance moves cur forward until relTime no longer exceeds its next key.
// The cursor never moves past the final key.
func (c *Curve) Advance(cur *Cursor, relTime float32) {
	c.advance(cur, relTime, 0, false)
}

// AdvanceIntegrating behaves like Advance and returns the integral over every
// key segment the cursor leaves behind.
func (c *Curve) AdvanceIntegrating(cur *Cursor, relTime, lifespan float32) float32 {
	return c.advance(cur, relTime, lifespan, true)
}

func (c *Curve) advance(cur *Cursor, relTime, lifespan float32, integrate bool) float32 {
	last := len(c.Keys) - 1
	cur.Prev = clampIndex(cur.Prev, last)
	cur.Next = clampIndex(cur.Next, last)

	var sum float32
	for relTime > c.Keys[cur.Next].Time {
		if integrate {
			sum += c.Integrate(*cur, c.Keys[cur.Next].Time, lifespan)
		}
		cur.Prev = cur.Next
		cur.Next++
		if cur.Next > last {
			cur.Next = cur.Prev
			break
		}
	}
	return sum
}

// Seek resets cur to the first key and fast-forwards it to relTime.
func (c *Curve) Seek(cur *Cursor, relTime float32) {
	*cur = Cursor{}
	last := len(c.Keys) - 1
	for c.Keys[cur.Next].Time < relTime {
		cur.Prev = cur.Next
		cur.Next++
		if cur.Next > last {
			cur.Next = cur.Prev
			break
		}
	}
}

// AddKey inserts a key after any existing keys with the same time and
// returns its index. The time is clamped to the curve domain. c must already
// hold its two end keys.
func (c *Curve) AddKey(time, value float32) int {
	time = clampTime(time)
	i := sort.Search(len(c.Keys), func(i int) bool { return c.Keys[i].Time > time })
	if i == 0 {
		// Keep the first key at time 0 the first.
		i = 1
	}
	if i == len(c.Keys) && len(c.Keys) > 0 {
		i = len(c.Keys) - 1
	}
	c.Keys = append(c.Keys, Key{})
	copy(c.Keys[i+1:], c.Keys[i:])
	c.Keys[i] = Key{Time: time, Value: value}
	return i
}

// RemoveKey deletes an interior key. The end keys cannot be removed.
func (c *Curve) RemoveKey(i int) error {
	if i <= 0 || i >= len(c.Keys)-1 {
		return fmt.Errorf("cannot remove key %d of %d", i, len(c.Keys))
	}
	c.Keys = append(c.Keys[:i], c.Keys[i+1:]...)
	return nil
}

// MoveKey changes key i and returns its new index. End keys keep their time.
func (c *Curve) MoveKey(i int, time, value float32) (int, error) {
	if i < 0 || i >= len(c.Keys) {
		return i, fmt.Errorf("key %d out of range [0, %d)", i, len(c.Keys))
	}
	if i == 0 || i == len(c.Keys)-1 {
		c.Keys[i].Value = value
		return i, nil
	}
	c.Keys = append(c.Keys[:i], c.Keys[i+1:]...)
	return c.AddKey(time, value), nil
}

// Scale multiplies every key value by f.
func (c *Curve) Scale(f float32) {
	for i := range c.Keys {
		c.Keys[i].Value *= f
	}
}

func clampIndex(i, last int) int {
	return max(0, min(i, last))
}

func clampTime(t float32) float32 {
	return max(CurveStart, min(t, CurveEnd))
}

func isNaN(f float32) bool {
	return math.IsNaN(float64(f))
}

// SetEndpoints replaces the values of the first and last keys.
func (c *Curve) SetEndpoints(first, last float32) {
	c.Keys[0].Value = first
	c.Keys[len(c.Keys)-1].Value = last
}
