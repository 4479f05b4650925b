package engine

import "gonum.org/v1/gonum/spatial/r3"

// Positioner is anything an emitter can be attached to: a particle, a
// particle system instance or a caller-provided anchor.
type Positioner interface {
	Position() r3.Vec
	Velocity() r3.Vec
}

// object is a point in a parent chain. Its position and velocity are relative
// to the parent until it is detached.
type object struct {
	parent   Positioner
	position r3.Vec
	velocity r3.Vec
}

// Position returns the absolute position.
func (o *object) Position() r3.Vec {
	if o.parent != nil {
		return r3.Add(o.parent.Position(), o.position)
	}
	return o.position
}

// Velocity returns the absolute velocity.
func (o *object) Velocity() r3.Vec {
	if o.parent != nil {
		return r3.Add(o.parent.Velocity(), o.velocity)
	}
	return o.velocity
}

// detach bakes the current absolute position and drops the parent. The
// object stays where it is and stops inheriting the parent's velocity.
func (o *object) detach() {
	if o.parent == nil {
		return
	}
	o.position = o.Position()
	o.parent = nil
}

// Detached reports whether the object has no parent.
func (o *object) Detached() bool { return o.parent == nil }

// Anchor is a free-standing Positioner the caller can move, for attaching a
// particle system to something that is not part of the engine.
type Anchor struct {
	Pos r3.Vec
	Vel r3.Vec
}

func (a *Anchor) Position() r3.Vec { return a.Pos }
func (a *Anchor) Velocity() r3.Vec { return a.Vel }
