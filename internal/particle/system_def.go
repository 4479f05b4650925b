package particle

import (
	"errors"
	"fmt"
	"log"
	"slices"

	"github.com/decker502/aloparticles/internal/chunk"
	"github.com/decker502/aloparticles/internal/stream"
)

// Document chunk types.
const (
	chunkSystem         = 0x0900
	chunkSystemName     = 0x0000
	chunkSystemReserved = 0x0001
	chunkEmitterList    = 0x0800
	chunkEmitter        = 0x0700
	chunkLeaveParticles = 0x0002
)

// ParticleSystemDef is an authored particle effect: an ordered list of
// emitters. Every emitter's Index equals its position in Emitters and its
// Parent names the emitter whose DeathChild or LifeChild refers to it.
type ParticleSystemDef struct {
	Name           string        `yaml:"name"`
	LeaveParticles bool          `yaml:"leaveParticles"`
	Emitters       []*EmitterDef `yaml:"emitters"`
}

// NewParticleSystemDef returns an empty document.
func NewParticleSystemDef() *ParticleSystemDef {
	return &ParticleSystemDef{LeaveParticles: true}
}

// Load decodes a particle system document from f.
//
// Any error discards the whole document. A file whose root chunk is not a
// particle system fails with ErrWrongFormat; structural problems match
// ErrMalformed and unrecognised emitter properties match ErrUnknownField.
func Load(f stream.File) (*ParticleSystemDef, error) {
	r := chunk.NewReader(f)

	typ, err := r.Next()
	if err != nil {
		return nil, err
	}
	if typ != chunkSystem {
		return nil, fmt.Errorf("%w: root chunk %#x", ErrWrongFormat, typ)
	}

	s := NewParticleSystemDef()
	if err := expectNext(r, chunkSystemName); err != nil {
		return nil, err
	}
	if s.Name, err = r.ReadString(); err != nil {
		return nil, err
	}
	if err := expectNext(r, chunkSystemReserved); err != nil {
		return nil, err
	}
	if err := expectSize(r, 4); err != nil {
		return nil, err
	}

	if err := expectNext(r, chunkEmitterList); err != nil {
		return nil, err
	}
	for {
		if typ, err = r.Next(); err != nil {
			return nil, err
		}
		if typ != chunkEmitter {
			break
		}
		e, err := ReadEmitterDef(r)
		if err != nil {
			return nil, fmt.Errorf("emitter %d: %w", len(s.Emitters), err)
		}
		e.Index = len(s.Emitters)
		s.Emitters = append(s.Emitters, e)
	}
	if typ != chunk.End {
		return nil, malformed("unexpected chunk %#x in emitter list", typ)
	}

	if typ, err = r.Next(); err != nil {
		return nil, err
	}
	if typ == chunkLeaveParticles {
		if err := expectSize(r, 1); err != nil {
			return nil, err
		}
		if s.LeaveParticles, err = r.ReadBool(); err != nil {
			return nil, err
		}
		if typ, err = r.Next(); err != nil {
			return nil, err
		}
	}
	if typ != chunk.End {
		return nil, malformed("unexpected chunk %#x in particle system", typ)
	}

	if err := s.resolveLinks(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFile reads a particle system document from disk.
func LoadFile(path string) (*ParticleSystemDef, error) {
	f, err := stream.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load particle system %s: %w", path, err)
	}
	log.Printf("[ParticleSystem] Loaded %s: %q with %d emitters", path, s.Name, len(s.Emitters))
	return s, nil
}

// resolveLinks validates the child links and sets every Parent.
func (s *ParticleSystemDef) resolveLinks() error {
	parents, err := s.linkParents()
	if err != nil {
		return err
	}
	for i, e := range s.Emitters {
		e.Parent = parents[i]
	}
	return nil
}

// linkParents derives each emitter's parent from the child links. A child
// must exist, differ from its parent, have a single parent and not be part
// of a cycle.
func (s *ParticleSystemDef) linkParents() ([]int, error) {
	parents := make([]int, len(s.Emitters))
	for i := range parents {
		parents[i] = None
	}
	for i, e := range s.Emitters {
		for _, child := range [2]int{e.DeathChild, e.LifeChild} {
			if child == None {
				continue
			}
			if child < 0 || child >= len(s.Emitters) {
				return nil, malformed("emitter %d links to missing emitter %d", i, child)
			}
			if child == i {
				return nil, malformed("emitter %d links to itself", i)
			}
			if p := parents[child]; p != None {
				return nil, malformed("emitter %d has two parents (%d and %d)", child, p, i)
			}
			parents[child] = i
		}
	}

	// With single parents, a cycle is a chain that never reaches a root.
	for i := range parents {
		steps := 0
		for p := parents[i]; p != None; p = parents[p] {
			if steps++; steps > len(parents) {
				return nil, malformed("emitter %d is part of a link cycle", i)
			}
		}
	}
	return parents, nil
}

// Write encodes s to f.
func (s *ParticleSystemDef) Write(f stream.File) error {
	w := chunk.NewWriter(f)

	if err := w.BeginChunk(chunkSystem); err != nil {
		return err
	}
	if err := w.WriteStringChunk(chunkSystemName, s.Name); err != nil {
		return err
	}
	if err := w.BeginChunk(chunkSystemReserved); err != nil {
		return err
	}
	if err := w.WriteUint32(0); err != nil {
		return err
	}
	if err := w.EndChunk(); err != nil {
		return err
	}

	if err := w.BeginChunk(chunkEmitterList); err != nil {
		return err
	}
	for i, e := range s.Emitters {
		if err := w.BeginChunk(chunkEmitter); err != nil {
			return err
		}
		if err := e.Write(w); err != nil {
			return fmt.Errorf("emitter %d: %w", i, err)
		}
		if err := w.EndChunk(); err != nil {
			return err
		}
	}
	if err := w.EndChunk(); err != nil {
		return err
	}

	if err := w.BeginChunk(chunkLeaveParticles); err != nil {
		return err
	}
	if err := w.WriteBool(s.LeaveParticles); err != nil {
		return err
	}
	if err := w.EndChunk(); err != nil {
		return err
	}
	return w.EndChunk()
}

// SaveFile writes s to disk, replacing any existing file.
func (s *ParticleSystemDef) SaveFile(path string) error {
	f, err := stream.Create(path)
	if err != nil {
		return err
	}
	if err := s.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to save particle system %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("[ParticleSystem] Saved %s (%d emitters)", path, len(s.Emitters))
	return nil
}

// Validate checks the emitter indices, links and curves of s.
func (s *ParticleSystemDef) Validate() error {
	for i, e := range s.Emitters {
		if e.Index != i {
			return malformed("emitter at %d has index %d", i, e.Index)
		}
		if err := e.validate(); err != nil {
			return err
		}
	}
	parents, err := s.linkParents()
	if err != nil {
		return err
	}
	for i, p := range parents {
		if s.Emitters[i].Parent != p {
			return malformed("emitter %d records parent %d, linked from %d", i, s.Emitters[i].Parent, p)
		}
	}
	return nil
}

// Emitter returns the emitter at index i, or nil if i is out of range.
func (s *ParticleSystemDef) Emitter(i int) *EmitterDef {
	if i < 0 || i >= len(s.Emitters) {
		return nil
	}
	return s.Emitters[i]
}

// Roots returns the emitters without a parent, in document order.
func (s *ParticleSystemDef) Roots() []*EmitterDef {
	var roots []*EmitterDef
	for _, e := range s.Emitters {
		if e.IsRoot() {
			roots = append(roots, e)
		}
	}
	return roots
}

// Children returns the death and lifetime children of e; either may be nil.
func (s *ParticleSystemDef) Children(e *EmitterDef) (death, life *EmitterDef) {
	return s.Emitter(e.DeathChild), s.Emitter(e.LifeChild)
}

// AddRootEmitter appends a copy of template as a new root emitter.
func (s *ParticleSystemDef) AddRootEmitter(template *EmitterDef) *EmitterDef {
	return s.add(template, None)
}

// AddLifetimeEmitter attaches a copy of template as the lifetime child of
// parent. Lifetime children always spawn continuously. It returns nil if
// parent already has a lifetime child.
func (s *ParticleSystemDef) AddLifetimeEmitter(parent, template *EmitterDef) *EmitterDef {
	if parent.LifeChild != None {
		return nil
	}
	e := s.add(template, parent.Index)
	e.UseBursts = false
	parent.LifeChild = e.Index
	return e
}

// AddDeathEmitter attaches a copy of template as the death child of parent.
// Death children always emit infinite bursts. It returns nil if parent
// already has a death child.
func (s *ParticleSystemDef) AddDeathEmitter(parent, template *EmitterDef) *EmitterDef {
	if parent.DeathChild != None {
		return nil
	}
	e := s.add(template, parent.Index)
	e.UseBursts = true
	e.NumBursts = 0
	parent.DeathChild = e.Index
	return e
}

func (s *ParticleSystemDef) add(template *EmitterDef, parent int) *EmitterDef {
	e := template.Clone()
	e.Index = len(s.Emitters)
	e.Parent = parent
	e.DeathChild = None
	e.LifeChild = None
	s.Emitters = append(s.Emitters, e)
	return e
}

// DeleteEmitter removes e together with its death and lifetime subtrees.
// Live instances of every removed emitter are torn down, and the remaining
// emitters are re-indexed with their links adjusted.
func (s *ParticleSystemDef) DeleteEmitter(e *EmitterDef) {
	if s.Emitter(e.Index) != e {
		return
	}
	if parent := s.Emitter(e.Parent); parent != nil {
		if parent.LifeChild == e.Index {
			parent.LifeChild = None
		} else if parent.DeathChild == e.Index {
			parent.DeathChild = None
		}
	}

	removed := make([]bool, len(s.Emitters))
	var mark func(i int)
	mark = func(i int) {
		if i == None || removed[i] {
			return
		}
		removed[i] = true
		mark(s.Emitters[i].LifeChild)
		mark(s.Emitters[i].DeathChild)
	}
	mark(e.Index)

	remap := make([]int, len(s.Emitters))
	next := 0
	for i := range s.Emitters {
		if removed[i] {
			remap[i] = None
			s.Emitters[i].release()
			continue
		}
		remap[i] = next
		next++
	}
	moved := func(i int) int {
		if i == None {
			return None
		}
		return remap[i]
	}

	s.Emitters = slices.DeleteFunc(s.Emitters, func(d *EmitterDef) bool { return removed[d.Index] })
	for _, d := range s.Emitters {
		d.Index = moved(d.Index)
		d.Parent = moved(d.Parent)
		d.DeathChild = moved(d.DeathChild)
		d.LifeChild = moved(d.LifeChild)
	}
}

// CopyEmitter encodes a single emitter for the clipboard. Hierarchy links
// are not carried.
func CopyEmitter(e *EmitterDef) ([]byte, error) {
	f := stream.NewMemoryFile(nil)
	if err := e.writeCopy(chunk.NewWriter(f)); err != nil {
		return nil, err
	}
	return f.Bytes(), nil
}

// PasteEmitter decodes clipboard data produced by CopyEmitter. The result is
// detached from any document; add it with AddRootEmitter or one of the child
// helpers.
func PasteEmitter(data []byte) (*EmitterDef, error) {
	e, err := ReadEmitterDef(chunk.NewReader(stream.NewMemoryFile(data)))
	if err != nil {
		return nil, fmt.Errorf("paste emitter: %w", err)
	}
	e.DeathChild, e.LifeChild, e.Parent = None, None, None
	return e, nil
}

// IsCorrupt reports whether err describes an unusable document rather than
// an I/O failure of the underlying file.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrWrongFormat) || errors.Is(err, ErrMalformed) ||
		errors.Is(err, ErrUnknownField) || errors.Is(err, chunk.ErrRead)
}
