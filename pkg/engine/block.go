package engine

import "math/bits"

// particleBlock is a fixed array of particles with a free bitmap. Particles
// never move once allocated, so pointers to them stay valid until freed.
type particleBlock struct {
	freeMap   []uint32 // bit set = slot free
	particles []Particle
	base      int
}

// newParticleBlock creates a block of at least size particles, rounded up to
// a multiple of 32. Particle i of the block has slot index base+i.
func newParticleBlock(base, size int) *particleBlock {
	size = (size + 31) &^ 31
	b := &particleBlock{
		freeMap:   make([]uint32, size/32),
		particles: make([]Particle, size),
		base:      base,
	}
	for i := range b.freeMap {
		b.freeMap[i] = 0xFFFFFFFF
	}
	for i := range b.particles {
		b.particles[i].block = b
		b.particles[i].index = base + i
	}
	return b
}

// allocate returns the free particle with the lowest slot index, or nil if
// the block is full.
func (b *particleBlock) allocate() *Particle {
	for i, word := range b.freeMap {
		if word == 0 {
			continue
		}
		c := bits.TrailingZeros32(word)
		b.freeMap[i] &^= 1 << c
		return &b.particles[i*32+c]
	}
	return nil
}

// free returns p to the block.
func (b *particleBlock) free(p *Particle) {
	i := p.index - b.base
	b.freeMap[i/32] |= 1 << (i % 32)
}

// size returns the number of slots in the block.
func (b *particleBlock) size() int { return len(b.particles) }

// inUse returns the number of allocated slots.
func (b *particleBlock) inUse() int {
	n := 0
	for _, word := range b.freeMap {
		n += 32 - bits.OnesCount32(word)
	}
	return n
}
