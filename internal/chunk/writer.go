package chunk

import (
	"fmt"
	"io"
	"math"

	"github.com/decker502/aloparticles/internal/stream"
)

type openChunk struct {
	typ    uint32
	size   uint32 // only the container bit is tracked until EndChunk
	offset int64
}

// Writer builds a chunk tree. Every BeginChunk or BeginMiniChunk is closed by
// a matching EndChunk, which back-patches the header with the payload size.
type Writer struct {
	f          stream.File
	chunks     [MaxDepth]openChunk
	depth      int
	miniType   uint8
	miniOffset int64
}

// NewWriter returns a writer appending at the current offset of f.
func NewWriter(f stream.File) *Writer {
	return &Writer{f: f, depth: -1, miniOffset: -1}
}

// BeginChunk opens a full chunk. The enclosing chunk, if any, becomes a container.
func (w *Writer) BeginChunk(typ uint32) error {
	if w.miniOffset >= 0 {
		return fmt.Errorf("%w: chunk %#x opened inside a mini chunk", ErrMalformed, typ)
	}
	if w.depth+1 >= MaxDepth {
		return fmt.Errorf("%w: nesting exceeds %d levels", ErrMalformed, MaxDepth)
	}
	w.depth++
	w.chunks[w.depth] = openChunk{typ: typ, offset: stream.Tell(w.f)}
	if w.depth > 0 {
		w.chunks[w.depth-1].size |= containerBit
	}
	var hdr [headerSize]byte
	return w.Write(hdr[:])
}

// BeginMiniChunk opens a mini chunk inside the current data chunk. Only one
// mini chunk may be open at a time.
func (w *Writer) BeginMiniChunk(typ uint8) error {
	if w.depth < 0 {
		return fmt.Errorf("%w: mini chunk %#x outside a chunk", ErrMalformed, typ)
	}
	if w.miniOffset >= 0 {
		return fmt.Errorf("%w: mini chunk %#x opened while %#x is open", ErrMalformed, typ, w.miniType)
	}
	w.miniType = typ
	w.miniOffset = stream.Tell(w.f)
	var hdr [miniHeaderSize]byte
	return w.Write(hdr[:])
}

// EndChunk closes the innermost open mini chunk or chunk.
func (w *Writer) EndChunk() error {
	if w.depth < 0 {
		return fmt.Errorf("%w: EndChunk without an open chunk", ErrMalformed)
	}
	pos := stream.Tell(w.f)

	if w.miniOffset >= 0 {
		size := pos - (w.miniOffset + miniHeaderSize)
		if size > maxMiniSize {
			return fmt.Errorf("%w: mini chunk %#x payload of %d bytes", ErrMalformed, w.miniType, size)
		}
		hdr := [miniHeaderSize]byte{w.miniType, uint8(size)}
		if err := w.patch(w.miniOffset, hdr[:], pos); err != nil {
			return err
		}
		w.miniOffset = -1
		return nil
	}

	c := &w.chunks[w.depth]
	size := pos - (c.offset + headerSize)
	if size > sizeMask {
		return fmt.Errorf("%w: chunk %#x payload of %d bytes", ErrMalformed, c.typ, size)
	}
	var hdr [headerSize]byte
	le.PutUint32(hdr[0:4], c.typ)
	le.PutUint32(hdr[4:8], c.size&containerBit|uint32(size))
	if err := w.patch(c.offset, hdr[:], pos); err != nil {
		return err
	}
	w.depth--
	return nil
}

// Write appends raw payload bytes.
func (w *Writer) Write(p []byte) error {
	if w.depth < 0 {
		return fmt.Errorf("%w: write outside a chunk", ErrMalformed)
	}
	n, err := w.f.Write(p)
	if err != nil || n != len(p) {
		return fmt.Errorf("%w: wrote %d of %d bytes: %v", ErrWrite, n, len(p), err)
	}
	return nil
}

// WriteString appends s followed by a NUL terminator.
func (w *Writer) WriteString(s string) error {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return w.Write(buf)
}

func (w *Writer) WriteUint8(v uint8) error { return w.Write([]byte{v}) }

func (w *Writer) WriteBool(v bool) error {
	if v {
		return w.WriteUint8(1)
	}
	return w.WriteUint8(0)
}

func (w *Writer) WriteUint32(v uint32) error {
	var b [4]byte
	le.PutUint32(b[:], v)
	return w.Write(b[:])
}

func (w *Writer) WriteInt32(v int32) error { return w.WriteUint32(uint32(v)) }

func (w *Writer) WriteFloat32(v float32) error { return w.WriteUint32(math.Float32bits(v)) }

// WriteMiniBool writes a one-byte mini chunk.
func (w *Writer) WriteMiniBool(typ uint8, v bool) error {
	return w.mini(typ, func() error { return w.WriteBool(v) })
}

// WriteMiniUint32 writes a four-byte integer mini chunk.
func (w *Writer) WriteMiniUint32(typ uint8, v uint32) error {
	return w.mini(typ, func() error { return w.WriteUint32(v) })
}

// WriteMiniFloat32 writes a four-byte float mini chunk.
func (w *Writer) WriteMiniFloat32(typ uint8, v float32) error {
	return w.mini(typ, func() error { return w.WriteFloat32(v) })
}

// WriteStringChunk writes a data chunk holding a NUL-terminated string.
func (w *Writer) WriteStringChunk(typ uint32, s string) error {
	if err := w.BeginChunk(typ); err != nil {
		return err
	}
	if err := w.WriteString(s); err != nil {
		return err
	}
	return w.EndChunk()
}

func (w *Writer) mini(typ uint8, body func() error) error {
	if err := w.BeginMiniChunk(typ); err != nil {
		return err
	}
	if err := body(); err != nil {
		return err
	}
	return w.EndChunk()
}

func (w *Writer) patch(offset int64, hdr []byte, resume int64) error {
	if _, err := w.f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("%w: seek to %d: %v", ErrWrite, offset, err)
	}
	if n, err := w.f.Write(hdr); err != nil || n != len(hdr) {
		return fmt.Errorf("%w: header at %d: %v", ErrWrite, offset, err)
	}
	if _, err := w.f.Seek(resume, io.SeekStart); err != nil {
		return fmt.Errorf("%w: seek to %d: %v", ErrWrite, resume, err)
	}
	return nil
}
