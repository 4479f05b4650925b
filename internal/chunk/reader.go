package chunk

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/decker502/aloparticles/internal/stream"
)

// Reader walks a chunk tree.
//
// Next enters the next sibling chunk. A container chunk reports Size() == -1
// and the following Next call returns its first child. A data chunk can be
// read directly with Read, or iterated with NextMini. Both return End once the
// enclosing range is exhausted, moving up one level.
type Reader struct {
	f       stream.File
	offsets [MaxDepth + 1]int64
	depth   int

	size       int64 // payload length of the current data chunk, -1 otherwise
	position   int64 // bytes consumed in the current record
	miniSize   int64 // payload length of the current mini chunk, -1 otherwise
	miniOffset int64
}

// NewReader returns a reader positioned before the first top-level chunk.
func NewReader(f stream.File) *Reader {
	r := &Reader{f: f, size: -1, miniSize: -1}
	r.offsets[0] = f.Size()
	return r
}

// Depth returns the current nesting level. Zero is the top level.
func (r *Reader) Depth() int { return r.depth }

// Next advances to the next full chunk in the current range.
func (r *Reader) Next() (Type, error) {
	if r.depth < 0 {
		return End, nil
	}
	if r.size >= 0 {
		// Still inside a data chunk; skip its unread payload.
		if err := r.seek(r.offsets[r.depth]); err != nil {
			return End, err
		}
		r.depth--
		r.size = -1
		r.miniSize = -1
	}

	pos := stream.Tell(r.f)
	if pos == r.offsets[r.depth] {
		r.depth--
		r.size = -1
		r.position = 0
		return End, nil
	}
	if pos > r.offsets[r.depth] {
		return End, fmt.Errorf("%w: read past end of chunk at offset %d", ErrMalformed, pos)
	}

	var hdr [headerSize]byte
	if _, err := io.ReadFull(r.f, hdr[:]); err != nil {
		return End, fmt.Errorf("%w: chunk header at offset %d: %v", ErrRead, pos, err)
	}
	typ := le.Uint32(hdr[0:4])
	size := le.Uint32(hdr[4:8])

	end := pos + headerSize + int64(size&sizeMask)
	if end > r.offsets[r.depth] {
		return End, fmt.Errorf("%w: chunk %#x at offset %d overruns its parent", ErrMalformed, typ, pos)
	}
	if r.depth+1 > MaxDepth {
		return End, fmt.Errorf("%w: nesting exceeds %d levels", ErrMalformed, MaxDepth)
	}

	r.depth++
	r.offsets[r.depth] = end
	if size&containerBit != 0 {
		r.size = -1
	} else {
		r.size = int64(size)
	}
	r.miniSize = -1
	r.position = 0
	return Type(typ), nil
}

// NextMini advances to the next mini chunk inside the current data chunk.
func (r *Reader) NextMini() (Type, error) {
	if r.depth < 0 || r.size < 0 {
		return End, fmt.Errorf("%w: mini chunk outside a data chunk", ErrMalformed)
	}
	if r.miniSize >= 0 {
		if err := r.seek(r.miniOffset); err != nil {
			return End, err
		}
	}

	pos := stream.Tell(r.f)
	if pos == r.offsets[r.depth] {
		r.depth--
		r.size = -1
		r.miniSize = -1
		r.position = 0
		return End, nil
	}

	var hdr [miniHeaderSize]byte
	if _, err := io.ReadFull(r.f, hdr[:]); err != nil {
		return End, fmt.Errorf("%w: mini chunk header at offset %d: %v", ErrRead, pos, err)
	}
	r.miniSize = int64(hdr[1])
	r.miniOffset = pos + miniHeaderSize + r.miniSize
	if r.miniOffset > r.offsets[r.depth] {
		return End, fmt.Errorf("%w: mini chunk %#x at offset %d overruns its chunk", ErrMalformed, hdr[0], pos)
	}
	r.position = 0
	return Type(hdr[0]), nil
}

// Size returns the payload length of the current mini chunk or data chunk,
// or -1 when positioned on a container.
func (r *Reader) Size() int64 {
	if r.miniSize >= 0 {
		return r.miniSize
	}
	return r.size
}

// Read fills p from the current record. It fails with ErrRead when the record
// holds fewer than len(p) unread bytes.
func (r *Reader) Read(p []byte) error {
	if r.size < 0 {
		return fmt.Errorf("%w: not inside a data chunk", ErrRead)
	}
	n := min(r.position+int64(len(p)), r.Size()) - r.position
	if n < 0 {
		n = 0
	}
	got, err := io.ReadFull(r.f, p[:n])
	r.position += int64(got)
	if err != nil || got != len(p) {
		return fmt.Errorf("%w: wanted %d bytes, got %d", ErrRead, len(p), got)
	}
	return nil
}

// ReadString reads the whole current record and returns it up to the first NUL.
func (r *Reader) ReadString() (string, error) {
	size := r.Size()
	if size < 0 {
		return "", fmt.Errorf("%w: not inside a data chunk", ErrRead)
	}
	buf := make([]byte, size)
	if err := r.Read(buf); err != nil {
		return "", err
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf), nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	var b [1]byte
	if err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadUint8()
	return b != 0, err
}

func (r *Reader) ReadUint32() (uint32, error) {
	var b [4]byte
	if err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return le.Uint32(b[:]), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

func (r *Reader) seek(offset int64) error {
	if _, err := r.f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("%w: seek to %d: %v", ErrRead, offset, err)
	}
	return nil
}
