// Package stream provides the seekable byte stream used by the chunk codec
// and the mega-file archives.
//
// Three implementations are provided:
//   - MemoryFile: a growable in-memory buffer (clipboard data, tests)
//   - PhysicalFile: a file on disk
//   - SubFile: a read window over another File (archive entries)
package stream

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNegativeOffset is returned when a seek would move before the start of the stream.
var ErrNegativeOffset = errors.New("stream: negative offset")

// File is a random-access byte stream with a known size.
type File interface {
	io.ReadWriteSeeker
	Size() int64
}

// Tell returns the current offset of f.
func Tell(f File) int64 {
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0
	}
	return pos
}

// resolveSeek computes an absolute offset and clamps it to [0, size].
func resolveSeek(pos, size, offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += pos
	case io.SeekEnd:
		offset += size
	default:
		return pos, fmt.Errorf("stream: invalid whence %d", whence)
	}
	if offset < 0 {
		return pos, ErrNegativeOffset
	}
	return min(offset, size), nil
}

// MemoryFile is an in-memory File. Writing past the end grows the buffer.
type MemoryFile struct {
	data []byte
	pos  int64
}

// NewMemoryFile returns a MemoryFile initialised with a copy of data.
func NewMemoryFile(data []byte) *MemoryFile {
	return &MemoryFile{data: append([]byte(nil), data...)}
}

func (m *MemoryFile) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.data)) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *MemoryFile) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.data)) {
		if end > int64(cap(m.data)) {
			grown := make([]byte, end, max(end, 2*int64(cap(m.data))))
			copy(grown, m.data)
			m.data = grown
		} else {
			m.data = m.data[:end]
		}
	}
	copy(m.data[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *MemoryFile) Seek(offset int64, whence int) (int64, error) {
	pos, err := resolveSeek(m.pos, int64(len(m.data)), offset, whence)
	if err != nil {
		return m.pos, err
	}
	m.pos = pos
	return pos, nil
}

// Size returns the number of bytes held.
func (m *MemoryFile) Size() int64 { return int64(len(m.data)) }

// Bytes returns the buffer contents. The slice aliases the file's storage.
func (m *MemoryFile) Bytes() []byte { return m.data }

// PhysicalFile is a File backed by an *os.File.
type PhysicalFile struct {
	f    *os.File
	name string
	pos  int64
	size int64
}

// Open opens an existing file for reading.
func Open(name string) (*PhysicalFile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	return &PhysicalFile{f: f, name: name, size: info.Size()}, nil
}

// Create creates or truncates a file for writing.
func Create(name string) (*PhysicalFile, error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", name, err)
	}
	return &PhysicalFile{f: f, name: name}, nil
}

func (p *PhysicalFile) Read(b []byte) (int, error) {
	n, err := p.f.ReadAt(b, p.pos)
	p.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

func (p *PhysicalFile) Write(b []byte) (int, error) {
	n, err := p.f.WriteAt(b, p.pos)
	p.pos += int64(n)
	p.size = max(p.size, p.pos)
	return n, err
}

func (p *PhysicalFile) Seek(offset int64, whence int) (int64, error) {
	pos, err := resolveSeek(p.pos, p.size, offset, whence)
	if err != nil {
		return p.pos, err
	}
	p.pos = pos
	return pos, nil
}

// Size returns the file length.
func (p *PhysicalFile) Size() int64 { return p.size }

// Name returns the path the file was opened with.
func (p *PhysicalFile) Name() string { return p.name }

// Close closes the underlying file.
func (p *PhysicalFile) Close() error { return p.f.Close() }

// SubFile exposes the byte range [start, start+size) of a parent File.
// Reads are confined to the window; writes are not supported.
type SubFile struct {
	parent File
	start  int64
	size   int64
	pos    int64
}

// NewSubFile returns a window over parent.
func NewSubFile(parent File, start, size int64) *SubFile {
	return &SubFile{parent: parent, start: start, size: size}
}

func (s *SubFile) Read(p []byte) (int, error) {
	remaining := s.size - s.pos
	if remaining <= 0 {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	if _, err := s.parent.Seek(s.start+s.pos, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := s.parent.Read(p)
	s.pos += int64(n)
	return n, err
}

func (s *SubFile) Write(p []byte) (int, error) {
	return 0, errors.New("stream: sub file is read-only")
}

func (s *SubFile) Seek(offset int64, whence int) (int64, error) {
	pos, err := resolveSeek(s.pos, s.size, offset, whence)
	if err != nil {
		return s.pos, err
	}
	s.pos = pos
	return pos, nil
}

// Size returns the window length.
func (s *SubFile) Size() int64 { return s.size }
