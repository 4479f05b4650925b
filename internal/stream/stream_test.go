package stream

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"
)

func TestMemoryFileWriteGrowsAndSeekClamps(t *testing.T) {
	m := NewMemoryFile(nil)
	if _, err := m.Write([]byte("hello")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if m.Size() != 5 {
		t.Errorf("Size: got %d, want 5", m.Size())
	}

	pos, err := m.Seek(100, io.SeekStart)
	if err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if pos != 5 {
		t.Errorf("Seek past end: got %d, want 5", pos)
	}

	m.Seek(1, io.SeekStart)
	m.Write([]byte("EL"))
	if got := string(m.Bytes()); got != "hELlo" {
		t.Errorf("overwrite: got %q, want %q", got, "hELlo")
	}
	if Tell(m) != 3 {
		t.Errorf("Tell: got %d, want 3", Tell(m))
	}

	if _, err := m.Seek(-1, io.SeekStart); err == nil {
		t.Error("expected error for negative offset")
	}
}

func TestMemoryFileReadEOF(t *testing.T) {
	m := NewMemoryFile([]byte{1, 2, 3})
	buf := make([]byte, 4)
	n, err := m.Read(buf)
	if n != 3 || err != nil {
		t.Errorf("first read: got (%d, %v), want (3, nil)", n, err)
	}
	if _, err := m.Read(buf); err != io.EOF {
		t.Errorf("second read: got %v, want io.EOF", err)
	}
}

func TestSubFileWindow(t *testing.T) {
	parent := NewMemoryFile([]byte("0123456789"))
	sub := NewSubFile(parent, 3, 4)

	data, err := io.ReadAll(sub)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "3456" {
		t.Errorf("window: got %q, want %q", data, "3456")
	}
	if sub.Size() != 4 {
		t.Errorf("Size: got %d, want 4", sub.Size())
	}

	sub.Seek(2, io.SeekStart)
	buf := make([]byte, 10)
	n, _ := sub.Read(buf)
	if n != 2 || !bytes.Equal(buf[:n], []byte("56")) {
		t.Errorf("read after seek: got %q", buf[:n])
	}

	if _, err := sub.Write([]byte("x")); err == nil {
		t.Error("expected write to sub file to fail")
	}
}

func TestPhysicalFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")

	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	w.Write([]byte("abcdef"))
	w.Seek(0, io.SeekStart)
	w.Write([]byte("AB"))
	if w.Size() != 6 {
		t.Errorf("Size after write: got %d, want 6", w.Size())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()
	data, _ := io.ReadAll(r)
	if string(data) != "ABcdef" {
		t.Errorf("contents: got %q, want %q", data, "ABcdef")
	}

	if _, err := Open(filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Error("expected error opening missing file")
	}
}
