// Package chunk implements the hierarchical binary container used by particle
// system documents.
//
// A full chunk has an 8-byte header (u32 type, u32 size, little-endian). Bit 31
// of the size marks a container whose payload is a sequence of nested full
// chunks. A data chunk (bit 31 clear) holds raw bytes or a sequence of mini
// chunks, each with a 2-byte header (u8 type, u8 size).
package chunk

import (
	"encoding/binary"
	"errors"
)

// MaxDepth bounds chunk nesting for both reading and writing.
const MaxDepth = 256

// End is returned by Next and NextMini when the current range is exhausted.
const End Type = -1

const (
	headerSize     = 8
	miniHeaderSize = 2
	containerBit   = 0x80000000
	sizeMask       = 0x7FFFFFFF
	maxMiniSize    = 0xFF
)

// Type identifies a chunk or mini chunk. Negative values are sentinels.
type Type int64

var (
	// ErrRead is returned when the stream delivers fewer bytes than requested
	// or a read is attempted outside a data record.
	ErrRead = errors.New("chunk: read error")

	// ErrWrite is returned when the stream accepts fewer bytes than requested.
	ErrWrite = errors.New("chunk: write error")

	// ErrMalformed is returned for inconsistent nesting, depth overflow and
	// misuse of mini chunks.
	ErrMalformed = errors.New("chunk: malformed container")
)

var le = binary.LittleEndian
