// Package megafile reads .meg archives and resolves asset paths against
// loose files and archives.
package megafile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"sort"
	"strings"

	"github.com/decker502/aloparticles/internal/stream"
)

// ErrBadArchive is returned when an archive header or table cannot be read.
var ErrBadArchive = errors.New("megafile: bad archive")

// fileInfo is one 20-byte entry of the master index table.
type fileInfo struct {
	CRC       uint32
	Index     uint32
	Size      uint32
	Start     uint32
	NameIndex uint32
}

// MegaFile is an opened archive. Entries are sorted by the CRC-32 of their
// upper-cased path.
type MegaFile struct {
	name      string
	file      stream.File
	files     []fileInfo
	filenames []string
}

// Open reads the archive header, string table and file table from f.
func Open(name string, f stream.File) (*MegaFile, error) {
	m := &MegaFile{name: name, file: f}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadArchive, name, err)
	}

	var header struct {
		NumStrings uint32
		NumFiles   uint32
	}
	if err := binary.Read(f, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: %s: unable to read file header: %v", ErrBadArchive, name, err)
	}

	m.filenames = make([]string, 0, min(header.NumStrings, 1<<16))
	for i := uint32(0); i < header.NumStrings; i++ {
		var length uint16
		if err := binary.Read(f, binary.LittleEndian, &length); err != nil {
			return nil, fmt.Errorf("%w: %s: unable to read string table: %v", ErrBadArchive, name, err)
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, fmt.Errorf("%w: %s: unable to read string table: %v", ErrBadArchive, name, err)
		}
		m.filenames = append(m.filenames, string(buf))
	}

	m.files = make([]fileInfo, 0, min(header.NumFiles, 1<<16))
	for i := uint32(0); i < header.NumFiles; i++ {
		var info fileInfo
		if err := binary.Read(f, binary.LittleEndian, &info); err != nil {
			return nil, fmt.Errorf("%w: %s: unable to read file table: %v", ErrBadArchive, name, err)
		}
		if int(info.NameIndex) >= len(m.filenames) {
			return nil, fmt.Errorf("%w: %s: entry %d names string %d of %d", ErrBadArchive, name, i, info.NameIndex, len(m.filenames))
		}
		if int64(info.Start)+int64(info.Size) > f.Size() {
			return nil, fmt.Errorf("%w: %s: entry %d extends past end of archive", ErrBadArchive, name, i)
		}
		m.files = append(m.files, info)
	}
	return m, nil
}

// Name returns the archive name given to Open.
func (m *MegaFile) Name() string { return m.name }

// Len returns the number of entries.
func (m *MegaFile) Len() int { return len(m.files) }

// File returns entry i as a read-only window over the archive.
func (m *MegaFile) File(i int) stream.File {
	info := m.files[i]
	return stream.NewSubFile(m.file, int64(info.Start), int64(info.Size))
}

// Filename returns the stored path of entry i.
func (m *MegaFile) Filename(i int) string {
	return m.filenames[m.files[i].NameIndex]
}

// Lookup finds path in the archive. Matching is case-insensitive.
func (m *MegaFile) Lookup(path string) (stream.File, bool) {
	path = strings.ToUpper(path)
	crc := crc32.ChecksumIEEE([]byte(path))

	i := sort.Search(len(m.files), func(i int) bool { return m.files[i].CRC >= crc })
	for ; i < len(m.files) && m.files[i].CRC == crc; i++ {
		if m.filenames[m.files[i].NameIndex] == path {
			return m.File(i), true
		}
	}
	return nil, false
}

// Entry describes one file when building an archive.
type Entry struct {
	Path string
	Data []byte
}

// Write encodes entries as an archive. Paths are stored upper-cased.
func Write(w io.Writer, entries []Entry) error {
	type record struct {
		info fileInfo
		data []byte
	}
	records := make([]record, len(entries))
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = strings.ToUpper(e.Path)
		records[i] = record{
			info: fileInfo{CRC: crc32.ChecksumIEEE([]byte(names[i])), NameIndex: uint32(i), Size: uint32(len(e.Data))},
			data: e.Data,
		}
	}
	sort.SliceStable(records, func(a, b int) bool { return records[a].info.CRC < records[b].info.CRC })

	offset := uint32(8 + 20*len(records))
	for _, n := range names {
		offset += 2 + uint32(len(n))
	}
	for i := range records {
		records[i].info.Index = uint32(i)
		records[i].info.Start = offset
		offset += records[i].info.Size
	}

	le := binary.LittleEndian
	if err := binary.Write(w, le, [2]uint32{uint32(len(names)), uint32(len(records))}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, n := range names {
		if err := binary.Write(w, le, uint16(len(n))); err != nil {
			return fmt.Errorf("failed to write string table: %w", err)
		}
		if _, err := io.WriteString(w, n); err != nil {
			return fmt.Errorf("failed to write string table: %w", err)
		}
	}
	for _, r := range records {
		if err := binary.Write(w, le, r.info); err != nil {
			return fmt.Errorf("failed to write file table: %w", err)
		}
	}
	for _, r := range records {
		if _, err := w.Write(r.data); err != nil {
			return fmt.Errorf("failed to write file data: %w", err)
		}
	}
	return nil
}
