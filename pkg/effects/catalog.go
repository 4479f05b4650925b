// Package effects finds and loads particle effect files for the viewers.
package effects

import (
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/decker502/aloparticles/internal/particle"
	"github.com/decker502/aloparticles/internal/stream"
)

// Ext is the extension of particle effect files.
const Ext = ".alo"

// Entry is an effect found by Scan.
type Entry struct {
	Name string // File name without extension
	Path string
}

// Opener opens asset files. *megafile.FileManager implements it.
type Opener interface {
	Open(path string) (stream.File, error)
}

// Scan lists the effect files under root, sorted by name. A root naming a
// single file yields that file.
func Scan(root string) ([]Entry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan effects: %w", err)
	}
	if !info.IsDir() {
		return []Entry{newEntry(root)}, nil
	}

	var entries []Entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), Ext) {
			entries = append(entries, newEntry(path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan effects: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := strings.ToLower(entries[i].Name), strings.ToLower(entries[j].Name)
		if a != b {
			return a < b
		}
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}

func newEntry(path string) Entry {
	base := filepath.Base(path)
	return Entry{Name: strings.TrimSuffix(base, filepath.Ext(base)), Path: path}
}

// Filter returns the entries whose name contains query, ignoring case.
func Filter(entries []Entry, query string) []Entry {
	if query == "" {
		return entries
	}
	q := strings.ToLower(query)
	filtered := make([]Entry, 0)
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Name), q) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// Find returns the index of the entry called name, or -1.
func Find(entries []Entry, name string) int {
	for i, e := range entries {
		if strings.EqualFold(e.Name, name) {
			return i
		}
	}
	return -1
}

// Load reads an effect through files, which resolves paths against its base
// directories and archives. A nil files reads path from disk.
func Load(files Opener, path string) (*particle.ParticleSystemDef, error) {
	if files == nil {
		return particle.LoadFile(path)
	}
	f, err := files.Open(path)
	if err != nil {
		return nil, err
	}
	if c, ok := f.(io.Closer); ok {
		defer c.Close()
	}
	def, err := particle.Load(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load particle system %s: %w", path, err)
	}
	log.Printf("[Effects] Loaded %s: %q with %d emitters", path, def.Name, len(def.Emitters))
	return def, nil
}
