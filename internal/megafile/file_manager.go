package megafile

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/decker502/aloparticles/internal/stream"
)

// IndexPath is the archive index looked up under every base path.
const IndexPath = "Data/MegaFiles.xml"

// megaFilesIndex mirrors Data/MegaFiles.xml:
//
//	<Mega_Files>
//	  <File>Data\Config.meg</File>
//	</Mega_Files>
type megaFilesIndex struct {
	XMLName xml.Name `xml:"Mega_Files"`
	Files   []string `xml:"File"`
}

// FileManager resolves asset paths. Loose files under the base paths take
// precedence over archive entries.
type FileManager struct {
	basePaths []string
	megaFiles []*MegaFile
	opened    []*stream.PhysicalFile
}

// NewFileManager indexes the archives listed by each base path's
// Data/MegaFiles.xml. Base paths without an index are used for loose files only.
func NewFileManager(basePaths []string) (*FileManager, error) {
	fm := &FileManager{basePaths: basePaths}
	for _, base := range basePaths {
		if err := fm.loadIndex(base); err != nil {
			fm.Close()
			return nil, err
		}
	}
	log.Printf("[FileManager] %d base paths, %d archives", len(fm.basePaths), len(fm.megaFiles))
	return fm, nil
}

func (fm *FileManager) loadIndex(base string) error {
	indexPath := filepath.Join(base, filepath.FromSlash(IndexPath))
	data, err := os.ReadFile(indexPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", indexPath, err)
	}

	var index megaFilesIndex
	if err := xml.Unmarshal(data, &index); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadArchive, indexPath, err)
	}

	for _, name := range index.Files {
		archivePath := filepath.Join(base, localPath(strings.TrimSpace(name)))
		f, err := stream.Open(archivePath)
		if err != nil {
			log.Printf("[FileManager] Warning: skipping archive %s: %v", archivePath, err)
			continue
		}
		m, err := Open(archivePath, f)
		if err != nil {
			f.Close()
			return err
		}
		fm.opened = append(fm.opened, f)
		fm.megaFiles = append(fm.megaFiles, m)
	}
	return nil
}

// AddMegaFile registers an already opened archive after the indexed ones.
func (fm *FileManager) AddMegaFile(m *MegaFile) {
	fm.megaFiles = append(fm.megaFiles, m)
}

// Open returns the file for path, or an fs.ErrNotExist error. Loose files are
// *stream.PhysicalFile values the caller must close.
func (fm *FileManager) Open(path string) (stream.File, error) {
	local := localPath(path)
	for _, base := range fm.basePaths {
		name := local
		if !filepath.IsAbs(local) {
			name = filepath.Join(base, local)
		}
		if f, err := stream.Open(name); err == nil {
			return f, nil
		}
	}

	archivePath := strings.ReplaceAll(path, "/", `\`)
	for _, m := range fm.megaFiles {
		if f, ok := m.Lookup(archivePath); ok {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", path, fs.ErrNotExist)
}

// Close releases the archives opened by the manager.
func (fm *FileManager) Close() error {
	var errs []error
	for _, f := range fm.opened {
		errs = append(errs, f.Close())
	}
	fm.opened = nil
	fm.megaFiles = nil
	return errors.Join(errs...)
}

func localPath(path string) string {
	return filepath.FromSlash(strings.ReplaceAll(path, `\`, "/"))
}
