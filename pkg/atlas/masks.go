package atlas

import (
	"fmt"
	"path/filepath"
	"sync"

	"brainparc/pkg/volume"
)

// maskFilenames maps preset tokens to the stock mask files shipped alongside
// the template volumes.
var maskFilenames = map[string]string{
	"gm":  "gm_mask.nii.gz",
	"wm":  "wm_mask.nii.gz",
	"csf": "csf_mask.nii.gz",
}

// MaskLibrary resolves preset mask tokens ("gm", "wm", "csf") to stock mask
// volumes. It satisfies the parcellation engine's preset-source interface.
// Masks loaded from disk are cached for the lifetime of the library, since
// preset volumes are shared read-only across jobs. One library is shared by
// all of a run's concurrent jobs, so the cache is guarded by a mutex.
type MaskLibrary struct {
	dir string

	mu     sync.Mutex
	loaded map[string]*volume.Grid
}

// NewMaskLibrary creates a library reading stock masks from the given
// directory.
func NewMaskLibrary(dir string) *MaskLibrary {
	return &MaskLibrary{dir: dir, loaded: make(map[string]*volume.Grid)}
}

// Register installs an in-memory mask under a preset token, replacing any
// file-backed mask of the same name.
func (l *MaskLibrary) Register(name string, grid *volume.Grid) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaded[name] = grid
}

// LoadPreset returns the mask volume for a preset token. Safe for concurrent
// use; the first caller for a token loads it, later callers get the cached
// grid.
func (l *MaskLibrary) LoadPreset(name string) (*volume.Grid, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if grid, ok := l.loaded[name]; ok {
		return grid, nil
	}
	filename, ok := maskFilenames[name]
	if !ok {
		return nil, fmt.Errorf("no stock mask for preset %q", name)
	}
	grid, err := volume.LoadNifti(filepath.Join(l.dir, filename))
	if err != nil {
		return nil, fmt.Errorf("failed to load stock mask %q: %w", name, err)
	}
	l.loaded[name] = grid
	return grid, nil
}
