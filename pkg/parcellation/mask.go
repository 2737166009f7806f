package parcellation

import "brainparc/pkg/volume"

// Preset tokens recognized as stock anatomical masks.
const (
	PresetGrayMatter  = "gm"
	PresetWhiteMatter = "wm"
	PresetCSF         = "csf"
)

// PresetSource resolves named anatomical mask presets ("gm", "wm", "csf") to
// stock mask volumes. Implemented by the atlas package; injected into the
// engine so mask resolution stays an external collaborator.
type PresetSource interface {
	LoadPreset(name string) (*volume.Grid, error)
}

// Mask is a tagged mask specification: an in-memory grid, a NIfTI path, or a
// preset token. The zero value is unsupported and rejected at apply time.
type Mask struct {
	grid   *volume.Grid
	path   string
	preset string
}

// MaskFromGrid wraps an already-loaded mask volume.
func MaskFromGrid(grid *volume.Grid) *Mask {
	return &Mask{grid: grid}
}

// MaskFromPath refers to a mask volume on disk.
func MaskFromPath(path string) *Mask {
	return &Mask{path: path}
}

// MaskFromPreset refers to a stock anatomical mask by token.
func MaskFromPreset(name string) *Mask {
	return &Mask{preset: name}
}

// MaskFromString interprets a configuration string: a recognized preset
// token resolves through the preset source, anything else is treated as a
// path. This mirrors how mask strings behave in run configuration files.
func MaskFromString(s string) *Mask {
	switch s {
	case PresetGrayMatter, PresetWhiteMatter, PresetCSF:
		return MaskFromPreset(s)
	}
	return MaskFromPath(s)
}
