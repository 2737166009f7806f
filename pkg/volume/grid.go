// Package volume provides the 3D voxel-grid data model used throughout
// brainparc: a flat float64 array with dimensions and a 4x4 voxel-to-world
// affine, plus NIfTI-1 loading/saving and affine-based resampling.
package volume

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Grid represents an immutable 3D volume. Voxel data is stored as a 1D array
// in x-fastest order (idx = z*nx*ny + y*nx + x), matching NIfTI data layout
// and the volume indexing convention used by the reconstruction literature.
//
// A Grid is semantically either a label grid (non-negative integers stored as
// float64, 0 = background) or a value grid (floating point, NaN = missing).
// The distinction is by use, not by type.
type Grid struct {
	// data holds the voxel values in x-fastest order
	data []float64

	// nx, ny, nz are the grid dimensions in voxels
	nx, ny, nz int

	// affine maps homogeneous voxel indices to world coordinates (mm)
	affine *mat.Dense
}

// NewGrid creates a grid from voxel data in x-fastest order. The affine must
// be a 4x4 matrix; nil means identity. The data slice is retained, not
// copied; callers hand over ownership.
func NewGrid(data []float64, nx, ny, nz int, affine *mat.Dense) (*Grid, error) {
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return nil, fmt.Errorf("invalid grid dimensions %dx%dx%d", nx, ny, nz)
	}
	if len(data) != nx*ny*nz {
		return nil, fmt.Errorf("data length %d does not match dimensions %dx%dx%d", len(data), nx, ny, nz)
	}
	if affine == nil {
		affine = IdentityAffine()
	}
	if r, c := affine.Dims(); r != 4 || c != 4 {
		return nil, fmt.Errorf("affine must be 4x4, got %dx%d", r, c)
	}
	return &Grid{data: data, nx: nx, ny: ny, nz: nz, affine: affine}, nil
}

// MustGrid is a convenience wrapper around NewGrid that panics on error.
// Intended for tests and literals with known-good dimensions.
func MustGrid(data []float64, nx, ny, nz int, affine *mat.Dense) *Grid {
	g, err := NewGrid(data, nx, ny, nz, affine)
	if err != nil {
		panic(err)
	}
	return g
}

// IdentityAffine returns a 4x4 identity voxel-to-world transform.
func IdentityAffine() *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}

// ScaledAffine returns a diagonal voxel-to-world transform with the given
// voxel sizes in mm.
func ScaledAffine(sx, sy, sz float64) *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		sx, 0, 0, 0,
		0, sy, 0, 0,
		0, 0, sz, 0,
		0, 0, 0, 1,
	})
}

// Dims returns the grid dimensions in voxels.
func (g *Grid) Dims() (nx, ny, nz int) {
	return g.nx, g.ny, g.nz
}

// Shape returns the dimensions as an array, convenient for comparison and
// error messages.
func (g *Grid) Shape() [3]int {
	return [3]int{g.nx, g.ny, g.nz}
}

// NumVoxels returns the total voxel count.
func (g *Grid) NumVoxels() int {
	return g.nx * g.ny * g.nz
}

// At returns the value at voxel (x, y, z). No bounds checking beyond the
// slice's own; callers iterate within Dims.
func (g *Grid) At(x, y, z int) float64 {
	return g.data[z*g.nx*g.ny+y*g.nx+x]
}

// Data returns the underlying voxel array in x-fastest order. The array is
// shared, not copied; callers must treat it as read-only.
func (g *Grid) Data() []float64 {
	return g.data
}

// Affine returns a copy of the 4x4 voxel-to-world transform.
func (g *Grid) Affine() *mat.Dense {
	out := mat.NewDense(4, 4, nil)
	out.Copy(g.affine)
	return out
}

// SameShape reports whether two grids have identical voxel dimensions.
func (g *Grid) SameShape(other *Grid) bool {
	return g.nx == other.nx && g.ny == other.ny && g.nz == other.nz
}

// WithData returns a new grid sharing this grid's geometry but carrying the
// given voxel data. Used when a derived volume (e.g. a masked label grid)
// must be produced without mutating the original.
func (g *Grid) WithData(data []float64) (*Grid, error) {
	return NewGrid(data, g.nx, g.ny, g.nz, g.Affine())
}

// VoxelToWorld maps continuous voxel coordinates through the affine to world
// coordinates in mm.
func (g *Grid) VoxelToWorld(i, j, k float64) (x, y, z float64) {
	a := g.affine
	x = a.At(0, 0)*i + a.At(0, 1)*j + a.At(0, 2)*k + a.At(0, 3)
	y = a.At(1, 0)*i + a.At(1, 1)*j + a.At(1, 2)*k + a.At(1, 3)
	z = a.At(2, 0)*i + a.At(2, 1)*j + a.At(2, 2)*k + a.At(2, 3)
	return x, y, z
}
