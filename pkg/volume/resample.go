package volume

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Interpolation orders understood by the resampler. Order 0 (nearest
// neighbor) must be used for discrete data such as atlas labels and binary
// masks; order 1 (trilinear) is appropriate for continuous scalar maps.
const (
	OrderNearest   = 0
	OrderTrilinear = 1
)

// Resampler maps a source grid onto a reference grid's shape and affine
// using the given interpolation order. The parcellation engine calls through
// this interface rather than committing to one sampling implementation.
type Resampler interface {
	Resample(src, ref *Grid, order int) (*Grid, error)
}

// AffineResampler resamples by composing the reference voxel-to-world affine
// with the inverse of the source affine, then sampling the source volume at
// the mapped coordinates. Voxels that map outside the source volume become 0.
type AffineResampler struct{}

// Resample returns a new grid with the reference geometry whose values are
// sampled from src.
func (AffineResampler) Resample(src, ref *Grid, order int) (*Grid, error) {
	if order != OrderNearest && order != OrderTrilinear {
		return nil, fmt.Errorf("unsupported interpolation order %d", order)
	}

	// voxel(ref) -> world -> voxel(src)
	var srcInv mat.Dense
	if err := srcInv.Inverse(src.affine); err != nil {
		return nil, fmt.Errorf("source affine is singular: %w", err)
	}
	var voxmap mat.Dense
	voxmap.Mul(&srcInv, ref.affine)

	nx, ny, nz := ref.Dims()
	out := make([]float64, nx*ny*nz)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				fi := float64(i)
				fj := float64(j)
				fk := float64(k)
				sx := voxmap.At(0, 0)*fi + voxmap.At(0, 1)*fj + voxmap.At(0, 2)*fk + voxmap.At(0, 3)
				sy := voxmap.At(1, 0)*fi + voxmap.At(1, 1)*fj + voxmap.At(1, 2)*fk + voxmap.At(1, 3)
				sz := voxmap.At(2, 0)*fi + voxmap.At(2, 1)*fj + voxmap.At(2, 2)*fk + voxmap.At(2, 3)

				var value float64
				if order == OrderNearest {
					value = sampleNearest(src, sx, sy, sz)
				} else {
					value = sampleTrilinear(src, sx, sy, sz)
				}
				out[k*nx*ny+j*nx+i] = value
			}
		}
	}

	return NewGrid(out, nx, ny, nz, ref.Affine())
}

// sampleNearest returns the value of the voxel closest to the continuous
// source coordinate, or 0 outside the volume.
func sampleNearest(src *Grid, x, y, z float64) float64 {
	xi := int(math.Round(x))
	yi := int(math.Round(y))
	zi := int(math.Round(z))
	nx, ny, nz := src.Dims()
	if xi < 0 || yi < 0 || zi < 0 || xi >= nx || yi >= ny || zi >= nz {
		return 0
	}
	return src.At(xi, yi, zi)
}

// sampleTrilinear interpolates linearly between the eight voxels surrounding
// the continuous source coordinate. Corners outside the volume contribute 0.
func sampleTrilinear(src *Grid, x, y, z float64) float64 {
	x0 := math.Floor(x)
	y0 := math.Floor(y)
	z0 := math.Floor(z)
	fx := x - x0
	fy := y - y0
	fz := z - z0

	var sum float64
	for dz := 0; dz <= 1; dz++ {
		for dy := 0; dy <= 1; dy++ {
			for dx := 0; dx <= 1; dx++ {
				w := weight(fx, dx) * weight(fy, dy) * weight(fz, dz)
				if w == 0 {
					continue
				}
				sum += w * voxelOrZero(src, int(x0)+dx, int(y0)+dy, int(z0)+dz)
			}
		}
	}
	return sum
}

func weight(frac float64, side int) float64 {
	if side == 1 {
		return frac
	}
	return 1 - frac
}

func voxelOrZero(src *Grid, x, y, z int) float64 {
	nx, ny, nz := src.Dims()
	if x < 0 || y < 0 || z < 0 || x >= nx || y >= ny || z >= nz {
		return 0
	}
	return src.At(x, y, z)
}
