package volume

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// NIfTI-1 datatype codes for the voxel formats we accept.
const (
	niftiTypeUint8   = 2
	niftiTypeInt16   = 4
	niftiTypeInt32   = 8
	niftiTypeFloat32 = 16
	niftiTypeFloat64 = 64
	niftiTypeInt8    = 256
	niftiTypeUint16  = 512
)

const niftiHeaderSize = 348

// niftiHeader mirrors the fixed 348-byte NIfTI-1 header layout. Field order
// and widths must match the on-disk format exactly; binary.Read fills it
// field by field with no padding.
type niftiHeader struct {
	SizeofHdr     int32
	DataTypeName  [10]byte
	DBName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XyztUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	Toffset       float32
	Glmax         int32
	Glmin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QoffsetX      float32
	QoffsetY      float32
	QoffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// LoadNifti reads a NIfTI-1 volume from a .nii or .nii.gz file and returns
// it as a Grid. Multi-volume (4D+) files contribute only their first 3D
// volume. Integer data with scl_slope/scl_inter scaling is converted to the
// scaled floating-point values.
func LoadNifti(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open NIfTI file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream in %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	grid, err := ReadNifti(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return grid, nil
}

// ReadNifti decodes a NIfTI-1 stream into a Grid.
func ReadNifti(r io.Reader) (*Grid, error) {
	raw := make([]byte, niftiHeaderSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// The format carries no explicit endianness flag; sizeof_hdr doubles as
	// the detector. Try little-endian first, fall back to big-endian.
	var order binary.ByteOrder = binary.LittleEndian
	var hdr niftiHeader
	if err := binary.Read(bytes.NewReader(raw), order, &hdr); err != nil {
		return nil, fmt.Errorf("failed to decode header: %w", err)
	}
	if hdr.SizeofHdr != niftiHeaderSize {
		order = binary.BigEndian
		if err := binary.Read(bytes.NewReader(raw), order, &hdr); err != nil {
			return nil, fmt.Errorf("failed to decode header: %w", err)
		}
		if hdr.SizeofHdr != niftiHeaderSize {
			return nil, fmt.Errorf("not a NIfTI-1 file: sizeof_hdr=%d", hdr.SizeofHdr)
		}
	}
	if m := hdr.Magic; !(m[0] == 'n' && (m[1] == '+' || m[1] == 'i') && m[2] == '1') {
		return nil, fmt.Errorf("not a NIfTI-1 file: bad magic %q", m[:3])
	}
	if hdr.Magic[1] != '+' {
		return nil, fmt.Errorf("detached .hdr/.img pairs are not supported")
	}
	if hdr.Dim[0] < 3 {
		return nil, fmt.Errorf("expected a 3D volume, got %dD", hdr.Dim[0])
	}

	nx, ny, nz := int(hdr.Dim[1]), int(hdr.Dim[2]), int(hdr.Dim[3])
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%dx%d", nx, ny, nz)
	}

	// Skip from the end of the header to the voxel data.
	offset := int64(hdr.VoxOffset)
	if offset < niftiHeaderSize {
		return nil, fmt.Errorf("invalid vox_offset %d", offset)
	}
	if _, err := io.CopyN(io.Discard, r, offset-niftiHeaderSize); err != nil {
		return nil, fmt.Errorf("failed to seek to voxel data: %w", err)
	}

	data, err := readVoxels(r, order, hdr.Datatype, nx*ny*nz)
	if err != nil {
		return nil, err
	}

	// scl_slope == 0 means "no scaling" per the standard.
	slope := float64(hdr.SclSlope)
	inter := float64(hdr.SclInter)
	if slope != 0 && !(slope == 1 && inter == 0) {
		for i, v := range data {
			data[i] = v*slope + inter
		}
	}

	return NewGrid(data, nx, ny, nz, affineFromHeader(&hdr))
}

// readVoxels decodes count voxels of the given NIfTI datatype into float64.
func readVoxels(r io.Reader, order binary.ByteOrder, datatype int16, count int) ([]float64, error) {
	data := make([]float64, count)
	switch datatype {
	case niftiTypeUint8:
		buf := make([]byte, count)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("failed to read voxel data: %w", err)
		}
		for i, v := range buf {
			data[i] = float64(v)
		}
	case niftiTypeInt8:
		buf := make([]byte, count)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("failed to read voxel data: %w", err)
		}
		for i, v := range buf {
			data[i] = float64(int8(v))
		}
	case niftiTypeInt16:
		buf := make([]int16, count)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, fmt.Errorf("failed to read voxel data: %w", err)
		}
		for i, v := range buf {
			data[i] = float64(v)
		}
	case niftiTypeUint16:
		buf := make([]uint16, count)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, fmt.Errorf("failed to read voxel data: %w", err)
		}
		for i, v := range buf {
			data[i] = float64(v)
		}
	case niftiTypeInt32:
		buf := make([]int32, count)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, fmt.Errorf("failed to read voxel data: %w", err)
		}
		for i, v := range buf {
			data[i] = float64(v)
		}
	case niftiTypeFloat32:
		buf := make([]float32, count)
		if err := binary.Read(r, order, buf); err != nil {
			return nil, fmt.Errorf("failed to read voxel data: %w", err)
		}
		for i, v := range buf {
			data[i] = float64(v)
		}
	case niftiTypeFloat64:
		if err := binary.Read(r, order, data); err != nil {
			return nil, fmt.Errorf("failed to read voxel data: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported NIfTI datatype %d", datatype)
	}
	return data, nil
}

// affineFromHeader builds the voxel-to-world transform. The sform is
// preferred when present; otherwise a diagonal scaling from pixdim is used.
// Quaternion (qform) orientation is intentionally not reconstructed: inputs
// produced by modern pipelines carry an sform.
func affineFromHeader(hdr *niftiHeader) *mat.Dense {
	if hdr.SformCode > 0 {
		return mat.NewDense(4, 4, []float64{
			float64(hdr.SrowX[0]), float64(hdr.SrowX[1]), float64(hdr.SrowX[2]), float64(hdr.SrowX[3]),
			float64(hdr.SrowY[0]), float64(hdr.SrowY[1]), float64(hdr.SrowY[2]), float64(hdr.SrowY[3]),
			float64(hdr.SrowZ[0]), float64(hdr.SrowZ[1]), float64(hdr.SrowZ[2]), float64(hdr.SrowZ[3]),
			0, 0, 0, 1,
		})
	}
	sx, sy, sz := float64(hdr.Pixdim[1]), float64(hdr.Pixdim[2]), float64(hdr.Pixdim[3])
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	if sz == 0 {
		sz = 1
	}
	return ScaledAffine(sx, sy, sz)
}

// SaveNifti writes a grid as a single-file NIfTI-1 volume with float32
// voxels. The path's extension decides whether the stream is gzipped.
func SaveNifti(path string, grid *Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create NIfTI file: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(f)
		defer gz.Close()
		w = gz
	}

	if err := WriteNifti(w, grid); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// WriteNifti encodes a grid as a NIfTI-1 stream.
func WriteNifti(w io.Writer, grid *Grid) error {
	nx, ny, nz := grid.Dims()
	affine := grid.Affine()

	hdr := niftiHeader{
		SizeofHdr: niftiHeaderSize,
		Regular:   'r',
		Datatype:  niftiTypeFloat32,
		Bitpix:    32,
		VoxOffset: 352,
		SclSlope:  1,
		SformCode: 1,
		QformCode: 0,
		Magic:     [4]byte{'n', '+', '1', 0},
	}
	hdr.Dim[0] = 3
	hdr.Dim[1], hdr.Dim[2], hdr.Dim[3] = int16(nx), int16(ny), int16(nz)
	for i := 4; i < 8; i++ {
		hdr.Dim[i] = 1
	}
	hdr.Pixdim[0] = 1
	hdr.Pixdim[1] = float32(math.Hypot(math.Hypot(affine.At(0, 0), affine.At(1, 0)), affine.At(2, 0)))
	hdr.Pixdim[2] = float32(math.Hypot(math.Hypot(affine.At(0, 1), affine.At(1, 1)), affine.At(2, 1)))
	hdr.Pixdim[3] = float32(math.Hypot(math.Hypot(affine.At(0, 2), affine.At(1, 2)), affine.At(2, 2)))
	for c := 0; c < 4; c++ {
		hdr.SrowX[c] = float32(affine.At(0, c))
		hdr.SrowY[c] = float32(affine.At(1, c))
		hdr.SrowZ[c] = float32(affine.At(2, c))
	}

	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	// Four zero bytes: no header extensions.
	if _, err := w.Write(make([]byte, 4)); err != nil {
		return fmt.Errorf("failed to write extension flag: %w", err)
	}

	voxels := make([]float32, grid.NumVoxels())
	for i, v := range grid.Data() {
		voxels[i] = float32(v)
	}
	if err := binary.Write(w, binary.LittleEndian, voxels); err != nil {
		return fmt.Errorf("failed to write voxel data: %w", err)
	}
	return nil
}
