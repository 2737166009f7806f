package volume

import (
	"testing"
)

func TestNewGridValidation(t *testing.T) {
	tests := []struct {
		name       string
		data       []float64
		nx, ny, nz int
		wantErr    bool
	}{
		{"Valid", make([]float64, 8), 2, 2, 2, false},
		{"LengthMismatch", make([]float64, 7), 2, 2, 2, true},
		{"ZeroDimension", nil, 0, 2, 2, true},
		{"NegativeDimension", nil, 2, -1, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGrid(tt.data, tt.nx, tt.ny, tt.nz, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewGrid(%dx%dx%d, len %d): err = %v, wantErr = %v",
					tt.nx, tt.ny, tt.nz, len(tt.data), err, tt.wantErr)
			}
		})
	}
}

func TestGridIndexing(t *testing.T) {
	// x-fastest layout: data[z*nx*ny + y*nx + x]
	data := []float64{
		0, 1,
		2, 3,
		4, 5,
		6, 7,
	}
	g := MustGrid(data, 2, 2, 2, nil)

	if got := g.At(1, 0, 0); got != 1 {
		t.Errorf("Expected At(1,0,0) = 1, got %v", got)
	}
	if got := g.At(0, 1, 0); got != 2 {
		t.Errorf("Expected At(0,1,0) = 2, got %v", got)
	}
	if got := g.At(1, 1, 1); got != 7 {
		t.Errorf("Expected At(1,1,1) = 7, got %v", got)
	}
}

func TestGridWithDataSharesGeometry(t *testing.T) {
	g := MustGrid([]float64{1, 2, 3, 4}, 2, 2, 1, ScaledAffine(2, 2, 2))
	derived, err := g.WithData([]float64{5, 6, 7, 8})
	if err != nil {
		t.Fatalf("WithData failed: %v", err)
	}
	if !derived.SameShape(g) {
		t.Error("Derived grid lost the original shape")
	}
	if g.At(0, 0, 0) != 1 {
		t.Error("Original grid was mutated")
	}
	if derived.At(0, 0, 0) != 5 {
		t.Error("Derived grid does not carry the new data")
	}

	if _, err := g.WithData(make([]float64, 3)); err == nil {
		t.Error("Expected an error for mismatched data length")
	}
}

func TestVoxelToWorld(t *testing.T) {
	g := MustGrid(make([]float64, 8), 2, 2, 2, ScaledAffine(2, 3, 4))
	x, y, z := g.VoxelToWorld(1, 1, 1)
	if x != 2 || y != 3 || z != 4 {
		t.Errorf("Expected world (2,3,4), got (%v,%v,%v)", x, y, z)
	}
}
