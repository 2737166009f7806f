package parcellation

import "fmt"

// ShapeMismatchError reports label and value grids of different shapes when
// no reconciliation policy was supplied. Both shapes are carried so the
// caller can log or re-raise with full context.
type ShapeMismatchError struct {
	// LabelShape is the label grid's voxel dimensions
	LabelShape [3]int

	// ValueShape is the value grid's voxel dimensions
	ValueShape [3]int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("label grid shape %dx%dx%d does not match value grid shape %dx%dx%d and no resample policy was given",
		e.LabelShape[0], e.LabelShape[1], e.LabelShape[2],
		e.ValueShape[0], e.ValueShape[1], e.ValueShape[2])
}

// UnknownPolicyError reports an unrecognized reconciliation-policy token.
type UnknownPolicyError struct {
	// Policy is the offending token
	Policy string
}

func (e *UnknownPolicyError) Error() string {
	return fmt.Sprintf("unknown resample policy %q", e.Policy)
}

// UnsupportedMaskTypeError reports a mask value that is neither a grid, a
// path, nor a resolvable preset name.
type UnsupportedMaskTypeError struct {
	// Kind describes the offending mask value
	Kind string
}

func (e *UnsupportedMaskTypeError) Error() string {
	return fmt.Sprintf("unsupported mask type: %s", e.Kind)
}
