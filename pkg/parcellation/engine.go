// Package parcellation implements the volume parcellation engine: it
// reconciles a label grid and a value grid that may disagree in shape,
// optionally restricts the label grid to a mask, partitions voxels by
// positive integer label, and applies a set of statistical reducers per
// label to produce an ROI table.
package parcellation

import (
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"

	"brainparc/pkg/metrics"
	"brainparc/pkg/volume"
)

// Policy selects which grid is resampled when label and value grids have
// mismatched shapes.
type Policy string

const (
	// PolicyNone fails with ShapeMismatchError on mismatched shapes
	PolicyNone Policy = ""

	// PolicyLabels resamples the value grid onto the label grid's
	// geometry with trilinear interpolation
	PolicyLabels Policy = "labels"

	// PolicyData resamples the label grid onto the value grid's geometry
	// with nearest-neighbor interpolation, preserving label identity
	PolicyData Policy = "data"
)

// normalizePolicy folds the accepted aliases onto the canonical tokens.
func normalizePolicy(policy Policy) (Policy, error) {
	switch policy {
	case PolicyNone:
		return PolicyNone, nil
	case PolicyLabels, "atlas":
		return PolicyLabels, nil
	case PolicyData, "scalar":
		return PolicyData, nil
	}
	return "", &UnknownPolicyError{Policy: string(policy)}
}

// Params configures an Engine. Nil fields fall back to defaults: a fresh
// built-in metric registry, the affine resampler, no preset source, and the
// standard logger.
type Params struct {
	// Registry supplies the metric catalog used to resolve specs
	Registry *metrics.Registry

	// Resampler performs grid-onto-grid resampling
	Resampler volume.Resampler

	// Presets resolves named anatomical mask tokens; optional
	Presets PresetSource

	// Logger receives the single diagnostic emitted on silent resampling
	Logger *log.Logger
}

// Engine computes ROI tables. It holds no state between invocations beyond
// its injected collaborators; concurrent Parcellate calls on independent
// inputs are safe.
type Engine struct {
	registry  *metrics.Registry
	resampler volume.Resampler
	presets   PresetSource
	logger    *log.Logger
}

// NewEngine creates an engine from the given parameters.
func NewEngine(params *Params) *Engine {
	if params == nil {
		params = &Params{}
	}
	e := &Engine{
		registry:  params.Registry,
		resampler: params.Resampler,
		presets:   params.Presets,
		logger:    params.Logger,
	}
	if e.registry == nil {
		e.registry = metrics.NewRegistry()
	}
	if e.resampler == nil {
		e.resampler = volume.AffineResampler{}
	}
	if e.logger == nil {
		e.logger = log.Default()
	}
	return e
}

// Request describes one parcellation call.
type Request struct {
	// Labels is the integer-labeled atlas volume (0 = background)
	Labels *volume.Grid

	// Values is the scalar map to summarize per region
	Values *volume.Grid

	// Metrics selects the reducers; empty means the full built-in catalog
	Metrics []metrics.Spec

	// Names optionally maps labels to region names; nil means the output
	// table carries no name column
	Names map[int]string

	// Policy governs grid reconciliation on shape mismatch
	Policy Policy

	// Mask optionally zeroes label voxels outside a boolean mask
	Mask *Mask
}

// Parcellate computes per-ROI statistics for one (label grid, value grid)
// pair and returns the resulting table. Numeric edge cases (empty ROI, zero
// variance, all-missing values) degrade to NaN cells rather than failing;
// all failures are typed configuration or input errors.
func (e *Engine) Parcellate(req *Request) (*Table, error) {
	if req == nil || req.Labels == nil || req.Values == nil {
		return nil, fmt.Errorf("parcellation request requires both a label grid and a value grid")
	}

	labelGrid, valueGrid, err := e.reconcile(req.Labels, req.Values, req.Policy)
	if err != nil {
		return nil, err
	}

	if req.Mask != nil {
		labelGrid, err = e.applyMask(labelGrid, req.Mask)
		if err != nil {
			return nil, err
		}
	}

	names, reducers, err := e.registry.Resolve(req.Metrics)
	if err != nil {
		return nil, err
	}

	labels, valuesByLabel := gatherROIs(labelGrid, valueGrid)

	table := &Table{
		Metrics:  names,
		HasNames: req.Names != nil,
		Rows:     make([]Row, 0, len(labels)),
	}
	for _, label := range labels {
		roiValues := valuesByLabel[label]
		row := Row{
			Index:  strconv.Itoa(label),
			Label:  label,
			Values: make([]float64, len(reducers)),
		}
		for i, reducer := range reducers {
			row.Values[i] = reducer.Compute(roiValues)
		}
		if table.HasNames {
			row.Name = regionName(req.Names, label)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// reconcile ensures both grids share a shape, resampling one of them when a
// policy allows it. The value grid is assumed continuous-valued: resampling
// it toward the label grid interpolates linearly, while labels are always
// resampled nearest-neighbor so no fractional label identities are invented.
func (e *Engine) reconcile(labelGrid, valueGrid *volume.Grid, policy Policy) (*volume.Grid, *volume.Grid, error) {
	if labelGrid.SameShape(valueGrid) {
		return labelGrid, valueGrid, nil
	}

	canonical, err := normalizePolicy(policy)
	if err != nil {
		return nil, nil, err
	}

	switch canonical {
	case PolicyNone:
		return nil, nil, &ShapeMismatchError{
			LabelShape: labelGrid.Shape(),
			ValueShape: valueGrid.Shape(),
		}
	case PolicyLabels:
		e.logger.Printf("label grid shape %v does not match value grid shape %v; resampling value grid onto label grid",
			labelGrid.Shape(), valueGrid.Shape())
		resampled, err := e.resampler.Resample(valueGrid, labelGrid, volume.OrderTrilinear)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resample value grid: %w", err)
		}
		return labelGrid, resampled, nil
	default: // PolicyData
		e.logger.Printf("label grid shape %v does not match value grid shape %v; resampling label grid onto value grid",
			labelGrid.Shape(), valueGrid.Shape())
		resampled, err := e.resampler.Resample(labelGrid, valueGrid, volume.OrderNearest)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resample label grid: %w", err)
		}
		return resampled, valueGrid, nil
	}
}

// applyMask returns a new label grid with every voxel outside the mask set
// to background. The mask is reconciled to the label grid's geometry with
// nearest-neighbor interpolation when shapes differ, since masks are
// effectively boolean.
func (e *Engine) applyMask(labelGrid *volume.Grid, mask *Mask) (*volume.Grid, error) {
	maskGrid, err := e.resolveMask(mask)
	if err != nil {
		return nil, err
	}

	if !maskGrid.SameShape(labelGrid) {
		maskGrid, err = e.resampler.Resample(maskGrid, labelGrid, volume.OrderNearest)
		if err != nil {
			return nil, fmt.Errorf("failed to resample mask onto label grid: %w", err)
		}
	}

	src := labelGrid.Data()
	maskData := maskGrid.Data()
	masked := make([]float64, len(src))
	for i, v := range src {
		if maskData[i] != 0 {
			masked[i] = v
		}
	}
	return labelGrid.WithData(masked)
}

// resolveMask turns a mask specification into a grid.
func (e *Engine) resolveMask(mask *Mask) (*volume.Grid, error) {
	switch {
	case mask.grid != nil:
		return mask.grid, nil
	case mask.path != "":
		grid, err := volume.LoadNifti(mask.path)
		if err != nil {
			return nil, fmt.Errorf("failed to load mask volume: %w", err)
		}
		return grid, nil
	case mask.preset != "":
		if e.presets == nil {
			return nil, &UnsupportedMaskTypeError{Kind: fmt.Sprintf("preset %q with no preset source configured", mask.preset)}
		}
		grid, err := e.presets.LoadPreset(mask.preset)
		if err != nil {
			return nil, fmt.Errorf("failed to load preset mask %q: %w", mask.preset, err)
		}
		return grid, nil
	}
	return nil, &UnsupportedMaskTypeError{Kind: "empty mask specification"}
}

// gatherROIs partitions the value grid's voxels by the positive integer
// labels present in the label grid. One pass over the volume; the returned
// label list is sorted ascending and defines the table's row order.
func gatherROIs(labelGrid, valueGrid *volume.Grid) ([]int, map[int][]float64) {
	labelData := labelGrid.Data()
	valueData := valueGrid.Data()

	valuesByLabel := make(map[int][]float64)
	for i, raw := range labelData {
		label := int(math.Round(raw))
		if label <= 0 {
			continue
		}
		valuesByLabel[label] = append(valuesByLabel[label], valueData[i])
	}

	labels := make([]int, 0, len(valuesByLabel))
	for label := range valuesByLabel {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	return labels, valuesByLabel
}

// regionName looks up a label's name, degrading to the stringified label
// when the lookup table has no entry.
func regionName(names map[int]string, label int) string {
	if name, ok := names[label]; ok {
		return name
	}
	return strconv.Itoa(label)
}
