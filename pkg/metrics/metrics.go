// Package metrics provides the catalog of per-ROI statistical reducers and
// the resolution of caller-supplied metric specifications against it.
//
// All built-in reducers are total functions over a slice of voxel values:
// NaN entries represent missing data and are excluded from computation
// (except for count, which counts every voxel), and an empty or all-missing
// input yields NaN rather than an error.
package metrics

import (
	"fmt"
	"math"
	"reflect"
	"runtime"
	"strings"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// zScoreThreshold is the cutoff magnitude for the z-filtered mean.
const zScoreThreshold = 3.0

// ReduceFunc maps a sequence of voxel values (possibly containing NaN) to a
// single scalar. Implementations must return NaN for empty input, never panic.
type ReduceFunc func(values []float64) float64

// Reducer pairs a reduction function with a stable name and a human-readable
// description used in reports.
type Reducer struct {
	// Name is the canonical metric identifier
	Name string

	// Description explains the statistic for report output
	Description string

	// Compute applies the statistic to ROI voxel values
	Compute ReduceFunc
}

// UnknownMetricError reports a requested metric name that has no catalog
// entry after alias resolution.
type UnknownMetricError struct {
	// Name is the offending metric name as requested by the caller
	Name string
}

func (e *UnknownMetricError) Error() string {
	return fmt.Sprintf("unknown metric %q", e.Name)
}

// Spec is a tagged metric specification: a catalog name, a bare function, or
// an explicitly named function. Construct values with ByName, ByFunc, or
// Named; the zero value resolves like an unknown empty name.
type Spec struct {
	name string
	fn   ReduceFunc
}

// ByName requests a built-in reducer by canonical name or legacy alias.
func ByName(name string) Spec {
	return Spec{name: name}
}

// ByFunc requests a custom reducer. Its display name is derived from the
// function's identifier when one is available, "metric" otherwise.
func ByFunc(fn ReduceFunc) Spec {
	return Spec{fn: fn}
}

// Named requests a custom reducer under an explicit display name.
func Named(name string, fn ReduceFunc) Spec {
	return Spec{name: name, fn: fn}
}

// Registry is the immutable catalog of built-in reducers plus the legacy
// alias table. Construct one with NewRegistry and share it read-only; it
// holds no mutable state after construction.
type Registry struct {
	byName   map[string]Reducer
	aliases  map[string]string
	defaults []string
}

// NewRegistry builds the registry with the full built-in catalog.
func NewRegistry() *Registry {
	r := &Registry{
		byName: make(map[string]Reducer),
		aliases: map[string]string{
			"mean":           "nanmean",
			"median":         "nanmedian",
			"std":            "nanstd",
			"min":            "nanmin",
			"max":            "nanmax",
			"zfiltered_mean": "zfmean",
			"iqr_mean":       "iqrmean",
		},
	}

	builtins := []Reducer{
		{
			Name:        "nanmean",
			Description: "Mean ignoring NaNs: mean(x) = sum(x_i) / N_valid",
			Compute:     nanMean,
		},
		{
			Name:        "nanmedian",
			Description: "Median ignoring NaNs: median(x) = 50th percentile of valid values",
			Compute:     nanMedian,
		},
		{
			Name:        "nanstd",
			Description: "Std dev ignoring NaNs: std(x) = sqrt(sum((x_i - mean)^2) / N_valid)",
			Compute:     nanStd,
		},
		{
			Name:        "nanmin",
			Description: "Minimum ignoring NaNs: min(x_i)",
			Compute:     nanMin,
		},
		{
			Name:        "nanmax",
			Description: "Maximum ignoring NaNs: max(x_i)",
			Compute:     nanMax,
		},
		{
			Name:        "count",
			Description: "Voxel count (including NaNs): N_total",
			Compute:     voxelCount,
		},
		{
			Name:        "zfmean",
			Description: "Z-filtered mean: mean(x_i) after removing |(x_i-mean)/std| >= 3",
			Compute:     zFilteredMean,
		},
		{
			Name:        "iqrmean",
			Description: "Mean within interquartile range: mean(x_i where Q1 <= x_i <= Q3)",
			Compute:     iqrMean,
		},
		{
			Name:        "mad_median",
			Description: "Median absolute deviation: median(|x_i - median(x)|)",
			Compute:     madMedian,
		},
	}
	for _, reducer := range builtins {
		r.byName[reducer.Name] = reducer
		r.defaults = append(r.defaults, reducer.Name)
	}
	return r
}

// DefaultNames returns the canonical names of the full built-in catalog in
// catalog order.
func (r *Registry) DefaultNames() []string {
	out := make([]string, len(r.defaults))
	copy(out, r.defaults)
	return out
}

// Lookup returns a built-in reducer by canonical name or alias.
func (r *Registry) Lookup(name string) (Reducer, bool) {
	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}
	reducer, ok := r.byName[name]
	return reducer, ok
}

// List returns every built-in reducer in catalog order.
func (r *Registry) List() []Reducer {
	out := make([]Reducer, 0, len(r.defaults))
	for _, name := range r.defaults {
		out = append(out, r.byName[name])
	}
	return out
}

// Resolve turns metric specifications into parallel name and reducer lists,
// preserving the caller's order. An empty spec list resolves to the full
// built-in catalog. Requested names are kept as the output names, so an
// aliased request like "mean" produces a column called "mean" backed by the
// nanmean reducer. A name with no catalog entry fails with
// *UnknownMetricError.
func (r *Registry) Resolve(specs []Spec) (names []string, reducers []Reducer, err error) {
	if len(specs) == 0 {
		for _, name := range r.defaults {
			specs = append(specs, ByName(name))
		}
	}

	names = make([]string, 0, len(specs))
	reducers = make([]Reducer, 0, len(specs))
	for _, spec := range specs {
		if spec.fn == nil {
			reducer, ok := r.Lookup(spec.name)
			if !ok {
				return nil, nil, &UnknownMetricError{Name: spec.name}
			}
			names = append(names, spec.name)
			reducers = append(reducers, reducer)
			continue
		}

		name := spec.name
		if name == "" {
			name = funcName(spec.fn)
		}
		names = append(names, name)
		reducers = append(reducers, Reducer{
			Name:        name,
			Description: "user-supplied metric",
			Compute:     spec.fn,
		})
	}
	return names, reducers, nil
}

// funcName derives a display name from a function's symbol, falling back to
// "metric" for anonymous closures and method values with unhelpful symbols.
func funcName(fn ReduceFunc) string {
	pc := reflect.ValueOf(fn).Pointer()
	rf := runtime.FuncForPC(pc)
	if rf == nil {
		return "metric"
	}
	name := rf.Name()
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.TrimSuffix(name, "-fm")
	if name == "" || strings.HasPrefix(name, "func") || isDigits(name) {
		return "metric"
	}
	return name
}

// isDigits reports whether s is a bare closure counter like "1" in
// "pkg.Caller.func3.1".
func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// validValues filters out NaN entries.
func validValues(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func nanMean(values []float64) float64 {
	valid := validValues(values)
	if len(valid) == 0 {
		return math.NaN()
	}
	return stat.Mean(valid, nil)
}

func nanMedian(values []float64) float64 {
	valid := validValues(values)
	median, err := stats.Median(valid)
	if err != nil {
		return math.NaN()
	}
	return median
}

func nanStd(values []float64) float64 {
	valid := validValues(values)
	sd, err := stats.StandardDeviationPopulation(valid)
	if err != nil {
		return math.NaN()
	}
	return sd
}

func nanMin(values []float64) float64 {
	valid := validValues(values)
	min, err := stats.Min(valid)
	if err != nil {
		return math.NaN()
	}
	return min
}

func nanMax(values []float64) float64 {
	valid := validValues(values)
	max, err := stats.Max(valid)
	if err != nil {
		return math.NaN()
	}
	return max
}

func voxelCount(values []float64) float64 {
	return float64(len(values))
}

// zFilteredMean discards values whose z-score magnitude reaches the
// threshold before averaging. A zero standard deviation means every value
// sits on the mean, so the unfiltered mean is returned.
func zFilteredMean(values []float64) float64 {
	valid := validValues(values)
	if len(valid) == 0 {
		return math.NaN()
	}
	mean := stat.Mean(valid, nil)
	sd, err := stats.StandardDeviationPopulation(valid)
	if err != nil || sd == 0 {
		return mean
	}
	filtered := valid[:0:0]
	for _, v := range valid {
		if math.Abs((v-mean)/sd) < zScoreThreshold {
			filtered = append(filtered, v)
		}
	}
	if len(filtered) == 0 {
		return math.NaN()
	}
	return stat.Mean(filtered, nil)
}

// iqrMean averages the values lying within [Q1, Q3] inclusive.
func iqrMean(values []float64) float64 {
	valid := validValues(values)
	quartiles, err := stats.Quartile(valid)
	if err != nil {
		return math.NaN()
	}
	subset := valid[:0:0]
	for _, v := range valid {
		if v >= quartiles.Q1 && v <= quartiles.Q3 {
			subset = append(subset, v)
		}
	}
	if len(subset) == 0 {
		return math.NaN()
	}
	return stat.Mean(subset, nil)
}

func madMedian(values []float64) float64 {
	valid := validValues(values)
	median, err := stats.Median(valid)
	if err != nil {
		return math.NaN()
	}
	deviations := make([]float64, len(valid))
	for i, v := range valid {
		deviations[i] = math.Abs(v - median)
	}
	mad, err := stats.Median(deviations)
	if err != nil {
		return math.NaN()
	}
	return mad
}
