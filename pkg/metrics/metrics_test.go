package metrics

import (
	"errors"
	"math"
	"testing"
)

// rangeMetric is a named custom reducer used to verify display-name
// derivation for function specs.
func rangeMetric(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return max - min
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// computeBuiltin resolves one built-in metric and applies it
func computeBuiltin(t *testing.T, name string, values []float64) float64 {
	t.Helper()
	registry := NewRegistry()
	_, reducers, err := registry.Resolve([]Spec{ByName(name)})
	if err != nil {
		t.Fatalf("Failed to resolve %q: %v", name, err)
	}
	return reducers[0].Compute(values)
}

func TestBuiltinReducers(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name   string
		metric string
		values []float64
		want   float64
	}{
		{"MeanSkipsNaN", "nanmean", []float64{1, 2, nan, 3}, 2},
		{"MeanEmpty", "nanmean", nil, nan},
		{"MeanAllNaN", "nanmean", []float64{nan, nan}, nan},
		{"MedianEvenCount", "nanmedian", []float64{1, 2, 3, 4}, 2.5},
		{"MedianSkipsNaN", "nanmedian", []float64{1, nan, 3}, 2},
		{"StdIsPopulation", "nanstd", []float64{2, 4}, 1},
		{"StdSkipsNaN", "nanstd", []float64{2, nan, 4}, 1},
		{"Min", "nanmin", []float64{3, nan, 1, 2}, 1},
		{"Max", "nanmax", []float64{3, nan, 1, 2}, 3},
		{"CountIncludesNaN", "count", []float64{1, nan, 3}, 3},
		{"CountEmpty", "count", nil, 0},
		{"ZFMeanZeroStd", "zfmean", []float64{5, 5, 5}, 5},
		{"ZFMeanEmpty", "zfmean", nil, nan},
		{"IQRMean", "iqrmean", []float64{1, 2, 3, 4, 5, 6, 7, 8}, 4.5},
		{"IQRMeanEmpty", "iqrmean", nil, nan},
		{"MADMedian", "mad_median", []float64{1, 2, 3, 4, 9}, 1},
		{"MADMedianEmpty", "mad_median", nil, nan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeBuiltin(t, tt.metric, tt.values)
			if math.IsNaN(tt.want) {
				if !math.IsNaN(got) {
					t.Errorf("Expected NaN for %s, got %v", tt.metric, got)
				}
				return
			}
			if !almostEqual(got, tt.want) {
				t.Errorf("Expected %s = %v, got %v", tt.metric, tt.want, got)
			}
		})
	}
}

// TestZFilteredMeanDiscardsOutliers checks that a value with z-score
// magnitude >= 3 is removed before averaging. Ten zeros and one 100 give the
// outlier a z-score of ~3.16.
func TestZFilteredMeanDiscardsOutliers(t *testing.T) {
	values := make([]float64, 10)
	values = append(values, 100)
	got := computeBuiltin(t, "zfmean", values)
	if !almostEqual(got, 0) {
		t.Errorf("Expected filtered mean 0, got %v", got)
	}

	// The unfiltered mean must differ, otherwise the test proves nothing.
	if mean := computeBuiltin(t, "nanmean", values); almostEqual(mean, 0) {
		t.Fatalf("Test data is degenerate: unfiltered mean is also %v", mean)
	}
}

func TestResolveDefaultsToFullCatalog(t *testing.T) {
	registry := NewRegistry()
	names, reducers, err := registry.Resolve(nil)
	if err != nil {
		t.Fatalf("Failed to resolve defaults: %v", err)
	}
	if len(names) != len(reducers) {
		t.Fatalf("Names and reducers lengths differ: %d vs %d", len(names), len(reducers))
	}

	expected := []string{"nanmean", "nanmedian", "nanstd", "nanmin", "nanmax", "count", "zfmean", "iqrmean", "mad_median"}
	if len(names) != len(expected) {
		t.Fatalf("Expected %d default metrics, got %d", len(expected), len(names))
	}
	for i, name := range expected {
		if names[i] != name {
			t.Errorf("Expected default metric %d to be %q, got %q", i, name, names[i])
		}
	}
}

func TestResolveKeepsRequestedOrder(t *testing.T) {
	registry := NewRegistry()
	names, reducers, err := registry.Resolve([]Spec{ByName("count"), ByName("nanmean")})
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if names[0] != "count" || names[1] != "nanmean" {
		t.Errorf("Expected [count nanmean], got %v", names)
	}
	if got := reducers[0].Compute([]float64{1, 2, 3}); got != 3 {
		t.Errorf("Expected count 3, got %v", got)
	}
}

// TestAliasEquivalence verifies that a legacy alias resolves to the same
// reducer behavior as the canonical name while keeping the requested name.
func TestAliasEquivalence(t *testing.T) {
	registry := NewRegistry()
	values := []float64{1, 2, math.NaN(), 7}

	aliases := map[string]string{
		"mean":           "nanmean",
		"median":         "nanmedian",
		"std":            "nanstd",
		"min":            "nanmin",
		"max":            "nanmax",
		"zfiltered_mean": "zfmean",
		"iqr_mean":       "iqrmean",
	}
	for alias, canonical := range aliases {
		t.Run(alias, func(t *testing.T) {
			aliasNames, aliasReducers, err := registry.Resolve([]Spec{ByName(alias)})
			if err != nil {
				t.Fatalf("Failed to resolve alias %q: %v", alias, err)
			}
			_, canonicalReducers, err := registry.Resolve([]Spec{ByName(canonical)})
			if err != nil {
				t.Fatalf("Failed to resolve %q: %v", canonical, err)
			}

			if aliasNames[0] != alias {
				t.Errorf("Expected requested name %q to be kept, got %q", alias, aliasNames[0])
			}
			got := aliasReducers[0].Compute(values)
			want := canonicalReducers[0].Compute(values)
			if got != want && !(math.IsNaN(got) && math.IsNaN(want)) {
				t.Errorf("Alias %q computed %v, canonical %q computed %v", alias, got, canonical, want)
			}
		})
	}
}

func TestResolveUnknownMetric(t *testing.T) {
	registry := NewRegistry()
	_, _, err := registry.Resolve([]Spec{ByName("not_a_metric")})
	if err == nil {
		t.Fatal("Expected an error for an unknown metric name")
	}
	var unknownErr *UnknownMetricError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("Expected UnknownMetricError, got %T: %v", err, err)
	}
	if unknownErr.Name != "not_a_metric" {
		t.Errorf("Expected error to carry the offending name, got %q", unknownErr.Name)
	}
}

func TestResolveCustomFunctions(t *testing.T) {
	registry := NewRegistry()

	t.Run("NamedFunction", func(t *testing.T) {
		names, reducers, err := registry.Resolve([]Spec{Named("range", rangeMetric)})
		if err != nil {
			t.Fatalf("Failed to resolve named function: %v", err)
		}
		if names[0] != "range" {
			t.Errorf("Expected name 'range', got %q", names[0])
		}
		if got := reducers[0].Compute([]float64{1, 3}); got != 2 {
			t.Errorf("Expected range 2, got %v", got)
		}
	})

	t.Run("BareFunctionUsesIdentifier", func(t *testing.T) {
		names, _, err := registry.Resolve([]Spec{ByFunc(rangeMetric)})
		if err != nil {
			t.Fatalf("Failed to resolve bare function: %v", err)
		}
		if names[0] != "rangeMetric" {
			t.Errorf("Expected derived name 'rangeMetric', got %q", names[0])
		}
	})

	t.Run("AnonymousFunctionFallsBack", func(t *testing.T) {
		names, _, err := registry.Resolve([]Spec{ByFunc(func(values []float64) float64 { return 0 })})
		if err != nil {
			t.Fatalf("Failed to resolve anonymous function: %v", err)
		}
		if names[0] != "metric" {
			t.Errorf("Expected fallback name 'metric', got %q", names[0])
		}
	})
}

func TestCatalogDescriptions(t *testing.T) {
	for _, reducer := range NewRegistry().List() {
		if reducer.Description == "" {
			t.Errorf("Reducer %q has no description", reducer.Name)
		}
	}
}
