package workflow

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"brainparc/pkg/config"
	"brainparc/pkg/volume"
)

// writeFixtureTree lays out one subject with a labeled atlas, its LUT
// sidecar, and a scalar map on a matching grid.
func writeFixtureTree(t *testing.T, root string) {
	t.Helper()
	dwi := filepath.Join(root, "sub-01", "dwi")
	if err := os.MkdirAll(dwi, 0o755); err != nil {
		t.Fatalf("Failed to create fixture tree: %v", err)
	}

	labels := volume.MustGrid([]float64{1, 1, 2, 2}, 2, 2, 1, nil)
	values := volume.MustGrid([]float64{1, 3, 5, 7}, 2, 2, 1, nil)

	atlasPath := filepath.Join(dwi, "sub-01_space-ACPC_seg-tiny_dseg.nii.gz")
	if err := volume.SaveNifti(atlasPath, labels); err != nil {
		t.Fatalf("Failed to write atlas fixture: %v", err)
	}
	lut := "index\tlabel\n1\tcaudate\n2\tthalamus\n"
	lutPath := strings.TrimSuffix(atlasPath, ".nii.gz") + ".tsv"
	if err := os.WriteFile(lutPath, []byte(lut), 0o644); err != nil {
		t.Fatalf("Failed to write LUT fixture: %v", err)
	}
	scalarPath := filepath.Join(dwi, "sub-01_space-ACPC_desc-fa_dwimap.nii.gz")
	if err := volume.SaveNifti(scalarPath, values); err != nil {
		t.Fatalf("Failed to write scalar fixture: %v", err)
	}
}

func fixtureConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	writeFixtureTree(t, root)

	cfg := config.DefaultConfig()
	cfg.Input.Root = root
	cfg.Input.Subjects = []string{"01"}
	cfg.Output.Root = t.TempDir()
	cfg.Output.Verbose = false
	cfg.Parcellation.Metrics = []string{"mean", "count"}
	cfg.Parcellation.NumCores = 2
	return cfg
}

func TestRunnerEndToEnd(t *testing.T) {
	cfg := fixtureConfig(t)
	runner := NewRunner(&RunnerParams{Config: cfg})

	provenance, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	outputs := provenance.Outputs()
	if len(outputs) != 1 {
		t.Fatalf("Expected 1 output table, got %d: %v", len(outputs), outputs)
	}
	expectedPath := filepath.Join(cfg.Output.Root, "sub-01", "dwi",
		"sub-01_space-ACPC_atlas-tiny_desc-fa_parc.tsv")
	if outputs[0] != expectedPath {
		t.Errorf("Expected output at %s, got %s", expectedPath, outputs[0])
	}

	raw, err := os.ReadFile(outputs[0])
	if err != nil {
		t.Fatalf("Failed to read output table: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header plus 2 rows, got %d lines:\n%s", len(lines), raw)
	}
	if lines[0] != "index\tlabel\tname\tmean\tcount" {
		t.Errorf("Unexpected header: %q", lines[0])
	}
	if lines[1] != "1\t1\tcaudate\t2\t2" {
		t.Errorf("Unexpected first row: %q", lines[1])
	}
	if lines[2] != "2\t2\tthalamus\t6\t2" {
		t.Errorf("Unexpected second row: %q", lines[2])
	}

	if len(provenance.Inputs()) != 1 {
		t.Errorf("Expected 1 recorded input, got %v", provenance.Inputs())
	}
	if provenance.FinishedAt.IsZero() {
		t.Error("Expected the run to be marked finished")
	}

	summary := filepath.Join(cfg.Output.Root, "reports", "summary.txt")
	content, err := os.ReadFile(summary)
	if err != nil {
		t.Fatalf("Expected a run summary at %s: %v", summary, err)
	}
	if !strings.Contains(string(content), "run "+provenance.ID) {
		t.Error("Summary does not reference the run ID")
	}
}

func TestRunnerPreloadedAtlasAppliesToAllSubjects(t *testing.T) {
	cfg := fixtureConfig(t)

	// A preloaded atlas pairs with the discovered scalar map in addition to
	// the discovered atlas.
	extra := filepath.Join(t.TempDir(), "extra_dseg.nii.gz")
	if err := volume.SaveNifti(extra, volume.MustGrid([]float64{1, 1, 1, 1}, 2, 2, 1, nil)); err != nil {
		t.Fatalf("Failed to write extra atlas: %v", err)
	}
	cfg.Atlases = []config.AtlasEntry{{Name: "extra", Path: extra, Space: "ACPC"}}

	runner := NewRunner(&RunnerParams{Config: cfg})
	if err := runner.PreloadAtlases(); err != nil {
		t.Fatalf("Failed to preload atlases: %v", err)
	}
	provenance, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(provenance.Outputs()) != 2 {
		t.Fatalf("Expected 2 output tables, got %v", provenance.Outputs())
	}
}

func TestRunnerPreloadRequiresName(t *testing.T) {
	cfg := fixtureConfig(t)
	cfg.Atlases = []config.AtlasEntry{{Path: "/somewhere.nii.gz"}}
	runner := NewRunner(&RunnerParams{Config: cfg})
	if err := runner.PreloadAtlases(); err == nil {
		t.Error("Expected an error for a pathed atlas entry without a name")
	}
}

func TestRunnerCancelledContext(t *testing.T) {
	cfg := fixtureConfig(t)
	runner := NewRunner(&RunnerParams{Config: cfg})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := runner.Run(ctx); err == nil {
		t.Error("Expected an error from a cancelled context")
	}
}

func TestNewRunnerDefaultsNilParams(t *testing.T) {
	for _, params := range []*RunnerParams{nil, {}} {
		runner := NewRunner(params)
		if runner.cfg == nil || runner.engine == nil || runner.atlases == nil {
			t.Errorf("NewRunner(%+v) left a nil collaborator", params)
		}
	}
}

func TestRunnerUnknownMetricFailsRun(t *testing.T) {
	cfg := fixtureConfig(t)
	cfg.Parcellation.Metrics = []string{"not_a_metric"}
	runner := NewRunner(&RunnerParams{Config: cfg})
	if _, err := runner.Run(context.Background()); err == nil {
		t.Error("Expected the run to fail on an unknown metric")
	}
}
