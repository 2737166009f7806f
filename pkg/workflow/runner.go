// Package workflow ties together input discovery, job planning, the
// parcellation engine, provenance, and reporting into a complete run.
package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"brainparc/internal/models"
	"brainparc/pkg/atlas"
	"brainparc/pkg/config"
	"brainparc/pkg/metrics"
	"brainparc/pkg/parcellation"
	"brainparc/pkg/volume"
)

// Runner orchestrates a parcellation run end-to-end: it discovers inputs,
// plans atlas-scalar jobs, executes them concurrently, and writes one TSV
// table per job.
type Runner struct {
	cfg     *config.Config
	engine  *parcellation.Engine
	atlases *atlas.Registry
	verbose bool
}

// RunnerParams configures a Runner. Nil fields get defaults: the default
// configuration, an engine built from it, and an empty atlas registry.
type RunnerParams struct {
	// Config is the run configuration
	Config *config.Config

	// Engine performs the per-job parcellation
	Engine *parcellation.Engine

	// Atlases is the registry of preloaded atlas resources
	Atlases *atlas.Registry
}

// NewRunner creates a runner from the given parameters.
func NewRunner(params *RunnerParams) *Runner {
	if params == nil {
		params = &RunnerParams{}
	}
	if params.Config == nil {
		params.Config = config.DefaultConfig()
	}
	r := &Runner{
		cfg:     params.Config,
		engine:  params.Engine,
		atlases: params.Atlases,
		verbose: params.Config.Output.Verbose,
	}
	if r.engine == nil {
		engineParams := &parcellation.Params{}
		if dir := params.Config.Parcellation.PresetMaskDir; dir != "" {
			engineParams.Presets = atlas.NewMaskLibrary(dir)
		}
		r.engine = parcellation.NewEngine(engineParams)
	}
	if r.atlases == nil {
		r.atlases = atlas.NewRegistry()
	}
	return r
}

// PreloadAtlases registers the explicitly configured atlases (entries with a
// path) so they pair with every subject's scalar maps.
func (r *Runner) PreloadAtlases() error {
	for _, entry := range r.cfg.Atlases {
		if entry.Path == "" {
			continue
		}
		if entry.Name == "" {
			return fmt.Errorf("atlas entries must include a name (path %s)", entry.Path)
		}
		r.atlases.Register(atlas.Resource{
			Definition: models.AtlasDefinition{
				Name:       entry.Name,
				NiftiPath:  entry.Path,
				LUTPath:    entry.LUT,
				Resolution: entry.Resolution,
				Space:      entry.Space,
			},
		})
	}
	return nil
}

// Run executes the full workflow and returns its provenance record. Jobs for
// independent atlas/scalar pairs share no state, so they run concurrently,
// bounded by the configured core count.
func (r *Runner) Run(ctx context.Context) (*RunProvenance, error) {
	provenance := NewRunProvenance(map[string]string{
		"resampleTarget": r.cfg.Parcellation.ResampleTarget,
		"metrics":        strings.Join(r.cfg.Parcellation.Metrics, ","),
		"mask":           r.cfg.Parcellation.Mask,
	})

	inputs, err := DiscoverInputs(r.cfg.Input.Root, r.cfg.Input.Subjects)
	if err != nil {
		return nil, fmt.Errorf("input discovery failed: %w", err)
	}
	for _, warning := range ValidateInputs(inputs) {
		provenance.AddNote(warning)
	}
	for i := range inputs {
		provenance.RecordInput(inputs[i].Context.Label())
		// Registered atlases apply to every subject.
		for _, resource := range r.atlases.List() {
			inputs[i].Atlases = append(inputs[i].Atlases, resource.Definition)
		}
	}

	jobs := PlanJobs(inputs, r.cfg.Parcellation.Spaces)
	if r.verbose {
		fmt.Printf("Planned %d parcellation jobs across %d inputs\n", len(jobs), len(inputs))
	}

	workers := r.cfg.Parcellation.NumCores
	if workers < 1 {
		workers = 1
	}
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for _, job := range jobs {
		job := job
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outputPath, err := r.runJob(job)
			if err != nil {
				return fmt.Errorf("job %s atlas-%s desc-%s: %w", job.Context.Label(), job.Atlas.Name, job.Scalar.Name, err)
			}
			provenance.RecordOutput(outputPath)
			if r.verbose {
				fmt.Printf("Wrote %s\n", outputPath)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	provenance.MarkFinished()
	if r.cfg.Output.WriteReports {
		report := &ReportBuilder{OutputDir: filepath.Join(r.cfg.Output.Root, "reports")}
		if _, err := report.WriteSummary(provenance); err != nil {
			return nil, err
		}
	}
	return provenance, nil
}

// runJob loads one job's volumes, parcellates, and writes the result table.
func (r *Runner) runJob(job Job) (string, error) {
	labelGrid, err := volume.LoadNifti(job.Atlas.NiftiPath)
	if err != nil {
		return "", fmt.Errorf("failed to load atlas volume: %w", err)
	}
	valueGrid, err := volume.LoadNifti(job.Scalar.NiftiPath)
	if err != nil {
		return "", fmt.Errorf("failed to load scalar volume: %w", err)
	}

	var names map[int]string
	if job.Atlas.LUTPath != "" {
		lut, err := atlas.LoadLUT(job.Atlas.LUTPath)
		if err != nil {
			return "", err
		}
		names = lut
	}

	request := &parcellation.Request{
		Labels:  labelGrid,
		Values:  valueGrid,
		Metrics: metricSpecs(r.cfg.Parcellation.Metrics),
		Names:   names,
		Policy:  resamplePolicy(r.cfg.Parcellation.ResampleTarget),
	}
	if r.cfg.Parcellation.Mask != "" {
		request.Mask = parcellation.MaskFromString(r.cfg.Parcellation.Mask)
	}

	table, err := r.engine.Parcellate(request)
	if err != nil {
		return "", err
	}
	return writeTable(r.cfg.Output.Root, job, table)
}

// metricSpecs converts configured metric names into registry specs.
func metricSpecs(names []string) []metrics.Spec {
	specs := make([]metrics.Spec, 0, len(names))
	for _, name := range names {
		specs = append(specs, metrics.ByName(name))
	}
	return specs
}

// resamplePolicy maps the configured token to an engine policy. "none" and
// the empty string both mean fail-on-mismatch.
func resamplePolicy(target string) parcellation.Policy {
	if target == "none" {
		return parcellation.PolicyNone
	}
	return parcellation.Policy(target)
}

// writeTable writes a job's table under the output root using BIDS-style
// naming and returns the file path. Scalar maps live under dwi/ in the recon
// outputs; the parcellation tables keep the same sub/ses/dwi structure.
func writeTable(outputRoot string, job Job, table *parcellation.Table) (string, error) {
	parts := []string{"sub-" + job.Context.SubjectID}
	if job.Context.SessionID != "" {
		parts = append(parts, "ses-"+job.Context.SessionID)
	}
	if job.Space != "" {
		parts = append(parts, "space-"+job.Space)
	}
	if job.Atlas.Resolution != "" {
		parts = append(parts, "res-"+job.Atlas.Resolution)
	}
	parts = append(parts, "atlas-"+job.Atlas.Name, "desc-"+job.Scalar.Name)
	filename := strings.Join(parts, "_") + "_parc.tsv"

	dir := filepath.Join(outputRoot, "sub-"+job.Context.SubjectID)
	if job.Context.SessionID != "" {
		dir = filepath.Join(dir, "ses-"+job.Context.SessionID)
	}
	dir = filepath.Join(dir, "dwi")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()
	if err := table.WriteTSV(f); err != nil {
		return "", fmt.Errorf("failed to write table: %w", err)
	}
	return path, nil
}
