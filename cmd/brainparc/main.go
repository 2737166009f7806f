package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"brainparc/pkg/config"
	"brainparc/pkg/workflow"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "", "Path to a YAML config file defining a parcellation run")
	inputRoot := flag.String("input", "", "Root directory containing recon derivative outputs")
	outputRoot := flag.String("output", "", "Destination for parcellation tables")
	subjects := flag.String("subjects", "", "Comma-separated subject labels to include")
	atlases := flag.String("atlas", "", "Comma-separated paths to atlas volumes (name derived from filename)")
	metricNames := flag.String("metrics", "", "Comma-separated metric names (default: mean,median)")
	mask := flag.String("mask", "", "Mask to apply before aggregation: gm, wm, csf, or a path")
	resampleTarget := flag.String("resample", "", "Grid to resample on shape mismatch: labels, data, or none")
	numCores := flag.Int("cores", runtime.NumCPU(), "Number of concurrent parcellation jobs (default: all cores)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Command line flags override the config file
	if *inputRoot != "" {
		cfg.Input.Root = *inputRoot
	}
	if *outputRoot != "" {
		cfg.Output.Root = *outputRoot
	}
	if *subjects != "" {
		cfg.Input.Subjects = splitList(*subjects)
	}
	if *metricNames != "" {
		cfg.Parcellation.Metrics = splitList(*metricNames)
	}
	if *mask != "" {
		cfg.Parcellation.Mask = *mask
	}
	if *resampleTarget != "" {
		cfg.Parcellation.ResampleTarget = *resampleTarget
	}
	if *numCores > 0 {
		cfg.Parcellation.NumCores = *numCores
	}
	for _, path := range splitList(*atlases) {
		name := strings.TrimSuffix(strings.TrimSuffix(filepath.Base(path), ".gz"), ".nii")
		cfg.Atlases = append(cfg.Atlases, config.AtlasEntry{Name: name, Path: path})
	}

	if err := cfg.Validate(); err != nil {
		flag.Usage()
		log.Fatalf("Invalid configuration: %v", err)
	}
	if _, err := cfg.EnsureOutputRoot(); err != nil {
		log.Fatalf("Failed to prepare output root: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("BRAINPARC: PER-REGION SUMMARY STATISTICS FOR BRAIN SCALAR MAPS")
	fmt.Println("================================")
	fmt.Printf("Input root:  %s\n", cfg.Input.Root)
	fmt.Printf("Output root: %s\n", cfg.Output.Root)
	fmt.Printf("Subjects:    %s\n", strings.Join(cfg.Input.Subjects, ", "))
	fmt.Printf("Metrics:     %s\n", strings.Join(cfg.Parcellation.Metrics, ", "))

	runner := workflow.NewRunner(&workflow.RunnerParams{Config: cfg})
	if err := runner.PreloadAtlases(); err != nil {
		log.Fatalf("Failed to register atlases: %v", err)
	}

	fmt.Println("Starting parcellation run...")
	startTime := time.Now()
	provenance, err := runner.Run(context.Background())
	if err != nil {
		log.Fatalf("Parcellation run failed: %v", err)
	}
	processingTime := time.Since(startTime)

	fmt.Printf("\nRun %s completed in %.2f seconds\n", provenance.ID, processingTime.Seconds())
	fmt.Printf("Inputs processed: %d\n", len(provenance.Inputs()))
	fmt.Printf("Tables written:   %d\n", len(provenance.Outputs()))
	if notes := provenance.Notes(); len(notes) > 0 {
		fmt.Println("\nWarnings:")
		for _, note := range notes {
			fmt.Printf("- %s\n", note)
		}
	}
	fmt.Printf("\nUsed %d cores for processing\n", cfg.Parcellation.NumCores)
}

// splitList splits a comma-separated flag value, dropping empty entries.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
