package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReportBuilder writes plain-text summaries of a parcellation run.
type ReportBuilder struct {
	// OutputDir is where summary files are written
	OutputDir string
}

// WriteSummary writes a run summary from a provenance record and returns the
// summary file's path.
func (b *ReportBuilder) WriteSummary(provenance *RunProvenance) (string, error) {
	if err := os.MkdirAll(b.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "run %s\n", provenance.ID)
	fmt.Fprintf(&sb, "started:  %s\n", provenance.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if !provenance.FinishedAt.IsZero() {
		fmt.Fprintf(&sb, "finished: %s\n", provenance.FinishedAt.Format("2006-01-02 15:04:05 MST"))
	}
	keys := make([]string, 0, len(provenance.Parameters))
	for key := range provenance.Parameters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&sb, "param %s = %s\n", key, provenance.Parameters[key])
	}
	fmt.Fprintf(&sb, "inputs: %d\n", len(provenance.Inputs()))
	fmt.Fprintf(&sb, "outputs: %d\n", len(provenance.Outputs()))

	notes := provenance.Notes()
	if len(notes) == 0 {
		sb.WriteString("No notes recorded.\n")
	} else {
		sb.WriteString("notes:\n")
		for _, note := range notes {
			fmt.Fprintf(&sb, "  - %s\n", note)
		}
	}

	destination := filepath.Join(b.OutputDir, "summary.txt")
	if err := os.WriteFile(destination, []byte(sb.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write summary: %w", err)
	}
	return destination, nil
}
