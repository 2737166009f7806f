package workflow

import (
	"os"
	"strings"
	"sync"
	"testing"
)

func TestProvenanceRecordsConcurrently(t *testing.T) {
	provenance := NewRunProvenance(nil)
	if provenance.ID == "" {
		t.Fatal("Expected a run ID")
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			provenance.RecordOutput("table.tsv")
			provenance.AddNote("note")
		}()
	}
	wg.Wait()

	if len(provenance.Outputs()) != 20 {
		t.Errorf("Expected 20 outputs, got %d", len(provenance.Outputs()))
	}
	if len(provenance.Notes()) != 20 {
		t.Errorf("Expected 20 notes, got %d", len(provenance.Notes()))
	}
}

func TestProvenanceAccessorsReturnCopies(t *testing.T) {
	provenance := NewRunProvenance(nil)
	provenance.RecordInput("sub-01")

	inputs := provenance.Inputs()
	inputs[0] = "mutated"
	if provenance.Inputs()[0] != "sub-01" {
		t.Error("Accessor exposed internal state")
	}
}

func TestWriteSummary(t *testing.T) {
	provenance := NewRunProvenance(map[string]string{
		"metrics":        "mean,count",
		"resampleTarget": "labels",
	})
	provenance.RecordInput("sub-01")
	provenance.RecordOutput("a.tsv")
	provenance.AddNote("sub-02: no scalar maps discovered")
	provenance.MarkFinished()

	builder := &ReportBuilder{OutputDir: t.TempDir()}
	path, err := builder.WriteSummary(provenance)
	if err != nil {
		t.Fatalf("Failed to write summary: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read summary: %v", err)
	}
	content := string(raw)
	for _, want := range []string{
		"run " + provenance.ID,
		"param metrics = mean,count",
		"param resampleTarget = labels",
		"inputs: 1",
		"outputs: 1",
		"sub-02: no scalar maps discovered",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("Summary missing %q:\n%s", want, content)
		}
	}

	// Parameters are emitted in sorted key order.
	if strings.Index(content, "param metrics") > strings.Index(content, "param resampleTarget") {
		t.Error("Expected parameters sorted by key")
	}
}
