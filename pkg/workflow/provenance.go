package workflow

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunProvenance records what a run consumed and produced. Jobs execute
// concurrently, so the record methods are safe for concurrent use.
type RunProvenance struct {
	// ID uniquely identifies the run
	ID string

	// StartedAt and FinishedAt bracket the run
	StartedAt  time.Time
	FinishedAt time.Time

	// Parameters are the run settings worth reproducing from
	Parameters map[string]string

	mu      sync.Mutex
	inputs  []string
	outputs []string
	notes   []string
}

// NewRunProvenance starts a provenance record for a new run.
func NewRunProvenance(parameters map[string]string) *RunProvenance {
	if parameters == nil {
		parameters = make(map[string]string)
	}
	return &RunProvenance{
		ID:         uuid.NewString(),
		StartedAt:  time.Now().UTC(),
		Parameters: parameters,
	}
}

// MarkFinished stamps the run's end time.
func (p *RunProvenance) MarkFinished() {
	p.FinishedAt = time.Now().UTC()
}

// RecordInput adds an input identifier to the provenance.
func (p *RunProvenance) RecordInput(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputs = append(p.inputs, label)
}

// RecordOutput adds an output path to the provenance.
func (p *RunProvenance) RecordOutput(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outputs = append(p.outputs, path)
}

// AddNote attaches a human-readable note.
func (p *RunProvenance) AddNote(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = append(p.notes, message)
}

// Inputs returns the recorded input identifiers.
func (p *RunProvenance) Inputs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.inputs))
	copy(out, p.inputs)
	return out
}

// Outputs returns the recorded output paths.
func (p *RunProvenance) Outputs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.outputs))
	copy(out, p.outputs)
	return out
}

// Notes returns the attached notes.
func (p *RunProvenance) Notes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.notes))
	copy(out, p.notes)
	return out
}
