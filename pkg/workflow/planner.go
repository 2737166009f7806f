package workflow

import (
	"strings"

	"brainparc/internal/models"
)

// Job pairs one atlas with one scalar map for one subject/session. Jobs are
// independent of each other and safe to execute concurrently.
type Job struct {
	// Atlas is the label volume to parcellate against
	Atlas models.AtlasDefinition

	// Scalar is the value volume to summarize
	Scalar models.ScalarMapDefinition

	// Context identifies the subject/session
	Context models.SubjectContext

	// Space is the anatomical space of the pairing, taken from the
	// scalar map when tagged, the atlas otherwise
	Space string
}

// PlanJobs creates atlas-scalar combinations constrained by anatomical
// space. An atlas and a scalar map pair only when their space tags are
// compatible: matching tags pair, a missing tag on one side pairs when the
// other side's tag is in the allowed set, and when the allowed set is empty
// any compatible tagging pairs.
func PlanJobs(inputs []models.ReconInput, spaces []string) []Job {
	var allowed map[string]bool
	if len(spaces) > 0 {
		allowed = make(map[string]bool, len(spaces))
		for _, s := range spaces {
			allowed[strings.ToLower(s)] = true
		}
	}

	var jobs []Job
	for _, input := range inputs {
		for _, atlasDef := range input.Atlases {
			for _, scalar := range input.ScalarMaps {
				if !spacesCompatible(atlasDef.Space, scalar.Space, allowed) {
					continue
				}
				space := scalar.Space
				if space == "" {
					space = atlasDef.Space
				}
				jobs = append(jobs, Job{
					Atlas:   atlasDef,
					Scalar:  scalar,
					Context: input.Context,
					Space:   space,
				})
			}
		}
	}
	return jobs
}

// spacesCompatible reports whether an atlas space and a scalar space may be
// paired under an allowed space set (nil means unrestricted).
func spacesCompatible(atlasSpace, scalarSpace string, allowed map[string]bool) bool {
	a := strings.ToLower(atlasSpace)
	s := strings.ToLower(scalarSpace)

	if allowed != nil {
		if a != "" && !allowed[a] && s != "" && !allowed[s] {
			return false
		}
	}
	if a != "" && s != "" {
		return a == s
	}
	// One side is untagged: allow the pairing but still respect the
	// allowed set for the tagged side.
	if allowed != nil && (a != "" || s != "") {
		return allowed[a] || allowed[s]
	}
	return true
}
