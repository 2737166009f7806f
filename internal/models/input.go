package models

// SubjectContext identifies the subject (and optionally the session) a set of
// derivative files belongs to, following BIDS naming.
type SubjectContext struct {
	// SubjectID is the BIDS subject label without the "sub-" prefix
	SubjectID string

	// SessionID is the BIDS session label without the "ses-" prefix,
	// empty when the dataset has no session level
	SessionID string
}

// Label returns a compact identifier suitable for filenames and log lines,
// e.g. "sub-01" or "sub-01_ses-02".
func (c SubjectContext) Label() string {
	label := "sub-" + c.SubjectID
	if c.SessionID != "" {
		label += "_ses-" + c.SessionID
	}
	return label
}

// AtlasDefinition describes a discrete-label atlas volume available to the
// pipeline.
type AtlasDefinition struct {
	// Name is the atlas identifier used in output filenames
	Name string

	// NiftiPath is the location of the integer-labeled NIfTI volume
	NiftiPath string

	// LUTPath optionally points to a two-column TSV mapping label
	// integers to region names
	LUTPath string

	// Resolution is the BIDS "res-" entity, empty when unspecified
	Resolution string

	// Space is the anatomical space the atlas is aligned to,
	// e.g. "MNI152NLin2009cAsym"
	Space string
}

// ScalarMapDefinition describes a scalar map (e.g. a diffusion-derived metric
// volume) available to the pipeline.
type ScalarMapDefinition struct {
	// Name is the map identifier, typically the BIDS "desc-" entity
	Name string

	// NiftiPath is the location of the floating-point NIfTI volume
	NiftiPath string

	// Model is the reconstruction model that produced the map, if known
	Model string

	// Origin is the software that produced the map, if known
	Origin string

	// Space is the anatomical space the map is aligned to
	Space string
}

// ReconInput collects everything discovered for one subject/session that
// parcellation needs: atlases, scalar maps, and an optional brain mask.
type ReconInput struct {
	// Context identifies the subject/session these files belong to
	Context SubjectContext

	// Atlases are the label volumes usable for this input
	Atlases []AtlasDefinition

	// ScalarMaps are the value volumes to summarize per region
	ScalarMaps []ScalarMapDefinition

	// MaskPath optionally restricts computation to brain voxels
	MaskPath string

	// Transforms are paths to spatial transforms accompanying the input
	Transforms []string
}
