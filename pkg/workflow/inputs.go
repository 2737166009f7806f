package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"brainparc/internal/models"
)

// DiscoverInputs scans a BIDS-derivatives-like tree for the volumes
// parcellation needs. For every requested subject it walks
// sub-<id>[/ses-<id>]/dwi and classifies each NIfTI file by its suffix:
// "_dseg" volumes become atlases, "_mask" volumes become the brain mask, and
// everything else becomes a scalar map. Filename entities (space-, res-,
// seg-, desc-, param-, model-) supply the metadata.
func DiscoverInputs(root string, subjects []string) ([]models.ReconInput, error) {
	var inputs []models.ReconInput
	for _, subject := range subjects {
		subjectDir := filepath.Join(root, "sub-"+subject)
		sessions, err := listSessions(subjectDir)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subject %s: %w", subject, err)
		}

		if len(sessions) == 0 {
			input, err := scanContext(subjectDir, models.SubjectContext{SubjectID: subject})
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, input)
			continue
		}
		for _, session := range sessions {
			context := models.SubjectContext{SubjectID: subject, SessionID: session}
			input, err := scanContext(filepath.Join(subjectDir, "ses-"+session), context)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, input)
		}
	}
	return inputs, nil
}

// listSessions returns session labels found under a subject directory.
func listSessions(subjectDir string) ([]string, error) {
	entries, err := os.ReadDir(subjectDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sessions []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), "ses-") {
			sessions = append(sessions, strings.TrimPrefix(entry.Name(), "ses-"))
		}
	}
	sort.Strings(sessions)
	return sessions, nil
}

// scanContext classifies the NIfTI files of one subject/session directory.
func scanContext(contextDir string, context models.SubjectContext) (models.ReconInput, error) {
	input := models.ReconInput{Context: context}

	dwiDir := filepath.Join(contextDir, "dwi")
	entries, err := os.ReadDir(dwiDir)
	if os.IsNotExist(err) {
		return input, nil
	}
	if err != nil {
		return input, fmt.Errorf("failed to read %s: %w", dwiDir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isNifti(name) {
			continue
		}
		path := filepath.Join(dwiDir, name)
		entities, suffix := parseEntities(name)

		switch suffix {
		case "dseg":
			atlasName := entities["seg"]
			if atlasName == "" {
				atlasName = entities["atlas"]
			}
			if atlasName == "" {
				atlasName = "dseg"
			}
			input.Atlases = append(input.Atlases, models.AtlasDefinition{
				Name:       atlasName,
				NiftiPath:  path,
				LUTPath:    sidecarLUT(path),
				Resolution: entities["res"],
				Space:      entities["space"],
			})
		case "mask":
			input.MaskPath = path
		default:
			mapName := entities["desc"]
			if mapName == "" {
				mapName = entities["param"]
			}
			if mapName == "" {
				mapName = suffix
			}
			input.ScalarMaps = append(input.ScalarMaps, models.ScalarMapDefinition{
				Name:      mapName,
				NiftiPath: path,
				Model:     entities["model"],
				Space:     entities["space"],
			})
		}
	}
	return input, nil
}

// ValidateInputs returns human-readable warnings for missing or inconsistent
// inputs. Warnings do not abort a run; they are recorded in provenance.
func ValidateInputs(inputs []models.ReconInput) []string {
	var warnings []string
	for _, input := range inputs {
		if len(input.ScalarMaps) == 0 {
			warnings = append(warnings, fmt.Sprintf("%s: no scalar maps discovered", input.Context.Label()))
		}
		if input.MaskPath != "" {
			if _, err := os.Stat(input.MaskPath); err != nil {
				warnings = append(warnings, fmt.Sprintf("%s: mask missing at %s", input.Context.Label(), input.MaskPath))
			}
		}
	}
	return warnings
}

func isNifti(name string) bool {
	return strings.HasSuffix(name, ".nii") || strings.HasSuffix(name, ".nii.gz")
}

// parseEntities splits a BIDS-style filename into its key-value entities and
// trailing suffix, e.g. "sub-01_space-ACPC_desc-fa_dwimap.nii.gz" yields
// {sub: 01, space: ACPC, desc: fa} and suffix "dwimap".
func parseEntities(filename string) (map[string]string, string) {
	base := strings.TrimSuffix(strings.TrimSuffix(filename, ".gz"), ".nii")

	entities := make(map[string]string)
	suffix := ""
	parts := strings.Split(base, "_")
	for i, part := range parts {
		key, value, found := strings.Cut(part, "-")
		if !found {
			if i == len(parts)-1 {
				suffix = part
			}
			continue
		}
		entities[key] = value
	}
	return entities, suffix
}

// sidecarLUT returns the path of the TSV lookup table accompanying a dseg
// volume, or empty when none exists.
func sidecarLUT(niftiPath string) string {
	base := strings.TrimSuffix(niftiPath, ".gz")
	base = strings.TrimSuffix(base, ".nii")
	lutPath := base + ".tsv"
	if _, err := os.Stat(lutPath); err != nil {
		return ""
	}
	return lutPath
}
