package atlas

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LUT maps integer atlas labels to human-readable region names. Naming never
// fails: labels absent from the table degrade to their stringified value.
type LUT map[int]string

// Name returns the region name for a label, falling back to the stringified
// label when the table has no entry.
func (l LUT) Name(label int) string {
	if name, ok := l[label]; ok {
		return name
	}
	return strconv.Itoa(label)
}

// LoadLUT reads a tab-separated lookup table with a header row. The "index"
// column holds integer labels and the "label" column holds region names,
// following the TSV sidecar convention of atlas distributions. Extra columns
// are ignored.
func LoadLUT(path string) (LUT, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open LUT file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read LUT header: %w", err)
		}
		return nil, fmt.Errorf("LUT file %s is empty", path)
	}

	indexCol, nameCol := -1, -1
	for i, column := range strings.Split(scanner.Text(), "\t") {
		switch strings.TrimSpace(column) {
		case "index":
			indexCol = i
		case "label":
			nameCol = i
		}
	}
	if indexCol < 0 || nameCol < 0 {
		return nil, fmt.Errorf("LUT file %s must have 'index' and 'label' columns", path)
	}

	lut := make(LUT)
	line := 1
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) <= indexCol || len(fields) <= nameCol {
			return nil, fmt.Errorf("LUT file %s line %d has too few columns", path, line)
		}
		label, err := strconv.Atoi(strings.TrimSpace(fields[indexCol]))
		if err != nil {
			return nil, fmt.Errorf("LUT file %s line %d has non-integer index %q", path, line, fields[indexCol])
		}
		lut[label] = strings.TrimSpace(fields[nameCol])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read LUT file: %w", err)
	}
	return lut, nil
}
