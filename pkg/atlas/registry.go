// Package atlas provides the in-memory atlas registry, label lookup-table
// loading, and the stock anatomical mask library.
package atlas

import (
	"sort"

	"brainparc/internal/models"
)

// Resource bundles an atlas definition with the spatial transforms that
// accompany it.
type Resource struct {
	// Definition carries the atlas name, volume path, and metadata
	Definition models.AtlasDefinition

	// Transforms are paths to transform files aligning the atlas
	Transforms []string
}

// Registry is a simple in-memory name-to-resource lookup for the atlases
// available to a run.
type Registry struct {
	atlases map[string]Resource
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{atlases: make(map[string]Resource)}
}

// Register adds or replaces an atlas resource under its definition name.
func (r *Registry) Register(resource Resource) {
	r.atlases[resource.Definition.Name] = resource
}

// Get returns a resource by name.
func (r *Registry) Get(name string) (Resource, bool) {
	resource, ok := r.atlases[name]
	return resource, ok
}

// List returns all registered resources sorted by name, so iteration order
// is deterministic across runs.
func (r *Registry) List() []Resource {
	names := make([]string, 0, len(r.atlases))
	for name := range r.atlases {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Resource, 0, len(names))
	for _, name := range names {
		out = append(out, r.atlases[name])
	}
	return out
}
