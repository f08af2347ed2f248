package outbound

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Template maps an internal template key to the pre-approved template name
// registered with the messaging provider.
type Template struct {
	Name string `yaml:"name"`
}

// Registry resolves internal template keys to provider templates. Keys with
// no entry are a configuration gap, reported by the window policy as a
// structured degradation rather than an error.
type Registry struct {
	templates map[string]Template
}

type registryFile struct {
	Templates map[string]Template `yaml:"templates"`
}

// LoadRegistry reads the template registry from a YAML file. A missing file
// yields an empty registry: every closed-window send then degrades to
// "template not configured", which is observable but not fatal.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Registry{templates: map[string]Template{}}, nil
		}
		return nil, fmt.Errorf("read template registry: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse template registry: %w", err)
	}
	if file.Templates == nil {
		file.Templates = map[string]Template{}
	}

	return &Registry{templates: file.Templates}, nil
}

// NewRegistry builds a registry from an in-memory map. Used by tests and by
// deployments that configure templates through the environment.
func NewRegistry(templates map[string]Template) *Registry {
	if templates == nil {
		templates = map[string]Template{}
	}
	return &Registry{templates: templates}
}

// Resolve looks up the provider template for an internal key.
func (r *Registry) Resolve(key string) (Template, bool) {
	tmpl, ok := r.templates[key]
	return tmpl, ok
}
