package recipe

import (
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"
)

// Wire representation of a recipe document.
type document struct {
	Metadata  metadataDoc       `json:"metadata"`
	Env       map[string]string `json:"env,omitempty"`
	Configure *Stage            `json:"configure,omitempty"`
	Build     *Stage            `json:"build,omitempty"`
	Install   *Stage            `json:"install,omitempty"`
}

// Wire representation of the metadata section.
type metadataDoc struct {
	Name            string       `json:"name"`
	Version         string       `json:"version"`
	Release         string       `json:"release,omitempty"`
	Description     string       `json:"description,omitempty"`
	License         string       `json:"license,omitempty"`
	Arch            string       `json:"arch,omitempty"`
	Maintainer      string       `json:"maintainer,omitempty"`
	Group           string       `json:"group,omitempty"`
	Source          string       `json:"source,omitempty"`
	Git             *GitSource   `json:"git,omitempty"`
	SkipDefaultDeps bool         `json:"skip_default_deps,omitempty"`
	Exclude         []string     `json:"exclude,omitempty"`
	Images          []Target     `json:"images"`
	BuildDepends    Dependencies `json:"build_depends,omitempty"`
	Depends         Dependencies `json:"depends,omitempty"`
	Conflicts       Dependencies `json:"conflicts,omitempty"`
	Provides        Dependencies `json:"provides,omitempty"`
	Deb             *DebInfo     `json:"deb,omitempty"`
	RPM             *RPMInfo     `json:"rpm,omitempty"`
}

// Reads and validates a recipe file.
//
// The recipe's directory is recorded so that relative sources resolve
// against it.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecipeDocument, err)
	}

	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecipeDocument, err)
	}
	r.Dir = dir
	return r, nil
}

// Decodes and validates a YAML (or JSON) recipe document.
//
// Unknown fields are rejected so that typos do not silently drop steps.
func Parse(data []byte) (*Recipe, error) {
	var doc document
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecipeDocument, err)
	}

	r := &Recipe{
		Metadata: Metadata{
			Name:            doc.Metadata.Name,
			Version:         doc.Metadata.Version,
			Release:         doc.Metadata.Release,
			Description:     doc.Metadata.Description,
			License:         doc.Metadata.License,
			Arch:            doc.Metadata.Arch,
			Maintainer:      doc.Metadata.Maintainer,
			Group:           doc.Metadata.Group,
			Source:          doc.Metadata.Source,
			Git:             doc.Metadata.Git,
			SkipDefaultDeps: doc.Metadata.SkipDefaultDeps,
			Exclude:         doc.Metadata.Exclude,
			BuildDepends:    doc.Metadata.BuildDepends,
			Depends:         doc.Metadata.Depends,
			Conflicts:       doc.Metadata.Conflicts,
			Provides:        doc.Metadata.Provides,
		},
		Targets:   doc.Metadata.Images,
		Env:       doc.Env,
		Configure: doc.Configure,
		Build:     doc.Build,
		Install:   doc.Install,
	}

	if doc.Metadata.Deb != nil {
		r.Metadata.Deb = *doc.Metadata.Deb
	}
	if doc.Metadata.RPM != nil {
		r.Metadata.RPM = *doc.Metadata.RPM
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
