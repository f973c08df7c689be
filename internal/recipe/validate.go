package recipe

import (
	"fmt"
	"slices"
	"strings"
)

// Checks the structural invariants of the recipe.
//
// Every violation found is reported in a single [*ValidationError]; nil is
// returned for a valid recipe.
func (r *Recipe) Validate() error {
	var v []string
	add := func(format string, args ...any) {
		v = append(v, fmt.Sprintf(format, args...))
	}

	switch name := r.Metadata.Name; {
	case name == "":
		add("metadata.name is empty")
	case strings.ContainsAny(name, "/ \t\n"):
		add("metadata.name %q contains a path separator or whitespace", name)
	}
	if r.Metadata.Version == "" {
		add("metadata.version is empty")
	}
	if git := r.Metadata.Git; git != nil {
		if r.Metadata.Source != "" {
			add("metadata.source and metadata.git are mutually exclusive")
		}
		if strings.TrimSpace(git.URL) == "" {
			add("metadata.git.url is empty")
		}
	}

	if len(r.Targets) == 0 {
		add("metadata.images declares no targets")
	}
	seen := make(map[string]bool, len(r.Targets))
	for i, t := range r.Targets {
		switch {
		case t.Image == "":
			add("metadata.images[%d] has an empty name", i)
		case seen[t.Image]:
			add("metadata.images[%d]: duplicate target %q", i, t.Image)
		}
		seen[t.Image] = true
		if !t.Format.Valid() {
			add("metadata.images[%d]: unknown package format %q", i, t.Format)
		}
	}

	for _, kind := range StageKinds() {
		stage := r.Stage(kind)
		if stage == nil {
			continue
		}
		for i, step := range stage.Steps {
			if strings.TrimSpace(step.Cmd) == "" {
				add("%s.steps[%d] has an empty command", kind, i)
			}
			for _, image := range step.Images {
				if !seen[image] {
					add("%s.steps[%d] filters on undeclared image %q", kind, i, image)
				}
			}
		}
	}

	for _, deps := range []struct {
		field string
		deps  Dependencies
	}{
		{"build_depends", r.Metadata.BuildDepends},
		{"depends", r.Metadata.Depends},
		{"conflicts", r.Metadata.Conflicts},
		{"provides", r.Metadata.Provides},
		{"rpm.obsoletes", r.Metadata.RPM.Obsoletes},
	} {
		for _, image := range deps.deps.Images() {
			if !seen[image] {
				add("metadata.%s lists undeclared image %q", deps.field, image)
			}
		}
	}

	if slices.Contains(r.Metadata.Exclude, "") {
		add("metadata.exclude contains an empty pattern")
	}

	if len(v) > 0 {
		return &ValidationError{Violations: v}
	}
	return nil
}
