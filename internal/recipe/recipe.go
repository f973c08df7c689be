package recipe

import (
	"maps"
	"slices"
)

// Identifies one of the three script stages.
type StageKind int

const (
	Configure StageKind = iota
	Build
	Install
)

// Returns the lowercase stage name as used in recipe documents.
func (k StageKind) String() string {
	switch k {
	case Configure:
		return "configure"
	case Build:
		return "build"
	case Install:
		return "install"
	default:
		return "unknown"
	}
}

// Returns the stage kinds in execution order.
//
// The order is fixed; recipe content cannot change it.
func StageKinds() []StageKind {
	return []StageKind{Configure, Build, Install}
}

// Describes a package build.
//
// Fields are read-only once the recipe has been validated.
type Recipe struct {
	Metadata  Metadata          // Package metadata.
	Targets   []Target          // Target images, unique by Image.
	Env       map[string]string // Custom environment variables for every step.
	Configure *Stage            // Optional configure stage.
	Build     *Stage            // Optional build stage.
	Install   *Stage            // Optional install stage.
	Dir       string            // Directory of the recipe file, set by [Load].
}

// Package metadata.
type Metadata struct {
	Name            string       // Package name.
	Version         string       // Package version.
	Release         string       // Package release, see [Metadata.RPMRelease].
	Description     string       // Short description.
	License         string       // License identifier.
	Arch            string       // Architecture; empty means architecture independent.
	Maintainer      string       // Maintainer contact.
	Group           string       // Section for Debian, group for RPM.
	Source          string       // URL or path of a tarball or directory unpacked into the build directory.
	Git             *GitSource   // Repository cloned into the build directory.
	SkipDefaultDeps bool         // Whether the format's default build dependencies are skipped.
	Exclude         []string     // Paths or patterns removed from collected artifacts.
	BuildDepends    Dependencies // Installed in the build environment before the stages run.
	Depends         Dependencies // Runtime dependencies, passed to the package writer.
	Conflicts       Dependencies // Conflicting packages, passed to the package writer.
	Provides        Dependencies // Provided virtual packages, passed to the package writer.
	Deb             DebInfo      // Debian only fields.
	RPM             RPMInfo      // RPM only fields.
}

// An ordered list of steps with optional stage-level overrides.
type Stage struct {
	WorkingDir string `json:"working_dir,omitempty"` // Working directory, honored for the configure stage only.
	Shell      string `json:"shell,omitempty"`       // Shell used to run every step of the stage.
	Steps      []Step `json:"steps"`                 // Steps in execution order.
}

// Reports whether the stage has nothing to run. A nil stage is empty.
func (s *Stage) Empty() bool {
	return s == nil || len(s.Steps) == 0
}

// A single shell command.
type Step struct {
	Cmd    string   `json:"cmd"`              // Command passed to "shell -c".
	Images []string `json:"images,omitempty"` // Target images the step runs on; empty means all.
}

// Reports whether the step runs for the given target image.
func (s Step) RunsOn(image string) bool {
	return len(s.Images) == 0 || slices.Contains(s.Images, image)
}

// Returns the stage of the given kind, or nil when the recipe omits it.
func (r *Recipe) Stage(kind StageKind) *Stage {
	switch kind {
	case Configure:
		return r.Configure
	case Build:
		return r.Build
	case Install:
		return r.Install
	}
	return nil
}

// Looks up a target by image identifier.
func (r *Recipe) Target(image string) (Target, bool) {
	for _, t := range r.Targets {
		if t.Image == image {
			return t, true
		}
	}
	return Target{}, false
}

// Returns the image identifiers of all targets in declaration order.
func (r *Recipe) Images() []string {
	images := make([]string, len(r.Targets))
	for i, t := range r.Targets {
		images[i] = t.Image
	}
	return images
}

// Returns a copy of the custom environment.
func (r *Recipe) Environment() map[string]string {
	env := make(map[string]string, len(r.Env))
	maps.Copy(env, r.Env)
	return env
}
