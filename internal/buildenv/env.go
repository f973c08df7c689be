package buildenv

import (
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"

	"github.com/cruciblehq/cruxpkg/internal/recipe"
)

// Shell used for steps when the stage declares none.
const DefaultShell = "/bin/sh"

// Reserved environment variables, always set by the builder.
const (
	KeyOS        = "PKGER_OS"         // Target OS family.
	KeyOSVersion = "PKGER_OS_VERSION" // Target OS version.
	KeyBuildDir  = "PKGER_BLD_DIR"    // Per-job build directory.
	KeyOutDir    = "PKGER_OUT_DIR"    // Per-job output directory.
)

// Returns the reserved keys in a stable order.
func ReservedKeys() []string {
	return []string{KeyOS, KeyOSVersion, KeyBuildDir, KeyOutDir}
}

// Reports whether key is reserved.
func IsReserved(key string) bool {
	return slices.Contains(ReservedKeys(), key)
}

// Per-job directories inside the build environment.
type Dirs struct {
	Build string // Scratch directory for configure and build.
	Out   string // Install root, collected into the artifact manifest.
}

// Returns the directories of a job: /tmp/<name>-build-<id> and
// /tmp/<name>-out-<id>.
func NewDirs(recipeName, jobID string) Dirs {
	return Dirs{
		Build: fmt.Sprintf("/tmp/%s-build-%s", recipeName, jobID),
		Out:   fmt.Sprintf("/tmp/%s-out-%s", recipeName, jobID),
	}
}

// Execution context of one stage.
type Context struct {
	Workdir string            // Working directory of every step.
	Shell   string            // Shell invoked as "shell -c cmd".
	Env     map[string]string // Complete environment of every step.
}

// Formats the environment as sorted "key=value" strings.
func (c Context) Environ() []string {
	env := make([]string, 0, len(c.Env))
	for _, k := range slices.Sorted(maps.Keys(c.Env)) {
		env = append(env, k+"="+c.Env[k])
	}
	return env
}

// Resolves the context of a stage for a target.
//
// defaultWorkdir is the backend's working directory, used by the configure
// stage when the recipe declares none. A nil stage resolves like an empty
// one.
func Resolve(r *recipe.Recipe, target recipe.Target, kind recipe.StageKind, dirs Dirs, defaultWorkdir string) Context {
	stage := r.Stage(kind)
	if stage == nil {
		stage = &recipe.Stage{}
	}

	ctx := Context{
		Shell: DefaultShell,
		Env:   Environment(r, target, dirs),
	}
	if stage.Shell != "" {
		ctx.Shell = stage.Shell
	}

	switch kind {
	case recipe.Configure:
		ctx.Workdir = defaultWorkdir
		if stage.WorkingDir != "" {
			ctx.Workdir = expandDirs(stage.WorkingDir, dirs)
		}
	case recipe.Build:
		ctx.Workdir = dirs.Build
	case recipe.Install:
		ctx.Workdir = dirs.Out
	}

	return ctx
}

// Returns the recipe's custom environment with the reserved keys applied
// over it.
func Environment(r *recipe.Recipe, target recipe.Target, dirs Dirs) map[string]string {
	env := r.Environment()
	env[KeyOS] = target.OS.Family
	env[KeyOSVersion] = target.OS.Version
	env[KeyBuildDir] = dirs.Build
	env[KeyOutDir] = dirs.Out
	return env
}

// Substitutes $PKGER_BLD_DIR and $PKGER_OUT_DIR (bare or braced) in a
// declared working directory. Relative results are taken relative to the
// build directory.
func expandDirs(dir string, dirs Dirs) string {
	dir = strings.NewReplacer(
		"${"+KeyBuildDir+"}", dirs.Build,
		"$"+KeyBuildDir, dirs.Build,
		"${"+KeyOutDir+"}", dirs.Out,
		"$"+KeyOutDir, dirs.Out,
	).Replace(dir)

	if !path.IsAbs(dir) {
		dir = path.Join(dirs.Build, dir)
	}
	return path.Clean(dir)
}
