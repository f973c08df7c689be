package buildenv

import (
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/cruciblehq/cruxpkg/internal/recipe"
)

func testRecipe() *recipe.Recipe {
	return &recipe.Recipe{
		Metadata: recipe.Metadata{Name: "test-package", Version: "0.1.0"},
		Targets:  []recipe.Target{recipe.NewTarget("centos8"), recipe.NewTarget("debian10")},
		Env: map[string]string{
			"ENV_VAR_TEST": "123",
			KeyOS:          "spoofed",
			KeyBuildDir:    "/nope",
		},
		Configure: &recipe.Stage{WorkingDir: "/var/lib", Steps: []recipe.Step{{Cmd: "true"}}},
		Build:     &recipe.Stage{Shell: "/bin/bash", WorkingDir: "/ignored", Steps: []recipe.Step{{Cmd: "true"}}},
		Install:   &recipe.Stage{WorkingDir: "/ignored", Steps: []recipe.Step{{Cmd: "true"}}},
	}
}

func TestNewDirs(t *testing.T) {
	dirs := NewDirs("test-package", "abc")
	assert.Equal(t, "/tmp/test-package-build-abc", dirs.Build)
	assert.Equal(t, "/tmp/test-package-out-abc", dirs.Out)

	pattern := regexp.MustCompile(`^/tmp/test-package-build-[^/]+$`)
	assert.Regexp(t, pattern, NewDirs("test-package", "0f3e").Build)
	assert.NotEqual(t, NewDirs("p", "1").Build, NewDirs("p", "2").Build)
}

func TestReservedKeysWin(t *testing.T) {
	r := testRecipe()
	target := r.Targets[0]
	dirs := NewDirs(r.Metadata.Name, "j1")

	for _, kind := range recipe.StageKinds() {
		ctx := Resolve(r, target, kind, dirs, "/")
		want := map[string]string{
			"ENV_VAR_TEST": "123",
			KeyOS:          "centos",
			KeyOSVersion:   "8",
			KeyBuildDir:    dirs.Build,
			KeyOutDir:      dirs.Out,
		}
		if diff := cmp.Diff(want, ctx.Env); diff != "" {
			t.Errorf("%s env mismatch (-want +got):\n%s", kind, diff)
		}
	}

	assert.Equal(t, "spoofed", r.Env[KeyOS], "recipe env must not be mutated")
}

func TestWorkdir(t *testing.T) {
	r := testRecipe()
	target := r.Targets[1]
	dirs := NewDirs(r.Metadata.Name, "j2")

	assert.Equal(t, "/var/lib", Resolve(r, target, recipe.Configure, dirs, "/root").Workdir)
	assert.Equal(t, dirs.Build, Resolve(r, target, recipe.Build, dirs, "/root").Workdir)
	assert.Equal(t, dirs.Out, Resolve(r, target, recipe.Install, dirs, "/root").Workdir)

	r.Configure = &recipe.Stage{}
	assert.Equal(t, "/root", Resolve(r, target, recipe.Configure, dirs, "/root").Workdir)

	r.Configure = nil
	assert.Equal(t, "/root", Resolve(r, target, recipe.Configure, dirs, "/root").Workdir)
}

func TestWorkdirExpansion(t *testing.T) {
	dirs := Dirs{Build: "/tmp/p-build-1", Out: "/tmp/p-out-1"}
	tests := []struct {
		in, want string
	}{
		{"$PKGER_BLD_DIR/src", "/tmp/p-build-1/src"},
		{"${PKGER_OUT_DIR}/usr", "/tmp/p-out-1/usr"},
		{"src", "/tmp/p-build-1/src"},
		{"/opt/./x/", "/opt/x"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, expandDirs(tt.in, dirs))
		})
	}
}

func TestShell(t *testing.T) {
	r := testRecipe()
	dirs := NewDirs(r.Metadata.Name, "j3")
	assert.Equal(t, DefaultShell, Resolve(r, r.Targets[0], recipe.Configure, dirs, "/").Shell)
	assert.Equal(t, "/bin/bash", Resolve(r, r.Targets[0], recipe.Build, dirs, "/").Shell)
}

func TestEnviron(t *testing.T) {
	ctx := Context{Env: map[string]string{"B": "2", "A": "x=y"}}
	assert.Equal(t, []string{"A=x=y", "B=2"}, ctx.Environ())
	assert.Empty(t, Context{}.Environ())
}

func TestIsReserved(t *testing.T) {
	assert.True(t, IsReserved("PKGER_OUT_DIR"))
	assert.False(t, IsReserved("PATH"))
}
