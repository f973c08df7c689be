package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruciblehq/cruxpkg/internal/artifact"
	"github.com/cruciblehq/cruxpkg/internal/backend"
	"github.com/cruciblehq/cruxpkg/internal/backend/mock"
	"github.com/cruciblehq/cruxpkg/internal/recipe"
)

// Creates a valid recipe for the given images with no stages.
func newRecipe(images ...string) *recipe.Recipe {
	r := &recipe.Recipe{Metadata: recipe.Metadata{Name: "pkg", Version: "1.0.0"}}
	for _, image := range images {
		r.Targets = append(r.Targets, recipe.NewTarget(image))
	}
	return r
}

func steps(cmds ...string) *recipe.Stage {
	s := &recipe.Stage{}
	for _, c := range cmds {
		s.Steps = append(s.Steps, recipe.Step{Cmd: c})
	}
	return s
}

// Creates a mock backend that interprets commands.
func interpreter() *mock.Backend {
	b := mock.New()
	b.ExecFunc = mock.Interpret
	return b
}

func run(t *testing.T, b backend.Backend, opts Options) *Report {
	t.Helper()
	report, err := Run(context.Background(), b, opts)
	require.NoError(t, err)
	require.NotNil(t, report)
	return report
}

// Returns the environment of the first exec call for an image.
func execEnv(t *testing.T, b *mock.Backend, image string) map[string]string {
	t.Helper()
	calls := b.CallsOf(mock.OpExec, image)
	require.NotEmpty(t, calls, "no exec calls for %s", image)
	env := make(map[string]string)
	for _, kv := range calls[0].Exec.Env {
		k, v, _ := strings.Cut(kv, "=")
		env[k] = v
	}
	return env
}

func TestStepFilter(t *testing.T) {
	r := newRecipe("centos8", "debian10")
	r.Install = &recipe.Stage{Steps: []recipe.Step{
		{Cmd: "touch $PKGER_OUT_DIR/all"},
		{Cmd: "touch $PKGER_OUT_DIR/centos", Images: []string{"centos8"}},
		{Cmd: "touch $PKGER_OUT_DIR/debian", Images: []string{"debian10"}},
		{Cmd: "touch $PKGER_OUT_DIR/both", Images: []string{"centos8", "debian10"}},
	}}

	b := interpreter()
	report := run(t, b, Options{Recipe: r})
	require.True(t, report.Succeeded(), "%v", report.Err())

	centos, _ := report.Result("centos8")
	debian, _ := report.Result("debian10")
	assert.Equal(t, []string{"all", "both", "centos"}, centos.Manifest.Paths())
	assert.Equal(t, []string{"all", "both", "debian"}, debian.Manifest.Paths())

	assert.Len(t, b.CallsOf(mock.OpExec, "centos8"), 3)
	assert.Len(t, b.CallsOf(mock.OpExec, "debian10"), 3)
}

func TestReservedKeysOverrideCustomEnv(t *testing.T) {
	r := newRecipe("centos8")
	r.Env = map[string]string{
		"PKGER_OS":      "bogus",
		"PKGER_BLD_DIR": "/wrong",
		"PKGER_OUT_DIR": "/wrong",
		"CUSTOM":        "yes",
	}
	check := "test $PKGER_OS = centos && test $PKGER_OS_VERSION = 8 && test $PKGER_BLD_DIR != /wrong && test $PKGER_OUT_DIR != /wrong && test $CUSTOM = yes"
	r.Configure = steps(check)
	r.Build = steps(check)
	r.Install = steps(check)

	b := interpreter()
	report := run(t, b, Options{Recipe: r})
	require.True(t, report.Succeeded(), "%v", report.Err())

	for _, c := range b.CallsOf(mock.OpExec, "centos8") {
		assert.Contains(t, c.Exec.Env, "PKGER_OS=centos")
		assert.NotContains(t, c.Exec.Env, "PKGER_OS=bogus")
	}
}

func TestStageWorkingDirectories(t *testing.T) {
	t.Run("configure declared", func(t *testing.T) {
		r := newRecipe("centos8")
		r.Configure = &recipe.Stage{WorkingDir: "/var/lib", Steps: []recipe.Step{{Cmd: `test "$PWD" = /var/lib`}}}

		b := interpreter()
		report := run(t, b, Options{Recipe: r})
		require.True(t, report.Succeeded(), "%v", report.Err())
		assert.Equal(t, "/var/lib", b.CallsOf(mock.OpExec, "centos8")[0].Exec.Workdir)
		assert.True(t, b.EnvFor("centos8").Exists("/var/lib"))
	})

	t.Run("configure default", func(t *testing.T) {
		r := newRecipe("centos8")
		r.Configure = steps("true")

		b := interpreter()
		b.Workdir = "/srv/app"
		run(t, b, Options{Recipe: r})
		assert.Equal(t, "/srv/app", b.CallsOf(mock.OpExec, "centos8")[0].Exec.Workdir)
	})

	t.Run("build and install ignore working_dir", func(t *testing.T) {
		r := newRecipe("centos8")
		r.Build = &recipe.Stage{WorkingDir: "/opt", Steps: []recipe.Step{{Cmd: `test "$PWD" = $PKGER_BLD_DIR`}}}
		r.Install = &recipe.Stage{WorkingDir: "/opt", Steps: []recipe.Step{{Cmd: `test "$PWD" = $PKGER_OUT_DIR`}}}

		b := interpreter()
		report := run(t, b, Options{Recipe: r})
		require.True(t, report.Succeeded(), "%v", report.Err())

		env := execEnv(t, b, "centos8")
		calls := b.CallsOf(mock.OpExec, "centos8")
		assert.Equal(t, env["PKGER_BLD_DIR"], calls[0].Exec.Workdir)
		assert.Equal(t, env["PKGER_OUT_DIR"], calls[1].Exec.Workdir)
	})
}

func TestFilteredStageCreatesNoWorkdir(t *testing.T) {
	r := newRecipe("centos8", "debian10")
	r.Configure = &recipe.Stage{
		WorkingDir: "/var/lib/centos-only",
		Steps:      []recipe.Step{{Cmd: "true", Images: []string{"centos8"}}},
	}

	b := interpreter()
	report := run(t, b, Options{Recipe: r})
	require.True(t, report.Succeeded(), "%v", report.Err())

	assert.True(t, b.EnvFor("centos8").Exists("/var/lib/centos-only"))
	assert.False(t, b.EnvFor("debian10").Exists("/var/lib/centos-only"))
	assert.Empty(t, b.CallsOf(mock.OpExec, "debian10"))
}

func TestNonzeroExitHaltsOnlyItsJob(t *testing.T) {
	r := newRecipe("centos8", "debian10")
	r.Build = &recipe.Stage{Steps: []recipe.Step{
		{Cmd: "true"},
		{Cmd: "echo broken && exit 3", Images: []string{"centos8"}},
		{Cmd: "touch $PKGER_BLD_DIR/after"},
	}}
	r.Install = steps("touch $PKGER_OUT_DIR/installed")

	b := interpreter()
	report := run(t, b, Options{Recipe: r})
	assert.False(t, report.Succeeded())

	centos, _ := report.Result("centos8")
	assert.Equal(t, StateFailed, centos.State)
	assert.Equal(t, PhaseFailed, centos.Phase)
	assert.Nil(t, centos.Manifest)
	assert.ErrorIs(t, centos.Err, ErrStepExecution)

	var stepErr *StepError
	require.ErrorAs(t, centos.Err, &stepErr)
	assert.Equal(t, 3, stepErr.ExitCode)
	assert.Equal(t, recipe.Build, stepErr.Stage)
	assert.Equal(t, 1, stepErr.Index)
	assert.Equal(t, "centos8", stepErr.Target)
	assert.Equal(t, "broken", stepErr.Output)
	assert.Len(t, b.CallsOf(mock.OpExec, "centos8"), 2)

	debian, _ := report.Result("debian10")
	assert.Equal(t, StateSucceeded, debian.State)
	assert.Equal(t, []string{"installed"}, debian.Manifest.Paths())

	assert.Equal(t, 2, b.Destroyed())
	assert.Equal(t, 0, b.Live())
}

func TestManifestIsolation(t *testing.T) {
	r := newRecipe("centos8", "debian10")
	r.Build = steps("touch /tmp/shared-$PKGER_OS")
	r.Install = &recipe.Stage{Steps: []recipe.Step{
		{Cmd: "touch $PKGER_OUT_DIR/$PKGER_OS.txt"},
		{Cmd: "test ! -e /tmp/shared-debian", Images: []string{"centos8"}},
		{Cmd: "test ! -e /tmp/shared-centos", Images: []string{"debian10"}},
	}}

	b := interpreter()
	report := run(t, b, Options{Recipe: r})
	require.True(t, report.Succeeded(), "%v", report.Err())

	centos, _ := report.Result("centos8")
	debian, _ := report.Result("debian10")
	assert.Equal(t, []string{"centos.txt"}, centos.Manifest.Paths())
	assert.Equal(t, []string{"debian.txt"}, debian.Manifest.Paths())
	assert.NotEqual(t, b.EnvFor("centos8").ID(), b.EnvFor("debian10").ID())
}

func TestCancellationDestroysEveryEnvironment(t *testing.T) {
	const n = 3
	r := newRecipe("centos8", "debian10", "alpine3")
	r.Build = steps("sleep forever")

	started := make(chan struct{}, n)
	b := mock.New()
	b.ExecFunc = func(ctx context.Context, env *mock.Env, req backend.ExecRequest) (int, string, error) {
		started <- struct{}{}
		<-ctx.Done()
		return 0, "", ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for range n {
			<-started
		}
		cancel()
	}()

	report, err := Run(ctx, b, Options{Recipe: r})
	require.NoError(t, err)

	assert.Equal(t, n, report.Count(StateCancelled))
	for _, res := range report.Results {
		assert.ErrorIs(t, res.Err, ErrCancelled)
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
	assert.Equal(t, n, b.Created())
	assert.Equal(t, n, b.Destroyed())
	assert.Equal(t, 0, b.Live())
	assert.Len(t, b.CallsOf(mock.OpDestroy, ""), n)
}

func TestCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := interpreter()
	// A real runtime fails its health check on a cancelled context.
	b.CheckErr = fmt.Errorf("dial containerd: %w", context.Canceled)

	report, err := Run(ctx, b, Options{Recipe: newRecipe("centos8", "debian10")})
	require.NoError(t, err)

	for _, res := range report.Results {
		assert.Equal(t, StateCancelled, res.State, res.Target.Image)
		assert.ErrorIs(t, res.Err, ErrCancelled)
	}
	assert.Equal(t, 0, b.Created())
}

func TestStageDirPerTarget(t *testing.T) {
	r := newRecipe("rocky:9", "rocky_9")
	r.Install = &recipe.Stage{Steps: []recipe.Step{
		{Cmd: "touch $PKGER_OUT_DIR/file"},
		{Cmd: "exit 1", Images: []string{"rocky_9"}},
	}}

	stage := t.TempDir()
	report := run(t, interpreter(), Options{Recipe: r, StageDir: stage})

	ok, _ := report.Result("rocky:9")
	require.Equal(t, StateSucceeded, ok.State, "%v", ok.Err)
	failed, _ := report.Result("rocky_9")
	require.Equal(t, StateFailed, failed.State)

	assert.FileExists(t, filepath.Join(stage, "rocky%3A9", "file"))
	assert.NoDirExists(t, filepath.Join(stage, "rocky_9"))
}

func TestExecErrorNamesStep(t *testing.T) {
	r := newRecipe("centos8")
	r.Build = steps("true", "make all")

	b := mock.New()
	b.ExecFunc = func(ctx context.Context, env *mock.Env, req backend.ExecRequest) (int, string, error) {
		if req.Command == "make all" {
			return 0, "", errors.New("broken pipe")
		}
		return 0, "", nil
	}

	report := run(t, b, Options{Recipe: r})
	res, _ := report.Result("centos8")
	require.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, backend.ErrExec)
	assert.Contains(t, res.Err.Error(), `centos8: build step 1 ("make all")`)
}

func TestJobTimeout(t *testing.T) {
	r := newRecipe("centos8", "debian10")
	r.Build = &recipe.Stage{Steps: []recipe.Step{{Cmd: "hang", Images: []string{"centos8"}}}}

	b := mock.New()
	b.ExecFunc = func(ctx context.Context, env *mock.Env, req backend.ExecRequest) (int, string, error) {
		<-ctx.Done()
		return 0, "", ctx.Err()
	}

	report := run(t, b, Options{Recipe: r, JobTimeout: 50 * time.Millisecond})

	centos, _ := report.Result("centos8")
	assert.Equal(t, StateFailed, centos.State)
	assert.ErrorIs(t, centos.Err, ErrTimeout)
	assert.Equal(t, PhaseFailed, centos.Phase)

	debian, _ := report.Result("debian10")
	assert.Equal(t, StateSucceeded, debian.State)
	assert.Equal(t, 0, b.Live())
}

func TestCreateFailureIsIsolated(t *testing.T) {
	b := interpreter()
	b.CreateFunc = func(ctx context.Context, req backend.CreateRequest) error {
		if req.Target.Image == "centos8" {
			return errors.New("pull failed")
		}
		return nil
	}

	report := run(t, b, Options{Recipe: newRecipe("centos8", "debian10")})

	centos, _ := report.Result("centos8")
	assert.Equal(t, StateFailed, centos.State)
	assert.ErrorIs(t, centos.Err, backend.ErrEnvironmentSetup)
	assert.Equal(t, PhaseNotStarted, centos.Phase)

	debian, _ := report.Result("debian10")
	assert.Equal(t, StateSucceeded, debian.State)
	assert.Equal(t, 1, b.Created())
	assert.Equal(t, 1, b.Destroyed())
}

func TestFatalErrors(t *testing.T) {
	t.Run("backend unavailable", func(t *testing.T) {
		b := interpreter()
		b.CheckErr = errors.New("connection refused")
		report, err := Run(context.Background(), b, Options{Recipe: newRecipe("centos8")})
		assert.ErrorIs(t, err, backend.ErrRuntimeUnavailable)
		assert.Nil(t, report)
		assert.Empty(t, b.Calls())
	})

	t.Run("invalid recipe", func(t *testing.T) {
		r := newRecipe("centos8")
		r.Metadata.Version = ""
		_, err := Run(context.Background(), interpreter(), Options{Recipe: r})
		assert.ErrorIs(t, err, recipe.ErrRecipeValidation)
	})

	t.Run("missing recipe", func(t *testing.T) {
		_, err := Run(context.Background(), interpreter(), Options{})
		assert.ErrorIs(t, err, recipe.ErrRecipeValidation)
	})

	t.Run("unknown target", func(t *testing.T) {
		b := interpreter()
		_, err := Run(context.Background(), b, Options{Recipe: newRecipe("centos8"), Targets: []string{"centos8", "fedora40"}})
		assert.ErrorIs(t, err, ErrUnknownTarget)
		assert.ErrorContains(t, err, "fedora40")
		assert.Empty(t, b.Calls())
	})
}

func TestTargetSelection(t *testing.T) {
	b := interpreter()
	report := run(t, b, Options{
		Recipe:  newRecipe("centos8", "debian10", "alpine3"),
		Targets: []string{"alpine3", "centos8", "alpine3"},
	})

	var images []string
	for _, res := range report.Results {
		images = append(images, res.Target.Image)
	}
	assert.Equal(t, []string{"alpine3", "centos8"}, images)
	assert.Nil(t, b.EnvFor("debian10"))
}

func TestBuildDirPerJob(t *testing.T) {
	r := newRecipe("centos8", "debian10")
	r.Build = steps("true")

	b := interpreter()
	report := run(t, b, Options{Recipe: r})
	require.True(t, report.Succeeded(), "%v", report.Err())

	pattern := regexp.MustCompile(`^/tmp/pkg-build-[0-9a-f-]{36}$`)
	seen := map[string]bool{}
	for _, res := range report.Results {
		dir := execEnv(t, b, res.Target.Image)["PKGER_BLD_DIR"]
		assert.Regexp(t, pattern, dir)
		assert.Equal(t, "/tmp/pkg-build-"+res.JobID, dir)
		assert.False(t, seen[dir], "duplicate build dir %s", dir)
		seen[dir] = true
	}
}

func TestJobIDGenerator(t *testing.T) {
	var n atomic.Int32
	r := newRecipe("centos8")
	r.Build = steps("true")

	b := interpreter()
	report := run(t, b, Options{Recipe: r, NewJobID: func() string {
		return fmt.Sprintf("job%d", n.Add(1))
	}})

	res, _ := report.Result("centos8")
	assert.Equal(t, "job1", res.JobID)
	env := execEnv(t, b, "centos8")
	assert.Equal(t, "/tmp/pkg-build-job1", env["PKGER_BLD_DIR"])
	assert.Equal(t, "/tmp/pkg-out-job1", env["PKGER_OUT_DIR"])
	assert.Equal(t, "pkg-centos8-job1", b.EnvFor("centos8").ID())
}

func TestPanicBecomesInternalError(t *testing.T) {
	r := newRecipe("centos8", "debian10")
	r.Build = steps("boom")

	b := mock.New()
	b.ExecFunc = func(ctx context.Context, env *mock.Env, req backend.ExecRequest) (int, string, error) {
		if env.Target().Image == "centos8" {
			panic("backend bug")
		}
		return 0, "", nil
	}

	report := run(t, b, Options{Recipe: r})

	centos, _ := report.Result("centos8")
	assert.Equal(t, StateFailed, centos.State)
	assert.ErrorIs(t, centos.Err, ErrInternal)
	assert.ErrorContains(t, centos.Err, "backend bug")

	debian, _ := report.Result("debian10")
	assert.Equal(t, StateSucceeded, debian.State)
	assert.Equal(t, 2, b.Destroyed())
	assert.Equal(t, 0, b.Live())
}

func TestParallelismLimit(t *testing.T) {
	r := newRecipe("centos8", "debian10", "alpine3", "fedora40")
	r.Build = steps("work")

	var active, peak atomic.Int32
	b := mock.New()
	b.ExecFunc = func(ctx context.Context, env *mock.Env, req backend.ExecRequest) (int, string, error) {
		now := active.Add(1)
		defer active.Add(-1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return 0, "", nil
	}

	report := run(t, b, Options{Recipe: r, Parallelism: 2})
	assert.True(t, report.Succeeded())
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPhaseObserver(t *testing.T) {
	r := newRecipe("centos8", "debian10")
	r.Build = &recipe.Stage{Steps: []recipe.Step{{Cmd: "false", Images: []string{"debian10"}}}}

	var mu sync.Mutex
	phases := map[string][]Phase{}

	report := run(t, interpreter(), Options{Recipe: r, OnPhase: func(target string, phase Phase) {
		mu.Lock()
		defer mu.Unlock()
		phases[target] = append(phases[target], phase)
	}})
	assert.Equal(t, 1, report.Count(StateFailed))

	want := map[string][]Phase{
		"centos8":  {PhaseConfigure, PhaseBuild, PhaseInstall, PhaseSucceeded},
		"debian10": {PhaseConfigure, PhaseBuild, PhaseFailed},
	}
	if diff := cmp.Diff(want, phases); diff != "" {
		t.Fatalf("phases mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildDependencies(t *testing.T) {
	r := newRecipe("centos8", "debian10")
	r.Metadata.BuildDepends = recipe.Dependencies{
		All:      []string{"gcc"},
		PerImage: map[string][]string{"centos8": {"make", "gcc"}},
	}

	b := interpreter()
	run(t, b, Options{Recipe: r})
	assert.Equal(t, []string{"gcc", "gzip", "make", "rpm-build", "tar"}, b.EnvFor("centos8").Deps())
	assert.Equal(t, []string{"dpkg-dev", "gcc", "gzip", "tar"}, b.EnvFor("debian10").Deps())

	r.Metadata.SkipDefaultDeps = true
	b = interpreter()
	run(t, b, Options{Recipe: r})
	assert.Equal(t, []string{"gcc", "make"}, b.EnvFor("centos8").Deps())
	assert.Equal(t, []string{"gcc"}, b.EnvFor("debian10").Deps())
}

func TestExcludeAndStaging(t *testing.T) {
	r := newRecipe("centos8")
	r.Metadata.Exclude = []string{"share/doc", "*.la"}
	r.Install = steps(
		"mkdir -p usr/bin share/doc lib",
		"touch usr/bin/tool share/doc/README lib/libx.la lib/libx.so",
	)

	stage := t.TempDir()
	report := run(t, interpreter(), Options{Recipe: r, StageDir: stage})
	require.True(t, report.Succeeded(), "%v", report.Err())

	res, _ := report.Result("centos8")
	assert.Equal(t, []string{"lib", "lib/libx.so", "share", "usr", "usr/bin", "usr/bin/tool"}, res.Manifest.Paths())

	_, err := os.Stat(filepath.Join(stage, "centos8", "usr", "bin", "tool"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(stage, "centos8", "share", "doc"))
	assert.True(t, os.IsNotExist(err))
}

type recordingWriter struct {
	mu      sync.Mutex
	written map[string]*artifact.Manifest
	fail    string
}

func (w *recordingWriter) Write(ctx context.Context, t recipe.Target, m *artifact.Manifest, meta recipe.Metadata) error {
	if t.Image == w.fail {
		return errors.New("disk full")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.written == nil {
		w.written = map[string]*artifact.Manifest{}
	}
	w.written[t.Image] = m
	return nil
}

func TestPackageWriterHandoff(t *testing.T) {
	r := newRecipe("centos8", "debian10")
	r.Install = steps("touch $PKGER_OUT_DIR/file")

	stage := t.TempDir()
	w := &recordingWriter{fail: "debian10"}
	report := run(t, interpreter(), Options{Recipe: r, Writer: w, StageDir: stage})

	centos, _ := report.Result("centos8")
	assert.Equal(t, StateSucceeded, centos.State)
	assert.Same(t, centos.Manifest, w.written["centos8"])

	debian, _ := report.Result("debian10")
	assert.Equal(t, StateFailed, debian.State)
	assert.ErrorIs(t, debian.Err, ErrPackageWrite)
	assert.NotContains(t, w.written, "debian10")

	_, err := os.Stat(filepath.Join(stage, "debian10"))
	assert.True(t, os.IsNotExist(err), "staging directory of failed job not removed")
	_, err = os.Stat(filepath.Join(stage, "centos8", "file"))
	assert.NoError(t, err)
}

func TestStreamedOutput(t *testing.T) {
	r := newRecipe("centos8", "debian10")
	r.Build = steps("echo hello $PKGER_OS")

	var out strings.Builder
	report := run(t, interpreter(), Options{Recipe: r, Stream: &out})
	require.True(t, report.Succeeded())

	assert.Contains(t, out.String(), "[centos8] hello centos\n")
	assert.Contains(t, out.String(), "[debian10] hello debian\n")
}

func TestReportErr(t *testing.T) {
	r := newRecipe("centos8", "debian10")
	r.Build = steps("false")

	report := run(t, interpreter(), Options{Recipe: r})
	assert.Len(t, report.Failed(), 2)

	err := report.Err()
	assert.ErrorIs(t, err, ErrStepExecution)
	assert.ErrorContains(t, err, "centos8")
	assert.ErrorContains(t, err, "debian10")

	ok := run(t, interpreter(), Options{Recipe: newRecipe("centos8")})
	assert.NoError(t, ok.Err())
	assert.True(t, ok.Succeeded())
}

func TestEndToEndSampleRecipe(t *testing.T) {
	const doc = `
metadata:
  name: test-package
  version: 0.1.0
  images: [centos8, debian10]
env:
  ENV_VAR_TEST: "123"
configure:
  working_dir: /var/lib
  steps:
    - cmd: test "$PWD" = /var/lib
    - cmd: test "$ENV_VAR_TEST" = 123
build:
  steps:
    - cmd: touch /tmp/marker
      images: [centos8]
    - cmd: test ! -e /tmp/marker
      images: [debian10]
    - cmd: touch $PKGER_BLD_DIR/shared
      images: [centos8, debian10]
    - cmd: test -f $PKGER_BLD_DIR/shared
      images: [centos8, debian10]
install:
  steps:
    - cmd: mkdir -p usr/share/test-package && touch usr/share/test-package/$PKGER_OS
`
	r, err := recipe.Parse([]byte(doc))
	require.NoError(t, err)

	b := interpreter()
	report := run(t, b, Options{Recipe: r})
	require.True(t, report.Succeeded(), "%v", report.Err())

	for _, res := range report.Results {
		want := []string{"usr", "usr/share", "usr/share/test-package", "usr/share/test-package/" + res.Target.OS.Family}
		assert.Equal(t, want, res.Manifest.Paths())
	}
	assert.True(t, b.EnvFor("centos8").Exists("/tmp/marker"))
	assert.False(t, b.EnvFor("debian10").Exists("/tmp/marker"))
	assert.Equal(t, 0, b.Live())
}
