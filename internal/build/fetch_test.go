package build

import (
	"archive/tar"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruciblehq/cruxpkg/internal/backend"
	"github.com/cruciblehq/cruxpkg/internal/backend/mock"
	"github.com/cruciblehq/cruxpkg/internal/recipe"
	"github.com/cruciblehq/cruxpkg/internal/source"
)

// Writes a gzipped source tarball holding pkg-1.0/main.c into dir.
func writeTarball(t *testing.T, dir, name string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()

	zw := gzip.NewWriter(f)
	tw := tar.NewWriter(zw)
	require.NoError(t, tw.WriteHeader(&tar.Header{Typeflag: tar.TypeDir, Name: "pkg-1.0/", Mode: 0o755}))
	require.NoError(t, tw.WriteHeader(&tar.Header{Typeflag: tar.TypeReg, Name: "pkg-1.0/main.c", Mode: 0o644, Size: 4}))
	_, err = tw.Write([]byte("int;"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())
}

func TestSourceUnpackedBeforeConfigure(t *testing.T) {
	dir := t.TempDir()
	writeTarball(t, dir, "pkg-1.0.tar.gz")

	r := newRecipe("centos8", "debian10")
	r.Dir = dir
	r.Metadata.Source = "pkg-1.0.tar.gz"
	r.Configure = steps("test -f $PKGER_BLD_DIR/pkg-1.0/main.c")
	r.Install = steps("touch $PKGER_OUT_DIR/ok")

	b := interpreter()
	report := run(t, b, Options{Recipe: r})
	require.True(t, report.Succeeded(), "%v", report.Err())

	for _, image := range r.Images() {
		var ops []string
		for _, c := range b.Calls() {
			if c.Image == image && (c.Op == mock.OpExtract || c.Op == mock.OpExec) {
				ops = append(ops, c.Op)
			}
		}
		assert.Equal(t, []string{mock.OpExtract, mock.OpExec, mock.OpExec}, ops, image)

		env := execEnv(t, b, image)
		assert.Equal(t, env["PKGER_BLD_DIR"], b.CallsOf(mock.OpExtract, image)[0].Path)
	}
}

func TestSourceFetchFailureIsJobLocal(t *testing.T) {
	r := newRecipe("centos8", "debian10")
	r.Dir = t.TempDir()
	r.Metadata.Source = "missing.tar.gz"
	r.Build = steps("true")

	b := interpreter()
	report := run(t, b, Options{Recipe: r})

	for _, res := range report.Results {
		assert.Equal(t, StateFailed, res.State, res.Target.Image)
		assert.Equal(t, PhaseFailed, res.Phase, res.Target.Image)
		assert.ErrorIs(t, res.Err, source.ErrSourceFetch)
		assert.ErrorIs(t, res.Err, os.ErrNotExist)
	}
	assert.Empty(t, b.CallsOf(mock.OpExec, ""))
	assert.Equal(t, 2, b.Destroyed())
	assert.Equal(t, 0, b.Live())
}

func TestGitSourceCloned(t *testing.T) {
	r := newRecipe("centos8")
	r.Metadata.Git = &recipe.GitSource{URL: "https://example.com/pkg.git", Branch: "v1"}
	r.Build = steps("true")

	b := mock.New()
	var cmds []string
	b.ExecFunc = func(ctx context.Context, env *mock.Env, req backend.ExecRequest) (int, string, error) {
		cmds = append(cmds, req.Command)
		return 0, "", nil
	}

	report := run(t, b, Options{Recipe: r})
	require.True(t, report.Succeeded(), "%v", report.Err())

	require.Len(t, cmds, 2)
	assert.Equal(t, "git clone --depth 1 --branch 'v1' -- 'https://example.com/pkg.git' .", cmds[0])

	clone := b.CallsOf(mock.OpExec, "centos8")[0]
	assert.Equal(t, execEnv(t, b, "centos8")["PKGER_BLD_DIR"], clone.Exec.Workdir)
	assert.Contains(t, b.EnvFor("centos8").Deps(), "git")
}

func TestGitCloneFailure(t *testing.T) {
	r := newRecipe("centos8")
	r.Metadata.Git = &recipe.GitSource{URL: "https://example.com/it's.git"}
	r.Build = steps("true")

	b := mock.New()
	b.ExecFunc = func(ctx context.Context, env *mock.Env, req backend.ExecRequest) (int, string, error) {
		if strings.HasPrefix(req.Command, "git clone") {
			return 128, "fatal: repository not found", nil
		}
		return 0, "", nil
	}

	report := run(t, b, Options{Recipe: r})
	res, _ := report.Result("centos8")
	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, source.ErrSourceFetch)
	assert.Contains(t, res.Err.Error(), "code 128")

	calls := b.CallsOf(mock.OpExec, "centos8")
	require.Len(t, calls, 1)
	assert.Equal(t, `git clone --depth 1 -- 'https://example.com/it'\''s.git' .`, calls[0].Exec.Command)
}
