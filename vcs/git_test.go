package vcs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ruteri/trustroot-signer/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGit records commands and answers from a table keyed by the joined args.
type fakeGit struct {
	calls   []string
	outputs map[string]string
	fail    map[string]bool
}

func newFakeGit() *fakeGit {
	return &fakeGit{outputs: map[string]string{}, fail: map[string]bool{}}
}

func (f *fakeGit) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := strings.Join(args, " ")
	f.calls = append(f.calls, cmd)
	if f.fail[cmd] {
		return "", errors.New("exit status 1")
	}
	return f.outputs[cmd], nil
}

func newTestGit(f *fakeGit) *Git {
	return NewGitWithRunner("/repo", f.run, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGitCommands(t *testing.T) {
	ctx := context.Background()
	f := newFakeGit()
	f.outputs["rev-parse --show-toplevel"] = "/repo\n"
	f.outputs["config --get remote.origin.url"] = "git@github.com:org/repo.git\n"
	g := newTestGit(f)

	root, err := g.RepositoryRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/repo", root)

	url, err := g.CurrentRemoteURL(ctx, "origin")
	require.NoError(t, err)
	assert.Equal(t, "git@github.com:org/repo.git", url)

	require.NoError(t, g.StageAndCommit(ctx, []string{"metadata"}, "Signed by @alice"))
	require.NoError(t, g.PushRef(ctx, "origin", "HEAD", "refs/heads/sign/event"))
	require.NoError(t, g.CreateLocalBranch(ctx, "sign/event"))

	assert.Equal(t, []string{
		"rev-parse --show-toplevel",
		"config --get remote.origin.url",
		"add -- metadata",
		"commit --quiet -m Signed by @alice -- metadata",
		"push --progress origin HEAD:refs/heads/sign/event",
		"branch sign/event",
	}, f.calls)
}

func TestGitErrorsWrapErrVCS(t *testing.T) {
	f := newFakeGit()
	f.fail["add -- metadata"] = true
	g := newTestGit(f)

	err := g.StageAndCommit(context.Background(), []string{"metadata"}, "msg")
	assert.ErrorIs(t, err, interfaces.ErrVCS)
	assert.Contains(t, err.Error(), "git add -- metadata")
	assert.Equal(t, []string{"add -- metadata"}, f.calls, "commit must not run after a failed add")
}

func TestStageAndCommitUnstagesOnCommitFailure(t *testing.T) {
	f := newFakeGit()
	f.fail["commit --quiet -m msg -- metadata"] = true
	g := newTestGit(f)

	err := g.StageAndCommit(context.Background(), []string{"metadata"}, "msg")
	assert.ErrorIs(t, err, interfaces.ErrVCS)
	assert.Equal(t, []string{
		"add -- metadata",
		"commit --quiet -m msg -- metadata",
		"reset --quiet -- metadata",
	}, f.calls)

	// A failing reset is reported together with the commit failure
	f = newFakeGit()
	f.fail["commit --quiet -m msg -- metadata"] = true
	f.fail["reset --quiet -- metadata"] = true
	err = newTestGit(f).StageAndCommit(context.Background(), []string{"metadata"}, "msg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "git commit")
	assert.Contains(t, err.Error(), "git reset")
}

func TestWithSigningEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("existing event branch", func(t *testing.T) {
		f := newFakeGit()
		f.outputs["rev-parse --abbrev-ref HEAD"] = "main\n"
		g := newTestGit(f)

		called := false
		err := g.WithSigningEvent(ctx, "origin", "sign/x", func(ctx context.Context) error {
			called = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, called)
		assert.Equal(t, []string{
			"rev-parse --abbrev-ref HEAD",
			"fetch --quiet origin",
			"rev-parse --verify --quiet origin/sign/x^{commit}",
			"checkout --quiet --detach origin/sign/x",
			"checkout --quiet main",
		}, f.calls)
	})

	t.Run("new event from main restores on failure", func(t *testing.T) {
		f := newFakeGit()
		f.outputs["rev-parse --abbrev-ref HEAD"] = "HEAD\n"
		f.outputs["rev-parse HEAD"] = "abc123\n"
		f.fail["rev-parse --verify --quiet origin/sign/new^{commit}"] = true
		g := newTestGit(f)

		failure := errors.New("editor failed")
		err := g.WithSigningEvent(ctx, "origin", "sign/new", func(ctx context.Context) error {
			return failure
		})
		assert.ErrorIs(t, err, failure)
		assert.Contains(t, f.calls, "checkout --quiet --detach origin/main")
		assert.Equal(t, "checkout --quiet abc123", f.calls[len(f.calls)-1])
	})

	t.Run("unpublished repository stays on current tree", func(t *testing.T) {
		f := newFakeGit()
		f.outputs["rev-parse --abbrev-ref HEAD"] = "main\n"
		f.fail["rev-parse --verify --quiet origin/sign/new^{commit}"] = true
		f.fail["rev-parse --verify --quiet origin/main^{commit}"] = true
		g := newTestGit(f)

		require.NoError(t, g.WithSigningEvent(ctx, "origin", "sign/new", func(ctx context.Context) error { return nil }))
		for _, call := range f.calls {
			assert.NotContains(t, call, "checkout")
		}
	})
}

func TestExportTree(t *testing.T) {
	ctx := context.Background()
	f := newFakeGit()
	f.outputs["ls-tree --name-only origin/main metadata/"] = "metadata/root.json\nmetadata/targets.json\n"
	f.outputs["show origin/main:metadata/root.json"] = `{"root": true}`
	f.outputs["show origin/main:metadata/targets.json"] = `{"targets": true}`
	g := newTestGit(f)

	dest := filepath.Join(t.TempDir(), "known-good")
	require.NoError(t, g.ExportTree(ctx, "origin/main", "metadata", dest))

	data, err := os.ReadFile(filepath.Join(dest, "root.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"root": true}`, string(data))
	assert.FileExists(t, filepath.Join(dest, "targets.json"))

	// Missing ref exports nothing
	f.fail["rev-parse --verify --quiet other/main^{commit}"] = true
	empty := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, g.ExportTree(ctx, "other/main", "metadata", empty))
	entries, err := os.ReadDir(empty)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
