// Package vcs drives the git checkout holding the metadata.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/ruteri/trustroot-signer/interfaces"
)

// Runner executes git with args in dir and returns its standard output.
type Runner func(ctx context.Context, dir string, args ...string) (string, error)

// ExecRunner runs the git binary found in PATH.
func ExecRunner(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("%v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Git implements interfaces.VCS.
type Git struct {
	dir string
	run Runner
	log *slog.Logger
}

func NewGit(dir string, log *slog.Logger) *Git {
	return NewGitWithRunner(dir, ExecRunner, log)
}

func NewGitWithRunner(dir string, run Runner, log *slog.Logger) *Git {
	return &Git{
		dir: dir,
		run: run,
		log: log,
	}
}

// git runs a command and returns its trimmed output. Failures wrap ErrVCS.
func (g *Git) git(ctx context.Context, args ...string) (string, error) {
	g.log.Debug("Running git", slog.Any("args", args))

	out, err := g.run(ctx, g.dir, args...)
	if err != nil {
		return "", fmt.Errorf("%w: git %s: %v", interfaces.ErrVCS, strings.Join(args, " "), err)
	}
	return strings.TrimSpace(out), nil
}

func (g *Git) RepositoryRoot(ctx context.Context) (string, error) {
	return g.git(ctx, "rev-parse", "--show-toplevel")
}

func (g *Git) CurrentRemoteURL(ctx context.Context, remote string) (string, error) {
	return g.git(ctx, "config", "--get", fmt.Sprintf("remote.%s.url", remote))
}

func (g *Git) StageAndCommit(ctx context.Context, paths []string, message string) error {
	if _, err := g.git(ctx, append([]string{"add", "--"}, paths...)...); err != nil {
		return err
	}
	if _, err := g.git(ctx, append([]string{"commit", "--quiet", "-m", message, "--"}, paths...)...); err != nil {
		// Leave nothing staged behind a failed commit
		if _, resetErr := g.git(ctx, append([]string{"reset", "--quiet", "--"}, paths...)...); resetErr != nil {
			err = errors.Join(err, resetErr)
		}
		return err
	}
	return nil
}

func (g *Git) PushRef(ctx context.Context, remote, localRef, remoteRef string) error {
	_, err := g.git(ctx, "push", "--progress", remote, fmt.Sprintf("%s:%s", localRef, remoteRef))
	return err
}

func (g *Git) CreateLocalBranch(ctx context.Context, name string) error {
	_, err := g.git(ctx, "branch", name)
	return err
}

// RefExists checks whether ref resolves to a commit.
func (g *Git) RefExists(ctx context.Context, ref string) bool {
	_, err := g.git(ctx, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	return err == nil
}

// ExportTree writes the files of directory dir at ref into dest. A missing
// directory at ref exports nothing.
func (g *Git) ExportTree(ctx context.Context, ref, dir, dest string) error {
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if !g.RefExists(ctx, ref) {
		g.log.Debug("Export ref does not exist", slog.String("ref", ref))
		return nil
	}

	listing, err := g.git(ctx, "ls-tree", "--name-only", ref, dir+"/")
	if err != nil {
		return err
	}

	for _, name := range strings.Split(listing, "\n") {
		if name == "" {
			continue
		}
		content, err := g.run(ctx, g.dir, "show", fmt.Sprintf("%s:%s", ref, name))
		if err != nil {
			return fmt.Errorf("%w: git show %s:%s: %v", interfaces.ErrVCS, ref, name, err)
		}
		target := filepath.Join(dest, path.Base(name))
		if err := os.WriteFile(target, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", target, err)
		}
	}
	return nil
}

// WithSigningEvent fetches remote and checks out the event branch, or the
// main branch of remote when the event does not exist yet, in detached mode.
// The previously checked out ref is restored when fn returns.
func (g *Git) WithSigningEvent(ctx context.Context, remote, event string, fn func(ctx context.Context) error) (err error) {
	previous, err := g.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return err
	}
	if previous == "HEAD" {
		if previous, err = g.git(ctx, "rev-parse", "HEAD"); err != nil {
			return err
		}
	}

	if _, err := g.git(ctx, "fetch", "--quiet", remote); err != nil {
		return err
	}

	start := fmt.Sprintf("%s/%s", remote, event)
	if !g.RefExists(ctx, start) {
		start = KnownGoodRef(remote)
		if !g.RefExists(ctx, start) {
			// Nothing published yet, the event starts from the current tree
			g.log.Info("Starting new signing event on current HEAD", slog.String("event", event))
			return fn(ctx)
		}
		g.log.Info("Starting new signing event", slog.String("event", event), slog.String("base", start))
	}
	if _, err := g.git(ctx, "checkout", "--quiet", "--detach", start); err != nil {
		return err
	}

	defer func() {
		if _, restoreErr := g.git(ctx, "checkout", "--quiet", previous); restoreErr != nil {
			err = errors.Join(err, restoreErr)
		}
	}()

	return fn(ctx)
}

// KnownGoodRef is the ref holding the last published metadata.
func KnownGoodRef(remote string) string {
	return remote + "/main"
}

var _ interfaces.VCS = (*Git)(nil)
