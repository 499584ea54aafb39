// Package sourcetree implements the identity contribution of a
// version-controlled source tree: a reproducible hash combining committed
// tree state and uncommitted diff, so both staged and in-flight changes
// perturb the identity of tasks that consume the tree.
package sourcetree

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"

	"github.com/trellixvulnteam/jolt/internal/influence"
	"github.com/trellixvulnteam/jolt/internal/tools"
)

// Provider produces the influence string for repo paths relative to a
// workspace root. One Provider is normally shared by every task that
// declares the same source tree as an influence.
type Provider struct {
	workspaceRoot string
	tools         *tools.Tools
}

// New creates a Provider rooted at workspaceRoot. t mediates the `git diff`
// subprocess invocation; it may be task-scoped or shared, since diffing is
// read-only.
func New(workspaceRoot string, t *tools.Tools) *Provider {
	return &Provider{workspaceRoot: workspaceRoot, tools: t}
}

// Influence returns "<relpath>:<tree_hash>:<diff_hash[:8]>" for the repo at
// workspaceRoot/relpath. If relpath is not a git working copy, both hashes
// are omitted and the empty string is returned: this represents a resource
// task that merely declares a URL+ref and has not cloned yet.
func (p *Provider) Influence(ctx context.Context, relpath string) (string, error) {
	abspath := filepath.Join(p.workspaceRoot, relpath)

	if !isClone(abspath) {
		return "", nil
	}

	treeHash, err := p.treeHash(abspath)
	if err != nil {
		return "", fmt.Errorf("sourcetree: tree hash for %q: %w", relpath, err)
	}

	diffHash, err := p.diffHash(ctx, abspath)
	if err != nil {
		return "", fmt.Errorf("sourcetree: diff hash for %q: %w", relpath, err)
	}

	short := diffHash
	if len(short) > 8 {
		short = short[:8]
	}

	return fmt.Sprintf("%s:%s:%s", relpath, treeHash, short), nil
}

func isClone(path string) bool {
	_, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil
}

// treeHash resolves the tree object hash at HEAD for the repository rooted
// at path. If the first resolution fails for any reason, it fetches once and
// retries once; a second failure is returned as fatal. It mirrors `git rev-parse HEAD:./`.
func (p *Provider) treeHash(path string) (string, error) {
	hash, err := resolveHeadTree(path)
	if err == nil {
		return hash, nil
	}

	repo, openErr := git.PlainOpen(path)
	if openErr != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}
	if fetchErr := repo.Fetch(&git.FetchOptions{}); fetchErr != nil && !errors.Is(fetchErr, git.NoErrAlreadyUpToDate) {
		return "", fmt.Errorf("fetch after miss: %w (original: %v)", fetchErr, err)
	}

	hash, err = resolveHeadTree(path)
	if err != nil {
		return "", fmt.Errorf("tree unresolved after fetch retry: %w", err)
	}
	return hash, nil
}

func resolveHeadTree(path string) (string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", err
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return "", err
	}
	tree, err := commit.Tree()
	if err != nil {
		return "", err
	}
	return tree.Hash.String(), nil
}

// diffHash SHA-1s the textual diff between HEAD and the working copy. It
// shells out through Tools rather than reconstructing patches via go-git's
// object model, matching how the original implementation computed it.
func (p *Provider) diffHash(ctx context.Context, path string) (string, error) {
	scope := p.tools.PushCwd(path)
	defer scope.Release()

	res, err := p.tools.Run(ctx, "git", "diff", "HEAD", "--", ".")
	if err != nil && tools.PrimaryOutput(res) == "" {
		return "", err
	}

	sum := sha1.Sum([]byte(res.Stdout))
	return hex.EncodeToString(sum[:]), nil
}

// Declaration is the influence.Provider a task registers to make a source
// tree at relpath part of its identity. One Declaration is created per
// (Provider, relpath) pair a task depends on.
type Declaration struct {
	provider *Provider
	relpath  string
}

// Declare creates an influence.Provider for the repo at relpath, rooted at
// p's workspace.
func (p *Provider) Declare(relpath string) *Declaration {
	return &Declaration{provider: p, relpath: relpath}
}

// Key implements influence.Provider.
func (d *Declaration) Key() string {
	return "sourcetree:" + d.relpath
}

// Apply implements influence.Provider, writing this source tree's influence
// string for the current HEAD/working-tree state into h. The task argument
// is unused: a source tree's influence is a function of the filesystem, not
// of the task that declared it.
func (d *Declaration) Apply(_ influence.Influenced, h hash.Hash) error {
	s, err := d.provider.Influence(context.Background(), d.relpath)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(h, s)
	return err
}

// ValidateSynced is an optional, off-by-default pre-flight check: it
// confirms a local clone has no unpushed commits and no uncommitted changes
// before a remote build is attempted. The executor never calls this
// automatically; callers opt in explicitly.
func ValidateSynced(ctx context.Context, t *tools.Tools, path string) error {
	if !isClone(path) {
		return nil
	}

	scope := t.PushCwd(path)
	defer scope.Release()

	res, err := t.Run(ctx, "git", "branch", "-r", "--contains", "HEAD")
	if err != nil {
		return fmt.Errorf("sourcetree: determine sync status: %w", err)
	}
	if res.Stdout == "" {
		return fmt.Errorf("sourcetree: local commit found in %q; push before building remotely", path)
	}

	diffRes, err := t.Run(ctx, "git", "diff", "HEAD", "--", ".")
	if err != nil && tools.PrimaryOutput(diffRes) == "" {
		return fmt.Errorf("sourcetree: determine local changes: %w", err)
	}
	if diffRes.Stdout != "" {
		return fmt.Errorf("sourcetree: local changes found in %q; commit and push before building remotely", path)
	}

	return nil
}
