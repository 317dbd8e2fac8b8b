// Package gitrepo inspects the git repository holding a project to find the
// files changed since a given revision.
package gitrepo

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	monoerrors "github.com/alexisbeaulieu97/monorun/pkg/errors"
)

// Repository answers change queries for a project root inside a git work tree.
type Repository struct {
	repo *git.Repository
	root string
	// prefix is the project root relative to the work tree root, slash separated.
	// It is empty when the project sits at the top of the work tree.
	prefix string
}

// Open locates the git repository containing root. It fails with a
// RepositoryError when root is not inside a git work tree.
func Open(root string) (*Repository, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, monoerrors.NewRepositoryError(root, err)
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, monoerrors.NewRepositoryError(abs, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, monoerrors.NewRepositoryError(abs, err)
	}

	prefix, err := relativePrefix(wt.Filesystem.Root(), abs)
	if err != nil {
		return nil, monoerrors.NewRepositoryError(abs, err)
	}

	return &Repository{repo: repo, root: abs, prefix: prefix}, nil
}

// Root returns the absolute project root the repository was opened for.
func (r *Repository) Root() string {
	return r.root
}

// ChangedPaths returns the files that differ between the since revision and
// HEAD, plus uncommitted work tree changes. Paths are relative to the project
// root, slash separated and sorted. Files outside the project root are omitted.
func (r *Repository) ChangedPaths(ctx context.Context, since string) ([]string, error) {
	if strings.TrimSpace(since) == "" {
		return nil, fmt.Errorf("changed paths: empty revision")
	}

	fromTree, err := r.treeAt(plumbing.Revision(since))
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", since, err)
	}
	toTree, err := r.treeAt(plumbing.Revision(plumbing.HEAD))
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	changes, err := fromTree.DiffContext(ctx, toTree)
	if err != nil {
		return nil, fmt.Errorf("diff %s..HEAD: %w", since, err)
	}

	seen := make(map[string]struct{})
	for _, change := range changes {
		for _, name := range []string{change.From.Name, change.To.Name} {
			r.collect(seen, name)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, err
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("work tree status: %w", err)
	}
	for name, fileStatus := range status {
		if fileStatus.Staging == git.Unmodified && fileStatus.Worktree == git.Unmodified {
			continue
		}
		r.collect(seen, name)
		if fileStatus.Extra != "" {
			r.collect(seen, fileStatus.Extra)
		}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (r *Repository) treeAt(rev plumbing.Revision) (*object.Tree, error) {
	hash, err := r.repo.ResolveRevision(rev)
	if err != nil {
		return nil, err
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, err
	}
	return commit.Tree()
}

// collect records a work tree path if it lies under the project root.
func (r *Repository) collect(seen map[string]struct{}, name string) {
	if name == "" {
		return
	}
	name = path.Clean(filepath.ToSlash(name))
	if r.prefix != "" {
		rest, ok := strings.CutPrefix(name, r.prefix+"/")
		if !ok {
			return
		}
		name = rest
	}
	seen[name] = struct{}{}
}

func relativePrefix(worktreeRoot, projectRoot string) (string, error) {
	base, err := filepath.EvalSymlinks(worktreeRoot)
	if err != nil {
		return "", err
	}
	target, err := filepath.EvalSymlinks(projectRoot)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return "", nil
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside the work tree %s", projectRoot, worktreeRoot)
	}
	return filepath.ToSlash(rel), nil
}
