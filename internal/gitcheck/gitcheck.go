// Package gitcheck inspects the working tree an experiment is launched from.
package gitcheck

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

var (
	// ErrNotRepository is returned when dir is not inside a git work tree.
	ErrNotRepository = errors.New("not a git repository")
	// ErrDirtyTree is returned when uncommitted changes are not allowed.
	ErrDirtyTree = errors.New("working tree has uncommitted changes")
)

// State is a snapshot of the repository containing a directory.
type State struct {
	Root   string
	Commit string
	Branch string
	Dirty  bool
	// Changed lists paths with staged or unstaged changes.
	Changed []string
}

// ShortCommit is the abbreviated commit hash.
func (s *State) ShortCommit() string {
	if len(s.Commit) > 12 {
		return s.Commit[:12]
	}
	return s.Commit
}

// Inspect opens the repository containing dir, walking up to find .git.
func Inspect(dir string) (*State, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%w: %s", ErrNotRepository, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", dir, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("reading worktree: %w", err)
	}
	state := &State{Root: wt.Filesystem.Root()}

	head, err := repo.Head()
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// No commits yet.
	case err != nil:
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	default:
		state.Commit = head.Hash().String()
		if head.Name().IsBranch() {
			state.Branch = head.Name().Short()
		}
	}

	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("reading status: %w", err)
	}
	for path, fs := range status {
		if fs.Staging != git.Unmodified || fs.Worktree != git.Unmodified {
			state.Changed = append(state.Changed, path)
		}
	}
	sort.Strings(state.Changed)
	state.Dirty = !status.IsClean()
	return state, nil
}

// RequireClean returns ErrDirtyTree when the state has uncommitted changes.
func (s *State) RequireClean() error {
	if s.Dirty {
		return fmt.Errorf("%w in %s (%d paths)", ErrDirtyTree, s.Root, len(s.Changed))
	}
	return nil
}
