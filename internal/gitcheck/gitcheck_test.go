package gitcheck

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepo creates a repository with one committed file and returns its root.
func initRepo(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()

	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "presets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "presets", "main.yaml"), []byte("seed: 1\n"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("presets/main.yaml")
	require.NoError(t, err)

	hash, err := wt.Commit("initial presets", &git.CommitOptions{
		Author: &object.Signature{Name: "ops", Email: "ops@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return root, hash.String()
}

func TestInspect(t *testing.T) {
	t.Run("clean tree from a subdirectory", func(t *testing.T) {
		root, commit := initRepo(t)

		state, err := Inspect(filepath.Join(root, "presets"))
		require.NoError(t, err)
		assert.Equal(t, commit, state.Commit)
		assert.Equal(t, commit[:12], state.ShortCommit())
		assert.Equal(t, "master", state.Branch)
		assert.False(t, state.Dirty)
		assert.Empty(t, state.Changed)
		assert.NoError(t, state.RequireClean())
	})

	t.Run("modified file makes the tree dirty", func(t *testing.T) {
		root, _ := initRepo(t)
		require.NoError(t, os.WriteFile(filepath.Join(root, "presets", "main.yaml"), []byte("seed: 2\n"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("wip"), 0o644))

		state, err := Inspect(root)
		require.NoError(t, err)
		assert.True(t, state.Dirty)
		assert.Equal(t, []string{"notes.txt", "presets/main.yaml"}, state.Changed)
		assert.ErrorIs(t, state.RequireClean(), ErrDirtyTree)
	})

	t.Run("repository without commits", func(t *testing.T) {
		root := t.TempDir()
		_, err := git.PlainInit(root, false)
		require.NoError(t, err)

		state, err := Inspect(root)
		require.NoError(t, err)
		assert.Empty(t, state.Commit)
		assert.False(t, state.Dirty)
	})

	t.Run("not a repository", func(t *testing.T) {
		_, err := Inspect(t.TempDir())
		assert.ErrorIs(t, err, ErrNotRepository)
	})
}
