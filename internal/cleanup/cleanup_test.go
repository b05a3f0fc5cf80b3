package cleanup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"fsguard/internal/fsops"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkdirs(t *testing.T, root string, rel ...string) string {
	t.Helper()
	p := filepath.Join(append([]string{root}, rel...)...)
	require.NoError(t, os.MkdirAll(p, 0o755))
	return p
}

func TestCleanupRemovesEmptyChainUpToBoundary(t *testing.T) {
	root := t.TempDir()
	start := mkdirs(t, root, "a", "b", "c")

	c := New(nil, zerolog.Nop())
	res := c.Cleanup(start, root)

	assert.Equal(t, []string{
		filepath.Join(root, "a", "b", "c"),
		filepath.Join(root, "a", "b"),
		filepath.Join(root, "a"),
	}, res.Removed)
	assert.Equal(t, []Skip{{Path: root, Reason: SkipBoundary}}, res.Skipped)
	assert.DirExists(t, root)
	assert.NoDirExists(t, filepath.Join(root, "a"))
}

func TestCleanupStopsAtNonEmptyAncestor(t *testing.T) {
	root := t.TempDir()
	start := mkdirs(t, root, "a", "b")
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "keep.txt"), []byte("x"), 0o644))

	res := New(nil, zerolog.Nop()).Cleanup(start, root)

	assert.Equal(t, []string{start}, res.Removed)
	assert.Equal(t, []Skip{{Path: filepath.Join(root, "a"), Reason: SkipNotEmpty}}, res.Skipped)
	assert.FileExists(t, filepath.Join(root, "a", "keep.txt"))
}

func TestCleanupNonEmptyStartRemovesNothing(t *testing.T) {
	root := t.TempDir()
	start := mkdirs(t, root, "a")
	require.NoError(t, os.WriteFile(filepath.Join(start, "f"), nil, 0o644))

	res := New(nil, zerolog.Nop()).Cleanup(start, root)
	assert.Empty(t, res.Removed)
	assert.Equal(t, []Skip{{Path: start, Reason: SkipNotEmpty}}, res.Skipped)
}

func TestCleanupBoundaryNotAncestor(t *testing.T) {
	root := t.TempDir()
	start := mkdirs(t, root, "a")
	other := mkdirs(t, root, "b")

	tests := []struct {
		name     string
		boundary string
	}{
		{"sibling", other},
		{"self", start},
		{"descendant", filepath.Join(start, "x")},
		{"textual prefix", root[:len(root)-1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fsops.Fake{}
			res := New(fake, zerolog.Nop()).Cleanup(start, tt.boundary)
			assert.Empty(t, res.Removed)
			assert.Equal(t, []Skip{{Path: start, Reason: SkipBoundaryNotAncestor}}, res.Skipped)
			assert.Empty(t, fake.Mutations())
		})
	}
}

func TestCleanupMissingStart(t *testing.T) {
	root := t.TempDir()
	res := New(nil, zerolog.Nop()).Cleanup(filepath.Join(root, "gone"), root)
	assert.Empty(t, res.Removed)
	assert.Equal(t, []Skip{{Path: filepath.Join(root, "gone"), Reason: SkipNotFound}}, res.Skipped)
}

func TestCleanupRemoveFailureStops(t *testing.T) {
	root := t.TempDir()
	start := mkdirs(t, root, "a", "b")
	fake := &fsops.Fake{Errs: map[string]error{start: errors.New("device busy")}}

	res := New(fake, zerolog.Nop()).Cleanup(start, root)
	assert.Empty(t, res.Removed)
	assert.Equal(t, []Skip{{Path: start, Reason: "device busy"}}, res.Skipped)
	assert.Equal(t, []string{"rm:" + start}, fake.Mutations())
	assert.DirExists(t, start)
}

func TestCleanupVetoStopsWalk(t *testing.T) {
	root := t.TempDir()
	start := mkdirs(t, root, "a", "b")
	guarded := filepath.Join(root, "a")

	veto := func(dir string) string {
		if dir == guarded {
			return "protected-path"
		}
		return ""
	}
	res := New(nil, zerolog.Nop()).CleanupChecked(start, root, veto)

	assert.Equal(t, []string{start}, res.Removed)
	assert.Equal(t, []Skip{{Path: guarded, Reason: "protected-path"}}, res.Skipped)
	assert.DirExists(t, guarded)
}

func TestMergeDropsSkipsLaterRemoved(t *testing.T) {
	r := Result{
		Removed: []string{"/s/a/x"},
		Skipped: []Skip{{Path: "/s/a", Reason: SkipNotEmpty}},
	}
	r.Merge(Result{
		Removed: []string{"/s/a/y", "/s/a"},
		Skipped: []Skip{{Path: "/s", Reason: SkipBoundary}},
	})
	r.Merge(Result{Skipped: []Skip{{Path: "/s", Reason: SkipBoundary}}})

	assert.Equal(t, []string{"/s/a/x", "/s/a/y", "/s/a"}, r.Removed)
	assert.Equal(t, []Skip{{Path: "/s", Reason: SkipBoundary}}, r.Skipped)
}

func TestDeepestFirst(t *testing.T) {
	got := DeepestFirst([]string{"/s", "/s/a/b", "/s/a", "/s/c"})
	assert.Equal(t, []string{"/s/a/b", "/s/c", "/s/a", "/s"}, got)
}
