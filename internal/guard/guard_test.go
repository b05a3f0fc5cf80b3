package guard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"fsguard/internal/cleanup"
	"fsguard/internal/database"
	"fsguard/internal/fsops"
	"fsguard/internal/safety"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRecorder struct {
	mu  sync.Mutex
	ops []database.Operation
	err error
}

func (r *memRecorder) RecordOperation(_ context.Context, op database.Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
	return r.err
}

func (r *memRecorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, op := range r.ops {
		out = append(out, op.Action)
	}
	return out
}

// fixture is an allowed sandbox on the real filesystem
type fixture struct {
	root     string
	policy   *safety.Policy
	recorder *memRecorder
	guard    *Guard
}

func newFixture(t *testing.T, extra safety.Options, opts ...Option) *fixture {
	t.Helper()
	root := t.TempDir()
	extra.AllowedPaths = append([]string{root}, extra.AllowedPaths...)
	extra.Home = "/home/u"
	extra.GOOS = "linux"
	p, err := safety.NewPolicy(extra)
	require.NoError(t, err)

	rec := &memRecorder{}
	opts = append([]Option{WithRecorder(rec), WithLogger(zerolog.Nop())}, opts...)
	return &fixture{root: root, policy: p, recorder: rec, guard: New(Static(p), opts...)}
}

func (f *fixture) path(rel ...string) string {
	return filepath.Join(append([]string{f.root}, rel...)...)
}

func (f *fixture) write(t *testing.T, rel, content string) string {
	t.Helper()
	p := f.path(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (f *fixture) mkdir(t *testing.T, rel string) string {
	t.Helper()
	p := f.path(rel)
	require.NoError(t, os.MkdirAll(p, 0o755))
	return p
}

var allPassed = safety.Checks{Scope: safety.CheckPassed, PathProtection: safety.CheckPassed, NameProtection: safety.CheckPassed}

func TestDeleteFileWithCleanup(t *testing.T) {
	f := newFixture(t, safety.Options{})
	file := f.write(t, "a/b/f.txt", "hello")

	out, err := f.guard.DeleteFile(context.Background(), FileRequest{Path: file, Cleanup: true})
	require.NoError(t, err)

	assert.False(t, out.Rejected)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, allPassed, out.Checks)
	assert.Equal(t, []string{file}, out.Removed)
	assert.Equal(t, int64(5), out.BytesFreed)
	assert.NoFileExists(t, file)

	require.NotNil(t, out.Cleanup)
	assert.Equal(t, []string{f.path("a", "b")}, out.Cleanup.Removed)
	assert.Equal(t, []cleanup.Skip{{Path: f.path("a"), Reason: cleanup.SkipBoundary}}, out.Cleanup.Skipped)
	assert.DirExists(t, f.path("a"))

	assert.Equal(t, []string{database.ActionDelete, database.ActionCleanup}, f.recorder.actions())
	for _, op := range f.recorder.ops {
		assert.Equal(t, out.ID, op.OperationID)
		assert.Equal(t, OpDeleteFile, op.Operation)
	}
}

func TestDeleteFileWithoutCleanupLeavesParent(t *testing.T) {
	f := newFixture(t, safety.Options{})
	file := f.write(t, "a/f.txt", "x")

	out, err := f.guard.DeleteFile(context.Background(), FileRequest{Path: file})
	require.NoError(t, err)
	assert.Nil(t, out.Cleanup)
	assert.DirExists(t, f.path("a"))
}

func TestDeleteFileRejections(t *testing.T) {
	f := newFixture(t, safety.Options{})
	outside := filepath.Join(t.TempDir(), "outside.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))
	secret := f.write(t, "id_rsa", "key")

	tests := []struct {
		name   string
		path   string
		reason safety.Reason
		checks safety.Checks
	}{
		{"outside scope", outside, safety.ReasonOutsideAllowed, safety.Checks{Scope: safety.CheckFailed, PathProtection: safety.CheckPassed, NameProtection: safety.CheckSkipped}},
		{"protected name", secret, safety.ReasonProtectedName, safety.Checks{Scope: safety.CheckPassed, PathProtection: safety.CheckPassed, NameProtection: safety.CheckFailed}},
		{"system path", "/etc", safety.ReasonProtectedPath, safety.Checks{Scope: safety.CheckSkipped, PathProtection: safety.CheckFailed, NameProtection: safety.CheckSkipped}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := f.guard.DeleteFile(context.Background(), FileRequest{Path: tt.path})
			require.NoError(t, err)
			assert.True(t, out.Rejected)
			assert.Equal(t, tt.reason, out.Reason)
			assert.Equal(t, tt.checks, out.Checks)
			assert.NotEmpty(t, out.Detail)
			assert.Empty(t, out.Removed)
			require.Error(t, out.Err())
		})
	}

	assert.FileExists(t, outside)
	assert.FileExists(t, secret)
}

func TestDeleteFileOperationalErrors(t *testing.T) {
	f := newFixture(t, safety.Options{})
	dir := f.mkdir(t, "dir")

	_, err := f.guard.DeleteFile(context.Background(), FileRequest{Path: f.path("missing.txt")})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.guard.DeleteFile(context.Background(), FileRequest{Path: dir})
	assert.ErrorIs(t, err, ErrNotAFile)
	assert.DirExists(t, dir)

	assert.Equal(t, []string{database.ActionError, database.ActionError}, f.recorder.actions())
}

// TestPreviewNeverMutates runs every previewable operation against a
// recording filesystem
func TestPreviewNeverMutates(t *testing.T) {
	fake := &fsops.Fake{}
	f := newFixture(t, safety.Options{}, WithFS(fake))
	file := f.write(t, "src/a.txt", "aaa")
	f.write(t, "src/sub/b.md", "bb")
	ctx := context.Background()

	out, err := f.guard.DeleteFile(ctx, FileRequest{Path: file, Preview: true, Cleanup: true})
	require.NoError(t, err)
	assert.True(t, out.Previewed)
	require.Len(t, out.Preview, 1)
	assert.Equal(t, PreviewItem{Path: file, Kind: KindFile, Size: sizePtr(3)}, out.Preview[0])

	out, err = f.guard.DeleteDirectory(ctx, DirRequest{Path: f.path("src"), Recursive: true, Preview: true})
	require.NoError(t, err)
	assert.False(t, out.Rejected, "preview does not need confirmation")
	assert.Len(t, out.Preview, 4)

	out, err = f.guard.Move(ctx, MoveRequest{Source: file, Destination: f.path("dst.txt"), Preview: true})
	require.NoError(t, err)
	assert.Equal(t, []Move{{From: file, To: f.path("dst.txt")}}, out.Moved)

	out, err = f.guard.Organize(ctx, OrganizeRequest{Source: f.path("src"), Destination: f.path("sorted"), Recursive: true, Preview: true, Cleanup: true})
	require.NoError(t, err)
	assert.Len(t, out.Moved, 2)

	assert.Empty(t, fake.Mutations())
	assert.FileExists(t, file)
	assert.Equal(t, []string{database.ActionPreview, database.ActionPreview, database.ActionPreview, database.ActionPreview}, f.recorder.actions())
}

func TestDirectoryPreviewOrder(t *testing.T) {
	f := newFixture(t, safety.Options{})
	d := f.mkdir(t, "d")
	f.write(t, "d/b.txt", "bb")
	f.write(t, "d/a/x.txt", "x")
	f.mkdir(t, "d/c")

	out, err := f.guard.DeleteDirectory(context.Background(), DirRequest{Path: d, Recursive: true, Preview: true})
	require.NoError(t, err)

	assert.Equal(t, []PreviewItem{
		{Path: d, Kind: KindDirectory},
		{Path: f.path("d", "a"), Kind: KindDirectory},
		{Path: f.path("d", "a", "x.txt"), Kind: KindFile, Size: sizePtr(1)},
		{Path: f.path("d", "b.txt"), Kind: KindFile, Size: sizePtr(2)},
		{Path: f.path("d", "c"), Kind: KindDirectory},
	}, out.Preview)

	out, err = f.guard.DeleteDirectory(context.Background(), DirRequest{Path: d, Preview: true})
	require.NoError(t, err)
	assert.Equal(t, []PreviewItem{{Path: d, Kind: KindDirectory}}, out.Preview)
}

// TestNonRecursiveDeleteOfNonEmptyDirectory checks nothing is removed
func TestNonRecursiveDeleteOfNonEmptyDirectory(t *testing.T) {
	fake := &fsops.Fake{}
	f := newFixture(t, safety.Options{}, WithFS(fake))
	d := f.mkdir(t, "d")
	f.write(t, "d/one", "1")
	f.mkdir(t, "d/two")

	out, err := f.guard.DeleteDirectory(context.Background(), DirRequest{Path: d})
	require.NoError(t, err)
	assert.True(t, out.Rejected)
	assert.Equal(t, ReasonNotEmpty, out.Reason)
	assert.Contains(t, out.Detail, "(2 items)")
	assert.Contains(t, out.Detail, "recursive deletion with confirmation")
	assert.Equal(t, allPassed, out.Checks)
	assert.Empty(t, fake.Mutations())
}

// TestRecursiveWithoutConfirmationRejects holds even though the policy
// approves the path
func TestRecursiveWithoutConfirmationRejects(t *testing.T) {
	fake := &fsops.Fake{}
	f := newFixture(t, safety.Options{}, WithFS(fake))
	d := f.mkdir(t, "d")
	f.write(t, "d/one", "1")

	out, err := f.guard.DeleteDirectory(context.Background(), DirRequest{Path: d, Recursive: true})
	require.NoError(t, err)
	assert.True(t, out.Rejected)
	assert.Equal(t, ReasonRecursiveRequiresConfirmation, out.Reason)
	assert.Equal(t, allPassed, out.Checks)
	assert.Empty(t, fake.Mutations())
	assert.Equal(t, []string{database.ActionReject}, f.recorder.actions())
}

func TestDeleteDirectory(t *testing.T) {
	t.Run("empty non-recursive", func(t *testing.T) {
		f := newFixture(t, safety.Options{})
		d := f.mkdir(t, "empty")

		out, err := f.guard.DeleteDirectory(context.Background(), DirRequest{Path: d})
		require.NoError(t, err)
		assert.False(t, out.Rejected)
		assert.Equal(t, []string{d}, out.Removed)
		assert.NoDirExists(t, d)
	})

	t.Run("recursive confirmed", func(t *testing.T) {
		f := newFixture(t, safety.Options{})
		d := f.mkdir(t, "tree")
		f.write(t, "tree/a", "123")
		f.write(t, "tree/sub/b", "45")

		out, err := f.guard.DeleteDirectory(context.Background(), DirRequest{Path: d, Recursive: true, ConfirmRecursive: true})
		require.NoError(t, err)
		assert.False(t, out.Rejected)
		assert.Equal(t, int64(5), out.BytesFreed)
		assert.NoDirExists(t, d)
	})

	t.Run("not a directory", func(t *testing.T) {
		f := newFixture(t, safety.Options{})
		file := f.write(t, "file", "x")

		_, err := f.guard.DeleteDirectory(context.Background(), DirRequest{Path: file})
		assert.ErrorIs(t, err, ErrNotADirectory)
	})

	t.Run("missing", func(t *testing.T) {
		f := newFixture(t, safety.Options{})
		_, err := f.guard.DeleteDirectory(context.Background(), DirRequest{Path: f.path("nope")})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("parent of protected", func(t *testing.T) {
		f := newFixture(t, safety.Options{})
		keep := f.mkdir(t, "proj/keep")
		p, err := safety.NewPolicy(safety.Options{
			AllowedPaths:             []string{f.root},
			AdditionalProtectedPaths: []string{keep},
			Home:                     "/home/u",
			GOOS:                     "linux",
		})
		require.NoError(t, err)
		g := New(Static(p))

		out, err := g.DeleteDirectory(context.Background(), DirRequest{Path: f.path("proj"), Recursive: true, ConfirmRecursive: true})
		require.NoError(t, err)
		assert.Equal(t, safety.ReasonParentOfProtected, out.Reason)
		assert.DirExists(t, keep)
	})

	t.Run("version control directory", func(t *testing.T) {
		f := newFixture(t, safety.Options{})
		git := f.mkdir(t, "repo/.git")

		out, err := f.guard.DeleteDirectory(context.Background(), DirRequest{Path: git, Recursive: true, ConfirmRecursive: true})
		require.NoError(t, err)
		assert.Equal(t, safety.ReasonProtectedName, out.Reason)
		assert.DirExists(t, git)
	})
}

func TestEmptyAllowListRejectsAllOperations(t *testing.T) {
	p, err := safety.NewPolicy(safety.Options{Home: "/home/u", GOOS: "linux"})
	require.NoError(t, err)
	fake := &fsops.Fake{}
	g := New(Static(p), WithFS(fake))
	dir := t.TempDir()
	ctx := context.Background()

	outs := []func() (*Outcome, error){
		func() (*Outcome, error) { return g.DeleteFile(ctx, FileRequest{Path: filepath.Join(dir, "f")}) },
		func() (*Outcome, error) { return g.DeleteDirectory(ctx, DirRequest{Path: dir}) },
		func() (*Outcome, error) { return g.Move(ctx, MoveRequest{Source: dir, Destination: dir + "2"}) },
		func() (*Outcome, error) { return g.Organize(ctx, OrganizeRequest{Source: dir, Destination: dir + "2"}) },
		func() (*Outcome, error) { return g.Cleanup(ctx, CleanupRequest{Start: dir}) },
	}
	for _, run := range outs {
		out, err := run()
		require.NoError(t, err)
		assert.True(t, out.Rejected)
		assert.Equal(t, safety.ReasonNoAllowedPaths, out.Reason)
		assert.ErrorIs(t, out.Err(), safety.ErrNoAllowedPaths)
	}
	assert.Empty(t, fake.Mutations())
}

func TestPolicyUnavailable(t *testing.T) {
	g := New(PolicyFunc(func() (*safety.Policy, error) {
		return nil, errors.New("bad pattern")
	}))

	_, err := g.DeleteFile(context.Background(), FileRequest{Path: "/srv/x"})
	assert.ErrorContains(t, err, "bad pattern")

	_, err = g.Validate("/srv/x")
	assert.Error(t, err)
}

func TestRecorderFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, safety.Options{})
	f.recorder.err = errors.New("disk full")
	file := f.write(t, "f", "x")

	out, err := f.guard.DeleteFile(context.Background(), FileRequest{Path: file})
	require.NoError(t, err)
	assert.Equal(t, []string{file}, out.Removed)
}

func TestValidate(t *testing.T) {
	f := newFixture(t, safety.Options{})

	res, err := f.guard.Validate(f.path("x"))
	require.NoError(t, err)
	assert.True(t, res.Safe)

	res, err = f.guard.Validate(f.path(".env"))
	require.NoError(t, err)
	assert.Equal(t, safety.ReasonProtectedName, res.Reason)
}

func TestCleanupOperation(t *testing.T) {
	f := newFixture(t, safety.Options{})
	start := f.mkdir(t, "a/b/c")

	out, err := f.guard.Cleanup(context.Background(), CleanupRequest{Start: start, Boundary: f.root})
	require.NoError(t, err)
	assert.Equal(t, []string{start, f.path("a", "b"), f.path("a")}, out.Removed)
	assert.DirExists(t, f.root)

	start = f.mkdir(t, "x/y")
	out, err = f.guard.Cleanup(context.Background(), CleanupRequest{Start: start})
	require.NoError(t, err)
	assert.Equal(t, []string{start}, out.Removed)
	assert.DirExists(t, f.path("x"))
}

// TestCleanupNeverRemovesOutsideScope checks the policy veto stops a walk
// that would leave the allowed scope
func TestCleanupNeverRemovesOutsideScope(t *testing.T) {
	outer := t.TempDir()
	inner := filepath.Join(outer, "allowed")
	start := filepath.Join(inner, "a")
	require.NoError(t, os.MkdirAll(start, 0o755))

	p, err := safety.NewPolicy(safety.Options{AllowedPaths: []string{inner}, Home: "/home/u", GOOS: "linux"})
	require.NoError(t, err)
	g := New(Static(p))

	out, err := g.Cleanup(context.Background(), CleanupRequest{Start: start, Boundary: filepath.Dir(outer)})
	require.NoError(t, err)
	assert.Equal(t, []string{start, inner}, out.Removed)
	assert.Equal(t, []cleanup.Skip{{Path: outer, Reason: string(safety.ReasonOutsideAllowed)}}, out.Cleanup.Skipped)
	assert.DirExists(t, outer)
}

// TestSymlinkedDirectoryCannotEscapeScope links a directory inside the
// allowed root to one outside it and operates through the link
func TestSymlinkedDirectoryCannotEscapeScope(t *testing.T) {
	f := newFixture(t, safety.Options{})
	outside := t.TempDir()
	victim := filepath.Join(outside, "victim.txt")
	require.NoError(t, os.WriteFile(victim, []byte("keep"), 0o644))
	tree := filepath.Join(outside, "tree")
	require.NoError(t, os.MkdirAll(filepath.Join(tree, "sub"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(outside, "empty", "leaf"), 0o755))
	link := f.path("link")
	require.NoError(t, os.Symlink(outside, link))
	ctx := context.Background()

	out, err := f.guard.DeleteFile(ctx, FileRequest{Path: filepath.Join(link, "victim.txt")})
	require.NoError(t, err)
	assert.True(t, out.Rejected)
	assert.Equal(t, safety.ReasonOutsideAllowed, out.Reason)
	assert.FileExists(t, victim)

	out, err = f.guard.DeleteDirectory(ctx, DirRequest{Path: filepath.Join(link, "tree"), Recursive: true, ConfirmRecursive: true})
	require.NoError(t, err)
	assert.True(t, out.Rejected)
	assert.DirExists(t, tree)

	src := f.write(t, "a.txt", "a")
	out, err = f.guard.Move(ctx, MoveRequest{Source: src, Destination: filepath.Join(link, "a.txt")})
	require.NoError(t, err)
	assert.True(t, out.Rejected)
	assert.FileExists(t, src)
	assert.NoFileExists(t, filepath.Join(outside, "a.txt"))

	out, err = f.guard.Cleanup(ctx, CleanupRequest{Start: filepath.Join(link, "empty", "leaf")})
	require.NoError(t, err)
	assert.True(t, out.Rejected)
	assert.DirExists(t, filepath.Join(outside, "empty", "leaf"))

	// removing the link itself stays inside the allowed root
	out, err = f.guard.DeleteFile(ctx, FileRequest{Path: link})
	require.NoError(t, err)
	assert.False(t, out.Rejected)
	assert.NoFileExists(t, link)
	assert.FileExists(t, victim)
}
