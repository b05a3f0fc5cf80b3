package scan

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"fsguard/internal/safety"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestHashDeterministic(t *testing.T) {
	a := HashBytes([]byte("hello world"))
	assert.Equal(t, a, HashBytes([]byte("hello world")))
	assert.NotEqual(t, a, HashBytes([]byte("hello world!")))
	assert.Len(t, a, 16)
	assert.Equal(t, "ef46db3751d8e999", HashBytes(nil))

	p := writeFile(t, t.TempDir(), "f.txt", "hello world")
	got, err := HashFile(p)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	_, err = HashFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

// TestIdenticalAndDistinctFiles checks N identical files form exactly one
// group and M distinct ones are excluded
func TestIdenticalAndDistinctFiles(t *testing.T) {
	root := t.TempDir()
	var dupes []string
	for _, name := range []string{"a.txt", "b.txt", "sub/c.txt", "sub/deep/d.txt"} {
		dupes = append(dupes, writeFile(t, root, name, "same content"))
	}
	writeFile(t, root, "x.txt", "other content")
	writeFile(t, root, "sub/y.txt", "same-content")
	writeFile(t, root, "z.txt", "unique size here")

	report, err := NewScanner(zerolog.Nop()).FindDuplicates(context.Background(), root, Options{Recursive: true})
	require.NoError(t, err)

	require.Len(t, report.Groups, 1)
	g := report.Groups[0]
	assert.Equal(t, HashBytes([]byte("same content")), g.Digest)
	assert.Equal(t, int64(len("same content")), g.Size)
	assert.ElementsMatch(t, dupes, g.Paths)
	assert.IsNonDecreasing(t, g.Paths)
	assert.Equal(t, 7, report.FilesScanned)
	assert.Equal(t, int64(3*len("same content")), report.WastedBytes)
	assert.Zero(t, report.Skipped)
}

func TestNonRecursiveIgnoresSubdirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "dup")
	writeFile(t, root, "sub/b.txt", "dup")

	report, err := NewScanner(zerolog.Nop()).FindDuplicates(context.Background(), root, Options{})
	require.NoError(t, err)
	assert.Empty(t, report.Groups)
	assert.Equal(t, 1, report.FilesScanned)
}

func TestGroupsOrderedBySizeThenDigest(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "s1", "ab")
	writeFile(t, root, "s2", "ab")
	writeFile(t, root, "l1", "abcdef")
	writeFile(t, root, "l2", "abcdef")
	writeFile(t, root, "m1", "xy")
	writeFile(t, root, "m2", "xy")

	report, err := NewScanner(zerolog.Nop()).FindDuplicates(context.Background(), root, Options{})
	require.NoError(t, err)
	require.Len(t, report.Groups, 3)
	assert.Equal(t, int64(6), report.Groups[0].Size)
	assert.Equal(t, int64(2), report.Groups[1].Size)
	assert.Equal(t, int64(2), report.Groups[2].Size)
	assert.Less(t, report.Groups[1].Digest, report.Groups[2].Digest)
}

func TestFilters(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.jpg", "photo")
	writeFile(t, root, "b.jpg", "photo")
	writeFile(t, root, "c.txt", "photo")
	writeFile(t, root, "cache/d.jpg", "photo")
	writeFile(t, root, "tiny1.jpg", "x")
	writeFile(t, root, "tiny2.jpg", "x")

	report, err := NewScanner(zerolog.Nop()).FindDuplicates(context.Background(), root, Options{
		Recursive: true,
		MinSize:   2,
		Include:   []string{"*.jpg"},
		Exclude:   []string{"cache"},
	})
	require.NoError(t, err)
	require.Len(t, report.Groups, 1)
	assert.Equal(t, []string{filepath.Join(root, "a.jpg"), filepath.Join(root, "b.jpg")}, report.Groups[0].Paths)
}

func TestBadPatternFails(t *testing.T) {
	_, err := NewScanner(zerolog.Nop()).FindDuplicates(context.Background(), t.TempDir(), Options{Include: []string{"["}})
	assert.Error(t, err)
}

func TestRootMustBeDirectory(t *testing.T) {
	root := t.TempDir()
	file := writeFile(t, root, "f", "x")

	_, err := NewScanner(zerolog.Nop()).FindDuplicates(context.Background(), file, Options{})
	assert.ErrorIs(t, err, ErrNotDirectory)

	_, err = NewScanner(zerolog.Nop()).FindDuplicates(context.Background(), filepath.Join(root, "missing"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUnreadableFileIsSkipped(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	root := t.TempDir()
	writeFile(t, root, "a", "dup")
	writeFile(t, root, "b", "dup")
	locked := writeFile(t, root, "c", "dup")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { os.Chmod(locked, 0o644) })

	report, err := NewScanner(zerolog.Nop()).FindDuplicates(context.Background(), root, Options{})
	require.NoError(t, err)
	require.Len(t, report.Groups, 1)
	assert.Len(t, report.Groups[0].Paths, 2)
	assert.Equal(t, 1, report.Skipped)
}

func TestCancelledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a", "dup")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewScanner(zerolog.Nop()).FindDuplicates(ctx, root, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHomeRelativeRoot(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	a := writeFile(t, home, "photos/a.jpg", "pixels")
	b := writeFile(t, home, "photos/b.jpg", "pixels")

	report, err := NewScanner(zerolog.Nop()).FindDuplicates(context.Background(), "~/photos", Options{Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "photos"), report.Root)
	require.Len(t, report.Groups, 1)
	assert.Equal(t, []string{a, b}, report.Groups[0].Paths)
}

func TestEmptyRootIsInvalid(t *testing.T) {
	_, err := NewScanner(zerolog.Nop()).FindDuplicates(context.Background(), " ", Options{})
	assert.ErrorIs(t, err, safety.ErrInvalidPath)
}
