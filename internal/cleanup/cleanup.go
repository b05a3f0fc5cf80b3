package cleanup

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"fsguard/internal/fsops"
	"fsguard/internal/metrics"
	"fsguard/internal/safety"

	"github.com/rs/zerolog"
)

// Skip reasons. A removal failure is recorded with the OS error text.
const (
	SkipNotEmpty            = "not-empty"
	SkipBoundary            = "boundary"
	SkipBoundaryNotAncestor = "boundary-not-ancestor"
	SkipNotFound            = "not-found"
)

// Skip is a directory the walk stopped at.
type Skip struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Result lists the directories removed, in removal order, and the
// directories the walk stopped at.
type Result struct {
	Removed []string `json:"removed"`
	Skipped []Skip   `json:"skipped"`
}

func (r *Result) skip(path, reason string) {
	r.Skipped = append(r.Skipped, Skip{Path: path, Reason: reason})
}

// Merge appends other to r. A path removed by either walk is dropped from
// the skipped list, and duplicates are collapsed keeping first occurrence.
func (r *Result) Merge(other Result) {
	r.Removed = append(r.Removed, other.Removed...)
	r.Skipped = append(r.Skipped, other.Skipped...)
	r.normalize()
}

func (r *Result) normalize() {
	removed := make(map[string]bool, len(r.Removed))
	var keep []string
	for _, p := range r.Removed {
		if removed[p] {
			continue
		}
		removed[p] = true
		keep = append(keep, p)
	}
	r.Removed = keep

	seen := make(map[Skip]bool, len(r.Skipped))
	var skipped []Skip
	for _, s := range r.Skipped {
		if removed[s.Path] || seen[s] {
			continue
		}
		seen[s] = true
		skipped = append(skipped, s)
	}
	r.Skipped = skipped
}

// Veto is consulted before each removal. A non-empty return value stops
// the walk and becomes the skip reason.
type Veto func(dir string) string

// Cleaner removes empty ancestor directories up to a boundary
type Cleaner struct {
	fs     fsops.Deleter
	logger zerolog.Logger
}

// New returns a Cleaner removing through d. A nil d uses the real
// filesystem.
func New(d fsops.Deleter, logger zerolog.Logger) *Cleaner {
	if d == nil {
		d = fsops.OS{}
	}
	return &Cleaner{fs: d, logger: logger}
}

// Cleanup walks from start toward boundary removing each directory that
// is empty at the moment it is checked. The boundary itself is never
// removed or crossed.
func (c *Cleaner) Cleanup(start, boundary string) Result {
	return c.CleanupChecked(start, boundary, nil)
}

// CleanupChecked is Cleanup with a per-directory veto.
func (c *Cleaner) CleanupChecked(start, boundary string, veto Veto) Result {
	start = filepath.Clean(start)
	boundary = filepath.Clean(boundary)

	var res Result
	if !safety.IsStrictAncestor(boundary, start) {
		c.stop(&res, start, SkipBoundaryNotAncestor, SkipBoundaryNotAncestor)
		return res
	}

	dir := start
	for {
		if !safety.IsStrictAncestor(boundary, dir) {
			c.stop(&res, dir, SkipBoundary, SkipBoundary)
			break
		}

		if veto != nil {
			if reason := veto(dir); reason != "" {
				c.stop(&res, dir, reason, reason)
				break
			}
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				c.stop(&res, dir, SkipNotFound, SkipNotFound)
			} else {
				c.stop(&res, dir, err.Error(), "read-failed")
			}
			break
		}
		if len(entries) > 0 {
			c.stop(&res, dir, SkipNotEmpty, SkipNotEmpty)
			break
		}

		if err := c.fs.Remove(dir); err != nil {
			c.logger.Warn().Err(err).Str("path", dir).Msg("failed to remove empty directory")
			c.stop(&res, dir, err.Error(), "remove-failed")
			break
		}

		c.logger.Debug().Str("path", dir).Msg("removed empty directory")
		metrics.RecordDirectoryRemoved()
		res.Removed = append(res.Removed, dir)
		dir = filepath.Dir(dir)
	}

	return res
}

// stop records where the walk ended. label is the bounded metric value
// for reason.
func (c *Cleaner) stop(res *Result, path, reason, label string) {
	c.logger.Debug().Str("path", path).Str("reason", reason).Msg("cleanup stopped")
	metrics.RecordCleanupSkip(label)
	res.skip(path, reason)
}

// DeepestFirst sorts directories so that every descendant precedes its
// ancestors.
func DeepestFirst(dirs []string) []string {
	out := append([]string(nil), dirs...)
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := depth(out[i]), depth(out[j])
		if di != dj {
			return di > dj
		}
		return out[i] > out[j]
	})
	return out
}

func depth(p string) int {
	n := 0
	for _, r := range filepath.Clean(p) {
		if r == filepath.Separator {
			n++
		}
	}
	return n
}
