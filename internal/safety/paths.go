package safety

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ExpandPath resolves a leading "~" against home and returns the absolute,
// cleaned form of p. Every policy comparison operates on this form.
func ExpandPath(p, home string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", ErrInvalidPath
	}
	if home != "" {
		switch {
		case p == "~":
			p = home
		case strings.HasPrefix(p, "~/"), runtime.GOOS == "windows" && strings.HasPrefix(p, `~\`):
			p = filepath.Join(home, p[2:])
		}
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", ErrInvalidPath
	}
	return filepath.Clean(abs), nil
}

// NormalizePath converts path to absolute, cleaned form using the current
// user's home directory for "~" expansion.
func NormalizePath(path string) (string, error) {
	home, _ := os.UserHomeDir()
	return ExpandPath(path, home)
}

// ResolveParent returns p with every symlink in its directory part
// resolved. The final segment is kept as given, so a link still names
// itself. Trailing directories that do not exist yet are appended to the
// deepest existing ancestor.
func ResolveParent(p string) string {
	p = filepath.Clean(p)
	dir, base := filepath.Split(p)
	if base == "" {
		return p
	}
	return filepath.Join(resolveExisting(filepath.Clean(dir)), base)
}

// resolveExisting evaluates symlinks in the longest existing prefix of dir.
func resolveExisting(dir string) string {
	var rest []string
	for {
		if r, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(append([]string{r}, rest...)...)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return filepath.Join(append([]string{dir}, rest...)...)
		}
		rest = append([]string{filepath.Base(dir)}, rest...)
		dir = parent
	}
}

// IsWithin reports whether path equals root or lies below it. The
// comparison is segment-wise, so /data/foo never contains /data/foobar.
func IsWithin(path, root string) bool {
	p := splitSegments(path)
	r := splitSegments(root)
	if len(p) < len(r) {
		return false
	}
	for i := range r {
		if !segmentEqual(p[i], r[i]) {
			return false
		}
	}
	return true
}

// IsStrictAncestor reports whether ancestor lies strictly above path.
func IsStrictAncestor(ancestor, path string) bool {
	return IsWithin(path, ancestor) && len(splitSegments(path)) > len(splitSegments(ancestor))
}

// splitSegments breaks a cleaned path into its volume followed by each
// name. The root "/" yields a single empty volume segment.
func splitSegments(p string) []string {
	p = filepath.Clean(p)
	vol := filepath.VolumeName(p)
	rest := strings.Trim(p[len(vol):], string(filepath.Separator))
	segs := []string{vol}
	if rest == "" {
		return segs
	}
	return append(segs, strings.Split(rest, string(filepath.Separator))...)
}

func segmentEqual(a, b string) bool {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		return strings.EqualFold(a, b)
	}
	return a == b
}
