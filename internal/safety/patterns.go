package safety

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// globPrefix marks an additional name pattern as a glob rather than a
// regular expression, e.g. "glob:*.kdbx".
const globPrefix = "glob:"

// namePattern is a compiled basename matcher.
type namePattern struct {
	raw     string
	re      *regexp.Regexp
	globber glob.Glob
}

func (p namePattern) match(name string) bool {
	if p.globber != nil {
		return p.globber.Match(name)
	}
	return p.re.MatchString(name)
}

func (p namePattern) String() string {
	return p.raw
}

func compileNamePattern(raw string) (namePattern, error) {
	if strings.HasPrefix(raw, globPrefix) {
		src := strings.TrimPrefix(raw, globPrefix)
		g, err := glob.Compile(src)
		if err != nil {
			return namePattern{}, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, raw, err)
		}
		return namePattern{raw: raw, globber: g}, nil
	}
	re, err := regexp.Compile(raw)
	if err != nil {
		return namePattern{}, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, raw, err)
	}
	return namePattern{raw: raw, re: re}, nil
}

func compileNamePatterns(raw []string) ([]namePattern, error) {
	out := make([]namePattern, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		p, err := compileNamePattern(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
