package safety

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var (
	ErrInvalidPath       = errors.New("invalid path")
	ErrInvalidPattern    = errors.New("invalid protected pattern")
	ErrNoAllowedPaths    = errors.New("no allowed paths configured")
	ErrOutsideAllowed    = errors.New("outside allowed paths")
	ErrProtectedPath     = errors.New("protected path")
	ErrParentOfProtected = errors.New("parent of protected path")
	ErrProtectedName     = errors.New("protected name")
)

// Reason identifies why a path was rejected.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonInvalidPath       Reason = "invalid-path"
	ReasonNoAllowedPaths    Reason = "no-allowed-paths"
	ReasonOutsideAllowed    Reason = "outside-allowed-scope"
	ReasonProtectedPath     Reason = "protected-path"
	ReasonParentOfProtected Reason = "parent-of-protected"
	ReasonProtectedName     Reason = "protected-name"
)

var reasonErrors = map[Reason]error{
	ReasonInvalidPath:       ErrInvalidPath,
	ReasonNoAllowedPaths:    ErrNoAllowedPaths,
	ReasonOutsideAllowed:    ErrOutsideAllowed,
	ReasonProtectedPath:     ErrProtectedPath,
	ReasonParentOfProtected: ErrParentOfProtected,
	ReasonProtectedName:     ErrProtectedName,
}

// CheckState is the outcome of a single policy sub-check.
type CheckState string

const (
	CheckPassed  CheckState = "passed"
	CheckFailed  CheckState = "failed"
	CheckSkipped CheckState = "skipped"
)

// Checks reports the state of the three policy sub-checks.
type Checks struct {
	Scope          CheckState `json:"scope"`
	PathProtection CheckState `json:"path_protection"`
	NameProtection CheckState `json:"name_protection"`
}

// AllPassed reports whether every sub-check passed.
func (c Checks) AllPassed() bool {
	return c.Scope == CheckPassed && c.PathProtection == CheckPassed && c.NameProtection == CheckPassed
}

// Result is the value returned by every policy evaluation.
type Result struct {
	Path   string `json:"path"`
	Safe   bool   `json:"safe"`
	Reason Reason `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`
	Checks Checks `json:"checks"`
}

// Err converts a rejection into an error wrapping the matching sentinel.
// It returns nil for a safe result.
func (r Result) Err() error {
	if r.Safe {
		return nil
	}
	return &RejectionError{Reason: r.Reason, Detail: r.Detail}
}

// RejectionError is a policy rejection surfaced as an error.
type RejectionError struct {
	Reason Reason
	Detail string
}

func (e *RejectionError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return e.Detail
}

func (e *RejectionError) Unwrap() error {
	return reasonErrors[e.Reason]
}

// Options configures a Policy. The Additional* lists are unioned with the
// fixed sets and can never remove an entry from them.
type Options struct {
	AllowedPaths                []string
	AdditionalProtectedPaths    []string
	AdditionalProtectedPatterns []string

	// Home is used for "~" expansion and the user-critical set. Defaults
	// to the current user's home directory.
	Home string
	// GOOS selects the fixed system and user path sets. Defaults to
	// runtime.GOOS.
	GOOS string
}

// Policy decides whether a path may be deleted or moved. It is immutable
// once constructed.
type Policy struct {
	home      string
	allowed   []string
	resolved  []string // allowed roots plus their on-disk forms
	onDisk    []string // protected paths plus their on-disk forms
	protected []string
	patterns  []namePattern
}

// NewPolicy builds a policy from opts. Every pattern is compiled here; a
// malformed one fails construction.
func NewPolicy(opts Options) (*Policy, error) {
	home := opts.Home
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	goos := opts.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}

	p := &Policy{home: home}

	for _, a := range opts.AllowedPaths {
		if strings.TrimSpace(a) == "" {
			continue
		}
		ap, err := ExpandPath(a, home)
		if err != nil {
			return nil, fmt.Errorf("allowed path %q: %w", a, err)
		}
		p.allowed = appendUnique(p.allowed, ap)
		p.resolved = appendUnique(appendUnique(p.resolved, ap), resolveExisting(ap))
	}

	for _, s := range SystemPaths(goos) {
		p.protected = appendUnique(p.protected, filepath.Clean(s))
	}
	for _, s := range UserCriticalPaths(goos, home) {
		p.protected = appendUnique(p.protected, filepath.Clean(s))
	}
	for _, s := range opts.AdditionalProtectedPaths {
		if strings.TrimSpace(s) == "" {
			continue
		}
		sp, err := ExpandPath(s, home)
		if err != nil {
			return nil, fmt.Errorf("protected path %q: %w", s, err)
		}
		p.protected = appendUnique(p.protected, sp)
	}

	for _, prot := range p.protected {
		p.onDisk = appendUnique(appendUnique(p.onDisk, prot), resolveExisting(prot))
	}

	patterns, err := compileNamePatterns(append(append([]string{}, fixedNamePatterns...), opts.AdditionalProtectedPatterns...))
	if err != nil {
		return nil, err
	}
	p.patterns = patterns

	return p, nil
}

// Canonical returns the canonical form of path under this policy.
func (p *Policy) Canonical(path string) (string, error) {
	return ExpandPath(path, p.home)
}

// AllowedPaths returns the canonical allow-list.
func (p *Policy) AllowedPaths() []string {
	return append([]string(nil), p.allowed...)
}

// ProtectedPaths returns every protected path, fixed entries first.
func (p *Policy) ProtectedPaths() []string {
	return append([]string(nil), p.protected...)
}

// ProtectedPatterns returns the source of every protected name pattern.
func (p *Policy) ProtectedPatterns() []string {
	out := make([]string, len(p.patterns))
	for i, np := range p.patterns {
		out[i] = np.String()
	}
	return out
}

// IsWithinAllowedScope fails closed: an empty allow-list rejects every path.
func (p *Policy) IsWithinAllowedScope(path string) Result {
	cp, res, ok := p.canonicalResult(path)
	if !ok {
		return res
	}
	return p.scope(cp)
}

// IsPathProtected rejects an exact protected entry or any strict ancestor
// of one. Descendants of a protected entry are not rejected here.
func (p *Policy) IsPathProtected(path string) Result {
	cp, res, ok := p.canonicalResult(path)
	if !ok {
		return res
	}
	return p.pathProtection(cp)
}

// IsNameProtected matches name against the protected name patterns. Only
// the final segment is considered.
func (p *Policy) IsNameProtected(name string) Result {
	return p.nameProtection(name, filepath.Base(name))
}

// ValidateDeletion stops at the first failing check. An empty allow-list
// rejects before anything else is consulted. Path protection is evaluated
// next, independent of allow-list membership, so a protected entry or
// one of its ancestors is always reported as such. Scope membership
// follows. When a directory in the path is a symlink, path protection and
// scope are checked again on the location the link leads to. Name
// protection comes last.
func (p *Policy) ValidateDeletion(path string) Result {
	cp, res, ok := p.canonicalResult(path)
	if !ok {
		return res
	}

	checks := Checks{Scope: CheckSkipped, PathProtection: CheckSkipped, NameProtection: CheckSkipped}

	if len(p.allowed) == 0 {
		res = p.scope(cp)
		checks.Scope = CheckFailed
		res.Checks = checks
		return res
	}

	res = p.pathProtection(cp)
	checks.PathProtection = res.Checks.PathProtection
	if !res.Safe {
		res.Checks = checks
		return res
	}

	res = p.scope(cp)
	checks.Scope = res.Checks.Scope
	if !res.Safe {
		res.Checks = checks
		return res
	}

	if res, escaped := p.escape(cp); escaped {
		if res.Checks.PathProtection == CheckFailed {
			checks.PathProtection = CheckFailed
		} else {
			checks.Scope = CheckFailed
		}
		res.Checks = checks
		return res
	}

	res = p.nameProtection(cp, filepath.Base(cp))
	checks.NameProtection = res.Checks.NameProtection
	res.Checks = checks
	return res
}

func (p *Policy) canonicalResult(path string) (string, Result, bool) {
	cp, err := p.Canonical(path)
	if err != nil {
		return "", Result{
			Path:   path,
			Reason: ReasonInvalidPath,
			Detail: fmt.Sprintf("invalid path %q", path),
			Checks: Checks{Scope: CheckFailed, PathProtection: CheckSkipped, NameProtection: CheckSkipped},
		}, false
	}
	return cp, Result{}, true
}

func (p *Policy) scope(cp string) Result {
	if len(p.allowed) == 0 {
		return Result{
			Path:   cp,
			Reason: ReasonNoAllowedPaths,
			Detail: "no allowed paths are configured; all mutations are rejected",
			Checks: Checks{Scope: CheckFailed},
		}
	}
	for _, root := range p.allowed {
		if IsWithin(cp, root) {
			return Result{Path: cp, Safe: true, Checks: Checks{Scope: CheckPassed}}
		}
	}
	return Result{
		Path:   cp,
		Reason: ReasonOutsideAllowed,
		Detail: fmt.Sprintf("%s is outside the allowed paths", cp),
		Checks: Checks{Scope: CheckFailed},
	}
}

// escape reports whether a symlinked directory in cp leads to a protected
// location or out of the allowed roots.
func (p *Policy) escape(cp string) (Result, bool) {
	rp := ResolveParent(cp)
	if rp == cp {
		return Result{}, false
	}
	if res := protectedBy(rp, p.onDisk); !res.Safe {
		res.Path = cp
		res.Detail = fmt.Sprintf("%s resolves to %s: %s", cp, rp, res.Detail)
		return res, true
	}
	for _, root := range p.resolved {
		if IsWithin(rp, root) {
			return Result{}, false
		}
	}
	return Result{
		Path:   cp,
		Reason: ReasonOutsideAllowed,
		Detail: fmt.Sprintf("%s resolves to %s, outside the allowed paths", cp, rp),
		Checks: Checks{Scope: CheckFailed},
	}, true
}

func (p *Policy) pathProtection(cp string) Result {
	return protectedBy(cp, p.protected)
}

func protectedBy(cp string, protected []string) Result {
	for _, prot := range protected {
		if IsWithin(cp, prot) && IsWithin(prot, cp) {
			return Result{
				Path:   cp,
				Reason: ReasonProtectedPath,
				Detail: fmt.Sprintf("%s is a protected path", cp),
				Checks: Checks{PathProtection: CheckFailed},
			}
		}
	}
	for _, prot := range protected {
		if IsStrictAncestor(cp, prot) {
			return Result{
				Path:   cp,
				Reason: ReasonParentOfProtected,
				Detail: fmt.Sprintf("%s contains protected path %s", cp, prot),
				Checks: Checks{PathProtection: CheckFailed},
			}
		}
	}
	return Result{Path: cp, Safe: true, Checks: Checks{PathProtection: CheckPassed}}
}

func (p *Policy) nameProtection(path, name string) Result {
	for _, np := range p.patterns {
		if np.match(name) {
			return Result{
				Path:   path,
				Reason: ReasonProtectedName,
				Detail: fmt.Sprintf("name %q matches protected pattern %s", name, np),
				Checks: Checks{NameProtection: CheckFailed},
			}
		}
	}
	return Result{Path: path, Safe: true, Checks: Checks{NameProtection: CheckPassed}}
}

func appendUnique(list []string, v string) []string {
	for _, e := range list {
		if e == v {
			return list
		}
	}
	return append(list, v)
}
