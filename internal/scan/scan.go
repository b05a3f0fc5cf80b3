package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"fsguard/internal/metrics"
	"fsguard/internal/safety"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog"
)

var (
	ErrNotDirectory  = errors.New("scan root is not a directory")
	ErrInvalidFilter = errors.New("invalid filter pattern")
)

// Options controls a duplicate scan.
type Options struct {
	Recursive bool     `json:"recursive"`
	MinSize   int64    `json:"min_size"`
	Include   []string `json:"include,omitempty"` // basename globs; empty matches every file
	Exclude   []string `json:"exclude,omitempty"` // basename globs; a matching directory is not entered
}

// DuplicateGroup is a set of files with identical content.
type DuplicateGroup struct {
	Digest string   `json:"digest"`
	Paths  []string `json:"paths"`
	Size   int64    `json:"size"`
}

// Report is the result of one scan.
type Report struct {
	Root         string           `json:"root"`
	Groups       []DuplicateGroup `json:"groups"`
	FilesScanned int              `json:"files_scanned"`
	FilesHashed  int              `json:"files_hashed"`
	Skipped      int              `json:"skipped"`
	WastedBytes  int64            `json:"wasted_bytes"` // bytes held by every copy beyond the first
}

// Scanner finds files with identical content
type Scanner struct {
	logger zerolog.Logger
}

// NewScanner creates a new Scanner with the given logger
func NewScanner(logger zerolog.Logger) *Scanner {
	return &Scanner{logger: logger}
}

type filters struct {
	include []glob.Glob
	exclude []glob.Glob
}

func compileFilters(opts Options) (filters, error) {
	var f filters
	for _, p := range opts.Include {
		g, err := glob.Compile(p)
		if err != nil {
			return f, fmt.Errorf("%w: include %q: %v", ErrInvalidFilter, p, err)
		}
		f.include = append(f.include, g)
	}
	for _, p := range opts.Exclude {
		g, err := glob.Compile(p)
		if err != nil {
			return f, fmt.Errorf("%w: exclude %q: %v", ErrInvalidFilter, p, err)
		}
		f.exclude = append(f.exclude, g)
	}
	return f, nil
}

func (f filters) excluded(name string) bool {
	for _, g := range f.exclude {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func (f filters) included(name string) bool {
	if len(f.include) == 0 {
		return true
	}
	for _, g := range f.include {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// FindDuplicates walks root and groups regular files by content digest.
// Files are first bucketed by size so a file with a unique size is never
// read. Unreadable entries are counted in Report.Skipped and the scan
// continues. Only a bad root, a bad pattern or ctx cancellation fail the
// call. A leading "~" in root is expanded against the home directory.
func (s *Scanner) FindDuplicates(ctx context.Context, root string, opts Options) (*Report, error) {
	start := time.Now()

	f, err := compileFilters(opts)
	if err != nil {
		return nil, err
	}

	root, err = safety.NormalizePath(root)
	if err != nil {
		return nil, fmt.Errorf("scan root: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan %s: %w", root, ErrNotDirectory)
	}

	report := &Report{Root: root}
	bySize := make(map[int64][]string)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			s.logger.Debug().Err(err).Str("path", path).Msg("skipping unreadable entry")
			report.Skipped++
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if !opts.Recursive || f.excluded(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || f.excluded(d.Name()) || !f.included(d.Name()) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			report.Skipped++
			return nil
		}
		if fi.Size() < opts.MinSize {
			return nil
		}

		report.FilesScanned++
		bySize[fi.Size()] = append(bySize[fi.Size()], path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	for size, paths := range bySize {
		if len(paths) < 2 {
			continue
		}

		byDigest := make(map[string][]string)
		for _, p := range paths {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			digest, err := HashFile(p)
			if err != nil {
				s.logger.Debug().Err(err).Str("path", p).Msg("skipping unreadable file")
				report.Skipped++
				continue
			}
			report.FilesHashed++
			byDigest[digest] = append(byDigest[digest], p)
		}

		for digest, members := range byDigest {
			if len(members) < 2 {
				continue
			}
			sort.Strings(members)
			report.Groups = append(report.Groups, DuplicateGroup{Digest: digest, Paths: members, Size: size})
			report.WastedBytes += size * int64(len(members)-1)
		}
	}

	sort.Slice(report.Groups, func(i, j int) bool {
		gi, gj := report.Groups[i], report.Groups[j]
		if gi.Size != gj.Size {
			return gi.Size > gj.Size
		}
		return gi.Digest < gj.Digest
	})

	metrics.RecordScan(time.Since(start), report.FilesHashed, report.Skipped, len(report.Groups))
	s.logger.Info().
		Str("root", root).
		Int("files_scanned", report.FilesScanned).
		Int("files_hashed", report.FilesHashed).
		Int("groups", len(report.Groups)).
		Int("skipped", report.Skipped).
		Dur("duration", time.Since(start)).
		Msg("duplicate scan complete")

	return report, nil
}
