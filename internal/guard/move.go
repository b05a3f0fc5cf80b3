package guard

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"fsguard/internal/cleanup"
	"fsguard/internal/database"
	"fsguard/internal/metrics"
	"fsguard/internal/safety"
)

// NoExtension is the organize bucket for files without an extension.
const NoExtension = "no-extension"

// MoveRequest asks for a file or directory to be relocated.
type MoveRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"` // an existing directory receives the source under its own name
	Overwrite   bool   `json:"overwrite"`
	Preview     bool   `json:"preview"`
	Cleanup     bool   `json:"cleanup"`
}

// OrganizeRequest asks for the files under Source to be sorted into
// per-extension directories under Destination.
type OrganizeRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Recursive   bool   `json:"recursive"`
	Preview     bool   `json:"preview"`
	Cleanup     bool   `json:"cleanup"`
}

// Move relocates Source to Destination. Both ends are validated as if they
// were being deleted: the source disappears and the destination may be
// replaced.
func (g *Guard) Move(ctx context.Context, req MoveRequest) (*Outcome, error) {
	p, err := g.policy()
	if err != nil {
		return nil, err
	}

	c := g.begin(ctx, OpMove, req.Source)
	c.out.Destination = req.Destination

	src := p.ValidateDeletion(req.Source)
	c.out.Checks = src.Checks
	if !src.Safe {
		return c.rejectResult(src, "")
	}
	c.out.Path = src.Path

	target, err := p.Canonical(req.Destination)
	if err != nil {
		return c.reject(safety.ReasonInvalidPath, fmt.Sprintf("invalid destination %q", req.Destination), "")
	}
	if info, err := os.Stat(target); err == nil && info.IsDir() && !safety.IsWithin(target, src.Path) {
		target = filepath.Join(target, filepath.Base(src.Path))
	}

	dst := p.ValidateDeletion(target)
	c.out.DestinationChecks = &dst.Checks
	c.out.Destination = dst.Path
	if !dst.Safe {
		return c.reject(dst.Reason, "destination: "+dst.Detail, "")
	}

	info, err := os.Lstat(src.Path)
	if err != nil {
		return c.fail(classify(err, src.Path), "")
	}
	kind := KindFile
	if info.IsDir() {
		kind = KindDirectory
		if safety.IsWithin(dst.Path, src.Path) {
			return c.fail(fmt.Errorf("%w: %s", ErrDestinationInsideSource, dst.Path), string(kind))
		}
	}

	if existing, err := os.Lstat(dst.Path); err == nil {
		if !req.Overwrite || existing.IsDir() {
			return c.fail(fmt.Errorf("%w: %s", ErrDestinationExists, dst.Path), string(kind))
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return c.fail(classify(err, dst.Path), string(kind))
	}

	mv := Move{From: src.Path, To: dst.Path}
	if req.Preview {
		c.out.Moved = []Move{mv}
		item := PreviewItem{Path: src.Path, Kind: kind}
		if kind == KindFile {
			item.Size = sizePtr(info.Size())
		}
		return c.preview([]PreviewItem{item}, string(kind))
	}

	if err := g.fs.MkdirAll(filepath.Dir(dst.Path), 0o755); err != nil {
		return c.fail(classify(err, filepath.Dir(dst.Path)), string(kind))
	}
	if err := g.fs.Rename(src.Path, dst.Path); err != nil {
		return c.fail(classify(err, src.Path), string(kind))
	}

	c.out.Moved = []Move{mv}
	metrics.RecordMove(1)
	c.record(database.Operation{
		Action:      database.ActionMove,
		Path:        src.Path,
		Destination: dst.Path,
		ObjectType:  string(kind),
		Size:        info.Size(),
	})

	if req.Cleanup {
		parent := filepath.Dir(src.Path)
		res := c.runCleanup(p, parent, filepath.Dir(parent))
		c.out.Cleanup = &res
	}

	return c.done()
}

// Organize moves every regular file under Source into
// Destination/<extension>/. Files the policy rejects, and files whose
// target already exists, are skipped. With Cleanup, each vacated directory
// is cleaned deepest first, bounded by the parent of Source.
func (g *Guard) Organize(ctx context.Context, req OrganizeRequest) (*Outcome, error) {
	p, err := g.policy()
	if err != nil {
		return nil, err
	}

	c := g.begin(ctx, OpOrganize, req.Source)
	c.out.Destination = req.Destination

	src := p.ValidateDeletion(req.Source)
	c.out.Checks = src.Checks
	if !src.Safe {
		return c.rejectResult(src, string(KindDirectory))
	}
	c.out.Path = src.Path

	dst := p.ValidateDeletion(req.Destination)
	c.out.DestinationChecks = &dst.Checks
	c.out.Destination = dst.Path
	if !dst.Safe {
		return c.reject(dst.Reason, "destination: "+dst.Detail, string(KindDirectory))
	}

	info, err := os.Lstat(src.Path)
	if err != nil {
		return c.fail(classify(err, src.Path), string(KindDirectory))
	}
	if !info.IsDir() {
		return c.fail(fmt.Errorf("%w: %s", ErrNotADirectory, src.Path), string(KindFile))
	}
	if safety.IsWithin(dst.Path, src.Path) {
		return c.fail(fmt.Errorf("%w: %s", ErrDestinationInsideSource, dst.Path), string(KindDirectory))
	}

	files, err := collectFiles(src.Path, req.Recursive)
	if err != nil {
		return c.fail(classify(err, src.Path), string(KindDirectory))
	}

	planned := make(map[string]bool)
	var moves []Move
	var items []PreviewItem
	for _, f := range files {
		target := filepath.Join(dst.Path, ExtensionBucket(f.path), filepath.Base(f.path))

		if res := p.ValidateDeletion(f.path); !res.Safe {
			c.out.Skipped = append(c.out.Skipped, SkipItem{Path: f.path, Reason: string(res.Reason)})
			continue
		}
		if res := p.ValidateDeletion(target); !res.Safe {
			c.out.Skipped = append(c.out.Skipped, SkipItem{Path: f.path, Reason: string(res.Reason)})
			continue
		}
		if _, err := os.Lstat(target); err == nil || planned[target] {
			c.out.Skipped = append(c.out.Skipped, SkipItem{Path: f.path, Reason: string(ReasonDestinationExists)})
			continue
		}

		planned[target] = true
		moves = append(moves, Move{From: f.path, To: target})
		items = append(items, PreviewItem{Path: f.path, Kind: KindFile, Size: sizePtr(f.size)})
	}

	if req.Preview {
		c.out.Moved = moves
		return c.preview(items, string(KindDirectory))
	}

	vacated := make(map[string]bool)
	for i, mv := range moves {
		if err := ctx.Err(); err != nil {
			return c.fail(err, string(KindDirectory))
		}
		if err := g.fs.MkdirAll(filepath.Dir(mv.To), 0o755); err != nil {
			c.out.Skipped = append(c.out.Skipped, SkipItem{Path: mv.From, Reason: err.Error()})
			continue
		}
		if err := g.fs.Rename(mv.From, mv.To); err != nil {
			c.out.Skipped = append(c.out.Skipped, SkipItem{Path: mv.From, Reason: err.Error()})
			continue
		}
		c.out.Moved = append(c.out.Moved, mv)
		vacated[filepath.Dir(mv.From)] = true
		c.record(database.Operation{
			Action:      database.ActionMove,
			Path:        mv.From,
			Destination: mv.To,
			ObjectType:  string(KindFile),
			Size:        *items[i].Size,
		})
	}
	metrics.RecordMove(len(c.out.Moved))

	if req.Cleanup {
		dirs := make([]string, 0, len(vacated)+1)
		for d := range vacated {
			dirs = append(dirs, d)
		}
		if !vacated[src.Path] {
			dirs = append(dirs, src.Path)
		}

		boundary := filepath.Dir(src.Path)
		var merged cleanup.Result
		for _, d := range cleanup.DeepestFirst(dirs) {
			merged.Merge(g.cleaner.CleanupChecked(d, boundary, vetoFor(p)))
		}
		c.recordCleanup(merged)
		c.out.Cleanup = &merged
	}

	return c.done()
}

// ExtensionBucket returns the organize directory name for path: the
// lower-cased extension without its dot, or NoExtension. A leading dot
// alone, as in ".bashrc", is not an extension.
func ExtensionBucket(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(strings.TrimLeft(base, "."))
	if ext == "" || ext == "." {
		return NoExtension
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

type fileEntry struct {
	path string
	size int64
}

// collectFiles lists the regular files under root in lexical pre-order.
// Unreadable subdirectories and entries are left out.
func collectFiles(root string, recursive bool) ([]fileEntry, error) {
	var files []fileEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, fileEntry{path: path, size: info.Size()})
		return nil
	})
	return files, err
}
