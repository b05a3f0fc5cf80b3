package guard

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"fsguard/internal/database"
	"fsguard/internal/metrics"
)

// FileRequest asks for a single file to be deleted.
type FileRequest struct {
	Path    string `json:"path"`
	Preview bool   `json:"preview"`
	Cleanup bool   `json:"cleanup"` // remove the emptied parent, bounded by the grandparent
}

// DirRequest asks for a directory to be deleted.
type DirRequest struct {
	Path             string `json:"path"`
	Recursive        bool   `json:"recursive"`
	ConfirmRecursive bool   `json:"confirm_recursive"`
	Preview          bool   `json:"preview"`
}

// DeleteFile removes one file once the policy approves it.
func (g *Guard) DeleteFile(ctx context.Context, req FileRequest) (*Outcome, error) {
	p, err := g.policy()
	if err != nil {
		return nil, err
	}

	c := g.begin(ctx, OpDeleteFile, req.Path)
	res := p.ValidateDeletion(req.Path)
	c.out.Checks = res.Checks
	if !res.Safe {
		return c.rejectResult(res, string(KindFile))
	}
	path := res.Path
	c.out.Path = path

	info, err := os.Lstat(path)
	if err != nil {
		return c.fail(classify(err, path), string(KindFile))
	}
	if info.IsDir() {
		return c.fail(fmt.Errorf("%w: %s is a directory", ErrNotAFile, path), string(KindDirectory))
	}

	if req.Preview {
		return c.preview([]PreviewItem{{Path: path, Kind: KindFile, Size: sizePtr(info.Size())}}, string(KindFile))
	}

	if err := g.fs.Remove(path); err != nil {
		return c.fail(classify(err, path), string(KindFile))
	}
	c.out.Removed = []string{path}
	c.out.BytesFreed = info.Size()
	metrics.RecordDeletion(1, info.Size())
	c.record(database.Operation{
		Action:     database.ActionDelete,
		Path:       path,
		ObjectType: string(KindFile),
		Size:       info.Size(),
	})

	if req.Cleanup {
		parent := filepath.Dir(path)
		res := c.runCleanup(p, parent, filepath.Dir(parent))
		c.out.Cleanup = &res
	}

	return c.done()
}

// DeleteDirectory removes a directory. A non-recursive request requires
// the directory to be empty. A recursive one additionally requires
// ConfirmRecursive; a preview is served without it.
func (g *Guard) DeleteDirectory(ctx context.Context, req DirRequest) (*Outcome, error) {
	p, err := g.policy()
	if err != nil {
		return nil, err
	}

	c := g.begin(ctx, OpDeleteDirectory, req.Path)
	res := p.ValidateDeletion(req.Path)
	c.out.Checks = res.Checks
	if !res.Safe {
		return c.rejectResult(res, string(KindDirectory))
	}
	path := res.Path
	c.out.Path = path

	info, err := os.Lstat(path)
	if err != nil {
		return c.fail(classify(err, path), string(KindDirectory))
	}
	if !info.IsDir() {
		return c.fail(fmt.Errorf("%w: %s", ErrNotADirectory, path), string(KindFile))
	}

	if req.Preview {
		items := []PreviewItem{{Path: path, Kind: KindDirectory}}
		if req.Recursive {
			items = g.listTree(path)
		}
		return c.preview(items, string(KindDirectory))
	}

	if req.Recursive && !req.ConfirmRecursive {
		return c.reject(ReasonRecursiveRequiresConfirmation,
			fmt.Sprintf("recursive deletion of %s requires explicit confirmation", path),
			string(KindDirectory))
	}

	if !req.Recursive {
		entries, err := os.ReadDir(path)
		if err != nil {
			return c.fail(classify(err, path), string(KindDirectory))
		}
		if len(entries) > 0 {
			return c.reject(ReasonNotEmpty,
				fmt.Sprintf("directory %s is not empty (%d items); use recursive deletion with confirmation to remove it", path, len(entries)),
				string(KindDirectory))
		}
		if err := g.fs.Remove(path); err != nil {
			return c.fail(classify(err, path), string(KindDirectory))
		}
	} else {
		var files int
		for _, item := range g.listTree(path) {
			if item.Size != nil {
				files++
				c.out.BytesFreed += *item.Size
			}
		}
		if err := g.fs.RemoveAll(path); err != nil {
			return c.fail(classify(err, path), string(KindDirectory))
		}
		metrics.RecordDeletion(files, c.out.BytesFreed)
	}

	c.out.Removed = []string{path}
	c.record(database.Operation{
		Action:     database.ActionDelete,
		Path:       path,
		ObjectType: string(KindDirectory),
		Size:       c.out.BytesFreed,
	})
	return c.done()
}

// listTree returns root and every descendant in depth-first pre-order,
// entries of a directory in lexical order. Unreadable entries are left
// out. Symlinks are listed as files and not followed.
func (g *Guard) listTree(root string) []PreviewItem {
	var items []PreviewItem
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			g.logger.Debug().Err(err).Str("path", path).Msg("skipping unreadable entry in preview")
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			items = append(items, PreviewItem{Path: path, Kind: KindDirectory})
			return nil
		}
		item := PreviewItem{Path: path, Kind: KindFile}
		if info, err := d.Info(); err == nil {
			item.Size = sizePtr(info.Size())
		}
		items = append(items, item)
		return nil
	})
	return items
}
