package fsops

import (
	"os"
	"sync"
)

// Fake implements FS for testing
// Records all calls without touching the filesystem. Errs injects a
// failure for a given path.
type Fake struct {
	mu    sync.Mutex
	Calls []string
	Errs  map[string]error
}

func (f *Fake) record(call, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, call)
	return f.Errs[path]
}

func (f *Fake) Remove(path string) error {
	return f.record("rm:"+path, path)
}

func (f *Fake) RemoveAll(path string) error {
	return f.record("rmall:"+path, path)
}

func (f *Fake) Rename(oldPath, newPath string) error {
	return f.record("mv:"+oldPath+"->"+newPath, oldPath)
}

func (f *Fake) MkdirAll(path string, _ os.FileMode) error {
	return f.record("mkdir:"+path, path)
}

// Mutations returns a copy of the recorded calls.
func (f *Fake) Mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}
