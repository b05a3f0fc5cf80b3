package fsops

import "os"

// OS implements FS using real os package calls
type OS struct{}

func (OS) Remove(path string) error {
	return os.Remove(path)
}

func (OS) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (OS) Rename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

func (OS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}
