package fsops

import "os"

// Deleter abstracts filesystem delete operations
// Enables mocking in tests to prove preview never deletes
type Deleter interface {
	Remove(path string) error
	RemoveAll(path string) error
}

// Mover abstracts the operations used to relocate files
type Mover interface {
	Rename(oldPath, newPath string) error
	MkdirAll(path string, perm os.FileMode) error
}

// FS is every mutation the guard performs
type FS interface {
	Deleter
	Mover
}
