package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Source is a local file selected for upload.
type Source interface {
	Name() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// File is a Source on the local filesystem.
type File struct {
	Path string
	name string
	size int64
}

// OpenFile stats path and returns it as a Source.
func OpenFile(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &File{Path: path, name: filepath.Base(path), size: info.Size()}, nil
}

func (f *File) Name() string { return f.name }
func (f *File) Size() int64  { return f.size }

func (f *File) Open() (io.ReadCloser, error) {
	return os.Open(f.Path)
}
