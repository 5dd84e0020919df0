package fsext

import (
	"errors"
	"path/filepath"
	"sort"
)

// MemFile is an in-memory File used by MemFS.
type MemFile struct {
	data   []byte
	offset int64
}

func newMemFile(data []byte) *MemFile {
	return &MemFile{data: data}
}

func (f *MemFile) Read(p []byte) (int, error) {
	if f.offset >= int64(len(f.data)) {
		return 0, errEOF
	}
	n := copy(p, f.data[f.offset:])
	f.offset += int64(n)
	return n, nil
}

func (f *MemFile) Write(p []byte) (int, error) {
	end := f.offset + int64(len(p))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[f.offset:end], p)
	f.offset = end
	return len(p), nil
}

func (f *MemFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case 0:
		f.offset = offset
	case 1:
		f.offset += offset
	case 2:
		f.offset = int64(len(f.data)) + offset
	}
	return f.offset, nil
}

func (f *MemFile) Truncate(size int64) error {
	if size < int64(len(f.data)) {
		f.data = f.data[:size]
	} else {
		grown := make([]byte, size)
		copy(grown, f.data)
		f.data = grown
	}
	return nil
}

func (f *MemFile) Close() error { return nil }

func (f *MemFile) Bytes() []byte { return f.data }

var errEOF = errors.New("fsext: EOF")

// MemFS is an in-memory FS for tests, with a configurable quota so
// CheckFreeSpace's SD_FULL path can be exercised deterministically.
type MemFS struct {
	files map[string]*MemFile
	dirs  map[string]bool
	quota uint64
}

func NewMemFS(quota uint64) *MemFS {
	return &MemFS{
		files: make(map[string]*MemFile),
		dirs:  map[string]bool{"/": true},
		quota: quota,
	}
}

func clean(path string) string {
	return filepath.Clean("/" + path)
}

func (fs *MemFS) Exists(path string) bool {
	p := clean(path)
	_, ok := fs.files[p]
	if ok {
		return true
	}
	return fs.dirs[p]
}

func (fs *MemFS) Mkdir(path string) error {
	fs.dirs[clean(path)] = true
	return nil
}

func (fs *MemFS) Rmdir(path string) error {
	delete(fs.dirs, clean(path))
	return nil
}

func (fs *MemFS) Open(path string, write bool) (File, error) {
	p := clean(path)
	f, ok := fs.files[p]
	if !ok {
		if !write {
			return nil, errNotFound
		}
		f = newMemFile(nil)
		fs.files[p] = f
	}
	f.offset = 0
	return f, nil
}

func (fs *MemFS) Rename(oldPath, newPath string) error {
	op, np := clean(oldPath), clean(newPath)
	f, ok := fs.files[op]
	if !ok {
		return errNotFound
	}
	fs.files[np] = f
	delete(fs.files, op)
	return nil
}

func (fs *MemFS) Remove(path string) error {
	p := clean(path)
	if _, ok := fs.files[p]; !ok {
		return errNotFound
	}
	delete(fs.files, p)
	return nil
}

func (fs *MemFS) ReadDir(path string) ([]DirEntry, error) {
	prefix := clean(path)
	if prefix != "/" {
		prefix += "/"
	}
	var names []string
	for p := range fs.files {
		if len(p) > len(prefix) && p[:len(prefix)] == prefix && !containsSlashAfter(p[len(prefix):]) {
			names = append(names, p)
		}
	}
	for p := range fs.dirs {
		if len(p) > len(prefix) && p[:len(prefix)] == prefix && !containsSlashAfter(p[len(prefix):]) {
			names = append(names, p)
		}
	}
	sort.Strings(names)
	out := make([]DirEntry, 0, len(names))
	for _, p := range names {
		if f, ok := fs.files[p]; ok {
			out = append(out, DirEntry{Name: filepath.Base(p), Size: int64(len(f.data))})
		} else {
			out = append(out, DirEntry{Name: filepath.Base(p), IsDir: true})
		}
	}
	return out, nil
}

func containsSlashAfter(s string) bool {
	for _, c := range s {
		if c == '/' {
			return true
		}
	}
	return false
}

func (fs *MemFS) TotalBytes() uint64 { return fs.quota }

func (fs *MemFS) UsedBytes() uint64 {
	var used uint64
	for _, f := range fs.files {
		used += uint64(len(f.data))
	}
	return used
}

var errNotFound = errors.New("fsext: not found")
