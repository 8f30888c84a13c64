// Package fsutil provides the filesystem abstraction used to store uploads and
// job results, with an in-memory implementation for tests.
package fsutil

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing/fstest"
	"time"
)

// FileSystem is what the job runner and result handlers need from storage.
// OSFileSystem backs the server; MemoryFileSystem backs tests.
type FileSystem interface {
	Open(name string) (fs.File, error)
	// Create truncates name. Contents are visible once the writer is closed.
	Create(name string) (io.WriteCloser, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	Remove(name string) error
	// Rename replaces newpath. Result documents are published this way.
	Rename(oldpath, newpath string) error
	Exists(name string) bool
}

// OSFileSystem stores files on local disk.
type OSFileSystem struct{}

func (OSFileSystem) Open(name string) (fs.File, error)            { return os.Open(name) }
func (OSFileSystem) Create(name string) (io.WriteCloser, error)   { return os.Create(name) }
func (OSFileSystem) ReadFile(name string) ([]byte, error)         { return os.ReadFile(name) }
func (OSFileSystem) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (OSFileSystem) Remove(name string) error                     { return os.Remove(name) }
func (OSFileSystem) Rename(oldpath, newpath string) error         { return os.Rename(oldpath, newpath) }

func (OSFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (OSFileSystem) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// MemoryFileSystem keeps uploads and results in memory. It is backed by an
// fstest.MapFS, so parent directories of stored files exist implicitly.
type MemoryFileSystem struct {
	mu    sync.RWMutex
	files fstest.MapFS
}

// NewMemoryFileSystem returns an empty in-memory filesystem.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{files: fstest.MapFS{}}
}

// key maps an OS-style path onto a MapFS name: cleaned, slash separated and
// unrooted.
func key(name string) string {
	k := strings.TrimPrefix(filepath.ToSlash(filepath.Clean(name)), "/")
	if k == "" {
		return "."
	}
	return k
}

func (m *MemoryFileSystem) put(name string, data []byte, perm os.FileMode) {
	m.files[key(name)] = &fstest.MapFile{Data: data, Mode: perm, ModTime: time.Now()}
}

// Open returns a snapshot of the named file. Later writes do not affect it.
func (m *MemoryFileSystem) Open(name string) (fs.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, err := m.files.Open(key(name))
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return f, nil
}

// Create returns a writer whose contents replace the file on Close.
func (m *MemoryFileSystem) Create(name string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(name, nil, 0o644)
	return &memWriter{fs: m, name: name}, nil
}

// ReadFile returns a copy of the named file's contents.
func (m *MemoryFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[key(name)]
	if !ok || f.Mode.IsDir() {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	return bytes.Clone(f.Data), nil
}

// WriteFile stores a copy of data under name.
func (m *MemoryFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(name, bytes.Clone(data), perm)
	return nil
}

// MkdirAll records path as a directory.
func (m *MemoryFileSystem) MkdirAll(path string, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(path)
	if k == "." {
		return nil
	}
	if f, ok := m.files[k]; ok && !f.Mode.IsDir() {
		return &fs.PathError{Op: "mkdir", Path: path, Err: syscall.ENOTDIR}
	}
	m.files[k] = &fstest.MapFile{Mode: fs.ModeDir | perm}
	return nil
}

// Remove deletes a file or an explicitly created directory.
func (m *MemoryFileSystem) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(name)
	if _, ok := m.files[k]; !ok {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	delete(m.files, k)
	return nil
}

// Rename moves a file, replacing whatever was at newpath.
func (m *MemoryFileSystem) Rename(oldpath, newpath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	from := key(oldpath)
	f, ok := m.files[from]
	if !ok {
		return &fs.PathError{Op: "rename", Path: oldpath, Err: fs.ErrNotExist}
	}
	m.files[key(newpath)] = f
	delete(m.files, from)
	return nil
}

// Exists reports whether name is a stored file or a directory, including
// directories implied by stored files.
func (m *MemoryFileSystem) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, err := fs.Stat(m.files, key(name))
	return err == nil
}

// memWriter buffers writes and commits them on Close.
type memWriter struct {
	fs   *MemoryFileSystem
	name string
	buf  bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *memWriter) Close() error {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	w.fs.put(w.name, bytes.Clone(w.buf.Bytes()), 0o644)
	return nil
}
