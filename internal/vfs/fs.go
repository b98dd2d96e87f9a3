package vfs

import (
	"errors"
	iofs "io/fs"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/shared/utils"
)

var (
	ErrNotExist = iofs.ErrNotExist
	ErrExist    = iofs.ErrExist
	ErrNotDir   = errors.New("not a directory")
	ErrIsDir    = errors.New("is a directory")
	ErrNotEmpty = errors.New("directory not empty")
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// FileInfo describes a node in the virtual filesystem
type FileInfo struct {
	Path    string
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// FS is an in-memory filesystem owned by a single sandbox. All paths are
// slash-separated; relative paths resolve against the working directory.
// Storage is an afero MemMapFs; FS adds the working directory, strict
// parent checks, a mutation counter and content digests.
type FS struct {
	mu     sync.RWMutex
	mem    afero.Fs
	cwd    string
	writes atomic.Uint64
	hasher *utils.Hasher
}

// New creates an empty filesystem containing only "/"
func New() *FS {
	mem := afero.NewMemMapFs()
	_ = mem.MkdirAll("/", dirPerm)
	return &FS{
		mem:    mem,
		cwd:    "/",
		hasher: utils.DefaultHasher(),
	}
}

// abs resolves p against the working directory. Caller holds mu.
func (f *FS) abs(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	if !path.IsAbs(p) {
		p = path.Join(f.cwd, p)
	}
	return path.Clean(p)
}

func pathErr(op, p string, err error) error {
	return &iofs.PathError{Op: op, Path: p, Err: err}
}

// stat looks up full, mapping a miss to ErrNotExist. Caller holds mu.
func (f *FS) stat(op, full string) (iofs.FileInfo, error) {
	fi, err := f.mem.Stat(full)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, pathErr(op, full, ErrNotExist)
		}
		return nil, pathErr(op, full, err)
	}
	return fi, nil
}

// MkdirAll creates p and any missing parents. Existing directories are fine.
func (f *FS) MkdirAll(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	full := f.abs(p)
	if full == "/" {
		return nil
	}

	cur := ""
	for _, part := range strings.Split(strings.TrimPrefix(full, "/"), "/") {
		cur += "/" + part
		fi, err := f.mem.Stat(cur)
		if err == nil {
			if !fi.IsDir() {
				return pathErr("mkdir", cur, ErrNotDir)
			}
			continue
		}
		if err := f.mem.Mkdir(cur, dirPerm); err != nil {
			return pathErr("mkdir", cur, err)
		}
		f.writes.Add(1)
	}
	return nil
}

// WriteFile replaces the contents of p. The parent directory must exist.
func (f *FS) WriteFile(p string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	full := f.abs(p)
	parent, err := f.stat("write", path.Dir(full))
	if err != nil {
		return pathErr("write", full, ErrNotExist)
	}
	if !parent.IsDir() {
		return pathErr("write", full, ErrNotDir)
	}
	if existing, err := f.mem.Stat(full); err == nil && existing.IsDir() {
		return pathErr("write", full, ErrIsDir)
	}

	if err := afero.WriteFile(f.mem, full, data, filePerm); err != nil {
		return pathErr("write", full, err)
	}
	f.writes.Add(1)
	return nil
}

// ReadFile returns a copy of the contents of p
func (f *FS) ReadFile(p string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	full := f.abs(p)
	return f.readLocked("read", full)
}

func (f *FS) readLocked(op, full string) ([]byte, error) {
	fi, err := f.stat(op, full)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, pathErr(op, full, ErrIsDir)
	}
	data, err := afero.ReadFile(f.mem, full)
	if err != nil {
		return nil, pathErr(op, full, err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// Stat describes p
func (f *FS) Stat(p string) (FileInfo, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	full := f.abs(p)
	fi, err := f.stat("stat", full)
	if err != nil {
		return FileInfo{}, err
	}
	return info(full, fi), nil
}

// Exists reports whether p names a file or directory
func (f *FS) Exists(p string) bool {
	_, err := f.Stat(p)
	return err == nil
}

// ReadDir lists the direct children of p sorted by name
func (f *FS) ReadDir(p string) ([]FileInfo, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	full := f.abs(p)
	fi, err := f.stat("readdir", full)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, pathErr("readdir", full, ErrNotDir)
	}

	children, err := afero.ReadDir(f.mem, full)
	if err != nil {
		return nil, pathErr("readdir", full, err)
	}
	out := make([]FileInfo, 0, len(children))
	for _, child := range children {
		out = append(out, info(path.Join(full, child.Name()), child))
	}
	return out, nil
}

// Remove deletes a file or an empty directory
func (f *FS) Remove(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	full := f.abs(p)
	fi, err := f.stat("remove", full)
	if err != nil {
		return err
	}
	if full == "/" {
		return pathErr("remove", full, ErrNotEmpty)
	}
	if fi.IsDir() {
		children, err := afero.ReadDir(f.mem, full)
		if err != nil {
			return pathErr("remove", full, err)
		}
		if len(children) > 0 {
			return pathErr("remove", full, ErrNotEmpty)
		}
	}
	if err := f.mem.Remove(full); err != nil {
		return pathErr("remove", full, err)
	}
	f.writes.Add(1)
	return nil
}

// Chdir changes the working directory
func (f *FS) Chdir(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	full := f.abs(p)
	fi, err := f.stat("chdir", full)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return pathErr("chdir", full, ErrNotDir)
	}
	f.cwd = full
	return nil
}

// Getwd returns the working directory
func (f *FS) Getwd() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cwd
}

// Abs resolves p the way every other method does
func (f *FS) Abs(p string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.abs(p)
}

// Snapshot copies every regular file keyed by absolute path
func (f *FS) Snapshot() map[string][]byte {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[string][]byte)
	_ = afero.Walk(f.mem, "/", func(p string, fi iofs.FileInfo, err error) error {
		if err != nil || fi.IsDir() {
			return nil
		}
		full := path.Clean("/" + strings.ReplaceAll(p, `\`, "/"))
		if data, err := f.readLocked("snapshot", full); err == nil {
			out[full] = data
		}
		return nil
	})
	return out
}

// Digest fingerprints every file path and content
func (f *FS) Digest() string {
	return f.hasher.HashTree(f.Snapshot())
}

// Writes counts mutations since creation
func (f *FS) Writes() uint64 {
	return f.writes.Load()
}

func info(full string, fi iofs.FileInfo) FileInfo {
	fileInfo := FileInfo{
		Path:    full,
		Name:    path.Base(full),
		IsDir:   fi.IsDir(),
		ModTime: fi.ModTime(),
	}
	if !fi.IsDir() {
		fileInfo.Size = fi.Size()
	}
	return fileInfo
}
