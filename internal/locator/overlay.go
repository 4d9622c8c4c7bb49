package locator

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"
)

var errReadOnly = errors.New("read-only filesystem")

// Overlay is a read-only billy.Filesystem that unions a list of roots.
// A path resolves in the first root that has it; directory listings merge
// every root, keeping the first entry for each name.
type Overlay struct {
	roots   Roots
	created time.Time
}

// NewOverlay returns an Overlay over roots.
func NewOverlay(roots Roots) *Overlay {
	return &Overlay{roots: roots, created: time.Now()}
}

// Roots returns the roots backing the overlay.
func (o *Overlay) Roots() Roots { return o.roots }

// Locate returns the namespace and root-relative path backing filename.
func (o *Overlay) Locate(filename string) (Hit, error) {
	rel := Rel(filename)
	for i, r := range o.roots {
		fi, err := r.FS.Stat(rel)
		if err != nil {
			continue
		}
		if fi.IsDir() {
			continue
		}
		return Hit{Root: i, Namespace: r.Namespace, Path: rel}, nil
	}
	return Hit{}, ErrNotFound
}

// --- billy.Basic ---

func (o *Overlay) Create(filename string) (billy.File, error) {
	return nil, errReadOnly
}

func (o *Overlay) Open(filename string) (billy.File, error) {
	return o.OpenFile(filename, os.O_RDONLY, 0)
}

func (o *Overlay) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		return nil, errReadOnly
	}
	hit, err := o.Locate(filename)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}
	return o.roots[hit.Root].FS.Open(hit.Path)
}

func (o *Overlay) Stat(filename string) (os.FileInfo, error) {
	return o.Lstat(filename)
}

func (o *Overlay) Rename(oldpath, newpath string) error { return errReadOnly }

func (o *Overlay) Remove(filename string) error { return errReadOnly }

func (o *Overlay) Join(elem ...string) string {
	return path.Join(elem...)
}

// --- billy.TempFile ---

func (o *Overlay) TempFile(dir, prefix string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (o *Overlay) ReadDir(dirname string) ([]os.FileInfo, error) {
	rel := Rel(dirname)
	seen := make(map[string]bool)
	var infos []os.FileInfo
	found := false
	for _, r := range o.roots {
		entries, err := r.FS.ReadDir(rel)
		if err != nil {
			continue
		}
		found = true
		for _, e := range entries {
			if seen[e.Name()] {
				continue
			}
			seen[e.Name()] = true
			infos = append(infos, e)
		}
	}
	if !found {
		return nil, &os.PathError{Op: "readdir", Path: dirname, Err: os.ErrNotExist}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
	return infos, nil
}

func (o *Overlay) MkdirAll(filename string, perm os.FileMode) error {
	return errReadOnly
}

// --- billy.Symlink ---

func (o *Overlay) Lstat(filename string) (os.FileInfo, error) {
	rel := Rel(filename)
	if rel == "." {
		return &staticFileInfo{name: "/", mode: os.ModeDir | 0o555, modTime: o.created}, nil
	}
	for _, r := range o.roots {
		if fi, err := r.FS.Stat(rel); err == nil {
			return fi, nil
		}
	}
	return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
}

func (o *Overlay) Symlink(target, link string) error {
	return billy.ErrNotSupported
}

func (o *Overlay) Readlink(link string) (string, error) {
	return "", billy.ErrNotSupported
}

// --- billy.Chroot ---

func (o *Overlay) Chroot(p string) (billy.Filesystem, error) {
	return chroot.New(o, p), nil
}

func (o *Overlay) Root() string {
	return "/"
}

// --- billy.Capable ---

func (o *Overlay) Capabilities() billy.Capability {
	return billy.ReadCapability | billy.SeekCapability
}

// ReadFile reads filename from the first root that has it.
func (o *Overlay) ReadFile(filename string) ([]byte, error) {
	f, err := o.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// staticFileInfo implements os.FileInfo with static values.
type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() interface{}   { return nil }

// Compile-time interface checks.
var (
	_ billy.Filesystem = (*Overlay)(nil)
	_ billy.Capable    = (*Overlay)(nil)
)

// String describes the overlay for logs.
func (o *Overlay) String() string {
	return fmt.Sprintf("overlay%v", o.roots.Namespaces())
}
