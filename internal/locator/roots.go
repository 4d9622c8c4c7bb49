package locator

import (
	"path"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"
)

// NamespaceRoots builds one root per namespace in chain, each rooted at
// kind/<namespace> inside fsys. Namespaces without that directory are
// skipped. extra roots are appended last.
func NamespaceRoots(fsys billy.Filesystem, kind string, chain []string, extra ...Root) Roots {
	roots := make(Roots, 0, len(chain)+len(extra))
	if fsys != nil {
		for _, ns := range chain {
			dir := path.Join(kind, ns)
			fi, err := fsys.Stat(dir)
			if err != nil || !fi.IsDir() {
				continue
			}
			roots = append(roots, Root{Namespace: ns, FS: chroot.New(fsys, dir)})
		}
	}
	for _, r := range extra {
		if r.FS != nil {
			roots = append(roots, r)
		}
	}
	return roots
}

// Sub narrows root to its kind subdirectory. It reports false when the
// directory is missing. Library roots hold several kinds under one tree.
func Sub(root Root, kind string) (Root, bool) {
	fi, err := root.FS.Stat(kind)
	if err != nil || !fi.IsDir() {
		return Root{}, false
	}
	return Root{Namespace: root.Namespace, FS: chroot.New(root.FS, kind)}, true
}
