// Package builtin carries the framework library: fallback views for the
// not-found, request-error and error pages, and the default layout. It is
// appended after every namespace root, so any site can override it.
package builtin

import (
	"embed"
	"io/fs"
	"sync"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/facade/internal/locator"
)

// Namespace is the namespace of the library roots.
const Namespace = "lib"

//go:embed lib
var files embed.FS

var library = sync.OnceValues(func() (billy.Filesystem, error) {
	mem := memfs.New()
	err := fs.WalkDir(files, "lib", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := files.ReadFile(p)
		if err != nil {
			return err
		}
		return util.WriteFile(mem, p[len("lib/"):], data, 0o644)
	})
	return mem, err
})

// Views returns the library view root.
func Views() locator.Root { return sub("views") }

// Layouts returns the library layout root.
func Layouts() locator.Root { return sub("layouts") }

func sub(kind string) locator.Root {
	mem, err := library()
	if err != nil {
		// embedded files are fixed at build time
		panic(err)
	}
	r, _ := locator.Sub(locator.Root{Namespace: Namespace, FS: mem}, kind)
	return r
}
