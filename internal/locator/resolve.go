// Package locator maps logical names onto files across an ordered list of
// namespace roots. The first root is the most specific namespace and the last
// is the framework library, so earlier roots shadow later ones.
package locator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"syscall"

	billy "github.com/go-git/go-billy/v5"
)

// ErrNotFound is returned when no root satisfies any candidate.
var ErrNotFound = errors.New("not found")

// Root is one namespace directory.
type Root struct {
	Namespace string
	FS        billy.Filesystem
}

// Roots is ordered from most to least specific.
type Roots []Root

// Namespaces returns the namespace of every root in order.
func (rs Roots) Namespaces() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Namespace
	}
	return out
}

// Form names one way a logical name can be backed by a file.
type Form int

const (
	// IndexForm backs name by <name>/index<ext>.
	IndexForm Form = iota
	// SiblingForm backs name by <name><ext>.
	SiblingForm
)

func (f Form) String() string {
	if f == IndexForm {
		return "index"
	}
	return "sibling"
}

// Candidate turns a logical name into a relative file path.
type Candidate struct {
	Form Form
	Ext  string
}

// Index returns the <name>/index<ext> candidate.
func Index(ext string) Candidate { return Candidate{Form: IndexForm, Ext: ext} }

// Sibling returns the <name><ext> candidate.
func Sibling(ext string) Candidate { return Candidate{Form: SiblingForm, Ext: ext} }

// Path returns the candidate file for name, relative to a root.
func (c Candidate) Path(name string) string {
	rel := Rel(name)
	switch c.Form {
	case IndexForm:
		if rel == "." {
			return "index" + c.Ext
		}
		return rel + "/index" + c.Ext
	default:
		if rel == "." {
			return ""
		}
		return rel + c.Ext
	}
}

// Hit is a successful resolution.
type Hit struct {
	Root      int
	Namespace string
	Path      string
	Form      Form
}

// Resolve searches roots in order and, inside each root, candidates in order.
// It never caches and has no side effects.
func Resolve(name string, roots Roots, candidates ...Candidate) (Hit, error) {
	for i, r := range roots {
		for _, c := range candidates {
			hit, ok, err := probe(i, r, c, name)
			if err != nil {
				return Hit{}, err
			}
			if ok {
				return hit, nil
			}
		}
	}
	return Hit{}, ErrNotFound
}

// ResolveByForm searches every root for the first candidate before moving on
// to the next candidate, so an earlier form wins over namespace order.
func ResolveByForm(name string, roots Roots, candidates ...Candidate) (Hit, error) {
	for _, c := range candidates {
		for i, r := range roots {
			hit, ok, err := probe(i, r, c, name)
			if err != nil {
				return Hit{}, err
			}
			if ok {
				return hit, nil
			}
		}
	}
	return Hit{}, ErrNotFound
}

func probe(i int, r Root, c Candidate, name string) (Hit, bool, error) {
	p := c.Path(name)
	if p == "" {
		return Hit{}, false, nil
	}
	fi, err := r.FS.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return Hit{}, false, nil
		}
		return Hit{}, false, fmt.Errorf("stat %s in %s: %w", p, r.Namespace, err)
	}
	if fi.IsDir() {
		return Hit{}, false, nil
	}
	return Hit{Root: i, Namespace: r.Namespace, Path: p, Form: c.Form}, true, nil
}

// Rel converts a logical name into a clean root-relative path. The root
// itself is ".".
func Rel(name string) string {
	p := strings.Trim(path.Clean("/"+name), "/")
	if p == "" {
		return "."
	}
	return p
}
