package view

import (
	"path"
	"strings"
)

// Canonical view names are slash delimited with a leading and trailing
// slash: "/", "/blog/", "/blog/2024/". Identity in the registry is the
// canonical name, so every lookup goes through Canonical first.

// Canonical normalizes name. A trailing "index" segment names its
// directory, so "", "/", "." and "index" all name the root and "/foo/index"
// is "/foo/".
func Canonical(name string) string {
	p := strings.Trim(path.Clean("/"+name), "/")
	if p == "index" {
		p = ""
	}
	p = strings.TrimSuffix(p, "/index")
	if p == "" || p == "." {
		return "/"
	}
	return "/" + p + "/"
}

// ParentName returns the canonical name one level up, or "" for the root.
func ParentName(name string) string {
	c := Canonical(name)
	if c == "/" {
		return ""
	}
	return Canonical(path.Dir(strings.TrimSuffix(c, "/")))
}

// Segments splits a name into its path segments. The root has none.
func Segments(name string) []string {
	c := strings.Trim(Canonical(name), "/")
	if c == "" {
		return nil
	}
	return strings.Split(c, "/")
}

// Depth is the number of segments in name.
func Depth(name string) int {
	return len(Segments(name))
}

// IsAncestor reports whether a is a strict ancestor of b.
func IsAncestor(a, b string) bool {
	a, b = Canonical(a), Canonical(b)
	return a != b && strings.HasPrefix(b, a)
}

// ChildName joins a parent name and a base segment.
func ChildName(parent, base string) string {
	return Canonical(Canonical(parent) + base)
}
