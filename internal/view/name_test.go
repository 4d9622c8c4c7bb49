package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	tests := map[string]string{
		"":           "/",
		"/":          "/",
		".":          "/",
		"foo":        "/foo/",
		"/foo/bar":   "/foo/bar/",
		"foo/bar/":   "/foo/bar/",
		"//foo//x/":  "/foo/x/",
		"/a/../b":    "/b/",
		"index":      "/",
		"/index/":    "/",
		"/foo/index": "/foo/",
		"foo/index/": "/foo/",
		"/index/foo": "/index/foo/",
	}
	for in, want := range tests {
		assert.Equal(t, want, Canonical(in), "Canonical(%q)", in)
	}
}

func TestParentName(t *testing.T) {
	assert.Equal(t, "", ParentName("/"))
	assert.Equal(t, "/", ParentName("/foo/"))
	assert.Equal(t, "/foo/", ParentName("foo/bar"))
}

func TestSegmentsAndDepth(t *testing.T) {
	assert.Nil(t, Segments("/"))
	assert.Equal(t, []string{"a", "b"}, Segments("/a/b/"))
	assert.Equal(t, 2, Depth("a/b"))
	assert.Equal(t, 0, Depth(""))
}

func TestIsAncestor(t *testing.T) {
	assert.True(t, IsAncestor("/", "/a/"))
	assert.True(t, IsAncestor("/a/", "/a/b/"))
	assert.False(t, IsAncestor("/a/", "/a/"))
	assert.False(t, IsAncestor("/a/", "/ab/"))
	assert.False(t, IsAncestor("/a/b/", "/a/"))
}
