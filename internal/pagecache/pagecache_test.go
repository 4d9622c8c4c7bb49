package pagecache

import (
	"context"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "pages.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestKey(t *testing.T) {
	k := Key("default", "/blog/post/", url.Values{"b": {"2"}, "a": {"1"}})
	assert.True(t, strings.HasPrefix(k, "default_blog_post___"), k)
	assert.Len(t, strings.TrimPrefix(k, "default_blog_post___"), 64)

	// parameter order does not matter
	assert.Equal(t, k, Key("default", "/blog/post/", url.Values{"a": {"1"}, "b": {"2"}}))
	assert.NotEqual(t, k, Key("default", "/blog/post/", url.Values{"a": {"1"}}))
	assert.NotEqual(t, k, Key("site", "/blog/post/", url.Values{"a": {"1"}, "b": {"2"}}))

	assert.NotEqual(t, Key("default", "/a/b", nil), Key("default", "/a_b", nil))
	assert.NotEqual(t, Key("default", "/a_b", nil), Key("default", "/a%5Fb", nil))
}

func TestPutKeepsUnderscorePathsApart(t *testing.T) {
	ctx := context.Background()
	c := openTest(t)

	for _, req := range []string{"/a/b", "/a_b"} {
		require.NoError(t, c.Put(ctx, Key("default", req, nil), "default", req, &Entry{Status: 200, Body: []byte(req)}))
	}
	for _, req := range []string{"/a/b", "/a_b"} {
		e, err := c.Get(ctx, Key("default", req, nil))
		require.NoError(t, err)
		assert.Equal(t, req, string(e.Body))
	}
}

func TestGetPut(t *testing.T) {
	ctx := context.Background()
	c := openTest(t)

	key := Key("default", "/about/", nil)
	_, err := c.Get(ctx, key)
	assert.ErrorIs(t, err, ErrMiss)

	h := http.Header{}
	h.Set("Content-Type", "text/html; charset=UTF-8")
	require.NoError(t, c.Put(ctx, key, "default", "/about/", &Entry{Status: 200, Header: h, Body: []byte("<p>about</p>")}))

	e, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 200, e.Status)
	assert.Equal(t, "text/html; charset=UTF-8", e.Header.Get("Content-Type"))
	assert.Equal(t, "<p>about</p>", string(e.Body))
	assert.False(t, e.Stored.IsZero())

	require.NoError(t, c.Put(ctx, key, "default", "/about/", &Entry{Status: 200, Body: []byte("v2")}))
	e, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(e.Body))
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	c := openTest(t)

	for _, p := range []struct{ ns, req string }{
		{"default", "/blog/"},
		{"default", "/blog/post/"},
		{"default", "/about/"},
		{"site", "/blog/"},
	} {
		require.NoError(t, c.Put(ctx, Key(p.ns, p.req, nil), p.ns, p.req, &Entry{Status: 200}))
	}

	n, err := c.Purge(ctx, "default", "/blog/")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = c.Get(ctx, Key("site", "/blog/", nil))
	assert.NoError(t, err)
	_, err = c.Get(ctx, Key("default", "/about/", nil))
	assert.NoError(t, err)

	// prefixes are compared by character, not byte
	require.NoError(t, c.Put(ctx, Key("default", "/café/menu/", nil), "default", "/café/menu/", &Entry{Status: 200}))
	n, err = c.Purge(ctx, "default", "/café/")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = c.Purge(ctx, "", "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	l, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, l)
}

func TestPersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pages.db")

	c, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "k", "default", "/", &Entry{Status: 200, Body: []byte("x")}))
	require.NoError(t, c.Close())

	c, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	e, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "x", string(e.Body))
}
