package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/facade/api"
	"github.com/agentic-research/facade/internal/config"
	"github.com/agentic-research/facade/internal/dispatch"
	"github.com/agentic-research/facade/internal/fault"
	"github.com/agentic-research/facade/internal/pagecache"
)

var site = map[string]string{
	"views/default/index.html":    "---\nlayout: main\ntitle: Home\n---\nhome {{ .greeting }}",
	"views/default/cached.html":   "---\nlayout: main\ncache: true\n---\nhits={{ .hits }}",
	"views/default/uncached.html": "---\nlayout: main\n---\nhits={{ .hits }}",
	"views/default/broken.html":   "---\nlayout: main\n",
	"views/default/form.html":     "---\nlayout: main\n---\nform",
	"views/site/index.html":       "---\nlayout: main\n---\nsite home",
	"layouts/default/main.html":   "[{{ .content }}]",
}

func newFS(t *testing.T, files map[string]string) billy.Filesystem {
	t.Helper()
	fsys := memfs.New()
	for name, body := range files {
		require.NoError(t, util.WriteFile(fsys, name, []byte(body), 0o644))
	}
	return fsys
}

func settings(chain ...string) *config.Settings {
	if len(chain) == 0 {
		chain = []string{"default"}
	}
	return &config.Settings{
		Namespace: chain[0],
		Chain:     chain,
		Charset:   "UTF-8",
		Location:  time.UTC,
	}
}

func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.FS == nil {
		opts.FS = newFS(t, site)
	}
	if opts.Settings == nil {
		opts.Settings = settings()
	}
	e, err := New(opts)
	require.NoError(t, err)
	return e
}

func get(e *Engine, target string) *Response {
	return e.Handle(context.Background(), dispatch.NewRequest("GET", target))
}

func TestHandle_RendersView(t *testing.T) {
	ctrls := dispatch.NewRegistry()
	ctrls.Register(dispatch.Global, dispatch.DefaultController, dispatch.SimpleFactory(dispatch.Methods{
		Get: func(ctx context.Context, c *dispatch.Base) error {
			c.Set("greeting", "hi")
			return nil
		},
	}))
	e := newEngine(t, Options{Controllers: ctrls})

	resp := get(e, "/")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "[home hi]", string(resp.Body))
	assert.Equal(t, "text/html; charset=UTF-8", resp.Header.Get("Content-Type"))
}

func TestHandle_NamespaceOverride(t *testing.T) {
	e := newEngine(t, Options{Settings: settings("site", "default")})
	assert.Equal(t, "[site home]", string(get(e, "/").Body))
	assert.Equal(t, "[form]", string(get(e, "/form").Body))
}

func TestHandle_NotFound(t *testing.T) {
	e := newEngine(t, Options{})
	resp := get(e, "/nowhere")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Contains(t, string(resp.Body), "Page not found")
	assert.Contains(t, string(resp.Body), "/nowhere")
}

func TestHandle_NotFoundViewOverride(t *testing.T) {
	files := map[string]string{
		"views/default/404.html":    "---\nlayout: main\n---\ncustom 404",
		"layouts/default/main.html": "[{{ .content }}]",
	}
	e := newEngine(t, Options{FS: newFS(t, files)})
	resp := get(e, "/nowhere")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, "[custom 404]", string(resp.Body))
}

func TestHandle_NotFoundFallbackText(t *testing.T) {
	files := map[string]string{"views/default/404.html": "---\nlayout: ghost\n---\nx"}
	e := newEngine(t, Options{FS: newFS(t, files)})
	resp := get(e, "/nowhere")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, "Cannot render 404 page!", string(resp.Body))
	assert.Equal(t, "text/plain; charset=UTF-8", resp.Header.Get("Content-Type"))
}

func TestHandle_MalformedViewIsNotFound(t *testing.T) {
	e := newEngine(t, Options{})
	resp := get(e, "/broken")
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

func TestHandle_MissingAncestorIsServerError(t *testing.T) {
	fsys := newFS(t, map[string]string{
		"views/default/index.html":    "---\nlayout: main\n---\nhome",
		"views/default/a/b/leaf.html": "---\nlayout: main\n---\nleaf",
		"layouts/default/main.html":   "{{ range breadcrumbs }}{{ .Name }};{{ end }}{{ .content }}",
	})
	e := newEngine(t, Options{FS: fsys})

	resp := get(e, "/a/b/leaf")
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Contains(t, string(resp.Body), "breadcrumbs")
}

func TestHandle_RequestError(t *testing.T) {
	ctrls := dispatch.NewRegistry()
	ctrls.Register(dispatch.Global, "form", dispatch.SimpleFactory(dispatch.Methods{
		Get: func(ctx context.Context, c *dispatch.Base) error { return nil },
	}))
	e := newEngine(t, Options{Controllers: ctrls})

	resp := e.Handle(context.Background(), dispatch.NewRequest("POST", "/form"))
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Contains(t, string(resp.Body), "Invalid POST request")
	assert.NotContains(t, string(resp.Body), "<pre>")
}

func TestHandle_ControllerFailure(t *testing.T) {
	ctrls := dispatch.NewRegistry()
	ctrls.Register(dispatch.Global, "form", dispatch.SimpleFactory(dispatch.Methods{
		Get: func(ctx context.Context, c *dispatch.Base) error { return errors.New("db down") },
	}))

	e := newEngine(t, Options{Controllers: ctrls})
	resp := get(e, "/form")
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Contains(t, string(resp.Body), "db down")
	assert.NotContains(t, string(resp.Body), "<pre>")

	debug := settings()
	debug.Debug = true
	e = newEngine(t, Options{Controllers: ctrls, Settings: debug})
	resp = get(e, "/form")
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Contains(t, string(resp.Body), "<pre>")
}

func TestHandle_Redirect(t *testing.T) {
	ctrls := dispatch.NewRegistry()
	ctrls.Register(dispatch.Global, "form", dispatch.SimpleFactory(dispatch.Methods{
		Get: func(ctx context.Context, c *dispatch.Base) error {
			c.SetForward("/", true, http.StatusSeeOther)
			return nil
		},
	}))
	e := newEngine(t, Options{Controllers: ctrls})

	resp := get(e, "/form")
	assert.Equal(t, http.StatusSeeOther, resp.Status)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Empty(t, resp.Body)
}

func TestHandle_InitPlugins(t *testing.T) {
	plugins := NewInitPlugins()
	var seen atomic.Int32
	plugins.Register("count", InitPluginFunc(func(ctx context.Context, s *config.Settings, req *dispatch.Request) error {
		seen.Add(1)
		return nil
	}))
	plugins.Register("deny", InitPluginFunc(func(ctx context.Context, s *config.Settings, req *dispatch.Request) error {
		if req.Path == "/form" {
			return errors.New("database offline")
		}
		return nil
	}))
	s := settings()
	s.InitPlugins = []string{"count", "missing", "deny"}
	e := newEngine(t, Options{Settings: s, InitPlugins: plugins})

	assert.Equal(t, http.StatusOK, get(e, "/").Status)
	resp := get(e, "/form")
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Equal(t, "Init error! : init plugin deny (reason : database offline)", string(resp.Body))
	assert.EqualValues(t, 2, seen.Load())
}

func TestNew_UnknownGlobalFilter(t *testing.T) {
	s := settings()
	s.Filters = []api.Filter{{Name: "nope"}}
	_, err := New(Options{FS: newFS(t, site), Settings: s})
	var fe *fault.FatalInitError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "filters", fe.Op)

	resp := InitErrorResponse(err)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Contains(t, string(resp.Body), "Init error! : filters")
}

func TestHandle_PageCache(t *testing.T) {
	cache, err := pagecache.Open(filepath.Join(t.TempDir(), "pages.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	var hits atomic.Int32
	ctrls := dispatch.NewRegistry()
	ctrls.Register(dispatch.Global, dispatch.DefaultController, dispatch.SimpleFactory(dispatch.Methods{
		Get: func(ctx context.Context, c *dispatch.Base) error {
			c.Set("hits", hits.Add(1))
			return nil
		},
	}))
	s := settings()
	s.Cache = true
	e := newEngine(t, Options{Settings: s, Controllers: ctrls, Cache: cache})

	first := get(e, "/cached")
	assert.Equal(t, "[hits=1]", string(first.Body))
	second := get(e, "/cached")
	assert.True(t, second.Cached)
	assert.Equal(t, "[hits=1]", string(second.Body))
	assert.Equal(t, "[hits=2]", string(get(e, "/cached?page=2").Body))

	assert.Equal(t, "[hits=3]", string(get(e, "/uncached").Body))
	assert.Equal(t, "[hits=4]", string(get(e, "/uncached").Body))

	e.Reload(context.Background())
	assert.Equal(t, "[hits=5]", string(get(e, "/cached").Body))
}

func TestHandle_PageCacheKeepsUnderscorePathsApart(t *testing.T) {
	cache, err := pagecache.Open(filepath.Join(t.TempDir(), "pages.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	fsys := newFS(t, map[string]string{
		"views/default/a/b.html":    "---\nlayout: main\ncache: true\n---\nslash",
		"views/default/a_b.html":    "---\nlayout: main\ncache: true\n---\nunderscore",
		"layouts/default/main.html": "[{{ .content }}]",
	})
	s := settings()
	s.Cache = true
	e := newEngine(t, Options{FS: fsys, Settings: s, Cache: cache})

	assert.Equal(t, "[slash]", string(get(e, "/a/b").Body))
	resp := get(e, "/a_b")
	assert.False(t, resp.Cached)
	assert.Equal(t, "[underscore]", string(resp.Body))

	resp = get(e, "/a/b")
	assert.True(t, resp.Cached)
	assert.Equal(t, "[slash]", string(resp.Body))
	resp = get(e, "/a_b")
	assert.True(t, resp.Cached)
	assert.Equal(t, "[underscore]", string(resp.Body))
}

func TestNew_NamespaceLogLevel(t *testing.T) {
	newLogged := func(level slog.Level, debug bool) (*Engine, *bytes.Buffer) {
		var buf bytes.Buffer
		// the process handler is stricter than any namespace level below
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}))
		s := settings()
		s.LogLevel = level
		return newEngine(t, Options{Settings: s, Logger: logger, Debug: debug}), &buf
	}

	e, buf := newLogged(slog.LevelWarn, false)
	get(e, "/")
	get(e, "/missing")
	get(e, "/broken")
	out := buf.String()
	assert.NotContains(t, out, "level=DEBUG")
	assert.NotContains(t, out, "dispatched")
	assert.Contains(t, out, `level=WARN msg="malformed view"`)
	assert.Contains(t, out, "namespace=default")

	e, buf = newLogged(slog.LevelDebug, false)
	get(e, "/")
	assert.Contains(t, buf.String(), `level=DEBUG msg=dispatched`)

	e, buf = newLogged(slog.LevelError, true)
	get(e, "/missing")
	assert.Contains(t, buf.String(), `level=DEBUG msg="not found"`)
}

func TestReload(t *testing.T) {
	fsys := newFS(t, site)
	e := newEngine(t, Options{FS: fsys})
	assert.Equal(t, "[home ]", string(get(e, "/").Body))

	require.NoError(t, util.WriteFile(fsys, "views/default/index.html", []byte("---\nlayout: main\n---\nchanged"), 0o644))
	require.NoError(t, util.WriteFile(fsys, "layouts/default/main.html", []byte("<{{ .content }}>"), 0o644))
	assert.Equal(t, "[home ]", string(get(e, "/").Body))

	e.Reload(context.Background())
	assert.Equal(t, "<changed>", string(get(e, "/").Body))
}

func TestResponseWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	resp := &Response{Status: http.StatusTeapot, Header: http.Header{"X-A": {"1"}}, Body: []byte("tea")}
	require.NoError(t, resp.Write(rec))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-A"))
	assert.Equal(t, "3", rec.Header().Get("Content-Length"))
	assert.Equal(t, "tea", rec.Body.String())
}
