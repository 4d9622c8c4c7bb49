package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/facade/api"
	"github.com/agentic-research/facade/internal/dispatch"
)

func newServer(t *testing.T) *Server {
	t.Helper()
	fsys := memfs.New()
	files := map[string]string{
		"views/default/index.html":  "---\nlayout: main\n---\ndefault {{ .name }}",
		"views/shop/index.html":     "---\nlayout: main\n---\nshop",
		"layouts/default/main.html": "<{{ .content }}>",
	}
	for name, body := range files {
		require.NoError(t, util.WriteFile(fsys, name, []byte(body), 0o644))
	}

	site := &api.Site{Namespaces: []api.Namespace{
		{Name: "default"},
		{Name: "shop", Hosts: []string{"store.example.com"}},
		{Name: "shop_example_org", Overrides: "shop"},
		{Name: "broken", Hosts: []string{"broken.example.com"}, Filters: []api.Filter{{Name: "nope"}}},
	}}

	ctrls := dispatch.NewRegistry()
	ctrls.Register(dispatch.Global, dispatch.DefaultController, dispatch.SimpleFactory(dispatch.Methods{
		Get: func(ctx context.Context, c *dispatch.Base) error {
			c.Set("name", c.Request().Param("name"))
			return nil
		},
	}))
	return New(Options{Site: site, FS: fsys, Controllers: ctrls})
}

func do(t *testing.T, h http.Handler, host, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Host = host
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServe_VirtualHosts(t *testing.T) {
	s := newServer(t)
	h := s.Handler()

	rec := do(t, h, "localhost:8080", "/?name=ada")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<default ada>", rec.Body.String())

	rec = do(t, h, "store.example.com", "/")
	assert.Equal(t, "<shop>", rec.Body.String())

	// host shop-example.org maps to namespace shop_example_org
	rec = do(t, h, "shop-example.org", "/")
	assert.Equal(t, "<shop>", rec.Body.String())

	assert.Equal(t, []string{"default", "shop", "shop_example_org"}, s.Namespaces())
}

func TestServe_RequestID(t *testing.T) {
	h := newServer(t).Handler()
	a := do(t, h, "localhost", "/").Header().Get(RequestIDHeader)
	b := do(t, h, "localhost", "/").Header().Get(RequestIDHeader)
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestServe_InitError(t *testing.T) {
	s := newServer(t)
	rec := do(t, s.Handler(), "broken.example.com", "/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Init error! : filters"), rec.Body.String())
	assert.Equal(t, "text/plain; charset=UTF-8", rec.Header().Get("Content-Type"))
	assert.NotContains(t, s.Namespaces(), "broken")
}

func TestServe_NotFound(t *testing.T) {
	rec := do(t, newServer(t).Handler(), "localhost", "/missing/page")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEngine_BuiltOnce(t *testing.T) {
	s := newServer(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Engine("shop")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	a, err := s.Engine("shop")
	require.NoError(t, err)
	b, err := s.Engine("shop")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestServe_GracefulShutdown(t *testing.T) {
	s := newServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "<default >", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
