// Package server exposes the engines over HTTP. The request host picks the
// namespace; engines are built on first use.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/sync/singleflight"

	"github.com/agentic-research/facade/api"
	"github.com/agentic-research/facade/internal/config"
	"github.com/agentic-research/facade/internal/dispatch"
	"github.com/agentic-research/facade/internal/engine"
	"github.com/agentic-research/facade/internal/fault"
	"github.com/agentic-research/facade/internal/layout"
	"github.com/agentic-research/facade/internal/locator"
	"github.com/agentic-research/facade/internal/pagecache"
)

// RequestIDHeader carries the request ID back to the client.
const RequestIDHeader = "X-Request-Id"

// Options configure a Server.
type Options struct {
	Site *api.Site
	// FS is the site tree, holding the views and layouts directories.
	FS billy.Filesystem
	// Namespace serves hosts that match no configured namespace.
	Namespace   string
	Controllers *dispatch.Registry
	Filters     *layout.Filters
	ViewPlugins *layout.Plugins
	InitPlugins *engine.InitPlugins
	Cache       *pagecache.Cache
	Logger      *slog.Logger
	// Debug forces debug logging in every namespace.
	Debug bool
}

// Server routes HTTP requests to per-namespace engines.
type Server struct {
	opts   Options
	router *mux.Router
	log    *slog.Logger

	mu      sync.RWMutex
	engines map[string]*engine.Engine
	group   singleflight.Group
}

func New(opts Options) *Server {
	if opts.Namespace == "" {
		opts.Namespace = locator.DefaultNamespace
	}
	if opts.Controllers == nil {
		opts.Controllers = dispatch.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		opts:    opts,
		router:  mux.NewRouter(),
		log:     opts.Logger,
		engines: make(map[string]*engine.Engine),
	}
	s.router.Use(s.requestID)
	s.router.PathPrefix("/").HandlerFunc(s.serve)
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

type ctxKey struct{}

// RequestID returns the ID the middleware assigned to the request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	ns := config.NamespaceForHost(s.opts.Site, r.Host, s.opts.Namespace)
	log := s.log.With("request_id", RequestID(r.Context()), "namespace", ns, "path", r.URL.Path)

	eng, err := s.Engine(ns)
	if err != nil {
		log.Error("namespace unavailable", "error", err)
		s.write(w, log, engine.InitErrorResponse(err))
		return
	}

	req, err := dispatch.FromHTTP(r)
	if err != nil {
		log.Info("bad request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.ID = RequestID(r.Context())

	resp := eng.Handle(r.Context(), req)
	s.write(w, log, resp)
	log.Info("served", "method", r.Method, "status", resp.Status, "cached", resp.Cached,
		"duration", time.Since(req.Start))
}

func (s *Server) write(w http.ResponseWriter, log *slog.Logger, resp *engine.Response) {
	if err := resp.Write(w); err != nil {
		log.Debug("write response", "error", err)
	}
}

// Engine returns the engine of namespace ns, building it on first use.
// Failed builds are not kept, so the next request retries.
func (s *Server) Engine(ns string) (*engine.Engine, error) {
	s.mu.RLock()
	e, ok := s.engines[ns]
	s.mu.RUnlock()
	if ok {
		return e, nil
	}

	v, err, _ := s.group.Do(ns, func() (any, error) {
		s.mu.RLock()
		e, ok := s.engines[ns]
		s.mu.RUnlock()
		if ok {
			return e, nil
		}
		e, err := s.build(ns)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.engines[ns] = e
		s.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*engine.Engine), nil
}

func (s *Server) build(ns string) (*engine.Engine, error) {
	settings, err := config.Resolve(s.opts.Site, ns)
	if err != nil {
		return nil, fault.FatalInit("namespace "+ns, err)
	}
	return engine.New(engine.Options{
		FS:          s.opts.FS,
		Settings:    settings,
		Controllers: s.opts.Controllers,
		Filters:     s.opts.Filters,
		ViewPlugins: s.opts.ViewPlugins,
		InitPlugins: s.opts.InitPlugins,
		Cache:       s.opts.Cache,
		Logger:      s.log,
		Debug:       s.opts.Debug,
	})
}

// Namespaces lists the namespaces with a built engine.
func (s *Server) Namespaces() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.engines))
	for ns := range s.engines {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Reload reloads every built engine.
func (s *Server) Reload(ctx context.Context) {
	s.mu.RLock()
	engines := make([]*engine.Engine, 0, len(s.engines))
	for _, e := range s.engines {
		engines = append(engines, e)
	}
	s.mu.RUnlock()
	for _, e := range engines {
		e.Reload(ctx)
	}
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
