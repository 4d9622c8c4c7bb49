package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/agentic-research/facade/internal/meta"
	"github.com/agentic-research/facade/internal/view"
)

// DefaultController runs first on every request, with every path segment as
// parameters.
const DefaultController = "default"

// MaxForwards bounds the number of internal forwards per request.
const MaxForwards = 32

// Options configure a Dispatcher.
type Options struct {
	// Chain is the namespace chain used to look up controllers.
	Chain   []string
	Charset string
	Logger  *slog.Logger
}

// Dispatcher runs the controller chain for a request. It holds no
// per-request state and is safe for concurrent use.
type Dispatcher struct {
	controllers *Registry
	views       view.Source
	chain       []string
	charset     string
	log         *slog.Logger
}

// New returns a Dispatcher resolving controllers from controllers and the
// final view from views.
func New(controllers *Registry, views view.Source, opts Options) *Dispatcher {
	d := &Dispatcher{
		controllers: controllers,
		views:       views,
		chain:       opts.Chain,
		charset:     opts.Charset,
		log:         opts.Logger,
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	if d.charset == "" {
		d.charset = "UTF-8"
	}
	return d
}

// Result is the outcome of a dispatch: the view to render and the request
// data gathered along the chain.
type Result struct {
	View   *view.Node
	Data   *meta.Map
	Header http.Header
	// Status is the status picked by the last controller that set one.
	Status int
	// Trace lists the controllers that ran, in order.
	Trace []string
}

type state struct {
	req    *Request
	data   *meta.Map
	header http.Header
	status int
	trace  []string
	hops   int
}

// Dispatch runs the chain for req and resolves the final view. A missing
// view is a fault.NotFoundError; a Halt error carries a response that must
// be sent as is.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (*Result, error) {
	st := &state{req: req, data: meta.New(), header: make(http.Header)}
	name, err := d.dispatch(ctx, st, req.Path, false)
	if err != nil {
		return nil, err
	}
	node, err := d.views.GetContext(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Result{View: node, Data: st.data, Header: st.header, Status: st.status, Trace: st.trace}, nil
}

type slot struct {
	name   string
	params []string
}

func (d *Dispatcher) dispatch(ctx context.Context, st *state, path string, loop bool) (string, error) {
	trimmed := strings.Trim(path, "/")
	var parts []string
	if trimmed != "" {
		parts = strings.Split(trimmed, "/")
	}
	filtered := FilterName(path)
	var base string
	var rest []string
	if len(parts) > 0 {
		base = FilterName(parts[0])
		rest = parts[1:]
	}

	slots := make([]slot, 0, 3)
	if !loop {
		slots = append(slots, slot{DefaultController, parts})
	}
	slots = append(slots, slot{filtered, nil}, slot{base, rest})

	current := path
	for _, s := range slots {
		if s.name == "" {
			continue
		}
		f, ok := d.controllers.Lookup(d.chain, s.name)
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		c := f()
		c.Prepare(Binding{
			Request: st.req,
			Params:  s.params,
			Base:    base,
			View:    current,
			Charset: d.charset,
			Logger:  d.log.With("controller", s.name),
		})
		if err := c.Dispatch(ctx); err != nil {
			return "", err
		}
		st.trace = append(st.trace, s.name)
		current = c.View()
		st.data.Merge(c.RequestData())
		for k, v := range c.Header() {
			st.header[k] = v
		}
		if sc, ok := c.(Statuser); ok && sc.Status() != 0 {
			st.status = sc.Status()
		}

		if c.IsForward() {
			st.hops++
			if st.hops > MaxForwards {
				return "", fmt.Errorf("too many forwards, last to %q", current)
			}
			d.log.Debug("forward", "from", path, "to", current, "controller", s.name)
			return d.dispatch(ctx, st, current, true)
		}
	}
	return current, nil
}

// FilterName removes every character that is not an ASCII letter or digit.
func FilterName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
