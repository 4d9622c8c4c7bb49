package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/agentic-research/facade/internal/fault"
	"github.com/agentic-research/facade/internal/meta"
)

// ErrorView is the view a controller forwards to when it fails.
const ErrorView = "error"

// Base holds the per-instance dispatch state and implements every Controller
// method except Dispatch. Custom controllers embed it.
type Base struct {
	req     *Request
	params  []string
	base    string
	view    string
	charset string
	log     *slog.Logger

	forward      bool
	redirect     bool
	isError      bool
	redirectCode int
	status       int

	data   *meta.Map
	header http.Header
}

// Prepare implements Controller.
func (b *Base) Prepare(bd Binding) {
	b.req = bd.Request
	b.params = bd.Params
	b.base = bd.Base
	b.view = bd.View
	b.charset = bd.Charset
	b.log = bd.Logger
	if b.charset == "" {
		b.charset = "UTF-8"
	}
	if b.log == nil {
		b.log = slog.Default()
	}
}

// Charset is the namespace charset. The engine derives the default
// Content-Type from it when no controller sets one.
func (b *Base) Charset() string { return b.charset }

func (b *Base) View() string         { return b.view }
func (b *Base) SetView(v string)     { b.view = v }
func (b *Base) IsForward() bool      { return b.forward }
func (b *Base) IsRedirect() bool     { return b.redirect }
func (b *Base) IsError() bool        { return b.isError }
func (b *Base) Request() *Request    { return b.req }
func (b *Base) Params() []string     { return b.params }
func (b *Base) BaseName() string     { return b.base }
func (b *Base) Logger() *slog.Logger { return b.log }

// Param returns the i-th path parameter or "".
func (b *Base) Param(i int) string {
	if i < 0 || i >= len(b.params) {
		return ""
	}
	return b.params[i]
}

// Status returns the status chosen by the controller, 0 when unset.
func (b *Base) Status() int { return b.status }

// SetStatus chooses the response status.
func (b *Base) SetStatus(code int) { b.status = code }

// SetForward moves the request to another view. With redirect set the
// client is sent there with code (302 when zero) instead.
func (b *Base) SetForward(to string, redirect bool, code int) {
	if code == 0 {
		code = http.StatusFound
	}
	b.forward = true
	b.view = to
	b.redirect = redirect
	b.redirectCode = code
}

// ForwardError forwards to the error view with the message and the stack
// trace of err as request data.
func (b *Base) ForwardError(msg string, status int, err error) {
	b.Set("error", msg)
	b.Set("stack_trace", fault.StackTrace(err))
	b.SetForward(ErrorView, false, 0)
	b.isError = true
	b.status = status
}

// Set stores request data for the view.
func (b *Base) Set(key string, value any) {
	if b.data == nil {
		b.data = meta.New()
	}
	b.data.Set(key, value)
}

// Get returns request data stored by this controller.
func (b *Base) Get(key string) any {
	return b.data.Value(key)
}

// RequestData implements Controller.
func (b *Base) RequestData() *meta.Map {
	if b.data == nil {
		b.data = meta.New()
	}
	return b.data
}

// Header implements Controller.
func (b *Base) Header() http.Header {
	if b.header == nil {
		b.header = make(http.Header)
	}
	return b.header
}

// AddHeader sets a response header.
func (b *Base) AddHeader(key, value string) {
	b.Header().Set(key, value)
}

// redirectHalt returns the redirect to perform after a successful dispatch,
// or nil.
func (b *Base) redirectHalt() *Halt {
	if !b.forward || b.isError || !b.redirect {
		return nil
	}
	h := b.Header().Clone()
	h.Set("Location", redirectTarget(b.view))
	return &Halt{Status: b.redirectCode, Header: h}
}

func redirectTarget(to string) string {
	if u, err := url.Parse(to); err == nil && u.IsAbs() {
		return to
	}
	if strings.HasPrefix(to, "/") {
		return to
	}
	return "/" + to
}

// Action is a request method handler for Simple.
type Action func(ctx context.Context, c *Base) error

// Methods are the handlers of a Simple controller. A nil handler rejects the
// method with a RequestError.
type Methods struct {
	Get  Action
	Post Action
}

// Simple routes GET and POST to its Methods. Request errors propagate; any
// other failure, including a panic, forwards to the error view with a 500.
type Simple struct {
	Base
	methods Methods
}

// NewSimple returns a Simple controller.
func NewSimple(m Methods) *Simple {
	return &Simple{methods: m}
}

// SimpleFactory returns a Factory producing Simple controllers.
func SimpleFactory(m Methods) Factory {
	return func() Controller { return NewSimple(m) }
}

// Dispatch implements Controller.
func (s *Simple) Dispatch(ctx context.Context) error {
	if err := s.dispatchMethods(ctx, s.methods); err != nil {
		return err
	}
	if h := s.redirectHalt(); h != nil {
		return h
	}
	return nil
}

func (b *Base) dispatchMethods(ctx context.Context, m Methods) error {
	var action Action
	switch {
	case b.req.IsPost():
		action = m.Post
		if action == nil {
			return &fault.RequestError{Msg: "Invalid POST request", Status: http.StatusBadRequest}
		}
	case b.req.IsGet():
		action = m.Get
		if action == nil {
			return &fault.RequestError{Msg: "Invalid GET request", Status: http.StatusBadRequest}
		}
	default:
		return &fault.RequestError{Msg: "Invalid method", Status: http.StatusMethodNotAllowed}
	}

	err := b.run(ctx, action)
	if err == nil {
		return nil
	}
	if passThrough(err) {
		return err
	}
	b.log.Error("controller failed", "base", b.base, "error", err)
	b.ForwardError(err.Error(), http.StatusInternalServerError, err)
	return nil
}

// run invokes action, turning a panic into an error with a stack trace.
func (b *Base) run(ctx context.Context, action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.WithStack(fmt.Errorf("panic: %v", r))
		}
	}()
	return action(ctx, b)
}

// passThrough reports errors that must leave the controller untouched.
func passThrough(err error) bool {
	var re *fault.RequestError
	var h *Halt
	return pkgerrors.As(err, &re) || pkgerrors.As(err, &h) || ctxErr(err)
}

func ctxErr(err error) bool {
	return pkgerrors.Is(err, context.Canceled) || pkgerrors.Is(err, context.DeadlineExceeded)
}
