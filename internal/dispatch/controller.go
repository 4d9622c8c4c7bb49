// Package dispatch maps a request path onto a chain of controllers and
// produces the name of the view to render.
package dispatch

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/agentic-research/facade/internal/meta"
)

// Binding is what the dispatcher injects into a controller before running it.
type Binding struct {
	Request *Request
	Params  []string
	Base    string
	View    string
	Charset string
	Logger  *slog.Logger
}

// Controller is one slot of the chain. A fresh instance runs per slot.
type Controller interface {
	Prepare(b Binding)
	Dispatch(ctx context.Context) error
	View() string
	IsForward() bool
	RequestData() *meta.Map
	Header() http.Header
}

// Factory builds a fresh controller.
type Factory func() Controller

// Statuser is implemented by controllers that pick the response status.
type Statuser interface {
	Status() int
}

// Halt stops the chain and answers the request directly. It travels as an
// error so that it crosses every layer up to the transport unchanged.
type Halt struct {
	Status int
	Header http.Header
	Body   []byte
}

func (h *Halt) Error() string {
	if loc := h.Header.Get("Location"); loc != "" {
		return "redirect " + http.StatusText(h.Status) + " to " + loc
	}
	return "halt " + http.StatusText(h.Status)
}
