package engine

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/agentic-research/facade/internal/fault"
)

// Response is a fully rendered answer. Nothing reaches the client before it
// is complete.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	// Cached is set when the body came from the page cache.
	Cached bool
}

// Write sends r to w.
func (r *Response) Write(w http.ResponseWriter) error {
	h := w.Header()
	for k, v := range r.Header {
		h[k] = v
	}
	if h.Get("Content-Length") == "" {
		h.Set("Content-Length", strconv.Itoa(len(r.Body)))
	}
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, err := w.Write(r.Body)
	return err
}

func textResponse(status int, body string) *Response {
	h := make(http.Header)
	h.Set("Content-Type", "text/plain; charset=UTF-8")
	return &Response{Status: status, Header: h, Body: []byte(body)}
}

// InitErrorResponse is the minimal answer sent when a namespace cannot be
// set up. Non-setup errors are wrapped as FatalInitError first.
func InitErrorResponse(err error) *Response {
	var fe *fault.FatalInitError
	if !errors.As(err, &fe) {
		fe = &fault.FatalInitError{Op: "init", Err: err}
	}
	return textResponse(http.StatusInternalServerError, fe.Error())
}
