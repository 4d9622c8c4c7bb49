// Package fault defines the error kinds that cross the request boundary.
//
// Each kind maps to one boundary behavior: NotFoundError renders the 404 view,
// RequestError renders the request error view with its status code,
// FatalInitError answers with a minimal plain-text 500 and ParseError is
// reported and treated like a missing view.
package fault

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// NotFoundError reports a logical name (view, layout, controller) that no
// root could satisfy.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// NotFound returns a NotFoundError for kind and name.
func NotFound(kind, name string) error {
	return &NotFoundError{Kind: kind, Name: name}
}

// RequestError is a client-visible error raised by a controller.
type RequestError struct {
	Msg    string
	Status int
	Err    error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *RequestError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status, defaulting to 400.
func (e *RequestError) StatusCode() int {
	if e.Status == 0 {
		return http.StatusBadRequest
	}
	return e.Status
}

// Request returns a RequestError carrying a stack trace.
func Request(status int, format string, args ...any) error {
	return &RequestError{
		Msg:    fmt.Sprintf(format, args...),
		Status: status,
		Err:    pkgerrors.New("request rejected"),
	}
}

// FatalInitError is a setup failure: configuration, namespace or plugin
// initialization.
type FatalInitError struct {
	Op  string
	Err error
}

func (e *FatalInitError) Error() string {
	return fmt.Sprintf("Init error! : %s (reason : %v)", e.Op, e.Err)
}

func (e *FatalInitError) Unwrap() error { return e.Err }

// FatalInit wraps err as a FatalInitError. A nil err yields nil.
func FatalInit(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FatalInitError
	if errors.As(err, &fe) {
		return err
	}
	return &FatalInitError{Op: op, Err: err}
}

// ParseError is a malformed view file.
type ParseError struct {
	File string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsParse reports whether err is, or wraps, a ParseError.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// StackTrace renders err with the deepest stack trace recorded by
// github.com/pkg/errors, or just its message when none was recorded.
func StackTrace(err error) string {
	if err == nil {
		return ""
	}
	type stackTracer interface {
		StackTrace() pkgerrors.StackTrace
	}
	var st stackTracer
	for e := err; e != nil; e = errors.Unwrap(e) {
		if s, ok := e.(stackTracer); ok {
			st = s
		}
	}
	if st == nil {
		return err.Error()
	}
	return fmt.Sprintf("%s%+v", err.Error(), st.StackTrace())
}
