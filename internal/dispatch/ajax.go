package dispatch

import (
	"context"
	"net/http"

	"github.com/ohler55/ojg/oj"
)

// AjaxMethods are the handlers of an Ajax controller.
type AjaxMethods struct {
	Methods
	// Ajax handles XMLHttpRequest calls.
	Ajax Action
	// Response builds the JSON payload once dispatch did not forward.
	Response func(c *Base) any
}

// Ajax answers XMLHttpRequest calls with JSON. Other requests run the GET and
// POST handlers; in both cases a dispatch that does not forward ends the
// chain with the JSON response.
type Ajax struct {
	Base
	methods AjaxMethods
}

// NewAjax returns an Ajax controller.
func NewAjax(m AjaxMethods) *Ajax {
	return &Ajax{methods: m}
}

// AjaxFactory returns a Factory producing Ajax controllers.
func AjaxFactory(m AjaxMethods) Factory {
	return func() Controller { return NewAjax(m) }
}

// Dispatch implements Controller.
func (a *Ajax) Dispatch(ctx context.Context) error {
	var msg any
	if a.req.IsAjax() {
		var err error
		if a.methods.Ajax == nil {
			msg = "Invalid XMLHttpRequest"
		} else if err = a.run(ctx, a.methods.Ajax); err != nil {
			if ctxErr(err) {
				return err
			}
			msg = err.Error()
		}
	} else if err := a.dispatchMethods(ctx, a.methods.Methods); err != nil {
		return err
	}

	if !a.IsForward() {
		return a.jsonHalt(msg)
	}
	if h := a.redirectHalt(); h != nil {
		return h
	}
	return nil
}

func (a *Ajax) jsonHalt(msg any) error {
	if msg == nil && a.methods.Response != nil {
		msg = a.methods.Response(&a.Base)
	}
	h := a.Header().Clone()
	h.Del("Content-Type")
	halt := &Halt{Status: http.StatusOK, Header: h}
	if a.status != 0 {
		halt.Status = a.status
	}
	if msg == nil {
		return halt
	}
	body, err := oj.Marshal(msg)
	if err != nil {
		return err
	}
	h.Set("Content-Type", "application/json")
	halt.Body = body
	return halt
}
