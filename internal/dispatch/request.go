package dispatch

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request is the transport-neutral view of an incoming request. The HTTP
// server builds it from an *http.Request; the CLI builds it directly.
type Request struct {
	ID     string
	Method string
	Path   string
	Host   string
	Header http.Header
	Query  url.Values
	Form   url.Values
	Secure bool
	Start  time.Time
}

// NewRequest returns a request for method and path. A query string in path
// is parsed into Query.
func NewRequest(method, target string) *Request {
	p, rawQuery, _ := strings.Cut(target, "?")
	q, _ := url.ParseQuery(rawQuery)
	return &Request{
		Method: strings.ToUpper(method),
		Path:   p,
		Header: make(http.Header),
		Query:  q,
		Form:   make(url.Values),
		Start:  time.Now(),
	}
}

// FromHTTP converts r, parsing its form body.
func FromHTTP(r *http.Request) (*Request, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("parse form: %w", err)
	}
	return &Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Host:   r.Host,
		Header: r.Header.Clone(),
		Query:  r.URL.Query(),
		Form:   r.PostForm,
		Secure: r.TLS != nil,
		Start:  time.Now(),
	}, nil
}

// IsAjax reports whether the request was made through XMLHttpRequest.
func (r *Request) IsAjax() bool {
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}

// Param returns the named parameter, looking at the form body first.
func (r *Request) Param(name string) string {
	if v := r.Form.Get(name); v != "" {
		return v
	}
	return r.Query.Get(name)
}

func (r *Request) IsGet() bool  { return r.Method == http.MethodGet || r.Method == http.MethodHead }
func (r *Request) IsPost() bool { return r.Method == http.MethodPost }

// URI returns the path with its query string.
func (r *Request) URI() string {
	if len(r.Query) == 0 {
		return r.Path
	}
	return r.Path + "?" + r.Query.Encode()
}
