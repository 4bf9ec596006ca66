// Package transport provides the HTTP client used for all OpenSandbox
// service calls. Requests pass through an ordered interceptor chain
// (retry, header injection, debug dumping) before reaching the wire.
package transport

import (
	"net/http"
	"sort"
)

// Client is the minimal request execution surface. *http.Client satisfies it.
type Client interface {
	Do(req *http.Request) (*http.Response, error)
}

// Handler continues the interceptor chain for a single request.
type Handler func(req *http.Request) (*http.Response, error)

type client struct {
	coreClient   Client
	interceptors []Interceptor
}

// NewClient wraps core with the given interceptors. Interceptors run in
// ascending priority order, so a lower priority value sits further from the
// wire. A nil core falls back to http.DefaultClient.
func NewClient(core Client, interceptors ...Interceptor) Client {
	if core == nil {
		core = http.DefaultClient
	}

	is := make(interceptorList, 0, len(interceptors))
	is = append(is, interceptors...)
	sort.Sort(is)

	// Reverse so the innermost wrap ends up closest to the wire.
	for i, j := 0, len(is)-1; i < j; i, j = i+1, j-1 {
		is[i], is[j] = is[j], is[i]
	}

	return &client{
		coreClient:   core,
		interceptors: is,
	}
}

func (c *client) Do(req *http.Request) (*http.Response, error) {
	handler := func(req *http.Request) (*http.Response, error) {
		return c.coreClient.Do(req)
	}

	for _, interceptor := range c.interceptors {
		h := handler
		i := interceptor
		handler = func(r *http.Request) (*http.Response, error) {
			return i.Intercept(r, h)
		}
	}

	return handler(req)
}

// Do builds a request from params and sends it through c. Status codes are
// not interpreted here; callers decide what a non-2xx response means.
func Do(c Client, params RequestParams) (*http.Response, error) {
	req, err := NewRequest(params)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}
