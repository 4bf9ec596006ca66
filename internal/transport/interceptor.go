package transport

import (
	"net/http"
)

// Interceptor priorities. A lower value runs earlier (further from the wire),
// so retry wraps header injection and header injection wraps debug dumping.
const (
	PriorityDefault Priority = 100
	PriorityRetry   Priority = 300
	PriorityNormal  Priority = 500
	PriorityAuth    Priority = 600
	PriorityDebug   Priority = 700
)

type Priority int

type Interceptor interface {
	Priority() Priority

	Intercept(req *http.Request, handler Handler) (*http.Response, error)
}

type interceptorList []Interceptor

func (is interceptorList) Less(i, j int) bool {
	return is[i].Priority() < is[j].Priority()
}

func (is interceptorList) Swap(i, j int) {
	is[i], is[j] = is[j], is[i]
}

func (is interceptorList) Len() int {
	return len(is)
}

type simpleInterceptor struct {
	priority Priority
	handler  func(req *http.Request, handler Handler) (*http.Response, error)
}

func (s *simpleInterceptor) Priority() Priority {
	return s.priority
}

func (s *simpleInterceptor) Intercept(req *http.Request, handler Handler) (*http.Response, error) {
	if s == nil || s.handler == nil {
		return handler(req)
	}
	return s.handler(req, handler)
}

// NewSimpleInterceptor returns an interceptor at PriorityNormal backed by fn.
func NewSimpleInterceptor(fn func(req *http.Request, handler Handler) (*http.Response, error)) Interceptor {
	return NewSimpleInterceptorWithPriority(PriorityNormal, fn)
}

func NewSimpleInterceptorWithPriority(priority Priority, fn func(req *http.Request, handler Handler) (*http.Response, error)) Interceptor {
	if priority <= 0 {
		priority = PriorityDefault
	}

	return &simpleInterceptor{
		priority: priority,
		handler:  fn,
	}
}
