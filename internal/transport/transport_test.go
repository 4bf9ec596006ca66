package transport

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

const traceHeader = "X-Trace"

type testClient struct {
	statusCode int
	attempts   int
}

func (c *testClient) Do(req *http.Request) (*http.Response, error) {
	c.attempts++
	value := req.Header.Get(traceHeader)
	req.Header.Set(traceHeader, value+" -> do")
	code := c.statusCode
	if code == 0 {
		code = http.StatusOK
	}
	return &http.Response{
		Request:    req,
		StatusCode: code,
		Header:     req.Header,
		Body:       io.NopCloser(strings.NewReader("")),
	}, nil
}

func traceInterceptor(priority Priority, name string) Interceptor {
	return NewSimpleInterceptorWithPriority(priority, func(req *http.Request, handler Handler) (*http.Response, error) {
		req.Header.Set(traceHeader, req.Header.Get(traceHeader)+" -> "+name)
		return handler(req)
	})
}

func TestNoInterceptors(t *testing.T) {
	c := NewClient(&testClient{})
	resp, err := c.Do(&http.Request{Header: http.Header{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := resp.Header.Get(traceHeader); got != " -> do" {
		t.Fatalf("unexpected trace %q", got)
	}
}

func TestInterceptorOrder(t *testing.T) {
	// Lower priority sits further from the wire, so normal runs before auth.
	c := NewClient(&testClient{},
		traceInterceptor(PriorityAuth, "auth"),
		traceInterceptor(PriorityNormal, "normal"),
	)

	resp, err := c.Do(&http.Request{Header: http.Header{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := resp.Header.Get(traceHeader); got != " -> normal -> auth -> do" {
		t.Fatalf("unexpected trace %q", got)
	}
}

func TestDoBuildsRequest(t *testing.T) {
	core := &testClient{}
	c := NewClient(core)

	resp, err := Do(c, RequestParams{
		Method: http.MethodPost,
		URL:    "http://sandbox.test/v1/sandboxes",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Request.Method != http.MethodPost {
		t.Fatalf("unexpected method %q", resp.Request.Method)
	}
	if core.attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", core.attempts)
	}
}

func TestAuthInterceptor(t *testing.T) {
	c := NewClient(&testClient{}, NewAuthInterceptor("sk-test", "opensandbox-go/test"))

	resp, err := Do(c, RequestParams{URL: "http://sandbox.test/v1/health"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := resp.Request.Header.Get("X-API-Key"); got != "sk-test" {
		t.Fatalf("unexpected api key header %q", got)
	}
	if got := resp.Request.Header.Get("User-Agent"); got != "opensandbox-go/test" {
		t.Fatalf("unexpected user agent %q", got)
	}
}

func TestAuthInterceptorKeepsExistingHeaders(t *testing.T) {
	c := NewClient(&testClient{}, NewAuthInterceptor("sk-test", "opensandbox-go/test"))

	header := http.Header{}
	header.Set("User-Agent", "custom-agent")
	resp, err := Do(c, RequestParams{URL: "http://sandbox.test/v1/health", Header: header})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := resp.Request.Header.Get("User-Agent"); got != "custom-agent" {
		t.Fatalf("expected caller user agent to win, got %q", got)
	}
}

func TestAuthInterceptorEmptyKey(t *testing.T) {
	c := NewClient(&testClient{}, NewAuthInterceptor("", "opensandbox-go/test"))

	resp, err := Do(c, RequestParams{URL: "http://sandbox.test/v1/health"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := resp.Request.Header["X-Api-Key"]; ok {
		t.Fatal("expected no api key header for anonymous clients")
	}
}
