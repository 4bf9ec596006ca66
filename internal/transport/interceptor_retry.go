package transport

import (
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"os"
	"syscall"
	"time"
)

type RetryConfig struct {
	// RetryMax is the number of additional attempts after the first one.
	RetryMax int

	// RetryInterval returns the pause before the next attempt.
	RetryInterval func() time.Duration

	// ShouldRetry decides whether the attempt outcome warrants another try.
	ShouldRetry func(req *http.Request, resp *http.Response, err error) bool
}

func (c *RetryConfig) init() {
	if c == nil {
		return
	}

	if c.RetryMax < 0 {
		c.RetryMax = 0
	}

	if c.RetryInterval == nil {
		c.RetryInterval = func() time.Duration {
			return time.Duration(50+rand.Int()%50) * time.Millisecond
		}
	}

	if c.ShouldRetry == nil {
		c.ShouldRetry = func(req *http.Request, resp *http.Response, err error) bool {
			return isRetryable(req, resp, err)
		}
	}
}

type retryInterceptor struct {
	config RetryConfig
}

// NewRetryInterceptor retries failed attempts according to config. Requests
// whose body cannot be rewound are never retried.
func NewRetryInterceptor(config RetryConfig) Interceptor {
	return &retryInterceptor{config: config}
}

func (r *retryInterceptor) Priority() Priority {
	return PriorityRetry
}

func (r *retryInterceptor) Intercept(req *http.Request, handler Handler) (resp *http.Response, err error) {
	r.config.init()

	if r.config.RetryMax == 0 {
		return handler(req)
	}

	for i := 0; ; i++ {
		// Clone keeps a pristine request in case the handler mutates it.
		reqBefore := req.Clone(req.Context())
		resp, err = handler(req)

		if !r.config.ShouldRetry(reqBefore, resp, err) {
			return resp, err
		}
		req = reqBefore

		if i >= r.config.RetryMax {
			break
		}

		if resp != nil && resp.Body != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		if interval := r.config.RetryInterval(); interval > time.Millisecond {
			time.Sleep(interval)
		}
	}
	return resp, err
}

func isRetryable(req *http.Request, resp *http.Response, err error) bool {
	return isRequestRetryable(req) && isResponseRetryable(resp) && isErrorRetryable(err)
}

func isRequestRetryable(req *http.Request) bool {
	if req == nil {
		return false
	}

	if req.Body == nil {
		return true
	}

	seeker, ok := req.Body.(io.Seeker)
	if !ok {
		return false
	}

	_, err := seeker.Seek(0, io.SeekStart)
	return err == nil
}

func isResponseRetryable(resp *http.Response) bool {
	if resp == nil {
		return true
	}

	if resp.StatusCode < 500 {
		return false
	}

	// Not Implemented will not get better on a second attempt.
	return resp.StatusCode != http.StatusNotImplemented
}

func isErrorRetryable(err error) bool {
	return err == nil || isNetworkError(err)
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	switch t := err.(type) {
	case *net.OpError:
		return isNetworkErrorWithOpError(t)
	case *url.Error:
		return isNetworkError(t.Err)
	case net.Error:
		return t.Timeout()
	default:
		return false
	}
}

func isNetworkErrorWithOpError(err *net.OpError) bool {
	if err == nil {
		return false
	}

	switch t := err.Err.(type) {
	case *net.DNSError:
		return true
	case *os.SyscallError:
		if errno, ok := t.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ECONNREFUSED:
				return true
			case syscall.ETIMEDOUT:
				return true
			}
		}
	}

	return false
}
