package transport

import (
	"net/http"
)

type authInterceptor struct {
	apiKey    string
	userAgent string
}

// NewAuthInterceptor injects the service credentials and user agent into
// every outgoing request. An empty apiKey leaves the X-API-Key header unset
// so anonymous access against local deployments keeps working.
func NewAuthInterceptor(apiKey, userAgent string) Interceptor {
	return &authInterceptor{
		apiKey:    apiKey,
		userAgent: userAgent,
	}
}

func (a *authInterceptor) Priority() Priority {
	return PriorityAuth
}

func (a *authInterceptor) Intercept(req *http.Request, handler Handler) (*http.Response, error) {
	if a.apiKey != "" && req.Header.Get("X-API-Key") == "" {
		req.Header.Set("X-API-Key", a.apiKey)
	}
	if a.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", a.userAgent)
	}
	return handler(req)
}
