package transport

import (
	"net/http"
	"net/http/httputil"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type debugInterceptor struct {
	logger *zap.Logger
}

// NewDebugInterceptor dumps requests and responses through logger when its
// debug level is enabled. It sits closest to the wire so the dump includes
// headers added by the rest of the chain.
func NewDebugInterceptor(logger *zap.Logger) Interceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &debugInterceptor{logger: logger}
}

func (d *debugInterceptor) Priority() Priority {
	return PriorityDebug
}

func (d *debugInterceptor) Intercept(req *http.Request, handler Handler) (*http.Response, error) {
	if !d.logger.Core().Enabled(zapcore.DebugLevel) {
		return handler(req)
	}

	if dump, err := httputil.DumpRequestOut(req, true); err == nil {
		d.logger.Debug("request", zap.ByteString("dump", dump))
	}

	resp, err := handler(req)
	if err != nil {
		d.logger.Debug("request failed", zap.String("url", req.URL.String()), zap.Error(err))
		return resp, err
	}

	if dump, dumpErr := httputil.DumpResponse(resp, true); dumpErr == nil {
		d.logger.Debug("response", zap.ByteString("dump", dump))
	}

	return resp, err
}
