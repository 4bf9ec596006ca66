package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// GetRequestBody produces a fresh request body. Bodies returned here should
// be rewindable so the retry interceptor can re-send them.
type GetRequestBody func(params *RequestParams) (io.ReadCloser, error)

// GetJSONRequestBody marshals object once and hands out rewindable readers
// over the encoded bytes.
func GetJSONRequestBody(object interface{}) (GetRequestBody, error) {
	encoded, err := json.Marshal(object)
	if err != nil {
		return nil, err
	}
	return func(params *RequestParams) (io.ReadCloser, error) {
		params.Header.Set("Content-Type", "application/json")
		return newReadSeekableNopCloser(bytes.NewReader(encoded)), nil
	}, nil
}

type RequestParams struct {
	Context context.Context
	Method  string
	URL     string
	Header  http.Header
	GetBody GetRequestBody
}

func (p *RequestParams) init() {
	if p.Context == nil {
		p.Context = context.Background()
	}

	if len(p.Method) == 0 {
		p.Method = http.MethodGet
	}

	if p.Header == nil {
		p.Header = http.Header{}
	}

	if p.GetBody == nil {
		p.GetBody = func(params *RequestParams) (io.ReadCloser, error) {
			return nil, nil
		}
	}
}

func NewRequest(params RequestParams) (*http.Request, error) {
	params.init()

	body, err := params.GetBody(&params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(params.Context, params.Method, params.URL, body)
	if err != nil {
		return nil, err
	}
	req.Header = params.Header
	if body != nil && body != http.NoBody {
		req.GetBody = func() (io.ReadCloser, error) {
			return params.GetBody(&params)
		}
	}
	return req, nil
}

type readSeekableNopCloser struct {
	*bytes.Reader
}

func newReadSeekableNopCloser(r *bytes.Reader) io.ReadCloser {
	return readSeekableNopCloser{r}
}

func (readSeekableNopCloser) Close() error {
	return nil
}
