package opensandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/opensandbox/sdk-go/internal/transport"
)

// ---------------------------------------------------------------------------
// Wire payloads
// ---------------------------------------------------------------------------

type apiCreateRequest struct {
	Image               string            `json:"image"`
	Timeout             *int32            `json:"timeout,omitempty"`
	AutoPause           *bool             `json:"auto_pause,omitempty"`
	AllowInternetAccess *bool             `json:"allow_internet_access,omitempty"`
	EnvVars             map[string]string `json:"env_vars,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

type apiResumeRequest struct {
	Timeout *int32 `json:"timeout,omitempty"`
}

type apiRefreshRequest struct {
	Duration *int `json:"duration,omitempty"`
}

type apiTimeoutRequest struct {
	Timeout int32 `json:"timeout"`
}

type apiSandbox struct {
	SandboxID    string            `json:"sandbox_id"`
	Image        string            `json:"image"`
	Alias        *string           `json:"alias,omitempty"`
	Domain       *string           `json:"domain,omitempty"`
	State        string            `json:"state"`
	CPUCount     int32             `json:"cpu_count"`
	MemoryMB     int32             `json:"memory_mb"`
	DiskSizeMB   int32             `json:"disk_size_mb"`
	ExecdVersion string            `json:"execd_version"`
	AccessToken  *string           `json:"access_token,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	EndAt        time.Time         `json:"end_at"`
	EnvVars      map[string]string `json:"env_vars,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type apiSandboxList struct {
	Sandboxes []apiSandbox `json:"sandboxes"`
	NextToken *string      `json:"next_token,omitempty"`
}

type apiMetric struct {
	CPUCount   int32   `json:"cpu_count"`
	CPUUsedPct float32 `json:"cpu_used_pct"`
	MemTotal   int64   `json:"mem_total"`
	MemUsed    int64   `json:"mem_used"`
	DiskTotal  int64   `json:"disk_total"`
	DiskUsed   int64   `json:"disk_used"`
	Timestamp  int64   `json:"timestamp"`
}

type apiMetricsResponse struct {
	Metrics []apiMetric `json:"metrics"`
}

type apiLogLine struct {
	Line      string `json:"line"`
	Timestamp int64  `json:"timestamp"`
}

type apiLogsResponse struct {
	Logs []apiLogLine `json:"logs"`
}

// ---------------------------------------------------------------------------
// Control-plane client
// ---------------------------------------------------------------------------

// controlAPI is the control-plane surface the rest of the SDK depends on.
// Tests substitute function-field fakes for it.
type controlAPI interface {
	CreateSandbox(ctx context.Context, req apiCreateRequest) (*apiSandbox, error)
	GetSandbox(ctx context.Context, sandboxID string) (*apiSandbox, error)
	DeleteSandbox(ctx context.Context, sandboxID string) error
	ListSandboxes(ctx context.Context, params ListParams) (*apiSandboxList, error)
	SetSandboxTimeout(ctx context.Context, sandboxID string, timeout int32) error
	PauseSandbox(ctx context.Context, sandboxID string) error
	ResumeSandbox(ctx context.Context, sandboxID string, req apiResumeRequest) (*apiSandbox, error)
	RefreshSandbox(ctx context.Context, sandboxID string, req apiRefreshRequest) error
	GetSandboxMetrics(ctx context.Context, sandboxID string, params GetMetricsParams) ([]apiMetric, error)
	GetSandboxLogs(ctx context.Context, sandboxID string, params GetLogsParams) ([]apiLogLine, error)
	Health(ctx context.Context) error
}

type restAPI struct {
	endpoint   string
	httpClient transport.Client
	timeout    time.Duration
}

func newRESTAPI(endpoint string, httpClient transport.Client, timeout time.Duration) *restAPI {
	return &restAPI{
		endpoint:   endpoint,
		httpClient: httpClient,
		timeout:    timeout,
	}
}

// do sends one request and decodes a JSON response into out when out is
// non-nil. Non-2xx responses become *APIError.
func (a *restAPI) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	params := transport.RequestParams{
		Context: ctx,
		Method:  method,
		URL:     a.endpoint + path,
	}
	if len(query) > 0 {
		params.URL += "?" + query.Encode()
	}
	if body != nil {
		getBody, err := transport.GetJSONRequestBody(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		params.GetBody = getBody
	}

	resp, err := transport.Do(a.httpClient, params)
	if err != nil {
		return err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(resp.Body)
		return newAPIError(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (a *restAPI) CreateSandbox(ctx context.Context, req apiCreateRequest) (*apiSandbox, error) {
	var out apiSandbox
	if err := a.do(ctx, http.MethodPost, "/v1/sandboxes", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *restAPI) GetSandbox(ctx context.Context, sandboxID string) (*apiSandbox, error) {
	var out apiSandbox
	if err := a.do(ctx, http.MethodGet, "/v1/sandboxes/"+url.PathEscape(sandboxID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *restAPI) DeleteSandbox(ctx context.Context, sandboxID string) error {
	return a.do(ctx, http.MethodDelete, "/v1/sandboxes/"+url.PathEscape(sandboxID), nil, nil, nil)
}

func (a *restAPI) ListSandboxes(ctx context.Context, params ListParams) (*apiSandboxList, error) {
	query := url.Values{}
	if params.Metadata != nil {
		query.Set("metadata", *params.Metadata)
	}
	for _, state := range params.State {
		query.Add("state", string(state))
	}
	if params.NextToken != nil {
		query.Set("next_token", *params.NextToken)
	}
	if params.Limit != nil {
		query.Set("limit", strconv.FormatInt(int64(*params.Limit), 10))
	}

	var out apiSandboxList
	if err := a.do(ctx, http.MethodGet, "/v1/sandboxes", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *restAPI) SetSandboxTimeout(ctx context.Context, sandboxID string, timeout int32) error {
	req := apiTimeoutRequest{Timeout: timeout}
	return a.do(ctx, http.MethodPost, "/v1/sandboxes/"+url.PathEscape(sandboxID)+"/timeout", nil, req, nil)
}

func (a *restAPI) PauseSandbox(ctx context.Context, sandboxID string) error {
	return a.do(ctx, http.MethodPost, "/v1/sandboxes/"+url.PathEscape(sandboxID)+"/pause", nil, nil, nil)
}

func (a *restAPI) ResumeSandbox(ctx context.Context, sandboxID string, req apiResumeRequest) (*apiSandbox, error) {
	var out apiSandbox
	if err := a.do(ctx, http.MethodPost, "/v1/sandboxes/"+url.PathEscape(sandboxID)+"/resume", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *restAPI) RefreshSandbox(ctx context.Context, sandboxID string, req apiRefreshRequest) error {
	return a.do(ctx, http.MethodPost, "/v1/sandboxes/"+url.PathEscape(sandboxID)+"/refresh", nil, req, nil)
}

func (a *restAPI) GetSandboxMetrics(ctx context.Context, sandboxID string, params GetMetricsParams) ([]apiMetric, error) {
	query := url.Values{}
	if params.Start != nil {
		query.Set("start", strconv.FormatInt(*params.Start, 10))
	}
	if params.End != nil {
		query.Set("end", strconv.FormatInt(*params.End, 10))
	}

	var out apiMetricsResponse
	if err := a.do(ctx, http.MethodGet, "/v1/sandboxes/"+url.PathEscape(sandboxID)+"/metrics", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Metrics, nil
}

func (a *restAPI) GetSandboxLogs(ctx context.Context, sandboxID string, params GetLogsParams) ([]apiLogLine, error) {
	query := url.Values{}
	if params.Start != nil {
		query.Set("start", strconv.FormatInt(*params.Start, 10))
	}
	if params.Limit != nil {
		query.Set("limit", strconv.FormatInt(int64(*params.Limit), 10))
	}

	var out apiLogsResponse
	if err := a.do(ctx, http.MethodGet, "/v1/sandboxes/"+url.PathEscape(sandboxID)+"/logs", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Logs, nil
}

func (a *restAPI) Health(ctx context.Context) error {
	return a.do(ctx, http.MethodGet, "/v1/health", nil, nil, nil)
}
