package opensandbox

import (
	"context"
	"errors"
	"testing"
	"time"
)

// mockAPI implements controlAPI for tests. Each method field can be set per
// test; calling an unset method panics.
type mockAPI struct {
	createSandboxFn     func(ctx context.Context, req apiCreateRequest) (*apiSandbox, error)
	getSandboxFn        func(ctx context.Context, sandboxID string) (*apiSandbox, error)
	deleteSandboxFn     func(ctx context.Context, sandboxID string) error
	listSandboxesFn     func(ctx context.Context, params ListParams) (*apiSandboxList, error)
	setSandboxTimeoutFn func(ctx context.Context, sandboxID string, timeout int32) error
	pauseSandboxFn      func(ctx context.Context, sandboxID string) error
	resumeSandboxFn     func(ctx context.Context, sandboxID string, req apiResumeRequest) (*apiSandbox, error)
	refreshSandboxFn    func(ctx context.Context, sandboxID string, req apiRefreshRequest) error
	getSandboxMetricsFn func(ctx context.Context, sandboxID string, params GetMetricsParams) ([]apiMetric, error)
	getSandboxLogsFn    func(ctx context.Context, sandboxID string, params GetLogsParams) ([]apiLogLine, error)
	healthFn            func(ctx context.Context) error
}

func (m *mockAPI) CreateSandbox(ctx context.Context, req apiCreateRequest) (*apiSandbox, error) {
	return m.createSandboxFn(ctx, req)
}

func (m *mockAPI) GetSandbox(ctx context.Context, sandboxID string) (*apiSandbox, error) {
	return m.getSandboxFn(ctx, sandboxID)
}

func (m *mockAPI) DeleteSandbox(ctx context.Context, sandboxID string) error {
	return m.deleteSandboxFn(ctx, sandboxID)
}

func (m *mockAPI) ListSandboxes(ctx context.Context, params ListParams) (*apiSandboxList, error) {
	return m.listSandboxesFn(ctx, params)
}

func (m *mockAPI) SetSandboxTimeout(ctx context.Context, sandboxID string, timeout int32) error {
	return m.setSandboxTimeoutFn(ctx, sandboxID, timeout)
}

func (m *mockAPI) PauseSandbox(ctx context.Context, sandboxID string) error {
	return m.pauseSandboxFn(ctx, sandboxID)
}

func (m *mockAPI) ResumeSandbox(ctx context.Context, sandboxID string, req apiResumeRequest) (*apiSandbox, error) {
	return m.resumeSandboxFn(ctx, sandboxID, req)
}

func (m *mockAPI) RefreshSandbox(ctx context.Context, sandboxID string, req apiRefreshRequest) error {
	return m.refreshSandboxFn(ctx, sandboxID, req)
}

func (m *mockAPI) GetSandboxMetrics(ctx context.Context, sandboxID string, params GetMetricsParams) ([]apiMetric, error) {
	return m.getSandboxMetricsFn(ctx, sandboxID, params)
}

func (m *mockAPI) GetSandboxLogs(ctx context.Context, sandboxID string, params GetLogsParams) ([]apiLogLine, error) {
	return m.getSandboxLogsFn(ctx, sandboxID, params)
}

func (m *mockAPI) Health(ctx context.Context) error {
	return m.healthFn(ctx)
}

// ============================================================
// Test cases
// ============================================================

func newTestClient(api controlAPI) *Client {
	return &Client{config: &Config{APIKey: "test-key", Domain: "sandbox.example.com"}, api: api}
}

func newTestSandbox(c *Client, id string) *Sandbox {
	return &Sandbox{sandboxID: id, client: c}
}

// --- Client construction ---

func TestNewClient(t *testing.T) {
	c, err := NewClient(&Config{APIKey: "test-key", Domain: "sandbox.example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c == nil {
		t.Fatal("expected non-nil client")
	}
	if c.Logger() == nil {
		t.Error("expected non-nil logger")
	}
	if c.endpointURL() != "http://sandbox.example.com" {
		t.Errorf("unexpected endpoint URL: %q", c.endpointURL())
	}
}

func TestNewClientDefaults(t *testing.T) {
	t.Setenv("OPENSANDBOX_DOMAIN", "")
	t.Setenv("OPENSANDBOX_API_KEY", "")
	t.Setenv("OPENSANDBOX_DEBUG", "")
	c, err := NewClient(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.config.Domain != DefaultDomain {
		t.Errorf("expected default domain %q, got %q", DefaultDomain, c.config.Domain)
	}
	if c.config.APIKey != "" {
		t.Errorf("expected empty API key, got %q", c.config.APIKey)
	}
}

func TestNewClientEnvFallback(t *testing.T) {
	t.Setenv("OPENSANDBOX_DOMAIN", "env.example.com")
	t.Setenv("OPENSANDBOX_API_KEY", "env-key")
	c, err := NewClient(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.config.Domain != "env.example.com" {
		t.Errorf("expected domain from environment, got %q", c.config.Domain)
	}
	if c.config.APIKey != "env-key" {
		t.Errorf("expected API key from environment, got %q", c.config.APIKey)
	}
}

func TestNewClientSecure(t *testing.T) {
	c, err := NewClient(&Config{Domain: "sandbox.example.com", Secure: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.endpointURL() != "https://sandbox.example.com" {
		t.Errorf("unexpected endpoint URL: %q", c.endpointURL())
	}
}

// --- Client.Create ---

func TestCreate(t *testing.T) {
	var gotReq apiCreateRequest
	mock := &mockAPI{
		createSandboxFn: func(ctx context.Context, req apiCreateRequest) (*apiSandbox, error) {
			gotReq = req
			return &apiSandbox{SandboxID: "sb-123", Image: req.Image, State: "running"}, nil
		},
	}
	c := newTestClient(mock)
	timeout := int32(120)
	sb, err := c.Create(context.Background(), CreateParams{
		Image:   "python:3.13",
		Timeout: &timeout,
		EnvVars: map[string]string{"RL_TIMESTEPS": "5000"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sb.ID() != "sb-123" {
		t.Errorf("expected sandbox ID 'sb-123', got %q", sb.ID())
	}
	if sb.Image() != "python:3.13" {
		t.Errorf("expected image 'python:3.13', got %q", sb.Image())
	}
	if gotReq.Timeout == nil || *gotReq.Timeout != 120 {
		t.Errorf("expected timeout 120 in request, got %v", gotReq.Timeout)
	}
	if gotReq.EnvVars["RL_TIMESTEPS"] != "5000" {
		t.Errorf("expected env vars in request, got %v", gotReq.EnvVars)
	}
}

func TestCreateError(t *testing.T) {
	mock := &mockAPI{
		createSandboxFn: func(ctx context.Context, req apiCreateRequest) (*apiSandbox, error) {
			return nil, newAPIError(400, []byte(`{"message":"bad request"}`))
		},
	}
	c := newTestClient(mock)
	_, err := c.Create(context.Background(), CreateParams{Image: "python:3.13"})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != 400 {
		t.Errorf("expected status 400, got %d", apiErr.StatusCode)
	}
}

// --- Client.Connect ---

func TestConnect(t *testing.T) {
	var gotTimeout int32
	mock := &mockAPI{
		getSandboxFn: func(ctx context.Context, sandboxID string) (*apiSandbox, error) {
			return &apiSandbox{SandboxID: sandboxID, State: "running"}, nil
		},
		setSandboxTimeoutFn: func(ctx context.Context, sandboxID string, timeout int32) error {
			gotTimeout = timeout
			return nil
		},
	}
	c := newTestClient(mock)
	sb, err := c.Connect(context.Background(), "sb-123", &ConnectParams{Timeout: 60})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sb.ID() != "sb-123" {
		t.Errorf("expected sandbox ID 'sb-123', got %q", sb.ID())
	}
	if gotTimeout != 60 {
		t.Errorf("expected timeout 60, got %d", gotTimeout)
	}
}

func TestConnectWithoutTimeout(t *testing.T) {
	mock := &mockAPI{
		getSandboxFn: func(ctx context.Context, sandboxID string) (*apiSandbox, error) {
			return &apiSandbox{SandboxID: sandboxID, State: "running"}, nil
		},
		setSandboxTimeoutFn: func(ctx context.Context, sandboxID string, timeout int32) error {
			t.Error("SetSandboxTimeout should not be called")
			return nil
		},
	}
	c := newTestClient(mock)
	if _, err := c.Connect(context.Background(), "sb-123", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConnectError(t *testing.T) {
	mock := &mockAPI{
		getSandboxFn: func(ctx context.Context, sandboxID string) (*apiSandbox, error) {
			return nil, newAPIError(404, []byte(`{"message":"not found"}`))
		},
	}
	c := newTestClient(mock)
	_, err := c.Connect(context.Background(), "sb-999", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

// --- Client.List ---

func TestList(t *testing.T) {
	next := "tok-2"
	mock := &mockAPI{
		listSandboxesFn: func(ctx context.Context, params ListParams) (*apiSandboxList, error) {
			return &apiSandboxList{
				Sandboxes: []apiSandbox{
					{SandboxID: "sb-1", State: "running"},
					{SandboxID: "sb-2", State: "paused"},
				},
				NextToken: &next,
			}, nil
		},
	}
	c := newTestClient(mock)
	list, err := c.List(context.Background(), ListParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list.Sandboxes) != 2 {
		t.Fatalf("expected 2 sandboxes, got %d", len(list.Sandboxes))
	}
	if list.Sandboxes[1].State != StatePaused {
		t.Errorf("expected state 'paused', got %q", list.Sandboxes[1].State)
	}
	if list.NextToken == nil || *list.NextToken != "tok-2" {
		t.Errorf("expected next token 'tok-2', got %v", list.NextToken)
	}
}

func TestListPassesFilters(t *testing.T) {
	var gotParams ListParams
	mock := &mockAPI{
		listSandboxesFn: func(ctx context.Context, params ListParams) (*apiSandboxList, error) {
			gotParams = params
			return &apiSandboxList{}, nil
		},
	}
	c := newTestClient(mock)
	meta := "team=rl"
	_, err := c.List(context.Background(), ListParams{
		Metadata: &meta,
		State:    []SandboxState{StateRunning},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotParams.Metadata == nil || *gotParams.Metadata != "team=rl" {
		t.Errorf("expected metadata filter, got %v", gotParams.Metadata)
	}
	if len(gotParams.State) != 1 || gotParams.State[0] != StateRunning {
		t.Errorf("expected state filter, got %v", gotParams.State)
	}
}

// --- Sandbox.Kill ---

func TestKill(t *testing.T) {
	var gotID string
	mock := &mockAPI{
		deleteSandboxFn: func(ctx context.Context, sandboxID string) error {
			gotID = sandboxID
			return nil
		},
	}
	c := newTestClient(mock)
	sb := newTestSandbox(c, "sb-123")
	if err := sb.Kill(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotID != "sb-123" {
		t.Errorf("expected delete of 'sb-123', got %q", gotID)
	}
}

func TestKillGoneSandbox(t *testing.T) {
	mock := &mockAPI{
		deleteSandboxFn: func(ctx context.Context, sandboxID string) error {
			return newAPIError(404, []byte(`{"message":"not found"}`))
		},
	}
	c := newTestClient(mock)
	sb := newTestSandbox(c, "sb-999")
	// Teardown paths kill unconditionally; a sandbox that is already gone
	// must not surface as an error.
	if err := sb.Kill(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestKillError(t *testing.T) {
	mock := &mockAPI{
		deleteSandboxFn: func(ctx context.Context, sandboxID string) error {
			return newAPIError(500, []byte("internal error"))
		},
	}
	c := newTestClient(mock)
	sb := newTestSandbox(c, "sb-123")
	err := sb.Kill(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != 500 {
		t.Errorf("expected status 500, got %d", apiErr.StatusCode)
	}
}

// --- Sandbox.SetTimeout ---

func TestSetTimeout(t *testing.T) {
	var gotTimeout int32
	mock := &mockAPI{
		setSandboxTimeoutFn: func(ctx context.Context, sandboxID string, timeout int32) error {
			gotTimeout = timeout
			return nil
		},
	}
	c := newTestClient(mock)
	sb := newTestSandbox(c, "sb-123")
	if err := sb.SetTimeout(context.Background(), 2*time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTimeout != 120 {
		t.Errorf("expected timeout 120 seconds, got %d", gotTimeout)
	}
}

func TestSetTimeoutTooShort(t *testing.T) {
	mock := &mockAPI{
		setSandboxTimeoutFn: func(ctx context.Context, sandboxID string, timeout int32) error {
			t.Error("SetSandboxTimeout should not be called")
			return nil
		},
	}
	c := newTestClient(mock)
	sb := newTestSandbox(c, "sb-123")
	if err := sb.SetTimeout(context.Background(), 500*time.Millisecond); err == nil {
		t.Fatal("expected error for sub-second timeout")
	}
}

// --- Sandbox.GetInfo ---

func TestGetInfo(t *testing.T) {
	token := "tok-rotated"
	mock := &mockAPI{
		getSandboxFn: func(ctx context.Context, sandboxID string) (*apiSandbox, error) {
			return &apiSandbox{
				SandboxID:   sandboxID,
				State:       "running",
				CPUCount:    2,
				AccessToken: &token,
			}, nil
		},
	}
	c := newTestClient(mock)
	sb := newTestSandbox(c, "sb-123")
	info, err := sb.GetInfo(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.State != StateRunning {
		t.Errorf("expected state 'running', got %q", info.State)
	}
	if info.CPUCount != 2 {
		t.Errorf("expected 2 CPUs, got %d", info.CPUCount)
	}
	// GetInfo refreshes the handle with rotated credentials.
	if sb.accessToken == nil || *sb.accessToken != "tok-rotated" {
		t.Errorf("expected handle access token to be refreshed, got %v", sb.accessToken)
	}
}

func TestGetInfoError(t *testing.T) {
	mock := &mockAPI{
		getSandboxFn: func(ctx context.Context, sandboxID string) (*apiSandbox, error) {
			return nil, newAPIError(404, []byte(`{"message":"not found"}`))
		},
	}
	c := newTestClient(mock)
	sb := newTestSandbox(c, "sb-999")
	if _, err := sb.GetInfo(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

// --- Sandbox.IsRunning ---

func TestIsRunning(t *testing.T) {
	mock := &mockAPI{
		getSandboxFn: func(ctx context.Context, sandboxID string) (*apiSandbox, error) {
			return &apiSandbox{SandboxID: sandboxID, State: "running"}, nil
		},
	}
	c := newTestClient(mock)
	sb := newTestSandbox(c, "sb-123")
	running, err := sb.IsRunning(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !running {
		t.Error("expected sandbox to be running")
	}
}

func TestIsRunningPaused(t *testing.T) {
	mock := &mockAPI{
		getSandboxFn: func(ctx context.Context, sandboxID string) (*apiSandbox, error) {
			return &apiSandbox{SandboxID: sandboxID, State: "paused"}, nil
		},
	}
	c := newTestClient(mock)
	sb := newTestSandbox(c, "sb-123")
	running, err := sb.IsRunning(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if running {
		t.Error("expected sandbox to not be running")
	}
}

// --- Sandbox.Pause / Resume / Refresh ---

func TestPause(t *testing.T) {
	mock := &mockAPI{
		pauseSandboxFn: func(ctx context.Context, sandboxID string) error {
			return nil
		},
	}
	c := newTestClient(mock)
	sb := newTestSandbox(c, "sb-123")
	if err := sb.Pause(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPauseError(t *testing.T) {
	mock := &mockAPI{
		pauseSandboxFn: func(ctx context.Context, sandboxID string) error {
			return newAPIError(409, []byte(`{"message":"conflict"}`))
		},
	}
	c := newTestClient(mock)
	sb := newTestSandbox(c, "sb-123")
	if err := sb.Pause(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestResume(t *testing.T) {
	var gotReq apiResumeRequest
	mock := &mockAPI{
		resumeSandboxFn: func(ctx context.Context, sandboxID string, req apiResumeRequest) (*apiSandbox, error) {
			gotReq = req
			return &apiSandbox{SandboxID: sandboxID, State: "running"}, nil
		},
	}
	c := newTestClient(mock)
	sb := newTestSandbox(c, "sb-123")
	if err := sb.Resume(context.Background(), &ConnectParams{Timeout: 90}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotReq.Timeout == nil || *gotReq.Timeout != 90 {
		t.Errorf("expected timeout 90 in resume request, got %v", gotReq.Timeout)
	}
}

func TestRefresh(t *testing.T) {
	var gotReq apiRefreshRequest
	mock := &mockAPI{
		refreshSandboxFn: func(ctx context.Context, sandboxID string, req apiRefreshRequest) error {
			gotReq = req
			return nil
		},
	}
	c := newTestClient(mock)
	sb := newTestSandbox(c, "sb-123")
	duration := 300
	if err := sb.Refresh(context.Background(), RefreshParams{Duration: &duration}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotReq.Duration == nil || *gotReq.Duration != 300 {
		t.Errorf("expected duration 300 in refresh request, got %v", gotReq.Duration)
	}
}

// --- Sandbox.GetMetrics / GetLogs ---

func TestGetMetrics(t *testing.T) {
	mock := &mockAPI{
		getSandboxMetricsFn: func(ctx context.Context, sandboxID string, params GetMetricsParams) ([]apiMetric, error) {
			return []apiMetric{{CPUCount: 2, CPUUsedPct: 50.0, Timestamp: 1700000000}}, nil
		},
	}
	c := newTestClient(mock)
	sb := newTestSandbox(c, "sb-123")
	metrics, err := sb.GetMetrics(context.Background(), GetMetricsParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(metrics) != 1 {
		t.Fatalf("expected 1 metric, got %d", len(metrics))
	}
	if metrics[0].CPUUsedPct != 50.0 {
		t.Errorf("expected CPU 50%%, got %f", metrics[0].CPUUsedPct)
	}
	if metrics[0].Timestamp.Unix() != 1700000000 {
		t.Errorf("unexpected timestamp: %v", metrics[0].Timestamp)
	}
}

func TestGetLogs(t *testing.T) {
	mock := &mockAPI{
		getSandboxLogsFn: func(ctx context.Context, sandboxID string, params GetLogsParams) ([]apiLogLine, error) {
			return []apiLogLine{{Line: "hello", Timestamp: 1700000000}}, nil
		},
	}
	c := newTestClient(mock)
	sb := newTestSandbox(c, "sb-123")
	logs, err := sb.GetLogs(context.Background(), GetLogsParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 1 || logs[0].Line != "hello" {
		t.Errorf("unexpected logs: %v", logs)
	}
}

// --- Sandbox.WaitForReady ---

func TestWaitForReadyImmediate(t *testing.T) {
	mock := &mockAPI{
		getSandboxFn: func(ctx context.Context, sandboxID string) (*apiSandbox, error) {
			return &apiSandbox{SandboxID: sandboxID, State: "running"}, nil
		},
	}
	c := newTestClient(mock)
	sb := newTestSandbox(c, "sb-123")
	info, err := sb.WaitForReady(context.Background(), WithPollInterval(100*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.SandboxID != "sb-123" {
		t.Errorf("expected sandbox ID 'sb-123', got %q", info.SandboxID)
	}
}

func TestWaitForReadyPolling(t *testing.T) {
	callCount := 0
	mock := &mockAPI{
		getSandboxFn: func(ctx context.Context, sandboxID string) (*apiSandbox, error) {
			callCount++
			state := "paused"
			if callCount >= 3 {
				state = "running"
			}
			return &apiSandbox{SandboxID: sandboxID, State: state}, nil
		},
	}
	c := newTestClient(mock)
	sb := newTestSandbox(c, "sb-123")
	info, err := sb.WaitForReady(context.Background(), WithPollInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if callCount < 3 {
		t.Errorf("expected at least 3 calls, got %d", callCount)
	}
	if info.State != StateRunning {
		t.Errorf("expected state 'running', got %q", info.State)
	}
}

func TestWaitForReadyTimeout(t *testing.T) {
	mock := &mockAPI{
		getSandboxFn: func(ctx context.Context, sandboxID string) (*apiSandbox, error) {
			return &apiSandbox{SandboxID: sandboxID, State: "paused"}, nil
		},
	}
	c := newTestClient(mock)
	sb := newTestSandbox(c, "sb-123")
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if _, err := sb.WaitForReady(ctx, WithPollInterval(50*time.Millisecond)); err == nil {
		t.Fatal("expected timeout error")
	}
}

// --- Client.CreateAndWait ---

func TestCreateAndWait(t *testing.T) {
	mock := &mockAPI{
		createSandboxFn: func(ctx context.Context, req apiCreateRequest) (*apiSandbox, error) {
			return &apiSandbox{SandboxID: "sb-new", Image: req.Image, State: "pending"}, nil
		},
		getSandboxFn: func(ctx context.Context, sandboxID string) (*apiSandbox, error) {
			return &apiSandbox{SandboxID: sandboxID, State: "running"}, nil
		},
	}
	c := newTestClient(mock)
	sb, info, err := c.CreateAndWait(context.Background(), CreateParams{Image: "python:3.13"},
		WithPollInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sb.ID() != "sb-new" {
		t.Errorf("expected sandbox ID 'sb-new', got %q", sb.ID())
	}
	if info.State != StateRunning {
		t.Errorf("expected state 'running', got %q", info.State)
	}
}

func TestCreateAndWaitCreateFails(t *testing.T) {
	mock := &mockAPI{
		createSandboxFn: func(ctx context.Context, req apiCreateRequest) (*apiSandbox, error) {
			return nil, newAPIError(500, []byte("internal error"))
		},
	}
	c := newTestClient(mock)
	_, _, err := c.CreateAndWait(context.Background(), CreateParams{Image: "python:3.13"},
		WithPollInterval(50*time.Millisecond))
	if err == nil {
		t.Fatal("expected error")
	}
}

// --- Client.HealthCheck ---

func TestHealthCheck(t *testing.T) {
	mock := &mockAPI{
		healthFn: func(ctx context.Context) error { return nil },
	}
	c := newTestClient(mock)
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHealthCheckError(t *testing.T) {
	mock := &mockAPI{
		healthFn: func(ctx context.Context) error {
			return newAPIError(503, nil)
		},
	}
	c := newTestClient(mock)
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
