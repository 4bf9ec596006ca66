package opensandbox

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	connect "connectrpc.com/connect"

	"github.com/opensandbox/sdk-go/execd"
)

// DefaultUser is the sandbox user for command execution and file access.
const DefaultUser = execd.DefaultUser

// Sandbox is a handle to one running sandbox. It carries the client
// reference for lifecycle calls and talks to the in-sandbox execd agent for
// commands and files.
type Sandbox struct {
	sandboxID   string
	image       string
	alias       *string
	domain      *string
	accessToken *string

	client *Client

	// Shared RPC clients for the execd services, built on first use.
	processRPCOnce sync.Once
	processRPC     *execd.ProcessClient

	filesystemRPCOnce sync.Once
	filesystemRPC     *execd.FilesystemClient

	filesOnce sync.Once
	files     *Filesystem

	commandsOnce sync.Once
	commands     *Commands
}

// newSandbox builds a handle from an API payload.
func newSandbox(c *Client, d *apiSandbox) *Sandbox {
	return &Sandbox{
		sandboxID:   d.SandboxID,
		image:       d.Image,
		alias:       d.Alias,
		domain:      d.Domain,
		accessToken: d.AccessToken,
		client:      c,
	}
}

// applyDetail refreshes handle fields that the service may rotate.
func (s *Sandbox) applyDetail(d *apiSandbox) {
	if d == nil {
		return
	}
	s.alias = d.Alias
	s.domain = d.Domain
	if d.AccessToken != nil {
		s.accessToken = d.AccessToken
	}
}

// ID returns the sandbox ID.
func (s *Sandbox) ID() string { return s.sandboxID }

// Image returns the image the sandbox was created from.
func (s *Sandbox) Image() string { return s.image }

// Alias returns the sandbox alias, if any.
func (s *Sandbox) Alias() *string { return s.alias }

// Domain returns the per-sandbox runtime domain, if any.
func (s *Sandbox) Domain() *string { return s.domain }

// processClient returns the shared process RPC client.
func (s *Sandbox) processClient() *execd.ProcessClient {
	s.processRPCOnce.Do(func() {
		s.processRPC = execd.NewProcessClient(s.client.transport, s.execdURL())
	})
	return s.processRPC
}

// filesystemClient returns the shared filesystem RPC client.
func (s *Sandbox) filesystemClient() *execd.FilesystemClient {
	s.filesystemRPCOnce.Do(func() {
		s.filesystemRPC = execd.NewFilesystemClient(s.client.transport, s.execdURL())
	})
	return s.filesystemRPC
}

// Create boots a new sandbox from params.Image.
func (c *Client) Create(ctx context.Context, params CreateParams) (*Sandbox, error) {
	d, err := c.api.CreateSandbox(ctx, params.toAPI())
	if err != nil {
		return nil, err
	}
	return newSandbox(c, d), nil
}

// Connect attaches to an existing sandbox. A non-nil params with a positive
// Timeout also replaces the inactivity timeout.
func (c *Client) Connect(ctx context.Context, sandboxID string, params *ConnectParams) (*Sandbox, error) {
	d, err := c.api.GetSandbox(ctx, sandboxID)
	if err != nil {
		return nil, err
	}
	sb := newSandbox(c, d)
	if params != nil && params.Timeout > 0 {
		if err := c.api.SetSandboxTimeout(ctx, sandboxID, params.Timeout); err != nil {
			return nil, err
		}
	}
	return sb, nil
}

// List returns one page of sandboxes matching params.
func (c *Client) List(ctx context.Context, params ListParams) (*SandboxList, error) {
	list, err := c.api.ListSandboxes(ctx, params)
	if err != nil {
		return nil, err
	}
	return sandboxListFromAPI(list), nil
}

// Kill terminates the sandbox. A sandbox that is already gone is not an
// error, so teardown paths can call Kill unconditionally.
func (s *Sandbox) Kill(ctx context.Context) error {
	if err := s.client.api.DeleteSandbox(ctx, s.sandboxID); err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	return nil
}

// SetTimeout replaces the inactivity timeout. The sandbox expires after the
// given duration from now. timeout must be at least 1 second.
func (s *Sandbox) SetTimeout(ctx context.Context, timeout time.Duration) error {
	if timeout < time.Second {
		return fmt.Errorf("timeout must be at least 1 second, got %v", timeout)
	}
	secs := timeout.Seconds()
	if secs > float64(math.MaxInt32) {
		return fmt.Errorf("timeout %v exceeds maximum allowed value", timeout)
	}
	return s.client.api.SetSandboxTimeout(ctx, s.sandboxID, int32(secs))
}

// GetInfo returns the detailed sandbox description.
func (s *Sandbox) GetInfo(ctx context.Context) (*SandboxInfo, error) {
	d, err := s.client.api.GetSandbox(ctx, s.sandboxID)
	if err != nil {
		return nil, err
	}
	s.applyDetail(d)
	return sandboxInfoFromAPI(d), nil
}

// IsRunning reports whether the sandbox is in the running state.
func (s *Sandbox) IsRunning(ctx context.Context) (bool, error) {
	info, err := s.GetInfo(ctx)
	if err != nil {
		return false, err
	}
	return info.State == StateRunning, nil
}

// GetMetrics returns resource usage samples.
func (s *Sandbox) GetMetrics(ctx context.Context, params GetMetricsParams) ([]SandboxMetric, error) {
	metrics, err := s.client.api.GetSandboxMetrics(ctx, s.sandboxID, params)
	if err != nil {
		return nil, err
	}
	return sandboxMetricsFromAPI(metrics), nil
}

// GetLogs returns sandbox runtime logs.
func (s *Sandbox) GetLogs(ctx context.Context, params GetLogsParams) ([]SandboxLog, error) {
	logs, err := s.client.api.GetSandboxLogs(ctx, s.sandboxID, params)
	if err != nil {
		return nil, err
	}
	return sandboxLogsFromAPI(logs), nil
}

// Pause suspends the sandbox so it can be resumed later.
func (s *Sandbox) Pause(ctx context.Context) error {
	return s.client.api.PauseSandbox(ctx, s.sandboxID)
}

// Resume restarts a paused sandbox. A non-nil params with a positive
// Timeout also replaces the inactivity timeout.
func (s *Sandbox) Resume(ctx context.Context, params *ConnectParams) error {
	req := apiResumeRequest{}
	if params != nil && params.Timeout > 0 {
		t := params.Timeout
		req.Timeout = &t
	}
	d, err := s.client.api.ResumeSandbox(ctx, s.sandboxID, req)
	if err != nil {
		return err
	}
	s.applyDetail(d)
	return nil
}

// Refresh extends the sandbox lifetime.
func (s *Sandbox) Refresh(ctx context.Context, params RefreshParams) error {
	return s.client.api.RefreshSandbox(ctx, s.sandboxID, params.toAPI())
}

// WaitForReady polls GetInfo until the sandbox state is "running" or the
// context is cancelled. The default poll interval is 1 second; see
// WithPollInterval, WithBackoff and WithOnPoll.
func (s *Sandbox) WaitForReady(ctx context.Context, opts ...PollOption) (*SandboxInfo, error) {
	o := defaultPollOpts(time.Second)
	for _, fn := range opts {
		fn(o)
	}

	return pollLoop(ctx, o, func() (bool, *SandboxInfo, error) {
		info, err := s.GetInfo(ctx)
		if err != nil {
			return false, nil, fmt.Errorf("get sandbox %s: %w", s.sandboxID, err)
		}
		if info.State == StateRunning {
			return true, info, nil
		}
		return false, nil, nil
	})
}

// CreateAndWait creates a sandbox and waits for it to be ready.
func (c *Client) CreateAndWait(ctx context.Context, params CreateParams, opts ...PollOption) (*Sandbox, *SandboxInfo, error) {
	sb, err := c.Create(ctx, params)
	if err != nil {
		return nil, nil, fmt.Errorf("create sandbox: %w", err)
	}
	info, err := sb.WaitForReady(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}
	return sb, info, nil
}

// HealthCheck calls the service health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.api.Health(ctx)
}

// HealthCheck calls the health endpoint of the execd agent inside the
// sandbox.
func (s *Sandbox) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.execdURL()+"/health", nil)
	if err != nil {
		return err
	}
	req.Header = execdAuthHeader(DefaultUser)
	resp, err := s.client.transport.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return newAPIError(resp.StatusCode, raw)
	}
	return nil
}

// Files returns the filesystem API of this sandbox.
func (s *Sandbox) Files() *Filesystem {
	s.filesOnce.Do(func() {
		s.files = newFilesystem(s)
	})
	return s.files
}

// Commands returns the command execution API of this sandbox.
func (s *Sandbox) Commands() *Commands {
	s.commandsOnce.Do(func() {
		s.commands = newCommands(s, s.processClient())
	})
	return s.commands
}

// GetHost returns the external host for one exposed sandbox port, in the
// form {port}-{sandboxID}.{domain}.
func (s *Sandbox) GetHost(port int) string {
	domain := s.client.config.RuntimeDomain
	if domain == "" {
		domain = s.client.config.Domain
	}
	if s.domain != nil && *s.domain != "" {
		domain = *s.domain
	}
	return fmt.Sprintf("%d-%s.%s", port, s.sandboxID, domain)
}

// execdURL is the base URL of the sandbox agent, routed through the service
// gateway so the control-plane credentials keep applying.
func (s *Sandbox) execdURL() string {
	return s.client.endpointURL() + "/v1/sandboxes/" + url.PathEscape(s.sandboxID) + "/execd"
}

// execdAuthHeader builds the agent auth header, Basic base64(username:).
func execdAuthHeader(user string) http.Header {
	h := http.Header{}
	cred := base64.StdEncoding.EncodeToString([]byte(user + ":"))
	h.Set("Authorization", "Basic "+cred)
	return h
}

// setExecdAuth sets the agent auth header on a connect request.
func setExecdAuth[T any](req *connect.Request[T], user string) {
	cred := base64.StdEncoding.EncodeToString([]byte(user + ":"))
	req.Header().Set("Authorization", "Basic "+cred)
}

// FileURLOption configures file URL construction.
type FileURLOption func(*fileURLOpts)

type fileURLOpts struct {
	user                string
	signatureExpiration int
}

// WithFileUser sets the sandbox user for the file operation.
func WithFileUser(user string) FileURLOption {
	return func(o *fileURLOpts) { o.user = user }
}

// WithSignatureExpiration sets the signature lifetime in seconds.
func WithSignatureExpiration(seconds int) FileURLOption {
	return func(o *fileURLOpts) { o.signatureExpiration = seconds }
}

// fileSignature computes the file access signature:
// "v1_" + SHA256(path + ":" + operation + ":" + username + ":" + accessToken + ":" + expiration).
//
// The algorithm is defined by the service; both sides must agree on it and
// it cannot change unilaterally here.
func fileSignature(path, operation, username, accessToken string, expiration int) string {
	raw := fmt.Sprintf("%s:%s:%s:%s:%d", path, operation, username, accessToken, expiration)
	hash := sha256.Sum256([]byte(raw))
	return "v1_" + fmt.Sprintf("%x", hash)
}

// DownloadURL returns the URL for downloading a file from the sandbox.
func (s *Sandbox) DownloadURL(path string, opts ...FileURLOption) string {
	return s.fileURL(path, "read", opts...)
}

// UploadURL returns the URL for uploading a file into the sandbox
// (multipart/form-data POST).
func (s *Sandbox) UploadURL(path string, opts ...FileURLOption) string {
	return s.fileURL(path, "write", opts...)
}

// fileURL builds a signed execd file URL.
func (s *Sandbox) fileURL(path, operation string, opts ...FileURLOption) string {
	o := &fileURLOpts{user: DefaultUser}
	for _, fn := range opts {
		fn(o)
	}

	q := url.Values{}
	q.Set("path", path)
	q.Set("username", o.user)

	if s.accessToken != nil && *s.accessToken != "" {
		exp := o.signatureExpiration
		if exp == 0 {
			exp = 300
		}
		sig := fileSignature(path, operation, o.user, *s.accessToken, exp)
		q.Set("signature", sig)
		q.Set("signature_expiration", strconv.Itoa(exp))
	}

	return s.execdURL() + "/files?" + q.Encode()
}

// batchUploadURL returns the batch upload URL. Unlike UploadURL it sets no
// path parameter; execd takes each destination from the part filename, so
// the signature covers an empty path.
func (s *Sandbox) batchUploadURL(user string) string {
	q := url.Values{}
	q.Set("username", user)

	if s.accessToken != nil && *s.accessToken != "" {
		exp := 300
		sig := fileSignature("", "write", user, *s.accessToken, exp)
		q.Set("signature", sig)
		q.Set("signature_expiration", strconv.Itoa(exp))
	}

	return s.execdURL() + "/files?" + q.Encode()
}
