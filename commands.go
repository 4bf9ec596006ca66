package opensandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"connectrpc.com/connect"

	"github.com/opensandbox/sdk-go/execd"
)

// CommandError describes why a command failed, as the (name, value) pair
// reported by the sandbox agent, for example ("ExitError", "exit status 1").
type CommandError struct {
	Name  string
	Value string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Value)
}

func commandErrorFromAPI(e *execd.ExecError) *CommandError {
	if e == nil {
		return nil
	}
	return &CommandError{Name: e.Name, Value: e.Value}
}

// CommandResult is the outcome of a finished command. Stdout and Stderr
// hold the captured output one line per entry, in arrival order.
type CommandResult struct {
	ExitCode int
	Stdout   []string
	Stderr   []string
	Error    *CommandError
}

// Failed reports whether the command failed. The agent attaches an error to
// every abnormal end, so this is the authoritative check, not ExitCode.
func (r *CommandResult) Failed() bool {
	return r != nil && r.Error != nil
}

// CommandHandle tracks a command started in the background.
type CommandHandle struct {
	PID uint32

	commands *Commands
	cancel   context.CancelFunc
	done     chan struct{}
	pidCh    chan struct{}
	result   *CommandResult

	mu       sync.Mutex
	onStdout func(line string)
	onStderr func(line string)
}

// Wait blocks until the command finishes and returns its result.
func (h *CommandHandle) Wait() (*CommandResult, error) {
	<-h.done
	if h.result == nil {
		return nil, fmt.Errorf("command terminated without result")
	}
	return h.result, nil
}

// Kill terminates the command with SIGKILL.
func (h *CommandHandle) Kill(ctx context.Context) error {
	return h.commands.Kill(ctx, h.PID)
}

// SendStdin writes data to the standard input of the command.
func (h *CommandHandle) SendStdin(ctx context.Context, data []byte) error {
	return h.commands.SendStdin(ctx, h.PID, data)
}

// WaitPID blocks until the agent has assigned a PID to the command and
// returns it, or returns the context error if ctx ends first.
func (h *CommandHandle) WaitPID(ctx context.Context) (uint32, error) {
	select {
	case <-h.pidCh:
		return h.PID, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// ProcessInfo describes one process running inside the sandbox.
type ProcessInfo struct {
	PID  uint32
	Cmd  string
	Args []string
	Envs map[string]string
	Cwd  *string
}

// CommandOption configures command execution.
type CommandOption func(*commandOpts)

type commandOpts struct {
	envs     map[string]string
	cwd      string
	user     string
	onStdout func(line string)
	onStderr func(line string)
	timeout  time.Duration
}

// WithEnvs sets extra environment variables for the command.
func WithEnvs(envs map[string]string) CommandOption {
	return func(o *commandOpts) { o.envs = envs }
}

// WithCwd sets the working directory of the command.
func WithCwd(cwd string) CommandOption {
	return func(o *commandOpts) { o.cwd = cwd }
}

// WithCommandUser sets the user the command runs as. Defaults to "user".
func WithCommandUser(user string) CommandOption {
	return func(o *commandOpts) { o.user = user }
}

// WithOnStdout registers a callback invoked for every stdout line as it
// arrives. Lines are delivered without the trailing newline.
func WithOnStdout(fn func(line string)) CommandOption {
	return func(o *commandOpts) { o.onStdout = fn }
}

// WithOnStderr registers a callback invoked for every stderr line.
func WithOnStderr(fn func(line string)) CommandOption {
	return func(o *commandOpts) { o.onStderr = fn }
}

// WithTimeout aborts the command if it has not finished after the given
// duration. The result then reports a stream error, not a clean exit.
func WithTimeout(timeout time.Duration) CommandOption {
	return func(o *commandOpts) { o.timeout = timeout }
}

func applyCommandOpts(opts []CommandOption) *commandOpts {
	o := &commandOpts{user: DefaultUser}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// Commands executes shell commands inside the sandbox.
type Commands struct {
	sandbox *Sandbox
	rpc     *execd.ProcessClient
}

func newCommands(s *Sandbox, rpc *execd.ProcessClient) *Commands {
	return &Commands{sandbox: s, rpc: rpc}
}

// Run executes cmd in the sandbox and waits for it to finish.
// Stdout and stderr accumulate in memory; long-running commands with heavy
// output should prefer Start with WithOnStdout/WithOnStderr callbacks.
func (c *Commands) Run(ctx context.Context, cmd string, opts ...CommandOption) (*CommandResult, error) {
	handle, err := c.Start(ctx, cmd, opts...)
	if err != nil {
		return nil, err
	}
	return handle.Wait()
}

// Start launches cmd in the sandbox without waiting for it. The returned
// handle resolves once the command ends.
// cmd runs as /bin/bash -l -c <cmd>, so shell syntax (pipes, redirection)
// works and the login profile is loaded.
func (c *Commands) Start(ctx context.Context, cmd string, opts ...CommandOption) (*CommandHandle, error) {
	o := applyCommandOpts(opts)

	var cmdCtx context.Context
	var cmdCancel context.CancelFunc
	if o.timeout > 0 {
		cmdCtx, cmdCancel = context.WithTimeout(ctx, o.timeout)
	} else {
		cmdCtx, cmdCancel = context.WithCancel(ctx)
	}

	startReq := &execd.StartRequest{
		Process: &execd.ProcessConfig{
			Cmd:  "/bin/bash",
			Args: []string{"-l", "-c", cmd},
			Envs: o.envs,
		},
	}
	if o.cwd != "" {
		startReq.Process.Cwd = &o.cwd
	}

	req := connect.NewRequest(startReq)
	setExecdAuth(req, o.user)

	stream, err := c.rpc.Start(cmdCtx, req)
	if err != nil {
		cmdCancel()
		return nil, fmt.Errorf("start command: %w", err)
	}

	handle := &CommandHandle{
		commands: c,
		cancel:   cmdCancel,
		done:     make(chan struct{}),
		pidCh:    make(chan struct{}),
		onStdout: o.onStdout,
		onStderr: o.onStderr,
	}

	go processEventStream(stream, handle)

	return handle, nil
}

// eventMessage is the surface shared by StartResponse and ConnectResponse.
type eventMessage interface {
	GetEvent() *execd.ProcessEvent
}

// streamReceiver abstracts reading from a connect server stream.
type streamReceiver[T eventMessage] interface {
	Receive() bool
	Msg() T
	Err() error
}

// processEventStream consumes a process event stream (shared by Start and
// Connect) and resolves the handle when the stream ends.
func processEventStream[T eventMessage](stream streamReceiver[T], handle *CommandHandle) {
	defer close(handle.done)
	defer handle.cancel()

	var stdout, stderr []string
	for stream.Receive() {
		event := stream.Msg().GetEvent()
		if event == nil {
			continue
		}
		switch {
		case event.Start != nil:
			handle.PID = event.Start.PID
			close(handle.pidCh)
		case event.Data != nil:
			if line := event.Data.Stdout; line != "" {
				stdout = append(stdout, line)
				handle.mu.Lock()
				fn := handle.onStdout
				handle.mu.Unlock()
				if fn != nil {
					fn(line)
				}
			}
			if line := event.Data.Stderr; line != "" {
				stderr = append(stderr, line)
				handle.mu.Lock()
				fn := handle.onStderr
				handle.mu.Unlock()
				if fn != nil {
					fn(line)
				}
			}
		case event.End != nil:
			handle.result = &CommandResult{
				ExitCode: int(event.End.ExitCode),
				Stdout:   stdout,
				Stderr:   stderr,
				Error:    commandErrorFromAPI(event.End.Error),
			}
		}
	}

	// The stream ended without an end event: report a broken stream rather
	// than inventing an exit code the agent never sent.
	if handle.result == nil {
		value := "event stream closed before the end event"
		if err := stream.Err(); err != nil {
			value = err.Error()
		}
		handle.result = &CommandResult{
			ExitCode: -1,
			Stdout:   stdout,
			Stderr:   stderr,
			Error:    &CommandError{Name: "StreamError", Value: value},
		}
	}
}

// Connect attaches to a process already running in the sandbox. Output
// produced before the connection is not replayed.
func (c *Commands) Connect(ctx context.Context, pid uint32, opts ...CommandOption) (*CommandHandle, error) {
	o := applyCommandOpts(opts)

	connectCtx, connectCancel := context.WithCancel(ctx)

	req := connect.NewRequest(&execd.ConnectRequest{
		Process: &execd.ProcessSelector{PID: pid},
	})
	setExecdAuth(req, o.user)

	stream, err := c.rpc.Connect(connectCtx, req)
	if err != nil {
		connectCancel()
		return nil, fmt.Errorf("connect to process: %w", err)
	}

	// PID is already known, so WaitPID must not block.
	pidCh := make(chan struct{})
	close(pidCh)

	handle := &CommandHandle{
		PID:      pid,
		commands: c,
		cancel:   connectCancel,
		done:     make(chan struct{}),
		pidCh:    pidCh,
		onStdout: o.onStdout,
		onStderr: o.onStderr,
	}

	go processEventStream(stream, handle)

	return handle, nil
}

// List returns the processes currently running in the sandbox.
func (c *Commands) List(ctx context.Context) ([]ProcessInfo, error) {
	req := connect.NewRequest(&execd.ListRequest{})
	setExecdAuth(req, DefaultUser)

	resp, err := c.rpc.List(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	var infos []ProcessInfo
	for _, p := range resp.Msg.Processes {
		info := ProcessInfo{PID: p.PID}
		if p.Config != nil {
			info.Cmd = p.Config.Cmd
			info.Args = p.Config.Args
			info.Envs = p.Config.Envs
			info.Cwd = p.Config.Cwd
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// SendStdin writes data to the stdin of a running process.
func (c *Commands) SendStdin(ctx context.Context, pid uint32, data []byte) error {
	req := connect.NewRequest(&execd.SendInputRequest{
		Process: &execd.ProcessSelector{PID: pid},
		Stdin:   data,
	})
	setExecdAuth(req, DefaultUser)

	_, err := c.rpc.SendInput(ctx, req)
	if err != nil {
		return fmt.Errorf("send stdin: %w", err)
	}
	return nil
}

// Kill terminates the process with SIGKILL.
func (c *Commands) Kill(ctx context.Context, pid uint32) error {
	req := connect.NewRequest(&execd.SendSignalRequest{
		Process: &execd.ProcessSelector{PID: pid},
		Signal:  execd.SignalSIGKILL,
	})
	setExecdAuth(req, DefaultUser)

	_, err := c.rpc.SendSignal(ctx, req)
	if err != nil {
		return fmt.Errorf("kill process: %w", err)
	}
	return nil
}
