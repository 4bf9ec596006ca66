package execd

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

const (
	// ProcessServiceName is the fully qualified name of the process service.
	ProcessServiceName = "execd.v1.Process"

	ProcessStartProcedure      = "/execd.v1.Process/Start"
	ProcessConnectProcedure    = "/execd.v1.Process/Connect"
	ProcessListProcedure       = "/execd.v1.Process/List"
	ProcessSendInputProcedure  = "/execd.v1.Process/SendInput"
	ProcessSendSignalProcedure = "/execd.v1.Process/SendSignal"
)

// Signal names accepted by SendSignal.
type Signal string

const (
	SignalSIGTERM Signal = "SIGTERM"
	SignalSIGKILL Signal = "SIGKILL"
	SignalSIGINT  Signal = "SIGINT"
)

// ProcessConfig describes the process to spawn.
type ProcessConfig struct {
	Cmd  string            `json:"cmd"`
	Args []string          `json:"args,omitempty"`
	Envs map[string]string `json:"envs,omitempty"`
	Cwd  *string           `json:"cwd,omitempty"`
}

// ProcessSelector addresses a running process by its PID.
type ProcessSelector struct {
	PID uint32 `json:"pid"`
}

// ProcessInfo is one entry of a List response.
type ProcessInfo struct {
	PID    uint32         `json:"pid"`
	Config *ProcessConfig `json:"config,omitempty"`
}

// ProcessStartEvent is emitted once, before any output.
type ProcessStartEvent struct {
	PID uint32 `json:"pid"`
}

// ProcessDataEvent carries exactly one output line, newline stripped, on
// either Stdout or Stderr.
type ProcessDataEvent struct {
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`
}

// ExecError describes why an execution failed, as a (name, value) pair such
// as ("ExitError", "exit status 1").
type ExecError struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ProcessEndEvent closes the stream. Error is always present when ExitCode
// is non-zero.
type ProcessEndEvent struct {
	ExitCode int32      `json:"exit_code"`
	Error    *ExecError `json:"error,omitempty"`
}

// ProcessEvent is a tagged union; exactly one field is set.
type ProcessEvent struct {
	Start *ProcessStartEvent `json:"start,omitempty"`
	Data  *ProcessDataEvent  `json:"data,omitempty"`
	End   *ProcessEndEvent   `json:"end,omitempty"`
}

type StartRequest struct {
	Process *ProcessConfig `json:"process"`
}

type StartResponse struct {
	Event *ProcessEvent `json:"event,omitempty"`
}

func (r *StartResponse) GetEvent() *ProcessEvent {
	if r == nil {
		return nil
	}
	return r.Event
}

type ConnectRequest struct {
	Process *ProcessSelector `json:"process"`
}

type ConnectResponse struct {
	Event *ProcessEvent `json:"event,omitempty"`
}

func (r *ConnectResponse) GetEvent() *ProcessEvent {
	if r == nil {
		return nil
	}
	return r.Event
}

type ListRequest struct{}

type ListResponse struct {
	Processes []*ProcessInfo `json:"processes"`
}

type SendInputRequest struct {
	Process *ProcessSelector `json:"process"`
	Stdin   []byte           `json:"stdin,omitempty"`
}

type SendInputResponse struct{}

type SendSignalRequest struct {
	Process *ProcessSelector `json:"process"`
	Signal  Signal           `json:"signal"`
}

type SendSignalResponse struct{}

// ProcessClient calls the process service of one sandbox agent.
type ProcessClient struct {
	start      *connect.Client[StartRequest, StartResponse]
	connect    *connect.Client[ConnectRequest, ConnectResponse]
	list       *connect.Client[ListRequest, ListResponse]
	sendInput  *connect.Client[SendInputRequest, SendInputResponse]
	sendSignal *connect.Client[SendSignalRequest, SendSignalResponse]
}

// NewProcessClient builds a ProcessClient against baseURL, which must
// already point at the agent (gateway path or direct host). The JSON codec
// is applied before any caller options.
func NewProcessClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ProcessClient {
	opts = append([]connect.ClientOption{WithJSONCodec()}, opts...)
	return &ProcessClient{
		start: connect.NewClient[StartRequest, StartResponse](
			httpClient, baseURL+ProcessStartProcedure, opts...),
		connect: connect.NewClient[ConnectRequest, ConnectResponse](
			httpClient, baseURL+ProcessConnectProcedure, opts...),
		list: connect.NewClient[ListRequest, ListResponse](
			httpClient, baseURL+ProcessListProcedure, opts...),
		sendInput: connect.NewClient[SendInputRequest, SendInputResponse](
			httpClient, baseURL+ProcessSendInputProcedure, opts...),
		sendSignal: connect.NewClient[SendSignalRequest, SendSignalResponse](
			httpClient, baseURL+ProcessSendSignalProcedure, opts...),
	}
}

func (c *ProcessClient) Start(ctx context.Context, req *connect.Request[StartRequest]) (*connect.ServerStreamForClient[StartResponse], error) {
	return c.start.CallServerStream(ctx, req)
}

func (c *ProcessClient) Connect(ctx context.Context, req *connect.Request[ConnectRequest]) (*connect.ServerStreamForClient[ConnectResponse], error) {
	return c.connect.CallServerStream(ctx, req)
}

func (c *ProcessClient) List(ctx context.Context, req *connect.Request[ListRequest]) (*connect.Response[ListResponse], error) {
	return c.list.CallUnary(ctx, req)
}

func (c *ProcessClient) SendInput(ctx context.Context, req *connect.Request[SendInputRequest]) (*connect.Response[SendInputResponse], error) {
	return c.sendInput.CallUnary(ctx, req)
}

func (c *ProcessClient) SendSignal(ctx context.Context, req *connect.Request[SendSignalRequest]) (*connect.Response[SendSignalResponse], error) {
	return c.sendSignal.CallUnary(ctx, req)
}

// ProcessHandler is the server-side contract of the process service.
type ProcessHandler interface {
	Start(context.Context, *connect.Request[StartRequest], *connect.ServerStream[StartResponse]) error
	Connect(context.Context, *connect.Request[ConnectRequest], *connect.ServerStream[ConnectResponse]) error
	List(context.Context, *connect.Request[ListRequest]) (*connect.Response[ListResponse], error)
	SendInput(context.Context, *connect.Request[SendInputRequest]) (*connect.Response[SendInputResponse], error)
	SendSignal(context.Context, *connect.Request[SendSignalRequest]) (*connect.Response[SendSignalResponse], error)
}

// NewProcessHandler mounts svc and returns the path prefix to register it
// under, typically on an http.ServeMux or a gorilla router.
func NewProcessHandler(svc ProcessHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSONCodec()}, opts...)
	startHandler := connect.NewServerStreamHandler(ProcessStartProcedure, svc.Start, opts...)
	connectHandler := connect.NewServerStreamHandler(ProcessConnectProcedure, svc.Connect, opts...)
	listHandler := connect.NewUnaryHandler(ProcessListProcedure, svc.List, opts...)
	sendInputHandler := connect.NewUnaryHandler(ProcessSendInputProcedure, svc.SendInput, opts...)
	sendSignalHandler := connect.NewUnaryHandler(ProcessSendSignalProcedure, svc.SendSignal, opts...)
	return "/execd.v1.Process/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ProcessStartProcedure:
			startHandler.ServeHTTP(w, r)
		case ProcessConnectProcedure:
			connectHandler.ServeHTTP(w, r)
		case ProcessListProcedure:
			listHandler.ServeHTTP(w, r)
		case ProcessSendInputProcedure:
			sendInputHandler.ServeHTTP(w, r)
		case ProcessSendSignalProcedure:
			sendSignalHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// UnimplementedProcessHandler returns CodeUnimplemented from every method.
// Embed it in partial fakes.
type UnimplementedProcessHandler struct{}

func (UnimplementedProcessHandler) Start(context.Context, *connect.Request[StartRequest], *connect.ServerStream[StartResponse]) error {
	return connect.NewError(connect.CodeUnimplemented, errUnimplemented(ProcessStartProcedure))
}

func (UnimplementedProcessHandler) Connect(context.Context, *connect.Request[ConnectRequest], *connect.ServerStream[ConnectResponse]) error {
	return connect.NewError(connect.CodeUnimplemented, errUnimplemented(ProcessConnectProcedure))
}

func (UnimplementedProcessHandler) List(context.Context, *connect.Request[ListRequest]) (*connect.Response[ListResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented(ProcessListProcedure))
}

func (UnimplementedProcessHandler) SendInput(context.Context, *connect.Request[SendInputRequest]) (*connect.Response[SendInputResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented(ProcessSendInputProcedure))
}

func (UnimplementedProcessHandler) SendSignal(context.Context, *connect.Request[SendSignalRequest]) (*connect.Response[SendSignalResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented(ProcessSendSignalProcedure))
}
