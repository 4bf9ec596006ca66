package execd

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
)

const (
	// FilesystemServiceName is the fully qualified name of the filesystem
	// service.
	FilesystemServiceName = "execd.v1.Filesystem"

	FilesystemStatProcedure    = "/execd.v1.Filesystem/Stat"
	FilesystemListDirProcedure = "/execd.v1.Filesystem/ListDir"
	FilesystemMakeDirProcedure = "/execd.v1.Filesystem/MakeDir"
	FilesystemRemoveProcedure  = "/execd.v1.Filesystem/Remove"
	FilesystemMoveProcedure    = "/execd.v1.Filesystem/Move"
	FilesystemWatchProcedure   = "/execd.v1.Filesystem/Watch"
)

// EntryType distinguishes files from directories.
type EntryType string

const (
	EntryTypeFile      EntryType = "file"
	EntryTypeDirectory EntryType = "directory"
)

// EntryInfo describes one filesystem entry. Relative paths in requests
// resolve against the sandbox working directory; Path in responses is always
// absolute.
type EntryInfo struct {
	Name          string     `json:"name"`
	Type          EntryType  `json:"type"`
	Path          string     `json:"path"`
	Size          int64      `json:"size"`
	Mode          uint32     `json:"mode"`
	Permissions   string     `json:"permissions"`
	Owner         string     `json:"owner"`
	Group         string     `json:"group"`
	ModifiedTime  *time.Time `json:"modified_time,omitempty"`
	SymlinkTarget *string    `json:"symlink_target,omitempty"`
}

type StatRequest struct {
	Path string `json:"path"`
}

type StatResponse struct {
	Entry *EntryInfo `json:"entry"`
}

type ListDirRequest struct {
	Path string `json:"path"`
	// Depth limits recursion; 0 or 1 lists only direct children.
	Depth uint32 `json:"depth,omitempty"`
}

type ListDirResponse struct {
	Entries []*EntryInfo `json:"entries"`
}

type MakeDirRequest struct {
	Path string `json:"path"`
}

type MakeDirResponse struct {
	Entry *EntryInfo `json:"entry"`
}

type RemoveRequest struct {
	Path string `json:"path"`
}

type RemoveResponse struct{}

type MoveRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

type MoveResponse struct {
	Entry *EntryInfo `json:"entry"`
}

// EventType classifies a filesystem change reported by a watch.
type EventType string

const (
	EventTypeCreate EventType = "create"
	EventTypeWrite  EventType = "write"
	EventTypeRemove EventType = "remove"
	EventTypeRename EventType = "rename"
	EventTypeChmod  EventType = "chmod"
)

// FilesystemEvent is one observed change below a watched directory. Name is
// the absolute path of the affected entry.
type FilesystemEvent struct {
	Name string    `json:"name"`
	Type EventType `json:"type"`
}

// WatchStartEvent is emitted once, when the watch is registered, before any
// filesystem events.
type WatchStartEvent struct{}

// WatchEvent is a tagged union; exactly one field is set.
type WatchEvent struct {
	Start      *WatchStartEvent `json:"start,omitempty"`
	Filesystem *FilesystemEvent `json:"filesystem,omitempty"`
}

type WatchRequest struct {
	Path string `json:"path"`
	// Recursive extends the watch to entries below direct children of Path.
	Recursive bool `json:"recursive,omitempty"`
}

type WatchResponse struct {
	Event *WatchEvent `json:"event,omitempty"`
}

// FilesystemClient calls the filesystem service of one sandbox agent.
type FilesystemClient struct {
	stat    *connect.Client[StatRequest, StatResponse]
	listDir *connect.Client[ListDirRequest, ListDirResponse]
	makeDir *connect.Client[MakeDirRequest, MakeDirResponse]
	remove  *connect.Client[RemoveRequest, RemoveResponse]
	move    *connect.Client[MoveRequest, MoveResponse]
	watch   *connect.Client[WatchRequest, WatchResponse]
}

// NewFilesystemClient builds a FilesystemClient against baseURL. The JSON
// codec is applied before any caller options.
func NewFilesystemClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *FilesystemClient {
	opts = append([]connect.ClientOption{WithJSONCodec()}, opts...)
	return &FilesystemClient{
		stat: connect.NewClient[StatRequest, StatResponse](
			httpClient, baseURL+FilesystemStatProcedure, opts...),
		listDir: connect.NewClient[ListDirRequest, ListDirResponse](
			httpClient, baseURL+FilesystemListDirProcedure, opts...),
		makeDir: connect.NewClient[MakeDirRequest, MakeDirResponse](
			httpClient, baseURL+FilesystemMakeDirProcedure, opts...),
		remove: connect.NewClient[RemoveRequest, RemoveResponse](
			httpClient, baseURL+FilesystemRemoveProcedure, opts...),
		move: connect.NewClient[MoveRequest, MoveResponse](
			httpClient, baseURL+FilesystemMoveProcedure, opts...),
		watch: connect.NewClient[WatchRequest, WatchResponse](
			httpClient, baseURL+FilesystemWatchProcedure, opts...),
	}
}

func (c *FilesystemClient) Stat(ctx context.Context, req *connect.Request[StatRequest]) (*connect.Response[StatResponse], error) {
	return c.stat.CallUnary(ctx, req)
}

func (c *FilesystemClient) ListDir(ctx context.Context, req *connect.Request[ListDirRequest]) (*connect.Response[ListDirResponse], error) {
	return c.listDir.CallUnary(ctx, req)
}

func (c *FilesystemClient) MakeDir(ctx context.Context, req *connect.Request[MakeDirRequest]) (*connect.Response[MakeDirResponse], error) {
	return c.makeDir.CallUnary(ctx, req)
}

func (c *FilesystemClient) Remove(ctx context.Context, req *connect.Request[RemoveRequest]) (*connect.Response[RemoveResponse], error) {
	return c.remove.CallUnary(ctx, req)
}

func (c *FilesystemClient) Move(ctx context.Context, req *connect.Request[MoveRequest]) (*connect.Response[MoveResponse], error) {
	return c.move.CallUnary(ctx, req)
}

func (c *FilesystemClient) Watch(ctx context.Context, req *connect.Request[WatchRequest]) (*connect.ServerStreamForClient[WatchResponse], error) {
	return c.watch.CallServerStream(ctx, req)
}

// FilesystemHandler is the server-side contract of the filesystem service.
type FilesystemHandler interface {
	Stat(context.Context, *connect.Request[StatRequest]) (*connect.Response[StatResponse], error)
	ListDir(context.Context, *connect.Request[ListDirRequest]) (*connect.Response[ListDirResponse], error)
	MakeDir(context.Context, *connect.Request[MakeDirRequest]) (*connect.Response[MakeDirResponse], error)
	Remove(context.Context, *connect.Request[RemoveRequest]) (*connect.Response[RemoveResponse], error)
	Move(context.Context, *connect.Request[MoveRequest]) (*connect.Response[MoveResponse], error)
	Watch(context.Context, *connect.Request[WatchRequest], *connect.ServerStream[WatchResponse]) error
}

// NewFilesystemHandler mounts svc and returns the path prefix to register
// it under.
func NewFilesystemHandler(svc FilesystemHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSONCodec()}, opts...)
	statHandler := connect.NewUnaryHandler(FilesystemStatProcedure, svc.Stat, opts...)
	listDirHandler := connect.NewUnaryHandler(FilesystemListDirProcedure, svc.ListDir, opts...)
	makeDirHandler := connect.NewUnaryHandler(FilesystemMakeDirProcedure, svc.MakeDir, opts...)
	removeHandler := connect.NewUnaryHandler(FilesystemRemoveProcedure, svc.Remove, opts...)
	moveHandler := connect.NewUnaryHandler(FilesystemMoveProcedure, svc.Move, opts...)
	watchHandler := connect.NewServerStreamHandler(FilesystemWatchProcedure, svc.Watch, opts...)
	return "/execd.v1.Filesystem/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case FilesystemStatProcedure:
			statHandler.ServeHTTP(w, r)
		case FilesystemListDirProcedure:
			listDirHandler.ServeHTTP(w, r)
		case FilesystemMakeDirProcedure:
			makeDirHandler.ServeHTTP(w, r)
		case FilesystemRemoveProcedure:
			removeHandler.ServeHTTP(w, r)
		case FilesystemMoveProcedure:
			moveHandler.ServeHTTP(w, r)
		case FilesystemWatchProcedure:
			watchHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// UnimplementedFilesystemHandler returns CodeUnimplemented from every
// method. Embed it in partial fakes.
type UnimplementedFilesystemHandler struct{}

func (UnimplementedFilesystemHandler) Stat(context.Context, *connect.Request[StatRequest]) (*connect.Response[StatResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented(FilesystemStatProcedure))
}

func (UnimplementedFilesystemHandler) ListDir(context.Context, *connect.Request[ListDirRequest]) (*connect.Response[ListDirResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented(FilesystemListDirProcedure))
}

func (UnimplementedFilesystemHandler) MakeDir(context.Context, *connect.Request[MakeDirRequest]) (*connect.Response[MakeDirResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented(FilesystemMakeDirProcedure))
}

func (UnimplementedFilesystemHandler) Remove(context.Context, *connect.Request[RemoveRequest]) (*connect.Response[RemoveResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented(FilesystemRemoveProcedure))
}

func (UnimplementedFilesystemHandler) Move(context.Context, *connect.Request[MoveRequest]) (*connect.Response[MoveResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errUnimplemented(FilesystemMoveProcedure))
}

func (UnimplementedFilesystemHandler) Watch(context.Context, *connect.Request[WatchRequest], *connect.ServerStream[WatchResponse]) error {
	return connect.NewError(connect.CodeUnimplemented, errUnimplemented(FilesystemWatchProcedure))
}
