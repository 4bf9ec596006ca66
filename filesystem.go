package opensandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"connectrpc.com/connect"

	"github.com/opensandbox/sdk-go/execd"
)

// FileType is the kind of a filesystem entry.
type FileType string

const (
	// FileTypeFile is a regular file.
	FileTypeFile FileType = "file"
	// FileTypeDirectory is a directory.
	FileTypeDirectory FileType = "dir"
)

// EntryInfo holds the metadata of a file or directory.
type EntryInfo struct {
	Name          string
	Type          FileType
	Path          string
	Size          int64
	Mode          uint32
	Permissions   string
	Owner         string
	Group         string
	ModifiedTime  time.Time
	SymlinkTarget *string
}

func entryInfoFromAPI(e *execd.EntryInfo) *EntryInfo {
	if e == nil {
		return nil
	}
	info := &EntryInfo{
		Name:        e.Name,
		Path:        e.Path,
		Size:        e.Size,
		Mode:        e.Mode,
		Permissions: e.Permissions,
		Owner:       e.Owner,
		Group:       e.Group,
	}
	switch e.Type {
	case execd.EntryTypeFile:
		info.Type = FileTypeFile
	case execd.EntryTypeDirectory:
		info.Type = FileTypeDirectory
	}
	if e.ModifiedTime != nil {
		info.ModifiedTime = *e.ModifiedTime
	}
	if e.SymlinkTarget != nil {
		t := *e.SymlinkTarget
		info.SymlinkTarget = &t
	}
	return info
}

// EventType is the kind of a filesystem change event.
type EventType string

const (
	// EventCreate reports a created file or directory.
	EventCreate EventType = "create"
	// EventWrite reports a write to a file.
	EventWrite EventType = "write"
	// EventRemove reports a removed file or directory.
	EventRemove EventType = "remove"
	// EventRename reports a renamed file or directory.
	EventRename EventType = "rename"
	// EventChmod reports a permission change.
	EventChmod EventType = "chmod"
)

// FilesystemEvent is one change reported by a directory watch. Name is the
// absolute path of the affected entry.
type FilesystemEvent struct {
	Name string
	Type EventType
}

func filesystemEventFromAPI(e *execd.FilesystemEvent) FilesystemEvent {
	ev := FilesystemEvent{Name: e.Name}
	switch e.Type {
	case execd.EventTypeCreate:
		ev.Type = EventCreate
	case execd.EventTypeWrite:
		ev.Type = EventWrite
	case execd.EventTypeRemove:
		ev.Type = EventRemove
	case execd.EventTypeRename:
		ev.Type = EventRename
	case execd.EventTypeChmod:
		ev.Type = EventChmod
	}
	return ev
}

// FilesystemOption configures a filesystem operation.
type FilesystemOption func(*filesystemOpts)

type filesystemOpts struct {
	user string
}

// WithUser sets the user a filesystem operation runs as.
func WithUser(user string) FilesystemOption {
	return func(o *filesystemOpts) { o.user = user }
}

func applyFilesystemOpts(opts []FilesystemOption) *filesystemOpts {
	o := &filesystemOpts{user: DefaultUser}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// ListOption configures directory listing.
type ListOption func(*listOpts)

type listOpts struct {
	filesystemOpts
	depth uint32
}

// WithDepth sets the recursion depth of a listing. Defaults to 1.
func WithDepth(depth uint32) ListOption {
	return func(o *listOpts) { o.depth = depth }
}

// WithListUser sets the user a listing runs as.
func WithListUser(user string) ListOption {
	return func(o *listOpts) { o.user = user }
}

func applyListOpts(opts []ListOption) *listOpts {
	o := &listOpts{
		filesystemOpts: filesystemOpts{user: DefaultUser},
		depth:          1,
	}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// WatchOption configures a directory watch.
type WatchOption func(*watchOpts)

type watchOpts struct {
	filesystemOpts
	recursive bool
}

// WithRecursive extends a watch to entries below direct children of the
// watched directory.
func WithRecursive(recursive bool) WatchOption {
	return func(o *watchOpts) { o.recursive = recursive }
}

// WithWatchUser sets the user a watch runs as.
func WithWatchUser(user string) WatchOption {
	return func(o *watchOpts) { o.user = user }
}

func applyWatchOpts(opts []WatchOption) *watchOpts {
	o := &watchOpts{filesystemOpts: filesystemOpts{user: DefaultUser}}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// WatchHandle delivers the events of one directory watch.
type WatchHandle struct {
	events chan FilesystemEvent
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Events returns the channel watch events arrive on. It closes when the
// watch ends.
func (w *WatchHandle) Events() <-chan FilesystemEvent {
	return w.events
}

// Err reports why the watch ended, nil after a clean stop. Read it only
// after Events has closed.
func (w *WatchHandle) Err() error {
	return w.err
}

// Stop cancels the watch and waits for the event channel to close.
func (w *WatchHandle) Stop() {
	w.cancel()
	<-w.done
}

// WriteEntry is one file of a batch write.
type WriteEntry struct {
	Path string
	Data []byte
}

// Filesystem accesses files inside the sandbox. Relative paths resolve
// against the working directory of the sandbox user.
type Filesystem struct {
	sandbox *Sandbox
	rpc     *execd.FilesystemClient
}

func newFilesystem(s *Sandbox) *Filesystem {
	return &Filesystem{sandbox: s, rpc: s.filesystemClient()}
}

// Read returns the content of the file at path.
func (fs *Filesystem) Read(ctx context.Context, path string, opts ...FilesystemOption) ([]byte, error) {
	o := applyFilesystemOpts(opts)
	downloadURL := fs.sandbox.DownloadURL(path, WithFileUser(o.user))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := fs.sandbox.client.transport.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, newAPIError(resp.StatusCode, body)
	}

	return io.ReadAll(resp.Body)
}

// ReadText returns the content of the file at path as a string.
func (fs *Filesystem) ReadText(ctx context.Context, path string, opts ...FilesystemOption) (string, error) {
	data, err := fs.Read(ctx, path, opts...)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Write stores data at path, overwriting an existing file and creating
// missing parent directories. It returns the metadata of the written file.
func (fs *Filesystem) Write(ctx context.Context, path string, data []byte, opts ...FilesystemOption) (*EntryInfo, error) {
	o := applyFilesystemOpts(opts)
	uploadURL := fs.sandbox.UploadURL(path, WithFileUser(o.user))

	pr, pw := io.Pipe()
	writer := newMultipartWriter(pw)

	go func() {
		if err := writer.writeFile("file", path, data); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := writer.close(); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.Close()
	}()

	if err := fs.upload(ctx, uploadURL, writer.contentType(), pr); err != nil {
		return nil, err
	}

	// The upload response has no body worth parsing; stat for the metadata.
	return fs.Stat(ctx, path, opts...)
}

// WriteFiles stores several files in one request. The destination path of
// each file travels in its multipart part filename.
func (fs *Filesystem) WriteFiles(ctx context.Context, files []WriteEntry, opts ...FilesystemOption) ([]*EntryInfo, error) {
	if len(files) == 0 {
		return nil, nil
	}
	o := applyFilesystemOpts(opts)
	uploadURL := fs.sandbox.batchUploadURL(o.user)

	pr, pw := io.Pipe()
	writer := newMultipartWriter(pw)

	go func() {
		for _, f := range files {
			if err := writer.writeFileFullPath("file", f.Path, f.Data); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		if err := writer.close(); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.Close()
	}()

	if err := fs.upload(ctx, uploadURL, writer.contentType(), pr); err != nil {
		return nil, err
	}

	infos := make([]*EntryInfo, 0, len(files))
	for _, f := range files {
		info, err := fs.Stat(ctx, f.Path, opts...)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (fs *Filesystem) upload(ctx context.Context, uploadURL, contentType string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := fs.sandbox.client.transport.Do(req)
	if err != nil {
		return fmt.Errorf("upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return newAPIError(resp.StatusCode, respBody)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// List returns the entries under path.
func (fs *Filesystem) List(ctx context.Context, path string, opts ...ListOption) ([]EntryInfo, error) {
	o := applyListOpts(opts)
	req := connect.NewRequest(&execd.ListDirRequest{
		Path:  path,
		Depth: o.depth,
	})
	setExecdAuth(req, o.user)

	resp, err := fs.rpc.ListDir(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("list dir: %w", err)
	}

	entries := make([]EntryInfo, 0, len(resp.Msg.Entries))
	for _, e := range resp.Msg.Entries {
		entries = append(entries, *entryInfoFromAPI(e))
	}
	return entries, nil
}

// Stat returns the metadata of the file or directory at path.
func (fs *Filesystem) Stat(ctx context.Context, path string, opts ...FilesystemOption) (*EntryInfo, error) {
	o := applyFilesystemOpts(opts)
	req := connect.NewRequest(&execd.StatRequest{Path: path})
	setExecdAuth(req, o.user)

	resp, err := fs.rpc.Stat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	return entryInfoFromAPI(resp.Msg.Entry), nil
}

// Exists reports whether path exists. A missing path is not an error.
func (fs *Filesystem) Exists(ctx context.Context, path string, opts ...FilesystemOption) (bool, error) {
	_, err := fs.Stat(ctx, path, opts...)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MakeDir creates the directory at path, including missing parents.
func (fs *Filesystem) MakeDir(ctx context.Context, path string, opts ...FilesystemOption) (*EntryInfo, error) {
	o := applyFilesystemOpts(opts)
	req := connect.NewRequest(&execd.MakeDirRequest{Path: path})
	setExecdAuth(req, o.user)

	resp, err := fs.rpc.MakeDir(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return entryInfoFromAPI(resp.Msg.Entry), nil
}

// Remove deletes the file or directory at path.
func (fs *Filesystem) Remove(ctx context.Context, path string, opts ...FilesystemOption) error {
	o := applyFilesystemOpts(opts)
	req := connect.NewRequest(&execd.RemoveRequest{Path: path})
	setExecdAuth(req, o.user)

	_, err := fs.rpc.Remove(ctx, req)
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

// Rename moves the entry at oldPath to newPath.
func (fs *Filesystem) Rename(ctx context.Context, oldPath, newPath string, opts ...FilesystemOption) (*EntryInfo, error) {
	o := applyFilesystemOpts(opts)
	req := connect.NewRequest(&execd.MoveRequest{
		Source:      oldPath,
		Destination: newPath,
	})
	setExecdAuth(req, o.user)

	resp, err := fs.rpc.Move(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("move: %w", err)
	}
	return entryInfoFromAPI(resp.Msg.Entry), nil
}

// WatchDir starts watching the directory at path for changes. The watch is
// registered once WatchDir returns, so changes made afterwards are not
// missed. The handle delivers events until Stop is called or ctx ends.
func (fs *Filesystem) WatchDir(ctx context.Context, path string, opts ...WatchOption) (*WatchHandle, error) {
	o := applyWatchOpts(opts)

	watchCtx, cancel := context.WithCancel(ctx)
	req := connect.NewRequest(&execd.WatchRequest{
		Path:      path,
		Recursive: o.recursive,
	})
	setExecdAuth(req, o.user)

	stream, err := fs.rpc.Watch(watchCtx, req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch dir: %w", err)
	}

	// The agent acknowledges the registered watch with a start event before
	// any filesystem events.
	if !stream.Receive() {
		err := stream.Err()
		cancel()
		if err == nil {
			err = errors.New("watch stream closed before the start event")
		}
		return nil, fmt.Errorf("watch dir: %w", err)
	}

	w := &WatchHandle{
		events: make(chan FilesystemEvent, 64),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if ev := stream.Msg().Event; ev != nil && ev.Filesystem != nil {
		w.events <- filesystemEventFromAPI(ev.Filesystem)
	}

	go func() {
		defer close(w.done)
		defer close(w.events)
		for stream.Receive() {
			msg := stream.Msg()
			if msg.Event == nil || msg.Event.Filesystem == nil {
				continue
			}
			select {
			case w.events <- filesystemEventFromAPI(msg.Event.Filesystem):
			case <-watchCtx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil && watchCtx.Err() == nil {
			w.err = err
		}
	}()

	return w, nil
}
