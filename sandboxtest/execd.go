package sandboxtest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/opensandbox/sdk-go/execd"
)

// newAgentMux mounts the execd fake: the two RPC services plus the plain
// HTTP files endpoint, all addressed relative to the stripped gateway path.
func (s *Server) newAgentMux() *http.ServeMux {
	inner := http.NewServeMux()

	fsPath, fsHandler := execd.NewFilesystemHandler(&agentFilesystem{server: s})
	inner.Handle(fsPath, fsHandler)

	procPath, procHandler := execd.NewProcessHandler(&agentProcess{server: s})
	inner.Handle(procPath, procHandler)

	inner.HandleFunc("/files", s.handleFiles)
	inner.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return inner
}

// cleanPath resolves a request path the way the agent does: relative paths
// live under the default user's home.
func cleanPath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/home/" + execd.DefaultUser + "/" + p
	}
	return path.Clean(p)
}

// ---------------------------------------------------------------------------
// Filesystem service
// ---------------------------------------------------------------------------

type agentFilesystem struct {
	server *Server
}

func errNoSandbox() error {
	return connect.NewError(connect.CodeNotFound, errors.New("sandbox not found"))
}

func errNoPath(p string) error {
	return connect.NewError(connect.CodeNotFound, fmt.Errorf("no such path: %s", p))
}

func (a *agentFilesystem) Stat(ctx context.Context, req *connect.Request[execd.StatRequest]) (*connect.Response[execd.StatResponse], error) {
	rec := recordFrom(ctx)
	if rec == nil {
		return nil, errNoSandbox()
	}
	p := cleanPath(req.Msg.Path)

	a.server.mu.Lock()
	entry, ok := rec.entryAt(p)
	a.server.mu.Unlock()

	if !ok {
		return nil, errNoPath(p)
	}
	return connect.NewResponse(&execd.StatResponse{Entry: entry}), nil
}

func (a *agentFilesystem) ListDir(ctx context.Context, req *connect.Request[execd.ListDirRequest]) (*connect.Response[execd.ListDirResponse], error) {
	rec := recordFrom(ctx)
	if rec == nil {
		return nil, errNoSandbox()
	}
	p := cleanPath(req.Msg.Path)

	a.server.mu.Lock()
	_, ok := rec.entryAt(p)
	var entries []*execd.EntryInfo
	if ok {
		entries = rec.entriesUnder(p, req.Msg.Depth)
	}
	a.server.mu.Unlock()

	if !ok {
		return nil, errNoPath(p)
	}
	return connect.NewResponse(&execd.ListDirResponse{Entries: entries}), nil
}

func (a *agentFilesystem) MakeDir(ctx context.Context, req *connect.Request[execd.MakeDirRequest]) (*connect.Response[execd.MakeDirResponse], error) {
	rec := recordFrom(ctx)
	if rec == nil {
		return nil, errNoSandbox()
	}
	p := cleanPath(req.Msg.Path)

	a.server.mu.Lock()
	if _, exists := rec.files[p]; exists {
		a.server.mu.Unlock()
		return nil, connect.NewError(connect.CodeAlreadyExists, fmt.Errorf("file exists: %s", p))
	}
	rec.dirs[p] = time.Now().UTC()
	rec.publishEvent(p, execd.EventTypeCreate)
	entry, _ := rec.entryAt(p)
	a.server.mu.Unlock()

	return connect.NewResponse(&execd.MakeDirResponse{Entry: entry}), nil
}

func (a *agentFilesystem) Remove(ctx context.Context, req *connect.Request[execd.RemoveRequest]) (*connect.Response[execd.RemoveResponse], error) {
	rec := recordFrom(ctx)
	if rec == nil {
		return nil, errNoSandbox()
	}
	p := cleanPath(req.Msg.Path)

	a.server.mu.Lock()
	ok := rec.removeAt(p)
	if ok {
		rec.publishEvent(p, execd.EventTypeRemove)
	}
	a.server.mu.Unlock()

	if !ok {
		return nil, errNoPath(p)
	}
	return connect.NewResponse(&execd.RemoveResponse{}), nil
}

func (a *agentFilesystem) Move(ctx context.Context, req *connect.Request[execd.MoveRequest]) (*connect.Response[execd.MoveResponse], error) {
	rec := recordFrom(ctx)
	if rec == nil {
		return nil, errNoSandbox()
	}
	src := cleanPath(req.Msg.Source)
	dst := cleanPath(req.Msg.Destination)

	a.server.mu.Lock()
	ok := rec.moveAt(src, dst)
	var entry *execd.EntryInfo
	if ok {
		entry, _ = rec.entryAt(dst)
		rec.publishEvent(src, execd.EventTypeRename)
		rec.publishEvent(dst, execd.EventTypeCreate)
	}
	a.server.mu.Unlock()

	if !ok {
		return nil, errNoPath(src)
	}
	return connect.NewResponse(&execd.MoveResponse{Entry: entry}), nil
}

// Watch streams changes below a directory. A start event acknowledges the
// registered watch before any filesystem events; the stream stays open until
// the client goes away.
func (a *agentFilesystem) Watch(ctx context.Context, req *connect.Request[execd.WatchRequest], stream *connect.ServerStream[execd.WatchResponse]) error {
	rec := recordFrom(ctx)
	if rec == nil {
		return errNoSandbox()
	}
	dir := cleanPath(req.Msg.Path)

	a.server.mu.Lock()
	_, ok := rec.dirAt(dir)
	var w *watchRecord
	if ok {
		w = rec.addWatcher(dir, req.Msg.Recursive)
	}
	a.server.mu.Unlock()

	if !ok {
		return errNoPath(dir)
	}
	defer func() {
		a.server.mu.Lock()
		rec.removeWatcher(w.id)
		a.server.mu.Unlock()
	}()

	if err := stream.Send(&execd.WatchResponse{Event: &execd.WatchEvent{
		Start: &execd.WatchStartEvent{},
	}}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-w.events:
			if err := stream.Send(&execd.WatchResponse{Event: &execd.WatchEvent{
				Filesystem: &ev,
			}}); err != nil {
				return err
			}
		}
	}
}

// entryAt describes the file or directory at p. Directories exist when
// recorded via MakeDir or implied by a deeper entry. Callers hold the lock.
func (r *sandboxRecord) entryAt(p string) (*execd.EntryInfo, bool) {
	if f, ok := r.files[p]; ok {
		mod := f.mod
		return &execd.EntryInfo{
			Name:         path.Base(p),
			Type:         execd.EntryTypeFile,
			Path:         p,
			Size:         int64(len(f.data)),
			Mode:         0o644,
			Permissions:  "-rw-r--r--",
			Owner:        execd.DefaultUser,
			Group:        execd.DefaultUser,
			ModifiedTime: &mod,
		}, true
	}
	if mod, ok := r.dirAt(p); ok {
		return &execd.EntryInfo{
			Name:         path.Base(p),
			Type:         execd.EntryTypeDirectory,
			Path:         p,
			Mode:         0o755,
			Permissions:  "drwxr-xr-x",
			Owner:        execd.DefaultUser,
			Group:        execd.DefaultUser,
			ModifiedTime: &mod,
		}, true
	}
	return nil, false
}

func (r *sandboxRecord) dirAt(p string) (time.Time, bool) {
	if mod, ok := r.dirs[p]; ok {
		return mod, true
	}
	prefix := p
	if prefix != "/" {
		prefix += "/"
	}
	for fp, f := range r.files {
		if strings.HasPrefix(fp, prefix) {
			return f.mod, true
		}
	}
	for dp, mod := range r.dirs {
		if dp != p && strings.HasPrefix(dp, prefix) {
			return mod, true
		}
	}
	return time.Time{}, false
}

// entriesUnder lists entries below dir up to depth levels, sorted by path.
func (r *sandboxRecord) entriesUnder(dir string, depth uint32) []*execd.EntryInfo {
	if depth == 0 {
		depth = 1
	}
	prefix := dir
	if prefix != "/" {
		prefix += "/"
	}

	seen := make(map[string]bool)
	var out []*execd.EntryInfo
	add := func(p string) {
		rel := strings.TrimPrefix(p, prefix)
		if rel == p || rel == "" {
			return
		}
		segs := strings.Split(rel, "/")
		for i := 1; i <= len(segs) && i <= int(depth); i++ {
			sub := prefix + strings.Join(segs[:i], "/")
			if seen[sub] {
				continue
			}
			seen[sub] = true
			if entry, ok := r.entryAt(sub); ok {
				out = append(out, entry)
			}
		}
	}
	for fp := range r.files {
		add(fp)
	}
	for dp := range r.dirs {
		add(dp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (r *sandboxRecord) removeAt(p string) bool {
	if _, ok := r.files[p]; ok {
		delete(r.files, p)
		return true
	}
	if _, ok := r.dirAt(p); !ok {
		return false
	}
	prefix := p + "/"
	for fp := range r.files {
		if strings.HasPrefix(fp, prefix) {
			delete(r.files, fp)
		}
	}
	for dp := range r.dirs {
		if dp == p || strings.HasPrefix(dp, prefix) {
			delete(r.dirs, dp)
		}
	}
	return true
}

func (r *sandboxRecord) moveAt(src, dst string) bool {
	if f, ok := r.files[src]; ok {
		delete(r.files, src)
		r.files[dst] = f
		return true
	}
	if _, ok := r.dirAt(src); !ok {
		return false
	}
	prefix := src + "/"
	for fp, f := range r.files {
		if strings.HasPrefix(fp, prefix) {
			delete(r.files, fp)
			r.files[dst+"/"+strings.TrimPrefix(fp, prefix)] = f
		}
	}
	for dp, mod := range r.dirs {
		if dp == src {
			delete(r.dirs, dp)
			r.dirs[dst] = mod
		} else if strings.HasPrefix(dp, prefix) {
			delete(r.dirs, dp)
			r.dirs[dst+"/"+strings.TrimPrefix(dp, prefix)] = mod
		}
	}
	return true
}

// watchRecord is one live directory watch. Events travel through a buffered
// channel; a full watcher drops events rather than block the mutating
// request.
type watchRecord struct {
	id        int
	dir       string
	recursive bool
	events    chan execd.FilesystemEvent
}

func (w *watchRecord) covers(p string) bool {
	prefix := w.dir
	if prefix != "/" {
		prefix += "/"
	}
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	return w.recursive || !strings.Contains(strings.TrimPrefix(p, prefix), "/")
}

// addWatcher registers a watch on dir. Callers hold the lock.
func (r *sandboxRecord) addWatcher(dir string, recursive bool) *watchRecord {
	r.nextWatch++
	w := &watchRecord{
		id:        r.nextWatch,
		dir:       dir,
		recursive: recursive,
		events:    make(chan execd.FilesystemEvent, 64),
	}
	r.watchers[w.id] = w
	return w
}

// removeWatcher drops a watch. Callers hold the lock.
func (r *sandboxRecord) removeWatcher(id int) {
	delete(r.watchers, id)
}

// publishEvent delivers a change at p to every watch covering it. Callers
// hold the lock.
func (r *sandboxRecord) publishEvent(p string, typ execd.EventType) {
	for _, w := range r.watchers {
		if !w.covers(p) {
			continue
		}
		select {
		case w.events <- execd.FilesystemEvent{Name: p, Type: typ}:
		default:
		}
	}
}

// ---------------------------------------------------------------------------
// Process service
// ---------------------------------------------------------------------------

type agentProcess struct {
	server *Server
}

type procRecord struct {
	pid    uint32
	config *execd.ProcessConfig
}

func cloneConfig(cfg *execd.ProcessConfig) *execd.ProcessConfig {
	out := &execd.ProcessConfig{Cmd: cfg.Cmd}
	out.Args = append(out.Args, cfg.Args...)
	if cfg.Envs != nil {
		out.Envs = make(map[string]string, len(cfg.Envs))
		for k, v := range cfg.Envs {
			out.Envs[k] = v
		}
	}
	if cfg.Cwd != nil {
		cwd := *cfg.Cwd
		out.Cwd = &cwd
	}
	return out
}

func (a *agentProcess) Start(ctx context.Context, req *connect.Request[execd.StartRequest], stream *connect.ServerStream[execd.StartResponse]) error {
	rec := recordFrom(ctx)
	if rec == nil {
		return errNoSandbox()
	}
	cfg := req.Msg.Process
	if cfg == nil || cfg.Cmd == "" {
		return connect.NewError(connect.CodeInvalidArgument, errors.New("process config is required"))
	}

	// The SDK wraps every command as /bin/bash -l -c <cmd>; hand the script
	// hook the command the caller actually wrote.
	cmd := cfg.Cmd
	if n := len(cfg.Args); n > 0 {
		cmd = cfg.Args[n-1]
	}

	a.server.mu.Lock()
	pid := rec.nextPID
	rec.nextPID++
	rec.procs = append(rec.procs, procRecord{pid: pid, config: cloneConfig(cfg)})
	script := a.server.CommandScript
	a.server.mu.Unlock()

	var outcome ExecOutcome
	if script != nil {
		outcome = script(cmd)
	}

	if err := stream.Send(&execd.StartResponse{Event: &execd.ProcessEvent{
		Start: &execd.ProcessStartEvent{PID: pid},
	}}); err != nil {
		return err
	}
	for _, line := range outcome.Stdout {
		if err := stream.Send(&execd.StartResponse{Event: &execd.ProcessEvent{
			Data: &execd.ProcessDataEvent{Stdout: line},
		}}); err != nil {
			return err
		}
	}
	for _, line := range outcome.Stderr {
		if err := stream.Send(&execd.StartResponse{Event: &execd.ProcessEvent{
			Data: &execd.ProcessDataEvent{Stderr: line},
		}}); err != nil {
			return err
		}
	}

	end := &execd.ProcessEndEvent{ExitCode: int32(outcome.ExitCode)}
	if outcome.failed() {
		name := outcome.FailureName
		if name == "" {
			name = "ExitError"
		}
		value := outcome.FailureValue
		if value == "" {
			value = fmtExitError(outcome.ExitCode)
		}
		end.Error = &execd.ExecError{Name: name, Value: value}
	}
	return stream.Send(&execd.StartResponse{Event: &execd.ProcessEvent{End: end}})
}

// Connect reports any known process as already exited: the fake runs
// commands synchronously inside Start, so nothing is left running to attach
// to by the time Connect arrives.
func (a *agentProcess) Connect(ctx context.Context, req *connect.Request[execd.ConnectRequest], stream *connect.ServerStream[execd.ConnectResponse]) error {
	rec := recordFrom(ctx)
	if rec == nil {
		return errNoSandbox()
	}
	if req.Msg.Process == nil || !a.knownPID(rec, req.Msg.Process.PID) {
		return connect.NewError(connect.CodeNotFound, errors.New("no such process"))
	}
	return stream.Send(&execd.ConnectResponse{Event: &execd.ProcessEvent{
		End: &execd.ProcessEndEvent{ExitCode: 0},
	}})
}

func (a *agentProcess) knownPID(rec *sandboxRecord, pid uint32) bool {
	a.server.mu.Lock()
	defer a.server.mu.Unlock()
	for _, proc := range rec.procs {
		if proc.pid == pid {
			return true
		}
	}
	return false
}

func (a *agentProcess) List(ctx context.Context, _ *connect.Request[execd.ListRequest]) (*connect.Response[execd.ListResponse], error) {
	rec := recordFrom(ctx)
	if rec == nil {
		return nil, errNoSandbox()
	}

	a.server.mu.Lock()
	out := make([]*execd.ProcessInfo, 0, len(rec.procs))
	for _, proc := range rec.procs {
		out = append(out, &execd.ProcessInfo{PID: proc.pid, Config: cloneConfig(proc.config)})
	}
	a.server.mu.Unlock()

	return connect.NewResponse(&execd.ListResponse{Processes: out}), nil
}

func (a *agentProcess) SendInput(ctx context.Context, req *connect.Request[execd.SendInputRequest]) (*connect.Response[execd.SendInputResponse], error) {
	rec := recordFrom(ctx)
	if rec == nil {
		return nil, errNoSandbox()
	}
	if req.Msg.Process == nil || !a.knownPID(rec, req.Msg.Process.PID) {
		return nil, connect.NewError(connect.CodeNotFound, errors.New("no such process"))
	}
	return connect.NewResponse(&execd.SendInputResponse{}), nil
}

func (a *agentProcess) SendSignal(ctx context.Context, req *connect.Request[execd.SendSignalRequest]) (*connect.Response[execd.SendSignalResponse], error) {
	rec := recordFrom(ctx)
	if rec == nil {
		return nil, errNoSandbox()
	}
	if req.Msg.Process == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("process selector is required"))
	}
	pid := req.Msg.Process.PID

	a.server.mu.Lock()
	found := false
	if req.Msg.Signal == execd.SignalSIGKILL {
		kept := rec.procs[:0]
		for _, proc := range rec.procs {
			if proc.pid == pid {
				found = true
				continue
			}
			kept = append(kept, proc)
		}
		rec.procs = kept
	} else {
		for _, proc := range rec.procs {
			if proc.pid == pid {
				found = true
				break
			}
		}
	}
	a.server.mu.Unlock()

	if !found {
		return nil, connect.NewError(connect.CodeNotFound, errors.New("no such process"))
	}
	return connect.NewResponse(&execd.SendSignalResponse{}), nil
}

// ---------------------------------------------------------------------------
// Files endpoint
// ---------------------------------------------------------------------------

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	rec := recordFrom(r.Context())
	if rec == nil {
		writeError(w, http.StatusNotFound, "not_found", "sandbox not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.handleFileDownload(w, r, rec)
	case http.MethodPost:
		s.handleFileUpload(w, r, rec)
	default:
		writeError(w, http.StatusMethodNotAllowed, "invalid_argument", "unsupported method")
	}
}

func (s *Server) handleFileDownload(w http.ResponseWriter, r *http.Request, rec *sandboxRecord) {
	q := r.URL.Query()
	if q.Get("path") == "" {
		writeError(w, http.StatusBadRequest, "invalid_argument", "path is required")
		return
	}
	if !s.verifySignature(rec, q, "read") {
		writeError(w, http.StatusForbidden, "permission_denied", "invalid file signature")
		return
	}
	p := cleanPath(q.Get("path"))

	s.mu.Lock()
	f, ok := rec.files[p]
	var data []byte
	if ok {
		data = append(data, f.data...)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleFileUpload accepts both single-file uploads (destination in the path
// query parameter) and batch uploads (destination in each part filename).
func (s *Server) handleFileUpload(w http.ResponseWriter, r *http.Request, rec *sandboxRecord) {
	q := r.URL.Query()
	if !s.verifySignature(rec, q, "write") {
		writeError(w, http.StatusForbidden, "permission_denied", "invalid file signature")
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "multipart body required")
		return
	}

	now := time.Now().UTC()
	stored := 0
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "malformed multipart body")
			return
		}

		dest := q.Get("path")
		if dest == "" {
			// Go's Part.FileName strips directories; parse the raw header to
			// keep the full destination path of batch parts.
			_, params, _ := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
			dest = params["filename"]
		}
		if dest == "" {
			writeError(w, http.StatusBadRequest, "invalid_argument", "part has no destination path")
			return
		}

		data, err := io.ReadAll(part)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "read multipart part")
			return
		}

		p := cleanPath(dest)
		s.mu.Lock()
		typ := execd.EventTypeCreate
		if _, exists := rec.files[p]; exists {
			typ = execd.EventTypeWrite
		}
		rec.files[p] = &fakeFile{data: data, mod: now}
		rec.publishEvent(p, typ)
		s.mu.Unlock()
		stored++
	}

	if stored == 0 {
		writeError(w, http.StatusBadRequest, "invalid_argument", "no file parts in request")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{})
}

// verifySignature checks a presented file signature against the token the
// fake issued for the sandbox. Unsigned requests pass unless
// RequireSignatures is set; a signature that does not match is rejected.
// Batch uploads carry no path parameter, so their signature covers an empty
// path.
func (s *Server) verifySignature(rec *sandboxRecord, q url.Values, operation string) bool {
	sig := q.Get("signature")
	if sig == "" {
		return !s.RequireSignatures
	}
	token := ""
	if rec.payload.AccessToken != nil {
		token = *rec.payload.AccessToken
	}
	exp, err := strconv.Atoi(q.Get("signature_expiration"))
	if err != nil {
		return false
	}
	raw := fmt.Sprintf("%s:%s:%s:%s:%d", q.Get("path"), operation, q.Get("username"), token, exp)
	hash := sha256.Sum256([]byte(raw))
	return sig == "v1_"+hex.EncodeToString(hash[:])
}
