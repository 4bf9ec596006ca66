// Package sandboxtest provides an in-process fake of the OpenSandbox
// service for tests and local development.
//
// Server implements http.Handler and serves the control-plane routes plus a
// live agent fake under /v1/sandboxes/{id}/execd, so the real SDK client can
// run against it unmodified:
//
//	srv := sandboxtest.NewServer()
//	ts := httptest.NewServer(srv)
//	defer ts.Close()
//
//	client, err := opensandbox.NewClient(&opensandbox.Config{
//		Domain: strings.TrimPrefix(ts.URL, "http://"),
//	})
//
// Sandboxes live in memory and boot instantly. Command outcomes are scripted
// through the CommandScript hook; files written through the SDK land in an
// in-memory filesystem that the agent routes serve back.
package sandboxtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// ExecOutcome scripts what one command run inside the fake agent produces.
type ExecOutcome struct {
	Stdout   []string
	Stderr   []string
	ExitCode int

	// FailureName and FailureValue populate the agent-side error attached
	// to the end event. When FailureName is empty and ExitCode is non-zero,
	// an ExitError is synthesized; a zero ExitCode with an empty FailureName
	// means success.
	FailureName  string
	FailureValue string
}

func (o ExecOutcome) failed() bool {
	return o.FailureName != "" || o.ExitCode != 0
}

// Server is an in-memory OpenSandbox service.
//
// Configure APIKey, RequireSignatures and CommandScript before serving the
// first request; everything else is safe for concurrent use.
type Server struct {
	// APIKey, when non-empty, rejects sandbox requests whose X-API-Key
	// header does not match with 401.
	APIKey string

	// RequireSignatures rejects file requests that carry no signature with
	// 403. By default unsigned requests pass and only signatures that are
	// present are checked.
	RequireSignatures bool

	// CommandScript decides the outcome of every command started through
	// the fake agent. It receives the shell command as the SDK caller wrote
	// it. Nil means every command succeeds with no output.
	CommandScript func(cmd string) ExecOutcome

	router *mux.Router

	mu        sync.Mutex
	seq       int
	sandboxes map[string]*sandboxRecord
}

// sandboxRecord is the in-memory state of one fake sandbox.
type sandboxRecord struct {
	payload   sandboxPayload
	autoPause bool
	seq       int

	files     map[string]*fakeFile
	dirs      map[string]time.Time
	procs     []procRecord
	nextPID   uint32
	watchers  map[int]*watchRecord
	nextWatch int

	logs []logPayload
}

type fakeFile struct {
	data []byte
	mod  time.Time
}

// NewServer builds a fake service with no sandboxes.
func NewServer() *Server {
	s := &Server{sandboxes: make(map[string]*sandboxRecord)}

	r := mux.NewRouter()
	r.HandleFunc("/v1/health", s.handleHealth).Methods(http.MethodGet)

	sb := r.PathPrefix("/v1/sandboxes").Subrouter()
	sb.Use(s.requireAPIKey)
	sb.HandleFunc("", s.handleCreate).Methods(http.MethodPost)
	sb.HandleFunc("", s.handleList).Methods(http.MethodGet)
	sb.HandleFunc("/{id}", s.handleGet).Methods(http.MethodGet)
	sb.HandleFunc("/{id}", s.handleDelete).Methods(http.MethodDelete)
	sb.HandleFunc("/{id}/timeout", s.handleTimeout).Methods(http.MethodPost)
	sb.HandleFunc("/{id}/pause", s.handlePause).Methods(http.MethodPost)
	sb.HandleFunc("/{id}/resume", s.handleResume).Methods(http.MethodPost)
	sb.HandleFunc("/{id}/refresh", s.handleRefresh).Methods(http.MethodPost)
	sb.HandleFunc("/{id}/metrics", s.handleMetrics).Methods(http.MethodGet)
	sb.HandleFunc("/{id}/logs", s.handleLogs).Methods(http.MethodGet)
	sb.PathPrefix("/{id}/execd").Handler(s.execdGateway())

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ---------------------------------------------------------------------------
// Wire payloads (mirror the service JSON the SDK parses)
// ---------------------------------------------------------------------------

type createPayload struct {
	Image               string            `json:"image"`
	Timeout             *int32            `json:"timeout,omitempty"`
	AutoPause           *bool             `json:"auto_pause,omitempty"`
	AllowInternetAccess *bool             `json:"allow_internet_access,omitempty"`
	EnvVars             map[string]string `json:"env_vars,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

type resumePayload struct {
	Timeout *int32 `json:"timeout,omitempty"`
}

type refreshPayload struct {
	Duration *int `json:"duration,omitempty"`
}

type timeoutPayload struct {
	Timeout int32 `json:"timeout"`
}

type sandboxPayload struct {
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

type listPayload struct {
	Sandboxes []sandboxPayload `json:"sandboxes"`
	NextToken *string          `json:"next_token,omitempty"`
}

type metricPayload struct {
	CPUCount   int32   `json:"cpu_count"`
	CPUUsedPct float32 `json:"cpu_used_pct"`
	MemTotal   int64   `json:"mem_total"`
	MemUsed    int64   `json:"mem_used"`
	DiskTotal  int64   `json:"disk_total"`
	DiskUsed   int64   `json:"disk_used"`
	Timestamp  int64   `json:"timestamp"`
}

type metricsPayload struct {
	Metrics []metricPayload `json:"metrics"`
}

type logPayload struct {
	Line      string `json:"line"`
	Timestamp int64  `json:"timestamp"`
}

type logsPayload struct {
	Logs []logPayload `json:"logs"`
}

// ---------------------------------------------------------------------------
// Control-plane handlers
// ---------------------------------------------------------------------------

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.APIKey != "" && r.Header.Get("X-API-Key") != s.APIKey {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "malformed request body")
		return
	}
	if req.Image == "" {
		writeError(w, http.StatusBadRequest, "invalid_argument", "image is required")
		return
	}

	timeout := int32(300)
	if req.Timeout != nil {
		timeout = *req.Timeout
	}

	now := time.Now().UTC()
	token := uuid.NewString()

	s.mu.Lock()
	s.seq++
	rec := &sandboxRecord{
		payload: sandboxPayload{
			SandboxID:    "sb-" + uuid.NewString(),
			Image:        req.Image,
			State:        "running",
			CPUCount:     2,
			MemoryMB:     1024,
			DiskSizeMB:   10240,
			ExecdVersion: "0.3.0",
			AccessToken:  &token,
			StartedAt:    now,
			EndAt:        now.Add(time.Duration(timeout) * time.Second),
			EnvVars:      req.EnvVars,
			Metadata:     req.Metadata,
		},
		autoPause: req.AutoPause != nil && *req.AutoPause,
		seq:       s.seq,
		files:     make(map[string]*fakeFile),
		dirs:      map[string]time.Time{"/": now},
		nextPID:   100,
		watchers:  make(map[int]*watchRecord),
	}
	rec.log("sandbox created from " + req.Image)
	s.sandboxes[rec.payload.SandboxID] = rec
	payload := rec.payload
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	states := r.URL.Query()["state"]
	metadata, err := url.ParseQuery(r.URL.Query().Get("metadata"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "malformed metadata filter")
		return
	}
	var limit int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "malformed limit")
			return
		}
	}

	s.mu.Lock()
	records := make([]*sandboxRecord, 0, len(s.sandboxes))
	for _, rec := range s.sandboxes {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].seq < records[j].seq })

	out := listPayload{Sandboxes: []sandboxPayload{}}
	for _, rec := range records {
		if !matchState(states, rec.payload.State) || !matchMetadata(metadata, rec.payload.Metadata) {
			continue
		}
		out.Sandboxes = append(out.Sandboxes, rec.payload)
		if limit > 0 && len(out.Sandboxes) == limit {
			break
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func matchState(states []string, state string) bool {
	if len(states) == 0 {
		return true
	}
	for _, want := range states {
		if want == state {
			return true
		}
	}
	return false
}

func matchMetadata(filter url.Values, metadata map[string]string) bool {
	for key, wants := range filter {
		for _, want := range wants {
			if metadata[key] != want {
				return false
			}
		}
	}
	return true
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rec, ok := s.sandboxes[mux.Vars(r)["id"]]
	var payload sandboxPayload
	if ok {
		payload = rec.payload
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "sandbox not found")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	_, ok := s.sandboxes[id]
	delete(s.sandboxes, id)
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "sandbox not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (s *Server) handleTimeout(w http.ResponseWriter, r *http.Request) {
	var req timeoutPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "malformed request body")
		return
	}

	s.mu.Lock()
	rec, ok := s.sandboxes[mux.Vars(r)["id"]]
	if ok {
		rec.payload.EndAt = time.Now().UTC().Add(time.Duration(req.Timeout) * time.Second)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "sandbox not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rec, ok := s.sandboxes[mux.Vars(r)["id"]]
	var conflict bool
	if ok {
		if rec.payload.State != "running" {
			conflict = true
		} else {
			rec.payload.State = "paused"
			rec.log("sandbox paused")
		}
	}
	s.mu.Unlock()

	switch {
	case !ok:
		writeError(w, http.StatusNotFound, "not_found", "sandbox not found")
	case conflict:
		writeError(w, http.StatusConflict, "conflict", "sandbox is not running")
	default:
		writeJSON(w, http.StatusOK, map[string]string{})
	}
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	var req resumePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "malformed request body")
		return
	}

	s.mu.Lock()
	rec, ok := s.sandboxes[mux.Vars(r)["id"]]
	var conflict bool
	var payload sandboxPayload
	if ok {
		if rec.payload.State != "paused" {
			conflict = true
		} else {
			rec.payload.State = "running"
			if req.Timeout != nil {
				rec.payload.EndAt = time.Now().UTC().Add(time.Duration(*req.Timeout) * time.Second)
			}
			rec.log("sandbox resumed")
			payload = rec.payload
		}
	}
	s.mu.Unlock()

	switch {
	case !ok:
		writeError(w, http.StatusNotFound, "not_found", "sandbox not found")
	case conflict:
		writeError(w, http.StatusConflict, "conflict", "sandbox is not paused")
	default:
		writeJSON(w, http.StatusOK, payload)
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "malformed request body")
		return
	}
	duration := 300
	if req.Duration != nil {
		duration = *req.Duration
	}

	s.mu.Lock()
	rec, ok := s.sandboxes[mux.Vars(r)["id"]]
	if ok {
		rec.payload.EndAt = rec.payload.EndAt.Add(time.Duration(duration) * time.Second)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "sandbox not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rec, ok := s.sandboxes[mux.Vars(r)["id"]]
	var out metricsPayload
	if ok {
		memTotal := int64(rec.payload.MemoryMB) << 20
		diskTotal := int64(rec.payload.DiskSizeMB) << 20
		out.Metrics = []metricPayload{{
			CPUCount:   rec.payload.CPUCount,
			CPUUsedPct: 12.5,
			MemTotal:   memTotal,
			MemUsed:    memTotal / 4,
			DiskTotal:  diskTotal,
			DiskUsed:   diskTotal / 10,
			Timestamp:  time.Now().Unix(),
		}}
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "sandbox not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rec, ok := s.sandboxes[mux.Vars(r)["id"]]
	var out logsPayload
	if ok {
		out.Logs = append(out.Logs, rec.logs...)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "sandbox not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (r *sandboxRecord) log(line string) {
	r.logs = append(r.logs, logPayload{Line: line, Timestamp: time.Now().Unix()})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// sandboxKey carries the addressed sandbox record through the agent routes.
type sandboxKey struct{}

func recordFrom(ctx context.Context) *sandboxRecord {
	rec, _ := ctx.Value(sandboxKey{}).(*sandboxRecord)
	return rec
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}

// lookup fetches a record without holding the lock afterwards.
func (s *Server) lookup(id string) *sandboxRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sandboxes[id]
}

// execdGateway strips the gateway prefix and forwards to the agent fake with
// the sandbox record on the context.
func (s *Server) execdGateway() http.Handler {
	inner := s.newAgentMux()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		rec := s.lookup(id)
		if rec == nil {
			writeError(w, http.StatusNotFound, "not_found", "sandbox not found")
			return
		}

		prefix := "/v1/sandboxes/" + id + "/execd"
		rest := strings.TrimPrefix(r.URL.Path, prefix)
		if rest == "" {
			rest = "/"
		}

		r2 := r.Clone(context.WithValue(r.Context(), sandboxKey{}, rec))
		r2.URL.Path = rest
		inner.ServeHTTP(w, r2)
	})
}

func fmtExitError(code int) string {
	return fmt.Sprintf("exit status %d", code)
}
