package opensandbox

import (
	"time"
)

// ---------------------------------------------------------------------------
// Public sandbox types
// ---------------------------------------------------------------------------

// Metadata is free-form key-value metadata attached to a sandbox.
type Metadata map[string]string

// SandboxState is the lifecycle state of a sandbox.
type SandboxState string

const (
	StateRunning SandboxState = "running"
	StatePaused  SandboxState = "paused"
)

// CreateParams are the request parameters for creating a sandbox.
type CreateParams struct {
	// Image is the container image the sandbox boots from. Required.
	Image string

	// Timeout is the inactivity timeout in seconds. Optional; the service
	// default applies when nil.
	Timeout *int32

	// AutoPause pauses instead of kills the sandbox when the timeout
	// expires. Optional.
	AutoPause *bool

	// AllowInternetAccess lets sandbox processes reach the internet.
	// Optional.
	AllowInternetAccess *bool

	// EnvVars are injected into every process started in the sandbox.
	EnvVars map[string]string

	// Metadata is attached to the sandbox and usable as a list filter.
	Metadata Metadata
}

// ConnectParams are the request parameters for re-attaching to a sandbox.
type ConnectParams struct {
	// Timeout replaces the inactivity timeout, in seconds.
	Timeout int32
}

// RefreshParams are the request parameters for extending a sandbox lifetime.
type RefreshParams struct {
	// Duration is the number of seconds to extend by. Optional.
	Duration *int
}

// ListParams are the query parameters for listing sandboxes.
type ListParams struct {
	// Metadata filters sandboxes by metadata query (e.g. "user=abc&app=prod").
	Metadata *string

	// State filters sandboxes by one or more states.
	State []SandboxState

	// NextToken is the pagination cursor from a previous response.
	NextToken *string

	// Limit caps the page size.
	Limit *int32
}

// GetMetricsParams are the query parameters for sandbox metrics.
type GetMetricsParams struct {
	// Start is the inclusive lower bound as a unix timestamp. Optional.
	Start *int64

	// End is the inclusive upper bound as a unix timestamp. Optional.
	End *int64
}

// GetLogsParams are the query parameters for sandbox logs.
type GetLogsParams struct {
	// Start is the inclusive lower bound as a unix timestamp. Optional.
	Start *int64

	// Limit caps the number of returned lines. Optional.
	Limit *int32
}

// SandboxInfo is the detailed description of one sandbox.
type SandboxInfo struct {
	SandboxID    string
	Image        string
	Alias        *string
	Domain       *string
	State        SandboxState
	CPUCount     int32
	MemoryMB     int32
	DiskSizeMB   int32
	ExecdVersion string
	StartedAt    time.Time
	EndAt        time.Time
	EnvVars      map[string]string
	Metadata     *Metadata
}

// ListedSandbox is one entry of a sandbox listing.
type ListedSandbox struct {
	SandboxID    string
	Image        string
	Alias        *string
	State        SandboxState
	CPUCount     int32
	MemoryMB     int32
	DiskSizeMB   int32
	ExecdVersion string
	StartedAt    time.Time
	EndAt        time.Time
	Metadata     *Metadata
}

// SandboxList is one page of a sandbox listing.
type SandboxList struct {
	Sandboxes []ListedSandbox

	// NextToken is non-nil when more pages exist.
	NextToken *string
}

// SandboxMetric is one resource usage sample.
type SandboxMetric struct {
	CPUCount   int32
	CPUUsedPct float32
	MemTotal   int64
	MemUsed    int64
	DiskTotal  int64
	DiskUsed   int64
	Timestamp  time.Time
}

// SandboxLog is one sandbox runtime log line.
type SandboxLog struct {
	Line      string
	Timestamp time.Time
}

// ---------------------------------------------------------------------------
// Converters from wire payloads to SDK types
// ---------------------------------------------------------------------------

func sandboxInfoFromAPI(d *apiSandbox) *SandboxInfo {
	if d == nil {
		return nil
	}
	info := &SandboxInfo{
		SandboxID:    d.SandboxID,
		Image:        d.Image,
		Alias:        d.Alias,
		Domain:       d.Domain,
		State:        SandboxState(d.State),
		CPUCount:     d.CPUCount,
		MemoryMB:     d.MemoryMB,
		DiskSizeMB:   d.DiskSizeMB,
		ExecdVersion: d.ExecdVersion,
		StartedAt:    d.StartedAt,
		EndAt:        d.EndAt,
		EnvVars:      d.EnvVars,
	}
	if d.Metadata != nil {
		m := Metadata(d.Metadata)
		info.Metadata = &m
	}
	return info
}

func listedSandboxFromAPI(a apiSandbox) ListedSandbox {
	ls := ListedSandbox{
		SandboxID:    a.SandboxID,
		Image:        a.Image,
		Alias:        a.Alias,
		State:        SandboxState(a.State),
		CPUCount:     a.CPUCount,
		MemoryMB:     a.MemoryMB,
		DiskSizeMB:   a.DiskSizeMB,
		ExecdVersion: a.ExecdVersion,
		StartedAt:    a.StartedAt,
		EndAt:        a.EndAt,
	}
	if a.Metadata != nil {
		m := Metadata(a.Metadata)
		ls.Metadata = &m
	}
	return ls
}

func sandboxListFromAPI(a *apiSandboxList) *SandboxList {
	if a == nil {
		return &SandboxList{}
	}
	list := &SandboxList{NextToken: a.NextToken}
	if a.Sandboxes != nil {
		list.Sandboxes = make([]ListedSandbox, len(a.Sandboxes))
		for i, s := range a.Sandboxes {
			list.Sandboxes[i] = listedSandboxFromAPI(s)
		}
	}
	return list
}

func sandboxMetricsFromAPI(a []apiMetric) []SandboxMetric {
	if a == nil {
		return nil
	}
	result := make([]SandboxMetric, len(a))
	for i, m := range a {
		result[i] = SandboxMetric{
			CPUCount:   m.CPUCount,
			CPUUsedPct: m.CPUUsedPct,
			MemTotal:   m.MemTotal,
			MemUsed:    m.MemUsed,
			DiskTotal:  m.DiskTotal,
			DiskUsed:   m.DiskUsed,
			Timestamp:  time.Unix(m.Timestamp, 0),
		}
	}
	return result
}

func sandboxLogsFromAPI(a []apiLogLine) []SandboxLog {
	if a == nil {
		return nil
	}
	result := make([]SandboxLog, len(a))
	for i, l := range a {
		result[i] = SandboxLog{
			Line:      l.Line,
			Timestamp: time.Unix(l.Timestamp, 0),
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Converters from SDK params to wire payloads
// ---------------------------------------------------------------------------

func (p CreateParams) toAPI() apiCreateRequest {
	return apiCreateRequest{
		Image:               p.Image,
		Timeout:             p.Timeout,
		AutoPause:           p.AutoPause,
		AllowInternetAccess: p.AllowInternetAccess,
		EnvVars:             p.EnvVars,
		Metadata:            p.Metadata,
	}
}

func (p RefreshParams) toAPI() apiRefreshRequest {
	return apiRefreshRequest{Duration: p.Duration}
}
