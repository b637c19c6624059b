// Package health runs periodic liveness probes against the ledger, the
// incident store and any outbound endpoints, and tracks which are degraded.
package health

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Probe statuses.
const (
	StatusUnknown  = "unknown"
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Probe is one named check. Check returns nil when the dependency is healthy.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// ProbeStatus is the last known state of a probe.
type ProbeStatus struct {
	Status      string    `json:"status"`
	FailCount   int       `json:"fail_count"`
	LastError   string    `json:"last_error,omitempty"`
	LastChecked time.Time `json:"last_checked,omitempty"`
}

// Report is the aggregate health returned by Checker.Report.
type Report struct {
	Status string                 `json:"status"`
	Probes map[string]ProbeStatus `json:"probes"`
}

// Healthy reports whether no probe is degraded.
func (r Report) Healthy() bool { return r.Status == "ok" }

// TransitionFunc is an optional callback invoked when a probe changes between
// healthy and degraded.
type TransitionFunc func(name, status string)

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(name string, success bool)

// Checker runs probes on an interval.
type Checker struct {
	probes       []Probe
	mu           sync.Mutex
	state        map[string]*ProbeStatus
	cfg          Config
	onTransition TransitionFunc
	onMetrics    MetricsRecordFunc
	logger       *zap.Logger
}

// New creates a Checker over probes.
func New(probes []Probe, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}

	state := make(map[string]*ProbeStatus, len(probes))
	for _, p := range probes {
		state[p.Name] = &ProbeStatus{Status: StatusUnknown}
	}
	return &Checker{
		probes: probes,
		state:  state,
		cfg:    cfg,
		logger: logger,
	}
}

// SetTransitionFunc configures the transition callback.
func (h *Checker) SetTransitionFunc(fn TransitionFunc) {
	h.onTransition = fn
}

// SetMetricsRecord configures the metrics recording callback.
func (h *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// Start runs the check loop until ctx is cancelled.
func (h *Checker) Start(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.CheckAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CheckAll runs every probe once with bounded concurrency.
func (h *Checker) CheckAll(ctx context.Context) {
	sem := make(chan struct{}, 10)
	var wg sync.WaitGroup

	for _, p := range h.probes {
		wg.Add(1)
		go func(p Probe) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			pctx, cancel := context.WithTimeout(ctx, h.cfg.ProbeTimeout)
			err := p.Check(pctx)
			cancel()
			h.record(p.Name, err)
		}(p)
	}

	wg.Wait()
}

func (h *Checker) record(name string, err error) {
	success := err == nil
	if h.onMetrics != nil {
		h.onMetrics(name, success)
	}

	h.mu.Lock()
	st := h.state[name]
	prev := st.Status
	st.LastChecked = time.Now().UTC()
	if success {
		st.FailCount = 0
		st.LastError = ""
		st.Status = StatusHealthy
	} else {
		st.FailCount++
		st.LastError = err.Error()
		if st.FailCount >= h.cfg.FailThreshold {
			st.Status = StatusDegraded
		} else if prev == StatusUnknown {
			st.Status = StatusHealthy
		}
	}
	status, count := st.Status, st.FailCount
	h.mu.Unlock()

	switch {
	case prev == StatusDegraded && status == StatusHealthy:
		h.logger.Info("health: recovered", zap.String("probe", name))
	case prev != StatusDegraded && status == StatusDegraded:
		h.logger.Warn("health: degraded",
			zap.String("probe", name),
			zap.Int("fail_count", count),
			zap.Error(err),
		)
	default:
		return
	}
	if h.onTransition != nil {
		h.onTransition(name, status)
	}
}

// Report returns a snapshot of every probe's state. Status is "ok" unless a
// probe is degraded.
func (h *Checker) Report() Report {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := Report{Status: "ok", Probes: make(map[string]ProbeStatus, len(h.state))}
	for name, st := range h.state {
		r.Probes[name] = *st
		if st.Status == StatusDegraded {
			r.Status = StatusDegraded
		}
	}
	return r
}

// Names returns the probe names in sorted order.
func (h *Checker) Names() []string {
	names := make([]string, 0, len(h.probes))
	for _, p := range h.probes {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// HTTPProbe returns a Probe that succeeds when endpoint answers HEAD, or
// failing that GET, with a 2xx.
func HTTPProbe(name, endpoint string, client *http.Client) Probe {
	if client == nil {
		client = http.DefaultClient
	}
	return Probe{
		Name: name,
		Check: func(ctx context.Context) error {
			code, err := probeEndpoint(ctx, client, endpoint)
			if err != nil {
				return err
			}
			if code < 200 || code >= 300 {
				return fmt.Errorf("%s: HTTP %d", endpoint, code)
			}
			return nil
		},
	}
}

// probeEndpoint attempts HEAD then GET, returning the last status code.
func probeEndpoint(ctx context.Context, client *http.Client, endpoint string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err == nil {
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp.StatusCode, nil
		}
	}

	// Fallback to GET.
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	resp, err = client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
