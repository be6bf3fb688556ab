// Package health serves liveness and readiness probes.
//
// Every check runs on its own ticker. A check turns unhealthy only after
// FailureThreshold consecutive failures and healthy again after
// SuccessThreshold consecutive passes, so one slow ping does not pull the
// pod out of rotation.
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Kind selects which probe a check contributes to.
type Kind uint8

const (
	Liveness Kind = iota
	Readiness
)

// Check describes one registered check.
type Check struct {
	Name    string
	Kind    Kind
	Timeout time.Duration
	Func    CheckFunc

	// Zero values default to 3 and 1.
	FailureThreshold int
	SuccessThreshold int
}

type probe struct {
	Check

	mu        sync.Mutex
	healthy   bool
	lastErr   error
	checkedAt time.Time
	fails     int
	passes    int
}

func (p *probe) run(ctx context.Context, now func() time.Time) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	err := p.Func(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastErr = err
	p.checkedAt = now()
	if err != nil {
		p.passes = 0
		p.fails++
		if p.fails >= p.FailureThreshold {
			p.healthy = false
		}
		return
	}
	p.fails = 0
	p.passes++
	if p.passes >= p.SuccessThreshold {
		p.healthy = true
	}
}

type probeState struct {
	name      string
	healthy   bool
	lastErr   error
	checkedAt time.Time
}

func (p *probe) state() probeState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return probeState{name: p.Name, healthy: p.healthy, lastErr: p.lastErr, checkedAt: p.checkedAt}
}

// Health tracks registered checks and the manual readiness flag.
type Health struct {
	ready atomic.Bool
	now   func() time.Time

	mu     sync.RWMutex
	probes []*probe
	cancel context.CancelFunc
}

// New returns a Health that reports not ready until SetReady(true).
func New() *Health {
	return &Health{now: time.Now}
}

// Add registers c. Checks start healthy.
func (h *Health) Add(c Check) {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes = append(h.probes, &probe{Check: c, healthy: true})
}

// AddLivenessCheck registers a process-level check.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.Add(Check{Name: name, Kind: Liveness, Timeout: timeout, Func: fn})
}

// AddReadinessCheck registers a dependency check.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.Add(Check{Name: name, Kind: Readiness, Timeout: timeout, Func: fn})
}

// Start runs every check immediately and then every interval until Stop or
// ctx cancellation.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
	}
	h.cancel = cancel
	probes := append([]*probe(nil), h.probes...)
	h.mu.Unlock()

	for _, p := range probes {
		go func() {
			t := time.NewTicker(interval)
			defer t.Stop()
			for {
				p.run(ctx, h.now)
				select {
				case <-ctx.Done():
					return
				case <-t.C:
				}
			}
		}()
	}
}

// Stop halts background checks. It is idempotent.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness flag. The server sets it after wiring
// and clears it when shutdown begins.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports the manual flag combined with every readiness check.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	for _, s := range h.states(Readiness) {
		if !s.healthy {
			return false
		}
	}
	return true
}

func (h *Health) states(kind Kind) []probeState {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []probeState
	for _, p := range h.probes {
		if p.Kind == kind {
			out = append(out, p.state())
		}
	}
	return out
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	states := h.states(Liveness)
	writeProbe(w, states, allHealthy(states), "")
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	states := h.states(Readiness)
	ready := h.ready.Load()
	reason := ""
	if !ready {
		reason = "service is not ready"
	}
	writeProbe(w, states, ready && allHealthy(states), reason)
}

func allHealthy(states []probeState) bool {
	for _, s := range states {
		if !s.healthy {
			return false
		}
	}
	return true
}

// writeProbe writes
//
//	{"status":"ok|unhealthy","reason":...,"checks":{"<name>":{"healthy":..,"error":..,"checked_at":..}}}
func writeProbe(w http.ResponseWriter, states []probeState, ok bool, reason string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) {
			if ok {
				e.Str("ok")
			} else {
				e.Str("unhealthy")
			}
		})
		if reason != "" {
			e.Field("reason", func(e *jx.Encoder) { e.Str(reason) })
		}
		if len(states) == 0 {
			return
		}
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, s := range states {
					e.Field(s.name, func(e *jx.Encoder) {
						e.Obj(func(e *jx.Encoder) {
							e.Field("healthy", func(e *jx.Encoder) { e.Bool(s.healthy) })
							if s.lastErr != nil {
								e.Field("error", func(e *jx.Encoder) { e.Str(s.lastErr.Error()) })
							}
							if !s.checkedAt.IsZero() {
								e.Field("checked_at", func(e *jx.Encoder) {
									e.Str(s.checkedAt.UTC().Format(time.RFC3339))
								})
							}
						})
					})
				}
			})
		})
	})

	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
