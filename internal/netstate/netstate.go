// Package netstate tracks connectivity and reports changes as edges.
package netstate

import (
	"context"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/marcus/agriscan/internal/syncclient"
)

// Transition is one change of connectivity.
type Transition struct {
	Online bool
	At     time.Time
}

// Monitor turns a stream of level readings into transitions. The first
// reading only sets the state; after that a callback fires once per
// change, never for a repeat of the current state.
type Monitor struct {
	mu             sync.Mutex
	online         bool
	sampled        bool
	lastChange     time.Time
	onConnected    []func(Transition)
	onDisconnected []func(Transition)
}

// New returns a monitor that has not seen a reading yet.
func New() *Monitor {
	return &Monitor{}
}

// NewWithState returns a monitor whose initial state is already known.
func NewWithState(online bool) *Monitor {
	return &Monitor{online: online, sampled: true}
}

// OnConnected registers fn for offline to online transitions.
// Callbacks run synchronously on the observing goroutine.
func (m *Monitor) OnConnected(fn func(Transition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnected = append(m.onConnected, fn)
}

// OnDisconnected registers fn for online to offline transitions.
func (m *Monitor) OnDisconnected(fn func(Transition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnected = append(m.onDisconnected, fn)
}

// Online reports the last observed state. It is false before any reading.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Sampled reports whether a reading has arrived yet.
func (m *Monitor) Sampled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sampled
}

// LastChange returns when the state last flipped, zero if it never has.
func (m *Monitor) LastChange() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastChange
}

// Observe feeds one reading and reports whether it was a transition.
func (m *Monitor) Observe(online bool) bool {
	m.mu.Lock()
	if !m.sampled {
		m.sampled = true
		m.online = online
		m.mu.Unlock()
		slog.Debug("netstate: initial state", "online", online)
		return false
	}
	if m.online == online {
		m.mu.Unlock()
		return false
	}
	m.online = online
	tr := Transition{Online: online, At: time.Now()}
	m.lastChange = tr.At
	fns := m.onDisconnected
	if online {
		fns = m.onConnected
	}
	fns = slices.Clone(fns)
	m.mu.Unlock()

	slog.Info("netstate: connectivity changed", "online", online)
	for _, fn := range fns {
		fn(tr)
	}
	return true
}

// Run probes every interval until ctx is done, feeding results to Observe.
// The first probe happens immediately.
func (m *Monitor) Run(ctx context.Context, p Prober, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		probeCtx, cancel := context.WithTimeout(ctx, interval)
		online := p.Probe(probeCtx)
		cancel()
		if ctx.Err() != nil {
			return nil
		}
		m.Observe(online)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Prober checks reachability once.
type Prober interface {
	Probe(ctx context.Context) bool
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) bool

func (f ProberFunc) Probe(ctx context.Context) bool { return f(ctx) }

// HTTPProber is online when the sync server's health endpoint answers.
type HTTPProber struct {
	Client *syncclient.Client
}

func (p HTTPProber) Probe(ctx context.Context) bool {
	_, err := p.Client.HealthCheck(ctx)
	if err != nil {
		slog.Debug("netstate: health check failed", "err", err)
	}
	return err == nil
}

// DialProber is online when a TCP connection to Address succeeds.
type DialProber struct {
	Address string
}

func (p DialProber) Probe(ctx context.Context) bool {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
