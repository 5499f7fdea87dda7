// Package connection drives the reconnect/backoff/keepalive state machine
// on top of a Transport, feeding inbound frames to an
// internal/dispatch.Dispatcher and outbound frames from an
// internal/pending.Store.
//
// Grounded on
// original_source/crates/restsend/src/client/connection.rs's connect/
// sender_loop/keepalive_loop/incoming_loop, translated from a single
// tokio::select! over sibling async blocks into sibling goroutines
// synchronized by a per-session context.CancelFunc and sync.WaitGroup —
// the idiomatic Go shape for "first sibling to exit ends the session."
package connection

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/restsend/chatkit/config"
	"github.com/restsend/chatkit/internal/dispatch"
	"github.com/restsend/chatkit/internal/pending"
	"github.com/restsend/chatkit/internal/transport"
	"github.com/restsend/chatkit/internal/wire"
	"github.com/restsend/chatkit/model"
	"github.com/restsend/chatkit/observer"
)

// State is the Connection Manager's current lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateBroken
	StateShutdown
)

// Manager owns one Transport's reconnect/backoff/keepalive lifecycle.
type Manager struct {
	cfg        config.Config
	transport  transport.Transport
	dispatcher *dispatch.Dispatcher
	pending    *pending.Store
	obs        observer.Observer
	endpoint   string
	token      string
	wsURL      func(endpoint string) string

	mustBroken  atomic.Bool
	brokenCount atomic.Int64
	lastAliveAt atomicTime

	mu           sync.Mutex
	state        State
	connectNowCh chan struct{}
}

// New builds a Manager. wsURL maps an HTTP(S) endpoint to its websocket URL
// (e.g. "https://host" -> "wss://host/ws"); callers own this mapping since
// it is server-deployment specific.
func New(cfg config.Config, tr transport.Transport, d *dispatch.Dispatcher, p *pending.Store, obs observer.Observer, endpoint, token string, wsURL func(string) string) *Manager {
	m := &Manager{
		cfg: cfg, transport: tr, dispatcher: d, pending: p, obs: obs,
		endpoint: endpoint, token: token, wsURL: wsURL,
		state: StateIdle,
	}
	m.lastAliveAt.Store(time.Now())
	return m
}

// State returns the manager's current lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Run drives the reconnect loop until ctx is canceled or Shutdown is
// called. It returns when the manager reaches StateShutdown.
func (m *Manager) Run(ctx context.Context) {
	for !m.mustBroken.Load() {
		if ctx.Err() != nil {
			break
		}
		m.waitForNextConnect(ctx)
		if m.mustBroken.Load() || ctx.Err() != nil {
			break
		}
		m.runSession(ctx)
	}
	m.setState(StateShutdown)
}

// nextBackoff implements the capped linear backoff spec.md §4.E describes:
// min(brokenCount, maxConnectIntervalSecs) seconds. See DESIGN.md for why
// this diverges from the original's unbounded-growth formula.
func (m *Manager) nextBackoff() time.Duration {
	broken := m.brokenCount.Load()
	if broken <= 0 {
		return 0
	}
	capped := int64(m.cfg.MaxConnectIntervalSecs)
	if broken > capped {
		broken = capped
	}
	return time.Duration(broken) * time.Second
}

func (m *Manager) waitForNextConnect(ctx context.Context) {
	wait := m.nextBackoff()
	if wait <= 0 {
		return
	}

	m.mu.Lock()
	m.connectNowCh = make(chan struct{})
	wakeCh := m.connectNowCh
	m.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-wakeCh:
		m.brokenCount.Store(0)
	case <-ctx.Done():
	}
}

// AppActive wakes the manager immediately if it is in a backoff wait,
// resetting the broken-count streak — mirrors app_active's connect_now
// signal.
func (m *Manager) AppActive() {
	m.mu.Lock()
	ch := m.connectNowCh
	m.connectNowCh = nil
	m.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// Shutdown stops the reconnect loop and tears down any live session.
func (m *Manager) Shutdown() {
	m.mustBroken.Store(true)
	m.AppActive()
	_ = m.transport.Close()
}

func (m *Manager) runSession(parent context.Context) {
	sessionCtx, cancel := context.WithCancel(parent)
	defer cancel()

	m.setState(StateConnecting)

	outbound := make(chan string, 256)
	m.pending.SetSender(func(chatID string) bool {
		select {
		case outbound <- chatID:
			return true
		default:
			return false
		}
	})
	defer m.pending.SetSender(nil)

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		defer cancel()
		m.connectLoop(sessionCtx)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		m.senderLoop(sessionCtx, outbound)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		m.keepaliveLoop(sessionCtx)
	}()

	wg.Wait()

	if !m.mustBroken.Load() {
		m.setState(StateBroken)
		m.brokenCount.Add(1)
		m.obs.OnConnectionBroken("net broken")
	}
}

func (m *Manager) connectLoop(ctx context.Context) {
	url := m.wsURL(m.endpoint)

	onConnected := func() {
		m.setState(StateConnected)
		m.lastAliveAt.Store(time.Now())
		m.brokenCount.Store(0)
		m.obs.OnConnected()
		m.pending.FlushOffline()
		m.pending.ResendOutstanding()
	}

	cb := transport.Callbacks{
		OnConnecting:   m.obs.OnConnecting,
		OnConnected:    onConnected,
		OnUnauthorized: func() { m.obs.OnConnectionBroken("unauthorized") },
		OnNetBroken:    func(reason string) {},
		OnMessage:      func(frame string) { m.handleIncoming(frame) },
	}

	if err := m.transport.Connect(ctx, url, m.token, cb); err != nil {
		slog.Warn("connection: transport connect failed", "err", err)
	}
}

func (m *Manager) handleIncoming(frame string) {
	m.lastAliveAt.Store(time.Now())
	req, err := wire.Decode([]byte(frame))
	if err != nil {
		slog.Warn("connection: decode inbound frame failed", "err", err)
		return
	}

	switch model.ParseChatRequestType(req.Type) {
	case model.ChatRequestTypeNop:
		return
	case model.ChatRequestTypeKickout:
		m.mustBroken.Store(true)
		m.obs.OnKickoff(req.Message)
		_ = m.transport.Close()
		return
	}

	for _, reply := range m.dispatcher.Process(req) {
		frame, err := wire.Encode(reply)
		if err != nil {
			continue
		}
		_ = m.transport.Send(string(frame))
	}
}

func (m *Manager) senderLoop(ctx context.Context, outbound <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case chatID := <-outbound:
			p, ok := m.pending.Get(chatID)
			if !ok {
				continue
			}
			frame, err := wire.Encode(p.Req)
			if err != nil {
				continue
			}
			if err := m.transport.Send(string(frame)); err != nil {
				// Leave the re-emit to the Pending Store's sweeper, which
				// waits out resendBackoff before trying again — see
				// pending.Store.Sweep.
				m.pending.MarkSendFailure(chatID)
				continue
			}
			m.lastAliveAt.Store(time.Now())
			m.pending.NotifySent(chatID)
		}
	}
}

func (m *Manager) keepaliveLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Since(m.lastAliveAt.Load()) < m.cfg.KeepaliveInterval {
				continue
			}
			if err := m.transport.Send(`{"type":"nop"}`); err != nil {
				return
			}
		}
	}
}

// atomicTime is a small helper around atomic.Value specialized to
// time.Time, since atomic.Pointer[time.Time] would require a pointer
// indirection for every load.
type atomicTime struct{ v atomic.Value }

func (a *atomicTime) Store(t time.Time) { a.v.Store(t) }
func (a *atomicTime) Load() time.Time {
	v := a.v.Load()
	if v == nil {
		return time.Time{}
	}
	return v.(time.Time)
}
