// Package pending tracks outgoing ChatRequests awaiting a server
// acknowledgement: one entry per chatId, with retry/expiry accounting and
// offline buffering for when no live sender exists yet.
package pending

import (
	"container/list"
	"sync"
	"time"

	"github.com/restsend/chatkit/config"
	"github.com/restsend/chatkit/model"
	"github.com/restsend/chatkit/observer"
)

// entry pairs a PendingRequest with its optional per-send callback.
type entry struct {
	pending  model.PendingRequest
	callback observer.MessageCallback
}

// Store is the chatId-keyed pending-request table plus the offline-send
// deque, grounded on
// original_source/crates/restsend/src/client/store/requests.rs.
type Store struct {
	cfg config.Config

	mu        sync.Mutex
	outgoings map[string]*entry
	offline   *list.List // chatIds buffered while no sender channel exists

	sendMu sync.Mutex
	sendFn func(chatID string) bool // returns false if no live sender

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New builds an empty Store. The sweep goroutine is started separately, by
// StartSweeper.
func New(cfg config.Config) *Store {
	return &Store{
		cfg:       cfg,
		outgoings: map[string]*entry{},
		offline:   list.New(),
		stopCh:    make(chan struct{}),
	}
}

// SetSender installs the function used to hand a ready-to-send chatId to
// the live connection. A nil sender means "offline": TrySend then buffers.
func (s *Store) SetSender(fn func(chatID string) bool) {
	s.sendMu.Lock()
	s.sendFn = fn
	s.sendMu.Unlock()
}

// Add registers a new outgoing request, keyed by its chatId.
func (s *Store) Add(req model.ChatRequest, cb observer.MessageCallback) {
	now := time.Now().UnixMilli()
	// Typing and read markers are never retried.
	kind := model.ParseChatRequestType(req.Type)
	pr := model.PendingRequest{
		Req:       req,
		MaxRetry:  s.cfg.MaxSendRetry,
		CreatedAt: now,
		UpdatedAt: now,
		CanRetry:  kind != model.ChatRequestTypeTyping && kind != model.ChatRequestTypeRead,
	}
	s.mu.Lock()
	s.outgoings[req.ChatID] = &entry{pending: pr, callback: cb}
	s.mu.Unlock()
	s.TrySend(req.ChatID)
}

// TrySend hands chatID to the live sender if one is installed; otherwise it
// buffers chatID for FlushOffline to replay once a sender is installed.
// Mirrors try_send's msg_tx-or-tmps branch. The sender only takes
// responsibility for the frame reaching the outbound queue — OnSent fires
// later, once the connection manager confirms the frame actually went out
// over the wire (see NotifySent).
func (s *Store) TrySend(chatID string) {
	s.sendMu.Lock()
	fn := s.sendFn
	s.sendMu.Unlock()

	if fn != nil && fn(chatID) {
		return
	}

	s.mu.Lock()
	s.offline.PushBack(chatID)
	s.mu.Unlock()
}

// Get returns a pending request without removing it — used by the sender
// loop to fetch the frame to transmit while the request stays outstanding,
// awaiting its resp.
func (s *Store) Get(chatID string) (model.PendingRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.outgoings[chatID]
	if !ok {
		var zero model.PendingRequest
		return zero, false
	}
	return e.pending, true
}

// NotifySent invokes a pending request's OnSent callback, called by the
// connection manager once a frame has actually been written to the wire.
func (s *Store) NotifySent(chatID string) {
	s.mu.Lock()
	e, ok := s.outgoings[chatID]
	s.mu.Unlock()
	if ok && e.callback != nil {
		e.callback.OnSent()
	}
}

// FlushOffline replays every buffered chatId through the live sender, in
// FIFO order, stopping at the first send failure (the remaining entries
// stay buffered for the next flush).
func (s *Store) FlushOffline() {
	s.sendMu.Lock()
	fn := s.sendFn
	s.sendMu.Unlock()
	if fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		front := s.offline.Front()
		if front == nil {
			return
		}
		chatID := front.Value.(string)
		if !fn(chatID) {
			return
		}
		s.offline.Remove(front)
	}
}

// Peek removes and returns the pending request for chatID, if any — the
// Incoming Dispatcher consumes it exactly once per resp/fail event.
func (s *Store) Peek(chatID string) (model.PendingRequest, observer.MessageCallback, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.outgoings[chatID]
	if !ok {
		var zero model.PendingRequest
		return zero, nil, false
	}
	delete(s.outgoings, chatID)
	return e.pending, e.callback, true
}

// Cancel removes a pending request without waiting for a server response,
// invoking its callback's OnFail with a cancellation reason.
func (s *Store) Cancel(chatID string) {
	s.mu.Lock()
	e, ok := s.outgoings[chatID]
	if ok {
		delete(s.outgoings, chatID)
	}
	s.mu.Unlock()
	if ok && e.callback != nil {
		e.callback.OnFail("cancel send")
	}
}

// MarkSendFailure records a transport-level send failure for chatID: bumps
// its retry count and stamps lastFailAt, leaving the actual re-emit (or
// expiry) to the next Sweep tick.
func (s *Store) MarkSendFailure(chatID string) {
	s.mu.Lock()
	e, ok := s.outgoings[chatID]
	if ok {
		e.pending.Retry++
		now := time.Now().UnixMilli()
		e.pending.UpdatedAt = now
		e.pending.LastFailAt = now
	}
	s.mu.Unlock()
}

// resendBackoff is the minimum time a failed send waits before Sweep
// re-emits it, per §4.F's "now - lastFailAt >= 1s" rule.
const resendBackoff = time.Second

// ResendOutstanding replays every outstanding, non-expired pending request
// through the live sender, satisfying invariant 9: a reconnect resends
// exactly those pendings with canRetry=true and !isExpired. Requests still
// sitting in the offline deque are left to FlushOffline — which a caller
// is expected to run first on the same reconnect — so a just-installed
// sender doesn't see the same chatId twice.
func (s *Store) ResendOutstanding() {
	s.mu.Lock()
	buffered := make(map[string]bool, s.offline.Len())
	for el := s.offline.Front(); el != nil; el = el.Next() {
		buffered[el.Value.(string)] = true
	}
	var chatIDs []string
	for chatID, e := range s.outgoings {
		if buffered[chatID] {
			continue
		}
		if !isExpired(s.cfg, e.pending) {
			chatIDs = append(chatIDs, chatID)
		}
	}
	s.mu.Unlock()
	for _, chatID := range chatIDs {
		s.TrySend(chatID)
	}
}

// isExpired reports whether a pending request should be failed: too many
// retries, idle too long, or explicitly marked non-retriable.
func isExpired(cfg config.Config, p model.PendingRequest) bool {
	if !p.CanRetry {
		return true
	}
	if p.Retry >= p.MaxRetry {
		return true
	}
	idleSince := time.UnixMilli(p.UpdatedAt)
	return time.Since(idleSince) > cfg.MaxSendIdle
}

// Sweep scans all outstanding requests once: expired ones are removed and
// reported for OnFail; non-expired ones that failed a send attempt at
// least resendBackoff ago are re-emitted (lastFailAt cleared) instead.
// Returns the chatIds that were failed, paired with their callback, so the
// caller can invoke OnFail outside the lock.
func (s *Store) Sweep() []struct {
	ChatID   string
	Callback observer.MessageCallback
} {
	var failed []struct {
		ChatID   string
		Callback observer.MessageCallback
	}
	var toResend []string

	now := time.Now()
	s.mu.Lock()
	for chatID, e := range s.outgoings {
		if isExpired(s.cfg, e.pending) {
			delete(s.outgoings, chatID)
			failed = append(failed, struct {
				ChatID   string
				Callback observer.MessageCallback
			}{chatID, e.callback})
			continue
		}
		if e.pending.LastFailAt > 0 && now.Sub(time.UnixMilli(e.pending.LastFailAt)) >= resendBackoff {
			e.pending.LastFailAt = 0
			toResend = append(toResend, chatID)
		}
	}
	s.mu.Unlock()

	for _, chatID := range toResend {
		s.TrySend(chatID)
	}
	return failed
}

// StartSweeper runs Sweep on cfg.SweepInterval until Stop is called,
// reporting OnFail("request timeout") for every request it expires —
// the periodic-ticker shape bken/server/main.go uses for its own
// background maintenance loops.
func (s *Store) StartSweeper() {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				for _, f := range s.Sweep() {
					if f.Callback != nil {
						f.Callback.OnFail("request timeout")
					}
				}
			}
		}
	}()
}

// Stop halts the sweeper goroutine started by StartSweeper.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}
