package pending

import (
	"testing"
	"time"

	"github.com/restsend/chatkit/config"
	"github.com/restsend/chatkit/model"
)

type fakeCallback struct {
	sent   bool
	acked  *model.ChatRequest
	failed string
}

func (f *fakeCallback) OnSent()                      { f.sent = true }
func (f *fakeCallback) OnAck(req model.ChatRequest)  { f.acked = &req }
func (f *fakeCallback) OnFail(reason string)         { f.failed = reason }

func TestAddBuffersOfflineUntilSenderInstalled(t *testing.T) {
	s := New(config.DefaultConfig())
	cb := &fakeCallback{}
	req := model.NewText("t1", "hi")
	req.ChatID = "c1"
	s.Add(req, cb)

	if cb.sent {
		t.Fatalf("should not be marked sent while offline")
	}

	var delivered []string
	s.SetSender(func(chatID string) bool {
		delivered = append(delivered, chatID)
		return true
	})
	s.FlushOffline()

	if len(delivered) != 1 || delivered[0] != "c1" {
		t.Fatalf("expected c1 flushed, got %v", delivered)
	}
	if cb.sent {
		t.Fatalf("OnSent should only fire once the connection manager confirms the wire write")
	}
	s.NotifySent("c1")
	if !cb.sent {
		t.Fatalf("expected OnSent after NotifySent")
	}
}

func TestPeekRemovesEntry(t *testing.T) {
	s := New(config.DefaultConfig())
	req := model.NewText("t1", "hi")
	req.ChatID = "c1"
	s.Add(req, nil)

	_, _, ok := s.Peek("c1")
	if !ok {
		t.Fatalf("expected pending request present")
	}
	_, _, ok = s.Peek("c1")
	if ok {
		t.Fatalf("expected Peek to remove the entry")
	}
}

func TestSweepExpiresIdleRequests(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxSendIdle = 0
	s := New(cfg)
	req := model.NewText("t1", "hi")
	req.ChatID = "c1"
	s.Add(req, nil)

	time.Sleep(time.Millisecond)
	failed := s.Sweep()
	if len(failed) != 1 || failed[0].ChatID != "c1" {
		t.Fatalf("expected c1 to expire, got %v", failed)
	}
	if _, _, ok := s.Peek("c1"); ok {
		t.Fatalf("expected swept entry removed")
	}
}

func TestSweepReemitsAfterBackoff(t *testing.T) {
	s := New(config.DefaultConfig())
	var delivered []string
	s.SetSender(func(chatID string) bool {
		delivered = append(delivered, chatID)
		return true
	})
	req := model.NewText("t1", "hi")
	req.ChatID = "c1"
	s.Add(req, nil)
	if len(delivered) != 1 {
		t.Fatalf("expected initial send, got %v", delivered)
	}

	s.MarkSendFailure("c1")
	time.Sleep(resendBackoff + 50*time.Millisecond)

	failed := s.Sweep()
	if len(failed) != 0 {
		t.Fatalf("expected no expiry, got %v", failed)
	}
	if len(delivered) != 2 || delivered[1] != "c1" {
		t.Fatalf("expected c1 re-emitted by sweep, got %v", delivered)
	}

	p, ok := s.Get("c1")
	if !ok {
		t.Fatalf("expected c1 still outstanding")
	}
	if p.LastFailAt != 0 {
		t.Fatalf("expected lastFailAt cleared after re-emit")
	}
}

func TestResendOutstandingSkipsOfflineBuffered(t *testing.T) {
	s := New(config.DefaultConfig())

	var delivered []string
	s.SetSender(func(chatID string) bool {
		delivered = append(delivered, chatID)
		return true
	})
	inflight := model.NewText("t1", "hi")
	inflight.ChatID = "c1"
	s.Add(inflight, nil)

	// c2 is buffered offline: no sender installed when it's added.
	s.SetSender(nil)
	buffered := model.NewText("t1", "bye")
	buffered.ChatID = "c2"
	s.Add(buffered, nil)

	delivered = nil
	s.SetSender(func(chatID string) bool {
		delivered = append(delivered, chatID)
		return true
	})
	s.FlushOffline()
	s.ResendOutstanding()

	counts := map[string]int{}
	for _, id := range delivered {
		counts[id]++
	}
	if counts["c2"] != 1 {
		t.Fatalf("expected c2 flushed exactly once by FlushOffline, got %d", counts["c2"])
	}
	if counts["c1"] != 1 {
		t.Fatalf("expected c1 resent exactly once by ResendOutstanding, got %d", counts["c1"])
	}
}

func TestCancelInvokesOnFail(t *testing.T) {
	s := New(config.DefaultConfig())
	cb := &fakeCallback{}
	req := model.NewText("t1", "hi")
	req.ChatID = "c1"
	s.Add(req, cb)

	s.Cancel("c1")
	if cb.failed != "cancel send" {
		t.Fatalf("expected cancel reason, got %q", cb.failed)
	}
}
