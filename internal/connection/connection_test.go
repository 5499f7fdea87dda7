package connection

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/restsend/chatkit/config"
	"github.com/restsend/chatkit/internal/clientstore"
	"github.com/restsend/chatkit/internal/dispatch"
	"github.com/restsend/chatkit/internal/pending"
	"github.com/restsend/chatkit/internal/storage"
	"github.com/restsend/chatkit/internal/transport"
	"github.com/restsend/chatkit/model"
	"github.com/restsend/chatkit/observer"
)

// fakeTransport simulates one successful connect that stays open until ctx
// is canceled, recording every frame sent through it.
type fakeTransport struct {
	mu  sync.Mutex
	out []string
}

func (f *fakeTransport) Connect(ctx context.Context, url, token string, cb transport.Callbacks) error {
	if cb.OnConnecting != nil {
		cb.OnConnecting()
	}
	if cb.OnConnected != nil {
		cb.OnConnected()
	}
	<-ctx.Done()
	return nil
}

func (f *fakeTransport) Send(frame string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, frame)
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.out))
	copy(out, f.out)
	return out
}

func TestNextBackoffCapsLinearGrowth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxConnectIntervalSecs = 5
	m := &Manager{cfg: cfg}

	m.brokenCount.Store(0)
	if d := m.nextBackoff(); d != 0 {
		t.Fatalf("expected no wait with brokenCount 0, got %v", d)
	}
	m.brokenCount.Store(3)
	if d := m.nextBackoff(); d != 3*time.Second {
		t.Fatalf("expected 3s, got %v", d)
	}
	m.brokenCount.Store(50)
	if d := m.nextBackoff(); d != 5*time.Second {
		t.Fatalf("expected capped 5s, got %v", d)
	}
}

func TestRunReachesConnectedAndSendsPendingRequest(t *testing.T) {
	db := storage.Open("", "")
	t.Cleanup(func() { _ = db.Close() })
	store := clientstore.New(db, "me", time.Minute, time.Second)
	pendingStore := pending.New(config.DefaultConfig())
	d := dispatch.New(store, pendingStore, observer.NoOp{}, 300)
	ft := &fakeTransport{}

	mgr := New(config.DefaultConfig(), ft, d, pendingStore, observer.NoOp{}, "https://example.com", "tok",
		func(endpoint string) string { return "wss://example.com/ws" })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mgr.Run(ctx)
		close(done)
	}()

	// Wait for the session to reach Connected before sending.
	deadline := time.After(2 * time.Second)
	for mgr.State() != StateConnected {
		select {
		case <-deadline:
			t.Fatalf("manager never reached Connected, state=%v", mgr.State())
		default:
			time.Sleep(time.Millisecond)
		}
	}

	req := model.NewText("topic1", "hello")
	req.ChatID = "c1"
	pendingStore.Add(req, nil)

	deadline = time.After(2 * time.Second)
	for len(ft.sent()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("expected a frame to be sent over the wire")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	mgr.Shutdown()
	cancel()
	<-done
}
