package chatkit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/restsend/chatkit/config"
	"github.com/restsend/chatkit/internal/syncengine"
	"github.com/restsend/chatkit/model"
	"github.com/restsend/chatkit/observer"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig()
	cfg.HandshakeTimeout = 50 * time.Millisecond
	auth := model.AuthInfo{Endpoint: server.URL, UserID: "me", Token: "tok"}

	c, err := New("", "", auth, observer.NoOp{}, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Shutdown)
	return c
}

func TestDbPathInMemoryWhenBothEmpty(t *testing.T) {
	root, name := dbPath("", "")
	if root != "" || name != "" {
		t.Fatalf("expected empty in-memory path, got %q %q", root, name)
	}
}

func TestDbPathAppendsSuffix(t *testing.T) {
	root, name := dbPath("/data", "alice")
	if root != "/data" || name != "alice.db" {
		t.Fatalf("unexpected db path: %q %q", root, name)
	}
}

func TestWsURLRewritesScheme(t *testing.T) {
	cases := map[string]string{
		"https://chat.example.com": "wss://chat.example.com/api/connect",
		"http://localhost:8080":    "ws://localhost:8080/api/connect",
	}
	for endpoint, want := range cases {
		if got := wsURL(endpoint, "/api"); got != want {
			t.Fatalf("wsURL(%q) = %q, want %q", endpoint, got, want)
		}
	}
}

func TestSendTextEnrollsPendingRequestAndCachesOutgoingLog(t *testing.T) {
	c := newTestClient(t, http.NewServeMux())

	chatID := c.SendText("topic1", "hello", nil, "", nil)
	if chatID == "" {
		t.Fatalf("expected a non-empty chat id")
	}
	log, ok := c.GetChatLog("topic1", chatID)
	if !ok {
		t.Fatalf("expected outgoing chat log to be cached locally")
	}
	if log.Content == nil || log.Content.Text != "hello" {
		t.Fatalf("unexpected cached log: %+v", log)
	}
}

func TestSendRecallReferencesOriginalChatID(t *testing.T) {
	c := newTestClient(t, http.NewServeMux())

	chatID := c.SendRecall("topic1", "original-id", nil)
	if chatID == "" {
		t.Fatalf("expected a non-empty chat id")
	}
	log, ok := c.GetChatLog("topic1", chatID)
	if !ok {
		t.Fatalf("expected recall request to be cached locally")
	}
	if log.Content == nil || log.Content.RecallID != "original-id" {
		t.Fatalf("unexpected recall log: %+v", log)
	}
}

func TestSyncConversationsUpdatesLocalStore(t *testing.T) {
	mux := http.NewServeMux()
	served := false
	mux.HandleFunc("/api/conversation/list", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if served {
			_, _ = w.Write([]byte(`{"items":[],"hasMore":false}`))
			return
		}
		served = true
		_, _ = w.Write([]byte(`{"items":[{"topicId":"t1","updatedAt":"2026-01-01T00:00:00Z","lastSeq":1}],"hasMore":false}`))
	})
	c := newTestClient(t, mux)

	total, err := c.SyncConversations(context.Background(), syncengine.ConversationsSyncOptions{Limit: 50})
	if err != nil {
		t.Fatalf("SyncConversations: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 conversation synced, got %d", total)
	}
	if _, ok := c.GetConversation("t1"); !ok {
		t.Fatalf("expected t1 to be cached locally after sync")
	}
}

func TestSearchChatLogIsUnimplemented(t *testing.T) {
	c := newTestClient(t, http.NewServeMux())
	if _, ok := c.SearchChatLog("topic1", "", "anything"); ok {
		t.Fatalf("expected SearchChatLog to report unimplemented (ok=false)")
	}
}
