package syncengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/restsend/chatkit/config"
	"github.com/restsend/chatkit/internal/clientstore"
	"github.com/restsend/chatkit/internal/restapi"
	"github.com/restsend/chatkit/internal/storage"
	"github.com/restsend/chatkit/model"
	"github.com/restsend/chatkit/observer"
)

type recordingObserver struct {
	observer.NoOp
	pages [][]model.Conversation
}

func (o *recordingObserver) OnConversationsUpdated(cs []model.Conversation) {
	o.pages = append(o.pages, cs)
}

func newTestEngine(t *testing.T, mux *http.ServeMux, obs observer.Observer) (*Engine, *clientstore.Store) {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	db := storage.Open("", "")
	t.Cleanup(func() { _ = db.Close() })
	store := clientstore.New(db, "me", time.Minute, time.Second)
	api := restapi.New(server.URL, "tok", "/api", 5*time.Second)
	return New(store, api, obs, config.DefaultConfig(), "me"), store
}

func TestSyncConversationsStopsOnShortPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/conversation/list", func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		result := model.ListResult[model.Conversation]{
			Items: []model.Conversation{
				{TopicID: "t1", UpdatedAt: now, LastSeq: 5},
				{TopicID: "t2", UpdatedAt: now.Add(time.Second), LastSeq: 3},
			},
		}
		_ = json.NewEncoder(w).Encode(result)
	})

	obs := &recordingObserver{}
	engine, store := newTestEngine(t, mux, obs)

	total, err := engine.SyncConversations(context.Background(), ConversationsSyncOptions{Limit: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 merged, got %d", total)
	}
	if len(obs.pages) != 1 || len(obs.pages[0]) != 2 {
		t.Fatalf("expected one progress page of 2, got %v", obs.pages)
	}
	if _, ok := store.GetConversation("t1"); !ok {
		t.Fatalf("expected t1 cached locally")
	}
}

func TestSyncChatLogsQuickFetchesOnePage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/conversation/topic1/logs", func(w http.ResponseWriter, r *http.Request) {
		result := model.ListResult[model.ChatLog]{
			Items: []model.ChatLog{
				{TopicID: "topic1", ChatID: "c5", Seq: 5, SenderID: "me"},
				{TopicID: "topic1", ChatID: "c4", Seq: 4, SenderID: "other"},
			},
		}
		_ = json.NewEncoder(w).Encode(result)
	})

	engine, store := newTestEngine(t, mux, nil)

	res, err := engine.SyncChatLogs(context.Background(), ChatLogsSyncOptions{
		TopicID: "topic1",
		LastSeq: 5,
		Limit:   2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(res.Items))
	}

	sent, ok := store.GetChatLog("topic1", "c5")
	if !ok || sent.Status != model.ChatLogStatusSent {
		t.Fatalf("expected c5 cached as Sent, got %+v ok=%v", sent, ok)
	}
	received, ok := store.GetChatLog("topic1", "c4")
	if !ok || received.Status != model.ChatLogStatusReceived {
		t.Fatalf("expected c4 cached as Received, got %+v ok=%v", received, ok)
	}
}

func TestSyncChatLogsHeavyStopsOnShortPage(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/conversation/topic1/logs", func(w http.ResponseWriter, r *http.Request) {
		calls++
		var items []model.ChatLog
		if calls == 1 {
			items = []model.ChatLog{
				{TopicID: "topic1", ChatID: "c10", Seq: 10, SenderID: "other"},
				{TopicID: "topic1", ChatID: "c9", Seq: 9, SenderID: "other"},
			}
		}
		_ = json.NewEncoder(w).Encode(model.ListResult[model.ChatLog]{Items: items})
	})

	engine, _ := newTestEngine(t, mux, nil)

	res, err := engine.SyncChatLogs(context.Background(), ChatLogsSyncOptions{
		TopicID: "topic1",
		LastSeq: 10,
		Limit:   2,
		Heavy:   true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("expected 2 accumulated items, got %d", len(res.Items))
	}
	if calls != 2 {
		t.Fatalf("expected the loop to stop after the empty second page, got %d calls", calls)
	}
}
