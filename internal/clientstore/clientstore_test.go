package clientstore

import (
	"testing"
	"time"

	"github.com/restsend/chatkit/internal/storage"
	"github.com/restsend/chatkit/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := storage.Open("", "")
	t.Cleanup(func() { _ = db.Close() })
	return New(db, "me", 2*time.Minute, time.Second)
}

func TestMergeConversationFromFetchPreservesLocalOnlyWhenLogExists(t *testing.T) {
	s := newTestStore(t)

	local := model.Conversation{TopicID: "t1", LastSeq: 5, LastReadSeq: 5, Unread: 0}
	s.conversations.Set("", "t1", &local)

	fetched := model.Conversation{TopicID: "t1", LastSeq: 10, LastReadSeq: 0, Unread: 3}
	merged := s.MergeConversationFromFetch(fetched)
	if merged.LastReadSeq != 0 || merged.Unread != 3 {
		t.Fatalf("expected fetched values to win with no local ChatLog: %+v", merged)
	}

	log := model.ChatLog{TopicID: "t1", ChatID: "c5", Seq: 5}
	s.chatLogs.Set("t1", "c5", &log)

	local2 := model.Conversation{TopicID: "t1", LastSeq: 5, LastReadSeq: 5, Unread: 0}
	s.conversations.Set("", "t1", &local2)

	fetched2 := model.Conversation{TopicID: "t1", LastSeq: 5, LastReadSeq: 0, Unread: 9}
	merged2 := s.MergeConversationFromFetch(fetched2)
	if merged2.LastReadSeq != 5 || merged2.Unread != 0 {
		t.Fatalf("expected local values preserved with matching ChatLog: %+v", merged2)
	}
}

func TestMergeConversationFromChatIncrementsUnread(t *testing.T) {
	s := newTestStore(t)
	req := model.ChatRequest{
		TopicID:   "t1",
		ChatID:    "c1",
		Attendee:  "bob",
		Seq:       1,
		CreatedAt: time.Now().Format(time.RFC3339),
		Content:   &model.Content{Type: model.ContentTypeText, Text: "hi"},
	}
	conv := s.MergeConversationFromChat(req)
	if conv.Unread != 1 || conv.LastSeq != 1 || conv.LastSenderID != "bob" {
		t.Fatalf("unexpected conversation: %+v", conv)
	}

	recall := req
	recall.Seq = 2
	recall.Content = &model.Content{Type: model.ContentTypeRecall}
	conv2 := s.MergeConversationFromChat(recall)
	if conv2.Unread != 1 {
		t.Fatalf("recall must not increment unread, got %d", conv2.Unread)
	}
}

func TestSaveIncomingChatLogSendingEchoDedup(t *testing.T) {
	s := newTestStore(t)
	req := model.ChatRequest{TopicID: "t1", ChatID: "c1", Seq: 7, Attendee: "me"}

	s.SaveOutgoingChatLog(model.ChatRequest{TopicID: "t1", ChatID: "c1", Type: "chat"})
	if err := s.SaveIncomingChatLog(req); err != nil {
		t.Fatalf("SaveIncomingChatLog: %v", err)
	}

	log, ok := s.GetChatLog("t1", "c1")
	if !ok || log.Status != model.ChatLogStatusSent || log.Seq != 7 {
		t.Fatalf("expected echoed send to become Sent with seq 7: %+v", log)
	}

	// A second delivery of an already-received (non-Sending) log is a no-op.
	if err := s.SaveIncomingChatLog(req); err != nil {
		t.Fatalf("SaveIncomingChatLog dedup: %v", err)
	}
	log2, _ := s.GetChatLog("t1", "c1")
	if log2.Status != model.ChatLogStatusSent {
		t.Fatalf("expected dedup no-op, got %+v", log2)
	}
}

func TestSaveIncomingChatLogRecallMutatesReceivedLog(t *testing.T) {
	s := newTestStore(t)
	original := model.ChatRequest{TopicID: "t1", ChatID: "c1", Seq: 1, Attendee: "bob",
		Content: &model.Content{Type: model.ContentTypeText, Text: "hi"}}
	if err := s.SaveIncomingChatLog(original); err != nil {
		t.Fatalf("SaveIncomingChatLog original: %v", err)
	}

	recall := model.ChatRequest{TopicID: "t1", ChatID: "c1", Attendee: "bob",
		Content: &model.Content{Type: model.ContentTypeRecall, RecallID: "c1"}}
	if err := s.SaveIncomingChatLog(recall); err != nil {
		t.Fatalf("SaveIncomingChatLog recall: %v", err)
	}

	log, ok := s.GetChatLog("t1", "c1")
	if !ok {
		t.Fatalf("expected log still present after recall")
	}
	if log.Status != model.ChatLogStatusRecalled {
		t.Fatalf("expected status Recalled, got %v", log.Status)
	}
	if log.Content.Type != model.ContentTypeRecall {
		t.Fatalf("expected content type recall, got %v", log.Content.Type)
	}
}

func TestSaveIncomingChatLogRecallRejectsSenderMismatch(t *testing.T) {
	s := newTestStore(t)
	original := model.ChatRequest{TopicID: "t1", ChatID: "c1", Seq: 1, Attendee: "bob",
		Content: &model.Content{Type: model.ContentTypeText, Text: "hi"}}
	if err := s.SaveIncomingChatLog(original); err != nil {
		t.Fatalf("SaveIncomingChatLog original: %v", err)
	}

	recall := model.ChatRequest{TopicID: "t1", ChatID: "c1", Attendee: "eve",
		Content: &model.Content{Type: model.ContentTypeRecall, RecallID: "c1"}}
	if err := s.SaveIncomingChatLog(recall); err == nil {
		t.Fatalf("expected recall sender mismatch to error")
	}

	log, _ := s.GetChatLog("t1", "c1")
	if log.Status != model.ChatLogStatusReceived {
		t.Fatalf("expected log untouched by rejected recall, got %v", log.Status)
	}
}

func TestSaveIncomingChatLogRecallRejectsOutsideWindow(t *testing.T) {
	s := newTestStore(t)
	original := model.ChatRequest{TopicID: "t1", ChatID: "c1", Seq: 1, Attendee: "bob",
		Content: &model.Content{Type: model.ContentTypeText, Text: "hi"}}
	if err := s.SaveIncomingChatLog(original); err != nil {
		t.Fatalf("SaveIncomingChatLog original: %v", err)
	}

	log, _ := s.GetChatLog("t1", "c1")
	log.CachedAt = time.Now().Add(-3 * time.Minute)
	s.chatLogs.Set("t1", "c1", &log)

	recall := model.ChatRequest{TopicID: "t1", ChatID: "c1", Attendee: "bob",
		Content: &model.Content{Type: model.ContentTypeRecall, RecallID: "c1"}}
	if err := s.SaveIncomingChatLog(recall); err == nil {
		t.Fatalf("expected recall outside window to error")
	}
}

func TestSaveIncomingChatLogFreshInsert(t *testing.T) {
	s := newTestStore(t)
	req := model.ChatRequest{TopicID: "t1", ChatID: "new1", Seq: 1, Attendee: "bob",
		Content: &model.Content{Type: model.ContentTypeText, Text: "hi"}}
	if err := s.SaveIncomingChatLog(req); err != nil {
		t.Fatalf("SaveIncomingChatLog: %v", err)
	}
	log, ok := s.GetChatLog("t1", "new1")
	if !ok || log.Status != model.ChatLogStatusReceived {
		t.Fatalf("expected fresh Received log: %+v", log)
	}
}
