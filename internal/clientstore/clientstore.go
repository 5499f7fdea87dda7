// Package clientstore holds the merged local cache of conversations, chat
// logs and users, and the merge rules that reconcile server-fetched state
// with whatever is already cached locally.
//
// Grounded on
// original_source/crates/restsend/src/client/store/conversations.rs and
// users.rs.
package clientstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/restsend/chatkit/internal/storage"
	"github.com/restsend/chatkit/model"
)

const (
	conversationsTable = "conversations"
	chatLogsTable      = "chat_logs"
	usersTable         = "users"
)

// Store is the merged local cache: one partitioned Table per entity kind.
type Store struct {
	UserID string

	maxRecallWindow     time.Duration
	removedCacheExpire  time.Duration

	conversations storage.Table[model.Conversation]
	chatLogs      storage.Table[model.ChatLog]
	users         storage.Table[model.UserProfile]

	mu                   sync.Mutex
	removedConversations map[string]time.Time
}

// New opens a Store backed by db. removedCacheExpire bounds how long a
// locally removed conversation's tombstone is honored before a stray
// in-flight sync page is allowed to resurrect it (removedConversationCacheExpireSecs).
func New(db *storage.DB, userID string, maxRecallWindow, removedCacheExpire time.Duration) *Store {
	return &Store{
		UserID:               userID,
		maxRecallWindow:      maxRecallWindow,
		removedCacheExpire:   removedCacheExpire,
		conversations:        storage.OpenTable[model.Conversation](db, conversationsTable),
		chatLogs:             storage.OpenTable[model.ChatLog](db, chatLogsTable),
		users:                storage.OpenTable[model.UserProfile](db, usersTable),
		removedConversations: map[string]time.Time{},
	}
}

// GetConversation returns the locally cached conversation for topicID.
func (s *Store) GetConversation(topicID string) (model.Conversation, bool) {
	return s.conversations.Get("", topicID)
}

// GetConversations returns a descending page of cached conversations.
func (s *Store) GetConversations(startSortValue *int64, limit int) storage.QueryResult[model.Conversation] {
	return s.conversations.Query("", storage.QueryOption{StartSortValue: startSortValue, Limit: limit})
}

// RemoveConversation deletes a conversation from the local cache and
// records a tombstone for it, so a stray in-flight sync page can't
// resurrect it until the tombstone expires (removedCacheExpire).
func (s *Store) RemoveConversation(topicID string) {
	s.mu.Lock()
	s.removedConversations[topicID] = time.Now()
	s.mu.Unlock()
	s.conversations.Remove("", topicID)
}

func (s *Store) isRemoved(topicID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	removedAt, ok := s.removedConversations[topicID]
	if !ok {
		return false
	}
	if s.removedCacheExpire > 0 && time.Since(removedAt) > s.removedCacheExpire {
		delete(s.removedConversations, topicID)
		return false
	}
	return true
}

// ClearRemoved forgets a conversation's tombstone, e.g. after the user
// explicitly re-joins a topic they had previously removed.
func (s *Store) ClearRemoved(topicID string) {
	s.mu.Lock()
	delete(s.removedConversations, topicID)
	s.mu.Unlock()
}

// MergeConversationFromFetch reconciles one server-fetched conversation
// with the locally cached copy.
//
// Resolves the "partial vs full merge priority" design question: unlike the
// original implementation (which unconditionally preserves every local
// last* field), this preserves lastReadSeq/lastSenderId/lastMessageAt/
// lastMessage/unread only when storage actually holds a ChatLog at the
// local conversation's lastSeq — otherwise the local fields are considered
// stale (e.g. surviving a partial local wipe) and the fetched values win.
func (s *Store) MergeConversationFromFetch(conversation model.Conversation) model.Conversation {
	if s.isRemoved(conversation.TopicID) {
		return conversation
	}

	if old, ok := s.conversations.Get("", conversation.TopicID); ok {
		if s.hasChatLogAtSeq(old.TopicID, old.LastSeq) {
			conversation.LastReadSeq = old.LastReadSeq
			conversation.LastSenderID = old.LastSenderID
			conversation.LastMessageAt = old.LastMessageAt
			conversation.LastMessage = old.LastMessage
			conversation.Unread = old.Unread
		}
	}

	conversation.IsPartial = false
	conversation.CachedAt = time.Now()
	s.conversations.Set("", conversation.TopicID, &conversation)
	return conversation
}

func (s *Store) hasChatLogAtSeq(topicID string, seq int64) bool {
	if seq == 0 {
		return false
	}
	matches := s.chatLogs.Filter(topicID, func(l model.ChatLog) (model.ChatLog, bool) {
		return l, l.Seq == seq
	})
	return len(matches) > 0
}

// MergeConversationFromChat folds one incoming chat message's effect into
// its conversation: increments unread for non-unreadable content past
// lastReadSeq, and advances last* fields when the message is at least as
// new as the cached head and not itself unreadable.
func (s *Store) MergeConversationFromChat(req model.ChatRequest) model.Conversation {
	conversation, ok := s.conversations.Get("", req.TopicID)
	if !ok {
		conversation = model.Conversation{TopicID: req.TopicID, IsPartial: true}
	}

	unreadable := req.Content != nil && req.Content.IsUnreadable()
	if req.Content != nil && !unreadable && req.Seq > conversation.LastReadSeq {
		conversation.Unread++
	}

	if req.Seq >= conversation.LastSeq && !unreadable {
		conversation.LastSeq = req.Seq
		conversation.LastSenderID = req.Attendee
		if req.Content != nil {
			conversation.LastMessage = *req.Content
		}
		createdAt := parseWireTime(req.CreatedAt)
		conversation.LastMessageAt = createdAt
		conversation.UpdatedAt = createdAt
	}

	conversation.CachedAt = time.Now()
	s.conversations.Set("", conversation.TopicID, &conversation)
	return conversation
}

// UpdateConversationRead advances lastReadSeq to lastReadSeq (or the
// conversation's own lastSeq if nil), used right after an observer accepts
// an incoming message for immediate local read propagation.
func (s *Store) UpdateConversationRead(topicID string, updatedAt time.Time, lastReadSeq *int64) {
	conversation, ok := s.conversations.Get("", topicID)
	if !ok {
		return
	}
	if lastReadSeq != nil {
		conversation.LastReadSeq = *lastReadSeq
	} else {
		conversation.LastReadSeq = conversation.LastSeq
	}
	conversation.UpdatedAt = updatedAt
	s.conversations.Set("", topicID, &conversation)
}

// SetConversationReadLocal marks a conversation fully read up to its
// cached lastSeq (or seq, if provided and greater), zeroing unread.
func (s *Store) SetConversationReadLocal(topicID string, seq *int64) (model.Conversation, bool) {
	conversation, ok := s.conversations.Get("", topicID)
	if !ok {
		return model.Conversation{}, false
	}
	if seq != nil && *seq > conversation.LastReadSeq {
		conversation.LastReadSeq = *seq
	} else {
		conversation.LastReadSeq = conversation.LastSeq
	}
	conversation.Unread = 0
	s.conversations.Set("", topicID, &conversation)
	return conversation, true
}

// SaveOutgoingChatLog caches a just-submitted outgoing message as Sending.
func (s *Store) SaveOutgoingChatLog(req model.ChatRequest) {
	log := chatLogFromRequest(req, s.UserID, model.ChatLogStatusSending)
	s.chatLogs.Set(log.TopicID, req.ChatID, &log)
}

// UpdateOutgoingChatLogState transitions a cached outgoing log's status
// (and, once the server assigns one, its seq) after a resp/ack arrives.
func (s *Store) UpdateOutgoingChatLogState(topicID, chatID string, status model.ChatLogStatus, seq *int64) {
	log, ok := s.chatLogs.Get(topicID, chatID)
	if !ok {
		return
	}
	log.Status = status
	if seq != nil {
		log.Seq = *seq
	}
	s.chatLogs.Set(topicID, chatID, &log)
}

// SaveIncomingChatLog caches one incoming message, applying the recall and
// Sending-echo dedup rules:
//   - a "recall" frame mutates the existing log in place to a Recall
//     content, only if it is within the recall window, the existing status
//     is Received, and the attendee matches the original sender;
//   - separately, if a log already exists: an existing Sending status
//     (the echo of our own send) transitions to Sent; any other existing
//     status is a no-op (already received);
//   - otherwise this is a fresh insert, cached as Received.
func (s *Store) SaveIncomingChatLog(req model.ChatRequest) error {
	topicID, chatID := req.TopicID, req.ChatID
	now := time.Now()

	old, exists := s.chatLogs.Get(topicID, chatID)
	if exists {
		if req.Content != nil && req.Content.Type == model.ContentTypeRecall {
			if s.maxRecallWindow > 0 && now.Sub(old.CachedAt) > s.maxRecallWindow {
				return fmt.Errorf("clientstore: recall window expired for chat_id %s", chatID)
			}
			if old.Status != model.ChatLogStatusReceived {
				return fmt.Errorf("clientstore: recall invalid status for chat_id %s", chatID)
			}
			if req.Attendee != old.SenderID {
				return fmt.Errorf("clientstore: recall sender mismatch for chat_id %s", chatID)
			}
			old.Content = model.Content{Type: model.ContentTypeRecall}
			old.Status = model.ChatLogStatusRecalled
			s.chatLogs.Set(topicID, chatID, &old)
		}

		if old.Status != model.ChatLogStatusSending {
			return nil
		}
		old.Status = model.ChatLogStatusSent
		old.Seq = req.Seq
		old.CachedAt = now
		s.chatLogs.Set(topicID, chatID, &old)
		return nil
	}

	log := chatLogFromRequest(req, req.Attendee, model.ChatLogStatusReceived)
	log.CachedAt = now
	s.chatLogs.Set(topicID, chatID, &log)
	return nil
}

// SaveChatLog persists a server-fetched chat log idempotently: a content
// type of "none" means the message was deleted server-side and the local
// copy is removed instead of overwritten.
func (s *Store) SaveChatLog(log model.ChatLog) {
	if log.Content.Type == model.ContentTypeNone {
		s.chatLogs.Remove(log.TopicID, log.ChatID)
		return
	}
	s.chatLogs.Set(log.TopicID, log.ChatID, &log)
}

// GetChatLog returns one cached chat log.
func (s *Store) GetChatLog(topicID, chatID string) (model.ChatLog, bool) {
	return s.chatLogs.Get(topicID, chatID)
}

// GetChatLogs returns a descending page of cached chat logs for topicID.
func (s *Store) GetChatLogs(topicID string, startSortValue *int64, limit int) storage.QueryResult[model.ChatLog] {
	return s.chatLogs.Query(topicID, storage.QueryOption{StartSortValue: startSortValue, Limit: limit})
}

// RemoveMessages deletes the given chat logs from the local cache.
func (s *Store) RemoveMessages(topicID string, chatIDs []string) {
	for _, id := range chatIDs {
		s.chatLogs.Remove(topicID, id)
	}
}

// GetUser returns a cached user profile.
func (s *Store) GetUser(userID string) (model.UserProfile, bool) {
	return s.users.Get("", userID)
}

// UpdateUser merges incoming profile data into the cache, per
// UserProfile.Merge's field-by-field rules.
func (s *Store) UpdateUser(incoming model.UserProfile) model.UserProfile {
	existing, _ := s.users.Get("", incoming.UserID)
	merged := existing.Merge(incoming)
	if merged.UserID == "" {
		merged.UserID = incoming.UserID
	}
	s.users.Set("", incoming.UserID, &merged)
	return merged
}

func chatLogFromRequest(req model.ChatRequest, senderID string, status model.ChatLogStatus) model.ChatLog {
	var content model.Content
	if req.Content != nil {
		content = *req.Content
	}
	return model.ChatLog{
		TopicID:   req.TopicID,
		ChatID:    req.ChatID,
		Seq:       req.Seq,
		SenderID:  senderID,
		Content:   content,
		Status:    status,
		CreatedAt: parseWireTime(req.CreatedAt),
		CachedAt:  time.Now(),
	}
}

func parseWireTime(raw string) time.Time {
	if raw == "" {
		return time.Now()
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Now()
	}
	return t
}
