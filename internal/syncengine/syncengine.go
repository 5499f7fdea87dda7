// Package syncengine pulls conversations and chat logs from the HTTP
// Service Layer into the Client Store whenever the local cache falls
// short of what was asked for, reporting each merged page of conversations
// to the Observer as it lands.
//
// Grounded on
// original_source/crates/restsend/src/services/conversation.rs's
// get_conversations/get_chat_logs_desc paging contracts and
// client/conversation.rs's sync_conversations/sync_chat_logs local-cache
// fast path, extended with the heavy/gap-closing chat-log loop that the
// distilled spec adds beyond what the original implements.
package syncengine

import (
	"context"
	"log/slog"
	"time"

	"github.com/restsend/chatkit/config"
	"github.com/restsend/chatkit/internal/clientstore"
	"github.com/restsend/chatkit/internal/restapi"
	"github.com/restsend/chatkit/model"
	"github.com/restsend/chatkit/observer"
)

// Engine drives conversation and chat-log catch-up sync against one
// user's Client Store.
type Engine struct {
	store  *clientstore.Store
	api    *restapi.Service
	obs    observer.Observer
	cfg    config.Config
	userID string
}

// New builds an Engine. userID identifies the local user, used to stamp
// fetched chat logs Sent (ours) vs Received (everyone else's).
func New(store *clientstore.Store, api *restapi.Service, obs observer.Observer, cfg config.Config, userID string) *Engine {
	return &Engine{store: store, api: api, obs: obs, cfg: cfg, userID: userID}
}

// ConversationsSyncOptions configures one SyncConversations run.
type ConversationsSyncOptions struct {
	UpdatedAt        int64 // descending cursor; 0 means "start from the newest"
	Limit            int   // 0 uses cfg.ConversationsPageLimit
	MaxCount         int   // 0, or anything above cfg.MaxConversationLimit, uses cfg.MaxConversationLimit
	BeforeUpdatedAt  int64 // stop once the cursor regresses past this; 0 disables
	SyncLogs         bool  // fan out a per-topic chat-log sync when a conversation advances
	SyncLogsMaxCount int   // 0 uses cfg.MaxSyncLogsMaxCount
}

// SyncConversations pulls descending pages of conversations, merging each
// into the Client Store and reporting it via Observer.OnConversationsUpdated,
// until one of spec.md §4.I's termination conditions is met: the
// accumulated count reaches MaxCount, a page comes back shorter than
// Limit, or the updatedAt cursor regresses past BeforeUpdatedAt. Returns
// the total number of conversations merged.
func (e *Engine) SyncConversations(ctx context.Context, opts ConversationsSyncOptions) (int, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = e.cfg.ConversationsPageLimit
	}
	syncLogsMaxCount := opts.SyncLogsMaxCount
	if syncLogsMaxCount <= 0 {
		syncLogsMaxCount = e.cfg.MaxSyncLogsMaxCount
	}

	// maxConversationLimit is a hard ceiling regardless of what the caller
	// asked for, separate from the page-by-page Limit above.
	maxCount := opts.MaxCount
	if e.cfg.MaxConversationLimit > 0 && (maxCount <= 0 || maxCount > e.cfg.MaxConversationLimit) {
		maxCount = e.cfg.MaxConversationLimit
	}
	opts.MaxCount = maxCount

	cursor := opts.UpdatedAt
	total := 0
	logSyncsEnqueued := 0

	for {
		page, err := e.api.GetConversations(ctx, cursor, limit)
		if err != nil {
			return total, err
		}

		merged := make([]model.Conversation, 0, len(page.Items))
		for _, c := range page.Items {
			old, _ := e.store.GetConversation(c.TopicID)
			mc := e.store.MergeConversationFromFetch(c)
			merged = append(merged, mc)

			if opts.SyncLogs && logSyncsEnqueued < syncLogsMaxCount && mc.LastSeq > old.LastSeq {
				logSyncsEnqueued++
				if _, err := e.SyncChatLogs(ctx, ChatLogsSyncOptions{
					TopicID: mc.TopicID,
					LastSeq: mc.LastSeq,
					Heavy:   true,
				}); err != nil {
					slog.Warn("syncengine: chat-log fan-out failed", "topicId", mc.TopicID, "err", err)
				}
			}
		}

		total += len(merged)
		if e.obs != nil && len(merged) > 0 {
			e.obs.OnConversationsUpdated(merged)
		}

		if len(page.Items) < limit {
			return total, nil
		}
		if opts.MaxCount > 0 && total >= opts.MaxCount {
			return total, nil
		}

		next := merged[len(merged)-1].UpdatedAt.UnixMilli()
		if opts.BeforeUpdatedAt > 0 && next <= opts.BeforeUpdatedAt {
			return total, nil
		}
		cursor = next
	}
}

// ChatLogsSyncOptions configures one SyncChatLogs run.
type ChatLogsSyncOptions struct {
	TopicID       string
	LastSeq       int64
	Limit         int  // 0 uses cfg.ChatLogsPageLimit
	Heavy         bool // false = quick (one page), true = gap-closing loop
	MaxCount      int  // 0 uses cfg.MaxSyncLogsMaxCount; heavy mode only
	ReconcileHead bool // heavy mode only: re-fetch the conversation head once done
}

// ChatLogsResult is the page (quick) or accumulated run (heavy) of chat
// logs pulled for one topic.
type ChatLogsResult struct {
	HasMore  bool
	StartSeq int64
	EndSeq   int64
	Items    []model.ChatLog
}

// SyncChatLogs fills gaps in the locally cached history of one topic. It
// first checks whether the local cache alone answers the request in full
// — a page exactly Limit long, mirroring sync_chat_logs's local fast path
// — and only a short local page falls through to the network.
func (e *Engine) SyncChatLogs(ctx context.Context, opts ChatLogsSyncOptions) (ChatLogsResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = e.cfg.ChatLogsPageLimit
	}
	if e.cfg.MaxSyncLogsLimit > 0 && limit > e.cfg.MaxSyncLogsLimit {
		limit = e.cfg.MaxSyncLogsLimit
	}

	var startPtr *int64
	if opts.LastSeq > 0 {
		v := opts.LastSeq
		startPtr = &v
	}
	local := e.store.GetChatLogs(opts.TopicID, startPtr, limit)
	if len(local.Items) == limit {
		return ChatLogsResult{
			HasMore:  local.EndSortValue > 1,
			StartSeq: local.StartSortValue,
			EndSeq:   local.EndSortValue,
			Items:    local.Items,
		}, nil
	}

	if !opts.Heavy {
		return e.fetchChatLogPage(ctx, opts.TopicID, opts.LastSeq, limit)
	}

	// local.EndSortValue is the oldest seq already cached for this topic
	// (items are newest-first); closing the gap means fetching all the way
	// down to the message right before it.
	localGapSeq := int64(0)
	if len(local.Items) > 0 {
		localGapSeq = local.EndSortValue - 1
	}

	maxCount := opts.MaxCount
	if maxCount <= 0 {
		maxCount = e.cfg.MaxSyncLogsMaxCount
	}

	var all []model.ChatLog
	cursor := opts.LastSeq
	for len(all) < maxCount {
		page, err := e.fetchChatLogPage(ctx, opts.TopicID, cursor, limit)
		if err != nil {
			return ChatLogsResult{}, err
		}
		if len(page.Items) == 0 {
			break
		}
		all = append(all, page.Items...)

		gapClosed := false
		if localGapSeq != 0 {
			for _, item := range page.Items {
				if item.Seq == localGapSeq {
					gapClosed = true
					break
				}
			}
		}
		if gapClosed || len(page.Items) < limit || page.EndSeq <= 1 {
			break
		}
		cursor = page.EndSeq
	}

	if opts.ReconcileHead {
		if head, err := e.api.GetConversation(ctx, opts.TopicID); err == nil {
			e.store.MergeConversationFromFetch(head)
		} else {
			slog.Warn("syncengine: conversation head reconcile failed", "topicId", opts.TopicID, "err", err)
		}
	}

	if len(all) == 0 {
		return ChatLogsResult{}, nil
	}
	return ChatLogsResult{
		HasMore:  all[len(all)-1].Seq > 1,
		StartSeq: all[0].Seq,
		EndSeq:   all[len(all)-1].Seq,
		Items:    all,
	}, nil
}

// fetchChatLogPage pulls one descending page anchored at lastSeq and
// persists every item, stamped Sent/Received per spec.md §4.I.
func (e *Engine) fetchChatLogPage(ctx context.Context, topicID string, lastSeq int64, limit int) (ChatLogsResult, error) {
	startSeq := lastSeq - int64(limit)
	if startSeq < 0 {
		startSeq = 0
	}
	page, err := e.api.GetChatLogs(ctx, topicID, startSeq, limit)
	if err != nil {
		return ChatLogsResult{}, err
	}
	e.persistFetchedLogs(page.Items)

	if len(page.Items) == 0 {
		return ChatLogsResult{}, nil
	}
	start := page.Items[0].Seq
	end := page.Items[len(page.Items)-1].Seq
	return ChatLogsResult{
		HasMore:  end > 1,
		StartSeq: start,
		EndSeq:   end,
		Items:    page.Items,
	}, nil
}

func (e *Engine) persistFetchedLogs(items []model.ChatLog) {
	now := time.Now()
	for _, item := range items {
		item.CachedAt = now
		if item.SenderID == e.userID {
			item.Status = model.ChatLogStatusSent
		} else {
			item.Status = model.ChatLogStatusReceived
		}
		e.store.SaveChatLog(item)
	}
}
