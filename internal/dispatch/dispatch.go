// Package dispatch classifies inbound ChatRequest frames and drives the
// Client Store merges and reply frames each type requires.
//
// Grounded on
// original_source/crates/restsend/src/client/store/requests.rs's
// process_incoming, rewritten as a flat type-switch in the style of
// bken/server/internal/ws/handler.go's handleInbound.
package dispatch

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"github.com/restsend/chatkit/internal/clientstore"
	"github.com/restsend/chatkit/internal/pending"
	"github.com/restsend/chatkit/model"
	"github.com/restsend/chatkit/observer"
)

// Dispatcher classifies inbound frames and produces reply frames.
type Dispatcher struct {
	store    *clientstore.Store
	pending  *pending.Store
	observer observer.Observer

	seenCap int
	seenMu  sync.Mutex
	seen    map[string]*list.Element
	seenLRU *list.List
}

// New builds a Dispatcher over store/pending, emitting events to obs.
// seenCap bounds the dedup cache of recently processed chat ids
// (maxIncomingLogCacheCount) used to keep a redelivered frame from
// double-counting a conversation's unread watermark.
func New(store *clientstore.Store, p *pending.Store, obs observer.Observer, seenCap int) *Dispatcher {
	return &Dispatcher{
		store:    store,
		pending:  p,
		observer: obs,
		seenCap:  seenCap,
		seen:     map[string]*list.Element{},
		seenLRU:  list.New(),
	}
}

// markSeen records topicID/chatID as processed and reports whether it had
// already been seen. The cache evicts oldest entries once seenCap is
// exceeded; a non-positive seenCap disables the cache (every frame counts
// as new, same as before the dedup cache existed).
func (d *Dispatcher) markSeen(topicID, chatID string) (alreadySeen bool) {
	if d.seenCap <= 0 {
		return false
	}
	key := topicID + "|" + chatID

	d.seenMu.Lock()
	defer d.seenMu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.seenLRU.MoveToFront(el)
		return true
	}
	el := d.seenLRU.PushFront(key)
	d.seen[key] = el
	for d.seenLRU.Len() > d.seenCap {
		oldest := d.seenLRU.Back()
		if oldest == nil {
			break
		}
		d.seenLRU.Remove(oldest)
		delete(d.seen, oldest.Value.(string))
	}
	return false
}

// Process classifies one inbound frame and returns zero or more reply
// frames the caller should send back over the transport.
func (d *Dispatcher) Process(req model.ChatRequest) []model.ChatRequest {
	switch model.ParseChatRequestType(req.Type) {
	case model.ChatRequestTypeResponse:
		d.processResponse(req)
		return nil
	case model.ChatRequestTypeChat:
		return d.processChat(req)
	case model.ChatRequestTypeRead:
		return d.processRead(req)
	case model.ChatRequestTypeTyping:
		d.observer.OnTopicTyping(req.TopicID, req.Attendee)
		return nil
	case model.ChatRequestTypeKickout:
		d.observer.OnKickoff(req.Message)
		return nil
	case model.ChatRequestTypeNop:
		return nil
	default:
		slog.Warn("dispatch: unrecognized frame type", "type", req.Type, "topic_id", req.TopicID)
		return []model.ChatRequest{model.NewResponse(req, 200)}
	}
}

// processResponse always updates the cached outgoing log's status/seq,
// regardless of ack vs. fail outcome, then invokes the pending request's
// callback exactly once.
func (d *Dispatcher) processResponse(req model.ChatRequest) {
	status := model.ChatLogStatusSent
	if req.Code != 200 {
		status = model.ChatLogStatusSendFailed
	}

	seq := req.Seq
	d.store.UpdateOutgoingChatLogState(req.TopicID, req.ChatID, status, &seq)

	p, cb, ok := d.pending.Peek(req.ChatID)
	if ok && cb != nil {
		switch status {
		case model.ChatLogStatusSent:
			acked := req
			acked.Content = p.Req.Content
			cb.OnAck(acked)
		case model.ChatLogStatusSendFailed:
			reason := req.Message
			if reason == "" {
				reason = "send failed"
			}
			cb.OnFail(reason)
		}
	}
}

// processChat always saves the incoming log and attempts a conversation
// merge, regardless of the observer's mark-read decision; it emits the 200
// ack (and, only if the observer marks the message read, a follow-up read
// frame) based on that decision.
func (d *Dispatcher) processChat(req model.ChatRequest) []model.ChatRequest {
	if req.AttendeeProfile != nil {
		d.store.UpdateUser(*req.AttendeeProfile)
	}

	resp := model.NewResponse(req, 200)

	log := model.ChatLog{
		TopicID:  req.TopicID,
		ChatID:   req.ChatID,
		Seq:      req.Seq,
		SenderID: req.Attendee,
	}
	if req.Content != nil {
		log.Content = *req.Content
	}

	markRead := d.observer.OnNewMessage(req.TopicID, log)

	var resps []model.ChatRequest
	if markRead {
		seq := req.Seq
		d.store.UpdateConversationRead(req.TopicID, parseWireTimeOrNow(req.CreatedAt), &seq)
		resps = []model.ChatRequest{resp, model.NewRead(req.TopicID)}
	} else {
		resps = []model.ChatRequest{resp}
	}

	if err := d.store.SaveIncomingChatLog(req); err != nil {
		slog.Warn("dispatch: save incoming chat log failed", "chat_id", req.ChatID, "topic_id", req.TopicID, "err", err)
		return resps
	}

	if d.markSeen(req.TopicID, req.ChatID) {
		return resps
	}

	conversation := d.store.MergeConversationFromChat(req)
	d.observer.OnConversationsUpdated([]model.Conversation{conversation})
	return resps
}

// processRead marks the conversation read up to the sender's own
// watermark and notifies the observer; this frame comes from a remote
// member's own "read" marker, not our own.
func (d *Dispatcher) processRead(req model.ChatRequest) []model.ChatRequest {
	resp := model.NewResponse(req, 200)
	seq := req.Seq
	d.store.SetConversationReadLocal(req.TopicID, &seq)
	d.observer.OnTopicRead(req.TopicID, req)
	return []model.ChatRequest{resp}
}

func parseWireTimeOrNow(raw string) time.Time {
	if raw == "" {
		return time.Now()
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Now()
	}
	return t
}
