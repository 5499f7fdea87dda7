// Package chatkit is the public client facade: it wires the HTTP Service
// Layer, Transport, Connection Manager, Client Store, Pending Store,
// Incoming Dispatcher, Sync Engine and Attachment Subsystem into one
// object and exposes the send/conversation/chat-log/user/sync/attachment
// surface an embedding application calls.
//
// Grounded on
// original_source/crates/restsend/src/client/mod.rs's Client struct
// (root_path, user_id, token, endpoint, store, ws_sender fields) and
// client/message.rs's do_send_* methods, adapted from async
// Result<String>-returning methods into synchronous calls that enroll a
// PendingRequest and return immediately — Go's Connection Manager already
// runs its own goroutines, so there is no async runtime to hand work off
// to the way tokio::spawn does in the original.
package chatkit

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/restsend/chatkit/config"
	"github.com/restsend/chatkit/internal/attachment"
	"github.com/restsend/chatkit/internal/clientstore"
	"github.com/restsend/chatkit/internal/connection"
	"github.com/restsend/chatkit/internal/dispatch"
	"github.com/restsend/chatkit/internal/pending"
	"github.com/restsend/chatkit/internal/restapi"
	"github.com/restsend/chatkit/internal/storage"
	"github.com/restsend/chatkit/internal/syncengine"
	"github.com/restsend/chatkit/internal/transport"
	"github.com/restsend/chatkit/model"
	"github.com/restsend/chatkit/observer"
)

const dbSuffix = ".db"

// Client is the top-level chatkit handle: one per signed-in user.
type Client struct {
	RootPath string
	UserID   string
	Token    string
	Endpoint string

	cfg config.Config
	obs observer.Observer

	db     *storage.DB
	store  *clientstore.Store
	api    *restapi.Service
	conn   *connection.Manager
	pend   *pending.Store
	sync   *syncengine.Engine
	attach *attachment.Manager
}

// dbPath mirrors Client::db_path: an empty root and name means "in
// memory", used by tests; otherwise rootPath/dbName.db.
func dbPath(rootPath, dbName string) (string, string) {
	if rootPath == "" && dbName == "" {
		return "", ""
	}
	return rootPath, dbName + dbSuffix
}

// wsURL maps an HTTP(S) endpoint to its websocket connect URL, mirroring
// websocket::WebsocketOption::url_from_endpoint's "{endpoint}/api/connect"
// but rewriting the scheme: gorilla/websocket's Dialer requires ws(s)://,
// unlike the original's tungstenite which accepts the bare http(s) form.
func wsURL(endpoint, apiPrefix string) string {
	url := endpoint
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url + apiPrefix + "/connect"
}

// New builds a Client for one signed-in user, opening its local storage
// and wiring every internal component. It does not connect — call Connect
// to start the Connection Manager.
func New(rootPath, dbName string, auth model.AuthInfo, obs observer.Observer, cfg config.Config) (*Client, error) {
	if obs == nil {
		obs = observer.NoOp{}
	}

	rd, dn := dbPath(rootPath, dbName)
	db := storage.Open(rd, dn)

	store := clientstore.New(db, auth.UserID, cfg.MaxRecallWindow, cfg.RemovedConversationCacheExpire)
	api := restapi.New(auth.Endpoint, auth.Token, cfg.APIPrefix, cfg.APITimeout)
	pend := pending.New(cfg)
	disp := dispatch.New(store, pend, obs, cfg.MaxIncomingLogCacheCount)
	tr := transport.NewWSTransport(cfg.HandshakeTimeout, cfg.PingInterval, cfg.PingTimeout)

	endpointURL := wsURL(auth.Endpoint, cfg.APIPrefix)
	conn := connection.New(cfg, tr, disp, pend, obs, auth.Endpoint, auth.Token, func(string) string { return endpointURL })

	se := syncengine.New(store, api, obs, cfg, auth.UserID)
	am := attachment.New(api, obs, cfg)

	pend.StartSweeper()

	return &Client{
		RootPath: rootPath,
		UserID:   auth.UserID,
		Token:    auth.Token,
		Endpoint: auth.Endpoint,
		cfg:      cfg,
		obs:      obs,
		db:       db,
		store:    store,
		api:      api,
		conn:     conn,
		pend:     pend,
		sync:     se,
		attach:   am,
	}, nil
}

// Connect starts the Connection Manager's reconnect loop. It blocks until
// ctx is canceled or Shutdown is called; run it in its own goroutine.
func (c *Client) Connect(ctx context.Context) {
	c.conn.Run(ctx)
}

// Shutdown tears down the connection and stops background maintenance.
func (c *Client) Shutdown() {
	c.conn.Shutdown()
	c.pend.Stop()
	_ = c.db.Close()
}

// AppActive wakes the Connection Manager immediately if it is waiting out
// a reconnect backoff, e.g. after the host application returns to the
// foreground.
func (c *Client) AppActive() { c.conn.AppActive() }

// send enrolls req as a pending outgoing request, assigning it a chat id
// if it doesn't already have one, and returns that chat id immediately —
// actual delivery happens asynchronously via the Connection Manager.
func (c *Client) send(req model.ChatRequest, cb observer.MessageCallback) string {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.ChatID == "" {
		req.ChatID = uuid.NewString()
	}
	c.store.SaveOutgoingChatLog(req)
	c.pend.Add(req, cb)
	return req.ChatID
}

// SendText sends a plain-text message.
func (c *Client) SendText(topicID, text string, mentions []string, replyID string, cb observer.MessageCallback) string {
	req := model.NewText(topicID, text).WithMentions(mentions, false).WithReply(replyID)
	return c.send(req, cb)
}

// SendImage uploads an image attachment, then sends it as a message.
// Progress and completion are reported through the Observer.
func (c *Client) SendImage(ctx context.Context, topicID string, att model.Attachment, reader io.Reader, mentions []string, replyID string, cb observer.MessageCallback) (string, error) {
	return c.sendWithUpload(ctx, topicID, att, reader, mentions, replyID, cb, func(path string, size int64) model.ChatRequest {
		return model.NewImage(topicID, path, size, att.Placeholder)
	})
}

// SendVoice uploads a voice attachment, then sends it as a message.
func (c *Client) SendVoice(ctx context.Context, topicID string, att model.Attachment, durationSecs int, reader io.Reader, mentions []string, replyID string, cb observer.MessageCallback) (string, error) {
	return c.sendWithUpload(ctx, topicID, att, reader, mentions, replyID, cb, func(path string, size int64) model.ChatRequest {
		return model.NewVoice(topicID, path, size, durationSecs)
	})
}

// SendVideo uploads a video attachment, then sends it as a message.
func (c *Client) SendVideo(ctx context.Context, topicID string, att model.Attachment, durationSecs int, reader io.Reader, mentions []string, replyID string, cb observer.MessageCallback) (string, error) {
	return c.sendWithUpload(ctx, topicID, att, reader, mentions, replyID, cb, func(path string, size int64) model.ChatRequest {
		return model.NewVideo(topicID, path, att.Placeholder, size, durationSecs)
	})
}

// SendFile uploads a generic file attachment, then sends it as a message.
func (c *Client) SendFile(ctx context.Context, topicID string, att model.Attachment, reader io.Reader, mentions []string, replyID string, cb observer.MessageCallback) (string, error) {
	return c.sendWithUpload(ctx, topicID, att, reader, mentions, replyID, cb, func(path string, size int64) model.ChatRequest {
		return model.NewFile(topicID, path, att.Name, size)
	})
}

// sendWithUpload drives one attachment upload and, on success, hands the
// server-assigned path/size off to build, enrolling the result as a
// pending outgoing request the same way a plain send would.
func (c *Client) sendWithUpload(ctx context.Context, topicID string, att model.Attachment, reader io.Reader, mentions []string, replyID string, cb observer.MessageCallback, build func(path string, size int64) model.ChatRequest) (string, error) {
	chatID := uuid.NewString()
	result, err := c.attach.Upload(ctx, chatID, att.Name, att.ContentType, att.Size, att.IsPrivate, reader)
	if err != nil {
		return "", err
	}
	req := build(result.URL, result.Size).WithMentions(mentions, false).WithReply(replyID)
	req.ChatID = chatID
	return c.send(req, cb), nil
}

// SendLocation sends a location message.
func (c *Client) SendLocation(topicID string, latitude, longitude float64, address string, mentions []string, replyID string, cb observer.MessageCallback) string {
	req := model.NewLocation(topicID, latitude, longitude, address).WithMentions(mentions, false).WithReply(replyID)
	return c.send(req, cb)
}

// SendLink sends a link-preview message.
func (c *Client) SendLink(topicID, url string, mentions []string, replyID string, cb observer.MessageCallback) string {
	req := model.NewLink(topicID, url).WithMentions(mentions, false).WithReply(replyID)
	return c.send(req, cb)
}

// SendRecall requests the server recall a previously sent message.
func (c *Client) SendRecall(topicID, chatID string, cb observer.MessageCallback) string {
	req := model.NewRecall(topicID, chatID)
	return c.send(req, cb)
}

// SendTyping fires a typing indicator for a topic. Fire-and-forget: the
// Pending Store enrolls it as non-retriable, so it is never resent and the
// next sweep discards it; one still buffered offline by then is never sent.
func (c *Client) SendTyping(topicID string) {
	c.pend.Add(withChatID(model.NewTyping(topicID)), nil)
}

// SendRead marks a topic read, locally and on the server.
func (c *Client) SendRead(topicID string) {
	c.store.SetConversationReadLocal(topicID, nil)
	c.pend.Add(withChatID(model.NewRead(topicID)), nil)
}

// CancelUpload aborts an in-flight upload enrolled under chatID.
func (c *Client) CancelUpload(chatID string) { c.attach.Cancel(chatID) }

// CancelDownload aborts an in-flight download enrolled under chatID.
func (c *Client) CancelDownload(chatID string) { c.attach.Cancel(chatID) }

// DownloadAttachment fetches url into destPath, reporting progress and
// completion through the Observer.
func (c *Client) DownloadAttachment(ctx context.Context, chatID, url, destPath string) error {
	return c.attach.Download(ctx, chatID, url, destPath)
}

// GetConversation returns a locally cached conversation.
func (c *Client) GetConversation(topicID string) (model.Conversation, bool) {
	return c.store.GetConversation(topicID)
}

// GetConversations returns a descending page of cached conversations.
func (c *Client) GetConversations(startSortValue *int64, limit int) storage.QueryResult[model.Conversation] {
	return c.store.GetConversations(startSortValue, limit)
}

// RemoveConversation removes a conversation, locally and on the server.
func (c *Client) RemoveConversation(ctx context.Context, topicID string) error {
	if err := c.api.RemoveConversation(ctx, topicID); err != nil {
		return err
	}
	c.store.RemoveConversation(topicID)
	return nil
}

// SetConversationSticky toggles a conversation's pinned state on the
// server. The locally cached conversation is not updated.
func (c *Client) SetConversationSticky(ctx context.Context, topicID string, sticky bool) error {
	return c.api.SetConversationSticky(ctx, topicID, sticky)
}

// SetConversationMute toggles a conversation's muted state.
func (c *Client) SetConversationMute(ctx context.Context, topicID string, mute bool) error {
	return c.api.SetConversationMute(ctx, topicID, mute)
}

// SetConversationTags replaces a conversation's tag list.
func (c *Client) SetConversationTags(ctx context.Context, topicID string, tags []string) error {
	return c.api.SetConversationTags(ctx, topicID, tags)
}

// SetConversationExtra replaces a conversation's free-form extra map.
func (c *Client) SetConversationExtra(ctx context.Context, topicID string, extra map[string]string) error {
	return c.api.SetConversationExtra(ctx, topicID, extra)
}

// SetConversationRemark sets a conversation's local display remark.
func (c *Client) SetConversationRemark(ctx context.Context, topicID, remark string) error {
	return c.api.SetConversationRemark(ctx, topicID, remark)
}

// GetChatLog returns one cached chat log.
func (c *Client) GetChatLog(topicID, chatID string) (model.ChatLog, bool) {
	return c.store.GetChatLog(topicID, chatID)
}

// GetChatLogs returns a descending page of cached chat logs.
func (c *Client) GetChatLogs(topicID string, startSortValue *int64, limit int) storage.QueryResult[model.ChatLog] {
	return c.store.GetChatLogs(topicID, startSortValue, limit)
}

// SearchChatLog is unimplemented, matching the original's
// search_chat_log, which always returns None — no server-side search
// endpoint exists to back it.
func (c *Client) SearchChatLog(topicID, senderID, keyword string) (model.ListResult[model.ChatLog], bool) {
	return model.ListResult[model.ChatLog]{}, false
}

// RemoveMessages deletes chat logs from the server and the local cache.
func (c *Client) RemoveMessages(ctx context.Context, topicID string, chatIDs []string, syncToServer bool) error {
	if syncToServer {
		if err := c.api.RemoveMessages(ctx, topicID, seqsFor(c.store, topicID, chatIDs)); err != nil {
			return err
		}
	}
	c.store.RemoveMessages(topicID, chatIDs)
	return nil
}

func seqsFor(store *clientstore.Store, topicID string, chatIDs []string) []int64 {
	seqs := make([]int64, 0, len(chatIDs))
	for _, id := range chatIDs {
		if log, ok := store.GetChatLog(topicID, id); ok {
			seqs = append(seqs, log.Seq)
		}
	}
	return seqs
}

// GetUser returns a user profile, lazily refetching from the server when
// the cached copy is partial or has aged past cfg.UserCacheExpire.
func (c *Client) GetUser(ctx context.Context, userID string) (model.UserProfile, bool) {
	cached, ok := c.store.GetUser(userID)
	if ok && !cached.IsPartial && time.Since(cached.CachedAt) < c.cfg.UserCacheExpire {
		return cached, true
	}

	fetched, err := c.api.GetUserProfile(ctx, userID)
	if err != nil {
		if ok {
			return cached, true
		}
		return model.UserProfile{}, false
	}
	fetched.CachedAt = time.Now()
	return c.store.UpdateUser(fetched), true
}

// SetUserRemark sets the local remark (nickname) attached to a relation,
// on the server and in the local cache.
func (c *Client) SetUserRemark(ctx context.Context, userID, remark string) error {
	if err := c.api.SetUserRemark(ctx, userID, remark); err != nil {
		return err
	}
	c.store.UpdateUser(model.UserProfile{UserID: userID, Remark: remark, CachedAt: time.Now()})
	return nil
}

// SetUserStar stars or unstars a relation, on the server and in the local
// cache.
func (c *Client) SetUserStar(ctx context.Context, userID string, star bool) error {
	if err := c.api.SetUserStar(ctx, userID, star); err != nil {
		return err
	}
	cached, _ := c.store.GetUser(userID)
	cached.UserID = userID
	cached.IsStar = star
	cached.CachedAt = time.Now()
	c.store.UpdateUser(cached)
	return nil
}

// SetUserBlocked blocks or unblocks a relation, on the server and in the
// local cache.
func (c *Client) SetUserBlocked(ctx context.Context, userID string, blocked bool) error {
	if err := c.api.SetUserBlocked(ctx, userID, blocked); err != nil {
		return err
	}
	cached, _ := c.store.GetUser(userID)
	cached.UserID = userID
	cached.IsBlocked = blocked
	cached.CachedAt = time.Now()
	c.store.UpdateUser(cached)
	return nil
}

// SyncConversations triggers a conversations sync; see
// syncengine.ConversationsSyncOptions for tuning knobs.
func (c *Client) SyncConversations(ctx context.Context, opts syncengine.ConversationsSyncOptions) (int, error) {
	return c.sync.SyncConversations(ctx, opts)
}

// SyncChatLogs triggers a chat-log sync for one topic; see
// syncengine.ChatLogsSyncOptions for tuning knobs.
func (c *Client) SyncChatLogs(ctx context.Context, opts syncengine.ChatLogsSyncOptions) (syncengine.ChatLogsResult, error) {
	return c.sync.SyncChatLogs(ctx, opts)
}

// withChatID stamps a chat id onto a request built without one (typing/
// read markers don't need a stable id of their own, but the Pending
// Store keys every outgoing request by chat id).
func withChatID(req model.ChatRequest) model.ChatRequest {
	if req.ChatID == "" {
		req.ChatID = uuid.NewString()
	}
	return req
}
