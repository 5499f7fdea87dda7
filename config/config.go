// Package config holds chatkit's tunable parameters. Every field has a
// documented default produced by DefaultConfig; callers override only what
// they need.
package config

import "time"

// Config collects every tunable named across the connection, pending,
// dispatch, sync and attachment components.
type Config struct {
	// Connection Manager
	MaxConnectIntervalSecs int           // cap on linear reconnect backoff
	KeepaliveInterval      time.Duration // how often an application-level "nop" keepalive frame is sent
	HandshakeTimeout       time.Duration // websocket upgrade timeout
	PingInterval           time.Duration // WS-level control-frame ping cadence
	PingTimeout            time.Duration // how long without a pong before the connection is considered dead

	// Pending Store
	MaxSendRetry  int           // retries before a pending request is failed
	MaxSendIdle   time.Duration // idle time before a pending request is failed
	SweepInterval time.Duration // pending-store expiry sweep period

	// Incoming Dispatcher
	MaxRecallWindow          time.Duration // how long after caching a message may be recalled
	MaxIncomingLogCacheCount int           // cap on the dispatcher's dedup cache of recently seen chat ids

	// HTTP Service Layer
	APITimeout time.Duration
	APIPrefix  string

	// Sync Engine
	ConversationsPageLimit int
	ChatLogsPageLimit      int
	MaxSyncLogsMaxCount    int // heavy chat-log sync gives up after this many accumulated items
	MaxSyncLogsLimit       int // per-request page size cap for a sync call
	MaxConversationLimit   int // cap on conversations merged by a single SyncConversations run

	// Attachment Subsystem
	MaxAttachmentConcurrent int
	AttachmentProgressEvery time.Duration

	// Client Store cache TTLs
	ConversationCacheExpire        time.Duration // conversation cache TTL; no component reads it, so cached conversations never expire
	UserCacheExpire                time.Duration // how long a cached user profile is trusted before a refetch
	RemovedConversationCacheExpire time.Duration // how long a conversation tombstone is honored
}

// DefaultConfig returns the documented defaults, grounded on the tunables
// named in the external interface's configuration table.
func DefaultConfig() Config {
	return Config{
		MaxConnectIntervalSecs: 5,
		KeepaliveInterval:      50 * time.Second,
		HandshakeTimeout:       30 * time.Second,
		PingInterval:           30 * time.Second,
		PingTimeout:            5 * time.Second,

		MaxSendRetry:  2,
		MaxSendIdle:   20 * time.Second,
		SweepInterval: time.Second,

		MaxRecallWindow:          2 * time.Minute,
		MaxIncomingLogCacheCount: 300,

		APITimeout: 60 * time.Second,
		APIPrefix:  "/api",

		ConversationsPageLimit: 100,
		ChatLogsPageLimit:      100,
		MaxSyncLogsMaxCount:    200,
		MaxSyncLogsLimit:       500,
		MaxConversationLimit:   1000,

		MaxAttachmentConcurrent: 12,
		AttachmentProgressEvery: 300 * time.Millisecond,

		ConversationCacheExpire:        60 * time.Second,
		UserCacheExpire:                60 * time.Second,
		RemovedConversationCacheExpire: time.Second,
	}
}
