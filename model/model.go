// Package model defines the domain types shared across chatkit: wire
// requests, cached conversations/chat logs/users, and the storage
// abstraction's key contract.
package model

import "time"

// AuthInfo is the credential set returned by login/signup and required by
// chatkit.New.
type AuthInfo struct {
	Endpoint string `json:"endpoint"`
	UserID   string `json:"userId"`
	Token    string `json:"token"`
}

// StoreModel is implemented by every type persisted through internal/storage.
// SortKey determines ordering within a partition; Go's generic Table[T] never
// interprets it beyond ordering and range comparisons.
type StoreModel interface {
	SortKey() int64
}

// ContentType enumerates the kinds of message content chatkit understands.
type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeImage    ContentType = "image"
	ContentTypeVoice    ContentType = "voice"
	ContentTypeVideo    ContentType = "video"
	ContentTypeFile     ContentType = "file"
	ContentTypeLocation ContentType = "location"
	ContentTypeLink     ContentType = "link"
	ContentTypeRecall   ContentType = "recall"
	ContentTypeNone     ContentType = "none"

	// Topic lifecycle content types, recovered from the commented-out
	// fuller callback surface — supplemental, not present in the
	// distilled spec's content type list.
	ContentTypeTopicCreate     ContentType = "topic.create"
	ContentTypeTopicDismiss    ContentType = "topic.dismiss"
	ContentTypeTopicQuit       ContentType = "topic.quit"
	ContentTypeTopicKickout    ContentType = "topic.kickout"
	ContentTypeTopicJoin       ContentType = "topic.join"
	ContentTypeTopicNotice     ContentType = "topic.notice"
	ContentTypeTopicUpdate     ContentType = "topic.update"
	ContentTypeTopicKnock      ContentType = "topic.knock"
	ContentTypeTopicKnockOK    ContentType = "topic.knock.accept"
	ContentTypeTopicKnockDeny  ContentType = "topic.knock.reject"
	ContentTypeTopicSilent     ContentType = "topic.silent"
	ContentTypeTopicSilentOne  ContentType = "topic.silent.member"
	ContentTypeTopicChangeOwn  ContentType = "topic.changeowner"
)

// Attachment describes a file payload attached to a Content.
type Attachment struct {
	URL         string `json:"url,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Name        string `json:"name,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	IsPrivate   bool   `json:"isPrivate,omitempty"`
	Path        string `json:"-"` // local source path, never serialized over the wire
}

// Content is the payload of a ChatRequest of type "chat".
type Content struct {
	Type        ContentType       `json:"type"`
	Text        string            `json:"text,omitempty"`
	Attachment  *Attachment       `json:"attachment,omitempty"`
	Duration    int               `json:"duration,omitempty"`
	Thumbnail   string            `json:"thumbnail,omitempty"`
	Latitude    float64           `json:"latitude,omitempty"`
	Longitude   float64           `json:"longitude,omitempty"`
	Address     string            `json:"address,omitempty"`
	Mentions    []string          `json:"mentions,omitempty"`
	MentionAll  bool              `json:"mentionAll,omitempty"`
	Reply       string            `json:"reply,omitempty"`
	RecallID    string            `json:"recallId,omitempty"`
	Encrypted   bool              `json:"encrypted,omitempty"`
	Checksum    string            `json:"checksum,omitempty"`
	ReplyContent string           `json:"replyContent,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// IsUnreadable reports whether content of this type should not count toward
// a conversation's unread counter (None and Recall never increment unread).
func (c Content) IsUnreadable() bool {
	return c.Type == ContentTypeNone || c.Type == ContentTypeRecall
}

// ChatLogStatus is the lifecycle status of a locally cached ChatLog.
type ChatLogStatus string

const (
	ChatLogStatusSending     ChatLogStatus = "sending"
	ChatLogStatusSent        ChatLogStatus = "sent"
	ChatLogStatusSendFailed  ChatLogStatus = "failed"
	ChatLogStatusReceived    ChatLogStatus = "received"
	ChatLogStatusRecalled    ChatLogStatus = "recalled"
)

// ChatLog is a single cached message, indexed by conversation topic and seq.
type ChatLog struct {
	TopicID    string        `json:"topicId"`
	ChatID     string        `json:"chatId"`
	Seq        int64         `json:"seq"`
	SenderID   string        `json:"senderId"`
	Content    Content       `json:"content"`
	Status     ChatLogStatus `json:"status"`
	CreatedAt  time.Time     `json:"createdAt"`
	CachedAt   time.Time     `json:"cachedAt"`
}

// SortKey orders chat logs within a topic partition by seq.
func (c ChatLog) SortKey() int64 { return c.Seq }

// Conversation is the merged, locally cached view of one topic.
type Conversation struct {
	TopicID        string            `json:"topicId"`
	Name           string            `json:"name"`
	Icon           string            `json:"icon,omitempty"`
	Remark         string            `json:"remark,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`
	TopicExtra     map[string]string `json:"topicExtra,omitempty"`
	TopicOwnerID   string            `json:"topicOwnerId,omitempty"`
	TopicCreatedAt time.Time         `json:"topicCreatedAt,omitempty"`
	Sticky         bool              `json:"sticky,omitempty"`
	Mute           bool              `json:"mute,omitempty"`
	LastSenderID   string            `json:"lastSenderId,omitempty"`
	LastMessage    Content           `json:"lastMessage"`
	LastMessageAt  time.Time         `json:"lastMessageAt"`
	LastSeq        int64             `json:"lastSeq"`
	LastReadSeq    int64             `json:"lastReadSeq"`
	Unread         int64             `json:"unread"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	IsPartial      bool              `json:"isPartial,omitempty"`
	CachedAt       time.Time         `json:"-"`
	Removed        bool              `json:"-"`
}

// SortKey orders conversations in the cache by last update time, descending
// consumers handle the reversal; SortKey itself is monotonic ascending.
func (c Conversation) SortKey() int64 { return c.UpdatedAt.UnixMilli() }

// UserProfile is public profile data about a user, cached locally.
type UserProfile struct {
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar,omitempty"`
	PublicKey string    `json:"publicKey,omitempty"`
	Remark    string    `json:"remark,omitempty"`
	IsContact bool      `json:"isContact,omitempty"`
	IsStar    bool      `json:"isStar,omitempty"`
	IsBlocked bool      `json:"isBlocked,omitempty"`
	Locale    string    `json:"locale,omitempty"`
	City      string    `json:"city,omitempty"`
	Country   string    `json:"country,omitempty"`
	Source    string    `json:"source,omitempty"`
	Gender    string    `json:"gender,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	CachedAt  time.Time `json:"-"`
	IsPartial bool      `json:"isPartial,omitempty"`
	UpdatedAt int64     `json:"updatedAt,omitempty"`
}

// SortKey orders cached users by last-seen update timestamp.
func (u UserProfile) SortKey() int64 { return u.UpdatedAt }

// Merge combines incoming profile data into the locally cached copy:
// non-empty fields replace field by field, the boolean relation flags
// (isContact/isStar/isBlocked) always adopt the incoming value even when
// false, and isPartial is cleared — mirroring 4.H's User merge rule.
func (u UserProfile) Merge(incoming UserProfile) UserProfile {
	merged := u
	if incoming.Name != "" {
		merged.Name = incoming.Name
	}
	if incoming.Avatar != "" {
		merged.Avatar = incoming.Avatar
	}
	if incoming.PublicKey != "" {
		merged.PublicKey = incoming.PublicKey
	}
	if incoming.Remark != "" {
		merged.Remark = incoming.Remark
	}
	if incoming.Locale != "" {
		merged.Locale = incoming.Locale
	}
	if incoming.City != "" {
		merged.City = incoming.City
	}
	if incoming.Country != "" {
		merged.Country = incoming.Country
	}
	if incoming.Source != "" {
		merged.Source = incoming.Source
	}
	if incoming.Gender != "" {
		merged.Gender = incoming.Gender
	}
	if !incoming.CreatedAt.IsZero() {
		merged.CreatedAt = incoming.CreatedAt
	}
	merged.IsContact = incoming.IsContact
	merged.IsStar = incoming.IsStar
	merged.IsBlocked = incoming.IsBlocked
	merged.IsPartial = false
	merged.CachedAt = incoming.CachedAt
	if incoming.UpdatedAt > merged.UpdatedAt {
		merged.UpdatedAt = incoming.UpdatedAt
	}
	return merged
}

// Topic describes a conversation's group metadata, as returned by the topic
// CRUD/admin HTTP operations.
type Topic struct {
	TopicID   string            `json:"topicId"`
	Name      string            `json:"name"`
	Icon      string            `json:"icon,omitempty"`
	OwnerID   string            `json:"ownerId"`
	Notice    string            `json:"notice,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	Members   int               `json:"members,omitempty"`
}

// TopicMember is one member row of a Topic's membership list.
type TopicMember struct {
	TopicID  string    `json:"topicId"`
	UserID   string    `json:"userId"`
	Role     string    `json:"role,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
}

// TopicKnock is a pending join request awaiting admin approval.
type TopicKnock struct {
	TopicID   string    `json:"topicId"`
	UserID    string    `json:"userId"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListResult is a generic paginated list envelope shared by conversation,
// chat-log and user listing endpoints.
type ListResult[T any] struct {
	Items        []T   `json:"items"`
	StartSortVal int64 `json:"startSortValue"`
	EndSortVal   int64 `json:"endSortValue"`
	HasMore      bool  `json:"hasMore"`
}
