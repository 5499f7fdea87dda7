package model

// ChatRequestType enumerates the "type" field of a wire envelope.
type ChatRequestType string

const (
	ChatRequestTypeChat     ChatRequestType = "chat"
	ChatRequestTypeResponse ChatRequestType = "resp"
	ChatRequestTypeRead     ChatRequestType = "read"
	ChatRequestTypeTyping   ChatRequestType = "typing"
	ChatRequestTypeKickout  ChatRequestType = "kickout"
	ChatRequestTypeNop      ChatRequestType = "nop"
	ChatRequestTypeUnknown  ChatRequestType = "unknown"
)

// ParseChatRequestType maps a raw wire type string to a known
// ChatRequestType, falling back to Unknown rather than erroring — the
// Incoming Dispatcher must tolerate message types it doesn't recognize.
func ParseChatRequestType(raw string) ChatRequestType {
	switch ChatRequestType(raw) {
	case ChatRequestTypeChat, ChatRequestTypeResponse, ChatRequestTypeRead,
		ChatRequestTypeTyping, ChatRequestTypeKickout, ChatRequestTypeNop:
		return ChatRequestType(raw)
	default:
		return ChatRequestTypeUnknown
	}
}

// ChatRequest is the wire envelope exchanged over the Transport duplex
// channel. Field order and omission rules are fixed by internal/wire's
// codec test fixture and must not be reordered casually.
type ChatRequest struct {
	Type            string       `json:"type"`
	ID              string       `json:"id,omitempty"`
	TopicID         string       `json:"topicId,omitempty"`
	ChatID          string       `json:"chatId,omitempty"`
	Content         *Content     `json:"content,omitempty"`
	Code            int          `json:"code,omitempty"`
	Message         string       `json:"message,omitempty"`
	Seq             int64        `json:"seq,omitempty"`
	CreatedAt       string       `json:"createdAt,omitempty"`
	Attendee        string       `json:"attendee,omitempty"`
	AttendeeProfile *UserProfile `json:"attendeeProfile,omitempty"`
	E2EContent      *string      `json:"e2eContent,omitempty"`
}

// NewText builds a plain-text outgoing chat request.
func NewText(topicID, text string) ChatRequest {
	return ChatRequest{
		Type:    string(ChatRequestTypeChat),
		TopicID: topicID,
		Content: &Content{Type: ContentTypeText, Text: text},
	}
}

// NewResponse builds a "resp" acknowledgement for an incoming request.
func NewResponse(req ChatRequest, code int) ChatRequest {
	return ChatRequest{
		Type:    string(ChatRequestTypeResponse),
		ID:      req.ID,
		TopicID: req.TopicID,
		ChatID:  req.ChatID,
		Code:    code,
	}
}

// NewImage builds an outgoing image chat request referencing an
// already-uploaded attachment path.
func NewImage(topicID, path string, size int64, thumbnail string) ChatRequest {
	return ChatRequest{
		Type:    string(ChatRequestTypeChat),
		TopicID: topicID,
		Content: &Content{
			Type:       ContentTypeImage,
			Thumbnail:  thumbnail,
			Attachment: &Attachment{URL: path, Size: size},
		},
	}
}

// NewVoice builds an outgoing voice chat request.
func NewVoice(topicID, path string, size int64, durationSecs int) ChatRequest {
	return ChatRequest{
		Type:    string(ChatRequestTypeChat),
		TopicID: topicID,
		Content: &Content{
			Type:       ContentTypeVoice,
			Duration:   durationSecs,
			Attachment: &Attachment{URL: path, Size: size},
		},
	}
}

// NewVideo builds an outgoing video chat request.
func NewVideo(topicID, path, thumbnail string, size int64, durationSecs int) ChatRequest {
	return ChatRequest{
		Type:    string(ChatRequestTypeChat),
		TopicID: topicID,
		Content: &Content{
			Type:       ContentTypeVideo,
			Duration:   durationSecs,
			Thumbnail:  thumbnail,
			Attachment: &Attachment{URL: path, Size: size},
		},
	}
}

// NewFile builds an outgoing file chat request.
func NewFile(topicID, path, fileName string, size int64) ChatRequest {
	return ChatRequest{
		Type:    string(ChatRequestTypeChat),
		TopicID: topicID,
		Content: &Content{
			Type:       ContentTypeFile,
			Attachment: &Attachment{URL: path, Size: size, Name: fileName},
		},
	}
}

// NewLocation builds an outgoing location chat request.
func NewLocation(topicID string, latitude, longitude float64, address string) ChatRequest {
	return ChatRequest{
		Type:    string(ChatRequestTypeChat),
		TopicID: topicID,
		Content: &Content{
			Type:      ContentTypeLocation,
			Latitude:  latitude,
			Longitude: longitude,
			Address:   address,
		},
	}
}

// NewLink builds an outgoing link-preview chat request.
func NewLink(topicID, url string) ChatRequest {
	return ChatRequest{
		Type:    string(ChatRequestTypeChat),
		TopicID: topicID,
		Content: &Content{Type: ContentTypeLink, Text: url},
	}
}

// NewRecall builds an outgoing recall request for a previously sent
// chatID.
func NewRecall(topicID, chatID string) ChatRequest {
	return ChatRequest{
		Type:    string(ChatRequestTypeChat),
		TopicID: topicID,
		Content: &Content{Type: ContentTypeRecall, RecallID: chatID},
	}
}

// WithMentions attaches mentions (and, if all is true, a mention-all flag)
// to a chat request already carrying Content.
func (r ChatRequest) WithMentions(mentions []string, all bool) ChatRequest {
	if r.Content == nil {
		return r
	}
	r.Content.Mentions = mentions
	r.Content.MentionAll = all
	return r
}

// WithReply attaches a reply-to chat id to a chat request already
// carrying Content. A zero-value replyID is a no-op.
func (r ChatRequest) WithReply(replyID string) ChatRequest {
	if r.Content == nil || replyID == "" {
		return r
	}
	r.Content.Reply = replyID
	return r
}

// NewRead builds a "read" marker request for a topic.
func NewRead(topicID string) ChatRequest {
	return ChatRequest{Type: string(ChatRequestTypeRead), TopicID: topicID}
}

// NewTyping builds a "typing" indicator request for a topic.
func NewTyping(topicID string) ChatRequest {
	return ChatRequest{Type: string(ChatRequestTypeTyping), TopicID: topicID}
}

// PendingRequest tracks one outgoing ChatRequest awaiting a server ack.
type PendingRequest struct {
	Req        ChatRequest
	Retry      int
	MaxRetry   int
	CreatedAt  int64 // unix millis
	UpdatedAt  int64 // unix millis, bumped on every retry attempt
	LastFailAt int64 // unix millis, set when a send attempt fails; 0 means no pending re-emit
	CanRetry   bool
}

// HasAttachment reports whether this request's content carries a local
// attachment still needing upload before it can be sent over the wire.
func (p PendingRequest) HasAttachment() bool {
	return p.Req.Content != nil && p.Req.Content.Attachment != nil && p.Req.Content.Attachment.Path != ""
}
