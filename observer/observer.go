// Package observer defines the callback surface chatkit's Client emits
// events through. Observer mirrors a default-trait-method interface: embed
// NoOp to implement only the events you care about.
package observer

import "github.com/restsend/chatkit/model"

// Observer receives lifecycle, message and sync events from a Client.
type Observer interface {
	// Connection lifecycle
	OnConnecting()
	OnConnected()
	OnConnectionBroken(reason string)
	OnKickoff(reason string)

	// Incoming messages. OnNewMessage returns true to mark the message
	// read immediately (advancing lastReadSeq locally); false to leave it
	// unread for the caller to mark later.
	OnNewMessage(topicID string, log model.ChatLog) bool
	OnTopicRead(topicID string, req model.ChatRequest)
	OnTopicTyping(topicID string, userID string)

	// Conversations and users
	OnConversationsUpdated(conversations []model.Conversation)
	OnConversationsRemoved(topicIDs []string)
	OnUsersUpdated(users []model.UserProfile)

	// Topic lifecycle, supplemented from the fuller original callback
	// surface (topic.* content types).
	OnTopicKnock(topicID string, knock model.TopicKnock)
	OnTopicJoin(topicID string, userID string)
	OnTopicDismiss(topicID string)
	OnTopicKickout(topicID string, userID string)

	// Attachment transfer
	OnUploadProgress(chatID string, sent, total int64)
	OnDownloadProgress(url string, received, total int64)
	OnTransferDone(chatID string)
	OnTransferCancel(chatID string)
}

// MessageCallback receives the outcome of one outgoing ChatRequest.
type MessageCallback interface {
	OnSent()
	OnAck(req model.ChatRequest)
	OnFail(reason string)
}

// NoOp implements Observer with no-op methods, the idiomatic Go stand-in for
// a trait's default method bodies: embed it and override only what matters.
type NoOp struct{}

func (NoOp) OnConnecting()                                         {}
func (NoOp) OnConnected()                                          {}
func (NoOp) OnConnectionBroken(reason string)                      {}
func (NoOp) OnKickoff(reason string)                                {}
func (NoOp) OnNewMessage(topicID string, log model.ChatLog) bool   { return false }
func (NoOp) OnTopicRead(topicID string, req model.ChatRequest)     {}
func (NoOp) OnTopicTyping(topicID string, userID string)           {}
func (NoOp) OnConversationsUpdated(conversations []model.Conversation) {}
func (NoOp) OnConversationsRemoved(topicIDs []string)               {}
func (NoOp) OnUsersUpdated(users []model.UserProfile)                {}
func (NoOp) OnTopicKnock(topicID string, knock model.TopicKnock)    {}
func (NoOp) OnTopicJoin(topicID string, userID string)              {}
func (NoOp) OnTopicDismiss(topicID string)                          {}
func (NoOp) OnTopicKickout(topicID string, userID string)           {}
func (NoOp) OnUploadProgress(chatID string, sent, total int64)      {}
func (NoOp) OnDownloadProgress(url string, received, total int64)   {}
func (NoOp) OnTransferDone(chatID string)                           {}
func (NoOp) OnTransferCancel(chatID string)                         {}

var _ Observer = NoOp{}
