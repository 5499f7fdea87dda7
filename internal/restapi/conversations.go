package restapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/restsend/chatkit/model"
)

// GetConversations fetches a descending page of conversations, updatedAt <
// startSortValue (0 means "from the newest"), grounded on
// services/conversation.rs's get_conversations paging contract.
func (s *Service) GetConversations(ctx context.Context, startSortValue int64, limit int) (model.ListResult[model.Conversation], error) {
	var out model.ListResult[model.Conversation]
	path := fmt.Sprintf("/conversation/list?updatedAt=%d&limit=%d", startSortValue, limit)
	err := s.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// GetConversation fetches one conversation by topic id.
func (s *Service) GetConversation(ctx context.Context, topicID string) (model.Conversation, error) {
	var out model.Conversation
	err := s.do(ctx, http.MethodGet, "/conversation/"+topicID, nil, &out)
	return out, err
}

// RemoveConversation deletes a conversation server-side.
func (s *Service) RemoveConversation(ctx context.Context, topicID string) error {
	return s.do(ctx, http.MethodPost, "/conversation/"+topicID+"/remove", nil, nil)
}

// SetConversationRead marks a conversation read up to seq.
func (s *Service) SetConversationRead(ctx context.Context, topicID string, seq int64) error {
	return s.do(ctx, http.MethodPost, "/conversation/"+topicID+"/read", map[string]int64{"seq": seq}, nil)
}

// SetConversationSticky toggles a conversation's pinned state.
func (s *Service) SetConversationSticky(ctx context.Context, topicID string, sticky bool) error {
	return s.do(ctx, http.MethodPost, "/conversation/"+topicID+"/sticky", map[string]bool{"sticky": sticky}, nil)
}

// SetConversationMute toggles a conversation's muted state.
func (s *Service) SetConversationMute(ctx context.Context, topicID string, mute bool) error {
	return s.do(ctx, http.MethodPost, "/conversation/"+topicID+"/mute", map[string]bool{"mute": mute}, nil)
}

// SetConversationExtra replaces a conversation's free-form extra map.
func (s *Service) SetConversationExtra(ctx context.Context, topicID string, extra map[string]string) error {
	return s.do(ctx, http.MethodPost, "/conversation/"+topicID+"/extra", extra, nil)
}

// SetConversationTags replaces a conversation's tag list.
func (s *Service) SetConversationTags(ctx context.Context, topicID string, tags []string) error {
	return s.do(ctx, http.MethodPost, "/conversation/"+topicID+"/tags", map[string][]string{"tags": tags}, nil)
}

// SetConversationRemark sets a conversation's local display remark.
func (s *Service) SetConversationRemark(ctx context.Context, topicID, remark string) error {
	return s.do(ctx, http.MethodPost, "/conversation/"+topicID+"/remark", map[string]string{"remark": remark}, nil)
}

// GetChatLogs fetches a descending page of chat logs for topicID, seq <
// startSortValue (0 means "from the newest").
func (s *Service) GetChatLogs(ctx context.Context, topicID string, startSortValue int64, limit int) (model.ListResult[model.ChatLog], error) {
	var out model.ListResult[model.ChatLog]
	path := fmt.Sprintf("/conversation/%s/logs?seq=%d&limit=%d", topicID, startSortValue, limit)
	err := s.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// RemoveMessages deletes a set of chat logs (by seq) from a conversation.
func (s *Service) RemoveMessages(ctx context.Context, topicID string, seqs []int64) error {
	return s.do(ctx, http.MethodPost, "/conversation/"+topicID+"/logs/remove", map[string][]int64{"seqs": seqs}, nil)
}

// CleanHistory removes all chat logs up to (and including) seq.
func (s *Service) CleanHistory(ctx context.Context, topicID string, seq int64) error {
	return s.do(ctx, http.MethodPost, "/conversation/"+topicID+"/logs/clean", map[string]int64{"seq": seq}, nil)
}
