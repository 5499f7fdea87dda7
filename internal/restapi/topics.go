package restapi

import (
	"context"
	"net/http"

	"github.com/restsend/chatkit/model"
)

// CreateTopic creates a new group topic with the given member user ids.
func (s *Service) CreateTopic(ctx context.Context, name string, memberIDs []string) (model.Topic, error) {
	var out model.Topic
	err := s.do(ctx, http.MethodPost, "/topic/create", map[string]any{
		"name":    name,
		"members": memberIDs,
	}, &out)
	return out, err
}

// GetTopicInfo fetches a topic's metadata.
func (s *Service) GetTopicInfo(ctx context.Context, topicID string) (model.Topic, error) {
	var out model.Topic
	err := s.do(ctx, http.MethodGet, "/topic/"+topicID, nil, &out)
	return out, err
}

// GetTopicMembers fetches a topic's member list.
func (s *Service) GetTopicMembers(ctx context.Context, topicID string) ([]model.TopicMember, error) {
	var out []model.TopicMember
	err := s.do(ctx, http.MethodGet, "/topic/"+topicID+"/members", nil, &out)
	return out, err
}

// KnockTopic requests to join a topic that requires admin approval.
func (s *Service) KnockTopic(ctx context.Context, topicID, message string) error {
	return s.do(ctx, http.MethodPost, "/topic/"+topicID+"/knock", map[string]string{"message": message}, nil)
}

// AdminApproveKnock accepts a pending join request.
func (s *Service) AdminApproveKnock(ctx context.Context, topicID, userID string) error {
	return s.do(ctx, http.MethodPost, "/topic/"+topicID+"/knock/"+userID+"/accept", nil, nil)
}

// AdminRejectKnock declines a pending join request.
func (s *Service) AdminRejectKnock(ctx context.Context, topicID, userID string) error {
	return s.do(ctx, http.MethodPost, "/topic/"+topicID+"/knock/"+userID+"/reject", nil, nil)
}

// AdminKickMember removes a member from a topic.
func (s *Service) AdminKickMember(ctx context.Context, topicID, userID string) error {
	return s.do(ctx, http.MethodPost, "/topic/"+topicID+"/members/"+userID+"/kick", nil, nil)
}

// AdminSilentMember mutes a single member within a topic.
func (s *Service) AdminSilentMember(ctx context.Context, topicID, userID string, silent bool) error {
	return s.do(ctx, http.MethodPost, "/topic/"+topicID+"/members/"+userID+"/silent", map[string]bool{"silent": silent}, nil)
}

// QuitTopic removes the current user from a topic.
func (s *Service) QuitTopic(ctx context.Context, topicID string) error {
	return s.do(ctx, http.MethodPost, "/topic/"+topicID+"/quit", nil, nil)
}

// DismissTopic disbands a topic (owner only).
func (s *Service) DismissTopic(ctx context.Context, topicID string) error {
	return s.do(ctx, http.MethodPost, "/topic/"+topicID+"/dismiss", nil, nil)
}

// GetUserProfile fetches one user's public profile.
func (s *Service) GetUserProfile(ctx context.Context, userID string) (model.UserProfile, error) {
	var out model.UserProfile
	err := s.do(ctx, http.MethodGet, "/profile/"+userID, nil, &out)
	return out, err
}

// GetUserProfiles fetches a batch of user profiles.
func (s *Service) GetUserProfiles(ctx context.Context, userIDs []string) ([]model.UserProfile, error) {
	var out []model.UserProfile
	err := s.do(ctx, http.MethodPost, "/profile", map[string][]string{"userIds": userIDs}, &out)
	return out, err
}

// SetUserRemark updates the local remark (nickname) attached to a relation.
func (s *Service) SetUserRemark(ctx context.Context, userID, remark string) error {
	return s.do(ctx, http.MethodPost, "/relation/"+userID, map[string]string{"remark": remark}, nil)
}

// SetUserStar stars or unstars a relation.
func (s *Service) SetUserStar(ctx context.Context, userID string, star bool) error {
	return s.do(ctx, http.MethodPost, "/relation/"+userID, map[string]bool{"favorite": star}, nil)
}

// SetUserBlocked blocks or unblocks a relation.
func (s *Service) SetUserBlocked(ctx context.Context, userID string, blocked bool) error {
	return s.do(ctx, http.MethodPost, "/relation/"+userID, map[string]bool{"block": blocked}, nil)
}
