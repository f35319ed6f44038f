package service

import (
	"context"
	"log/slog"

	"github.com/tallyhq/tally/internal/apperr"
	"github.com/tallyhq/tally/internal/models"
	"github.com/tallyhq/tally/internal/storage"
)

// GroupService implements group CRUD and membership semantics on top of
// the store and the access policy.
type GroupService struct {
	store  storage.Store
	policy Policy
}

// NewGroupService creates a GroupService.
func NewGroupService(store storage.Store, policy Policy) *GroupService {
	return &GroupService{store: store, policy: policy}
}

// CreateGroup creates a group with the requester as creator and sole
// initial member.
func (s *GroupService) CreateGroup(ctx context.Context, requester Principal, name, description string, isPublic bool) (*models.Group, error) {
	slog.Info("CreateGroup request received", "name", name, "user_id", requester.ID)

	if name == "" {
		return nil, apperr.Validationf("group name is required")
	}

	group := &models.Group{
		Name:        name,
		Description: description,
		CreatorID:   requester.ID,
		IsPublic:    isPublic,
	}
	group.EnsureCreatorMember()

	if err := s.store.CreateGroup(ctx, group); err != nil {
		slog.Error("CreateGroup failed", "error", err)
		return nil, err
	}

	slog.Info("Group created", "group_id", group.ID)
	return group, nil
}

// GetGroup retrieves a group, enforcing the visibility rule: public
// groups are readable by anyone, private ones by members only.
func (s *GroupService) GetGroup(ctx context.Context, requester Principal, id string) (*models.Group, error) {
	group, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanRead(group, requester) {
		return nil, apperr.Forbiddenf("you are not a member of this group")
	}
	return group, nil
}

// ListGroups returns the union of public groups and the requester's
// groups, deduplicated.
func (s *GroupService) ListGroups(ctx context.Context, requester Principal) ([]*models.Group, error) {
	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		slog.Error("ListGroups failed", "error", err)
		return nil, err
	}
	return s.policy.AccessibleGroups(groups, requester), nil
}

// UpdateGroup updates name, description, and visibility. Admin only
// (super-user override applies). The creator-is-member invariant is
// re-enforced on every update.
func (s *GroupService) UpdateGroup(ctx context.Context, requester Principal, id string, name, description *string, isPublic *bool) (*models.Group, error) {
	slog.Info("UpdateGroup request received", "group_id", id, "user_id", requester.ID)

	group, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanAdminister(group, requester) {
		return nil, apperr.Forbiddenf("only the group admin can update the group")
	}

	if name != nil {
		if *name == "" {
			return nil, apperr.Validationf("group name is required")
		}
		group.Name = *name
	}
	if description != nil {
		group.Description = *description
	}
	if isPublic != nil {
		group.IsPublic = *isPublic
	}
	group.EnsureCreatorMember()

	if err := s.store.UpdateGroup(ctx, group); err != nil {
		slog.Error("UpdateGroup failed", "group_id", id, "error", err)
		return nil, err
	}

	slog.Info("Group updated", "group_id", id)
	return group, nil
}

// AddMember adds a user (by username) to the group. Public groups are
// self-service joinable; in private groups any member may invite anyone.
func (s *GroupService) AddMember(ctx context.Context, requester Principal, groupID, username string) (*models.Group, error) {
	slog.Info("AddMember request received", "group_id", groupID, "username", username)

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	allowed := s.policy.IsMember(group, requester.ID) ||
		(group.IsPublic && user.ID == requester.ID) ||
		s.policy.IsSuper(requester)
	if !allowed {
		return nil, apperr.Forbiddenf("you are not a member of this group")
	}

	if group.HasMember(user.ID) {
		return nil, apperr.Conflictf("user %q is already a member", user.Username)
	}

	group.MemberIDs = append(group.MemberIDs, user.ID)
	group.EnsureCreatorMember()

	if err := s.store.UpdateGroup(ctx, group); err != nil {
		slog.Error("AddMember failed", "group_id", groupID, "error", err)
		return nil, err
	}

	slog.Info("Member added", "group_id", groupID, "user_id", user.ID)
	return group, nil
}

// RemoveMember removes a user from the group. Admin only; the creator
// can never be removed.
func (s *GroupService) RemoveMember(ctx context.Context, requester Principal, groupID, userID string) (*models.Group, error) {
	slog.Info("RemoveMember request received", "group_id", groupID, "user_id", userID)

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanAdminister(group, requester) {
		return nil, apperr.Forbiddenf("only the group admin can remove members")
	}
	if userID == group.CreatorID {
		return nil, apperr.Validationf("the group creator cannot be removed")
	}

	found := false
	members := group.MemberIDs[:0]
	for _, id := range group.MemberIDs {
		if id == userID {
			found = true
			continue
		}
		members = append(members, id)
	}
	if !found {
		return nil, apperr.NotFoundf("member not found")
	}
	group.MemberIDs = members
	group.EnsureCreatorMember()

	if err := s.store.UpdateGroup(ctx, group); err != nil {
		slog.Error("RemoveMember failed", "group_id", groupID, "error", err)
		return nil, err
	}

	slog.Info("Member removed", "group_id", groupID, "user_id", userID)
	return group, nil
}

// DeleteGroup removes a group. Admin only. Games are deliberately left
// in place: they stay reachable by public token.
func (s *GroupService) DeleteGroup(ctx context.Context, requester Principal, id string) error {
	slog.Info("DeleteGroup request received", "group_id", id, "user_id", requester.ID)

	group, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return err
	}
	if !s.policy.CanAdminister(group, requester) {
		return apperr.Forbiddenf("only the group admin can delete the group")
	}

	if err := s.store.DeleteGroup(ctx, id); err != nil {
		slog.Error("DeleteGroup failed", "group_id", id, "error", err)
		return err
	}

	slog.Info("Group deleted", "group_id", id)
	return nil
}
