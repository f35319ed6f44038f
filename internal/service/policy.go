package service

import (
	"github.com/tallyhq/tally/internal/models"
)

// Principal identifies the authenticated requester. The zero value is
// an anonymous (unauthenticated) requester.
type Principal struct {
	ID       string
	Username string
}

// Anonymous reports whether no authenticated user is attached.
func (p Principal) Anonymous() bool { return p.ID == "" }

// Policy answers the access questions for groups and games. The
// super-user is one configured username that bypasses admin checks; it
// is a single bypass flag, not a role system.
type Policy struct {
	Superuser string
}

// IsSuper reports whether the principal is the configured super-user.
func (p Policy) IsSuper(principal Principal) bool {
	return p.Superuser != "" && principal.Username == p.Superuser
}

// IsMember reports whether the user is the group's creator or in its
// member set.
func (p Policy) IsMember(group *models.Group, userID string) bool {
	return p.isMemberOf(group.CreatorID, group.MemberRefs(), userID)
}

// IsMemberRefs answers IsMember against an arbitrary member collection,
// whether it holds bare identifiers or joined records. Both forms give
// identical answers.
func (p Policy) IsMemberRefs(creatorID string, members []models.MemberRef, userID string) bool {
	return p.isMemberOf(creatorID, members, userID)
}

func (Policy) isMemberOf(creatorID string, members []models.MemberRef, userID string) bool {
	if userID == "" {
		return false
	}
	if userID == creatorID {
		return true
	}
	for _, m := range members {
		if m.MemberID() == userID {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user is the group's creator. The creator
// is the only admin.
func (p Policy) IsAdmin(group *models.Group, userID string) bool {
	return userID != "" && userID == group.CreatorID
}

// CanAdminister reports whether the principal may perform admin-only
// group operations: the creator, or the super-user override.
func (p Policy) CanAdminister(group *models.Group, principal Principal) bool {
	return p.IsAdmin(group, principal.ID) || p.IsSuper(principal)
}

// CanRead reports whether the principal may read a group: public groups
// are readable without authentication, private ones require membership.
func (p Policy) CanRead(group *models.Group, principal Principal) bool {
	if group.IsPublic {
		return true
	}
	return p.IsMember(group, principal.ID)
}

// AccessibleGroups filters to the union of all public groups and the
// principal's groups, deduplicated by id.
func (p Policy) AccessibleGroups(groups []*models.Group, principal Principal) []*models.Group {
	seen := make(map[string]bool, len(groups))
	var out []*models.Group
	for _, g := range groups {
		if seen[g.ID] {
			continue
		}
		if g.IsPublic || p.IsMember(g, principal.ID) {
			seen[g.ID] = true
			out = append(out, g)
		}
	}
	return out
}
