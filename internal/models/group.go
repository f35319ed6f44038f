package models

// Group represents a named collection of users with shared visibility
// into a set of games.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string `json:"id"`

	// Name is the display name of the group.
	Name string `json:"name"`

	// Description is an optional free-text description.
	Description string `json:"description,omitempty"`

	// CreatorID is the user who created the group. The creator is the
	// group's only admin and is always present in MemberIDs.
	CreatorID string `json:"creatorId"`

	// MemberIDs is the set of member user IDs, creator included.
	MemberIDs []string `json:"memberIds"`

	// IsPublic marks the group readable (and joinable) without membership.
	IsPublic bool `json:"isPublic"`

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64 `json:"createdAt"`
}

// MemberRef is the narrow capability access-policy checks need from a
// member entry. Both bare id strings (via MemberID) and joined user
// records satisfy it, so policy code never cares which form it gets.
type MemberRef interface {
	MemberID() string
}

// MemberID wraps a bare identifier so it satisfies MemberRef.
type MemberID string

func (m MemberID) MemberID() string { return string(m) }

// MemberRefs returns the group's members as MemberRef values.
func (g *Group) MemberRefs() []MemberRef {
	refs := make([]MemberRef, len(g.MemberIDs))
	for i, id := range g.MemberIDs {
		refs[i] = MemberID(id)
	}
	return refs
}

// EnsureCreatorMember adds the creator to the member list if missing.
// Called on every create and update so the invariant "creator is always
// a member" survives arbitrary member-list edits.
func (g *Group) EnsureCreatorMember() {
	for _, id := range g.MemberIDs {
		if id == g.CreatorID {
			return
		}
	}
	g.MemberIDs = append(g.MemberIDs, g.CreatorID)
}

// HasMember reports whether userID is the creator or in the member list.
func (g *Group) HasMember(userID string) bool {
	if userID == "" {
		return false
	}
	if userID == g.CreatorID {
		return true
	}
	for _, id := range g.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}
