package models

// PlaceholderName is the sentinel player label for an unnamed, unlinked
// transaction row. Placeholder rows are excluded from duplicate-name
// checks and from statistics identities.
const PlaceholderName = "_"

// Game represents one settlement session belonging to exactly one group.
// Its transactions must sum to zero (within tolerance) at every commit
// boundary that enforces the invariant.
type Game struct {
	// ID is the unique identifier for the game (UUID format).
	ID string `json:"id"`

	// Name is the human-readable name for the game.
	Name string `json:"name"`

	// Date is an optional Unix timestamp used for chronological and
	// statistical grouping, distinct from CreatedAt. 0 means unset.
	Date int64 `json:"date,omitempty"`

	// CreatorID is the user who created the game.
	CreatorID string `json:"creatorId"`

	// GroupID is the owning group.
	GroupID string `json:"groupId"`

	// Transactions is the ordered ledger. Order is display-significant;
	// rows keep a stable ID across in-place edits.
	Transactions []Transaction `json:"transactions"`

	// PublicToken is the unguessable identifier granting unauthenticated
	// edit access. Immutable once assigned, globally unique.
	PublicToken string `json:"publicToken"`

	// Settled marks the game read-only. Transaction mutations are
	// rejected while set; the edit transition clears it.
	Settled bool `json:"settled"`

	// CreatedAt is the Unix timestamp when the game was created.
	CreatedAt int64 `json:"createdAt"`
}

// Transaction is one signed ledger line within a game.
type Transaction struct {
	// ID is a stable per-row identity (UUID format), assigned at creation
	// and unchanged by in-place edits. Used for out-of-order patch and
	// delete addressing.
	ID string `json:"id"`

	// UserID optionally links the row to a registered user.
	UserID string `json:"userId,omitempty"`

	// PlayerName is the free-text label used when no account exists.
	// Defaults to PlaceholderName; never empty once persisted.
	PlayerName string `json:"playerName"`

	// Amount is the signed amount for this row.
	Amount float64 `json:"amount"`

	// CreatedAt is the Unix timestamp when the row was created.
	CreatedAt int64 `json:"createdAt"`
}

// Linked reports whether the row references a registered user.
func (t *Transaction) Linked() bool { return t.UserID != "" }

// Named reports whether the row carries a non-placeholder player name.
func (t *Transaction) Named() bool {
	return t.PlayerName != "" && t.PlayerName != PlaceholderName
}
