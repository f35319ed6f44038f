package ledger

import (
	"crypto/rand"
	"encoding/base64"
)

// tokenBytes gives ~10^19 possible tokens, large enough that uniqueness
// collisions are rare and handled by a short retry loop at create time.
const tokenBytes = 8

// NewToken generates an unguessable URL-safe public token.
func NewToken() string {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
