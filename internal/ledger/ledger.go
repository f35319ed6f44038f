// Package ledger holds the pure invariant logic for game ledgers:
// the zero-sum check, duplicate-name detection for settling, and the
// sparse-row synthesis used by collaborative editing. Everything here
// is side-effect free; persistence and access checks live in service.
package ledger

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tally/internal/apperr"
	"github.com/tallyhq/tally/internal/models"
)

// Tolerance is the absolute slack allowed on the zero-sum invariant,
// absorbing float rounding from per-row arithmetic.
const Tolerance = 0.01

// Sum returns the signed total of all transaction amounts.
func Sum(txs []models.Transaction) float64 {
	var sum float64
	for i := range txs {
		sum += txs[i].Amount
	}
	return sum
}

// ValidateZeroSum enforces |sum(amounts)| <= Tolerance, returning a
// Validation error carrying the computed sum on failure.
func ValidateZeroSum(txs []models.Transaction) error {
	sum := Sum(txs)
	if sum < -Tolerance || sum > Tolerance {
		return apperr.NonZeroSum(sum)
	}
	return nil
}

// ValidateRows checks that every row carries at least one of a user link
// or a non-placeholder player name.
func ValidateRows(txs []models.Transaction) error {
	for i := range txs {
		if !txs[i].Linked() && !txs[i].Named() {
			return apperr.Validationf("transaction %d needs a player name or a linked user", i)
		}
	}
	return nil
}

// DuplicateNames returns the case-insensitive duplicate set among
// non-placeholder player names, lowercased and sorted. An empty result
// means the game is safe to settle.
func DuplicateNames(txs []models.Transaction) []string {
	seen := make(map[string]int)
	for i := range txs {
		if !txs[i].Named() {
			continue
		}
		seen[strings.ToLower(txs[i].PlayerName)]++
	}

	var dups []string
	for name, count := range seen {
		if count > 1 {
			dups = append(dups, name)
		}
	}
	sort.Strings(dups)
	return dups
}

// NewRow builds a transaction row with a stable generated id. An empty
// player name collapses to the placeholder.
func NewRow(userID, playerName string, amount float64) models.Transaction {
	if playerName == "" {
		playerName = models.PlaceholderName
	}
	return models.Transaction{
		ID:         uuid.New().String(),
		UserID:     userID,
		PlayerName: playerName,
		Amount:     amount,
		CreatedAt:  time.Now().Unix(),
	}
}

// EnsureRow grows txs with zero-amount placeholder rows until index idx
// exists. This is the sparse-grid semantics for collaborative editing:
// a client may address row 5 of a 2-row game and rows 2-4 are
// synthesized in place rather than rejected.
func EnsureRow(txs []models.Transaction, idx int) []models.Transaction {
	for len(txs) <= idx {
		txs = append(txs, NewRow("", models.PlaceholderName, 0))
	}
	return txs
}

// RowIndex resolves a row reference against the ordered ledger: a row id
// match wins, otherwise the reference is parsed as a positional index by
// the caller. Returns -1 when no row carries the id.
func RowIndex(txs []models.Transaction, rowID string) int {
	for i := range txs {
		if txs[i].ID == rowID {
			return i
		}
	}
	return -1
}
