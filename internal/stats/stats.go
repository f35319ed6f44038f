// Package stats derives balances and time-series from game ledgers.
// All functions are pure folds over a caller-filtered set of games; the
// service layer decides which games the requester may see.
package stats

import (
	"sort"
	"strings"
	"time"

	"github.com/tallyhq/tally/internal/models"
)

// Identity prefix for rows that carry a player name but no linked user.
const playerPrefix = "playerName:"

// Balance is one row of the totals table.
type Balance struct {
	// Identity is the linked user id, or "playerName:<name>" (lowercase)
	// for unlinked rows.
	Identity string `json:"identity"`

	// Name is a display label: the first-seen player name for unlinked
	// identities; filled in by the caller for user identities.
	Name string `json:"name"`

	// Total is the cumulative signed balance.
	Total float64 `json:"total"`
}

// GameAmount is one entry of a user's per-game history.
type GameAmount struct {
	GameID   string  `json:"gameId"`
	GameName string  `json:"gameName"`
	Date     int64   `json:"date"`
	Amount   float64 `json:"amount"`
}

// TrendPoint is one point of the cumulative-balance time-series: the
// running balance of every selected identity on one calendar date.
type TrendPoint struct {
	Date     string             `json:"date"`
	Balances map[string]float64 `json:"balances"`
}

// IdentityFor maps a transaction to its aggregate identity. Returns ""
// for placeholder-named unlinked rows, which are excluded entirely.
func IdentityFor(tx *models.Transaction) string {
	if tx.Linked() {
		return tx.UserID
	}
	if tx.Named() {
		return playerPrefix + strings.ToLower(tx.PlayerName)
	}
	return ""
}

// IsPlayerIdentity reports whether id is a synthetic player-name identity.
func IsPlayerIdentity(id string) bool { return strings.HasPrefix(id, playerPrefix) }

// EffectiveDate is the timestamp used for chronological grouping: the
// game's optional date when set, else its creation timestamp.
func EffectiveDate(g *models.Game) int64 {
	if g.Date != 0 {
		return g.Date
	}
	return g.CreatedAt
}

// Cutoff resolves a time-period bucket to an inclusive lower bound.
// Returns ok=false for "all" or an empty period (no filter).
func Cutoff(period string, now time.Time) (int64, bool) {
	switch period {
	case "30d":
		return now.AddDate(0, 0, -30).Unix(), true
	case "90d":
		return now.AddDate(0, 0, -90).Unix(), true
	case "year":
		return now.AddDate(-1, 0, 0).Unix(), true
	default:
		return 0, false
	}
}

// InPeriod reports whether a game falls on or after the cutoff, matching
// on either the optional date or the creation timestamp (inclusive OR,
// so games lacking a date are never excluded by accident).
func InPeriod(g *models.Game, cutoff int64) bool {
	return g.Date >= cutoff || g.CreatedAt >= cutoff
}

// FilterByPeriod keeps the games matching a time-period bucket.
func FilterByPeriod(games []*models.Game, period string, now time.Time) []*models.Game {
	cutoff, ok := Cutoff(period, now)
	if !ok {
		return games
	}
	var out []*models.Game
	for _, g := range games {
		if InPeriod(g, cutoff) {
			out = append(out, g)
		}
	}
	return out
}

// Totals folds every transaction into a per-identity running total,
// sorted descending by balance.
func Totals(games []*models.Game) []Balance {
	totals := make(map[string]*Balance)
	for _, g := range games {
		for i := range g.Transactions {
			tx := &g.Transactions[i]
			id := IdentityFor(tx)
			if id == "" {
				continue
			}
			b, ok := totals[id]
			if !ok {
				b = &Balance{Identity: id}
				if !tx.Linked() {
					b.Name = tx.PlayerName
				}
				totals[id] = b
			}
			b.Total += tx.Amount
		}
	}

	out := make([]Balance, 0, len(totals))
	for _, b := range totals {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Identity < out[j].Identity
	})
	return out
}

// UserHistory lists one user's amount in every game they appear in,
// chronologically by effective date.
func UserHistory(games []*models.Game, userID string) []GameAmount {
	var out []GameAmount
	for _, g := range games {
		var amount float64
		var present bool
		for i := range g.Transactions {
			if g.Transactions[i].UserID == userID {
				amount += g.Transactions[i].Amount
				present = true
			}
		}
		if present {
			out = append(out, GameAmount{
				GameID:   g.ID,
				GameName: g.Name,
				Date:     EffectiveDate(g),
				Amount:   amount,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Trends builds a cumulative-balance time-series with one point per
// distinct calendar date. The last known balance carries forward for
// identities with no transaction on a date, and the result always has
// at least one point (today, all zero) even for an empty game set.
// An empty identities slice selects every identity found in the games.
func Trends(games []*models.Game, identities []string) []TrendPoint {
	if len(identities) == 0 {
		seen := make(map[string]bool)
		for _, g := range games {
			for i := range g.Transactions {
				if id := IdentityFor(&g.Transactions[i]); id != "" && !seen[id] {
					seen[id] = true
					identities = append(identities, id)
				}
			}
		}
		sort.Strings(identities)
	}

	selected := make(map[string]bool, len(identities))
	for _, id := range identities {
		selected[id] = true
	}

	// Per-date deltas for the selected identities.
	deltas := make(map[string]map[string]float64)
	for _, g := range games {
		date := dateKey(EffectiveDate(g))
		for i := range g.Transactions {
			id := IdentityFor(&g.Transactions[i])
			if id == "" || !selected[id] {
				continue
			}
			if deltas[date] == nil {
				deltas[date] = make(map[string]float64)
			}
			deltas[date][id] += g.Transactions[i].Amount
		}
	}

	dates := make([]string, 0, len(deltas))
	for d := range deltas {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	if len(dates) == 0 {
		zero := make(map[string]float64, len(identities))
		for _, id := range identities {
			zero[id] = 0
		}
		return []TrendPoint{{Date: dateKey(time.Now().Unix()), Balances: zero}}
	}

	running := make(map[string]float64, len(identities))
	for _, id := range identities {
		running[id] = 0
	}

	points := make([]TrendPoint, 0, len(dates))
	for _, d := range dates {
		for id, delta := range deltas[d] {
			running[id] += delta
		}
		snapshot := make(map[string]float64, len(running))
		for id, v := range running {
			snapshot[id] = v
		}
		points = append(points, TrendPoint{Date: d, Balances: snapshot})
	}
	return points
}

func dateKey(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}
