// Package models defines the core domain models for Tally.
//
// The domain is a set of zero-sum ledgers ("games") shared within groups:
//   - User: a registered account, addressed by a unique lowercase username
//   - Group: a named set of users with shared visibility into games
//   - Game: one settlement session owning an ordered list of transactions
//   - Transaction: one signed ledger line inside a game
//
// Design principles:
//
//  1. Plain structs, no behavior beyond small invariant helpers
//  2. Relationships by ID string, never by pointer, to avoid cycles
//  3. Unix timestamps (int64) for all times; 0 means "unset"
package models
