// Package types contains common types used across the application
package types

// Entry represents a leaderboard entry
type Entry struct {
	Rank     int    `json:"rank"`
	PlayerID uint64 `json:"player_id"`
	Score    uint64 `json:"score"`
}
