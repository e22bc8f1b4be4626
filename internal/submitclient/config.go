// Package submitclient drives a running gameproof service over HTTP: it
// uploads recorded or generated sessions, asks for verification and checks
// every returned signature against the published key set.
package submitclient

import "time"

// Config holds configuration for a submission run.
type Config struct {
	BaseURL  string        // Base URL of the service
	Players  int           // Number of generated players (load mode)
	FirstID  uint64        // Identity of the first generated player
	Presses  int           // Key presses per generated session
	Tamper   float64       // Fraction of generated sessions whose inputs are shifted
	Shift    time.Duration // Offset applied to tampered inputs
	Seed     uint64        // Seed of the session generator
	TopN     int           // Leaderboard entries fetched at the end
	Workers  int           // Concurrent submitters
	Timeout  time.Duration // HTTP request timeout
	Verbose  bool          // Log every verification
	Video    string        // Recorded frame CSV (single mode)
	Inputs   string        // Recorded keystroke CSV (single mode)
	PlayerID uint64        // Identity used in single mode
}

// Stats holds run statistics.
type Stats struct {
	Submitted         int
	Accepted          int
	Rejected          int
	Failed            int
	SignatureMismatch int
	UnexpectedResult  int
	LeaderboardSize   int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
