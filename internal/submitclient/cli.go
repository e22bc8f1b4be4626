package submitclient

import (
	"fmt"
	"os"

	"github.com/okian/gameproof/pkg/logger"
)

// SetupLogging initializes the shared logger in the requested format.
func SetupLogging(format string) error {
	if err := logger.Init(logger.WithFormat(format)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// ShowHelp prints usage information for the submit tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Gameproof Submit Tool
=====================

Uploads sessions to a gameproof service, verifies them and checks every
returned signature against the service's published key set.

Usage:
  go run ./cmd/submit [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -video string
        Recorded frame CSV; with -inputs submits one recorded session
  -inputs string
        Recorded keystroke CSV
  -player uint
        Identity used for a recorded session (default 1)
  -players int
        Number of generated players (default 100)
  -first-id uint
        Identity of the first generated player (default 1000)
  -presses int
        Key presses per generated session (default 40)
  -tamper float
        Fraction of generated sessions with shifted inputs (default 0.1)
  -shift duration
        Offset applied to tampered inputs (default 5s)
  -seed uint
        Seed of the session generator (default 1)
  -top int
        Leaderboard entries checked at the end (default 50)
  -workers int
        Number of concurrent submitters (default CPU cores)
  -timeout duration
        HTTP request timeout (default 60s)
  -log-format string
        Log output format: text or json (default "text")
  -verbose
        Log every verification
  -help
        Show this help message

Examples:
  # Submit a recorded session
  go run ./cmd/submit -video frames.csv -inputs keys.csv -player 42

  # Play 1000 generated sessions, a fifth of them tampered
  go run ./cmd/submit -players 1000 -tamper 0.2 -workers 16
`)
}
