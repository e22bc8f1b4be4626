package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/gameproof/internal/submitclient"
)

// Default configuration constants.
const (
	defaultPlayers  = 100
	defaultFirstID  = 1000
	defaultPresses  = 40
	defaultTamper   = 0.1
	defaultShift    = 5 * time.Second
	defaultTopN     = 50
	defaultTimeout  = 60 * time.Second
	defaultDeadline = 30 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		video     = flag.String("video", "", "Recorded frame CSV")
		inputs    = flag.String("inputs", "", "Recorded keystroke CSV")
		player    = flag.Uint64("player", 1, "Identity used for a recorded session")
		players   = flag.Int("players", defaultPlayers, "Number of generated players")
		firstID   = flag.Uint64("first-id", defaultFirstID, "Identity of the first generated player")
		presses   = flag.Int("presses", defaultPresses, "Key presses per generated session")
		tamper    = flag.Float64("tamper", defaultTamper, "Fraction of generated sessions with shifted inputs")
		shift     = flag.Duration("shift", defaultShift, "Offset applied to tampered inputs")
		seed      = flag.Uint64("seed", 1, "Seed of the session generator")
		topN      = flag.Int("top", defaultTopN, "Leaderboard entries checked at the end")
		workers   = flag.Int("workers", runtime.NumCPU(), "Number of concurrent submitters")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFormat = flag.String("log-format", "text", "Log output format: text or json")
		verbose   = flag.Bool("verbose", false, "Log every verification")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		submitclient.ShowHelp()
		return
	}
	if (*video == "") != (*inputs == "") {
		_, _ = os.Stderr.WriteString("-video and -inputs must be given together\n")
		os.Exit(2)
	}

	if err := submitclient.SetupLogging(*logFormat); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultDeadline)
	defer cancel()

	cfg := &submitclient.Config{
		BaseURL:  *baseURL,
		Players:  *players,
		FirstID:  *firstID,
		Presses:  *presses,
		Tamper:   *tamper,
		Shift:    *shift,
		Seed:     *seed,
		TopN:     *topN,
		Workers:  *workers,
		Timeout:  *timeout,
		Verbose:  *verbose,
		Video:    *video,
		Inputs:   *inputs,
		PlayerID: *player,
	}

	if _, err := submitclient.Run(ctx, cfg); err != nil {
		_, _ = os.Stderr.WriteString("Run failed: " + err.Error() + "\n")
		cancel()
		stop()
		os.Exit(1)
	}
}
