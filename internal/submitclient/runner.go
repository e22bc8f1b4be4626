package submitclient

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/gameproof/internal/domain/attest"
	"github.com/okian/gameproof/internal/domain/model"
	"github.com/okian/gameproof/internal/domain/types"
	"github.com/okian/gameproof/pkg/logger"
)

// ErrRunFailed is returned when a run observed failed calls or bad signatures.
var ErrRunFailed = errors.New("submission run failed")

// Run executes a submission run: a single recorded session when cfg.Video is
// set, a batch of generated sessions otherwise.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("submit")
	client := NewClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting submission run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("players", cfg.Players),
		logger.Int("workers", cfg.Workers),
		logger.Float64("tamper", cfg.Tamper),
		logger.Bool("recorded", cfg.Video != ""))

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Fetch the verification key
	set, err := client.JWKS(ctx)
	if err != nil {
		return stats, fmt.Errorf("key set retrieval failed: %w", err)
	}
	pub, err := attest.PublicKeyFromJWKS(set, "")
	if err != nil {
		return stats, fmt.Errorf("key set retrieval failed: %w", err)
	}

	// Step 3: Submit
	if cfg.Video != "" {
		err = submitRecorded(ctx, cfg, client, pub, stats, log)
	} else {
		err = submitGenerated(ctx, cfg, client, pub, stats, log)
	}
	if err != nil {
		return stats, err
	}

	// Step 4: Check the leaderboard
	entries, err := client.Leaderboard(ctx, cfg.TopN)
	if err != nil {
		return stats, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	stats.LeaderboardSize = len(entries)
	if err := checkLeaderboard(entries); err != nil {
		return stats, err
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)

	if stats.Failed > 0 || stats.SignatureMismatch > 0 {
		return stats, fmt.Errorf("%w: %d failed calls, %d bad signatures", ErrRunFailed, stats.Failed, stats.SignatureMismatch)
	}
	return stats, nil
}

// submitRecorded uploads the two CSV files of one recorded session.
func submitRecorded(ctx context.Context, cfg *Config, client *Client, pub ed25519.PublicKey, stats *Stats, log logger.Logger) error {
	video, err := readBlob(cfg.Video)
	if err != nil {
		return err
	}
	inputs, err := readBlob(cfg.Inputs)
	if err != nil {
		return err
	}
	if _, err := client.UploadVideo(ctx, cfg.PlayerID, video); err != nil {
		return fmt.Errorf("video upload failed: %w", err)
	}
	if _, err := client.UploadInputs(ctx, cfg.PlayerID, inputs); err != nil {
		return fmt.Errorf("input upload failed: %w", err)
	}
	res, err := client.Verify(ctx, cfg.PlayerID)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	stats.Submitted = 1
	log.Info(ctx, "verification finished",
		logger.Uint64("player_id", cfg.PlayerID),
		logger.String("state", res.State),
		logger.String("reason", res.Reason),
		logger.Uint64("score", res.Score),
		logger.Float64("correlation", res.Correlation),
		logger.String("attempt_id", res.AttemptID))
	if !res.Accepted() {
		stats.Rejected = 1
		return nil
	}
	stats.Accepted = 1
	if !signatureValid(res, pub) {
		stats.SignatureMismatch = 1
	}
	return nil
}

// readBlob loads a CSV file and base64 encodes it for upload.
func readBlob(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// submitGenerated plays cfg.Players generated sessions concurrently.
func submitGenerated(ctx context.Context, cfg *Config, client *Client, pub ed25519.PublicKey, stats *Stats, log logger.Logger) error {
	gen := NewGenerator(cfg.Seed)
	sessions := make([]Session, cfg.Players)
	for i := range sessions {
		s := gen.Session(cfg.FirstID+uint64(i), cfg.Presses)
		if gen.rng.Float64() < cfg.Tamper {
			s = s.Shift(cfg.Shift)
		}
		sessions[i] = s
	}
	log.Info(ctx, "generated sessions", logger.Int("count", len(sessions)))

	var (
		accepted, rejected, failed, mismatch, unexpected int64
		wg                                               sync.WaitGroup
	)
	workers := max(cfg.Workers, 1)
	work := make(chan Session, workers*WorkerChannelMultiplier)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range work {
				res, err := playSession(ctx, client, s)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					log.Warn(ctx, "session failed", logger.Uint64("player_id", s.PlayerID), logger.Error(err))
					continue
				}
				if res.Accepted() {
					atomic.AddInt64(&accepted, 1)
					if !signatureValid(res, pub) {
						atomic.AddInt64(&mismatch, 1)
					}
				} else {
					atomic.AddInt64(&rejected, 1)
				}
				if res.Accepted() == s.Tampered {
					atomic.AddInt64(&unexpected, 1)
				}
				if cfg.Verbose {
					log.Info(ctx, "verification finished",
						logger.Uint64("player_id", s.PlayerID),
						logger.Bool("tampered", s.Tampered),
						logger.String("state", res.State),
						logger.String("reason", res.Reason),
						logger.Uint64("score", res.Score),
						logger.Float64("correlation", res.Correlation))
				}
			}
		}()
	}

	// Send sessions to workers
	go func() {
		defer close(work)
		for _, s := range sessions {
			select {
			case <-ctx.Done():
				return
			case work <- s:
			}
		}
	}()

	wg.Wait()

	stats.Submitted = int(accepted + rejected + failed)
	stats.Accepted = int(accepted)
	stats.Rejected = int(rejected)
	stats.Failed = int(failed)
	stats.SignatureMismatch = int(mismatch)
	stats.UnexpectedResult = int(unexpected)
	return ctx.Err()
}

// playSession uploads both blobs of s and verifies them.
func playSession(ctx context.Context, client *Client, s Session) (VerifyResult, error) {
	if _, err := client.UploadVideo(ctx, s.PlayerID, s.VideoBlob()); err != nil {
		return VerifyResult{}, fmt.Errorf("video upload: %w", err)
	}
	if _, err := client.UploadInputs(ctx, s.PlayerID, s.InputBlob()); err != nil {
		return VerifyResult{}, fmt.Errorf("input upload: %w", err)
	}
	return client.Verify(ctx, s.PlayerID)
}

func signatureValid(res VerifyResult, pub ed25519.PublicKey) bool {
	sig, err := res.SignatureBytes()
	if err != nil {
		return false
	}
	return attest.Verify(sig, model.Score(res.Score), pub)
}

// checkLeaderboard asserts descending scores and competition ranks.
func checkLeaderboard(entries []types.Entry) error {
	for i, e := range entries {
		want := i + 1
		if i > 0 && entries[i-1].Score == e.Score {
			want = entries[i-1].Rank
		}
		if i > 0 && entries[i-1].Score < e.Score {
			return fmt.Errorf("%w: leaderboard not sorted at position %d", ErrRunFailed, i)
		}
		if e.Rank != want {
			return fmt.Errorf("%w: player %d has rank %d, want %d", ErrRunFailed, e.PlayerID, e.Rank, want)
		}
	}
	return nil
}

// displayFinalStats prints the final run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var acceptRate, perSecond float64
	if stats.Submitted > 0 {
		acceptRate = float64(stats.Accepted) / float64(stats.Submitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
		logger.Int("signatureMismatch", stats.SignatureMismatch),
		logger.Int("unexpectedResult", stats.UnexpectedResult),
		logger.Int("leaderboardEntries", stats.LeaderboardSize),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("verificationsPerSecond", perSecond))
}
