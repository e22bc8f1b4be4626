// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/gameproof/internal/adapters/extractor"
	"github.com/okian/gameproof/internal/adapters/janitor"
	"github.com/okian/gameproof/internal/adapters/mq/queue"
	workerpool "github.com/okian/gameproof/internal/adapters/mq/worker"
	"github.com/okian/gameproof/internal/adapters/notify"
	"github.com/okian/gameproof/internal/adapters/repository"
	"github.com/okian/gameproof/internal/config"
	"github.com/okian/gameproof/internal/domain/attest"
	"github.com/okian/gameproof/internal/domain/correlate"
	"github.com/okian/gameproof/internal/domain/model"
	"github.com/okian/gameproof/internal/domain/signal"
	"github.com/okian/gameproof/internal/domain/types"
	"github.com/okian/gameproof/internal/domain/verification"
	"github.com/okian/gameproof/pkg/logger"
	"github.com/okian/gameproof/pkg/metrics"
	"github.com/okian/gameproof/pkg/redisclient"
	"github.com/redis/go-redis/v9"
)

// ErrNotStarted is returned by operations called outside Start/Stop. It
// matches worker.ErrStopped so the API answers 503 either way.
var ErrNotStarted = fmt.Errorf("service not started: %w", workerpool.ErrStopped)

// Service implements the API dependencies for the verification service.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Core components
	store       repository.Store
	leaderboard *repository.TreapLeaderboard
	locks       *repository.Locker
	signer      *attest.Signer
	extractor   verification.Extractor
	verifier    *verification.Service
	pool        *workerpool.Pool
	outcomes    *queue.InMemoryQueue
	notifier    *workerpool.NotifyWorker
	janitor     *janitor.Janitor

	redis     redis.UniversalClient
	ownsRedis bool

	// State
	started   bool
	startedAt time.Time
	cancel    context.CancelFunc

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSigner uses signer instead of loading the configured key.
func WithSigner(signer *attest.Signer) Option {
	return func(s *Service) { s.signer = signer }
}

// WithExtractor uses e instead of the configured extractor.
func WithExtractor(e verification.Extractor) Option {
	return func(s *Service) { s.extractor = e }
}

// WithRedisClient shares an existing client. The service does not close it.
func WithRedisClient(c redis.UniversalClient) Option {
	return func(s *Service) { s.redis = c }
}

// New constructs a new Service. A nil cfg uses config.New().
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	cfg := s.cfg

	s.logger.Info(ctx, "starting verification service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	defer func() {
		if err != nil {
			s.teardown(ctx)
		}
	}()

	if s.signer == nil {
		if s.signer, err = loadSigner(ctx, cfg, s.logger); err != nil {
			return err
		}
	}

	if needsRedis(cfg) && s.redis == nil {
		client, err := redisclient.New(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return err
		}
		s.redis, s.ownsRedis = client, true
	}

	if s.store, err = openStore(cfg, s.redis); err != nil {
		return err
	}
	s.logger.Info(ctx, "using submission store", logger.String("backend", cfg.StoreBackend))

	if s.extractor == nil {
		s.extractor = newExtractor(cfg)
	}

	s.leaderboard = repository.NewTreapLeaderboard()
	s.locks = repository.NewLocker()

	var publisher workerpool.Publisher = notify.Noop{}
	if cfg.NotifyChannel != "" {
		publisher = notify.NewRedisPublisher(s.redis, cfg.NotifyChannel)
	}
	s.outcomes = queue.NewInMemoryQueue()
	s.notifier = workerpool.NewNotifyWorker(s.outcomes, publisher, workerpool.WithLogger(s.logger.Named("notify")))
	go s.notifier.Run(runCtx)

	s.verifier = verification.New(s.store, s.extractor, s.signer,
		verification.WithNormalizer(signal.NewNormalizer(signal.WithFrameRate(cfg.FrameRate))),
		verification.WithCorrelator(correlate.New(correlate.WithThreshold(cfg.CorrelationThreshold))),
		verification.WithLocker(s.locks),
		verification.WithLeaderboard(s.leaderboard),
		verification.WithNotifier(s.outcomes),
		verification.WithTokens(cfg.IssueTokens),
		verification.WithExtractTimeout(time.Duration(cfg.ExtractorTimeoutMS)*time.Millisecond),
		verification.WithMaxInputEvents(cfg.MaxInputEvents),
		verification.WithLogger(s.logger.Named("verification")),
	)

	s.pool = workerpool.NewPool(cfg.VerifyWorkers, cfg.VerifyQueueSize, workerpool.WithPoolLogger(s.logger.Named("pool")))
	s.pool.Start(runCtx)

	if cfg.PendingTTLSeconds > 0 {
		ttl := time.Duration(cfg.PendingTTLSeconds) * time.Second
		if s.janitor, err = janitor.New(runCtx, s.store, ttl, cfg.SweepSchedule); err != nil {
			return err
		}
		s.janitor.Start()
	}

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "verification service started",
		logger.Int("workers", cfg.VerifyWorkers),
		logger.Int("queueSize", cfg.VerifyQueueSize),
		logger.String("extractor", cfg.ExtractorMode),
		logger.String("key_id", s.signer.KeyID()),
		logger.Bool("tokens", cfg.IssueTokens),
	)
	return nil
}

// Stop gracefully shuts down the service. Running verifications finish first.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping verification service...")
	s.teardown(ctx)
	s.started = false
	s.logger.Info(ctx, "verification service stopped")
}

// teardown releases whatever Start managed to build, in reverse order.
func (s *Service) teardown(ctx context.Context) {
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
		}
	}
	if s.janitor != nil {
		s.janitor.Stop()
	}
	if s.outcomes != nil {
		_ = s.outcomes.Close()
	}
	if s.notifier != nil {
		if err := s.notifier.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "outcome notifier did not drain", logger.Error(err))
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "closing store failed", logger.Error(err))
		}
	}
	if s.redis != nil && s.ownsRedis {
		_ = s.redis.Close()
	}
}

// Upload stages a blob for id.
func (s *Service) Upload(ctx context.Context, id model.Identity, kind model.BlobKind, blob []byte) error {
	v, err := s.running()
	if err != nil {
		return err
	}
	return v.Upload(ctx, id, kind, blob)
}

type verifyResult struct {
	out model.Outcome
	err error
}

// Verify runs an attempt on the worker pool. The attempt completes even if
// ctx ends first; only the wait is abandoned.
func (s *Service) Verify(ctx context.Context, id model.Identity) (model.Outcome, error) {
	v, err := s.running()
	if err != nil {
		return model.Outcome{}, err
	}
	res, err := workerpool.Do(ctx, s.pool, func(jctx context.Context) verifyResult {
		out, err := v.Verify(jctx, id)
		return verifyResult{out: out, err: err}
	})
	if err != nil {
		return model.Outcome{}, err
	}
	return res.out, res.err
}

func (s *Service) running() (*verification.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.verifier, nil
}

// TopN returns the top N leaderboard entries.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	if _, err := s.running(); err != nil {
		return nil, err
	}
	return s.leaderboard.TopN(ctx, n)
}

// Rank returns the rank and best score of id.
func (s *Service) Rank(ctx context.Context, id model.Identity) (types.Entry, error) {
	if _, err := s.running(); err != nil {
		return types.Entry{}, err
	}
	return s.leaderboard.Rank(ctx, id)
}

// Signer returns the attestation key, or nil before Start.
func (s *Service) Signer() *attest.Signer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signer
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":      s.started,
		"storeBackend": s.cfg.StoreBackend,
		"extractor":    s.cfg.ExtractorMode,
		"threshold":    s.cfg.CorrelationThreshold,
		"frameRate":    s.cfg.FrameRate,
	}
	if !s.started {
		return stats
	}

	stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
	stats["keyId"] = s.signer.KeyID()
	stats["pool"] = s.pool.Stats()
	stats["outcomeQueueLength"] = s.outcomes.Len(ctx)
	stats["lockedIdentities"] = s.locks.Len()
	stats["rankedPlayers"] = s.leaderboard.Count(ctx)

	if pending, err := s.store.Count(ctx); err == nil {
		stats["pendingSubmissions"] = pending
		metrics.UpdatePendingSubmissions(pending)
	} else {
		s.logger.Warn(ctx, "counting pending submissions failed", logger.Error(err))
	}
	return stats
}

func needsRedis(cfg *config.Config) bool {
	return strings.EqualFold(cfg.StoreBackend, config.StoreRedis) || cfg.NotifyChannel != ""
}

func openStore(cfg *config.Config, client redis.UniversalClient) (repository.Store, error) {
	ttl := repository.WithPendingTTL(time.Duration(cfg.PendingTTLSeconds) * time.Second)
	switch strings.ToLower(cfg.StoreBackend) {
	case config.StoreMemory:
		return repository.NewMemoryStore(ttl), nil
	case config.StoreRedis:
		return repository.NewRedisStore(client, ttl, repository.WithKeyPrefix(cfg.RedisKeyPrefix))
	case config.StorePebble:
		return repository.OpenPebbleStore(cfg.PebblePath, ttl)
	default:
		return nil, fmt.Errorf("%w: %q", repository.ErrUnknownBackend, cfg.StoreBackend)
	}
}

func newExtractor(cfg *config.Config) verification.Extractor {
	if strings.EqualFold(cfg.ExtractorMode, config.ExtractorHTTP) {
		return extractor.NewHTTP(cfg.ExtractorURL, time.Duration(cfg.ExtractorTimeoutMS)*time.Millisecond)
	}
	return extractor.NewFrameCSV(cfg.MaxInputEvents)
}

// loadSigner reads the configured key. Without one it generates a key that
// only lives as long as the process.
func loadSigner(ctx context.Context, cfg *config.Config, log logger.Logger) (*attest.Signer, error) {
	opts := []attest.Option{
		attest.WithIssuer(cfg.TokenIssuer),
		attest.WithTokenTTL(time.Duration(cfg.TokenTTLSeconds) * time.Second),
	}
	switch {
	case cfg.AttestorKey != "":
		priv, err := attest.ParseSeed(cfg.AttestorKey)
		if err != nil {
			return nil, fmt.Errorf("attestor_key: %w", err)
		}
		return attest.New(priv, opts...)
	case cfg.AttestorKeyFile != "":
		priv, err := attest.LoadSeedFile(cfg.AttestorKeyFile)
		if err != nil {
			return nil, fmt.Errorf("attestor_key_file: %w", err)
		}
		return attest.New(priv, opts...)
	default:
		log.Warn(ctx, "no attestor key configured; signatures will not survive a restart")
		return attest.Generate(opts...)
	}
}
