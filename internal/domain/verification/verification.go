// Package verification decides whether a submitted video and keystroke log
// describe the same typing session, and if so replays the keystrokes and
// signs the resulting score.
//
// An attempt walks awaiting_both → decoding → normalizing → correlating →
// simulating → signing → done. Any step may end in rejected. Both terminal
// states clear the identity's pending submission, so a later attempt can never
// reuse stale blobs. A store read failure is not a verdict: the attempt stops
// without a transition and the pending blobs stay in place.
package verification

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/okian/gameproof/internal/domain/correlate"
	"github.com/okian/gameproof/internal/domain/model"
	"github.com/okian/gameproof/internal/domain/replay"
	"github.com/okian/gameproof/internal/domain/signal"
	"github.com/okian/gameproof/pkg/logger"
	"github.com/okian/gameproof/pkg/metrics"
)

// Store holds pending submissions.
type Store interface {
	Put(ctx context.Context, id model.Identity, kind model.BlobKind, blob []byte) error
	Get(ctx context.Context, id model.Identity) (model.Submission, error)
	Clear(ctx context.Context, id model.Identity) error
}

// Extractor turns a decoded video into frame-indexed key events.
type Extractor interface {
	Extract(ctx context.Context, video []byte) ([]model.EventRecord, error)
}

// Attestor signs scores.
type Attestor interface {
	Attest(score model.Score) model.Attestation
	IssueToken(id model.Identity, score model.Score, attemptID string) (string, error)
}

// Locker serializes work on one identity.
type Locker interface {
	Lock(id model.Identity) (unlock func())
}

// Recorder keeps best scores.
type Recorder interface {
	UpdateBest(ctx context.Context, id model.Identity, score model.Score) (bool, error)
}

// Notifier receives finished outcomes without blocking.
type Notifier interface {
	Enqueue(ctx context.Context, o model.Outcome) bool
}

// Service runs verification attempts.
type Service struct {
	store      Store
	extractor  Extractor
	signer     Attestor
	normalizer *signal.Normalizer
	correlator *correlate.Correlator
	simulator  *replay.Simulator
	locks      Locker

	leaderboard Recorder
	notifier    Notifier

	issueTokens    bool
	extractTimeout time.Duration
	maxInputEvents int
	newID          func() string
	now            func() time.Time
	log            logger.Logger
}

// New wires a Service.
func New(store Store, extractor Extractor, signer Attestor, opts ...Option) *Service {
	s := &Service{
		store:          store,
		extractor:      extractor,
		signer:         signer,
		normalizer:     signal.NewNormalizer(),
		correlator:     correlate.New(),
		simulator:      replay.New(),
		locks:          &globalLocker{},
		extractTimeout: DefaultExtractTimeout,
		maxInputEvents: DefaultMaxInputEvents,
		newID:          uuid.NewString,
		now:            time.Now,
		log:            logger.Get().Named("verification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload stages blob as the pending blob of kind, replacing any earlier one.
func (s *Service) Upload(ctx context.Context, id model.Identity, kind model.BlobKind, blob []byte) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.store.Put(ctx, id, kind, blob); err != nil {
		if errors.Is(err, model.ErrUnknownBlobKind) {
			return err
		}
		metrics.RecordErrorByComponent("store", "write")
		s.log.Error(ctx, "store write failed",
			logger.String("player_id", id.String()),
			logger.String("kind", string(kind)),
			logger.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
	metrics.RecordUpload(string(kind), len(blob))
	return nil
}

// attempt tracks one pass through the state machine.
type attempt struct {
	out   model.Outcome
	start time.Time
	mark  time.Time
}

// enter moves to the next state and records how long the previous one took.
func (a *attempt) enter(st model.State) {
	now := time.Now()
	if a.out.Stage != "" {
		metrics.RecordStageLatency(string(a.out.Stage), float64(now.Sub(a.mark).Microseconds())/1000)
	}
	a.out.Stage = st
	a.mark = now
}

// Verify runs one attempt for id. Rejections are reported in the outcome with
// a nil error; the error is reserved for internal failures.
func (s *Service) Verify(ctx context.Context, id model.Identity) (model.Outcome, error) {
	a := &attempt{
		out:   model.Outcome{AttemptID: s.newID(), Identity: id},
		start: time.Now(),
	}
	a.enter(model.StateAwaitingBoth)

	unlock := s.locks.Lock(id)
	defer unlock()

	sub, err := s.store.Get(ctx, id)
	switch {
	case errors.Is(err, ErrIncompleteSubmission):
		return s.finish(ctx, a, err), nil
	case err != nil:
		metrics.RecordErrorByComponent("store", "read")
		s.log.Error(ctx, "store read failed",
			logger.String("attempt_id", a.out.AttemptID),
			logger.String("player_id", id.String()),
			logger.Error(err),
		)
		return model.Outcome{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	return s.finish(ctx, a, s.run(ctx, a, sub)), nil
}

// run drives the pipeline from decoding to signing.
func (s *Service) run(ctx context.Context, a *attempt, sub model.Submission) error {
	a.enter(model.StateDecoding)
	video, err := decodeBlob(sub.Video)
	if err != nil {
		return fmt.Errorf("video: %w", err)
	}
	input, err := decodeBlob(sub.Input)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}
	inputRecords, err := signal.DecodeInputCSV(bytes.NewReader(input), s.maxInputEvents)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}
	videoRecords, err := s.extract(ctx, video)
	if err != nil {
		return err
	}

	a.enter(model.StateNormalizing)
	videoSignal, err := s.normalizer.Video(videoRecords)
	if err != nil {
		return fmt.Errorf("video: %w", err)
	}
	inputSignal, elapsed, err := s.normalizer.Input(inputRecords)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}

	a.enter(model.StateCorrelating)
	corr, err := s.correlator.Match(videoSignal, inputSignal)
	a.out.Correlation = corr
	if err != nil {
		return err
	}
	metrics.RecordCorrelation(corr)

	a.enter(model.StateSimulating)
	a.out.Score = s.simulator.Simulate(elapsed)
	metrics.RecordScore(uint64(a.out.Score))

	a.enter(model.StateSigning)
	att := s.signer.Attest(a.out.Score)
	a.out.Signature = att.Signature
	if s.issueTokens {
		tok, err := s.signer.IssueToken(a.out.Identity, a.out.Score, a.out.AttemptID)
		if err != nil {
			a.out.Signature = nil
			return err
		}
		a.out.Token = tok
	}
	metrics.RecordSignatureIssued()
	return nil
}

// extract calls the model under the extraction deadline. Anything other than
// a decode error counts as the model being unavailable.
func (s *Service) extract(ctx context.Context, video []byte) ([]model.EventRecord, error) {
	ectx, cancel := context.WithTimeout(ctx, s.extractTimeout)
	defer cancel()

	records, err := s.extractor.Extract(ectx, video)
	switch {
	case err == nil:
		return records, nil
	case errors.Is(err, ErrDecode), errors.Is(err, ErrExtractionUnavailable):
		return nil, fmt.Errorf("video: %w", err)
	default:
		return nil, fmt.Errorf("video: %w: %w", ErrExtractionUnavailable, err)
	}
}

// finish applies the terminal transition for cause, clears the submission and
// publishes the outcome.
func (s *Service) finish(ctx context.Context, a *attempt, cause error) model.Outcome {
	code, message := Reason(cause)
	if cause == nil {
		a.out.State = model.StateDone
	} else {
		a.out.State = model.StateRejected
		a.out.Reason = code
		a.out.Score = 0
		a.out.Signature = nil
		a.out.Token = ""
	}
	a.out.Message = message
	a.out.FinishedAt = s.now()
	a.enter(a.out.Stage) // close the timing of the last stage

	if err := s.store.Clear(ctx, a.out.Identity); err != nil {
		metrics.RecordErrorByComponent("store", "clear")
		s.log.Error(ctx, "clearing submission failed",
			logger.String("attempt_id", a.out.AttemptID),
			logger.String("player_id", a.out.Identity.String()),
			logger.Error(err),
		)
	}

	if a.out.Accepted() && s.leaderboard != nil {
		if _, err := s.leaderboard.UpdateBest(ctx, a.out.Identity, a.out.Score); err != nil {
			s.log.Warn(ctx, "leaderboard update failed", logger.Error(err))
		}
	}
	if s.notifier != nil && !s.notifier.Enqueue(ctx, a.out) {
		s.log.Warn(ctx, "outcome notification dropped", logger.String("attempt_id", a.out.AttemptID))
	}

	outcome := string(a.out.State)
	metrics.RecordVerification(outcome, a.out.Reason, float64(time.Since(a.start).Microseconds())/1000)

	fields := []logger.Field{
		logger.String("attempt_id", a.out.AttemptID),
		logger.String("player_id", a.out.Identity.String()),
		logger.String("stage", string(a.out.Stage)),
		logger.Float64("correlation", a.out.Correlation),
	}
	if a.out.Accepted() {
		s.log.Info(ctx, "verification done", append(fields, logger.Uint64("score", uint64(a.out.Score)))...)
	} else {
		s.log.Info(ctx, "verification rejected", append(fields,
			logger.String("reason", a.out.Reason),
			logger.Error(cause),
		)...)
	}
	return a.out
}

// decodeBlob decodes base64 text, ignoring embedded whitespace and accepting
// missing padding.
func decodeBlob(blob []byte) ([]byte, error) {
	text := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, string(blob))
	if text == "" {
		return nil, fmt.Errorf("%w: empty blob", ErrDecode)
	}
	out, err := base64.StdEncoding.DecodeString(text)
	if err == nil {
		return out, nil
	}
	if out, rerr := base64.RawStdEncoding.DecodeString(text); rerr == nil {
		return out, nil
	}
	return nil, fmt.Errorf("%w: not base64: %w", ErrDecode, err)
}
