package api_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/gameproof/internal/adapters/http/api"
	"github.com/okian/gameproof/internal/adapters/mq/worker"
	"github.com/okian/gameproof/internal/adapters/repository"
	"github.com/okian/gameproof/internal/domain/attest"
	"github.com/okian/gameproof/internal/domain/model"
	"github.com/okian/gameproof/internal/domain/types"
	"github.com/okian/gameproof/internal/domain/verification"
	"github.com/okian/gameproof/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// Mock implementations for testing
type mockDependencies struct {
	uploads   map[model.BlobKind][]byte
	uploadErr error

	outcome   model.Outcome
	verifyErr error
	verified  []model.Identity

	topN    []types.Entry
	topNErr error
	rank    types.Entry
	rankErr error
}

func (m *mockDependencies) Upload(_ context.Context, _ model.Identity, kind model.BlobKind, blob []byte) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	if m.uploads == nil {
		m.uploads = make(map[model.BlobKind][]byte)
	}
	m.uploads[kind] = blob
	return nil
}

func (m *mockDependencies) Verify(_ context.Context, id model.Identity) (model.Outcome, error) {
	m.verified = append(m.verified, id)
	if m.verifyErr != nil {
		return model.Outcome{}, m.verifyErr
	}
	out := m.outcome
	out.Identity = id
	return out, nil
}

func (m *mockDependencies) TopN(_ context.Context, n int) ([]types.Entry, error) {
	if m.topNErr != nil {
		return nil, m.topNErr
	}
	if n > len(m.topN) {
		return m.topN, nil
	}
	return m.topN[:n], nil
}

func (m *mockDependencies) Rank(_ context.Context, _ model.Identity) (types.Entry, error) {
	if m.rankErr != nil {
		return types.Entry{}, m.rankErr
	}
	return m.rank, nil
}

type mockStatsProvider struct {
	stats map[string]any
}

func (m *mockStatsProvider) GetStats() map[string]any {
	return m.stats
}

func newSigner() *attest.Signer {
	s, err := attest.Generate()
	if err != nil {
		panic(err)
	}
	return s
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestServer_Register(t *testing.T) {
	Convey("Given a new API server", t, func() {
		deps := &mockDependencies{rank: types.Entry{Rank: 1, PlayerID: 42, Score: 7}}
		stats := &mockStatsProvider{stats: map[string]any{"started": true}}
		server := api.NewServer(deps, newSigner(), stats)
		router := server.Router(context.Background())

		Convey("Then health endpoint serves metrics", func() {
			w := do(router, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then stats endpoint returns the provider's stats", func() {
			w := do(router, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["started"], ShouldEqual, true)
		})

		Convey("Then upload routes only accept POST", func() {
			So(do(router, http.MethodGet, "/video", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(do(router, http.MethodPost, "/inputs", `{}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Then leaderboard defaults its limit", func() {
			So(do(router, http.MethodGet, "/leaderboard", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then rank takes the player id from the path", func() {
			w := do(router, http.MethodGet, "/rank/42", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["player_id"], ShouldEqual, 42.0)
		})

		Convey("Then the JWKS document is published", func() {
			w := do(router, http.MethodGet, "/.well-known/jwks.json", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"kty":"OKP"`)
			So(w.Body.String(), ShouldContainSubstring, `"crv":"Ed25519"`)
		})

		Convey("Then unknown routes are not found", func() {
			So(do(router, http.MethodGet, "/events", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given a nil router", t, func() {
		server := api.NewServer(&mockDependencies{}, newSigner(), nil)
		So(func() { server.Register(context.Background(), nil) }, ShouldPanic)
	})
}

func TestUploadHandler(t *testing.T) {
	Convey("Given an upload handler", t, func() {
		deps := &mockDependencies{}
		h := api.NewUploadHandler(deps, 64)

		Convey("When a valid video is posted", func() {
			w := do(http.HandlerFunc(h.HandleVideo), http.MethodPost, "/video",
				`{"player_id": 42, "file_content": "aGVsbG8="}`)

			Convey("Then it is staged and acknowledged with its digest", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["error"], ShouldEqual, "no Error")
				So(body["digest"], ShouldEqual, repository.Digest([]byte("aGVsbG8=")))
				So(string(deps.uploads[model.BlobVideo]), ShouldEqual, "aGVsbG8=")
			})
		})

		Convey("When the player id is a string", func() {
			w := do(http.HandlerFunc(h.HandleInputs), http.MethodPost, "/inputs",
				`{"player_id": "42", "file_content": "aGVsbG8="}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.uploads[model.BlobInput], ShouldNotBeNil)
		})

		Convey("When a capture client posts camelCase keys", func() {
			w := do(http.HandlerFunc(h.HandleInputs), http.MethodPost, "/inputs",
				`{"playerID": 570978, "fileContent": "dGltZXN0YW1wLGV2ZW50Cg=="}`)

			Convey("Then the blob is staged like any other upload", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["error"], ShouldEqual, "no Error")
				So(string(deps.uploads[model.BlobInput]), ShouldEqual, "dGltZXN0YW1wLGV2ZW50Cg==")
			})
		})

		Convey("When both key styles are present", func() {
			w := do(http.HandlerFunc(h.HandleVideo), http.MethodPost, "/video",
				`{"player_id": 1, "playerID": "x", "file_content": "YQ==", "fileContent": "Yg=="}`)

			Convey("Then the snake_case keys win", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(string(deps.uploads[model.BlobVideo]), ShouldEqual, "YQ==")
			})
		})

		Convey("When the file content is missing", func() {
			w := do(http.HandlerFunc(h.HandleVideo), http.MethodPost, "/video", `{"player_id": 42}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["error"], ShouldEqual, "no file content")
		})

		Convey("When the player id is missing", func() {
			w := do(http.HandlerFunc(h.HandleVideo), http.MethodPost, "/video", `{"file_content": "aGVsbG8="}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			body := decode(w)
			So(body["error"], ShouldEqual, "no playerID")
			So(body["reason"], ShouldEqual, verification.ReasonInvalidIdentity)
		})

		Convey("When the player id is not a non-negative integer", func() {
			for _, pid := range []string{`-1`, `"abc"`, `1.5`, `null`} {
				w := do(http.HandlerFunc(h.HandleVideo), http.MethodPost, "/video",
					fmt.Sprintf(`{"player_id": %s, "file_content": "aGVsbG8="}`, pid))
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["reason"], ShouldEqual, verification.ReasonInvalidIdentity)
			}
			So(deps.uploads, ShouldBeEmpty)
		})

		Convey("When the blob is larger than allowed", func() {
			w := do(http.HandlerFunc(h.HandleVideo), http.MethodPost, "/video",
				fmt.Sprintf(`{"player_id": 1, "file_content": %q}`, strings.Repeat("A", 128)))
			So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
		})

		Convey("When the body is not JSON", func() {
			w := do(http.HandlerFunc(h.HandleVideo), http.MethodPost, "/video", `player_id=1`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the store fails", func() {
			deps.uploadErr = errors.New("disk full")
			w := do(http.HandlerFunc(h.HandleVideo), http.MethodPost, "/video",
				`{"player_id": 42, "file_content": "aGVsbG8="}`)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestVerifyHandler(t *testing.T) {
	Convey("Given a verify handler", t, func() {
		deps := &mockDependencies{}
		h := http.HandlerFunc(api.NewVerifyHandler(deps, nil).HandleVerify)

		Convey("When the attempt is accepted", func() {
			deps.outcome = model.Outcome{
				AttemptID:   "a-1",
				State:       model.StateDone,
				Stage:       model.StateSigning,
				Message:     verification.NoError,
				Correlation: 0.98,
				Score:       7,
				Signature:   []byte{1, 2, 3},
			}
			w := do(h, http.MethodPost, "/verify", `{"player_id": 42}`)

			Convey("Then the signature is returned base64 encoded", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["signature"], ShouldEqual, base64.StdEncoding.EncodeToString([]byte{1, 2, 3}))
				So(body["error"], ShouldEqual, "no Error")
				So(body["score"], ShouldEqual, 7.0)
				So(body["attempt_id"], ShouldEqual, "a-1")
				So(body, ShouldNotContainKey, "reason")
				So(deps.verified, ShouldResemble, []model.Identity{42})
			})
		})

		Convey("When the attempt is rejected", func() {
			cases := []struct {
				reason string
				status int
			}{
				{verification.ReasonIncompleteSubmission, http.StatusConflict},
				{verification.ReasonDecode, http.StatusUnprocessableEntity},
				{verification.ReasonMalformedEventStream, http.StatusUnprocessableEntity},
				{verification.ReasonDegenerateSignal, http.StatusUnprocessableEntity},
				{verification.ReasonBelowThreshold, http.StatusUnprocessableEntity},
				{verification.ReasonExtraction, http.StatusServiceUnavailable},
				{verification.ReasonSigning, http.StatusInternalServerError},
			}
			for _, c := range cases {
				deps.outcome = model.Outcome{State: model.StateRejected, Reason: c.reason, Message: "rejected"}
				w := do(h, http.MethodPost, "/verify", `{"player_id": 42}`)
				So(w.Code, ShouldEqual, c.status)
				body := decode(w)
				So(body["reason"], ShouldEqual, c.reason)
				So(body, ShouldNotContainKey, "signature")
			}
		})

		Convey("When a capture client posts playerID", func() {
			deps.outcome = model.Outcome{State: model.StateDone, Message: verification.NoError, Score: 3}
			w := do(h, http.MethodPost, "/verify", `{"playerID": 570978}`)

			Convey("Then the identity reaches the verifier", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.verified, ShouldResemble, []model.Identity{570978})
			})
		})

		Convey("When the worker pool is saturated", func() {
			deps.verifyErr = fmt.Errorf("submit: %w", worker.ErrSaturated)
			w := do(h, http.MethodPost, "/verify", `{"player_id": 42}`)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
		})

		Convey("When the worker pool is stopped", func() {
			deps.verifyErr = worker.ErrStopped
			w := do(h, http.MethodPost, "/verify", `{"player_id": 42}`)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When the store cannot be read", func() {
			deps.verifyErr = fmt.Errorf("%w: connection reset", verification.ErrInternal)
			w := do(h, http.MethodPost, "/verify", `{"player_id": 42}`)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode(w)["reason"], ShouldEqual, verification.ReasonInternal)
		})

		Convey("When the player id is invalid", func() {
			w := do(h, http.MethodPost, "/verify", `{"player_id": "x"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["error"], ShouldEqual, "no valid playerID")
			So(deps.verified, ShouldBeEmpty)
		})
	})
}

func TestAttestationHandler(t *testing.T) {
	Convey("Given an attestation handler", t, func() {
		signer := newSigner()
		h := http.HandlerFunc(api.NewAttestationHandler(signer).HandleVerify)
		sig := base64.StdEncoding.EncodeToString(signer.Sign(7))

		Convey("When a matching score and signature are posted", func() {
			w := do(h, http.MethodPost, "/attestations/verify", fmt.Sprintf(`{"score": 7, "signature": %q}`, sig))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["valid"], ShouldBeTrue)
		})

		Convey("When the score was altered", func() {
			w := do(h, http.MethodPost, "/attestations/verify", fmt.Sprintf(`{"score": 70, "signature": %q}`, sig))
			body := decode(w)
			So(body["valid"], ShouldBeFalse)
			So(body["signature_valid"], ShouldBeFalse)
		})

		Convey("When the signature is not base64", func() {
			w := do(h, http.MethodPost, "/attestations/verify", `{"score": 7, "signature": "%%%"}`)
			So(decode(w)["valid"], ShouldBeFalse)
		})

		Convey("When a token is posted", func() {
			tok, err := signer.IssueToken(42, 7, "a-1")
			So(err, ShouldBeNil)

			w := do(h, http.MethodPost, "/attestations/verify", fmt.Sprintf(`{"token": %q}`, tok))
			body := decode(w)
			So(body["valid"], ShouldBeTrue)
			So(body["player_id"], ShouldEqual, 42.0)
			So(body["score"], ShouldEqual, 7.0)
			So(body["attempt_id"], ShouldEqual, "a-1")

			Convey("And a score that disagrees with it", func() {
				w := do(h, http.MethodPost, "/attestations/verify", fmt.Sprintf(`{"token": %q, "score": 8, "signature": %q}`, tok, sig))
				So(decode(w)["valid"], ShouldBeFalse)
			})
		})

		Convey("When a token was signed by another key", func() {
			tok, err := newSigner().IssueToken(42, 7, "a-1")
			So(err, ShouldBeNil)
			w := do(h, http.MethodPost, "/attestations/verify", fmt.Sprintf(`{"token": %q}`, tok))
			body := decode(w)
			So(body["valid"], ShouldBeFalse)
			So(body["token_valid"], ShouldBeFalse)
		})

		Convey("When nothing to check is posted", func() {
			w := do(h, http.MethodPost, "/attestations/verify", `{"score": 7}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestLeaderboardHandler(t *testing.T) {
	Convey("Given a leaderboard handler", t, func() {
		deps := &mockDependencies{topN: []types.Entry{
			{Rank: 1, PlayerID: 1, Score: 30},
			{Rank: 2, PlayerID: 2, Score: 20},
			{Rank: 3, PlayerID: 3, Score: 10},
		}}
		h := http.HandlerFunc(api.NewLeaderboardHandler(deps, 50).HandleGetLeaderboard)

		Convey("When a limit is given", func() {
			w := do(h, http.MethodGet, "/leaderboard?limit=2", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var entries []types.Entry
			So(json.Unmarshal(w.Body.Bytes(), &entries), ShouldBeNil)
			So(entries, ShouldHaveLength, 2)
			So(entries[0].PlayerID, ShouldEqual, uint64(1))
		})

		Convey("When the limit is invalid", func() {
			for _, q := range []string{"0", "-3", "ten"} {
				So(do(h, http.MethodGet, "/leaderboard?limit="+q, "").Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When the limit exceeds the maximum", func() {
			w := do(h, http.MethodGet, "/leaderboard?limit=51", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["reason"], ShouldEqual, "limit_exceeded")
		})

		Convey("When the repository fails", func() {
			deps.topNErr = errors.New("boom")
			So(do(h, http.MethodGet, "/leaderboard?limit=2", "").Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestRankHandler(t *testing.T) {
	Convey("Given a router with the rank route", t, func() {
		deps := &mockDependencies{}
		router := api.NewServer(deps, newSigner(), nil).Router(context.Background())

		Convey("When the player has no score", func() {
			deps.rankErr = repository.ErrNotFound
			So(do(router, http.MethodGet, "/rank/42", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the player id is not an integer", func() {
			So(do(router, http.MethodGet, "/rank/abc", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the repository fails", func() {
			deps.rankErr = errors.New("boom")
			So(do(router, http.MethodGet, "/rank/42", "").Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given the error helpers", t, func() {
		base := errors.New("boom")

		Convey("Wrap keeps the cause", func() {
			err := api.Wrap("op", base)
			So(errors.Is(err, base), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "op: boom")
			So(api.Wrap("op", nil), ShouldBeNil)
		})

		Convey("WrapKind matches both the kind and the cause", func() {
			err := api.WrapKind("op", api.ErrBadRequest, base)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, base), ShouldBeTrue)
		})

		Convey("NewKind matches its kind", func() {
			err := api.NewKind("op", api.ErrBackpressure)
			So(errors.Is(err, api.ErrBackpressure), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "op: backpressure")
		})
	})
}
