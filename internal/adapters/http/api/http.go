// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"net/http"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/gorilla/mux"
	"github.com/okian/gameproof/internal/domain/model"
	"github.com/okian/gameproof/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	UploadDependencies
	VerifyDependencies
	LeaderboardDependencies
	RankDependencies
}

// KeyProvider exposes the attestation public key.
type KeyProvider interface {
	PublicKey() ed25519.PublicKey
	JWKS() jose.JSONWebKeySet
	Issuer() string
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	uploadHandler      *UploadHandler
	verifyHandler      *VerifyHandler
	attestationHandler *AttestationHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, keys KeyProvider, statsProvider StatsProvider, opts ...Option) *Server {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		uploadHandler:      NewUploadHandler(deps, o.maxBlobBytes),
		verifyHandler:      NewVerifyHandler(deps, o.logger),
		attestationHandler: NewAttestationHandler(keys),
		leaderboardHandler: NewLeaderboardHandler(deps, o.maxLeaderboardLimit),
		rankHandler:        NewRankHandler(deps),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r *mux.Router) {
	if r == nil {
		panic("router is nil")
	}
	r.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")).Methods(http.MethodGet)
	r.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)

	r.HandleFunc("/video", MetricsMiddleware(s.uploadHandler.HandleVideo, "video")).Methods(http.MethodPost)
	r.HandleFunc("/inputs", MetricsMiddleware(s.uploadHandler.HandleInputs, "inputs")).Methods(http.MethodPost)
	r.HandleFunc("/verify", MetricsMiddleware(s.verifyHandler.HandleVerify, "verify")).Methods(http.MethodPost)

	r.HandleFunc("/attestations/verify", MetricsMiddleware(s.attestationHandler.HandleVerify, "attestations_verify")).Methods(http.MethodPost)
	r.HandleFunc("/.well-known/jwks.json", MetricsMiddleware(s.attestationHandler.HandleJWKS, "jwks")).Methods(http.MethodGet)

	r.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard")).Methods(http.MethodGet)
	r.HandleFunc("/rank/{player_id}", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank")).Methods(http.MethodGet)
}

// Router returns a new router with every route registered.
func (s *Server) Router(ctx context.Context) *mux.Router {
	r := mux.NewRouter()
	s.Register(ctx, r)
	return r
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Error: msg, Reason: reason})
}

// identityFromRequest validates the player_id of a request body. Its error
// message is the one clients have always been shown.
func identityFromRequest(raw json.RawMessage) (model.Identity, error) {
	if len(raw) == 0 {
		return 0, ErrMissingPlayer
	}
	id, err := model.IdentityFromJSON(raw)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// pickPlayer prefers the snake_case key and falls back to playerID.
func pickPlayer(snake, camel json.RawMessage) json.RawMessage {
	if len(snake) > 0 {
		return snake
	}
	return camel
}

func identityMessage(err error) string {
	if errors.Is(err, ErrMissingPlayer) {
		return ErrMissingPlayer.Error()
	}
	return "no valid playerID"
}
