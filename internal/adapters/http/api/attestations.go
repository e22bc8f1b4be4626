package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/okian/gameproof/internal/domain/attest"
	"github.com/okian/gameproof/internal/domain/model"
)

// AttestationHandler lets third parties check signed scores without holding
// the key themselves.
type AttestationHandler struct {
	keys KeyProvider
}

// NewAttestationHandler creates an attestation handler.
func NewAttestationHandler(keys KeyProvider) *AttestationHandler {
	return &AttestationHandler{keys: keys}
}

type attestationRequest struct {
	Score     *uint64 `json:"score"`
	Signature string  `json:"signature"`
	Token     string  `json:"token"`
}

type attestationResponse struct {
	Valid     bool    `json:"valid"`
	Signature *bool   `json:"signature_valid,omitempty"`
	Token     *bool   `json:"token_valid,omitempty"`
	PlayerID  *uint64 `json:"player_id,omitempty"`
	Score     *uint64 `json:"score,omitempty"`
	AttemptID string  `json:"attempt_id,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// HandleVerify checks a legacy signature, a token, or both. When both are
// given they must agree on the score.
func (h *AttestationHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	const op = "api.verify_attestation"

	var req attestationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, envelope)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	hasSig := req.Score != nil && req.Signature != ""
	if !hasSig && req.Token == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	resp := attestationResponse{Valid: true, Score: req.Score}
	var problems []string

	if hasSig {
		ok := false
		if sig, err := base64.StdEncoding.DecodeString(req.Signature); err == nil {
			ok = attest.Verify(sig, model.Score(*req.Score), h.keys.PublicKey())
		} else {
			problems = append(problems, "signature is not base64")
		}
		resp.Signature = &ok
		resp.Valid = resp.Valid && ok
	}

	if req.Token != "" {
		ok := false
		claims, err := attest.ParseToken(req.Token, h.keys.PublicKey(), h.keys.Issuer())
		if err == nil {
			ok = true
			id, _ := claims.Identity()
			pid := uint64(id)
			resp.PlayerID = &pid
			resp.AttemptID = claims.ID
			if req.Score != nil && *req.Score != claims.Score {
				ok = false
				problems = append(problems, "token score differs from score")
			}
			score := claims.Score
			resp.Score = &score
		} else {
			problems = append(problems, err.Error())
		}
		resp.Token = &ok
		resp.Valid = resp.Valid && ok
	}

	resp.Error = strings.Join(problems, "; ")
	writeJSON(w, http.StatusOK, resp)
}

// HandleJWKS publishes the attestation key.
func (h *AttestationHandler) HandleJWKS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, h.keys.JWKS())
}
