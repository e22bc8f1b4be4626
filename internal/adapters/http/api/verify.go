package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/gameproof/internal/adapters/mq/worker"
	"github.com/okian/gameproof/internal/domain/model"
	"github.com/okian/gameproof/internal/domain/verification"
	"github.com/okian/gameproof/pkg/logger"
)

// VerifyDependencies runs verification attempts.
type VerifyDependencies interface {
	Verify(ctx context.Context, id model.Identity) (model.Outcome, error)
}

// VerifyHandler handles POST /verify.
type VerifyHandler struct {
	deps VerifyDependencies
	log  logger.Logger
}

// NewVerifyHandler creates a verify handler. A nil logger uses the global one.
func NewVerifyHandler(deps VerifyDependencies, l logger.Logger) *VerifyHandler {
	if l == nil {
		l = logger.Get().Named("api")
	}
	return &VerifyHandler{deps: deps, log: l}
}

type verifyRequest struct {
	PlayerID       json.RawMessage `json:"player_id"`
	LegacyPlayerID json.RawMessage `json:"playerID"`
}

type verifyResponse struct {
	Signature   string      `json:"signature,omitempty"`
	Error       string      `json:"error"`
	Reason      string      `json:"reason,omitempty"`
	Score       model.Score `json:"score"`
	Correlation float64     `json:"correlation"`
	AttemptID   string      `json:"attempt_id"`
	State       model.State `json:"state"`
	Stage       model.State `json:"stage"`
	Token       string      `json:"token,omitempty"`
}

// HandleVerify runs one verification attempt and reports its outcome.
func (h *VerifyHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	const op = "api.verify"

	var req verifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, envelope)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	id, err := identityFromRequest(pickPlayer(req.PlayerID, req.LegacyPlayerID))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  identityMessage(err),
			Reason: verification.ReasonInvalidIdentity,
		})
		return
	}

	out, err := h.deps.Verify(r.Context(), id)
	switch {
	case err == nil:
	case errors.Is(err, worker.ErrSaturated):
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	case errors.Is(err, worker.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "unavailable", NewKind(op, ErrUnavailable))
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// The attempt keeps running on its worker; the client just won't see it.
		h.log.Info(r.Context(), "client left before verification finished",
			logger.String("player_id", id.String()),
		)
		writeError(w, http.StatusServiceUnavailable, "cancelled", Wrap(op, err))
		return
	default:
		h.log.Error(r.Context(), "verification failed", logger.String("player_id", id.String()), logger.Error(err))
		writeError(w, http.StatusInternalServerError, verification.ReasonInternal, Wrap(op, err))
		return
	}

	resp := verifyResponse{
		Error:       out.Message,
		Reason:      out.Reason,
		Score:       out.Score,
		Correlation: out.Correlation,
		AttemptID:   out.AttemptID,
		State:       out.State,
		Stage:       out.Stage,
		Token:       out.Token,
	}
	if out.Accepted() {
		resp.Signature = base64.StdEncoding.EncodeToString(out.Signature)
	}
	writeJSON(w, statusFor(out), resp)
}

// statusFor maps a finished outcome to its HTTP status.
func statusFor(out model.Outcome) int {
	if out.Accepted() {
		return http.StatusOK
	}
	switch out.Reason {
	case verification.ReasonInvalidIdentity:
		return http.StatusBadRequest
	case verification.ReasonIncompleteSubmission:
		return http.StatusConflict
	case verification.ReasonExtraction:
		return http.StatusServiceUnavailable
	case verification.ReasonSigning, verification.ReasonInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}
