package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/gameproof/internal/adapters/repository"
	"github.com/okian/gameproof/internal/domain/model"
	"github.com/okian/gameproof/internal/domain/verification"
)

// envelope leaves room for the JSON around the blob.
const envelope = 4 << 10

// UploadDependencies stages blobs.
type UploadDependencies interface {
	Upload(ctx context.Context, id model.Identity, kind model.BlobKind, blob []byte) error
}

// UploadHandler handles POST /video and POST /inputs.
type UploadHandler struct {
	deps     UploadDependencies
	maxBytes int64
}

// NewUploadHandler creates an upload handler accepting blobs up to maxBytes.
func NewUploadHandler(deps UploadDependencies, maxBytes int64) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBlobBytes
	}
	return &UploadHandler{deps: deps, maxBytes: maxBytes}
}

// uploadRequest mirrors the OpenAPI schema for both upload routes. The
// camelCase keys are what capture clients have always sent.
type uploadRequest struct {
	PlayerID    json.RawMessage `json:"player_id"`
	FileContent string          `json:"file_content"`

	LegacyPlayerID    json.RawMessage `json:"playerID"`
	LegacyFileContent string          `json:"fileContent"`
}

func (r *uploadRequest) player() json.RawMessage {
	return pickPlayer(r.PlayerID, r.LegacyPlayerID)
}

func (r *uploadRequest) content() string {
	if r.FileContent != "" {
		return r.FileContent
	}
	return r.LegacyFileContent
}

type uploadResponse struct {
	Error  string `json:"error"`
	Digest string `json:"digest"`
}

// HandleVideo stages the base64 video blob.
func (h *UploadHandler) HandleVideo(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, model.BlobVideo)
}

// HandleInputs stages the base64 input CSV blob.
func (h *UploadHandler) HandleInputs(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, model.BlobInput)
}

func (h *UploadHandler) handle(w http.ResponseWriter, r *http.Request, kind model.BlobKind) {
	op := "api.upload_" + string(kind)

	var req uploadRequest
	body := http.MaxBytesReader(w, r.Body, h.maxBytes+envelope)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", NewKind(op, ErrBodyTooLarge))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	content := req.content()
	if content == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingFile)
		return
	}
	if int64(len(content)) > h.maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", NewKind(op, ErrBodyTooLarge))
		return
	}
	id, err := identityFromRequest(req.player())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  identityMessage(err),
			Reason: verification.ReasonInvalidIdentity,
		})
		return
	}

	blob := []byte(content)
	if err := h.deps.Upload(r.Context(), id, kind, blob); err != nil {
		writeError(w, http.StatusInternalServerError, verification.ReasonInternal, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Error:  verification.NoError,
		Digest: repository.Digest(blob),
	})
}
