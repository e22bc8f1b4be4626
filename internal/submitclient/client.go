package submitclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/okian/gameproof/internal/domain/types"
)

// ErrUnexpectedStatus is returned when the service answers with a status the
// call does not accept.
var ErrUnexpectedStatus = errors.New("unexpected status")

// StatusError carries the status and body of a failed call.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, strings.TrimSpace(e.Body))
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// VerifyResult is the decoded body of POST /verify.
type VerifyResult struct {
	Status      int     `json:"-"`
	Signature   string  `json:"signature"`
	Error       string  `json:"error"`
	Reason      string  `json:"reason"`
	Score       uint64  `json:"score"`
	Correlation float64 `json:"correlation"`
	AttemptID   string  `json:"attempt_id"`
	State       string  `json:"state"`
	Stage       string  `json:"stage"`
	Token       string  `json:"token"`
}

// Accepted reports whether the service signed a score.
func (r VerifyResult) Accepted() bool { return r.State == stateDone && r.Error == noError }

// SignatureBytes decodes the base64 signature.
func (r VerifyResult) SignatureBytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(r.Signature)
}

// AttestationCheck is the decoded body of POST /attestations/verify.
type AttestationCheck struct {
	Valid     bool   `json:"valid"`
	PlayerID  uint64 `json:"player_id"`
	Score     uint64 `json:"score"`
	AttemptID string `json:"attempt_id"`
	Error     string `json:"error"`
}

type uploadRequest struct {
	PlayerID    uint64 `json:"player_id"`
	FileContent string `json:"file_content"`
}

type uploadResponse struct {
	Error  string `json:"error"`
	Digest string `json:"digest"`
}

// Client wraps http.Client with the service routes.
type Client struct {
	base   string
	client *http.Client
}

// NewClient creates a client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// Health checks that the service answers on /healthz.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	defer closeBody(resp)
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// UploadVideo stores the base64 frame blob for id and returns its digest.
func (c *Client) UploadVideo(ctx context.Context, id uint64, blob string) (string, error) {
	return c.upload(ctx, "/video", id, blob)
}

// UploadInputs stores the base64 keystroke blob for id and returns its digest.
func (c *Client) UploadInputs(ctx context.Context, id uint64, blob string) (string, error) {
	return c.upload(ctx, "/inputs", id, blob)
}

func (c *Client) upload(ctx context.Context, path string, id uint64, blob string) (string, error) {
	var out uploadResponse
	status, err := c.postJSON(ctx, path, uploadRequest{PlayerID: id, FileContent: blob}, &out)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || out.Error != noError {
		return "", &StatusError{Code: status, Body: out.Error}
	}
	return out.Digest, nil
}

// Verify asks the service to verify the pending pair of id. Rejections are
// results, not errors: the returned error is non-nil only when no verify body
// came back.
func (c *Client) Verify(ctx context.Context, id uint64) (VerifyResult, error) {
	var out VerifyResult
	status, err := c.postJSON(ctx, "/verify", map[string]uint64{"player_id": id}, &out)
	if err != nil {
		return VerifyResult{}, err
	}
	if out.State == "" {
		return VerifyResult{}, &StatusError{Code: status, Body: out.Error}
	}
	out.Status = status
	return out, nil
}

// CheckToken submits an attestation token to the service for validation.
func (c *Client) CheckToken(ctx context.Context, token string) (AttestationCheck, error) {
	var out AttestationCheck
	status, err := c.postJSON(ctx, "/attestations/verify", map[string]string{"token": token}, &out)
	if err != nil {
		return AttestationCheck{}, err
	}
	if status != http.StatusOK {
		return out, &StatusError{Code: status, Body: out.Error}
	}
	return out, nil
}

// JWKS fetches the published verification keys.
func (c *Client) JWKS(ctx context.Context) (jose.JSONWebKeySet, error) {
	var set jose.JSONWebKeySet
	if err := c.getJSON(ctx, "/.well-known/jwks.json", &set); err != nil {
		return jose.JSONWebKeySet{}, err
	}
	return set, nil
}

// Leaderboard fetches the top limit entries.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]types.Entry, error) {
	var entries []types.Entry
	if err := c.getJSON(ctx, "/leaderboard?limit="+strconv.Itoa(limit), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Rank fetches the leaderboard entry of id.
func (c *Client) Rank(ctx context.Context, id uint64) (types.Entry, error) {
	var entry types.Entry
	if err := c.getJSON(ctx, "/rank/"+strconv.FormatUint(id, 10), &entry); err != nil {
		return types.Entry{}, err
	}
	return entry, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer closeBody(resp)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// postJSON sends body and decodes the reply into v whatever the status.
func (c *Client) postJSON(ctx context.Context, path string, body, v any) (int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request body: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	defer closeBody(resp)
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return resp.StatusCode, &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	return resp.StatusCode, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func closeBody(resp *http.Response) { _ = resp.Body.Close() }
