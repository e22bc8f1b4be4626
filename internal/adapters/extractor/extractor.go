// Package extractor turns a submitted video into frame-indexed key events.
//
// The model that watches the video runs outside this service. HTTP talks to a
// model server; FrameCSV accepts videos that capture tools have already run
// through the model on the client side and uploaded as a frame,event CSV.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/gameproof/internal/domain/model"
	"github.com/okian/gameproof/internal/domain/signal"
)

// Extractor produces the video-side event records.
type Extractor interface {
	Extract(ctx context.Context, video []byte) ([]model.EventRecord, error)
}

// maxResponseBytes caps what we read back from the model server.
const maxResponseBytes = 32 << 20

// FrameCSV reads a frame,event[,keycode] CSV.
type FrameCSV struct {
	maxRows int
}

// NewFrameCSV caps the number of rows read; maxRows <= 0 means unlimited.
func NewFrameCSV(maxRows int) *FrameCSV {
	return &FrameCSV{maxRows: maxRows}
}

func (f *FrameCSV) Extract(ctx context.Context, video []byte) ([]model.EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return signal.DecodeEventCSV(bytes.NewReader(video), signal.ColumnFrame, f.maxRows)
}

// HTTP posts the raw video to a model server.
type HTTP struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// NewHTTP returns an extractor for the model server at url. A zero timeout
// leaves the deadline to the caller's context.
func NewHTTP(url string, timeout time.Duration, opts ...Option) *HTTP {
	h := &HTTP{url: url, timeout: timeout, client: &http.Client{}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type response struct {
	Events []struct {
		Frame json.RawMessage `json:"frame"`
		Event string          `json:"event"`
		Key   string          `json:"key"`
	} `json:"events"`
}

func (h *HTTP) Extract(ctx context.Context, video []byte) ([]model.EventRecord, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(video))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("%w: model server returned %d", ErrUnavailable, resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %w: %w", ErrUnavailable, ErrBadResponse, err)
	}

	out := make([]model.EventRecord, 0, len(body.Events))
	for _, ev := range body.Events {
		out = append(out, model.EventRecord{
			Ref:  strings.Trim(strings.TrimSpace(string(ev.Frame)), `"`),
			Kind: model.ParseEventKind(ev.Event),
			Key:  ev.Key,
		})
	}
	return out, nil
}
