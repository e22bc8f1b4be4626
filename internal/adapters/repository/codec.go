package repository

import (
	"encoding/hex"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

// codec compresses blob payloads for the durable backends. EncodeAll and
// DecodeAll are safe for concurrent use.
type codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newCodec() (*codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithZeroFrames(true))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &codec{enc: enc, dec: dec}, nil
}

func (c *codec) encode(blob []byte) []byte {
	return c.enc.EncodeAll(blob, nil)
}

// decode never returns a nil slice for a present blob, so an empty upload is
// still distinguishable from a missing one.
func (c *codec) decode(payload []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt blob: %w", ErrStorage, err)
	}
	if out == nil {
		out = []byte{}
	}
	return out, nil
}

func (c *codec) close() {
	_ = c.enc.Close()
	c.dec.Close()
}

// Digest returns the hex BLAKE3-256 of blob, echoed to uploaders so they can
// confirm what the store holds.
func Digest(blob []byte) string {
	sum := blake3.Sum256(blob)
	return hex.EncodeToString(sum[:])
}
