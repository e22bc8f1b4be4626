package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Identity is the non-negative integer a submitter is known by.
type Identity uint64

func (id Identity) String() string { return strconv.FormatUint(uint64(id), 10) }

// ParseIdentity accepts a base-10 non-negative integer, surrounding space allowed.
func ParseIdentity(s string) (Identity, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidIdentity)
	}
	v, err := strconv.ParseUint(t, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIdentity, s)
	}
	return Identity(v), nil
}

// IdentityFromJSON accepts either a JSON integer or a JSON string holding one.
func IdentityFromJSON(raw json.RawMessage) (Identity, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("%w: missing", ErrInvalidIdentity)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
		}
		return ParseIdentity(s)
	}
	return ParseIdentity(string(raw))
}
