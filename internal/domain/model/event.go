// Package model contains domain models passed between layers.
package model

import "strings"

// EventKind classifies a key event row.
type EventKind uint8

// Event kinds. Only KeyDown contributes to indicator signals.
const (
	Unknown EventKind = iota
	KeyDown
	KeyUp
)

// Textual labels used by capture tools and the extraction model.
const (
	KeyDownLabel = "Key down"
	KeyUpLabel   = "Key up"
)

// ParseEventKind maps a label to its kind, ignoring case and surrounding space.
func ParseEventKind(s string) EventKind {
	s = strings.TrimSpace(s)
	switch {
	case strings.EqualFold(s, KeyDownLabel):
		return KeyDown
	case strings.EqualFold(s, KeyUpLabel):
		return KeyUp
	default:
		return Unknown
	}
}

func (k EventKind) String() string {
	switch k {
	case KeyDown:
		return KeyDownLabel
	case KeyUp:
		return KeyUpLabel
	default:
		return "unknown"
	}
}

// EventRecord is one observed key event.
// Ref is the textual time reference: a frame index on the video side,
// elapsed seconds on the input side.
type EventRecord struct {
	Ref  string
	Kind EventKind
	Key  string // optional key identity
}
