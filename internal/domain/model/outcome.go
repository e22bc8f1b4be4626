package model

import "time"

// State is a step of the verification state machine.
type State string

const (
	StateAwaitingBoth State = "awaiting_both"
	StateDecoding     State = "decoding"
	StateNormalizing  State = "normalizing"
	StateCorrelating  State = "correlating"
	StateSimulating   State = "simulating"
	StateSigning      State = "signing"
	StateDone         State = "done"
	StateRejected     State = "rejected"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == StateDone || s == StateRejected }

// Outcome describes a finished verification attempt.
// Stage is the last non-terminal state reached; Reason is empty when State is done.
type Outcome struct {
	AttemptID   string    `json:"attempt_id"`
	Identity    Identity  `json:"player_id"`
	State       State     `json:"state"`
	Stage       State     `json:"stage"`
	Reason      string    `json:"reason,omitempty"`
	Message     string    `json:"error"`
	Correlation float64   `json:"correlation"`
	Score       Score     `json:"score"`
	Signature   []byte    `json:"signature,omitempty"`
	Token       string    `json:"token,omitempty"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Accepted reports whether the attempt produced a signed score.
func (o Outcome) Accepted() bool { return o.State == StateDone }
