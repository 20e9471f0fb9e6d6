// internal/game/types.go
//
// Core type definitions for the Wordeko round controller.
// Defines:
//   - LetterEntity: a letter paired with its physics body and selection flag.
//   - RoundState:   Active → AwaitingValidation → Resolved.
//   - Outcome/Result: what a resolved submission did.
//   - Notice:       user-facing message for a submission.
//   - Snapshot:     read model handed to HTTP clients.
//   - Sentinel errors returned by Session and Loop.

package game

import (
	"errors"

	"github.com/robalobadob/wordeko/internal/physics"
)

var (
	ErrUnknownEntity = errors.New("unknown entity")
	ErrGameOver      = errors.New("game over")
	ErrSuperseded    = errors.New("submission superseded")
	ErrLoopStopped   = errors.New("session stopped")
)

// LetterEntity is one letter token in play. Body is owned exclusively by
// the entity for its whole lifetime.
type LetterEntity struct {
	ID       int            // unique within a session, never reused
	Letter   byte           // 'A'..'Z'
	Body     physics.Handle // live body in the session's world
	Radius   float64
	Selected bool
}

// RoundState is the submission state of the current round.
type RoundState int

const (
	StateActive RoundState = iota
	StateAwaitingValidation
	StateResolved
)

func (s RoundState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateAwaitingValidation:
		return "awaiting_validation"
	case StateResolved:
		return "resolved"
	}
	return "unknown"
}

// Outcome classifies a resolved submission.
type Outcome string

const (
	OutcomeValid   Outcome = "valid"
	OutcomeInvalid Outcome = "invalid"
	OutcomeError   Outcome = "error"
)

// Messages shown for each outcome.
const (
	msgValid   = "Correct word! 🎉"
	msgInvalid = "Incorrect word, try again! 😕"
	msgError   = "Word validation failed. Please try again later."
)

// Notice is a blocking message for the player.
type Notice struct {
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
}

// Submission is a word handed to the validation pipeline.
type Submission struct {
	Seq  uint64
	Word string
}

// Result reports what ResolveValidation did.
type Result struct {
	Outcome Outcome `json:"result"`
	Word    string  `json:"word"`
	Message string  `json:"message"`
	Score   int     `json:"score"`
	Ended   bool    `json:"ended"`
}

// LetterView is the client-facing shape of a LetterEntity.
type LetterView struct {
	ID       int     `json:"id"`
	Letter   string  `json:"letter"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Radius   float64 `json:"radius"`
	Selected bool    `json:"selected"`
}

// MusicState is the soundtrack state the client mirrors.
type MusicState struct {
	Playing bool    `json:"playing"`
	Volume  float64 `json:"volume"`
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	Tick    uint64       `json:"tick"`
	State   string       `json:"state"`
	Score   int          `json:"score"`
	Word    string       `json:"word"`
	Ended   bool         `json:"ended"`
	Width   float64      `json:"width"`
	Height  float64      `json:"height"`
	Letters []LetterView `json:"letters"`
	Music   MusicState   `json:"music"`
}
