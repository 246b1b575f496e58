// Package apperrors defines the failure kinds a pipeline pass can surface.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrUpstreamUnavailable   = errors.New("upstream unavailable")
	ErrUpstreamSchemaDrift   = errors.New("upstream schema drift")
	ErrSurfaceSchemaMismatch = errors.New("surface schema mismatch")
	ErrSurfaceIO             = errors.New("surface i/o failure")
	ErrStoreIO               = errors.New("document store i/o failure")
	ErrLockHeld              = errors.New("pipeline lock held")
	ErrPredictionSkipped     = errors.New("prediction skipped")
	ErrInvalidGameIdentity   = errors.New("invalid game identity")
)

// Exit codes reported by the pass command.
const (
	ExitOK                    = 0
	ExitUnexpected            = 1
	ExitUpstreamUnavailable   = 2
	ExitSurfaceSchemaMismatch = 3
	ExitLockHeld              = 4
)

// GameError attaches the offending game id to a failure kind.
type GameError struct {
	Kind   error
	GameID string
	Err    error
}

func (e *GameError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: game %s", e.Kind, e.GameID)
	}
	return fmt.Sprintf("%v: game %s: %v", e.Kind, e.GameID, e.Err)
}

// Is reports whether target is the error's kind.
func (e *GameError) Is(target error) bool {
	return target == e.Kind
}

func (e *GameError) Unwrap() error {
	return e.Err
}

// ForGame wraps cause as a failure of the given kind for one game.
func ForGame(kind error, gameID string, cause error) error {
	return &GameError{Kind: kind, GameID: gameID, Err: cause}
}

// Wrap tags cause with a failure kind, keeping both in the chain.
func Wrap(kind error, cause error) error {
	if cause == nil {
		return nil
	}
	if errors.Is(cause, kind) {
		return cause
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// GameID extracts the game id attached to err, if any.
func GameID(err error) (string, bool) {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.GameID, true
	}
	return "", false
}

// ExitCode maps a pass error onto the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrLockHeld):
		return ExitLockHeld
	case errors.Is(err, ErrSurfaceSchemaMismatch):
		return ExitSurfaceSchemaMismatch
	case errors.Is(err, ErrUpstreamUnavailable), errors.Is(err, ErrUpstreamSchemaDrift):
		return ExitUpstreamUnavailable
	default:
		return ExitUnexpected
	}
}
