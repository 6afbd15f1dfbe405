package services

import "errors"

// Shared error values used across services and the HTTP error mapping.
var (
	// Not found
	ErrNotFound           = errors.New("requested resource not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrTeamNotFound       = errors.New("team not found")
	ErrMatchNotFound      = errors.New("match not found")
	ErrStandingNotFound   = errors.New("standing not found")

	// Invalid input, rejected before any mutation
	ErrTournamentNameRequired = errors.New("tournament name is required")
	ErrTeamCountInvalid       = errors.New("tournament requires between 2 and 20 teams")
	ErrCourtCountInvalid      = errors.New("court count must be between 1 and 10")
	ErrTeamMembersRequired    = errors.New("every team needs at least one member")
	ErrTeamSlotInvalid        = errors.New("team must be 1 or 2")
	ErrSessionRequired        = errors.New("referee session id is required")
	ErrScoreDeltaInvalid      = errors.New("score delta must be +1 or -1")
	ErrFinalScoreInvalid      = errors.New("final scores must be non-negative")
	ErrDrawNotAllowed         = errors.New("a match cannot finish in a draw")

	// Conflicts: exclusivity violations on the match holder
	ErrMatchHeldByOtherSession = errors.New("match is already held by another referee session")
	ErrMatchNotHeldBySession   = errors.New("match is not held by this referee session")

	// Invalid lifecycle state
	ErrMatchAlreadyCompleted = errors.New("match is already completed")
	ErrMatchNotInProgress    = errors.New("match is not in progress")

	// Partial completion: the match is durably finished but the paired
	// standings update did not confirm. Surfaced distinctly so callers
	// and the reconciliation pass can repair it; never silently dropped.
	ErrStandingsNotApplied = errors.New("match completed but standings update is pending")

	// Feature availability
	ErrBannerUploadsDisabled = errors.New("banner uploads are not configured")
)
