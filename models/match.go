package models

import "time"

type MatchStatus string

const (
	MatchStatusPending    MatchStatus = "pending"
	MatchStatusInProgress MatchStatus = "in_progress"
	MatchStatusCompleted  MatchStatus = "completed"
)

// Match is one round-robin pairing. Invariants: WinnerID is set iff the
// match is completed; RefereeSessionID is set iff the match is in
// progress and currently held by that referee session.
type Match struct {
	ID           int         `json:"id" db:"id"`
	TournamentID int         `json:"tournament_id" db:"tournament_id"`
	Team1ID      int         `json:"team1_id" db:"team1_id"`
	Team2ID      int         `json:"team2_id" db:"team2_id"`
	Round        int         `json:"round" db:"round"`
	Court        int         `json:"court" db:"court"`
	Status       MatchStatus `json:"status" db:"status"`
	ScoreTeam1   int         `json:"score_team1" db:"score_team1"`
	ScoreTeam2   int         `json:"score_team2" db:"score_team2"`
	WinnerID     *int        `json:"winner_id,omitempty" db:"winner_id"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`

	// Opaque referee session token. Not a first-class entity, only a
	// foreign value on the match row.
	RefereeSessionID *string `json:"referee_session_id,omitempty" db:"referee_session_id"`

	Team1 *Team `json:"team1,omitempty" db:"-"`
	Team2 *Team `json:"team2,omitempty" db:"-"`
}

// HeldBy reports whether the match is currently held by the given
// referee session.
func (m *Match) HeldBy(sessionID string) bool {
	return m.RefereeSessionID != nil && *m.RefereeSessionID == sessionID
}
