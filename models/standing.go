package models

import "time"

// Standing is one row per team per tournament. Under the default
// scoring rule points = 3*wins + 1*losses; rows are mutated in place
// for the life of the tournament, never recreated.
type Standing struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	TeamID       int       `json:"team_id" db:"team_id"`
	Points       int       `json:"points" db:"points"`
	Wins         int       `json:"wins" db:"wins"`
	Losses       int       `json:"losses" db:"losses"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`

	Team *Team `json:"team,omitempty" db:"-"`
}

// Points awarded when a completed match is applied to the table.
const (
	WinPoints  = 3
	LossPoints = 1
)
