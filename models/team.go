package models

import "time"

// Team belongs to exactly one tournament. Immutable after creation
// except for the display name.
type Team struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	Name         string    `json:"name" db:"name"`
	Members      []string  `json:"members" db:"members"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
