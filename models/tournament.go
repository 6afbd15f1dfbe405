package models

import "time"

// Tournament is a single round-robin tournament. Only one tournament is
// actively viewed at a time; "current" resolves to the most recently
// created one.
type Tournament struct {
	ID         int       `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	CourtCount int       `json:"court_count" db:"court_count"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`

	BannerKey *string `json:"-" db:"banner_key"`
	BannerURL *string `json:"banner_url,omitempty" db:"-"`

	// Optional linked entities, populated by services.
	Teams   []*Team  `json:"teams,omitempty" db:"-"`
	Matches []*Match `json:"matches,omitempty" db:"-"`
}
