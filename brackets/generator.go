package brackets

// Pairing is one generated match slot: an unordered team pair tagged
// with its round and court.
type Pairing struct {
	Team1ID int
	Team2ID int
	Round   int
	Court   int
}

type GenerateParams struct {
	// TeamIDs in creation order. IDs must be positive and unique;
	// uniqueness is the caller's responsibility.
	TeamIDs []int
	// CourtCount is the number of courts available per round.
	CourtCount int
}

type ScheduleGenerator interface {
	Generate(params GenerateParams) ([]Pairing, error)

	GetName() string
}
