package brackets

import "fmt"

// byeTeamID pads an odd team count so the circle method works on an
// even number of positions. Real team IDs are positive serials, so 0
// can never collide.
const byeTeamID = 0

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() ScheduleGenerator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) GetName() string {
	return "RoundRobin"
}

// Generate produces a full single round-robin using the circle method:
// every unordered pair of teams appears exactly once. With N (padded)
// teams there are N-1 rounds; in each round position i plays position
// N-1-i, then every position except the anchor rotates by one. Pairings
// against the bye slot are discarded, so a round of an odd-sized field
// has one team sitting out. Courts are assigned round-robin across the
// kept matches of a round, in generation order.
func (g *RoundRobinGenerator) Generate(params GenerateParams) ([]Pairing, error) {
	if len(params.TeamIDs) < 2 {
		return nil, fmt.Errorf("round robin requires at least 2 teams, got %d", len(params.TeamIDs))
	}
	if params.CourtCount < 1 {
		return nil, fmt.Errorf("round robin requires at least 1 court, got %d", params.CourtCount)
	}

	ids := make([]int, len(params.TeamIDs))
	copy(ids, params.TeamIDs)
	if len(ids)%2 == 1 {
		ids = append(ids, byeTeamID)
	}
	n := len(ids)

	pairings := make([]Pairing, 0, n*(n-1)/2)
	for round := 1; round < n; round++ {
		courtCursor := 0
		for i := 0; i < n/2; i++ {
			t1, t2 := ids[i], ids[n-1-i]
			if t1 == byeTeamID || t2 == byeTeamID {
				continue
			}
			pairings = append(pairings, Pairing{
				Team1ID: t1,
				Team2ID: t2,
				Round:   round,
				Court:   (courtCursor % params.CourtCount) + 1,
			})
			courtCursor++
		}

		// Rotate clockwise around the fixed anchor at position 0.
		last := ids[n-1]
		copy(ids[2:], ids[1:n-1])
		ids[1] = last
	}

	return pairings, nil
}
