package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/nghiatd-29581/badminton-tournament-app/models"
	"github.com/nghiatd-29581/badminton-tournament-app/repositories"
	"golang.org/x/sync/errgroup"
)

const (
	msgMatchUpdated     = "MATCH_UPDATED"
	msgStandingsUpdated = "STANDINGS_UPDATED"
)

type TeamRef struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// LiveMatch is the viewer-facing projection of one in-progress match.
type LiveMatch struct {
	ID         int     `json:"id"`
	Round      int     `json:"round"`
	Court      int     `json:"court"`
	Team1      TeamRef `json:"team1"`
	Team2      TeamRef `json:"team2"`
	ScoreTeam1 int     `json:"score_team1"`
	ScoreTeam2 int     `json:"score_team2"`
}

// StandingRow is the viewer-facing projection of one standings row.
type StandingRow struct {
	TeamID   int    `json:"team_id"`
	TeamName string `json:"team_name"`
	Points   int    `json:"points"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
}

// Snapshot is a consistent copy of both projections.
type Snapshot struct {
	TournamentID int           `json:"tournament_id"`
	LiveMatches  []LiveMatch   `json:"live_matches"`
	Standings    []StandingRow `json:"standings"`
}

// Synchronizer mirrors the active tournament's in-progress matches and
// standings from the change feed. It is a downstream, eventually
// consistent read-model, never a source of truth: all events enter
// through one serialized queue, incremental updates are applied
// last-write-wins, and anything it cannot classify confidently triggers
// a full refetch of the affected projection.
type Synchronizer struct {
	tournamentRepo repositories.TournamentRepository
	teamRepo       repositories.TeamRepository
	matchRepo      repositories.MatchRepository
	standingRepo   repositories.StandingRepository
	hub            *Hub
	events         <-chan Event
	logger         *slog.Logger

	mu           sync.RWMutex
	tournamentID int
	teams        map[int]TeamRef
	liveMatches  map[int]LiveMatch
	standings    map[int]StandingRow
}

func NewSynchronizer(
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	matchRepo repositories.MatchRepository,
	standingRepo repositories.StandingRepository,
	hub *Hub,
	events <-chan Event,
	logger *slog.Logger,
) *Synchronizer {
	return &Synchronizer{
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		matchRepo:      matchRepo,
		standingRepo:   standingRepo,
		hub:            hub,
		events:         events,
		logger:         logger,
		teams:          make(map[int]TeamRef),
		liveMatches:    make(map[int]LiveMatch),
		standings:      make(map[int]StandingRow),
	}
}

// Run consumes the event queue until the context is cancelled or the
// feed closes. It is the only goroutine that mutates the projections.
func (s *Synchronizer) Run(ctx context.Context) {
	if err := s.resync(ctx); err != nil {
		s.logger.Warn("initial projection load failed", slog.Any("error", err))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.events:
			if !ok {
				return
			}
			s.handle(ctx, event)
		}
	}
}

func (s *Synchronizer) handle(ctx context.Context, event Event) {
	if event.Resync {
		s.refreshOrWarn(ctx, s.resync)
		return
	}

	switch event.Channel {
	case repositories.TournamentsChannel:
		// A new tournament becomes the active one; anything else about
		// a tournament row doesn't touch the projections.
		if event.Change.Op == repositories.ChangeInsert {
			s.refreshOrWarn(ctx, s.resync)
		}

	case repositories.MatchesChannel:
		var match models.Match
		if err := json.Unmarshal(event.Change.Row, &match); err != nil {
			s.logger.Warn("undecodable match change, refetching", slog.Any("error", err))
			s.refreshOrWarn(ctx, s.refreshMatches)
			return
		}
		if match.TournamentID != s.activeTournamentID() {
			return
		}
		s.applyMatchChange(ctx, event.Change.Op, match)

	case repositories.StandingsChannel:
		var standing models.Standing
		if err := json.Unmarshal(event.Change.Row, &standing); err != nil {
			s.logger.Warn("undecodable standing change, refetching", slog.Any("error", err))
			s.refreshOrWarn(ctx, s.refreshStandings)
			return
		}
		if standing.TournamentID != s.activeTournamentID() {
			return
		}
		s.applyStandingChange(ctx, event.Change.Op, standing)
	}
}

func (s *Synchronizer) applyMatchChange(ctx context.Context, op string, match models.Match) {
	if op != repositories.ChangeUpdate {
		// Inserts and deletes reshape the filtered set; refetch rather
		// than guess.
		s.refreshOrWarn(ctx, s.refreshMatches)
		return
	}

	if match.Status != models.MatchStatusInProgress {
		// The row may be leaving the live set (finish, or a stale
		// pre-start payload). Only a refetch answers that confidently.
		s.mu.RLock()
		_, known := s.liveMatches[match.ID]
		s.mu.RUnlock()
		if known {
			s.refreshOrWarn(ctx, s.refreshMatches)
		}
		return
	}

	s.mu.Lock()
	team1, ok1 := s.teams[match.Team1ID]
	team2, ok2 := s.teams[match.Team2ID]
	if !ok1 || !ok2 {
		// Event for a row we haven't loaded context for yet.
		s.mu.Unlock()
		s.refreshOrWarn(ctx, s.refreshMatches)
		return
	}
	// Last-write-wins per field: a late stale payload may briefly
	// overwrite a newer value, corrected by the next event or refresh.
	s.liveMatches[match.ID] = LiveMatch{
		ID:         match.ID,
		Round:      match.Round,
		Court:      match.Court,
		Team1:      team1,
		Team2:      team2,
		ScoreTeam1: match.ScoreTeam1,
		ScoreTeam2: match.ScoreTeam2,
	}
	s.mu.Unlock()

	s.broadcastMatches()
}

func (s *Synchronizer) applyStandingChange(ctx context.Context, op string, standing models.Standing) {
	if op != repositories.ChangeUpdate {
		s.refreshOrWarn(ctx, s.refreshStandings)
		return
	}

	s.mu.Lock()
	row, known := s.standings[standing.TeamID]
	if !known {
		s.mu.Unlock()
		s.refreshOrWarn(ctx, s.refreshStandings)
		return
	}
	row.Points = standing.Points
	row.Wins = standing.Wins
	row.Losses = standing.Losses
	s.standings[standing.TeamID] = row
	s.mu.Unlock()

	s.broadcastStandings()
}

func (s *Synchronizer) refreshOrWarn(ctx context.Context, refresh func(context.Context) error) {
	if err := refresh(ctx); err != nil {
		s.logger.Warn("projection refresh failed", slog.Any("error", err))
	}
}

// resync re-resolves the active tournament and reloads both projections.
func (s *Synchronizer) resync(ctx context.Context) error {
	tournament, err := s.tournamentRepo.GetLatest(ctx)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			s.mu.Lock()
			s.tournamentID = 0
			s.teams = make(map[int]TeamRef)
			s.liveMatches = make(map[int]LiveMatch)
			s.standings = make(map[int]StandingRow)
			s.mu.Unlock()
			return nil
		}
		return err
	}

	s.mu.Lock()
	s.tournamentID = tournament.ID
	s.mu.Unlock()

	if err := s.refreshMatches(ctx); err != nil {
		return err
	}
	return s.refreshStandings(ctx)
}

// refreshMatches rebuilds the team cache and the in-progress projection
// from storage.
func (s *Synchronizer) refreshMatches(ctx context.Context) error {
	tournamentID := s.activeTournamentID()
	if tournamentID == 0 {
		return nil
	}

	var (
		teams   []*models.Team
		matches []*models.Match
	)
	inProgress := models.MatchStatusInProgress

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		teams, err = s.teamRepo.ListByTournament(gctx, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = s.matchRepo.ListByTournament(gctx, tournamentID, &inProgress)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	teamRefs := make(map[int]TeamRef, len(teams))
	for _, team := range teams {
		teamRefs[team.ID] = TeamRef{ID: team.ID, Name: team.Name, Members: team.Members}
	}
	liveMatches := make(map[int]LiveMatch, len(matches))
	for _, match := range matches {
		liveMatches[match.ID] = LiveMatch{
			ID:         match.ID,
			Round:      match.Round,
			Court:      match.Court,
			Team1:      teamRefs[match.Team1ID],
			Team2:      teamRefs[match.Team2ID],
			ScoreTeam1: match.ScoreTeam1,
			ScoreTeam2: match.ScoreTeam2,
		}
	}

	s.mu.Lock()
	s.teams = teamRefs
	s.liveMatches = liveMatches
	s.mu.Unlock()

	s.broadcastMatches()
	return nil
}

func (s *Synchronizer) refreshStandings(ctx context.Context) error {
	tournamentID := s.activeTournamentID()
	if tournamentID == 0 {
		return nil
	}

	rows, err := s.standingRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	standings := make(map[int]StandingRow, len(rows))
	for _, row := range rows {
		standings[row.TeamID] = StandingRow{
			TeamID:   row.TeamID,
			TeamName: s.teams[row.TeamID].Name,
			Points:   row.Points,
			Wins:     row.Wins,
			Losses:   row.Losses,
		}
	}
	s.standings = standings
	s.mu.Unlock()

	s.broadcastStandings()
	return nil
}

func (s *Synchronizer) activeTournamentID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tournamentID
}

// Snapshot returns a consistent copy of both projections for the
// active tournament.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		TournamentID: s.tournamentID,
		LiveMatches:  sortedLiveMatches(s.liveMatches),
		Standings:    sortedStandings(s.standings),
	}
}

func (s *Synchronizer) broadcastMatches() {
	s.mu.RLock()
	tournamentID := s.tournamentID
	payload := sortedLiveMatches(s.liveMatches)
	s.mu.RUnlock()
	if tournamentID == 0 {
		return
	}
	s.hub.BroadcastToRoom(RoomForTournament(tournamentID), Message{
		Type:    msgMatchUpdated,
		Payload: payload,
	})
}

func (s *Synchronizer) broadcastStandings() {
	s.mu.RLock()
	tournamentID := s.tournamentID
	payload := sortedStandings(s.standings)
	s.mu.RUnlock()
	if tournamentID == 0 {
		return
	}
	s.hub.BroadcastToRoom(RoomForTournament(tournamentID), Message{
		Type:    msgStandingsUpdated,
		Payload: payload,
	})
}

func sortedLiveMatches(liveMatches map[int]LiveMatch) []LiveMatch {
	out := make([]LiveMatch, 0, len(liveMatches))
	for _, match := range liveMatches {
		out = append(out, match)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		if out[i].Court != out[j].Court {
			return out[i].Court < out[j].Court
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortedStandings(standings map[int]StandingRow) []StandingRow {
	out := make([]StandingRow, 0, len(standings))
	for _, row := range standings {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].TeamID < out[j].TeamID
	})
	return out
}
