package live

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nghiatd-29581/badminton-tournament-app/models"
	"github.com/nghiatd-29581/badminton-tournament-app/repositories"
)

// The synchronizer only reads through GetLatest and the ListByTournament
// methods; the embedded interfaces panic loudly if anything else is hit.
type stubTournamentRepo struct {
	repositories.TournamentRepository
	latest *models.Tournament
}

func (s *stubTournamentRepo) GetLatest(context.Context) (*models.Tournament, error) {
	if s.latest == nil {
		return nil, repositories.ErrTournamentNotFound
	}
	return s.latest, nil
}

type stubTeamRepo struct {
	repositories.TeamRepository
	teams []*models.Team
}

func (s *stubTeamRepo) ListByTournament(context.Context, int) ([]*models.Team, error) {
	return s.teams, nil
}

type stubMatchRepo struct {
	repositories.MatchRepository
	matches []*models.Match
}

func (s *stubMatchRepo) ListByTournament(_ context.Context, _ int, status *models.MatchStatus) ([]*models.Match, error) {
	out := make([]*models.Match, 0)
	for _, m := range s.matches {
		if status == nil || m.Status == *status {
			out = append(out, m)
		}
	}
	return out, nil
}

type stubStandingRepo struct {
	repositories.StandingRepository
	standings []*models.Standing
}

func (s *stubStandingRepo) ListByTournament(context.Context, int) ([]*models.Standing, error) {
	return s.standings, nil
}

type syncFixture struct {
	sync         *Synchronizer
	tournaments  *stubTournamentRepo
	teamRepo     *stubTeamRepo
	matchRepo    *stubMatchRepo
	standingRepo *stubStandingRepo
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tournaments := &stubTournamentRepo{latest: &models.Tournament{ID: 1, Name: "Spring Open"}}
	teamRepo := &stubTeamRepo{teams: []*models.Team{
		{ID: 10, TournamentID: 1, Name: "Smashers", Members: []string{"An"}},
		{ID: 20, TournamentID: 1, Name: "Netkillers", Members: []string{"Binh"}},
	}}
	matchRepo := &stubMatchRepo{matches: []*models.Match{
		{ID: 1, TournamentID: 1, Team1ID: 10, Team2ID: 20, Round: 1, Court: 1,
			Status: models.MatchStatusInProgress, ScoreTeam1: 2, ScoreTeam2: 1},
	}}
	standingRepo := &stubStandingRepo{standings: []*models.Standing{
		{TournamentID: 1, TeamID: 10, Points: 3, Wins: 1},
		{TournamentID: 1, TeamID: 20, Points: 1, Losses: 1},
	}}

	s := NewSynchronizer(tournaments, teamRepo, matchRepo, standingRepo, NewHub(logger), nil, logger)
	require.NoError(t, s.resync(context.Background()))

	return &syncFixture{
		sync:         s,
		tournaments:  tournaments,
		teamRepo:     teamRepo,
		matchRepo:    matchRepo,
		standingRepo: standingRepo,
	}
}

func matchEvent(t *testing.T, op string, match models.Match) Event {
	t.Helper()
	row, err := json.Marshal(match)
	require.NoError(t, err)
	return Event{
		Channel: repositories.MatchesChannel,
		Change:  repositories.ChangeEvent{Op: op, Row: row},
	}
}

func standingEvent(t *testing.T, op string, standing models.Standing) Event {
	t.Helper()
	row, err := json.Marshal(standing)
	require.NoError(t, err)
	return Event{
		Channel: repositories.StandingsChannel,
		Change:  repositories.ChangeEvent{Op: op, Row: row},
	}
}

func TestResyncBuildsSnapshot(t *testing.T) {
	f := newSyncFixture(t)

	snapshot := f.sync.Snapshot()
	assert.Equal(t, 1, snapshot.TournamentID)
	require.Len(t, snapshot.LiveMatches, 1)
	assert.Equal(t, "Smashers", snapshot.LiveMatches[0].Team1.Name)
	assert.Equal(t, 2, snapshot.LiveMatches[0].ScoreTeam1)
	require.Len(t, snapshot.Standings, 2)
	assert.Equal(t, 10, snapshot.Standings[0].TeamID)
	assert.Equal(t, "Smashers", snapshot.Standings[0].TeamName)
}

func TestMatchUpdateAppliedIncrementally(t *testing.T) {
	f := newSyncFixture(t)

	f.sync.handle(context.Background(), matchEvent(t, repositories.ChangeUpdate, models.Match{
		ID: 1, TournamentID: 1, Team1ID: 10, Team2ID: 20, Round: 1, Court: 1,
		Status: models.MatchStatusInProgress, ScoreTeam1: 5, ScoreTeam2: 3,
	}))

	snapshot := f.sync.Snapshot()
	require.Len(t, snapshot.LiveMatches, 1)
	assert.Equal(t, 5, snapshot.LiveMatches[0].ScoreTeam1)
	assert.Equal(t, 3, snapshot.LiveMatches[0].ScoreTeam2)
}

func TestDuplicateEventsAreHarmless(t *testing.T) {
	f := newSyncFixture(t)

	event := matchEvent(t, repositories.ChangeUpdate, models.Match{
		ID: 1, TournamentID: 1, Team1ID: 10, Team2ID: 20, Round: 1, Court: 1,
		Status: models.MatchStatusInProgress, ScoreTeam1: 7, ScoreTeam2: 4,
	})
	f.sync.handle(context.Background(), event)
	f.sync.handle(context.Background(), event)
	f.sync.handle(context.Background(), event)

	snapshot := f.sync.Snapshot()
	require.Len(t, snapshot.LiveMatches, 1)
	assert.Equal(t, 7, snapshot.LiveMatches[0].ScoreTeam1)
	assert.Equal(t, 4, snapshot.LiveMatches[0].ScoreTeam2)
}

func TestOutOfOrderEventsConvergeOnLatest(t *testing.T) {
	f := newSyncFixture(t)

	newer := matchEvent(t, repositories.ChangeUpdate, models.Match{
		ID: 1, TournamentID: 1, Team1ID: 10, Team2ID: 20, Round: 1, Court: 1,
		Status: models.MatchStatusInProgress, ScoreTeam1: 9, ScoreTeam2: 9,
	})
	stale := matchEvent(t, repositories.ChangeUpdate, models.Match{
		ID: 1, TournamentID: 1, Team1ID: 10, Team2ID: 20, Round: 1, Court: 1,
		Status: models.MatchStatusInProgress, ScoreTeam1: 8, ScoreTeam2: 9,
	})

	// A stale payload may briefly win, but redelivery of the newer one
	// restores the latest durable state.
	f.sync.handle(context.Background(), newer)
	f.sync.handle(context.Background(), stale)
	f.sync.handle(context.Background(), newer)

	snapshot := f.sync.Snapshot()
	require.Len(t, snapshot.LiveMatches, 1)
	assert.Equal(t, 9, snapshot.LiveMatches[0].ScoreTeam1)
}

func TestOtherTournamentEventsIgnored(t *testing.T) {
	f := newSyncFixture(t)

	f.sync.handle(context.Background(), matchEvent(t, repositories.ChangeUpdate, models.Match{
		ID: 99, TournamentID: 2, Team1ID: 30, Team2ID: 40, Round: 1, Court: 1,
		Status: models.MatchStatusInProgress, ScoreTeam1: 11, ScoreTeam2: 0,
	}))

	snapshot := f.sync.Snapshot()
	require.Len(t, snapshot.LiveMatches, 1)
	assert.Equal(t, 1, snapshot.LiveMatches[0].ID)
}

func TestFinishedMatchLeavesLiveProjection(t *testing.T) {
	f := newSyncFixture(t)

	// Storage no longer reports the match as in progress; the completed
	// update triggers a refetch that drops it.
	f.matchRepo.matches[0].Status = models.MatchStatusCompleted
	f.sync.handle(context.Background(), matchEvent(t, repositories.ChangeUpdate, models.Match{
		ID: 1, TournamentID: 1, Team1ID: 10, Team2ID: 20, Round: 1, Court: 1,
		Status: models.MatchStatusCompleted, ScoreTeam1: 21, ScoreTeam2: 15,
	}))

	snapshot := f.sync.Snapshot()
	assert.Empty(t, snapshot.LiveMatches)
}

func TestUnknownMatchTriggersRefetch(t *testing.T) {
	f := newSyncFixture(t)

	// A second match starts; its event arrives before the projection
	// knows the row, so the whole set is refetched from storage.
	f.teamRepo.teams = append(f.teamRepo.teams,
		&models.Team{ID: 30, TournamentID: 1, Name: "Drop Shots"},
		&models.Team{ID: 40, TournamentID: 1, Name: "Feather"},
	)
	f.matchRepo.matches = append(f.matchRepo.matches, &models.Match{
		ID: 2, TournamentID: 1, Team1ID: 30, Team2ID: 40, Round: 1, Court: 2,
		Status: models.MatchStatusInProgress,
	})

	f.sync.handle(context.Background(), matchEvent(t, repositories.ChangeUpdate, models.Match{
		ID: 2, TournamentID: 1, Team1ID: 30, Team2ID: 40, Round: 1, Court: 2,
		Status: models.MatchStatusInProgress,
	}))

	snapshot := f.sync.Snapshot()
	require.Len(t, snapshot.LiveMatches, 2)
	assert.Equal(t, "Drop Shots", snapshot.LiveMatches[1].Team1.Name)
}

func TestMatchInsertRefetches(t *testing.T) {
	f := newSyncFixture(t)

	f.matchRepo.matches[0].ScoreTeam1 = 6
	f.sync.handle(context.Background(), matchEvent(t, repositories.ChangeInsert, models.Match{
		ID: 1, TournamentID: 1, Team1ID: 10, Team2ID: 20,
		Status: models.MatchStatusPending,
	}))

	snapshot := f.sync.Snapshot()
	require.Len(t, snapshot.LiveMatches, 1)
	assert.Equal(t, 6, snapshot.LiveMatches[0].ScoreTeam1)
}

func TestUndecodableMatchEventRefetches(t *testing.T) {
	f := newSyncFixture(t)

	f.matchRepo.matches[0].ScoreTeam2 = 8
	f.sync.handle(context.Background(), Event{
		Channel: repositories.MatchesChannel,
		Change:  repositories.ChangeEvent{Op: repositories.ChangeUpdate, Row: json.RawMessage(`{"id": not-json`)},
	})

	snapshot := f.sync.Snapshot()
	require.Len(t, snapshot.LiveMatches, 1)
	assert.Equal(t, 8, snapshot.LiveMatches[0].ScoreTeam2)
}

func TestStandingUpdateAppliedIncrementally(t *testing.T) {
	f := newSyncFixture(t)

	f.sync.handle(context.Background(), standingEvent(t, repositories.ChangeUpdate, models.Standing{
		TournamentID: 1, TeamID: 20, Points: 4, Wins: 1, Losses: 1,
	}))

	snapshot := f.sync.Snapshot()
	require.Len(t, snapshot.Standings, 2)
	// Team 20 now leads on points.
	assert.Equal(t, 20, snapshot.Standings[0].TeamID)
	assert.Equal(t, 4, snapshot.Standings[0].Points)
	assert.Equal(t, "Netkillers", snapshot.Standings[0].TeamName)
}

func TestStandingsResetEventRefetches(t *testing.T) {
	f := newSyncFixture(t)

	for _, row := range f.standingRepo.standings {
		row.Points, row.Wins, row.Losses = 0, 0, 0
	}
	f.sync.handle(context.Background(), Event{
		Channel: repositories.StandingsChannel,
		Change: repositories.ChangeEvent{
			Op:  repositories.ChangeDelete,
			Row: json.RawMessage(`{"tournament_id": 1}`),
		},
	})

	snapshot := f.sync.Snapshot()
	require.Len(t, snapshot.Standings, 2)
	for _, row := range snapshot.Standings {
		assert.Zero(t, row.Points)
	}
}

func TestResyncEventSwitchesTournament(t *testing.T) {
	f := newSyncFixture(t)

	f.tournaments.latest = &models.Tournament{ID: 2, Name: "Summer Open"}
	f.teamRepo.teams = []*models.Team{{ID: 50, TournamentID: 2, Name: "Newcomers"}}
	f.matchRepo.matches = nil
	f.standingRepo.standings = []*models.Standing{{TournamentID: 2, TeamID: 50}}

	f.sync.handle(context.Background(), Event{Resync: true})

	snapshot := f.sync.Snapshot()
	assert.Equal(t, 2, snapshot.TournamentID)
	assert.Empty(t, snapshot.LiveMatches)
	require.Len(t, snapshot.Standings, 1)
	assert.Equal(t, 50, snapshot.Standings[0].TeamID)
}

func TestTournamentInsertEventResyncs(t *testing.T) {
	f := newSyncFixture(t)

	f.tournaments.latest = &models.Tournament{ID: 2, Name: "Summer Open"}
	f.teamRepo.teams = nil
	f.matchRepo.matches = nil
	f.standingRepo.standings = nil

	row, err := json.Marshal(f.tournaments.latest)
	require.NoError(t, err)
	f.sync.handle(context.Background(), Event{
		Channel: repositories.TournamentsChannel,
		Change:  repositories.ChangeEvent{Op: repositories.ChangeInsert, Row: row},
	})

	snapshot := f.sync.Snapshot()
	assert.Equal(t, 2, snapshot.TournamentID)
	assert.Empty(t, snapshot.LiveMatches)
	assert.Empty(t, snapshot.Standings)
}
