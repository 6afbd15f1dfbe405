package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/nghiatd-29581/badminton-tournament-app/brackets"
	"github.com/nghiatd-29581/badminton-tournament-app/models"
	"github.com/nghiatd-29581/badminton-tournament-app/repositories"
	"github.com/nghiatd-29581/badminton-tournament-app/storage"
)

const (
	minTeams  = 2
	maxTeams  = 20
	minCourts = 1
	maxCourts = 10
)

type CreateTeamInput struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type CreateTournamentInput struct {
	Name       string            `json:"name"`
	CourtCount int               `json:"court_count"`
	Teams      []CreateTeamInput `json:"teams"`
}

type TournamentService interface {
	Create(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	Current(ctx context.Context) (*models.Tournament, error)
	ListMatches(ctx context.Context, tournamentID int) ([]*models.Match, error)
	ListStandings(ctx context.Context, tournamentID int) ([]*models.Standing, error)
	UploadBanner(ctx context.Context, tournamentID int, contentType string, file io.Reader) (*models.Tournament, error)
}

type tournamentService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	teamRepo       repositories.TeamRepository
	matchRepo      repositories.MatchRepository
	standingRepo   repositories.StandingRepository
	generator      brackets.ScheduleGenerator
	uploader       storage.FileUploader // nil when banner uploads are not configured
	logger         *slog.Logger
}

func NewTournamentService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	matchRepo repositories.MatchRepository,
	standingRepo repositories.StandingRepository,
	generator brackets.ScheduleGenerator,
	uploader storage.FileUploader,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		db:             db,
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		matchRepo:      matchRepo,
		standingRepo:   standingRepo,
		generator:      generator,
		uploader:       uploader,
		logger:         logger,
	}
}

// Create sets up a tournament in one transaction: the tournament row,
// its teams, one zeroed standings row per team, and the full generated
// round-robin schedule. Any failure rolls everything back.
func (s *tournamentService) Create(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	var txErr error
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed after tournament create error",
					slog.Any("error", rbErr), slog.Any("cause", txErr))
			}
		}
	}()

	tournament := &models.Tournament{
		Name:       strings.TrimSpace(input.Name),
		CourtCount: input.CourtCount,
	}
	if txErr = s.tournamentRepo.Create(ctx, tx, tournament); txErr != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", txErr)
	}

	teams := make([]*models.Team, 0, len(input.Teams))
	for i, teamInput := range input.Teams {
		name := strings.TrimSpace(teamInput.Name)
		if name == "" {
			name = fmt.Sprintf("Team %d", i+1)
		}
		teams = append(teams, &models.Team{
			TournamentID: tournament.ID,
			Name:         name,
			Members:      teamInput.Members,
		})
	}
	if txErr = s.teamRepo.CreateBatch(ctx, tx, teams); txErr != nil {
		return nil, fmt.Errorf("failed to create teams: %w", txErr)
	}

	standings := make([]*models.Standing, 0, len(teams))
	teamIDs := make([]int, 0, len(teams))
	for _, team := range teams {
		teamIDs = append(teamIDs, team.ID)
		standings = append(standings, &models.Standing{
			TournamentID: tournament.ID,
			TeamID:       team.ID,
		})
	}
	if txErr = s.standingRepo.BatchCreate(ctx, tx, standings); txErr != nil {
		return nil, fmt.Errorf("failed to create standings: %w", txErr)
	}

	pairings, genErr := s.generator.Generate(brackets.GenerateParams{
		TeamIDs:    teamIDs,
		CourtCount: tournament.CourtCount,
	})
	if genErr != nil {
		txErr = genErr
		return nil, fmt.Errorf("failed to generate schedule: %w", genErr)
	}

	matches := make([]*models.Match, 0, len(pairings))
	for _, pairing := range pairings {
		matches = append(matches, &models.Match{
			TournamentID: tournament.ID,
			Team1ID:      pairing.Team1ID,
			Team2ID:      pairing.Team2ID,
			Round:        pairing.Round,
			Court:        pairing.Court,
			Status:       models.MatchStatusPending,
		})
	}
	if txErr = s.matchRepo.CreateBatch(ctx, tx, matches); txErr != nil {
		return nil, fmt.Errorf("failed to create matches: %w", txErr)
	}

	if txErr = tx.Commit(); txErr != nil {
		return nil, fmt.Errorf("failed to commit tournament create: %w", txErr)
	}

	s.logger.Info("tournament created",
		slog.Int("tournament_id", tournament.ID),
		slog.Int("teams", len(teams)),
		slog.Int("matches", len(matches)),
		slog.Int("courts", tournament.CourtCount))

	tournament.Teams = teams
	tournament.Matches = matches
	return tournament, nil
}

func validateCreateInput(input CreateTournamentInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return ErrTournamentNameRequired
	}
	if len(input.Teams) < minTeams || len(input.Teams) > maxTeams {
		return ErrTeamCountInvalid
	}
	if input.CourtCount < minCourts || input.CourtCount > maxCourts {
		return ErrCourtCountInvalid
	}
	for _, team := range input.Teams {
		hasMember := false
		for _, member := range team.Members {
			if strings.TrimSpace(member) != "" {
				hasMember = true
				break
			}
		}
		if !hasMember {
			return ErrTeamMembersRequired
		}
	}
	return nil
}

func (s *tournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	s.populateBannerURL(tournament)
	return tournament, nil
}

// Current resolves the active tournament as the most recently created
// one. Core operations still take tournament identity explicitly; this
// only serves edge layers that need a default.
func (s *tournamentService) Current(ctx context.Context) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetLatest(ctx)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	s.populateBannerURL(tournament)
	return tournament, nil
}

func (s *tournamentService) ListMatches(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	matches, err := s.matchRepo.ListByTournament(ctx, tournamentID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for tournament %d: %w", tournamentID, err)
	}

	teams, err := s.teamRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams for tournament %d: %w", tournamentID, err)
	}
	teamsByID := make(map[int]*models.Team, len(teams))
	for _, team := range teams {
		teamsByID[team.ID] = team
	}
	for _, match := range matches {
		match.Team1 = teamsByID[match.Team1ID]
		match.Team2 = teamsByID[match.Team2ID]
	}
	return matches, nil
}

func (s *tournamentService) ListStandings(ctx context.Context, tournamentID int) ([]*models.Standing, error) {
	standings, err := s.standingRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list standings for tournament %d: %w", tournamentID, err)
	}

	teams, err := s.teamRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams for tournament %d: %w", tournamentID, err)
	}
	teamsByID := make(map[int]*models.Team, len(teams))
	for _, team := range teams {
		teamsByID[team.ID] = team
	}
	for _, standing := range standings {
		standing.Team = teamsByID[standing.TeamID]
	}
	return standings, nil
}

func (s *tournamentService) UploadBanner(ctx context.Context, tournamentID int, contentType string, file io.Reader) (*models.Tournament, error) {
	if s.uploader == nil {
		return nil, ErrBannerUploadsDisabled
	}

	tournament, err := s.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("tournaments/%d/banner_%d", tournamentID, time.Now().Unix())
	result, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return nil, fmt.Errorf("failed to upload banner for tournament %d: %w", tournamentID, err)
	}

	oldKey := tournament.BannerKey
	if err := s.tournamentRepo.UpdateBannerKey(ctx, tournamentID, &result.Key); err != nil {
		return nil, fmt.Errorf("failed to store banner key for tournament %d: %w", tournamentID, err)
	}
	if oldKey != nil && *oldKey != result.Key {
		if delErr := s.uploader.Delete(ctx, *oldKey); delErr != nil {
			s.logger.Warn("failed to delete previous banner",
				slog.String("key", *oldKey), slog.Any("error", delErr))
		}
	}

	tournament.BannerKey = &result.Key
	s.populateBannerURL(tournament)
	return tournament, nil
}

func (s *tournamentService) populateBannerURL(tournament *models.Tournament) {
	if s.uploader == nil || tournament.BannerKey == nil {
		return
	}
	url := s.uploader.GetPublicURL(*tournament.BannerKey)
	if url != "" {
		tournament.BannerURL = &url
	}
}
