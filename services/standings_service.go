package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nghiatd-29581/badminton-tournament-app/models"
	"github.com/nghiatd-29581/badminton-tournament-app/repositories"
)

// StandingsService derives the standings table from completed matches.
// Incremental application must be invoked exactly once per completion
// (the match service's contract); the from-scratch recomputation is the
// idempotent repair path and must always agree with the incremental one.
type StandingsService interface {
	ApplyResult(ctx context.Context, match *models.Match) error
	Recalculate(ctx context.Context, tournamentID int) error
	NeedsReconciliation(ctx context.Context, tournamentID int) (bool, error)
	ReconcileAll(ctx context.Context) error
}

type standingsService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	standingRepo   repositories.StandingRepository
	logger         *slog.Logger
}

func NewStandingsService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	standingRepo repositories.StandingRepository,
	logger *slog.Logger,
) StandingsService {
	return &standingsService{
		db:             db,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		standingRepo:   standingRepo,
		logger:         logger,
	}
}

// ApplyResult applies a completed match to both teams' rows in one
// transaction: winner +3 points +1 win, loser +1 point +1 loss. Each
// row change is a single atomic increment statement, so two matches
// finishing concurrently for the same team both land.
func (s *standingsService) ApplyResult(ctx context.Context, match *models.Match) error {
	if match.Status != models.MatchStatusCompleted || match.WinnerID == nil {
		return fmt.Errorf("cannot apply standings for match %d: not completed with a winner", match.ID)
	}

	winnerID := *match.WinnerID
	loserID := match.Team1ID
	if winnerID == match.Team1ID {
		loserID = match.Team2ID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	var txErr error
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	if txErr = s.applyTo(ctx, tx, match.TournamentID, winnerID, models.WinPoints, 1, 0); txErr != nil {
		return txErr
	}
	if txErr = s.applyTo(ctx, tx, match.TournamentID, loserID, models.LossPoints, 0, 1); txErr != nil {
		return txErr
	}

	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("failed to commit standings update: %w", txErr)
	}
	return nil
}

func (s *standingsService) applyTo(ctx context.Context, exec repositories.SQLExecutor, tournamentID, teamID, points, wins, losses int) error {
	err := s.standingRepo.ApplyResult(ctx, exec, tournamentID, teamID, points, wins, losses)
	if err != nil {
		if errors.Is(err, repositories.ErrStandingNotFound) {
			return fmt.Errorf("%w: team %d in tournament %d", ErrStandingNotFound, teamID, tournamentID)
		}
		return fmt.Errorf("failed to apply result for team %d: %w", teamID, err)
	}
	return nil
}

// Recalculate rebuilds the tournament's standings from the full set of
// completed matches in one transaction: zero every row, then replay
// every completed result. Running it any number of times yields the
// same table, so it doubles as the repair for partially completed
// finishes.
func (s *standingsService) Recalculate(ctx context.Context, tournamentID int) error {
	completed := models.MatchStatusCompleted
	matches, err := s.matchRepo.ListByTournament(ctx, tournamentID, &completed)
	if err != nil {
		return fmt.Errorf("failed to list completed matches for tournament %d: %w", tournamentID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	var txErr error
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	if txErr = s.standingRepo.ResetByTournament(ctx, tx, tournamentID); txErr != nil {
		return fmt.Errorf("failed to reset standings for tournament %d: %w", tournamentID, txErr)
	}

	for _, match := range matches {
		if match.WinnerID == nil {
			txErr = fmt.Errorf("completed match %d has no winner", match.ID)
			return txErr
		}
		winnerID := *match.WinnerID
		loserID := match.Team1ID
		if winnerID == match.Team1ID {
			loserID = match.Team2ID
		}
		if txErr = s.applyTo(ctx, tx, tournamentID, winnerID, models.WinPoints, 1, 0); txErr != nil {
			return txErr
		}
		if txErr = s.applyTo(ctx, tx, tournamentID, loserID, models.LossPoints, 0, 1); txErr != nil {
			return txErr
		}
	}

	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("failed to commit standings recalculation: %w", txErr)
	}

	s.logger.Info("standings recalculated",
		slog.Int("tournament_id", tournamentID),
		slog.Int("completed_matches", len(matches)))
	return nil
}

// NeedsReconciliation reports whether the recorded standings disagree
// with the completed matches: every completed match contributes exactly
// one win and one loss, so the wins+losses total must equal twice the
// completed-match count.
func (s *standingsService) NeedsReconciliation(ctx context.Context, tournamentID int) (bool, error) {
	games, err := s.standingRepo.SumGames(ctx, tournamentID)
	if err != nil {
		return false, fmt.Errorf("failed to sum standings games for tournament %d: %w", tournamentID, err)
	}
	completed, err := s.matchRepo.CountByTournamentAndStatus(ctx, tournamentID, models.MatchStatusCompleted)
	if err != nil {
		return false, fmt.Errorf("failed to count completed matches for tournament %d: %w", tournamentID, err)
	}
	return games != 2*completed, nil
}

// ReconcileAll repairs every tournament whose standings drifted from
// its completed matches. Run periodically; a finish whose standings
// step failed is picked up here.
func (s *standingsService) ReconcileAll(ctx context.Context) error {
	tournaments, err := s.tournamentRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tournaments for reconciliation: %w", err)
	}

	var errs []error
	for _, tournament := range tournaments {
		needed, checkErr := s.NeedsReconciliation(ctx, tournament.ID)
		if checkErr != nil {
			errs = append(errs, checkErr)
			continue
		}
		if !needed {
			continue
		}
		s.logger.Warn("standings drift detected, recalculating",
			slog.Int("tournament_id", tournament.ID))
		if recalcErr := s.Recalculate(ctx, tournament.ID); recalcErr != nil {
			errs = append(errs, recalcErr)
		}
	}
	return errors.Join(errs...)
}
